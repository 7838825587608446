package toysql_test

// These tests run the same statements against this engine and against
// real SQLite (modernc.org/sqlite, pure Go) and compare the rows.

import (
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hobochild/toysql"
)

func setupComparisonDBs(t *testing.T) (*sql.DB, *toysql.DB) {
	t.Helper()
	dir := t.TempDir()

	ref, err := sql.Open("sqlite", filepath.Join(dir, "reference.db"))
	if err != nil {
		t.Fatalf("open reference database: %v", err)
	}
	t.Cleanup(func() { ref.Close() })

	db, err := toysql.Open(filepath.Join(dir, "toysql.db"))
	if err != nil {
		t.Fatalf("open toysql database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return ref, db
}

// execBoth applies one statement to both databases.
func execBoth(t *testing.T, ref *sql.DB, db *toysql.DB, stmt string) {
	t.Helper()
	if _, err := ref.Exec(stmt); err != nil {
		t.Fatalf("reference Exec(%q): %v", stmt, err)
	}
	if err := db.Exec(stmt); err != nil {
		t.Fatalf("toysql Exec(%q): %v", stmt, err)
	}
}

// refRows reads every row from the reference database.
func refRows(t *testing.T, ref *sql.DB, query string) [][]any {
	t.Helper()
	rows, err := ref.Query(query)
	if err != nil {
		t.Fatalf("reference Query(%q): %v", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	var out [][]any
	for rows.Next() {
		fields := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range fields {
			ptrs[i] = &fields[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatalf("Scan: %v", err)
		}
		for i, f := range fields {
			// The driver returns TEXT as []byte in some paths.
			if b, ok := f.([]byte); ok {
				fields[i] = string(b)
			}
		}
		out = append(out, fields)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err: %v", err)
	}
	return out
}

func toysqlRows(t *testing.T, db *toysql.DB, query string) [][]any {
	t.Helper()
	rows, err := db.Query(query)
	if err != nil {
		t.Fatalf("toysql Query(%q): %v", query, err)
	}
	defer rows.Close()
	var out [][]any
	for rows.Next() {
		out = append(out, rows.Row())
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("toysql rows.Err: %v", err)
	}
	return out
}

func TestComparisonScan(t *testing.T) {
	ref, db := setupComparisonDBs(t)
	execBoth(t, ref, db, "CREATE TABLE users (name TEXT, age INT)")
	execBoth(t, ref, db, "INSERT INTO users VALUES ('fred', 30)")
	execBoth(t, ref, db, "INSERT INTO users VALUES ('joe', 25)")
	execBoth(t, ref, db, "INSERT INTO users VALUES ('ann', NULL)")

	// toysql rows lead with the rowid; ask SQLite for the same shape.
	want := refRows(t, ref, "SELECT rowid, name, age FROM users ORDER BY rowid")
	got := toysqlRows(t, db, "SELECT * FROM users")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows differ:\ntoysql: %v\nsqlite: %v", got, want)
	}
}

func TestComparisonPointQuery(t *testing.T) {
	ref, db := setupComparisonDBs(t)
	execBoth(t, ref, db, "CREATE TABLE items (label TEXT)")
	for _, label := range []string{"'a'", "'b'", "'c'", "'d'"} {
		execBoth(t, ref, db, "INSERT INTO items VALUES ("+label+")")
	}

	want := refRows(t, ref, "SELECT rowid, label FROM items WHERE rowid = 3")
	got := toysqlRows(t, db, "SELECT label FROM items WHERE id = 3")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows differ:\ntoysql: %v\nsqlite: %v", got, want)
	}

	if got := toysqlRows(t, db, "SELECT label FROM items WHERE id = 42"); len(got) != 0 {
		t.Errorf("missing rowid returned rows: %v", got)
	}
}

func TestComparisonRowidAssignment(t *testing.T) {
	ref, db := setupComparisonDBs(t)
	execBoth(t, ref, db, "CREATE TABLE seq (v INT)")
	for i := 0; i < 10; i++ {
		execBoth(t, ref, db, "INSERT INTO seq VALUES (7)")
	}

	want := refRows(t, ref, "SELECT rowid FROM seq ORDER BY rowid")
	full := toysqlRows(t, db, "SELECT * FROM seq")
	got := make([][]any, len(full))
	for i, row := range full {
		got[i] = row[:1]
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rowid sequences differ:\ntoysql: %v\nsqlite: %v", got, want)
	}
}

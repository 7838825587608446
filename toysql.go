// Package toysql is a miniature relational database: a single-file paged
// store, a B+Tree per table, and a register VM executing programs
// compiled from a small SQL dialect. The schema lives in an ordinary
// table rooted at page 0.
package toysql

import (
	"fmt"

	"github.com/hobochild/toysql/internal/compiler"
	"github.com/hobochild/toysql/internal/pager"
	"github.com/hobochild/toysql/internal/record"
	"github.com/hobochild/toysql/internal/vdbe"
)

// DB is an open database.
type DB struct {
	pager    *pager.Pager
	vm       *vdbe.VM
	compiler *compiler.Compiler
}

// SchemaEntry describes one table in the catalog.
type SchemaEntry struct {
	ID        int64
	Type      string
	Name      string
	TableName string
	SQL       string
	RootPage  int
}

// runner adapts the VM to the compiler's execute capability.
type runner struct {
	vm *vdbe.VM
}

func (r *runner) Run(prog *vdbe.Program) ([][]record.Value, error) {
	rows, err := r.vm.Execute(prog)
	if err != nil {
		return nil, err
	}
	return rows.Drain()
}

// Open opens (creating and bootstrapping if necessary) the database file
// at path.
func Open(path string) (*DB, error) {
	pg, err := pager.Open(path)
	if err != nil {
		return nil, err
	}
	vm := vdbe.New(pg)
	comp, err := compiler.New(pg, &runner{vm: vm})
	if err != nil {
		pg.Close()
		return nil, err
	}
	return &DB{pager: pg, vm: vm, compiler: comp}, nil
}

// Close flushes and closes the database file.
func (db *DB) Close() error {
	return db.pager.Close()
}

// Exec compiles and runs one statement, discarding any result rows.
func (db *DB) Exec(sql string) error {
	rows, err := db.Query(sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// Query compiles one statement and returns its rows. For SELECT the first
// field of every row is the rowid.
func (db *DB) Query(sql string) (*Rows, error) {
	prog, err := db.compiler.Compile(sql)
	if err != nil {
		return nil, err
	}
	inner, err := db.vm.Execute(prog)
	if err != nil {
		return nil, err
	}
	return &Rows{inner: inner}, nil
}

// Explain compiles one statement and renders its program listing.
func (db *DB) Explain(sql string) (string, error) {
	prog, err := db.compiler.Compile(sql)
	if err != nil {
		return "", err
	}
	return prog.Explain(), nil
}

// Schema returns the catalog contents.
func (db *DB) Schema() ([]SchemaEntry, error) {
	entries, err := db.compiler.Schema()
	if err != nil {
		return nil, err
	}
	out := make([]SchemaEntry, len(entries))
	for i, e := range entries {
		out[i] = SchemaEntry(e)
	}
	return out, nil
}

// Rows is a lazy result set. The program only runs while Next is called.
type Rows struct {
	inner *vdbe.Rows
}

// Next advances to the next row, reporting false at the end of the result
// set. Check Err afterwards.
func (r *Rows) Next() bool { return r.inner.Next() }

// Err returns the error that terminated the scan, if any.
func (r *Rows) Err() error { return r.inner.Err() }

// Close abandons the scan.
func (r *Rows) Close() { r.inner.Close() }

// Row returns the current row with Go-native field types: nil, int64,
// string, or []byte.
func (r *Rows) Row() []any {
	values := r.inner.Row()
	out := make([]any, len(values))
	for i, v := range values {
		switch v.Type {
		case record.TypeInteger:
			out[i] = v.Int
		case record.TypeText:
			out[i] = v.Text
		case record.TypeBlob:
			out[i] = v.Blob
		default:
			out[i] = nil
		}
	}
	return out
}

// RowStrings renders the current row for display.
func (r *Rows) RowStrings() []string {
	values := r.inner.Row()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

// Tables returns the names of the user tables plus the catalog itself.
func (db *DB) Tables() ([]string, error) {
	entries, err := db.Schema()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.TableName
	}
	return names, nil
}

// String summarizes the database file.
func (db *DB) String() string {
	return fmt.Sprintf("toysql database: %d pages of %d bytes",
		db.pager.PageCount(), db.pager.PageSize())
}

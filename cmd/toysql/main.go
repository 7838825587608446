// Command toysql is the database shell and admin tool.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/hobochild/toysql"
)

type globals struct {
	DB string `help:"Database file path." short:"d" default:"toysql.db" type:"path"`
}

var cli struct {
	globals

	Shell  shellCmd  `cmd:"" default:"1" help:"Interactive SQL shell."`
	Exec   execCmd   `cmd:"" help:"Execute SQL statements and print the rows."`
	Tables tablesCmd `cmd:"" help:"List tables."`
	Schema schemaCmd `cmd:"" help:"Print the schema catalog."`
	Backup backupCmd `cmd:"" help:"Write an xz-compressed snapshot of the database."`
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("toysql: ")
	ctx := kong.Parse(&cli,
		kong.Name("toysql"),
		kong.Description("A miniature SQL database."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli.globals); err != nil {
		log.Fatal(err)
	}
}

type shellCmd struct{}

func (c *shellCmd) Run(g *globals) error {
	db, err := toysql.Open(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println(db.String())
	fmt.Println(`Enter SQL statements, ".tables", ".schema", or ".exit".`)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("toysql> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == ".exit" || line == ".quit":
			return nil
		case line == ".tables":
			if err := printTables(db, os.Stdout); err != nil {
				log.Print(err)
			}
		case line == ".schema":
			if err := printSchema(db, os.Stdout); err != nil {
				log.Print(err)
			}
		default:
			if err := runStatement(db, os.Stdout, line); err != nil {
				log.Print(err)
			}
		}
	}
}

type execCmd struct {
	SQL []string `arg:"" help:"Statements to execute."`
}

func (c *execCmd) Run(g *globals) error {
	db, err := toysql.Open(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, sql := range c.SQL {
		if err := runStatement(db, os.Stdout, sql); err != nil {
			return err
		}
	}
	return nil
}

type tablesCmd struct{}

func (c *tablesCmd) Run(g *globals) error {
	db, err := toysql.Open(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	return printTables(db, os.Stdout)
}

type schemaCmd struct{}

func (c *schemaCmd) Run(g *globals) error {
	db, err := toysql.Open(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	return printSchema(db, os.Stdout)
}

type backupCmd struct {
	Output string `arg:"" help:"Snapshot file to write." type:"path"`
}

// Run copies the raw database image through an xz writer and reports the
// BLAKE3 hash of the uncompressed bytes, so a restore can be verified.
func (c *backupCmd) Run(g *globals) error {
	src, err := os.Open(g.DB)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(c.Output)
	if err != nil {
		return err
	}
	defer dst.Close()

	zw, err := xz.NewWriter(dst)
	if err != nil {
		return err
	}
	hasher := blake3.New()
	n, err := io.Copy(io.MultiWriter(zw, hasher), src)
	if err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := dst.Sync(); err != nil {
		return err
	}

	info, err := dst.Stat()
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d bytes compressed from %d\n", c.Output, info.Size(), n)
	fmt.Printf("blake3 %s\n", hex.EncodeToString(hasher.Sum(nil)))
	return nil
}

// runStatement executes one statement, printing any result rows
// pipe-separated.
func runStatement(db *toysql.DB, w io.Writer, sql string) error {
	rows, err := db.Query(sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		fmt.Fprintln(w, strings.Join(rows.RowStrings(), "|"))
	}
	return rows.Err()
}

func printTables(db *toysql.DB, w io.Writer) error {
	tables, err := db.Tables()
	if err != nil {
		return err
	}
	for _, name := range tables {
		fmt.Fprintln(w, name)
	}
	return nil
}

func printSchema(db *toysql.DB, w io.Writer) error {
	entries, err := db.Schema()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%d|%s|%s|%d|%s\n", e.ID, e.Type, e.TableName, e.RootPage, e.SQL)
	}
	return nil
}

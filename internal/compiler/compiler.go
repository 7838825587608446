// Package compiler lowers parsed statements to VM programs and owns the
// schema catalog. The catalog is itself a table, rooted at page 0 and
// described by its own CREATE TABLE statement; on an empty database the
// compiler bootstraps it by compiling and running that statement.
package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hobochild/toysql/internal/pager"
	"github.com/hobochild/toysql/internal/parser"
	"github.com/hobochild/toysql/internal/record"
	"github.com/hobochild/toysql/internal/vdbe"
)

const (
	// SchemaTableName is the catalog table's name.
	SchemaTableName = "schema"

	// SchemaRootPage is the catalog's fixed root page.
	SchemaRootPage = 0

	// SchemaTableSQL declares the catalog's columns. The rowid serves as
	// the entry id, so it is not a declared column.
	SchemaTableSQL = "CREATE TABLE schema (type TEXT, name TEXT, table_name TEXT, sql_text TEXT(500), root_page_number INT)"
)

// schemaColumns mirrors SchemaTableSQL.
var schemaColumns = []string{"type", "name", "table_name", "sql_text", "root_page_number"}

var (
	// ErrTableNotFound is returned when a statement names an unknown table.
	ErrTableNotFound = errors.New("compiler: table not found")

	// ErrTableExists is returned by CREATE TABLE for an existing name.
	ErrTableExists = errors.New("compiler: table already exists")

	// ErrMultipleStatements is returned when Compile receives more than
	// one statement.
	ErrMultipleStatements = errors.New("compiler: expected exactly one statement")

	// ErrUnknownColumn is returned when a SELECT names a column the
	// table does not declare.
	ErrUnknownColumn = errors.New("compiler: unknown column")

	// ErrValueCount is returned when an INSERT's value count does not
	// match the table's column count.
	ErrValueCount = errors.New("compiler: value count does not match column count")

	// ErrUnsupportedWhere is returned for predicates beyond
	// "rowid-column = integer".
	ErrUnsupportedWhere = errors.New("compiler: unsupported WHERE clause")
)

// Runner executes a compiled program to completion. It is the compiler's
// only view of the VM; the compiler needs it to read the catalog and to
// run the bootstrap.
type Runner interface {
	Run(*vdbe.Program) ([][]record.Value, error)
}

// SchemaEntry is one decoded catalog row.
type SchemaEntry struct {
	ID        int64
	Type      string
	Name      string
	TableName string
	SQL       string
	RootPage  int
}

// Compiler compiles statements against the current catalog.
type Compiler struct {
	pager  *pager.Pager
	runner Runner
}

// New returns a compiler, bootstrapping the schema catalog if the
// database file is empty.
func New(pg *pager.Pager, runner Runner) (*Compiler, error) {
	c := &Compiler{pager: pg, runner: runner}
	if pg.PageCount() == 0 {
		prog, err := c.Compile(SchemaTableSQL)
		if err != nil {
			return nil, fmt.Errorf("compiler: bootstrap: %w", err)
		}
		if _, err := runner.Run(prog); err != nil {
			return nil, fmt.Errorf("compiler: bootstrap: %w", err)
		}
	}
	return c, nil
}

// Compile parses sql, which must hold exactly one statement, and lowers
// it to a finalized program.
func (c *Compiler) Compile(sql string) (*vdbe.Program, error) {
	stmts, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrMultipleStatements, len(stmts))
	}
	return c.CompileStatement(stmts[0])
}

// CompileStatement lowers one parsed statement.
func (c *Compiler) CompileStatement(stmt parser.Statement) (*vdbe.Program, error) {
	var prog *vdbe.Program
	var err error
	switch s := stmt.(type) {
	case *parser.SelectStmt:
		prog, err = c.compileSelect(s)
	case *parser.InsertStmt:
		prog, err = c.compileInsert(s)
	case *parser.CreateStmt:
		prog, err = c.compileCreate(s)
	default:
		return nil, fmt.Errorf("compiler: unsupported statement %T", stmt)
	}
	if err != nil {
		return nil, err
	}
	if err := prog.Finalize(); err != nil {
		return nil, err
	}
	return prog, nil
}

// Schema returns every catalog entry.
func (c *Compiler) Schema() ([]SchemaEntry, error) {
	prog, err := c.Compile("SELECT * FROM " + SchemaTableName)
	if err != nil {
		return nil, err
	}
	rows, err := c.runner.Run(prog)
	if err != nil {
		return nil, err
	}
	entries := make([]SchemaEntry, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(schemaColumns)+1 {
			return nil, fmt.Errorf("compiler: malformed catalog row with %d fields", len(row))
		}
		entries = append(entries, SchemaEntry{
			ID:        row[0].Int,
			Type:      row[1].Text,
			Name:      row[2].Text,
			TableName: row[3].Text,
			SQL:       row[4].Text,
			RootPage:  int(row[5].Int),
		})
	}
	return entries, nil
}

// resolveTable returns the root page and declared columns of a table.
// The catalog resolves without consulting itself.
func (c *Compiler) resolveTable(name string) (int, []string, error) {
	if name == SchemaTableName {
		return SchemaRootPage, schemaColumns, nil
	}
	entries, err := c.Schema()
	if err != nil {
		return 0, nil, err
	}
	for _, e := range entries {
		if e.TableName != name {
			continue
		}
		stmts, err := parser.Parse(e.SQL)
		if err != nil {
			return 0, nil, fmt.Errorf("compiler: catalog entry for %s: %w", name, err)
		}
		create, ok := stmts[0].(*parser.CreateStmt)
		if !ok {
			return 0, nil, fmt.Errorf("compiler: catalog entry for %s is not a CREATE TABLE", name)
		}
		cols := make([]string, len(create.Columns))
		for i, col := range create.Columns {
			cols[i] = col.Name
		}
		return e.RootPage, cols, nil
	}
	return 0, nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
}

// isRowidAlias reports whether a column name refers to the implicit
// rowid rather than a stored column.
func isRowidAlias(name string) bool {
	name = strings.ToLower(name)
	return name == "id" || name == "rowid"
}

// compileSelect emits the two-phase layout: Init jumps to a tail that
// opens the transaction and loops back to the body at address 1. Result
// rows carry the rowid first, then the selected columns.
func (c *Compiler) compileSelect(s *parser.SelectStmt) (*vdbe.Program, error) {
	root, cols, err := c.resolveTable(s.From)
	if err != nil {
		return nil, err
	}

	var colIdx []int
	if len(s.Items) == 1 && s.Items[0] == "*" {
		colIdx = make([]int, len(cols))
		for i := range cols {
			colIdx[i] = i
		}
	} else {
		for _, item := range s.Items {
			found := -1
			for i, col := range cols {
				if strings.EqualFold(col, item) {
					found = i
					break
				}
			}
			if found < 0 {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, s.From, item)
			}
			colIdx = append(colIdx, found)
		}
	}

	prog := vdbe.NewProgram()
	tail := prog.NewLabel()
	close := prog.NewLabel()
	const cur = 0

	prog.AddJump(vdbe.OpInit, 0, tail, 0)
	prog.AddOp(vdbe.OpOpenRead, cur, root, len(cols))

	emitRow := func() {
		rowidReg := prog.AllocReg()
		prog.AddOp(vdbe.OpRowid, cur, rowidReg, 0)
		for _, idx := range colIdx {
			prog.AddOp(vdbe.OpColumn, cur, idx, prog.AllocReg())
		}
		prog.AddOp(vdbe.OpResultRow, rowidReg, 1+len(colIdx), 0)
	}

	if s.Where != nil {
		if !isRowidAlias(s.Where.Column) {
			return nil, fmt.Errorf("%w: column %s", ErrUnsupportedWhere, s.Where.Column)
		}
		if s.Where.Value.Kind != parser.LiteralInteger {
			return nil, fmt.Errorf("%w: value must be an integer literal", ErrUnsupportedWhere)
		}
		keyReg := prog.AllocReg()
		prog.AddOp(vdbe.OpInteger, int(s.Where.Value.Int), keyReg, 0)
		prog.AddOp(vdbe.OpMustBeInt, keyReg, 0, 0)
		prog.AddJump(vdbe.OpSeekRowid, cur, close, keyReg)
		emitRow()
	} else {
		loop := prog.NewLabel()
		prog.AddJump(vdbe.OpRewind, cur, close, 0)
		prog.MarkLabel(loop)
		emitRow()
		prog.AddJump(vdbe.OpNext, cur, loop, 0)
	}

	prog.MarkLabel(close)
	prog.AddOp(vdbe.OpClose, cur, 0, 0)
	prog.AddOp(vdbe.OpHalt, 0, 0, 0)
	prog.MarkLabel(tail)
	prog.AddOp(vdbe.OpTransaction, 0, 0, 0)
	prog.AddOp(vdbe.OpGoto, 0, 1, 0)
	return prog, nil
}

// compileInsert emits a straight-line write: open the table's root from a
// register, take the next rowid, load the literals into contiguous
// registers, and insert the packed record.
func (c *Compiler) compileInsert(s *parser.InsertStmt) (*vdbe.Program, error) {
	root, cols, err := c.resolveTable(s.Into)
	if err != nil {
		return nil, err
	}
	if len(s.Values) != len(cols) {
		return nil, fmt.Errorf("%w: %d values for %d columns in %s",
			ErrValueCount, len(s.Values), len(cols), s.Into)
	}

	prog := vdbe.NewProgram()
	const cur = 0
	rootReg := prog.AllocReg()
	prog.AddOp(vdbe.OpInteger, root, rootReg, 0)
	prog.AddOp(vdbe.OpOpenWrite, cur, rootReg, len(cols))
	rowidReg := prog.AllocReg()
	prog.AddOp(vdbe.OpNewRowid, cur, rowidReg, 0)

	first := -1
	for _, lit := range s.Values {
		reg := prog.AllocReg()
		if first < 0 {
			first = reg
		}
		loadLiteral(prog, lit, reg)
	}
	recReg := prog.AllocReg()
	prog.AddOp(vdbe.OpMakeRecord, first, len(s.Values), recReg)
	prog.AddOp(vdbe.OpInsert, cur, recReg, rowidReg)
	prog.AddOp(vdbe.OpClose, cur, 0, 0)
	prog.AddOp(vdbe.OpHalt, 0, 0, 0)
	return prog, nil
}

// compileCreate records the new table in the catalog. The new root page
// comes from CreateTable, except when creating the catalog itself: that
// is the bootstrap, whose cursor materializes page 0, so the recorded
// root is the constant 0 and no page is allocated.
func (c *Compiler) compileCreate(s *parser.CreateStmt) (*vdbe.Program, error) {
	bootstrap := s.Table == SchemaTableName
	if bootstrap {
		if c.pager.PageCount() > 0 {
			return nil, fmt.Errorf("%w: %s", ErrTableExists, s.Table)
		}
	} else {
		if _, _, err := c.resolveTable(s.Table); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrTableExists, s.Table)
		} else if !errors.Is(err, ErrTableNotFound) {
			return nil, err
		}
	}

	prog := vdbe.NewProgram()
	const cur = 0
	catReg := prog.AllocReg()
	prog.AddOp(vdbe.OpInteger, SchemaRootPage, catReg, 0)
	prog.AddOp(vdbe.OpOpenWrite, cur, catReg, len(schemaColumns))

	typeReg := prog.AllocReg()
	nameReg := prog.AllocReg()
	tableReg := prog.AllocReg()
	sqlReg := prog.AllocReg()
	rootReg := prog.AllocReg()
	prog.AddOp4(vdbe.OpString, len("table"), typeReg, 0, "table")
	prog.AddOp4(vdbe.OpString, len(s.Table), nameReg, 0, s.Table)
	prog.AddOp4(vdbe.OpString, len(s.Table), tableReg, 0, s.Table)
	prog.AddOp4(vdbe.OpString, len(s.SQL), sqlReg, 0, s.SQL)
	if bootstrap {
		prog.AddOp(vdbe.OpInteger, SchemaRootPage, rootReg, 0)
	} else {
		prog.AddOp(vdbe.OpCreateTable, rootReg, 0, 0)
	}

	recReg := prog.AllocReg()
	prog.AddOp(vdbe.OpMakeRecord, typeReg, len(schemaColumns), recReg)
	keyReg := prog.AllocReg()
	prog.AddOp(vdbe.OpNewRowid, cur, keyReg, 0)
	prog.AddOp(vdbe.OpInsert, cur, recReg, keyReg)
	prog.AddOp(vdbe.OpClose, cur, 0, 0)
	prog.AddOp(vdbe.OpHalt, 0, 0, 0)
	return prog, nil
}

func loadLiteral(prog *vdbe.Program, lit parser.Literal, reg int) {
	switch lit.Kind {
	case parser.LiteralInteger:
		prog.AddOp(vdbe.OpInteger, int(lit.Int), reg, 0)
	case parser.LiteralText:
		prog.AddOp4(vdbe.OpString, len(lit.Text), reg, 0, lit.Text)
	default:
		prog.AddOp(vdbe.OpNull, 0, reg, 0)
	}
}

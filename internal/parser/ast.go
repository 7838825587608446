// Package parser turns SQL text into statements. The dialect is tiny:
// SELECT with an optional single-equality WHERE, INSERT .. VALUES, and
// CREATE TABLE. The grammar is declared with participle; the exported
// AST is a closed set of plain structs.
package parser

// Statement is one parsed SQL statement: SelectStmt, InsertStmt, or
// CreateStmt.
type Statement interface {
	stmt()
}

// SelectStmt is "SELECT items FROM table [WHERE column = literal]".
// Items is either the single element "*" or a list of column names.
type SelectStmt struct {
	Items []string
	From  string
	Where *Where
}

// Where is the single supported predicate form.
type Where struct {
	Column string
	Value  Literal
}

// InsertStmt is "INSERT INTO table VALUES (literals)".
type InsertStmt struct {
	Into   string
	Values []Literal
}

// CreateStmt is "CREATE TABLE name (columns)". SQL preserves the
// original statement text for the schema catalog.
type CreateStmt struct {
	Table   string
	Columns []ColumnDef
	SQL     string
}

// ColumnDef is one column declaration. Length is the optional "(n)"
// suffix, 0 when absent.
type ColumnDef struct {
	Name     string
	DataType string
	Length   int
}

// LiteralKind discriminates Literal.
type LiteralKind int

const (
	LiteralInteger LiteralKind = iota
	LiteralText
	LiteralNull
)

// Literal is an integer, single-quoted string, or NULL.
type Literal struct {
	Kind LiteralKind
	Int  int64
	Text string
}

func (*SelectStmt) stmt() {}
func (*InsertStmt) stmt() {}
func (*CreateStmt) stmt() {}

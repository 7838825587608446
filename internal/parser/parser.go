package parser

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ParseError wraps the underlying grammar error for malformed SQL.
type ParseError struct {
	SQL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.SQL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(SELECT|FROM|WHERE|INSERT|INTO|VALUES|CREATE|TABLE|NULL)\b`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Int", Pattern: `-?\d+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[(),;*=]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type scriptNode struct {
	Statements []*statementNode `( @@ ( ";" @@ )* ";"? )?`
}

type statementNode struct {
	Select *selectNode `  @@`
	Insert *insertNode `| @@`
	Create *createNode `| @@`
}

type selectNode struct {
	First string     `"SELECT" @( "*" | Ident )`
	Rest  []string   `( "," @Ident )*`
	From  string     `"FROM" @Ident`
	Where *whereNode `( "WHERE" @@ )?`
}

type whereNode struct {
	Column string       `@Ident "="`
	Value  *literalNode `@@`
}

type insertNode struct {
	Into   string         `"INSERT" "INTO" @Ident`
	Values []*literalNode `"VALUES" "(" @@ ( "," @@ )* ")"`
}

type createNode struct {
	Table   string        `"CREATE" "TABLE" @Ident`
	Columns []*columnNode `"(" @@ ( "," @@ )* ")"`
}

type columnNode struct {
	Name     string `@Ident`
	DataType string `@Ident`
	Length   *int   `( "(" @Int ")" )?`
}

type literalNode struct {
	Int  *int64  `  @Int`
	Str  *string `| @String`
	Null bool    `| @"NULL"`
}

var sqlParser = participle.MustBuild[scriptNode](
	participle.Lexer(sqlLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
)

// Parse parses a semicolon-separated script into statements.
func Parse(sql string) ([]Statement, error) {
	script, err := sqlParser.ParseString("", sql)
	if err != nil {
		return nil, &ParseError{SQL: sql, Err: err}
	}
	stmts := make([]Statement, 0, len(script.Statements))
	for _, node := range script.Statements {
		stmts = append(stmts, node.convert())
	}
	return stmts, nil
}

func (n *statementNode) convert() Statement {
	switch {
	case n.Select != nil:
		s := &SelectStmt{
			Items: append([]string{n.Select.First}, n.Select.Rest...),
			From:  n.Select.From,
		}
		if n.Select.Where != nil {
			s.Where = &Where{
				Column: n.Select.Where.Column,
				Value:  n.Select.Where.Value.convert(),
			}
		}
		return s
	case n.Insert != nil:
		s := &InsertStmt{Into: n.Insert.Into}
		for _, v := range n.Insert.Values {
			s.Values = append(s.Values, v.convert())
		}
		return s
	default:
		s := &CreateStmt{Table: n.Create.Table}
		for _, c := range n.Create.Columns {
			col := ColumnDef{Name: c.Name, DataType: strings.ToUpper(c.DataType)}
			if c.Length != nil {
				col.Length = *c.Length
			}
			s.Columns = append(s.Columns, col)
		}
		s.SQL = s.String()
		return s
	}
}

func (n *literalNode) convert() Literal {
	switch {
	case n.Int != nil:
		return Literal{Kind: LiteralInteger, Int: *n.Int}
	case n.Str != nil:
		return Literal{Kind: LiteralText, Text: unquote(*n.Str)}
	default:
		return Literal{Kind: LiteralNull}
	}
}

// unquote strips the surrounding single quotes and collapses the ''
// escape.
func unquote(s string) string {
	s = s[1 : len(s)-1]
	return strings.ReplaceAll(s, "''", "'")
}

// String reconstructs the canonical statement text, which is what the
// schema catalog stores.
func (s *CreateStmt) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (", s.Table)
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte(' ')
		b.WriteString(c.DataType)
		if c.Length > 0 {
			fmt.Fprintf(&b, "(%d)", c.Length)
		}
	}
	b.WriteByte(')')
	return b.String()
}

package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// AST types for the participle grammar

// orExpr is the root of the grammar: and-expressions joined by "or"
type orExpr struct {
	Left  *andExpr   `parser:"@@"`
	Right []*andExpr `parser:"( 'or' @@ )*"`
}

type andExpr struct {
	Left  *unaryExpr   `parser:"@@"`
	Right []*unaryExpr `parser:"( 'and' @@ )*"`
}

type unaryExpr struct {
	Not     *unaryExpr   `parser:"  'not' @@"`
	Compare *compareExpr `parser:"| @@"`
}

// compareExpr is an operand optionally followed by an operator and a second operand.
// "not like" is captured as "notlike".
type compareExpr struct {
	Left  *operand `parser:"@@"`
	Op    string   `parser:"( ( @Operator | @'not'? @( 'like' | 'ilike' ) )"`
	Right *operand `parser:"  @@ )?"`
}

type operand struct {
	Placeholder *string       `parser:"  '{' @Ident '}'"`
	Call        *callExpr     `parser:"| @@"`
	Constant    *constantExpr `parser:"| @@"`
	Field       *fieldExpr    `parser:"| @@"`
	Sub         *orExpr       `parser:"| '(' @@ ')'"`
}

type callExpr struct {
	Name string    `parser:"@Ident '('"`
	Args []*orExpr `parser:"( @@ ( ',' @@ )* )? ')'"`
}

type constantExpr struct {
	Null   bool    `parser:"  @'null'"`
	True   bool    `parser:"| @'true'"`
	False  bool    `parser:"| @'false'"`
	Number *string `parser:"| @'-'? @Number"`
	String *string `parser:"| @String"`
}

type fieldExpr struct {
	Chain []string `parser:"@( Ident | Backtick ) ( '.' @( Ident | Backtick ) )*"`
}

// Build the lexer
// IMPORTANT: Keyword must come before Ident and uses word boundaries so "notes" stays an identifier
var fragmentLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Keyword", Pattern: `(?i)\b(and|or|not|like|ilike|null|true|false)\b`},
	{Name: "Number", Pattern: `\d+(\.\d+)?`},
	{Name: "String", Pattern: `'(\\.|[^'\\])*'`},
	{Name: "Backtick", Pattern: "`[^`]*`"},
	{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$]*`},
	{Name: "Operator", Pattern: `=~\*|!~\*|=~|!~|==|!=|<>|<=|>=|=|<|>`},
	{Name: "Punct", Pattern: `[-(),.{}]`},
})

// Build the parser
var fragmentParser = participle.MustBuild[orExpr](
	participle.Lexer(fragmentLexer),
	participle.CaseInsensitive("Keyword"),
	participle.Elide("Whitespace"),
	participle.UseLookahead(4),
)

package ast

// Expr is a node in the expression tree.
type Expr interface {
	expr()
}

// Constant is a literal value: nil, bool, string, a number or a time.Time.
type Constant struct {
	Value any
}

func (*Constant) expr() {}

// Field references a column or a nested property, e.g. ["properties", "$browser"].
type Field struct {
	Chain []string
}

func (*Field) expr() {}

// CompareOp is the operator of a Compare node.
type CompareOp int

const (
	OpEq          CompareOp = iota // =
	OpNotEq                        // !=
	OpLt                           // <
	OpGt                           // >
	OpLtEq                         // <=
	OpGtEq                         // >=
	OpLike                         // like
	OpILike                        // ilike
	OpNotLike                      // not like
	OpNotILike                     // not ilike
	OpRegex                        // =~
	OpIRegex                       // =~*
	OpNotRegex                     // !~
	OpNotIRegex                    // !~*
	OpInCohort                     // in cohort
	OpNotInCohort                  // not in cohort
)

var compareOpNames = map[CompareOp]string{
	OpEq:          "=",
	OpNotEq:       "!=",
	OpLt:          "<",
	OpGt:          ">",
	OpLtEq:        "<=",
	OpGtEq:        ">=",
	OpLike:        "like",
	OpILike:       "ilike",
	OpNotLike:     "not like",
	OpNotILike:    "not ilike",
	OpRegex:       "=~",
	OpIRegex:      "=~*",
	OpNotRegex:    "!~",
	OpNotIRegex:   "!~*",
	OpInCohort:    "in cohort",
	OpNotInCohort: "not in cohort",
}

func (op CompareOp) String() string {
	if s, ok := compareOpNames[op]; ok {
		return s
	}
	return "unknown"
}

// ParseCompareOp is the inverse of CompareOp.String.
func ParseCompareOp(s string) (CompareOp, bool) {
	for op, name := range compareOpNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// Compare represents a binary comparison like `properties.$browser = 'Chrome'`.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (*Compare) expr() {}

// And is a logical AND over all of its expressions.
type And struct {
	Exprs []Expr
}

func (*And) expr() {}

// Or is a logical OR over all of its expressions.
type Or struct {
	Exprs []Expr
}

func (*Or) expr() {}

// Call is a function invocation like match(field, 'regex') or not(expr).
type Call struct {
	Name string
	Args []Expr
}

func (*Call) expr() {}

// Placeholder is an unresolved hole in a query template, e.g. {filters}.
type Placeholder struct {
	Field string
}

func (*Placeholder) expr() {}

// Alias names an expression inside a select list.
type Alias struct {
	Alias string
	Expr  Expr
}

func (*Alias) expr() {}

// Select is a query template node. It only appears in templates handed to
// the splice pass and delimits the scope placeholders are resolved in.
type Select struct {
	Columns []Expr
	From    Expr // table Field or a nested *Select
	Where   Expr
	GroupBy []Expr
	Having  Expr
	Limit   Expr
}

func (*Select) expr() {}

// True is shorthand for the constant true.
func True() *Constant {
	return &Constant{Value: true}
}

// Not wraps an expression in a logical negation call.
func Not(e Expr) *Call {
	return &Call{Name: "not", Args: []Expr{e}}
}

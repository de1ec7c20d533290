package property

import "github.com/autobrr/propfilter/pkg/ast"

type comparison int

const (
	compareValue comparison = iota
	compareNull
	compareContains
	compareMatch
)

// semantics describes how an operator compiles against a property field.
type semantics struct {
	kind comparison
	op   ast.CompareOp

	// negated match, only used with compareMatch
	negated bool

	// list values combine with AND instead of OR
	allOf bool
}

var operators = map[Operator]semantics{
	OperatorExact:        {kind: compareValue, op: ast.OpEq},
	OperatorIsDateExact:  {kind: compareValue, op: ast.OpEq},
	OperatorIsNot:        {kind: compareValue, op: ast.OpNotEq, allOf: true},
	OperatorIsSet:        {kind: compareNull, op: ast.OpNotEq},
	OperatorIsNotSet:     {kind: compareNull, op: ast.OpEq},
	OperatorIContains:    {kind: compareContains, op: ast.OpILike},
	OperatorNotIContains: {kind: compareContains, op: ast.OpNotILike, allOf: true},
	OperatorRegex:        {kind: compareMatch},
	OperatorNotRegex:     {kind: compareMatch, negated: true, allOf: true},
	OperatorLt:           {kind: compareValue, op: ast.OpLt},
	OperatorIsDateBefore: {kind: compareValue, op: ast.OpLt},
	OperatorGt:           {kind: compareValue, op: ast.OpGt},
	OperatorIsDateAfter:  {kind: compareValue, op: ast.OpGt},
	OperatorLte:          {kind: compareValue, op: ast.OpLtEq},
	OperatorGte:          {kind: compareValue, op: ast.OpGtEq},
}

// combinesWithAnd reports whether a multi-valued filter with this operator
// requires all values to hold rather than any.
func combinesWithAnd(op Operator) bool {
	return operators[op].allOf
}

// elementNegated is the set of operators whose element chain match is wrapped in not().
var elementNegated = map[Operator]bool{
	OperatorIsNotSet:     true,
	OperatorNotIContains: true,
	OperatorIsNot:        true,
	OperatorNotRegex:     true,
}

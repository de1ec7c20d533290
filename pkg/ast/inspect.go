package ast

import (
	"github.com/scylladb/go-set/strset"
)

// aggregations lists the function names that aggregate over rows.
var aggregations = strset.New(
	"count", "countIf", "countDistinct",
	"sum", "sumIf",
	"avg", "avgIf",
	"min", "minIf", "max", "maxIf",
	"any", "anyLast",
	"argMin", "argMax",
	"uniq", "uniqIf", "uniqExact",
	"groupArray", "groupUniqArray",
	"median", "quantile", "quantiles",
)

// Inspect traverses the tree depth-first, calling fn for every node.
// Children of a node are skipped when fn returns false.
func Inspect(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}

	for _, child := range children(e) {
		Inspect(child, fn)
	}
}

func children(e Expr) []Expr {
	switch n := e.(type) {
	case *Compare:
		return []Expr{n.Left, n.Right}
	case *And:
		return n.Exprs
	case *Or:
		return n.Exprs
	case *Call:
		return n.Args
	case *Alias:
		return []Expr{n.Expr}
	case *Select:
		out := make([]Expr, 0, len(n.Columns)+len(n.GroupBy)+4)
		out = append(out, n.Columns...)
		out = append(out, n.From, n.Where)
		out = append(out, n.GroupBy...)
		return append(out, n.Having, n.Limit)
	default:
		return nil
	}
}

// HasPlaceholder reports whether any placeholder remains in the tree.
func HasPlaceholder(e Expr) bool {
	found := false
	Inspect(e, func(n Expr) bool {
		if _, ok := n.(*Placeholder); ok {
			found = true
		}
		return !found
	})
	return found
}

// HasAggregation reports whether the expression calls an aggregate function.
// Aggregations inside nested selects don't count.
func HasAggregation(e Expr) bool {
	found := false
	Inspect(e, func(n Expr) bool {
		if found {
			return false
		}

		switch node := n.(type) {
		case *Select:
			// only the outermost select is of interest
			return node == e
		case *Call:
			if aggregations.Has(node.Name) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

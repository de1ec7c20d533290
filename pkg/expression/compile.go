package expression

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/autobrr/propfilter/pkg/ast"
	"github.com/autobrr/propfilter/pkg/regex"
)

// Compile renders a compiled filter into an expr program that runs against one event.
func Compile(e ast.Expr) (*CompiledExpression, error) {
	r := &renderer{}
	if err := r.render(e); err != nil {
		return nil, err
	}

	// validate all regex patterns in the filter
	if err := regex.ValidatePatterns(r.patterns); err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	src := r.sb.String()
	program, err := expr.Compile(src, expr.Env(&evalContext{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile expression: %q: %w", src, err)
	}

	return &CompiledExpression{
		Program: program,
		Text:    src,
	}, nil
}

type renderer struct {
	sb       strings.Builder
	patterns []string
}

func (r *renderer) write(parts ...string) {
	for _, p := range parts {
		r.sb.WriteString(p)
	}
}

func (r *renderer) render(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.Constant:
		lit, err := literal(n.Value)
		if err != nil {
			return err
		}
		r.write(lit)
		return nil

	case *ast.Field:
		quoted := make([]string, 0, len(n.Chain))
		for _, segment := range n.Chain {
			quoted = append(quoted, strconv.Quote(segment))
		}
		r.write("Field(", strings.Join(quoted, ", "), ")")
		return nil

	case *ast.And:
		return r.join(n.Exprs, " && ", "true")

	case *ast.Or:
		return r.join(n.Exprs, " || ", "false")

	case *ast.Compare:
		return r.compare(n)

	case *ast.Call:
		return r.call(n)
	}

	return fmt.Errorf("%w: %T", ErrUnsupportedNode, e)
}

func (r *renderer) join(exprs []ast.Expr, sep string, empty string) error {
	if len(exprs) == 0 {
		r.write(empty)
		return nil
	}

	r.write("(")
	for i, e := range exprs {
		if i > 0 {
			r.write(sep)
		}
		if err := r.render(e); err != nil {
			return err
		}
	}
	r.write(")")
	return nil
}

func (r *renderer) args(fn string, exprs ...ast.Expr) error {
	r.write(fn, "(")
	for i, e := range exprs {
		if i > 0 {
			r.write(", ")
		}
		if err := r.render(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) compare(n *ast.Compare) error {
	var (
		fn                       string
		ignoreCase, neg, isRegex bool
	)

	switch n.Op {
	case ast.OpEq, ast.OpNotEq, ast.OpLt, ast.OpGt, ast.OpLtEq, ast.OpGtEq:
		if err := r.args("Cmp", &ast.Constant{Value: n.Op.String()}, n.Left, n.Right); err != nil {
			return err
		}
		r.write(")")
		return nil

	case ast.OpInCohort, ast.OpNotInCohort:
		if n.Op == ast.OpNotInCohort {
			r.write("!")
		}
		if err := r.args("InCohort", n.Left, n.Right); err != nil {
			return err
		}
		r.write(")")
		return nil

	case ast.OpLike, ast.OpNotLike:
		fn = "Like"
		neg = n.Op == ast.OpNotLike
	case ast.OpILike, ast.OpNotILike:
		fn, ignoreCase = "Like", true
		neg = n.Op == ast.OpNotILike
	case ast.OpRegex, ast.OpNotRegex:
		fn, isRegex = "Match", true
		neg = n.Op == ast.OpNotRegex
	case ast.OpIRegex, ast.OpNotIRegex:
		fn, isRegex, ignoreCase = "Match", true, true
		neg = n.Op == ast.OpNotIRegex
	default:
		return fmt.Errorf("%w: compare operator %d", ErrUnsupportedNode, n.Op)
	}

	if isRegex {
		r.collectPattern(n.Right)
	}

	if err := r.args(fn, n.Left, n.Right); err != nil {
		return err
	}
	r.write(", ", strconv.FormatBool(ignoreCase), ", ", strconv.FormatBool(neg), ")")
	return nil
}

func (r *renderer) call(n *ast.Call) error {
	switch {
	case n.Name == "not" && len(n.Args) == 1:
		r.write("!(")
		if err := r.render(n.Args[0]); err != nil {
			return err
		}
		r.write(")")
		return nil

	case n.Name == "match" && len(n.Args) == 2:
		r.collectPattern(n.Args[1])
		if err := r.args("Match", n.Args[0], n.Args[1]); err != nil {
			return err
		}
		r.write(", false, false)")
		return nil
	}

	return fmt.Errorf("%w: call %s/%d", ErrUnsupportedNode, n.Name, len(n.Args))
}

func (r *renderer) collectPattern(e ast.Expr) {
	if c, ok := e.(*ast.Constant); ok {
		if s, ok := c.Value.(string); ok {
			r.patterns = append(r.patterns, s)
		}
	}
}

func literal(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "nil", nil
	case bool:
		return strconv.FormatBool(t), nil
	case string:
		return strconv.Quote(t), nil
	case time.Time:
		return "Date(" + strconv.Quote(t.Format(time.RFC3339Nano)) + ")", nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("%w: constant %v", ErrUnsupportedNode, f)
		}
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	}

	return "", fmt.Errorf("%w: constant of type %T", ErrUnsupportedNode, v)
}

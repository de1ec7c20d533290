package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/autobrr/propfilter/pkg/ast"
)

// ErrSyntax is returned for fragments that fail to parse.
var ErrSyntax = errors.New("syntax error")

var compareOps = map[string]ast.CompareOp{
	"=":        ast.OpEq,
	"==":       ast.OpEq,
	"!=":       ast.OpNotEq,
	"<>":       ast.OpNotEq,
	"<":        ast.OpLt,
	">":        ast.OpGt,
	"<=":       ast.OpLtEq,
	">=":       ast.OpGtEq,
	"=~":       ast.OpRegex,
	"=~*":      ast.OpIRegex,
	"!~":       ast.OpNotRegex,
	"!~*":      ast.OpNotIRegex,
	"like":     ast.OpLike,
	"ilike":    ast.OpILike,
	"notlike":  ast.OpNotLike,
	"notilike": ast.OpNotILike,
}

// Parse parses an expression fragment like "properties.$browser = 'Chrome'".
// Placeholders ({name}) found in subs are replaced by the given expression,
// all others are kept as ast.Placeholder nodes.
func Parse(text string, subs map[string]ast.Expr) (ast.Expr, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}

	tree, err := fragmentParser.ParseString("", text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, text, err)
	}

	c := &converter{subs: subs}
	return c.or(tree)
}

// MustParse is like Parse but panics on error. Intended for static templates.
func MustParse(text string, subs map[string]ast.Expr) ast.Expr {
	e, err := Parse(text, subs)
	if err != nil {
		panic(err)
	}
	return e
}

// converter turns the grammar tree into ast nodes
type converter struct {
	subs map[string]ast.Expr
}

func (c *converter) or(e *orExpr) (ast.Expr, error) {
	left, err := c.and(e.Left)
	if err != nil {
		return nil, err
	}
	if len(e.Right) == 0 {
		return left, nil
	}

	exprs := []ast.Expr{left}
	for _, r := range e.Right {
		right, err := c.and(r)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, right)
	}
	return &ast.Or{Exprs: exprs}, nil
}

func (c *converter) and(e *andExpr) (ast.Expr, error) {
	left, err := c.unary(e.Left)
	if err != nil {
		return nil, err
	}
	if len(e.Right) == 0 {
		return left, nil
	}

	exprs := []ast.Expr{left}
	for _, r := range e.Right {
		right, err := c.unary(r)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, right)
	}
	return &ast.And{Exprs: exprs}, nil
}

func (c *converter) unary(e *unaryExpr) (ast.Expr, error) {
	if e.Not != nil {
		inner, err := c.unary(e.Not)
		if err != nil {
			return nil, err
		}
		return ast.Not(inner), nil
	}
	return c.compare(e.Compare)
}

func (c *converter) compare(e *compareExpr) (ast.Expr, error) {
	left, err := c.operand(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Right == nil {
		return left, nil
	}

	op, ok := compareOps[strings.ToLower(e.Op)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operator %q", ErrSyntax, e.Op)
	}

	right, err := c.operand(e.Right)
	if err != nil {
		return nil, err
	}
	return &ast.Compare{Op: op, Left: left, Right: right}, nil
}

func (c *converter) operand(o *operand) (ast.Expr, error) {
	switch {
	case o.Placeholder != nil:
		if sub, ok := c.subs[*o.Placeholder]; ok {
			return sub, nil
		}
		return &ast.Placeholder{Field: *o.Placeholder}, nil
	case o.Call != nil:
		args := make([]ast.Expr, 0, len(o.Call.Args))
		for _, a := range o.Call.Args {
			arg, err := c.or(a)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return &ast.Call{Name: o.Call.Name, Args: args}, nil
	case o.Constant != nil:
		return constant(o.Constant)
	case o.Field != nil:
		chain := make([]string, 0, len(o.Field.Chain))
		for _, part := range o.Field.Chain {
			chain = append(chain, strings.Trim(part, "`"))
		}
		return &ast.Field{Chain: chain}, nil
	case o.Sub != nil:
		return c.or(o.Sub)
	default:
		return nil, fmt.Errorf("%w: empty operand", ErrSyntax)
	}
}

func constant(k *constantExpr) (ast.Expr, error) {
	switch {
	case k.Null:
		return &ast.Constant{Value: nil}, nil
	case k.True:
		return &ast.Constant{Value: true}, nil
	case k.False:
		return &ast.Constant{Value: false}, nil
	case k.Number != nil:
		if i, err := strconv.ParseInt(*k.Number, 10, 64); err == nil {
			return &ast.Constant{Value: i}, nil
		}
		f, err := strconv.ParseFloat(*k.Number, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrSyntax, *k.Number)
		}
		return &ast.Constant{Value: f}, nil
	case k.String != nil:
		s, err := unquote(*k.String)
		if err != nil {
			return nil, err
		}
		return &ast.Constant{Value: s}, nil
	default:
		return &ast.Constant{Value: nil}, nil
	}
}

// unquote strips the single quotes of a string literal and resolves backslash escapes
func unquote(lit string) (string, error) {
	if len(lit) < 2 || lit[0] != '\'' || lit[len(lit)-1] != '\'' {
		return "", fmt.Errorf("%w: malformed string %s", ErrSyntax, lit)
	}
	body := lit[1 : len(lit)-1]

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i+1 == len(body) {
			b.WriteByte(ch)
			continue
		}

		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\', '\'':
			b.WriteByte(body[i])
		default:
			// regex escapes like \d pass through untouched
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return b.String(), nil
}

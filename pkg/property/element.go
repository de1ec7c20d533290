package property

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/autobrr/propfilter/pkg/ast"
)

func (c *Compiler) compileElement(key string, operator Operator, value any) (ast.Expr, error) {
	text := stringify(value)

	switch key {
	case "selector", "tag_name":
		if operator != OperatorExact && operator != OperatorIsNot {
			return nil, fmt.Errorf("%w: element %s only supports exact and is_not, not %q", ErrUnsupportedOperator, key, operator)
		}

		var (
			e   ast.Expr
			err error
		)
		if key == "selector" {
			e, err = c.selectorExpr(text)
			if err != nil {
				return nil, err
			}
		} else {
			e = tagNameExpr(text)
		}

		if operator == OperatorIsNot {
			return ast.Not(e), nil
		}
		return e, nil

	case "href", "text":
		return ElementChainKeyFilter(key, text, operator)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKey, key)
}

// ElementChainKeyFilter matches an attribute of any element in the chain,
// e.g. href="..." or text="...", against text using operator.
func ElementChainKeyFilter(key string, text string, operator Operator) (ast.Expr, error) {
	escaped := strings.ReplaceAll(text, `"`, `\"`)

	var value string
	switch operator {
	case OperatorIsSet, OperatorIsNotSet:
		value = `[^"]+`
	case OperatorIContains, OperatorNotIContains:
		value = `[^"]*` + regexp.QuoteMeta(escaped) + `[^"]*`
	case OperatorRegex, OperatorNotRegex:
		value = escaped
	case OperatorExact, OperatorIsNot:
		value = regexp.QuoteMeta(escaped)
	default:
		return nil, fmt.Errorf("%w: element %s does not support %q", ErrUnsupportedOperator, key, operator)
	}

	op := ast.OpRegex
	if operator == OperatorIContains || operator == OperatorNotIContains {
		op = ast.OpIRegex
	}

	var e ast.Expr = chainMatch(op, fmt.Sprintf(`(%s="%s")`, key, value))
	if elementNegated[operator] {
		e = ast.Not(e)
	}
	return e, nil
}

func tagNameExpr(tagName string) ast.Expr {
	return chainMatch(ast.OpRegex, `(^|;)`+regexp.QuoteMeta(tagName)+`(\.|$|;|:)`)
}

func (c *Compiler) selectorExpr(css string) (ast.Expr, error) {
	pattern, err := c.selectorRegex(css)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", css, err)
	}
	return chainMatch(ast.OpRegex, pattern), nil
}

func chainMatch(op ast.CompareOp, pattern string) *ast.Compare {
	return &ast.Compare{
		Op:    op,
		Left:  &ast.Field{Chain: []string{"elements_chain"}},
		Right: &ast.Constant{Value: pattern},
	}
}

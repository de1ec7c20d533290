package property

import (
	"context"
	"fmt"

	"github.com/autobrr/propfilter/pkg/ast"
)

// CompileAction compiles an action into an OR over its steps.
func (c *Compiler) CompileAction(ctx context.Context, action *Action) (ast.Expr, error) {
	if action == nil {
		return nil, fmt.Errorf("%w: nil action", ErrUnsupportedSpec)
	}
	return c.compileAction(ctx, action, 0)
}

func (c *Compiler) compileAction(ctx context.Context, action *Action, depth int) (ast.Expr, error) {
	if len(action.Steps) == 0 {
		return ast.True(), nil
	}

	steps := make([]ast.Expr, 0, len(action.Steps))
	for i := range action.Steps {
		e, err := c.compileStep(ctx, &action.Steps[i], depth)
		if err != nil {
			return nil, fmt.Errorf("action %q step %d: %w", action.Name, i, err)
		}
		steps = append(steps, e)
	}

	if len(steps) == 1 {
		return steps[0], nil
	}
	return &ast.Or{Exprs: steps}, nil
}

func (c *Compiler) compileStep(ctx context.Context, step *ActionStep, depth int) (ast.Expr, error) {
	var exprs []ast.Expr

	if step.Event != "" {
		exprs = append(exprs, &ast.Compare{
			Op:    ast.OpEq,
			Left:  &ast.Field{Chain: []string{"event"}},
			Right: &ast.Constant{Value: step.Event},
		})
	}

	if step.Event == AutocaptureEvent {
		if step.Selector != "" {
			e, err := c.selectorExpr(step.Selector)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}

		if step.TagName != nil {
			exprs = append(exprs, tagNameExpr(*step.TagName))
		}

		if step.Href != nil {
			e, err := ElementChainKeyFilter("href", *step.Href, matchingOperator(step.HrefMatching))
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}

		if step.Text != nil {
			e, err := ElementChainKeyFilter("text", *step.Text, matchingOperator(step.TextMatching))
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
	}

	if step.URL != "" {
		exprs = append(exprs, urlExpr(step.URL, step.URLMatching))
	}

	if !isEmpty(step.Properties) {
		e, err := c.compile(ctx, step.Properties, depth+1)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}

	return joinAnd(exprs), nil
}

func matchingOperator(m Matching) Operator {
	switch m {
	case MatchingRegex:
		return OperatorRegex
	case MatchingContains:
		return OperatorIContains
	}
	return OperatorExact
}

func urlExpr(url string, m Matching) ast.Expr {
	field := &ast.Field{Chain: []string{"properties", "$current_url"}}

	switch m {
	case MatchingExact:
		return &ast.Compare{Op: ast.OpEq, Left: field, Right: &ast.Constant{Value: url}}
	case MatchingRegex:
		return &ast.Compare{Op: ast.OpRegex, Left: field, Right: &ast.Constant{Value: url}}
	}
	return &ast.Compare{Op: ast.OpILike, Left: field, Right: &ast.Constant{Value: "%" + url + "%"}}
}

// isEmpty reports whether a step's property filter has nothing to compile.
func isEmpty(spec Spec) bool {
	switch s := spec.(type) {
	case nil:
		return true
	case List:
		return len(s) == 0
	case *Group:
		return s == nil
	case *Property:
		return s == nil
	case *Action:
		return s == nil
	}
	return false
}

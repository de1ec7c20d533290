package splice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/autobrr/propfilter/pkg/ast"
	"github.com/autobrr/propfilter/pkg/dates"
	"github.com/autobrr/propfilter/pkg/logger"
	"github.com/autobrr/propfilter/pkg/property"
	"github.com/autobrr/propfilter/pkg/schema"
)

const (
	// Placeholder is the template field replaced with the resolved filters.
	Placeholder = "filters"

	// DateFromAll disables the lower date bound.
	DateFromAll = "all"

	DefaultDateFrom = "-7d"

	// dateToSkew is added to now when no upper bound is given
	dateToSkew = 5 * time.Second

	eventsTable = "events"
)

// ErrUnsupportedTable is returned when filters are spliced into a query over a table other than events.
var ErrUnsupportedTable = errors.New("unsupported table for filters")

// Filters is the payload spliced into {filters} placeholders.
type Filters struct {
	Properties property.Spec
	DateFrom   string
	DateTo     string
}

func (f *Filters) empty() bool {
	return f.Properties == nil && f.DateFrom == "" && f.DateTo == ""
}

type Option func(*replacer)

// WithNow sets the clock used for the default upper date bound.
func WithNow(now func() time.Time) Option {
	return func(r *replacer) {
		r.now = now
	}
}

// scope is the chain of enclosing selects, innermost first.
type scope struct {
	sel    *ast.Select
	parent *scope
}

func (s *scope) push(sel *ast.Select) *scope {
	return &scope{sel: sel, parent: s}
}

type replacer struct {
	filters  *Filters
	compiler *property.Compiler
	resolver dates.Resolver
	team     *schema.Team
	now      func() time.Time
	log      *logrus.Entry
}

// ReplaceFilters returns a copy of template where every {filters} placeholder
// is replaced with the compiled properties and date bounds of filters.
// The template itself is not modified.
func ReplaceFilters(ctx context.Context, template ast.Expr, filters *Filters, compiler *property.Compiler, resolver dates.Resolver, team *schema.Team, opts ...Option) (ast.Expr, error) {
	r := &replacer{
		filters:  filters,
		compiler: compiler,
		resolver: resolver,
		team:     team,
		now:      time.Now,
		log:      logger.GetLogger("splice"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.resolver == nil {
		r.resolver = dates.NewParser()
	}
	if r.compiler == nil {
		r.compiler = property.NewCompiler(team)
	}

	return r.visit(ctx, template, nil)
}

func (r *replacer) visit(ctx context.Context, e ast.Expr, sc *scope) (ast.Expr, error) {
	switch n := e.(type) {
	case nil:
		return nil, nil

	case *ast.Placeholder:
		if n.Field != Placeholder {
			return &ast.Placeholder{Field: n.Field}, nil
		}
		if err := checkTable(sc); err != nil {
			return nil, err
		}
		return r.resolve(ctx)

	case *ast.Constant:
		return &ast.Constant{Value: n.Value}, nil

	case *ast.Field:
		return &ast.Field{Chain: append([]string(nil), n.Chain...)}, nil

	case *ast.Compare:
		left, err := r.visit(ctx, n.Left, sc)
		if err != nil {
			return nil, err
		}
		right, err := r.visit(ctx, n.Right, sc)
		if err != nil {
			return nil, err
		}
		return &ast.Compare{Op: n.Op, Left: left, Right: right}, nil

	case *ast.And:
		exprs, err := r.visitAll(ctx, n.Exprs, sc)
		if err != nil {
			return nil, err
		}
		return &ast.And{Exprs: exprs}, nil

	case *ast.Or:
		exprs, err := r.visitAll(ctx, n.Exprs, sc)
		if err != nil {
			return nil, err
		}
		return &ast.Or{Exprs: exprs}, nil

	case *ast.Call:
		args, err := r.visitAll(ctx, n.Args, sc)
		if err != nil {
			return nil, err
		}
		return &ast.Call{Name: n.Name, Args: args}, nil

	case *ast.Alias:
		inner, err := r.visit(ctx, n.Expr, sc)
		if err != nil {
			return nil, err
		}
		return &ast.Alias{Alias: n.Alias, Expr: inner}, nil

	case *ast.Select:
		return r.visitSelect(ctx, n, sc.push(n))
	}

	return nil, fmt.Errorf("unknown expression node %T", e)
}

func (r *replacer) visitAll(ctx context.Context, exprs []ast.Expr, sc *scope) ([]ast.Expr, error) {
	if exprs == nil {
		return nil, nil
	}

	out := make([]ast.Expr, 0, len(exprs))
	for _, e := range exprs {
		v, err := r.visit(ctx, e, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *replacer) visitSelect(ctx context.Context, n *ast.Select, sc *scope) (ast.Expr, error) {
	var (
		out = &ast.Select{}
		err error
	)

	if out.Columns, err = r.visitAll(ctx, n.Columns, sc); err != nil {
		return nil, err
	}
	if out.From, err = r.visit(ctx, n.From, sc); err != nil {
		return nil, err
	}
	if out.Where, err = r.visit(ctx, n.Where, sc); err != nil {
		return nil, err
	}
	if out.GroupBy, err = r.visitAll(ctx, n.GroupBy, sc); err != nil {
		return nil, err
	}
	if out.Having, err = r.visit(ctx, n.Having, sc); err != nil {
		return nil, err
	}
	if out.Limit, err = r.visit(ctx, n.Limit, sc); err != nil {
		return nil, err
	}

	return out, nil
}

// checkTable rejects filters inside a select that reads from a table other than events.
func checkTable(sc *scope) error {
	if sc == nil {
		return nil
	}

	table, ok := sc.sel.From.(*ast.Field)
	if !ok || len(table.Chain) == 0 {
		return nil
	}

	name := table.Chain[len(table.Chain)-1]
	if name != eventsTable {
		return fmt.Errorf("%w: %q", ErrUnsupportedTable, name)
	}
	return nil
}

func (r *replacer) resolve(ctx context.Context) (ast.Expr, error) {
	if r.filters == nil || r.filters.empty() {
		return ast.True(), nil
	}

	var exprs []ast.Expr

	if r.filters.Properties != nil {
		e, err := r.compiler.Compile(ctx, r.filters.Properties)
		if err != nil {
			return nil, fmt.Errorf("compile properties: %w", err)
		}
		exprs = append(exprs, e)
	}

	loc := r.team.Location()

	dateTo := r.filters.DateTo
	if dateTo == "" {
		dateTo = r.now().Add(dateToSkew).Format(time.RFC3339Nano)
	}
	to, err := r.resolver.Resolve(dateTo, loc)
	if err != nil {
		return nil, fmt.Errorf("date_to: %w", err)
	}
	exprs = append(exprs, timestampBound(ast.OpLt, to))

	dateFrom := r.filters.DateFrom
	if dateFrom == "" {
		dateFrom = DefaultDateFrom
	}
	if dateFrom != DateFromAll {
		from, err := r.resolver.Resolve(dateFrom, loc)
		if err != nil {
			return nil, fmt.Errorf("date_from: %w", err)
		}
		exprs = append(exprs, timestampBound(ast.OpGtEq, from))
		r.log.Tracef("Resolved date range %s - %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return &ast.And{Exprs: exprs}, nil
}

func timestampBound(op ast.CompareOp, t time.Time) ast.Expr {
	return &ast.Compare{
		Op:    op,
		Left:  &ast.Field{Chain: []string{"timestamp"}},
		Right: &ast.Constant{Value: t},
	}
}

package property

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/autobrr/propfilter/pkg/ast"
	"github.com/autobrr/propfilter/pkg/logger"
	"github.com/autobrr/propfilter/pkg/parser"
	"github.com/autobrr/propfilter/pkg/schema"
	"github.com/autobrr/propfilter/pkg/selector"
)

const DefaultMaxDepth = 64

// ParseFunc parses a raw expression fragment.
type ParseFunc func(text string, subs map[string]ast.Expr) (ast.Expr, error)

// SelectorFunc turns a CSS selector into an element chain regex.
type SelectorFunc func(selector string) (string, error)

// Compiler turns filter specs into expression trees. It holds no mutable
// state and is safe for concurrent use.
type Compiler struct {
	team          *schema.Team
	registry      schema.PropertyTypeRegistry
	cohorts       schema.CohortStore
	parse         ParseFunc
	selectorRegex SelectorFunc
	maxDepth      int
	log           *logrus.Entry
}

type Option func(*Compiler)

func WithRegistry(registry schema.PropertyTypeRegistry) Option {
	return func(c *Compiler) {
		c.registry = registry
	}
}

func WithCohorts(cohorts schema.CohortStore) Option {
	return func(c *Compiler) {
		c.cohorts = cohorts
	}
}

func WithParser(parse ParseFunc) Option {
	return func(c *Compiler) {
		c.parse = parse
	}
}

func WithSelectorCompiler(fn SelectorFunc) Option {
	return func(c *Compiler) {
		c.selectorRegex = fn
	}
}

// WithMaxDepth bounds how deeply specs may nest. Values below 1 keep the default.
func WithMaxDepth(depth int) Option {
	return func(c *Compiler) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// NewCompiler returns a Compiler for team. team may be nil, in which case
// boolean coercion is skipped and cohort filters fail.
func NewCompiler(team *schema.Team, opts ...Option) *Compiler {
	c := &Compiler{
		team:          team,
		parse:         parser.Parse,
		selectorRegex: selector.Regex,
		maxDepth:      DefaultMaxDepth,
		log:           logger.GetLogger("compiler"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Team returns the team the compiler was created for.
func (c *Compiler) Team() *schema.Team {
	return c.team
}

// Compile translates spec into a fully resolved expression.
func (c *Compiler) Compile(ctx context.Context, spec Spec) (ast.Expr, error) {
	return c.compile(ctx, spec, 0)
}

func (c *Compiler) compile(ctx context.Context, spec Spec, depth int) (ast.Expr, error) {
	if depth > c.maxDepth {
		return nil, fmt.Errorf("%w: exceeds %d levels", ErrNestingTooDeep, c.maxDepth)
	}

	switch s := spec.(type) {
	case List:
		exprs, err := c.compileAll(ctx, s, depth)
		if err != nil {
			return nil, err
		}
		return joinAnd(exprs), nil

	case *Group:
		if s == nil {
			break
		}
		return c.compileGroup(ctx, s, depth)

	case *Property:
		if s == nil {
			break
		}
		return c.compileProperty(ctx, s, depth)

	case *Action:
		if s == nil {
			break
		}
		return c.compileAction(ctx, s, depth)
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedSpec, spec)
}

func (c *Compiler) compileAll(ctx context.Context, specs []Spec, depth int) ([]ast.Expr, error) {
	exprs := make([]ast.Expr, 0, len(specs))
	for _, s := range specs {
		e, err := c.compile(ctx, s, depth+1)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func (c *Compiler) compileGroup(ctx context.Context, g *Group, depth int) (ast.Expr, error) {
	if g.Type != CombinatorAnd && g.Type != CombinatorOr {
		return nil, fmt.Errorf("%w: group of unknown type %q", ErrUnsupportedSpec, g.Type)
	}

	switch len(g.Values) {
	case 0:
		return ast.True(), nil
	case 1:
		return c.compile(ctx, g.Values[0], depth+1)
	}

	exprs, err := c.compileAll(ctx, g.Values, depth)
	if err != nil {
		return nil, err
	}

	if g.Type == CombinatorAnd {
		return &ast.And{Exprs: exprs}, nil
	}
	return &ast.Or{Exprs: exprs}, nil
}

func (c *Compiler) compileProperty(ctx context.Context, p *Property, depth int) (ast.Expr, error) {
	switch p.Type {
	case DomainRaw:
		return c.compileRaw(p.Key)
	case DomainEvent, DomainPerson, DomainFeature, DomainElement:
	default:
		if !p.Type.isCohort() {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedDomain, p.Type)
		}
	}

	operator := p.Operator
	if operator == "" {
		operator = OperatorExact
	}

	value := p.Value
	if values, ok := asList(value); ok {
		switch len(values) {
		case 0:
			return ast.True(), nil
		case 1:
			value = values[0]
		default:
			exprs := make([]ast.Expr, 0, len(values))
			for _, v := range values {
				e, err := c.compile(ctx, &Property{Type: p.Type, Key: p.Key, Operator: p.Operator, Value: v}, depth+1)
				if err != nil {
					return nil, err
				}
				exprs = append(exprs, e)
			}
			if combinesWithAnd(operator) {
				return &ast.And{Exprs: exprs}, nil
			}
			return &ast.Or{Exprs: exprs}, nil
		}
	}

	if !isScalar(value) {
		return nil, fmt.Errorf("%w: value of type %T for key %q", ErrUnsupportedSpec, value, p.Key)
	}

	switch {
	case p.Type == DomainElement:
		return c.compileElement(p.Key, operator, value)
	case p.Type.isCohort():
		return c.compileCohort(ctx, operator, value)
	}

	return c.compileScalar(ctx, p.Type, p.Key, operator, value)
}

func (c *Compiler) compileRaw(text string) (ast.Expr, error) {
	e, err := c.parse(text, nil)
	if err != nil {
		return nil, err
	}

	if ast.HasPlaceholder(e) {
		return nil, fmt.Errorf("%w: raw fragment %q contains placeholders", ErrUnsupportedSpec, text)
	}

	return e, nil
}

func (c *Compiler) compileScalar(ctx context.Context, domain Domain, key string, operator Operator, value any) (ast.Expr, error) {
	sem, ok := operators[operator]
	if !ok {
		return nil, fmt.Errorf("%w: %q for %s property %q", ErrUnsupportedOperator, operator, domain, key)
	}

	chain := []string{"properties", key}
	if domain == DomainPerson {
		chain = []string{"person", "properties", key}
	}
	field := &ast.Field{Chain: chain}

	switch sem.kind {
	case compareNull:
		return &ast.Compare{Op: sem.op, Left: field, Right: &ast.Constant{Value: nil}}, nil

	case compareContains:
		return &ast.Compare{Op: sem.op, Left: field, Right: &ast.Constant{Value: "%" + stringify(value) + "%"}}, nil

	case compareMatch:
		match := &ast.Call{Name: "match", Args: []ast.Expr{field, &ast.Constant{Value: value}}}
		if sem.negated {
			return ast.Not(match), nil
		}
		return match, nil
	}

	literal, err := c.coerceBoolean(ctx, domain, key, sem.op, value)
	if err != nil {
		return nil, err
	}

	return &ast.Compare{Op: sem.op, Left: field, Right: &ast.Constant{Value: literal}}, nil
}

// coerceBoolean turns the strings "true" and "false" into booleans for
// equality checks, unless the property is declared with a non boolean type.
func (c *Compiler) coerceBoolean(ctx context.Context, domain Domain, key string, op ast.CompareOp, value any) (any, error) {
	if op != ast.OpEq && op != ast.OpNotEq {
		return value, nil
	}
	if c.team == nil {
		return value, nil
	}

	s, ok := value.(string)
	if !ok || (s != "true" && s != "false") {
		return value, nil
	}

	if c.registry != nil {
		kind := schema.DefinitionEvent
		if domain == DomainPerson {
			kind = schema.DefinitionPerson
		}

		propertyType, found, err := c.registry.Lookup(ctx, c.team.ID, key, kind)
		if err != nil {
			return nil, fmt.Errorf("lookup property type of %q: %w", key, err)
		}

		if found && propertyType != schema.PropertyTypeBoolean {
			c.log.Tracef("Keeping %q as string for %s property %q of type %s", s, kind, key, propertyType)
			return value, nil
		}
	}

	return s == "true", nil
}

func (c *Compiler) compileCohort(ctx context.Context, operator Operator, value any) (ast.Expr, error) {
	if c.team == nil {
		return nil, fmt.Errorf("%w: cohort filters need a team", ErrMissingTeamContext)
	}

	cohortID, err := cohortIDOf(value)
	if err != nil {
		return nil, err
	}

	if c.cohorts == nil {
		return nil, fmt.Errorf("%w: cohort %d (no cohort store)", schema.ErrNotFound, cohortID)
	}

	key, err := c.cohorts.Resolve(ctx, c.team.ID, cohortID)
	if err != nil {
		return nil, err
	}

	op := ast.OpInCohort
	if operator == OperatorIsNot {
		op = ast.OpNotInCohort
	}

	return &ast.Compare{
		Op:    op,
		Left:  &ast.Field{Chain: []string{"person_id"}},
		Right: &ast.Constant{Value: int64(key)},
	}, nil
}

func cohortIDOf(value any) (int64, error) {
	switch v := value.(type) {
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: cohort id %q", ErrUnsupportedSpec, v)
		}
		return id, nil
	case float32, float64:
		f := reflect.ValueOf(v).Float()
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("%w: cohort id %v", ErrUnsupportedSpec, v)
		}
		return int64(f), nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	}

	return 0, fmt.Errorf("%w: cohort id of type %T", ErrUnsupportedSpec, value)
}

func joinAnd(exprs []ast.Expr) ast.Expr {
	switch len(exprs) {
	case 0:
		return ast.True()
	case 1:
		return exprs[0]
	}
	return &ast.And{Exprs: exprs}
}

func asList(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if values, ok := value.([]any); ok {
		return values, true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}

func isScalar(value any) bool {
	if value == nil {
		return true
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	return fmt.Sprint(value)
}

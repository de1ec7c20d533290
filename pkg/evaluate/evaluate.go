package evaluate

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/autobrr/propfilter/pkg/expression"
	"github.com/autobrr/propfilter/pkg/logger"
	"github.com/autobrr/propfilter/pkg/property"
)

// Rule is a named filter compiled down to an event matcher.
type Rule struct {
	Name     string
	Compiled *expression.CompiledExpression
}

// Evaluator checks events against a fixed set of named filters.
type Evaluator struct {
	rules   []Rule
	cohorts expression.CohortMembership
	log     *logrus.Entry
}

// New compiles every spec with compiler. Rules are kept in name order.
func New(ctx context.Context, compiler *property.Compiler, specs map[string]property.Spec, cohorts expression.CohortMembership) (*Evaluator, error) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	e := &Evaluator{
		rules:   make([]Rule, 0, len(names)),
		cohorts: cohorts,
		log:     logger.GetLogger("evaluate"),
	}

	for _, name := range names {
		tree, err := compiler.Compile(ctx, specs[name])
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", name, err)
		}

		compiled, err := expression.Compile(tree)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", name, err)
		}

		e.log.Tracef("Filter %s: %s", name, compiled.Text)
		e.rules = append(e.rules, Rule{Name: name, Compiled: compiled})
	}

	return e, nil
}

// Names returns the rule names in evaluation order.
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name)
	}
	return names
}

// Evaluate returns the names of the rules ev satisfies.
func (e *Evaluator) Evaluate(ctx context.Context, ev *expression.Event) ([]string, error) {
	var matched []string

	for _, r := range e.rules {
		match, err := expression.CheckEventMatch(ctx, ev, e.cohorts, r.Compiled)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", r.Name, err)
		}
		if match {
			matched = append(matched, r.Name)
		}
	}

	return matched, nil
}

// Counts evaluates every event and returns how many events each rule matched.
func (e *Evaluator) Counts(ctx context.Context, events []*expression.Event) (map[string]int, error) {
	counts := make(map[string]int, len(e.rules))
	for _, r := range e.rules {
		counts[r.Name] = 0
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		names, err := e.Evaluate(ctx, ev)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			counts[name]++
		}
	}

	return counts, nil
}

func StringSliceContains(slice []string, contains string, caseInsensitive bool) bool {
	return slices.ContainsFunc(slice, func(s string) bool {
		if caseInsensitive {
			return strings.EqualFold(s, contains)
		}

		return s == contains
	})
}

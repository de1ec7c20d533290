package expression

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/autobrr/propfilter/pkg/regex"
	"github.com/autobrr/propfilter/pkg/schema"
)

type evalContext struct {
	event   *Event
	cohorts CohortMembership
	ctx     context.Context
}

// Field resolves a field chain against the event.
func (e *evalContext) Field(chain ...string) any {
	if e.event == nil || len(chain) == 0 {
		return nil
	}

	switch chain[0] {
	case "event":
		return e.event.Event
	case "uuid":
		return e.event.UUID
	case "distinct_id":
		return e.event.DistinctID
	case "person_id":
		return e.event.PersonID
	case "timestamp":
		return e.event.Timestamp
	case "elements_chain":
		return e.event.ElementsChain
	case "properties":
		return lookup(e.event.Properties, chain[1:])
	case "person":
		if len(chain) > 1 && chain[1] == "properties" {
			return lookup(e.event.PersonProperties, chain[2:])
		}
	}

	return nil
}

func lookup(m map[string]any, path []string) any {
	if len(path) == 0 {
		return nil
	}

	v, ok := m[path[0]]
	if !ok {
		return nil
	}
	if len(path) == 1 {
		return v
	}

	nested, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return lookup(nested, path[1:])
}

// Date parses a timestamp constant.
func (e *evalContext) Date(value string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, value)
	return t
}

// Cmp compares two values. Comparisons against nil only hold for = and !=.
func (e *evalContext) Cmp(op string, left, right any) bool {
	if left == nil || right == nil {
		switch op {
		case "=":
			return left == nil && right == nil
		case "!=":
			return (left == nil) != (right == nil)
		}
		return false
	}

	c, ok := compareValues(left, right)
	if !ok {
		return op == "!="
	}

	switch op {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	case ">=":
		return c >= 0
	}
	return false
}

// compareValues orders left against right: numerically, chronologically or
// as text. ok is false for unordered pairs like two different booleans.
func compareValues(left, right any) (int, bool) {
	if lt, ok := asTime(left); ok {
		if rt, ok := asTime(right); ok {
			return lt.Compare(rt), true
		}
	}

	if lf, ok := asNumber(left); ok {
		if rf, ok := asNumber(right); ok {
			switch {
			case lf < rf:
				return -1, true
			case lf > rf:
				return 1, true
			}
			return 0, true
		}
	}

	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if lok && rok {
		if lb == rb {
			return 0, true
		}
		return 0, false
	}

	return strings.Compare(toString(left), toString(right)), true
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func asNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

// Like matches value against a SQL LIKE pattern. A nil value never matches.
func (e *evalContext) Like(value any, pattern any, ignoreCase bool, negate bool) bool {
	if value == nil || pattern == nil {
		return false
	}

	match, err := regex.MatchLike(toString(pattern), toString(value), ignoreCase)
	if err != nil {
		return false
	}
	return match != negate
}

// Match matches value against a regular expression. A nil value never matches.
func (e *evalContext) Match(value any, pattern any, ignoreCase bool, negate bool) bool {
	if value == nil || pattern == nil {
		return false
	}

	match, err := regex.MatchString(toString(pattern), toString(value), ignoreCase)
	if err != nil {
		return false
	}
	return match != negate
}

// InCohort reports whether the person is a member of the cohort.
func (e *evalContext) InCohort(personID any, cohort any) bool {
	if e.cohorts == nil || personID == nil {
		return false
	}

	key, ok := asNumber(cohort)
	if !ok {
		return false
	}
	return e.cohorts.IsMember(schema.CohortKey(key), toString(personID))
}

// CheckEventMatch reports whether ev satisfies the compiled filter.
func CheckEventMatch(ctx context.Context, ev *Event, cohorts CohortMembership, compiled *CompiledExpression) (bool, error) {
	env := &evalContext{event: ev, cohorts: cohorts, ctx: ctx}

	result, err := expr.Run(compiled.Program, env)
	if err != nil {
		return false, fmt.Errorf("check expression: %w", err)
	}

	match, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("type assert expression result: got %T", result)
	}

	return match, nil
}

// FilterEvents returns the events that satisfy the compiled filter, in order.
func FilterEvents(ctx context.Context, events []*Event, cohorts CohortMembership, compiled *CompiledExpression) ([]*Event, error) {
	var matched []*Event

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		match, err := CheckEventMatch(ctx, ev, cohorts, compiled)
		if err != nil {
			return nil, err
		}
		if match {
			matched = append(matched, ev)
		}
	}

	return matched, nil
}

package evaluate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/propfilter/pkg/expression"
	"github.com/autobrr/propfilter/pkg/property"
	"github.com/autobrr/propfilter/pkg/schema"
)

func testEvents() []*expression.Event {
	ts := time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC)
	return []*expression.Event{
		{Event: "$pageview", PersonID: "p1", Timestamp: ts, Properties: map[string]any{"$browser": "Chrome", "plan": "pro"}},
		{Event: "$pageview", PersonID: "p2", Timestamp: ts, Properties: map[string]any{"$browser": "Firefox", "plan": "pro"}},
		{Event: "$autocapture", PersonID: "p3", Timestamp: ts, Properties: map[string]any{"$browser": "Safari"}},
	}
}

func TestEvaluator(t *testing.T) {
	cohorts := schema.NewMemoryCohorts()
	cohorts.Add(1, 9, "p3")

	compiler := property.NewCompiler(&schema.Team{ID: 1}, property.WithCohorts(cohorts))
	specs := map[string]property.Spec{
		"pro":      &property.Property{Type: property.DomainEvent, Key: "plan", Value: "pro"},
		"chrome":   &property.Property{Type: property.DomainEvent, Key: "$browser", Value: "Chrome"},
		"cohort":   &property.Property{Type: property.DomainCohort, Key: "id", Value: 9},
		"has_plan": &property.Property{Type: property.DomainEvent, Key: "plan", Operator: property.OperatorIsSet},
	}

	e, err := New(context.Background(), compiler, specs, cohorts)
	require.NoError(t, err)
	assert.Equal(t, []string{"chrome", "cohort", "has_plan", "pro"}, e.Names())

	events := testEvents()

	got, err := e.Evaluate(context.Background(), events[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"chrome", "has_plan", "pro"}, got)

	got, err = e.Evaluate(context.Background(), events[2])
	require.NoError(t, err)
	assert.Equal(t, []string{"cohort"}, got)

	counts, err := e.Counts(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"chrome": 1, "cohort": 1, "has_plan": 2, "pro": 2}, counts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Counts(ctx, events)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_InvalidFilter(t *testing.T) {
	compiler := property.NewCompiler(&schema.Team{ID: 1})
	_, err := New(context.Background(), compiler, map[string]property.Spec{
		"broken": &property.Property{Type: "session", Key: "x", Value: "y"},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, property.ErrUnsupportedDomain)
	assert.Contains(t, err.Error(), `filter "broken"`)
}

func TestStringSliceContains(t *testing.T) {
	tests := []struct {
		name            string
		slice           []string
		contains        string
		caseInsensitive bool
		want            bool
	}{
		{"exact", []string{"pro", "chrome"}, "pro", false, true},
		{"case_mismatch", []string{"Pro"}, "pro", false, false},
		{"case_insensitive", []string{"Pro"}, "pro", true, true},
		{"missing", []string{"chrome"}, "pro", true, false},
		{"empty", nil, "pro", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StringSliceContains(tt.slice, tt.contains, tt.caseInsensitive))
		})
	}
}

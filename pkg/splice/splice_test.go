package splice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/propfilter/pkg/ast"
	"github.com/autobrr/propfilter/pkg/dates"
	"github.com/autobrr/propfilter/pkg/parser"
	"github.com/autobrr/propfilter/pkg/property"
	"github.com/autobrr/propfilter/pkg/schema"
)

var fixedNow = time.Date(2024, 3, 31, 15, 20, 30, 0, time.UTC)

func clock() time.Time {
	return fixedNow
}

func timestamp(op ast.CompareOp, t time.Time) ast.Expr {
	return &ast.Compare{Op: op, Left: &ast.Field{Chain: []string{"timestamp"}}, Right: &ast.Constant{Value: t}}
}

func template() *ast.Select {
	return &ast.Select{
		Columns: []ast.Expr{&ast.Alias{Alias: "c", Expr: &ast.Call{Name: "count"}}},
		From:    &ast.Field{Chain: []string{"events"}},
		Where:   &ast.Placeholder{Field: "filters"},
	}
}

func replace(t *testing.T, tmpl ast.Expr, filters *Filters, team *schema.Team) (ast.Expr, error) {
	t.Helper()
	return ReplaceFilters(context.Background(), tmpl, filters,
		property.NewCompiler(team), &dates.Parser{Now: clock}, team, WithNow(clock))
}

func TestReplaceFilters(t *testing.T) {
	team := &schema.Team{ID: 1}
	chrome := &ast.Compare{
		Op:    ast.OpEq,
		Left:  &ast.Field{Chain: []string{"properties", "$browser"}},
		Right: &ast.Constant{Value: "Chrome"},
	}
	weekAgo := time.Date(2024, 3, 24, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		filters *Filters
		want    ast.Expr
	}{
		{
			name:    "nil_filters",
			filters: nil,
			want:    ast.True(),
		},
		{
			name:    "empty_filters",
			filters: &Filters{},
			want:    ast.True(),
		},
		{
			name:    "properties_with_default_dates",
			filters: &Filters{Properties: &property.Property{Type: property.DomainEvent, Key: "$browser", Value: "Chrome"}},
			want: &ast.And{Exprs: []ast.Expr{
				chrome,
				timestamp(ast.OpLt, fixedNow.Add(5*time.Second)),
				timestamp(ast.OpGtEq, weekAgo),
			}},
		},
		{
			name:    "all_omits_lower_bound",
			filters: &Filters{DateFrom: "all"},
			want:    timestamp(ast.OpLt, fixedNow.Add(5*time.Second)),
		},
		{
			name:    "absolute_dates",
			filters: &Filters{DateFrom: "2024-01-01", DateTo: "2024-02-01T12:00:00Z"},
			want: &ast.And{Exprs: []ast.Expr{
				timestamp(ast.OpLt, time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)),
				timestamp(ast.OpGtEq, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
			}},
		},
		{
			name:    "relative_dates",
			filters: &Filters{DateFrom: "-24h", DateTo: "dStart"},
			want: &ast.And{Exprs: []ast.Expr{
				timestamp(ast.OpLt, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)),
				timestamp(ast.OpGtEq, fixedNow.Add(-24*time.Hour)),
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := replace(t, template(), tt.filters, team)
			require.NoError(t, err)

			sel, ok := got.(*ast.Select)
			require.True(t, ok)
			assert.Equal(t, tt.want, sel.Where)
			assert.Equal(t, template().Columns, sel.Columns)
			assert.Equal(t, template().From, sel.From)
		})
	}
}

func TestReplaceFilters_TeamTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	got, err := replace(t, &ast.Placeholder{Field: "filters"}, &Filters{DateFrom: "2024-01-01", DateTo: "-1d"}, &schema.Team{ID: 1, Timezone: tokyo})
	require.NoError(t, err)

	assert.Equal(t, &ast.And{Exprs: []ast.Expr{
		timestamp(ast.OpLt, time.Date(2024, 3, 31, 0, 0, 0, 0, tokyo)),
		timestamp(ast.OpGtEq, time.Date(2024, 1, 1, 0, 0, 0, 0, tokyo)),
	}}, got)
}

func TestReplaceFilters_DoesNotMutateTemplate(t *testing.T) {
	tmpl := parser.MustParse("event = 'x' and {filters} and {other}", nil)
	before, err := ast.Marshal(tmpl)
	require.NoError(t, err)

	got, err := replace(t, tmpl, &Filters{DateFrom: "all", DateTo: "2024-01-01"}, nil)
	require.NoError(t, err)

	after, err := ast.Marshal(tmpl)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))

	assert.Equal(t, &ast.And{Exprs: []ast.Expr{
		&ast.Compare{Op: ast.OpEq, Left: &ast.Field{Chain: []string{"event"}}, Right: &ast.Constant{Value: "x"}},
		timestamp(ast.OpLt, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		&ast.Placeholder{Field: "other"},
	}}, got)
}

func TestReplaceFilters_Scopes(t *testing.T) {
	inner := &ast.Select{
		From:  &ast.Field{Chain: []string{"persons"}},
		Where: &ast.Constant{Value: true},
	}
	outer := &ast.Select{
		From:  inner,
		Where: &ast.Placeholder{Field: "filters"},
	}

	got, err := replace(t, outer, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ast.True(), got.(*ast.Select).Where)

	inner.Where = &ast.Placeholder{Field: "filters"}
	_, err = replace(t, outer, nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedTable)

	nested := &ast.Select{
		From: &ast.Field{Chain: []string{"persons"}},
		Where: &ast.Compare{
			Op:    ast.OpEq,
			Left:  &ast.Field{Chain: []string{"id"}},
			Right: &ast.Select{From: &ast.Field{Chain: []string{"events"}}, Where: &ast.Placeholder{Field: "filters"}},
		},
	}
	_, err = replace(t, nested, nil, nil)
	assert.NoError(t, err)
}

func TestReplaceFilters_Errors(t *testing.T) {
	_, err := replace(t, template(), &Filters{DateFrom: "yesterday"}, nil)
	assert.ErrorIs(t, err, dates.ErrUnparsableDate)

	_, err = replace(t, template(), &Filters{DateTo: "soon"}, nil)
	assert.ErrorIs(t, err, dates.ErrUnparsableDate)

	_, err = replace(t, template(), &Filters{Properties: &property.Property{Type: property.DomainCohort, Value: 1}}, nil)
	assert.ErrorIs(t, err, property.ErrMissingTeamContext)
}

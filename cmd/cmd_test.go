package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/propfilter/pkg/ast"
	"github.com/autobrr/propfilter/pkg/config"
	"github.com/autobrr/propfilter/pkg/expression"
	"github.com/autobrr/propfilter/pkg/property"
	"github.com/autobrr/propfilter/pkg/splice"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// decodeTrees splits a stream of indented trees back into expressions.
func decodeTrees(t *testing.T, out *bytes.Buffer) []ast.Expr {
	t.Helper()
	var trees []ast.Expr
	dec := json.NewDecoder(out)
	for dec.More() {
		var raw json.RawMessage
		require.NoError(t, dec.Decode(&raw))
		e, err := ast.Unmarshal(raw)
		require.NoError(t, err)
		trees = append(trees, e)
	}
	return trees
}

func propertyEq(key string, value any) ast.Expr {
	return &ast.Compare{
		Op:    ast.OpEq,
		Left:  &ast.Field{Chain: []string{"properties", key}},
		Right: &ast.Constant{Value: value},
	}
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		Team: config.TeamConfig{ID: 1},
		Cohorts: []config.CohortConfig{
			{ID: 3, Persons: []string{"p1"}},
		},
		PropertyDefinitions: []config.PropertyDefinition{
			{Name: "is_paying", PropertyType: "Boolean"},
		},
		Filters: map[string]any{
			"chrome": []any{
				map[string]any{"key": "$browser", "value": "Chrome"},
			},
			"paying": map[string]any{"key": "is_paying", "value": "true"},
		},
	}
}

func TestBuildCompiler(t *testing.T) {
	compiler, team, membership, err := buildCompiler(testConfig())
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.Equal(t, int64(1), team.ID)
	assert.Equal(t, time.UTC, team.Location())

	e, err := compiler.Compile(context.Background(), &property.Property{Type: property.DomainCohort, Key: "id", Value: 3})
	require.NoError(t, err)
	assert.Equal(t, &ast.Compare{
		Op:    ast.OpInCohort,
		Left:  &ast.Field{Chain: []string{"person_id"}},
		Right: &ast.Constant{Value: int64(3)},
	}, e)

	_, _, _, err = buildCompiler(&config.Configuration{Team: config.TeamConfig{Timezone: "Mars/Olympus"}})
	assert.Error(t, err)

	_, team, _, err = buildCompiler(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), team.ID)
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	want := &ast.And{Exprs: []ast.Expr{
		&ast.Compare{Op: ast.OpEq, Left: &ast.Field{Chain: []string{"event"}}, Right: &ast.Constant{Value: "$pageview"}},
		&ast.Placeholder{Field: "filters"},
	}}

	text := writeFile(t, dir, "template.txt", "event = '$pageview' and {filters}\n")
	got, err := loadTemplate(text)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	data, err := ast.Marshal(want)
	require.NoError(t, err)
	tree := writeFile(t, dir, "template.JSON", string(data))
	got, err = loadTemplate(tree)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = loadTemplate(filepath.Join(dir, "missing.txt"))
	assert.ErrorContains(t, err, "failed reading template")

	bad := writeFile(t, dir, "bad.txt", "event = ")
	_, err = loadTemplate(bad)
	assert.ErrorContains(t, err, "failed parsing template")
}

func TestRunCompile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "specs/a.json", `{"key": "plan", "value": "pro"}`)
	writeFile(t, dir, "specs/nested/b.json", `[{"key": "$browser", "value": "Chrome"}]`)
	writeFile(t, dir, "specs/readme.md", `not a spec`)

	var out bytes.Buffer
	err := runCompile(context.Background(), &out, testConfig(), "paying", []string{filepath.Join(dir, "specs")})
	require.NoError(t, err)

	assert.Equal(t, []ast.Expr{
		propertyEq("is_paying", true),
		propertyEq("plan", "pro"),
		propertyEq("$browser", "Chrome"),
	}, decodeTrees(t, &out))
}

func TestRunCompile_Errors(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	err := runCompile(context.Background(), &out, testConfig(), "unknown", nil)
	assert.ErrorContains(t, err, `failed loading filter: "unknown"`)

	err = runCompile(context.Background(), &out, nil, "chrome", nil)
	assert.ErrorContains(t, err, "no config loaded")

	bad := writeFile(t, dir, "bad.json", `{"type": "group", "key": "x", "value": 1}`)
	err = runCompile(context.Background(), &out, testConfig(), "", []string{bad})
	assert.ErrorIs(t, err, property.ErrUnsupportedDomain)

	err = runCompile(context.Background(), &out, testConfig(), "", []string{filepath.Join(dir, "missing.json")})
	assert.ErrorContains(t, err, "failed stat")
}

func TestRunSplice(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "query.txt", "event = '$pageview' and {filters}")
	props := writeFile(t, dir, "props.json", `{"key": "plan", "value": "pro"}`)
	pageview := &ast.Compare{Op: ast.OpEq, Left: &ast.Field{Chain: []string{"event"}}, Right: &ast.Constant{Value: "$pageview"}}
	before := &ast.Compare{
		Op:    ast.OpLt,
		Left:  &ast.Field{Chain: []string{"timestamp"}},
		Right: &ast.Constant{Value: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	tests := []struct {
		name string
		opts spliceOptions
		want ast.Expr
	}{
		{
			name: "no_filters",
			opts: spliceOptions{noFilters: true},
			want: &ast.And{Exprs: []ast.Expr{pageview, ast.True()}},
		},
		{
			name: "properties_file",
			opts: spliceOptions{propertiesFile: props, dateFrom: splice.DateFromAll, dateTo: "2024-01-01"},
			want: &ast.And{Exprs: []ast.Expr{pageview, &ast.And{Exprs: []ast.Expr{propertyEq("plan", "pro"), before}}}},
		},
		{
			name: "config_filter",
			opts: spliceOptions{filterName: "chrome", dateFrom: splice.DateFromAll, dateTo: "2024-01-01"},
			want: &ast.And{Exprs: []ast.Expr{pageview, &ast.And{Exprs: []ast.Expr{propertyEq("$browser", "Chrome"), before}}}},
		},
		{
			name: "dates_only",
			opts: spliceOptions{dateFrom: splice.DateFromAll, dateTo: "2024-01-01"},
			want: &ast.And{Exprs: []ast.Expr{pageview, before}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, runSplice(context.Background(), &out, testConfig(), tmpl, tt.opts))

			trees := decodeTrees(t, &out)
			require.Len(t, trees, 1)
			assert.Equal(t, tt.want, trees[0])
		})
	}

	var out bytes.Buffer
	err := runSplice(context.Background(), &out, testConfig(), tmpl, spliceOptions{propertiesFile: props, filterName: "chrome"})
	assert.ErrorContains(t, err, "mutually exclusive")

	err = runSplice(context.Background(), &out, testConfig(), tmpl, spliceOptions{dateFrom: "someday"})
	assert.ErrorContains(t, err, "failed replacing filters")
}

func TestRunMatch(t *testing.T) {
	dir := t.TempDir()
	events := writeFile(t, dir, "events.json", `[
		{"event": "$pageview", "person_id": "p1", "timestamp": "2024-03-30T12:00:00Z", "properties": {"$browser": "Chrome"}},
		{"event": "$pageview", "person_id": "p2", "timestamp": "2024-03-30T12:00:00Z", "properties": {"$browser": "Firefox"}},
		{"event": "$pageview", "person_id": "p3", "timestamp": "2024-03-30T12:00:00Z", "properties": {"$browser": "Chrome"}}
	]`)
	cohort := writeFile(t, dir, "cohort.json", `{"type": "cohort", "key": "id", "value": 3}`)

	matchedPersons := func(out *bytes.Buffer) []string {
		var persons []string
		dec := json.NewDecoder(out)
		for dec.More() {
			var ev expression.Event
			require.NoError(t, dec.Decode(&ev))
			persons = append(persons, ev.PersonID)
		}
		return persons
	}

	var out bytes.Buffer
	require.NoError(t, runMatch(context.Background(), &out, testConfig(), "chrome", "", events))
	assert.Equal(t, []string{"p1", "p3"}, matchedPersons(&out))

	out.Reset()
	require.NoError(t, runMatch(context.Background(), &out, testConfig(), "", cohort, events))
	assert.Equal(t, []string{"p1"}, matchedPersons(&out))

	err := runMatch(context.Background(), &out, testConfig(), "", cohort, filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed reading events file")
}

func TestRunClassify(t *testing.T) {
	dir := t.TempDir()
	events := writeFile(t, dir, "events.json", `[
		{"uuid": "a", "event": "$pageview", "timestamp": "2024-03-30T12:00:00Z", "properties": {"$browser": "Chrome", "is_paying": true}},
		{"uuid": "b", "event": "$pageview", "timestamp": "2024-03-30T12:00:00Z", "properties": {"$browser": "Firefox"}}
	]`)

	var out bytes.Buffer
	require.NoError(t, runClassify(context.Background(), &out, testConfig(), nil, events))

	var got []classification
	dec := json.NewDecoder(&out)
	for dec.More() {
		var c classification
		require.NoError(t, dec.Decode(&c))
		got = append(got, c)
	}
	assert.Equal(t, []classification{
		{Index: 0, UUID: "a", Filters: []string{"chrome", "paying"}},
		{Index: 1, UUID: "b", Filters: []string{}},
	}, got)

	out.Reset()
	require.NoError(t, runClassify(context.Background(), &out, testConfig(), []string{"PAYING"}, events))
	assert.Contains(t, out.String(), `"filters":["paying"]`)
	assert.NotContains(t, out.String(), "chrome")

	err := runClassify(context.Background(), &out, &config.Configuration{}, nil, events)
	assert.ErrorContains(t, err, "no filters declared")
}

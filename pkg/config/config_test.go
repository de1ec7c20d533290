package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/propfilter/pkg/property"
	"github.com/autobrr/propfilter/pkg/schema"
)

const testConfig = `
team:
  id: 7
  timezone: Europe/Berlin
compiler:
  max_depth: 16
schema:
  timeout: 5s
  rate_limit: 3
property_definitions:
  - name: is_paying
    type: person
    property_type: Boolean
  - name: answer
    property_type: String
cohorts:
  - id: 3
    persons: ["p1", "p2"]
filters:
  chrome_us:
    - {type: event, key: $browser, value: Chrome}
    - {type: person, key: country, value: [US, CA]}
  either:
    type: OR
    values:
      - {key: plan, value: pro}
      - {type: cohort, key: id, value: 3}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInit(t *testing.T) {
	require.NoError(t, Init(writeConfig(t, testConfig)))

	assert.Equal(t, int64(7), Config.Team.ID)
	assert.Equal(t, 16, Config.Compiler.MaxDepth)
	assert.Equal(t, 5*time.Second, Config.Schema.Timeout)
	assert.Equal(t, 3, Config.Schema.RateLimit)
	assert.Equal(t, []string{"chrome_us", "either"}, Config.FilterNames())
	assert.Nil(t, Config.HTTPSchema())

	team, err := Config.TeamContext()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", team.Timezone.String())

	ctx := context.Background()
	typ, ok, err := Config.MemoryRegistry().Lookup(ctx, 7, "is_paying", schema.DefinitionPerson)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, schema.PropertyTypeBoolean, typ)

	typ, ok, err = Config.MemoryRegistry().Lookup(ctx, 7, "answer", schema.DefinitionEvent)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, schema.PropertyTypeString, typ)

	cohorts := Config.MemoryCohorts()
	key, err := cohorts.Resolve(ctx, 7, 3)
	require.NoError(t, err)
	assert.True(t, cohorts.IsMember(key, "p2"))
}

func TestInit_Filters(t *testing.T) {
	require.NoError(t, Init(writeConfig(t, testConfig)))

	spec, err := Config.Filter("chrome_us")
	require.NoError(t, err)
	assert.Equal(t, property.List{
		&property.Property{Type: property.DomainEvent, Key: "$browser", Value: "Chrome"},
		&property.Property{Type: property.DomainPerson, Key: "country", Value: []any{"US", "CA"}},
	}, spec)

	spec, err = Config.Filter("either")
	require.NoError(t, err)
	group, ok := spec.(*property.Group)
	require.True(t, ok)
	assert.Equal(t, property.CombinatorOr, group.Type)
	assert.Len(t, group.Values, 2)

	_, err = Config.Filter("missing")
	assert.Error(t, err)
}

func TestInit_Env(t *testing.T) {
	t.Setenv("PROPFILTER__TEAM__ID", "42")
	t.Setenv("PROPFILTER__SCHEMA__URL", "https://analytics.example.com")
	t.Setenv("PROPFILTER__SCHEMA__RATE_LIMIT", "9")

	require.NoError(t, Init(writeConfig(t, testConfig)))
	assert.Equal(t, int64(42), Config.Team.ID)
	assert.Equal(t, "https://analytics.example.com", Config.Schema.URL)
	assert.Equal(t, 9, Config.Schema.RateLimit)
	assert.NotNil(t, Config.HTTPSchema())
}

func TestInit_NoFile(t *testing.T) {
	require.NoError(t, Init(""))
	loc, err := Config.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestInit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad_timezone", "team:\n  timezone: Mars/Olympus\n"},
		{"bad_definition_type", "property_definitions:\n  - name: x\n    type: group\n"},
		{"unnamed_definition", "property_definitions:\n  - type: event\n"},
		{"negative_depth", "compiler:\n  max_depth: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Init(writeConfig(t, tt.content)))
		})
	}

	assert.Error(t, Init(filepath.Join(t.TempDir(), "missing.yaml")))
}

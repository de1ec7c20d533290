package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/autobrr/propfilter/pkg/ast"
	"github.com/autobrr/propfilter/pkg/config"
	"github.com/autobrr/propfilter/pkg/expression"
	"github.com/autobrr/propfilter/pkg/parser"
	"github.com/autobrr/propfilter/pkg/property"
	"github.com/autobrr/propfilter/pkg/schema"
)

// buildCompiler wires a compiler against the configured team and schema sources.
// The remote schema api takes precedence over the definitions declared in the config.
func buildCompiler(cfg *config.Configuration) (*property.Compiler, *schema.Team, expression.CohortMembership, error) {
	if cfg == nil {
		cfg = &config.Configuration{}
	}

	team, err := cfg.TeamContext()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed building team context")
	}

	memCohorts := cfg.MemoryCohorts()

	var (
		registry schema.PropertyTypeRegistry = cfg.MemoryRegistry()
		cohorts  schema.CohortStore          = memCohorts
	)

	if client := cfg.HTTPSchema(); client != nil {
		cached := schema.NewCached(client, client)
		registry, cohorts = cached, cached
	}

	opts := []property.Option{
		property.WithRegistry(registry),
		property.WithCohorts(cohorts),
	}
	if cfg.Compiler.MaxDepth > 0 {
		opts = append(opts, property.WithMaxDepth(cfg.Compiler.MaxDepth))
	}

	return property.NewCompiler(team, opts...), team, memCohorts, nil
}

// loadSpec reads a property filter from a json file.
func loadSpec(path string) (property.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading spec file: %q", path)
	}

	spec, err := property.ParseSpec(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed decoding spec file: %q", path)
	}
	return spec, nil
}

// loadTemplate reads a query template. Json files hold a serialized tree,
// anything else is parsed as expression text.
func loadTemplate(path string) (ast.Expr, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading template: %q", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		tmpl, err := ast.Unmarshal(data)
		if err != nil {
			return nil, errors.Wrapf(err, "failed decoding template: %q", path)
		}
		return tmpl, nil
	}

	tmpl, err := parser.Parse(strings.TrimSpace(string(data)), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed parsing template: %q", path)
	}
	return tmpl, nil
}

// loadEvents reads a json array of events.
func loadEvents(path string) ([]*expression.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading events file: %q", path)
	}

	var events []*expression.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, errors.Wrapf(err, "failed decoding events file: %q", path)
	}
	return events, nil
}

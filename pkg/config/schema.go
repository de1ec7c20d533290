package config

import (
	"github.com/autobrr/propfilter/pkg/schema"
)

// TeamContext builds the team context from the config.
func (c *Configuration) TeamContext() (*schema.Team, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return &schema.Team{ID: c.Team.ID, Timezone: loc}, nil
}

// MemoryRegistry returns the property definitions declared in the config.
func (c *Configuration) MemoryRegistry() *schema.MemoryRegistry {
	reg := schema.NewMemoryRegistry()
	for _, def := range c.PropertyDefinitions {
		kind := schema.DefinitionEvent
		if def.Type == string(schema.DefinitionPerson) {
			kind = schema.DefinitionPerson
		}
		reg.Define(c.Team.ID, kind, def.Name, schema.PropertyType(def.PropertyType))
	}
	return reg
}

// MemoryCohorts returns the cohorts declared in the config.
func (c *Configuration) MemoryCohorts() *schema.MemoryCohorts {
	cohorts := schema.NewMemoryCohorts()
	for _, cohort := range c.Cohorts {
		cohorts.Add(c.Team.ID, cohort.ID, cohort.Persons...)
	}
	return cohorts
}

// HTTPSchema returns a client for the remote schema API, or nil when no url is configured.
func (c *Configuration) HTTPSchema() *schema.HTTPClient {
	if c.Schema.URL == "" {
		return nil
	}
	return schema.NewHTTPClient(schema.HTTPConfig{
		URL:       c.Schema.URL,
		Token:     c.Schema.Token,
		Timeout:   c.Schema.Timeout,
		RateLimit: c.Schema.RateLimit,
	})
}

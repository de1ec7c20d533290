package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/autobrr/propfilter/pkg/logger"
)

const envPrefix = "PROPFILTER__"

type TeamConfig struct {
	ID       int64  `yaml:"id" koanf:"id"`
	Timezone string `yaml:"timezone" koanf:"timezone"`
}

type CompilerConfig struct {
	MaxDepth int `yaml:"max_depth" koanf:"max_depth"`
}

type SchemaConfig struct {
	URL       string        `yaml:"url" koanf:"url"`
	Token     string        `yaml:"token" koanf:"token"`
	Timeout   time.Duration `yaml:"timeout" koanf:"timeout"`
	RateLimit int           `yaml:"rate_limit" koanf:"rate_limit"`
}

type PropertyDefinition struct {
	Name         string `yaml:"name" koanf:"name"`
	Type         string `yaml:"type" koanf:"type"`
	PropertyType string `yaml:"property_type" koanf:"property_type"`
}

type CohortConfig struct {
	ID      int64    `yaml:"id" koanf:"id"`
	Persons []string `yaml:"persons" koanf:"persons"`
}

type Configuration struct {
	Team                TeamConfig           `yaml:"team" koanf:"team"`
	Compiler            CompilerConfig       `yaml:"compiler" koanf:"compiler"`
	Schema              SchemaConfig         `yaml:"schema" koanf:"schema"`
	PropertyDefinitions []PropertyDefinition `yaml:"property_definitions" koanf:"property_definitions"`
	Cohorts             []CohortConfig       `yaml:"cohorts" koanf:"cohorts"`
	Filters             map[string]any       `yaml:"filters" koanf:"filters"`
}

/* Vars */

var (
	cfgPath = ""

	Delimiter = "."
	Config    *Configuration
	K         = koanf.New(Delimiter)

	// Internal
	log = logger.GetLogger("cfg")
)

/* Public */

func Init(configFilePath string) error {
	// set package variables
	cfgPath = configFilePath
	K = koanf.New(Delimiter)

	// load config
	if configFilePath != "" {
		if err := K.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load file: %w", err)
		}
	}

	// load environment variables, PROPFILTER__SCHEMA__RATE_LIMIT -> schema.rate_limit
	if err := K.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	// unmarshal config
	cfg := new(Configuration)
	if err := K.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	Config = cfg
	log.Debugf("Loaded config with %d filter(s), %d property definition(s) and %d cohort(s)",
		len(cfg.Filters), len(cfg.PropertyDefinitions), len(cfg.Cohorts))

	return nil
}

func ShowUsing() {
	if cfgPath == "" {
		return
	}
	log.Infof("Using %-10s = %q", "CONFIG", cfgPath)
}

// Validate checks values that would otherwise fail later at compile time.
func (c *Configuration) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}

	for _, def := range c.PropertyDefinitions {
		if def.Name == "" {
			return fmt.Errorf("property definition without name")
		}
		switch def.Type {
		case "", "event", "person":
		default:
			return fmt.Errorf("property definition %q: unknown type %q", def.Name, def.Type)
		}
	}

	if c.Compiler.MaxDepth < 0 {
		return fmt.Errorf("compiler max_depth must not be negative")
	}

	return nil
}

// Location returns the configured team timezone, UTC when empty.
func (c *Configuration) Location() (*time.Location, error) {
	if c.Team.Timezone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(c.Team.Timezone)
	if err != nil {
		return nil, fmt.Errorf("team timezone %q: %w", c.Team.Timezone, err)
	}
	return loc, nil
}

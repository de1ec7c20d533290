package schema

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a cohort does not exist for a team.
var ErrNotFound = errors.New("not found")

// Team is the project a filter is compiled for.
type Team struct {
	ID       int64
	Timezone *time.Location
}

// Location returns the team timezone, UTC when unset.
func (t *Team) Location() *time.Location {
	if t == nil || t.Timezone == nil {
		return time.UTC
	}
	return t.Timezone
}

// PropertyType is the declared value type of a property definition.
type PropertyType string

const (
	PropertyTypeBoolean  PropertyType = "Boolean"
	PropertyTypeString   PropertyType = "String"
	PropertyTypeNumeric  PropertyType = "Numeric"
	PropertyTypeDateTime PropertyType = "DateTime"
	PropertyTypeDuration PropertyType = "Duration"
)

// DefinitionType selects which set of property definitions a lookup goes to.
type DefinitionType string

const (
	DefinitionEvent  DefinitionType = "event"
	DefinitionPerson DefinitionType = "person"
)

// CohortKey identifies a resolved cohort in queries.
type CohortKey int64

// PropertyTypeRegistry looks up declared property types.
type PropertyTypeRegistry interface {
	// Lookup returns the declared type, or ok=false if the property has no definition.
	Lookup(ctx context.Context, teamID int64, key string, kind DefinitionType) (PropertyType, bool, error)
}

// CohortStore resolves cohort references.
type CohortStore interface {
	// Resolve returns the cohort key or an error wrapping ErrNotFound.
	Resolve(ctx context.Context, teamID int64, cohortID int64) (CohortKey, error)
}

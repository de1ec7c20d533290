package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/scylladb/go-set/strset"
)

type definitionKey struct {
	team int64
	kind DefinitionType
	name string
}

// MemoryRegistry is an in-memory PropertyTypeRegistry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	types map[definitionKey]PropertyType
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		types: make(map[definitionKey]PropertyType),
	}
}

// Define registers (or replaces) a property definition.
func (r *MemoryRegistry) Define(teamID int64, kind DefinitionType, name string, t PropertyType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.types[definitionKey{team: teamID, kind: kind, name: name}] = t
}

func (r *MemoryRegistry) Lookup(_ context.Context, teamID int64, key string, kind DefinitionType) (PropertyType, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[definitionKey{team: teamID, kind: kind, name: key}]
	return t, ok, nil
}

type cohortKey struct {
	team int64
	id   int64
}

type storedCohort struct {
	key     CohortKey
	members *strset.Set
}

// MemoryCohorts is an in-memory CohortStore that also tracks cohort members.
type MemoryCohorts struct {
	mu      sync.RWMutex
	cohorts map[cohortKey]*storedCohort
	byKey   map[CohortKey]*storedCohort
}

func NewMemoryCohorts() *MemoryCohorts {
	return &MemoryCohorts{
		cohorts: make(map[cohortKey]*storedCohort),
		byKey:   make(map[CohortKey]*storedCohort),
	}
}

// Add registers a cohort. Its key is the cohort id.
func (c *MemoryCohorts) Add(teamID int64, cohortID int64, personIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc := &storedCohort{
		key:     CohortKey(cohortID),
		members: strset.New(personIDs...),
	}
	c.cohorts[cohortKey{team: teamID, id: cohortID}] = sc
	c.byKey[sc.key] = sc
}

func (c *MemoryCohorts) Resolve(_ context.Context, teamID int64, cohortID int64) (CohortKey, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sc, ok := c.cohorts[cohortKey{team: teamID, id: cohortID}]
	if !ok {
		return 0, fmt.Errorf("%w: cohort %d for team %d", ErrNotFound, cohortID, teamID)
	}
	return sc.key, nil
}

// IsMember reports whether the person belongs to the cohort with the given key.
func (c *MemoryCohorts) IsMember(key CohortKey, personID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sc, ok := c.byKey[key]
	if !ok {
		return false
	}
	return sc.members.Has(personID)
}

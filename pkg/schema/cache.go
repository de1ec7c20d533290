package schema

import (
	"context"
	"sync"
)

type lookupResult struct {
	t  PropertyType
	ok bool
}

// Cached is a read-through cache in front of a registry and a cohort store.
// Failed lookups are not cached.
type Cached struct {
	registry PropertyTypeRegistry
	cohorts  CohortStore

	mu          sync.RWMutex
	definitions map[definitionKey]lookupResult
	resolved    map[cohortKey]CohortKey
}

// NewCached wraps registry and cohorts. Either may be nil.
func NewCached(registry PropertyTypeRegistry, cohorts CohortStore) *Cached {
	return &Cached{
		registry:    registry,
		cohorts:     cohorts,
		definitions: make(map[definitionKey]lookupResult),
		resolved:    make(map[cohortKey]CohortKey),
	}
}

func (c *Cached) Lookup(ctx context.Context, teamID int64, key string, kind DefinitionType) (PropertyType, bool, error) {
	if c.registry == nil {
		return "", false, nil
	}

	k := definitionKey{team: teamID, kind: kind, name: key}

	c.mu.RLock()
	res, hit := c.definitions[k]
	c.mu.RUnlock()
	if hit {
		return res.t, res.ok, nil
	}

	t, ok, err := c.registry.Lookup(ctx, teamID, key, kind)
	if err != nil {
		return "", false, err
	}

	c.mu.Lock()
	c.definitions[k] = lookupResult{t: t, ok: ok}
	c.mu.Unlock()

	return t, ok, nil
}

func (c *Cached) Resolve(ctx context.Context, teamID int64, cohortID int64) (CohortKey, error) {
	if c.cohorts == nil {
		return 0, ErrNotFound
	}

	k := cohortKey{team: teamID, id: cohortID}

	c.mu.RLock()
	key, hit := c.resolved[k]
	c.mu.RUnlock()
	if hit {
		return key, nil
	}

	key, err := c.cohorts.Resolve(ctx, teamID, cohortID)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.resolved[k] = key
	c.mu.Unlock()

	return key, nil
}

package schema

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeam_Location(t *testing.T) {
	var nilTeam *Team
	assert.Equal(t, time.UTC, nilTeam.Location())
	assert.Equal(t, time.UTC, (&Team{ID: 1}).Location())

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, tokyo, (&Team{ID: 1, Timezone: tokyo}).Location())
}

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	reg.Define(1, DefinitionEvent, "is_paying", PropertyTypeBoolean)
	reg.Define(1, DefinitionPerson, "is_paying", PropertyTypeString)

	typ, ok, err := reg.Lookup(ctx, 1, "is_paying", DefinitionEvent)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, PropertyTypeBoolean, typ)

	typ, ok, err = reg.Lookup(ctx, 1, "is_paying", DefinitionPerson)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, PropertyTypeString, typ)

	_, ok, err = reg.Lookup(ctx, 2, "is_paying", DefinitionEvent)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCohorts(t *testing.T) {
	ctx := context.Background()
	cohorts := NewMemoryCohorts()
	cohorts.Add(1, 3, "p1", "p2")

	key, err := cohorts.Resolve(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, CohortKey(3), key)

	_, err = cohorts.Resolve(ctx, 2, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, cohorts.IsMember(key, "p1"))
	assert.False(t, cohorts.IsMember(key, "p3"))
	assert.False(t, cohorts.IsMember(CohortKey(99), "p1"))
}

func newSchemaServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects/1/property_definitions", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		name := r.URL.Query().Get("name")
		switch name {
		case "is_paying":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"name": "is_paying_customer", "property_type": "String"},
					{"name": "is_paying", "property_type": r.URL.Query().Get("type") + "-Boolean"},
				},
			})
		case "untyped":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{{"name": "untyped", "property_type": ""}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/api/projects/1/cohorts/3", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 3, "deleted": false})
	})
	mux.HandleFunc("/api/projects/1/cohorts/4", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 4, "deleted": true})
	})
	mux.HandleFunc("/api/projects/1/cohorts/5", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_Lookup(t *testing.T) {
	var hits int32
	srv := newSchemaServer(t, &hits)
	client := NewHTTPClient(HTTPConfig{URL: srv.URL + "/", Token: "secret", Timeout: 5 * time.Second})
	ctx := context.Background()

	typ, ok, err := client.Lookup(ctx, 1, "is_paying", DefinitionPerson)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, PropertyType("person-Boolean"), typ)

	_, ok, err = client.Lookup(ctx, 1, "untyped", DefinitionEvent)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = client.Lookup(ctx, 1, "missing", DefinitionEvent)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPClient_Resolve(t *testing.T) {
	var hits int32
	srv := newSchemaServer(t, &hits)
	client := NewHTTPClient(HTTPConfig{URL: srv.URL, Token: "secret"})
	ctx := context.Background()

	key, err := client.Resolve(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, CohortKey(3), key)

	_, err = client.Resolve(ctx, 1, 4)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.Resolve(ctx, 1, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.Resolve(ctx, 1, 5)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

type failingStore struct {
	calls int
}

func (f *failingStore) Lookup(context.Context, int64, string, DefinitionType) (PropertyType, bool, error) {
	f.calls++
	return "", false, errors.New("boom")
}

func (f *failingStore) Resolve(context.Context, int64, int64) (CohortKey, error) {
	f.calls++
	return 0, errors.New("boom")
}

func TestCached(t *testing.T) {
	var hits int32
	srv := newSchemaServer(t, &hits)
	client := NewHTTPClient(HTTPConfig{URL: srv.URL, Token: "secret"})
	cached := NewCached(client, client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		typ, ok, err := cached.Lookup(ctx, 1, "is_paying", DefinitionEvent)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, PropertyType("event-Boolean"), typ)

		key, err := cached.Resolve(ctx, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, CohortKey(3), key)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCached_DoesNotCacheErrors(t *testing.T) {
	store := &failingStore{}
	cached := NewCached(store, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := cached.Lookup(ctx, 1, "x", DefinitionEvent)
		require.Error(t, err)
		_, err = cached.Resolve(ctx, 1, 1)
		require.Error(t, err)
	}
	assert.Equal(t, 4, store.calls)
}

func TestCached_NilCollaborators(t *testing.T) {
	cached := NewCached(nil, nil)

	_, ok, err := cached.Lookup(context.Background(), 1, "x", DefinitionEvent)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = cached.Resolve(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockvoid/cachebay/document"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
)

func TestMaterializeRoundTripsWrittenData(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query UserById($id: ID!) { user(id: $id) { id email } }`, "")
	require.NoError(t, err)

	store := graph.NewStore(nil)
	id := document.NewIdentity()

	vars := map[string]any{"id": "u1"}
	data := map[string]any{"user": map[string]any{"__typename": "User", "id": "u1", "email": "a@x"}}
	require.NoError(t, document.Normalize(store, id, p.Root, vars, data, "@"))

	result := document.Materialize(store, id, p, vars, "@", document.Options{Canonical: true, Fingerprint: true}, nil)
	assert.Equal(t, "canonical", result.Source)
	assert.True(t, result.OkStrict)
	assert.True(t, result.OkCanonical)

	user, ok := result.Data["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "User", user["__typename"])
	assert.Equal(t, "u1", user["id"])
	assert.Equal(t, "a@x", user["email"])
	assert.Greater(t, user["__version"].(int64), int64(0))
	assert.Contains(t, result.Dependencies, "User:u1")
}

func TestMaterializeMissingFieldReportsNotOk(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query Q { user { id email } }`, "")
	require.NoError(t, err)

	store := graph.NewStore(nil)
	id := document.NewIdentity()
	require.NoError(t, document.Normalize(store, id, p.Root, nil, map[string]any{
		"user": map[string]any{"__typename": "User", "id": "u1"},
	}, "@"))

	result := document.Materialize(store, id, p, nil, "@", document.Options{Canonical: true, Fingerprint: true}, nil)
	assert.False(t, result.OkStrict)
	assert.False(t, result.OkCanonical)
}

func TestMaterializeResultCacheHitFlipsHotTrue(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query UserById($id: ID!) { user(id: $id) { id } }`, "")
	require.NoError(t, err)

	store := graph.NewStore(nil)
	id := document.NewIdentity()
	vars := map[string]any{"id": "u1"}
	require.NoError(t, document.Normalize(store, id, p.Root, vars, map[string]any{
		"user": map[string]any{"__typename": "User", "id": "u1"},
	}, "@"))

	cache := document.NewResultCache()
	r1 := document.Materialize(store, id, p, vars, "@", document.Options{Canonical: true, Fingerprint: true}, cache)
	assert.False(t, r1.Hot)

	r2 := document.Materialize(store, id, p, vars, "@", document.Options{Canonical: true, Fingerprint: true}, cache)
	assert.True(t, r2.Hot)
}

func TestMaterializeResultCacheInvalidatedByTouch(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query UserById($id: ID!) { user(id: $id) { id email } }`, "")
	require.NoError(t, err)

	var touched map[string]struct{}
	store := graph.NewStore(func(ids map[string]struct{}) { touched = ids })
	id := document.NewIdentity()
	vars := map[string]any{"id": "u1"}
	require.NoError(t, document.Normalize(store, id, p.Root, vars, map[string]any{
		"user": map[string]any{"__typename": "User", "id": "u1", "email": "a@x"},
	}, "@"))

	cache := document.NewResultCache()
	document.Materialize(store, id, p, vars, "@", document.Options{Canonical: true, Fingerprint: true}, cache)

	store.PutRecord("User:u1", graph.Record{"email": "b@y"})
	cache.Invalidate(touched)

	r := document.Materialize(store, id, p, vars, "@", document.Options{Canonical: true, Fingerprint: true}, cache)
	assert.False(t, r.Hot)
	assert.Equal(t, "b@y", r.Data["user"].(map[string]any)["email"])
}

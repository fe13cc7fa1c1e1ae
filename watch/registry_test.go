package watch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockvoid/cachebay/document"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
	"github.com/lockvoid/cachebay/watch"
)

func TestQueryWatcherEmitsOnFirstMaterializeAndOnTouch(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query UserById($id: ID!) { user(id: $id) { id email } }`, "")
	require.NoError(t, err)

	registry := watch.NewRegistry()
	cache := document.NewResultCache()
	var touched map[string]struct{}
	store := graph.NewStore(func(ids map[string]struct{}) {
		touched = ids
		cache.Invalidate(ids)
		registry.OnChange(ids)
	})
	id := document.NewIdentity()

	vars := map[string]any{"id": "u1"}
	require.NoError(t, document.Normalize(store, id, p.Root, vars, map[string]any{
		"user": map[string]any{"__typename": "User", "id": "u1", "email": "a@x"},
	}, "@"))

	var emits []string
	w := watch.NewQueryWatcher(registry, store, id, cache, p, vars, "@", document.Options{Canonical: true, Fingerprint: true},
		func(r document.Result) { emits = append(emits, r.Data["user"].(map[string]any)["email"].(string)) }, nil)
	defer w.Stop()

	require.Len(t, emits, 1)
	assert.Equal(t, "a@x", emits[0])

	store.PutRecord("User:u1", graph.Record{"email": "b@y"})
	require.NotEmpty(t, touched)
	registry.OnChange(touched)

	require.Len(t, emits, 2)
	assert.Equal(t, "b@y", emits[1])
}

func TestWatchersEmitInRegistrationOrder(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query UserById($id: ID!) { user(id: $id) { id } }`, "")
	require.NoError(t, err)

	registry := watch.NewRegistry()
	cache := document.NewResultCache()
	store := graph.NewStore(func(ids map[string]struct{}) {
		cache.Invalidate(ids)
		registry.OnChange(ids)
	})
	id := document.NewIdentity()
	vars := map[string]any{"id": "u1"}
	require.NoError(t, document.Normalize(store, id, p.Root, vars, map[string]any{
		"user": map[string]any{"__typename": "User", "id": "u1"},
	}, "@"))

	var order []string
	mk := func(name string) watch.OnDataFunc {
		return func(document.Result) { order = append(order, name) }
	}

	w1 := watch.NewQueryWatcher(registry, store, id, cache, p, vars, "@", document.Options{Canonical: true, Fingerprint: true}, mk("first"), nil)
	defer w1.Stop()
	w2 := watch.NewQueryWatcher(registry, store, id, cache, p, vars, "@", document.Options{Canonical: true, Fingerprint: true}, mk("second"), nil)
	defer w2.Stop()
	order = nil // ignore the two initial emits from construction

	// A field change bumps User:u1's version, which changes both
	// watchers' root __version; a bare Touch would change nothing and
	// emit nothing.
	store.PutRecord("User:u1", graph.Record{"name": "Ada"})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestFragmentWatcherTracksEntityDirectly(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`fragment UserFields on User { id email }`, "UserFields")
	require.NoError(t, err)

	registry := watch.NewRegistry()
	cache := document.NewResultCache()
	store := graph.NewStore(func(ids map[string]struct{}) {
		cache.Invalidate(ids)
		registry.OnChange(ids)
	})
	id := document.NewIdentity()
	store.PutRecord("User:u1", graph.Record{"__typename": "User", "id": "u1", "email": "a@x"})

	var last string
	w := watch.NewFragmentWatcher(registry, store, id, cache, p, nil, "User:u1", document.Options{Canonical: true, Fingerprint: true},
		func(r document.Result) { last = r.Data["email"].(string) }, nil)
	defer w.Stop()

	assert.Equal(t, "a@x", last)

	store.PutRecord("User:u1", graph.Record{"email": "c@z"})
	assert.Equal(t, "c@z", last)
}

package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockvoid/cachebay/document"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
)

func TestNormalizeBasicIdentity(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query UserById($id: ID!) { user(id: $id) { id email } }`, "")
	require.NoError(t, err)

	store := graph.NewStore(nil)
	id := document.NewIdentity()

	vars := map[string]any{"id": "u1"}
	data := map[string]any{
		"user": map[string]any{"__typename": "User", "id": "u1", "email": "a@x"},
	}

	require.NoError(t, document.Normalize(store, id, p.Root, vars, data, "@"))

	rec, _, ok := store.GetRecord("User:u1")
	require.True(t, ok)
	assert.Equal(t, "a@x", rec["email"])

	root, _, ok := store.GetRecord("@")
	require.True(t, ok)
	link, ok := root[`user({"id":"u1"})`].(graph.Link)
	require.True(t, ok)
	assert.Equal(t, "User:u1", link.Ref)
}

func TestNormalizeEmbedsNonKeyableObject(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query Q { viewer { profile { bio } } }`, "")
	require.NoError(t, err)

	store := graph.NewStore(nil)
	id := document.NewIdentity()

	data := map[string]any{
		"viewer": map[string]any{"__typename": "Viewer", "id": "v1", "profile": map[string]any{"bio": "hello"}},
	}
	require.NoError(t, document.Normalize(store, id, p.Root, nil, data, "@"))

	rec, _, ok := store.GetRecord("Viewer:v1")
	require.True(t, ok)
	link, ok := rec["profile"].(graph.Link)
	require.True(t, ok)
	assert.Equal(t, "Viewer:v1.profile", link.Ref)

	profile, _, ok := store.GetRecord("Viewer:v1.profile")
	require.True(t, ok)
	assert.Equal(t, "hello", profile["bio"])
}

func TestNormalizeMissingTypenameOnKeyableObjectErrors(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query Q { user { id email } }`, "")
	require.NoError(t, err)

	store := graph.NewStore(nil)
	id := document.NewIdentity()

	data := map[string]any{"user": map[string]any{"id": "u1", "email": "a@x"}}
	err = document.Normalize(store, id, p.Root, nil, data, "@")
	require.Error(t, err)
	assert.True(t, document.IsKind(err, document.MissingTypename))
}

func TestNormalizeNullFieldIsValid(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query Q { user { id email } }`, "")
	require.NoError(t, err)

	store := graph.NewStore(nil)
	id := document.NewIdentity()

	data := map[string]any{"user": map[string]any{"__typename": "User", "id": "u1", "email": nil}}
	require.NoError(t, document.Normalize(store, id, p.Root, nil, data, "@"))

	rec, _, ok := store.GetRecord("User:u1")
	require.True(t, ok)
	v, present := rec["email"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestNormalizeConnectionWritesCanonicalAndStrict(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`
		query Q($after: String) {
			posts(first: 2, after: $after) @connection {
				edges { cursor node { id } }
				pageInfo { endCursor hasNextPage }
			}
		}
	`, "")
	require.NoError(t, err)

	store := graph.NewStore(nil)
	id := document.NewIdentity()

	data := map[string]any{
		"posts": map[string]any{
			"edges": []any{
				map[string]any{"cursor": "p1", "node": map[string]any{"__typename": "Post", "id": "p1"}},
				map[string]any{"cursor": "p2", "node": map[string]any{"__typename": "Post", "id": "p2"}},
			},
			"pageInfo": map[string]any{"endCursor": "p2", "hasNextPage": true},
		},
	}
	require.NoError(t, document.Normalize(store, id, p.Root, map[string]any{"after": nil}, data, "@"))

	canonicalID := "@connection.@.posts({})"
	rec, _, ok := store.GetRecord(canonicalID)
	require.True(t, ok)
	links := rec["edges"].(graph.LinkList)
	assert.Len(t, links.Refs, 2)

	root, _, ok := store.GetRecord("@")
	require.True(t, ok)
	strictLink, ok := root[`posts({"after":null,"first":2})`].(graph.Link)
	require.True(t, ok)
	strict, _, ok := store.GetRecord(strictLink.Ref)
	require.True(t, ok)
	assert.Len(t, strict["edges"].(graph.LinkList).Refs, 2)
}

package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockvoid/cachebay/canonical"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
)

func ptr[T any](v T) *T { return &v }

func nodeEdges(ids ...string) []canonical.Edge {
	out := make([]canonical.Edge, len(ids))
	for i, id := range ids {
		out[i] = canonical.Edge{NodeID: "User:" + id, Cursor: id}
	}
	return out
}

func canonicalNodeIDs(t *testing.T, store *graph.Store, canonicalID string) []string {
	t.Helper()
	rec, _, ok := store.GetRecord(canonicalID)
	require.True(t, ok)
	links := rec["edges"].(graph.LinkList)
	var out []string
	for _, id := range links.Refs {
		erec, _, ok := store.GetRecord(id)
		require.True(t, ok)
		out = append(out, erec["node"].(graph.Link).Ref)
	}
	return out
}

func TestCanonicalAppendAcrossPages(t *testing.T) {
	t.Parallel()

	store := graph.NewStore(nil)
	canonicalID := canonical.Key("@", "users", nil)

	canonical.Merge(store, canonical.Page{
		OwnerID:   "@",
		FieldName: "users",
		FullArgs:  map[string]any{"first": int64(10), "after": nil},
		Edges:     nodeEdges("u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8", "u9", "u10"),
		PageInfo:  canonical.PageInfo{EndCursor: ptr("u10"), HasNextPage: ptr(true)},
		Mode:      plan.ModeInfinite,
	})

	canonical.Merge(store, canonical.Page{
		OwnerID:   "@",
		FieldName: "users",
		FullArgs:  map[string]any{"first": int64(10), "after": "u10"},
		After:     ptr("u10"),
		Edges:     nodeEdges("u11", "u12", "u13", "u14", "u15", "u16", "u17", "u18", "u19", "u20"),
		PageInfo:  canonical.PageInfo{EndCursor: ptr("u20"), HasNextPage: ptr(false)},
		Mode:      plan.ModeInfinite,
	})

	ids := canonicalNodeIDs(t, store, canonicalID)
	require.Len(t, ids, 20)
	assert.Equal(t, "User:u1", ids[0])
	assert.Equal(t, "User:u20", ids[19])

	pageInfo, _, ok := store.GetRecord(canonical.PageInfoID(canonicalID))
	require.True(t, ok)
	assert.Equal(t, "u20", pageInfo["endCursor"])
	assert.Equal(t, false, pageInfo["hasNextPage"])
}

func TestCanonicalMergeIsIdempotent(t *testing.T) {
	t.Parallel()

	store := graph.NewStore(nil)
	page := canonical.Page{
		OwnerID:   "@",
		FieldName: "users",
		FullArgs:  map[string]any{"first": int64(10), "after": nil},
		Edges:     nodeEdges("u1", "u2", "u3"),
		PageInfo:  canonical.PageInfo{EndCursor: ptr("u3"), HasNextPage: ptr(true)},
		Mode:      plan.ModeInfinite,
	}

	canonical.Merge(store, page)
	canonicalID := canonical.Key("@", "users", nil)
	v1 := store.Version(canonicalID)
	pv1 := store.Version(canonical.PageInfoID(canonicalID))

	canonical.Merge(store, page)
	v2 := store.Version(canonicalID)
	pv2 := store.Version(canonical.PageInfoID(canonicalID))

	assert.Equal(t, v1, v2)
	assert.Equal(t, pv1, pv2)

	ids := canonicalNodeIDs(t, store, canonicalID)
	assert.Equal(t, []string{"User:u1", "User:u2", "User:u3"}, ids)
}

func TestCanonicalUnknownCursorOrphansUnderStrict(t *testing.T) {
	t.Parallel()

	store := graph.NewStore(nil)
	canonicalID := canonical.Key("@", "users", nil)

	canonical.Merge(store, canonical.Page{
		OwnerID:   "@",
		FieldName: "users",
		FullArgs:  map[string]any{"first": int64(10), "after": nil},
		Edges:     nodeEdges("u1", "u2"),
		PageInfo:  canonical.PageInfo{EndCursor: ptr("u2")},
		Mode:      plan.ModeInfinite,
	})

	canonical.Merge(store, canonical.Page{
		OwnerID:   "@",
		FieldName: "users",
		FullArgs:  map[string]any{"first": int64(10), "after": "unknown-cursor"},
		After:     ptr("unknown-cursor"),
		Edges:     nodeEdges("u50", "u51"),
		PageInfo:  canonical.PageInfo{EndCursor: ptr("u51")},
		Mode:      plan.ModeInfinite,
	})

	ids := canonicalNodeIDs(t, store, canonicalID)
	assert.Equal(t, []string{"User:u1", "User:u2"}, ids, "canonical is untouched by an unknown cursor boundary")

	strictID := canonical.StrictID("@", "users", map[string]any{"first": int64(10), "after": "unknown-cursor"})
	rec, _, ok := store.GetRecord(strictID)
	require.True(t, ok)
	assert.Len(t, rec["edges"].(graph.LinkList).Refs, 2)
}

func TestPageModeDisablesCanonicalMerge(t *testing.T) {
	t.Parallel()

	store := graph.NewStore(nil)
	canonicalID := canonical.Key("@", "users", nil)

	canonical.Merge(store, canonical.Page{
		OwnerID:   "@",
		FieldName: "users",
		FullArgs:  map[string]any{"first": int64(10)},
		Edges:     nodeEdges("u1", "u2"),
		Mode:      plan.ModePage,
	})

	_, _, ok := store.GetRecord(canonicalID)
	assert.False(t, ok)

	strictID := canonical.StrictID("@", "users", map[string]any{"first": int64(10)})
	_, _, ok = store.GetRecord(strictID)
	assert.True(t, ok)
}

package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockvoid/cachebay/plan"
)

func TestCompileBasicQuery(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query UserById($id: ID!) { user(id: $id) { id email } }`, "")
	require.NoError(t, err)

	assert.Equal(t, "query", p.Operation)
	assert.Equal(t, "Query", p.RootTypename)
	require.Len(t, p.Root, 1)

	userField := p.Root[0]
	assert.Equal(t, "user", userField.ResponseKey)
	assert.Equal(t, "user(id: $id)", trimForQuery(userField))

	args := userField.BuildArgs(map[string]any{"id": "u1"})
	assert.Equal(t, map[string]any{"id": "u1"}, args)
	assert.Equal(t, `user({"id":"u1"})`, userField.StringifyArgs(map[string]any{"id": "u1"}))

	assert.Contains(t, p.NetworkQuery, "__typename")
	assert.Contains(t, p.NetworkQuery, "user(id: $id)")
}

func trimForQuery(f *plan.Field) string { return f.Name + "(id: $id)" }

func TestCompileInjectsTypenameOnNonLeafSelections(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`query Q { user { id profile { bio } } }`, "")
	require.NoError(t, err)

	// Both the root selection and the nested "profile" selection are
	// non-leaf and must carry __typename in the wire text.
	count := countOccurrences(p.NetworkQuery, "__typename")
	assert.GreaterOrEqual(t, count, 2)
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
		}
	}
	return count
}

func TestCompileRejectsAmbiguousDocument(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	_, err := c.Compile(`query A { a } query B { b }`, "")
	require.Error(t, err)
	assert.True(t, plan.IsKind(err, plan.AmbiguousDocument))
}

func TestCompileUnknownFragmentName(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	_, err := c.Compile(`query Q { a }`, "DoesNotExist")
	require.Error(t, err)
	assert.True(t, plan.IsKind(err, plan.UnknownFragment))
}

func TestCompileNamedFragment(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`
		fragment UserFields on User { id email }
		query Q { user { ...UserFields } }
	`, "UserFields")
	require.NoError(t, err)

	assert.Equal(t, "fragment", p.Operation)
	assert.Equal(t, "User", p.RootTypename)

	var keys []string
	for _, f := range p.Root {
		keys = append(keys, f.ResponseKey)
	}
	assert.ElementsMatch(t, []string{"id", "email"}, keys)
}

func TestConnectionDirectiveDefaultsAndFilters(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`
		query Q($after: String) {
			posts(first: 10, after: $after, status: "PUBLISHED") @connection(filters: ["status"]) {
				edges { node { id } }
				pageInfo { endCursor hasNextPage }
			}
		}
	`, "")
	require.NoError(t, err)

	posts := p.Root[0]
	require.NotNil(t, posts.Connection)
	assert.Equal(t, "posts", posts.Connection.Key)
	assert.Equal(t, []string{"status"}, posts.Connection.Filters)
	assert.Equal(t, []string{"first", "after"}, posts.Connection.PageArgs)
	assert.Equal(t, plan.ModeInfinite, posts.Connection.Mode)

	assert.NotContains(t, p.NetworkQuery, "@connection")
}

func TestConnectionKeyOverride(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`
		query Q {
			posts(first: 10) @connection(key: "allPosts") {
				edges { node { id } }
			}
		}
	`, "")
	require.NoError(t, err)

	assert.Equal(t, "allPosts", p.Root[0].Connection.Key)
}

func TestVarMaskExcludesPaginationArgsFromCanonical(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`
		query Q($n: Int, $after: String, $status: String) {
			posts(first: $n, after: $after, status: $status) @connection {
				edges { node { id } }
			}
		}
	`, "")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"n", "after", "status"}, p.VarMask.Strict)
	assert.ElementsMatch(t, []string{"status"}, p.VarMask.Canonical)
}

func TestMakeSignatureIsDeterministicAndModeSensitive(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	p, err := c.Compile(`
		query Q($n: Int, $after: String) {
			posts(first: $n, after: $after) @connection {
				edges { node { id } }
			}
		}
	`, "")
	require.NoError(t, err)

	vars := map[string]any{"n": int64(10), "after": nil}
	sig1 := p.MakeSignature("strict", vars)
	sig2 := p.MakeSignature("strict", vars)
	assert.Equal(t, sig1, sig2)

	varsDifferentWindow := map[string]any{"n": int64(20), "after": "cursor-10"}
	assert.NotEqual(t, sig1, p.MakeSignature("strict", varsDifferentWindow))
	assert.Equal(t, p.MakeSignature("canonical", vars), p.MakeSignature("canonical", varsDifferentWindow),
		"canonical signature ignores pagination-arg changes")
}

func TestCompileMemoizesByDocumentAndFragmentName(t *testing.T) {
	t.Parallel()

	c := plan.NewCompiler()
	doc := `query Q { a }`
	p1, err := c.Compile(doc, "")
	require.NoError(t, err)
	p2, err := c.Compile(doc, "")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

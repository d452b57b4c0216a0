package badger

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()

	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	st := NewProvider(openTestDB(t)).ForScope("s-1")

	_, ok, err := st.Get(ctx, "search_history")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Set(ctx, "search_history", `[{"term":"kale"}]`))

	v, ok, err := st.Get(ctx, "search_history")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"term":"kale"}]`, v)

	require.NoError(t, st.Delete(ctx, "search_history"))
	_, ok, err = st.Get(ctx, "search_history")
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting a missing key is not an error
	require.NoError(t, st.Delete(ctx, "search_history"))
}

func TestProvider_ScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(openTestDB(t))

	require.NoError(t, p.ForScope("alice").Set(ctx, "product_view_count", `{"1":1}`))
	require.NoError(t, p.ForScope("bob").Set(ctx, "product_view_count", `{"2":4}`))
	require.NoError(t, p.ForScope("bob").Set(ctx, "search_history", `[]`))

	v, ok, err := p.ForScope("alice").Get(ctx, "product_view_count")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"1":1}`, v)

	scopes, err := p.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, scopes)
}

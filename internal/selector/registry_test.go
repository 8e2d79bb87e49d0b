package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postar/internal/storage"
)

func TestRegistry_DrawSharesState(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	r := NewRegistry(ctx, store, map[string][]string{
		PostsKey:          {"p1", "p2"},
		MediaKey("promo"): {"a.png", "b.png", "c.png"},
	}, seeded(11))

	_, err := r.Draw(ctx, PostsKey)
	require.NoError(t, err)
	_, err = r.Draw(ctx, MediaKey("promo"))
	require.NoError(t, err)

	st := store.Load(ctx)
	assert.Len(t, st[PostsKey], 1)
	assert.Len(t, st[MediaKey("promo")], 2)
}

func TestRegistry_ReusesSelector(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(ctx, &memStore{}, map[string][]string{PostsKey: {"a"}})
	a, err := r.Selector(ctx, PostsKey)
	require.NoError(t, err)
	b, err := r.Selector(ctx, PostsKey)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestRegistry_UnknownAndEmptyPools(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(ctx, &memStore{}, map[string][]string{
		PostsKey:          {"a"},
		MediaKey("empty"): nil,
	})

	_, err := r.Draw(ctx, MediaKey("nope"))
	assert.ErrorIs(t, err, ErrUnknownPool)

	_, err = r.Draw(ctx, MediaKey("empty"))
	assert.ErrorIs(t, err, ErrEmptyPool)

	// Other pools keep working.
	it, err := r.Draw(ctx, PostsKey)
	require.NoError(t, err)
	assert.Equal(t, "a", it)
}

func TestRegistry_ResetAndStatus(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(ctx, &memStore{}, map[string][]string{
		PostsKey:      {"a", "b", "c"},
		MediaKey("x"): {"1", "2"},
	}, seeded(2))

	_, _ = r.Draw(ctx, PostsKey)
	_, _ = r.Draw(ctx, MediaKey("x"))

	assert.Equal(t, []PoolStatus{
		{Key: MediaKey("x"), Size: 2, Remaining: 1},
		{Key: PostsKey, Size: 3, Remaining: 2},
	}, r.Status(ctx))

	require.NoError(t, r.Reset(ctx, PostsKey))
	st := r.Status(ctx)
	assert.Equal(t, 3, st[1].Remaining)
	assert.Equal(t, 1, st[0].Remaining)

	require.NoError(t, r.Reset(ctx))
	assert.Equal(t, 2, r.Status(ctx)[0].Remaining)

	assert.ErrorIs(t, r.Reset(ctx, "bogus"), ErrUnknownPool)
}

func TestRegistry_StatusDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	store := &memStore{state: storage.State{PostsKey: {"a", "gone"}}}
	r := NewRegistry(ctx, store, map[string][]string{
		PostsKey:      {"a", "b", "c"},
		MediaKey("x"): {"1", "2"},
	})

	assert.Equal(t, []PoolStatus{
		{Key: MediaKey("x"), Size: 2, Remaining: 2},
		{Key: PostsKey, Size: 3, Remaining: 1},
	}, r.Status(ctx))
	assert.Zero(t, store.saves)
	assert.NotContains(t, store.Load(ctx), MediaKey("x"))
}

func TestMediaKey(t *testing.T) {
	assert.Equal(t, "media:revenda", MediaKey("revenda"))
	assert.True(t, IsMediaKey(MediaKey("x")))
	assert.False(t, IsMediaKey(PostsKey))
}

package session

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, options ...RedisStoreOption) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, options...)
	require.NoError(t, err)
	return store
}

func TestRedisStore_GetMissingSession(t *testing.T) {
	store := newRedisStore(t)

	state, err := store.Get(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestRedisStore_ApplyCreatesAndRoundTrips(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	applied, err := store.Apply(ctx, "s1", turnUpdate(0, "Tell me about Paris", "Paris"))
	require.NoError(t, err)
	require.NotNil(t, applied)
	assert.Equal(t, "Paris", applied.CurrentDestination)

	state, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "s1", state.ID)
	assert.Equal(t, "Paris", state.CurrentDestination)
	require.Len(t, state.Turns, 1)
	assert.Equal(t, "Tell me about Paris", state.Turns[0].Query)
}

func TestRedisStore_TurnsAccumulateInOrder(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Apply(ctx, "s1", turnUpdate(0, "first", "Paris"))
	require.NoError(t, err)
	_, err = store.Apply(ctx, "s1", turnUpdate(1, "second", "Tokyo"))
	require.NoError(t, err)

	state, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, state.Turns, 2)
	assert.Equal(t, "first", state.Turns[0].Query)
	assert.Equal(t, "second", state.Turns[1].Query)
	assert.Equal(t, "Tokyo", state.CurrentDestination)
}

func TestRedisStore_SessionIsolation(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Apply(ctx, "alice", turnUpdate(0, "q", "Paris"))
	require.NoError(t, err)
	_, err = store.Apply(ctx, "bob", turnUpdate(0, "q", "Tokyo"))
	require.NoError(t, err)

	alice, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	bob, err := store.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Paris", alice.CurrentDestination)
	assert.Equal(t, "Tokyo", bob.CurrentDestination)
}

func TestRedisStore_ConcurrentAppliesAllLand(t *testing.T) {
	store := newRedisStore(t, WithApplyAttempts(50))
	ctx := context.Background()

	const turns = 10
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Apply(ctx, "s1", turnUpdate(i, "q", "Paris"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, state.Turns, turns)
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, WithKeyPrefix("custom"))
	require.NoError(t, err)

	_, err = store.Apply(context.Background(), "s1", turnUpdate(0, "q", "Paris"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("custom:s1"))
}

func TestRedisStore_RequiresClient(t *testing.T) {
	_, err := NewRedisStore(nil)
	assert.Error(t, err)
}

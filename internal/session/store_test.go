package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago-ai/voyago"
)

func turnUpdate(index int, query, destination string) voyago.TurnUpdate {
	return voyago.TurnUpdate{
		Record: voyago.TurnRecord{
			Index:       index,
			Query:       query,
			Destination: destination,
			Provenance:  voyago.ProvenanceCache,
		},
		CurrentDestination: destination,
	}
}

func TestMemoryStore_GetMissingSession(t *testing.T) {
	store := NewMemoryStore()

	state, err := store.Get(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestMemoryStore_LazyCreationOnApply(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state, err := store.Apply(ctx, "s1", turnUpdate(0, "Tell me about Paris", "Paris"))
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "s1", state.ID)
	assert.Equal(t, "Paris", state.CurrentDestination)
	require.Len(t, state.Turns, 1)
	assert.False(t, state.CreatedAt.IsZero())
	assert.False(t, state.UpdatedAt.IsZero())
}

func TestMemoryStore_DestinationPersistsAcrossTurns(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Apply(ctx, "s1", turnUpdate(0, "Tell me about Paris", "Paris"))
	require.NoError(t, err)

	// A follow-up with no destination keeps the previous one.
	state, err := store.Apply(ctx, "s1", voyago.TurnUpdate{
		Record: voyago.TurnRecord{Index: 1, Query: "What is the weather?", Destination: "Paris"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris", state.CurrentDestination)
	require.Len(t, state.Turns, 2)
}

func TestMemoryStore_SessionIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Apply(ctx, "alice", turnUpdate(0, "Tell me about Paris", "Paris"))
	require.NoError(t, err)
	_, err = store.Apply(ctx, "bob", turnUpdate(0, "Tell me about Tokyo", "Tokyo"))
	require.NoError(t, err)

	alice, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	bob, err := store.Get(ctx, "bob")
	require.NoError(t, err)

	assert.Equal(t, "Paris", alice.CurrentDestination)
	assert.Equal(t, "Tokyo", bob.CurrentDestination)
	assert.Len(t, alice.Turns, 1)
	assert.Len(t, bob.Turns, 1)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Apply(ctx, "s1", turnUpdate(0, "Tell me about Paris", "Paris"))
	require.NoError(t, err)

	first, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	first.CurrentDestination = "Mars"
	first.Turns[0].Query = "mutated"

	second, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Paris", second.CurrentDestination)
	assert.Equal(t, "Tell me about Paris", second.Turns[0].Query)
}

func TestMemoryStore_ConcurrentAppliesSerialize(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const turns = 50
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Apply(ctx, "s1", turnUpdate(i, fmt.Sprintf("query %d", i), "Paris"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, state.Turns, turns)
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	store := NewMemoryStore(WithMaxSessions(2))
	ctx := context.Background()

	_, err := store.Apply(ctx, "old", turnUpdate(0, "q", "Paris"))
	require.NoError(t, err)
	_, err = store.Apply(ctx, "mid", turnUpdate(0, "q", "Tokyo"))
	require.NoError(t, err)

	// Touch "old" so "mid" becomes the eviction candidate.
	_, err = store.Get(ctx, "old")
	require.NoError(t, err)

	_, err = store.Apply(ctx, "new", turnUpdate(0, "q", "Sydney"))
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	gone, err := store.Get(ctx, "mid")
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := store.Get(ctx, "old")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "s1")
	assert.Error(t, err)
	_, err = store.Apply(ctx, "s1", turnUpdate(0, "q", "Paris"))
	assert.Error(t, err)
}

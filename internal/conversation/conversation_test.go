package conversation

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	id, turns, err := Start(ctx, store, "Hi! I'm Sia.")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, RoleAssistant, turns[0].Role)

	require.NoError(t, Record(ctx, store, id, "I have a cough", "Coughs can be viral or allergic."))
	require.NoError(t, Record(ctx, store, id, "thanks", "You're welcome."))

	history, err := store.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 5)

	var got []string
	for _, turn := range history {
		assert.Equal(t, id, turn.SessionID)
		got = append(got, string(turn.Role)+":"+turn.Content)
	}
	assert.Equal(t, []string{
		"assistant:Hi! I'm Sia.",
		"user:I have a cough",
		"assistant:Coughs can be viral or allergic.",
		"user:thanks",
		"assistant:You're welcome.",
	}, got)

	_, err = store.History(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreHistoryIsACopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	id, _, err := Start(ctx, store, "welcome")
	require.NoError(t, err)

	history, err := store.History(ctx, id)
	require.NoError(t, err)
	history[0].Content = "changed"

	again, err := store.History(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "welcome", again[0].Content)
}

func TestMemoryStoreConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := Start(ctx, store, "welcome")
			assert.NoError(t, err)
			assert.NoError(t, Record(ctx, store, id, "hi", "hello"))
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		history, err := store.History(ctx, id)
		require.NoError(t, err)
		assert.Len(t, history, 3)
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	exerciseStore(t, store)
}

package credentials

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// these tests need running services and are skipped unless the matching variable is set

func TestPostgresStore(t *testing.T) {
	databaseURL := os.Getenv("VLP_TEST_POSTGRES_URL")
	if databaseURL == "" {
		t.Skip("VLP_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	store, err := Open(ctx, StoreConfig{Backend: BackendPostgres, Slot: "test-" + t.Name(), PostgresURL: databaseURL})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Clear(ctx)
		_ = Close(store)
	})

	val, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, store.Set(ctx, "first"))
	require.NoError(t, store.Set(ctx, "second"))
	val, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", val)

	require.NoError(t, store.Clear(ctx))
	val, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestValkeyStore(t *testing.T) {
	uri := os.Getenv("VLP_TEST_VALKEY_URI")
	if uri == "" {
		t.Skip("VLP_TEST_VALKEY_URI not set")
	}
	ctx := context.Background()

	client, err := NewValkeyClient(uri)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	store := NewValkeyStore(client, "test-"+t.Name())
	t.Cleanup(func() { _ = store.Clear(ctx) })

	require.NoError(t, store.Set(ctx, "opaque"))
	val, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "opaque", val)

	t.Run("jwt sets ttl", func(t *testing.T) {
		token := signedToken(t, time.Now().Add(time.Hour))
		require.NoError(t, store.Set(ctx, token))

		ttl, err := client.Do(ctx, client.B().Ttl().Key(store.key).Build()).AsInt64()
		require.NoError(t, err)
		assert.Greater(t, ttl, int64(0))
		assert.LessOrEqual(t, ttl, int64(3600))
	})

	t.Run("expired jwt is not stored", func(t *testing.T) {
		token := signedToken(t, time.Now().Add(time.Hour))
		store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		t.Cleanup(func() { store.now = time.Now })

		require.NoError(t, store.Set(ctx, token))
		val, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Empty(t, val)
	})
}

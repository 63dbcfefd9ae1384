package proxy

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/logger"
)

func TestResponseCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewResponseCache(nil, time.Minute, []string{"get"}, logger.Discard())
	c.now = func() time.Time { return now }

	key := c.Key(http.MethodGet, "/api/v1/cars", "Bearer a", nil)
	c.save(key, http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`[]`))

	entry, ok := c.lookup(key)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, entry.Status)
	assert.Equal(t, `[]`, string(entry.Body))
	assert.Equal(t, "application/json", entry.Header.Get("Content-Type"))

	now = now.Add(59 * time.Second)
	_, ok = c.lookup(key)
	assert.True(t, ok, "entry is still fresh")

	now = now.Add(time.Second)
	_, ok = c.lookup(key)
	assert.False(t, ok, "entry expires after the ttl")

	_, ok = c.store.Get(key)
	assert.False(t, ok, "expired entries are removed from storage")
}

func TestResponseCacheKey(t *testing.T) {
	c := NewResponseCache(nil, time.Minute, nil, logger.Discard())
	base := c.Key(http.MethodGet, "/api/v1/cars?x=1", "Bearer a", nil)

	assert.Equal(t, base, c.Key(http.MethodGet, "/api/v1/cars?x=1", "Bearer a", nil))
	assert.NotEqual(t, base, c.Key(http.MethodPost, "/api/v1/cars?x=1", "Bearer a", nil))
	assert.NotEqual(t, base, c.Key(http.MethodGet, "/api/v1/cars?x=2", "Bearer a", nil))
	assert.NotEqual(t, base, c.Key(http.MethodGet, "/api/v1/cars?x=1", "Bearer b", nil))
	assert.NotEqual(t, base, c.Key(http.MethodGet, "/api/v1/cars?x=1", "Bearer a", []byte("{}")))
	// field boundaries are unambiguous
	assert.NotEqual(t, c.Key("GET", "/a", "b", nil), c.Key("GET", "/ab", "", nil))
}

func TestResponseCacheCacheable(t *testing.T) {
	c := NewResponseCache(nil, time.Minute, []string{"get", "POST"}, logger.Discard())
	assert.True(t, c.Cacheable(http.MethodGet))
	assert.True(t, c.Cacheable(http.MethodPost))
	assert.False(t, c.Cacheable(http.MethodDelete))

	disabled := NewResponseCache(nil, 0, []string{"GET"}, logger.Discard())
	assert.False(t, disabled.Cacheable(http.MethodGet))
}

func TestResponseCacheDiscardsCorruptEntries(t *testing.T) {
	c := NewResponseCache(nil, time.Minute, []string{"GET"}, logger.Discard())
	c.store.Set("k", []byte("not json"))

	_, ok := c.lookup("k")
	assert.False(t, ok)
	_, ok = c.store.Get("k")
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	redisURL := os.Getenv("VLP_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("VLP_TEST_REDIS_URL not set")
	}

	client, err := NewRedisClient(context.Background(), redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisCache(client, time.Minute, logger.Discard())
	key := "test-" + t.Name()
	t.Cleanup(func() { store.Delete(key) })

	_, ok := store.Get(key)
	assert.False(t, ok)

	store.Set(key, []byte("payload"))
	data, ok := store.Get(key)
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))

	ttl, err := client.TTL(context.Background(), "vlp:cache:"+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	store.Delete(key)
	_, ok = store.Get(key)
	assert.False(t, ok)
}

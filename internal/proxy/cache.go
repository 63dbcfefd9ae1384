package proxy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/redis/go-redis/v9"
)

// cachedResponse is the envelope stored in the cache. It carries its own expiry because
// httpcache.Cache has no notion of time to live.
type cachedResponse struct {
	Status  int         `json:"status"`
	Header  http.Header `json:"header"`
	Body    []byte      `json:"body"`
	Expires time.Time   `json:"expires"`
}

// ResponseCache stores successful upstream responses for a fixed ttl.
type ResponseCache struct {
	store   httpcache.Cache
	ttl     time.Duration
	methods map[string]bool
	now     func() time.Time
	logger  *slog.Logger
}

// NewResponseCache returns a cache over store. A nil store means an in-memory cache.
// A ttl <= 0 disables caching.
func NewResponseCache(store httpcache.Cache, ttl time.Duration, methods []string, logger *slog.Logger) *ResponseCache {
	if store == nil {
		store = httpcache.NewMemoryCache()
	}
	m := make(map[string]bool, len(methods))
	for _, method := range methods {
		m[strings.ToUpper(method)] = true
	}
	return &ResponseCache{
		store:   store,
		ttl:     ttl,
		methods: m,
		now:     time.Now,
		logger:  logger,
	}
}

// Cacheable reports whether responses to method are cached.
func (c *ResponseCache) Cacheable(method string) bool {
	return c.ttl > 0 && c.methods[method]
}

// Key derives the cache key from the method, the upstream path and query, the credential and the body,
// so different callers never share an entry.
func (c *ResponseCache) Key(method, target, authorization string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write([]byte(authorization))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *ResponseCache) lookup(key string) (*cachedResponse, bool) {
	data, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	var entry cachedResponse
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding unreadable cache entry", slog.String("error", err.Error()))
		c.store.Delete(key)
		return nil, false
	}
	if !c.now().Before(entry.Expires) {
		c.store.Delete(key)
		return nil, false
	}
	return &entry, true
}

func (c *ResponseCache) save(key string, status int, header http.Header, body []byte) {
	entry := cachedResponse{
		Status:  status,
		Header:  header.Clone(),
		Body:    body,
		Expires: c.now().Add(c.ttl),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("could not encode cache entry", slog.String("error", err.Error()))
		return
	}
	c.store.Set(key, data)
}

// redisCache is an httpcache.Cache backed by Redis so several proxy instances share entries.
// Redis expires keys after ttl; the envelope expiry remains authoritative.
type redisCache struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

var _ httpcache.Cache = (*redisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) httpcache.Cache {
	return &redisCache{
		client:  client,
		prefix:  "vlp:cache:",
		ttl:     ttl,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

func (c *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("redis cache read failed", slog.String("error", err.Error()))
		return nil, false
	}
	return data, true
}

func (c *redisCache) Set(key string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache write failed", slog.String("error", err.Error()))
	}
}

func (c *redisCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.Warn("redis cache delete failed", slog.String("error", err.Error()))
	}
}

// NewRedisClient connects to the Redis server at redisURL (redis:// or rediss://).
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Cache stores geocoding candidates by normalized query key.
type Cache interface {
	Get(ctx context.Context, key string) ([]Candidate, bool, error)
	Set(ctx context.Context, key string, c []Candidate) error
}

// NormalizeQuery lowercases, strips diacritics and collapses whitespace so
// "Praça da Sé" and "praca  da se" share a cache entry.
func NormalizeQuery(q string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, q)
	if err != nil {
		s = q
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// cacheKey returns SHA-256 hex of the normalized query.
func cacheKey(q string) string {
	h := sha256.Sum256([]byte(NormalizeQuery(q)))
	return fmt.Sprintf("geocode:%x", h)
}

// CachedClient wraps a Client with a Cache. Only non-empty results are cached
// so a miss is looked up again next time.
type CachedClient struct {
	inner    Client
	cache    Cache
	onLookup func(hit bool)
}

// NewCachedClient creates a cache decorator. onLookup, if non-nil, is called
// with the outcome of every cache lookup.
func NewCachedClient(inner Client, cache Cache, onLookup func(hit bool)) *CachedClient {
	return &CachedClient{inner: inner, cache: cache, onLookup: onLookup}
}

// Search implements Client.
func (c *CachedClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	key := cacheKey(query)
	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("geocode: cache read failed", zap.Error(err))
	}
	if c.onLookup != nil {
		c.onLookup(ok)
	}
	if ok {
		return cached, nil
	}

	res, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(res) > 0 {
		if err := c.cache.Set(ctx, key, res); err != nil {
			zap.L().Warn("geocode: cache write failed", zap.Error(err))
		}
	}
	return res, nil
}

// MemoryCache is a concurrent-safe LRU cache with TTL expiration.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	order      []string // front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64

	nowFunc func() time.Time
}

type memoryEntry struct {
	value     []Candidate
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// NewMemoryCache creates a MemoryCache with the given capacity and TTL.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &MemoryCache{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		nowFunc:    time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]Candidate, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	if c.ttl > 0 && c.nowFunc().Sub(e.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil, false, nil
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	out := make([]Candidate, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, v []Candidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]Candidate, len(v))
	copy(stored, v)

	if _, ok := c.entries[key]; ok {
		c.removeFromOrder(key)
	} else if len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = &memoryEntry{value: stored, createdAt: c.nowFunc()}
	c.order = append(c.order, key)
	return nil
}

// Stats returns current cache statistics.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return CacheStats{Entries: n, Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// RedisCache stores candidates as JSON in Redis.
type RedisCache struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rc *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rc: rc, ttl: ttl}
}

// OpenRedis connects to addr. An empty addr returns nil.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Get implements Cache.
func (r *RedisCache) Get(ctx context.Context, key string) ([]Candidate, bool, error) {
	s, err := r.rc.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "geocode: redis get")
	}
	var out []Candidate
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false, eris.Wrap(err, "geocode: redis decode")
	}
	return out, true, nil
}

// Set implements Cache.
func (r *RedisCache) Set(ctx context.Context, key string, c []Candidate) error {
	b, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "geocode: redis encode")
	}
	if err := r.rc.Set(ctx, key, b, r.ttl).Err(); err != nil {
		return eris.Wrap(err, "geocode: redis set")
	}
	return nil
}

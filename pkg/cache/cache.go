// Package cache is the TTL+LRU result cache consulted by the sandbox before
// execution. Keys are xxhash digests of the normalized query text; entries
// expire lazily on Get and are also swept in the background, and capacity
// overflow evicts the least-recently-accessed entry.
package cache

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/chainlens-network/chainlensx/pkg/storage"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 500
)

// Entry is one cached result set. Hit bookkeeping uses atomics so concurrent
// readers never contend on a lock.
type Entry struct {
	Key             string
	Rows            []storage.Row
	CreatedAt       time.Time
	ExecutionTimeMs float64

	hitCount     atomic.Int64
	lastAccessed atomic.Int64 // unix nanos
}

// HitCount returns how many times this entry has been served.
func (e *Entry) HitCount() int64 { return e.hitCount.Load() }

// LastAccessedAt returns the most recent access time.
func (e *Entry) LastAccessedAt() time.Time {
	return time.Unix(0, e.lastAccessed.Load())
}

// Cache is safe for concurrent use. Construct with New; the zero value is
// not usable.
type Cache struct {
	logger     *zap.Logger
	ttl        time.Duration
	maxEntries int

	entries *xsync.Map[string, *Entry]
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache with the given TTL and capacity; non-positive values
// fall back to the defaults.
func New(logger *zap.Logger, ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		logger:     logger,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    xsync.NewMap[string, *Entry](),
	}
}

// Key normalizes query text and hashes it into a stable cache key.
func Key(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return strconv.FormatUint(xxhash.Sum64String(normalized), 16)
}

// Get returns the cached entry for query, or nil on miss. An entry past its
// TTL is evicted on the spot and reported as a miss, so stale rows are never
// returned even before the sweeper runs.
func (c *Cache) Get(query string) *Entry {
	key := Key(query)
	e, ok := c.entries.Load(key)
	if !ok {
		c.misses.Add(1)
		return nil
	}
	if time.Since(e.CreatedAt) > c.ttl {
		c.entries.Delete(key)
		c.misses.Add(1)
		return nil
	}
	e.hitCount.Add(1)
	e.lastAccessed.Store(time.Now().UnixNano())
	c.hits.Add(1)
	return e
}

// Set stores rows for query. On capacity overflow the single entry with the
// oldest lastAccessed is evicted first (true LRU, not insertion order).
func (c *Cache) Set(query string, rows []storage.Row, executionTimeMs float64) {
	key := Key(query)
	if _, exists := c.entries.Load(key); !exists && c.entries.Size() >= c.maxEntries {
		c.evictLRU()
	}

	e := &Entry{
		Key:             key,
		Rows:            rows,
		CreatedAt:       time.Now(),
		ExecutionTimeMs: executionTimeMs,
	}
	e.lastAccessed.Store(e.CreatedAt.UnixNano())
	c.entries.Store(key, e)
}

// evictLRU removes the entry with the minimum lastAccessed. A linear scan is
// fine at the capacities this cache runs at.
func (c *Cache) evictLRU() {
	var victim string
	var oldest int64
	c.entries.Range(func(key string, e *Entry) bool {
		at := e.lastAccessed.Load()
		if victim == "" || at < oldest {
			victim, oldest = key, at
		}
		return true
	})
	if victim != "" {
		c.entries.Delete(victim)
		if c.logger != nil {
			c.logger.Debug("cache LRU eviction", zap.String("key", victim))
		}
	}
}

// Sweep removes all expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	dropped := 0
	c.entries.Range(func(key string, e *Entry) bool {
		if time.Since(e.CreatedAt) > c.ttl {
			c.entries.Delete(key)
			dropped++
		}
		return true
	})
	if dropped > 0 && c.logger != nil {
		c.logger.Debug("cache sweep", zap.Int("dropped", dropped))
	}
	return dropped
}

// Clear drops every entry and resets the hit counters.
func (c *Cache) Clear() {
	c.entries.Clear()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Len returns the number of live entries.
func (c *Cache) Len() int { return c.entries.Size() }

// HitRate returns hits/(hits+misses), 0 when the cache is cold.
func (c *Cache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

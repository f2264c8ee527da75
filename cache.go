package actum

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the interface for caching query results.
// Users should implement this interface with their preferred caching
// solution (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// memEntry is one cached value with its absolute expiry instant.
type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryCache is an in-memory Cache with a capacity bound. When full,
// the single oldest-inserted entry is evicted. Eviction follows
// insertion order, not access order: a hit does not refresh an entry's
// position.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]memEntry
	order    []string // keys in insertion order

	now func() time.Time // test seam
}

// NewMemoryCache returns a MemoryCache holding at most capacity
// entries. A non-positive capacity means unbounded.
func NewMemoryCache(capacity int) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		entries:  map[string]memEntry{},
		now:      time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.remove(key)
		return nil, nil
	}
	return e.value, nil
}

// Set implements Cache. Replacing an existing key keeps its insertion
// position.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	if _, ok := c.entries[key]; !ok {
		if c.capacity > 0 && len(c.entries) >= c.capacity {
			c.remove(c.order[0])
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = memEntry{value: value, expiresAt: expiresAt}
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]memEntry{}
	c.order = nil
	return nil
}

// Len returns the number of live and expired entries currently held.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// remove deletes key from both the entry map and the insertion-order
// list. Callers hold the lock.
func (c *MemoryCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

var _ Cache = (*MemoryCache)(nil)

// cacheKey derives the cache key for a compiled statement from the SQL
// text and the ordered binding list.
func cacheKey(query string, args []any) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	if raw, err := msgpack.Marshal(args); err == nil {
		h.Write(raw)
	} else {
		fmt.Fprintf(h, "%v", args)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// marshalRows encodes a result set for cache storage.
func marshalRows(rows []map[string]any) ([]byte, error) {
	return msgpack.Marshal(rows)
}

// unmarshalRows decodes a cached result set. Loose interface decoding
// widens integers to int64, matching what drivers report, so cached
// and fresh rows compare equal.
func unmarshalRows(raw []byte) ([]map[string]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.UseLooseInterfaceDecoding(true)
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

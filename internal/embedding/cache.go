package embedding

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached embedding stays valid.
const DefaultCacheTTL = 30 * time.Minute

// EmbeddingCache memoizes text-to-vector lookups keyed by content hash.
// Entries expire after the TTL and the cache is capacity-bounded with LRU
// eviction, so expired or cold entries cannot accumulate without limit.
type EmbeddingCache struct {
	capacity int
	ttl      time.Duration
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
	now      func() time.Time
}

type cacheEntry struct {
	key      string
	vector   []float32
	cachedAt time.Time
}

// NewEmbeddingCache creates a cache holding at most capacity entries, each
// valid for ttl after insertion. Non-positive ttl falls back to DefaultCacheTTL.
func NewEmbeddingCache(capacity int, ttl time.Duration) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &EmbeddingCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
	}
}

// CacheKey returns the content hash used to key cache entries.
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached embedding for text if present and not expired.
// Expired entries are removed on lookup.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	key := CacheKey(text)
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.cachedAt) > c.ttl {
		c.lru.Remove(elem)
		delete(c.cache, key)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return entry.vector, true
}

// Set stores the embedding for text, evicting the least recently used entry
// when at capacity. Re-setting an existing key refreshes its timestamp.
func (c *EmbeddingCache) Set(text string, vector []float32) {
	key := CacheKey(text)
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.vector = vector
		entry.cachedAt = c.now()
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, vector: vector, cachedAt: c.now()})
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of entries currently held, including not-yet-swept
// expired ones.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

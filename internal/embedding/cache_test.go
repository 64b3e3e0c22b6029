package embedding

import (
	"testing"
	"time"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(10, time.Minute)
	if _, ok := c.Get("missing"); ok {
		t.Error("empty cache should miss")
	}
	c.Set("hello", []float32{1, 2})
	vec, ok := c.Get("hello")
	if !ok || len(vec) != 2 || vec[0] != 1 {
		t.Errorf("Get = %v, %v", vec, ok)
	}
}

func TestEmbeddingCache_TTLExpiry(t *testing.T) {
	c := NewEmbeddingCache(10, time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("hello", []float32{1})

	c.now = func() time.Time { return base.Add(29 * time.Minute) }
	if _, ok := c.Get("hello"); !ok {
		t.Error("entry inside TTL should hit")
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	c.Set("hello", []float32{1}) // refresh timestamp
	c.now = func() time.Time { return base.Add(80 * time.Minute) }
	if _, ok := c.Get("hello"); ok {
		t.Error("entry past TTL should miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on lookup, Len=%d", c.Len())
	}
}

func TestEmbeddingCache_LRUEviction(t *testing.T) {
	c := NewEmbeddingCache(2, time.Minute)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a") // a is now most recent
	c.Set("c", []float32{3})

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d, want 2", c.Len())
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	if CacheKey("x") != CacheKey("x") {
		t.Error("same text should produce same key")
	}
	if CacheKey("x") == CacheKey("y") {
		t.Error("different text should produce different keys")
	}
}

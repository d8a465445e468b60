package ui

import (
	"hash/fnv"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RenderCache memoises rendered strings (markdown, widget boxes) keyed by a
// hash of their inputs. Least recently used entries are evicted first.
type RenderCache struct {
	cache *lru.Cache[uint64, string]
}

// NewRenderCache creates a cache holding at most maxSize entries. A size
// below 1 falls back to 128.
func NewRenderCache(maxSize int) *RenderCache {
	if maxSize < 1 {
		maxSize = 128
	}
	c, err := lru.New[uint64, string](maxSize)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &RenderCache{cache: c}
}

// ComputeKey hashes inputs with FNV-1a. Strings, ints, int64s, float64s and
// bools are supported; anything else is ignored.
func ComputeKey(inputs ...any) uint64 {
	h := fnv.New64a()
	var b [8]byte
	putUint := func(u uint64) {
		for i := range b {
			b[i] = byte(u >> (8 * i))
		}
		h.Write(b[:])
	}

	for _, input := range inputs {
		switch v := input.(type) {
		case string:
			h.Write([]byte(v))
			h.Write([]byte{0})
		case int:
			putUint(uint64(v))
		case int64:
			putUint(uint64(v))
		case float64:
			putUint(math.Float64bits(v))
		case bool:
			if v {
				h.Write([]byte{1})
			} else {
				h.Write([]byte{0})
			}
		}
	}
	return h.Sum64()
}

// Get retrieves cached content if available.
func (rc *RenderCache) Get(key uint64) (string, bool) {
	return rc.cache.Get(key)
}

// Set stores rendered content.
func (rc *RenderCache) Set(key uint64, content string) {
	rc.cache.Add(key, content)
}

// GetOrCompute retrieves from cache or computes if missing.
func (rc *RenderCache) GetOrCompute(key uint64, compute func() string) string {
	if content, ok := rc.cache.Get(key); ok {
		return content
	}
	content := compute()
	rc.cache.Add(key, content)
	return content
}

// Len returns the number of cached entries.
func (rc *RenderCache) Len() int {
	return rc.cache.Len()
}

// Clear empties the cache, e.g. after a resize or theme change.
func (rc *RenderCache) Clear() {
	rc.cache.Purge()
}

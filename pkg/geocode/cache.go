package geocode

import (
	"strings"
	"sync"
)

// Cache memoizes lookup results for the lifetime of one pipeline run,
// negative results included so repeated failing lookups stay off the network.
// Construct one per run and hand it to the client; safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Result
}

// NewCache creates an empty run-scoped cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Result)}
}

// cacheKey normalizes an address for cache lookup: lowercased and trimmed.
func cacheKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Get returns the cached result for an address, if any.
func (c *Cache) Get(address string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[cacheKey(address)]
	return r, ok
}

// Put stores a result (match or non-match) for an address.
func (c *Cache) Put(address string, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(address)] = r
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

package tobject

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// CachingLoader keeps the most recently loaded sources of another Loader in
// a bounded LRU. Only raw markup is cached; every Template construction
// still parses from scratch. It is safe for concurrent use.
type CachingLoader struct {
	next  Loader
	mu    sync.Mutex
	cache *lru.Cache
}

// NewCachingLoader wraps next with an LRU holding at most size sources.
// A size of zero or less means no limit.
func NewCachingLoader(next Loader, size int) *CachingLoader {
	if size < 0 {
		size = 0
	}
	return &CachingLoader{
		next:  next,
		cache: lru.New(size),
	}
}

func (c *CachingLoader) Resolve(base, name string) string {
	return c.next.Resolve(base, name)
}

// Load returns the cached source for path or loads and caches it. Failed
// loads are not cached.
func (c *CachingLoader) Load(path string) (Source, error) {
	c.mu.Lock()
	if v, ok := c.cache.Get(path); ok {
		c.mu.Unlock()
		return v.(Source), nil
	}
	c.mu.Unlock()

	src, err := c.next.Load(path)
	if err != nil {
		return Source{}, err
	}

	c.mu.Lock()
	c.cache.Add(path, src)
	c.mu.Unlock()
	return src, nil
}

// Forget drops path from the cache so the next Load reaches the wrapped loader.
func (c *CachingLoader) Forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(path)
}

// Purge empties the cache.
func (c *CachingLoader) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = lru.New(c.cache.MaxEntries)
}

// Len returns the number of cached sources.
func (c *CachingLoader) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// ABOUTME: TTL set of seen keys for rejecting repeated form submissions
// ABOUTME: The first submission of a key wins until the window expires

package dedupe

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache remembers keys for a fixed window. Safe for concurrent use.
type Cache struct {
	seen *gocache.Cache
}

// New creates a cache that forgets keys ttl after they were marked.
// Expired keys are purged in the background every ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{seen: gocache.New(ttl, ttl)}
}

// CheckAndMark atomically marks key. It returns true when key was already
// marked (a duplicate) and false when this call marked it.
func (c *Cache) CheckAndMark(key string) bool {
	return c.seen.Add(key, struct{}{}, gocache.DefaultExpiration) != nil
}

// Forget removes key so the next CheckAndMark accepts it again.
func (c *Cache) Forget(key string) {
	c.seen.Delete(key)
}

// Len returns the number of keys held, including expired keys not yet purged.
func (c *Cache) Len() int {
	return c.seen.ItemCount()
}

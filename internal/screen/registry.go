// ABOUTME: Per-browser controller registry backed by a TTL cache
// ABOUTME: Idle controllers are evicted and their pending work cancelled

package screen

import (
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Factory builds the controller for a browser namespace.
type Factory func(namespace string) *Controller

// Registry hands out one Controller per browser id.
type Registry struct {
	mu      sync.Mutex
	cache   *cache.Cache
	factory Factory
	logger  *slog.Logger
}

// NewRegistry creates a registry whose controllers expire after idle
// without use. A zero idle keeps controllers until Close.
func NewRegistry(idle time.Duration, factory Factory) *Registry {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if idle > 0 {
		expiration = idle
		cleanup = max(idle/2, time.Second)
	}

	r := &Registry{
		cache:   cache.New(expiration, cleanup),
		factory: factory,
		logger:  slog.Default().With("component", "registry"),
	}
	r.cache.OnEvicted(func(id string, v any) {
		if c, ok := v.(*Controller); ok {
			c.Close()
		}
		r.logger.Debug("controller evicted", "browser_id", id)
	})
	return r
}

// Get returns the controller for id, creating it on first use. Every call
// renews the idle timeout.
func (r *Registry) Get(id string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(id); ok {
		c := v.(*Controller)
		r.cache.SetDefault(id, c)
		return c
	}

	// an expired entry the janitor has not swept yet still needs closing
	r.cache.Delete(id)

	c := r.factory(id)
	r.cache.SetDefault(id, c)
	r.logger.Debug("controller created", "browser_id", id)
	return c
}

// Remove evicts the controller for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(id)
}

// Len returns the number of live controllers.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Close evicts every controller, including idle ones not yet swept.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.DeleteExpired()
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}

// Package cache provides time-boxed memoization for expensive analysis
// results, keyed by normalized location text.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/terraguard/climate-alerts/internal/observability"
)

type entry struct {
	payload    any
	computedAt time.Time
}

// Cache memoizes computed payloads per key for a fixed TTL. Failures are
// never stored: a transient upstream outage must not poison a key for the
// whole TTL window. Concurrent misses on one key share a single compute via
// singleflight: compute chains several network calls, so a stampede would
// multiply load on rate-limited upstreams.
type Cache struct {
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

func New(ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
		entries: make(map[string]entry),
	}
}

// Normalize folds a location string to its cache key, so "Nairobi" and
// "nairobi " share an entry.
func Normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// GetOrCompute returns the cached payload for key when fresh, otherwise runs
// compute and stores its result on success. The cached flag reports whether
// this caller was served without running compute itself.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (any, error)) (payload any, cached bool, err error) {
	key = Normalize(key)

	if payload, ok := c.lookup(key); ok {
		c.count("hit")
		return payload, true, nil
	}

	var computed bool
	result, err, _ := c.group.Do(key, func() (any, error) {
		// Another flight may have filled the entry while we queued.
		if payload, ok := c.lookup(key); ok {
			return payload, nil
		}
		computed = true
		out, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, out)
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}

	served := !computed
	if served {
		c.count("hit")
	} else {
		c.count("miss")
	}
	return result, served, nil
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(e.computedAt) >= c.ttl {
		// Expired; evict lazily.
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.computedAt.Equal(e.computedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.payload, true
}

func (c *Cache) store(key string, payload any) {
	c.mu.Lock()
	c.entries[key] = entry{payload: payload, computedAt: c.clock.Now()}
	c.mu.Unlock()
}

func (c *Cache) count(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

// Len reports the number of resident entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

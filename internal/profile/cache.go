package profile

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

func unmarshalWeights(data []byte, w *Weights) error {
	return json.Unmarshal(data, w)
}

// DefaultCacheTTL bounds how stale a cached preference set may get. A user
// editing their preferences mid-wait is picked up within one TTL.
const DefaultCacheTTL = 60 * time.Second

type cached struct {
	prefs   *Preferences
	expires time.Time
}

// CachedSource wraps a Source with an in-memory TTL cache so a batch hydrate
// of N waiting users does not issue N profile reads every cycle.
type CachedSource struct {
	src Source
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]cached
}

// NewCachedSource wraps src. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		src:     src,
		ttl:     ttl,
		entries: make(map[string]cached),
	}
}

// Preferences returns the cached set when fresh, otherwise reads through.
// Read-through errors are not cached.
func (c *CachedSource) Preferences(ctx context.Context, userID string) (*Preferences, error) {
	c.mu.RLock()
	hit, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok && time.Now().Before(hit.expires) {
		return hit.prefs, nil
	}

	prefs, err := c.src.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[userID] = cached{prefs: prefs, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return prefs, nil
}

// Invalidate drops a user's cached entry, forcing the next read through.
func (c *CachedSource) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

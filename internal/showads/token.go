package showads

import (
	"context"
	"sync"
	"time"

	"github.com/adflow-systems/showads-connector/internal/metrics"
)

// TokenCache hands a valid access token to any number of concurrent callers
// while keeping at most one refresh in flight.
type TokenCache struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	ttl     time.Duration
	now     func() time.Time
	refresh func(ctx context.Context) (string, error)
}

// NewTokenCache constructs an empty cache. refresh performs the network
// exchange that produces a new token; the cache applies ttl on top of it.
func NewTokenCache(ttl time.Duration, refresh func(ctx context.Context) (string, error)) *TokenCache {
	return &TokenCache{
		ttl:     ttl,
		now:     time.Now,
		refresh: refresh,
	}
}

// Get returns the cached token if still valid, refreshing it otherwise.
// The double-checked lock keeps refreshes single-flight: callers that lose
// the race block on the mutex, re-check, and reuse the winner's token.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.validLocked() {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.validLocked() {
		return c.token, nil
	}

	token, err := c.refresh(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.expiresAt = c.now().Add(c.ttl)
	metrics.IncTokenRefresh()
	return token, nil
}

// Invalidate clears the cached token, forcing the next Get to refresh.
// Called by a sender whose cached token was rejected with a 401.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *TokenCache) validLocked() bool {
	return c.token != "" && c.now().Before(c.expiresAt)
}

package checkincache

import (
	"context"
	"sync"
	"time"

	"nfcattend/pkg/domain"
)

// InMemoryCache is a process-local cache with the same expiry rule as Redis.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	grace   time.Duration
	now     func() time.Time
}

func NewInMemory() *InMemoryCache {
	return &InMemoryCache{entries: make(map[string]time.Time), grace: DefaultGrace, now: time.Now}
}

func (c *InMemoryCache) Seen(_ context.Context, day domain.Day, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(day, userID)
	expires, ok := c.entries[k]
	if !ok {
		return false, nil
	}
	if !c.now().Before(expires) {
		delete(c.entries, k)
		return false, nil
	}
	return true, nil
}

func (c *InMemoryCache) Remember(_ context.Context, day domain.Day, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now().UTC()
	c.entries[key(day, userID)] = now.Add(ttlUntilEndOfDay(day, now, c.grace))
	return nil
}

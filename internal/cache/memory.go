package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryExactCache keeps entries in process. Used in dev and tests.
type MemoryExactCache struct {
	mu              sync.RWMutex
	items           map[string]memoryEntry
	now             func() time.Time
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
	cleanupOnce     sync.Once
	cleanupInterval time.Duration
}

// NewMemoryExactCache starts a cache that sweeps expired entries every
// cleanupInterval (5 minutes when <= 0).
func NewMemoryExactCache(cleanupInterval time.Duration) *MemoryExactCache {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	c := &MemoryExactCache{
		items:           make(map[string]memoryEntry),
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}

	go c.cleanupLoop()

	return c
}

func (c *MemoryExactCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	now := c.now()
	if !now.Before(entry.expiresAt) {
		c.mu.Lock()
		if e, exists := c.items[key]; exists && !now.Before(e.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

// Set stores value for ttl. A non-positive ttl removes the key.
func (c *MemoryExactCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Delete(ctx, key)
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.mu.Lock()
	c.items[key] = memoryEntry{
		value:     valueCopy,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()

	return nil
}

func (c *MemoryExactCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// PurgeExpired removes expired entries and returns how many were removed.
func (c *MemoryExactCache) PurgeExpired(_ context.Context) (int64, error) {
	now := c.now()

	var n int64
	c.mu.Lock()
	for k, v := range c.items {
		if !now.Before(v.expiresAt) {
			delete(c.items, k)
			n++
		}
	}
	c.mu.Unlock()
	return n, nil
}

func (c *MemoryExactCache) cleanupLoop() {
	defer close(c.cleanupDone)

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = c.PurgeExpired(context.Background())
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and waits for it. Call this on shutdown or in tests.
func (c *MemoryExactCache) Close() error {
	c.cleanupOnce.Do(func() {
		close(c.stopCleanup)
		<-c.cleanupDone
	})
	return nil
}

// Len returns the number of entries, expired ones included until swept.
func (c *MemoryExactCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

package cache

import (
	"context"
	"sync"

	"github.com/bookshop-io/payments/internal/domain/settlement"
)

// MemoryCache is the in-process SettlementCache used in tests and
// single-instance deployments.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*settlement.Settlement
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*settlement.Settlement)}
}

func (c *MemoryCache) Put(ctx context.Context, paymentID string, s *settlement.Settlement) error {
	_ = ctx

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[paymentID] = s.Clone()
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, paymentID string) (*settlement.Settlement, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.entries[paymentID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return s.Clone(), nil
}

func (c *MemoryCache) Evict(ctx context.Context, paymentID string) error {
	_ = ctx

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, paymentID)
	return nil
}

// Len reports the number of live entries. Intended for tests.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

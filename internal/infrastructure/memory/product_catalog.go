package memory

import (
	"context"
	"sync"

	domain "github.com/bookshop-io/payments/internal/domain/product"
	"github.com/bookshop-io/payments/internal/domain/settlement"
)

// ProductCatalog serves authoritative prices from memory.
type ProductCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

func NewProductCatalog() *ProductCatalog {
	return &ProductCatalog{products: make(map[string]domain.Product)}
}

func (c *ProductCatalog) Put(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// Replenish overwrites each line's unit price with the catalog price.
// Whatever price the client sent is discarded.
func (c *ProductCatalog) Replenish(ctx context.Context, s *settlement.Settlement) error {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range s.Items {
		p, ok := c.products[s.Items[i].ProductID]
		if !ok {
			return domain.ErrNotFound
		}
		s.Items[i].UnitPrice = p.Price
	}
	return nil
}

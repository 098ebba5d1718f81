package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/bookshop-io/payments/internal/domain/inventory"
)

type stock struct {
	total  int
	frozen int
}

func (s *stock) available() int { return s.total - s.frozen }

type freeze struct {
	lines     []domain.Line
	createdAt time.Time
}

// InventoryStore keeps stock levels and paymentID-keyed freeze records in
// memory. Frozen quantities stay out of the sellable count until the freeze is
// released or consumed. Release and Consume are no-ops once the freeze record
// is gone, so a duplicated call never double-counts.
type InventoryStore struct {
	mu      sync.RWMutex
	stocks  map[string]*stock
	freezes map[string]*freeze
}

func NewInventoryStore() *InventoryStore {
	return &InventoryStore{
		stocks:  make(map[string]*stock),
		freezes: make(map[string]*freeze),
	}
}

// SetStock sets the total quantity for a product. Used for seeding and tests.
func (s *InventoryStore) SetStock(productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stocks[productID]
	if !ok {
		st = &stock{}
		s.stocks[productID] = st
	}
	st.total = quantity
}

// Available reports the sellable quantity for a product.
func (s *InventoryStore) Available(productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stocks[productID]
	if !ok {
		return 0
	}
	return st.available()
}

func (s *InventoryStore) Freeze(ctx context.Context, paymentID string, lines []domain.Line) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.freezes[paymentID]; exists {
		// already frozen under this payment id; duplicate request
		return nil
	}

	// validate every line before mutating anything
	for _, l := range lines {
		if l.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
		st, ok := s.stocks[l.ProductID]
		if !ok {
			return domain.ErrNotFound
		}
		if st.available() < l.Quantity {
			return domain.ErrInsufficientStock
		}
	}

	for _, l := range lines {
		s.stocks[l.ProductID].frozen += l.Quantity
	}
	s.freezes[paymentID] = &freeze{
		lines:     append([]domain.Line(nil), lines...),
		createdAt: time.Now().UTC(),
	}
	return nil
}

func (s *InventoryStore) Release(ctx context.Context, paymentID string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	fr, ok := s.freezes[paymentID]
	if !ok {
		return nil
	}

	for _, l := range fr.lines {
		if st, exists := s.stocks[l.ProductID]; exists {
			st.frozen -= l.Quantity
		}
	}
	delete(s.freezes, paymentID)
	return nil
}

func (s *InventoryStore) Consume(ctx context.Context, paymentID string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	fr, ok := s.freezes[paymentID]
	if !ok {
		return nil
	}

	for _, l := range fr.lines {
		if st, exists := s.stocks[l.ProductID]; exists {
			st.frozen -= l.Quantity
			st.total -= l.Quantity
		}
	}
	delete(s.freezes, paymentID)
	return nil
}

// FrozenFor reports whether a freeze record exists for the payment. Intended for tests.
func (s *InventoryStore) FrozenFor(paymentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.freezes[paymentID]
	return ok
}

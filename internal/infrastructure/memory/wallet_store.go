package memory

import (
	"context"
	"sync"

	domain "github.com/bookshop-io/payments/internal/domain/wallet"
)

// WalletStore keeps account balances in memory. Amounts are in cents.
type WalletStore struct {
	mu       sync.RWMutex
	balances map[int64]int64
}

func NewWalletStore() *WalletStore {
	return &WalletStore{balances: make(map[int64]int64)}
}

// SetBalance sets an account's balance. Used for seeding and tests.
func (s *WalletStore) SetBalance(accountID int64, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[accountID] = balance
}

func (s *WalletStore) Balance(accountID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[accountID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	return b, nil
}

func (s *WalletStore) Debit(ctx context.Context, accountID int64, amount int64) error {
	_ = ctx
	if amount < 0 {
		return domain.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if b < amount {
		return domain.ErrInsufficientFunds
	}
	s.balances[accountID] = b - amount
	return nil
}

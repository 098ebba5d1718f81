package cache

import (
	"context"
	"errors"

	"github.com/bookshop-io/payments/internal/domain/settlement"
)

// SettlementCache maps a payment id to the settlement used to create it.
// Entries are written at payment creation and evicted explicitly when the
// payment reaches a terminal state; correctness never relies on TTL expiry.
type SettlementCache interface {
	Put(ctx context.Context, paymentID string, s *settlement.Settlement) error
	Get(ctx context.Context, paymentID string) (*settlement.Settlement, error)
	Evict(ctx context.Context, paymentID string) error
}

var ErrCacheMiss = errors.New("cache miss")

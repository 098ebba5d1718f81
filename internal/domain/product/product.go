package product

import (
	"context"
	"errors"

	"github.com/bookshop-io/payments/internal/domain/settlement"
)

var ErrNotFound = errors.New("product: not found")

type Product struct {
	ID    string
	Title string
	// Price is the authoritative unit price in cents.
	Price int64
}

// Catalog supplies authoritative prices. Replenish overwrites every line
// item's unit price in place; client-supplied prices are never trusted.
type Catalog interface {
	Replenish(ctx context.Context, s *settlement.Settlement) error
}

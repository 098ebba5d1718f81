package inventory

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Line is one freeze request entry.
type Line struct {
	ProductID string
	Quantity  int
}

// Freezer withholds, releases, and consumes stock keyed by payment id.
// All three operations are idempotent under retry for the same payment id so a
// duplicated call never double-counts.
type Freezer interface {
	// Freeze withholds the given quantities from sellable stock. On
	// ErrInsufficientStock nothing is withheld.
	Freeze(ctx context.Context, paymentID string, lines []Line) error
	// Release returns a freeze to available stock. Releasing an unknown or
	// already-settled freeze is a no-op.
	Release(ctx context.Context, paymentID string) error
	// Consume converts a freeze into a permanent decrement.
	Consume(ctx context.Context, paymentID string) error
}

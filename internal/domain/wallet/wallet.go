package wallet

import (
	"context"
	"errors"
)

var (
	ErrAccountNotFound   = errors.New("wallet: account not found")
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrInvalidAmount     = errors.New("wallet: amount must be zero or greater")
)

// Service debits an account once a payment is confirmed. Balance storage
// mechanics belong to the implementation.
type Service interface {
	Debit(ctx context.Context, accountID int64, amount int64) error
}

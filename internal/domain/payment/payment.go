package payment

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("payment: not found")
	ErrInvalidState       = errors.New("payment: not in a state that permits this operation")
	ErrInvalidAmount      = errors.New("payment: amount must be zero or greater")
	ErrConflict           = errors.New("payment: already exists")
	ErrSettlementNotFound = errors.New("payment: settlement not found for payment")
)

type Status string

const (
	StatusFrozen    Status = "frozen"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Payment holds funds and frozen stock against a settlement until it is either
// accomplished or cancelled. Frozen is the only non-terminal status.
type Payment struct {
	ID          string
	AccountID   int64
	TotalAmount int64
	Status      Status
	// FreezeRef is the paymentID-keyed tag under which the warehouse holds
	// stock for this payment.
	FreezeRef string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id string, accountID int64, totalAmount int64) (*Payment, error) {
	if totalAmount < 0 {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Payment{
		ID:          id,
		AccountID:   accountID,
		TotalAmount: totalAmount,
		Status:      StatusFrozen,
		FreezeRef:   id,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Terminal reports whether no further transition is permitted.
func (p *Payment) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusCancelled
}

// MarkCompleted moves the payment out of Frozen. The transition is one-way;
// a terminal payment never re-enters Frozen.
func (p *Payment) MarkCompleted() error {
	if p.Status != StatusFrozen {
		return ErrInvalidState
	}
	p.Status = StatusCompleted
	p.touch()
	return nil
}

func (p *Payment) MarkCancelled() error {
	if p.Status != StatusFrozen {
		return ErrInvalidState
	}
	p.Status = StatusCancelled
	p.touch()
	return nil
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Payment) touch() {
	p.UpdatedAt = time.Now().UTC()
}

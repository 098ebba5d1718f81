package payment

import "time"

// PaymentCreatedEvent is emitted when a payment enters Frozen state with stock
// withheld against it.
type PaymentCreatedEvent struct {
	PaymentID   string
	AccountID   int64
	TotalAmount int64
	OccurredAt  time.Time
}

func (PaymentCreatedEvent) EventName() string { return "payment.created" }

func NewPaymentCreatedEvent(p *Payment) PaymentCreatedEvent {
	return PaymentCreatedEvent{
		PaymentID:   p.ID,
		AccountID:   p.AccountID,
		TotalAmount: p.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
}

// PaymentCompletedEvent is emitted when the freeze is consumed and the payment
// reaches Completed.
type PaymentCompletedEvent struct {
	PaymentID  string
	AccountID  int64
	FinalPrice int64
	OccurredAt time.Time
}

func (PaymentCompletedEvent) EventName() string { return "payment.completed" }

func NewPaymentCompletedEvent(p *Payment, finalPrice int64) PaymentCompletedEvent {
	return PaymentCompletedEvent{
		PaymentID:  p.ID,
		AccountID:  p.AccountID,
		FinalPrice: finalPrice,
		OccurredAt: time.Now().UTC(),
	}
}

// PaymentCancelledEvent is emitted when the freeze is released, whether by an
// explicit cancel or by the auto-thaw deadline.
type PaymentCancelledEvent struct {
	PaymentID  string
	AccountID  int64
	Expired    bool
	OccurredAt time.Time
}

func (PaymentCancelledEvent) EventName() string { return "payment.cancelled" }

func NewPaymentCancelledEvent(p *Payment, expired bool) PaymentCancelledEvent {
	return PaymentCancelledEvent{
		PaymentID:  p.ID,
		AccountID:  p.AccountID,
		Expired:    expired,
		OccurredAt: time.Now().UTC(),
	}
}

package payment

import "time"

// Trigger arms and disarms the one-shot auto-thaw deadline per payment id.
// A fired callback runs at most once per arm and never after a disarm.
type Trigger interface {
	Arm(paymentID string, delay time.Duration, fn func())
	Disarm(paymentID string) bool
}

// IDGenerator produces unique payment identifiers.
type IDGenerator interface {
	NewID() string
}

// Package trigger schedules one-shot deadline callbacks keyed by payment id.
package trigger

import (
	"sync"
	"time"

	"github.com/bookshop-io/payments/internal/observability"
)

const componentTrigger = "auto_thaw_trigger"

// Scheduler arms at most one live timer per payment id. Disarming before the
// timer fires skips the callback entirely; the callback itself runs at most
// once per arm.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	log    observability.Logger
}

func NewScheduler(logger observability.Logger) *Scheduler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		log:    logger.With(observability.F("component", componentTrigger)),
	}
}

// Arm schedules fn to run after delay. Re-arming the same payment id replaces
// the previous timer.
func (s *Scheduler) Arm(paymentID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if prev, ok := s.timers[paymentID]; ok {
		prev.Stop()
	}

	s.timers[paymentID] = time.AfterFunc(delay, func() {
		// remove the entry before running so a disarm racing the firing
		// cannot stop a timer that is already spent
		s.mu.Lock()
		delete(s.timers, paymentID)
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return
		}
		s.log.Debug("trigger_fired", observability.F("payment_id", paymentID))
		fn()
	})
	s.log.Debug("trigger_armed",
		observability.F("payment_id", paymentID),
		observability.F("delay", delay.String()),
	)
}

// Disarm cancels the pending timer for the payment id. It reports whether a
// timer was still armed.
func (s *Scheduler) Disarm(paymentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[paymentID]
	if !ok {
		return false
	}
	delete(s.timers, paymentID)
	stopped := t.Stop()
	s.log.Debug("trigger_disarmed",
		observability.F("payment_id", paymentID),
		observability.F("stopped", stopped),
	)
	return stopped
}

// Stop disarms every pending timer and rejects further arming. Fired callbacks
// already past the closed check still complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.log.Info("trigger_scheduler_stopped")
}

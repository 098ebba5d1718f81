package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	dominv "github.com/bookshop-io/payments/internal/domain/inventory"
	domoutbox "github.com/bookshop-io/payments/internal/domain/outbox"
	dompay "github.com/bookshop-io/payments/internal/domain/payment"
	"github.com/bookshop-io/payments/internal/domain/settlement"
	"github.com/bookshop-io/payments/internal/infrastructure/cache"
	"github.com/bookshop-io/payments/internal/observability"
	"github.com/bookshop-io/payments/internal/observability/logctx"
	"github.com/bookshop-io/payments/internal/pkg/keymutex"
)

const (
	componentPaymentService = "payment_service"

	// DefaultThawWindow is how long a payment may stay Frozen before the
	// auto-thaw trigger cancels it.
	DefaultThawWindow = 2 * time.Minute
)

// Service is the payment state machine. It creates payments in Frozen state
// with stock withheld, and moves them to exactly one terminal state:
// Completed (freeze consumed) or Cancelled (freeze released). All transitions
// on one payment id are serialized through a per-id lock, so a user action and
// a firing auto-thaw timer can never both win.
type Service struct {
	repo       dompay.Repository
	freezer    dominv.Freezer
	cache      cache.SettlementCache
	trigger    Trigger
	idGen      IDGenerator
	publisher  domoutbox.Publisher
	locks      *keymutex.KeyMutex
	thawWindow time.Duration

	log        observability.Logger
	timeoutCtr observability.Counter
}

func NewService(
	repo dompay.Repository,
	freezer dominv.Freezer,
	settlements cache.SettlementCache,
	trigger Trigger,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	thawWindow time.Duration,
	tel observability.Observability,
) *Service {
	baseLog := observability.NopLogger()
	metrics := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger()
		metrics = tel.Metrics()
	}
	if thawWindow <= 0 {
		thawWindow = DefaultThawWindow
	}

	return &Service{
		repo:       repo,
		freezer:    freezer,
		cache:      settlements,
		trigger:    trigger,
		idGen:      idGen,
		publisher:  publisher,
		locks:      keymutex.New(),
		thawWindow: thawWindow,
		log:        baseLog.With(observability.F("component", componentPaymentService)),
		timeoutCtr: metrics.Counter(observability.MPaymentTimeouts),
	}
}

// ProducePayment freezes stock for the settlement, persists a Frozen payment,
// and caches the settlement under the new payment id. On any failure nothing
// stays behind: a freeze that cannot be matched by a payment record is
// released again before returning.
func (s *Service) ProducePayment(ctx context.Context, bill *settlement.Settlement) (*dompay.Payment, error) {
	if bill == nil || len(bill.Items) == 0 {
		return nil, settlement.ErrNoItems
	}

	logger := logctx.FromOr(ctx, s.log)
	payID := s.idGen.NewID()

	lines := make([]dominv.Line, 0, len(bill.Items))
	for _, it := range bill.Items {
		lines = append(lines, dominv.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	if err := s.freezer.Freeze(ctx, payID, lines); err != nil {
		logger.Warn("inventory_freeze_failed",
			observability.F("payment_id", payID),
			observability.F("error", err.Error()),
		)
		return nil, fmt.Errorf("produce payment: freeze inventory: %w", err)
	}

	p, err := dompay.New(payID, bill.AccountID, bill.TotalAmount())
	if err != nil {
		_ = s.freezer.Release(ctx, payID)
		return nil, fmt.Errorf("produce payment: %w", err)
	}

	if err := s.repo.Insert(ctx, p); err != nil {
		_ = s.freezer.Release(ctx, payID)
		return nil, fmt.Errorf("produce payment: persist: %w", err)
	}

	if err := s.cache.Put(ctx, payID, bill); err != nil {
		// unwind: a payment without its settlement can never be accomplished
		_ = s.freezer.Release(ctx, payID)
		if cancelErr := p.MarkCancelled(); cancelErr == nil {
			_ = s.repo.Update(ctx, p)
		}
		return nil, fmt.Errorf("produce payment: cache settlement: %w", err)
	}

	s.publish(ctx, dompay.NewPaymentCreatedEvent(p))
	logger.Info("payment_created",
		observability.F("payment_id", p.ID),
		observability.F("account_id", p.AccountID),
		observability.F("total_amount", p.TotalAmount),
	)
	return p, nil
}

// SetupAutoThawedTrigger arms the one-shot deadline that cancels the payment
// if it is still Frozen when the thaw window elapses.
func (s *Service) SetupAutoThawedTrigger(ctx context.Context, p *dompay.Payment) {
	if p == nil {
		return
	}
	payID := p.ID
	s.trigger.Arm(payID, s.thawWindow, func() {
		s.autoThaw(payID)
	})
	logctx.FromOr(ctx, s.log).Debug("auto_thaw_armed",
		observability.F("payment_id", payID),
		observability.F("thaw_window", s.thawWindow.String()),
	)
}

// autoThaw is the timer callback. It goes through the same state-checked
// cancel path as an explicit cancel; losing the race to a user action is a
// plain no-op.
func (s *Service) autoThaw(payID string) {
	ctx := context.Background()

	err := s.cancel(ctx, payID, true)
	switch {
	case err == nil:
		s.timeoutCtr.Add(1)
		if evictErr := s.cache.Evict(ctx, payID); evictErr != nil {
			s.log.Error("auto_thaw_cache_evict_failed",
				observability.F("payment_id", payID),
				observability.F("error", evictErr.Error()),
			)
		}
		s.log.Info("payment_auto_thawed", observability.F("payment_id", payID))
	case errors.Is(err, dompay.ErrInvalidState), errors.Is(err, dompay.ErrNotFound):
		// the payment already left Frozen through another path
		s.log.Debug("auto_thaw_noop", observability.F("payment_id", payID))
	default:
		s.log.Error("auto_thaw_failed",
			observability.F("payment_id", payID),
			observability.F("error", err.Error()),
		)
	}
}

// Accomplish moves a Frozen payment to Completed: disarm the trigger, price
// the cached settlement, consume the freeze, transition. Returns the
// authoritative final price; the wallet debit is the caller's concern.
func (s *Service) Accomplish(ctx context.Context, payID string) (finalPrice int64, err error) {
	unlock := s.locks.Lock(payID)
	defer unlock()

	p, err := s.repo.Get(ctx, payID)
	if err != nil {
		return 0, err
	}
	if p.Status != dompay.StatusFrozen {
		return 0, dompay.ErrInvalidState
	}

	disarmed := s.trigger.Disarm(payID)
	defer func() {
		// a failed attempt leaves the payment Frozen; it must keep its
		// deadline rather than stay frozen forever
		if err != nil && disarmed {
			s.trigger.Arm(payID, s.thawWindow, func() { s.autoThaw(payID) })
		}
	}()

	bill, err := s.cache.Get(ctx, payID)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return 0, dompay.ErrSettlementNotFound
		}
		return 0, fmt.Errorf("accomplish: read settlement: %w", err)
	}
	finalPrice = bill.TotalAmount()

	if err = s.freezer.Consume(ctx, payID); err != nil {
		return 0, fmt.Errorf("accomplish: consume inventory: %w", err)
	}

	if err = p.MarkCompleted(); err != nil {
		return 0, err
	}
	if err = s.repo.Update(ctx, p); err != nil {
		return 0, fmt.Errorf("accomplish: persist: %w", err)
	}

	s.publish(ctx, dompay.NewPaymentCompletedEvent(p, finalPrice))
	logctx.FromOr(ctx, s.log).Info("payment_completed",
		observability.F("payment_id", payID),
		observability.F("final_price", finalPrice),
	)
	return finalPrice, nil
}

// Cancel moves a Frozen payment to Cancelled and releases its freeze.
// Cancelling a payment that is already terminal is reported as
// ErrInvalidState, not tolerated silently.
func (s *Service) Cancel(ctx context.Context, payID string) error {
	return s.cancel(ctx, payID, false)
}

func (s *Service) cancel(ctx context.Context, payID string, expired bool) error {
	unlock := s.locks.Lock(payID)
	defer unlock()

	p, err := s.repo.Get(ctx, payID)
	if err != nil {
		return err
	}
	if p.Status != dompay.StatusFrozen {
		return dompay.ErrInvalidState
	}

	s.trigger.Disarm(payID)

	if err := s.freezer.Release(ctx, payID); err != nil {
		return fmt.Errorf("cancel: release inventory: %w", err)
	}

	if err := p.MarkCancelled(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("cancel: persist: %w", err)
	}

	s.publish(ctx, dompay.NewPaymentCancelledEvent(p, expired))
	logctx.FromOr(ctx, s.log).Info("payment_cancelled",
		observability.F("payment_id", payID),
		observability.F("expired", expired),
	)
	return nil
}

// Get returns the current payment record.
func (s *Service) Get(ctx context.Context, payID string) (*dompay.Payment, error) {
	return s.repo.Get(ctx, payID)
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

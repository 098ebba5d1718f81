package payment

import (
	"context"
	"fmt"
	"time"

	dompay "github.com/bookshop-io/payments/internal/domain/payment"
	domproduct "github.com/bookshop-io/payments/internal/domain/product"
	"github.com/bookshop-io/payments/internal/domain/settlement"
	domwallet "github.com/bookshop-io/payments/internal/domain/wallet"
	"github.com/bookshop-io/payments/internal/infrastructure/cache"
	"github.com/bookshop-io/payments/internal/observability"
	"github.com/bookshop-io/payments/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	applicationService = "payment-application"
	useCaseExecute     = "payment.execute_by_settlement"
	useCaseAccomplish  = "payment.accomplish"
	useCaseCancel      = "payment.cancel"
	spanPrefix         = "UC."
	executeSpanName    = "ExecuteBySettlement"
	accomplishSpanName = "AccomplishPayment"
	cancelSpanName     = "CancelPayment"
)

// ApplicationService is the orchestration entry point for the payment saga.
// It sequences price enrichment, the state machine, the wallet, and
// settlement-cache eviction; eviction is always the last step so a failure
// midway never discards the pricing data a compensating action would need.
type ApplicationService struct {
	payments *Service
	catalog  domproduct.Catalog
	wallet   domwallet.Service
	cache    cache.SettlementCache

	tel        observability.Observability
	log        observability.Logger
	tracer     observability.Tracer
	reqCounter observability.Counter
	durHist    observability.Histogram
	debitFails observability.Counter
}

func NewApplicationService(
	payments *Service,
	catalog domproduct.Catalog,
	wallet domwallet.Service,
	settlements cache.SettlementCache,
	tel observability.Observability,
) *ApplicationService {
	baseLog := observability.NopLogger().With(
		observability.F("service", applicationService),
	)
	tracer := observability.NopTracer()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger().With(
			observability.F("service", applicationService),
		)
		tracer = tel.Tracer()
		metricsProvider = tel.Metrics()
	}

	return &ApplicationService{
		payments:   payments,
		catalog:    catalog,
		wallet:     wallet,
		cache:      settlements,
		tel:        tel,
		log:        baseLog,
		tracer:     tracer,
		reqCounter: metricsProvider.Counter(observability.MUsecaseRequests),
		durHist:    metricsProvider.Histogram(observability.MUsecaseDuration),
		debitFails: metricsProvider.Counter(observability.MPaymentDebitFails),
	}
}

// ExecuteBySettlement turns a settlement into a Frozen payment with an armed
// auto-thaw deadline. Prices are replenished from the catalog before anything
// else happens; totals computed from client-supplied prices never reach the
// state machine.
func (a *ApplicationService) ExecuteBySettlement(ctx context.Context, bill *settlement.Settlement) (_ *dompay.Payment, err error) {
	logger := logctx.FromOr(ctx, a.log).With(
		observability.F("use_case", useCaseExecute),
	)

	ctx, span := a.tracer.Start(ctx, spanPrefix+executeSpanName,
		attribute.String("use_case", useCaseExecute),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var payID string

	defer func() {
		a.finish(ctx, span, logger, useCaseExecute, outcome, statusText, start, err,
			observability.F("payment_id", payID),
		)
	}()

	if bill == nil {
		outcome, statusText = "error", "SETTLEMENT_REQUIRED"
		return nil, settlement.ErrNoItems
	}

	if err = a.catalog.Replenish(ctx, bill); err != nil {
		outcome, statusText = "error", "PRICE_ENRICHMENT_FAILED"
		return nil, fmt.Errorf("execute settlement: replenish prices: %w", err)
	}

	p, err := a.payments.ProducePayment(ctx, bill)
	if err != nil {
		outcome, statusText = "error", "PRODUCE_PAYMENT_FAILED"
		return nil, err
	}
	payID = p.ID

	if span != nil {
		span.SetAttributes(
			attribute.String("payment.id", p.ID),
			attribute.Int64("payment.total_amount", p.TotalAmount),
		)
	}

	a.payments.SetupAutoThawedTrigger(ctx, p)
	return p, nil
}

// AccomplishPayment completes the payment and debits the account for the
// authoritative final price. The cache entry is evicted only after both the
// transition and the debit succeeded; on a debit failure the entry is kept for
// reconciliation of the already-consumed stock.
func (a *ApplicationService) AccomplishPayment(ctx context.Context, accountID int64, payID string) (err error) {
	logger := logctx.FromOr(ctx, a.log).With(
		observability.F("use_case", useCaseAccomplish),
		observability.F("payment_id", payID),
		observability.F("account_id", accountID),
	)

	ctx, span := a.tracer.Start(ctx, spanPrefix+accomplishSpanName,
		attribute.String("use_case", useCaseAccomplish),
		attribute.String("payment.id", payID),
		attribute.Int64("account.id", accountID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		a.finish(ctx, span, logger, useCaseAccomplish, outcome, statusText, start, err)
	}()

	finalPrice, err := a.payments.Accomplish(ctx, payID)
	if err != nil {
		outcome, statusText = "error", "ACCOMPLISH_FAILED"
		return err
	}

	if err = a.wallet.Debit(ctx, accountID, finalPrice); err != nil {
		// the payment is already Completed and the stock consumed; keep the
		// cache entry so reconciliation can recompute the owed amount
		outcome, statusText = "error", "WALLET_DEBIT_FAILED"
		a.debitFails.Add(1)
		logger.Error("wallet_debit_failed_after_completion",
			observability.F("final_price", finalPrice),
			observability.F("error", err.Error()),
		)
		return fmt.Errorf("accomplish payment: debit wallet: %w", err)
	}

	if err = a.cache.Evict(ctx, payID); err != nil {
		outcome, statusText = "error", "CACHE_EVICT_FAILED"
		return fmt.Errorf("accomplish payment: evict settlement: %w", err)
	}

	return nil
}

// CancelPayment releases the payment's freeze and evicts its settlement.
func (a *ApplicationService) CancelPayment(ctx context.Context, payID string) (err error) {
	logger := logctx.FromOr(ctx, a.log).With(
		observability.F("use_case", useCaseCancel),
		observability.F("payment_id", payID),
	)

	ctx, span := a.tracer.Start(ctx, spanPrefix+cancelSpanName,
		attribute.String("use_case", useCaseCancel),
		attribute.String("payment.id", payID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		a.finish(ctx, span, logger, useCaseCancel, outcome, statusText, start, err)
	}()

	if err = a.payments.Cancel(ctx, payID); err != nil {
		outcome, statusText = "error", "CANCEL_FAILED"
		return err
	}

	if err = a.cache.Evict(ctx, payID); err != nil {
		outcome, statusText = "error", "CACHE_EVICT_FAILED"
		return fmt.Errorf("cancel payment: evict settlement: %w", err)
	}

	return nil
}

// GetPayment returns the current state of a payment.
func (a *ApplicationService) GetPayment(ctx context.Context, payID string) (*dompay.Payment, error) {
	return a.payments.Get(ctx, payID)
}

func (a *ApplicationService) finish(
	ctx context.Context,
	span trace.Span,
	logger observability.Logger,
	useCase, outcome, statusText string,
	start time.Time,
	err error,
	extra ...observability.Field,
) {
	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()
	}

	latency := time.Since(start).Seconds()
	if a.reqCounter != nil {
		a.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
	}
	if a.durHist != nil {
		a.durHist.Observe(latency,
			observability.L("use_case", useCase),
		)
	}

	fields := []observability.Field{
		observability.F("outcome", outcome),
		observability.F("status", statusText),
		observability.F("latency_seconds", latency),
	}
	fields = append(fields, extra...)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	logger.Info("use_case_done", fields...)
}

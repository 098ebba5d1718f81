package payment

import (
	"context"

	domoutbox "github.com/bookshop-io/payments/internal/domain/outbox"
	dompay "github.com/bookshop-io/payments/internal/domain/payment"
	"github.com/bookshop-io/payments/internal/observability"
	"github.com/bookshop-io/payments/internal/observability/logctx"
)

const auditWorker = "payment_audit_worker"

// AuditWorker consumes payment lifecycle events from the bus and turns them
// into an audit log plus per-event counters.
type AuditWorker struct {
	subscriber domoutbox.Subscriber

	log      observability.Logger
	eventCtr observability.Counter
}

func NewAuditWorker(subscriber domoutbox.Subscriber, tel observability.Observability) *AuditWorker {
	baseLog := observability.NopLogger()
	metrics := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger()
		metrics = tel.Metrics()
	}
	return &AuditWorker{
		subscriber: subscriber,
		log:        baseLog.With(observability.F("component", auditWorker)),
		eventCtr:   metrics.Counter(observability.MPaymentEvents),
	}
}

func (w *AuditWorker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(dompay.PaymentCreatedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(dompay.PaymentCompletedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(dompay.PaymentCancelledEvent{}.EventName(), w.handle)
}

func (w *AuditWorker) handle(ctx context.Context, e domoutbox.Event) error {
	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("event", e.EventName()),
	)

	fields := []observability.Field{}
	cause := "caller"

	switch evt := e.(type) {
	case dompay.PaymentCreatedEvent:
		fields = append(fields,
			observability.F("payment_id", evt.PaymentID),
			observability.F("account_id", evt.AccountID),
			observability.F("total_amount", evt.TotalAmount),
		)
	case dompay.PaymentCompletedEvent:
		fields = append(fields,
			observability.F("payment_id", evt.PaymentID),
			observability.F("account_id", evt.AccountID),
			observability.F("final_price", evt.FinalPrice),
		)
	case dompay.PaymentCancelledEvent:
		fields = append(fields,
			observability.F("payment_id", evt.PaymentID),
			observability.F("expired", evt.Expired),
		)
		if evt.Expired {
			cause = "timeout"
		}
	default:
		return nil
	}

	w.eventCtr.Add(1,
		observability.L("event", e.EventName()),
		observability.L("cause", cause),
	)
	logger.Info("payment_event", fields...)
	return nil
}

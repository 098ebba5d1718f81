package observability

const (
	MUsecaseRequests     MetricKey = "usecase_requests_total"
	MUsecaseDuration     MetricKey = "usecase_duration_seconds"
	MHTTPRequests        MetricKey = "http_requests_total"
	MHTTPRequestDuration MetricKey = "http_request_duration_seconds"
	MPaymentTimeouts     MetricKey = "payment_timeouts_total"
	MPaymentDebitFails   MetricKey = "payment_debit_failures_total"
	MPaymentEvents       MetricKey = "payment_events_total"
)

package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apppay "github.com/bookshop-io/payments/internal/application/payment"
	domaininventory "github.com/bookshop-io/payments/internal/domain/inventory"
	domainpayment "github.com/bookshop-io/payments/internal/domain/payment"
	domainproduct "github.com/bookshop-io/payments/internal/domain/product"
	domainsettlement "github.com/bookshop-io/payments/internal/domain/settlement"
	domainwallet "github.com/bookshop-io/payments/internal/domain/wallet"
	"github.com/bookshop-io/payments/internal/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
)

type Handler struct {
	app *apppay.ApplicationService
	log observability.Logger
	tel observability.Observability
}

func NewHandler(app *apppay.ApplicationService, logger observability.Logger, tel observability.Observability) *Handler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = observability.NopLogger()
	}
	return &Handler{
		app: app,
		log: baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel: tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.withTrace)
	r.Use(h.withRequestLogger)
	r.Use(h.withHTTPMetrics)
	r.Use(h.withAccessLog)

	r.Post("/payments", h.handleCreatePayment)
	r.Post("/payments/{payID}/accomplish", h.handleAccomplishPayment)
	r.Post("/payments/{payID}/cancel", h.handleCancelPayment)
	r.Get("/payments/{payID}", h.handleGetPayment)
	r.Get("/health", h.handleHealth)

	return r
}

type settlementItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// unit_price is accepted but discarded; the catalog is authoritative
	UnitPrice int64 `json:"unit_price"`
}

type createPaymentRequest struct {
	AccountID int64                   `json:"account_id"`
	Items     []settlementItemRequest `json:"items"`
}

type paymentResponse struct {
	PaymentID   string               `json:"payment_id"`
	AccountID   int64                `json:"account_id"`
	TotalAmount int64                `json:"total_amount"`
	Status      domainpayment.Status `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
}

func toPaymentResponse(p *domainpayment.Payment) paymentResponse {
	return paymentResponse{
		PaymentID:   p.ID,
		AccountID:   p.AccountID,
		TotalAmount: p.TotalAmount,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
}

func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items := make([]domainsettlement.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domainsettlement.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	bill, err := domainsettlement.New(req.AccountID, items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := h.app.ExecuteBySettlement(r.Context(), bill)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}

type accomplishPaymentRequest struct {
	AccountID int64 `json:"account_id"`
}

func (h *Handler) handleAccomplishPayment(w http.ResponseWriter, r *http.Request) {
	payID := chi.URLParam(r, "payID")

	var req accomplishPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.app.AccomplishPayment(r.Context(), req.AccountID, payID); err != nil {
		writeDomainError(w, err)
		return
	}

	p, err := h.app.GetPayment(r.Context(), payID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	payID := chi.URLParam(r, "payID")

	if err := h.app.CancelPayment(r.Context(), payID); err != nil {
		writeDomainError(w, err)
		return
	}

	p, err := h.app.GetPayment(r.Context(), payID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.GetPayment(r.Context(), chi.URLParam(r, "payID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps domain errors onto HTTP statuses. An invalid-state
// failure (lost race, already terminal) is distinct from an unknown payment.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainpayment.ErrNotFound),
		errors.Is(err, domainpayment.ErrSettlementNotFound),
		errors.Is(err, domainproduct.ErrNotFound),
		errors.Is(err, domaininventory.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domainpayment.ErrInvalidState),
		errors.Is(err, domaininventory.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domainwallet.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err)
	case errors.Is(err, domainsettlement.ErrNoItems),
		errors.Is(err, domainsettlement.ErrInvalidQuantity),
		errors.Is(err, domainsettlement.ErrInvalidAccount),
		errors.Is(err, domaininventory.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

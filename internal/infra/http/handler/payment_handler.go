package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/internal/infra/http/middleware"
	"github.com/meterly/api/pkg/apierror"
	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/logger"
	"github.com/meterly/api/pkg/pagination"
	"github.com/meterly/api/pkg/validator"
)

// PaymentHandler handles payment HTTP requests.
type PaymentHandler struct {
	service   *app.PaymentService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(svc *app.PaymentService, v *validator.Validator, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID               string         `json:"id"`
	TenantID         string         `json:"tenant_id"`
	AccountID        string         `json:"account_id"`
	SubscriptionID   string         `json:"subscription_id,omitempty"`
	Amount           int64          `json:"amount"`
	RefundedAmount   int64          `json:"refunded_amount"`
	Currency         string         `json:"currency"`
	Status           string         `json:"status"`
	GatewayPaymentID string         `json:"gateway_payment_id,omitempty"`
	FailureReason    string         `json:"failure_reason,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// RefundPaymentRequest represents the request to refund a payment.
type RefundPaymentRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

func toPaymentResponse(p *payment.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:               p.ID().String(),
		TenantID:         p.TenantID().String(),
		AccountID:        p.AccountID().String(),
		Amount:           p.Amount(),
		RefundedAmount:   p.RefundedAmount(),
		Currency:         p.Currency(),
		Status:           p.Status().String(),
		GatewayPaymentID: p.GatewayPaymentID(),
		FailureReason:    p.FailureReason(),
		Metadata:         p.Metadata(),
		CreatedAt:        p.CreatedAt(),
		UpdatedAt:        p.UpdatedAt(),
	}
	if sid := p.SubscriptionID(); sid != nil {
		resp.SubscriptionID = sid.String()
	}
	return resp
}

// Get handles GET /api/v1/payments/{paymentID}
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPayment(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !p.TenantID().Equals(middleware.GetTenantID(r.Context())) {
		apierror.NotFound("Payment").WriteJSON(w)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

// ListByAccount handles GET /api/v1/accounts/{accountID}/payments
func (h *PaymentHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListByAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeList(w, r, payments)
}

// ListBySubscription handles GET /api/v1/subscriptions/{subscriptionID}/payments
func (h *PaymentHandler) ListBySubscription(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListBySubscription(r.Context(), chi.URLParam(r, "subscriptionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeList(w, r, payments)
}

// Refund handles POST /api/v1/payments/{paymentID}/refund
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req RefundPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	p, err := h.service.GetPayment(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !p.TenantID().Equals(middleware.GetTenantID(r.Context())) {
		apierror.NotFound("Payment").WriteJSON(w)
		return
	}

	refunded, err := h.service.RefundPayment(r.Context(), chi.URLParam(r, "paymentID"), req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(refunded))
}

func (h *PaymentHandler) writeList(w http.ResponseWriter, r *http.Request, payments []*payment.Payment) {
	tenantID := middleware.GetTenantID(r.Context())
	response := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		if !p.TenantID().Equals(tenantID) {
			continue
		}
		response = append(response, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, paginate(response, pagination.FromQuery(r.URL.Query())))
}

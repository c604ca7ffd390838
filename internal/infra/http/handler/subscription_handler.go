package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/internal/infra/http/middleware"
	"github.com/meterly/api/pkg/apierror"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/logger"
	"github.com/meterly/api/pkg/pagination"
	"github.com/meterly/api/pkg/validator"
)

// SubscriptionHandler handles subscription HTTP requests.
type SubscriptionHandler struct {
	service   *app.SubscriptionService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(svc *app.SubscriptionService, v *validator.Validator, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// SubscriptionResponse represents a subscription in API responses.
type SubscriptionResponse struct {
	ID                 string         `json:"id"`
	TenantID           string         `json:"tenant_id"`
	AccountID          string         `json:"account_id"`
	CustomerID         string         `json:"customer_id"`
	PlanID             string         `json:"plan_id"`
	Status             string         `json:"status"`
	Seats              int            `json:"seats"`
	CurrentPeriodStart time.Time      `json:"current_period_start"`
	CurrentPeriodEnd   time.Time      `json:"current_period_end"`
	CancelledAt        *time.Time     `json:"cancelled_at,omitempty"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// UpgradeSubscriptionResponse reports the result of a mid-period
// upgrade, including the prorated charge.
type UpgradeSubscriptionResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	AmountDue    int64                `json:"amount_due"`
	PaymentID    string               `json:"payment_id,omitempty"`
}

// CreateSubscriptionRequest represents the request to create a
// subscription.
type CreateSubscriptionRequest struct {
	AccountID  string         `json:"account_id" validate:"required,uuid"`
	CustomerID string         `json:"customer_id" validate:"required,uuid"`
	PlanID     string         `json:"plan_id" validate:"required,uuid"`
	Seats      int            `json:"seats" validate:"min=1"`
	Metadata   map[string]any `json:"metadata" validate:"omitempty"`
}

// CancelSubscriptionRequest represents the request to cancel a
// subscription.
type CancelSubscriptionRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// UpgradeSubscriptionRequest represents the request to upgrade a
// subscription to a new plan mid-period.
type UpgradeSubscriptionRequest struct {
	NewPlanID string `json:"new_plan_id" validate:"required,uuid"`
}

func toSubscriptionResponse(s *subscription.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                 s.ID().String(),
		TenantID:           s.TenantID().String(),
		AccountID:          s.AccountID().String(),
		CustomerID:         s.CustomerID().String(),
		PlanID:             s.PlanID().String(),
		Status:             s.Status().String(),
		Seats:              s.Seats(),
		CurrentPeriodStart: s.CurrentPeriodStart(),
		CurrentPeriodEnd:   s.CurrentPeriodEnd(),
		CancelledAt:        s.CancelledAt(),
		CancellationReason: s.CancellationReason(),
		Metadata:           s.Metadata(),
		CreatedAt:          s.CreatedAt(),
		UpdatedAt:          s.UpdatedAt(),
	}
}

// Create handles POST /api/v1/subscriptions
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req CreateSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	sub, err := h.service.CreateSubscription(r.Context(), app.CreateSubscriptionInput{
		TenantID:   tenantID.String(),
		AccountID:  req.AccountID,
		CustomerID: req.CustomerID,
		PlanID:     req.PlanID,
		Seats:      req.Seats,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

// Get handles GET /api/v1/subscriptions/{subscriptionID}
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.GetSubscription(r.Context(), chi.URLParam(r, "subscriptionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !sub.TenantID().Equals(middleware.GetTenantID(r.Context())) {
		apierror.NotFound("Subscription").WriteJSON(w)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// ListByAccount handles GET /api/v1/accounts/{accountID}/subscriptions
func (h *SubscriptionHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	subs, err := h.service.ListByAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := make([]SubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		if !s.TenantID().Equals(tenantID) {
			continue
		}
		response = append(response, toSubscriptionResponse(s))
	}
	writeJSON(w, http.StatusOK, paginate(response, pagination.FromQuery(r.URL.Query())))
}

// Cancel handles POST /api/v1/subscriptions/{subscriptionID}/cancel
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	sub, err := h.service.CancelSubscription(r.Context(), chi.URLParam(r, "subscriptionID"), req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// Upgrade handles POST /api/v1/subscriptions/{subscriptionID}/upgrade
func (h *SubscriptionHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	var req UpgradeSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	out, err := h.service.UpgradeSubscription(r.Context(), app.UpgradeSubscriptionInput{
		SubscriptionID: chi.URLParam(r, "subscriptionID"),
		NewPlanID:      req.NewPlanID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := UpgradeSubscriptionResponse{
		Subscription: toSubscriptionResponse(out.Subscription),
		AmountDue:    out.AmountDue,
	}
	if out.Payment != nil {
		resp.PaymentID = out.Payment.ID().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

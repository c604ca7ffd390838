package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/internal/infra/http/middleware"
	"github.com/meterly/api/pkg/apierror"
	"github.com/meterly/api/pkg/domain/usage"
	"github.com/meterly/api/pkg/logger"
	"github.com/meterly/api/pkg/pagination"
	"github.com/meterly/api/pkg/validator"
)

// UsageHandler handles usage metering HTTP requests.
type UsageHandler struct {
	service   *app.UsageService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(svc *app.UsageService, v *validator.Validator, log *logger.Logger) *UsageHandler {
	return &UsageHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// UsageEventResponse represents a usage event in API responses.
type UsageEventResponse struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	SubscriptionID string         `json:"subscription_id"`
	CustomerID     string         `json:"customer_id,omitempty"`
	FeatureCode    string         `json:"feature_code"`
	Quantity       int64          `json:"quantity"`
	IdempotencyKey string         `json:"idempotency_key"`
	RecordedAt     time.Time      `json:"recorded_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// UsageSummaryResponse is the per-feature usage total for the current
// billing period.
type UsageSummaryResponse struct {
	FeatureCode string `json:"feature_code"`
	Total       int64  `json:"total"`
}

// RecordUsageRequest represents the request to record a usage event.
type RecordUsageRequest struct {
	SubscriptionID string         `json:"subscription_id" validate:"required,uuid"`
	CustomerID     string         `json:"customer_id" validate:"omitempty,uuid"`
	FeatureCode    string         `json:"feature_code" validate:"required,feature_code"`
	Quantity       int64          `json:"quantity" validate:"min=1"`
	IdempotencyKey string         `json:"idempotency_key" validate:"required,max=255"`
	RecordedAt     *time.Time     `json:"recorded_at" validate:"omitempty"`
	Metadata       map[string]any `json:"metadata" validate:"omitempty"`
}

func toUsageEventResponse(e *usage.Event) UsageEventResponse {
	resp := UsageEventResponse{
		ID:             e.ID().String(),
		TenantID:       e.TenantID().String(),
		SubscriptionID: e.SubscriptionID().String(),
		FeatureCode:    e.FeatureCode(),
		Quantity:       e.Quantity(),
		IdempotencyKey: e.IdempotencyKey(),
		RecordedAt:     e.RecordedAt(),
		Metadata:       e.Metadata(),
		CreatedAt:      e.CreatedAt(),
	}
	if !e.CustomerID().IsZero() {
		resp.CustomerID = e.CustomerID().String()
	}
	return resp
}

// Record handles POST /api/v1/usage
func (h *UsageHandler) Record(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req RecordUsageRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	input := app.RecordUsageInput{
		TenantID:       tenantID.String(),
		SubscriptionID: req.SubscriptionID,
		CustomerID:     req.CustomerID,
		FeatureCode:    req.FeatureCode,
		Quantity:       req.Quantity,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	}
	if req.RecordedAt != nil {
		input.RecordedAt = *req.RecordedAt
	}

	e, err := h.service.RecordUsage(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// The same status either way; a replayed idempotency key returns
	// the original event body.
	writeJSON(w, http.StatusCreated, toUsageEventResponse(e))
}

// Summary handles GET /api/v1/subscriptions/{subscriptionID}/usage/summary
func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.GetUsageSummary(r.Context(), chi.URLParam(r, "subscriptionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := make([]UsageSummaryResponse, len(totals))
	for i, t := range totals {
		response[i] = UsageSummaryResponse{FeatureCode: t.FeatureCode, Total: t.Total}
	}
	writeJSON(w, http.StatusOK, response)
}

// ListEvents handles GET /api/v1/subscriptions/{subscriptionID}/usage
func (h *UsageHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierror.BadRequest("Invalid since timestamp, expected RFC3339").WriteJSON(w)
			return
		}
		since = parsed
	}

	events, err := h.service.ListEvents(r.Context(), chi.URLParam(r, "subscriptionID"), since)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := make([]UsageEventResponse, len(events))
	for i, e := range events {
		response[i] = toUsageEventResponse(e)
	}
	writeJSON(w, http.StatusOK, paginate(response, pagination.FromQuery(r.URL.Query())))
}

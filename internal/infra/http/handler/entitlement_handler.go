package handler

import (
	"net/http"

	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/internal/infra/http/middleware"
	"github.com/meterly/api/pkg/logger"
)

// EntitlementHandler answers "what can this tenant or customer use
// right now" queries.
type EntitlementHandler struct {
	service *app.EntitlementService
	logger  *logger.Logger
}

// NewEntitlementHandler creates a new entitlement handler.
func NewEntitlementHandler(svc *app.EntitlementService, log *logger.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		service: svc,
		logger:  log,
	}
}

// Get handles GET /api/v1/entitlements. An optional customer_id query
// parameter narrows the answer to one customer's subscriptions.
func (h *EntitlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	customerID := r.URL.Query().Get("customer_id")

	set, err := h.service.GetEntitlements(r.Context(), tenantID.String(), customerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

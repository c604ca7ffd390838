package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/pkg/apierror"
	"github.com/meterly/api/pkg/domain/tenant"
	"github.com/meterly/api/pkg/logger"
	"github.com/meterly/api/pkg/pagination"
	"github.com/meterly/api/pkg/validator"
)

// TenantHandler handles tenant-related HTTP requests.
type TenantHandler struct {
	service   *app.TenantService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewTenantHandler creates a new tenant handler.
func NewTenantHandler(svc *app.TenantService, v *validator.Validator, log *logger.Logger) *TenantHandler {
	return &TenantHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// TenantResponse represents a tenant in API responses.
type TenantResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	EmailDomain string         `json:"email_domain,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CreateTenantRequest represents the request to create a tenant.
type CreateTenantRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	EmailDomain string `json:"email_domain" validate:"omitempty,fqdn"`
}

// UpdateTenantRequest represents a partial tenant update.
type UpdateTenantRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=255"`
	EmailDomain *string        `json:"email_domain" validate:"omitempty,fqdn"`
	Metadata    map[string]any `json:"metadata" validate:"omitempty"`
}

func toTenantResponse(t *tenant.Tenant) TenantResponse {
	return TenantResponse{
		ID:          t.ID().String(),
		Name:        t.Name(),
		EmailDomain: t.EmailDomain(),
		Metadata:    t.Metadata(),
		CreatedAt:   t.CreatedAt(),
	}
}

// Create handles POST /api/v1/tenants
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	t, err := h.service.CreateTenant(r.Context(), app.CreateTenantInput{
		Name:        req.Name,
		EmailDomain: req.EmailDomain,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTenantResponse(t))
}

// Get handles GET /api/v1/tenants/{tenantID}
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTenant(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(t))
}

// List handles GET /api/v1/tenants
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.ListTenants(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := make([]TenantResponse, len(tenants))
	for i, t := range tenants {
		response[i] = toTenantResponse(t)
	}
	writeJSON(w, http.StatusOK, paginate(response, pagination.FromQuery(r.URL.Query())))
}

// Update handles PATCH /api/v1/tenants/{tenantID}
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	t, err := h.service.UpdateTenant(r.Context(), chi.URLParam(r, "tenantID"), app.UpdateTenantInput{
		Name:        req.Name,
		EmailDomain: req.EmailDomain,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(t))
}

// Delete handles DELETE /api/v1/tenants/{tenantID}
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTenant(r.Context(), chi.URLParam(r, "tenantID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/internal/infra/http/middleware"
	"github.com/meterly/api/pkg/apierror"
	"github.com/meterly/api/pkg/domain/product"
	"github.com/meterly/api/pkg/logger"
	"github.com/meterly/api/pkg/pagination"
	"github.com/meterly/api/pkg/validator"
)

// ProductHandler handles product HTTP requests.
type ProductHandler struct {
	service   *app.ProductService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(svc *app.ProductService, v *validator.Validator, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// ProductResponse represents a product in API responses. The API key is
// only included on creation and rotation.
type ProductResponse struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	APIKey      string         `json:"api_key,omitempty"`
	Active      bool           `json:"active"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CreateProductRequest represents the request to create a product.
type CreateProductRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

// UpdateProductRequest represents a partial product update.
type UpdateProductRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string        `json:"description" validate:"omitempty,max=1000"`
	Metadata    map[string]any `json:"metadata" validate:"omitempty"`
}

func toProductResponse(p *product.Product, includeKey bool) ProductResponse {
	resp := ProductResponse{
		ID:          p.ID().String(),
		TenantID:    p.TenantID().String(),
		Name:        p.Name(),
		Description: p.Description(),
		Active:      p.Active(),
		Metadata:    p.Metadata(),
		CreatedAt:   p.CreatedAt(),
	}
	if includeKey {
		resp.APIKey = p.APIKey()
	}
	return resp
}

// Create handles POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), app.CreateProductInput{
		TenantID:    tenantID.String(),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(p, true))
}

// Get handles GET /api/v1/products/{productID}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !p.TenantID().Equals(middleware.GetTenantID(r.Context())) {
		apierror.NotFound("Product").WriteJSON(w)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p, false))
}

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	products, err := h.service.ListProducts(r.Context(), tenantID.String())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := make([]ProductResponse, len(products))
	for i, p := range products {
		response[i] = toProductResponse(p, false)
	}
	writeJSON(w, http.StatusOK, paginate(response, pagination.FromQuery(r.URL.Query())))
}

// Update handles PATCH /api/v1/products/{productID}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "productID"), app.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p, false))
}

// RotateAPIKey handles POST /api/v1/products/{productID}/rotate-key
func (h *ProductHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.RotateAPIKey(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p, true))
}

// Deactivate handles POST /api/v1/products/{productID}/deactivate
func (h *ProductHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.DeactivateProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p, false))
}

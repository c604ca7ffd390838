package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/pkg/apierror"
	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/logger"
	"github.com/meterly/api/pkg/pagination"
	"github.com/meterly/api/pkg/validator"
)

// FeatureHandler handles feature HTTP requests.
type FeatureHandler struct {
	service   *app.FeatureService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewFeatureHandler creates a new feature handler.
func NewFeatureHandler(svc *app.FeatureService, v *validator.Validator, log *logger.Logger) *FeatureHandler {
	return &FeatureHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// FeatureResponse represents a feature in API responses.
type FeatureResponse struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"product_id"`
	Name        string         `json:"name"`
	Code        string         `json:"code"`
	Description string         `json:"description,omitempty"`
	FeatureType string         `json:"feature_type"`
	ChargeModel string         `json:"charge_model"`
	ServiceURL  string         `json:"service_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CreateFeatureRequest represents the request to create a feature.
type CreateFeatureRequest struct {
	Name        string         `json:"name" validate:"required,min=1,max=255"`
	Code        string         `json:"code" validate:"required,feature_code,max=100"`
	Description string         `json:"description" validate:"omitempty,max=1000"`
	FeatureType string         `json:"feature_type" validate:"required,feature_type"`
	ChargeModel string         `json:"charge_model" validate:"required,charge_model"`
	ServiceURL  string         `json:"service_url" validate:"omitempty,url"`
	Metadata    map[string]any `json:"metadata" validate:"omitempty"`
}

// UpdateFeatureRequest represents a partial feature update. Type and
// code are immutable.
type UpdateFeatureRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string        `json:"description" validate:"omitempty,max=1000"`
	ChargeModel *string        `json:"charge_model" validate:"omitempty,charge_model"`
	ServiceURL  *string        `json:"service_url" validate:"omitempty,url"`
	Metadata    map[string]any `json:"metadata" validate:"omitempty"`
}

func toFeatureResponse(f *feature.Feature) FeatureResponse {
	return FeatureResponse{
		ID:          f.ID().String(),
		ProductID:   f.ProductID().String(),
		Name:        f.Name(),
		Code:        f.Code(),
		Description: f.Description(),
		FeatureType: f.FeatureType().String(),
		ChargeModel: f.ChargeModel().String(),
		ServiceURL:  f.ServiceURL(),
		Metadata:    f.Metadata(),
		CreatedAt:   f.CreatedAt(),
	}
}

// Create handles POST /api/v1/products/{productID}/features
func (h *FeatureHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFeatureRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	f, err := h.service.CreateFeature(r.Context(), app.CreateFeatureInput{
		ProductID:   chi.URLParam(r, "productID"),
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		FeatureType: req.FeatureType,
		ChargeModel: req.ChargeModel,
		ServiceURL:  req.ServiceURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFeatureResponse(f))
}

// Get handles GET /api/v1/features/{featureID}
func (h *FeatureHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.GetFeature(r.Context(), chi.URLParam(r, "featureID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeatureResponse(f))
}

// List handles GET /api/v1/products/{productID}/features
func (h *FeatureHandler) List(w http.ResponseWriter, r *http.Request) {
	features, err := h.service.ListFeatures(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := make([]FeatureResponse, len(features))
	for i, f := range features {
		response[i] = toFeatureResponse(f)
	}
	writeJSON(w, http.StatusOK, paginate(response, pagination.FromQuery(r.URL.Query())))
}

// Update handles PATCH /api/v1/features/{featureID}
func (h *FeatureHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateFeatureRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	f, err := h.service.UpdateFeature(r.Context(), chi.URLParam(r, "featureID"), app.UpdateFeatureInput{
		Name:        req.Name,
		Description: req.Description,
		ChargeModel: req.ChargeModel,
		ServiceURL:  req.ServiceURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeatureResponse(f))
}

// Delete handles DELETE /api/v1/features/{featureID}
func (h *FeatureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFeature(r.Context(), chi.URLParam(r, "featureID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

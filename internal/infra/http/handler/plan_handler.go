package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/internal/infra/http/middleware"
	"github.com/meterly/api/pkg/apierror"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/logger"
	"github.com/meterly/api/pkg/pagination"
	"github.com/meterly/api/pkg/validator"
)

// PlanHandler handles plan HTTP requests.
type PlanHandler struct {
	service   *app.PlanService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewPlanHandler creates a new plan handler.
func NewPlanHandler(svc *app.PlanService, v *validator.Validator, log *logger.Logger) *PlanHandler {
	return &PlanHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// PriceResponse represents a plan price in API responses.
type PriceResponse struct {
	ID              string `json:"id"`
	Value           int64  `json:"value"`
	Currency        string `json:"currency"`
	Description     string `json:"description,omitempty"`
	ChargeFrequency string `json:"charge_frequency"`
	NumberOfPeriods *int   `json:"number_of_periods,omitempty"`
}

// RenewalResponse represents renewal behavior in API responses.
type RenewalResponse struct {
	IsExpirable          bool   `json:"is_expirable"`
	IsAutomaticRenewable bool   `json:"is_automatic_renewable"`
	RenewCycleUnits      string `json:"renew_cycle_units"`
	GracePeriodName      string `json:"grace_period_name"`
	GracePeriodDays      int    `json:"grace_period_days"`
	MaxRenewCycles       int    `json:"max_renew_cycles"`
}

// TrialResponse represents a trial period in API responses.
type TrialResponse struct {
	Name string `json:"name"`
	Days int    `json:"days"`
}

// PlanResponse represents a plan version in API responses.
type PlanResponse struct {
	ID         string           `json:"id"`
	TenantID   string           `json:"tenant_id"`
	Name       string           `json:"name"`
	PlanCode   string           `json:"plan_code"`
	PlanType   string           `json:"plan_type"`
	Version    int              `json:"version"`
	Status     string           `json:"status"`
	Active     bool             `json:"active"`
	ProductIDs []string         `json:"product_ids"`
	Price      PriceResponse    `json:"price"`
	Renewal    *RenewalResponse `json:"renewal,omitempty"`
	Trial      *TrialResponse   `json:"trial,omitempty"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// UpdatePlanResponse reports both sides of a plan update.
type UpdatePlanResponse struct {
	Forked   bool          `json:"forked"`
	Original *PlanResponse `json:"original,omitempty"`
	Updated  PlanResponse  `json:"updated"`
}

// FeatureConfigResponse represents a plan feature config in API
// responses.
type FeatureConfigResponse struct {
	ID           string             `json:"id"`
	PlanID       string             `json:"plan_id"`
	FeatureID    string             `json:"feature_id"`
	FeatureType  string             `json:"feature_type"`
	IsActive     bool               `json:"is_active"`
	QuotaLimit   *int64             `json:"quota_limit,omitempty"`
	PricingTiers []plan.PricingTier `json:"pricing_tiers,omitempty"`
	Metadata     map[string]any     `json:"metadata,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// CreatePlanRequest represents the request to create a plan.
type CreatePlanRequest struct {
	Name       string            `json:"name" validate:"required,min=1,max=255"`
	PlanType   string            `json:"plan_type" validate:"required,plan_type"`
	ProductIDs []string          `json:"product_ids" validate:"required,min=1,dive,uuid"`
	Price      app.PriceInput    `json:"price" validate:"required"`
	Renewal    *app.RenewalInput `json:"renewal" validate:"omitempty"`
	Trial      *app.TrialInput   `json:"trial" validate:"omitempty"`
	Metadata   map[string]any    `json:"metadata" validate:"omitempty"`
}

// UpdatePlanRequest represents a partial plan update against the latest
// version of a plan family.
type UpdatePlanRequest struct {
	Name       *string           `json:"name" validate:"omitempty,min=1,max=255"`
	PlanType   *string           `json:"plan_type" validate:"omitempty,plan_type"`
	ProductIDs []string          `json:"product_ids" validate:"omitempty,min=1,dive,uuid"`
	Price      *app.PriceInput   `json:"price" validate:"omitempty"`
	Renewal    *app.RenewalInput `json:"renewal" validate:"omitempty"`
	Trial      *app.TrialInput   `json:"trial" validate:"omitempty"`
	Metadata   map[string]any    `json:"metadata" validate:"omitempty"`
}

// ConfigureFeatureRequest represents the request to bind a feature to a
// plan version.
type ConfigureFeatureRequest struct {
	FeatureID  string          `json:"feature_id" validate:"required,uuid"`
	IsActive   bool            `json:"is_active"`
	QuotaLimit *int64          `json:"quota_limit" validate:"omitempty,gt=0"`
	Tiers      []app.TierInput `json:"tiers" validate:"omitempty,dive"`
	Metadata   map[string]any  `json:"metadata" validate:"omitempty"`
}

func toPlanResponse(p *plan.Plan) PlanResponse {
	price := p.Price()
	period := price.ChargePeriod()

	productIDs := make([]string, 0, len(p.ProductIDs()))
	for _, id := range p.ProductIDs() {
		productIDs = append(productIDs, id.String())
	}

	resp := PlanResponse{
		ID:         p.ID().String(),
		TenantID:   p.TenantID().String(),
		Name:       p.Name(),
		PlanCode:   p.PlanCode(),
		PlanType:   p.PlanType().String(),
		Version:    p.Version(),
		Status:     p.Status().String(),
		Active:     p.IsActive(),
		ProductIDs: productIDs,
		Price: PriceResponse{
			ID:              price.PriceID().String(),
			Value:           price.Value(),
			Currency:        price.Currency(),
			Description:     price.Description(),
			ChargeFrequency: period.ChargeFrequency.String(),
			NumberOfPeriods: period.NumberOfPeriods,
		},
		Metadata:  p.Metadata(),
		CreatedAt: p.CreatedAt(),
		UpdatedAt: p.UpdatedAt(),
	}

	if renewal := p.RenewalDefinition(); renewal != nil {
		resp.Renewal = &RenewalResponse{
			IsExpirable:          renewal.IsExpirable(),
			IsAutomaticRenewable: renewal.IsAutomaticRenewable(),
			RenewCycleUnits:      renewal.RenewCycleUnits(),
			GracePeriodName:      renewal.GracePeriod().Name(),
			GracePeriodDays:      renewal.GracePeriod().Value(),
			MaxRenewCycles:       renewal.MaxRenewCycles(),
		}
	}
	if trial := p.TrialPeriod(); trial != nil {
		resp.Trial = &TrialResponse{
			Name: trial.Name(),
			Days: trial.Value(),
		}
	}
	return resp
}

func toFeatureConfigResponse(c *plan.FeatureConfig) FeatureConfigResponse {
	return FeatureConfigResponse{
		ID:           c.ID().String(),
		PlanID:       c.PlanID().String(),
		FeatureID:    c.FeatureID().String(),
		FeatureType:  c.FeatureType().String(),
		IsActive:     c.IsAvailable(),
		QuotaLimit:   c.QuotaLimit(),
		PricingTiers: c.PricingTiers(),
		Metadata:     c.Metadata(),
		CreatedAt:    c.CreatedAt(),
	}
}

// Create handles POST /api/v1/plans
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req CreatePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	p, err := h.service.CreatePlan(r.Context(), app.CreatePlanInput{
		TenantID:   tenantID.String(),
		Name:       req.Name,
		PlanType:   req.PlanType,
		ProductIDs: req.ProductIDs,
		Price:      req.Price,
		Renewal:    req.Renewal,
		Trial:      req.Trial,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPlanResponse(p))
}

// Get handles GET /api/v1/plans/{planID}
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPlan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !p.TenantID().Equals(middleware.GetTenantID(r.Context())) {
		apierror.NotFound("Plan").WriteJSON(w)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(p))
}

// List handles GET /api/v1/plans
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	plans, err := h.service.ListPlans(r.Context(), tenantID.String())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := make([]PlanResponse, len(plans))
	for i, p := range plans {
		response[i] = toPlanResponse(p)
	}
	writeJSON(w, http.StatusOK, paginate(response, pagination.FromQuery(r.URL.Query())))
}

// GetFamily handles GET /api/v1/plans/code/{planCode}/versions
func (h *PlanHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	family, err := h.service.GetFamily(r.Context(), tenantID.String(), chi.URLParam(r, "planCode"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	versions := family.Plans()
	response := make([]PlanResponse, len(versions))
	for i, p := range versions {
		response[i] = toPlanResponse(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plan_code": family.PlanCode(),
		"versions":  response,
	})
}

// Update handles PATCH /api/v1/plans/code/{planCode}. Updating a plan
// with active subscriptions forks a new version; the response reports
// which happened.
func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req UpdatePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	out, err := h.service.UpdatePlan(r.Context(), tenantID.String(), chi.URLParam(r, "planCode"), app.UpdatePlanInput{
		Name:       req.Name,
		PlanType:   req.PlanType,
		ProductIDs: req.ProductIDs,
		Price:      req.Price,
		Renewal:    req.Renewal,
		Trial:      req.Trial,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := UpdatePlanResponse{
		Forked:  out.Forked,
		Updated: toPlanResponse(out.Updated),
	}
	if out.Forked {
		original := toPlanResponse(out.Original)
		resp.Original = &original
	}
	writeJSON(w, http.StatusOK, resp)
}

// Archive handles POST /api/v1/plans/code/{planCode}/versions/{version}/archive
func (h *PlanHandler) Archive(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		apierror.BadRequest("Invalid version number").WriteJSON(w)
		return
	}

	p, err := h.service.ArchivePlan(r.Context(), tenantID.String(), chi.URLParam(r, "planCode"), version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(p))
}

// ConfigureFeature handles POST /api/v1/plans/{planID}/features
func (h *PlanHandler) ConfigureFeature(w http.ResponseWriter, r *http.Request) {
	var req ConfigureFeatureRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	cfg, err := h.service.ConfigureFeature(r.Context(), app.ConfigureFeatureInput{
		PlanID:     chi.URLParam(r, "planID"),
		FeatureID:  req.FeatureID,
		IsActive:   req.IsActive,
		QuotaLimit: req.QuotaLimit,
		Tiers:      req.Tiers,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFeatureConfigResponse(cfg))
}

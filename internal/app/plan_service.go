package app

import (
	"context"
	"fmt"
	"time"

	"github.com/meterly/api/internal/metrics"
	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/product"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/logger"
)

// PlanService orchestrates plan creation and the version-or-update
// decision. The fork branch runs through plan.Store, which persists the
// whole fork in one transaction, carried feature configs included.
type PlanService struct {
	plans         plan.Repository
	store         plan.Store
	configs       plan.FeatureConfigRepository
	products      product.Repository
	features      feature.Repository
	subscriptions subscription.Repository
	logger        *logger.Logger
}

// NewPlanService creates a new plan service.
func NewPlanService(
	plans plan.Repository,
	store plan.Store,
	configs plan.FeatureConfigRepository,
	products product.Repository,
	features feature.Repository,
	subscriptions subscription.Repository,
	log *logger.Logger,
) *PlanService {
	return &PlanService{
		plans:         plans,
		store:         store,
		configs:       configs,
		products:      products,
		features:      features,
		subscriptions: subscriptions,
		logger:        log.With("service", "plan"),
	}
}

// PriceInput describes a plan price.
type PriceInput struct {
	Value           int64  `validate:"min=0"`
	Currency        string `validate:"required,currency"`
	Description     string `validate:"max=255"`
	ChargeFrequency string `validate:"required,charge_frequency"`
	NumberOfPeriods *int   `validate:"omitempty,gt=0"`
}

// RenewalInput describes renewal behavior.
type RenewalInput struct {
	IsExpirable          bool
	IsAutomaticRenewable bool
	RenewCycleUnits      string `validate:"required,max=50"`
	GracePeriodName      string `validate:"required,max=100"`
	GracePeriodDays      int    `validate:"gt=0"`
	MaxRenewCycles       int    `validate:"min=0"`
}

// TrialInput describes a trial period.
type TrialInput struct {
	Name string `validate:"required,max=100"`
	Days int    `validate:"gt=0"`
}

// CreatePlanInput represents input for creating a plan.
type CreatePlanInput struct {
	TenantID   string         `validate:"required,uuid"`
	Name       string         `validate:"required,min=1,max=255"`
	PlanType   string         `validate:"required,plan_type"`
	ProductIDs []string       `validate:"required,min=1,dive,uuid"`
	Price      PriceInput     `validate:"required"`
	Renewal    *RenewalInput  `validate:"omitempty"`
	Trial      *TrialInput    `validate:"omitempty"`
	Metadata   map[string]any `validate:"omitempty"`
}

// UpdatePlanInput represents a partial plan update. Nil fields are left
// untouched.
type UpdatePlanInput struct {
	Name       *string        `validate:"omitempty,min=1,max=255"`
	PlanType   *string        `validate:"omitempty,plan_type"`
	ProductIDs []string       `validate:"omitempty,min=1,dive,uuid"`
	Price      *PriceInput    `validate:"omitempty"`
	Renewal    *RenewalInput  `validate:"omitempty"`
	Trial      *TrialInput    `validate:"omitempty"`
	Metadata   map[string]any `validate:"omitempty"`
}

// UpdatePlanOutput reports both sides of an update. Forked is true when
// active subscriptions forced a new version.
type UpdatePlanOutput struct {
	Original *plan.Plan
	Updated  *plan.Plan
	Forked   bool
}

func (in PriceInput) toPrice() (plan.Price, error) {
	frequency, err := plan.ParseChargeFrequency(in.ChargeFrequency)
	if err != nil {
		return plan.Price{}, shared.ValidationError("%s", err)
	}
	period, err := plan.NewRecurringChargePeriod(frequency, time.Now().UTC(), in.NumberOfPeriods)
	if err != nil {
		return plan.Price{}, err
	}
	return plan.NewPrice(in.Value, in.Currency, in.Description, period)
}

func (in RenewalInput) toRenewal() (*plan.RenewalDefinition, error) {
	grace, err := plan.NewTimePeriod(in.GracePeriodName, in.GracePeriodDays)
	if err != nil {
		return nil, err
	}
	renewal, err := plan.NewRenewalDefinition(in.IsExpirable, in.IsAutomaticRenewable, in.RenewCycleUnits, grace, in.MaxRenewCycles)
	if err != nil {
		return nil, err
	}
	return &renewal, nil
}

func (in TrialInput) toTrial() (*plan.TimePeriod, error) {
	trial, err := plan.NewTimePeriod(in.Name, in.Days)
	if err != nil {
		return nil, err
	}
	return &trial, nil
}

// CreatePlan creates the first version of a plan after verifying every
// referenced product exists and belongs to the tenant.
func (s *PlanService) CreatePlan(ctx context.Context, input CreatePlanInput) (*plan.Plan, error) {
	tenantID, err := shared.IDFromString(input.TenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}

	planType, err := plan.ParseType(input.PlanType)
	if err != nil {
		return nil, shared.ValidationError("%s", err)
	}

	productIDs, err := s.resolveProducts(ctx, tenantID, input.ProductIDs)
	if err != nil {
		return nil, err
	}

	price, err := input.Price.toPrice()
	if err != nil {
		return nil, err
	}

	params := plan.NewPlanParams{
		TenantID:   tenantID,
		Name:       input.Name,
		PlanType:   planType,
		ProductIDs: productIDs,
		Price:      price,
		Metadata:   input.Metadata,
	}
	if input.Renewal != nil {
		if params.RenewalDefinition, err = input.Renewal.toRenewal(); err != nil {
			return nil, err
		}
	}
	if input.Trial != nil {
		if params.TrialPeriod, err = input.Trial.toTrial(); err != nil {
			return nil, err
		}
	}

	family, err := plan.CreateInitialPlan(params)
	if err != nil {
		return nil, err
	}
	initial := family.Latest()

	// A plan code collision means a family with this name already exists.
	existing, err := s.plans.ListByPlanCode(ctx, tenantID, initial.PlanCode())
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: plan %s already exists", shared.ErrAlreadyExists, initial.PlanCode())
	}

	if err := s.plans.Create(ctx, initial); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "plan created",
		"plan_id", initial.ID().String(),
		"plan_code", initial.PlanCode(),
		"version", initial.Version(),
	)
	return initial, nil
}

// GetPlan returns a plan version by id.
func (s *PlanService) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	planID, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid plan ID")
	}
	return s.plans.GetByID(ctx, planID)
}

// ListPlans returns all plan versions for a tenant.
func (s *PlanService) ListPlans(ctx context.Context, tenantID string) ([]*plan.Plan, error) {
	tid, err := shared.IDFromString(tenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}
	return s.plans.ListByTenant(ctx, tid)
}

// GetFamily loads every version of a plan family.
func (s *PlanService) GetFamily(ctx context.Context, tenantID, planCode string) (*plan.Family, error) {
	tid, err := shared.IDFromString(tenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}
	plans, err := s.plans.ListByPlanCode(ctx, tid, planCode)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, shared.NotFoundError("plan family %s not found", planCode)
	}
	return plan.FamilyFromPlans(plans)
}

// UpdatePlan applies changes to the latest version of a family. When
// billable subscriptions reference that version the family forks a new
// version instead of mutating; both outcomes run inside a single
// transaction holding row locks on the family, so the active-subscription
// check cannot race a concurrent subscribe.
func (s *PlanService) UpdatePlan(ctx context.Context, tenantID, planCode string, input UpdatePlanInput) (*UpdatePlanOutput, error) {
	tid, err := shared.IDFromString(tenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}

	changes, err := s.buildChanges(ctx, tid, input)
	if err != nil {
		return nil, err
	}

	var forked bool
	result, err := s.store.UpdateFamily(ctx, tid, planCode, func(family *plan.Family) (plan.UpdateResult, error) {
		count, err := s.subscriptions.CountBillableByPlan(ctx, family.Latest().ID())
		if err != nil {
			return plan.UpdateResult{}, err
		}
		res, err := family.UpdateLatest(changes, count > 0)
		if err != nil {
			return plan.UpdateResult{}, err
		}
		forked = count > 0
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	if forked {
		metrics.PlanForksTotal.WithLabelValues(tenantID).Inc()
		s.logger.InfoContext(ctx, "plan forked",
			"plan_code", planCode,
			"archived_version", result.Original.Version(),
			"new_version", result.Updated.Version(),
		)
	} else {
		s.logger.InfoContext(ctx, "plan updated in place",
			"plan_code", planCode,
			"version", result.Updated.Version(),
		)
	}

	return &UpdatePlanOutput{
		Original: result.Original,
		Updated:  result.Updated,
		Forked:   forked,
	}, nil
}

// ArchivePlan archives a specific version without forking.
func (s *PlanService) ArchivePlan(ctx context.Context, tenantID, planCode string, version int) (*plan.Plan, error) {
	family, err := s.GetFamily(ctx, tenantID, planCode)
	if err != nil {
		return nil, err
	}
	if err := family.ArchiveVersion(version); err != nil {
		return nil, err
	}
	archived, err := family.Version(version)
	if err != nil {
		return nil, err
	}
	if err := s.plans.Update(ctx, archived); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "plan version archived", "plan_code", planCode, "version", version)
	return archived, nil
}

func (s *PlanService) buildChanges(ctx context.Context, tenantID shared.ID, input UpdatePlanInput) (plan.Changes, error) {
	changes := plan.Changes{
		Name:     input.Name,
		Metadata: input.Metadata,
	}

	if input.PlanType != nil {
		planType, err := plan.ParseType(*input.PlanType)
		if err != nil {
			return plan.Changes{}, shared.ValidationError("%s", err)
		}
		changes.PlanType = &planType
	}
	if input.Price != nil {
		price, err := input.Price.toPrice()
		if err != nil {
			return plan.Changes{}, err
		}
		changes.Price = &price
	}
	if input.Renewal != nil {
		renewal, err := input.Renewal.toRenewal()
		if err != nil {
			return plan.Changes{}, err
		}
		changes.RenewalDefinition = renewal
	}
	if input.Trial != nil {
		trial, err := input.Trial.toTrial()
		if err != nil {
			return plan.Changes{}, err
		}
		changes.TrialPeriod = trial
	}
	if input.ProductIDs != nil {
		productIDs, err := s.resolveProducts(ctx, tenantID, input.ProductIDs)
		if err != nil {
			return plan.Changes{}, err
		}
		changes.ProductIDs = productIDs
	}
	return changes, nil
}

func (s *PlanService) resolveProducts(ctx context.Context, tenantID shared.ID, ids []string) ([]shared.ID, error) {
	out := make([]shared.ID, 0, len(ids))
	for _, raw := range ids {
		id, err := shared.IDFromString(raw)
		if err != nil {
			return nil, shared.ValidationError("invalid product ID %s", raw)
		}
		p, err := s.products.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !p.TenantID().Equals(tenantID) {
			return nil, shared.NotFoundError("product %s not found", raw)
		}
		out = append(out, id)
	}
	return out, nil
}

// ConfigureFeatureInput represents input for binding a feature to a plan.
type ConfigureFeatureInput struct {
	PlanID     string         `validate:"required,uuid"`
	FeatureID  string         `validate:"required,uuid"`
	IsActive   bool
	QuotaLimit *int64         `validate:"omitempty,gt=0"`
	Tiers      []TierInput    `validate:"omitempty,dive"`
	Metadata   map[string]any `validate:"omitempty"`
}

// TierInput describes one pricing tier.
type TierInput struct {
	FromQuantity int64  `validate:"min=0"`
	ToQuantity   *int64 `validate:"omitempty,gt=0"`
	PricePerUnit int64  `validate:"gt=0"`
	Currency     string `validate:"required,currency"`
}

// ConfigureFeature creates a feature config for a plan version. The
// config's feature type always comes from the referenced feature, so a
// mismatched classification cannot be persisted.
func (s *PlanService) ConfigureFeature(ctx context.Context, input ConfigureFeatureInput) (*plan.FeatureConfig, error) {
	planID, err := shared.IDFromString(input.PlanID)
	if err != nil {
		return nil, shared.ValidationError("invalid plan ID")
	}
	featureID, err := shared.IDFromString(input.FeatureID)
	if err != nil {
		return nil, shared.ValidationError("invalid feature ID")
	}

	p, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	f, err := s.features.GetByID(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if !p.HasProduct(f.ProductID()) {
		return nil, shared.ValidationError("feature %s belongs to a product not on the plan", f.Code())
	}

	tiers := make([]plan.PricingTier, 0, len(input.Tiers))
	for _, t := range input.Tiers {
		tier, err := plan.NewPricingTier(t.FromQuantity, t.ToQuantity, t.PricePerUnit, t.Currency)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}

	cfg, err := plan.NewFeatureConfig(plan.NewFeatureConfigParams{
		PlanID:       planID,
		FeatureID:    featureID,
		FeatureType:  f.FeatureType(),
		IsActive:     input.IsActive,
		QuotaLimit:   input.QuotaLimit,
		PricingTiers: tiers,
		Metadata:     input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := s.configs.Create(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "feature configured",
		"plan_id", planID.String(),
		"feature_code", f.Code(),
	)
	return cfg, nil
}

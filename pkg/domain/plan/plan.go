// Package plan implements the plan versioning engine. Plans are grouped
// into families by plan code; updating a plan either mutates it in place
// or archives it and forks a new version, depending on whether active
// subscriptions reference it.
package plan

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
)

var planCodeCleanRegex = regexp.MustCompile(`[^A-Z0-9]+`)

// GeneratePlanCode derives a stable plan code from a display name.
// "Premium Plan" becomes "PREMIUM_PLAN". The code is shared by every
// version of the plan and is how versions stay grouped.
func GeneratePlanCode(name string) string {
	code := planCodeCleanRegex.ReplaceAllString(strings.ToUpper(name), "_")
	return strings.Trim(code, "_")
}

// Plan is one version of a tenant's plan. The id is fresh per version;
// the plan code is stable across versions.
type Plan struct {
	id                shared.ID
	tenantID          shared.ID
	name              string
	planCode          string
	planType          Type
	version           int
	productIDs        []shared.ID
	price             Price
	renewalDefinition *RenewalDefinition
	trialPeriod       *TimePeriod
	active            bool
	status            Status
	metadata          shared.Metadata
	createdAt         time.Time
	updatedAt         time.Time
}

// NewPlanParams carries the inputs for creating the first version of a plan.
type NewPlanParams struct {
	TenantID          shared.ID
	Name              string
	PlanCode          string
	PlanType          Type
	ProductIDs        []shared.ID
	Price             Price
	RenewalDefinition *RenewalDefinition
	TrialPeriod       *TimePeriod
	Metadata          shared.Metadata
}

// NewPlan creates a version-1 active plan. The plan code is derived from
// the name when not supplied.
func NewPlan(p NewPlanParams) (*Plan, error) {
	if p.TenantID.IsZero() {
		return nil, shared.ValidationError("tenant id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, shared.ValidationError("plan name is required")
	}
	if len(p.Name) > 255 {
		return nil, shared.ValidationError("plan name cannot exceed 255 characters")
	}
	if !p.PlanType.IsValid() {
		return nil, shared.ValidationError("invalid plan type: %s", p.PlanType)
	}
	if len(p.ProductIDs) == 0 {
		return nil, shared.ValidationError("a plan must have at least one product")
	}

	code := p.PlanCode
	if code == "" {
		code = GeneratePlanCode(p.Name)
	}

	now := time.Now().UTC()
	return &Plan{
		id:                shared.NewID(),
		tenantID:          p.TenantID,
		name:              p.Name,
		planCode:          code,
		planType:          p.PlanType,
		version:           1,
		productIDs:        slices.Clone(p.ProductIDs),
		price:             p.Price,
		renewalDefinition: p.RenewalDefinition,
		trialPeriod:       p.TrialPeriod,
		active:            true,
		status:            StatusActive,
		metadata:          shared.CopyMetadata(p.Metadata),
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// ReconstituteParams carries the full persisted state of a plan version.
type ReconstituteParams struct {
	ID                shared.ID
	TenantID          shared.ID
	Name              string
	PlanCode          string
	PlanType          Type
	Version           int
	ProductIDs        []shared.ID
	Price             Price
	RenewalDefinition *RenewalDefinition
	TrialPeriod       *TimePeriod
	Active            bool
	Status            Status
	Metadata          shared.Metadata
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Reconstitute recreates a Plan from persistence.
func Reconstitute(p ReconstituteParams) *Plan {
	return &Plan{
		id:                p.ID,
		tenantID:          p.TenantID,
		name:              p.Name,
		planCode:          p.PlanCode,
		planType:          p.PlanType,
		version:           p.Version,
		productIDs:        slices.Clone(p.ProductIDs),
		price:             p.Price,
		renewalDefinition: p.RenewalDefinition,
		trialPeriod:       p.TrialPeriod,
		active:            p.Active,
		status:            p.Status,
		metadata:          p.Metadata,
		createdAt:         p.CreatedAt,
		updatedAt:         p.UpdatedAt,
	}
}

// ID returns the version-specific plan ID.
func (p *Plan) ID() shared.ID { return p.id }

// TenantID returns the owning tenant ID.
func (p *Plan) TenantID() shared.ID { return p.tenantID }

// Name returns the plan name.
func (p *Plan) Name() string { return p.name }

// PlanCode returns the code shared by all versions of the plan.
func (p *Plan) PlanCode() string { return p.planCode }

// PlanType returns the commercial tier.
func (p *Plan) PlanType() Type { return p.planType }

// Version returns the version number, starting at 1.
func (p *Plan) Version() int { return p.version }

// ProductIDs returns a copy of the ordered product references.
func (p *Plan) ProductIDs() []shared.ID { return slices.Clone(p.productIDs) }

// Price returns the plan price.
func (p *Plan) Price() Price { return p.price }

// RenewalDefinition returns the renewal rules, or nil.
func (p *Plan) RenewalDefinition() *RenewalDefinition { return p.renewalDefinition }

// TrialPeriod returns the trial period, or nil.
func (p *Plan) TrialPeriod() *TimePeriod { return p.trialPeriod }

// IsActive reports whether the plan accepts new subscriptions.
func (p *Plan) IsActive() bool { return p.active }

// Status returns the lifecycle status.
func (p *Plan) Status() Status { return p.status }

// Metadata returns a copy of the plan metadata.
func (p *Plan) Metadata() shared.Metadata { return shared.CopyMetadata(p.metadata) }

// CreatedAt returns the creation timestamp of this version.
func (p *Plan) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the last modification timestamp.
func (p *Plan) UpdatedAt() time.Time { return p.updatedAt }

// HasProduct reports whether the plan references the given product.
func (p *Plan) HasProduct(productID shared.ID) bool {
	return slices.ContainsFunc(p.productIDs, productID.Equals)
}

func (p *Plan) touch() {
	p.updatedAt = time.Now().UTC()
}

// Changes is a partial set of plan fields to apply during an update.
// Nil fields are left untouched. A non-nil ProductIDs replaces the full
// product set and must not be empty.
type Changes struct {
	Name              *string
	PlanType          *Type
	Price             *Price
	RenewalDefinition *RenewalDefinition
	TrialPeriod       *TimePeriod
	ProductIDs        []shared.ID
	Metadata          shared.Metadata
}

func (c Changes) validate() error {
	if c.Name != nil {
		if strings.TrimSpace(*c.Name) == "" {
			return shared.ValidationError("plan name cannot be empty")
		}
		if len(*c.Name) > 255 {
			return shared.ValidationError("plan name cannot exceed 255 characters")
		}
	}
	if c.PlanType != nil && !c.PlanType.IsValid() {
		return shared.ValidationError("invalid plan type: %s", *c.PlanType)
	}
	if c.ProductIDs != nil && len(c.ProductIDs) == 0 {
		return shared.ValidationError("a plan must have at least one product")
	}
	return nil
}

// CreateNewVersion produces the successor version of the plan: a fresh id,
// the same plan code, version+1, active status, current fields overlaid
// with the supplied changes. The receiver is not modified.
func (p *Plan) CreateNewVersion(changes Changes) (*Plan, error) {
	if err := changes.validate(); err != nil {
		return nil, err
	}

	next := &Plan{
		id:                shared.NewID(),
		tenantID:          p.tenantID,
		name:              p.name,
		planCode:          p.planCode,
		planType:          p.planType,
		version:           p.version + 1,
		productIDs:        slices.Clone(p.productIDs),
		price:             p.price,
		renewalDefinition: p.renewalDefinition,
		trialPeriod:       p.trialPeriod,
		active:            true,
		status:            StatusActive,
		metadata:          shared.CopyMetadata(p.metadata),
		createdAt:         time.Now().UTC(),
		updatedAt:         time.Now().UTC(),
	}
	next.overlay(changes)
	return next, nil
}

func (p *Plan) overlay(changes Changes) {
	if changes.Name != nil {
		p.name = *changes.Name
	}
	if changes.PlanType != nil {
		p.planType = *changes.PlanType
	}
	if changes.Price != nil {
		p.price = *changes.Price
	}
	if changes.RenewalDefinition != nil {
		p.renewalDefinition = changes.RenewalDefinition
	}
	if changes.TrialPeriod != nil {
		p.trialPeriod = changes.TrialPeriod
	}
	if changes.ProductIDs != nil {
		p.productIDs = slices.Clone(changes.ProductIDs)
	}
	if changes.Metadata != nil {
		p.metadata = shared.MergeMetadata(p.metadata, changes.Metadata)
	}
}

// Archive marks the plan version archived and inactive. Archiving an
// already archived plan is a no-op.
func (p *Plan) Archive() {
	if p.status == StatusArchived {
		return
	}
	p.status = StatusArchived
	p.active = false
	p.touch()
}

// ApplyDirectUpdates mutates the plan in place. The full change set is
// validated before any field is touched, so a failed update leaves the
// plan exactly as it was.
func (p *Plan) ApplyDirectUpdates(changes Changes) error {
	if err := changes.validate(); err != nil {
		return err
	}
	p.overlay(changes)
	p.touch()
	return nil
}

// UpdateName updates the plan name. The plan code is unchanged.
func (p *Plan) UpdateName(name string) error {
	return p.ApplyDirectUpdates(Changes{Name: &name})
}

// AddProduct appends a product reference if not already present.
func (p *Plan) AddProduct(productID shared.ID) {
	if p.HasProduct(productID) {
		return
	}
	p.productIDs = append(p.productIDs, productID)
	p.touch()
}

// RemoveProduct removes a product reference. It fails without modifying
// the plan when the product is the last one remaining.
func (p *Plan) RemoveProduct(productID shared.ID) error {
	if !p.HasProduct(productID) {
		return shared.ValidationError("product %s is not part of the plan", productID)
	}
	if len(p.productIDs) == 1 {
		return shared.StateConflictError("cannot remove the last product from a plan")
	}
	p.productIDs = slices.DeleteFunc(p.productIDs, productID.Equals)
	p.touch()
	return nil
}

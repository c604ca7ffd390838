package plan

import (
	"slices"
	"strings"
	"time"

	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/shared"
)

// PricingTier is one band of a metered feature's price ladder. ToQuantity
// is exclusive; nil means the tier is open-ended.
type PricingTier struct {
	FromQuantity int64  `json:"from_quantity"`
	ToQuantity   *int64 `json:"to_quantity,omitempty"`
	PricePerUnit int64  `json:"price_per_unit"`
	Currency     string `json:"currency"`
}

// NewPricingTier creates a validated PricingTier. PricePerUnit is in
// minor currency units and the currency is normalized to uppercase.
func NewPricingTier(fromQuantity int64, toQuantity *int64, pricePerUnit int64, currency string) (PricingTier, error) {
	if fromQuantity < 0 {
		return PricingTier{}, shared.ValidationError("tier from-quantity cannot be negative")
	}
	if toQuantity != nil && *toQuantity <= fromQuantity {
		return PricingTier{}, shared.ValidationError("tier to-quantity must be greater than from-quantity")
	}
	if pricePerUnit <= 0 {
		return PricingTier{}, shared.ValidationError("tier price per unit must be positive")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !currencyRegex.MatchString(currency) {
		return PricingTier{}, shared.ValidationError("tier currency must be a 3-letter code")
	}
	return PricingTier{
		FromQuantity: fromQuantity,
		ToQuantity:   toQuantity,
		PricePerUnit: pricePerUnit,
		Currency:     currency,
	}, nil
}

// Contains reports whether the quantity falls within the tier.
func (t PricingTier) Contains(quantity int64) bool {
	if quantity < t.FromQuantity {
		return false
	}
	return t.ToQuantity == nil || quantity < *t.ToQuantity
}

// validateTiers checks each tier individually and the set for overlap.
// Sorted by from-quantity, each tier must start strictly after the
// previous tier's exclusive upper bound; an open-ended tier anywhere but
// last makes every later tier unreachable.
func validateTiers(tiers []PricingTier) error {
	for _, t := range tiers {
		if _, err := NewPricingTier(t.FromQuantity, t.ToQuantity, t.PricePerUnit, t.Currency); err != nil {
			return err
		}
	}

	sorted := slices.Clone(tiers)
	slices.SortFunc(sorted, func(a, b PricingTier) int {
		switch {
		case a.FromQuantity < b.FromQuantity:
			return -1
		case a.FromQuantity > b.FromQuantity:
			return 1
		default:
			return 0
		}
	})
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		if prev.ToQuantity == nil {
			return shared.ValidationError("pricing tier starting at %d is unreachable after an open-ended tier", sorted[i].FromQuantity)
		}
		if sorted[i].FromQuantity <= *prev.ToQuantity {
			return shared.ValidationError("pricing tiers overlap at quantity %d", sorted[i].FromQuantity)
		}
	}
	return nil
}

// FeatureConfig binds a feature to a plan version: whether it is active,
// its quota limit for quota features, and its pricing tiers for metered
// features. Quota and tiers are mutually exclusive with non-matching
// feature types.
type FeatureConfig struct {
	id           shared.ID
	planID       shared.ID
	featureID    shared.ID
	featureType  feature.Type
	isActive     bool
	quotaLimit   *int64
	pricingTiers []PricingTier
	metadata     shared.Metadata
	createdAt    time.Time
	updatedAt    time.Time
}

// NewFeatureConfigParams carries the inputs for creating a feature config.
type NewFeatureConfigParams struct {
	PlanID       shared.ID
	FeatureID    shared.ID
	FeatureType  feature.Type
	IsActive     bool
	QuotaLimit   *int64
	PricingTiers []PricingTier
	Metadata     shared.Metadata
}

// NewFeatureConfig creates a validated FeatureConfig.
func NewFeatureConfig(p NewFeatureConfigParams) (*FeatureConfig, error) {
	if p.PlanID.IsZero() {
		return nil, shared.ValidationError("plan id is required")
	}
	if p.FeatureID.IsZero() {
		return nil, shared.ValidationError("feature id is required")
	}
	if !p.FeatureType.IsValid() {
		return nil, shared.ValidationError("invalid feature type: %s", p.FeatureType)
	}
	if err := validateCrossFields(p.FeatureType, p.QuotaLimit, p.PricingTiers); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &FeatureConfig{
		id:           shared.NewID(),
		planID:       p.PlanID,
		featureID:    p.FeatureID,
		featureType:  p.FeatureType,
		isActive:     p.IsActive,
		quotaLimit:   p.QuotaLimit,
		pricingTiers: slices.Clone(p.PricingTiers),
		metadata:     p.Metadata,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

func validateCrossFields(featureType feature.Type, quotaLimit *int64, tiers []PricingTier) error {
	if quotaLimit != nil {
		if featureType != feature.TypeQuota {
			return shared.ValidationError("quota limit is only valid for quota features, got %s", featureType)
		}
		if *quotaLimit <= 0 {
			return shared.ValidationError("quota limit must be positive")
		}
	}
	if len(tiers) > 0 {
		if featureType != feature.TypeMetered {
			return shared.ValidationError("pricing tiers are only valid for metered features, got %s", featureType)
		}
		if err := validateTiers(tiers); err != nil {
			return err
		}
	}
	return nil
}

// CarryTo returns a copy of the config bound to another plan version,
// with fresh identity and timestamps. Used when a fork moves a family's
// configs onto the new version.
func (c *FeatureConfig) CarryTo(planID shared.ID) (*FeatureConfig, error) {
	return NewFeatureConfig(NewFeatureConfigParams{
		PlanID:       planID,
		FeatureID:    c.featureID,
		FeatureType:  c.featureType,
		IsActive:     c.isActive,
		QuotaLimit:   c.quotaLimit,
		PricingTiers: c.pricingTiers,
		Metadata:     c.metadata,
	})
}

// ReconstituteFeatureConfig recreates a FeatureConfig from persistence.
func ReconstituteFeatureConfig(id, planID, featureID shared.ID, featureType feature.Type, isActive bool, quotaLimit *int64, tiers []PricingTier, metadata shared.Metadata, createdAt, updatedAt time.Time) *FeatureConfig {
	return &FeatureConfig{
		id:           id,
		planID:       planID,
		featureID:    featureID,
		featureType:  featureType,
		isActive:     isActive,
		quotaLimit:   quotaLimit,
		pricingTiers: slices.Clone(tiers),
		metadata:     metadata,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the config ID.
func (c *FeatureConfig) ID() shared.ID { return c.id }

// PlanID returns the plan version this config belongs to.
func (c *FeatureConfig) PlanID() shared.ID { return c.planID }

// FeatureID returns the configured feature.
func (c *FeatureConfig) FeatureID() shared.ID { return c.featureID }

// FeatureType returns the feature's billing classification.
func (c *FeatureConfig) FeatureType() feature.Type { return c.featureType }

// IsAvailable reports whether the feature counts toward entitlements.
func (c *FeatureConfig) IsAvailable() bool { return c.isActive }

// QuotaLimit returns the quota cap, or nil for unlimited quota.
func (c *FeatureConfig) QuotaLimit() *int64 { return c.quotaLimit }

// PricingTiers returns a copy of the metered pricing tiers.
func (c *FeatureConfig) PricingTiers() []PricingTier { return slices.Clone(c.pricingTiers) }

// Metadata returns a copy of the config metadata.
func (c *FeatureConfig) Metadata() shared.Metadata { return shared.CopyMetadata(c.metadata) }

// CreatedAt returns the creation timestamp.
func (c *FeatureConfig) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last modification timestamp.
func (c *FeatureConfig) UpdatedAt() time.Time { return c.updatedAt }

// Activate makes the feature count toward entitlements.
func (c *FeatureConfig) Activate() {
	c.isActive = true
	c.touch()
}

// Deactivate removes the feature from entitlement computation.
func (c *FeatureConfig) Deactivate() {
	c.isActive = false
	c.touch()
}

// SetQuotaLimit replaces the quota cap; nil means unlimited. The full
// cross-field rules are re-checked before any state changes.
func (c *FeatureConfig) SetQuotaLimit(limit *int64) error {
	if err := validateCrossFields(c.featureType, limit, c.pricingTiers); err != nil {
		return err
	}
	c.quotaLimit = limit
	c.touch()
	return nil
}

// SetPricingTiers replaces the tier set, re-validating non-overlap.
func (c *FeatureConfig) SetPricingTiers(tiers []PricingTier) error {
	if err := validateCrossFields(c.featureType, c.quotaLimit, tiers); err != nil {
		return err
	}
	c.pricingTiers = slices.Clone(tiers)
	c.touch()
	return nil
}

// UpdateMetadata merges the given keys into the config metadata.
func (c *FeatureConfig) UpdateMetadata(metadata shared.Metadata) {
	c.metadata = shared.MergeMetadata(c.metadata, metadata)
	c.touch()
}

func (c *FeatureConfig) touch() {
	c.updatedAt = time.Now().UTC()
}

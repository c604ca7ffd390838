package plan_test

import (
	"testing"

	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func tier(t *testing.T, from int64, to *int64) plan.PricingTier {
	t.Helper()
	tr, err := plan.NewPricingTier(from, to, 5, "USD")
	require.NoError(t, err)
	return tr
}

func TestNewPricingTier(t *testing.T) {
	t.Run("valid open-ended tier", func(t *testing.T) {
		tr, err := plan.NewPricingTier(100, nil, 3, "usd")
		require.NoError(t, err)
		assert.Equal(t, "USD", tr.Currency)
		assert.Nil(t, tr.ToQuantity)
	})

	t.Run("to must exceed from", func(t *testing.T) {
		_, err := plan.NewPricingTier(100, int64Ptr(100), 3, "USD")
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("zero price per unit fails", func(t *testing.T) {
		_, err := plan.NewPricingTier(0, int64Ptr(10), 0, "USD")
		require.Error(t, err)
	})

	t.Run("negative from fails", func(t *testing.T) {
		_, err := plan.NewPricingTier(-1, nil, 3, "USD")
		require.Error(t, err)
	})

	t.Run("bad currency fails", func(t *testing.T) {
		_, err := plan.NewPricingTier(0, nil, 3, "dollars")
		require.Error(t, err)
	})
}

func TestPricingTier_Contains(t *testing.T) {
	bounded := tier(t, 100, int64Ptr(200))
	assert.False(t, bounded.Contains(99))
	assert.True(t, bounded.Contains(100))
	assert.True(t, bounded.Contains(199))
	assert.False(t, bounded.Contains(200))

	open := tier(t, 200, nil)
	assert.True(t, open.Contains(1_000_000))
}

func TestNewFeatureConfig_TierOverlap(t *testing.T) {
	planID := shared.NewID()
	featureID := shared.NewID()

	newConfig := func(tiers []plan.PricingTier) error {
		_, err := plan.NewFeatureConfig(plan.NewFeatureConfigParams{
			PlanID:       planID,
			FeatureID:    featureID,
			FeatureType:  feature.TypeMetered,
			IsActive:     true,
			PricingTiers: tiers,
		})
		return err
	}

	t.Run("disjoint tiers succeed", func(t *testing.T) {
		err := newConfig([]plan.PricingTier{
			tier(t, 0, int64Ptr(99)),
			tier(t, 100, int64Ptr(199)),
		})
		assert.NoError(t, err)
	})

	t.Run("boundary collision fails", func(t *testing.T) {
		err := newConfig([]plan.PricingTier{
			tier(t, 0, int64Ptr(100)),
			tier(t, 100, int64Ptr(199)),
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("overlap detected regardless of input order", func(t *testing.T) {
		err := newConfig([]plan.PricingTier{
			tier(t, 100, int64Ptr(199)),
			tier(t, 0, int64Ptr(150)),
		})
		require.Error(t, err)
	})

	t.Run("open-ended tier must be last", func(t *testing.T) {
		err := newConfig([]plan.PricingTier{
			tier(t, 0, nil),
			tier(t, 500, int64Ptr(999)),
		})
		require.Error(t, err)
	})
}

func TestNewFeatureConfig_QuotaExclusivity(t *testing.T) {
	planID := shared.NewID()
	featureID := shared.NewID()

	t.Run("quota limit on boolean feature fails", func(t *testing.T) {
		_, err := plan.NewFeatureConfig(plan.NewFeatureConfigParams{
			PlanID:      planID,
			FeatureID:   featureID,
			FeatureType: feature.TypeBoolean,
			QuotaLimit:  int64Ptr(10),
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("quota feature without limit means unlimited", func(t *testing.T) {
		cfg, err := plan.NewFeatureConfig(plan.NewFeatureConfigParams{
			PlanID:      planID,
			FeatureID:   featureID,
			FeatureType: feature.TypeQuota,
			IsActive:    true,
		})
		require.NoError(t, err)
		assert.Nil(t, cfg.QuotaLimit())
	})

	t.Run("zero quota limit fails", func(t *testing.T) {
		_, err := plan.NewFeatureConfig(plan.NewFeatureConfigParams{
			PlanID:      planID,
			FeatureID:   featureID,
			FeatureType: feature.TypeQuota,
			QuotaLimit:  int64Ptr(0),
		})
		require.Error(t, err)
	})

	t.Run("tiers on quota feature fail", func(t *testing.T) {
		_, err := plan.NewFeatureConfig(plan.NewFeatureConfigParams{
			PlanID:       planID,
			FeatureID:    featureID,
			FeatureType:  feature.TypeQuota,
			PricingTiers: []plan.PricingTier{tier(t, 0, nil)},
		})
		require.Error(t, err)
	})
}

func TestFeatureConfig_Mutation(t *testing.T) {
	cfg, err := plan.NewFeatureConfig(plan.NewFeatureConfigParams{
		PlanID:      shared.NewID(),
		FeatureID:   shared.NewID(),
		FeatureType: feature.TypeMetered,
		IsActive:    true,
		PricingTiers: []plan.PricingTier{
			tier(t, 0, int64Ptr(99)),
		},
	})
	require.NoError(t, err)

	t.Run("setting overlapping tiers fails without mutating", func(t *testing.T) {
		err := cfg.SetPricingTiers([]plan.PricingTier{
			tier(t, 0, int64Ptr(100)),
			tier(t, 100, nil),
		})
		require.Error(t, err)
		assert.Len(t, cfg.PricingTiers(), 1)
	})

	t.Run("quota limit rejected on metered config", func(t *testing.T) {
		err := cfg.SetQuotaLimit(int64Ptr(5))
		require.Error(t, err)
	})

	t.Run("activation toggles availability", func(t *testing.T) {
		cfg.Deactivate()
		assert.False(t, cfg.IsAvailable())
		cfg.Activate()
		assert.True(t, cfg.IsAvailable())
	})
}

func TestFeatureConfig_CarryTo(t *testing.T) {
	original, err := plan.NewFeatureConfig(plan.NewFeatureConfigParams{
		PlanID:      shared.NewID(),
		FeatureID:   shared.NewID(),
		FeatureType: feature.TypeMetered,
		IsActive:    true,
		PricingTiers: []plan.PricingTier{
			tier(t, 0, int64Ptr(99)),
			tier(t, 100, nil),
		},
		Metadata: shared.Metadata{"grandfathered": true},
	})
	require.NoError(t, err)

	newPlanID := shared.NewID()
	carried, err := original.CarryTo(newPlanID)
	require.NoError(t, err)

	assert.False(t, carried.ID().Equals(original.ID()))
	assert.True(t, carried.PlanID().Equals(newPlanID))
	assert.True(t, carried.FeatureID().Equals(original.FeatureID()))
	assert.Equal(t, original.FeatureType(), carried.FeatureType())
	assert.Equal(t, original.IsAvailable(), carried.IsAvailable())
	assert.Equal(t, original.PricingTiers(), carried.PricingTiers())
	assert.Equal(t, original.Metadata(), carried.Metadata())
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/domain/usage"
	"github.com/meterly/api/pkg/logger"
)

func testSubscription(t *testing.T, tenantID, planID shared.ID, status subscription.Status) *subscription.Subscription {
	t.Helper()
	now := time.Now().UTC()
	sub, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		TenantID:           tenantID,
		AccountID:          shared.NewID(),
		CustomerID:         shared.NewID(),
		PlanID:             planID,
		Status:             status,
		Seats:              1,
		CurrentPeriodStart: now.AddDate(0, 0, -5),
		CurrentPeriodEnd:   now.AddDate(0, 0, 25),
	})
	require.NoError(t, err)
	return sub
}

func testConfig(t *testing.T, planID, featureID shared.ID, ft feature.Type, limit *int64, tiers []plan.PricingTier) *plan.FeatureConfig {
	t.Helper()
	cfg, err := plan.NewFeatureConfig(plan.NewFeatureConfigParams{
		PlanID:       planID,
		FeatureID:    featureID,
		FeatureType:  ft,
		IsActive:     true,
		QuotaLimit:   limit,
		PricingTiers: tiers,
	})
	require.NoError(t, err)
	return cfg
}

func testMeteredFeature(t *testing.T, productID shared.ID, code string) *feature.Feature {
	t.Helper()
	f, err := feature.NewFeature(feature.NewFeatureParams{
		ProductID:   productID,
		Name:        code,
		Code:        code,
		FeatureType: feature.TypeMetered,
		ChargeModel: feature.ChargeModelPerAPICall,
		ServiceURL:  "https://metering.internal/track",
	})
	require.NoError(t, err)
	return f
}

func TestEntitlementService_GetEntitlements(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	productID := shared.NewID()
	planID := shared.NewID()
	sub := testSubscription(t, tenantID, planID, subscription.StatusActive)

	boolFeature, err := feature.NewFeature(feature.NewFeatureParams{
		ProductID:   productID,
		Name:        "SSO",
		Code:        "sso",
		FeatureType: feature.TypeBoolean,
		ChargeModel: feature.ChargeModelFlat,
	})
	require.NoError(t, err)

	quotaFeature, err := feature.NewFeature(feature.NewFeatureParams{
		ProductID:   productID,
		Name:        "Seats",
		Code:        "seats",
		FeatureType: feature.TypeQuota,
		ChargeModel: feature.ChargeModelPerSeat,
	})
	require.NoError(t, err)

	meteredFeature := testMeteredFeature(t, productID, "api_calls")

	to := int64(10000)
	tier, err := plan.NewPricingTier(0, &to, 2, "USD")
	require.NoError(t, err)

	limit := int64(25)
	cfgs := []*plan.FeatureConfig{
		testConfig(t, planID, boolFeature.ID(), feature.TypeBoolean, nil, nil),
		testConfig(t, planID, quotaFeature.ID(), feature.TypeQuota, &limit, nil),
		testConfig(t, planID, meteredFeature.ID(), feature.TypeMetered, nil, []plan.PricingTier{tier}),
	}

	subs := new(MockSubscriptionRepository)
	subs.On("ListBillableByTenant", mock.Anything, tenantID).Return([]*subscription.Subscription{sub}, nil)
	configs := new(MockFeatureConfigRepository)
	configs.On("ListByPlans", mock.Anything, []shared.ID{planID}).Return(cfgs, nil)
	features := new(MockFeatureRepository)
	features.On("GetByID", mock.Anything, boolFeature.ID()).Return(boolFeature, nil)
	features.On("GetByID", mock.Anything, quotaFeature.ID()).Return(quotaFeature, nil)
	features.On("GetByID", mock.Anything, meteredFeature.ID()).Return(meteredFeature, nil)
	events := new(MockUsageRepository)
	events.On("GetAggregatedUsage", mock.Anything, []shared.ID{sub.ID()}, sub.CurrentPeriodStart()).
		Return([]usage.AggregatedUsage{{FeatureCode: "api_calls", Total: 1200}}, nil)

	svc := NewEntitlementService(subs, new(MockPlanRepository), configs, features, events, nil, logger.NewNop())

	set, err := svc.GetEntitlements(ctx, tenantID.String(), "")
	require.NoError(t, err)

	require.Len(t, set.Entitlements, 3)
	assert.True(t, set.Entitlements["sso"].Enabled)
	assert.Nil(t, set.Entitlements["sso"].Limit)

	require.NotNil(t, set.Entitlements["seats"].Limit)
	assert.Equal(t, int64(25), *set.Entitlements["seats"].Limit)

	assert.Len(t, set.Entitlements["api_calls"].PricingTiers, 1)
	assert.Equal(t, int64(1200), set.Usage["api_calls"])
}

func TestEntitlementService_NoBillableSubscriptions(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	cancelled := testSubscription(t, tenantID, shared.NewID(), subscription.StatusActive)
	require.NoError(t, cancelled.Cancel("churn", time.Now().UTC()))

	subs := new(MockSubscriptionRepository)
	subs.On("ListBillableByTenant", mock.Anything, tenantID).Return([]*subscription.Subscription{cancelled}, nil)

	svc := NewEntitlementService(subs, new(MockPlanRepository), new(MockFeatureConfigRepository), new(MockFeatureRepository), new(MockUsageRepository), nil, logger.NewNop())

	set, err := svc.GetEntitlements(ctx, tenantID.String(), "")
	require.NoError(t, err)
	assert.Empty(t, set.Entitlements)
	assert.Empty(t, set.Usage)
}

func TestEntitlementService_FirstAvailableConfigWins(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	productID := shared.NewID()
	planA := shared.NewID()
	planB := shared.NewID()
	subA := testSubscription(t, tenantID, planA, subscription.StatusActive)
	subB := testSubscription(t, tenantID, planB, subscription.StatusActive)

	quotaFeature, err := feature.NewFeature(feature.NewFeatureParams{
		ProductID:   productID,
		Name:        "Seats",
		Code:        "seats",
		FeatureType: feature.TypeQuota,
		ChargeModel: feature.ChargeModelPerSeat,
	})
	require.NoError(t, err)

	limitA := int64(10)
	limitB := int64(50)
	cfgs := []*plan.FeatureConfig{
		testConfig(t, planA, quotaFeature.ID(), feature.TypeQuota, &limitA, nil),
		testConfig(t, planB, quotaFeature.ID(), feature.TypeQuota, &limitB, nil),
	}

	subs := new(MockSubscriptionRepository)
	subs.On("ListBillableByTenant", mock.Anything, tenantID).Return([]*subscription.Subscription{subA, subB}, nil)
	configs := new(MockFeatureConfigRepository)
	configs.On("ListByPlans", mock.Anything, mock.Anything).Return(cfgs, nil)
	features := new(MockFeatureRepository)
	features.On("GetByID", mock.Anything, quotaFeature.ID()).Return(quotaFeature, nil)

	svc := NewEntitlementService(subs, new(MockPlanRepository), configs, features, new(MockUsageRepository), nil, logger.NewNop())

	set, err := svc.GetEntitlements(ctx, tenantID.String(), "")
	require.NoError(t, err)

	require.NotNil(t, set.Entitlements["seats"].Limit)
	assert.Equal(t, int64(10), *set.Entitlements["seats"].Limit)
}

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
	"github.com/meterly/api/pkg/domain/product"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/logger"
)

func testPrice(t *testing.T, value int64) plan.Price {
	t.Helper()
	period, err := plan.NewRecurringChargePeriod(plan.FrequencyMonthly, time.Now().UTC(), nil)
	require.NoError(t, err)
	price, err := plan.NewPrice(value, "USD", "monthly", period)
	require.NoError(t, err)
	return price
}

func testFamily(t *testing.T, tenantID shared.ID, productIDs ...shared.ID) *plan.Family {
	t.Helper()
	family, err := plan.CreateInitialPlan(plan.NewPlanParams{
		TenantID:   tenantID,
		Name:       "Team Plan",
		PlanType:   plan.TypeStandard,
		ProductIDs: productIDs,
		Price:      testPrice(t, 2900),
	})
	require.NoError(t, err)
	return family
}

func TestPlanService_CreatePlan(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()

	prod, err := product.NewProduct(tenantID, "API Gateway", "")
	require.NoError(t, err)

	plans := new(MockPlanRepository)
	products := new(MockProductRepository)
	products.On("GetByID", mock.Anything, prod.ID()).Return(prod, nil)
	plans.On("ListByPlanCode", mock.Anything, tenantID, "TEAM_PLAN").Return([]*plan.Plan{}, nil)
	plans.On("Create", mock.Anything, mock.AnythingOfType("*plan.Plan")).Return(nil)

	svc := NewPlanService(plans, nil, nil, products, nil, nil, logger.NewNop())

	created, err := svc.CreatePlan(ctx, CreatePlanInput{
		TenantID:   tenantID.String(),
		Name:       "Team Plan",
		PlanType:   "standard",
		ProductIDs: []string{prod.ID().String()},
		Price: PriceInput{
			Value:           2900,
			Currency:        "usd",
			ChargeFrequency: "monthly",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, created.Version())
	assert.Equal(t, "TEAM_PLAN", created.PlanCode())
	assert.True(t, created.IsActive())
	assert.Equal(t, "USD", created.Price().Currency())
	plans.AssertExpectations(t)
}

func TestPlanService_CreatePlan_DuplicateCode(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()

	prod, err := product.NewProduct(tenantID, "API Gateway", "")
	require.NoError(t, err)
	existing := testFamily(t, tenantID, prod.ID())

	plans := new(MockPlanRepository)
	products := new(MockProductRepository)
	products.On("GetByID", mock.Anything, prod.ID()).Return(prod, nil)
	plans.On("ListByPlanCode", mock.Anything, tenantID, "TEAM_PLAN").
		Return([]*plan.Plan{existing.Latest()}, nil)

	svc := NewPlanService(plans, nil, nil, products, nil, nil, logger.NewNop())

	_, err = svc.CreatePlan(ctx, CreatePlanInput{
		TenantID:   tenantID.String(),
		Name:       "Team Plan",
		PlanType:   "standard",
		ProductIDs: []string{prod.ID().String()},
		Price:      PriceInput{Value: 2900, Currency: "USD", ChargeFrequency: "monthly"},
	})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))
	plans.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlanService_CreatePlan_ForeignProduct(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()

	// Product owned by a different tenant must not be attachable.
	foreign, err := product.NewProduct(shared.NewID(), "Other", "")
	require.NoError(t, err)

	products := new(MockProductRepository)
	products.On("GetByID", mock.Anything, foreign.ID()).Return(foreign, nil)

	svc := NewPlanService(new(MockPlanRepository), nil, nil, products, nil, nil, logger.NewNop())

	_, err = svc.CreatePlan(ctx, CreatePlanInput{
		TenantID:   tenantID.String(),
		Name:       "Team Plan",
		PlanType:   "standard",
		ProductIDs: []string{foreign.ID().String()},
		Price:      PriceInput{Value: 2900, Currency: "USD", ChargeFrequency: "monthly"},
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestPlanService_UpdatePlan_ForksWithActiveSubscriptions(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	productID := shared.NewID()
	family := testFamily(t, tenantID, productID)
	originalID := family.Latest().ID()

	subs := new(MockSubscriptionRepository)
	subs.On("CountBillableByPlan", mock.Anything, originalID).Return(3, nil)

	configs := new(MockFeatureConfigRepository)
	store := &MockPlanStore{Family: family}
	svc := NewPlanService(new(MockPlanRepository), store, configs, new(MockProductRepository), nil, subs, logger.NewNop())

	newName := "Team Plan Plus"
	out, err := svc.UpdatePlan(ctx, tenantID.String(), "TEAM_PLAN", UpdatePlanInput{Name: &newName})
	require.NoError(t, err)

	assert.True(t, out.Forked)
	assert.Equal(t, 1, out.Original.Version())
	assert.Equal(t, plan.StatusArchived, out.Original.Status())
	assert.Equal(t, 2, out.Updated.Version())
	assert.Equal(t, "Team Plan Plus", out.Updated.Name())
	assert.Equal(t, "TEAM_PLAN", out.Updated.PlanCode())

	// The config carry happens inside the store transaction, never as a
	// follow-up write that could commit separately from the fork.
	configs.AssertNotCalled(t, "ListByPlan", mock.Anything, mock.Anything)
	configs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlanService_UpdatePlan_InPlaceWithoutSubscriptions(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	family := testFamily(t, tenantID, shared.NewID())
	originalID := family.Latest().ID()

	subs := new(MockSubscriptionRepository)
	subs.On("CountBillableByPlan", mock.Anything, originalID).Return(0, nil)

	configs := new(MockFeatureConfigRepository)
	store := &MockPlanStore{Family: family}
	svc := NewPlanService(new(MockPlanRepository), store, configs, new(MockProductRepository), nil, subs, logger.NewNop())

	newName := "Team Plan Plus"
	out, err := svc.UpdatePlan(ctx, tenantID.String(), "TEAM_PLAN", UpdatePlanInput{Name: &newName})
	require.NoError(t, err)

	assert.False(t, out.Forked)
	assert.Same(t, out.Original, out.Updated)
	assert.Equal(t, 1, out.Updated.Version())
	assert.Equal(t, "Team Plan Plus", out.Updated.Name())
	configs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlanService_ConfigureFeature(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	productID := shared.NewID()
	family := testFamily(t, tenantID, productID)
	p := family.Latest()

	f, err := feature.NewFeature(feature.NewFeatureParams{
		ProductID:   productID,
		Name:        "Seats",
		Code:        "seats",
		FeatureType: feature.TypeQuota,
		ChargeModel: feature.ChargeModelFlat,
	})
	require.NoError(t, err)

	plans := new(MockPlanRepository)
	plans.On("GetByID", mock.Anything, p.ID()).Return(p, nil)
	features := new(MockFeatureRepository)
	features.On("GetByID", mock.Anything, f.ID()).Return(f, nil)
	configs := new(MockFeatureConfigRepository)
	configs.On("Create", mock.Anything, mock.AnythingOfType("*plan.FeatureConfig")).Return(nil)

	svc := NewPlanService(plans, nil, configs, new(MockProductRepository), features, nil, logger.NewNop())

	limit := int64(25)
	cfg, err := svc.ConfigureFeature(ctx, ConfigureFeatureInput{
		PlanID:     p.ID().String(),
		FeatureID:  f.ID().String(),
		IsActive:   true,
		QuotaLimit: &limit,
	})
	require.NoError(t, err)

	// Classification always comes from the feature itself.
	assert.Equal(t, feature.TypeQuota, cfg.FeatureType())
	require.NotNil(t, cfg.QuotaLimit())
	assert.Equal(t, int64(25), *cfg.QuotaLimit())
}

func TestPlanService_ConfigureFeature_ProductNotOnPlan(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	family := testFamily(t, tenantID, shared.NewID())
	p := family.Latest()

	f, err := feature.NewFeature(feature.NewFeatureParams{
		ProductID:   shared.NewID(),
		Name:        "Seats",
		Code:        "seats",
		FeatureType: feature.TypeBoolean,
		ChargeModel: feature.ChargeModelFlat,
	})
	require.NoError(t, err)

	plans := new(MockPlanRepository)
	plans.On("GetByID", mock.Anything, p.ID()).Return(p, nil)
	features := new(MockFeatureRepository)
	features.On("GetByID", mock.Anything, f.ID()).Return(f, nil)
	configs := new(MockFeatureConfigRepository)

	svc := NewPlanService(plans, nil, configs, new(MockProductRepository), features, nil, logger.NewNop())

	_, err = svc.ConfigureFeature(ctx, ConfigureFeatureInput{
		PlanID:    p.ID().String(),
		FeatureID: f.ID().String(),
		IsActive:  true,
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	configs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

package app

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/meterly/api/pkg/domain/account"
	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/product"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/domain/usage"
)

// MockPlanRepository is a mock implementation of plan.Repository for testing.
type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id shared.ID) (*plan.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plan.Plan), args.Error(1)
}

func (m *MockPlanRepository) GetByIDs(ctx context.Context, ids []shared.ID) ([]*plan.Plan, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*plan.Plan), args.Error(1)
}

func (m *MockPlanRepository) ListByPlanCode(ctx context.Context, tenantID shared.ID, planCode string) ([]*plan.Plan, error) {
	args := m.Called(ctx, tenantID, planCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*plan.Plan), args.Error(1)
}

func (m *MockPlanRepository) ListByTenant(ctx context.Context, tenantID shared.ID) ([]*plan.Plan, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*plan.Plan), args.Error(1)
}

func (m *MockPlanRepository) Update(ctx context.Context, p *plan.Plan) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPlanRepository) Delete(ctx context.Context, id shared.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPlanStore runs the update closure against an in-memory family so
// tests exercise the real aggregate logic without a database.
type MockPlanStore struct {
	Family *plan.Family
	Err    error
}

func (m *MockPlanStore) UpdateFamily(ctx context.Context, tenantID shared.ID, planCode string, fn func(*plan.Family) (plan.UpdateResult, error)) (plan.UpdateResult, error) {
	if m.Err != nil {
		return plan.UpdateResult{}, m.Err
	}
	return fn(m.Family)
}

// MockFeatureConfigRepository is a mock implementation of plan.FeatureConfigRepository.
type MockFeatureConfigRepository struct {
	mock.Mock
}

func (m *MockFeatureConfigRepository) Create(ctx context.Context, c *plan.FeatureConfig) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockFeatureConfigRepository) GetByID(ctx context.Context, id shared.ID) (*plan.FeatureConfig, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plan.FeatureConfig), args.Error(1)
}

func (m *MockFeatureConfigRepository) ListByPlan(ctx context.Context, planID shared.ID) ([]*plan.FeatureConfig, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*plan.FeatureConfig), args.Error(1)
}

func (m *MockFeatureConfigRepository) ListByPlans(ctx context.Context, planIDs []shared.ID) ([]*plan.FeatureConfig, error) {
	args := m.Called(ctx, planIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*plan.FeatureConfig), args.Error(1)
}

func (m *MockFeatureConfigRepository) Update(ctx context.Context, c *plan.FeatureConfig) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockFeatureConfigRepository) Delete(ctx context.Context, id shared.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProductRepository is a mock implementation of product.Repository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, p *product.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id shared.ID) (*product.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductRepository) ListByTenant(ctx context.Context, tenantID shared.ID) ([]*product.Product, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*product.Product), args.Error(1)
}

func (m *MockProductRepository) Update(ctx context.Context, p *product.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id shared.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockFeatureRepository is a mock implementation of feature.Repository.
type MockFeatureRepository struct {
	mock.Mock
}

func (m *MockFeatureRepository) Create(ctx context.Context, f *feature.Feature) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFeatureRepository) GetByID(ctx context.Context, id shared.ID) (*feature.Feature, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*feature.Feature), args.Error(1)
}

func (m *MockFeatureRepository) GetByCode(ctx context.Context, productID shared.ID, code string) (*feature.Feature, error) {
	args := m.Called(ctx, productID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*feature.Feature), args.Error(1)
}

func (m *MockFeatureRepository) ListByProduct(ctx context.Context, productID shared.ID) ([]*feature.Feature, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*feature.Feature), args.Error(1)
}

func (m *MockFeatureRepository) Update(ctx context.Context, f *feature.Feature) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFeatureRepository) Delete(ctx context.Context, id shared.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSubscriptionRepository is a mock implementation of subscription.Repository.
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, id shared.ID) (*subscription.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ListByAccount(ctx context.Context, accountID shared.ID) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*subscription.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ListByCustomer(ctx context.Context, tenantID, customerID shared.ID) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, tenantID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*subscription.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ListBillableByTenant(ctx context.Context, tenantID shared.ID) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*subscription.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) CountBillableByPlan(ctx context.Context, planID shared.ID) (int, error) {
	args := m.Called(ctx, planID)
	return args.Int(0), args.Error(1)
}

func (m *MockSubscriptionRepository) ListDueForRenewal(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*subscription.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) Delete(ctx context.Context, id shared.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAccountRepository is a mock implementation of account.Repository.
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, a *account.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id shared.ID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) ListByTenant(ctx context.Context, tenantID shared.ID) ([]*account.Account, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, a *account.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAccountRepository) Delete(ctx context.Context, id shared.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPaymentRepository is a mock implementation of payment.Repository.
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id shared.ID) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListByAccount(ctx context.Context, accountID shared.ID) ([]*payment.Payment, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListBySubscription(ctx context.Context, subscriptionID shared.ID) ([]*payment.Payment, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// MockGateway is a mock implementation of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCustomer(ctx context.Context, accountID shared.ID, billingEmail string) (string, error) {
	args := m.Called(ctx, accountID, billingEmail)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) ProcessPayment(ctx context.Context, amount int64, currency, customerID string, metadata shared.Metadata) (payment.GatewayResult, error) {
	args := m.Called(ctx, amount, currency, customerID, metadata)
	return args.Get(0).(payment.GatewayResult), args.Error(1)
}

func (m *MockGateway) RefundPayment(ctx context.Context, gatewayPaymentID string, amount int64) (payment.GatewayResult, error) {
	args := m.Called(ctx, gatewayPaymentID, amount)
	return args.Get(0).(payment.GatewayResult), args.Error(1)
}

func (m *MockGateway) GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (payment.Status, error) {
	args := m.Called(ctx, gatewayPaymentID)
	return args.Get(0).(payment.Status), args.Error(1)
}

// MockUsageRepository is a mock implementation of usage.Repository.
type MockUsageRepository struct {
	mock.Mock
}

func (m *MockUsageRepository) Record(ctx context.Context, e *usage.Event) (*usage.Event, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usage.Event), args.Error(1)
}

func (m *MockUsageRepository) GetByID(ctx context.Context, id shared.ID) (*usage.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usage.Event), args.Error(1)
}

func (m *MockUsageRepository) ListBySubscription(ctx context.Context, subscriptionID shared.ID, since time.Time) ([]*usage.Event, error) {
	args := m.Called(ctx, subscriptionID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*usage.Event), args.Error(1)
}

func (m *MockUsageRepository) GetAggregatedUsage(ctx context.Context, subscriptionIDs []shared.ID, since time.Time) ([]usage.AggregatedUsage, error) {
	args := m.Called(ctx, subscriptionIDs, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]usage.AggregatedUsage), args.Error(1)
}

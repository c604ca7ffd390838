package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/logger"
)

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

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueSubscriptionRenewal(ctx context.Context, payload SubscriptionTaskPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockEnqueuer) EnqueueSubscriptionExpiry(ctx context.Context, payload SubscriptionTaskPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func dueSubscription(t *testing.T, status subscription.Status) *subscription.Subscription {
	t.Helper()
	now := time.Now().UTC()
	return subscription.Reconstitute(subscription.ReconstituteParams{
		ID:                 shared.NewID(),
		TenantID:           shared.NewID(),
		AccountID:          shared.NewID(),
		CustomerID:         shared.NewID(),
		PlanID:             shared.NewID(),
		Status:             status,
		Seats:              1,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now.AddDate(0, 0, -10),
		CreatedAt:          now.AddDate(0, -1, 0),
		UpdatedAt:          now,
	})
}

func TestSweeper_SweepRenewals(t *testing.T) {
	repo := new(MockSubscriptionRepository)
	enqueuer := new(MockEnqueuer)

	first := dueSubscription(t, subscription.StatusActive)
	second := dueSubscription(t, subscription.StatusPastDue)
	repo.On("ListDueForRenewal", mock.Anything, mock.AnythingOfType("time.Time")).
		Return([]*subscription.Subscription{first, second}, nil)
	enqueuer.On("EnqueueSubscriptionRenewal", mock.Anything, mock.Anything).Return(nil).Twice()

	sweeper := NewSweeper(repo, enqueuer, SweeperConfig{RenewalLookahead: 24 * time.Hour, GracePeriodDays: 7}, logger.NewNop())
	err := sweeper.SweepRenewals(context.Background())

	require.NoError(t, err)
	enqueuer.AssertNumberOfCalls(t, "EnqueueSubscriptionRenewal", 2)
}

func TestSweeper_SweepExpiries_OnlyPastDue(t *testing.T) {
	repo := new(MockSubscriptionRepository)
	enqueuer := new(MockEnqueuer)

	active := dueSubscription(t, subscription.StatusActive)
	pastDue := dueSubscription(t, subscription.StatusPastDue)
	repo.On("ListDueForRenewal", mock.Anything, mock.AnythingOfType("time.Time")).
		Return([]*subscription.Subscription{active, pastDue}, nil)
	enqueuer.On("EnqueueSubscriptionExpiry", mock.Anything, SubscriptionTaskPayload{
		SubscriptionID: pastDue.ID().String(),
		TenantID:       pastDue.TenantID().String(),
	}).Return(nil).Once()

	sweeper := NewSweeper(repo, enqueuer, SweeperConfig{RenewalLookahead: 24 * time.Hour, GracePeriodDays: 7}, logger.NewNop())
	err := sweeper.SweepExpiries(context.Background())

	require.NoError(t, err)
	enqueuer.AssertExpectations(t)
	enqueuer.AssertNotCalled(t, "EnqueueSubscriptionExpiry", mock.Anything, SubscriptionTaskPayload{
		SubscriptionID: active.ID().String(),
		TenantID:       active.TenantID().String(),
	})
}

func TestSweeper_SweepRenewals_EnqueueFailureContinues(t *testing.T) {
	repo := new(MockSubscriptionRepository)
	enqueuer := new(MockEnqueuer)

	first := dueSubscription(t, subscription.StatusActive)
	second := dueSubscription(t, subscription.StatusActive)
	repo.On("ListDueForRenewal", mock.Anything, mock.AnythingOfType("time.Time")).
		Return([]*subscription.Subscription{first, second}, nil)
	enqueuer.On("EnqueueSubscriptionRenewal", mock.Anything, SubscriptionTaskPayload{
		SubscriptionID: first.ID().String(),
		TenantID:       first.TenantID().String(),
	}).Return(assert.AnError).Once()
	enqueuer.On("EnqueueSubscriptionRenewal", mock.Anything, SubscriptionTaskPayload{
		SubscriptionID: second.ID().String(),
		TenantID:       second.TenantID().String(),
	}).Return(nil).Once()

	sweeper := NewSweeper(repo, enqueuer, SweeperConfig{RenewalLookahead: 24 * time.Hour, GracePeriodDays: 7}, logger.NewNop())
	err := sweeper.SweepRenewals(context.Background())

	require.NoError(t, err)
	enqueuer.AssertExpectations(t)
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/domain/usage"
	"github.com/meterly/api/pkg/logger"
)

func TestUsageService_RecordUsage(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	sub := testSubscription(t, tenantID, shared.NewID(), subscription.StatusActive)

	subs := new(MockSubscriptionRepository)
	subs.On("GetByID", mock.Anything, sub.ID()).Return(sub, nil)

	var recorded *usage.Event
	events := new(MockUsageRepository)
	events.On("Record", mock.Anything, mock.AnythingOfType("*usage.Event")).
		Run(func(args mock.Arguments) {
			recorded = args.Get(1).(*usage.Event)
		}).
		Return(&usage.Event{}, nil)

	svc := NewUsageService(events, subs, nil, logger.NewNop())

	_, err := svc.RecordUsage(ctx, RecordUsageInput{
		TenantID:       tenantID.String(),
		SubscriptionID: sub.ID().String(),
		FeatureCode:    "api_calls",
		Quantity:       42,
		IdempotencyKey: "req-001",
	})
	require.NoError(t, err)

	require.NotNil(t, recorded)
	assert.Equal(t, "api_calls", recorded.FeatureCode())
	assert.Equal(t, int64(42), recorded.Quantity())
	assert.Equal(t, "req-001", recorded.IdempotencyKey())
	events.AssertExpectations(t)
}

func TestUsageService_RecordUsage_DuplicateKeyReturnsOriginal(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	sub := testSubscription(t, tenantID, shared.NewID(), subscription.StatusActive)

	original, err := usage.NewEvent(usage.NewEventParams{
		TenantID:       tenantID,
		SubscriptionID: sub.ID(),
		CustomerID:     shared.NewID(),
		FeatureCode:    "api_calls",
		Quantity:       42,
		IdempotencyKey: "req-001",
	})
	require.NoError(t, err)

	subs := new(MockSubscriptionRepository)
	subs.On("GetByID", mock.Anything, sub.ID()).Return(sub, nil)
	events := new(MockUsageRepository)
	events.On("Record", mock.Anything, mock.AnythingOfType("*usage.Event")).Return(original, nil)

	svc := NewUsageService(events, subs, nil, logger.NewNop())

	// A retry with the same key yields the first persisted event.
	persisted, err := svc.RecordUsage(ctx, RecordUsageInput{
		TenantID:       tenantID.String(),
		SubscriptionID: sub.ID().String(),
		FeatureCode:    "api_calls",
		Quantity:       42,
		IdempotencyKey: "req-001",
	})
	require.NoError(t, err)
	assert.True(t, persisted.ID().Equals(original.ID()))
}

func TestUsageService_RecordUsage_NotBillable(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	sub := testSubscription(t, tenantID, shared.NewID(), subscription.StatusActive)
	require.NoError(t, sub.Cancel("churn", time.Now().UTC()))

	subs := new(MockSubscriptionRepository)
	subs.On("GetByID", mock.Anything, sub.ID()).Return(sub, nil)
	events := new(MockUsageRepository)

	svc := NewUsageService(events, subs, nil, logger.NewNop())

	_, err := svc.RecordUsage(ctx, RecordUsageInput{
		TenantID:       tenantID.String(),
		SubscriptionID: sub.ID().String(),
		FeatureCode:    "api_calls",
		Quantity:       1,
		IdempotencyKey: "req-002",
	})
	require.Error(t, err)
	assert.True(t, shared.IsStateConflict(err))
	events.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestUsageService_RecordUsage_WrongTenant(t *testing.T) {
	ctx := context.Background()
	sub := testSubscription(t, shared.NewID(), shared.NewID(), subscription.StatusActive)

	subs := new(MockSubscriptionRepository)
	subs.On("GetByID", mock.Anything, sub.ID()).Return(sub, nil)

	svc := NewUsageService(new(MockUsageRepository), subs, nil, logger.NewNop())

	_, err := svc.RecordUsage(ctx, RecordUsageInput{
		TenantID:       shared.NewID().String(),
		SubscriptionID: sub.ID().String(),
		FeatureCode:    "api_calls",
		Quantity:       1,
		IdempotencyKey: "req-003",
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

package subscription_test

import (
	"testing"
	"time"

	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan(t *testing.T, value int64) *plan.Plan {
	t.Helper()
	period, err := plan.NewRecurringChargePeriod(plan.FrequencyMonthly, time.Now().UTC(), nil)
	require.NoError(t, err)
	price, err := plan.NewPrice(value, "USD", "", period)
	require.NoError(t, err)
	family, err := plan.CreateInitialPlan(plan.NewPlanParams{
		TenantID:   shared.NewID(),
		Name:       "Test Plan",
		PlanType:   plan.TypePro,
		ProductIDs: []shared.ID{shared.NewID()},
		Price:      price,
	})
	require.NoError(t, err)
	return family.Latest()
}

func billableSub(t *testing.T, planID shared.ID, start, end time.Time) *subscription.Subscription {
	t.Helper()
	sub, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		TenantID:           shared.NewID(),
		AccountID:          shared.NewID(),
		CustomerID:         shared.NewID(),
		PlanID:             planID,
		Status:             subscription.StatusActive,
		Seats:              1,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	})
	require.NoError(t, err)
	return sub
}

func TestNewSubscription(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	t.Run("period end must be after start", func(t *testing.T) {
		_, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
			TenantID:           shared.NewID(),
			AccountID:          shared.NewID(),
			CustomerID:         shared.NewID(),
			PlanID:             shared.NewID(),
			Status:             subscription.StatusActive,
			Seats:              1,
			CurrentPeriodStart: end,
			CurrentPeriodEnd:   start,
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("zero seats fail", func(t *testing.T) {
		_, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
			TenantID:           shared.NewID(),
			AccountID:          shared.NewID(),
			CustomerID:         shared.NewID(),
			PlanID:             shared.NewID(),
			Status:             subscription.StatusActive,
			Seats:              0,
			CurrentPeriodStart: start,
			CurrentPeriodEnd:   end,
		})
		require.Error(t, err)
	})
}

func TestSubscription_CalculateUpgradeAmount(t *testing.T) {
	// 30-day period with 20 full days remaining: $29 current, $99 new.
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	now := start.AddDate(0, 0, 10)

	current := testPlan(t, 2900)
	next := testPlan(t, 9900)
	sub := billableSub(t, current.ID(), start, end)

	amount, err := sub.CalculateUpgradeAmount(current, next, now)
	require.NoError(t, err)

	// dailyRate = 2900/30 = 96.67, credit = floor(96.67*20) = 1933.
	assert.Equal(t, int64(7967), amount)
}

func TestSubscription_CalculateUpgradeAmount_EdgeCases(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)

	current := testPlan(t, 2900)
	cheap := testPlan(t, 100)
	sub := billableSub(t, current.ID(), start, end)

	t.Run("past period end credits nothing", func(t *testing.T) {
		amount, err := sub.CalculateUpgradeAmount(current, cheap, end.AddDate(0, 0, 5))
		require.NoError(t, err)
		assert.Equal(t, int64(100), amount)
	})

	t.Run("credit larger than new price floors at zero", func(t *testing.T) {
		amount, err := sub.CalculateUpgradeAmount(current, cheap, start)
		require.NoError(t, err)
		assert.Equal(t, int64(0), amount)
	})

	t.Run("mismatched current plan fails", func(t *testing.T) {
		_, err := sub.CalculateUpgradeAmount(cheap, current, start)
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("cancelled subscription fails", func(t *testing.T) {
		cancelled := billableSub(t, current.ID(), start, end)
		require.NoError(t, cancelled.Cancel("test", start))
		_, err := cancelled.CalculateUpgradeAmount(current, cheap, start)
		require.Error(t, err)
		assert.True(t, shared.IsStateConflict(err))
	})
}

func TestSubscription_UpgradeToPlan(t *testing.T) {
	start := time.Now().UTC().AddDate(0, 0, -10)
	end := time.Now().UTC().AddDate(0, 0, 20)
	current := testPlan(t, 2900)
	next := testPlan(t, 9900)

	t.Run("repoints plan and resets period", func(t *testing.T) {
		sub := billableSub(t, current.ID(), start, end)
		newEnd := time.Now().UTC().AddDate(0, 1, 0)

		require.NoError(t, sub.UpgradeToPlan(next, newEnd))
		assert.True(t, sub.PlanID().Equals(next.ID()))
		assert.Equal(t, subscription.StatusActive, sub.Status())
		assert.Equal(t, newEnd, sub.CurrentPeriodEnd())
	})

	t.Run("archived plan rejected", func(t *testing.T) {
		sub := billableSub(t, current.ID(), start, end)
		archived := testPlan(t, 9900)
		archived.Archive()

		err := sub.UpgradeToPlan(archived, time.Now().UTC().AddDate(0, 1, 0))
		require.Error(t, err)
		assert.True(t, shared.IsStateConflict(err))
	})

	t.Run("same plan rejected", func(t *testing.T) {
		sub := billableSub(t, current.ID(), start, end)
		err := sub.UpgradeToPlan(current, time.Now().UTC().AddDate(0, 1, 0))
		require.Error(t, err)
	})

	t.Run("nil plan rejected", func(t *testing.T) {
		sub := billableSub(t, current.ID(), start, end)
		err := sub.UpgradeToPlan(nil, time.Now().UTC().AddDate(0, 1, 0))
		require.Error(t, err)
	})
}

func TestSubscription_StatusTransitions(t *testing.T) {
	start := time.Now().UTC()
	end := start.AddDate(0, 1, 0)
	planID := shared.NewID()

	t.Run("cancel then activate fails", func(t *testing.T) {
		sub := billableSub(t, planID, start, end)
		require.NoError(t, sub.Cancel("downgrade", start))
		assert.Equal(t, subscription.StatusCancelled, sub.Status())
		assert.NotNil(t, sub.CancelledAt())

		err := sub.Activate()
		require.Error(t, err)
		assert.True(t, shared.IsStateConflict(err))
	})

	t.Run("double cancel fails", func(t *testing.T) {
		sub := billableSub(t, planID, start, end)
		require.NoError(t, sub.Cancel("first", start))
		err := sub.Cancel("second", start)
		require.Error(t, err)
	})

	t.Run("renew advances period and clears past due", func(t *testing.T) {
		sub := billableSub(t, planID, start, end)
		require.NoError(t, sub.MarkPastDue())

		newEnd := end.AddDate(0, 1, 0)
		require.NoError(t, sub.Renew(newEnd))
		assert.Equal(t, subscription.StatusActive, sub.Status())
		assert.Equal(t, end, sub.CurrentPeriodStart())
		assert.Equal(t, newEnd, sub.CurrentPeriodEnd())
	})

	t.Run("renew backwards fails", func(t *testing.T) {
		sub := billableSub(t, planID, start, end)
		err := sub.Renew(end.AddDate(0, 0, -1))
		require.Error(t, err)
	})

	t.Run("expire billable subscription", func(t *testing.T) {
		sub := billableSub(t, planID, start, end)
		require.NoError(t, sub.Expire())
		assert.Equal(t, subscription.StatusExpired, sub.Status())
		assert.False(t, sub.IsBillable())
	})
}

package plan_test

import (
	"testing"
	"time"

	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNewPrice(t *testing.T) {
	period, err := plan.NewRecurringChargePeriod(plan.FrequencyMonthly, time.Now().UTC(), nil)
	require.NoError(t, err)

	t.Run("normalizes currency", func(t *testing.T) {
		price, err := plan.NewPrice(2900, " usd ", "monthly pro", period)
		require.NoError(t, err)
		assert.Equal(t, "USD", price.Currency())
		assert.True(t, price.IsActive())
		assert.False(t, price.PriceID().IsZero())
	})

	t.Run("zero value allowed for free plans", func(t *testing.T) {
		_, err := plan.NewPrice(0, "USD", "", period)
		assert.NoError(t, err)
	})

	t.Run("negative value fails", func(t *testing.T) {
		_, err := plan.NewPrice(-1, "USD", "", period)
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("bad currency fails", func(t *testing.T) {
		_, err := plan.NewPrice(2900, "US", "", period)
		require.Error(t, err)
	})
}

func TestPrice_Equals(t *testing.T) {
	period, err := plan.NewRecurringChargePeriod(plan.FrequencyMonthly, time.Now().UTC(), nil)
	require.NoError(t, err)

	a, err := plan.NewPrice(2900, "USD", "first", period)
	require.NoError(t, err)
	b, err := plan.NewPrice(2900, "USD", "second", period)
	require.NoError(t, err)

	// Structural equality ignores the generated price ID and description.
	assert.True(t, a.Equals(b))
	assert.False(t, a.PriceID().Equals(b.PriceID()))

	c, err := plan.NewPrice(3900, "USD", "", period)
	require.NoError(t, err)
	assert.False(t, a.Equals(c))

	yearly, err := plan.NewRecurringChargePeriod(plan.FrequencyOneTime, time.Now().UTC(), nil)
	require.NoError(t, err)
	d, err := plan.NewPrice(2900, "USD", "", yearly)
	require.NoError(t, err)
	assert.False(t, a.Equals(d))
}

func TestNewRecurringChargePeriod(t *testing.T) {
	now := time.Now().UTC()

	t.Run("nil period count means unlimited", func(t *testing.T) {
		p, err := plan.NewRecurringChargePeriod(plan.FrequencyMonthly, now, nil)
		require.NoError(t, err)
		assert.True(t, p.Unlimited())
	})

	t.Run("bounded period count", func(t *testing.T) {
		p, err := plan.NewRecurringChargePeriod(plan.FrequencyWeekly, now, intPtr(12))
		require.NoError(t, err)
		assert.False(t, p.Unlimited())
	})

	t.Run("non-positive period count fails", func(t *testing.T) {
		_, err := plan.NewRecurringChargePeriod(plan.FrequencyMonthly, now, intPtr(0))
		require.Error(t, err)
	})

	t.Run("invalid frequency fails", func(t *testing.T) {
		_, err := plan.NewRecurringChargePeriod(plan.ChargeFrequency("yearly"), now, nil)
		require.Error(t, err)
	})
}

func TestNewRenewalDefinition(t *testing.T) {
	grace, err := plan.NewTimePeriod("grace", 7)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		r, err := plan.NewRenewalDefinition(true, true, "months", grace, 12)
		require.NoError(t, err)
		assert.Equal(t, 12, r.MaxRenewCycles())
	})

	t.Run("blank cycle units fail", func(t *testing.T) {
		_, err := plan.NewRenewalDefinition(true, true, " ", grace, 12)
		require.Error(t, err)
	})

	t.Run("negative max cycles fail", func(t *testing.T) {
		_, err := plan.NewRenewalDefinition(true, true, "months", grace, -1)
		require.Error(t, err)
	})
}

func TestNewTimePeriod(t *testing.T) {
	_, err := plan.NewTimePeriod("", 14)
	require.Error(t, err)

	_, err = plan.NewTimePeriod("trial", 0)
	require.Error(t, err)

	p, err := plan.NewTimePeriod("trial", 14)
	require.NoError(t, err)
	assert.Equal(t, 14, p.Value())
	assert.False(t, p.IsZero())
}

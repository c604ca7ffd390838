package plan_test

import (
	"testing"
	"time"

	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthlyPrice(t *testing.T, value int64) plan.Price {
	t.Helper()
	period, err := plan.NewRecurringChargePeriod(plan.FrequencyMonthly, time.Now().UTC(), nil)
	require.NoError(t, err)
	price, err := plan.NewPrice(value, "usd", "", period)
	require.NoError(t, err)
	return price
}

func newFamily(t *testing.T) *plan.Family {
	t.Helper()
	family, err := plan.CreateInitialPlan(plan.NewPlanParams{
		TenantID:   shared.NewID(),
		Name:       "Premium Plan",
		PlanType:   plan.TypePro,
		ProductIDs: []shared.ID{shared.NewID(), shared.NewID()},
		Price:      monthlyPrice(t, 2900),
	})
	require.NoError(t, err)
	return family
}

func TestCreateInitialPlan(t *testing.T) {
	t.Run("creates version 1 active plan", func(t *testing.T) {
		family := newFamily(t)
		latest := family.Latest()

		assert.Equal(t, 1, latest.Version())
		assert.Equal(t, plan.StatusActive, latest.Status())
		assert.True(t, latest.IsActive())
		assert.Equal(t, "PREMIUM_PLAN", latest.PlanCode())
		assert.Equal(t, "PREMIUM_PLAN", family.PlanCode())
	})

	t.Run("rejects empty product set", func(t *testing.T) {
		_, err := plan.CreateInitialPlan(plan.NewPlanParams{
			TenantID: shared.NewID(),
			Name:     "Premium Plan",
			PlanType: plan.TypePro,
			Price:    monthlyPrice(t, 2900),
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("rejects blank name", func(t *testing.T) {
		_, err := plan.CreateInitialPlan(plan.NewPlanParams{
			TenantID:   shared.NewID(),
			Name:       "   ",
			PlanType:   plan.TypePro,
			ProductIDs: []shared.ID{shared.NewID()},
			Price:      monthlyPrice(t, 2900),
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})
}

func TestFamilyFromPlans(t *testing.T) {
	t.Run("empty list fails", func(t *testing.T) {
		_, err := plan.FamilyFromPlans(nil)
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("latest is max version", func(t *testing.T) {
		family := newFamily(t)
		v1 := family.Latest()
		result, err := family.UpdateLatest(plan.Changes{}, true)
		require.NoError(t, err)

		rebuilt, err := plan.FamilyFromPlans([]*plan.Plan{v1, result.Updated})
		require.NoError(t, err)
		assert.Equal(t, 2, rebuilt.Latest().Version())
	})

	t.Run("mismatched plan code fails", func(t *testing.T) {
		a := newFamily(t).Latest()

		other, err := plan.CreateInitialPlan(plan.NewPlanParams{
			TenantID:   shared.NewID(),
			Name:       "Basic Plan",
			PlanType:   plan.TypeStandard,
			ProductIDs: []shared.ID{shared.NewID()},
			Price:      monthlyPrice(t, 900),
		})
		require.NoError(t, err)

		_, err = plan.FamilyFromPlans([]*plan.Plan{a, other.Latest()})
		require.Error(t, err)
	})
}

func TestFamily_Version(t *testing.T) {
	family := newFamily(t)

	got, err := family.Version(1)
	require.NoError(t, err)
	assert.Equal(t, family.Latest(), got)

	_, err = family.Version(7)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestFamily_UpdateLatest_Fork(t *testing.T) {
	family := newFamily(t)
	before := family.Latest()
	beforeID := before.ID()

	newName := "Premium Plan v2"
	newPrice := monthlyPrice(t, 3900)
	result, err := family.UpdateLatest(plan.Changes{
		Name:  &newName,
		Price: &newPrice,
	}, true)
	require.NoError(t, err)

	// Original is archived in place.
	assert.Same(t, before, result.Original)
	assert.Equal(t, plan.StatusArchived, result.Original.Status())
	assert.False(t, result.Original.IsActive())

	// Forked version has a fresh identity, bumped version, stable code.
	assert.NotSame(t, result.Original, result.Updated)
	assert.False(t, result.Updated.ID().Equals(beforeID))
	assert.Equal(t, result.Original.Version()+1, result.Updated.Version())
	assert.Equal(t, "PREMIUM_PLAN", result.Updated.PlanCode())
	assert.Equal(t, plan.StatusActive, result.Updated.Status())
	assert.Equal(t, "Premium Plan v2", result.Updated.Name())
	assert.Equal(t, int64(3900), result.Updated.Price().Value())

	// Family now resolves the fork as latest.
	assert.Same(t, result.Updated, family.Latest())
}

func TestFamily_UpdateLatest_Direct(t *testing.T) {
	family := newFamily(t)
	before := family.Latest()

	newName := "Premium Plan Renamed"
	result, err := family.UpdateLatest(plan.Changes{Name: &newName}, false)
	require.NoError(t, err)

	assert.Same(t, before, result.Original)
	assert.Same(t, result.Original, result.Updated)
	assert.Equal(t, 1, result.Updated.Version())
	assert.Equal(t, "Premium Plan Renamed", result.Updated.Name())
	assert.Equal(t, plan.StatusActive, result.Updated.Status())
}

func TestFamily_UpdateLatest_InvalidChanges(t *testing.T) {
	family := newFamily(t)
	blank := ""

	_, err := family.UpdateLatest(plan.Changes{Name: &blank}, false)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	// A failed update leaves the family untouched.
	assert.Equal(t, "Premium Plan", family.Latest().Name())
	assert.Equal(t, 1, family.Latest().Version())

	_, err = family.UpdateLatest(plan.Changes{Name: &blank}, true)
	require.Error(t, err)
	assert.Equal(t, plan.StatusActive, family.Latest().Status())
	assert.Equal(t, 1, family.Latest().Version())
}

func TestFamily_ArchiveVersion(t *testing.T) {
	family := newFamily(t)

	require.NoError(t, family.ArchiveVersion(1))
	assert.Equal(t, plan.StatusArchived, family.Latest().Status())

	// No fork happened.
	assert.Equal(t, 1, family.Latest().Version())

	err := family.ArchiveVersion(9)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestPlan_CreateNewVersion_PlanCodeStable(t *testing.T) {
	family := newFamily(t)

	newName := "Totally Different Name"
	next, err := family.Latest().CreateNewVersion(plan.Changes{Name: &newName})
	require.NoError(t, err)

	assert.Equal(t, "PREMIUM_PLAN", next.PlanCode())
	assert.Equal(t, "Totally Different Name", next.Name())
	assert.Equal(t, 2, next.Version())

	// The receiver is untouched.
	assert.Equal(t, "Premium Plan", family.Latest().Name())
	assert.Equal(t, 1, family.Latest().Version())
}

func TestPlan_RemoveProduct(t *testing.T) {
	productA := shared.NewID()
	productB := shared.NewID()

	family, err := plan.CreateInitialPlan(plan.NewPlanParams{
		TenantID:   shared.NewID(),
		Name:       "Premium Plan",
		PlanType:   plan.TypePro,
		ProductIDs: []shared.ID{productA, productB},
		Price:      monthlyPrice(t, 2900),
	})
	require.NoError(t, err)
	p := family.Latest()

	require.NoError(t, p.RemoveProduct(productB))
	assert.Len(t, p.ProductIDs(), 1)

	// Removing the last product fails and leaves the set unchanged.
	err = p.RemoveProduct(productA)
	require.Error(t, err)
	assert.True(t, shared.IsStateConflict(err))
	assert.Equal(t, []shared.ID{productA}, p.ProductIDs())
}

func TestPlan_AddProduct(t *testing.T) {
	family := newFamily(t)
	p := family.Latest()
	extra := shared.NewID()

	p.AddProduct(extra)
	assert.Len(t, p.ProductIDs(), 3)

	// Adding an existing product is a no-op.
	p.AddProduct(extra)
	assert.Len(t, p.ProductIDs(), 3)
}

func TestGeneratePlanCode(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Premium Plan", "PREMIUM_PLAN"},
		{"basic", "BASIC"},
		{"Pro  -  2024", "PRO_2024"},
		{"Éco Plan", "CO_PLAN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, plan.GeneratePlanCode(tt.name), tt.name)
	}
}

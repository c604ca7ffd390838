package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meterly/api/pkg/domain/account"
	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/logger"
)

func testAccount(t *testing.T, tenantID shared.ID, gatewayCustomerID string) *account.Account {
	t.Helper()
	acct, err := account.NewAccount(account.NewAccountParams{
		TenantID:     tenantID,
		CompanyName:  "Acme Corp",
		BillingEmail: "billing@acme.test",
	})
	require.NoError(t, err)
	if gatewayCustomerID != "" {
		acct.SetPaymentMethod("card", gatewayCustomerID)
	}
	return acct
}

func TestSubscriptionService_CreateSubscription_ChargesFirstPeriod(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	family := testFamily(t, tenantID, shared.NewID())
	p := family.Latest()
	acct := testAccount(t, tenantID, "cus_123")

	accounts := new(MockAccountRepository)
	accounts.On("GetByID", mock.Anything, acct.ID()).Return(acct, nil)
	plans := new(MockPlanRepository)
	plans.On("GetByID", mock.Anything, p.ID()).Return(p, nil)

	gateway := new(MockGateway)
	gateway.On("ProcessPayment", mock.Anything, int64(2900*3), "USD", "cus_123", mock.Anything).
		Return(payment.GatewayResult{Success: true, PaymentID: "pay_1", Status: payment.StatusSucceeded}, nil)

	payments := new(MockPaymentRepository)
	payments.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(nil)
	subs := new(MockSubscriptionRepository)
	subs.On("Create", mock.Anything, mock.AnythingOfType("*subscription.Subscription")).Return(nil)

	svc := NewSubscriptionService(subs, plans, accounts, payments, gateway, logger.NewNop())

	sub, err := svc.CreateSubscription(ctx, CreateSubscriptionInput{
		TenantID:   tenantID.String(),
		AccountID:  acct.ID().String(),
		CustomerID: shared.NewID().String(),
		PlanID:     p.ID().String(),
		Seats:      3,
	})
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusActive, sub.Status())
	assert.Equal(t, 3, sub.Seats())
	gateway.AssertExpectations(t)
	payments.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(pay *payment.Payment) bool {
		return pay.Status() == payment.StatusSucceeded && pay.Amount() == 8700
	}))
}

func TestSubscriptionService_CreateSubscription_DeclineIsHardStop(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	family := testFamily(t, tenantID, shared.NewID())
	p := family.Latest()
	acct := testAccount(t, tenantID, "cus_123")

	accounts := new(MockAccountRepository)
	accounts.On("GetByID", mock.Anything, acct.ID()).Return(acct, nil)
	plans := new(MockPlanRepository)
	plans.On("GetByID", mock.Anything, p.ID()).Return(p, nil)

	gateway := new(MockGateway)
	gateway.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(payment.GatewayResult{Success: false, ErrorMessage: "card declined"}, nil)

	payments := new(MockPaymentRepository)
	payments.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(nil)
	subs := new(MockSubscriptionRepository)

	svc := NewSubscriptionService(subs, plans, accounts, payments, gateway, logger.NewNop())

	_, err := svc.CreateSubscription(ctx, CreateSubscriptionInput{
		TenantID:   tenantID.String(),
		AccountID:  acct.ID().String(),
		CustomerID: shared.NewID().String(),
		PlanID:     p.ID().String(),
		Seats:      1,
	})
	require.Error(t, err)
	assert.True(t, shared.IsStateConflict(err))
	assert.Contains(t, err.Error(), "card declined")

	// No subscription row on a declined charge, but the failed payment is kept.
	subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	payments.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(pay *payment.Payment) bool {
		return pay.Status() == payment.StatusFailed
	}))
}

func TestSubscriptionService_CreateSubscription_NoPaymentMethod(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	family := testFamily(t, tenantID, shared.NewID())
	p := family.Latest()
	acct := testAccount(t, tenantID, "")

	accounts := new(MockAccountRepository)
	accounts.On("GetByID", mock.Anything, acct.ID()).Return(acct, nil)
	plans := new(MockPlanRepository)
	plans.On("GetByID", mock.Anything, p.ID()).Return(p, nil)
	subs := new(MockSubscriptionRepository)

	svc := NewSubscriptionService(subs, plans, accounts, new(MockPaymentRepository), new(MockGateway), logger.NewNop())

	_, err := svc.CreateSubscription(ctx, CreateSubscriptionInput{
		TenantID:   tenantID.String(),
		AccountID:  acct.ID().String(),
		CustomerID: shared.NewID().String(),
		PlanID:     p.ID().String(),
		Seats:      1,
	})
	require.Error(t, err)
	assert.True(t, shared.IsStateConflict(err))
	subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubscriptionService_CreateSubscription_ArchivedPlanRejected(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	family := testFamily(t, tenantID, shared.NewID())
	p := family.Latest()
	p.Archive()
	acct := testAccount(t, tenantID, "cus_123")

	accounts := new(MockAccountRepository)
	accounts.On("GetByID", mock.Anything, acct.ID()).Return(acct, nil)
	plans := new(MockPlanRepository)
	plans.On("GetByID", mock.Anything, p.ID()).Return(p, nil)

	svc := NewSubscriptionService(new(MockSubscriptionRepository), plans, accounts, new(MockPaymentRepository), new(MockGateway), logger.NewNop())

	_, err := svc.CreateSubscription(ctx, CreateSubscriptionInput{
		TenantID:   tenantID.String(),
		AccountID:  acct.ID().String(),
		CustomerID: shared.NewID().String(),
		PlanID:     p.ID().String(),
		Seats:      1,
	})
	require.Error(t, err)
	assert.True(t, shared.IsStateConflict(err))
}

func TestSubscriptionService_UpgradeSubscription_ChargesProratedDifference(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	productID := shared.NewID()
	acct := testAccount(t, tenantID, "cus_123")

	currentPlan := testFamily(t, tenantID, productID).Latest()
	newPlan, err := plan.NewPlan(plan.NewPlanParams{
		TenantID:   tenantID,
		Name:       "Pro Plan",
		PlanType:   plan.TypePro,
		ProductIDs: []shared.ID{productID},
		Price:      testPrice(t, 9900),
	})
	require.NoError(t, err)

	// Ten days into a thirty-day period: twenty unused days of the old
	// price are credited against the new price.
	now := time.Now().UTC()
	sub, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		TenantID:           tenantID,
		AccountID:          acct.ID(),
		CustomerID:         shared.NewID(),
		PlanID:             currentPlan.ID(),
		Status:             subscription.StatusActive,
		Seats:              1,
		CurrentPeriodStart: now.AddDate(0, 0, -10),
		CurrentPeriodEnd:   now.AddDate(0, 0, 20),
	})
	require.NoError(t, err)

	subs := new(MockSubscriptionRepository)
	subs.On("GetByID", mock.Anything, sub.ID()).Return(sub, nil)
	subs.On("Update", mock.Anything, sub).Return(nil)
	plans := new(MockPlanRepository)
	plans.On("GetByID", mock.Anything, currentPlan.ID()).Return(currentPlan, nil)
	plans.On("GetByID", mock.Anything, newPlan.ID()).Return(newPlan, nil)
	accounts := new(MockAccountRepository)
	accounts.On("GetByID", mock.Anything, acct.ID()).Return(acct, nil)

	gateway := new(MockGateway)
	gateway.On("ProcessPayment", mock.Anything, int64(7967), "USD", "cus_123", mock.Anything).
		Return(payment.GatewayResult{Success: true, PaymentID: "pay_2", Status: payment.StatusSucceeded}, nil)
	payments := new(MockPaymentRepository)
	payments.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(nil)

	svc := NewSubscriptionService(subs, plans, accounts, payments, gateway, logger.NewNop())

	out, err := svc.UpgradeSubscription(ctx, UpgradeSubscriptionInput{
		SubscriptionID: sub.ID().String(),
		NewPlanID:      newPlan.ID().String(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7967), out.AmountDue)
	require.NotNil(t, out.Payment)
	assert.Equal(t, payment.StatusSucceeded, out.Payment.Status())
	assert.True(t, out.Subscription.PlanID().Equals(newPlan.ID()))
	gateway.AssertExpectations(t)
}

func TestSubscriptionService_UpgradeSubscription_DeclineAborts(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	productID := shared.NewID()
	acct := testAccount(t, tenantID, "cus_123")

	currentPlan := testFamily(t, tenantID, productID).Latest()
	newPlan, err := plan.NewPlan(plan.NewPlanParams{
		TenantID:   tenantID,
		Name:       "Pro Plan",
		PlanType:   plan.TypePro,
		ProductIDs: []shared.ID{productID},
		Price:      testPrice(t, 9900),
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	sub, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		TenantID:           tenantID,
		AccountID:          acct.ID(),
		CustomerID:         shared.NewID(),
		PlanID:             currentPlan.ID(),
		Status:             subscription.StatusActive,
		Seats:              1,
		CurrentPeriodStart: now.AddDate(0, 0, -10),
		CurrentPeriodEnd:   now.AddDate(0, 0, 20),
	})
	require.NoError(t, err)

	subs := new(MockSubscriptionRepository)
	subs.On("GetByID", mock.Anything, sub.ID()).Return(sub, nil)
	plans := new(MockPlanRepository)
	plans.On("GetByID", mock.Anything, currentPlan.ID()).Return(currentPlan, nil)
	plans.On("GetByID", mock.Anything, newPlan.ID()).Return(newPlan, nil)
	accounts := new(MockAccountRepository)
	accounts.On("GetByID", mock.Anything, acct.ID()).Return(acct, nil)

	gateway := new(MockGateway)
	gateway.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(payment.GatewayResult{Success: false, ErrorMessage: "card declined"}, nil)
	payments := new(MockPaymentRepository)
	payments.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(nil)

	svc := NewSubscriptionService(subs, plans, accounts, payments, gateway, logger.NewNop())

	_, err = svc.UpgradeSubscription(ctx, UpgradeSubscriptionInput{
		SubscriptionID: sub.ID().String(),
		NewPlanID:      newPlan.ID().String(),
	})
	require.Error(t, err)

	// The subscription stays on the old plan after a declined charge.
	assert.True(t, sub.PlanID().Equals(currentPlan.ID()))
	subs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSubscriptionService_RenewSubscription_DeclineMarksPastDue(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	family := testFamily(t, tenantID, shared.NewID())
	p := family.Latest()
	acct := testAccount(t, tenantID, "cus_123")

	now := time.Now().UTC()
	sub, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		TenantID:           tenantID,
		AccountID:          acct.ID(),
		CustomerID:         shared.NewID(),
		PlanID:             p.ID(),
		Status:             subscription.StatusActive,
		Seats:              1,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now,
	})
	require.NoError(t, err)

	subs := new(MockSubscriptionRepository)
	subs.On("GetByID", mock.Anything, sub.ID()).Return(sub, nil)
	subs.On("Update", mock.Anything, sub).Return(nil)
	plans := new(MockPlanRepository)
	plans.On("GetByID", mock.Anything, p.ID()).Return(p, nil)
	accounts := new(MockAccountRepository)
	accounts.On("GetByID", mock.Anything, acct.ID()).Return(acct, nil)

	gateway := new(MockGateway)
	gateway.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(payment.GatewayResult{Success: false, ErrorMessage: "insufficient funds"}, nil)
	payments := new(MockPaymentRepository)
	payments.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(nil)

	svc := NewSubscriptionService(subs, plans, accounts, payments, gateway, logger.NewNop())

	_, err = svc.RenewSubscription(ctx, sub.ID().String())
	require.Error(t, err)

	assert.Equal(t, subscription.StatusPastDue, sub.Status())
	subs.AssertCalled(t, "Update", mock.Anything, sub)
}

func TestSubscriptionService_CancelSubscription(t *testing.T) {
	ctx := context.Background()
	tenantID := shared.NewID()
	now := time.Now().UTC()
	sub, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		TenantID:           tenantID,
		AccountID:          shared.NewID(),
		CustomerID:         shared.NewID(),
		PlanID:             shared.NewID(),
		Status:             subscription.StatusActive,
		Seats:              1,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	subs := new(MockSubscriptionRepository)
	subs.On("GetByID", mock.Anything, sub.ID()).Return(sub, nil)
	subs.On("Update", mock.Anything, sub).Return(nil)

	svc := NewSubscriptionService(subs, new(MockPlanRepository), new(MockAccountRepository), new(MockPaymentRepository), new(MockGateway), logger.NewNop())

	cancelled, err := svc.CancelSubscription(ctx, sub.ID().String(), "downgrading")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, cancelled.Status())
	assert.Equal(t, "downgrading", cancelled.CancellationReason())
}

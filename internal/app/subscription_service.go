package app

import (
	"context"
	"time"

	"github.com/meterly/api/internal/metrics"
	"github.com/meterly/api/pkg/domain/account"
	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/logger"
)

// SubscriptionService handles the subscription lifecycle: creation with
// upfront payment, mid-period upgrades with proration, renewal, and
// cancellation.
type SubscriptionService struct {
	subscriptions subscription.Repository
	plans         plan.Repository
	accounts      account.Repository
	payments      payment.Repository
	gateway       payment.Gateway
	logger        *logger.Logger
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(
	subscriptions subscription.Repository,
	plans plan.Repository,
	accounts account.Repository,
	payments payment.Repository,
	gateway payment.Gateway,
	log *logger.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptions: subscriptions,
		plans:         plans,
		accounts:      accounts,
		payments:      payments,
		gateway:       gateway,
		logger:        log.With("service", "subscription"),
	}
}

// CreateSubscriptionInput represents input for creating a subscription.
type CreateSubscriptionInput struct {
	TenantID   string         `validate:"required,uuid"`
	AccountID  string         `validate:"required,uuid"`
	CustomerID string         `validate:"required,uuid"`
	PlanID     string         `validate:"required,uuid"`
	Seats      int            `validate:"min=1"`
	Metadata   map[string]any `validate:"omitempty"`
}

// UpgradeSubscriptionInput represents input for a mid-period upgrade.
type UpgradeSubscriptionInput struct {
	SubscriptionID string `validate:"required,uuid"`
	NewPlanID      string `validate:"required,uuid"`
}

// UpgradeSubscriptionOutput reports the result of an upgrade.
type UpgradeSubscriptionOutput struct {
	Subscription *subscription.Subscription
	AmountDue    int64
	Payment      *payment.Payment
}

// CreateSubscription subscribes a customer to a plan version. For paid
// plans the first period is charged before anything is persisted; a
// gateway decline is a hard stop and no subscription is created. Plans
// with a trial period start in trial and are not charged.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*subscription.Subscription, error) {
	tenantID, err := shared.IDFromString(input.TenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}
	accountID, err := shared.IDFromString(input.AccountID)
	if err != nil {
		return nil, shared.ValidationError("invalid account ID")
	}
	customerID, err := shared.IDFromString(input.CustomerID)
	if err != nil {
		return nil, shared.ValidationError("invalid customer ID")
	}
	planID, err := shared.IDFromString(input.PlanID)
	if err != nil {
		return nil, shared.ValidationError("invalid plan ID")
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.Status() != account.StatusActive {
		return nil, shared.StateConflictError("account is %s", acct.Status())
	}

	p, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, shared.StateConflictError("plan %s is not accepting subscriptions", p.PlanCode())
	}

	now := time.Now().UTC()
	status := subscription.StatusActive
	periodEnd := periodEndFor(p.Price().ChargePeriod().ChargeFrequency, now)

	if trial := p.TrialPeriod(); trial != nil {
		status = subscription.StatusTrial
		periodEnd = now.AddDate(0, 0, trial.Value())
	}

	sub, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		TenantID:           tenantID,
		AccountID:          accountID,
		CustomerID:         customerID,
		PlanID:             planID,
		Status:             status,
		Seats:              input.Seats,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
		Metadata:           input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	// Charge the first period up front; trials and free plans skip it.
	if status == subscription.StatusActive && p.Price().Value() > 0 {
		if _, err := s.chargeAccount(ctx, acct, sub, p.Price().Value()*int64(input.Seats), p.Price().Currency()); err != nil {
			return nil, err
		}
	}

	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, err
	}

	metrics.SubscriptionsCreatedTotal.WithLabelValues(tenantID.String()).Inc()
	s.logger.InfoContext(ctx, "subscription created",
		"subscription_id", sub.ID().String(),
		"plan_id", planID.String(),
		"status", sub.Status().String(),
	)
	return sub, nil
}

// GetSubscription returns a subscription by id.
func (s *SubscriptionService) GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	subID, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid subscription ID")
	}
	return s.subscriptions.GetByID(ctx, subID)
}

// ListByAccount returns an account's subscriptions.
func (s *SubscriptionService) ListByAccount(ctx context.Context, accountID string) ([]*subscription.Subscription, error) {
	id, err := shared.IDFromString(accountID)
	if err != nil {
		return nil, shared.ValidationError("invalid account ID")
	}
	return s.subscriptions.ListByAccount(ctx, id)
}

// CancelSubscription cancels a subscription with a reason.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, id, reason string) (*subscription.Subscription, error) {
	subID, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid subscription ID")
	}
	sub, err := s.subscriptions.GetByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	if err := sub.Cancel(reason, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "subscription cancelled", "subscription_id", id, "reason", reason)
	return sub, nil
}

// UpgradeSubscription moves a subscription to a new plan version
// mid-period. The unused remainder of the current period is credited
// against the new plan's price; the prorated difference is charged
// before the subscription is repointed, and a declined charge aborts
// the upgrade.
func (s *SubscriptionService) UpgradeSubscription(ctx context.Context, input UpgradeSubscriptionInput) (*UpgradeSubscriptionOutput, error) {
	subID, err := shared.IDFromString(input.SubscriptionID)
	if err != nil {
		return nil, shared.ValidationError("invalid subscription ID")
	}
	newPlanID, err := shared.IDFromString(input.NewPlanID)
	if err != nil {
		return nil, shared.ValidationError("invalid plan ID")
	}

	sub, err := s.subscriptions.GetByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	currentPlan, err := s.plans.GetByID(ctx, sub.PlanID())
	if err != nil {
		return nil, err
	}
	newPlan, err := s.plans.GetByID(ctx, newPlanID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	amountDue, err := sub.CalculateUpgradeAmount(currentPlan, newPlan, now)
	if err != nil {
		return nil, err
	}

	var paid *payment.Payment
	if amountDue > 0 {
		acct, err := s.accounts.GetByID(ctx, sub.AccountID())
		if err != nil {
			return nil, err
		}
		paid, err = s.chargeAccount(ctx, acct, sub, amountDue, newPlan.Price().Currency())
		if err != nil {
			return nil, err
		}
	}

	newPeriodEnd := periodEndFor(newPlan.Price().ChargePeriod().ChargeFrequency, now)
	if err := sub.UpgradeToPlan(newPlan, newPeriodEnd); err != nil {
		return nil, err
	}
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription upgraded",
		"subscription_id", input.SubscriptionID,
		"new_plan_id", input.NewPlanID,
		"amount_due", amountDue,
	)
	return &UpgradeSubscriptionOutput{
		Subscription: sub,
		AmountDue:    amountDue,
		Payment:      paid,
	}, nil
}

// RenewSubscription charges the next period and advances the billing
// window. A declined charge marks the subscription past due instead of
// renewing it.
func (s *SubscriptionService) RenewSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	subID, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid subscription ID")
	}
	sub, err := s.subscriptions.GetByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	if !sub.IsBillable() {
		return nil, shared.StateConflictError("cannot renew a %s subscription", sub.Status())
	}

	p, err := s.plans.GetByID(ctx, sub.PlanID())
	if err != nil {
		return nil, err
	}
	if renewal := p.RenewalDefinition(); renewal != nil && !renewal.IsAutomaticRenewable() {
		return nil, shared.StateConflictError("plan %s does not renew automatically", p.PlanCode())
	}

	if p.Price().Value() > 0 {
		acct, err := s.accounts.GetByID(ctx, sub.AccountID())
		if err != nil {
			return nil, err
		}
		if _, err := s.chargeAccount(ctx, acct, sub, p.Price().Value()*int64(sub.Seats()), p.Price().Currency()); err != nil {
			if markErr := sub.MarkPastDue(); markErr == nil {
				_ = s.subscriptions.Update(ctx, sub)
			}
			metrics.SubscriptionRenewalsTotal.WithLabelValues("declined").Inc()
			return nil, err
		}
	}

	newEnd := periodEndFor(p.Price().ChargePeriod().ChargeFrequency, sub.CurrentPeriodEnd())
	if err := sub.Renew(newEnd); err != nil {
		return nil, err
	}
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return nil, err
	}

	metrics.SubscriptionRenewalsTotal.WithLabelValues("renewed").Inc()
	s.logger.InfoContext(ctx, "subscription renewed",
		"subscription_id", id,
		"period_end", newEnd,
	)
	return sub, nil
}

// ExpireSubscription expires a lapsed subscription.
func (s *SubscriptionService) ExpireSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	subID, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid subscription ID")
	}
	sub, err := s.subscriptions.GetByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	if err := sub.Expire(); err != nil {
		return nil, err
	}
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return nil, err
	}
	metrics.SubscriptionsExpiredTotal.Inc()
	return sub, nil
}

// chargeAccount runs one gateway charge and records the payment. The
// payment row is persisted in both outcomes so declined charges leave an
// audit trail; the returned error carries the gateway's message.
func (s *SubscriptionService) chargeAccount(ctx context.Context, acct *account.Account, sub *subscription.Subscription, amount int64, currency string) (*payment.Payment, error) {
	customerID := acct.GatewayCustomerID()
	if customerID == "" {
		return nil, shared.StateConflictError("account %s has no payment method", acct.ID())
	}

	subID := sub.ID()
	pay, err := payment.NewPayment(payment.NewPaymentParams{
		TenantID:       sub.TenantID(),
		AccountID:      acct.ID(),
		SubscriptionID: &subID,
		Amount:         amount,
		Currency:       currency,
		Metadata:       shared.Metadata{"plan_id": sub.PlanID().String()},
	})
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.ProcessPayment(ctx, amount, currency, customerID, pay.Metadata())
	if err != nil {
		_ = pay.MarkFailed(err.Error())
		_ = s.payments.Create(ctx, pay)
		return nil, shared.StateConflictError("payment failed: %s", err)
	}
	if !result.Success {
		_ = pay.MarkFailed(result.ErrorMessage)
		_ = s.payments.Create(ctx, pay)
		metrics.PaymentsTotal.WithLabelValues(pay.TenantID().String(), pay.Status().String()).Inc()
		s.logger.WarnContext(ctx, "payment declined",
			"account_id", acct.ID().String(),
			"amount", amount,
		)
		return nil, shared.StateConflictError("payment failed: %s", result.ErrorMessage)
	}

	if err := pay.MarkSucceeded(result.PaymentID); err != nil {
		return nil, err
	}
	if err := s.payments.Create(ctx, pay); err != nil {
		return nil, err
	}
	metrics.PaymentsTotal.WithLabelValues(pay.TenantID().String(), pay.Status().String()).Inc()
	metrics.PaymentAmountTotal.WithLabelValues(pay.TenantID().String(), currency).Add(float64(amount))
	return pay, nil
}

// periodEndFor computes the end of a billing period starting at from.
func periodEndFor(frequency plan.ChargeFrequency, from time.Time) time.Time {
	switch frequency {
	case plan.FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case plan.FrequencyFortnightly:
		return from.AddDate(0, 0, 14)
	case plan.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case plan.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case plan.FrequencyHourly:
		return from.Add(time.Hour)
	case plan.FrequencyPerMinute:
		return from.Add(time.Minute)
	case plan.FrequencyPerSecond:
		return from.Add(time.Second)
	case plan.FrequencyOneTime:
		// One-time purchases get a nominal one-year entitlement window.
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

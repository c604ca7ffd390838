// Package subscription models customer subscriptions to plan versions,
// including the proration math used for mid-period upgrades.
package subscription

import (
	"math"
	"time"

	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
)

// Subscription binds a customer to a specific plan version. It references
// the plan by version id, not by plan code, so archived versions stay
// resolvable for existing subscribers.
type Subscription struct {
	id                 shared.ID
	tenantID           shared.ID
	accountID          shared.ID
	customerID         shared.ID
	planID             shared.ID
	status             Status
	seats              int
	currentPeriodStart time.Time
	currentPeriodEnd   time.Time
	cancelledAt        *time.Time
	cancellationReason string
	metadata           shared.Metadata
	createdAt          time.Time
	updatedAt          time.Time
}

// NewSubscriptionParams carries the inputs for creating a subscription.
type NewSubscriptionParams struct {
	TenantID           shared.ID
	AccountID          shared.ID
	CustomerID         shared.ID
	PlanID             shared.ID
	Status             Status
	Seats              int
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	Metadata           shared.Metadata
}

// NewSubscription creates a validated Subscription.
func NewSubscription(p NewSubscriptionParams) (*Subscription, error) {
	if p.TenantID.IsZero() {
		return nil, shared.ValidationError("tenant id is required")
	}
	if p.AccountID.IsZero() {
		return nil, shared.ValidationError("account id is required")
	}
	if p.CustomerID.IsZero() {
		return nil, shared.ValidationError("customer id is required")
	}
	if p.PlanID.IsZero() {
		return nil, shared.ValidationError("plan id is required")
	}
	if !p.Status.IsValid() {
		return nil, shared.ValidationError("invalid subscription status: %s", p.Status)
	}
	if p.Seats < 1 {
		return nil, shared.ValidationError("subscription must have at least one seat")
	}
	if !p.CurrentPeriodEnd.After(p.CurrentPeriodStart) {
		return nil, shared.ValidationError("current period end must be after period start")
	}

	now := time.Now().UTC()
	return &Subscription{
		id:                 shared.NewID(),
		tenantID:           p.TenantID,
		accountID:          p.AccountID,
		customerID:         p.CustomerID,
		planID:             p.PlanID,
		status:             p.Status,
		seats:              p.Seats,
		currentPeriodStart: p.CurrentPeriodStart,
		currentPeriodEnd:   p.CurrentPeriodEnd,
		metadata:           p.Metadata,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// ReconstituteParams carries the full persisted state of a subscription.
type ReconstituteParams struct {
	ID                 shared.ID
	TenantID           shared.ID
	AccountID          shared.ID
	CustomerID         shared.ID
	PlanID             shared.ID
	Status             Status
	Seats              int
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelledAt        *time.Time
	CancellationReason string
	Metadata           shared.Metadata
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Reconstitute recreates a Subscription from persistence.
func Reconstitute(p ReconstituteParams) *Subscription {
	return &Subscription{
		id:                 p.ID,
		tenantID:           p.TenantID,
		accountID:          p.AccountID,
		customerID:         p.CustomerID,
		planID:             p.PlanID,
		status:             p.Status,
		seats:              p.Seats,
		currentPeriodStart: p.CurrentPeriodStart,
		currentPeriodEnd:   p.CurrentPeriodEnd,
		cancelledAt:        p.CancelledAt,
		cancellationReason: p.CancellationReason,
		metadata:           p.Metadata,
		createdAt:          p.CreatedAt,
		updatedAt:          p.UpdatedAt,
	}
}

// ID returns the subscription ID.
func (s *Subscription) ID() shared.ID { return s.id }

// TenantID returns the owning tenant ID.
func (s *Subscription) TenantID() shared.ID { return s.tenantID }

// AccountID returns the owning account ID.
func (s *Subscription) AccountID() shared.ID { return s.accountID }

// CustomerID returns the subscribing customer ID.
func (s *Subscription) CustomerID() shared.ID { return s.customerID }

// PlanID returns the pinned plan version ID.
func (s *Subscription) PlanID() shared.ID { return s.planID }

// Status returns the lifecycle status.
func (s *Subscription) Status() Status { return s.status }

// Seats returns the seat count.
func (s *Subscription) Seats() int { return s.seats }

// CurrentPeriodStart returns the start of the current billing period.
func (s *Subscription) CurrentPeriodStart() time.Time { return s.currentPeriodStart }

// CurrentPeriodEnd returns the end of the current billing period.
func (s *Subscription) CurrentPeriodEnd() time.Time { return s.currentPeriodEnd }

// CancelledAt returns the cancellation timestamp, or nil.
func (s *Subscription) CancelledAt() *time.Time { return s.cancelledAt }

// CancellationReason returns the reason given at cancellation.
func (s *Subscription) CancellationReason() string { return s.cancellationReason }

// Metadata returns a copy of the subscription metadata.
func (s *Subscription) Metadata() shared.Metadata { return shared.CopyMetadata(s.metadata) }

// CreatedAt returns the creation timestamp.
func (s *Subscription) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the last modification timestamp.
func (s *Subscription) UpdatedAt() time.Time { return s.updatedAt }

// IsBillable reports whether the subscription pins its plan version.
func (s *Subscription) IsBillable() bool { return s.status.IsBillable() }

func (s *Subscription) touch() {
	s.updatedAt = time.Now().UTC()
}

// Activate moves an incomplete or trial subscription to active.
func (s *Subscription) Activate() error {
	switch s.status {
	case StatusIncomplete, StatusTrial, StatusPastDue:
		s.status = StatusActive
		s.touch()
		return nil
	case StatusActive:
		return nil
	default:
		return shared.StateConflictError("cannot activate a %s subscription", s.status)
	}
}

// MarkPastDue flags an active subscription whose renewal payment failed.
func (s *Subscription) MarkPastDue() error {
	if s.status != StatusActive && s.status != StatusTrial {
		return shared.StateConflictError("cannot mark a %s subscription past due", s.status)
	}
	s.status = StatusPastDue
	s.touch()
	return nil
}

// Cancel terminates the subscription. Cancelling twice fails.
func (s *Subscription) Cancel(reason string, at time.Time) error {
	if s.status == StatusCancelled {
		return shared.StateConflictError("subscription is already cancelled")
	}
	if s.status == StatusExpired {
		return shared.StateConflictError("cannot cancel an expired subscription")
	}
	s.status = StatusCancelled
	s.cancelledAt = &at
	s.cancellationReason = reason
	s.touch()
	return nil
}

// Expire marks a billable subscription expired at period end.
func (s *Subscription) Expire() error {
	if !s.status.IsBillable() {
		return shared.StateConflictError("cannot expire a %s subscription", s.status)
	}
	s.status = StatusExpired
	s.touch()
	return nil
}

// Renew advances the billing period. The new end must be after the
// current period end.
func (s *Subscription) Renew(newPeriodEnd time.Time) error {
	if !s.status.IsBillable() {
		return shared.StateConflictError("cannot renew a %s subscription", s.status)
	}
	if !newPeriodEnd.After(s.currentPeriodEnd) {
		return shared.ValidationError("new period end must be after the current period end")
	}
	s.currentPeriodStart = s.currentPeriodEnd
	s.currentPeriodEnd = newPeriodEnd
	if s.status == StatusPastDue || s.status == StatusTrial {
		s.status = StatusActive
	}
	s.touch()
	return nil
}

// UpdateSeats changes the seat count.
func (s *Subscription) UpdateSeats(seats int) error {
	if seats < 1 {
		return shared.ValidationError("subscription must have at least one seat")
	}
	s.seats = seats
	s.touch()
	return nil
}

// UpdateMetadata merges the given keys into the subscription metadata.
func (s *Subscription) UpdateMetadata(metadata shared.Metadata) {
	s.metadata = shared.MergeMetadata(s.metadata, metadata)
	s.touch()
}

// CalculateUpgradeAmount computes the prorated amount due to move from
// the current plan to the new plan mid-period. The unused remainder of
// the current period is credited at the current plan's daily rate; the
// credit is floored so the billing party is never over-credited.
func (s *Subscription) CalculateUpgradeAmount(currentPlan, newPlan *plan.Plan, now time.Time) (int64, error) {
	if currentPlan == nil || newPlan == nil {
		return 0, shared.ValidationError("both plans are required for upgrade calculation")
	}
	if !s.IsBillable() {
		return 0, shared.StateConflictError("cannot upgrade a %s subscription", s.status)
	}
	if !currentPlan.ID().Equals(s.planID) {
		return 0, shared.ValidationError("current plan does not match the subscription's plan")
	}

	day := 24 * time.Hour
	daysInPeriod := int64(math.Ceil(float64(s.currentPeriodEnd.Sub(s.currentPeriodStart)) / float64(day)))
	daysRemaining := int64(math.Ceil(float64(s.currentPeriodEnd.Sub(now)) / float64(day)))
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	dailyRate := float64(currentPlan.Price().Value()) / float64(daysInPeriod)
	proratedCredit := int64(math.Floor(dailyRate * float64(daysRemaining)))

	amountDue := newPlan.Price().Value() - proratedCredit
	if amountDue < 0 {
		amountDue = 0
	}
	return amountDue, nil
}

// UpgradeToPlan repoints the subscription at a new plan version and
// resets the billing period. It requires the fully loaded plan so
// upgrade eligibility can be checked, not just an id.
func (s *Subscription) UpgradeToPlan(newPlan *plan.Plan, newPeriodEnd time.Time) error {
	if newPlan == nil {
		return shared.ValidationError("new plan is required")
	}
	if !s.IsBillable() {
		return shared.StateConflictError("cannot upgrade a %s subscription", s.status)
	}
	if !newPlan.IsActive() {
		return shared.StateConflictError("cannot upgrade to an inactive plan")
	}
	if newPlan.ID().Equals(s.planID) {
		return shared.ValidationError("subscription is already on plan %s", newPlan.ID())
	}
	now := time.Now().UTC()
	if !newPeriodEnd.After(now) {
		return shared.ValidationError("new period end must be in the future")
	}
	s.planID = newPlan.ID()
	s.currentPeriodStart = now
	s.currentPeriodEnd = newPeriodEnd
	s.status = StatusActive
	s.touch()
	return nil
}

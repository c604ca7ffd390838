package subscription

import (
	"context"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
)

// Repository defines persistence operations for subscriptions.
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id shared.ID) (*Subscription, error)
	ListByAccount(ctx context.Context, accountID shared.ID) ([]*Subscription, error)
	ListByCustomer(ctx context.Context, tenantID, customerID shared.ID) ([]*Subscription, error)
	// ListBillableByTenant returns subscriptions in a billable status
	// (active, trial or past_due) for entitlement computation.
	ListBillableByTenant(ctx context.Context, tenantID shared.ID) ([]*Subscription, error)
	// CountBillableByPlan reports how many billable subscriptions pin the
	// given plan version. A non-zero count forces fork-on-write updates.
	CountBillableByPlan(ctx context.Context, planID shared.ID) (int, error)
	// ListDueForRenewal returns billable auto-renew subscriptions whose
	// period ends before the cutoff.
	ListDueForRenewal(ctx context.Context, cutoff time.Time) ([]*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	Delete(ctx context.Context, id shared.ID) error
}

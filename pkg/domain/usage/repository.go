package usage

import (
	"context"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
)

// AggregatedUsage is the summed quantity for one feature over a window.
type AggregatedUsage struct {
	FeatureCode string
	Total       int64
}

// Repository defines persistence operations for usage events.
type Repository interface {
	// Record persists the event, or returns the previously persisted
	// event when one with the same idempotency key already exists.
	// Recording the same key twice never creates a duplicate row.
	Record(ctx context.Context, e *Event) (*Event, error)
	GetByID(ctx context.Context, id shared.ID) (*Event, error)
	ListBySubscription(ctx context.Context, subscriptionID shared.ID, since time.Time) ([]*Event, error)
	// GetAggregatedUsage sums quantities per feature code for the given
	// subscriptions since the window start.
	GetAggregatedUsage(ctx context.Context, subscriptionIDs []shared.ID, since time.Time) ([]AggregatedUsage, error)
}

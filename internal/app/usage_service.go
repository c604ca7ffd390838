package app

import (
	"context"
	"time"

	"github.com/meterly/api/internal/metrics"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
	"github.com/meterly/api/pkg/domain/usage"
	"github.com/meterly/api/pkg/logger"
)

// entitlementInvalidator drops cached entitlement sets after a write
// that changes what a tenant is entitled to consume.
type entitlementInvalidator interface {
	Invalidate(ctx context.Context, tenantID string)
}

// UsageService records metered feature consumption. Recording is
// idempotent per caller-supplied key so retried submissions never
// double-count.
type UsageService struct {
	events        usage.Repository
	subscriptions subscription.Repository
	entitlements  entitlementInvalidator
	logger        *logger.Logger
}

// NewUsageService creates a new usage service. The invalidator may be
// nil when no entitlement cache is configured.
func NewUsageService(events usage.Repository, subscriptions subscription.Repository, entitlements entitlementInvalidator, log *logger.Logger) *UsageService {
	return &UsageService{
		events:        events,
		subscriptions: subscriptions,
		entitlements:  entitlements,
		logger:        log.With("service", "usage"),
	}
}

// RecordUsageInput represents input for recording a usage event.
type RecordUsageInput struct {
	TenantID       string         `validate:"required,uuid"`
	SubscriptionID string         `validate:"required,uuid"`
	CustomerID     string         `validate:"omitempty,uuid"`
	FeatureCode    string         `validate:"required,feature_code"`
	Quantity       int64          `validate:"min=1"`
	IdempotencyKey string         `validate:"required,max=255"`
	RecordedAt     time.Time      `validate:"omitempty"`
	Metadata       map[string]any `validate:"omitempty"`
}

// RecordUsage persists one usage event against a billable subscription.
// A duplicate idempotency key returns the original event unchanged.
func (s *UsageService) RecordUsage(ctx context.Context, input RecordUsageInput) (*usage.Event, error) {
	tenantID, err := shared.IDFromString(input.TenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}
	subscriptionID, err := shared.IDFromString(input.SubscriptionID)
	if err != nil {
		return nil, shared.ValidationError("invalid subscription ID")
	}
	var customerID shared.ID
	if input.CustomerID != "" {
		if customerID, err = shared.IDFromString(input.CustomerID); err != nil {
			return nil, shared.ValidationError("invalid customer ID")
		}
	}

	sub, err := s.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.TenantID().Equals(tenantID) {
		return nil, shared.NotFoundError("subscription %s not found", input.SubscriptionID)
	}
	if !sub.IsBillable() {
		return nil, shared.StateConflictError("subscription %s is not billable", input.SubscriptionID)
	}

	event, err := usage.NewEvent(usage.NewEventParams{
		TenantID:       tenantID,
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
		FeatureCode:    input.FeatureCode,
		Quantity:       input.Quantity,
		IdempotencyKey: input.IdempotencyKey,
		RecordedAt:     input.RecordedAt,
		Metadata:       input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	persisted, err := s.events.Record(ctx, event)
	if err != nil {
		return nil, err
	}
	if !persisted.ID().Equals(event.ID()) {
		metrics.UsageEventsTotal.WithLabelValues(input.TenantID, "duplicate").Inc()
		s.logger.DebugContext(ctx, "duplicate usage submission ignored",
			"idempotency_key", input.IdempotencyKey,
			"event_id", persisted.ID().String(),
		)
		return persisted, nil
	}

	// Metered entitlements report aggregated usage, so a fresh event
	// stales any cached set for the tenant.
	if s.entitlements != nil {
		s.entitlements.Invalidate(ctx, input.TenantID)
	}

	metrics.UsageEventsTotal.WithLabelValues(input.TenantID, "recorded").Inc()
	s.logger.InfoContext(ctx, "usage recorded",
		"subscription_id", subscriptionID.String(),
		"feature_code", input.FeatureCode,
		"quantity", input.Quantity,
	)
	return persisted, nil
}

// GetUsageSummary returns per-feature usage totals for a subscription
// since its current period start.
func (s *UsageService) GetUsageSummary(ctx context.Context, subscriptionID string) ([]usage.AggregatedUsage, error) {
	sid, err := shared.IDFromString(subscriptionID)
	if err != nil {
		return nil, shared.ValidationError("invalid subscription ID")
	}
	sub, err := s.subscriptions.GetByID(ctx, sid)
	if err != nil {
		return nil, err
	}
	return s.events.GetAggregatedUsage(ctx, []shared.ID{sid}, sub.CurrentPeriodStart())
}

// ListEvents returns raw usage events for a subscription since a time.
func (s *UsageService) ListEvents(ctx context.Context, subscriptionID string, since time.Time) ([]*usage.Event, error) {
	sid, err := shared.IDFromString(subscriptionID)
	if err != nil {
		return nil, shared.ValidationError("invalid subscription ID")
	}
	return s.events.ListBySubscription(ctx, sid, since)
}

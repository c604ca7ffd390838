// Package usage records metered feature consumption against subscriptions.
package usage

import (
	"regexp"
	"strings"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
)

var featureCodeRegex = regexp.MustCompile(`^[a-z0-9_]+$`)

// Event is one increment of metered usage. The idempotency key makes
// retried submissions safe: the repository returns the first persisted
// event for a duplicate key instead of inserting a second row.
type Event struct {
	id             shared.ID
	tenantID       shared.ID
	subscriptionID shared.ID
	customerID     shared.ID
	featureCode    string
	quantity       int64
	idempotencyKey string
	recordedAt     time.Time
	metadata       shared.Metadata
	createdAt      time.Time
}

// NewEventParams carries the inputs for recording a usage event.
type NewEventParams struct {
	TenantID       shared.ID
	SubscriptionID shared.ID
	CustomerID     shared.ID
	FeatureCode    string
	Quantity       int64
	IdempotencyKey string
	RecordedAt     time.Time
	Metadata       shared.Metadata
}

// NewEvent creates a validated usage Event. RecordedAt defaults to now
// when zero.
func NewEvent(p NewEventParams) (*Event, error) {
	if p.TenantID.IsZero() {
		return nil, shared.ValidationError("tenant id is required")
	}
	if p.SubscriptionID.IsZero() {
		return nil, shared.ValidationError("subscription id is required")
	}
	if !featureCodeRegex.MatchString(p.FeatureCode) {
		return nil, shared.ValidationError("feature code must be lowercase alphanumeric with underscores only")
	}
	if p.Quantity < 1 {
		return nil, shared.ValidationError("quantity must be at least 1")
	}
	if strings.TrimSpace(p.IdempotencyKey) == "" {
		return nil, shared.ValidationError("idempotency key is required")
	}

	recordedAt := p.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	return &Event{
		id:             shared.NewID(),
		tenantID:       p.TenantID,
		subscriptionID: p.SubscriptionID,
		customerID:     p.CustomerID,
		featureCode:    p.FeatureCode,
		quantity:       p.Quantity,
		idempotencyKey: p.IdempotencyKey,
		recordedAt:     recordedAt,
		metadata:       p.Metadata,
		createdAt:      time.Now().UTC(),
	}, nil
}

// Reconstitute recreates an Event from persistence.
func Reconstitute(id, tenantID, subscriptionID, customerID shared.ID, featureCode string, quantity int64, idempotencyKey string, recordedAt time.Time, metadata shared.Metadata, createdAt time.Time) *Event {
	return &Event{
		id:             id,
		tenantID:       tenantID,
		subscriptionID: subscriptionID,
		customerID:     customerID,
		featureCode:    featureCode,
		quantity:       quantity,
		idempotencyKey: idempotencyKey,
		recordedAt:     recordedAt,
		metadata:       metadata,
		createdAt:      createdAt,
	}
}

// ID returns the event ID.
func (e *Event) ID() shared.ID { return e.id }

// TenantID returns the owning tenant ID.
func (e *Event) TenantID() shared.ID { return e.tenantID }

// SubscriptionID returns the subscription the usage accrues to.
func (e *Event) SubscriptionID() shared.ID { return e.subscriptionID }

// CustomerID returns the acting customer ID.
func (e *Event) CustomerID() shared.ID { return e.customerID }

// FeatureCode returns the metered feature's code.
func (e *Event) FeatureCode() string { return e.featureCode }

// Quantity returns the usage increment.
func (e *Event) Quantity() int64 { return e.quantity }

// IdempotencyKey returns the caller-supplied dedupe key.
func (e *Event) IdempotencyKey() string { return e.idempotencyKey }

// RecordedAt returns when the usage occurred.
func (e *Event) RecordedAt() time.Time { return e.recordedAt }

// Metadata returns a copy of the event metadata.
func (e *Event) Metadata() shared.Metadata { return shared.CopyMetadata(e.metadata) }

// CreatedAt returns when the event was persisted.
func (e *Event) CreatedAt() time.Time { return e.createdAt }

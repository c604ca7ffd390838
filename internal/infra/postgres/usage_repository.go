package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/usage"
)

// UsageRepository implements usage.Repository using PostgreSQL.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Record persists the event. The unique index on (tenant_id,
// idempotency_key) turns a retried submission into a no-op insert, and
// the previously persisted event is returned instead.
func (r *UsageRepository) Record(ctx context.Context, e *usage.Event) (*usage.Event, error) {
	metadata, err := toJSONB(e.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal usage metadata: %w", err)
	}

	query := `
		INSERT INTO usage_events (
			id, tenant_id, subscription_id, customer_id, feature_code,
			quantity, idempotency_key, recorded_at, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		e.ID().String(),
		e.TenantID().String(),
		e.SubscriptionID().String(),
		e.CustomerID().String(),
		e.FeatureCode(),
		e.Quantity(),
		e.IdempotencyKey(),
		e.RecordedAt(),
		metadata,
		e.CreatedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record usage event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return e, nil
	}

	existing, err := r.getByIdempotencyKey(ctx, e.TenantID(), e.IdempotencyKey())
	if err != nil {
		return nil, fmt.Errorf("failed to load existing usage event: %w", err)
	}
	return existing, nil
}

// GetByID retrieves a usage event by ID.
func (r *UsageRepository) GetByID(ctx context.Context, id shared.ID) (*usage.Event, error) {
	query := r.selectQuery() + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	e, err := r.doScan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFoundError("usage event %s not found", id)
		}
		return nil, fmt.Errorf("failed to scan usage event: %w", err)
	}
	return e, nil
}

// ListBySubscription returns a subscription's events recorded at or
// after since, oldest first.
func (r *UsageRepository) ListBySubscription(ctx context.Context, subscriptionID shared.ID, since time.Time) ([]*usage.Event, error) {
	query := r.selectQuery() + " WHERE subscription_id = $1 AND recorded_at >= $2 ORDER BY recorded_at ASC"
	rows, err := r.db.QueryContext(ctx, query, subscriptionID.String(), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", err)
	}
	defer rows.Close()

	var events []*usage.Event
	for rows.Next() {
		e, err := r.doScan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage events: %w", err)
	}
	return events, nil
}

// GetAggregatedUsage sums quantities per feature code for the given
// subscriptions since the window start.
func (r *UsageRepository) GetAggregatedUsage(ctx context.Context, subscriptionIDs []shared.ID, since time.Time) ([]usage.AggregatedUsage, error) {
	if len(subscriptionIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT feature_code, SUM(quantity)
		FROM usage_events
		WHERE subscription_id = ANY($1) AND recorded_at >= $2
		GROUP BY feature_code
		ORDER BY feature_code ASC
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(idStrings(subscriptionIDs)), since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	defer rows.Close()

	var totals []usage.AggregatedUsage
	for rows.Next() {
		var a usage.AggregatedUsage
		if err := rows.Scan(&a.FeatureCode, &a.Total); err != nil {
			return nil, fmt.Errorf("failed to scan usage aggregate: %w", err)
		}
		totals = append(totals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage aggregates: %w", err)
	}
	return totals, nil
}

func (r *UsageRepository) getByIdempotencyKey(ctx context.Context, tenantID shared.ID, key string) (*usage.Event, error) {
	query := r.selectQuery() + " WHERE tenant_id = $1 AND idempotency_key = $2"
	row := r.db.QueryRowContext(ctx, query, tenantID.String(), key)
	return r.doScan(row.Scan)
}

func (r *UsageRepository) selectQuery() string {
	return `
		SELECT id, tenant_id, subscription_id, customer_id, feature_code,
			quantity, idempotency_key, recorded_at, metadata, created_at
		FROM usage_events
	`
}

func (r *UsageRepository) doScan(scan func(dest ...any) error) (*usage.Event, error) {
	var (
		idStr             string
		tenantIDStr       string
		subscriptionIDStr string
		customerIDStr     string
		featureCode       string
		quantity          int64
		idempotencyKey    string
		recordedAt        time.Time
		metadataRaw       []byte
		createdAt         sql.NullTime
	)

	if err := scan(
		&idStr, &tenantIDStr, &subscriptionIDStr, &customerIDStr, &featureCode,
		&quantity, &idempotencyKey, &recordedAt, &metadataRaw, &createdAt,
	); err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid usage event id in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id in database: %w", err)
	}
	subscriptionID, err := shared.IDFromString(subscriptionIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription id in database: %w", err)
	}
	customerID, err := shared.IDFromString(customerIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid customer id in database: %w", err)
	}

	var metadata shared.Metadata
	if err := fromJSONB(metadataRaw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage metadata: %w", err)
	}

	return usage.Reconstitute(
		id, tenantID, subscriptionID, customerID, featureCode,
		quantity, idempotencyKey, recordedAt, metadata, createdAt.Time,
	), nil
}

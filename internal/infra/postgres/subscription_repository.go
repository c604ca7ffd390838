package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/subscription"
)

// SubscriptionRepository implements subscription.Repository using PostgreSQL.
type SubscriptionRepository struct {
	db *DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// billableStatuses is the set of statuses that count as billable in
// SQL filters; it mirrors subscription.Status.IsBillable.
const billableStatuses = `('active', 'trial', 'past_due')`

// Create persists a new subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	metadata, err := toJSONB(s.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal subscription metadata: %w", err)
	}

	query := `
		INSERT INTO subscriptions (
			id, tenant_id, account_id, customer_id, plan_id, status, seats,
			current_period_start, current_period_end, cancelled_at, cancellation_reason,
			metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID().String(),
		s.TenantID().String(),
		s.AccountID().String(),
		s.CustomerID().String(),
		s.PlanID().String(),
		s.Status().String(),
		s.Seats(),
		s.CurrentPeriodStart(),
		s.CurrentPeriodEnd(),
		nullTime(s.CancelledAt()),
		nullString(s.CancellationReason()),
		metadata,
		s.CreatedAt(),
		s.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription by ID.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id shared.ID) (*subscription.Subscription, error) {
	query := r.selectQuery() + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	s, err := r.doScan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFoundError("subscription %s not found", id)
		}
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return s, nil
}

// ListByAccount returns all subscriptions of an account.
func (r *SubscriptionRepository) ListByAccount(ctx context.Context, accountID shared.ID) ([]*subscription.Subscription, error) {
	query := r.selectQuery() + " WHERE account_id = $1 ORDER BY created_at ASC"
	return r.querySubscriptions(ctx, query, accountID.String())
}

// ListByCustomer returns a customer's subscriptions within a tenant.
func (r *SubscriptionRepository) ListByCustomer(ctx context.Context, tenantID, customerID shared.ID) ([]*subscription.Subscription, error) {
	query := r.selectQuery() + " WHERE tenant_id = $1 AND customer_id = $2 ORDER BY created_at ASC"
	return r.querySubscriptions(ctx, query, tenantID.String(), customerID.String())
}

// ListBillableByTenant returns subscriptions in a billable status for
// entitlement computation.
func (r *SubscriptionRepository) ListBillableByTenant(ctx context.Context, tenantID shared.ID) ([]*subscription.Subscription, error) {
	query := r.selectQuery() + " WHERE tenant_id = $1 AND status IN " + billableStatuses + " ORDER BY created_at ASC"
	return r.querySubscriptions(ctx, query, tenantID.String())
}

// CountBillableByPlan reports how many billable subscriptions pin the
// given plan version.
func (r *SubscriptionRepository) CountBillableByPlan(ctx context.Context, planID shared.ID) (int, error) {
	query := `SELECT COUNT(*) FROM subscriptions WHERE plan_id = $1 AND status IN ` + billableStatuses

	var count int
	if err := r.db.QueryRowContext(ctx, query, planID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}

// ListDueForRenewal returns billable subscriptions whose period ends
// before the cutoff.
func (r *SubscriptionRepository) ListDueForRenewal(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	query := r.selectQuery() + ` WHERE status IN ` + billableStatuses + ` AND current_period_end <= $1 ORDER BY current_period_end ASC`
	return r.querySubscriptions(ctx, query, cutoff)
}

// Update updates an existing subscription.
func (r *SubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	metadata, err := toJSONB(s.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal subscription metadata: %w", err)
	}

	query := `
		UPDATE subscriptions SET
			plan_id = $2, status = $3, seats = $4,
			current_period_start = $5, current_period_end = $6,
			cancelled_at = $7, cancellation_reason = $8, metadata = $9, updated_at = $10
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		s.ID().String(),
		s.PlanID().String(),
		s.Status().String(),
		s.Seats(),
		s.CurrentPeriodStart(),
		s.CurrentPeriodEnd(),
		nullTime(s.CancelledAt()),
		nullString(s.CancellationReason()),
		metadata,
		s.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("subscription %s not found", s.ID())
	}
	return nil
}

// Delete removes a subscription.
func (r *SubscriptionRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("subscription %s not found", id)
	}
	return nil
}

func (r *SubscriptionRepository) querySubscriptions(ctx context.Context, query string, args ...any) ([]*subscription.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		s, err := r.doScan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

func (r *SubscriptionRepository) selectQuery() string {
	return `
		SELECT id, tenant_id, account_id, customer_id, plan_id, status, seats,
			current_period_start, current_period_end, cancelled_at, cancellation_reason,
			metadata, created_at, updated_at
		FROM subscriptions
	`
}

func (r *SubscriptionRepository) doScan(scan func(dest ...any) error) (*subscription.Subscription, error) {
	var (
		idStr              string
		tenantIDStr        string
		accountIDStr       string
		customerIDStr      string
		planIDStr          string
		status             string
		seats              int
		currentPeriodStart time.Time
		currentPeriodEnd   time.Time
		cancelledAt        sql.NullTime
		cancellationReason sql.NullString
		metadataRaw        []byte
		createdAt          sql.NullTime
		updatedAt          sql.NullTime
	)

	if err := scan(
		&idStr, &tenantIDStr, &accountIDStr, &customerIDStr, &planIDStr, &status, &seats,
		&currentPeriodStart, &currentPeriodEnd, &cancelledAt, &cancellationReason,
		&metadataRaw, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription id in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id in database: %w", err)
	}
	accountID, err := shared.IDFromString(accountIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid account id in database: %w", err)
	}
	customerID, err := shared.IDFromString(customerIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid customer id in database: %w", err)
	}
	planID, err := shared.IDFromString(planIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid plan id in database: %w", err)
	}

	var metadata shared.Metadata
	if err := fromJSONB(metadataRaw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription metadata: %w", err)
	}

	return subscription.Reconstitute(subscription.ReconstituteParams{
		ID:                 id,
		TenantID:           tenantID,
		AccountID:          accountID,
		CustomerID:         customerID,
		PlanID:             planID,
		Status:             subscription.Status(status),
		Seats:              seats,
		CurrentPeriodStart: currentPeriodStart,
		CurrentPeriodEnd:   currentPeriodEnd,
		CancelledAt:        nullTimeValue(cancelledAt),
		CancellationReason: nullStringValue(cancellationReason),
		Metadata:           metadata,
		CreatedAt:          createdAt.Time,
		UpdatedAt:          updatedAt.Time,
	}), nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/domain/shared"
)

// PaymentRepository implements payment.Repository using PostgreSQL.
type PaymentRepository struct {
	db *DB
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	metadata, err := toJSONB(p.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal payment metadata: %w", err)
	}

	query := `
		INSERT INTO payments (
			id, tenant_id, account_id, subscription_id, amount, refunded_amount,
			currency, status, gateway_payment_id, failure_reason, metadata,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.TenantID().String(),
		p.AccountID().String(),
		nullID(p.SubscriptionID()),
		p.Amount(),
		p.RefundedAmount(),
		p.Currency(),
		p.Status().String(),
		nullString(p.GatewayPaymentID()),
		nullString(p.FailureReason()),
		metadata,
		p.CreatedAt(),
		p.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id shared.ID) (*payment.Payment, error) {
	query := r.selectQuery() + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	p, err := r.doScan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFoundError("payment %s not found", id)
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return p, nil
}

// ListByAccount returns all payments of an account, newest first.
func (r *PaymentRepository) ListByAccount(ctx context.Context, accountID shared.ID) ([]*payment.Payment, error) {
	query := r.selectQuery() + " WHERE account_id = $1 ORDER BY created_at DESC"
	return r.queryPayments(ctx, query, accountID.String())
}

// ListBySubscription returns all payments of a subscription, newest first.
func (r *PaymentRepository) ListBySubscription(ctx context.Context, subscriptionID shared.ID) ([]*payment.Payment, error) {
	query := r.selectQuery() + " WHERE subscription_id = $1 ORDER BY created_at DESC"
	return r.queryPayments(ctx, query, subscriptionID.String())
}

// Update updates an existing payment.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	metadata, err := toJSONB(p.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal payment metadata: %w", err)
	}

	query := `
		UPDATE payments SET
			refunded_amount = $2, status = $3, gateway_payment_id = $4,
			failure_reason = $5, metadata = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.RefundedAmount(),
		p.Status().String(),
		nullString(p.GatewayPaymentID()),
		nullString(p.FailureReason()),
		metadata,
		p.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("payment %s not found", p.ID())
	}
	return nil
}

func (r *PaymentRepository) queryPayments(ctx context.Context, query string, args ...any) ([]*payment.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := r.doScan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}

func (r *PaymentRepository) selectQuery() string {
	return `
		SELECT id, tenant_id, account_id, subscription_id, amount, refunded_amount,
			currency, status, gateway_payment_id, failure_reason, metadata,
			created_at, updated_at
		FROM payments
	`
}

func (r *PaymentRepository) doScan(scan func(dest ...any) error) (*payment.Payment, error) {
	var (
		idStr            string
		tenantIDStr      string
		accountIDStr     string
		subscriptionID   sql.NullString
		amount           int64
		refundedAmount   int64
		currency         string
		status           string
		gatewayPaymentID sql.NullString
		failureReason    sql.NullString
		metadataRaw      []byte
		createdAt        sql.NullTime
		updatedAt        sql.NullTime
	)

	if err := scan(
		&idStr, &tenantIDStr, &accountIDStr, &subscriptionID, &amount, &refundedAmount,
		&currency, &status, &gatewayPaymentID, &failureReason, &metadataRaw,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid payment id in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id in database: %w", err)
	}
	accountID, err := shared.IDFromString(accountIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid account id in database: %w", err)
	}

	var metadata shared.Metadata
	if err := fromJSONB(metadataRaw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment metadata: %w", err)
	}

	return payment.Reconstitute(payment.ReconstituteParams{
		ID:               id,
		TenantID:         tenantID,
		AccountID:        accountID,
		SubscriptionID:   parseNullID(subscriptionID),
		Amount:           amount,
		RefundedAmount:   refundedAmount,
		Currency:         currency,
		Status:           payment.Status(status),
		GatewayPaymentID: nullStringValue(gatewayPaymentID),
		FailureReason:    nullStringValue(failureReason),
		Metadata:         metadata,
		CreatedAt:        createdAt.Time,
		UpdatedAt:        updatedAt.Time,
	}), nil
}

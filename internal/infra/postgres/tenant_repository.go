package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/tenant"
)

// TenantRepository implements tenant.Repository using PostgreSQL.
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create persists a new tenant.
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	metadata, err := toJSONB(t.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal tenant metadata: %w", err)
	}

	query := `
		INSERT INTO tenants (id, name, email_domain, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.ExecContext(ctx, query,
		t.ID().String(),
		t.Name(),
		nullString(t.EmailDomain()),
		metadata,
		t.CreatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: tenant %s", shared.ErrAlreadyExists, t.Name())
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by ID.
func (r *TenantRepository) GetByID(ctx context.Context, id shared.ID) (*tenant.Tenant, error) {
	query := r.selectQuery() + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	t, err := r.doScan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFoundError("tenant %s not found", id)
		}
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	return t, nil
}

// List returns all tenants.
func (r *TenantRepository) List(ctx context.Context) ([]*tenant.Tenant, error) {
	query := r.selectQuery() + " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		t, err := r.doScan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}
	return tenants, nil
}

// Update updates an existing tenant.
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	metadata, err := toJSONB(t.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal tenant metadata: %w", err)
	}

	query := `UPDATE tenants SET name = $2, email_domain = $3, metadata = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		t.ID().String(),
		t.Name(),
		nullString(t.EmailDomain()),
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("tenant %s not found", t.ID())
	}
	return nil
}

// Delete removes a tenant.
func (r *TenantRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("tenant %s not found", id)
	}
	return nil
}

func (r *TenantRepository) selectQuery() string {
	return `SELECT id, name, email_domain, metadata, created_at FROM tenants`
}

func (r *TenantRepository) doScan(scan func(dest ...any) error) (*tenant.Tenant, error) {
	var (
		idStr       string
		name        string
		emailDomain sql.NullString
		metadataRaw []byte
		createdAt   sql.NullTime
	)

	if err := scan(&idStr, &name, &emailDomain, &metadataRaw, &createdAt); err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id in database: %w", err)
	}

	var metadata shared.Metadata
	if err := fromJSONB(metadataRaw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tenant metadata: %w", err)
	}

	return tenant.Reconstitute(id, name, nullStringValue(emailDomain), metadata, createdAt.Time), nil
}

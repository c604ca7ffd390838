package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/meterly/api/pkg/domain/product"
	"github.com/meterly/api/pkg/domain/shared"
)

// ProductRepository implements product.Repository using PostgreSQL.
type ProductRepository struct {
	db *DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	metadata, err := toJSONB(p.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal product metadata: %w", err)
	}

	query := `
		INSERT INTO products (id, tenant_id, name, description, api_key, active, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.TenantID().String(),
		p.Name(),
		nullString(p.Description()),
		nullString(p.APIKey()),
		p.Active(),
		metadata,
		p.CreatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: product %s", shared.ErrAlreadyExists, p.Name())
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by ID.
func (r *ProductRepository) GetByID(ctx context.Context, id shared.ID) (*product.Product, error) {
	query := r.selectQuery() + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	p, err := r.doScan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFoundError("product %s not found", id)
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return p, nil
}

// ListByTenant returns all products owned by a tenant.
func (r *ProductRepository) ListByTenant(ctx context.Context, tenantID shared.ID) ([]*product.Product, error) {
	query := r.selectQuery() + " WHERE tenant_id = $1 ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*product.Product
	for rows.Next() {
		p, err := r.doScan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

// Update updates an existing product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	metadata, err := toJSONB(p.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal product metadata: %w", err)
	}

	query := `
		UPDATE products SET name = $2, description = $3, api_key = $4, active = $5, metadata = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.Name(),
		nullString(p.Description()),
		nullString(p.APIKey()),
		p.Active(),
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("product %s not found", p.ID())
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("product %s not found", id)
	}
	return nil
}

func (r *ProductRepository) selectQuery() string {
	return `SELECT id, tenant_id, name, description, api_key, active, metadata, created_at FROM products`
}

func (r *ProductRepository) doScan(scan func(dest ...any) error) (*product.Product, error) {
	var (
		idStr       string
		tenantIDStr string
		name        string
		description sql.NullString
		apiKey      sql.NullString
		active      bool
		metadataRaw []byte
		createdAt   sql.NullTime
	)

	if err := scan(&idStr, &tenantIDStr, &name, &description, &apiKey, &active, &metadataRaw, &createdAt); err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid product id in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id in database: %w", err)
	}

	var metadata shared.Metadata
	if err := fromJSONB(metadataRaw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product metadata: %w", err)
	}

	return product.Reconstitute(id, tenantID, name, nullStringValue(description), nullStringValue(apiKey), active, metadata, createdAt.Time), nil
}

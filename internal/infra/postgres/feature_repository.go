package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/shared"
)

// FeatureRepository implements feature.Repository using PostgreSQL.
type FeatureRepository struct {
	db *DB
}

// NewFeatureRepository creates a new FeatureRepository.
func NewFeatureRepository(db *DB) *FeatureRepository {
	return &FeatureRepository{db: db}
}

// Create persists a new feature.
func (r *FeatureRepository) Create(ctx context.Context, f *feature.Feature) error {
	metadata, err := toJSONB(f.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal feature metadata: %w", err)
	}

	query := `
		INSERT INTO features (id, product_id, name, code, description, feature_type, charge_model, service_url, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		f.ID().String(),
		f.ProductID().String(),
		f.Name(),
		f.Code(),
		nullString(f.Description()),
		f.FeatureType().String(),
		f.ChargeModel().String(),
		nullString(f.ServiceURL()),
		metadata,
		f.CreatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: feature %s", shared.ErrAlreadyExists, f.Code())
		}
		return fmt.Errorf("failed to create feature: %w", err)
	}
	return nil
}

// GetByID retrieves a feature by ID.
func (r *FeatureRepository) GetByID(ctx context.Context, id shared.ID) (*feature.Feature, error) {
	query := r.selectQuery() + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	f, err := r.doScan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFoundError("feature %s not found", id)
		}
		return nil, fmt.Errorf("failed to scan feature: %w", err)
	}
	return f, nil
}

// GetByCode retrieves a feature by product ID and code.
func (r *FeatureRepository) GetByCode(ctx context.Context, productID shared.ID, code string) (*feature.Feature, error) {
	query := r.selectQuery() + " WHERE product_id = $1 AND code = $2"
	row := r.db.QueryRowContext(ctx, query, productID.String(), code)
	f, err := r.doScan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFoundError("feature %s not found", code)
		}
		return nil, fmt.Errorf("failed to scan feature: %w", err)
	}
	return f, nil
}

// ListByProduct returns all features of a product.
func (r *FeatureRepository) ListByProduct(ctx context.Context, productID shared.ID) ([]*feature.Feature, error) {
	query := r.selectQuery() + " WHERE product_id = $1 ORDER BY code ASC"

	rows, err := r.db.QueryContext(ctx, query, productID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var features []*feature.Feature
	for rows.Next() {
		f, err := r.doScan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate features: %w", err)
	}
	return features, nil
}

// Update updates an existing feature.
func (r *FeatureRepository) Update(ctx context.Context, f *feature.Feature) error {
	metadata, err := toJSONB(f.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal feature metadata: %w", err)
	}

	query := `
		UPDATE features SET name = $2, description = $3, charge_model = $4, service_url = $5, metadata = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		f.ID().String(),
		f.Name(),
		nullString(f.Description()),
		f.ChargeModel().String(),
		nullString(f.ServiceURL()),
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to update feature: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("feature %s not found", f.ID())
	}
	return nil
}

// Delete removes a feature.
func (r *FeatureRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM features WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete feature: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("feature %s not found", id)
	}
	return nil
}

func (r *FeatureRepository) selectQuery() string {
	return `
		SELECT id, product_id, name, code, description, feature_type, charge_model, service_url, metadata, created_at
		FROM features
	`
}

func (r *FeatureRepository) doScan(scan func(dest ...any) error) (*feature.Feature, error) {
	var (
		idStr        string
		productIDStr string
		name         string
		code         string
		description  sql.NullString
		featureType  string
		chargeModel  string
		serviceURL   sql.NullString
		metadataRaw  []byte
		createdAt    sql.NullTime
	)

	if err := scan(&idStr, &productIDStr, &name, &code, &description, &featureType, &chargeModel, &serviceURL, &metadataRaw, &createdAt); err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid feature id in database: %w", err)
	}
	productID, err := shared.IDFromString(productIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid product id in database: %w", err)
	}

	var metadata shared.Metadata
	if err := fromJSONB(metadataRaw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feature metadata: %w", err)
	}

	return feature.Reconstitute(
		id, productID, name, code, nullStringValue(description),
		feature.Type(featureType), feature.ChargeModel(chargeModel),
		nullStringValue(serviceURL), metadata, createdAt.Time,
	), nil
}

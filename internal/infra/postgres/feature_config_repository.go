package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
)

// FeatureConfigRepository implements plan.FeatureConfigRepository using
// PostgreSQL. Pricing tiers are stored as a JSONB array on the row.
type FeatureConfigRepository struct {
	db *DB
}

// NewFeatureConfigRepository creates a new FeatureConfigRepository.
func NewFeatureConfigRepository(db *DB) *FeatureConfigRepository {
	return &FeatureConfigRepository{db: db}
}

// Create persists a new feature config.
func (r *FeatureConfigRepository) Create(ctx context.Context, c *plan.FeatureConfig) error {
	return insertFeatureConfig(ctx, r.db, c)
}

// insertFeatureConfig writes one config row. Shared with PlanStore,
// which inserts carried configs inside the fork transaction.
func insertFeatureConfig(ctx context.Context, tx dbtx, c *plan.FeatureConfig) error {
	tiers, err := toJSONB(c.PricingTiers())
	if err != nil {
		return fmt.Errorf("failed to marshal pricing tiers: %w", err)
	}
	metadata, err := toJSONB(c.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal config metadata: %w", err)
	}

	query := `
		INSERT INTO plan_feature_configs (
			id, plan_id, feature_id, feature_type, is_active, quota_limit,
			pricing_tiers, metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(ctx, query,
		c.ID().String(),
		c.PlanID().String(),
		c.FeatureID().String(),
		c.FeatureType().String(),
		c.IsAvailable(),
		nullInt64(c.QuotaLimit()),
		tiers,
		metadata,
		c.CreatedAt(),
		c.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: feature already configured for plan", shared.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create feature config: %w", err)
	}
	return nil
}

// GetByID retrieves a feature config by ID.
func (r *FeatureConfigRepository) GetByID(ctx context.Context, id shared.ID) (*plan.FeatureConfig, error) {
	query := featureConfigSelectQuery + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	c, err := scanFeatureConfig(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFoundError("feature config %s not found", id)
		}
		return nil, fmt.Errorf("failed to scan feature config: %w", err)
	}
	return c, nil
}

// ListByPlan returns all configs for a plan version.
func (r *FeatureConfigRepository) ListByPlan(ctx context.Context, planID shared.ID) ([]*plan.FeatureConfig, error) {
	query := featureConfigSelectQuery + " WHERE plan_id = $1 ORDER BY created_at ASC"
	return r.queryConfigs(ctx, query, planID.String())
}

// ListByPlans returns configs for multiple plan versions, in creation
// order. Entitlement resolution relies on this ordering being stable.
func (r *FeatureConfigRepository) ListByPlans(ctx context.Context, planIDs []shared.ID) ([]*plan.FeatureConfig, error) {
	if len(planIDs) == 0 {
		return nil, nil
	}
	query := featureConfigSelectQuery + " WHERE plan_id = ANY($1) ORDER BY created_at ASC"
	return r.queryConfigs(ctx, query, pq.Array(idStrings(planIDs)))
}

// Update updates an existing feature config.
func (r *FeatureConfigRepository) Update(ctx context.Context, c *plan.FeatureConfig) error {
	tiers, err := toJSONB(c.PricingTiers())
	if err != nil {
		return fmt.Errorf("failed to marshal pricing tiers: %w", err)
	}
	metadata, err := toJSONB(c.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal config metadata: %w", err)
	}

	query := `
		UPDATE plan_feature_configs SET
			is_active = $2, quota_limit = $3, pricing_tiers = $4, metadata = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		c.ID().String(),
		c.IsAvailable(),
		nullInt64(c.QuotaLimit()),
		tiers,
		metadata,
		c.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update feature config: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("feature config %s not found", c.ID())
	}
	return nil
}

// Delete removes a feature config.
func (r *FeatureConfigRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM plan_feature_configs WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete feature config: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("feature config %s not found", id)
	}
	return nil
}

func (r *FeatureConfigRepository) queryConfigs(ctx context.Context, query string, args ...any) ([]*plan.FeatureConfig, error) {
	return queryFeatureConfigs(ctx, r.db, query, args...)
}

func queryFeatureConfigs(ctx context.Context, tx dbtx, query string, args ...any) ([]*plan.FeatureConfig, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature configs: %w", err)
	}
	defer rows.Close()

	var configs []*plan.FeatureConfig
	for rows.Next() {
		c, err := scanFeatureConfig(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feature configs: %w", err)
	}
	return configs, nil
}

const featureConfigSelectQuery = `
	SELECT id, plan_id, feature_id, feature_type, is_active, quota_limit,
		pricing_tiers, metadata, created_at, updated_at
	FROM plan_feature_configs
`

func scanFeatureConfig(scan func(dest ...any) error) (*plan.FeatureConfig, error) {
	var (
		idStr        string
		planIDStr    string
		featureIDStr string
		featureType  string
		isActive     bool
		quotaLimit   sql.NullInt64
		tiersRaw     []byte
		metadataRaw  []byte
		createdAt    sql.NullTime
		updatedAt    sql.NullTime
	)

	if err := scan(&idStr, &planIDStr, &featureIDStr, &featureType, &isActive, &quotaLimit, &tiersRaw, &metadataRaw, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid config id in database: %w", err)
	}
	planID, err := shared.IDFromString(planIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid plan id in database: %w", err)
	}
	featureID, err := shared.IDFromString(featureIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid feature id in database: %w", err)
	}

	var tiers []plan.PricingTier
	if err := fromJSONB(tiersRaw, &tiers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing tiers: %w", err)
	}
	var metadata shared.Metadata
	if err := fromJSONB(metadataRaw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config metadata: %w", err)
	}

	return plan.ReconstituteFeatureConfig(
		id, planID, featureID,
		feature.Type(featureType), isActive,
		nullInt64Value(quotaLimit), tiers, metadata,
		createdAt.Time, updatedAt.Time,
	), nil
}

package plan

import (
	"context"

	"github.com/meterly/api/pkg/domain/shared"
)

// Repository defines persistence operations for plan versions.
type Repository interface {
	Create(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id shared.ID) (*Plan, error)
	GetByIDs(ctx context.Context, ids []shared.ID) ([]*Plan, error)
	// ListByPlanCode returns every persisted version of a plan family,
	// ordered by version ascending.
	ListByPlanCode(ctx context.Context, tenantID shared.ID, planCode string) ([]*Plan, error)
	ListByTenant(ctx context.Context, tenantID shared.ID) ([]*Plan, error)
	Update(ctx context.Context, p *Plan) error
	Delete(ctx context.Context, id shared.ID) error
}

// FeatureConfigRepository defines persistence for plan feature configs.
type FeatureConfigRepository interface {
	Create(ctx context.Context, c *FeatureConfig) error
	GetByID(ctx context.Context, id shared.ID) (*FeatureConfig, error)
	ListByPlan(ctx context.Context, planID shared.ID) ([]*FeatureConfig, error)
	ListByPlans(ctx context.Context, planIDs []shared.ID) ([]*FeatureConfig, error)
	Update(ctx context.Context, c *FeatureConfig) error
	Delete(ctx context.Context, id shared.ID) error
}

// Store executes a plan-family update atomically. Implementations load
// every version of the family under a row lock, invoke fn with the
// reconstructed aggregate, then persist both plans of the result with
// their product links in the same transaction. When the update forks,
// the archived version's feature configs are carried onto the new
// version in that same transaction. Partial application would let two
// active versions of one family coexist, or strand a forked version
// without its configs, which is why none of these writes commit
// separately.
type Store interface {
	UpdateFamily(ctx context.Context, tenantID shared.ID, planCode string, fn func(*Family) (UpdateResult, error)) (UpdateResult, error)
}

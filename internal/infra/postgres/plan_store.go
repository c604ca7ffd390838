package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
)

// PlanStore implements plan.Store. UpdateFamily locks every version of
// the family for the duration of the transaction: the caller's
// active-subscription check commits atomically with the resulting
// writes, including the feature-config carry on a fork. Two concurrent
// updates to the same family serialize on the row locks.
type PlanStore struct {
	db *DB
}

// NewPlanStore creates a new PlanStore.
func NewPlanStore(db *DB) *PlanStore {
	return &PlanStore{db: db}
}

// UpdateFamily loads the family under FOR UPDATE, applies fn, and
// persists both sides of the result in one transaction.
func (s *PlanStore) UpdateFamily(ctx context.Context, tenantID shared.ID, planCode string, fn func(*plan.Family) (plan.UpdateResult, error)) (plan.UpdateResult, error) {
	var result plan.UpdateResult

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := planSelectQuery + " WHERE tenant_id = $1 AND plan_code = $2 ORDER BY version ASC FOR UPDATE"
		plans, err := queryPlans(ctx, tx, query, tenantID.String(), planCode)
		if err != nil {
			return err
		}
		if len(plans) == 0 {
			return shared.NotFoundError("plan family %s not found", planCode)
		}

		family, err := plan.FamilyFromPlans(plans)
		if err != nil {
			return fmt.Errorf("failed to reconstruct plan family: %w", err)
		}

		result, err = fn(family)
		if err != nil {
			return err
		}

		forked := !result.Original.ID().Equals(result.Updated.ID())
		if forked {
			// The config carry must commit with the archive and insert.
			// A fork without its configs strips entitlements from every
			// subscriber moved to the new version.
			if err := updatePlan(ctx, tx, result.Original); err != nil {
				return err
			}
			if err := insertPlan(ctx, tx, result.Updated); err != nil {
				return err
			}
			return carryFeatureConfigs(ctx, tx, result.Original.ID(), result.Updated.ID())
		}
		return updatePlan(ctx, tx, result.Updated)
	})
	if err != nil {
		return plan.UpdateResult{}, err
	}
	return result, nil
}

// carryFeatureConfigs copies the archived version's feature configs onto
// the new version inside the fork transaction.
func carryFeatureConfigs(ctx context.Context, tx dbtx, fromPlanID, toPlanID shared.ID) error {
	query := featureConfigSelectQuery + " WHERE plan_id = $1 ORDER BY created_at ASC"
	configs, err := queryFeatureConfigs(ctx, tx, query, fromPlanID.String())
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		carried, err := cfg.CarryTo(toPlanID)
		if err != nil {
			return err
		}
		if err := insertFeatureConfig(ctx, tx, carried); err != nil {
			return err
		}
	}
	return nil
}

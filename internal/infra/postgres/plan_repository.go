package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/shared"
)

// dbtx is satisfied by both *sql.DB (via DB) and *sql.Tx so plan reads
// and writes can run inside the family transaction in plan_store.go.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PlanRepository implements plan.Repository using PostgreSQL. Product
// links live in the plan_products junction table and are written with
// the plan row.
type PlanRepository struct {
	db *DB
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db *DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Create persists a new plan version and its product links.
func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return insertPlan(ctx, tx, p)
	})
}

// GetByID retrieves a plan version by ID.
func (r *PlanRepository) GetByID(ctx context.Context, id shared.ID) (*plan.Plan, error) {
	return getPlanByID(ctx, r.db, id)
}

// GetByIDs retrieves multiple plan versions at once.
func (r *PlanRepository) GetByIDs(ctx context.Context, ids []shared.ID) ([]*plan.Plan, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := planSelectQuery + " WHERE id = ANY($1) ORDER BY created_at ASC"
	return queryPlans(ctx, r.db, query, pq.Array(idStrings(ids)))
}

// ListByPlanCode returns every persisted version of a plan family,
// ordered by version ascending.
func (r *PlanRepository) ListByPlanCode(ctx context.Context, tenantID shared.ID, planCode string) ([]*plan.Plan, error) {
	query := planSelectQuery + " WHERE tenant_id = $1 AND plan_code = $2 ORDER BY version ASC"
	return queryPlans(ctx, r.db, query, tenantID.String(), planCode)
}

// ListByTenant returns all plan versions for a tenant.
func (r *PlanRepository) ListByTenant(ctx context.Context, tenantID shared.ID) ([]*plan.Plan, error) {
	query := planSelectQuery + " WHERE tenant_id = $1 ORDER BY plan_code ASC, version ASC"
	return queryPlans(ctx, r.db, query, tenantID.String())
}

// Update updates an existing plan version and replaces its product links.
func (r *PlanRepository) Update(ctx context.Context, p *plan.Plan) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return updatePlan(ctx, tx, p)
	})
}

// Delete removes a plan version.
func (r *PlanRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("plan %s not found", id)
	}
	return nil
}

// Shared plan persistence helpers, used by both the repository and the
// family store.

const planSelectQuery = `
	SELECT id, tenant_id, name, plan_code, plan_type, version, active, status,
		price_id, price_value, price_currency, price_active, price_description,
		charge_frequency, charge_start, charge_periods,
		renew_cycle_units, renewal_expirable, renewal_automatic,
		grace_period_id, grace_period_name, grace_period_days, max_renew_cycles,
		trial_period_id, trial_period_name, trial_period_days,
		metadata, created_at, updated_at
	FROM plans
`

func insertPlan(ctx context.Context, tx dbtx, p *plan.Plan) error {
	metadata, err := toJSONB(p.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal plan metadata: %w", err)
	}

	query := `
		INSERT INTO plans (
			id, tenant_id, name, plan_code, plan_type, version, active, status,
			price_id, price_value, price_currency, price_active, price_description,
			charge_frequency, charge_start, charge_periods,
			renew_cycle_units, renewal_expirable, renewal_automatic,
			grace_period_id, grace_period_name, grace_period_days, max_renew_cycles,
			trial_period_id, trial_period_name, trial_period_days,
			metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`

	price := p.Price()
	period := price.ChargePeriod()
	args := []any{
		p.ID().String(),
		p.TenantID().String(),
		p.Name(),
		p.PlanCode(),
		p.PlanType().String(),
		p.Version(),
		p.IsActive(),
		p.Status().String(),
		price.PriceID().String(),
		price.Value(),
		price.Currency(),
		price.IsActive(),
		nullString(price.Description()),
		period.ChargeFrequency.String(),
		period.StartDateTime,
		nullIntPtr(period.NumberOfPeriods),
	}
	args = append(args, renewalArgs(p.RenewalDefinition())...)
	args = append(args, trialArgs(p.TrialPeriod())...)
	args = append(args, metadata, p.CreatedAt(), p.UpdatedAt())

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: plan %s version %d", shared.ErrAlreadyExists, p.PlanCode(), p.Version())
		}
		return fmt.Errorf("failed to create plan: %w", err)
	}

	return replaceProductLinks(ctx, tx, p)
}

func updatePlan(ctx context.Context, tx dbtx, p *plan.Plan) error {
	metadata, err := toJSONB(p.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal plan metadata: %w", err)
	}

	query := `
		UPDATE plans SET
			name = $2, plan_type = $3, active = $4, status = $5,
			price_id = $6, price_value = $7, price_currency = $8, price_active = $9, price_description = $10,
			charge_frequency = $11, charge_start = $12, charge_periods = $13,
			renew_cycle_units = $14, renewal_expirable = $15, renewal_automatic = $16,
			grace_period_id = $17, grace_period_name = $18, grace_period_days = $19, max_renew_cycles = $20,
			trial_period_id = $21, trial_period_name = $22, trial_period_days = $23,
			metadata = $24, updated_at = $25
		WHERE id = $1
	`

	price := p.Price()
	period := price.ChargePeriod()
	args := []any{
		p.ID().String(),
		p.Name(),
		p.PlanType().String(),
		p.IsActive(),
		p.Status().String(),
		price.PriceID().String(),
		price.Value(),
		price.Currency(),
		price.IsActive(),
		nullString(price.Description()),
		period.ChargeFrequency.String(),
		period.StartDateTime,
		nullIntPtr(period.NumberOfPeriods),
	}
	args = append(args, renewalArgs(p.RenewalDefinition())...)
	args = append(args, trialArgs(p.TrialPeriod())...)
	args = append(args, metadata, p.UpdatedAt())

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("plan %s not found", p.ID())
	}

	return replaceProductLinks(ctx, tx, p)
}

func replaceProductLinks(ctx context.Context, tx dbtx, p *plan.Plan) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_products WHERE plan_id = $1`, p.ID().String()); err != nil {
		return fmt.Errorf("failed to clear plan products: %w", err)
	}
	for _, productID := range p.ProductIDs() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO plan_products (plan_id, product_id) VALUES ($1, $2)`,
			p.ID().String(), productID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to link plan product: %w", err)
		}
	}
	return nil
}

func getPlanByID(ctx context.Context, tx dbtx, id shared.ID) (*plan.Plan, error) {
	plans, err := queryPlans(ctx, tx, planSelectQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, shared.NotFoundError("plan %s not found", id)
	}
	return plans[0], nil
}

func queryPlans(ctx context.Context, tx dbtx, query string, args ...any) ([]*plan.Plan, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []*plan.Plan
	var params []planScanParams
	for rows.Next() {
		p, err := scanPlanRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		params = append(params, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}

	for i := range params {
		productIDs, err := loadProductIDs(ctx, tx, params[i].reconstitute.ID)
		if err != nil {
			return nil, err
		}
		params[i].reconstitute.ProductIDs = productIDs
		plans = append(plans, plan.Reconstitute(params[i].reconstitute))
	}
	return plans, nil
}

func loadProductIDs(ctx context.Context, tx dbtx, planID shared.ID) ([]shared.ID, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT product_id FROM plan_products WHERE plan_id = $1 ORDER BY product_id`,
		planID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan products: %w", err)
	}
	defer rows.Close()

	var ids []shared.ID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, fmt.Errorf("failed to scan plan product: %w", err)
		}
		id, err := shared.IDFromString(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid product id in database: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type planScanParams struct {
	reconstitute plan.ReconstituteParams
}

func scanPlanRow(scan func(dest ...any) error) (planScanParams, error) {
	var (
		idStr            string
		tenantIDStr      string
		name             string
		planCode         string
		planType         string
		version          int
		active           bool
		status           string
		priceIDStr       string
		priceValue       int64
		priceCurrency    string
		priceActive      bool
		priceDescription sql.NullString
		chargeFrequency  string
		chargeStart      sql.NullTime
		chargePeriods    sql.NullInt64
		renewCycleUnits  sql.NullString
		renewalExpirable sql.NullBool
		renewalAutomatic sql.NullBool
		gracePeriodID    sql.NullString
		gracePeriodName  sql.NullString
		gracePeriodDays  sql.NullInt64
		maxRenewCycles   sql.NullInt64
		trialPeriodID    sql.NullString
		trialPeriodName  sql.NullString
		trialPeriodDays  sql.NullInt64
		metadataRaw      []byte
		createdAt        sql.NullTime
		updatedAt        sql.NullTime
	)

	if err := scan(
		&idStr, &tenantIDStr, &name, &planCode, &planType, &version, &active, &status,
		&priceIDStr, &priceValue, &priceCurrency, &priceActive, &priceDescription,
		&chargeFrequency, &chargeStart, &chargePeriods,
		&renewCycleUnits, &renewalExpirable, &renewalAutomatic,
		&gracePeriodID, &gracePeriodName, &gracePeriodDays, &maxRenewCycles,
		&trialPeriodID, &trialPeriodName, &trialPeriodDays,
		&metadataRaw, &createdAt, &updatedAt,
	); err != nil {
		return planScanParams{}, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return planScanParams{}, fmt.Errorf("invalid plan id in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return planScanParams{}, fmt.Errorf("invalid tenant id in database: %w", err)
	}
	priceID, err := shared.IDFromString(priceIDStr)
	if err != nil {
		return planScanParams{}, fmt.Errorf("invalid price id in database: %w", err)
	}

	price := plan.ReconstitutePrice(priceID, priceValue, priceCurrency, priceActive,
		nullStringValue(priceDescription), plan.RecurringChargePeriod{
			ChargeFrequency: plan.ChargeFrequency(chargeFrequency),
			StartDateTime:   chargeStart.Time,
			NumberOfPeriods: nullIntValue(chargePeriods),
		})

	var renewal *plan.RenewalDefinition
	if renewCycleUnits.Valid {
		grace := plan.TimePeriod{}
		if gp := parseNullID(gracePeriodID); gp != nil {
			grace = plan.ReconstituteTimePeriod(*gp, nullStringValue(gracePeriodName), int(gracePeriodDays.Int64))
		}
		def, err := plan.NewRenewalDefinition(
			renewalExpirable.Bool,
			renewalAutomatic.Bool,
			renewCycleUnits.String,
			grace,
			int(maxRenewCycles.Int64),
		)
		if err != nil {
			return planScanParams{}, fmt.Errorf("invalid renewal definition in database: %w", err)
		}
		renewal = &def
	}

	var trial *plan.TimePeriod
	if tp := parseNullID(trialPeriodID); tp != nil {
		t := plan.ReconstituteTimePeriod(*tp, nullStringValue(trialPeriodName), int(trialPeriodDays.Int64))
		trial = &t
	}

	var metadata shared.Metadata
	if err := fromJSONB(metadataRaw, &metadata); err != nil {
		return planScanParams{}, fmt.Errorf("failed to unmarshal plan metadata: %w", err)
	}

	return planScanParams{reconstitute: plan.ReconstituteParams{
		ID:                id,
		TenantID:          tenantID,
		Name:              name,
		PlanCode:          planCode,
		PlanType:          plan.Type(planType),
		Version:           version,
		Price:             price,
		RenewalDefinition: renewal,
		TrialPeriod:       trial,
		Active:            active,
		Status:            plan.Status(status),
		Metadata:          metadata,
		CreatedAt:         createdAt.Time,
		UpdatedAt:         updatedAt.Time,
	}}, nil
}

func renewalArgs(r *plan.RenewalDefinition) []any {
	if r == nil {
		return []any{nil, nil, nil, nil, nil, nil, nil}
	}
	grace := r.GracePeriod()
	var graceID, graceName sql.NullString
	var graceDays sql.NullInt64
	if !grace.IsZero() {
		graceID = nullString(grace.ID().String())
		graceName = nullString(grace.Name())
		graceDays = sql.NullInt64{Int64: int64(grace.Value()), Valid: true}
	}
	return []any{
		r.RenewCycleUnits(),
		r.IsExpirable(),
		r.IsAutomaticRenewable(),
		graceID,
		graceName,
		graceDays,
		r.MaxRenewCycles(),
	}
}

func trialArgs(t *plan.TimePeriod) []any {
	if t == nil {
		return []any{nil, nil, nil}
	}
	return []any{t.ID().String(), t.Name(), t.Value()}
}

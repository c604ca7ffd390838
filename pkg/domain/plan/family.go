package plan

import (
	"slices"

	"github.com/meterly/api/pkg/domain/shared"
)

// Family is the aggregate root grouping every version of a plan under one
// plan code. Versions are keyed by version number and the latest version
// is tracked explicitly, so two versions can never both be "latest".
type Family struct {
	tenantID      shared.ID
	name          string
	planCode      string
	versions      map[int]*Plan
	latestVersion int
}

// CreateInitialPlan builds a version-1 plan and wraps it in a new family.
func CreateInitialPlan(params NewPlanParams) (*Family, error) {
	initial, err := NewPlan(params)
	if err != nil {
		return nil, err
	}
	return &Family{
		tenantID:      initial.TenantID(),
		name:          initial.Name(),
		planCode:      initial.PlanCode(),
		versions:      map[int]*Plan{initial.Version(): initial},
		latestVersion: initial.Version(),
	}, nil
}

// FamilyFromPlans reconstructs a family from persisted versions. The list
// must be non-empty; tenant, name and plan code are taken from the first
// element and the caller must pass versions of a single plan.
func FamilyFromPlans(plans []*Plan) (*Family, error) {
	if len(plans) == 0 {
		return nil, shared.ValidationError("a plan family requires at least one plan")
	}

	first := plans[0]
	f := &Family{
		tenantID: first.TenantID(),
		name:     first.Name(),
		planCode: first.PlanCode(),
		versions: make(map[int]*Plan, len(plans)),
	}
	for _, p := range plans {
		if p.PlanCode() != f.planCode {
			return nil, shared.ValidationError("plan %s does not belong to family %s", p.PlanCode(), f.planCode)
		}
		if _, ok := f.versions[p.Version()]; ok {
			return nil, shared.ValidationError("duplicate plan version %d in family %s", p.Version(), f.planCode)
		}
		f.versions[p.Version()] = p
		if p.Version() > f.latestVersion {
			f.latestVersion = p.Version()
		}
	}
	return f, nil
}

// TenantID returns the owning tenant ID.
func (f *Family) TenantID() shared.ID { return f.tenantID }

// Name returns the family name.
func (f *Family) Name() string { return f.name }

// PlanCode returns the code shared by all member versions.
func (f *Family) PlanCode() string { return f.planCode }

// Latest returns the member with the highest version number. It may be
// archived immediately after an archive with no replacement appended yet.
func (f *Family) Latest() *Plan {
	return f.versions[f.latestVersion]
}

// Version returns the member with the exact version number.
func (f *Family) Version(version int) (*Plan, error) {
	p, ok := f.versions[version]
	if !ok {
		return nil, shared.NotFoundError("plan version %d not found in family %s", version, f.planCode)
	}
	return p, nil
}

// Plans returns the member versions in ascending version order.
func (f *Family) Plans() []*Plan {
	out := make([]*Plan, 0, len(f.versions))
	for _, p := range f.versions {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Plan) int { return a.Version() - b.Version() })
	return out
}

// ArchiveVersion archives a specific version without forking.
func (f *Family) ArchiveVersion(version int) error {
	p, err := f.Version(version)
	if err != nil {
		return err
	}
	p.Archive()
	return nil
}

// UpdateResult carries both sides of an update: the original plan as it
// now stands and the plan carrying the changes. For an in-place update
// both fields point at the same plan.
type UpdateResult struct {
	Original *Plan
	Updated  *Plan
}

// UpdateLatest applies changes to the family's latest plan. When active
// subscriptions reference the plan, mutating it would silently change
// their terms, so the plan is archived and a new version is forked with
// the changes instead. Without dependents the plan is mutated in place.
// The caller persists both returned plans atomically.
func (f *Family) UpdateLatest(changes Changes, hasActiveSubscriptions bool) (UpdateResult, error) {
	latest := f.Latest()

	if !hasActiveSubscriptions {
		if err := latest.ApplyDirectUpdates(changes); err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{Original: latest, Updated: latest}, nil
	}

	next, err := latest.CreateNewVersion(changes)
	if err != nil {
		return UpdateResult{}, err
	}
	latest.Archive()
	f.versions[next.Version()] = next
	f.latestVersion = next.Version()
	return UpdateResult{Original: latest, Updated: next}, nil
}

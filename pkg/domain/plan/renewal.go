package plan

import (
	"strings"

	"github.com/meterly/api/pkg/domain/shared"
)

// TimePeriod is a named span of time, used for trial and grace periods.
type TimePeriod struct {
	id    shared.ID
	name  string
	value int
}

// NewTimePeriod creates a validated TimePeriod.
func NewTimePeriod(name string, value int) (TimePeriod, error) {
	if strings.TrimSpace(name) == "" {
		return TimePeriod{}, shared.ValidationError("time period name is required")
	}
	if value <= 0 {
		return TimePeriod{}, shared.ValidationError("time period value must be positive")
	}
	return TimePeriod{
		id:    shared.NewID(),
		name:  name,
		value: value,
	}, nil
}

// ReconstituteTimePeriod recreates a TimePeriod from persistence.
func ReconstituteTimePeriod(id shared.ID, name string, value int) TimePeriod {
	return TimePeriod{id: id, name: name, value: value}
}

// ID returns the period identifier.
func (t TimePeriod) ID() shared.ID { return t.id }

// Name returns the period name, e.g. "14-day trial".
func (t TimePeriod) Name() string { return t.name }

// Value returns the period length in days.
func (t TimePeriod) Value() int { return t.value }

// IsZero reports whether the period is unset.
func (t TimePeriod) IsZero() bool {
	return t.name == "" && t.value == 0
}

// RenewalDefinition describes how a plan's subscriptions renew and expire.
type RenewalDefinition struct {
	isExpirable          bool
	isAutomaticRenewable bool
	renewCycleUnits      string
	gracePeriod          TimePeriod
	maxRenewCycles       int
}

// NewRenewalDefinition creates a validated RenewalDefinition.
// maxRenewCycles of 0 means unlimited renewals for non-expirable plans.
func NewRenewalDefinition(isExpirable, isAutomaticRenewable bool, renewCycleUnits string, gracePeriod TimePeriod, maxRenewCycles int) (RenewalDefinition, error) {
	if strings.TrimSpace(renewCycleUnits) == "" {
		return RenewalDefinition{}, shared.ValidationError("renew cycle units are required")
	}
	if maxRenewCycles < 0 {
		return RenewalDefinition{}, shared.ValidationError("max renew cycles cannot be negative")
	}
	return RenewalDefinition{
		isExpirable:          isExpirable,
		isAutomaticRenewable: isAutomaticRenewable,
		renewCycleUnits:      renewCycleUnits,
		gracePeriod:          gracePeriod,
		maxRenewCycles:       maxRenewCycles,
	}, nil
}

// IsExpirable reports whether subscriptions on the plan can expire.
func (r RenewalDefinition) IsExpirable() bool { return r.isExpirable }

// IsAutomaticRenewable reports whether renewals happen without action.
func (r RenewalDefinition) IsAutomaticRenewable() bool { return r.isAutomaticRenewable }

// RenewCycleUnits returns the renewal cycle unit, e.g. "months".
func (r RenewalDefinition) RenewCycleUnits() string { return r.renewCycleUnits }

// GracePeriod returns the post-expiry grace period.
func (r RenewalDefinition) GracePeriod() TimePeriod { return r.gracePeriod }

// MaxRenewCycles returns the renewal cap; 0 means unlimited.
func (r RenewalDefinition) MaxRenewCycles() int { return r.maxRenewCycles }

package plan

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
)

// ChargeFrequency represents how often a recurring charge applies.
type ChargeFrequency string

const (
	FrequencyOneTime     ChargeFrequency = "one-time"
	FrequencyMonthly     ChargeFrequency = "monthly"
	FrequencyFortnightly ChargeFrequency = "fortnightly"
	FrequencyWeekly      ChargeFrequency = "weekly"
	FrequencyDaily       ChargeFrequency = "daily"
	FrequencyHourly      ChargeFrequency = "hourly"
	FrequencyPerMinute   ChargeFrequency = "per-minute"
	FrequencyPerSecond   ChargeFrequency = "per-second"
)

// AllChargeFrequencies returns all valid charge frequencies.
func AllChargeFrequencies() []ChargeFrequency {
	return []ChargeFrequency{
		FrequencyOneTime,
		FrequencyMonthly,
		FrequencyFortnightly,
		FrequencyWeekly,
		FrequencyDaily,
		FrequencyHourly,
		FrequencyPerMinute,
		FrequencyPerSecond,
	}
}

// IsValid checks if the charge frequency is valid.
func (f ChargeFrequency) IsValid() bool {
	return slices.Contains(AllChargeFrequencies(), f)
}

// String returns the string representation.
func (f ChargeFrequency) String() string {
	return string(f)
}

// ParseChargeFrequency parses a string into a ChargeFrequency.
func ParseChargeFrequency(s string) (ChargeFrequency, error) {
	f := ChargeFrequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("invalid charge frequency: %s", s)
	}
	return f, nil
}

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// RecurringChargePeriod describes the cadence of a recurring price.
// A nil NumberOfPeriods means the charge recurs indefinitely.
type RecurringChargePeriod struct {
	ChargeFrequency ChargeFrequency
	StartDateTime   time.Time
	NumberOfPeriods *int
}

// NewRecurringChargePeriod creates a validated RecurringChargePeriod.
func NewRecurringChargePeriod(frequency ChargeFrequency, start time.Time, numberOfPeriods *int) (RecurringChargePeriod, error) {
	if !frequency.IsValid() {
		return RecurringChargePeriod{}, shared.ValidationError("invalid charge frequency: %s", frequency)
	}
	if numberOfPeriods != nil && *numberOfPeriods <= 0 {
		return RecurringChargePeriod{}, shared.ValidationError("number of periods must be positive")
	}
	return RecurringChargePeriod{
		ChargeFrequency: frequency,
		StartDateTime:   start,
		NumberOfPeriods: numberOfPeriods,
	}, nil
}

// Unlimited reports whether the charge recurs without a fixed period count.
func (p RecurringChargePeriod) Unlimited() bool {
	return p.NumberOfPeriods == nil
}

// Price is the amount charged for a plan, in minor currency units.
type Price struct {
	priceID      shared.ID
	value        int64
	currency     string
	isActive     bool
	description  string
	chargePeriod RecurringChargePeriod
}

// NewPrice creates a validated Price. Value is in minor currency units
// (cents for USD) and the currency code is normalized to uppercase.
func NewPrice(value int64, currency string, description string, period RecurringChargePeriod) (Price, error) {
	if value < 0 {
		return Price{}, shared.ValidationError("price value cannot be negative")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !currencyRegex.MatchString(currency) {
		return Price{}, shared.ValidationError("currency must be a 3-letter code")
	}
	if !period.ChargeFrequency.IsValid() {
		return Price{}, shared.ValidationError("invalid charge frequency: %s", period.ChargeFrequency)
	}
	return Price{
		priceID:      shared.NewID(),
		value:        value,
		currency:     currency,
		isActive:     true,
		description:  description,
		chargePeriod: period,
	}, nil
}

// ReconstitutePrice recreates a Price from persistence.
func ReconstitutePrice(priceID shared.ID, value int64, currency string, isActive bool, description string, period RecurringChargePeriod) Price {
	return Price{
		priceID:      priceID,
		value:        value,
		currency:     currency,
		isActive:     isActive,
		description:  description,
		chargePeriod: period,
	}
}

// PriceID returns the display identifier of the price.
func (p Price) PriceID() shared.ID { return p.priceID }

// Value returns the amount in minor currency units.
func (p Price) Value() int64 { return p.value }

// Currency returns the uppercase 3-letter currency code.
func (p Price) Currency() string { return p.currency }

// IsActive reports whether the price is active.
func (p Price) IsActive() bool { return p.isActive }

// Description returns the optional description.
func (p Price) Description() string { return p.description }

// ChargePeriod returns the recurring charge period.
func (p Price) ChargePeriod() RecurringChargePeriod { return p.chargePeriod }

// Equals compares prices structurally by value, currency and frequency.
// The generated priceID does not participate in equality.
func (p Price) Equals(other Price) bool {
	return p.value == other.value &&
		p.currency == other.currency &&
		p.chargePeriod.ChargeFrequency == other.chargePeriod.ChargeFrequency
}

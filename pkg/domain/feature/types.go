package feature

import (
	"fmt"
	"slices"
	"strings"
)

// Type classifies how a feature is granted and billed.
type Type string

const (
	// TypeBoolean is a simple on/off capability.
	TypeBoolean Type = "boolean"
	// TypeMetered accrues usage billed through pricing tiers.
	TypeMetered Type = "metered"
	// TypeQuota allows a bounded quantity per billing period.
	TypeQuota Type = "quota"
	// TypeEntitlement grants access controlled outside usage metering.
	TypeEntitlement Type = "entitlement"
)

// AllTypes returns all valid feature types.
func AllTypes() []Type {
	return []Type{TypeBoolean, TypeMetered, TypeQuota, TypeEntitlement}
}

// IsValid checks if the feature type is valid.
func (t Type) IsValid() bool {
	return slices.Contains(AllTypes(), t)
}

// String returns the string representation.
func (t Type) String() string { return string(t) }

// ParseType parses a string into a feature Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid feature type: %s", s)
	}
	return t, nil
}

// ChargeModel describes how usage of a feature converts into charges.
type ChargeModel string

const (
	ChargeModelFlat       ChargeModel = "flat"
	ChargeModelPerSeat    ChargeModel = "per_seat"
	ChargeModelPerAPICall ChargeModel = "per_api_call"
	ChargeModelTiered     ChargeModel = "tiered"
	ChargeModelPackage    ChargeModel = "package"
	ChargeModelVolume     ChargeModel = "volume"
	ChargeModelGraduated  ChargeModel = "graduated"
)

// AllChargeModels returns all valid charge models.
func AllChargeModels() []ChargeModel {
	return []ChargeModel{
		ChargeModelFlat,
		ChargeModelPerSeat,
		ChargeModelPerAPICall,
		ChargeModelTiered,
		ChargeModelPackage,
		ChargeModelVolume,
		ChargeModelGraduated,
	}
}

// IsValid checks if the charge model is valid.
func (m ChargeModel) IsValid() bool {
	return slices.Contains(AllChargeModels(), m)
}

// String returns the string representation.
func (m ChargeModel) String() string { return string(m) }

// ParseChargeModel parses a string into a ChargeModel.
func ParseChargeModel(s string) (ChargeModel, error) {
	m := ChargeModel(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("invalid charge model: %s", s)
	}
	return m, nil
}

package plan

import (
	"fmt"
	"slices"
	"strings"
)

// Type represents the commercial tier of a plan.
type Type string

const (
	TypeFree       Type = "free"
	TypeStandard   Type = "standard"
	TypePro        Type = "pro"
	TypeEnterprise Type = "enterprise"
)

// AllTypes returns all valid plan types.
func AllTypes() []Type {
	return []Type{TypeFree, TypeStandard, TypePro, TypeEnterprise}
}

// IsValid checks if the plan type is valid.
func (t Type) IsValid() bool {
	return slices.Contains(AllTypes(), t)
}

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// ParseType parses a string into a plan Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid plan type: %s", s)
	}
	return t, nil
}

// Status represents the lifecycle state of a plan version.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// AllStatuses returns all valid plan statuses.
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusActive, StatusArchived}
}

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	return slices.Contains(AllStatuses(), s)
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// ParseStatus parses a string into a plan Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid plan status: %s", v)
	}
	return s, nil
}

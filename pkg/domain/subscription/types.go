package subscription

import (
	"fmt"
	"slices"
	"strings"
)

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusActive     Status = "active"
	StatusTrial      Status = "trial"
	StatusPastDue    Status = "past_due"
	StatusCancelled  Status = "cancelled"
	StatusIncomplete Status = "incomplete"
	StatusExpired    Status = "expired"
)

// AllStatuses returns all valid subscription statuses.
func AllStatuses() []Status {
	return []Status{
		StatusActive,
		StatusTrial,
		StatusPastDue,
		StatusCancelled,
		StatusIncomplete,
		StatusExpired,
	}
}

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	return slices.Contains(AllStatuses(), s)
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// IsBillable reports whether the subscription counts as an active
// dependent of its plan version. Billable subscriptions pin the plan and
// force fork-on-write updates.
func (s Status) IsBillable() bool {
	return s == StatusActive || s == StatusTrial || s == StatusPastDue
}

// ParseStatus parses a string into a subscription Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid subscription status: %s", v)
	}
	return s, nil
}

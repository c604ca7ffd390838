// Package tenant defines the tenant entity owning all billing data.
package tenant

import (
	"strings"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
)

const maxNameLength = 255

// Tenant represents an isolated customer organization of the billing platform.
// Every other entity is scoped to exactly one tenant.
type Tenant struct {
	id          shared.ID
	name        string
	emailDomain string
	metadata    shared.Metadata
	createdAt   time.Time
}

// NewTenant creates a new Tenant entity.
func NewTenant(name, emailDomain string) (*Tenant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.ValidationError("tenant name is required")
	}
	if len(name) > maxNameLength {
		return nil, shared.ValidationError("tenant name must be at most %d characters", maxNameLength)
	}

	return &Tenant{
		id:          shared.NewID(),
		name:        name,
		emailDomain: emailDomain,
		createdAt:   time.Now().UTC(),
	}, nil
}

// Reconstitute recreates a Tenant from persistence.
func Reconstitute(id shared.ID, name, emailDomain string, metadata shared.Metadata, createdAt time.Time) *Tenant {
	return &Tenant{
		id:          id,
		name:        name,
		emailDomain: emailDomain,
		metadata:    metadata,
		createdAt:   createdAt,
	}
}

// ID returns the tenant ID.
func (t *Tenant) ID() shared.ID { return t.id }

// Name returns the tenant display name.
func (t *Tenant) Name() string { return t.name }

// EmailDomain returns the email domain used to match sign-ups, if any.
func (t *Tenant) EmailDomain() string { return t.emailDomain }

// Metadata returns a copy of the tenant metadata.
func (t *Tenant) Metadata() shared.Metadata { return shared.CopyMetadata(t.metadata) }

// CreatedAt returns the creation timestamp.
func (t *Tenant) CreatedAt() time.Time { return t.createdAt }

// UpdateName updates the tenant name.
func (t *Tenant) UpdateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.ValidationError("tenant name cannot be empty")
	}
	if len(name) > maxNameLength {
		return shared.ValidationError("tenant name must be at most %d characters", maxNameLength)
	}
	t.name = name
	return nil
}

// UpdateEmailDomain updates the email domain.
func (t *Tenant) UpdateEmailDomain(domain string) {
	t.emailDomain = domain
}

// UpdateMetadata merges the given keys into the tenant metadata.
func (t *Tenant) UpdateMetadata(metadata shared.Metadata) {
	t.metadata = shared.MergeMetadata(t.metadata, metadata)
}

// Package product defines the sellable product entity.
package product

import (
	"strings"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
)

const maxNameLength = 255

// Product is a sellable unit owned by a tenant. Plans bundle one or more
// products; features hang off a product.
type Product struct {
	id          shared.ID
	tenantID    shared.ID
	name        string
	description string
	apiKey      string
	active      bool
	metadata    shared.Metadata
	createdAt   time.Time
}

// NewProduct creates a new active Product.
func NewProduct(tenantID shared.ID, name, description string) (*Product, error) {
	if tenantID.IsZero() {
		return nil, shared.ValidationError("tenant id is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.ValidationError("product name is required")
	}
	if len(name) > maxNameLength {
		return nil, shared.ValidationError("product name must be at most %d characters", maxNameLength)
	}

	return &Product{
		id:          shared.NewID(),
		tenantID:    tenantID,
		name:        name,
		description: description,
		active:      true,
		createdAt:   time.Now().UTC(),
	}, nil
}

// Reconstitute recreates a Product from persistence.
func Reconstitute(id, tenantID shared.ID, name, description, apiKey string, active bool, metadata shared.Metadata, createdAt time.Time) *Product {
	return &Product{
		id:          id,
		tenantID:    tenantID,
		name:        name,
		description: description,
		apiKey:      apiKey,
		active:      active,
		metadata:    metadata,
		createdAt:   createdAt,
	}
}

// ID returns the product ID.
func (p *Product) ID() shared.ID { return p.id }

// TenantID returns the owning tenant ID.
func (p *Product) TenantID() shared.ID { return p.tenantID }

// Name returns the product name.
func (p *Product) Name() string { return p.name }

// Description returns the product description.
func (p *Product) Description() string { return p.description }

// APIKey returns the key products use to report usage, if set.
func (p *Product) APIKey() string { return p.apiKey }

// Active reports whether the product can be attached to new plans.
func (p *Product) Active() bool { return p.active }

// Metadata returns a copy of the product metadata.
func (p *Product) Metadata() shared.Metadata { return shared.CopyMetadata(p.metadata) }

// CreatedAt returns the creation timestamp.
func (p *Product) CreatedAt() time.Time { return p.createdAt }

// UpdateName updates the product name.
func (p *Product) UpdateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.ValidationError("product name cannot be empty")
	}
	if len(name) > maxNameLength {
		return shared.ValidationError("product name must be at most %d characters", maxNameLength)
	}
	p.name = name
	return nil
}

// UpdateDescription updates the product description.
func (p *Product) UpdateDescription(description string) {
	p.description = description
}

// SetAPIKey stores the usage-reporting API key.
func (p *Product) SetAPIKey(apiKey string) {
	p.apiKey = apiKey
}

// Activate marks the product usable for new plans.
func (p *Product) Activate() { p.active = true }

// Deactivate hides the product from new plans. Existing plans keep it.
func (p *Product) Deactivate() { p.active = false }

// UpdateMetadata merges the given keys into the product metadata.
func (p *Product) UpdateMetadata(metadata shared.Metadata) {
	p.metadata = shared.MergeMetadata(p.metadata, metadata)
}

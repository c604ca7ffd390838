package product

import (
	"context"

	"github.com/meterly/api/pkg/domain/shared"
)

// Repository defines the interface for product persistence.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id shared.ID) (*Product, error)
	ListByTenant(ctx context.Context, tenantID shared.ID) ([]*Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id shared.ID) error
}

package feature

import (
	"context"

	"github.com/meterly/api/pkg/domain/shared"
)

// Repository defines persistence operations for features.
type Repository interface {
	Create(ctx context.Context, f *Feature) error
	GetByID(ctx context.Context, id shared.ID) (*Feature, error)
	GetByCode(ctx context.Context, productID shared.ID, code string) (*Feature, error)
	ListByProduct(ctx context.Context, productID shared.ID) ([]*Feature, error)
	Update(ctx context.Context, f *Feature) error
	Delete(ctx context.Context, id shared.ID) error
}

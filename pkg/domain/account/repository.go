package account

import (
	"context"

	"github.com/meterly/api/pkg/domain/shared"
)

// Repository defines the interface for account persistence.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id shared.ID) (*Account, error)
	ListByTenant(ctx context.Context, tenantID shared.ID) ([]*Account, error)
	Update(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id shared.ID) error
}

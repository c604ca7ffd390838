package payment

import (
	"context"

	"github.com/meterly/api/pkg/domain/shared"
)

// Repository defines persistence operations for payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id shared.ID) (*Payment, error)
	ListByAccount(ctx context.Context, accountID shared.ID) ([]*Payment, error)
	ListBySubscription(ctx context.Context, subscriptionID shared.ID) ([]*Payment, error)
	Update(ctx context.Context, p *Payment) error
}

package payment

import (
	"context"

	"github.com/meterly/api/pkg/domain/shared"
)

// GatewayResult is the gateway's answer to a charge attempt.
type GatewayResult struct {
	Success      bool
	PaymentID    string
	Status       Status
	ErrorMessage string
}

// Gateway is the boundary to the external payment processor. Gateway
// failures are never retried here; the calling use case decides whether
// to surface them, and subscription creation treats a failed charge as a
// hard stop.
type Gateway interface {
	CreateCustomer(ctx context.Context, accountID shared.ID, billingEmail string) (string, error)
	ProcessPayment(ctx context.Context, amount int64, currency, customerID string, metadata shared.Metadata) (GatewayResult, error)
	RefundPayment(ctx context.Context, gatewayPaymentID string, amount int64) (GatewayResult, error)
	GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (Status, error)
}

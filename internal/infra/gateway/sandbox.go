// Package gateway provides payment gateway implementations. Only the
// sandbox gateway ships today; a live processor integration plugs in
// behind the same domain interface.
package gateway

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/meterly/api/internal/config"
	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/logger"
)

// declineSuffix forces a decline for any gateway customer whose ID
// carries it, so decline paths stay testable end to end.
const declineSuffix = "_declined"

// Sandbox implements payment.Gateway without an external processor.
// Outcomes are deterministic: the same charge inputs always produce the
// same result, so retried requests behave like an idempotent processor.
type Sandbox struct {
	failRate float64
	logger   *logger.Logger

	mu       sync.RWMutex
	statuses map[string]payment.Status
}

// NewSandbox creates a sandbox gateway from configuration.
func NewSandbox(cfg *config.GatewayConfig, log *logger.Logger) *Sandbox {
	return &Sandbox{
		failRate: cfg.SandboxFailRate,
		logger:   log.With("component", "gateway.sandbox"),
		statuses: make(map[string]payment.Status),
	}
}

// CreateCustomer registers an account with the gateway and returns the
// gateway-side customer reference.
func (g *Sandbox) CreateCustomer(ctx context.Context, accountID shared.ID, billingEmail string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	customerID := "cus_" + strings.ReplaceAll(accountID.String(), "-", "")
	g.logger.DebugContext(ctx, "sandbox customer created",
		"account_id", accountID.String(),
		"customer_id", customerID,
		"billing_email", billingEmail,
	)
	return customerID, nil
}

// ProcessPayment simulates a charge. Customers carrying the decline
// suffix always fail; otherwise the configured fail rate is applied
// deterministically over the customer and amount.
func (g *Sandbox) ProcessPayment(ctx context.Context, amount int64, currency, customerID string, metadata shared.Metadata) (payment.GatewayResult, error) {
	if err := ctx.Err(); err != nil {
		return payment.GatewayResult{}, err
	}
	if amount <= 0 {
		return payment.GatewayResult{}, fmt.Errorf("invalid charge amount: %d", amount)
	}
	if customerID == "" {
		return payment.GatewayResult{}, fmt.Errorf("gateway customer id is required")
	}

	if g.declines(customerID, amount) {
		g.logger.InfoContext(ctx, "sandbox charge declined",
			"customer_id", customerID,
			"amount", amount,
			"currency", currency,
		)
		return payment.GatewayResult{
			Success:      false,
			Status:       payment.StatusFailed,
			ErrorMessage: "card declined",
		}, nil
	}

	paymentID := "pay_" + uuid.NewString()
	g.mu.Lock()
	g.statuses[paymentID] = payment.StatusSucceeded
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "sandbox charge succeeded",
		"customer_id", customerID,
		"payment_id", paymentID,
		"amount", amount,
		"currency", currency,
	)
	return payment.GatewayResult{
		Success:   true,
		PaymentID: paymentID,
		Status:    payment.StatusSucceeded,
	}, nil
}

// RefundPayment simulates a refund against a previously processed
// charge.
func (g *Sandbox) RefundPayment(ctx context.Context, gatewayPaymentID string, amount int64) (payment.GatewayResult, error) {
	if err := ctx.Err(); err != nil {
		return payment.GatewayResult{}, err
	}
	if amount <= 0 {
		return payment.GatewayResult{}, fmt.Errorf("invalid refund amount: %d", amount)
	}

	g.mu.RLock()
	status, ok := g.statuses[gatewayPaymentID]
	g.mu.RUnlock()
	if !ok {
		return payment.GatewayResult{
			Success:      false,
			PaymentID:    gatewayPaymentID,
			Status:       payment.StatusFailed,
			ErrorMessage: "unknown payment",
		}, nil
	}
	if status != payment.StatusSucceeded && status != payment.StatusPartiallyRefunded {
		return payment.GatewayResult{
			Success:      false,
			PaymentID:    gatewayPaymentID,
			Status:       status,
			ErrorMessage: fmt.Sprintf("cannot refund a %s payment", status),
		}, nil
	}

	g.mu.Lock()
	g.statuses[gatewayPaymentID] = payment.StatusRefunded
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "sandbox refund processed",
		"payment_id", gatewayPaymentID,
		"amount", amount,
	)
	return payment.GatewayResult{
		Success:   true,
		PaymentID: gatewayPaymentID,
		Status:    payment.StatusRefunded,
	}, nil
}

// GetPaymentStatus reports the status of a previously processed charge.
func (g *Sandbox) GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (payment.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.RLock()
	status, ok := g.statuses[gatewayPaymentID]
	g.mu.RUnlock()
	if !ok {
		return "", shared.NotFoundError("payment %s not found at gateway", gatewayPaymentID)
	}
	return status, nil
}

func (g *Sandbox) declines(customerID string, amount int64) bool {
	if strings.HasSuffix(customerID, declineSuffix) {
		return true
	}
	if g.failRate <= 0 {
		return false
	}
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%d", customerID, amount)
	return float64(h.Sum32()%1000) < g.failRate*1000
}

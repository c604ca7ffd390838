package app

import (
	"context"

	"github.com/meterly/api/internal/metrics"
	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/logger"
)

// PaymentService exposes payment history and refunds. Charges are never
// initiated here; they happen inside subscription creation, upgrade and
// renewal.
type PaymentService struct {
	payments payment.Repository
	gateway  payment.Gateway
	logger   *logger.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(payments payment.Repository, gw payment.Gateway, log *logger.Logger) *PaymentService {
	return &PaymentService{
		payments: payments,
		gateway:  gw,
		logger:   log.With("service", "payment"),
	}
}

// GetPayment returns one payment by ID.
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	paymentID, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid payment ID")
	}
	return s.payments.GetByID(ctx, paymentID)
}

// ListByAccount returns an account's payments, newest first.
func (s *PaymentService) ListByAccount(ctx context.Context, accountID string) ([]*payment.Payment, error) {
	id, err := shared.IDFromString(accountID)
	if err != nil {
		return nil, shared.ValidationError("invalid account ID")
	}
	return s.payments.ListByAccount(ctx, id)
}

// ListBySubscription returns a subscription's payments, newest first.
func (s *PaymentService) ListBySubscription(ctx context.Context, subscriptionID string) ([]*payment.Payment, error) {
	id, err := shared.IDFromString(subscriptionID)
	if err != nil {
		return nil, shared.ValidationError("invalid subscription ID")
	}
	return s.payments.ListBySubscription(ctx, id)
}

// RefundPayment refunds part or all of a succeeded payment. The gateway
// refund runs first; the local record only changes once the gateway
// accepted it.
func (s *PaymentService) RefundPayment(ctx context.Context, id string, amount int64) (*payment.Payment, error) {
	paymentID, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid payment ID")
	}
	pay, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, shared.ValidationError("refund amount must be positive")
	}
	if amount > pay.Amount()-pay.RefundedAmount() {
		return nil, shared.ValidationError("refund amount exceeds remaining refundable amount")
	}

	result, err := s.gateway.RefundPayment(ctx, pay.GatewayPaymentID(), amount)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, shared.StateConflictError("gateway declined refund: %s", result.ErrorMessage)
	}

	if err := pay.Refund(amount); err != nil {
		return nil, err
	}
	if err := s.payments.Update(ctx, pay); err != nil {
		return nil, err
	}

	metrics.PaymentsTotal.WithLabelValues(pay.TenantID().String(), pay.Status().String()).Inc()
	s.logger.InfoContext(ctx, "payment refunded",
		"payment_id", pay.ID().String(),
		"amount", amount,
	)
	return pay, nil
}

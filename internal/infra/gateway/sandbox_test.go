package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterly/api/internal/config"
	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/logger"
)

func newTestSandbox(failRate float64) *Sandbox {
	return NewSandbox(&config.GatewayConfig{Mode: "sandbox", SandboxFailRate: failRate}, logger.NewNop())
}

func TestSandbox_CreateCustomer(t *testing.T) {
	g := newTestSandbox(0)
	accountID := shared.NewID()

	customerID, err := g.CreateCustomer(context.Background(), accountID, "billing@acme.test")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(customerID, "cus_"))
}

func TestSandbox_ProcessPayment(t *testing.T) {
	g := newTestSandbox(0)
	ctx := context.Background()

	result, err := g.ProcessPayment(ctx, 2900, "USD", "cus_123", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, payment.StatusSucceeded, result.Status)
	require.NotEmpty(t, result.PaymentID)

	status, err := g.GetPaymentStatus(ctx, result.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSucceeded, status)
}

func TestSandbox_ProcessPayment_DeclineSuffix(t *testing.T) {
	g := newTestSandbox(0)

	result, err := g.ProcessPayment(context.Background(), 2900, "USD", "cus_abc_declined", nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, payment.StatusFailed, result.Status)
	assert.Equal(t, "card declined", result.ErrorMessage)
}

func TestSandbox_ProcessPayment_DeterministicOutcome(t *testing.T) {
	g := newTestSandbox(0.5)

	first, err := g.ProcessPayment(context.Background(), 4200, "USD", "cus_retry", nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := g.ProcessPayment(context.Background(), 4200, "USD", "cus_retry", nil)
		require.NoError(t, err)
		assert.Equal(t, first.Success, again.Success)
	}
}

func TestSandbox_ProcessPayment_InvalidInputs(t *testing.T) {
	g := newTestSandbox(0)

	_, err := g.ProcessPayment(context.Background(), 0, "USD", "cus_123", nil)
	assert.Error(t, err)

	_, err = g.ProcessPayment(context.Background(), 2900, "USD", "", nil)
	assert.Error(t, err)
}

func TestSandbox_RefundPayment(t *testing.T) {
	g := newTestSandbox(0)
	ctx := context.Background()

	charged, err := g.ProcessPayment(ctx, 9900, "USD", "cus_123", nil)
	require.NoError(t, err)

	refunded, err := g.RefundPayment(ctx, charged.PaymentID, 9900)
	require.NoError(t, err)
	assert.True(t, refunded.Success)
	assert.Equal(t, payment.StatusRefunded, refunded.Status)

	again, err := g.RefundPayment(ctx, charged.PaymentID, 100)
	require.NoError(t, err)
	assert.False(t, again.Success)
}

func TestSandbox_RefundPayment_UnknownPayment(t *testing.T) {
	g := newTestSandbox(0)

	result, err := g.RefundPayment(context.Background(), "pay_missing", 100)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "unknown payment", result.ErrorMessage)
}

func TestSandbox_GetPaymentStatus_Unknown(t *testing.T) {
	g := newTestSandbox(0)

	_, err := g.GetPaymentStatus(context.Background(), "pay_missing")
	assert.True(t, shared.IsNotFound(err))
}

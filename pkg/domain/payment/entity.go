// Package payment models payment transactions and the gateway boundary.
package payment

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
)

// Status represents the state of a payment transaction.
type Status string

const (
	StatusPending           Status = "pending"
	StatusSucceeded         Status = "succeeded"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// AllStatuses returns all valid payment statuses.
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusSucceeded,
		StatusFailed,
		StatusRefunded,
		StatusPartiallyRefunded,
	}
}

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	return slices.Contains(AllStatuses(), s)
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// ParseStatus parses a string into a payment Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid payment status: %s", v)
	}
	return s, nil
}

// Payment is one transaction against an account, in minor currency units.
type Payment struct {
	id               shared.ID
	tenantID         shared.ID
	accountID        shared.ID
	subscriptionID   *shared.ID
	amount           int64
	refundedAmount   int64
	currency         string
	status           Status
	gatewayPaymentID string
	failureReason    string
	metadata         shared.Metadata
	createdAt        time.Time
	updatedAt        time.Time
}

// NewPaymentParams carries the inputs for recording a payment.
type NewPaymentParams struct {
	TenantID       shared.ID
	AccountID      shared.ID
	SubscriptionID *shared.ID
	Amount         int64
	Currency       string
	Metadata       shared.Metadata
}

// NewPayment records a pending payment awaiting gateway confirmation.
func NewPayment(p NewPaymentParams) (*Payment, error) {
	if p.TenantID.IsZero() {
		return nil, shared.ValidationError("tenant id is required")
	}
	if p.AccountID.IsZero() {
		return nil, shared.ValidationError("account id is required")
	}
	if p.Amount <= 0 {
		return nil, shared.ValidationError("payment amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if len(currency) != 3 {
		return nil, shared.ValidationError("currency must be a 3-letter code")
	}

	now := time.Now().UTC()
	return &Payment{
		id:             shared.NewID(),
		tenantID:       p.TenantID,
		accountID:      p.AccountID,
		subscriptionID: p.SubscriptionID,
		amount:         p.Amount,
		currency:       currency,
		status:         StatusPending,
		metadata:       p.Metadata,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstituteParams carries the full persisted state of a payment.
type ReconstituteParams struct {
	ID               shared.ID
	TenantID         shared.ID
	AccountID        shared.ID
	SubscriptionID   *shared.ID
	Amount           int64
	RefundedAmount   int64
	Currency         string
	Status           Status
	GatewayPaymentID string
	FailureReason    string
	Metadata         shared.Metadata
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Reconstitute recreates a Payment from persistence.
func Reconstitute(p ReconstituteParams) *Payment {
	return &Payment{
		id:               p.ID,
		tenantID:         p.TenantID,
		accountID:        p.AccountID,
		subscriptionID:   p.SubscriptionID,
		amount:           p.Amount,
		refundedAmount:   p.RefundedAmount,
		currency:         p.Currency,
		status:           p.Status,
		gatewayPaymentID: p.GatewayPaymentID,
		failureReason:    p.FailureReason,
		metadata:         p.Metadata,
		createdAt:        p.CreatedAt,
		updatedAt:        p.UpdatedAt,
	}
}

// ID returns the payment ID.
func (p *Payment) ID() shared.ID { return p.id }

// TenantID returns the owning tenant ID.
func (p *Payment) TenantID() shared.ID { return p.tenantID }

// AccountID returns the charged account ID.
func (p *Payment) AccountID() shared.ID { return p.accountID }

// SubscriptionID returns the related subscription, or nil.
func (p *Payment) SubscriptionID() *shared.ID { return p.subscriptionID }

// Amount returns the charged amount in minor currency units.
func (p *Payment) Amount() int64 { return p.amount }

// RefundedAmount returns the total refunded so far.
func (p *Payment) RefundedAmount() int64 { return p.refundedAmount }

// Currency returns the uppercase 3-letter currency code.
func (p *Payment) Currency() string { return p.currency }

// Status returns the transaction status.
func (p *Payment) Status() Status { return p.status }

// GatewayPaymentID returns the gateway's transaction reference.
func (p *Payment) GatewayPaymentID() string { return p.gatewayPaymentID }

// FailureReason returns the gateway error for failed payments.
func (p *Payment) FailureReason() string { return p.failureReason }

// Metadata returns a copy of the payment metadata.
func (p *Payment) Metadata() shared.Metadata { return shared.CopyMetadata(p.metadata) }

// CreatedAt returns the creation timestamp.
func (p *Payment) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the last modification timestamp.
func (p *Payment) UpdatedAt() time.Time { return p.updatedAt }

func (p *Payment) touch() {
	p.updatedAt = time.Now().UTC()
}

// MarkSucceeded records gateway confirmation of a pending payment.
func (p *Payment) MarkSucceeded(gatewayPaymentID string) error {
	if p.status != StatusPending {
		return shared.StateConflictError("cannot mark a %s payment succeeded", p.status)
	}
	if gatewayPaymentID == "" {
		return shared.ValidationError("gateway payment id is required")
	}
	p.status = StatusSucceeded
	p.gatewayPaymentID = gatewayPaymentID
	p.touch()
	return nil
}

// MarkFailed records a gateway rejection of a pending payment.
func (p *Payment) MarkFailed(reason string) error {
	if p.status != StatusPending {
		return shared.StateConflictError("cannot mark a %s payment failed", p.status)
	}
	p.status = StatusFailed
	p.failureReason = reason
	p.touch()
	return nil
}

// Refund records a refund against a succeeded payment. The cumulative
// refunded amount can never exceed the original charge.
func (p *Payment) Refund(amount int64) error {
	if amount <= 0 {
		return shared.ValidationError("refund amount must be positive")
	}
	if p.status != StatusSucceeded && p.status != StatusPartiallyRefunded {
		return shared.StateConflictError("cannot refund a %s payment", p.status)
	}
	if p.refundedAmount+amount > p.amount {
		return shared.StateConflictError("refund of %d exceeds refundable amount %d", amount, p.amount-p.refundedAmount)
	}
	p.refundedAmount += amount
	if p.refundedAmount == p.amount {
		p.status = StatusRefunded
	} else {
		p.status = StatusPartiallyRefunded
	}
	p.touch()
	return nil
}

// Package account defines the billing account entity and its status lifecycle.
package account

import (
	"regexp"
	"strings"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
)

const maxCompanyNameLength = 255

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Status represents the account lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// IsValid checks if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusClosed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Status) String() string { return string(s) }

// BillingAddress groups the postal address fields of an account.
type BillingAddress struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string // ISO 3166-1 alpha-2
}

// Account is a billing account owned by a tenant. It carries the company and
// billing details needed to charge a customer and tracks a running balance.
type Account struct {
	id              shared.ID
	tenantID        shared.ID
	parentAccountID *shared.ID

	companyName string
	legalName   string
	taxID       string

	billingEmail   string
	billingAddress BillingAddress

	paymentMethod     string
	gatewayCustomerID string

	status         Status
	creditLimit    int64
	currentBalance int64

	metadata  shared.Metadata
	createdAt time.Time
	updatedAt time.Time
}

// NewAccountParams carries the inputs for creating an account.
type NewAccountParams struct {
	TenantID        shared.ID
	ParentAccountID *shared.ID
	CompanyName     string
	LegalName       string
	TaxID           string
	BillingEmail    string
	BillingAddress  BillingAddress
	PaymentMethod   string
	CreditLimit     int64
	Metadata        shared.Metadata
}

// NewAccount creates a new active Account.
func NewAccount(p NewAccountParams) (*Account, error) {
	if p.TenantID.IsZero() {
		return nil, shared.ValidationError("tenant id is required")
	}
	if strings.TrimSpace(p.CompanyName) == "" {
		return nil, shared.ValidationError("company name is required")
	}
	if len(p.CompanyName) > maxCompanyNameLength {
		return nil, shared.ValidationError("company name must be at most %d characters", maxCompanyNameLength)
	}
	if strings.TrimSpace(p.BillingEmail) == "" {
		return nil, shared.ValidationError("billing email is required")
	}
	if !emailRegex.MatchString(p.BillingEmail) {
		return nil, shared.ValidationError("billing email is not a valid email address")
	}
	if c := p.BillingAddress.Country; c != "" && len(c) != 2 {
		return nil, shared.ValidationError("billing country must be a 2-letter ISO code")
	}

	now := time.Now().UTC()
	return &Account{
		id:              shared.NewID(),
		tenantID:        p.TenantID,
		parentAccountID: p.ParentAccountID,
		companyName:     p.CompanyName,
		legalName:       p.LegalName,
		taxID:           p.TaxID,
		billingEmail:    p.BillingEmail,
		billingAddress:  p.BillingAddress,
		paymentMethod:   p.PaymentMethod,
		status:          StatusActive,
		creditLimit:     p.CreditLimit,
		metadata:        p.Metadata,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// ReconstituteParams carries a fully persisted account state.
type ReconstituteParams struct {
	ID                shared.ID
	TenantID          shared.ID
	ParentAccountID   *shared.ID
	CompanyName       string
	LegalName         string
	TaxID             string
	BillingEmail      string
	BillingAddress    BillingAddress
	PaymentMethod     string
	GatewayCustomerID string
	Status            Status
	CreditLimit       int64
	CurrentBalance    int64
	Metadata          shared.Metadata
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Reconstitute recreates an Account from persistence.
func Reconstitute(p ReconstituteParams) *Account {
	return &Account{
		id:                p.ID,
		tenantID:          p.TenantID,
		parentAccountID:   p.ParentAccountID,
		companyName:       p.CompanyName,
		legalName:         p.LegalName,
		taxID:             p.TaxID,
		billingEmail:      p.BillingEmail,
		billingAddress:    p.BillingAddress,
		paymentMethod:     p.PaymentMethod,
		gatewayCustomerID: p.GatewayCustomerID,
		status:            p.Status,
		creditLimit:       p.CreditLimit,
		currentBalance:    p.CurrentBalance,
		metadata:          p.Metadata,
		createdAt:         p.CreatedAt,
		updatedAt:         p.UpdatedAt,
	}
}

// ID returns the account ID.
func (a *Account) ID() shared.ID { return a.id }

// TenantID returns the owning tenant ID.
func (a *Account) TenantID() shared.ID { return a.tenantID }

// ParentAccountID returns the parent account ID for hierarchical accounts, if any.
func (a *Account) ParentAccountID() *shared.ID { return a.parentAccountID }

// CompanyName returns the company display name.
func (a *Account) CompanyName() string { return a.companyName }

// LegalName returns the registered legal name.
func (a *Account) LegalName() string { return a.legalName }

// TaxID returns the tax identifier.
func (a *Account) TaxID() string { return a.taxID }

// BillingEmail returns the billing contact email.
func (a *Account) BillingEmail() string { return a.billingEmail }

// BillingAddress returns the billing postal address.
func (a *Account) BillingAddress() BillingAddress { return a.billingAddress }

// PaymentMethod returns the stored payment method identifier.
func (a *Account) PaymentMethod() string { return a.paymentMethod }

// GatewayCustomerID returns the payment gateway customer reference.
func (a *Account) GatewayCustomerID() string { return a.gatewayCustomerID }

// Status returns the account status.
func (a *Account) Status() Status { return a.status }

// CreditLimit returns the credit limit in minor currency units.
func (a *Account) CreditLimit() int64 { return a.creditLimit }

// CurrentBalance returns the running balance in minor currency units.
func (a *Account) CurrentBalance() int64 { return a.currentBalance }

// Metadata returns a copy of the account metadata.
func (a *Account) Metadata() shared.Metadata { return shared.CopyMetadata(a.metadata) }

// CreatedAt returns the creation timestamp.
func (a *Account) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt returns the last update timestamp.
func (a *Account) UpdatedAt() time.Time { return a.updatedAt }

// SetPaymentMethod stores the payment method and gateway customer reference.
func (a *Account) SetPaymentMethod(method, gatewayCustomerID string) {
	a.paymentMethod = method
	a.gatewayCustomerID = gatewayCustomerID
	a.touch()
}

// Suspend moves the account to suspended.
func (a *Account) Suspend() error {
	if a.status == StatusClosed {
		return shared.StateConflictError("cannot suspend a closed account")
	}
	a.status = StatusSuspended
	a.touch()
	return nil
}

// Activate moves the account back to active. Closed accounts stay closed.
func (a *Account) Activate() error {
	if a.status == StatusClosed {
		return shared.StateConflictError("cannot activate a closed account")
	}
	a.status = StatusActive
	a.touch()
	return nil
}

// Close permanently closes the account.
func (a *Account) Close() {
	a.status = StatusClosed
	a.touch()
}

// IsActive reports whether the account is active.
func (a *Account) IsActive() bool { return a.status == StatusActive }

// ApplyBalanceChange adds amount (positive or negative, minor units) to the balance.
func (a *Account) ApplyBalanceChange(amount int64) {
	a.currentBalance += amount
	a.touch()
}

// UpdateMetadata merges the given keys into the account metadata.
func (a *Account) UpdateMetadata(metadata shared.Metadata) {
	a.metadata = shared.MergeMetadata(a.metadata, metadata)
	a.touch()
}

func (a *Account) touch() {
	a.updatedAt = time.Now().UTC()
}

package app

import (
	"context"

	"github.com/meterly/api/pkg/domain/account"
	"github.com/meterly/api/pkg/domain/payment"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/logger"
)

// AccountService manages billing accounts and their gateway registration.
type AccountService struct {
	accounts account.Repository
	gateway  payment.Gateway
	logger   *logger.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(accounts account.Repository, gateway payment.Gateway, log *logger.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		gateway:  gateway,
		logger:   log.With("service", "account"),
	}
}

// BillingAddressInput represents a postal billing address.
type BillingAddressInput struct {
	Line1      string `validate:"omitempty,max=255"`
	Line2      string `validate:"omitempty,max=255"`
	City       string `validate:"omitempty,max=100"`
	State      string `validate:"omitempty,max=100"`
	PostalCode string `validate:"omitempty,max=20"`
	Country    string `validate:"omitempty,iso3166_1_alpha2"`
}

// CreateAccountInput represents input for creating a billing account.
type CreateAccountInput struct {
	TenantID        string              `validate:"required,uuid"`
	ParentAccountID string              `validate:"omitempty,uuid"`
	CompanyName     string              `validate:"required,min=1,max=255"`
	LegalName       string              `validate:"omitempty,max=255"`
	TaxID           string              `validate:"omitempty,max=50"`
	BillingEmail    string              `validate:"required,email"`
	BillingAddress  BillingAddressInput `validate:"omitempty"`
	CreditLimit     int64               `validate:"min=0"`
	Metadata        map[string]any      `validate:"omitempty"`
}

// CreateAccount creates a new billing account under a tenant.
func (s *AccountService) CreateAccount(ctx context.Context, input CreateAccountInput) (*account.Account, error) {
	tenantID, err := shared.IDFromString(input.TenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}

	var parentID *shared.ID
	if input.ParentAccountID != "" {
		pid, err := shared.IDFromString(input.ParentAccountID)
		if err != nil {
			return nil, shared.ValidationError("invalid parent account ID")
		}
		parent, err := s.accounts.GetByID(ctx, pid)
		if err != nil {
			return nil, err
		}
		if !parent.TenantID().Equals(tenantID) {
			return nil, shared.NotFoundError("parent account %s not found", input.ParentAccountID)
		}
		parentID = &pid
	}

	acct, err := account.NewAccount(account.NewAccountParams{
		TenantID:        tenantID,
		ParentAccountID: parentID,
		CompanyName:     input.CompanyName,
		LegalName:       input.LegalName,
		TaxID:           input.TaxID,
		BillingEmail:    input.BillingEmail,
		BillingAddress: account.BillingAddress{
			Line1:      input.BillingAddress.Line1,
			Line2:      input.BillingAddress.Line2,
			City:       input.BillingAddress.City,
			State:      input.BillingAddress.State,
			PostalCode: input.BillingAddress.PostalCode,
			Country:    input.BillingAddress.Country,
		},
		CreditLimit: input.CreditLimit,
		Metadata:    input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account created",
		"account_id", acct.ID().String(),
		"tenant_id", input.TenantID,
	)
	return acct, nil
}

// GetAccount returns an account by ID.
func (s *AccountService) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	aid, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid account ID")
	}
	return s.accounts.GetByID(ctx, aid)
}

// ListAccounts returns all accounts for a tenant.
func (s *AccountService) ListAccounts(ctx context.Context, tenantID string) ([]*account.Account, error) {
	tid, err := shared.IDFromString(tenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}
	return s.accounts.ListByTenant(ctx, tid)
}

// SetPaymentMethodInput represents input for attaching a payment method.
type SetPaymentMethodInput struct {
	AccountID     string `validate:"required,uuid"`
	PaymentMethod string `validate:"required,max=100"`
}

// SetPaymentMethod registers the account with the payment gateway the
// first time round and stores the payment method reference.
func (s *AccountService) SetPaymentMethod(ctx context.Context, input SetPaymentMethodInput) (*account.Account, error) {
	acct, err := s.GetAccount(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}
	if !acct.IsActive() {
		return nil, shared.StateConflictError("account %s is not active", input.AccountID)
	}

	customerID := acct.GatewayCustomerID()
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, acct.ID(), acct.BillingEmail())
		if err != nil {
			return nil, err
		}
	}

	acct.SetPaymentMethod(input.PaymentMethod, customerID)
	if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment method set", "account_id", input.AccountID)
	return acct, nil
}

// SuspendAccount suspends an account.
func (s *AccountService) SuspendAccount(ctx context.Context, id string) (*account.Account, error) {
	acct, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := acct.Suspend(); err != nil {
		return nil, err
	}
	if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account suspended", "account_id", id)
	return acct, nil
}

// ReactivateAccount moves a suspended account back to active.
func (s *AccountService) ReactivateAccount(ctx context.Context, id string) (*account.Account, error) {
	acct, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := acct.Activate(); err != nil {
		return nil, err
	}
	if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account reactivated", "account_id", id)
	return acct, nil
}

// CloseAccount permanently closes an account.
func (s *AccountService) CloseAccount(ctx context.Context, id string) (*account.Account, error) {
	acct, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	acct.Close()
	if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account closed", "account_id", id)
	return acct, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/meterly/api/pkg/domain/account"
	"github.com/meterly/api/pkg/domain/shared"
)

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create persists a new account.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	metadata, err := toJSONB(a.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal account metadata: %w", err)
	}

	addr := a.BillingAddress()
	query := `
		INSERT INTO accounts (
			id, tenant_id, parent_account_id, company_name, legal_name, tax_id,
			billing_email, address_line1, address_line2, address_city, address_state,
			address_postal_code, address_country,
			payment_method, gateway_customer_id, status, credit_limit, current_balance,
			metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err = r.db.ExecContext(ctx, query,
		a.ID().String(),
		a.TenantID().String(),
		nullID(a.ParentAccountID()),
		a.CompanyName(),
		nullString(a.LegalName()),
		nullString(a.TaxID()),
		a.BillingEmail(),
		nullString(addr.Line1),
		nullString(addr.Line2),
		nullString(addr.City),
		nullString(addr.State),
		nullString(addr.PostalCode),
		nullString(addr.Country),
		nullString(a.PaymentMethod()),
		nullString(a.GatewayCustomerID()),
		a.Status().String(),
		a.CreditLimit(),
		a.CurrentBalance(),
		metadata,
		a.CreatedAt(),
		a.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: account %s", shared.ErrAlreadyExists, a.CompanyName())
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id shared.ID) (*account.Account, error) {
	query := r.selectQuery() + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	a, err := r.doScan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFoundError("account %s not found", id)
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return a, nil
}

// ListByTenant returns all accounts owned by a tenant.
func (r *AccountRepository) ListByTenant(ctx context.Context, tenantID shared.ID) ([]*account.Account, error) {
	query := r.selectQuery() + " WHERE tenant_id = $1 ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		a, err := r.doScan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// Update updates an existing account.
func (r *AccountRepository) Update(ctx context.Context, a *account.Account) error {
	metadata, err := toJSONB(a.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal account metadata: %w", err)
	}

	addr := a.BillingAddress()
	query := `
		UPDATE accounts SET
			company_name = $2, legal_name = $3, tax_id = $4, billing_email = $5,
			address_line1 = $6, address_line2 = $7, address_city = $8, address_state = $9,
			address_postal_code = $10, address_country = $11,
			payment_method = $12, gateway_customer_id = $13, status = $14,
			credit_limit = $15, current_balance = $16, metadata = $17, updated_at = $18
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		a.ID().String(),
		a.CompanyName(),
		nullString(a.LegalName()),
		nullString(a.TaxID()),
		a.BillingEmail(),
		nullString(addr.Line1),
		nullString(addr.Line2),
		nullString(addr.City),
		nullString(addr.State),
		nullString(addr.PostalCode),
		nullString(addr.Country),
		nullString(a.PaymentMethod()),
		nullString(a.GatewayCustomerID()),
		a.Status().String(),
		a.CreditLimit(),
		a.CurrentBalance(),
		metadata,
		a.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("account %s not found", a.ID())
	}
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.NotFoundError("account %s not found", id)
	}
	return nil
}

func (r *AccountRepository) selectQuery() string {
	return `
		SELECT id, tenant_id, parent_account_id, company_name, legal_name, tax_id,
			billing_email, address_line1, address_line2, address_city, address_state,
			address_postal_code, address_country,
			payment_method, gateway_customer_id, status, credit_limit, current_balance,
			metadata, created_at, updated_at
		FROM accounts
	`
}

func (r *AccountRepository) doScan(scan func(dest ...any) error) (*account.Account, error) {
	var (
		idStr             string
		tenantIDStr       string
		parentAccountID   sql.NullString
		companyName       string
		legalName         sql.NullString
		taxID             sql.NullString
		billingEmail      string
		addrLine1         sql.NullString
		addrLine2         sql.NullString
		addrCity          sql.NullString
		addrState         sql.NullString
		addrPostalCode    sql.NullString
		addrCountry       sql.NullString
		paymentMethod     sql.NullString
		gatewayCustomerID sql.NullString
		status            string
		creditLimit       int64
		currentBalance    int64
		metadataRaw       []byte
		createdAt         sql.NullTime
		updatedAt         sql.NullTime
	)

	if err := scan(
		&idStr, &tenantIDStr, &parentAccountID, &companyName, &legalName, &taxID,
		&billingEmail, &addrLine1, &addrLine2, &addrCity, &addrState,
		&addrPostalCode, &addrCountry,
		&paymentMethod, &gatewayCustomerID, &status, &creditLimit, &currentBalance,
		&metadataRaw, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid account id in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id in database: %w", err)
	}

	var metadata shared.Metadata
	if err := fromJSONB(metadataRaw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account metadata: %w", err)
	}

	return account.Reconstitute(account.ReconstituteParams{
		ID:              id,
		TenantID:        tenantID,
		ParentAccountID: parseNullID(parentAccountID),
		CompanyName:     companyName,
		LegalName:       nullStringValue(legalName),
		TaxID:           nullStringValue(taxID),
		BillingEmail:    billingEmail,
		BillingAddress: account.BillingAddress{
			Line1:      nullStringValue(addrLine1),
			Line2:      nullStringValue(addrLine2),
			City:       nullStringValue(addrCity),
			State:      nullStringValue(addrState),
			PostalCode: nullStringValue(addrPostalCode),
			Country:    nullStringValue(addrCountry),
		},
		PaymentMethod:     nullStringValue(paymentMethod),
		GatewayCustomerID: nullStringValue(gatewayCustomerID),
		Status:            account.Status(status),
		CreditLimit:       creditLimit,
		CurrentBalance:    currentBalance,
		Metadata:          metadata,
		CreatedAt:         createdAt.Time,
		UpdatedAt:         updatedAt.Time,
	}), nil
}

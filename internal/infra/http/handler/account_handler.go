package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/internal/infra/http/middleware"
	"github.com/meterly/api/pkg/apierror"
	"github.com/meterly/api/pkg/domain/account"
	"github.com/meterly/api/pkg/logger"
	"github.com/meterly/api/pkg/pagination"
	"github.com/meterly/api/pkg/validator"
)

// AccountHandler handles billing account HTTP requests.
type AccountHandler struct {
	service   *app.AccountService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(svc *app.AccountService, v *validator.Validator, log *logger.Logger) *AccountHandler {
	return &AccountHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// BillingAddressResponse represents a postal address in API responses.
type BillingAddressResponse struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// AccountResponse represents a billing account in API responses.
type AccountResponse struct {
	ID              string                 `json:"id"`
	TenantID        string                 `json:"tenant_id"`
	ParentAccountID string                 `json:"parent_account_id,omitempty"`
	CompanyName     string                 `json:"company_name"`
	LegalName       string                 `json:"legal_name,omitempty"`
	TaxID           string                 `json:"tax_id,omitempty"`
	BillingEmail    string                 `json:"billing_email"`
	BillingAddress  BillingAddressResponse `json:"billing_address"`
	PaymentMethod   string                 `json:"payment_method,omitempty"`
	Status          string                 `json:"status"`
	CreditLimit     int64                  `json:"credit_limit"`
	CurrentBalance  int64                  `json:"current_balance"`
	Metadata        map[string]any         `json:"metadata,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// CreateAccountRequest represents the request to create an account.
type CreateAccountRequest struct {
	ParentAccountID string                   `json:"parent_account_id" validate:"omitempty,uuid"`
	CompanyName     string                   `json:"company_name" validate:"required,min=1,max=255"`
	LegalName       string                   `json:"legal_name" validate:"omitempty,max=255"`
	TaxID           string                   `json:"tax_id" validate:"omitempty,max=50"`
	BillingEmail    string                   `json:"billing_email" validate:"required,email"`
	BillingAddress  app.BillingAddressInput  `json:"billing_address" validate:"omitempty"`
	CreditLimit     int64                    `json:"credit_limit" validate:"min=0"`
	Metadata        map[string]any           `json:"metadata" validate:"omitempty"`
}

// SetPaymentMethodRequest represents the request to attach a payment
// method.
type SetPaymentMethodRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,max=100"`
}

func toAccountResponse(a *account.Account) AccountResponse {
	var parentID string
	if a.ParentAccountID() != nil {
		parentID = a.ParentAccountID().String()
	}
	addr := a.BillingAddress()
	return AccountResponse{
		ID:              a.ID().String(),
		TenantID:        a.TenantID().String(),
		ParentAccountID: parentID,
		CompanyName:     a.CompanyName(),
		LegalName:       a.LegalName(),
		TaxID:           a.TaxID(),
		BillingEmail:    a.BillingEmail(),
		BillingAddress: BillingAddressResponse{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		},
		PaymentMethod:  a.PaymentMethod(),
		Status:         a.Status().String(),
		CreditLimit:    a.CreditLimit(),
		CurrentBalance: a.CurrentBalance(),
		Metadata:       a.Metadata(),
		CreatedAt:      a.CreatedAt(),
		UpdatedAt:      a.UpdatedAt(),
	}
}

// Create handles POST /api/v1/accounts
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID.IsZero() {
		apierror.Unauthorized("Authentication required").WriteJSON(w)
		return
	}

	var req CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	acct, err := h.service.CreateAccount(r.Context(), app.CreateAccountInput{
		TenantID:        tenantID.String(),
		ParentAccountID: req.ParentAccountID,
		CompanyName:     req.CompanyName,
		LegalName:       req.LegalName,
		TaxID:           req.TaxID,
		BillingEmail:    req.BillingEmail,
		BillingAddress:  req.BillingAddress,
		CreditLimit:     req.CreditLimit,
		Metadata:        req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

// Get handles GET /api/v1/accounts/{accountID}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !acct.TenantID().Equals(middleware.GetTenantID(r.Context())) {
		apierror.NotFound("Account").WriteJSON(w)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

// List handles GET /api/v1/accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	accounts, err := h.service.ListAccounts(r.Context(), tenantID.String())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := make([]AccountResponse, len(accounts))
	for i, a := range accounts {
		response[i] = toAccountResponse(a)
	}
	writeJSON(w, http.StatusOK, paginate(response, pagination.FromQuery(r.URL.Query())))
}

// SetPaymentMethod handles PUT /api/v1/accounts/{accountID}/payment-method
func (h *AccountHandler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req SetPaymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	acct, err := h.service.SetPaymentMethod(r.Context(), app.SetPaymentMethodInput{
		AccountID:     chi.URLParam(r, "accountID"),
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

// Suspend handles POST /api/v1/accounts/{accountID}/suspend
func (h *AccountHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.SuspendAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

// Reactivate handles POST /api/v1/accounts/{accountID}/reactivate
func (h *AccountHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.ReactivateAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

// Close handles POST /api/v1/accounts/{accountID}/close
func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.CloseAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

package app

import (
	"context"

	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/domain/tenant"
	"github.com/meterly/api/pkg/logger"
)

// TenantService manages tenant organizations.
type TenantService struct {
	tenants tenant.Repository
	logger  *logger.Logger
}

// NewTenantService creates a new tenant service.
func NewTenantService(tenants tenant.Repository, log *logger.Logger) *TenantService {
	return &TenantService{
		tenants: tenants,
		logger:  log.With("service", "tenant"),
	}
}

// CreateTenantInput represents input for creating a tenant.
type CreateTenantInput struct {
	Name        string `validate:"required,min=1,max=255"`
	EmailDomain string `validate:"omitempty,fqdn"`
}

// UpdateTenantInput represents a partial tenant update.
type UpdateTenantInput struct {
	Name        *string        `validate:"omitempty,min=1,max=255"`
	EmailDomain *string        `validate:"omitempty,fqdn"`
	Metadata    map[string]any `validate:"omitempty"`
}

// CreateTenant creates a new tenant.
func (s *TenantService) CreateTenant(ctx context.Context, input CreateTenantInput) (*tenant.Tenant, error) {
	t, err := tenant.NewTenant(input.Name, input.EmailDomain)
	if err != nil {
		return nil, err
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "tenant created", "tenant_id", t.ID().String(), "name", t.Name())
	return t, nil
}

// GetTenant returns a tenant by ID.
func (s *TenantService) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	tid, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}
	return s.tenants.GetByID(ctx, tid)
}

// ListTenants returns all tenants.
func (s *TenantService) ListTenants(ctx context.Context) ([]*tenant.Tenant, error) {
	return s.tenants.List(ctx)
}

// UpdateTenant applies a partial update to a tenant.
func (s *TenantService) UpdateTenant(ctx context.Context, id string, input UpdateTenantInput) (*tenant.Tenant, error) {
	t, err := s.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if err := t.UpdateName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.EmailDomain != nil {
		t.UpdateEmailDomain(*input.EmailDomain)
	}
	if input.Metadata != nil {
		t.UpdateMetadata(input.Metadata)
	}
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTenant removes a tenant.
func (s *TenantService) DeleteTenant(ctx context.Context, id string) error {
	tid, err := shared.IDFromString(id)
	if err != nil {
		return shared.ValidationError("invalid tenant ID")
	}
	if err := s.tenants.Delete(ctx, tid); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "tenant deleted", "tenant_id", id)
	return nil
}

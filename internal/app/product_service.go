package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/meterly/api/pkg/domain/product"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/logger"
)

// ProductService manages sellable products.
type ProductService struct {
	products product.Repository
	logger   *logger.Logger
}

// NewProductService creates a new product service.
func NewProductService(products product.Repository, log *logger.Logger) *ProductService {
	return &ProductService{
		products: products,
		logger:   log.With("service", "product"),
	}
}

// CreateProductInput represents input for creating a product.
type CreateProductInput struct {
	TenantID    string `validate:"required,uuid"`
	Name        string `validate:"required,min=1,max=255"`
	Description string `validate:"omitempty,max=1000"`
}

// UpdateProductInput represents a partial product update.
type UpdateProductInput struct {
	Name        *string        `validate:"omitempty,min=1,max=255"`
	Description *string        `validate:"omitempty,max=1000"`
	Metadata    map[string]any `validate:"omitempty"`
}

// CreateProduct creates a new product with a generated usage-reporting
// API key.
func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput) (*product.Product, error) {
	tenantID, err := shared.IDFromString(input.TenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}

	p, err := product.NewProduct(tenantID, input.Name, input.Description)
	if err != nil {
		return nil, err
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	p.SetAPIKey(apiKey)

	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product created",
		"product_id", p.ID().String(),
		"tenant_id", input.TenantID,
	)
	return p, nil
}

// GetProduct returns a product by ID.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	pid, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid product ID")
	}
	return s.products.GetByID(ctx, pid)
}

// ListProducts returns all products for a tenant.
func (s *ProductService) ListProducts(ctx context.Context, tenantID string) ([]*product.Product, error) {
	tid, err := shared.IDFromString(tenantID)
	if err != nil {
		return nil, shared.ValidationError("invalid tenant ID")
	}
	return s.products.ListByTenant(ctx, tid)
}

// UpdateProduct applies a partial update to a product.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, input UpdateProductInput) (*product.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if err := p.UpdateName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		p.UpdateDescription(*input.Description)
	}
	if input.Metadata != nil {
		p.UpdateMetadata(input.Metadata)
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RotateAPIKey replaces the product's usage-reporting API key.
func (s *ProductService) RotateAPIKey(ctx context.Context, id string) (*product.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	p.SetAPIKey(apiKey)
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "product api key rotated", "product_id", id)
	return p, nil
}

// DeactivateProduct hides a product from new plans.
func (s *ProductService) DeactivateProduct(ctx context.Context, id string) (*product.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Deactivate()
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "product deactivated", "product_id", id)
	return p, nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return "mk_" + hex.EncodeToString(buf), nil
}

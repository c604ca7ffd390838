package app

import (
	"context"
	"fmt"

	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/product"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/logger"
)

// FeatureService manages product features.
type FeatureService struct {
	features feature.Repository
	products product.Repository
	logger   *logger.Logger
}

// NewFeatureService creates a new feature service.
func NewFeatureService(features feature.Repository, products product.Repository, log *logger.Logger) *FeatureService {
	return &FeatureService{
		features: features,
		products: products,
		logger:   log.With("service", "feature"),
	}
}

// CreateFeatureInput represents input for creating a feature.
type CreateFeatureInput struct {
	ProductID   string         `validate:"required,uuid"`
	Name        string         `validate:"required,min=1,max=255"`
	Code        string         `validate:"required,feature_code,max=100"`
	Description string         `validate:"omitempty,max=1000"`
	FeatureType string         `validate:"required,feature_type"`
	ChargeModel string         `validate:"required,charge_model"`
	ServiceURL  string         `validate:"omitempty,url"`
	Metadata    map[string]any `validate:"omitempty"`
}

// UpdateFeatureInput represents a partial feature update. Feature type
// and code are immutable once created.
type UpdateFeatureInput struct {
	Name        *string        `validate:"omitempty,min=1,max=255"`
	Description *string        `validate:"omitempty,max=1000"`
	ChargeModel *string        `validate:"omitempty,charge_model"`
	ServiceURL  *string        `validate:"omitempty,url"`
	Metadata    map[string]any `validate:"omitempty"`
}

// CreateFeature creates a feature under a product. Codes are unique per
// product.
func (s *FeatureService) CreateFeature(ctx context.Context, input CreateFeatureInput) (*feature.Feature, error) {
	productID, err := shared.IDFromString(input.ProductID)
	if err != nil {
		return nil, shared.ValidationError("invalid product ID")
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	featureType, err := feature.ParseType(input.FeatureType)
	if err != nil {
		return nil, shared.ValidationError("%s", err)
	}
	chargeModel, err := feature.ParseChargeModel(input.ChargeModel)
	if err != nil {
		return nil, shared.ValidationError("%s", err)
	}

	if existing, err := s.features.GetByCode(ctx, productID, input.Code); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: feature %s already exists on product", shared.ErrAlreadyExists, input.Code)
	} else if err != nil && !shared.IsNotFound(err) {
		return nil, err
	}

	f, err := feature.NewFeature(feature.NewFeatureParams{
		ProductID:   productID,
		Name:        input.Name,
		Code:        input.Code,
		Description: input.Description,
		FeatureType: featureType,
		ChargeModel: chargeModel,
		ServiceURL:  input.ServiceURL,
		Metadata:    input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := s.features.Create(ctx, f); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "feature created",
		"feature_id", f.ID().String(),
		"product_id", input.ProductID,
		"code", f.Code(),
	)
	return f, nil
}

// GetFeature returns a feature by ID.
func (s *FeatureService) GetFeature(ctx context.Context, id string) (*feature.Feature, error) {
	fid, err := shared.IDFromString(id)
	if err != nil {
		return nil, shared.ValidationError("invalid feature ID")
	}
	return s.features.GetByID(ctx, fid)
}

// ListFeatures returns all features of a product.
func (s *FeatureService) ListFeatures(ctx context.Context, productID string) ([]*feature.Feature, error) {
	pid, err := shared.IDFromString(productID)
	if err != nil {
		return nil, shared.ValidationError("invalid product ID")
	}
	return s.features.ListByProduct(ctx, pid)
}

// UpdateFeature applies a partial update to a feature.
func (s *FeatureService) UpdateFeature(ctx context.Context, id string, input UpdateFeatureInput) (*feature.Feature, error) {
	f, err := s.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if err := f.UpdateName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		f.UpdateDescription(*input.Description)
	}
	if input.ChargeModel != nil {
		model, err := feature.ParseChargeModel(*input.ChargeModel)
		if err != nil {
			return nil, shared.ValidationError("%s", err)
		}
		if err := f.UpdateChargeModel(model); err != nil {
			return nil, err
		}
	}
	if input.ServiceURL != nil {
		f.UpdateServiceURL(*input.ServiceURL)
	}
	if input.Metadata != nil {
		f.UpdateMetadata(input.Metadata)
	}
	if err := s.features.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFeature removes a feature. Plans referencing it keep their
// configs until the configs are removed separately.
func (s *FeatureService) DeleteFeature(ctx context.Context, id string) error {
	fid, err := shared.IDFromString(id)
	if err != nil {
		return shared.ValidationError("invalid feature ID")
	}
	if err := s.features.Delete(ctx, fid); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "feature deleted", "feature_id", id)
	return nil
}

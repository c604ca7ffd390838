// Package feature defines product features and their billing classification.
package feature

import (
	"regexp"
	"strings"
	"time"

	"github.com/meterly/api/pkg/domain/shared"
)

// codeRegex constrains feature codes to lowercase alphanumerics and underscores.
// Codes are the stable keys entitlement responses are keyed by.
var codeRegex = regexp.MustCompile(`^[a-z0-9_]+$`)

// Feature is a capability of a product. Its code is stable and referenced by
// usage events and entitlement lookups.
type Feature struct {
	id          shared.ID
	productID   shared.ID
	name        string
	code        string
	description string
	featureType Type
	chargeModel ChargeModel
	serviceURL  string
	metadata    shared.Metadata
	createdAt   time.Time
}

// NewFeatureParams carries the inputs for creating a feature.
type NewFeatureParams struct {
	ProductID   shared.ID
	Name        string
	Code        string
	Description string
	FeatureType Type
	ChargeModel ChargeModel
	ServiceURL  string
	Metadata    shared.Metadata
}

// NewFeature creates a new Feature.
func NewFeature(p NewFeatureParams) (*Feature, error) {
	if p.ProductID.IsZero() {
		return nil, shared.ValidationError("product id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, shared.ValidationError("feature name is required")
	}
	if strings.TrimSpace(p.Code) == "" {
		return nil, shared.ValidationError("feature code is required")
	}
	if !codeRegex.MatchString(p.Code) {
		return nil, shared.ValidationError("feature code must be lowercase alphanumeric with underscores only")
	}
	if !p.FeatureType.IsValid() {
		return nil, shared.ValidationError("invalid feature type: %s", p.FeatureType)
	}
	if !p.ChargeModel.IsValid() {
		return nil, shared.ValidationError("invalid charge model: %s", p.ChargeModel)
	}
	// Metered features report usage to a tracking endpoint.
	if p.FeatureType == TypeMetered && p.ServiceURL == "" {
		return nil, shared.ValidationError("metered features must have a service url for tracking")
	}

	return &Feature{
		id:          shared.NewID(),
		productID:   p.ProductID,
		name:        p.Name,
		code:        p.Code,
		description: p.Description,
		featureType: p.FeatureType,
		chargeModel: p.ChargeModel,
		serviceURL:  p.ServiceURL,
		metadata:    p.Metadata,
		createdAt:   time.Now().UTC(),
	}, nil
}

// Reconstitute recreates a Feature from persistence.
func Reconstitute(id, productID shared.ID, name, code, description string, featureType Type, chargeModel ChargeModel, serviceURL string, metadata shared.Metadata, createdAt time.Time) *Feature {
	return &Feature{
		id:          id,
		productID:   productID,
		name:        name,
		code:        code,
		description: description,
		featureType: featureType,
		chargeModel: chargeModel,
		serviceURL:  serviceURL,
		metadata:    metadata,
		createdAt:   createdAt,
	}
}

// ID returns the feature ID.
func (f *Feature) ID() shared.ID { return f.id }

// ProductID returns the owning product ID.
func (f *Feature) ProductID() shared.ID { return f.productID }

// Name returns the feature name.
func (f *Feature) Name() string { return f.name }

// Code returns the stable feature code.
func (f *Feature) Code() string { return f.code }

// Description returns the feature description.
func (f *Feature) Description() string { return f.description }

// FeatureType returns the billing classification.
func (f *Feature) FeatureType() Type { return f.featureType }

// ChargeModel returns the charge model.
func (f *Feature) ChargeModel() ChargeModel { return f.chargeModel }

// ServiceURL returns the usage-tracking endpoint for metered features.
func (f *Feature) ServiceURL() string { return f.serviceURL }

// Metadata returns a copy of the feature metadata.
func (f *Feature) Metadata() shared.Metadata { return shared.CopyMetadata(f.metadata) }

// CreatedAt returns the creation timestamp.
func (f *Feature) CreatedAt() time.Time { return f.createdAt }

// UpdateName updates the feature name.
func (f *Feature) UpdateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.ValidationError("feature name cannot be empty")
	}
	f.name = name
	return nil
}

// UpdateDescription updates the feature description.
func (f *Feature) UpdateDescription(description string) {
	f.description = description
}

// UpdateChargeModel changes the charge model.
func (f *Feature) UpdateChargeModel(model ChargeModel) error {
	if !model.IsValid() {
		return shared.ValidationError("invalid charge model: %s", model)
	}
	f.chargeModel = model
	return nil
}

// UpdateServiceURL updates the usage-tracking endpoint.
func (f *Feature) UpdateServiceURL(url string) {
	f.serviceURL = url
}

// UpdateMetadata merges the given keys into the feature metadata.
func (f *Feature) UpdateMetadata(metadata shared.Metadata) {
	f.metadata = shared.MergeMetadata(f.metadata, metadata)
}

// Package validator provides struct validation utilities with custom
// validators for the billing domain.
package validator

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/meterly/api/pkg/domain/feature"
	"github.com/meterly/api/pkg/domain/plan"
	"github.com/meterly/api/pkg/domain/subscription"
)

// featureCodeRegex validates feature codes: lowercase letters, numbers,
// underscores.
var featureCodeRegex = regexp.MustCompile(`^[a-z0-9_]+$`)

// currencyRegex validates 3-letter ISO currency codes.
var currencyRegex = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("plan_type", validatePlanType)
	_ = v.RegisterValidation("plan_status", validatePlanStatus)
	_ = v.RegisterValidation("feature_type", validateFeatureType)
	_ = v.RegisterValidation("charge_model", validateChargeModel)
	_ = v.RegisterValidation("charge_frequency", validateChargeFrequency)
	_ = v.RegisterValidation("subscription_status", validateSubscriptionStatus)
	_ = v.RegisterValidation("feature_code", validateFeatureCode)
	_ = v.RegisterValidation("currency", validateCurrency)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// validatePlanType validates that a string is a valid plan type.
func validatePlanType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	_, err := plan.ParseType(value)
	return err == nil
}

// validatePlanStatus validates that a string is a valid plan status.
func validatePlanStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := plan.ParseStatus(value)
	return err == nil
}

// validateFeatureType validates that a string is a valid feature type.
func validateFeatureType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := feature.ParseType(value)
	return err == nil
}

// validateChargeModel validates that a string is a valid charge model.
func validateChargeModel(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := feature.ParseChargeModel(value)
	return err == nil
}

// validateChargeFrequency validates that a string is a valid charge frequency.
func validateChargeFrequency(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := plan.ParseChargeFrequency(value)
	return err == nil
}

// validateSubscriptionStatus validates that a string is a valid
// subscription status.
func validateSubscriptionStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := subscription.ParseStatus(value)
	return err == nil
}

// validateFeatureCode validates the feature code format.
func validateFeatureCode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return featureCodeRegex.MatchString(value)
}

// validateCurrency validates a 3-letter currency code.
func validateCurrency(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return currencyRegex.MatchString(value)
}

// formatErrorMessage converts validation errors to human-readable messages.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "plan_type":
		return fmt.Sprintf("must be one of: %s", joinValues(plan.AllTypes()))
	case "plan_status":
		return fmt.Sprintf("must be one of: %s", joinValues(plan.AllStatuses()))
	case "feature_type":
		return fmt.Sprintf("must be one of: %s", joinValues(feature.AllTypes()))
	case "charge_model":
		return fmt.Sprintf("must be one of: %s", joinValues(feature.AllChargeModels()))
	case "charge_frequency":
		return fmt.Sprintf("must be one of: %s", joinValues(plan.AllChargeFrequencies()))
	case "subscription_status":
		return fmt.Sprintf("must be one of: %s", joinValues(subscription.AllStatuses()))
	case "feature_code":
		return "must contain only lowercase letters, numbers and underscores"
	case "currency":
		return "must be a 3-letter currency code"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// joinValues renders an enum value list for error messages.
func joinValues[T ~string](values []T) string {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = string(v)
	}
	return strings.Join(strs, ", ")
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

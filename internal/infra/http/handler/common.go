// Package handler contains the HTTP handlers for the billing API. Each
// handler is a thin pass-through to an application service: decode,
// validate, call, encode.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meterly/api/pkg/apierror"
	"github.com/meterly/api/pkg/pagination"
	"github.com/meterly/api/pkg/validator"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into v. Unknown fields are
// rejected so typos surface as errors instead of silent drops.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeValidationError converts validator errors into a structured 422
// response with per-field details.
func writeValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apiErrors := make([]apierror.ValidationError, len(validationErrors))
		for i, ve := range validationErrors {
			apiErrors[i] = apierror.ValidationError{
				Field:   ve.Field,
				Message: ve.Message,
			}
		}
		apierror.ValidationFailed("Validation failed", apiErrors).WriteJSON(w)
		return
	}
	apierror.BadRequest("Validation error").WriteJSON(w)
}

// writeServiceError maps a service error onto the API error taxonomy.
func writeServiceError(w http.ResponseWriter, err error) {
	apierror.FromError(err).WriteJSON(w)
}

// paginate slices a full result set down to the requested page. The
// repositories return tenant-scoped lists small enough to page in
// memory.
func paginate[T any](items []T, p pagination.Pagination) pagination.Result[T] {
	total := int64(len(items))

	start := p.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + p.Limit()
	if end > len(items) {
		end = len(items)
	}

	return pagination.NewResult(items[start:end], total, p)
}

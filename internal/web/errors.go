package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/jgoulah/gridflex/internal/analysis"
	"github.com/jgoulah/gridflex/internal/loader"
	"github.com/jgoulah/gridflex/pkg/models"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// FieldError describes one failed validation rule
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// computationDetails is attached to 422 responses. Band is only set when
// the bounds were computed before the failure.
type computationDetails struct {
	Reason string              `json:"reason"`
	Band   *models.OutlierBand `json:"band,omitempty"`
}

func newAPIError(status int, code, message string, details any) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message, Details: details}
}

// errNotFound is the body of unknown routes and disabled features
func errNotFound(message string) *APIError {
	return newAPIError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

// apiError maps a domain error onto its HTTP representation
func apiError(err error) *APIError {
	var (
		apiErr  *APIError
		compErr *analysis.ComputationError
		valErrs validator.ValidationErrors
		loadErr *loader.DataLoadError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &valErrs):
		fields := make([]FieldError, 0, len(valErrs))
		for _, fe := range valErrs {
			fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		}
		return newAPIError(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", fields)
	case errors.Is(err, analysis.ErrSensitivityRange), errors.Is(err, analysis.ErrNoCompany):
		return newAPIError(http.StatusBadRequest, "INVALID_PARAMETER", err.Error(), nil)
	case errors.As(err, &compErr):
		details := computationDetails{Reason: compErr.Reason}
		if compErr.Reason == analysis.ReasonZeroMedian {
			band := compErr.Band
			details.Band = &band
		}
		return newAPIError(http.StatusUnprocessableEntity, "COMPUTATION_FAILED", err.Error(), details)
	case errors.As(err, &loadErr):
		return newAPIError(http.StatusInternalServerError, "DATA_LOAD_FAILED", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", nil)
	}
}

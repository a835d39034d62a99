package errors

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when login fails. It never says which field was wrong.
	ErrInvalidCredentials = errors.New("Authentication failed")
	// ErrUnauthorized is returned when a bearer token is missing, invalid, expired, revoked or unresolvable.
	ErrUnauthorized = errors.New("Unauthorized")
	// ErrForbidden is returned when an authenticated user is not a member of the organisation.
	ErrForbidden = errors.New("You do not have access to this organisation")
	// ErrOrganisationNotFound is returned when an organisation does not exist.
	ErrOrganisationNotFound = errors.New("Organisation not found")
	// ErrUserNotFound is returned when a user does not exist or is not visible to the caller.
	ErrUserNotFound = errors.New("User not found")
)

// FieldError is a single client-correctable problem with an input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is an ordered list of field problems.
type FieldErrors []FieldError

// Has reports whether any entry concerns field.
func (fe FieldErrors) Has(field string) bool {
	for _, e := range fe {
		if e.Field == field {
			return true
		}
	}
	return false
}

// ValidationError carries every field problem found in one validation pass.
type ValidationError struct {
	Errors FieldErrors
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// NewValidationError wraps field problems, or returns nil when there are none.
func NewValidationError(fields FieldErrors) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Errors: fields}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// ValidationErrorResponse is the 422 body.
type ValidationErrorResponse struct {
	Errors FieldErrors `json:"errors"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Status     string
	Fields     FieldErrors
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, status, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Status:     status,
	}
}

// Body returns the JSON payload for the error.
func (e *HTTPError) Body() interface{} {
	if e.StatusCode == http.StatusUnprocessableEntity {
		return ValidationErrorResponse{Errors: e.Fields}
	}
	return ErrorResponse{
		Status:     e.Status,
		Message:    e.Message,
		StatusCode: e.StatusCode,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Anything unrecognised is internal.
func MapErrorToHTTP(err error) *HTTPError {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return &HTTPError{
			StatusCode: http.StatusUnprocessableEntity,
			Message:    vErr.Error(),
			Status:     "error",
			Fields:     vErr.Errors,
		}
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, "Bad request", err.Error())
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusUnauthorized, "error", err.Error())
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, "error", err.Error())
	case errors.Is(err, ErrOrganisationNotFound), errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, "error", err.Error())
	default:
		return NewHTTPError(http.StatusInternalServerError, "Internal Server Error", "Internal server error")
	}
}

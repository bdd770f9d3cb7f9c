package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/KaramelBytes/sheetlens/internal/chart"
	"github.com/KaramelBytes/sheetlens/internal/service"
	"github.com/KaramelBytes/sheetlens/internal/store"
	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// APIError is the error body returned by every endpoint.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// ValidationError names one invalid request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newError(status int, code, message string, details any) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message, Details: details}
}

// errorResponse wraps an APIError in the success envelope.
type errorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

func (e *errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Error.StatusCode)
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, e *APIError) {
	_ = render.Render(w, r, &errorResponse{Success: false, Error: e})
}

func validationFailed(fields ...ValidationError) *APIError {
	return newError(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", fields)
}

// fromValidator converts validator errors into field details.
func fromValidator(err error) *APIError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newError(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
	}
	fields := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, ValidationError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return validationFailed(fields...)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}

// fromError maps domain errors to HTTP errors.
func fromError(err error) *APIError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(http.StatusNotFound, "NOT_FOUND", "File not found", nil)
	case errors.Is(err, service.ErrUnsupportedType):
		return newError(http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE", err.Error(), nil)
	case errors.Is(err, service.ErrFileTooLarge):
		return newError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error(), nil)
	case errors.Is(err, service.ErrNotProcessed):
		return newError(http.StatusConflict, "NOT_PROCESSED", err.Error(), nil)
	case errors.Is(err, service.ErrUnknownColumn):
		return validationFailed(ValidationError{Field: "column", Message: err.Error()})
	case errors.Is(err, table.ErrDecode), errors.Is(err, table.ErrEmptySource):
		return newError(http.StatusUnprocessableEntity, "PROCESSING_FAILED", err.Error(), nil)
	case errors.Is(err, chart.ErrEmptySeries):
		return newError(http.StatusUnprocessableEntity, "EMPTY_SERIES", err.Error(), nil)
	}
	return newError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", nil)
}

package dto

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mtlprog/helpdesk/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// MapDomainError maps domain errors to HTTP status codes and error codes.
// Specific errors get their own code; anything else falls back to its category.
func MapDomainError(err error) (status int, code string, message string) {
	message = err.Error()

	switch {
	// Chamado errors
	case errors.Is(err, domain.ErrChamadoNotFound):
		return http.StatusNotFound, "CHAMADO_NOT_FOUND", message
	case errors.Is(err, domain.ErrTransferTI):
		return http.StatusForbidden, "TRANSFER_TI_FORBIDDEN", message
	case errors.Is(err, domain.ErrChamadoTerminal):
		return http.StatusConflict, "CHAMADO_TERMINAL", message

	// Catalog errors
	case errors.Is(err, domain.ErrSetorNotFound):
		return http.StatusNotFound, "SETOR_NOT_FOUND", message
	case errors.Is(err, domain.ErrProblemaNotFound):
		return http.StatusNotFound, "PROBLEMA_NOT_FOUND", message

	// Identity errors
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND", message
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", message
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN", message
	case errors.Is(err, domain.ErrUserInactive):
		return http.StatusForbidden, "USER_INACTIVE", message

	// Categories
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", message
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", message
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", message
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message

	default:
		if !errors.Is(err, domain.ErrInternal) {
			slog.Error("unmapped error returned to client",
				"error", err,
				"error_type", fmt.Sprintf("%T", err),
			)
		}
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}

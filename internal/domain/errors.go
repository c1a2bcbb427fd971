package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of them,
// so callers can branch with errors.Is on the category.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

var (
	// Chamado errors
	ErrChamadoNotFound = fmt.Errorf("chamado %w", ErrNotFound)
	ErrTransferTI      = fmt.Errorf("%w: chamado de TI não pode ser transferido", ErrForbidden)
	ErrChamadoTerminal = fmt.Errorf("%w: chamado em situação terminal", ErrConflict)

	// Catalog errors
	ErrSetorNotFound    = fmt.Errorf("setor %w", ErrNotFound)
	ErrProblemaNotFound = fmt.Errorf("problema %w", ErrNotFound)

	// Identity errors
	ErrSolicitanteNotFound = fmt.Errorf("solicitante %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrUserInactive        = fmt.Errorf("%w: user is inactive", ErrForbidden)
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid authentication token")

	// Validation errors
	ErrInvalidSituacao   = fmt.Errorf("%w: invalid situacao", ErrInvalidInput)
	ErrInvalidPrioridade = fmt.Errorf("%w: invalid prioridade", ErrInvalidInput)
)

// IsCategorized reports whether err belongs to one of the categories that are
// safe to surface to callers verbatim.
func IsCategorized(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidInput)
}

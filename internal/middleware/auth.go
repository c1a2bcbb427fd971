package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mtlprog/helpdesk/internal/domain"
)

type contextKey string

const (
	// ContextKeyUser is the key for storing the staff user in request context.
	ContextKeyUser contextKey = "user"
	// ContextKeySolicitante is the key for storing the solicitante in request context.
	ContextKeySolicitante contextKey = "solicitante"

	// SolicitanteHeader carries the CPF of the solicitante making the request.
	SolicitanteHeader = "X-Solicitante-CPF"
)

// Authenticator resolves the active staff user behind an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// SolicitanteLookup finds solicitantes by CPF.
type SolicitanteLookup interface {
	GetByCPF(ctx context.Context, cpf string) (*domain.Solicitante, error)
}

// AuthMiddleware guards routes for staff users and for solicitantes.
type AuthMiddleware struct {
	auth         Authenticator
	solicitantes SolicitanteLookup
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(auth Authenticator, solicitantes SolicitanteLookup) *AuthMiddleware {
	return &AuthMiddleware{
		auth:         auth,
		solicitantes: solicitantes,
	}
}

// StaffAuth validates the Bearer token and adds the user to request context.
// Browsers cannot set headers on websocket upgrades, so a token query
// parameter is accepted as well.
func (m *AuthMiddleware) StaffAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			http.Error(w, "missing or invalid authorization header", http.StatusUnauthorized)
			return
		}

		user, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidToken):
				http.Error(w, "invalid token", http.StatusUnauthorized)
			case errors.Is(err, domain.ErrUserInactive):
				http.Error(w, "user inactive", http.StatusUnauthorized)
			default:
				slog.Error("failed to authenticate user", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUser, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SolicitanteAuth resolves the solicitante from SolicitanteHeader.
func (m *AuthMiddleware) SolicitanteAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cpf := strings.TrimSpace(r.Header.Get(SolicitanteHeader))
		if cpf == "" {
			http.Error(w, "missing "+SolicitanteHeader+" header", http.StatusUnauthorized)
			return
		}

		solicitante, err := m.solicitantes.GetByCPF(r.Context(), cpf)
		if err != nil {
			if errors.Is(err, domain.ErrSolicitanteNotFound) {
				http.Error(w, "unknown solicitante", http.StatusUnauthorized)
				return
			}
			slog.Error("failed to resolve solicitante", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeySolicitante, solicitante)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// GetUserFromContext retrieves the authenticated staff user from request context.
func GetUserFromContext(ctx context.Context) (*domain.User, error) {
	user, ok := ctx.Value(ContextKeyUser).(*domain.User)
	if !ok || user == nil {
		return nil, domain.ErrInvalidToken
	}
	return user, nil
}

// GetSolicitanteFromContext retrieves the authenticated solicitante from request context.
func GetSolicitanteFromContext(ctx context.Context) (*domain.Solicitante, error) {
	solicitante, ok := ctx.Value(ContextKeySolicitante).(*domain.Solicitante)
	if !ok || solicitante == nil {
		return nil, domain.ErrSolicitanteNotFound
	}
	return solicitante, nil
}

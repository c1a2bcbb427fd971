package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	users map[string]*domain.User
	err   error
}

func (f fakeAuth) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[token]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return u, nil
}

type fakeSolicitantes map[string]*domain.Solicitante

func (f fakeSolicitantes) GetByCPF(_ context.Context, cpf string) (*domain.Solicitante, error) {
	s, ok := f[cpf]
	if !ok {
		return nil, domain.ErrSolicitanteNotFound
	}
	return s, nil
}

func newMiddleware(authErr error) *AuthMiddleware {
	return NewAuthMiddleware(
		fakeAuth{users: map[string]*domain.User{"good": {ID: 1, Username: "tecnico", IsActive: true}}, err: authErr},
		fakeSolicitantes{"123": {ID: 7, CPF: "123"}},
	)
}

func TestStaffAuth(t *testing.T) {
	var seen *domain.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := GetUserFromContext(r.Context())
		require.NoError(t, err)
		seen = u
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name    string
		header  string
		target  string
		authErr error
		want    int
	}{
		{"valid bearer", "Bearer good", "/", nil, http.StatusNoContent},
		{"lowercase scheme", "bearer good", "/", nil, http.StatusNoContent},
		{"query token", "", "/?token=good", nil, http.StatusNoContent},
		{"missing", "", "/", nil, http.StatusUnauthorized},
		{"wrong scheme", "Basic good", "/", nil, http.StatusUnauthorized},
		{"unknown token", "Bearer bad", "/", nil, http.StatusUnauthorized},
		{"inactive", "Bearer good", "/", domain.ErrUserInactive, http.StatusUnauthorized},
		{"store down", "Bearer good", "/", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			newMiddleware(tt.authErr).StaffAuth(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, int64(1), seen.ID)
			}
		})
	}
}

func TestSolicitanteAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := GetSolicitanteFromContext(r.Context())
		require.NoError(t, err)
		assert.Equal(t, int64(7), s.ID)
		w.WriteHeader(http.StatusNoContent)
	})
	h := newMiddleware(nil).SolicitanteAuth(next)

	for cpf, want := range map[string]int{"123": http.StatusNoContent, " 123 ": http.StatusNoContent, "999": http.StatusUnauthorized, "": http.StatusUnauthorized} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(SolicitanteHeader, cpf)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "cpf=%q", cpf)
	}
}

func TestContextGetters_Empty(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = GetSolicitanteFromContext(context.Background())
	assert.ErrorIs(t, err, domain.ErrSolicitanteNotFound)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/helpdesk/internal/auth"
	"github.com/mtlprog/helpdesk/internal/domain"
)

// AuthService signs staff users in.
type AuthService struct {
	users    UserStore
	tokenMgr *auth.TokenManager
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, tokenMgr *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokenMgr: tokenMgr}
}

// SignInResult is returned by a successful SignIn.
type SignInResult struct {
	User        *domain.User
	AccessToken string
	ExpiresAt   time.Time
}

// SignIn checks the credentials and issues an access token.
// Unknown users and wrong passwords fail the same way.
func (s *AuthService) SignIn(ctx context.Context, username, password string) (*SignInResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	slog.Info("user signed in", "user_id", user.ID)

	return &SignInResult{User: user, AccessToken: token, ExpiresAt: exp}, nil
}

// Authenticate resolves the active user behind an access token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	return user, nil
}

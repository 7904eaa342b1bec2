package service

import (
	"context"
	"strings"

	"github.com/mc-fdc-dev/modmail/internal/auth"
	"github.com/mc-fdc-dev/modmail/internal/config"
	"github.com/mc-fdc-dev/modmail/internal/domain"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

const adminSubjectID = "admin"

// AuthService issues admin API tokens.
type AuthService struct {
	passwordHash string
	tokenMgr     *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{
		passwordHash: strings.TrimSpace(cfg.AdminPasswordHash),
		tokenMgr:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// LoginAdmin exchanges the admin password for a token. Login is disabled when no
// password hash is configured.
func (s *AuthService) LoginAdmin(_ context.Context, password string) (domain.Token, string, error) {
	if s.passwordHash == "" {
		return domain.Token{}, "", apperrors.NewForbidden("admin login disabled")
	}
	if err := auth.ComparePassword(s.passwordHash, password); err != nil {
		return domain.Token{}, "", apperrors.NewUnauthorized("invalid credentials")
	}
	return s.tokenMgr.GenerateToken(adminSubjectID, domain.SubjectTypeAdmin)
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

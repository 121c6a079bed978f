package services

import (
	"strings"

	"github.com/baharkarakas/charity-faceoff/internal/auth"
)

const RoleAdmin = "admin"

// AuthService issues operator tokens. There is a single admin identity whose
// bcrypt hash comes from configuration.
type AuthService struct {
	tm           *auth.TokenManager
	passwordHash string
}

func NewAuthService(tm *auth.TokenManager, passwordHash string) *AuthService {
	return &AuthService{tm: tm, passwordHash: strings.TrimSpace(passwordHash)}
}

func (s *AuthService) Login(password string) (auth.TokenPair, error) {
	var missing []string
	if auth.CheckHash(s.passwordHash) != nil {
		missing = append(missing, "ADMIN_PASSWORD_HASH")
	}
	if !s.tm.Configured() {
		missing = append(missing, "JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET")
	}
	if len(missing) > 0 {
		return auth.TokenPair{}, &MisconfigurationError{Missing: missing}
	}
	if err := auth.VerifyPassword(password, s.passwordHash); err != nil {
		return auth.TokenPair{}, ErrInvalidLogin
	}
	return s.tm.GeneratePair(RoleAdmin, RoleAdmin)
}

func (s *AuthService) Refresh(refreshToken string) (auth.TokenPair, error) {
	claims, isRefresh, err := s.tm.ParseAny(refreshToken)
	if err != nil || !isRefresh {
		return auth.TokenPair{}, ErrInvalidLogin
	}
	return s.tm.GeneratePair(claims.Subject, claims.Role)
}

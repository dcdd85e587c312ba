package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"estatehub/api/internal/apperr"
	"estatehub/api/internal/auth"
	"estatehub/api/internal/models"
	"estatehub/api/internal/repository"
)

// ISessionService issues credentials.
type ISessionService interface {
	Login(ctx context.Context, email, password string) (string, *models.User, error)
}

type sessionService struct {
	users  repository.IUserRepository
	secret string
	ttl    time.Duration
}

// NewSessionService creates a login service signing tokens with secret.
func NewSessionService(users repository.IUserRepository, secret string, ttl time.Duration) ISessionService {
	return &sessionService{users: users, secret: secret, ttl: ttl}
}

// Login checks the password and returns a signed token. Unknown emails and
// wrong passwords fail the same way.
func (s *sessionService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, apperr.NewUnauthenticated("Invalid email or password")
		}
		return "", nil, apperr.NewInternal("failed to look up user", err)
	}
	if user.PasswordHash == "" || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, apperr.NewUnauthenticated("Invalid email or password")
	}
	if user.Suspended() {
		return "", nil, apperr.NewForbidden("Account suspended")
	}

	token, err := auth.GenerateJWT(user.ID, user.Role, s.secret, s.ttl)
	if err != nil {
		return "", nil, apperr.NewInternal("failed to issue token", err)
	}
	return token, user, nil
}

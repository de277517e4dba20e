package services

import (
	"context"
	"errors"
	"time"

	"github.com/apimgr/ecogarden/src/server/metrics"
	models "github.com/apimgr/ecogarden/src/server/model"
)

// ErrInvalidCredentials is returned when email or password do not match
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService exchanges credentials for bearer tokens
type AuthService struct {
	Users  *models.UserModel
	Tokens *TokenService
}

// Login verifies credentials and issues a token
func (s *AuthService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.Users.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.RecordAuthAttempt("password", "failure")
			return "", time.Time{}, ErrInvalidCredentials
		}
		metrics.RecordAuthAttempt("password", "error")
		return "", time.Time{}, err
	}

	token, expires, err := s.Tokens.Issue(user)
	if err != nil {
		metrics.RecordAuthAttempt("password", "error")
		return "", time.Time{}, err
	}

	metrics.RecordAuthAttempt("password", "success")
	return token, expires, nil
}

// Authenticate resolves a bearer token to the current user. Tokens of
// deleted accounts are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		metrics.RecordAuthAttempt("bearer", "failure")
		return nil, err
	}

	user, err := s.Users.GetByEmail(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.RecordAuthAttempt("bearer", "failure")
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

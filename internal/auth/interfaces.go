package auth

import (
	"context"

	"github.com/ecoride/ecoride/pkg/models"
)

// Backend is the phone-OTP authentication service.
type Backend interface {
	RequestOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (*models.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// SessionStore persists the session between app launches.
type SessionStore interface {
	Save(session *models.Session) error
	Load() (*models.Session, error)
	Clear() error
}

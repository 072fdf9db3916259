package auth

import (
	"context"
	"time"

	"github.com/geocoder89/memberhub/internal/domain/user"
)

// Directory is the user record store the auth services depend on.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindByID(ctx context.Context, id string) (user.User, error)
	// FindByResetToken only matches tokens whose expiry is after now.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (user.User, error)
	FindByRegistrationNumber(ctx context.Context, number string) ([]user.User, error)
	Create(ctx context.Context, p user.CreateParams) (user.User, error)
	Save(ctx context.Context, u user.User) error
	// SetResetToken writes only the token digest and expiry of user id.
	// It returns user.ErrNotFound when no such user exists.
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// ConsumeResetToken sets newPasswordHash and clears the token in one
	// conditional write. It returns user.ErrNotFound when the token no longer
	// matches an unexpired record.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) (bool, error)
}

// Principal identifies the authenticated user behind a request.
type Principal struct {
	UserID    string
	SessionID string
}

// Session is what a successful login hands back to the transport layer.
type Session struct {
	Token     string
	Principal Principal
	ExpiresAt time.Time
}

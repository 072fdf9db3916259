package db

import (
	"context"
	"errors"

	"github.com/geocoder89/memberhub/internal/domain/user"
)

type SeedDirectory interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, p user.CreateParams) (user.User, error)
}

type SeedHasher interface {
	Hash(plain string) (string, error)
}

// EnsureSeedMember creates a login-capable member when email and password
// are configured and no account uses that email yet. It reports whether a
// record was created.
func EnsureSeedMember(ctx context.Context, dir SeedDirectory, hasher SeedHasher, email, password, name string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	_, err := dir.FindByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	digest, err := hasher.Hash(password)
	if err != nil {
		return false, err
	}

	_, err = dir.Create(ctx, user.CreateParams{
		Email:        email,
		PasswordHash: &digest,
		Name:         name,
	})
	if errors.Is(err, user.ErrDuplicateEmail) {
		// another replica seeded first
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

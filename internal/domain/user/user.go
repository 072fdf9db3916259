package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        *string    `json:"-"` // nil for detail-only records
	Name                string     `json:"name,omitempty"`
	PhoneNumber         string     `json:"phoneNumber,omitempty"`
	Address             string     `json:"address,omitempty"`
	RegistrationNumber  string     `json:"registrationNumber,omitempty"`
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// ResetState describes where a user sits in the password reset flow.
type ResetState string

const (
	NoActiveReset ResetState = "no_active_reset"
	PendingReset  ResetState = "pending_reset"
)

func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// ResetState reports PendingReset only while a token is stored and unexpired at now.
func (u User) ResetState(now time.Time) ResetState {
	if u.ResetTokenHash == nil || u.ResetTokenExpiresAt == nil {
		return NoActiveReset
	}
	if !now.Before(*u.ResetTokenExpiresAt) {
		return NoActiveReset
	}
	return PendingReset
}

// SetResetToken sets the token digest and its expiry together.
func (u *User) SetResetToken(tokenHash string, expiresAt time.Time) {
	exp := expiresAt.UTC()
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiresAt = &exp
}

// ClearResetToken clears the token digest and its expiry together.
func (u *User) ClearResetToken() {
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
}

// CreateParams is what a directory needs to create a new record.
// PasswordHash stays nil for detail-only records.
type CreateParams struct {
	Email              string
	PasswordHash       *string
	Name               string
	PhoneNumber        string
	Address            string
	RegistrationNumber string
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewFromCreateParams builds a User from the incoming params.
func NewFromCreateParams(p CreateParams) User {
	now := time.Now().UTC()
	return User{
		ID:                 uuid.NewString(),
		Email:              NormalizeEmail(p.Email),
		PasswordHash:       p.PasswordHash,
		Name:               strings.TrimSpace(p.Name),
		PhoneNumber:        strings.TrimSpace(p.PhoneNumber),
		Address:            strings.TrimSpace(p.Address),
		RegistrationNumber: strings.TrimSpace(p.RegistrationNumber),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/memberhub/internal/domain/user"
	"github.com/geocoder89/memberhub/internal/notifications"
	"github.com/geocoder89/memberhub/internal/observability"
)

const (
	DefaultResetTokenTTL = time.Hour
	resetTokenBytes      = 32
)

// ResetManager issues, validates and consumes password reset tokens.
// Only the SHA-256 of a token is stored; the plaintext lives in the emailed link.
type ResetManager struct {
	dir    Directory
	hasher PasswordHasher
	sender notifications.Sender
	log    *slog.Logger
	prom   *observability.Prom
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

type ResetDeps struct {
	Directory Directory
	Hasher    PasswordHasher
	Sender    notifications.Sender
	Log       *slog.Logger
	Prom      *observability.Prom
	TTL       time.Duration
}

func NewResetManager(d ResetDeps) *ResetManager {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}

	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	return &ResetManager{
		dir:    d.Directory,
		hasher: d.Hasher,
		sender: d.Sender,
		log:    log,
		prom:   d.Prom,
		ttl:    ttl,
		now:    time.Now,
		random: rand.Reader,
	}
}

// RequestReset emails a reset link to the account behind email. An unknown
// email is not an error and sends nothing. origin is the scheme and host the
// link should point at.
func (m *ResetManager) RequestReset(ctx context.Context, email, origin string) error {
	ctx, span := tracer.Start(ctx, "auth.RequestReset")
	defer span.End()

	err := m.requestReset(ctx, email, origin)
	recordSpanErr(span, err)
	return err
}

func (m *ResetManager) requestReset(ctx context.Context, email, origin string) error {
	email = user.NormalizeEmail(email)
	if email == "" {
		return newValidationError([]string{MsgEnterAllFields}, nil)
	}

	u, err := m.dir.FindByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		m.prom.ResetTokenEvent("unknown_email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: find user: %v", ErrPersistence, err)
	}

	token, err := m.newToken()
	if err != nil {
		return fmt.Errorf("%w: generate token: %v", ErrPersistence, err)
	}

	// a new request replaces any pending token
	if err := m.dir.SetResetToken(ctx, u.ID, hashResetToken(token), m.now().Add(m.ttl)); err != nil {
		return fmt.Errorf("%w: save reset token: %v", ErrPersistence, err)
	}
	m.prom.ResetTokenEvent("issued")

	link := strings.TrimRight(origin, "/") + "/reset/" + token
	if err := m.sender.Send(ctx, notifications.PasswordResetMessage(u.Email, link)); err != nil {
		m.prom.Notification(notifications.KindPasswordReset, "failed")
		m.log.ErrorContext(ctx, "reset email not sent", "user_id", u.ID, "err", err)
		return fmt.Errorf("%w: %v", ErrNotification, err)
	}

	m.prom.Notification(notifications.KindPasswordReset, "sent")
	m.log.InfoContext(ctx, "reset token issued", "user_id", u.ID)
	return nil
}

// ValidateToken returns the user a token belongs to. Empty, unknown and
// expired tokens all fail with ErrInvalidOrExpiredToken.
func (m *ResetManager) ValidateToken(ctx context.Context, token string) (user.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		m.prom.ResetTokenEvent("rejected")
		return user.User{}, ErrInvalidOrExpiredToken
	}

	u, err := m.dir.FindByResetToken(ctx, hashResetToken(token), m.now())
	if errors.Is(err, user.ErrNotFound) {
		m.prom.ResetTokenEvent("rejected")
		return user.User{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return user.User{}, fmt.Errorf("%w: find by token: %v", ErrPersistence, err)
	}

	m.prom.ResetTokenEvent("validated")
	return u, nil
}

// CompleteReset sets a new password and consumes the token in a single
// conditional write, so a token can be used at most once.
func (m *ResetManager) CompleteReset(ctx context.Context, token, password, confirm string) error {
	ctx, span := tracer.Start(ctx, "auth.CompleteReset")
	defer span.End()

	err := m.completeReset(ctx, token, password, confirm)
	recordSpanErr(span, err)
	return err
}

func (m *ResetManager) completeReset(ctx context.Context, token, password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if reasons := validateNewPassword(NewPasswordRequest{Password: password, Password2: confirm}); len(reasons) > 0 {
		return newValidationError(reasons, nil)
	}

	// cheap check first so a dead link does not cost a bcrypt round;
	// it also rejects an empty token
	token = strings.TrimSpace(token)
	if _, err := m.ValidateToken(ctx, token); err != nil {
		return err
	}

	digest, err := m.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", ErrPersistence, err)
	}

	u, err := m.dir.ConsumeResetToken(ctx, hashResetToken(token), m.now(), digest)
	if errors.Is(err, user.ErrNotFound) {
		m.prom.ResetTokenEvent("rejected")
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return fmt.Errorf("%w: consume token: %v", ErrPersistence, err)
	}
	m.prom.ResetTokenEvent("consumed")
	m.log.InfoContext(ctx, "password reset completed", "user_id", u.ID)

	if err := m.sender.Send(ctx, notifications.PasswordChangedMessage(u.Email)); err != nil {
		m.prom.Notification(notifications.KindPasswordChanged, "failed")
		m.log.WarnContext(ctx, "password changed email not sent", "user_id", u.ID, "err", err)
		return nil
	}
	m.prom.Notification(notifications.KindPasswordChanged, "sent")
	return nil
}

func (m *ResetManager) newToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := io.ReadFull(m.random, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

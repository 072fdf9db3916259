package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/geocoder89/memberhub/internal/domain/user"
	"github.com/geocoder89/memberhub/internal/observability"
	"github.com/geocoder89/memberhub/internal/session"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/geocoder89/memberhub/internal/auth")

// Service authenticates users and manages their sessions.
type Service struct {
	dir      Directory
	hasher   PasswordHasher
	tokens   *TokenManager
	sessions session.Store
	log      *slog.Logger
	prom     *observability.Prom

	dummyOnce sync.Once
	dummyHash string
}

type ServiceDeps struct {
	Directory Directory
	Hasher    PasswordHasher
	Tokens    *TokenManager
	Sessions  session.Store
	Log       *slog.Logger
	Prom      *observability.Prom
}

func NewService(d ServiceDeps) *Service {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		dir:      d.Directory,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		sessions: d.Sessions,
		log:      log,
		prom:     d.Prom,
	}
}

// Login checks credentials and opens a session. Every credential failure,
// including an unknown email, returns ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	sess, err := s.login(ctx, email, password)
	s.prom.AuthAttempt("login", resultLabel(err))
	recordSpanErr(span, err)
	return sess, err
}

func (s *Service) login(ctx context.Context, email, password string) (Session, error) {
	email = user.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	u, err := s.dir.FindByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		s.burnVerify(password)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: find user: %v", ErrPersistence, err)
	}

	if !u.HasPassword() {
		s.burnVerify(password)
		return Session{}, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, *u.PasswordHash)
	if err != nil {
		s.log.ErrorContext(ctx, "stored password hash unreadable", "user_id", u.ID, "err", err)
		return Session{}, fmt.Errorf("%w: verify password: %v", ErrPersistence, err)
	}
	if !ok {
		return Session{}, ErrInvalidCredentials
	}

	return s.startSession(ctx, u.ID)
}

// burnVerify spends one bcrypt comparison so unknown emails take as long
// as wrong passwords.
func (s *Service) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("memberhub-timing-equalizer")
		if err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(password, s.dummyHash)
}

func (s *Service) startSession(ctx context.Context, userID string) (Session, error) {
	sessionID := uuid.NewString()

	if err := s.sessions.Put(ctx, sessionID, userID, s.tokens.TTL()); err != nil {
		return Session{}, fmt.Errorf("%w: store session: %v", ErrPersistence, err)
	}

	token, exp, err := s.tokens.Issue(userID, sessionID)
	if err != nil {
		_ = s.sessions.Delete(ctx, sessionID)
		return Session{}, fmt.Errorf("%w: sign session: %v", ErrPersistence, err)
	}

	return Session{
		Token:     token,
		Principal: Principal{UserID: userID, SessionID: sessionID},
		ExpiresAt: exp,
	}, nil
}

// Resolve turns a session cookie back into the principal and its current
// user record. Any failure is reported as ErrNoSession.
func (s *Service) Resolve(ctx context.Context, token string) (Principal, user.User, error) {
	if strings.TrimSpace(token) == "" {
		return Principal{}, user.User{}, ErrNoSession
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return Principal{}, user.User{}, ErrNoSession
	}

	userID, err := s.sessions.Get(ctx, claims.JTI)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			s.log.WarnContext(ctx, "session lookup failed", "err", err)
		}
		return Principal{}, user.User{}, ErrNoSession
	}
	if userID != claims.UserID {
		return Principal{}, user.User{}, ErrNoSession
	}

	u, err := s.dir.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.log.WarnContext(ctx, "session user lookup failed", "err", err)
		}
		return Principal{}, user.User{}, ErrNoSession
	}

	return Principal{UserID: u.ID, SessionID: claims.JTI}, u, nil
}

// Logout ends the session behind token. Unknown or invalid tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}

	if err := s.sessions.Delete(ctx, claims.JTI); err != nil {
		s.prom.AuthAttempt("logout", "error")
		return fmt.Errorf("%w: delete session: %v", ErrPersistence, err)
	}

	s.prom.AuthAttempt("logout", "ok")
	return nil
}

// Register creates an account with a password and logs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (user.User, Session, error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer span.End()

	u, sess, err := s.register(ctx, req)
	s.prom.AuthAttempt("register", resultLabel(err))
	recordSpanErr(span, err)
	return u, sess, err
}

func (s *Service) register(ctx context.Context, req RegisterRequest) (user.User, Session, error) {
	reasons := validateRegister(req)

	taken, err := s.emailTaken(ctx, req.Email)
	if err != nil {
		return user.User{}, Session{}, err
	}
	if err := rejection(reasons, taken); err != nil {
		return user.User{}, Session{}, err
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return user.User{}, Session{}, fmt.Errorf("%w: hash password: %v", ErrPersistence, err)
	}

	u, err := s.dir.Create(ctx, user.CreateParams{
		Email:        req.Email,
		PasswordHash: &digest,
		Name:         req.Name,
	})
	if errors.Is(err, user.ErrDuplicateEmail) {
		return user.User{}, Session{}, rejection(nil, true)
	}
	if err != nil {
		return user.User{}, Session{}, fmt.Errorf("%w: create user: %v", ErrPersistence, err)
	}

	sess, err := s.startSession(ctx, u.ID)
	if err != nil {
		return u, Session{}, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u, sess, nil
}

// RegisterDetails stores a contact record without credentials.
func (s *Service) RegisterDetails(ctx context.Context, req DetailsRequest) (user.User, error) {
	ctx, span := tracer.Start(ctx, "auth.RegisterDetails")
	defer span.End()

	u, err := s.registerDetails(ctx, req)
	s.prom.AuthAttempt("details", resultLabel(err))
	recordSpanErr(span, err)
	return u, err
}

func (s *Service) registerDetails(ctx context.Context, req DetailsRequest) (user.User, error) {
	reasons := validateDetails(req)

	taken, err := s.emailTaken(ctx, req.Email)
	if err != nil {
		return user.User{}, err
	}
	if err := rejection(reasons, taken); err != nil {
		return user.User{}, err
	}

	u, err := s.dir.Create(ctx, user.CreateParams{
		Email:              req.Email,
		Name:               req.Name,
		PhoneNumber:        req.PhoneNumber,
		Address:            req.Address,
		RegistrationNumber: req.RegistrationNumber,
	})
	if errors.Is(err, user.ErrDuplicateEmail) {
		return user.User{}, rejection(nil, true)
	}
	if err != nil {
		return user.User{}, fmt.Errorf("%w: create details: %v", ErrPersistence, err)
	}

	return u, nil
}

// Search lists records with the given registration number.
func (s *Service) Search(ctx context.Context, registrationNumber string) ([]user.User, error) {
	ctx, span := tracer.Start(ctx, "auth.Search")
	defer span.End()

	registrationNumber = strings.TrimSpace(registrationNumber)
	if registrationNumber == "" {
		return []user.User{}, nil
	}

	out, err := s.dir.FindByRegistrationNumber(ctx, registrationNumber)
	if err != nil {
		recordSpanErr(span, err)
		return nil, fmt.Errorf("%w: search: %v", ErrPersistence, err)
	}
	span.SetAttributes(attribute.Int("search.results", len(out)))
	return out, nil
}

func (s *Service) emailTaken(ctx context.Context, email string) (bool, error) {
	email = user.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}

	_, err := s.dir.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, user.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%w: find user: %v", ErrPersistence, err)
	}
}

// rejection builds the error for a refused form, or nil when there is nothing to refuse.
func rejection(reasons []string, emailTaken bool) error {
	if emailTaken {
		return newValidationError(append(reasons, MsgEmailExists), ErrDuplicateEmail)
	}
	if len(reasons) > 0 {
		return newValidationError(reasons, nil)
	}
	return nil
}

func resultLabel(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.As(err, &verr):
		return "invalid"
	default:
		return "error"
	}
}

func recordSpanErr(span trace.Span, err error) {
	if err == nil {
		return
	}
	// expected user-facing outcomes are not span errors
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrNotification) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

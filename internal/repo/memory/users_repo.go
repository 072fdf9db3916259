package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/memberhub/internal/domain/user"
)

// UsersRepo is an in-process user directory for tests and STORE=memory.
// byEmail enforces the same uniqueness the postgres index does.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // id -> user
	byEmail map[string]string    // normalized email -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) FindByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return clone(r.items[id]), nil
}

func (r *UsersRepo) FindByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return clone(u), nil
}

func (r *UsersRepo) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if tokenMatches(u, tokenHash, now) {
			return clone(u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) FindByRegistrationNumber(_ context.Context, number string) ([]user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []user.User{}
	for _, u := range r.items {
		if u.RegistrationNumber == number {
			out = append(out, clone(u))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *UsersRepo) Create(_ context.Context, p user.CreateParams) (user.User, error) {
	u := user.NewFromCreateParams(p)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[u.Email]; exists {
		return user.User{}, user.ErrDuplicateEmail
	}

	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return clone(u), nil
}

func (r *UsersRepo) Save(_ context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.items[u.ID]
	if !ok {
		return user.ErrNotFound
	}

	u.Email = user.NormalizeEmail(u.Email)
	if u.Email != cur.Email {
		if id, taken := r.byEmail[u.Email]; taken && id != u.ID {
			return user.ErrDuplicateEmail
		}
		delete(r.byEmail, cur.Email)
		r.byEmail[u.Email] = u.ID
	}

	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	r.items[u.ID] = clone(u)
	return nil
}

func (r *UsersRepo) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	u.SetResetToken(tokenHash, expiresAt)
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u
	return nil
}

func (r *UsersRepo) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, newPasswordHash string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.items {
		if !tokenMatches(u, tokenHash, now) {
			continue
		}

		digest := newPasswordHash
		u.PasswordHash = &digest
		u.ClearResetToken()
		u.UpdatedAt = time.Now().UTC()
		r.items[id] = u
		return clone(u), nil
	}
	return user.User{}, user.ErrNotFound
}

func tokenMatches(u user.User, tokenHash string, now time.Time) bool {
	return u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash &&
		u.ResetState(now) == user.PendingReset
}

// clone copies the pointer fields so callers cannot mutate stored records.
func clone(u user.User) user.User {
	if u.PasswordHash != nil {
		v := *u.PasswordHash
		u.PasswordHash = &v
	}
	if u.ResetTokenHash != nil {
		v := *u.ResetTokenHash
		u.ResetTokenHash = &v
	}
	if u.ResetTokenExpiresAt != nil {
		v := *u.ResetTokenExpiresAt
		u.ResetTokenExpiresAt = &v
	}
	return u
}

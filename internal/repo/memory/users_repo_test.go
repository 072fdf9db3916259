package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/memberhub/internal/domain/user"
)

func strPtr(s string) *string { return &s }

func TestUsersRepo_CreateAndFind(t *testing.T) {
	r := NewUsersRepo()
	ctx := context.Background()

	u, err := r.Create(ctx, user.CreateParams{Email: "  Alice@Example.com ", Name: "Alice", PasswordHash: strPtr("h")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}

	got, err := r.FindByEmail(ctx, "ALICE@example.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("FindByEmail = %+v, %v", got, err)
	}

	if _, err := r.FindByID(ctx, "missing"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUsersRepo_DuplicateEmail(t *testing.T) {
	r := NewUsersRepo()
	ctx := context.Background()

	if _, err := r.Create(ctx, user.CreateParams{Email: "a@example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create(ctx, user.CreateParams{Email: "A@EXAMPLE.COM"}); !errors.Is(err, user.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUsersRepo_ConcurrentCreateSameEmail(t *testing.T) {
	r := NewUsersRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Create(ctx, user.CreateParams{Email: "race@example.com"}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 1 {
		t.Fatalf("%d creates succeeded, want exactly 1", ok)
	}
}

func TestUsersRepo_ResetTokenLifecycle(t *testing.T) {
	r := NewUsersRepo()
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	u, _ := r.Create(ctx, user.CreateParams{Email: "bob@example.com", PasswordHash: strPtr("old")})
	u.SetResetToken("digest", now.Add(time.Hour))
	if err := r.Save(ctx, u); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := r.FindByResetToken(ctx, "digest", now.Add(59*time.Minute)); err != nil {
		t.Fatalf("token should be valid before expiry: %v", err)
	}
	if _, err := r.FindByResetToken(ctx, "digest", now.Add(time.Hour)); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("token should be expired at its deadline, got %v", err)
	}

	got, err := r.ConsumeResetToken(ctx, "digest", now.Add(time.Minute), "new")
	if err != nil {
		t.Fatalf("ConsumeResetToken: %v", err)
	}
	if *got.PasswordHash != "new" || got.ResetTokenHash != nil || got.ResetTokenExpiresAt != nil {
		t.Fatalf("unexpected state after consume: %+v", got)
	}

	if _, err := r.ConsumeResetToken(ctx, "digest", now.Add(time.Minute), "again"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("second consume should fail, got %v", err)
	}
}

func TestUsersRepo_ReturnedRecordsAreCopies(t *testing.T) {
	r := NewUsersRepo()
	ctx := context.Background()

	u, _ := r.Create(ctx, user.CreateParams{Email: "c@example.com", PasswordHash: strPtr("orig")})
	*u.PasswordHash = "mutated"

	got, _ := r.FindByID(ctx, u.ID)
	if *got.PasswordHash != "orig" {
		t.Fatalf("stored hash was mutated through a returned record")
	}
}

func TestUsersRepo_FindByRegistrationNumber(t *testing.T) {
	r := NewUsersRepo()
	ctx := context.Background()

	_, _ = r.Create(ctx, user.CreateParams{Email: "a@example.com", RegistrationNumber: "R-1"})
	_, _ = r.Create(ctx, user.CreateParams{Email: "b@example.com", RegistrationNumber: "R-1"})
	_, _ = r.Create(ctx, user.CreateParams{Email: "c@example.com", RegistrationNumber: "R-2"})

	got, err := r.FindByRegistrationNumber(ctx, "R-1")
	if err != nil {
		t.Fatalf("FindByRegistrationNumber: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
}

func TestUsersRepo_SetResetTokenLeavesPasswordAlone(t *testing.T) {
	r := NewUsersRepo()
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	u, _ := r.Create(ctx, user.CreateParams{Email: "dan@example.com", PasswordHash: strPtr("old")})
	stale := u

	// a password change lands after stale was read
	cur, _ := r.FindByID(ctx, u.ID)
	newHash := "changed"
	cur.PasswordHash = &newHash
	if err := r.Save(ctx, cur); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := r.SetResetToken(ctx, stale.ID, "digest", now.Add(time.Hour)); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}

	got, _ := r.FindByID(ctx, u.ID)
	if got.PasswordHash == nil || *got.PasswordHash != "changed" {
		t.Fatalf("password hash overwritten: %v", got.PasswordHash)
	}
	if got.ResetState(now) != user.PendingReset {
		t.Fatalf("expected pending reset, got %s", got.ResetState(now))
	}

	if err := r.SetResetToken(ctx, "missing", "digest", now); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

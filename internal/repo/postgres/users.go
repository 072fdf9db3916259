package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/memberhub/internal/domain/user"
	"github.com/geocoder89/memberhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, email, password_hash, name, phone_number, address,
	registration_number, reset_token_hash, reset_token_expires_at, created_at, updated_at`

type UsersRepo struct {
	db   DB
	prom *observability.Prom
}

func NewUsersRepo(db DB, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

func scanUser(row pgx.Row, u *user.User) error {
	return row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.PhoneNumber,
		&u.Address,
		&u.RegistrationNumber,
		&u.ResetTokenHash,
		&u.ResetTokenExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
}

func (r *UsersRepo) findOne(ctx context.Context, op, where string, args ...any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, args...), &u)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.find_by_email", `lower(email) = $1`, user.NormalizeEmail(email))
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	return r.findOne(ctx, "users.find_by_id", `id = $1`, id)
}

func (r *UsersRepo) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (user.User, error) {
	return r.findOne(ctx, "users.find_by_reset_token",
		`reset_token_hash = $1 AND reset_token_expires_at > $2`, tokenHash, now.UTC())
}

func (r *UsersRepo) FindByRegistrationNumber(ctx context.Context, number string) ([]user.User, error) {
	var rows pgx.Rows

	err := r.observe("users.find_by_registration_number", func() error {
		var qerr error
		rows, qerr = r.db.Query(ctx, `SELECT `+userColumns+` FROM users
			WHERE registration_number = $1
			ORDER BY created_at ASC, id ASC`, number)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []user.User{}
	for rows.Next() {
		var u user.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *UsersRepo) Create(ctx context.Context, p user.CreateParams) (user.User, error) {
	u := user.NewFromCreateParams(p)

	err := r.observe("users.create", func() error {
		_, err := r.db.Exec(ctx, `INSERT INTO users (
			id, email, password_hash, name, phone_number, address,
			registration_number, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.PhoneNumber, u.Address,
			u.RegistrationNumber, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrDuplicateEmail
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

// Save writes every mutable field. The token hash and its expiry always move
// together; the table's CHECK constraint rejects anything else.
func (r *UsersRepo) Save(ctx context.Context, u user.User) error {
	var tag pgconn.CommandTag

	err := r.observe("users.save", func() error {
		var err error
		tag, err = r.db.Exec(ctx, `UPDATE users SET
			email = $2,
			password_hash = $3,
			name = $4,
			phone_number = $5,
			address = $6,
			registration_number = $7,
			reset_token_hash = $8,
			reset_token_expires_at = $9,
			updated_at = NOW()
		WHERE id = $1`,
			u.ID, user.NormalizeEmail(u.Email), u.PasswordHash, u.Name, u.PhoneNumber, u.Address,
			u.RegistrationNumber, u.ResetTokenHash, u.ResetTokenExpiresAt,
		)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return user.ErrDuplicateEmail
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// SetResetToken touches only the token columns, so it cannot undo a password
// change committed since the caller read the row.
func (r *UsersRepo) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	var tag pgconn.CommandTag

	err := r.observe("users.set_reset_token", func() error {
		var err error
		tag, err = r.db.Exec(ctx, `UPDATE users SET
			reset_token_hash = $2,
			reset_token_expires_at = $3,
			updated_at = NOW()
		WHERE id = $1`, id, tokenHash, expiresAt.UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// ConsumeResetToken is a single conditional UPDATE: concurrent completions of
// the same token race on the row lock and only one sees a matching row.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (user.User, error) {
	var u user.User

	err := r.observe("users.consume_reset_token", func() error {
		return scanUser(r.db.QueryRow(ctx, `UPDATE users SET
			password_hash = $3,
			reset_token_hash = NULL,
			reset_token_expires_at = NULL,
			updated_at = NOW()
		WHERE reset_token_hash = $1
		  AND reset_token_expires_at > $2
		RETURNING `+userColumns, tokenHash, now.UTC(), newPasswordHash), &u)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

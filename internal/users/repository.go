package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clavis-iam/clavis-iam/internal/rbac"
)

const uniqueViolation = "23505"

const userColumns = `id, name, surname, email, password_hash, role, is_active, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for user accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Name, &user.Surname, &user.Email, &user.PasswordHash,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("users: scan user: %w", err)
	}
	return &user, nil
}

// FindByID fetches a user by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByEmail fetches a user by exact email. Emails are compared
// case-sensitively, as stored.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// Create inserts a new account. The unique index on email is the guard
// against concurrent duplicate registrations.
func (r *Repository) Create(ctx context.Context, user User) (*User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, surname, email, password_hash, role, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		user.Name, user.Surname, user.Email, user.PasswordHash, string(user.Role), user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("users: create user: %w", err)
	}
	return &user, nil
}

// UpdateProfile issues an explicit update of the mutable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, id int64, name, surname, email string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $2, surname = $3, email = $4, updated_at = NOW() WHERE id = $1`,
		id, name, surname, email)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("users: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetActive flips the account's active flag. Deactivation is the only
// deletion the system knows; identity rows are never hard-deleted.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("users: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetRole reassigns the account's role.
func (r *Repository) SetRole(ctx context.Context, id int64, role rbac.Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("users: set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Account resolves the authorization view of an account. It implements
// the directory port consumed by the session boundary and the evaluator.
func (r *Repository) Account(ctx context.Context, userID int64) (rbac.Account, error) {
	var account rbac.Account
	err := r.pool.QueryRow(ctx,
		`SELECT id, role, is_active FROM users WHERE id = $1`, userID,
	).Scan(&account.ID, &account.Role, &account.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Account{}, rbac.ErrUserNotFound
		}
		return rbac.Account{}, fmt.Errorf("users: account lookup: %w", err)
	}
	return account, nil
}

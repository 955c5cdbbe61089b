package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authsession/internal/user/domain"
)

const userColumns = `id, login_name, email, display_name, status, last_login_at, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByLoginName returns the user with the given login name, or nil if not found.
func (r *PostgresRepository) GetByLoginName(ctx context.Context, loginName string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE login_name = $1`, loginName)
}

// GetByEmail returns the user with the given email (case-insensitive), or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, login_name, email, display_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.LoginName, nullString(u.Email), nullString(u.DisplayName), string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// SetStatus enables or disables the account.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status domain.UserStatus, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	return err
}

// UpdateLastLogin stamps the user's last successful login.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var (
		u           domain.User
		email, name sql.NullString
		status      string
		lastLogin   sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.LoginName, &email, &name, &status, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Email = email.String
	u.DisplayName = name.String
	u.Status = domain.UserStatus(status)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

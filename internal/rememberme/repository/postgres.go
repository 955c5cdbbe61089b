package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authsession/internal/rememberme/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a remember-me token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByHash returns the token for the hash, or nil if not found.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RememberToken, error) {
	var (
		t          domain.RememberToken
		replacedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, created_at, expires_at, replaced_at FROM remember_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(&t.TokenHash, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &replacedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.ReplacedAt = nullTimeToPtr(replacedAt)
	return &t, nil
}

// Create persists a new token.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RememberToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO remember_tokens (token_hash, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		t.TokenHash, t.UserID, t.CreatedAt, t.ExpiresAt,
	)
	return err
}

// MarkReplaced sets replaced_at if it is not already set.
func (r *PostgresRepository) MarkReplaced(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE remember_tokens SET replaced_at = $2 WHERE token_hash = $1 AND replaced_at IS NULL`,
		tokenHash, at,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteByHash removes one token owned by userID.
func (r *PostgresRepository) DeleteByHash(ctx context.Context, userID, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM remember_tokens WHERE token_hash = $1 AND user_id = $2`, tokenHash, userID)
	return err
}

// DeleteByUser removes every token of the user, tombstones included.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM remember_tokens WHERE user_id = $1`, userID)
	return err
}

// DeleteExpired removes tokens past expiry and returns how many were deleted.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM remember_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

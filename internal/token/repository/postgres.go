package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authsession/internal/token/domain"
)

const tokenColumns = `id, token_hash, user_id, login_name, encrypted_secret, device_label, token_type, created_at, last_activity, last_check`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a login token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByHash returns the token with the given hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.LoginToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM login_tokens WHERE token_hash = $1`, tokenHash)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// ListByUser returns all tokens for the user, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.LoginToken, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tokenColumns+` FROM login_tokens WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.LoginToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Upsert inserts the token or rebinds the existing row with the same hash.
// The row id and created_at of an existing token are preserved.
func (r *PostgresRepository) Upsert(ctx context.Context, t *domain.LoginToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (token_hash) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			login_name = EXCLUDED.login_name,
			encrypted_secret = EXCLUDED.encrypted_secret,
			device_label = EXCLUDED.device_label,
			token_type = EXCLUDED.token_type,
			last_activity = EXCLUDED.last_activity,
			last_check = EXCLUDED.last_check`,
		t.ID, t.TokenHash, t.UserID, t.LoginName, t.EncryptedSecret, t.DeviceLabel, int(t.Type),
		t.CreatedAt, t.LastActivity, t.LastCheck,
	)
	return err
}

// UpdateActivity sets the token's last-activity timestamp.
func (r *PostgresRepository) UpdateActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE login_tokens SET last_activity = $2 WHERE id = $1`, id, at)
	return err
}

// UpdateLastCheck sets the time the token's secret was last verified against the directory.
func (r *PostgresRepository) UpdateLastCheck(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE login_tokens SET last_check = $2 WHERE id = $1`, id, at)
	return err
}

// Rehash moves the token to a new hash and re-sealed secret.
func (r *PostgresRepository) Rehash(ctx context.Context, id, tokenHash string, encryptedSecret []byte) error {
	_, err := r.db.ExecContext(ctx, `UPDATE login_tokens SET token_hash = $2, encrypted_secret = $3 WHERE id = $1`, id, tokenHash, encryptedSecret)
	return err
}

// DeleteByHash removes the token with the given hash. Missing rows are not an error.
func (r *PostgresRepository) DeleteByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM login_tokens WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteByID removes one token owned by userID.
func (r *PostgresRepository) DeleteByID(ctx context.Context, userID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM login_tokens WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

// DeleteByUser removes every token of the user.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM login_tokens WHERE user_id = $1`, userID)
	return err
}

// DeleteTemporaryOlderThan removes idle temporary tokens and returns how many were deleted.
func (r *PostgresRepository) DeleteTemporaryOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_tokens WHERE token_type = $1 AND last_activity < $2`,
		int(domain.TokenTypeTemporary), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(s scanner) (*domain.LoginToken, error) {
	var (
		t         domain.LoginToken
		tokenType int
	)
	if err := s.Scan(&t.ID, &t.TokenHash, &t.UserID, &t.LoginName, &t.EncryptedSecret, &t.DeviceLabel,
		&tokenType, &t.CreatedAt, &t.LastActivity, &t.LastCheck); err != nil {
		return nil, err
	}
	t.Type = domain.TokenType(tokenType)
	return &t, nil
}

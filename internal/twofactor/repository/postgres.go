package repository

import (
	"context"
	"database/sql"

	"authsession/internal/twofactor/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a second-factor repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListEnabledProviders returns provider names ordered by name. No rows is an empty list, not an error.
func (r *PostgresRepository) ListEnabledProviders(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT provider FROM two_factor_providers WHERE user_id = $1 AND enabled ORDER BY provider`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert persists the enrollment, replacing secret and enabled flag of an existing one.
func (r *PostgresRepository) Upsert(ctx context.Context, e *domain.Enrollment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO two_factor_providers (user_id, provider, secret, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, provider) DO UPDATE SET secret = EXCLUDED.secret, enabled = EXCLUDED.enabled`,
		e.UserID, e.Provider, e.Secret, e.Enabled, e.CreatedAt)
	return err
}

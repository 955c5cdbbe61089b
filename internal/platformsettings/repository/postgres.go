package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a platform settings repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetBool reads the named setting. Missing rows and unparseable values yield def.
func (r *PostgresRepository) GetBool(ctx context.Context, name string, def bool) (bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value_json FROM platform_settings WHERE key = $1`, name).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return def, nil
		}
		return def, err
	}
	v, err := parseBool(raw)
	if err != nil {
		return def, nil
	}
	return v, nil
}

// Set upserts the setting.
func (r *PostgresRepository) Set(ctx context.Context, name, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO platform_settings (key, value_json) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value_json = EXCLUDED.value_json`, name, value)
	return err
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), `"`)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no", "":
		return false, nil
	default:
		return false, strconv.ErrSyntax
	}
}

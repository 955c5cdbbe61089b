package repository

import (
	"context"
	"time"

	"authsession/internal/token/domain"
)

// Repository defines persistence for login tokens. Lookups are by token hash.
type Repository interface {
	GetByHash(ctx context.Context, tokenHash string) (*domain.LoginToken, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.LoginToken, error)
	// Upsert inserts t or, when a token with the same hash exists, rebinds it to t's user, secret and label.
	Upsert(ctx context.Context, t *domain.LoginToken) error
	UpdateActivity(ctx context.Context, id string, at time.Time) error
	UpdateLastCheck(ctx context.Context, id string, at time.Time) error
	// Rehash moves a token to a new hash and secret (session id regeneration).
	Rehash(ctx context.Context, id, tokenHash string, encryptedSecret []byte) error
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteByID(ctx context.Context, userID, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	// DeleteTemporaryOlderThan removes temporary tokens whose last activity is before the cutoff.
	DeleteTemporaryOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

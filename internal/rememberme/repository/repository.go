package repository

import (
	"context"
	"time"

	"authsession/internal/rememberme/domain"
)

// Repository defines persistence for remember-me tokens.
type Repository interface {
	GetByHash(ctx context.Context, tokenHash string) (*domain.RememberToken, error)
	Create(ctx context.Context, t *domain.RememberToken) error
	// MarkReplaced tombstones the token. It reports false if the token was already replaced.
	MarkReplaced(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	DeleteByHash(ctx context.Context, userID, tokenHash string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

package repository

import (
	"context"

	"authsession/internal/twofactor/domain"
)

// Repository defines persistence for second-factor enrollments.
type Repository interface {
	// ListEnabledProviders returns the names of the user's enabled providers.
	ListEnabledProviders(ctx context.Context, userID string) ([]string, error)
	// Upsert creates or replaces the user's enrollment for e.Provider.
	Upsert(ctx context.Context, e *domain.Enrollment) error
}

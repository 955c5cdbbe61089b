package repository

import (
	"context"

	"authsession/internal/policy/domain"
)

// Repository defines persistence for enforcement policies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Policy, error)
	ListEnabled(ctx context.Context) ([]*domain.Policy, error)
	Create(ctx context.Context, p *domain.Policy) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

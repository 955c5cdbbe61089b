package domain

import "context"

// Account is a resolved user as seen by session management. Implementations are
// read-only apart from MarkLoggedInNow.
type Account interface {
	ID() string
	LoginName() string
	IsEnabled() bool
	// MarkLoggedInNow records a successful interactive login.
	MarkLoggedInNow(ctx context.Context) error
}

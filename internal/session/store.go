// Package session provides the per-client key/value bag that carries login state
// between requests, with Redis and in-memory backends.
package session

import (
	"context"

	"authsession/internal/security"
)

// Keys written by the session manager.
const (
	KeyUserID          = "user_id"
	KeyLoginName       = "loginname"
	KeyLastLoginCheck  = "last_login_check"
	KeyLastTokenUpdate = "last_token_update"
	KeyAppPassword     = "app_password"
)

// idLength is the length of generated session ids.
const idLength = 40

// Store is one client's session bag. A Store is used by a single request at a time;
// concurrent requests for the same client open their own Store over the same id.
type Store interface {
	ID() string
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Clear removes every key but keeps the id.
	Clear(ctx context.Context) error
	// RegenerateID moves the bag to a fresh id, keeping its contents.
	RegenerateID(ctx context.Context) error
}

// Backend opens session bags by id.
type Backend interface {
	// Open returns the bag for id. An empty or unknown id yields an empty bag with a new id.
	Open(ctx context.Context, id string) (Store, error)
}

func newID() (string, error) {
	return security.GenerateToken(idLength)
}

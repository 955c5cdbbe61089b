package domain

import "time"

// RememberToken is a persistent-login cookie token. Only its hash is stored.
// A consumed token is kept with ReplacedAt set so that replay can be detected.
type RememberToken struct {
	TokenHash  string
	UserID     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ReplacedAt *time.Time
}

// Replaced reports whether the token has already been exchanged for a new one.
func (t *RememberToken) Replaced() bool {
	return t.ReplacedAt != nil
}

// Expired reports whether the token is past its expiry at now.
func (t *RememberToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

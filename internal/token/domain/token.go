package domain

import "time"

// TokenType distinguishes session-bound tokens from long-lived app passwords.
type TokenType int

const (
	// TokenTypeTemporary is bound to a browser session id and expires when idle.
	TokenTypeTemporary TokenType = 0
	// TokenTypePermanent is an app password issued to a sync or API client.
	TokenTypePermanent TokenType = 1
)

// LoginToken binds one device or client to a user. The token value itself is never
// stored; TokenHash is the SHA-256 of the value (the session id for temporary tokens).
type LoginToken struct {
	ID              string
	TokenHash       string
	UserID          string
	LoginName       string
	EncryptedSecret []byte // nil for passwordless tokens
	DeviceLabel     string
	Type            TokenType
	CreatedAt       time.Time
	LastActivity    time.Time
	LastCheck       time.Time
}

// Passwordless reports whether the token carries no recoverable secret.
func (t *LoginToken) Passwordless() bool {
	return len(t.EncryptedSecret) == 0
}

package domain

import "time"

// Identity represents a user's credential binding. Only local password identities
// participate in credential verification.
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string
	PasswordHash string // empty if not local
	CreatedAt    time.Time
}

// IdentityProvider names where an identity's credential lives.
type IdentityProvider string

const (
	// IdentityProviderLocal identities carry a bcrypt password hash.
	IdentityProviderLocal IdentityProvider = "local"
	// IdentityProviderOIDC identities are linked to an external provider and have no password;
	// the directory rejects password checks for accounts that only have one of these.
	IdentityProviderOIDC IdentityProvider = "oidc"
)

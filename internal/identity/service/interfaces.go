package service

import (
	"context"

	identitydomain "authsession/internal/identity/domain"
	tokendomain "authsession/internal/token/domain"
)

// Directory resolves users and verifies credentials.
type Directory interface {
	// Resolve returns the account for uid, or nil if it does not exist.
	Resolve(ctx context.Context, uid string) (identitydomain.Account, error)
	// VerifyCredentials returns the account when secret is valid for loginName, or nil.
	// Disabled accounts are returned; the caller decides.
	VerifyCredentials(ctx context.Context, loginName, secret string) (identitydomain.Account, error)
}

// TokenStore is the login token store. Lookups of unknown values fail with ErrInvalidToken.
type TokenStore interface {
	FindBySessionID(ctx context.Context, sessionID string) (*tokendomain.LoginToken, error)
	FindByToken(ctx context.Context, value string) (*tokendomain.LoginToken, error)
	Validate(ctx context.Context, value string) (*tokendomain.LoginToken, error)
	IssueOrRefresh(ctx context.Context, sessionID, uid, loginName, secret, deviceLabel string) (*tokendomain.LoginToken, error)
	// RecoverSecret fails with ErrPasswordlessToken when the token has no secret.
	RecoverSecret(t *tokendomain.LoginToken, presentedValue string) (string, error)
	Touch(ctx context.Context, t *tokendomain.LoginToken) error
	MarkChecked(ctx context.Context, t *tokendomain.LoginToken) error
	Invalidate(ctx context.Context, value string) error
	Rotate(ctx context.Context, oldValue, newValue string) error
}

// RememberTokens manages single-use remember-me cookie tokens.
type RememberTokens interface {
	// Consume exchanges value for a new token value.
	Consume(ctx context.Context, uid, value string) (string, error)
	Revoke(ctx context.Context, uid, value string) error
}

// Config answers enforcement questions.
type Config interface {
	SystemFlag(ctx context.Context, name string, def bool) (bool, error)
	IsTwoFactorEnforced(ctx context.Context, loginName string) (bool, error)
}

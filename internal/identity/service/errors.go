package service

import (
	"errors"

	"authsession/internal/rememberme"
	"authsession/internal/token"
)

// Sentinel errors for the session manager; transports map them to status codes.
var (
	// ErrAuthentication means the credentials were rejected. It never says whether the account exists.
	ErrAuthentication = errors.New("authentication failed")
	// ErrLoginDisabled means the credentials were valid but the account is disabled.
	ErrLoginDisabled = errors.New("login disabled for account")
	// ErrPasswordLoginForbidden means the account may only authenticate non-interactive clients
	// with an app password, because token auth or a second factor is enforced.
	ErrPasswordLoginForbidden = errors.New("password login forbidden; use an app password")

	// ErrInvalidToken is the token store's error for unknown, expired or undecryptable tokens.
	ErrInvalidToken = token.ErrInvalidToken
	// ErrPasswordlessToken is the token store's error for tokens without a stored secret.
	ErrPasswordlessToken = token.ErrPasswordlessToken
	// ErrInvalidRememberToken means a remember-me token is unknown, foreign or expired.
	ErrInvalidRememberToken = rememberme.ErrInvalidToken
	// ErrTokenReuse means a consumed remember-me token was presented again.
	ErrTokenReuse = rememberme.ErrTokenReuse
)

// Package directory resolves users and verifies their local passwords.
package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"authsession/internal/clock"
	identitydomain "authsession/internal/identity/domain"
	"authsession/internal/security"
	userdomain "authsession/internal/user/domain"
)

// ErrNoLocalIdentity is returned by SetPassword for users without a local password identity.
var ErrNoLocalIdentity = errors.New("directory: user has no local identity")

// UserRepo is the minimal user repository needed by the directory.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByLoginName(ctx context.Context, loginName string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// IdentityRepo is the minimal identity repository needed by the directory.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
}

// Directory is the user directory backed by the users and identities tables.
type Directory struct {
	users      UserRepo
	identities IdentityRepo
	hasher     *security.Hasher
	clock      clock.Clock
}

// New returns a Directory.
func New(users UserRepo, identities IdentityRepo, hasher *security.Hasher, clk clock.Clock) *Directory {
	if clk == nil {
		clk = clock.System{}
	}
	return &Directory{users: users, identities: identities, hasher: hasher, clock: clk}
}

// Resolve returns the account for uid, or nil if no such user exists.
func (d *Directory) Resolve(ctx context.Context, uid string) (identitydomain.Account, error) {
	if uid == "" {
		return nil, nil
	}
	u, err := d.users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	return d.account(u), nil
}

// VerifyCredentials checks secret against the local password of the account named by
// loginName (login name, e-mail address or user id). It returns nil when the account is
// unknown or the password does not match; disabled accounts are returned so the caller
// can tell them apart.
func (d *Directory) VerifyCredentials(ctx context.Context, loginName, secret string) (identitydomain.Account, error) {
	u, err := d.LookupUser(ctx, loginName)
	if err != nil {
		return nil, err
	}
	if u == nil || secret == "" {
		_ = d.hasher.CompareDummy([]byte(secret))
		return nil, nil
	}
	ident, err := d.identities.GetByUserAndProvider(ctx, u.ID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		_ = d.hasher.CompareDummy([]byte(secret))
		return nil, nil
	}
	if err := d.hasher.Compare(ident.PasswordHash, []byte(secret)); err != nil {
		return nil, nil
	}
	return d.account(u), nil
}

// SetPassword replaces the user's local password hash.
func (d *Directory) SetPassword(ctx context.Context, uid, password string) error {
	ident, err := d.identities.GetByUserAndProvider(ctx, uid, identitydomain.IdentityProviderLocal)
	if err != nil {
		return err
	}
	if ident == nil {
		return ErrNoLocalIdentity
	}
	hash, err := d.hasher.Hash([]byte(password))
	if err != nil {
		return err
	}
	return d.identities.UpdatePasswordHash(ctx, ident.ID, hash)
}

// LookupUser resolves the name a client logs in with: login name, then e-mail address
// (case-insensitive), then user id. Returns nil when nothing matches.
func (d *Directory) LookupUser(ctx context.Context, loginName string) (*userdomain.User, error) {
	loginName = strings.TrimSpace(loginName)
	if loginName == "" {
		return nil, nil
	}
	u, err := d.users.GetByLoginName(ctx, loginName)
	if err != nil || u != nil {
		return u, err
	}
	if strings.Contains(loginName, "@") {
		u, err = d.users.GetByEmail(ctx, strings.ToLower(loginName))
		if err != nil || u != nil {
			return u, err
		}
	}
	return d.users.GetByID(ctx, loginName)
}

func (d *Directory) account(u *userdomain.User) *Account {
	return &Account{user: u, users: d.users, clock: d.clock}
}

// Account is the directory's implementation of identitydomain.Account.
type Account struct {
	user  *userdomain.User
	users UserRepo
	clock clock.Clock
}

func (a *Account) ID() string        { return a.user.ID }
func (a *Account) LoginName() string { return a.user.LoginName }
func (a *Account) IsEnabled() bool   { return a.user.Enabled() }

// User returns the underlying record.
func (a *Account) User() *userdomain.User { return a.user }

// MarkLoggedInNow stores the current time as the user's last login.
func (a *Account) MarkLoggedInNow(ctx context.Context) error {
	now := a.clock.Now()
	if err := a.users.UpdateLastLogin(ctx, a.user.ID, now); err != nil {
		return err
	}
	a.user.LastLoginAt = &now
	return nil
}

// Package policy decides when password authentication must be refused in favour of
// tokens or a second factor.
package policy

import (
	"context"
	"fmt"

	platformdomain "authsession/internal/platformsettings/domain"
	"authsession/internal/policy/engine"
	userdomain "authsession/internal/user/domain"
)

// SettingsReader reads platform-wide boolean settings.
type SettingsReader interface {
	GetBool(ctx context.Context, name string, def bool) (bool, error)
}

// UserResolver resolves the name a client logs in with to a user. It must accept the same
// names as the credential check (the directory implements both).
type UserResolver interface {
	LookupUser(ctx context.Context, loginName string) (*userdomain.User, error)
}

// FactorLister lists a user's enabled second-factor providers.
type FactorLister interface {
	ListEnabledProviders(ctx context.Context, userID string) ([]string, error)
}

// Enforcement answers the session manager's enforcement questions from platform settings,
// second-factor enrollments and the OPA policy.
type Enforcement struct {
	settings  SettingsReader
	users     UserResolver
	factors   FactorLister
	evaluator engine.Evaluator
	defaults  map[string]bool
}

// NewEnforcement returns an Enforcement. defaults supplies values for flags missing from the
// settings table (e.g. token_auth_enforced from config).
func NewEnforcement(settings SettingsReader, users UserResolver, factors FactorLister, evaluator engine.Evaluator, defaults map[string]bool) *Enforcement {
	return &Enforcement{
		settings:  settings,
		users:     users,
		factors:   factors,
		evaluator: evaluator,
		defaults:  defaults,
	}
}

// SystemFlag returns the named platform flag. A configured default overrides def.
func (e *Enforcement) SystemFlag(ctx context.Context, name string, def bool) (bool, error) {
	if d, ok := e.defaults[name]; ok {
		def = d
	}
	return e.settings.GetBool(ctx, name, def)
}

// IsTwoFactorEnforced reports whether the account behind loginName must use a second factor
// (and therefore may not fall back to its plain password). Unknown accounts are not enforced.
func (e *Enforcement) IsTwoFactorEnforced(ctx context.Context, loginName string) (bool, error) {
	u, err := e.users.LookupUser(ctx, loginName)
	if err != nil {
		return false, fmt.Errorf("policy: resolve user: %w", err)
	}
	if u == nil {
		return false, nil
	}
	providers, err := e.factors.ListEnabledProviders(ctx, u.ID)
	if err != nil {
		return false, fmt.Errorf("policy: list providers: %w", err)
	}
	platform, err := e.SystemFlag(ctx, platformdomain.TwoFactorEnforced, false)
	if err != nil {
		return false, fmt.Errorf("policy: read platform flag: %w", err)
	}
	return e.evaluator.TwoFactorEnforced(ctx, engine.TwoFactorInput{
		UserID:           u.ID,
		LoginName:        u.LoginName,
		Providers:        providers,
		PlatformEnforced: platform,
	})
}

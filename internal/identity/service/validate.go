package service

import (
	"context"
	"errors"

	"authsession/internal/session"
	teldomain "authsession/internal/telemetry/domain"
	tokendomain "authsession/internal/token/domain"
)

// validateSession re-checks the credential behind a token-backed session. Sessions without a
// bound token are left alone, except sessions opened with an app password that has since
// been revoked, which are logged out. The secret is re-verified at most once per LoginCheckInterval and
// a failed check logs the session out. A due check on a passwordless token only stamps the
// check time. Otherwise the token's activity is refreshed at most once per TokenUpdateInterval.
func (m *Manager) validateSession(ctx context.Context) error {
	tok, value, err := m.sessionToken(ctx)
	if errors.Is(err, ErrInvalidToken) {
		if value != m.store.ID() {
			return m.logout(ctx, LogoutOptions{}, teldomain.EventForcedLogout, "app password revoked")
		}
		return nil
	}
	if err != nil {
		return err
	}

	now := m.deps.Clock.Now()
	last, ok, err := m.readStamp(ctx, session.KeyLastLoginCheck)
	if err != nil {
		return err
	}
	if !ok || now.Sub(last) >= m.deps.LoginCheckInterval {
		valid, err := m.recheckCredentials(ctx, tok, value)
		if errors.Is(err, ErrPasswordlessToken) {
			return m.stamp(ctx, session.KeyLastLoginCheck, now)
		}
		if err != nil {
			return err
		}
		if !valid {
			return m.logout(ctx, LogoutOptions{}, teldomain.EventForcedLogout, "credential check failed")
		}
		if err := m.stamp(ctx, session.KeyLastLoginCheck, now); err != nil {
			return err
		}
	}

	last, ok, err = m.readStamp(ctx, session.KeyLastTokenUpdate)
	if err != nil {
		return err
	}
	if ok && now.Sub(last) < m.deps.TokenUpdateInterval {
		return nil
	}
	if err := m.deps.Tokens.Touch(ctx, tok); err != nil {
		return err
	}
	return m.stamp(ctx, session.KeyLastTokenUpdate, now)
}

// sessionToken returns the token backing the session: the app password when the session was
// opened with one, otherwise the token bound to the session id.
func (m *Manager) sessionToken(ctx context.Context) (*tokendomain.LoginToken, string, error) {
	appPassword, ok, err := m.store.Get(ctx, session.KeyAppPassword)
	if err != nil {
		return nil, "", err
	}
	if ok && appPassword != "" {
		tok, err := m.deps.Tokens.FindByToken(ctx, appPassword)
		return tok, appPassword, err
	}
	id := m.store.ID()
	tok, err := m.deps.Tokens.FindBySessionID(ctx, id)
	return tok, id, err
}

// recheckCredentials reports whether the token's secret still verifies for the active user.
// A passwordless token has nothing to verify and yields ErrPasswordlessToken.
func (m *Manager) recheckCredentials(ctx context.Context, tok *tokendomain.LoginToken, value string) (bool, error) {
	secret, err := m.deps.Tokens.RecoverSecret(tok, value)
	if errors.Is(err, ErrPasswordlessToken) {
		return false, err
	}
	if err != nil {
		return false, nil
	}
	acc, err := m.deps.Directory.VerifyCredentials(ctx, tok.LoginName, secret)
	if err != nil {
		return false, err
	}
	if acc == nil || m.activeUser == nil || acc.ID() != m.activeUser.ID() {
		return false, nil
	}
	return acc.IsEnabled() && m.activeUser.IsEnabled(), nil
}

package service

import (
	"context"
	"errors"
	"strings"

	identitydomain "authsession/internal/identity/domain"
	platformdomain "authsession/internal/platformsettings/domain"
	"authsession/internal/session"
	teldomain "authsession/internal/telemetry/domain"
	tokendomain "authsession/internal/token/domain"
)

// ClientInfo describes the client performing a login.
type ClientInfo struct {
	// UserAgent becomes the device label of issued tokens.
	UserAgent string
	// SupportsCookies is true when the client keeps the session cookie, so a session token is worth issuing.
	SupportsCookies bool
}

// Login authenticates with a login name (or e-mail, or uid) and password. When password is a
// valid login token issued to loginName, the token's user is logged in instead.
// The session id is always regenerated first; on failure no session keys are written.
func (m *Manager) Login(ctx context.Context, loginName, password string) (identitydomain.Account, error) {
	if err := m.store.RegenerateID(ctx); err != nil {
		return nil, err
	}
	if loginName == "" || password == "" {
		m.emit(ctx, teldomain.EventLoginFailure, "", loginName, teldomain.SourcePassword, "empty credentials")
		return nil, ErrAuthentication
	}

	tok, err := m.deps.Tokens.Validate(ctx, password)
	switch {
	case err == nil && tok.LoginName == loginName:
		return m.loginWithToken(ctx, tok, password, teldomain.SourcePassword)
	case err != nil && !errors.Is(err, ErrInvalidToken):
		return nil, err
	}
	return m.loginWithPassword(ctx, loginName, password)
}

func (m *Manager) loginWithPassword(ctx context.Context, loginName, password string) (identitydomain.Account, error) {
	acc, err := m.deps.Directory.VerifyCredentials(ctx, loginName, password)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		m.emit(ctx, teldomain.EventLoginFailure, "", loginName, teldomain.SourcePassword, "bad credentials")
		return nil, ErrAuthentication
	}
	if err := m.completeLogin(ctx, acc, loginName, teldomain.SourcePassword); err != nil {
		return nil, err
	}
	return acc, nil
}

// loginWithToken logs in the user a validated token is bound to.
func (m *Manager) loginWithToken(ctx context.Context, tok *tokendomain.LoginToken, value, source string) (identitydomain.Account, error) {
	acc, err := m.deps.Directory.Resolve(ctx, tok.UserID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		m.emit(ctx, teldomain.EventLoginFailure, tok.UserID, tok.LoginName, source, "token user not found")
		return nil, ErrInvalidToken
	}
	if !acc.IsEnabled() {
		m.emit(ctx, teldomain.EventLoginDisabled, acc.ID(), tok.LoginName, source, "")
		return nil, ErrLoginDisabled
	}
	ok, err := m.checkTokenCredentials(ctx, tok, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.emit(ctx, teldomain.EventLoginFailure, acc.ID(), tok.LoginName, source, "token credentials no longer valid")
		return nil, ErrInvalidToken
	}
	if err := m.completeLogin(ctx, acc, tok.LoginName, source); err != nil {
		return nil, err
	}
	if err := m.deps.Tokens.Touch(ctx, tok); err != nil {
		return nil, err
	}
	return acc, nil
}

// checkTokenCredentials re-verifies the secret bound to a token once per login check interval.
// A token whose secret no longer verifies is invalidated.
func (m *Manager) checkTokenCredentials(ctx context.Context, tok *tokendomain.LoginToken, value string) (bool, error) {
	if m.deps.Clock.Now().Sub(tok.LastCheck) < m.deps.LoginCheckInterval {
		return true, nil
	}
	secret, err := m.deps.Tokens.RecoverSecret(tok, value)
	if errors.Is(err, ErrPasswordlessToken) {
		return true, m.deps.Tokens.MarkChecked(ctx, tok)
	}
	if err != nil {
		return false, nil
	}
	acc, err := m.deps.Directory.VerifyCredentials(ctx, tok.LoginName, secret)
	if err != nil {
		return false, err
	}
	if acc == nil {
		if err := m.deps.Tokens.Invalidate(ctx, value); err != nil {
			return false, err
		}
		return false, nil
	}
	if !acc.IsEnabled() {
		return false, nil
	}
	return true, m.deps.Tokens.MarkChecked(ctx, tok)
}

// completeLogin writes the session keys for an enabled account.
func (m *Manager) completeLogin(ctx context.Context, acc identitydomain.Account, loginName, source string) error {
	if !acc.IsEnabled() {
		m.emit(ctx, teldomain.EventLoginDisabled, acc.ID(), loginName, source, "")
		return ErrLoginDisabled
	}
	if err := m.SetUser(ctx, acc); err != nil {
		return err
	}
	if err := m.setLoginName(ctx, loginName); err != nil {
		return err
	}
	if err := m.stamp(ctx, session.KeyLastLoginCheck, m.deps.Clock.Now()); err != nil {
		return err
	}
	if source == teldomain.SourceToken {
		m.emit(ctx, teldomain.EventTokenLogin, acc.ID(), loginName, source, "")
		return nil
	}
	// A password login replaces any app password the session was opened with; callers that
	// authenticated with one set it again afterwards.
	if err := m.store.Remove(ctx, session.KeyAppPassword); err != nil {
		return err
	}
	if err := acc.MarkLoggedInNow(ctx); err != nil {
		return err
	}
	m.emit(ctx, teldomain.EventLoginSuccess, acc.ID(), loginName, source, "")
	return nil
}

// LogClientIn authenticates a non-interactive client (WebDAV, sync, API). The password is tried
// as an app password first. Otherwise a plaintext password is only accepted when neither token
// auth is enforced platform-wide nor a second factor is enforced for the account.
func (m *Manager) LogClientIn(ctx context.Context, loginName, password string, client ClientInfo) (identitydomain.Account, error) {
	isToken, err := m.isTokenPassword(ctx, password)
	if err != nil {
		return nil, err
	}
	if !isToken {
		enforced, err := m.deps.Config.SystemFlag(ctx, platformdomain.TokenAuthEnforced, false)
		if err != nil {
			return nil, err
		}
		if enforced {
			m.emit(ctx, teldomain.EventLoginRefused, "", loginName, teldomain.SourceClient, "token auth enforced")
			return nil, ErrPasswordLoginForbidden
		}
		enforced, err = m.deps.Config.IsTwoFactorEnforced(ctx, loginName)
		if err != nil {
			return nil, err
		}
		if enforced {
			m.emit(ctx, teldomain.EventLoginRefused, "", loginName, teldomain.SourceClient, "two-factor enforced")
			return nil, ErrPasswordLoginForbidden
		}
	}

	acc, err := m.Login(ctx, loginName, password)
	if err != nil {
		return nil, err
	}
	if isToken {
		if err := m.store.Set(ctx, session.KeyAppPassword, password); err != nil {
			return nil, err
		}
		return acc, nil
	}
	if client.SupportsCookies {
		if err := m.CreateSessionToken(ctx, acc.ID(), loginName, password, client.UserAgent); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (m *Manager) isTokenPassword(ctx context.Context, password string) (bool, error) {
	if password == "" {
		return false, nil
	}
	_, err := m.deps.Tokens.Validate(ctx, password)
	if errors.Is(err, ErrInvalidToken) {
		return false, nil
	}
	return err == nil, err
}

// LoginWithCookie logs uid in with a remember-me token. The token is single-use: the
// returned value must replace the client's cookie. Only the user id is written to the session.
func (m *Manager) LoginWithCookie(ctx context.Context, uid, rememberToken string) (string, error) {
	oldSessionID := m.store.ID()
	if err := m.store.RegenerateID(ctx); err != nil {
		return "", err
	}
	acc, err := m.deps.Directory.Resolve(ctx, uid)
	if err != nil {
		return "", err
	}
	if acc == nil {
		m.emit(ctx, teldomain.EventLoginFailure, uid, "", teldomain.SourceCookie, "unknown user")
		return "", ErrAuthentication
	}
	if !acc.IsEnabled() {
		m.emit(ctx, teldomain.EventLoginDisabled, uid, "", teldomain.SourceCookie, "")
		return "", ErrLoginDisabled
	}
	next, err := m.deps.Remember.Consume(ctx, uid, rememberToken)
	switch {
	case errors.Is(err, ErrTokenReuse):
		m.emit(ctx, teldomain.EventCookieReuse, uid, "", teldomain.SourceCookie, "")
		return "", err
	case errors.Is(err, ErrInvalidRememberToken):
		m.emit(ctx, teldomain.EventLoginFailure, uid, "", teldomain.SourceCookie, "bad token")
		return "", ErrAuthentication
	case err != nil:
		return "", err
	}

	// A session token bound to the previous id follows the session.
	if err := m.deps.Tokens.Rotate(ctx, oldSessionID, m.store.ID()); err != nil && !errors.Is(err, ErrInvalidToken) {
		return "", err
	}
	if err := m.SetUser(ctx, acc); err != nil {
		return "", err
	}
	if err := acc.MarkLoggedInNow(ctx); err != nil {
		return "", err
	}
	m.emit(ctx, teldomain.EventCookieLogin, uid, "", teldomain.SourceCookie, "")
	return next, nil
}

// TryTokenLogin authenticates with an "Authorization: token <value>" or "Bearer <value>" header.
// A missing or differently-schemed header returns (nil, nil).
func (m *Manager) TryTokenLogin(ctx context.Context, authorization string) (identitydomain.Account, error) {
	value, ok := parseTokenHeader(authorization)
	if !ok {
		return nil, nil
	}
	tok, err := m.deps.Tokens.Validate(ctx, value)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			m.emit(ctx, teldomain.EventLoginFailure, "", "", teldomain.SourceToken, "invalid token")
		}
		return nil, err
	}
	acc, err := m.loginWithToken(ctx, tok, value, teldomain.SourceToken)
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, session.KeyAppPassword, value); err != nil {
		return nil, err
	}
	return acc, nil
}

func parseTokenHeader(h string) (string, bool) {
	h = strings.TrimSpace(h)
	for _, scheme := range []string{"token ", "bearer "} {
		if len(h) > len(scheme) && strings.EqualFold(h[:len(scheme)], scheme) {
			v := strings.TrimSpace(h[len(scheme):])
			return v, v != ""
		}
	}
	return "", false
}

// CreateSessionToken binds the current session id to uid with a login token, so the session can
// be re-validated and survive as a durable credential. When password is itself a login token,
// the secret stored with that token is bound instead.
func (m *Manager) CreateSessionToken(ctx context.Context, uid, loginName, password, userAgent string) error {
	acc, err := m.deps.Directory.Resolve(ctx, uid)
	if err != nil {
		return err
	}
	if acc == nil {
		return ErrAuthentication
	}
	secret, err := m.resolveSecret(ctx, password)
	if err != nil {
		return err
	}
	if userAgent == "" {
		userAgent = unknownDevice
	}
	if _, err := m.deps.Tokens.IssueOrRefresh(ctx, m.store.ID(), uid, loginName, secret, userAgent); err != nil {
		return err
	}
	m.emit(ctx, teldomain.EventTokenIssued, uid, loginName, teldomain.SourceSession, "")
	return nil
}

// resolveSecret returns the secret to store for password: password itself, or the secret bound
// to it when it is a login token. A passwordless token yields an empty secret.
func (m *Manager) resolveSecret(ctx context.Context, password string) (string, error) {
	tok, err := m.deps.Tokens.FindByToken(ctx, password)
	if errors.Is(err, ErrInvalidToken) {
		return password, nil
	}
	if err != nil {
		return "", err
	}
	secret, err := m.deps.Tokens.RecoverSecret(tok, password)
	if errors.Is(err, ErrPasswordlessToken) {
		return "", nil
	}
	return secret, err
}

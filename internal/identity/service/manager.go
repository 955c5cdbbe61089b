// Package service implements the per-request session manager: password, cookie and token
// login, periodic re-validation of long-lived sessions, and logout.
package service

import (
	"context"
	"log"
	"strconv"
	"time"

	"authsession/internal/clock"
	identitydomain "authsession/internal/identity/domain"
	"authsession/internal/session"
	"authsession/internal/telemetry"
	teldomain "authsession/internal/telemetry/domain"
)

const (
	// DefaultLoginCheckInterval is how long a session may go without re-verifying its token's secret.
	DefaultLoginCheckInterval = 5 * time.Minute
	// DefaultTokenUpdateInterval is the minimum spacing between token liveness refreshes.
	DefaultTokenUpdateInterval = 60 * time.Second

	unknownDevice = "unknown browser"
)

// Deps are the collaborators shared by every Manager.
type Deps struct {
	Directory Directory
	Tokens    TokenStore
	Remember  RememberTokens
	Config    Config
	Clock     clock.Clock
	Events    telemetry.EventEmitter

	LoginCheckInterval  time.Duration
	TokenUpdateInterval time.Duration
}

// Manager resolves and changes the authenticated user of one client session. A Manager
// serves a single request and is not safe for concurrent use; concurrent requests of the
// same client each get their own Manager over the same session id.
type Manager struct {
	store session.Store
	deps  Deps

	activeUser identitydomain.Account
}

// NewManager returns a Manager over store.
func NewManager(store session.Store, deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.LoginCheckInterval <= 0 {
		deps.LoginCheckInterval = DefaultLoginCheckInterval
	}
	if deps.TokenUpdateInterval <= 0 {
		deps.TokenUpdateInterval = DefaultTokenUpdateInterval
	}
	return &Manager{store: store, deps: deps}
}

// Session returns the backing session bag.
func (m *Manager) Session() session.Store { return m.store }

// SetSession switches the backing session bag and forgets the resolved user.
func (m *Manager) SetSession(store session.Store) {
	m.store = store
	m.activeUser = nil
}

// SetUser makes acc the session's user without verifying anything. A nil acc removes the user.
// For trusted internal callers only.
func (m *Manager) SetUser(ctx context.Context, acc identitydomain.Account) error {
	if acc == nil {
		if err := m.store.Remove(ctx, session.KeyUserID); err != nil {
			return err
		}
	} else if err := m.store.Set(ctx, session.KeyUserID, acc.ID()); err != nil {
		return err
	}
	m.activeUser = acc
	return nil
}

func (m *Manager) setLoginName(ctx context.Context, loginName string) error {
	if loginName == "" {
		return m.store.Remove(ctx, session.KeyLoginName)
	}
	return m.store.Set(ctx, session.KeyLoginName, loginName)
}

// GetUser returns the session's user, or nil when nobody is logged in. The first call
// resolves the user from the session and re-validates it; later calls return the cached handle.
func (m *Manager) GetUser(ctx context.Context) (identitydomain.Account, error) {
	if m.activeUser != nil {
		return m.activeUser, nil
	}
	uid, ok, err := m.store.Get(ctx, session.KeyUserID)
	if err != nil || !ok || uid == "" {
		return nil, err
	}
	acc, err := m.deps.Directory.Resolve(ctx, uid)
	if err != nil || acc == nil {
		return nil, err
	}
	m.activeUser = acc
	if err := m.validateSession(ctx); err != nil {
		return nil, err
	}
	return m.activeUser, nil
}

// IsLoggedIn reports whether GetUser resolves a user.
func (m *Manager) IsLoggedIn(ctx context.Context) (bool, error) {
	acc, err := m.GetUser(ctx)
	return acc != nil, err
}

// LoginName returns the name the user logged in with, falling back to the user id.
func (m *Manager) LoginName(ctx context.Context) (string, error) {
	name, ok, err := m.store.Get(ctx, session.KeyLoginName)
	if err != nil || ok {
		return name, err
	}
	uid, _, err := m.store.Get(ctx, session.KeyUserID)
	return uid, err
}

// LogoutOptions carries client state to revoke alongside the session.
type LogoutOptions struct {
	// RememberToken is the client's remember-me cookie value, if any.
	RememberToken string
}

// Logout ends the session: the session's login token is invalidated, the bag is cleared and
// moved to a new id. Calling Logout on a session without a user only clears the bag.
func (m *Manager) Logout(ctx context.Context, opts LogoutOptions) error {
	return m.logout(ctx, opts, teldomain.EventLogout, "")
}

func (m *Manager) logout(ctx context.Context, opts LogoutOptions, eventType, reason string) error {
	uid := ""
	if m.activeUser != nil {
		uid = m.activeUser.ID()
	} else {
		v, _, err := m.store.Get(ctx, session.KeyUserID)
		if err != nil {
			return err
		}
		uid = v
	}

	if err := m.deps.Tokens.Invalidate(ctx, m.store.ID()); err != nil {
		log.Printf("session: invalidate session token: %v", err)
	}
	if uid != "" && opts.RememberToken != "" && m.deps.Remember != nil {
		if err := m.deps.Remember.Revoke(ctx, uid, opts.RememberToken); err != nil {
			log.Printf("session: revoke remember-me token: %v", err)
		}
	}
	m.activeUser = nil
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	if uid == "" {
		return nil
	}
	if err := m.store.RegenerateID(ctx); err != nil {
		return err
	}
	m.emit(ctx, eventType, uid, "", teldomain.SourceSession, reason)
	return nil
}

func (m *Manager) emit(ctx context.Context, eventType, uid, loginName, source, reason string) {
	telemetry.EmitAsync(m.deps.Events, ctx, &teldomain.Event{
		Type:      eventType,
		UserID:    uid,
		LoginName: loginName,
		Source:    source,
		Reason:    reason,
		CreatedAt: m.deps.Clock.Now(),
	})
}

func (m *Manager) stamp(ctx context.Context, key string, at time.Time) error {
	return m.store.Set(ctx, key, strconv.FormatInt(at.Unix(), 10))
}

// readStamp returns the timestamp stored under key; ok is false when it is absent or malformed.
func (m *Manager) readStamp(ctx context.Context, key string) (time.Time, bool, error) {
	v, ok, err := m.store.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(sec, 0).UTC(), true, nil
}

package service

import (
	"context"
	"time"

	"authsession/internal/clock"
	identitydomain "authsession/internal/identity/domain"
	"authsession/internal/session"
	tokendomain "authsession/internal/token/domain"
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAccount struct {
	id         string
	loginName  string
	enabled    bool
	loginMarks int
}

func (a *fakeAccount) ID() string        { return a.id }
func (a *fakeAccount) LoginName() string { return a.loginName }
func (a *fakeAccount) IsEnabled() bool   { return a.enabled }
func (a *fakeAccount) MarkLoggedInNow(ctx context.Context) error {
	a.loginMarks++
	return nil
}

type fakeDirectory struct {
	accounts    map[string]*fakeAccount
	passwords   map[string]string
	verifyCalls int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{accounts: make(map[string]*fakeAccount), passwords: make(map[string]string)}
}

func (d *fakeDirectory) add(id, password string, enabled bool) *fakeAccount {
	a := &fakeAccount{id: id, loginName: id, enabled: enabled}
	d.accounts[id] = a
	d.passwords[id] = password
	return a
}

func (d *fakeDirectory) Resolve(ctx context.Context, uid string) (identitydomain.Account, error) {
	if a, ok := d.accounts[uid]; ok {
		return a, nil
	}
	return nil, nil
}

func (d *fakeDirectory) VerifyCredentials(ctx context.Context, loginName, secret string) (identitydomain.Account, error) {
	d.verifyCalls++
	for _, a := range d.accounts {
		if a.loginName == loginName && secret != "" && d.passwords[a.id] == secret {
			return a, nil
		}
	}
	return nil, nil
}

// fakeTokens keys tokens by their presented value; session-bound tokens use the session id.
type fakeTokens struct {
	clk         clock.Clock
	tokens      map[string]*tokendomain.LoginToken
	secrets     map[string]string
	touches     int
	checks      int
	invalidated []string
}

func newFakeTokens(clk clock.Clock) *fakeTokens {
	return &fakeTokens{clk: clk, tokens: make(map[string]*tokendomain.LoginToken), secrets: make(map[string]string)}
}

func (f *fakeTokens) put(value, uid, loginName, secret string) *tokendomain.LoginToken {
	now := f.clk.Now()
	t := &tokendomain.LoginToken{
		ID:           value,
		UserID:       uid,
		LoginName:    loginName,
		Type:         tokendomain.TokenTypeTemporary,
		CreatedAt:    now,
		LastActivity: now,
		LastCheck:    now,
	}
	f.tokens[value] = t
	f.secrets[value] = secret
	return t
}

func (f *fakeTokens) FindBySessionID(ctx context.Context, sessionID string) (*tokendomain.LoginToken, error) {
	return f.FindByToken(ctx, sessionID)
}

func (f *fakeTokens) FindByToken(ctx context.Context, value string) (*tokendomain.LoginToken, error) {
	if t, ok := f.tokens[value]; ok && value != "" {
		return t, nil
	}
	return nil, ErrInvalidToken
}

func (f *fakeTokens) Validate(ctx context.Context, value string) (*tokendomain.LoginToken, error) {
	return f.FindByToken(ctx, value)
}

func (f *fakeTokens) IssueOrRefresh(ctx context.Context, sessionID, uid, loginName, secret, deviceLabel string) (*tokendomain.LoginToken, error) {
	t := f.put(sessionID, uid, loginName, secret)
	t.DeviceLabel = deviceLabel
	return t, nil
}

func (f *fakeTokens) RecoverSecret(t *tokendomain.LoginToken, presentedValue string) (string, error) {
	secret, ok := f.secrets[presentedValue]
	if !ok {
		return "", ErrInvalidToken
	}
	if secret == "" {
		return "", ErrPasswordlessToken
	}
	return secret, nil
}

func (f *fakeTokens) Touch(ctx context.Context, t *tokendomain.LoginToken) error {
	f.touches++
	t.LastActivity = f.clk.Now()
	return nil
}

func (f *fakeTokens) MarkChecked(ctx context.Context, t *tokendomain.LoginToken) error {
	f.checks++
	t.LastCheck = f.clk.Now()
	return nil
}

func (f *fakeTokens) Invalidate(ctx context.Context, value string) error {
	f.invalidated = append(f.invalidated, value)
	delete(f.tokens, value)
	delete(f.secrets, value)
	return nil
}

func (f *fakeTokens) Rotate(ctx context.Context, oldValue, newValue string) error {
	t, ok := f.tokens[oldValue]
	if !ok {
		return ErrInvalidToken
	}
	t.ID = newValue
	f.tokens[newValue] = t
	f.secrets[newValue] = f.secrets[oldValue]
	delete(f.tokens, oldValue)
	delete(f.secrets, oldValue)
	return nil
}

type fakeRemember struct {
	current map[string]string
	used    map[string]bool
	revoked []string
}

func newFakeRemember() *fakeRemember {
	return &fakeRemember{current: make(map[string]string), used: make(map[string]bool)}
}

func (r *fakeRemember) Consume(ctx context.Context, uid, value string) (string, error) {
	if r.used[uid+"/"+value] {
		return "", ErrTokenReuse
	}
	if value == "" || r.current[uid] != value {
		return "", ErrInvalidRememberToken
	}
	r.used[uid+"/"+value] = true
	next := value + "-next"
	r.current[uid] = next
	return next, nil
}

func (r *fakeRemember) Revoke(ctx context.Context, uid, value string) error {
	r.revoked = append(r.revoked, uid+"/"+value)
	return nil
}

type fakeConfig struct {
	tokenAuthEnforced bool
	twoFactor         map[string]bool
	calls             []string
}

func (c *fakeConfig) SystemFlag(ctx context.Context, name string, def bool) (bool, error) {
	c.calls = append(c.calls, name)
	return c.tokenAuthEnforced, nil
}

func (c *fakeConfig) IsTwoFactorEnforced(ctx context.Context, loginName string) (bool, error) {
	c.calls = append(c.calls, "two_factor:"+loginName)
	return c.twoFactor[loginName], nil
}

// countingStore counts session id regenerations.
type countingStore struct {
	*session.MemoryStore
	regenerated int
}

func (s *countingStore) RegenerateID(ctx context.Context) error {
	s.regenerated++
	return s.MemoryStore.RegenerateID(ctx)
}

type fixture struct {
	clk      *clock.Fake
	store    *countingStore
	dir      *fakeDirectory
	tokens   *fakeTokens
	remember *fakeRemember
	config   *fakeConfig
}

func newFixture() *fixture {
	clk := clock.NewFake(testStart)
	return &fixture{
		clk:      clk,
		store:    &countingStore{MemoryStore: session.NewMemoryStore("initial-session-id")},
		dir:      newFakeDirectory(),
		tokens:   newFakeTokens(clk),
		remember: newFakeRemember(),
		config:   &fakeConfig{twoFactor: make(map[string]bool)},
	}
}

// manager returns a fresh Manager over the fixture's session, as a new request would get.
func (f *fixture) manager() *Manager {
	return NewManager(f.store, Deps{
		Directory: f.dir,
		Tokens:    f.tokens,
		Remember:  f.remember,
		Config:    f.config,
		Clock:     f.clk,
	})
}

func (f *fixture) value(key string) (string, bool) {
	v, ok := f.store.Keys()[key]
	return v, ok
}

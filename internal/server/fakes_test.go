package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"authsession/internal/clock"
	identitydomain "authsession/internal/identity/domain"
	"authsession/internal/identity/service"
	"authsession/internal/session"
	tokendomain "authsession/internal/token/domain"
)

type fakeAccount struct {
	id      string
	enabled bool
}

func (a *fakeAccount) ID() string                            { return a.id }
func (a *fakeAccount) LoginName() string                     { return a.id }
func (a *fakeAccount) IsEnabled() bool                       { return a.enabled }
func (a *fakeAccount) MarkLoggedInNow(context.Context) error { return nil }

type fakeDirectory struct {
	accounts  map[string]*fakeAccount
	passwords map[string]string
}

func (d *fakeDirectory) Resolve(ctx context.Context, uid string) (identitydomain.Account, error) {
	if a, ok := d.accounts[uid]; ok {
		return a, nil
	}
	return nil, nil
}

func (d *fakeDirectory) VerifyCredentials(ctx context.Context, loginName, secret string) (identitydomain.Account, error) {
	a, ok := d.accounts[loginName]
	if !ok || secret == "" || d.passwords[loginName] != secret {
		return nil, nil
	}
	return a, nil
}

func (d *fakeDirectory) SetPassword(ctx context.Context, uid, password string) error {
	d.passwords[uid] = password
	return nil
}

// fakeTokens keys tokens by presented value.
type fakeTokens struct {
	clk     clock.Clock
	tokens  map[string]*tokendomain.LoginToken
	secrets map[string]string
	seq     int
}

func (f *fakeTokens) put(value, uid, secret, label string, typ tokendomain.TokenType) *tokendomain.LoginToken {
	f.seq++
	now := f.clk.Now()
	t := &tokendomain.LoginToken{
		ID:           fmt.Sprintf("tok-%d", f.seq),
		UserID:       uid,
		LoginName:    uid,
		DeviceLabel:  label,
		Type:         typ,
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
	if t, ok := f.tokens[value]; ok {
		return t, nil
	}
	return nil, service.ErrInvalidToken
}

func (f *fakeTokens) Validate(ctx context.Context, value string) (*tokendomain.LoginToken, error) {
	return f.FindByToken(ctx, value)
}

func (f *fakeTokens) IssueOrRefresh(ctx context.Context, sessionID, uid, loginName, secret, deviceLabel string) (*tokendomain.LoginToken, error) {
	return f.put(sessionID, uid, secret, deviceLabel, tokendomain.TokenTypeTemporary), nil
}

func (f *fakeTokens) IssueAppPassword(ctx context.Context, userID, loginName, secret, deviceLabel string) (string, *tokendomain.LoginToken, error) {
	value := fmt.Sprintf("app-password-%d", f.seq+1)
	return value, f.put(value, userID, secret, deviceLabel, tokendomain.TokenTypePermanent), nil
}

func (f *fakeTokens) RecoverSecret(t *tokendomain.LoginToken, presentedValue string) (string, error) {
	secret, ok := f.secrets[presentedValue]
	if !ok {
		return "", service.ErrInvalidToken
	}
	if secret == "" {
		return "", service.ErrPasswordlessToken
	}
	return secret, nil
}

func (f *fakeTokens) Touch(ctx context.Context, t *tokendomain.LoginToken) error { return nil }

func (f *fakeTokens) MarkChecked(ctx context.Context, t *tokendomain.LoginToken) error { return nil }

func (f *fakeTokens) Invalidate(ctx context.Context, value string) error {
	delete(f.tokens, value)
	delete(f.secrets, value)
	return nil
}

func (f *fakeTokens) Rotate(ctx context.Context, oldValue, newValue string) error {
	t, ok := f.tokens[oldValue]
	if !ok {
		return service.ErrInvalidToken
	}
	f.tokens[newValue], f.secrets[newValue] = t, f.secrets[oldValue]
	return f.Invalidate(ctx, oldValue)
}

func (f *fakeTokens) List(ctx context.Context, userID string) ([]*tokendomain.LoginToken, error) {
	var out []*tokendomain.LoginToken
	for _, t := range f.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTokens) InvalidateByID(ctx context.Context, userID, id string) error {
	for v, t := range f.tokens {
		if t.UserID == userID && t.ID == id {
			f.Invalidate(ctx, v)
		}
	}
	return nil
}

func (f *fakeTokens) InvalidateUser(ctx context.Context, userID string) error {
	for v, t := range f.tokens {
		if t.UserID == userID {
			f.Invalidate(ctx, v)
		}
	}
	return nil
}

type fakeRemember struct {
	current map[string]string
	used    map[string]bool
	seq     int
}

func (r *fakeRemember) Issue(ctx context.Context, userID string) (string, error) {
	r.seq++
	v := fmt.Sprintf("remember-%d", r.seq)
	r.current[userID] = v
	return v, nil
}

func (r *fakeRemember) Consume(ctx context.Context, uid, value string) (string, error) {
	if r.used[value] {
		delete(r.current, uid)
		return "", service.ErrTokenReuse
	}
	if r.current[uid] != value {
		return "", service.ErrInvalidRememberToken
	}
	r.used[value] = true
	return r.Issue(ctx, uid)
}

func (r *fakeRemember) Revoke(ctx context.Context, uid, value string) error {
	if r.current[uid] == value {
		delete(r.current, uid)
	}
	return nil
}

func (r *fakeRemember) RevokeAll(ctx context.Context, userID string) error {
	delete(r.current, userID)
	return nil
}

type fakeConfig struct {
	tokenAuthEnforced bool
}

func (c *fakeConfig) SystemFlag(ctx context.Context, name string, def bool) (bool, error) {
	return c.tokenAuthEnforced, nil
}

func (c *fakeConfig) IsTwoFactorEnforced(ctx context.Context, loginName string) (bool, error) {
	return false, nil
}

type testServer struct {
	e        *echo.Echo
	dir      *fakeDirectory
	tokens   *fakeTokens
	remember *fakeRemember
	config   *fakeConfig
	sessions *session.MemoryBackend
}

func newTestServer() *testServer {
	clk := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ts := &testServer{
		dir: &fakeDirectory{
			accounts: map[string]*fakeAccount{
				"foo": {id: "foo", enabled: true},
				"off": {id: "off", enabled: false},
			},
			passwords: map[string]string{"foo": "bar", "off": "bar"},
		},
		tokens:   &fakeTokens{clk: clk, tokens: make(map[string]*tokendomain.LoginToken), secrets: make(map[string]string)},
		remember: &fakeRemember{current: make(map[string]string), used: make(map[string]bool)},
		config:   &fakeConfig{},
		sessions: session.NewMemoryBackend(),
	}
	ts.e = NewHTTPServer(HTTPDeps{
		Sessions: ts.sessions,
		Manager: service.Deps{
			Directory: ts.dir,
			Tokens:    ts.tokens,
			Remember:  ts.remember,
			Config:    ts.config,
			Clock:     clk,
		},
		AppPasswords:     ts.tokens,
		Remember:         ts.remember,
		Passwords:        ts.dir,
		RememberLifetime: time.Hour,
	})
	return ts
}

// do serves one request. body is sent as JSON when non-empty.
func (ts *testServer) do(method, path, body string, cookies []*http.Cookie, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

// cookie returns the named cookie set by rec, or nil.
func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

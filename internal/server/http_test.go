package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
)

func basicAuth(user, pass string) map[string]string {
	return map[string]string{"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))}
}

// loginAs logs foo in and returns the session cookie.
func (ts *testServer) loginAs(t *testing.T, body string) *http.Cookie {
	t.Helper()
	rec := ts.do(http.MethodPost, "/login", body, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /login = %d: %s", rec.Code, rec.Body.String())
	}
	sid := cookie(rec, sessionCookie)
	if sid == nil || sid.Value == "" {
		t.Fatal("no session cookie after login")
	}
	return sid
}

func TestLogin_SessionCookieAuthenticatesMe(t *testing.T) {
	ts := newTestServer()
	sid := ts.loginAs(t, `{"user":"foo","password":"bar"}`)

	if _, err := ts.tokens.FindBySessionID(context.Background(), sid.Value); err != nil {
		t.Errorf("no login token bound to the new session: %v", err)
	}

	rec := ts.do(http.MethodGet, "/me", "", []*http.Cookie{sid}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /me = %d: %s", rec.Code, rec.Body.String())
	}
	var got userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UserID != "foo" || got.LoginName != "foo" {
		t.Errorf("GET /me = %+v", got)
	}
}

func TestLogin_PreLoginSessionIDIsReplaced(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/me", "", nil, nil)
	pre := cookie(rec, sessionCookie)
	if pre == nil {
		t.Fatal("no session cookie for anonymous request")
	}
	rec = ts.do(http.MethodPost, "/login", `{"user":"foo","password":"bar"}`, []*http.Cookie{pre}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /login = %d", rec.Code)
	}
	if post := cookie(rec, sessionCookie); post == nil || post.Value == pre.Value {
		t.Error("session id not regenerated on login")
	}
}

func TestLogin_Errors(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"user":"foo","password":"nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"user":"ghost","password":"bar"}`, http.StatusUnauthorized},
		{"disabled", `{"user":"off","password":"bar"}`, http.StatusForbidden},
		{"malformed", `{"user":`, http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			rec := ts.do(http.MethodPost, "/login", tc.body, nil, nil)
			if rec.Code != tc.want {
				t.Fatalf("POST /login = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
			if len(ts.tokens.tokens) != 0 {
				t.Error("login token issued on failure")
			}
		})
	}
}

func TestMe_Anonymous(t *testing.T) {
	ts := newTestServer()
	if rec := ts.do(http.MethodGet, "/me", "", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("GET /me = %d, want 401", rec.Code)
	}
}

func TestRememberMe(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodPost, "/login", `{"user":"foo","password":"bar","remember":true}`, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /login = %d", rec.Code)
	}
	uid, tok := cookie(rec, rememberUIDCookie), cookie(rec, rememberTokenCookie)
	if uid == nil || tok == nil || uid.Value != "foo" {
		t.Fatalf("remember cookies = %v, %v", uid, tok)
	}

	// A new browser session with only the remember-me cookies.
	rec = ts.do(http.MethodGet, "/me", "", []*http.Cookie{uid, tok}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /me with remember cookies = %d", rec.Code)
	}
	next := cookie(rec, rememberTokenCookie)
	if next == nil || next.Value == tok.Value {
		t.Fatal("remember token not rotated")
	}

	// Replaying the consumed token is rejected and the cookies are cleared.
	rec = ts.do(http.MethodGet, "/me", "", []*http.Cookie{uid, tok}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("GET /me with replayed token = %d, want 401", rec.Code)
	}
	if c := cookie(rec, rememberTokenCookie); c == nil || c.MaxAge >= 0 {
		t.Error("remember cookie not cleared on reuse")
	}
	if _, ok := ts.remember.current["foo"]; ok {
		t.Error("remember tokens not revoked on reuse")
	}
}

func TestBearerToken(t *testing.T) {
	ts := newTestServer()
	sid := ts.loginAs(t, `{"user":"foo","password":"bar"}`)
	rec := ts.do(http.MethodPost, "/app-passwords", `{"label":"laptop"}`, []*http.Cookie{sid}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /app-passwords = %d: %s", rec.Code, rec.Body.String())
	}
	var created appPasswordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Token == "" || created.Label != "laptop" || created.Type != "app" {
		t.Fatalf("created = %+v", created)
	}
	if got := ts.tokens.secrets[created.Token]; got != "bar" {
		t.Errorf("app password secret = %q, want the session's secret", got)
	}

	for _, scheme := range []string{"token ", "Bearer "} {
		rec = ts.do(http.MethodGet, "/me", "", nil, map[string]string{"Authorization": scheme + created.Token})
		if rec.Code != http.StatusOK {
			t.Errorf("GET /me with %q = %d", scheme, rec.Code)
		}
	}
	rec = ts.do(http.MethodGet, "/me", "", nil, map[string]string{"Authorization": "Bearer nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /me with bad token = %d, want 401", rec.Code)
	}

	// An app password session may not mint further app passwords.
	rec = ts.do(http.MethodPost, "/app-passwords", `{}`, nil, map[string]string{"Authorization": "token " + created.Token})
	if rec.Code != http.StatusForbidden {
		t.Errorf("POST /app-passwords with app password = %d, want 403", rec.Code)
	}

	rec = ts.do(http.MethodDelete, "/app-passwords/"+created.ID, "", []*http.Cookie{sid}, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE /app-passwords = %d", rec.Code)
	}
	rec = ts.do(http.MethodGet, "/me", "", nil, map[string]string{"Authorization": "token " + created.Token})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /me with revoked token = %d, want 401", rec.Code)
	}
}

func TestPasswordLoginAfterBearerSession(t *testing.T) {
	ts := newTestServer()
	sid := ts.loginAs(t, `{"user":"foo","password":"bar"}`)
	rec := ts.do(http.MethodPost, "/app-passwords", `{}`, []*http.Cookie{sid}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /app-passwords = %d: %s", rec.Code, rec.Body.String())
	}
	var created appPasswordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = ts.do(http.MethodGet, "/me", "", nil, map[string]string{"Authorization": "Bearer " + created.Token})
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /me with bearer = %d", rec.Code)
	}
	bearerSID := cookie(rec, sessionCookie)
	if bearerSID == nil {
		t.Fatal("no session cookie for bearer request")
	}

	rec = ts.do(http.MethodPost, "/login", `{"user":"foo","password":"bar"}`, []*http.Cookie{bearerSID}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /login = %d: %s", rec.Code, rec.Body.String())
	}
	pwSID := cookie(rec, sessionCookie)
	if pwSID == nil {
		t.Fatal("no session cookie after login")
	}

	rec = ts.do(http.MethodPost, "/app-passwords", `{}`, []*http.Cookie{pwSID}, nil)
	if rec.Code != http.StatusCreated {
		t.Errorf("POST /app-passwords after password login = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(http.MethodDelete, "/app-passwords/"+created.ID, "", []*http.Cookie{pwSID}, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE /app-passwords = %d", rec.Code)
	}
	rec = ts.do(http.MethodGet, "/me", "", []*http.Cookie{pwSID}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /me after revoking the earlier app password = %d, want 200", rec.Code)
	}
}

func TestListAppPasswords(t *testing.T) {
	ts := newTestServer()
	sid := ts.loginAs(t, `{"user":"foo","password":"bar"}`)
	ts.do(http.MethodPost, "/app-passwords", `{}`, []*http.Cookie{sid}, nil)

	rec := ts.do(http.MethodGet, "/app-passwords", "", []*http.Cookie{sid}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /app-passwords = %d", rec.Code)
	}
	var list []appPasswordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("tokens = %d, want session token and app password", len(list))
	}
	for _, p := range list {
		if p.Token != "" {
			t.Error("listed token exposes its value")
		}
	}
}

func TestDAV(t *testing.T) {
	testCases := []struct {
		name      string
		header    map[string]string
		tokenAuth bool
		want      int
	}{
		{"no credentials", nil, false, http.StatusUnauthorized},
		{"password", basicAuth("foo", "bar"), false, http.StatusOK},
		{"wrong password", basicAuth("foo", "nope"), false, http.StatusUnauthorized},
		{"disabled", basicAuth("off", "bar"), false, http.StatusForbidden},
		{"token auth enforced", basicAuth("foo", "bar"), true, http.StatusForbidden},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			ts.config.tokenAuthEnforced = tc.tokenAuth
			rec := ts.do(http.MethodGet, "/dav/files/a.txt", "", nil, tc.header)
			if rec.Code != tc.want {
				t.Fatalf("GET /dav = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
			if tc.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
		})
	}
}

func TestDAV_AppPasswordWhenTokenAuthEnforced(t *testing.T) {
	ts := newTestServer()
	value, _, _ := ts.tokens.IssueAppPassword(context.Background(), "foo", "foo", "bar", "sync")
	ts.config.tokenAuthEnforced = true

	rec := ts.do(http.MethodGet, "/dav/files", "", nil, basicAuth("foo", value))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /dav with app password = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLogout(t *testing.T) {
	ts := newTestServer()
	sid := ts.loginAs(t, `{"user":"foo","password":"bar"}`)

	rec := ts.do(http.MethodPost, "/logout", "", []*http.Cookie{sid}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /logout = %d", rec.Code)
	}
	if _, err := ts.tokens.FindBySessionID(context.Background(), sid.Value); err == nil {
		t.Error("session token survived logout")
	}
	if rec := ts.do(http.MethodGet, "/me", "", []*http.Cookie{sid}, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /me with old session = %d, want 401", rec.Code)
	}
	if next := cookie(rec, sessionCookie); next != nil {
		if rec := ts.do(http.MethodGet, "/me", "", []*http.Cookie{next}, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET /me with post-logout session = %d, want 401", rec.Code)
		}
	}
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer()
	sid := ts.loginAs(t, `{"user":"foo","password":"bar"}`)
	value, _, _ := ts.tokens.IssueAppPassword(context.Background(), "foo", "foo", "bar", "sync")

	rec := ts.do(http.MethodPost, "/me/password", `{"current":"nope","new":"baz"}`, []*http.Cookie{sid}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("POST /me/password with wrong current = %d, want 403", rec.Code)
	}

	rec = ts.do(http.MethodPost, "/me/password", `{"current":"bar","new":"baz"}`, []*http.Cookie{sid}, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("POST /me/password = %d: %s", rec.Code, rec.Body.String())
	}
	if ts.dir.passwords["foo"] != "baz" {
		t.Error("password not changed")
	}
	if _, ok := ts.tokens.tokens[value]; ok {
		t.Error("app password survived password change")
	}
	if got := ts.tokens.secrets[sid.Value]; got != "baz" {
		t.Errorf("session token secret = %q, want the new password", got)
	}
	if rec := ts.do(http.MethodGet, "/me", "", []*http.Cookie{sid}, nil); rec.Code != http.StatusOK {
		t.Errorf("GET /me after password change = %d, want 200", rec.Code)
	}
}

func TestEvents_WithoutAuditReader(t *testing.T) {
	ts := newTestServer()
	sid := ts.loginAs(t, `{"user":"foo","password":"bar"}`)
	rec := ts.do(http.MethodGet, "/me/events", "", []*http.Cookie{sid}, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Errorf("GET /me/events = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer()
	if rec := ts.do(http.MethodGet, "/healthz", "", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d", rec.Code)
	}
	if ts.sessions.Len() != 0 {
		t.Error("/healthz opened a session")
	}
}

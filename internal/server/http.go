package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"authsession/internal/audit"
	auditdomain "authsession/internal/audit/domain"
	healthcheck "authsession/internal/health"
	identitydomain "authsession/internal/identity/domain"
	"authsession/internal/identity/service"
	"authsession/internal/session"
	tokendomain "authsession/internal/token/domain"
)

// Cookie names.
const (
	sessionCookie       = "asid"
	rememberUIDCookie   = "asuid"
	rememberTokenCookie = "astoken"
)

// ContextKeyManager is the echo context key holding the request's *service.Manager.
const ContextKeyManager = "session_manager"

// AppPasswords issues, lists and revokes login tokens.
type AppPasswords interface {
	FindBySessionID(ctx context.Context, sessionID string) (*tokendomain.LoginToken, error)
	RecoverSecret(t *tokendomain.LoginToken, presentedValue string) (string, error)
	IssueAppPassword(ctx context.Context, userID, loginName, secret, deviceLabel string) (string, *tokendomain.LoginToken, error)
	List(ctx context.Context, userID string) ([]*tokendomain.LoginToken, error)
	InvalidateByID(ctx context.Context, userID, id string) error
	InvalidateUser(ctx context.Context, userID string) error
}

// RememberIssuer issues and revokes remember-me cookie tokens.
type RememberIssuer interface {
	Issue(ctx context.Context, userID string) (string, error)
	RevokeAll(ctx context.Context, userID string) error
}

// PasswordChanger verifies and replaces account passwords.
type PasswordChanger interface {
	VerifyCredentials(ctx context.Context, loginName, secret string) (identitydomain.Account, error)
	SetPassword(ctx context.Context, uid, password string) error
}

// AuditReader lists a user's audit trail.
type AuditReader interface {
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*auditdomain.AuditLog, error)
}

// HTTPDeps holds dependencies for the HTTP server.
type HTTPDeps struct {
	// Sessions opens the per-client session bag named by the session cookie.
	Sessions session.Backend
	// Manager are the collaborators of the per-request session manager.
	Manager      service.Deps
	AppPasswords AppPasswords
	// Remember is optional; without it "remember me" is ignored.
	Remember  RememberIssuer
	Passwords PasswordChanger
	// Audit is optional; without it /me/events returns an empty list.
	Audit  AuditReader
	Health *healthcheck.Checker

	SecureCookies    bool
	RememberLifetime time.Duration
}

type httpHandlers struct {
	deps HTTPDeps
}

// NewHTTPServer returns the echo server with all routes registered.
//
// Routes:
//   - GET    /healthz                readiness
//   - POST   /login                  interactive password login
//   - POST   /logout
//   - ANY    /dav/*                  non-interactive clients (basic auth)
//   - GET    /me, /me/events
//   - POST   /me/password
//   - GET    /app-passwords
//   - POST   /app-passwords
//   - DELETE /app-passwords/:id
func NewHTTPServer(deps HTTPDeps) *echo.Echo {
	h := &httpHandlers{deps: deps}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", h.healthz)

	e.POST("/login", h.login, h.withSession)
	e.POST("/logout", h.logout, h.withSession)
	e.Any("/dav/*", h.dav, h.withSession)

	e.GET("/me", h.me, h.withSession, h.requireUser)
	e.GET("/me/events", h.events, h.withSession, h.requireUser)
	e.POST("/me/password", h.changePassword, h.withSession, h.requireUser)
	e.GET("/app-passwords", h.listAppPasswords, h.withSession, h.requireUser)
	e.POST("/app-passwords", h.createAppPassword, h.withSession, h.requireUser)
	e.DELETE("/app-passwords/:id", h.deleteAppPassword, h.withSession, h.requireUser)
	return e
}

// withSession opens the client's session bag, builds the request's Manager and resolves the
// user from the session, then from an authorization token, then from the remember-me cookies.
// The session cookie is rewritten on every response since login and logout change the id.
func (h *httpHandlers) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := audit.WithClientIP(req.Context(), c.RealIP())
		c.SetRequest(req.WithContext(ctx))

		store, err := h.deps.Sessions.Open(ctx, cookieValue(c, sessionCookie))
		if err != nil {
			return writeError(c, err)
		}
		m := service.NewManager(store, h.deps.Manager)
		c.Set(ContextKeyManager, m)
		c.Response().Before(func() {
			c.SetCookie(h.cookie(sessionCookie, m.Session().ID(), 0))
		})

		if err := h.authenticate(c, m); err != nil {
			return writeError(c, err)
		}
		return next(c)
	}
}

func (h *httpHandlers) authenticate(c echo.Context, m *service.Manager) error {
	ctx := c.Request().Context()
	acc, err := m.GetUser(ctx)
	if err != nil || acc != nil {
		return err
	}
	acc, err = m.TryTokenLogin(ctx, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil || acc != nil {
		return err
	}

	uid, token := cookieValue(c, rememberUIDCookie), cookieValue(c, rememberTokenCookie)
	if uid == "" || token == "" {
		return nil
	}
	next, err := m.LoginWithCookie(ctx, uid, token)
	if err == nil {
		c.SetCookie(h.cookie(rememberTokenCookie, next, h.deps.RememberLifetime))
		return nil
	}
	if isCredentialError(err) {
		h.clearRememberCookies(c)
		return nil
	}
	return err
}

// requireUser rejects requests that withSession could not authenticate.
func (h *httpHandlers) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		acc, err := manager(c).GetUser(c.Request().Context())
		if err != nil {
			return writeError(c, err)
		}
		if acc == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "authentication required",
			})
		}
		return next(c)
	}
}

func manager(c echo.Context) *service.Manager {
	m, _ := c.Get(ContextKeyManager).(*service.Manager)
	return m
}

func cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (h *httpHandlers) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		ck.MaxAge = int(maxAge.Seconds())
	}
	return ck
}

func (h *httpHandlers) clearRememberCookies(c echo.Context) {
	for _, name := range []string{rememberUIDCookie, rememberTokenCookie} {
		ck := h.cookie(name, "", 0)
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

func isCredentialError(err error) bool {
	return errors.Is(err, service.ErrAuthentication) ||
		errors.Is(err, service.ErrInvalidToken) ||
		errors.Is(err, service.ErrInvalidRememberToken) ||
		errors.Is(err, service.ErrTokenReuse) ||
		errors.Is(err, service.ErrLoginDisabled)
}

// writeError maps session manager errors to responses. Credential failures never reveal
// whether the account exists.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrLoginDisabled):
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "account disabled",
		})
	case errors.Is(err, service.ErrPasswordLoginForbidden):
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "password login not allowed; use an app password",
		})
	case isCredentialError(err):
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "invalid credentials",
		})
	default:
		log.Printf("http: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
	}
}

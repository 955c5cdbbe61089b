package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	identitydomain "authsession/internal/identity/domain"
	"authsession/internal/identity/service"
	"authsession/internal/session"
	tokendomain "authsession/internal/token/domain"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 200
	defaultAppLabel    = "app password"
)

type loginRequest struct {
	User     string `json:"user" form:"user"`
	Password string `json:"password" form:"password"`
	Remember bool   `json:"remember" form:"remember"`
}

type userResponse struct {
	UserID    string `json:"user_id"`
	LoginName string `json:"login_name"`
}

// healthz handles GET /healthz
func (h *httpHandlers) healthz(c echo.Context) error {
	if err := h.deps.Health.Check(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// login handles POST /login
func (h *httpHandlers) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	m := manager(c)
	ctx := c.Request().Context()
	acc, err := m.Login(ctx, req.User, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	if err := m.CreateSessionToken(ctx, acc.ID(), req.User, req.Password, c.Request().UserAgent()); err != nil {
		return writeError(c, err)
	}
	if req.Remember && h.deps.Remember != nil {
		value, err := h.deps.Remember.Issue(ctx, acc.ID())
		if err != nil {
			return writeError(c, err)
		}
		c.SetCookie(h.cookie(rememberUIDCookie, acc.ID(), h.deps.RememberLifetime))
		c.SetCookie(h.cookie(rememberTokenCookie, value, h.deps.RememberLifetime))
	}
	return c.JSON(http.StatusOK, userResponse{UserID: acc.ID(), LoginName: req.User})
}

// logout handles POST /logout
func (h *httpHandlers) logout(c echo.Context) error {
	opts := service.LogoutOptions{RememberToken: cookieValue(c, rememberTokenCookie)}
	if err := manager(c).Logout(c.Request().Context(), opts); err != nil {
		return writeError(c, err)
	}
	h.clearRememberCookies(c)
	return c.JSON(http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// dav handles ANY /dav/*. Clients authenticate with basic auth, where the password may be an
// app password; a valid session cookie is accepted too.
func (h *httpHandlers) dav(c echo.Context) error {
	m := manager(c)
	ctx := c.Request().Context()

	var acc identitydomain.Account
	if user, pass, ok := c.Request().BasicAuth(); ok {
		client := service.ClientInfo{
			UserAgent:       c.Request().UserAgent(),
			SupportsCookies: len(c.Request().Cookies()) > 0,
		}
		var err error
		if acc, err = m.LogClientIn(ctx, user, pass, client); err != nil {
			if isCredentialError(err) {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="authsession"`)
			}
			return writeError(c, err)
		}
	} else {
		var err error
		if acc, err = m.GetUser(ctx); err != nil {
			return writeError(c, err)
		}
	}
	if acc == nil {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="authsession"`)
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "authentication required",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"user_id": acc.ID(),
		"path":    c.Param("*"),
	})
}

// me handles GET /me
func (h *httpHandlers) me(c echo.Context) error {
	m := manager(c)
	ctx := c.Request().Context()
	acc, err := m.GetUser(ctx)
	if err != nil {
		return writeError(c, err)
	}
	loginName, err := m.LoginName(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, userResponse{UserID: acc.ID(), LoginName: loginName})
}

type eventResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// events handles GET /me/events?limit=&offset=
func (h *httpHandlers) events(c echo.Context) error {
	out := []eventResponse{}
	if h.deps.Audit == nil {
		return c.JSON(http.StatusOK, out)
	}
	limit := queryInt(c, "limit", defaultEventsLimit)
	if limit <= 0 || limit > maxEventsLimit {
		limit = defaultEventsLimit
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx := c.Request().Context()
	acc, err := manager(c).GetUser(ctx)
	if err != nil {
		return writeError(c, err)
	}
	logs, err := h.deps.Audit.ListByUser(ctx, acc.ID(), int32(limit), int32(offset))
	if err != nil {
		return writeError(c, err)
	}
	for _, l := range logs {
		out = append(out, eventResponse{
			ID:        l.ID,
			Action:    l.Action,
			Resource:  l.Resource,
			IP:        l.IP,
			Metadata:  l.Metadata,
			CreatedAt: l.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

type changePasswordRequest struct {
	Current string `json:"current" form:"current"`
	New     string `json:"new" form:"new"`
}

// changePassword handles POST /me/password. Every login token and remember-me cookie of the
// user is revoked; the current session is re-bound to the new password.
func (h *httpHandlers) changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil || req.New == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "current and new password are required",
		})
	}

	m := manager(c)
	ctx := c.Request().Context()
	acc, err := m.GetUser(ctx)
	if err != nil {
		return writeError(c, err)
	}
	loginName, err := m.LoginName(ctx)
	if err != nil {
		return writeError(c, err)
	}
	verified, err := h.deps.Passwords.VerifyCredentials(ctx, loginName, req.Current)
	if err != nil {
		return writeError(c, err)
	}
	if verified == nil || verified.ID() != acc.ID() {
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "current password is incorrect",
		})
	}

	if err := h.deps.Passwords.SetPassword(ctx, acc.ID(), req.New); err != nil {
		return writeError(c, err)
	}
	if err := h.deps.AppPasswords.InvalidateUser(ctx, acc.ID()); err != nil {
		return writeError(c, err)
	}
	if h.deps.Remember != nil {
		if err := h.deps.Remember.RevokeAll(ctx, acc.ID()); err != nil {
			return writeError(c, err)
		}
		h.clearRememberCookies(c)
	}
	if err := m.Session().Remove(ctx, session.KeyAppPassword); err != nil {
		return writeError(c, err)
	}
	if err := m.CreateSessionToken(ctx, acc.ID(), loginName, req.New, c.Request().UserAgent()); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type appPasswordResponse struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	// Token is only set in the response that creates it.
	Token string `json:"token,omitempty"`
}

func toAppPasswordResponse(t *tokendomain.LoginToken) appPasswordResponse {
	typ := "session"
	if t.Type == tokendomain.TokenTypePermanent {
		typ = "app"
	}
	return appPasswordResponse{
		ID:           t.ID,
		Label:        t.DeviceLabel,
		Type:         typ,
		CreatedAt:    t.CreatedAt,
		LastActivity: t.LastActivity,
	}
}

// listAppPasswords handles GET /app-passwords
func (h *httpHandlers) listAppPasswords(c echo.Context) error {
	ctx := c.Request().Context()
	acc, err := manager(c).GetUser(ctx)
	if err != nil {
		return writeError(c, err)
	}
	tokens, err := h.deps.AppPasswords.List(ctx, acc.ID())
	if err != nil {
		return writeError(c, err)
	}
	out := make([]appPasswordResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, toAppPasswordResponse(t))
	}
	return c.JSON(http.StatusOK, out)
}

type createAppPasswordRequest struct {
	Label string `json:"label" form:"label"`
}

// createAppPassword handles POST /app-passwords. The new token carries the secret bound to the
// current session, so it is re-validated like the session itself.
func (h *httpHandlers) createAppPassword(c echo.Context) error {
	var req createAppPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if req.Label == "" {
		req.Label = defaultAppLabel
	}

	m := manager(c)
	ctx := c.Request().Context()
	if _, ok, err := m.Session().Get(ctx, session.KeyAppPassword); err != nil {
		return writeError(c, err)
	} else if ok {
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "app passwords cannot create app passwords",
		})
	}
	acc, err := m.GetUser(ctx)
	if err != nil {
		return writeError(c, err)
	}
	loginName, err := m.LoginName(ctx)
	if err != nil {
		return writeError(c, err)
	}
	secret, err := h.sessionSecret(c, m)
	if err != nil {
		return writeError(c, err)
	}
	value, tok, err := h.deps.AppPasswords.IssueAppPassword(ctx, acc.ID(), loginName, secret, req.Label)
	if err != nil {
		return writeError(c, err)
	}
	resp := toAppPasswordResponse(tok)
	resp.Token = value
	return c.JSON(http.StatusCreated, resp)
}

// sessionSecret recovers the secret bound to the session's login token; sessions without one
// yield a passwordless app password.
func (h *httpHandlers) sessionSecret(c echo.Context, m *service.Manager) (string, error) {
	ctx := c.Request().Context()
	id := m.Session().ID()
	tok, err := h.deps.AppPasswords.FindBySessionID(ctx, id)
	if errors.Is(err, service.ErrInvalidToken) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	secret, err := h.deps.AppPasswords.RecoverSecret(tok, id)
	if errors.Is(err, service.ErrPasswordlessToken) || errors.Is(err, service.ErrInvalidToken) {
		return "", nil
	}
	return secret, err
}

// deleteAppPassword handles DELETE /app-passwords/:id
func (h *httpHandlers) deleteAppPassword(c echo.Context) error {
	ctx := c.Request().Context()
	acc, err := manager(c).GetUser(ctx)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.deps.AppPasswords.InvalidateByID(ctx, acc.ID(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

package domain

import "time"

// Event types emitted by session management.
const (
	EventLoginSuccess    = "login_success"
	EventLoginFailure    = "login_failure"
	EventLoginDisabled   = "login_disabled"
	EventLoginRefused    = "login_refused" // plaintext password refused by token or 2FA enforcement
	EventCookieLogin     = "cookie_login"
	EventCookieReuse     = "cookie_reuse"
	EventTokenLogin      = "token_login"
	EventLogout          = "logout"
	EventForcedLogout    = "forced_logout"
	EventTokenIssued     = "token_issued"
	EventTokenRevoked    = "token_revoked"
	EventPasswordChanged = "password_changed"
)

// Sources describe which authentication path produced an event.
const (
	SourcePassword = "password"
	SourceClient   = "client"
	SourceCookie   = "cookie"
	SourceToken    = "token"
	SourceSession  = "session"
)

// Event is one authentication event. It never carries passwords or token values.
type Event struct {
	Type      string
	UserID    string
	LoginName string
	Source    string
	Reason    string
	CreatedAt time.Time
}

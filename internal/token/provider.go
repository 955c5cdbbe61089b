// Package token issues, validates and revokes login tokens: session-bound tokens created
// at interactive login and permanent app passwords handed to sync and API clients.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"authsession/internal/clock"
	"authsession/internal/security"
	"authsession/internal/token/domain"
	"authsession/internal/token/repository"
)

// AppPasswordLength is the length of generated app password values.
const AppPasswordLength = 72

var (
	// ErrInvalidToken is returned for unknown, expired, or undecryptable tokens.
	ErrInvalidToken = errors.New("invalid login token")
	// ErrPasswordlessToken is returned by RecoverSecret when the token stores no secret.
	ErrPasswordlessToken = errors.New("login token has no stored secret")
)

// Provider is the login token store used by the session manager.
type Provider struct {
	repo            repository.Repository
	box             *security.SecretBox
	clock           clock.Clock
	sessionLifetime time.Duration
	updateInterval  time.Duration
}

// NewProvider returns a Provider. sessionLifetime bounds how long a temporary token may stay idle;
// updateInterval is the minimum spacing between persisted liveness updates.
func NewProvider(repo repository.Repository, box *security.SecretBox, clk clock.Clock, sessionLifetime, updateInterval time.Duration) *Provider {
	if clk == nil {
		clk = clock.System{}
	}
	return &Provider{
		repo:            repo,
		box:             box,
		clock:           clk,
		sessionLifetime: sessionLifetime,
		updateInterval:  updateInterval,
	}
}

// FindBySessionID returns the temporary token bound to the session id.
func (p *Provider) FindBySessionID(ctx context.Context, sessionID string) (*domain.LoginToken, error) {
	return p.Validate(ctx, sessionID)
}

// FindByToken returns the token whose value is tokenValue. Expiry is not checked.
func (p *Provider) FindByToken(ctx context.Context, tokenValue string) (*domain.LoginToken, error) {
	if tokenValue == "" {
		return nil, ErrInvalidToken
	}
	t, err := p.repo.GetByHash(ctx, security.HashToken(tokenValue))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrInvalidToken
	}
	return t, nil
}

// Validate returns the token for tokenValue if it exists and has not expired.
// Temporary tokens expire after sessionLifetime without activity; permanent tokens never expire.
func (p *Provider) Validate(ctx context.Context, tokenValue string) (*domain.LoginToken, error) {
	t, err := p.FindByToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	if t.Type == domain.TokenTypeTemporary && p.sessionLifetime > 0 &&
		p.clock.Now().Sub(t.LastActivity) > p.sessionLifetime {
		return nil, ErrInvalidToken
	}
	return t, nil
}

// IssueOrRefresh binds sessionID to the user, storing secret sealed under the session id.
// An existing token for the same session id is rebound. Empty secret yields a passwordless token.
func (p *Provider) IssueOrRefresh(ctx context.Context, sessionID, userID, loginName, secret, deviceLabel string) (*domain.LoginToken, error) {
	return p.issue(ctx, sessionID, userID, loginName, secret, deviceLabel, domain.TokenTypeTemporary)
}

// IssueAppPassword creates a permanent token and returns its value. The value is shown once;
// only its hash is stored.
func (p *Provider) IssueAppPassword(ctx context.Context, userID, loginName, secret, deviceLabel string) (string, *domain.LoginToken, error) {
	value, err := security.GenerateToken(AppPasswordLength)
	if err != nil {
		return "", nil, err
	}
	t, err := p.issue(ctx, value, userID, loginName, secret, deviceLabel, domain.TokenTypePermanent)
	if err != nil {
		return "", nil, err
	}
	return value, t, nil
}

func (p *Provider) issue(ctx context.Context, value, userID, loginName, secret, deviceLabel string, typ domain.TokenType) (*domain.LoginToken, error) {
	var sealed []byte
	if secret != "" {
		var err error
		sealed, err = p.box.Seal(value, []byte(secret))
		if err != nil {
			return nil, err
		}
	}
	now := p.clock.Now()
	t := &domain.LoginToken{
		ID:              uuid.New().String(),
		TokenHash:       security.HashToken(value),
		UserID:          userID,
		LoginName:       loginName,
		EncryptedSecret: sealed,
		DeviceLabel:     deviceLabel,
		Type:            typ,
		CreatedAt:       now,
		LastActivity:    now,
		LastCheck:       now,
	}
	if err := p.repo.Upsert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// RecoverSecret decrypts the secret stored on t using the presented token value.
func (p *Provider) RecoverSecret(t *domain.LoginToken, tokenValue string) (string, error) {
	if t == nil {
		return "", ErrInvalidToken
	}
	if t.Passwordless() {
		return "", ErrPasswordlessToken
	}
	secret, err := p.box.Open(tokenValue, t.EncryptedSecret)
	if err != nil {
		return "", ErrInvalidToken
	}
	return string(secret), nil
}

// Touch records activity on t. Writes are skipped when the last recorded activity is
// newer than the update interval.
func (p *Provider) Touch(ctx context.Context, t *domain.LoginToken) error {
	now := p.clock.Now()
	if now.Sub(t.LastActivity) < p.updateInterval {
		return nil
	}
	if err := p.repo.UpdateActivity(ctx, t.ID, now); err != nil {
		return err
	}
	t.LastActivity = now
	return nil
}

// MarkChecked records that t's secret was verified against the directory just now.
func (p *Provider) MarkChecked(ctx context.Context, t *domain.LoginToken) error {
	now := p.clock.Now()
	if err := p.repo.UpdateLastCheck(ctx, t.ID, now); err != nil {
		return err
	}
	t.LastCheck = now
	return nil
}

// Rotate moves the token bound to oldValue to newValue, re-sealing its secret.
func (p *Provider) Rotate(ctx context.Context, oldValue, newValue string) error {
	t, err := p.FindByToken(ctx, oldValue)
	if err != nil {
		return err
	}
	var sealed []byte
	if !t.Passwordless() {
		secret, err := p.box.Open(oldValue, t.EncryptedSecret)
		if err != nil {
			return ErrInvalidToken
		}
		if sealed, err = p.box.Seal(newValue, secret); err != nil {
			return err
		}
	}
	return p.repo.Rehash(ctx, t.ID, security.HashToken(newValue), sealed)
}

// List returns the user's tokens.
func (p *Provider) List(ctx context.Context, userID string) ([]*domain.LoginToken, error) {
	return p.repo.ListByUser(ctx, userID)
}

// Invalidate deletes the token with the given value.
func (p *Provider) Invalidate(ctx context.Context, tokenValue string) error {
	return p.repo.DeleteByHash(ctx, security.HashToken(tokenValue))
}

// InvalidateByID deletes one of the user's tokens by id.
func (p *Provider) InvalidateByID(ctx context.Context, userID, id string) error {
	return p.repo.DeleteByID(ctx, userID, id)
}

// InvalidateUser deletes every token of the user.
func (p *Provider) InvalidateUser(ctx context.Context, userID string) error {
	return p.repo.DeleteByUser(ctx, userID)
}

// InvalidateOld deletes temporary tokens idle for longer than the session lifetime.
func (p *Provider) InvalidateOld(ctx context.Context) (int64, error) {
	return p.repo.DeleteTemporaryOlderThan(ctx, p.clock.Now().Add(-p.sessionLifetime))
}

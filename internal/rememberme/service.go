// Package rememberme manages single-use "remember me" cookie tokens.
package rememberme

import (
	"context"
	"errors"
	"log"
	"time"

	"authsession/internal/clock"
	"authsession/internal/rememberme/domain"
	"authsession/internal/rememberme/repository"
	"authsession/internal/security"
)

// TokenLength is the length of generated cookie token values.
const TokenLength = 32

var (
	// ErrInvalidToken is returned for unknown, foreign, or expired cookie tokens.
	ErrInvalidToken = errors.New("invalid remember-me token")
	// ErrTokenReuse is returned when an already consumed token is presented again.
	// All of the user's remember-me tokens are revoked when this happens.
	ErrTokenReuse = errors.New("remember-me token reuse detected; all tokens revoked")
)

// Service issues and consumes remember-me tokens.
type Service struct {
	repo     repository.Repository
	clock    clock.Clock
	lifetime time.Duration
}

// NewService returns a Service whose tokens live for lifetime.
func NewService(repo repository.Repository, clk clock.Clock, lifetime time.Duration) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, clock: clk, lifetime: lifetime}
}

// Issue creates a new token for the user and returns its value.
func (s *Service) Issue(ctx context.Context, userID string) (string, error) {
	value, err := security.GenerateToken(TokenLength)
	if err != nil {
		return "", err
	}
	now := s.clock.Now()
	t := &domain.RememberToken{
		TokenHash: security.HashToken(value),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.lifetime),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return "", err
	}
	return value, nil
}

// Consume checks value against the user's stored tokens and exchanges it for a new one.
// The returned value replaces the cookie. Presenting a replaced token revokes every token
// of the user and returns ErrTokenReuse.
func (s *Service) Consume(ctx context.Context, userID, value string) (string, error) {
	if userID == "" || value == "" {
		return "", ErrInvalidToken
	}
	t, err := s.repo.GetByHash(ctx, security.HashToken(value))
	if err != nil {
		return "", err
	}
	if t == nil || !security.TokenHashEqual(value, t.TokenHash) || t.UserID != userID {
		return "", ErrInvalidToken
	}
	if t.Replaced() {
		if err := s.repo.DeleteByUser(ctx, userID); err != nil {
			log.Printf("rememberme: revoke all after reuse: %v", err)
		}
		return "", ErrTokenReuse
	}
	now := s.clock.Now()
	if t.Expired(now) {
		return "", ErrInvalidToken
	}
	ok, err := s.repo.MarkReplaced(ctx, t.TokenHash, now)
	if err != nil {
		return "", err
	}
	if !ok {
		// Lost a race with a concurrent request presenting the same cookie.
		return "", ErrInvalidToken
	}
	return s.Issue(ctx, userID)
}

// Revoke deletes one token of the user. Unknown values are ignored.
func (s *Service) Revoke(ctx context.Context, userID, value string) error {
	if value == "" {
		return nil
	}
	return s.repo.DeleteByHash(ctx, userID, security.HashToken(value))
}

// RevokeAll deletes every token of the user.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	return s.repo.DeleteByUser(ctx, userID)
}

// DeleteExpired removes expired tokens and tombstones.
func (s *Service) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}

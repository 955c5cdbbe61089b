// Package health reports readiness of the stores the session manager depends on.
package health

import (
	"context"
	"fmt"
	"time"
)

// checkTimeout bounds each dependency check.
const checkTimeout = 2 * time.Second

// Pinger is implemented by *sql.DB and by PingFunc.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is implemented by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// PingFunc adapts a function to Pinger (e.g. a Redis client's Ping).
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Checker runs readiness checks. Nil dependencies are skipped.
type Checker struct {
	db       Pinger
	sessions Pinger
	policy   PolicyChecker
}

// NewChecker returns a Checker over the database, the session bag store and the policy engine.
func NewChecker(db, sessions Pinger, policy PolicyChecker) *Checker {
	return &Checker{db: db, sessions: sessions, policy: policy}
}

// Check returns the first failing dependency's error, or nil when all are ready.
func (c *Checker) Check(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.db != nil {
		if err := ping(ctx, c.db); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.sessions != nil {
		if err := ping(ctx, c.sessions); err != nil {
			return fmt.Errorf("session store: %w", err)
		}
	}
	if c.policy != nil {
		ctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		if err := c.policy.HealthCheck(ctx); err != nil {
			return fmt.Errorf("policy engine: %w", err)
		}
	}
	return nil
}

func ping(ctx context.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return p.PingContext(ctx)
}

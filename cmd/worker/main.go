// Worker periodically removes expired login tokens and remember-me tokens.
// The interval is SWEEP_INTERVAL (default 10m).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authsession/internal/clock"
	"authsession/internal/config"
	"authsession/internal/db"
	"authsession/internal/rememberme"
	remembermerepo "authsession/internal/rememberme/repository"
	"authsession/internal/security"
	"authsession/internal/token"
	tokenrepo "authsession/internal/token/repository"
)

// sweepTimeout bounds one sweep.
const sweepTimeout = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	clk := clock.System{}
	tokens := token.NewProvider(
		tokenrepo.NewPostgresRepository(conn),
		security.NewSecretBox(cfg.TokenSecretKey),
		clk,
		cfg.SessionLifetime(),
		cfg.TokenUpdateInterval(),
	)
	remember := rememberme.NewService(remembermerepo.NewPostgresRepository(conn), clk, cfg.RememberLifetime())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	interval := cfg.SweepInterval()
	log.Printf("worker: sweeping expired tokens every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sweep(ctx, tokens, remember)
		select {
		case <-ctx.Done():
			log.Println("worker: stopped")
			return
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, tokens *token.Provider, remember *rememberme.Service) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	if n, err := tokens.InvalidateOld(ctx); err != nil {
		log.Printf("worker: login token sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("worker: removed %d idle session tokens", n)
	}
	if n, err := remember.DeleteExpired(ctx); err != nil {
		log.Printf("worker: remember-me sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("worker: removed %d expired remember-me tokens", n)
	}
}

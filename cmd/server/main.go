package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"authsession/internal/audit"
	auditrepo "authsession/internal/audit/repository"
	"authsession/internal/clock"
	"authsession/internal/config"
	"authsession/internal/db"
	"authsession/internal/health"
	"authsession/internal/identity/directory"
	identitydomain "authsession/internal/identity/domain"
	identityrepo "authsession/internal/identity/repository"
	"authsession/internal/identity/service"
	platformdomain "authsession/internal/platformsettings/domain"
	platformrepo "authsession/internal/platformsettings/repository"
	"authsession/internal/policy"
	"authsession/internal/policy/engine"
	policyrepo "authsession/internal/policy/repository"
	"authsession/internal/rememberme"
	remembermerepo "authsession/internal/rememberme/repository"
	"authsession/internal/security"
	"authsession/internal/server"
	"authsession/internal/session"
	"authsession/internal/telemetry"
	telemetryotel "authsession/internal/telemetry/otel"
	"authsession/internal/token"
	tokenrepo "authsession/internal/token/repository"
	twofactorrepo "authsession/internal/twofactor/repository"
	userrepo "authsession/internal/user/repository"
)

const healthInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelProviders, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	otelProviders.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	sessions, sessionPinger := openSessions(cfg)

	clk := clock.System{}
	users := userrepo.NewPostgresRepository(conn)
	dir := directory.New(users, identityrepo.NewPostgresRepository(conn), security.NewHasher(cfg.BcryptCost), clk)
	tokens := token.NewProvider(
		tokenrepo.NewPostgresRepository(conn),
		security.NewSecretBox(cfg.TokenSecretKey),
		clk,
		cfg.SessionLifetime(),
		cfg.TokenUpdateInterval(),
	)
	remember := rememberme.NewService(remembermerepo.NewPostgresRepository(conn), clk, cfg.RememberLifetime())

	evaluator := engine.NewOPAEvaluator(policyrepo.NewPostgresRepository(conn))
	enforcement := policy.NewEnforcement(
		platformrepo.NewPostgresRepository(conn),
		dir,
		twofactorrepo.NewPostgresRepository(conn),
		evaluator,
		map[string]bool{platformdomain.TokenAuthEnforced: cfg.TokenAuthEnforced},
	)

	audits := auditrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(audits, nil)
	metricsEmitter, err := telemetryotel.NewMetricsEmitter(otelProviders.MeterProvider)
	if err != nil {
		log.Fatalf("otel metrics: %v", err)
	}
	events := telemetry.Multi(
		telemetryotel.NewEventEmitter(otelProviders.LoggerProvider),
		metricsEmitter,
		audit.NewEmitter(auditLogger),
	)

	managerDeps := service.Deps{
		Directory:           dir,
		Tokens:              tokens,
		Remember:            remember,
		Config:              enforcement,
		Clock:               clk,
		Events:              events,
		LoginCheckInterval:  cfg.LoginCheckInterval(),
		TokenUpdateInterval: cfg.TokenUpdateInterval(),
	}
	checker := health.NewChecker(conn, sessionPinger, evaluator)

	e := server.NewHTTPServer(server.HTTPDeps{
		Sessions:         sessions,
		Manager:          managerDeps,
		AppPasswords:     tokens,
		Remember:         remember,
		Passwords:        dir,
		Audit:            audits,
		Health:           checker,
		SecureCookies:    cfg.SecureCookies,
		RememberLifetime: cfg.RememberLifetime(),
	})
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	var grpcServer interface{ GracefulStop() }
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
		s := server.NewGRPCServer(server.GRPCDeps{
			Authenticate: func(ctx context.Context, authorization string) (identitydomain.Account, error) {
				// Each RPC authenticates on its own; the bag is discarded afterwards.
				return service.NewManager(session.NewMemoryStore("rpc"), managerDeps).TryTokenLogin(ctx, authorization)
			},
			Audit: auditLogger,
		})
		hs := server.RegisterServices(s)
		go server.WatchHealth(ctx, hs, checker, healthInterval)
		grpcServer = s
		go func() {
			log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
			if err := s.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Println("shutting down servers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	log.Println("servers stopped")

	// Let in-flight async event emits finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := otelProviders.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
}

// openSessions returns the Redis session backend when REDIS_URL is set, else the in-memory one.
func openSessions(cfg *config.Config) (session.Backend, health.Pinger) {
	if cfg.RedisURL == "" {
		if cfg.Env == "production" {
			log.Fatal("REDIS_URL must be set when APP_ENV=production")
		}
		log.Println("REDIS_URL not set; using in-memory sessions")
		return session.NewMemoryBackend(), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	client := redis.NewClient(opts)
	ping := health.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	return session.NewRedisBackend(client, cfg.SessionLifetime()), ping
}

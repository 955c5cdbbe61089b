package server

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"authsession/internal/audit"
	healthcheck "authsession/internal/health"
	"authsession/internal/server/interceptors"
)

// healthMethods are the grpc.health.v1 methods; they are public and never audited.
var healthMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// GRPCDeps holds dependencies for the gRPC server.
type GRPCDeps struct {
	// Authenticate resolves authorization metadata for protected RPCs.
	Authenticate interceptors.TokenAuthenticator
	// Audit records authenticated RPCs. If nil, no RPCs are audited.
	Audit audit.AuditLogger
}

// NewGRPCServer returns a gRPC server with OTel instrumentation and the auth and audit
// interceptors installed.
func NewGRPCServer(deps GRPCDeps) *grpc.Server {
	return grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(deps.Authenticate, healthMethods),
			interceptors.AuditUnary(deps.Audit, healthMethods),
		),
	)
}

// RegisterServices registers the grpc.health.v1 service and returns it so readiness can be reported.
func RegisterServices(s grpc.ServiceRegistrar) *health.Server {
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

// WatchHealth sets the overall serving status from checker every interval until ctx is done.
func WatchHealth(ctx context.Context, hs *health.Server, checker *healthcheck.Checker, interval time.Duration) {
	update := func() {
		st := healthpb.HealthCheckResponse_SERVING
		if err := checker.Check(ctx); err != nil {
			log.Printf("health: not ready: %v", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", st)
	}
	update()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			update()
		}
	}
}

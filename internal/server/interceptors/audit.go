package interceptors

import (
	"context"
	"encoding/json"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"authsession/internal/audit"
)

// auditResourceRPC is the audit resource for authenticated RPC calls.
const auditResourceRPC = "rpc"

// rpcMetadata is the JSON shape stored in AuditLog.Metadata for RPC calls.
type rpcMetadata struct {
	StatusCode string `json:"status_code"`
}

// AuditUnary returns a unary server interceptor that records an audit log entry after each
// authenticated RPC. skipMethods is the set of full method names to not audit (e.g. health checks).
// LogEvent is best-effort: failures are logged and do not fail the RPC.
func AuditUnary(logger audit.AuditLogger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx = audit.WithClientIP(ctx, ClientIP(ctx))
		resp, err := handler(ctx, req)
		if logger == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		userID, _ := GetUserID(ctx)
		if userID == "" {
			return resp, err
		}
		meta, _ := json.Marshal(rpcMetadata{StatusCode: status.Code(err).String()})
		logger.LogEvent(ctx, userID, info.FullMethod, auditResourceRPC, string(meta))
		return resp, err
	}
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

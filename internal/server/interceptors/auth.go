package interceptors

import (
	"context"
	"errors"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	identitydomain "authsession/internal/identity/domain"
	"authsession/internal/identity/service"
)

// TokenAuthenticator resolves an authorization value ("token <v>" or "Bearer <v>") to an
// account. It returns (nil, nil) when the value carries no token.
type TokenAuthenticator func(ctx context.Context, authorization string) (identitydomain.Account, error)

// AuthUnary returns a unary server interceptor that authenticates the login token in the
// authorization metadata and sets user_id and login name in context for protected RPCs.
// publicMethods is the set of full method names that do not require a token (e.g. health checks).
func AuthUnary(authenticate TokenAuthenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		public := publicMethods[info.FullMethod]
		acc, err := authenticate(ctx, authorization(ctx))
		if err != nil || acc == nil {
			if public {
				return handler(ctx, req)
			}
			return nil, authError(err)
		}
		ctx = WithIdentity(ctx, acc.ID(), acc.LoginName())
		return handler(ctx, req)
	}
}

func authError(err error) error {
	switch {
	case err == nil, errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrAuthentication):
		return status.Error(codes.Unauthenticated, "missing or invalid authorization")
	case errors.Is(err, service.ErrLoginDisabled):
		return status.Error(codes.PermissionDenied, "account disabled")
	default:
		log.Printf("grpc: token authentication: %v", err)
		return status.Error(codes.Internal, "authentication unavailable")
	}
}

// authorization returns the raw authorization metadata value, or "".
func authorization(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/xela07ax/reflections-auth/internal/domain"
)

// UnaryAuthInterceptor проверяет bearer-токен в метаданных gRPC вызова
func UnaryAuthInterceptor(a *Authenticator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		// 1. Ищем токен (в gRPC заголовки в нижнем регистре)
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		// 2. Та же логика, что и в HTTP-фильтре
		newCtx, err := a.Authenticate(ctx, header)
		if err != nil {
			ae := domain.AsAuthError(err)
			if ae.Recoverable() {
				return nil, status.Error(codes.Unauthenticated, ae.Message)
			}
			return nil, status.Error(codes.Internal, "authentication failure")
		}

		// Идем дальше по цепочке
		return handler(newCtx, req)
	}
}

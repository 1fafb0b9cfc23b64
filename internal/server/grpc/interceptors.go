package grpcserver

import (
	"context"
	"strings"
	"time"

	pb "github.com/and161185/campus-vote/internal/api/votingv1"
	"github.com/and161185/campus-vote/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnary logs one line per call: method, code, duration and peer.
// Requests and responses are never logged. Server-side codes log at error.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remoteIP(ctx)),
		}
		switch code {
		case codes.Internal, codes.Unknown, codes.DataLoss:
			log.Error("grpc", fields...)
		default:
			log.Info("grpc", fields...)
		}
		return resp, err
	}
}

// RecoverUnary turns a handler panic into codes.Internal.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.String("method", info.FullMethod),
					zap.Any("reason", r),
					zap.Stack("stack"))
				resp, err = nil, status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// ClientIPUnary makes the caller's address available to services for
// auditing and rate limiting.
func ClientIPUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		return next(service.WithClientIP(ctx, remoteIP(ctx)), req)
	}
}

// publicMethods are callable without a bearer token.
var publicMethods = map[string]bool{
	pb.VerifyQRMethod: true,
	pb.RedeemQRMethod: true,
}

// AuthUnary authenticates Voting calls and stores the Caller in the
// context. Other services on the same server (health) pass through.
func (s *Server) AuthUnary() grpc.UnaryServerInterceptor {
	prefix := "/" + pb.ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) || publicMethods[info.FullMethod] {
			return next(ctx, req)
		}
		c, err := s.auth.Authenticate(ctx)
		if err != nil {
			s.log.Debug("auth rejected", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}
		return next(WithCaller(ctx, c), req)
	}
}

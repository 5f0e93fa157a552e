package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor logs every unary call with its code and latency, and
// turns handler panics into codes.Internal.
func LoggingInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		startTime := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.WithField("method", info.FullMethod).Errorf("gRPC Handler: panic: %v", r)
				err = status.Error(codes.Internal, "Internal server error")
			}

			code := status.Code(err)
			entry := logger.WithFields(logrus.Fields{
				"method":     info.FullMethod,
				"code":       code.String(),
				"latency_ms": time.Since(startTime).Milliseconds(),
			})
			switch code {
			case codes.OK:
				entry.Info("gRPC call completed successfully")
			case codes.Internal, codes.Unknown, codes.DataLoss:
				entry.Error("gRPC call completed with server error")
			default:
				entry.Warn("gRPC call completed with client error")
			}
		}()
		return handler(ctx, req)
	}
}

package server

import (
	"context"
	"net"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
)

// RecoveryInterceptor turns a handler panic into codes.Internal.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				buf = buf[:runtime.Stack(buf, false)]
				if logger != nil {
					logger.Error("panic in rpc handler",
						zap.String("method", info.FullMethod),
						zap.Any("panic", r),
						zap.ByteString("stack", buf),
					)
				}
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every call with its duration and status code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if logger != nil {
			logger.Debug("rpc",
				zap.String("method", info.FullMethod),
				zap.String("peer", extractHostFromContext(ctx)),
				zap.String("code", status.Code(err).String()),
				zap.Duration("duration", time.Since(start)),
			)
		}
		return resp, err
	}
}

// ErrorInterceptor converts domain errors to gRPC statuses.
func ErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		return resp, apperr.ToGRPC(err)
	}
}

// RPCMetrics counts calls by method and status code.
type RPCMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewRPCMetrics(reg prometheus.Registerer) *RPCMetrics {
	factory := promauto.With(reg)
	return &RPCMetrics{
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riftbound_grpc_calls_total",
			Help: "Unary RPCs handled, by method and status code",
		}, []string{"method", "code"}),
		//nolint:promlinter
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riftbound_grpc_call_duration_ms",
			Help:    "Unary RPC handling time in milliseconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"method"}),
	}
}

// MetricsInterceptor records calls on m. A nil m records nothing.
func MetricsInterceptor(m *RPCMetrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if m != nil {
			m.calls.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
			m.duration.WithLabelValues(info.FullMethod).Observe(float64(time.Since(start).Microseconds()) / 1000)
		}
		return resp, err
	}
}

func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

package server

import (
	"context"
	"fmt"
	"net"

	"padron-controlplane/pkg/config"
	"padron-controlplane/pkg/errutil"
	"padron-controlplane/pkg/health"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/validator"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

var ProvideGRPCServer = fx.Module("grpc.server",
	fx.Provide(
		NewListener,
		WithOption,
		NewGRPCServer,
		health.NewGRPCServer,
	),
	fx.Invoke(
		registerHealthServer,
		StartGRPCServer,
	),
)

func NewListener(cfg *config.Config) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%s", cfg.Grpc.Addr))
}

func WithOption(tp trace.TracerProvider, mp metric.MeterProvider, opts ...grpc.ServerOption) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			validator.UnaryServerInterceptor(validator.WithFailFast()),
			errorUnaryInterceptor,
		),
		grpc.ChainStreamInterceptor(
			validator.StreamServerInterceptor(validator.WithFailFast()),
			errorStreamInterceptor,
		),
		grpc.StatsHandler(
			otelgrpc.NewServerHandler(
				otelgrpc.WithTracerProvider(tp),
				otelgrpc.WithMeterProvider(mp),
			),
		),
	}
}

// errorUnaryInterceptor maps domain errors onto gRPC status codes so handlers
// can return BaseError values directly.
func errorUnaryInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		return resp, errutil.ToGRPCError(err)
	}
	return resp, nil
}

func errorStreamInterceptor(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return errutil.ToGRPCError(handler(srv, ss))
}

func NewGRPCServer(opts []grpc.ServerOption) *grpc.Server {
	server := grpc.NewServer(opts...)
	reflection.Register(server)
	return server
}

func registerHealthServer(server *grpc.Server, svc *health.GRPCServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func StartGRPCServer(lc fx.Lifecycle, server *grpc.Server, lis net.Listener) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				zap.L().Info("Starting gRPC server...", zap.String("addr", lis.Addr().String()))
				if err := server.Serve(lis); err != nil {
					zap.L().Error("gRPC server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Shutting down gRPC server...")
			server.GracefulStop()
			return nil
		},
	})
}

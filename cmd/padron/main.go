package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"padron-controlplane/internal/router"
	"padron-controlplane/pkg/config"
	"padron-controlplane/pkg/db"
	"padron-controlplane/pkg/featureflags"
	"padron-controlplane/pkg/gen"
	"padron-controlplane/pkg/hashistack/secretmanager"
	"padron-controlplane/pkg/hashistack/servicediscover"
	"padron-controlplane/pkg/health"
	"padron-controlplane/pkg/logger"
	"padron-controlplane/pkg/minio"
	"padron-controlplane/pkg/otelcol"
	"padron-controlplane/pkg/otelcol/exporters"
	"padron-controlplane/pkg/profiling"
	"padron-controlplane/pkg/redis"
	"padron-controlplane/pkg/sequence"
	"padron-controlplane/pkg/server"
	"padron-controlplane/pkg/task"
	"padron-controlplane/services/billetera"
	"padron-controlplane/services/certificacion"
	"padron-controlplane/services/derivacion"
	"padron-controlplane/services/ficha"
	"padron-controlplane/services/operador"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		servicediscover.Module,
		db.Module,
		redis.Module,
		task.Client,
		sequence.Module,
		featureflags.Module,
		minio.Client,
		health.Module,
		profiling.Module,
		fx.Provide(
			provideTracerProvider,
			provideMeterProvider,
			provideSnowflakeNode,
		),
		fx.Invoke(
			db.RegisterConnectionPool,
			db.Otel,
			db.Metric,
		),
		router.Module,
		derivacion.Module,
		certificacion.Module,
		ficha.Module,
		operador.Module,
		billetera.Module,
		server.ProvideGRPCServer,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideTracerProvider(cfg *config.Config) (trace.TracerProvider, error) {
	if cfg.Otel.Addr == "" {
		return otel.GetTracerProvider(), nil
	}

	exporter, err := exporters.ProvideGrpc(cfg)
	if err != nil {
		return nil, err
	}

	tp := otelcol.ProvideTrace(exporter)
	otel.SetTracerProvider(tp)
	return tp, nil
}

func provideMeterProvider() metric.MeterProvider {
	return otel.GetMeterProvider()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return gen.NewNode()
}

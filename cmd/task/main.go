package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"padron-controlplane/pkg/config"
	"padron-controlplane/pkg/logger"
	"padron-controlplane/pkg/task"
	"padron-controlplane/services/notificacion"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		task.Server,
		notificacion.Module,
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

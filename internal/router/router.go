package router

import (
	"padron-controlplane/pkg/config"
	"padron-controlplane/pkg/health"
	"padron-controlplane/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("router",
	fx.Provide(New),
)

type Params struct {
	fx.In
	Config *config.Config
	Health health.HealthService
}

// New builds the shared gin engine. Services attach their own route groups via
// fx.Invoke so the router stays ignorant of the domain.
func New(p Params) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.Channel(),
		middleware.Error(),
	)

	engine.GET("/healthz", p.Health.Liveness)
	engine.GET("/readyz", p.Health.Readiness)

	return engine
}

package billetera

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("billetera.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	v1 := engine.Group("/api/v1")
	v1.POST("/operator/wallet/withdraw", svc.handleWithdraw)
	v1.GET("/operator/wallet/movimientos", svc.handleMovimientos)
}

package operador

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("operador.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	v1 := engine.Group("/api/v1")
	v1.POST("/operator", svc.handleUpsert)
	v1.POST("/operator/claim", svc.handleClaim)
	v1.PATCH("/operator/dictamen", svc.handleDictamen)
	v1.POST("/operator/evidencia", svc.handleEvidencia)
	v1.POST("/operator/wallet/link", svc.handleLinkWallet)
}

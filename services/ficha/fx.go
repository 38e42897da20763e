package ficha

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("ficha.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

func registerRoutes(engine *gin.Engine, svc *Service) {
	v1 := engine.Group("/api/v1")
	v1.POST("/fichas", svc.handleRegister)
	v1.GET("/idoneidad/clasificacion", svc.handleClasificacion)
	v1.GET("/resumen", svc.handleResumen)
}

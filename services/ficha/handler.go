package ficha

import (
	"net/http"

	"padron-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Cedula           string `json:"cedula" binding:"required"`
	NombreCompleto   string `json:"nombre_completo" binding:"required"`
	Telefono         string `json:"telefono"`
	ZonaCode         string `json:"zona_code"`
	NivelEducativo   string `json:"nivel_educativo" binding:"required"`
	AniosExperiencia string `json:"anios_experiencia"`
	Oficio           string `json:"oficio"`

	RegistroLat *float64 `json:"registro_lat"`
	RegistroLng *float64 `json:"registro_lng"`
	CasaLat     *float64 `json:"casa_lat"`
	CasaLng     *float64 `json:"casa_lng"`
	TrabajoLat  *float64 `json:"trabajo_lat"`
	TrabajoLng  *float64 `json:"trabajo_lng"`
}

func (s *Service) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("missing registration fields", err))
		return
	}

	f, err := s.Register(c.Request.Context(), RegisterInput{
		Cedula:           req.Cedula,
		NombreCompleto:   req.NombreCompleto,
		Telefono:         req.Telefono,
		ZonaCode:         req.ZonaCode,
		NivelEducativo:   req.NivelEducativo,
		AniosExperiencia: req.AniosExperiencia,
		Oficio:           req.Oficio,
		RegistroLat:      req.RegistroLat,
		RegistroLng:      req.RegistroLng,
		CasaLat:          req.CasaLat,
		CasaLng:          req.CasaLng,
		TrabajoLat:       req.TrabajoLat,
		TrabajoLng:       req.TrabajoLng,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "ficha": f})
}

func (s *Service) handleClasificacion(c *gin.Context) {
	view, err := s.Clasificacion(c.Request.Context(), c.Query("code"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Service) handleResumen(c *gin.Context) {
	resumen, err := s.Resumen(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resumen)
}

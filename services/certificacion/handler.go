package certificacion

import (
	"net/http"
	"strconv"
	"time"

	"padron-controlplane/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type createRequest struct {
	Tipo        Tipo   `json:"tipo" binding:"required"`
	Institucion string `json:"institucion" binding:"required"`
	IssuedAt    string `json:"issued_at"`
	Credencial  string `json:"credencial"`
}

func (s *Service) handleCreate(c *gin.Context) {
	raw, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errutil.BadRequest("invalid ficha id", err))
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("missing certification fields", err))
		return
	}

	var issuedAt time.Time
	if req.IssuedAt != "" {
		issuedAt, err = time.Parse("2006-01-02", req.IssuedAt)
		if err != nil {
			c.Error(errutil.ValidationFailed("invalid issued_at, expected YYYY-MM-DD", err))
			return
		}
	}

	cert, svcErr := s.Create(c.Request.Context(), CreateInput{
		FichaID:     snowflake.ID(raw),
		Tipo:        req.Tipo,
		Institucion: req.Institucion,
		IssuedAt:    issuedAt,
		Credencial:  req.Credencial,
	})
	if svcErr != nil {
		c.Error(svcErr)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "certificacion": cert})
}

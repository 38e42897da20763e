package derivacion

import (
	"net/http"
	"strconv"

	"padron-controlplane/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type advanceRequest struct {
	Status Status `json:"status" binding:"required"`
}

func (s *Service) handleAdvance(c *gin.Context) {
	raw, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errutil.BadRequest("invalid derivacion id", err))
		return
	}

	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("missing status", err))
		return
	}

	d, svcErr := s.Advance(c.Request.Context(), snowflake.ID(raw), req.Status)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "derivacion": d})
}

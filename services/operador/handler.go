package operador

import (
	"net/http"
	"strconv"

	"padron-controlplane/pkg/errutil"
	"padron-controlplane/services/ficha"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type upsertRequest struct {
	Cedula      string `json:"cedula" binding:"required"`
	ZoneCode    string `json:"zone_code"`
	DisplayName string `json:"display_name"`
	Pin         string `json:"pin"`
}

func (s *Service) handleUpsert(c *gin.Context) {
	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("missing operator fields", err))
		return
	}

	op, err := s.Upsert(c.Request.Context(), UpsertInput{
		Cedula:      req.Cedula,
		ZoneCode:    req.ZoneCode,
		DisplayName: req.DisplayName,
		Pin:         req.Pin,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "operador": op})
}

type claimRequest struct {
	RecordID   string `json:"recordId" binding:"required"`
	OperatorID string `json:"operatorId" binding:"required"`
}

func (s *Service) handleClaim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("recordId and operatorId are required", err))
		return
	}

	fichaID, err := parseRecordID(req.RecordID)
	if err != nil {
		c.Error(err)
		return
	}

	f, svcErr := s.Claim(c.Request.Context(), fichaID, req.OperatorID)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "recordId": f.ID.String(), "assignment": f.Assignment()})
}

type dictamenRequest struct {
	RecordID                   string         `json:"recordId" binding:"required"`
	OperatorID                 string         `json:"operatorId" binding:"required"`
	Verdict                    ficha.Dictamen `json:"verdict" binding:"required"`
	EquipmentShortfallEvidence bool           `json:"equipmentShortfallEvidence"`
}

func (s *Service) handleDictamen(c *gin.Context) {
	var req dictamenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("recordId, operatorId and verdict are required", err))
		return
	}

	fichaID, err := parseRecordID(req.RecordID)
	if err != nil {
		c.Error(err)
		return
	}

	res, svcErr := s.Adjudicate(c.Request.Context(), fichaID, req.OperatorID, req.Verdict, req.EquipmentShortfallEvidence)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":                 true,
		"recordId":           res.FichaID.String(),
		"verdict":            res.Verdict,
		"verificationStatus": res.VerificationStatus,
	})
}

func (s *Service) handleEvidencia(c *gin.Context) {
	fichaID, err := parseRecordID(c.PostForm("recordId"))
	if err != nil {
		c.Error(err)
		return
	}
	operatorID := c.PostForm("operatorId")

	file, header, ferr := c.Request.FormFile("file")
	if ferr != nil {
		c.Error(errutil.BadRequest("evidence file is required", ferr))
		return
	}
	defer file.Close()

	key, svcErr := s.UploadEvidence(c.Request.Context(), fichaID, operatorID,
		header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "key": key})
}

type linkWalletRequest struct {
	Cedula string `json:"cedula" binding:"required"`
	Phone  string `json:"phone" binding:"required"`
}

func (s *Service) handleLinkWallet(c *gin.Context) {
	var req linkWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("cedula and phone are required", err))
		return
	}

	op, err := s.LinkWallet(c.Request.Context(), req.Cedula, req.Phone)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "operador": op})
}

func parseRecordID(raw string) (snowflake.ID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errutil.BadRequest("invalid record id", err)
	}
	return snowflake.ID(id), nil
}

package billetera

import (
	"net/http"

	"padron-controlplane/pkg/db/pagination"
	"padron-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type withdrawRequest struct {
	Cedula        string  `json:"cedula" binding:"required"`
	Destination   Destino `json:"destination" binding:"required"`
	Amount        any     `json:"amount" binding:"required"`
	Bank          string  `json:"bank"`
	AccountNumber string  `json:"accountNumber"`
}

func (s *Service) handleWithdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("cedula, destination and amount are required", err))
		return
	}

	res, err := s.Withdraw(c.Request.Context(), WithdrawInput{
		Cedula:        req.Cedula,
		Destination:   req.Destination,
		Amount:        req.Amount,
		Bank:          req.Bank,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"destination": res.Destination,
		"amount":      res.Amount,
		"message":     "withdrawal recorded",
		"codigo":      res.Codigo,
	})
}

func (s *Service) handleMovimientos(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	movs, info, err := s.Movimientos(c.Request.Context(), c.Query("cedula"), page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"movimientos": movs, "page_info": info})
}

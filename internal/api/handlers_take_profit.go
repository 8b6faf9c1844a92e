package api

import (
	"errors"
	"net/http"
	"strings"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/takeprofit"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListTakeProfit(c *gin.Context) {
	orders, err := s.deps.TakeProfit.List(c.Request.Context(), s.getUserID(c), strings.ToLower(c.Query("status")))
	if err != nil {
		s.storeError(c, err, "take-profit orders")
		return
	}
	if orders == nil {
		orders = []database.TakeProfitOrder{}
	}
	successResponse(c, orders)
}

func (s *Server) handleCreateTakeProfit(c *gin.Context) {
	var req takeprofit.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "walletAddress, tokenAddress, entryPrice and targetPercent are required")
		return
	}
	if !validAddress(req.WalletAddress) {
		errorResponse(c, http.StatusBadRequest, "invalid wallet address")
		return
	}

	order, err := s.deps.TakeProfit.Create(c.Request.Context(), s.getUserID(c), req)
	if errors.Is(err, takeprofit.ErrInvalidOrder) {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.storeError(c, err, "take-profit order")
		return
	}
	successResponse(c, order)
}

func (s *Server) handleCancelTakeProfit(c *gin.Context) {
	order, err := s.deps.TakeProfit.Cancel(c.Request.Context(), s.getUserID(c), c.Param("id"))
	switch {
	case err == nil:
		successResponse(c, order)
	case errors.Is(err, takeprofit.ErrOrderNotFound):
		errorResponse(c, http.StatusNotFound, "take-profit order not found")
	case errors.Is(err, takeprofit.ErrOrderNotPending):
		errorResponse(c, http.StatusConflict, err.Error())
	default:
		s.storeError(c, err, "take-profit order")
	}
}

package api

import (
	"net/http"

	"solana-copy-trader/internal/logging"

	"github.com/gin-gonic/gin"
)

// handleTokenPrice returns DexScreener data for a token
func (s *Server) handleTokenPrice(c *gin.Context) {
	address := c.Param("address")
	if !validAddress(address) {
		errorResponse(c, http.StatusBadRequest, "invalid token address")
		return
	}

	info, err := s.deps.Market.GetTokenInfo(c.Request.Context(), address)
	if err != nil {
		logging.FromContext(c.Request.Context()).Warn().Err(err).Str("token", address).Msg("Market data unavailable")
		errorResponse(c, http.StatusBadGateway, "market data unavailable")
		return
	}
	if info == nil {
		errorResponse(c, http.StatusNotFound, "no trading pair for token")
		return
	}

	successResponse(c, gin.H{
		"token": info,
		"price": info.PriceData(),
	})
}

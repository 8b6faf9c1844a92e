package api

import (
	"errors"
	"net/http"

	"solana-copy-trader/internal/copytrade"
	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"
)

// PrepareTradeRequest asks for a priced copy trade
type PrepareTradeRequest struct {
	SignalID      string  `json:"signalId" binding:"required"`
	WalletAddress string  `json:"walletAddress" binding:"required"`
	Amount        float64 `json:"amount"` // overrides the per-trade SOL cap
}

// BuildTransactionRequest asks for an unsigned swap transaction. Without a
// quote the signal is processed first.
type BuildTransactionRequest struct {
	SignalID      string         `json:"signalId" binding:"required"`
	WalletAddress string         `json:"walletAddress" binding:"required"`
	Quote         *jupiter.Quote `json:"quote"`
}

// validAddress reports whether s is a base58 ed25519 public key
func validAddress(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}

// handlePrepareTrade scores and quotes a signal. Nothing is signed here.
func (s *Server) handlePrepareTrade(c *gin.Context) {
	var req PrepareTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "signalId and walletAddress are required")
		return
	}
	if !validAddress(req.WalletAddress) {
		errorResponse(c, http.StatusBadRequest, "invalid wallet address")
		return
	}
	if req.Amount < 0 {
		errorResponse(c, http.StatusBadRequest, "amount must be positive")
		return
	}

	ctx := c.Request.Context()
	cfg := s.copyConfig(ctx, s.getUserID(c))
	if req.Amount > 0 {
		cfg.MaxSolPerTrade = req.Amount
	}

	res, err := s.deps.Orchestrator.ProcessSignal(ctx, req.SignalID, cfg)
	if err != nil {
		s.storeError(c, err, "signal")
		return
	}

	if res.Skipped {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"skipped": true,
			"reason":  res.Reason,
			"signal":  res.Signal,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"signal":  res.Signal,
		"trade":   res.Prepared,
		"quote":   res.Prepared.Quote,
	})
}

// handleRecordTrade stores the outcome of a trade the user signed
func (s *Server) handleRecordTrade(c *gin.Context) {
	var req copytrade.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "signalId is required")
		return
	}

	caller := s.getUserID(c)
	switch {
	case s.authEnabled && req.UserID != "" && req.UserID != caller:
		errorResponse(c, http.StatusForbidden, "cannot record trades for another user")
		return
	case s.authEnabled || req.UserID == "":
		req.UserID = caller
	}

	res, err := s.deps.Executor.RecordExecution(c.Request.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, copytrade.ErrInvalidTradeStatus):
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, database.ErrSignalAlreadyClaimed):
		errorResponse(c, http.StatusConflict, "signal already has a live trade")
		return
	default:
		s.storeError(c, err, "signal")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tradeId": res.TradeID,
		"txHash":  res.TxHash,
	})
}

// handleBuildTransaction returns a base64 swap transaction for the browser
// wallet to sign and send.
func (s *Server) handleBuildTransaction(c *gin.Context) {
	var req BuildTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "signalId and walletAddress are required")
		return
	}
	if !validAddress(req.WalletAddress) {
		errorResponse(c, http.StatusBadRequest, "invalid wallet address")
		return
	}

	ctx := c.Request.Context()
	quote := req.Quote
	if quote == nil {
		res, err := s.deps.Orchestrator.ProcessSignal(ctx, req.SignalID, s.copyConfig(ctx, s.getUserID(c)))
		if err != nil {
			s.storeError(c, err, "signal")
			return
		}
		if res.Skipped {
			c.JSON(http.StatusOK, gin.H{
				"success": false,
				"skipped": true,
				"reason":  res.Reason,
			})
			return
		}
		quote = res.Prepared.Quote
	}

	tx, err := s.deps.Swaps.BuildSwapTransaction(ctx, quote, req.WalletAddress, s.deps.Fees)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("signal_id", req.SignalID).Msg("Swap transaction build failed")
		errorResponse(c, http.StatusBadGateway, "failed to build swap transaction")
		return
	}

	successResponse(c, gin.H{
		"signalId":    req.SignalID,
		"transaction": tx,
		"quote":       quote,
	})
}

package api

import (
	"strconv"
	"strings"

	"solana-copy-trader/internal/database"

	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// queryLimit parses ?limit= within [1, maxListLimit]
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// handleListSignals returns recent signals, newest first
func (s *Server) handleListSignals(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	signals, err := s.deps.Store.ListSignals(c.Request.Context(), database.SignalFilter{
		Status:        strings.ToUpper(c.Query("status")),
		WalletAddress: c.Query("wallet"),
		Limit:         queryLimit(c),
		Offset:        offset,
	})
	if err != nil {
		s.storeError(c, err, "signals")
		return
	}
	if signals == nil {
		signals = []database.Signal{}
	}

	successResponse(c, signals)
}

// handleGetSignal returns one signal
func (s *Server) handleGetSignal(c *gin.Context) {
	sig, err := s.deps.Store.GetSignal(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err, "signal")
		return
	}
	successResponse(c, sig)
}

// handleProcessSignal runs scoring and quoting with the caller's settings
// and returns the full result, skipped or not.
func (s *Server) handleProcessSignal(c *gin.Context) {
	ctx := c.Request.Context()
	res, err := s.deps.Orchestrator.ProcessSignal(ctx, c.Param("id"), s.copyConfig(ctx, s.getUserID(c)))
	if err != nil {
		s.storeError(c, err, "signal")
		return
	}
	successResponse(c, res)
}

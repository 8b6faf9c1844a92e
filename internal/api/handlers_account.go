package api

import (
	"errors"
	"net/http"

	"solana-copy-trader/internal/database"

	"github.com/gin-gonic/gin"
)

// SubscriptionRequest updates the caller's copy-trade settings. Omitted
// fields keep their current value.
type SubscriptionRequest struct {
	MaxSolPerTrade   *float64 `json:"maxSolPerTrade"`
	ScoreThreshold   *int     `json:"scoreThreshold"`
	SlippageBps      *int     `json:"slippageBps"`
	UseMevProtection *bool    `json:"useMevProtection"`
	IsActive         *bool    `json:"isActive"`
}

func (s *Server) handleListTrades(c *gin.Context) {
	trades, err := s.deps.Store.ListExecutedTrades(c.Request.Context(), s.getUserID(c), queryLimit(c))
	if err != nil {
		s.storeError(c, err, "trades")
		return
	}
	if trades == nil {
		trades = []database.ExecutedTrade{}
	}
	successResponse(c, trades)
}

// handleGetSubscription returns the stored settings, or the server
// defaults for a user who never saved any.
func (s *Server) handleGetSubscription(c *gin.Context) {
	userID := s.getUserID(c)
	sub, err := s.deps.Store.GetSubscription(c.Request.Context(), userID)
	if errors.Is(err, database.ErrNotFound) {
		sub = s.defaultSubscription(userID)
	} else if err != nil {
		s.storeError(c, err, "subscription")
		return
	}
	successResponse(c, sub)
}

func (s *Server) handleUpdateSubscription(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case req.MaxSolPerTrade != nil && *req.MaxSolPerTrade <= 0:
		errorResponse(c, http.StatusBadRequest, "maxSolPerTrade must be positive")
		return
	case req.ScoreThreshold != nil && (*req.ScoreThreshold < 0 || *req.ScoreThreshold > 100):
		errorResponse(c, http.StatusBadRequest, "scoreThreshold must be within 0-100")
		return
	case req.SlippageBps != nil && (*req.SlippageBps <= 0 || *req.SlippageBps > 5000):
		errorResponse(c, http.StatusBadRequest, "slippageBps must be within 1-5000")
		return
	}

	ctx := c.Request.Context()
	userID := s.getUserID(c)
	sub, err := s.deps.Store.GetSubscription(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		sub = s.defaultSubscription(userID)
	} else if err != nil {
		s.storeError(c, err, "subscription")
		return
	}

	if req.MaxSolPerTrade != nil {
		sub.MaxSolPerTrade = *req.MaxSolPerTrade
	}
	if req.ScoreThreshold != nil {
		sub.ScoreThreshold = *req.ScoreThreshold
	}
	if req.SlippageBps != nil {
		sub.SlippageBps = *req.SlippageBps
	}
	if req.UseMevProtection != nil {
		sub.UseMevProtection = *req.UseMevProtection
	}
	if req.IsActive != nil {
		sub.IsActive = *req.IsActive
	}

	if err := s.deps.Store.UpsertSubscription(ctx, sub); err != nil {
		s.storeError(c, err, "subscription")
		return
	}
	successResponse(c, sub)
}

func (s *Server) defaultSubscription(userID string) *database.Subscription {
	d := s.deps.Defaults
	return &database.Subscription{
		UserID:           userID,
		MaxSolPerTrade:   d.MaxSolPerTrade,
		ScoreThreshold:   d.ScoreThreshold,
		SlippageBps:      d.SlippageBps,
		UseMevProtection: d.UseMevProtection,
		IsActive:         true,
	}
}

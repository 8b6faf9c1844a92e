package api

import (
	"net/http"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/logging"

	"github.com/gin-gonic/gin"
)

// WhaleRequest creates or updates a tracked wallet
type WhaleRequest struct {
	Address  string `json:"address"`
	Label    string `json:"label"`
	IsActive *bool  `json:"isActive"`
}

func (s *Server) handleListWhales(c *gin.Context) {
	whales, err := s.deps.Store.ListWhales(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		s.storeError(c, err, "whales")
		return
	}
	if whales == nil {
		whales = []database.Whale{}
	}
	successResponse(c, whales)
}

// handleUpsertWhale serves both POST /whales and PUT /whales/:address. On
// PUT the path address wins over the body.
func (s *Server) handleUpsertWhale(c *gin.Context) {
	var req WhaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if addr := c.Param("address"); addr != "" {
		req.Address = addr
	}
	if !validAddress(req.Address) {
		errorResponse(c, http.StatusBadRequest, "invalid wallet address")
		return
	}

	ctx := c.Request.Context()
	whale := &database.Whale{Address: req.Address, Label: req.Label, IsActive: true}
	if existing, err := s.deps.Store.GetWhale(ctx, req.Address); err == nil {
		whale.IsActive = existing.IsActive
		if req.Label == "" {
			whale.Label = existing.Label
		}
	}
	if req.IsActive != nil {
		whale.IsActive = *req.IsActive
	}

	if err := s.deps.Store.UpsertWhale(ctx, whale); err != nil {
		s.storeError(c, err, "whale")
		return
	}

	if s.deps.Bus != nil {
		s.deps.Bus.PublishWhaleUpdated(whale.Address, "saved", whale.IsActive)
	}
	logging.FromContext(ctx).Info().
		Str("address", whale.Address).
		Bool("active", whale.IsActive).
		Msg("Whale saved")
	successResponse(c, whale)
}

func (s *Server) handleDeleteWhale(c *gin.Context) {
	address := c.Param("address")
	if err := s.deps.Store.DeleteWhale(c.Request.Context(), address); err != nil {
		s.storeError(c, err, "whale")
		return
	}
	if s.deps.Bus != nil {
		s.deps.Bus.PublishWhaleUpdated(address, "deleted", false)
	}
	successResponse(c, gin.H{"address": address, "deleted": true})
}

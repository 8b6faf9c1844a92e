package api

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"solana-copy-trader/internal/ingest"
	"solana-copy-trader/internal/logging"

	"github.com/gin-gonic/gin"
)

// webhookAuth compares the Authorization header with the secret configured
// on the Helius webhook. An empty secret disables the check.
func (s *Server) webhookAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := s.config.WebhookAuthToken
		if want == "" {
			c.Next()
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			errorResponse(c, http.StatusUnauthorized, "invalid webhook credentials")
			c.Abort()
			return
		}
		c.Next()
	}
}

// handleHeliusWebhook ingests one event or a batch. One bad event never
// fails the batch; only an unreadable body is an error.
func (s *Server) handleHeliusWebhook(c *gin.Context) {
	log := logging.FromContext(c.Request.Context())

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 10<<20))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to read body")
		return
	}
	evs, err := ingest.ParseEvents(body)
	if err != nil {
		log.Warn().Err(err).Msg("Malformed webhook payload")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "malformed JSON payload",
		})
		return
	}

	res, err := s.deps.Ingest.Ingest(c.Request.Context(), evs)
	if err != nil {
		log.Error().Err(err).Msg("Webhook batch not processed")
		c.JSON(http.StatusOK, gin.H{
			"success":   false,
			"processed": 0,
			"signalIds": []string{},
			"error":     "tracked wallets unavailable",
		})
		return
	}

	ids := res.SignalIDs
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": res.Processed,
		"signalIds": ids,
	})
}

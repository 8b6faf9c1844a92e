package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const traceHeader = "X-Trace-ID"

// GenerateTraceID creates a short random trace ID
func GenerateTraceID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return time.Now().Format("150405.000000")
	}
	return hex.EncodeToString(b)
}

// FromContext returns the request logger stored in ctx, or the default logger
func FromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	l := Default()
	return &l
}

// NewContext stores a logger in ctx
func NewContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// SignalContext returns a logger tagged with signal fields
func SignalContext(l zerolog.Logger, signalID, tokenAddress string) zerolog.Logger {
	return l.With().Str("signal_id", signalID).Str("token", tokenAddress).Logger()
}

// OrderContext returns a logger tagged with take-profit order fields
func OrderContext(l zerolog.Logger, orderID, tokenAddress string) zerolog.Logger {
	return l.With().Str("order_id", orderID).Str("token", tokenAddress).Logger()
}

// GinMiddleware logs each request with a trace ID and puts the request
// logger on the request context.
func GinMiddleware(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader(traceHeader)
		if traceID == "" {
			traceID = GenerateTraceID()
		}
		c.Header(traceHeader, traceID)

		l := base.With().
			Str("component", "http").
			Str("trace_id", traceID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), l))

		c.Next()

		status := c.Writer.Status()
		evt := l.Info()
		if status >= 500 {
			evt = l.Error()
		} else if status >= 400 {
			evt = l.Warn()
		}
		evt.Int("status_code", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

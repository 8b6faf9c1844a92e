package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"solana-copy-trader/internal/auth"
	"solana-copy-trader/internal/copytrade"
	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"
	"solana-copy-trader/internal/ingest"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/logging"
	"solana-copy-trader/internal/market"
	"solana-copy-trader/internal/takeprofit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// defaultUserID stands in for the caller when auth is disabled
const defaultUserID = "00000000-0000-0000-0000-000000000000"

// Store is the persistence the handlers read and write directly
type Store interface {
	HealthCheck(ctx context.Context) error
	GetSignal(ctx context.Context, id string) (*database.Signal, error)
	ListSignals(ctx context.Context, f database.SignalFilter) ([]database.Signal, error)
	ListWhales(ctx context.Context, activeOnly bool) ([]database.Whale, error)
	GetWhale(ctx context.Context, address string) (*database.Whale, error)
	UpsertWhale(ctx context.Context, w *database.Whale) error
	DeleteWhale(ctx context.Context, address string) error
	ListExecutedTrades(ctx context.Context, userID string, limit int) ([]database.ExecutedTrade, error)
	GetSubscription(ctx context.Context, userID string) (*database.Subscription, error)
	UpsertSubscription(ctx context.Context, s *database.Subscription) error
}

// SwapBuilder builds unsigned swap transactions for the browser wallet
type SwapBuilder interface {
	BuildSwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey string, fees jupiter.Fees) (*jupiter.SwapTransaction, error)
}

// TokenMarket serves token market data
type TokenMarket interface {
	GetTokenInfo(ctx context.Context, tokenAddress string) (*market.TokenInfo, error)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port             int
	Host             string
	ProductionMode   bool
	AllowedOrigins   []string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	WebhookAuthToken string // empty accepts unauthenticated webhooks
}

// Deps are the services behind the routes. Validator nil disables auth.
type Deps struct {
	Store        Store
	Ingest       *ingest.Handler
	Orchestrator *copytrade.Orchestrator
	Executor     *copytrade.Executor
	TakeProfit   *takeprofit.Service
	Swaps        SwapBuilder
	Market       TokenMarket
	Bus          *events.EventBus
	Validator    *auth.Validator
	Defaults     copytrade.Config
	Fees         jupiter.Fees
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      ServerConfig
	deps        Deps
	hub         *WSHub
	upgrader    websocket.Upgrader
	authEnabled bool
	logger      zerolog.Logger
}

// NewServer creates a new API server
func NewServer(config ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(logging.GinMiddleware(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.AllowedOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		config:      config,
		deps:        deps,
		upgrader:    newUpgrader(corsConfig.AllowOrigins),
		authEnabled: deps.Validator != nil,
		logger:      logger.With().Str("component", "api").Logger(),
	}

	if deps.Bus != nil {
		s.hub = NewWSHub(s.logger)
		go s.hub.Run()
		deps.Bus.SubscribeAll(s.hub.BroadcastEvent)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Helius authenticates with a shared secret, not a user token
	s.router.POST("/api/webhook/helius", s.webhookAuth(), s.handleHeliusWebhook)

	api := s.router.Group("/api")
	if s.authEnabled {
		api.Use(auth.Middleware(s.deps.Validator))
	}
	{
		api.POST("/trade", s.handlePrepareTrade)
		api.PUT("/trade", s.handleRecordTrade)
		api.POST("/trade/transaction", s.handleBuildTransaction)

		api.GET("/signals", s.handleListSignals)
		api.GET("/signals/:id", s.handleGetSignal)
		api.POST("/signals/:id/process", s.handleProcessSignal)

		api.GET("/whales", s.handleListWhales)
		operator := api.Group("/whales")
		if s.authEnabled {
			operator.Use(auth.RequireOperator())
		}
		operator.POST("", s.handleUpsertWhale)
		operator.PUT("/:address", s.handleUpsertWhale)
		operator.DELETE("/:address", s.handleDeleteWhale)

		api.GET("/trades", s.handleListTrades)
		api.GET("/subscription", s.handleGetSubscription)
		api.PUT("/subscription", s.handleUpdateSubscription)

		api.GET("/take-profit", s.handleListTakeProfit)
		api.POST("/take-profit", s.handleCreateTakeProfit)
		api.DELETE("/take-profit/:id", s.handleCancelTakeProfit)

		api.GET("/tokens/:address/price", s.handleTokenPrice)
	}

	if s.hub != nil {
		ws := s.router.Group("/ws")
		if s.authEnabled {
			ws.Use(auth.OptionalMiddleware(s.deps.Validator))
		}
		ws.GET("", s.handleWebSocket)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Store.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	clients := 0
	if s.hub != nil {
		clients = s.hub.GetClientCount()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  "healthy",
		"wsClients": clients,
		"time":      time.Now().Format(time.RFC3339),
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// storeError maps a repository error to a response
func (s *Server) storeError(c *gin.Context, err error, what string) {
	if errors.Is(err, database.ErrNotFound) || errors.Is(err, copytrade.ErrSignalNotFound) {
		errorResponse(c, http.StatusNotFound, what+" not found")
		return
	}
	logging.FromContext(c.Request.Context()).Error().Err(err).Msg("Request failed")
	errorResponse(c, http.StatusInternalServerError, "internal error")
}

// getUserID returns the user ID from the context, or empty string if not authenticated
func (s *Server) getUserID(c *gin.Context) string {
	if !s.authEnabled {
		return defaultUserID
	}
	return auth.GetUserID(c)
}

// copyConfig returns the caller's copy-trade parameters
func (s *Server) copyConfig(ctx context.Context, userID string) copytrade.Config {
	sub, err := s.deps.Store.GetSubscription(ctx, userID)
	if err != nil {
		return s.deps.Defaults
	}
	return copytrade.ConfigFromSubscription(sub, s.deps.Defaults)
}

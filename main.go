package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-copy-trader/config"
	"solana-copy-trader/internal/ai/llm"
	"solana-copy-trader/internal/api"
	"solana-copy-trader/internal/auth"
	"solana-copy-trader/internal/cache"
	"solana-copy-trader/internal/copytrade"
	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"
	"solana-copy-trader/internal/ingest"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/logging"
	"solana-copy-trader/internal/market"
	"solana-copy-trader/internal/notification"
	"solana-copy-trader/internal/takeprofit"
	"solana-copy-trader/internal/vault"

	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Service:     "copy-trader",
	})
	logging.SetDefault(logger)

	ctx := context.Background()

	// Provider credentials from Vault fill whatever the environment left empty
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Vault client")
		}
		if err := vaultClient.ApplyToConfig(ctx, cfg); err != nil {
			logger.Fatal().Err(err).Msg("Failed to load secrets from Vault")
		}
		logger.Info().Str("addr", cfg.VaultConfig.Address).Msg("Provider secrets loaded from Vault")
	}

	// Initialize database
	db, err := database.NewDB(ctx, database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}, logging.Component("database"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}
	repo := database.NewRepository(db)

	// Token metadata cache: Redis when configured, in-process otherwise
	tokenCache, closeCache := newTokenCache(cfg.RedisConfig, logger)
	defer closeCache()

	eventBus := events.NewEventBus()

	// Notifications
	notifyManager := newNotificationManager(cfg.NotificationConfig, logger)
	if notifyManager.Enabled() {
		notifyManager.Subscribe(eventBus)
	}

	// Adapters
	marketClient := market.NewClient(market.Config{
		BaseURL:  cfg.DexScreenerConfig.BaseURL,
		CacheTTL: cfg.DexScreenerConfig.CacheTTL,
	}, tokenCache, logging.Component("dexscreener"))

	analyzer := llm.NewAnalyzer(analyzerConfig(cfg.AIConfig), tokenCache, logging.Component("llm"))

	jupiterClient := jupiter.NewClient(jupiter.Config{
		BaseURL: cfg.JupiterConfig.BaseURL,
		APIKey:  cfg.JupiterConfig.APIKey,
		Timeout: cfg.JupiterConfig.Timeout,
	}, logging.Component("jupiter"))

	// Core pipeline. The server never holds a key, so the executor only
	// records trades signed in the browser.
	ingestHandler := ingest.NewHandler(repo, eventBus, logging.Component("ingest"))
	orchestrator := copytrade.NewOrchestrator(repo, analyzer, marketClient, jupiterClient, eventBus, logging.Component("orchestrator"))
	executor := copytrade.NewExecutor(repo, nil, marketClient, eventBus, copytrade.ExecutorConfig{
		FailurePolicy: copytrade.FailurePolicy(cfg.CopyTradeConfig.FailurePolicy),
	}, logging.Component("executor"))
	takeProfit := takeprofit.NewService(repo, eventBus)

	defaults := copytrade.Config{
		MaxSolPerTrade:   cfg.CopyTradeConfig.MaxSolPerTrade,
		ScoreThreshold:   cfg.CopyTradeConfig.ScoreThreshold,
		SlippageBps:      cfg.CopyTradeConfig.SlippageBps,
		UseMevProtection: cfg.CopyTradeConfig.UseMevProtection,
	}

	if cfg.CopyTradeConfig.AutoScore {
		subscribeAutoScore(eventBus, orchestrator, defaults, logger)
		logger.Info().Msg("Signals are scored on arrival")
	}

	var validator *auth.Validator
	if cfg.AuthConfig.Enabled {
		validator = auth.NewValidator(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.Audience)
	} else {
		logger.Warn().Msg("Authentication disabled, all requests act as the default user")
	}

	server := api.NewServer(api.ServerConfig{
		Port:             cfg.ServerConfig.Port,
		Host:             cfg.ServerConfig.Host,
		ProductionMode:   cfg.ServerConfig.ProductionMode,
		AllowedOrigins:   splitList(cfg.ServerConfig.AllowedOrigins),
		ReadTimeout:      time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout:     time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
		WebhookAuthToken: cfg.HeliusConfig.WebhookAuthToken,
	}, api.Deps{
		Store:        repo,
		Ingest:       ingestHandler,
		Orchestrator: orchestrator,
		Executor:     executor,
		TakeProfit:   takeProfit,
		Swaps:        jupiterClient,
		Market:       marketClient,
		Bus:          eventBus,
		Validator:    validator,
		Defaults:     defaults,
		Fees: jupiter.Fees{
			PriorityFeeLamports: cfg.SolanaConfig.PriorityFeeLamports,
		},
	}, logging.Component("api"))

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Shutdown complete")
}

// subscribeAutoScore scores every new BUY signal so the dashboard shows a
// verdict without a click. Quotes are still taken on demand.
func subscribeAutoScore(bus *events.EventBus, o *copytrade.Orchestrator, cfg copytrade.Config, logger zerolog.Logger) {
	bus.Subscribe(events.EventSignalCreated, func(e events.Event) {
		id, _ := e.Data["signal_id"].(string)
		if id == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := o.ScoreSignal(ctx, id, cfg); err != nil {
			logger.Warn().Err(err).Str("signal_id", id).Msg("Auto-score failed")
		}
	})
}

func newTokenCache(cfg config.RedisConfig, logger zerolog.Logger) (cache.Cache, func()) {
	if cfg.Enabled {
		redisCache, err := cache.NewCacheService(cfg, logging.Component("cache"))
		if err == nil {
			logger.Info().Str("addr", cfg.Address).Msg("Using Redis token cache")
			// Redis outages degrade to process memory until the health check recovers
			return &cache.Fallback{Primary: redisCache, Secondary: cache.NewMemoryCache(0)},
				func() { redisCache.Close() }
		}
		logger.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
	}
	return cache.NewMemoryCache(0), func() {}
}

func newNotificationManager(cfg config.NotificationConfig, logger zerolog.Logger) *notification.Manager {
	manager := notification.NewManager(logging.Component("notification"))
	if !cfg.Enabled {
		return manager
	}

	if cfg.Telegram.Enabled {
		telegram, err := notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			Enabled:  cfg.Telegram.Enabled,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Telegram notifier disabled")
		} else {
			manager.AddNotifier(telegram)
			logger.Info().Msg("Telegram notifications enabled")
		}
	}

	if cfg.Discord.Enabled {
		manager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
			WebhookURL: cfg.Discord.WebhookURL,
			Enabled:    cfg.Discord.Enabled,
		}))
		logger.Info().Msg("Discord notifications enabled")
	}

	return manager
}

func analyzerConfig(ai config.AIConfig) *llm.AnalyzerConfig {
	c := llm.DefaultAnalyzerConfig()
	c.Enabled = ai.Enabled
	c.Provider = llm.Provider(strings.ToLower(ai.LLMProvider))
	c.APIKey = ai.APIKey()
	c.Model = ai.LLMModel
	c.Temperature = ai.Temperature
	c.RateLimitPerMin = ai.RateLimitPerMin
	return c
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

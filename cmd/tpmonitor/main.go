// Command tpmonitor is the local-signing agent. It holds the trading keypair,
// fills take-profit orders once their target price is reached and, with
// MONITOR_AUTO_COPY set, executes qualifying copy trades without a browser.
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
	"solana-copy-trader/internal/cache"
	"solana-copy-trader/internal/circuit"
	"solana-copy-trader/internal/copytrade"
	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/logging"
	"solana-copy-trader/internal/market"
	"solana-copy-trader/internal/notification"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/takeprofit"
	"solana-copy-trader/internal/vault"
	"solana-copy-trader/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Service:     "tpmonitor",
	})
	logging.SetDefault(logger)

	ctx := context.Background()

	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Vault client")
		}
		if err := vaultClient.ApplyToConfig(ctx, cfg); err != nil {
			logger.Fatal().Err(err).Msg("Failed to load secrets from Vault")
		}
	}

	if !cfg.MonitorConfig.Enabled && !cfg.MonitorConfig.AutoCopy {
		logger.Fatal().Msg("Nothing to do: set MONITOR_ENABLED or MONITOR_AUTO_COPY")
	}
	if cfg.SolanaConfig.KeypairPath == "" {
		logger.Fatal().Msg("SOLANA_KEYPAIR_PATH is required")
	}

	w, err := wallet.LoadKeypairFile(cfg.SolanaConfig.KeypairPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load keypair")
	}
	if cfg.MonitorConfig.WalletAddress != "" && cfg.MonitorConfig.WalletAddress != w.PublicKey() {
		logger.Fatal().
			Str("configured", cfg.MonitorConfig.WalletAddress).
			Str("keypair", w.PublicKey()).
			Msg("Keypair does not match MONITOR_WALLET_ADDRESS")
	}

	// Solana RPC: holdings, submission and confirmation
	rpc := solana.NewRPCClient(cfg.SolanaConfig.RPCURL, logging.Component("solana-rpc"))
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := rpc.GetHealth(checkCtx); err != nil {
		logger.Warn().Err(err).Str("rpc", cfg.SolanaConfig.RPCURL).Msg("RPC node reports unhealthy")
	}
	if lamports, err := rpc.GetBalance(checkCtx, w.PublicKey()); err == nil {
		logger.Info().
			Str("wallet", w.PublicKey()).
			Float64("sol", jupiter.LamportsToSol(lamports)).
			Msg("Signing wallet loaded")
	}
	cancel()

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
	repo := database.NewRepository(db)

	eventBus := events.NewEventBus()
	notifyManager := notification.NewManager(logging.Component("notification"))
	if cfg.NotificationConfig.Enabled && cfg.NotificationConfig.Telegram.Enabled {
		telegram, err := notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: cfg.NotificationConfig.Telegram.BotToken,
			ChatID:   cfg.NotificationConfig.Telegram.ChatID,
			Enabled:  true,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Telegram notifier disabled")
		} else {
			notifyManager.AddNotifier(telegram)
		}
	}
	if cfg.NotificationConfig.Enabled && cfg.NotificationConfig.Discord.Enabled {
		notifyManager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
			WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
			Enabled:    true,
		}))
	}
	if notifyManager.Enabled() {
		notifyManager.Subscribe(eventBus)
	}

	var tokenCache cache.Cache = cache.NewMemoryCache(0)
	if cfg.RedisConfig.Enabled {
		redisCache, err := cache.NewCacheService(cfg.RedisConfig, logging.Component("cache"))
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
		} else {
			defer redisCache.Close()
			tokenCache = &cache.Fallback{Primary: redisCache, Secondary: tokenCache}
		}
	}
	marketClient := market.NewClient(market.Config{
		BaseURL:  cfg.DexScreenerConfig.BaseURL,
		CacheTTL: cfg.DexScreenerConfig.CacheTTL,
	}, tokenCache, logging.Component("dexscreener"))

	jupiterClient := jupiter.NewClient(jupiter.Config{
		BaseURL: cfg.JupiterConfig.BaseURL,
		APIKey:  cfg.JupiterConfig.APIKey,
		Timeout: cfg.JupiterConfig.Timeout,
	}, logging.Component("jupiter"))
	submission := jupiter.Submission{
		RPC:            rpc,
		Confirmer:      rpc,
		Balances:       rpc,
		ConfirmTimeout: cfg.SolanaConfig.ConfirmTimeout,
	}
	if cfg.CopyTradeConfig.UseMevProtection && cfg.SolanaConfig.JitoURL != "" {
		submission.Jito = solana.NewJitoClient(cfg.SolanaConfig.JitoURL, logging.Component("jito"))
		submission.UseJito = true
		submission.JitoTipLamports = cfg.SolanaConfig.JitoTipLamports
	}
	jupiterClient.SetSubmission(submission)

	monitor := takeprofit.NewMonitor(repo, marketClient, rpc, jupiterClient, jupiterClient, w, eventBus,
		takeprofit.MonitorConfig{
			Enabled:             cfg.MonitorConfig.Enabled,
			Interval:            cfg.MonitorConfig.Interval,
			UserID:              cfg.MonitorConfig.UserID,
			WalletAddress:       w.PublicKey(),
			SlippageBps:         cfg.CopyTradeConfig.SlippageBps,
			PriorityFeeLamports: cfg.SolanaConfig.PriorityFeeLamports,
		}, logging.Component("tpmonitor"))
	monitor.OnTrigger = func(order database.TakeProfitOrder, price float64) {
		logger.Info().
			Str("order_id", order.ID).
			Str("token", order.TokenAddress).
			Float64("price", price).
			Float64("target", order.TargetPrice).
			Msg("Take-profit target reached")
	}
	monitor.Start()

	defaults := copytrade.Config{
		MaxSolPerTrade:   cfg.CopyTradeConfig.MaxSolPerTrade,
		ScoreThreshold:   cfg.CopyTradeConfig.ScoreThreshold,
		SlippageBps:      cfg.CopyTradeConfig.SlippageBps,
		UseMevProtection: cfg.CopyTradeConfig.UseMevProtection,
	}

	analyzerCfg := llm.DefaultAnalyzerConfig()
	analyzerCfg.Enabled = cfg.AIConfig.Enabled
	analyzerCfg.Provider = llm.Provider(strings.ToLower(cfg.AIConfig.LLMProvider))
	analyzerCfg.APIKey = cfg.AIConfig.APIKey()
	analyzerCfg.Model = cfg.AIConfig.LLMModel
	analyzerCfg.Temperature = cfg.AIConfig.Temperature
	analyzerCfg.RateLimitPerMin = cfg.AIConfig.RateLimitPerMin
	analyzer := llm.NewAnalyzer(analyzerCfg, tokenCache, logging.Component("llm"))

	orchestrator := copytrade.NewOrchestrator(repo, analyzer, marketClient, jupiterClient, eventBus, logging.Component("orchestrator"))
	executor := copytrade.NewExecutor(repo, jupiterClient, marketClient, eventBus, copytrade.ExecutorConfig{
		FailurePolicy:       copytrade.FailurePolicy(cfg.CopyTradeConfig.FailurePolicy),
		PriorityFeeLamports: cfg.SolanaConfig.PriorityFeeLamports,
	}, logging.Component("executor"))
	autoCopier := copytrade.NewAutoCopier(repo, orchestrator, executor, w, copytrade.AutoCopierConfig{
		Enabled:      cfg.MonitorConfig.AutoCopy,
		Interval:     cfg.MonitorConfig.Interval,
		UserID:       cfg.MonitorConfig.UserID,
		MaxSignalAge: cfg.MonitorConfig.MaxSignalAge,
		Defaults:     defaults,
	}, logging.Component("autocopy"))
	var breaker *circuit.Breaker
	if cfg.MonitorConfig.BreakerEnabled {
		breaker = circuit.NewBreaker(circuit.Config{
			Enabled:                true,
			MaxConsecutiveFailures: cfg.MonitorConfig.MaxConsecutiveFailures,
			MaxDailyTrades:         cfg.MonitorConfig.MaxDailyTrades,
			MaxDailySol:            cfg.MonitorConfig.MaxDailySol,
			Cooldown:               cfg.MonitorConfig.BreakerCooldown,
		}, eventBus, cfg.MonitorConfig.UserID)
		autoCopier.SetGate(breaker)
		eventBus.Subscribe(events.EventCircuitBreaker, func(e events.Event) {
			logger.Warn().Fields(breaker.GetStats()).Interface("reason", e.Data["reason"]).
				Msg("Auto-copy breaker changed state, send SIGUSR1 to reset")
		})
	}
	autoCopier.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	for sig := range sigChan {
		if sig == syscall.SIGUSR1 {
			if breaker != nil {
				breaker.ForceReset()
				logger.Info().Fields(breaker.GetStats()).Msg("Auto-copy breaker reset by operator")
			}
			continue
		}
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		break
	}

	autoCopier.Stop()
	monitor.Stop()
	logger.Info().Msg("Shutdown complete")
}

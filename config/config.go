package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerConfig       ServerConfig       `json:"server"`
	AuthConfig         AuthConfig         `json:"auth"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	VaultConfig        VaultConfig        `json:"vault"`
	LoggingConfig      LoggingConfig      `json:"logging"`
	AIConfig           AIConfig           `json:"ai"`
	JupiterConfig      JupiterConfig      `json:"jupiter"`
	DexScreenerConfig  DexScreenerConfig  `json:"dexscreener"`
	SolanaConfig       SolanaConfig       `json:"solana"`
	HeliusConfig       HeliusConfig       `json:"helius"`
	CopyTradeConfig    CopyTradeConfig    `json:"copy_trade"`
	MonitorConfig      MonitorConfig      `json:"monitor"`
	NotificationConfig NotificationConfig `json:"notification"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// ServerConfig holds HTTP API server settings
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	ProductionMode  bool   `json:"production_mode"`
	AllowedOrigins  string `json:"allowed_origins"` // comma separated
	ReadTimeout     int    `json:"read_timeout"`    // seconds
	WriteTimeout    int    `json:"write_timeout"`   // seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// AuthConfig configures validation of access tokens issued by the auth provider.
// The service never issues tokens itself.
type AuthConfig struct {
	Enabled   bool   `json:"enabled"`
	JWTSecret string `json:"jwt_secret"`
	Audience  string `json:"audience"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for the token metadata cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault settings for provider credentials
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// AIConfig configures the risk scoring LLM
type AIConfig struct {
	Enabled         bool    `json:"enabled"`
	LLMProvider     string  `json:"llm_provider"` // claude, openai, deepseek
	ClaudeAPIKey    string  `json:"claude_api_key"`
	OpenAIAPIKey    string  `json:"openai_api_key"`
	DeepSeekAPIKey  string  `json:"deepseek_api_key"`
	LLMModel        string  `json:"llm_model"`
	RateLimitPerMin int     `json:"rate_limit_per_min"`
	Temperature     float64 `json:"temperature"`
}

// APIKey returns the key for the configured provider
func (c AIConfig) APIKey() string {
	switch strings.ToLower(c.LLMProvider) {
	case "openai":
		return c.OpenAIAPIKey
	case "deepseek":
		return c.DeepSeekAPIKey
	default:
		return c.ClaudeAPIKey
	}
}

type JupiterConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Timeout time.Duration `json:"timeout"`
}

type DexScreenerConfig struct {
	BaseURL  string        `json:"base_url"`
	CacheTTL time.Duration `json:"cache_ttl"`
}

// SolanaConfig holds RPC and bundle submission endpoints
type SolanaConfig struct {
	RPCURL              string        `json:"rpc_url"`
	JitoURL             string        `json:"jito_url"`
	JitoTipLamports     uint64        `json:"jito_tip_lamports"`
	PriorityFeeLamports uint64        `json:"priority_fee_lamports"`
	ConfirmTimeout      time.Duration `json:"confirm_timeout"`
	KeypairPath         string        `json:"keypair_path"` // tpmonitor only
}

// HeliusConfig holds the shared secret Helius sends in the Authorization header
type HeliusConfig struct {
	WebhookAuthToken string `json:"webhook_auth_token"`
}

// CopyTradeConfig holds the default copy-trade parameters applied when a
// user has no subscription row.
type CopyTradeConfig struct {
	MaxSolPerTrade   float64 `json:"max_sol_per_trade"`
	ScoreThreshold   int     `json:"score_threshold"`
	SlippageBps      int     `json:"slippage_bps"`
	UseMevProtection bool    `json:"use_mev_protection"`
	AutoScore        bool    `json:"auto_score"`
	FailurePolicy    string  `json:"failure_policy"` // keep, mark_failed, rescore
}

// MonitorConfig configures the local-signing agent: the take-profit
// polling loop and, when AutoCopy is set, automatic copy trades.
type MonitorConfig struct {
	Enabled       bool          `json:"enabled"`
	Interval      time.Duration `json:"interval"`
	UserID        string        `json:"user_id"`
	WalletAddress string        `json:"wallet_address"`
	AutoCopy      bool          `json:"auto_copy"`
	MaxSignalAge  time.Duration `json:"max_signal_age"`

	// Circuit breaker for auto-copy
	BreakerEnabled         bool          `json:"breaker_enabled"`
	MaxConsecutiveFailures int           `json:"max_consecutive_failures"`
	MaxDailyTrades         int           `json:"max_daily_trades"`
	MaxDailySol            float64       `json:"max_daily_sol"`
	BreakerCooldown        time.Duration `json:"breaker_cooldown"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// Load reads config.json (optional), then .env (optional), then applies
// environment overrides.
func Load() (*Config, error) {
	cfg, err := loadFromFile(getEnvOrDefault("CONFIG_FILE", "config.json"))
	if err != nil {
		cfg = &Config{}
	}

	// Missing .env is fine in containers
	_ = godotenv.Load()

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings that would otherwise fail late at runtime
func (c *Config) Validate() error {
	if c.AuthConfig.Enabled && c.AuthConfig.JWTSecret == "" {
		return fmt.Errorf("auth enabled but AUTH_JWT_SECRET is empty")
	}
	if c.CopyTradeConfig.ScoreThreshold < 0 || c.CopyTradeConfig.ScoreThreshold > 100 {
		return fmt.Errorf("score threshold must be within 0..100, got %d", c.CopyTradeConfig.ScoreThreshold)
	}
	if c.CopyTradeConfig.MaxSolPerTrade <= 0 {
		return fmt.Errorf("max SOL per trade must be positive")
	}
	switch c.CopyTradeConfig.FailurePolicy {
	case "keep", "mark_failed", "rescore":
	default:
		return fmt.Errorf("unknown failure policy %q", c.CopyTradeConfig.FailurePolicy)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", orInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", orString(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.ProductionMode = getEnvBoolOrDefault("PRODUCTION_MODE", cfg.ServerConfig.ProductionMode)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", orString(cfg.ServerConfig.AllowedOrigins, "http://localhost:3000"))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", orInt(cfg.ServerConfig.ReadTimeout, 15))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", orInt(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", orInt(cfg.ServerConfig.ShutdownTimeout, 30))

	// Auth config (Supabase access tokens)
	cfg.AuthConfig.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.AuthConfig.Enabled)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.Audience = getEnvOrDefault("AUTH_AUDIENCE", orString(cfg.AuthConfig.Audience, "authenticated"))

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", orString(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", orInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", orString(cfg.DatabaseConfig.User, "copytrader"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", orString(cfg.DatabaseConfig.Database, "copytrader"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", orString(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis config
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", orString(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", orInt(cfg.RedisConfig.PoolSize, 10))

	// Vault config
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", orString(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", orString(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", orString(cfg.VaultConfig.SecretPath, "copy-trader/providers"))
	cfg.VaultConfig.TLSEnabled = getEnvBoolOrDefault("VAULT_TLS_ENABLED", cfg.VaultConfig.TLSEnabled)
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CA_CERT", cfg.VaultConfig.CACert)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", orString(cfg.LoggingConfig.Level, "INFO"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", orString(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)

	// AI config
	cfg.AIConfig.Enabled = getEnvBoolOrDefault("AI_ENABLED", cfg.AIConfig.Enabled || cfg.AIConfig.LLMProvider == "")
	cfg.AIConfig.LLMProvider = getEnvOrDefault("AI_LLM_PROVIDER", orString(cfg.AIConfig.LLMProvider, "claude"))
	cfg.AIConfig.ClaudeAPIKey = getEnvOrDefault("AI_CLAUDE_API_KEY", cfg.AIConfig.ClaudeAPIKey)
	cfg.AIConfig.OpenAIAPIKey = getEnvOrDefault("AI_OPENAI_API_KEY", cfg.AIConfig.OpenAIAPIKey)
	cfg.AIConfig.DeepSeekAPIKey = getEnvOrDefault("AI_DEEPSEEK_API_KEY", cfg.AIConfig.DeepSeekAPIKey)
	cfg.AIConfig.LLMModel = getEnvOrDefault("AI_LLM_MODEL", orString(cfg.AIConfig.LLMModel, "claude-3-haiku-20240307"))
	cfg.AIConfig.RateLimitPerMin = getEnvIntOrDefault("AI_RATE_LIMIT_PER_MIN", orInt(cfg.AIConfig.RateLimitPerMin, 30))
	cfg.AIConfig.Temperature = getEnvFloatOrDefault("AI_TEMPERATURE", orFloat(cfg.AIConfig.Temperature, 0.2))

	// Jupiter
	cfg.JupiterConfig.BaseURL = getEnvOrDefault("JUPITER_BASE_URL", orString(cfg.JupiterConfig.BaseURL, "https://quote-api.jup.ag/v6"))
	cfg.JupiterConfig.APIKey = getEnvOrDefault("JUPITER_API_KEY", cfg.JupiterConfig.APIKey)
	cfg.JupiterConfig.Timeout = getEnvDurationOrDefault("JUPITER_TIMEOUT", orDuration(cfg.JupiterConfig.Timeout, 10*time.Second))

	// DexScreener
	cfg.DexScreenerConfig.BaseURL = getEnvOrDefault("DEXSCREENER_BASE_URL", orString(cfg.DexScreenerConfig.BaseURL, "https://api.dexscreener.com"))
	cfg.DexScreenerConfig.CacheTTL = getEnvDurationOrDefault("DEXSCREENER_CACHE_TTL", orDuration(cfg.DexScreenerConfig.CacheTTL, 30*time.Second))

	// Solana
	cfg.SolanaConfig.RPCURL = getEnvOrDefault("SOLANA_RPC_URL", orString(cfg.SolanaConfig.RPCURL, "https://api.mainnet-beta.solana.com"))
	cfg.SolanaConfig.JitoURL = getEnvOrDefault("JITO_BLOCK_ENGINE_URL", orString(cfg.SolanaConfig.JitoURL, "https://mainnet.block-engine.jito.wtf"))
	cfg.SolanaConfig.JitoTipLamports = uint64(getEnvIntOrDefault("JITO_TIP_LAMPORTS", int(orUint(cfg.SolanaConfig.JitoTipLamports, 10000))))
	cfg.SolanaConfig.PriorityFeeLamports = uint64(getEnvIntOrDefault("PRIORITY_FEE_LAMPORTS", int(orUint(cfg.SolanaConfig.PriorityFeeLamports, 100000))))
	cfg.SolanaConfig.ConfirmTimeout = getEnvDurationOrDefault("SOLANA_CONFIRM_TIMEOUT", orDuration(cfg.SolanaConfig.ConfirmTimeout, 60*time.Second))
	cfg.SolanaConfig.KeypairPath = getEnvOrDefault("SOLANA_KEYPAIR_PATH", cfg.SolanaConfig.KeypairPath)

	// Helius
	cfg.HeliusConfig.WebhookAuthToken = getEnvOrDefault("HELIUS_WEBHOOK_AUTH", cfg.HeliusConfig.WebhookAuthToken)

	// Copy-trade defaults: 0.1 SOL, threshold 80, 1% slippage, MEV protection on
	mevDefault := cfg.CopyTradeConfig.UseMevProtection || cfg.CopyTradeConfig.MaxSolPerTrade == 0
	cfg.CopyTradeConfig.MaxSolPerTrade = getEnvFloatOrDefault("COPY_MAX_SOL_PER_TRADE", orFloat(cfg.CopyTradeConfig.MaxSolPerTrade, 0.1))
	cfg.CopyTradeConfig.ScoreThreshold = getEnvIntOrDefault("COPY_SCORE_THRESHOLD", orInt(cfg.CopyTradeConfig.ScoreThreshold, 80))
	cfg.CopyTradeConfig.SlippageBps = getEnvIntOrDefault("COPY_SLIPPAGE_BPS", orInt(cfg.CopyTradeConfig.SlippageBps, 100))
	cfg.CopyTradeConfig.UseMevProtection = getEnvBoolOrDefault("COPY_USE_MEV_PROTECTION", mevDefault)
	cfg.CopyTradeConfig.AutoScore = getEnvBoolOrDefault("COPY_AUTO_SCORE", cfg.CopyTradeConfig.AutoScore)
	cfg.CopyTradeConfig.FailurePolicy = getEnvOrDefault("COPY_FAILURE_POLICY", orString(cfg.CopyTradeConfig.FailurePolicy, "keep"))

	// Monitor
	cfg.MonitorConfig.Enabled = getEnvBoolOrDefault("MONITOR_ENABLED", cfg.MonitorConfig.Enabled)
	cfg.MonitorConfig.Interval = getEnvDurationOrDefault("MONITOR_INTERVAL", orDuration(cfg.MonitorConfig.Interval, 30*time.Second))
	cfg.MonitorConfig.UserID = getEnvOrDefault("MONITOR_USER_ID", cfg.MonitorConfig.UserID)
	cfg.MonitorConfig.WalletAddress = getEnvOrDefault("MONITOR_WALLET_ADDRESS", cfg.MonitorConfig.WalletAddress)
	cfg.MonitorConfig.AutoCopy = getEnvBoolOrDefault("MONITOR_AUTO_COPY", cfg.MonitorConfig.AutoCopy)
	breakerDefault := cfg.MonitorConfig.BreakerEnabled || cfg.MonitorConfig.MaxConsecutiveFailures == 0
	cfg.MonitorConfig.BreakerEnabled = getEnvBoolOrDefault("AUTO_COPY_BREAKER_ENABLED", breakerDefault)
	cfg.MonitorConfig.MaxConsecutiveFailures = getEnvIntOrDefault("AUTO_COPY_MAX_CONSECUTIVE_FAILURES", orInt(cfg.MonitorConfig.MaxConsecutiveFailures, 3))
	cfg.MonitorConfig.MaxDailyTrades = getEnvIntOrDefault("AUTO_COPY_MAX_DAILY_TRADES", orInt(cfg.MonitorConfig.MaxDailyTrades, 20))
	cfg.MonitorConfig.MaxDailySol = getEnvFloatOrDefault("AUTO_COPY_MAX_DAILY_SOL", orFloat(cfg.MonitorConfig.MaxDailySol, 2))
	cfg.MonitorConfig.BreakerCooldown = getEnvDurationOrDefault("AUTO_COPY_BREAKER_COOLDOWN", orDuration(cfg.MonitorConfig.BreakerCooldown, 30*time.Minute))
	cfg.MonitorConfig.MaxSignalAge = getEnvDurationOrDefault("AUTO_COPY_MAX_SIGNAL_AGE", orDuration(cfg.MonitorConfig.MaxSignalAge, 10*time.Minute))

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvBoolOrDefault("DISCORD_ENABLED", cfg.NotificationConfig.Discord.Enabled)
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orUint(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"solana-copy-trader/internal/cache"
	"solana-copy-trader/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Risk levels
const (
	RiskLow     = "LOW"
	RiskMedium  = "MEDIUM"
	RiskHigh    = "HIGH"
	RiskExtreme = "EXTREME"
)

// Recommendations
const (
	RecommendBuy  = "BUY"
	RecommendSkip = "SKIP"
)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")

// stripMarkdownCodeBlock removes ```json fences some providers wrap around JSON
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)
	if matches := codeBlockRe.FindStringSubmatch(response); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return response
}

// TokenContext is the token metadata the scorer sees
type TokenContext struct {
	Address        string
	Name           string
	Symbol         string
	HasMarketData  bool
	PriceUSD       float64
	LiquidityUSD   float64
	Volume24h      float64
	PriceChange1h  float64
	PriceChange24h float64
	MarketCap      float64
	Buys24h        int
	Sells24h       int
	PairAgeHours   float64
	WhaleSolAmount float64
}

// TokenAnalysis is the scoring verdict
type TokenAnalysis struct {
	Score          int    `json:"score"`
	Reasoning      string `json:"reasoning"`
	RiskLevel      string `json:"riskLevel"`
	Recommendation string `json:"recommendation"`
}

// Unavailable returns the sentinel verdict used whenever scoring fails
func Unavailable(reason string) TokenAnalysis {
	return TokenAnalysis{
		Score:          0,
		Reasoning:      "AI analysis unavailable: " + reason,
		RiskLevel:      RiskExtreme,
		Recommendation: RecommendSkip,
	}
}

type rawAnalysis struct {
	Score          float64 `json:"score"`
	Reasoning      string  `json:"reasoning"`
	RiskLevel      string  `json:"risk_level"`
	Recommendation string  `json:"recommendation"`
}

// AnalyzerConfig holds analyzer configuration
type AnalyzerConfig struct {
	Enabled         bool          `json:"enabled"`
	Provider        Provider      `json:"provider"`
	APIKey          string        `json:"api_key"`
	Model           string        `json:"model"`
	MaxTokens       int           `json:"max_tokens"`
	Temperature     float64       `json:"temperature"`
	Endpoint        string        `json:"endpoint"`
	CacheDuration   time.Duration `json:"cache_duration"`
	RateLimitPerMin int           `json:"rate_limit_per_min"`
	Timeout         time.Duration `json:"timeout"`
}

// DefaultAnalyzerConfig returns default configuration
func DefaultAnalyzerConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		Enabled:         true,
		Provider:        ProviderClaude,
		Model:           "claude-3-haiku-20240307",
		MaxTokens:       512,
		Temperature:     0.2,
		CacheDuration:   5 * time.Minute,
		RateLimitPerMin: 30,
		Timeout:         30 * time.Second,
	}
}

// Analyzer scores tokens through an LLM. It never returns an error: every
// failure becomes the Unavailable sentinel.
type Analyzer struct {
	config  *AnalyzerConfig
	client  *Client
	limiter *rate.Limiter
	cache   cache.Cache
	logger  zerolog.Logger
}

// NewAnalyzer creates a new LLM analyzer; c may be nil to disable caching
func NewAnalyzer(config *AnalyzerConfig, c cache.Cache, logger zerolog.Logger) *Analyzer {
	if config == nil {
		config = DefaultAnalyzerConfig()
	}
	if config.RateLimitPerMin <= 0 {
		config.RateLimitPerMin = 30
	}

	clientConfig := &ClientConfig{
		Provider:    config.Provider,
		APIKey:      config.APIKey,
		Model:       config.Model,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
		Timeout:     config.Timeout,
		Endpoint:    config.Endpoint,
	}

	return &Analyzer{
		config:  config,
		client:  NewClient(clientConfig),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RateLimitPerMin)), config.RateLimitPerMin),
		cache:   c,
		logger:  logger.With().Str("component", "risk-scorer").Logger(),
	}
}

// AnalyzeToken scores a token for copy-trading. sourceLabel is the tracked
// wallet's label and may be empty.
func (a *Analyzer) AnalyzeToken(ctx context.Context, tc TokenContext, sourceLabel string) TokenAnalysis {
	if !a.IsEnabled() {
		return Unavailable("scorer not configured")
	}

	cacheKey := fmt.Sprintf("analysis:%s:%s", tc.Address, sourceLabel)
	if a.cache != nil {
		var cached TokenAnalysis
		if err := cache.GetJSON(ctx, a.cache, cacheKey, &cached); err == nil {
			return cached
		}
	}

	if !a.limiter.Allow() {
		a.logger.Warn().Str("token", tc.Address).Msg("Scoring rate limit exceeded")
		return Unavailable("rate limit exceeded")
	}

	start := time.Now()
	response, err := a.client.Complete(ctx, SystemPromptTokenRisk, BuildTokenRiskPrompt(tc, sourceLabel))
	metrics.ObserveUpstream("llm", start, err)
	if err != nil {
		a.logger.Error().Err(err).Str("token", tc.Address).Msg("LLM request failed")
		return Unavailable("request failed")
	}

	analysis, err := parseAnalysis(response)
	if err != nil {
		a.logger.Error().Err(err).Str("token", tc.Address).Msg("Failed to parse LLM response")
		return Unavailable("unparseable response")
	}

	if a.cache != nil && a.config.CacheDuration > 0 {
		_ = cache.SetJSON(ctx, a.cache, cacheKey, analysis, a.config.CacheDuration)
	}
	return analysis
}

func parseAnalysis(response string) (TokenAnalysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(response)), &raw); err != nil {
		return TokenAnalysis{}, err
	}
	if math.IsNaN(raw.Score) {
		return TokenAnalysis{}, fmt.Errorf("score is NaN")
	}

	score := int(math.Round(raw.Score))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	level := strings.ToUpper(strings.TrimSpace(raw.RiskLevel))
	switch level {
	case RiskLow, RiskMedium, RiskHigh, RiskExtreme:
	default:
		level = levelForScore(score)
	}

	rec := strings.ToUpper(strings.TrimSpace(raw.Recommendation))
	if rec != RecommendBuy {
		rec = RecommendSkip
	}

	return TokenAnalysis{
		Score:          score,
		Reasoning:      strings.TrimSpace(raw.Reasoning),
		RiskLevel:      level,
		Recommendation: rec,
	}, nil
}

func levelForScore(score int) string {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 60:
		return RiskMedium
	case score >= 30:
		return RiskHigh
	default:
		return RiskExtreme
	}
}

// IsEnabled returns if the analyzer is enabled
func (a *Analyzer) IsEnabled() bool {
	return a.config.Enabled && a.client.IsConfigured()
}

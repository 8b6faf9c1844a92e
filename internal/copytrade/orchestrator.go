// Package copytrade scores whale signals, prepares copy trades, and records
// their execution.
package copytrade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"solana-copy-trader/internal/ai/llm"
	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/logging"
	"solana-copy-trader/internal/market"
	"solana-copy-trader/internal/metrics"

	"github.com/rs/zerolog"
)

// ErrSignalNotFound is returned when the signal id does not exist
var ErrSignalNotFound = errors.New("signal not found")

// Config holds one user's copy-trade parameters
type Config struct {
	MaxSolPerTrade   float64 `json:"maxSolPerTrade"`
	ScoreThreshold   int     `json:"scoreThreshold"`
	SlippageBps      int     `json:"slippageBps"`
	UseMevProtection bool    `json:"useMevProtection"`
}

// DefaultConfig returns the parameters used when a user has no subscription
func DefaultConfig() Config {
	return Config{
		MaxSolPerTrade:   0.1,
		ScoreThreshold:   80,
		SlippageBps:      100,
		UseMevProtection: true,
	}
}

// ConfigFromSubscription converts a stored subscription. A threshold of 0
// is a valid choice and is kept; size and slippage must be positive to be
// usable and fall back to defaults otherwise.
func ConfigFromSubscription(sub *database.Subscription, defaults Config) Config {
	if sub == nil {
		return defaults
	}
	cfg := Config{
		MaxSolPerTrade:   sub.MaxSolPerTrade,
		ScoreThreshold:   sub.ScoreThreshold,
		SlippageBps:      sub.SlippageBps,
		UseMevProtection: sub.UseMevProtection,
	}
	if cfg.MaxSolPerTrade <= 0 {
		cfg.MaxSolPerTrade = defaults.MaxSolPerTrade
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = defaults.SlippageBps
	}
	return cfg
}

// PositionSize is the SOL a copy of sig spends: the whale's amount capped
// at the user's maximum.
func PositionSize(sig *database.Signal, cfg Config) float64 {
	if sig.SolAmount > 0 && sig.SolAmount < cfg.MaxSolPerTrade {
		return sig.SolAmount
	}
	return cfg.MaxSolPerTrade
}

// PreparedTrade is a priced copy trade awaiting the user's signature.
// It is never persisted.
type PreparedTrade struct {
	SignalID         string         `json:"signalId"`
	TokenAddress     string         `json:"tokenAddress"`
	TokenSymbol      string         `json:"tokenSymbol,omitempty"`
	SolAmount        float64        `json:"solAmount"`
	AmountLamports   uint64         `json:"amountLamports"`
	Score            int            `json:"score"`
	Reasoning        string         `json:"reasoning"`
	RiskLevel        string         `json:"riskLevel"`
	SlippageBps      int            `json:"slippageBps"`
	UseMevProtection bool           `json:"useMevProtection"`
	Quote            *jupiter.Quote `json:"quote"`
}

// ProcessResult is the outcome of one orchestration run
type ProcessResult struct {
	Signal   *database.Signal   `json:"signal,omitempty"`
	Prepared *PreparedTrade     `json:"prepared,omitempty"`
	Analysis *llm.TokenAnalysis `json:"analysis,omitempty"`
	Skipped  bool               `json:"skipped"`
	Reason   string             `json:"reason,omitempty"`
}

// SignalStore is the signal persistence the orchestrator needs
type SignalStore interface {
	GetSignal(ctx context.Context, id string) (*database.Signal, error)
	UpdateSignalScore(ctx context.Context, id string, score int, reasoning string) error
	UpdateSignalTokenSymbol(ctx context.Context, id, symbol string) error
	TransitionSignalStatus(ctx context.Context, id string, from []string, to string) (bool, error)
}

// Scorer rates a token
type Scorer interface {
	AnalyzeToken(ctx context.Context, tc llm.TokenContext, sourceLabel string) llm.TokenAnalysis
}

// MarketData provides token context for scoring
type MarketData interface {
	GetTokenInfo(ctx context.Context, tokenAddress string) (*market.TokenInfo, error)
}

// Quoter prices swaps
type Quoter interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiter.Quote, error)
}

// scorableStatuses are the statuses from which a run may set PENDING or
// SKIPPED. EXECUTED, SKIPPED and FAILED are terminal; the rescore failure
// policy reopens a signal by moving it back to NEW.
var scorableStatuses = []string{
	database.SignalStatusNew,
	database.SignalStatusPending,
}

func scorable(status string) bool {
	for _, s := range scorableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Orchestrator runs the signal → score → quote pipeline
type Orchestrator struct {
	store  SignalStore
	scorer Scorer
	market MarketData
	quoter Quoter
	bus    *events.EventBus
	logger zerolog.Logger
	now    func() time.Time
}

// NewOrchestrator creates an orchestrator. market and bus may be nil.
func NewOrchestrator(store SignalStore, scorer Scorer, md MarketData, quoter Quoter, bus *events.EventBus, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		scorer: scorer,
		market: md,
		quoter: quoter,
		bus:    bus,
		logger: logger.With().Str("component", "orchestrator").Logger(),
		now:    time.Now,
	}
}

// ProcessSignal scores the signal and, when it clears the threshold,
// prepares a quoted trade. Apart from ErrSignalNotFound every failure is
// reported as a skipped result.
func (o *Orchestrator) ProcessSignal(ctx context.Context, signalID string, cfg Config) (result ProcessResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Str("signal_id", signalID).Msg("Signal processing panicked")
			result = ProcessResult{Skipped: true, Reason: fmt.Sprintf("processing failed: %v", r)}
			err = nil
		}
		if err == nil {
			metrics.RecordPrepared(result.Skipped)
		}
	}()

	sig, analysis, res, err := o.score(ctx, signalID, cfg)
	if err != nil {
		return ProcessResult{}, err
	}
	if res != nil {
		return *res, nil
	}

	solAmount := PositionSize(sig, cfg)
	lamports := jupiter.SolToLamports(solAmount)

	log := logging.SignalContext(o.logger, sig.ID, sig.TokenAddress)

	quote, err := o.quoter.GetQuote(ctx, jupiter.SolMint, sig.TokenAddress, lamports, cfg.SlippageBps)
	if err != nil {
		log.Warn().Err(err).Uint64("lamports", lamports).Msg("Quote failed")
		return ProcessResult{Signal: sig, Analysis: analysis, Skipped: true, Reason: "failed to get quote"}, nil
	}

	prepared := &PreparedTrade{
		SignalID:         sig.ID,
		TokenAddress:     sig.TokenAddress,
		SolAmount:        solAmount,
		AmountLamports:   lamports,
		Score:            analysis.Score,
		Reasoning:        analysis.Reasoning,
		RiskLevel:        analysis.RiskLevel,
		SlippageBps:      cfg.SlippageBps,
		UseMevProtection: cfg.UseMevProtection,
		Quote:            quote,
	}
	if sig.TokenSymbol != nil {
		prepared.TokenSymbol = *sig.TokenSymbol
	}

	log.Info().
		Float64("sol", solAmount).
		Int("score", analysis.Score).
		Str("out_amount", quote.OutAmount).
		Msg("Copy trade prepared")

	if o.bus != nil {
		o.bus.Publish(events.Event{
			Type: events.EventTradePrepared,
			Data: map[string]interface{}{
				"signal_id":  sig.ID,
				"token":      sig.TokenAddress,
				"sol_amount": solAmount,
				"score":      analysis.Score,
			},
		})
	}

	return ProcessResult{Signal: sig, Prepared: prepared, Analysis: analysis}, nil
}

// ScoreSignal runs only the scoring half of ProcessSignal: the verdict is
// stored and the signal moves to PENDING or SKIPPED, but no quote is taken.
func (o *Orchestrator) ScoreSignal(ctx context.Context, signalID string, cfg Config) (ProcessResult, error) {
	sig, analysis, res, err := o.score(ctx, signalID, cfg)
	if err != nil {
		return ProcessResult{}, err
	}
	if res != nil {
		return *res, nil
	}
	return ProcessResult{Signal: sig, Analysis: analysis}, nil
}

// score loads and scores a signal. A non-nil result means the run stops
// there with that result.
func (o *Orchestrator) score(ctx context.Context, signalID string, cfg Config) (*database.Signal, *llm.TokenAnalysis, *ProcessResult, error) {
	sig, err := o.store.GetSignal(ctx, signalID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, nil, ErrSignalNotFound
	}
	if err != nil {
		o.logger.Error().Err(err).Str("signal_id", signalID).Msg("Failed to load signal")
		return nil, nil, &ProcessResult{Skipped: true, Reason: fmt.Sprintf("failed to load signal: %v", err)}, nil
	}

	log := logging.SignalContext(o.logger, sig.ID, sig.TokenAddress)

	if !scorable(sig.Status) {
		return sig, nil, &ProcessResult{
			Signal:  sig,
			Skipped: true,
			Reason:  "signal already " + strings.ToLower(sig.Status),
		}, nil
	}

	if sig.Direction != database.DirectionBuy {
		if _, err := o.store.TransitionSignalStatus(ctx, sig.ID, []string{database.SignalStatusNew}, database.SignalStatusSkipped); err != nil {
			log.Error().Err(err).Msg("Failed to mark sell signal skipped")
		}
		return sig, nil, &ProcessResult{Signal: sig, Skipped: true, Reason: "only BUY signals are copied"}, nil
	}

	tc := o.tokenContext(ctx, sig)

	label := ""
	if sig.WhaleLabel != nil {
		label = *sig.WhaleLabel
	}
	analysis := o.scorer.AnalyzeToken(ctx, tc, label)

	if err := o.store.UpdateSignalScore(ctx, sig.ID, analysis.Score, analysis.Reasoning); err != nil {
		log.Error().Err(err).Msg("Failed to persist score")
	}
	score := analysis.Score
	reasoning := analysis.Reasoning
	sig.RiskScore = &score
	sig.RiskReasoning = &reasoning

	status := database.SignalStatusPending
	if analysis.Score < cfg.ScoreThreshold {
		status = database.SignalStatusSkipped
	}
	if _, err := o.store.TransitionSignalStatus(ctx, sig.ID, scorableStatuses, status); err != nil {
		log.Error().Err(err).Str("status", status).Msg("Failed to update signal status")
	}
	sig.Status = status

	metrics.RecordSignalScored(status, analysis.Score)
	if o.bus != nil {
		o.bus.PublishSignalScored(sig.ID, sig.TokenAddress, analysis.Score, status, analysis.Reasoning)
	}

	log.Info().
		Int("score", analysis.Score).
		Int("threshold", cfg.ScoreThreshold).
		Str("risk", analysis.RiskLevel).
		Str("status", status).
		Msg("Signal scored")

	if status == database.SignalStatusSkipped {
		return sig, &analysis, &ProcessResult{
			Signal:   sig,
			Analysis: &analysis,
			Skipped:  true,
			Reason:   fmt.Sprintf("score %d below threshold %d", analysis.Score, cfg.ScoreThreshold),
		}, nil
	}
	return sig, &analysis, nil, nil
}

// tokenContext gathers market data for the scorer. Missing data is not an
// error; the scorer is told the context is thin.
func (o *Orchestrator) tokenContext(ctx context.Context, sig *database.Signal) llm.TokenContext {
	tc := llm.TokenContext{
		Address:        sig.TokenAddress,
		WhaleSolAmount: sig.SolAmount,
	}
	if sig.TokenSymbol != nil {
		tc.Symbol = *sig.TokenSymbol
	}
	if o.market == nil {
		return tc
	}

	info, err := o.market.GetTokenInfo(ctx, sig.TokenAddress)
	if err != nil {
		o.logger.Warn().Err(err).Str("token", sig.TokenAddress).Msg("Market data unavailable, scoring without it")
		return tc
	}
	if info == nil {
		return tc
	}

	tc.HasMarketData = true
	tc.Name = info.Name
	tc.Symbol = info.Symbol
	tc.PriceUSD = info.Price
	tc.LiquidityUSD = info.Liquidity
	tc.Volume24h = info.Volume24h
	tc.PriceChange1h = info.PriceChange1h
	tc.PriceChange24h = info.PriceChange24h
	tc.MarketCap = info.MarketCap
	tc.Buys24h = info.Buys24h
	tc.Sells24h = info.Sells24h
	tc.PairAgeHours = info.PairAge(o.now()).Hours()

	if info.Symbol != "" && sig.TokenSymbol == nil {
		if err := o.store.UpdateSignalTokenSymbol(ctx, sig.ID, info.Symbol); err != nil {
			o.logger.Debug().Err(err).Str("signal_id", sig.ID).Msg("Failed to store token symbol")
		} else {
			symbol := info.Symbol
			sig.TokenSymbol = &symbol
		}
	}
	return tc
}

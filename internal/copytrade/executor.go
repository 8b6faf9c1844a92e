package copytrade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/logging"
	"solana-copy-trader/internal/market"
	"solana-copy-trader/internal/metrics"
	"solana-copy-trader/internal/wallet"

	"github.com/rs/zerolog"
)

var (
	// ErrSignalNotExecutable is returned when a signal is not PENDING
	ErrSignalNotExecutable = errors.New("signal is not pending execution")
	// ErrInvalidTradeStatus is returned for a recorded status other than SUCCESS or FAILED
	ErrInvalidTradeStatus = errors.New("trade status must be SUCCESS or FAILED")
)

// FailurePolicy decides what happens to a signal whose execution failed
type FailurePolicy string

const (
	// FailurePolicyKeep leaves the signal PENDING so the user can retry
	FailurePolicyKeep FailurePolicy = "keep"
	// FailurePolicyMarkFailed moves the signal to FAILED
	FailurePolicyMarkFailed FailurePolicy = "mark_failed"
	// FailurePolicyRescore moves the signal back to NEW so the next run
	// scores and quotes it again
	FailurePolicyRescore FailurePolicy = "rescore"
)

// TradeStore is the persistence the executor needs
type TradeStore interface {
	GetSignal(ctx context.Context, id string) (*database.Signal, error)
	CreateExecutedTrade(ctx context.Context, t *database.ExecutedTrade) error
	CompleteExecutedTrade(ctx context.Context, id string, res database.TradeResult) error
	TransitionSignalStatus(ctx context.Context, id string, from []string, to string) (bool, error)
}

// Swapper executes a quoted swap with a wallet
type Swapper interface {
	ExecuteSwap(ctx context.Context, w wallet.Wallet, quote *jupiter.Quote, priorityFeeLamports uint64) jupiter.SwapResult
}

// PriceSource supplies the entry price recorded with a trade
type PriceSource interface {
	GetTokenPriceData(ctx context.Context, tokenAddress string) (*market.TokenPriceData, error)
}

// ExecutorConfig holds executor settings
type ExecutorConfig struct {
	FailurePolicy       FailurePolicy
	PriorityFeeLamports uint64
}

// CopyTradeResult is the outcome of ConfirmExecution
type CopyTradeResult struct {
	Success   bool   `json:"success"`
	TradeID   string `json:"tradeId"`
	TxHash    string `json:"txHash,omitempty"`
	AmountOut uint64 `json:"amountOut,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RecordRequest is a trade executed and signed outside this process
type RecordRequest struct {
	SignalID       string  `json:"signalId" binding:"required"`
	UserID         string  `json:"userId"`
	TxHash         string  `json:"txHash"`
	AmountIn       float64 `json:"amountIn"`
	TokensReceived float64 `json:"tokensReceived"`
	EntryPrice     float64 `json:"entryPrice"`
	Status         string  `json:"status"`
	Error          string  `json:"error"`
}

// RecordResult identifies the stored trade
type RecordResult struct {
	TradeID string `json:"tradeId"`
	TxHash  string `json:"txHash,omitempty"`
}

// Executor claims signals, runs swaps, and moves trade and signal status
type Executor struct {
	store   TradeStore
	swapper Swapper
	prices  PriceSource
	bus     *events.EventBus
	config  ExecutorConfig
	logger  zerolog.Logger
}

// NewExecutor creates an executor. swapper, prices and bus may be nil; a
// nil swapper limits the executor to RecordExecution.
func NewExecutor(store TradeStore, swapper Swapper, prices PriceSource, bus *events.EventBus, cfg ExecutorConfig, logger zerolog.Logger) *Executor {
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailurePolicyKeep
	}
	return &Executor{
		store:   store,
		swapper: swapper,
		prices:  prices,
		bus:     bus,
		config:  cfg,
		logger:  logger.With().Str("component", "executor").Logger(),
	}
}

// ConfirmExecution claims the prepared trade's signal, executes the swap
// with w, and records the outcome. At most one claim per signal can be
// live; a concurrent second call gets database.ErrSignalAlreadyClaimed and
// never reaches the swap.
func (e *Executor) ConfirmExecution(ctx context.Context, prepared *PreparedTrade, userID string, w wallet.Wallet) (CopyTradeResult, error) {
	if prepared == nil || prepared.Quote == nil {
		return CopyTradeResult{}, errors.New("prepared trade has no quote")
	}
	if e.swapper == nil {
		return CopyTradeResult{}, errors.New("executor has no swapper")
	}

	sig, err := e.loadSignal(ctx, prepared.SignalID)
	if err != nil {
		return CopyTradeResult{}, err
	}
	if sig.Status != database.SignalStatusPending {
		return CopyTradeResult{}, fmt.Errorf("%w: status %s", ErrSignalNotExecutable, sig.Status)
	}

	signalID := sig.ID
	trade := &database.ExecutedTrade{
		UserID:       userID,
		SignalID:     &signalID,
		TokenAddress: prepared.TokenAddress,
		AmountIn:     prepared.SolAmount,
		Status:       database.TradeStatusPending,
	}
	if err := e.store.CreateExecutedTrade(ctx, trade); err != nil {
		return CopyTradeResult{}, err
	}

	log := logging.SignalContext(e.logger, sig.ID, sig.TokenAddress).With().Str("trade_id", trade.ID).Logger()
	log.Info().Float64("sol", prepared.SolAmount).Msg("Signal claimed, executing swap")

	swap := e.swapper.ExecuteSwap(ctx, w, prepared.Quote, e.config.PriorityFeeLamports)
	result := CopyTradeResult{
		Success: swap.Success,
		TradeID: trade.ID,
		TxHash:  swap.Signature,
		Error:   swap.Error,
	}

	if swap.Success {
		result.AmountOut = swap.OutputAmount
		if !swap.OutputMeasured {
			log.Warn().Uint64("quoted", swap.OutputAmount).Msg("Received amount not measured, recording quoted output")
		}
		amountOut := float64(swap.OutputAmount)
		e.complete(ctx, sig, trade, database.TradeResult{
			Status:     database.TradeStatusSuccess,
			TxHash:     swap.Signature,
			AmountOut:  &amountOut,
			EntryPrice: e.entryPrice(ctx, prepared.TokenAddress),
		})
	} else {
		log.Warn().Str("error", swap.Error).Msg("Swap failed")
		e.complete(ctx, sig, trade, database.TradeResult{
			Status:       database.TradeStatusFailed,
			TxHash:       swap.Signature,
			ErrorMessage: swap.Error,
		})
	}
	return result, nil
}

// RecordExecution stores a trade the user signed elsewhere and moves the
// signal accordingly. A SUCCESS record is a claim like ConfirmExecution's.
func (e *Executor) RecordExecution(ctx context.Context, req RecordRequest) (RecordResult, error) {
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status == "" {
		status = database.TradeStatusSuccess
	}
	if status != database.TradeStatusSuccess && status != database.TradeStatusFailed {
		return RecordResult{}, ErrInvalidTradeStatus
	}

	sig, err := e.loadSignal(ctx, req.SignalID)
	if err != nil {
		return RecordResult{}, err
	}

	signalID := sig.ID
	trade := &database.ExecutedTrade{
		UserID:       req.UserID,
		SignalID:     &signalID,
		TokenAddress: sig.TokenAddress,
		AmountIn:     req.AmountIn,
		Status:       database.TradeStatusPending,
	}
	if trade.AmountIn <= 0 {
		trade.AmountIn = sig.SolAmount
	}
	res := database.TradeResult{Status: status, TxHash: req.TxHash, ErrorMessage: req.Error}

	// A failed attempt holds no claim, so it is written in its final state
	if status == database.TradeStatusFailed {
		trade.Status = database.TradeStatusFailed
		trade.TxHash = nullable(req.TxHash)
		trade.ErrorMessage = nullable(req.Error)
		if err := e.store.CreateExecutedTrade(ctx, trade); err != nil {
			return RecordResult{}, err
		}
		metrics.RecordExecutedTrade(status)
		e.settle(ctx, sig, trade, res)
		return RecordResult{TradeID: trade.ID, TxHash: req.TxHash}, nil
	}

	if err := e.store.CreateExecutedTrade(ctx, trade); err != nil {
		return RecordResult{}, err
	}
	if req.TokensReceived > 0 {
		tokens := req.TokensReceived
		res.AmountOut = &tokens
	}
	if req.EntryPrice > 0 {
		price := req.EntryPrice
		res.EntryPrice = &price
	}
	e.complete(ctx, sig, trade, res)

	return RecordResult{TradeID: trade.ID, TxHash: req.TxHash}, nil
}

func (e *Executor) loadSignal(ctx context.Context, id string) (*database.Signal, error) {
	sig, err := e.store.GetSignal(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrSignalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signal: %w", err)
	}
	return sig, nil
}

// complete finalizes the PENDING trade row and settles the signal. Write
// failures are logged; the trade row stays the source of truth.
func (e *Executor) complete(ctx context.Context, sig *database.Signal, trade *database.ExecutedTrade, res database.TradeResult) {
	if err := e.store.CompleteExecutedTrade(ctx, trade.ID, res); err != nil {
		e.logger.Error().Err(err).
			Str("signal_id", sig.ID).
			Str("trade_id", trade.ID).
			Str("status", res.Status).
			Msg("Failed to complete trade")
	}
	trade.Status = res.Status
	metrics.RecordExecutedTrade(res.Status)
	e.settle(ctx, sig, trade, res)
}

// settle moves the signal after a trade outcome and announces the trade
func (e *Executor) settle(ctx context.Context, sig *database.Signal, trade *database.ExecutedTrade, res database.TradeResult) {
	if res.Status == database.TradeStatusSuccess {
		e.transition(ctx, sig, database.SignalStatusExecuted)
	} else {
		switch e.config.FailurePolicy {
		case FailurePolicyMarkFailed:
			e.transition(ctx, sig, database.SignalStatusFailed)
		case FailurePolicyRescore:
			e.transition(ctx, sig, database.SignalStatusNew)
		}
	}

	if e.bus != nil {
		e.bus.PublishTradeRecorded(trade.UserID, trade.ID, sig.ID, res.Status, res.TxHash)
	}
	e.logger.Info().
		Str("signal_id", sig.ID).
		Str("trade_id", trade.ID).
		Str("status", res.Status).
		Str("tx", res.TxHash).
		Msg("Trade recorded")
}

func (e *Executor) transition(ctx context.Context, sig *database.Signal, to string) {
	ok, err := e.store.TransitionSignalStatus(ctx, sig.ID, []string{database.SignalStatusPending}, to)
	if err != nil {
		e.logger.Error().Err(err).Str("signal_id", sig.ID).Str("to", to).Msg("Failed to update signal status")
		return
	}
	if !ok {
		e.logger.Warn().Str("signal_id", sig.ID).Str("from", sig.Status).Str("to", to).Msg("Signal was not PENDING, status left unchanged")
		return
	}
	sig.Status = to
	if e.bus != nil {
		e.bus.PublishSignalStatus(sig.ID, to)
	}
}

func (e *Executor) entryPrice(ctx context.Context, token string) *float64 {
	if e.prices == nil {
		return nil
	}
	data, err := e.prices.GetTokenPriceData(ctx, token)
	if err != nil || data == nil || data.Price <= 0 {
		return nil
	}
	price := data.Price
	return &price
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

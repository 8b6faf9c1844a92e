// Package jupiter wraps the Jupiter aggregator: route quotes, swap
// transaction building, and signed-swap submission.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-copy-trader/internal/metrics"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/wallet"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// SolMint is the wrapped SOL mint used as the quote currency
	SolMint = "So11111111111111111111111111111111111111112"
	// LamportsPerSOL is the number of lamports in one SOL
	LamportsPerSOL = 1_000_000_000
)

var (
	// ErrNoRoute is returned when Jupiter finds no route for the pair
	ErrNoRoute = errors.New("no route found")
	// ErrSubmissionNotConfigured is returned by ExecuteSwap without a sender
	ErrSubmissionNotConfigured = errors.New("transaction submission not configured")
)

// SolToLamports converts a SOL amount to lamports, truncating dust
func SolToLamports(sol float64) uint64 {
	l := decimal.NewFromFloat(sol).Mul(decimal.NewFromInt(LamportsPerSOL))
	if l.IsNegative() {
		return 0
	}
	return DecimalToBaseUnits(l)
}

// LamportsToSol converts lamports to SOL
func LamportsToSol(lamports uint64) float64 {
	return BaseUnitsToDecimal(lamports).Div(decimal.NewFromInt(LamportsPerSOL)).InexactFloat64()
}

// BaseUnitsToDecimal converts a raw on-chain amount without going through
// int64, so amounts above math.MaxInt64 stay positive.
func BaseUnitsToDecimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// DecimalToBaseUnits truncates d to a raw amount. Values outside the
// uint64 range clamp to 0 or math.MaxUint64.
func DecimalToBaseUnits(d decimal.Decimal) uint64 {
	d = d.Floor()
	if !d.IsPositive() {
		return 0
	}
	v, err := strconv.ParseUint(d.String(), 10, 64)
	if err != nil {
		return math.MaxUint64
	}
	return v
}

// RoutePlanStep is one hop of a quote's route
type RoutePlanStep struct {
	SwapInfo struct {
		AmmKey     string `json:"ammKey"`
		Label      string `json:"label"`
		InputMint  string `json:"inputMint"`
		OutputMint string `json:"outputMint"`
		InAmount   string `json:"inAmount"`
		OutAmount  string `json:"outAmount"`
	} `json:"swapInfo"`
	Percent int `json:"percent"`
}

// Quote is a Jupiter route quote. The raw response is kept because /swap
// expects it back unmodified.
type Quote struct {
	InputMint            string          `json:"inputMint"`
	InAmount             string          `json:"inAmount"`
	OutputMint           string          `json:"outputMint"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          int             `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
	ContextSlot          uint64          `json:"contextSlot"`

	raw json.RawMessage
}

// MarshalJSON returns the provider's original payload when available
func (q Quote) MarshalJSON() ([]byte, error) {
	if len(q.raw) > 0 {
		return q.raw, nil
	}
	type plain Quote
	return json.Marshal(plain(q))
}

// UnmarshalJSON keeps the payload so a quote round-tripped through a client
// reaches /swap unchanged
func (q *Quote) UnmarshalJSON(data []byte) error {
	type plain Quote
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*q = Quote(p)
	q.raw = append(json.RawMessage(nil), data...)
	return nil
}

// OutAmountUint parses OutAmount, returning 0 when malformed
func (q *Quote) OutAmountUint() uint64 {
	v, _ := strconv.ParseUint(q.OutAmount, 10, 64)
	return v
}

// InAmountUint parses InAmount, returning 0 when malformed
func (q *Quote) InAmountUint() uint64 {
	v, _ := strconv.ParseUint(q.InAmount, 10, 64)
	return v
}

// Fees are the landing fees attached to a swap transaction. A non-zero
// JitoTipLamports makes Jupiter add a tip for block-engine submission
// instead of a priority fee.
type Fees struct {
	PriorityFeeLamports uint64
	JitoTipLamports     uint64
}

// SwapTransaction is an unsigned swap transaction returned by /swap
type SwapTransaction struct {
	SwapTransaction           string `json:"swapTransaction"`
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports"`
}

// SwapResult is the outcome of ExecuteSwap. OutputAmount is what the wallet
// received when OutputMeasured is set, and the quoted amount otherwise.
type SwapResult struct {
	Success        bool   `json:"success"`
	Signature      string `json:"signature,omitempty"`
	OutputAmount   uint64 `json:"outputAmount,omitempty"`
	OutputMeasured bool   `json:"outputMeasured"`
	Error          string `json:"error,omitempty"`
}

// Sender submits a base64 signed transaction and returns its signature
type Sender interface {
	SendTransaction(ctx context.Context, signedTxBase64 string) (string, error)
}

// Confirmer waits until a signature lands
type Confirmer interface {
	ConfirmTransaction(ctx context.Context, signature string) error
}

// BalanceReader reads a wallet's SPL token balance
type BalanceReader interface {
	GetTokenBalance(ctx context.Context, owner, mint string) (solana.TokenBalance, error)
}

// Submission configures how ExecuteSwap lands signed transactions
type Submission struct {
	RPC             Sender
	Confirmer       Confirmer
	Balances        BalanceReader // optional, measures received token amounts
	Jito            Sender // optional, used when MEV protection is on
	UseJito         bool
	JitoTipLamports uint64
	ConfirmTimeout  time.Duration
}

// Config holds Jupiter client settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the Jupiter API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	submission Submission
	logger     zerolog.Logger
}

// NewClient creates a Jupiter client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://quote-api.jup.ag/v6"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "jupiter").Logger(),
	}
}

// SetSubmission enables ExecuteSwap
func (c *Client) SetSubmission(s Submission) {
	if s.ConfirmTimeout <= 0 {
		s.ConfirmTimeout = 60 * time.Second
	}
	c.submission = s
}

// GetQuote fetches the best route for amount base units of inputMint
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(slippageBps))

	start := time.Now()
	body, err := c.do(ctx, http.MethodGet, "/quote?"+params.Encode(), nil)
	metrics.ObserveUpstream("jupiter_quote", start, err)
	if err != nil {
		return nil, err
	}

	var q Quote
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	if len(q.RoutePlan) == 0 || q.OutAmountUint() == 0 {
		return nil, ErrNoRoute
	}
	return &q, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports interface{}     `json:"prioritizationFeeLamports,omitempty"`
}

// BuildSwapTransaction asks Jupiter for an unsigned transaction executing
// quote from userPublicKey.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string, fees Fees) (*SwapTransaction, error) {
	if quote == nil {
		return nil, errors.New("quote is required")
	}
	rawQuote, err := json.Marshal(quote)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quote: %w", err)
	}

	req := swapRequest{
		QuoteResponse:           rawQuote,
		UserPublicKey:           userPublicKey,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
	}
	switch {
	case fees.JitoTipLamports > 0:
		req.PrioritizationFeeLamports = map[string]uint64{"jitoTipLamports": fees.JitoTipLamports}
	case fees.PriorityFeeLamports > 0:
		req.PrioritizationFeeLamports = fees.PriorityFeeLamports
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swap request: %w", err)
	}

	start := time.Now()
	body, err := c.do(ctx, http.MethodPost, "/swap", payload)
	metrics.ObserveUpstream("jupiter_swap", start, err)
	if err != nil {
		return nil, err
	}

	var tx SwapTransaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal swap response: %w", err)
	}
	if tx.SwapTransaction == "" {
		return nil, errors.New("swap response has no transaction")
	}
	return &tx, nil
}

// ExecuteSwap builds, signs, submits and confirms a swap. Failures are
// reported in the result.
func (c *Client) ExecuteSwap(ctx context.Context, w wallet.Wallet, quote *Quote, priorityFeeLamports uint64) (result SwapResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("Swap execution panicked")
			result = SwapResult{Error: fmt.Sprintf("swap panicked: %v", r)}
		}
	}()

	sub := c.submission
	if sub.RPC == nil || sub.Confirmer == nil {
		return SwapResult{Error: ErrSubmissionNotConfigured.Error()}
	}
	if w == nil || !w.Ready() {
		return SwapResult{Error: "wallet not ready"}
	}

	fees := Fees{PriorityFeeLamports: priorityFeeLamports}
	sender := sub.RPC
	if sub.UseJito && sub.Jito != nil {
		fees = Fees{JitoTipLamports: sub.JitoTipLamports}
		sender = sub.Jito
	}

	swapTx, err := c.BuildSwapTransaction(ctx, quote, w.PublicKey(), fees)
	if err != nil {
		return SwapResult{Error: fmt.Sprintf("build swap: %v", err)}
	}

	unsigned, err := base64.StdEncoding.DecodeString(swapTx.SwapTransaction)
	if err != nil {
		return SwapResult{Error: fmt.Sprintf("decode swap transaction: %v", err)}
	}
	signed, err := w.SignTransaction(ctx, unsigned)
	if err != nil {
		return SwapResult{Error: fmt.Sprintf("sign: %v", err)}
	}

	// Native SOL outputs are unwrapped and mixed with fees, so only SPL
	// outputs are measured
	measure := sub.Balances != nil && quote.OutputMint != SolMint
	var before uint64
	if measure {
		bal, err := sub.Balances.GetTokenBalance(ctx, w.PublicKey(), quote.OutputMint)
		if err != nil {
			c.logger.Debug().Err(err).Str("mint", quote.OutputMint).Msg("Pre-swap balance unavailable")
			measure = false
		}
		before = bal.Amount
	}

	sig, err := sender.SendTransaction(ctx, base64.StdEncoding.EncodeToString(signed))
	if err != nil {
		return SwapResult{Error: fmt.Sprintf("send: %v", err)}
	}
	c.logger.Info().Str("signature", sig).Str("input", quote.InputMint).Str("output", quote.OutputMint).Msg("Swap submitted")

	confirmCtx, cancel := context.WithTimeout(ctx, sub.ConfirmTimeout)
	defer cancel()
	if err := sub.Confirmer.ConfirmTransaction(confirmCtx, sig); err != nil {
		return SwapResult{Signature: sig, Error: fmt.Sprintf("confirm: %v", err)}
	}

	result = SwapResult{
		Success:      true,
		Signature:    sig,
		OutputAmount: quote.OutAmountUint(),
	}
	if measure {
		bal, err := sub.Balances.GetTokenBalance(ctx, w.PublicKey(), quote.OutputMint)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Str("signature", sig).Msg("Post-swap balance unavailable, recording quoted output")
		case bal.Amount < before:
			c.logger.Warn().Str("signature", sig).Msg("Balance dropped during swap, recording quoted output")
		default:
			result.OutputAmount = bal.Amount - before
			result.OutputMeasured = true
		}
	}
	return result
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("jupiter returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

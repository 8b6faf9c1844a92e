package ingest

import (
	"encoding/json"
	"math/big"
	"strings"

	"solana-copy-trader/internal/database"

	"github.com/shopspring/decimal"
)

const (
	solMint        = "So11111111111111111111111111111111111111112"
	lamportsPerSol = 1_000_000_000

	// EventTypeSwap is the Helius enhanced-transaction type for swaps
	EventTypeSwap = "SWAP"
)

// WebhookEvent is one Helius enhanced-transaction webhook payload
type WebhookEvent struct {
	Signature       string           `json:"signature"`
	Type            string           `json:"type"`
	Source          string           `json:"source"`
	FeePayer        string           `json:"feePayer"`
	Timestamp       int64            `json:"timestamp"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
	Events          struct {
		Swap *SwapEvent `json:"swap"`
	} `json:"events"`
}

// NativeTransfer is a SOL movement in lamports
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          uint64 `json:"amount"`
}

// TokenTransfer is an SPL movement in UI units
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	TokenAmount     float64 `json:"tokenAmount"`
	Mint            string  `json:"mint"`
}

// SwapEvent is the parsed swap section of an enhanced transaction
type SwapEvent struct {
	NativeInput  *NativeAmount  `json:"nativeInput"`
	NativeOutput *NativeAmount  `json:"nativeOutput"`
	TokenInputs  []TokenBalance `json:"tokenInputs"`
	TokenOutputs []TokenBalance `json:"tokenOutputs"`
}

// NativeAmount is a lamport amount; Helius sends it as a string
type NativeAmount struct {
	Account string      `json:"account"`
	Amount  json.Number `json:"amount"`
}

// TokenBalance is an SPL amount in base units
type TokenBalance struct {
	UserAccount    string `json:"userAccount"`
	Mint           string `json:"mint"`
	RawTokenAmount struct {
		TokenAmount string `json:"tokenAmount"`
		Decimals    int32  `json:"decimals"`
	} `json:"rawTokenAmount"`
}

// ParseEvents accepts a JSON array of events or a single event object
func ParseEvents(body []byte) ([]WebhookEvent, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var evs []WebhookEvent
		if err := json.Unmarshal(body, &evs); err != nil {
			return nil, err
		}
		return evs, nil
	}
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return []WebhookEvent{ev}, nil
}

// participants lists the accounts that may identify the trader
func (e *WebhookEvent) participants() []string {
	out := []string{e.FeePayer}
	if s := e.Events.Swap; s != nil {
		if s.NativeInput != nil {
			out = append(out, s.NativeInput.Account)
		}
		if s.NativeOutput != nil {
			out = append(out, s.NativeOutput.Account)
		}
		for _, t := range s.TokenInputs {
			out = append(out, t.UserAccount)
		}
	}
	return out
}

// trade is a swap reduced to SOL against one token
type trade struct {
	direction   string
	token       string
	solAmount   float64
	tokenAmount float64
}

// normalize reduces the event to a SOL/token trade from trader's side.
// ok is false for token-to-token swaps and events it cannot read.
func (e *WebhookEvent) normalize(trader string) (trade, bool) {
	if s := e.Events.Swap; s != nil {
		if t, ok := fromSwapEvent(s); ok {
			return t, true
		}
	}
	return fromTransfers(e, trader)
}

func fromSwapEvent(s *SwapEvent) (trade, bool) {
	solIn := nativeSol(s.NativeInput)
	solOut := nativeSol(s.NativeOutput)

	tokensIn, wsolIn := splitSol(s.TokenInputs)
	tokensOut, wsolOut := splitSol(s.TokenOutputs)
	solIn += wsolIn
	solOut += wsolOut

	switch {
	case solIn > 0 && len(tokensOut) > 0:
		return trade{
			direction:   database.DirectionBuy,
			token:       tokensOut[0].Mint,
			solAmount:   solIn,
			tokenAmount: tokenUI(tokensOut[0]),
		}, true
	case solOut > 0 && len(tokensIn) > 0:
		return trade{
			direction:   database.DirectionSell,
			token:       tokensIn[0].Mint,
			solAmount:   solOut,
			tokenAmount: tokenUI(tokensIn[0]),
		}, true
	}
	return trade{}, false
}

// fromTransfers rebuilds the trade from raw transfers when Helius could not
// parse a swap event.
func fromTransfers(e *WebhookEvent, trader string) (trade, bool) {
	var solSpent, solReceived uint64
	for _, n := range e.NativeTransfers {
		if n.FromUserAccount == trader {
			solSpent += n.Amount
		}
		if n.ToUserAccount == trader {
			solReceived += n.Amount
		}
	}

	var sent, received *TokenTransfer
	var wsolSent, wsolReceived float64
	for i := range e.TokenTransfers {
		t := &e.TokenTransfers[i]
		switch {
		case t.Mint == solMint && t.FromUserAccount == trader:
			wsolSent += t.TokenAmount
		case t.Mint == solMint && t.ToUserAccount == trader:
			wsolReceived += t.TokenAmount
		case t.FromUserAccount == trader && sent == nil:
			sent = t
		case t.ToUserAccount == trader && received == nil:
			received = t
		}
	}

	spent := lamportsToSol(solSpent) + wsolSent
	got := lamportsToSol(solReceived) + wsolReceived

	switch {
	case received != nil && spent > 0 && sent == nil:
		return trade{direction: database.DirectionBuy, token: received.Mint, solAmount: spent, tokenAmount: received.TokenAmount}, true
	case sent != nil && got > 0 && received == nil:
		return trade{direction: database.DirectionSell, token: sent.Mint, solAmount: got, tokenAmount: sent.TokenAmount}, true
	}
	return trade{}, false
}

func splitSol(balances []TokenBalance) ([]TokenBalance, float64) {
	var tokens []TokenBalance
	var wsol float64
	for _, b := range balances {
		if b.Mint == solMint {
			wsol += tokenUI(b)
			continue
		}
		tokens = append(tokens, b)
	}
	return tokens, wsol
}

func nativeSol(n *NativeAmount) float64 {
	if n == nil || n.Amount == "" {
		return 0
	}
	d, err := decimal.NewFromString(n.Amount.String())
	if err != nil {
		return 0
	}
	return d.Div(decimal.NewFromInt(lamportsPerSol)).InexactFloat64()
}

func tokenUI(b TokenBalance) float64 {
	d, err := decimal.NewFromString(b.RawTokenAmount.TokenAmount)
	if err != nil {
		return 0
	}
	return d.Shift(-b.RawTokenAmount.Decimals).InexactFloat64()
}

func lamportsToSol(l uint64) float64 {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(l), 0).Div(decimal.NewFromInt(lamportsPerSol)).InexactFloat64()
}

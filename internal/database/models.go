package database

import (
	"time"
)

// Signal directions
const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"
)

// Signal statuses. NEW is the pending-score substate a signal holds between
// ingestion and its first scoring run.
const (
	SignalStatusNew      = "NEW"
	SignalStatusPending  = "PENDING"
	SignalStatusExecuted = "EXECUTED"
	SignalStatusSkipped  = "SKIPPED"
	SignalStatusFailed   = "FAILED"
)

// Executed trade statuses
const (
	TradeStatusPending = "PENDING"
	TradeStatusSuccess = "SUCCESS"
	TradeStatusFailed  = "FAILED"
)

// Take-profit order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusTriggered = "triggered"
	OrderStatusExecuted  = "executed"
	OrderStatusFailed    = "failed"
	OrderStatusCancelled = "cancelled"
)

// Whale is a tracked wallet whose swaps generate signals
type Whale struct {
	Address   string    `json:"address"`
	Label     string    `json:"label"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Signal is one whale-observed swap
type Signal struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	WhaleLabel    *string   `json:"whaleLabel,omitempty"`
	TokenAddress  string    `json:"tokenAddress"`
	TokenSymbol   *string   `json:"tokenSymbol,omitempty"`
	Direction     string    `json:"direction"`
	SolAmount     float64   `json:"solAmount"`
	TokenAmount   float64   `json:"tokenAmount"`
	RiskScore     *int      `json:"riskScore,omitempty"`
	RiskReasoning *string   `json:"riskReasoning,omitempty"`
	Status        string    `json:"status"`
	TxHash        string    `json:"txHash"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsTerminal reports whether the signal can no longer change status
func (s *Signal) IsTerminal() bool {
	switch s.Status {
	case SignalStatusExecuted, SignalStatusSkipped, SignalStatusFailed:
		return true
	}
	return false
}

// SignalFilter narrows ListSignals
type SignalFilter struct {
	Status        string
	WalletAddress string
	Limit         int
	Offset        int
}

// ExecutedTrade is one user-authorized swap
type ExecutedTrade struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	SignalID     *string   `json:"signalId,omitempty"`
	TokenAddress string    `json:"tokenAddress"`
	AmountIn     float64   `json:"amountIn"`
	AmountOut    *float64  `json:"amountOut,omitempty"`
	EntryPrice   *float64  `json:"entryPrice,omitempty"`
	Status       string    `json:"status"`
	TxHash       *string   `json:"txHash,omitempty"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TradeResult is the outcome written onto an ExecutedTrade
type TradeResult struct {
	Status       string
	TxHash       string
	AmountOut    *float64
	EntryPrice   *float64
	ErrorMessage string
}

// Subscription holds a user's copy-trade parameters
type Subscription struct {
	UserID           string    `json:"userId"`
	MaxSolPerTrade   float64   `json:"maxSolPerTrade"`
	ScoreThreshold   int       `json:"scoreThreshold"`
	SlippageBps      int       `json:"slippageBps"`
	UseMevProtection bool      `json:"useMevProtection"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// TakeProfitOrder sells part of a position once price crosses a target.
// Version increments on every status change and guards concurrent writers.
type TakeProfitOrder struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	WalletAddress  string     `json:"walletAddress"`
	TokenAddress   string     `json:"tokenAddress"`
	TokenSymbol    string     `json:"tokenSymbol"`
	EntryPrice     float64    `json:"entryPrice"`
	TargetPercent  float64    `json:"targetPercent"`
	TargetPrice    float64    `json:"targetPrice"`
	SellPercentage float64    `json:"sellPercentage"`
	Status         string     `json:"status"`
	Version        int        `json:"version"`
	TxHash         *string    `json:"txHash,omitempty"`
	ErrorMessage   *string    `json:"errorMessage,omitempty"`
	TriggeredAt    *time.Time `json:"triggeredAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// OrderTransition describes a conditional status change on a take-profit order
type OrderTransition struct {
	ID              string
	ExpectedVersion int
	From            string
	To              string
	TxHash          string
	ErrorMessage    string
}

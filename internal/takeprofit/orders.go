// Package takeprofit manages take-profit orders and the monitor that fills
// them once a token crosses its target price.
package takeprofit

import (
	"context"
	"errors"
	"fmt"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"
	"solana-copy-trader/internal/metrics"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidOrder is returned for out-of-range order parameters
	ErrInvalidOrder = errors.New("invalid take-profit order")
	// ErrOrderNotFound is returned for an unknown or foreign order
	ErrOrderNotFound = errors.New("take-profit order not found")
	// ErrOrderNotPending is returned when cancelling an order that already fired
	ErrOrderNotPending = errors.New("take-profit order is no longer pending")
)

// Store is the order persistence the package needs
type Store interface {
	CreateTakeProfitOrder(ctx context.Context, o *database.TakeProfitOrder) error
	GetTakeProfitOrder(ctx context.Context, id string) (*database.TakeProfitOrder, error)
	ListTakeProfitOrders(ctx context.Context, userID, status string) ([]database.TakeProfitOrder, error)
	TransitionTakeProfitOrder(ctx context.Context, t database.OrderTransition) (int, error)
}

// OrderRequest describes a new order
type OrderRequest struct {
	WalletAddress  string  `json:"walletAddress" binding:"required"`
	TokenAddress   string  `json:"tokenAddress" binding:"required"`
	TokenSymbol    string  `json:"tokenSymbol"`
	EntryPrice     float64 `json:"entryPrice" binding:"required"`
	TargetPercent  float64 `json:"targetPercent" binding:"required"`
	SellPercentage float64 `json:"sellPercentage"`
}

// TargetPrice returns entry × (1 + targetPercent/100)
func TargetPrice(entryPrice, targetPercent float64) float64 {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(targetPercent).Div(decimal.NewFromInt(100)))
	return decimal.NewFromFloat(entryPrice).Mul(factor).InexactFloat64()
}

// NewTakeProfitOrder validates req and builds a pending order with its
// derived target price. A zero sell percentage sells the whole position.
func NewTakeProfitOrder(userID string, req OrderRequest) (*database.TakeProfitOrder, error) {
	if req.EntryPrice <= 0 {
		return nil, fmt.Errorf("%w: entry price must be positive", ErrInvalidOrder)
	}
	if req.TargetPercent <= 0 {
		return nil, fmt.Errorf("%w: target percent must be positive", ErrInvalidOrder)
	}
	if req.SellPercentage == 0 {
		req.SellPercentage = 100
	}
	if req.SellPercentage < 0 || req.SellPercentage > 100 {
		return nil, fmt.Errorf("%w: sell percentage must be within 0-100", ErrInvalidOrder)
	}
	if req.WalletAddress == "" || req.TokenAddress == "" {
		return nil, fmt.Errorf("%w: wallet and token are required", ErrInvalidOrder)
	}

	return &database.TakeProfitOrder{
		UserID:         userID,
		WalletAddress:  req.WalletAddress,
		TokenAddress:   req.TokenAddress,
		TokenSymbol:    req.TokenSymbol,
		EntryPrice:     req.EntryPrice,
		TargetPercent:  req.TargetPercent,
		TargetPrice:    TargetPrice(req.EntryPrice, req.TargetPercent),
		SellPercentage: req.SellPercentage,
		Status:         database.OrderStatusPending,
	}, nil
}

// Service is the order API used by the HTTP layer
type Service struct {
	store Store
	bus   *events.EventBus
}

// NewService creates an order service; bus may be nil
func NewService(store Store, bus *events.EventBus) *Service {
	return &Service{store: store, bus: bus}
}

// Create stores a new pending order
func (s *Service) Create(ctx context.Context, userID string, req OrderRequest) (*database.TakeProfitOrder, error) {
	order, err := NewTakeProfitOrder(userID, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateTakeProfitOrder(ctx, order); err != nil {
		return nil, err
	}
	metrics.RecordTakeProfit(database.OrderStatusPending)
	if s.bus != nil {
		s.bus.PublishTakeProfit(events.EventTakeProfitCreated, userID, order.ID, order.TokenAddress, order.Status, order.TargetPrice)
	}
	return order, nil
}

// List returns the user's orders, optionally filtered by status
func (s *Service) List(ctx context.Context, userID, status string) ([]database.TakeProfitOrder, error) {
	return s.store.ListTakeProfitOrders(ctx, userID, status)
}

// Cancel moves a pending order to cancelled. An order the monitor has
// already triggered cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*database.TakeProfitOrder, error) {
	order, err := s.store.GetTakeProfitOrder(ctx, id)
	if errors.Is(err, database.ErrNotFound) || (err == nil && order.UserID != userID) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.Status != database.OrderStatusPending {
		return nil, ErrOrderNotPending
	}

	version, err := s.store.TransitionTakeProfitOrder(ctx, database.OrderTransition{
		ID:              order.ID,
		ExpectedVersion: order.Version,
		From:            database.OrderStatusPending,
		To:              database.OrderStatusCancelled,
	})
	if errors.Is(err, database.ErrVersionConflict) {
		return nil, ErrOrderNotPending
	}
	if err != nil {
		return nil, err
	}

	order.Status = database.OrderStatusCancelled
	order.Version = version
	metrics.RecordTakeProfit(order.Status)
	if s.bus != nil {
		s.bus.PublishTakeProfit(events.EventTakeProfitCompleted, userID, order.ID, order.TokenAddress, order.Status, 0)
	}
	return order, nil
}

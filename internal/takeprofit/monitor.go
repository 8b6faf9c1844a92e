package takeprofit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/logging"
	"solana-copy-trader/internal/market"
	"solana-copy-trader/internal/metrics"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/wallet"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PriceSource supplies current token prices
type PriceSource interface {
	GetTokenPriceData(ctx context.Context, tokenAddress string) (*market.TokenPriceData, error)
}

// Holdings reads the wallet's token balance
type Holdings interface {
	GetTokenBalance(ctx context.Context, owner, mint string) (solana.TokenBalance, error)
}

// Quoter prices the token→SOL sell
type Quoter interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiter.Quote, error)
}

// Swapper executes the sell
type Swapper interface {
	ExecuteSwap(ctx context.Context, w wallet.Wallet, quote *jupiter.Quote, priorityFeeLamports uint64) jupiter.SwapResult
}

// MonitorConfig configures the polling loop
type MonitorConfig struct {
	Enabled             bool
	Interval            time.Duration
	UserID              string // empty watches every user's orders
	WalletAddress       string // empty watches every wallet
	SlippageBps         int
	PriorityFeeLamports uint64
}

// Monitor polls pending orders and sells once a token reaches its target
type Monitor struct {
	store    Store
	prices   PriceSource
	holdings Holdings
	quoter   Quoter
	swapper  Swapper
	wallet   wallet.Wallet
	bus      *events.EventBus
	config   MonitorConfig
	logger   zerolog.Logger

	// OnTrigger is called after an order wins the pending→triggered update
	OnTrigger func(order database.TakeProfitOrder, price float64)

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor. bus may be nil.
func NewMonitor(store Store, prices PriceSource, holdings Holdings, quoter Quoter, swapper Swapper,
	w wallet.Wallet, bus *events.EventBus, cfg MonitorConfig, logger zerolog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = 100
	}
	return &Monitor{
		store:    store,
		prices:   prices,
		holdings: holdings,
		quoter:   quoter,
		swapper:  swapper,
		wallet:   w,
		bus:      bus,
		config:   cfg,
		logger:   logger.With().Str("component", "tpmonitor").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins polling
func (m *Monitor) Start() {
	if !m.config.Enabled {
		m.logger.Info().Msg("Take-profit monitor is disabled")
		return
	}

	m.wg.Add(1)
	go m.run()
	m.logger.Info().Dur("interval", m.config.Interval).Msg("Take-profit monitor started")
}

// Stop prevents the next tick and waits for an in-flight one to finish
func (m *Monitor) Stop() {
	if !m.config.Enabled {
		return
	}
	close(m.stopChan)
	m.wg.Wait()
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.tick()

	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-m.stopChan:
			m.logger.Info().Msg("Take-profit monitor stopped")
			return
		}
	}
}

func (m *Monitor) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	m.Tick(ctx)
}

// Tick checks every pending order once and returns how many triggered
func (m *Monitor) Tick(ctx context.Context) int {
	metrics.RecordMonitorTick()

	orders, err := m.store.ListTakeProfitOrders(ctx, m.config.UserID, database.OrderStatusPending)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to load pending orders")
		if m.bus != nil {
			m.bus.PublishError("Take-profit monitor", "failed to load pending orders: "+err.Error())
		}
		return 0
	}

	triggered := 0
	for i := range orders {
		if m.checkOrder(ctx, &orders[i]) {
			triggered++
		}
	}
	return triggered
}

// checkOrder handles one order; failures stay with the order
func (m *Monitor) checkOrder(ctx context.Context, order *database.TakeProfitOrder) (fired bool) {
	log := logging.OrderContext(m.logger, order.ID, order.TokenAddress)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Order check panicked")
			fired = false
		}
	}()

	if order.Status != database.OrderStatusPending {
		return false
	}
	if m.config.WalletAddress != "" && order.WalletAddress != m.config.WalletAddress {
		return false
	}

	data, err := m.prices.GetTokenPriceData(ctx, order.TokenAddress)
	if err != nil || data == nil {
		log.Debug().Err(err).Msg("No price for order token")
		return false
	}
	if data.Price < order.TargetPrice {
		return false
	}

	version, err := m.store.TransitionTakeProfitOrder(ctx, database.OrderTransition{
		ID:              order.ID,
		ExpectedVersion: order.Version,
		From:            database.OrderStatusPending,
		To:              database.OrderStatusTriggered,
	})
	if errors.Is(err, database.ErrVersionConflict) {
		log.Debug().Msg("Order changed since load, skipping")
		return false
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark order triggered")
		return false
	}
	order.Status = database.OrderStatusTriggered
	order.Version = version

	log.Info().
		Float64("price", data.Price).
		Float64("target", order.TargetPrice).
		Msg("Take-profit target reached")
	metrics.RecordTakeProfit(order.Status)
	if m.OnTrigger != nil {
		m.OnTrigger(*order, data.Price)
	}
	if m.bus != nil {
		m.bus.PublishTakeProfit(events.EventTakeProfitTriggered, order.UserID, order.ID, order.TokenAddress, order.Status, data.Price)
	}

	m.sell(ctx, order, data.Price, log)
	return true
}

// sell executes the triggered order and records the final status. With no
// ready wallet the order stays triggered for the user to sell by hand.
func (m *Monitor) sell(ctx context.Context, order *database.TakeProfitOrder, price float64, log zerolog.Logger) {
	if m.wallet == nil || !m.wallet.Ready() || m.swapper == nil {
		log.Warn().Msg("Wallet not ready, order left triggered")
		return
	}

	amount, err := m.sellAmount(ctx, order)
	if err != nil {
		m.finish(ctx, order, database.OrderStatusFailed, "", err.Error(), price, log)
		return
	}

	quote, err := m.quoter.GetQuote(ctx, order.TokenAddress, jupiter.SolMint, amount, m.config.SlippageBps)
	if err != nil {
		m.finish(ctx, order, database.OrderStatusFailed, "", fmt.Sprintf("failed to get quote: %v", err), price, log)
		return
	}

	res := m.swapper.ExecuteSwap(ctx, m.wallet, quote, m.config.PriorityFeeLamports)
	if !res.Success {
		m.finish(ctx, order, database.OrderStatusFailed, res.Signature, res.Error, price, log)
		return
	}
	m.finish(ctx, order, database.OrderStatusExecuted, res.Signature, "", price, log)
}

// sellAmount is holdings × sellPercentage/100 in base units, rounded down
func (m *Monitor) sellAmount(ctx context.Context, order *database.TakeProfitOrder) (uint64, error) {
	bal, err := m.holdings.GetTokenBalance(ctx, order.WalletAddress, order.TokenAddress)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	if bal.Amount == 0 {
		return 0, errors.New("no token balance to sell")
	}

	amount := jupiter.DecimalToBaseUnits(jupiter.BaseUnitsToDecimal(bal.Amount).
		Mul(decimal.NewFromFloat(order.SellPercentage)).
		Div(decimal.NewFromInt(100)))
	if amount == 0 {
		return 0, errors.New("sell amount rounds to zero")
	}
	return amount, nil
}

func (m *Monitor) finish(ctx context.Context, order *database.TakeProfitOrder, status, txHash, errMsg string, price float64, log zerolog.Logger) {
	version, err := m.store.TransitionTakeProfitOrder(ctx, database.OrderTransition{
		ID:              order.ID,
		ExpectedVersion: order.Version,
		From:            database.OrderStatusTriggered,
		To:              status,
		TxHash:          txHash,
		ErrorMessage:    errMsg,
	})
	if err != nil {
		log.Error().Err(err).Str("status", status).Msg("Failed to record order outcome")
		return
	}
	order.Status = status
	order.Version = version

	if status == database.OrderStatusExecuted {
		log.Info().Str("tx", txHash).Msg("Take-profit sell executed")
	} else {
		log.Warn().Str("error", errMsg).Msg("Take-profit sell failed")
	}
	metrics.RecordTakeProfit(status)
	if m.bus != nil {
		m.bus.PublishTakeProfit(events.EventTakeProfitCompleted, order.UserID, order.ID, order.TokenAddress, status, price)
	}
}

package notification

import (
	"fmt"
	"time"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"

	"github.com/rs/zerolog"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal     NotificationType = "signal"
	NotifyTrade      NotificationType = "trade"
	NotifyTakeProfit NotificationType = "take_profit"
	NotifyError      NotificationType = "error"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Token     string
	Price     float64
	Failed    bool
	Timestamp time.Time
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewManager creates a new notification manager
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		logger:    logger.With().Str("component", "notification").Logger(),
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Enabled reports whether any provider will deliver
func (m *Manager) Enabled() bool {
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			return true
		}
	}
	return false
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now()
	}

	var lastErr error
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.Send(notification); err != nil {
			m.logger.Warn().Err(err).Str("provider", n.Name()).Msg("Notification failed")
			lastErr = err
		}
	}
	return lastErr
}

// SendSignal announces a signal that passed risk scoring
func (m *Manager) SendSignal(signalID, token string, score int, reasoning string) error {
	return m.Send(&Notification{
		Type:    NotifySignal,
		Title:   fmt.Sprintf("🐋 Copy signal scored %d", score),
		Message: fmt.Sprintf("Token: %s\nSignal: %s\n%s", token, signalID, reasoning),
		Token:   token,
	})
}

// SendTrade announces an executed copy trade
func (m *Manager) SendTrade(tradeID, status, txHash string) error {
	failed := status != database.TradeStatusSuccess
	title := "✅ Copy trade executed"
	if failed {
		title = "❌ Copy trade failed"
	}
	msg := fmt.Sprintf("Trade: %s", tradeID)
	if txHash != "" {
		msg += fmt.Sprintf("\nTx: https://solscan.io/tx/%s", txHash)
	}
	return m.Send(&Notification{Type: NotifyTrade, Title: title, Message: msg, Failed: failed})
}

// SendTakeProfit announces a take-profit order reaching status
func (m *Manager) SendTakeProfit(orderID, token, status string, price float64) error {
	var title string
	switch status {
	case database.OrderStatusTriggered:
		title = "🎯 Take-profit target reached"
	case database.OrderStatusExecuted:
		title = "💰 Take-profit sold"
	default:
		title = fmt.Sprintf("Take-profit %s", status)
	}
	return m.Send(&Notification{
		Type:    NotifyTakeProfit,
		Title:   title,
		Message: fmt.Sprintf("Order: %s\nToken: %s\nPrice: %g", orderID, token, price),
		Token:   token,
		Price:   price,
		Failed:  status == database.OrderStatusFailed,
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:    NotifyError,
		Title:   fmt.Sprintf("⚠️ %s", title),
		Message: message,
		Failed:  true,
	})
}

// Subscribe forwards the bus events worth a message to the notifiers.
// Breaker events only notify when trading halts.
func (m *Manager) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventSignalScored, func(e events.Event) {
		if str(e.Data["status"]) != database.SignalStatusPending {
			return
		}
		score, _ := e.Data["score"].(int)
		m.SendSignal(str(e.Data["signal_id"]), str(e.Data["token"]), score, str(e.Data["reasoning"]))
	})
	bus.Subscribe(events.EventTradeRecorded, func(e events.Event) {
		m.SendTrade(str(e.Data["trade_id"]), str(e.Data["status"]), str(e.Data["tx_hash"]))
	})
	takeProfit := func(e events.Event) {
		price, _ := e.Data["price"].(float64)
		m.SendTakeProfit(str(e.Data["order_id"]), str(e.Data["token"]), str(e.Data["status"]), price)
	}
	bus.Subscribe(events.EventTakeProfitTriggered, takeProfit)
	bus.Subscribe(events.EventTakeProfitCompleted, func(e events.Event) {
		if str(e.Data["status"]) == database.OrderStatusCancelled {
			return
		}
		takeProfit(e)
	})
	bus.Subscribe(events.EventError, func(e events.Event) {
		m.SendError(str(e.Data["source"]), str(e.Data["message"]))
	})
	bus.Subscribe(events.EventCircuitBreaker, func(e events.Event) {
		if str(e.Data["state"]) == "open" {
			m.SendError("Auto-copy halted", str(e.Data["reason"]))
		}
	})
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

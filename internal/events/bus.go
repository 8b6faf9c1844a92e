package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalCreated       EventType = "SIGNAL_CREATED"
	EventSignalScored        EventType = "SIGNAL_SCORED"
	EventSignalStatusChanged EventType = "SIGNAL_STATUS_CHANGED"
	EventTradePrepared       EventType = "TRADE_PREPARED"
	EventTradeRecorded       EventType = "TRADE_RECORDED"
	EventTakeProfitCreated   EventType = "TAKE_PROFIT_CREATED"
	EventTakeProfitTriggered EventType = "TAKE_PROFIT_TRIGGERED"
	EventTakeProfitCompleted EventType = "TAKE_PROFIT_COMPLETED"
	EventWhaleUpdated        EventType = "WHALE_UPDATED"
	EventCircuitBreaker      EventType = "CIRCUIT_BREAKER"
	EventError               EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"-"` // empty broadcasts to every client
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Each subscriber runs in its own
// goroutine so a slow handler never blocks the publisher.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range eb.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignalCreated announces a newly ingested signal
func (eb *EventBus) PublishSignalCreated(signalID, wallet, token, direction string, solAmount float64) {
	eb.Publish(Event{
		Type: EventSignalCreated,
		Data: map[string]interface{}{
			"signal_id":  signalID,
			"wallet":     wallet,
			"token":      token,
			"direction":  direction,
			"sol_amount": solAmount,
		},
	})
}

// PublishSignalScored announces a scoring result and the resulting status
func (eb *EventBus) PublishSignalScored(signalID, token string, score int, status, reasoning string) {
	eb.Publish(Event{
		Type: EventSignalScored,
		Data: map[string]interface{}{
			"signal_id": signalID,
			"token":     token,
			"score":     score,
			"status":    status,
			"reasoning": reasoning,
		},
	})
}

// PublishSignalStatus announces a signal status change
func (eb *EventBus) PublishSignalStatus(signalID, status string) {
	eb.Publish(Event{
		Type: EventSignalStatusChanged,
		Data: map[string]interface{}{
			"signal_id": signalID,
			"status":    status,
		},
	})
}

// PublishTradeRecorded announces an executed trade result to its owner
func (eb *EventBus) PublishTradeRecorded(userID, tradeID, signalID, status, txHash string) {
	eb.Publish(Event{
		Type:   EventTradeRecorded,
		UserID: userID,
		Data: map[string]interface{}{
			"trade_id":  tradeID,
			"signal_id": signalID,
			"status":    status,
			"tx_hash":   txHash,
		},
	})
}

// PublishTakeProfit announces a take-profit order state change to its owner
func (eb *EventBus) PublishTakeProfit(eventType EventType, userID, orderID, token, status string, price float64) {
	eb.Publish(Event{
		Type:   eventType,
		UserID: userID,
		Data: map[string]interface{}{
			"order_id": orderID,
			"token":    token,
			"status":   status,
			"price":    price,
		},
	})
}

// PublishWhaleUpdated announces a tracked-wallet change
func (eb *EventBus) PublishWhaleUpdated(address, action string, active bool) {
	eb.Publish(Event{
		Type: EventWhaleUpdated,
		Data: map[string]interface{}{
			"address": address,
			"action":  action,
			"active":  active,
		},
	})
}

// PublishCircuitBreaker announces an auto-copy breaker trip or reset
func (eb *EventBus) PublishCircuitBreaker(userID, state, reason string) {
	eb.Publish(Event{
		Type:   EventCircuitBreaker,
		UserID: userID,
		Data: map[string]interface{}{
			"state":  state,
			"reason": reason,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string) {
	eb.Publish(Event{
		Type: EventError,
		Data: map[string]interface{}{
			"source":  source,
			"message": message,
		},
	})
}

// Package circuit halts unattended copy trading when executions keep
// failing or a daily budget is spent.
package circuit

import (
	"fmt"
	"sync"
	"time"

	"solana-copy-trader/internal/events"

	"github.com/shopspring/decimal"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Trading halted
	StateHalfOpen BreakerState = "half_open" // One trial execution allowed
)

// Config holds circuit breaker configuration
type Config struct {
	Enabled                bool          `json:"enabled"`
	MaxConsecutiveFailures int           `json:"max_consecutive_failures"`
	MaxDailyTrades         int           `json:"max_daily_trades"`
	MaxDailySol            float64       `json:"max_daily_sol"`
	Cooldown               time.Duration `json:"cooldown"`
}

// DefaultConfig returns safe defaults
func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		MaxConsecutiveFailures: 3,
		MaxDailyTrades:         20,
		MaxDailySol:            2,
		Cooldown:               30 * time.Minute,
	}
}

// Breaker gates the auto-copy loop. Failures trip it for the cooldown;
// the daily limits hold until the next UTC day.
type Breaker struct {
	config              Config
	state               BreakerState
	consecutiveFailures int
	dailyTrades         int
	dailySol            decimal.Decimal
	dayStart            time.Time
	lastTripTime        time.Time
	tripReason          string
	mu                  sync.Mutex
	bus                 *events.EventBus
	userID              string
	now                 func() time.Time
}

// NewBreaker creates a breaker; bus may be nil
func NewBreaker(cfg Config, bus *events.EventBus, userID string) *Breaker {
	def := DefaultConfig()
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	b := &Breaker{
		config:   cfg,
		state:    StateClosed,
		dailySol: decimal.Zero,
		bus:      bus,
		userID:   userID,
		now:      time.Now,
	}
	b.dayStart = b.today()
	return b
}

func (b *Breaker) today() time.Time {
	return b.now().UTC().Truncate(24 * time.Hour)
}

// CanTrade reports whether an execution of solAmount may start, and the
// reason when it may not.
func (b *Breaker) CanTrade(solAmount float64) (bool, string) {
	if !b.config.Enabled {
		return true, ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetDailyIfNeeded()

	if b.state == StateOpen {
		remaining := b.config.Cooldown - b.now().Sub(b.lastTripTime)
		if remaining > 0 {
			return false, fmt.Sprintf("circuit breaker open, cooldown remaining: %v (reason: %s)",
				remaining.Round(time.Second), b.tripReason)
		}
		b.state = StateHalfOpen
	}

	if b.config.MaxDailyTrades > 0 && b.dailyTrades >= b.config.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached: %d trades", b.dailyTrades)
	}

	if b.config.MaxDailySol > 0 {
		next := b.dailySol.Add(decimal.NewFromFloat(solAmount))
		if next.GreaterThan(decimal.NewFromFloat(b.config.MaxDailySol)) {
			return false, fmt.Sprintf("daily SOL limit reached: %s + %.4f > %.4f",
				b.dailySol.StringFixed(4), solAmount, b.config.MaxDailySol)
		}
	}

	return true, ""
}

// RecordExecution counts one finished execution. Only successful swaps
// spend the daily budget.
func (b *Breaker) RecordExecution(success bool, solAmount float64) {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	b.resetDailyIfNeeded()

	var event, reason string
	if success {
		b.consecutiveFailures = 0
		b.dailyTrades++
		b.dailySol = b.dailySol.Add(decimal.NewFromFloat(solAmount))
		if b.state == StateHalfOpen {
			b.state = StateClosed
			b.tripReason = ""
			event, reason = string(StateClosed), "execution succeeded after cooldown"
		}
	} else {
		b.consecutiveFailures++
		if b.state == StateHalfOpen || b.consecutiveFailures >= b.config.MaxConsecutiveFailures {
			b.trip(fmt.Sprintf("consecutive failed executions: %d", b.consecutiveFailures))
			event, reason = string(StateOpen), b.tripReason
		}
	}
	b.mu.Unlock()

	if event != "" && b.bus != nil {
		b.bus.PublishCircuitBreaker(b.userID, event, reason)
	}
}

func (b *Breaker) trip(reason string) {
	b.state = StateOpen
	b.lastTripTime = b.now()
	b.tripReason = reason
}

func (b *Breaker) resetDailyIfNeeded() {
	if today := b.today(); today.After(b.dayStart) {
		b.dayStart = today
		b.dailyTrades = 0
		b.dailySol = decimal.Zero
	}
}

// ForceReset closes the breaker and clears the failure streak
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.tripReason = ""
	b.mu.Unlock()

	if b.bus != nil {
		b.bus.PublishCircuitBreaker(b.userID, string(StateClosed), "manual reset")
	}
}

// GetState returns current breaker state
func (b *Breaker) GetState() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// GetStats returns current statistics
func (b *Breaker) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"state":                string(b.state),
		"consecutive_failures": b.consecutiveFailures,
		"daily_trades":         b.dailyTrades,
		"daily_sol":            b.dailySol.InexactFloat64(),
		"trip_reason":          b.tripReason,
		"last_trip_time":       b.lastTripTime,
	}
}

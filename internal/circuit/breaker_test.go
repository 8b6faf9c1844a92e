package circuit

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestBreaker(cfg Config) (*Breaker, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBreaker(cfg, nil, "user-1")
	b.now = c.now
	b.dayStart = b.today()
	return b, c
}

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	b, c := newTestBreaker(Config{Enabled: true, MaxConsecutiveFailures: 2, Cooldown: 10 * time.Minute})

	b.RecordExecution(false, 0.1)
	if ok, _ := b.CanTrade(0.1); !ok {
		t.Fatal("Expected one failure to leave the breaker closed")
	}
	b.RecordExecution(false, 0.1)
	if b.GetState() != StateOpen {
		t.Fatalf("Expected breaker open, got %s", b.GetState())
	}
	if ok, reason := b.CanTrade(0.1); ok || reason == "" {
		t.Errorf("Expected trading halted with a reason, got ok=%v reason=%q", ok, reason)
	}

	// After the cooldown one trial is allowed
	c.t = c.t.Add(11 * time.Minute)
	if ok, _ := b.CanTrade(0.1); !ok {
		t.Fatal("Expected a trial execution after cooldown")
	}
	if b.GetState() != StateHalfOpen {
		t.Errorf("Expected half-open, got %s", b.GetState())
	}

	// A failed trial reopens immediately
	b.RecordExecution(false, 0.1)
	if b.GetState() != StateOpen {
		t.Errorf("Expected failed trial to reopen, got %s", b.GetState())
	}

	c.t = c.t.Add(11 * time.Minute)
	b.CanTrade(0.1)
	b.RecordExecution(true, 0.1)
	if b.GetState() != StateClosed {
		t.Errorf("Expected successful trial to close, got %s", b.GetState())
	}
}

func TestBreakerDailyLimits(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		trades []float64
		next   float64
		wantOK bool
	}{
		{"under trade limit", Config{Enabled: true, MaxDailyTrades: 3}, []float64{0.1, 0.1}, 0.1, true},
		{"trade limit reached", Config{Enabled: true, MaxDailyTrades: 2}, []float64{0.1, 0.1}, 0.1, false},
		{"sol budget fits exactly", Config{Enabled: true, MaxDailySol: 0.3}, []float64{0.1, 0.1}, 0.1, true},
		{"sol budget exceeded", Config{Enabled: true, MaxDailySol: 0.25}, []float64{0.1, 0.1}, 0.1, false},
		{"disabled", Config{Enabled: false, MaxDailyTrades: 1}, []float64{0.1, 0.1}, 0.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(tt.cfg)
			for _, sol := range tt.trades {
				b.RecordExecution(true, sol)
			}
			if ok, reason := b.CanTrade(tt.next); ok != tt.wantOK {
				t.Errorf("Expected ok=%v, got %v (%s)", tt.wantOK, ok, reason)
			}
		})
	}
}

func TestBreakerDailyReset(t *testing.T) {
	b, c := newTestBreaker(Config{Enabled: true, MaxDailyTrades: 1})
	b.RecordExecution(true, 0.5)
	if ok, _ := b.CanTrade(0.1); ok {
		t.Fatal("Expected daily limit to block")
	}

	c.t = c.t.Add(13 * time.Hour)
	if ok, reason := b.CanTrade(0.1); !ok {
		t.Errorf("Expected limits reset on the next day, got %s", reason)
	}
}

func TestBreakerForceReset(t *testing.T) {
	b, _ := newTestBreaker(Config{Enabled: true, MaxConsecutiveFailures: 1})
	b.RecordExecution(false, 0)
	b.ForceReset()

	if ok, _ := b.CanTrade(0.1); !ok {
		t.Error("Expected trading allowed after a manual reset")
	}
	if stats := b.GetStats(); stats["consecutive_failures"] != 0 {
		t.Errorf("Expected failure streak cleared, got %v", stats["consecutive_failures"])
	}
}

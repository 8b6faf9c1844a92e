package takeprofit

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/solana"

	"github.com/rs/zerolog"
)

type monitorFixture struct {
	store    *memStore
	holdings *fakeHoldings
	quoter   *fakeQuoter
	swapper  *fakeSwapper
	monitor  *Monitor
}

func newFixture(prices fakePrices, w stubWallet) *monitorFixture {
	f := &monitorFixture{
		store:    newMemStore(),
		holdings: &fakeHoldings{balance: solana.TokenBalance{Amount: 1_000_001, Decimals: 6}},
		quoter:   &fakeQuoter{},
		swapper:  &fakeSwapper{result: jupiter.SwapResult{Success: true, Signature: "SELLSIG"}},
	}
	f.monitor = NewMonitor(f.store, prices, f.holdings, f.quoter, f.swapper, w, nil,
		MonitorConfig{Enabled: true}, zerolog.Nop())
	return f
}

func TestTickSellsWhenTargetReached(t *testing.T) {
	f := newFixture(fakePrices{"MEME": 2.5}, stubWallet{ready: true})
	id := f.store.add(testOrder("MEME", 2.0))

	var triggered []string
	f.monitor.OnTrigger = func(o database.TakeProfitOrder, price float64) {
		triggered = append(triggered, o.ID)
	}

	if got := f.monitor.Tick(context.Background()); got != 1 {
		t.Fatalf("Expected 1 triggered order, got %d", got)
	}
	if len(triggered) != 1 || triggered[0] != id {
		t.Errorf("Expected OnTrigger for %s, got %v", id, triggered)
	}

	o := f.store.get(id)
	if o.Status != database.OrderStatusExecuted {
		t.Errorf("Expected executed, got %s", o.Status)
	}
	if o.Version != 3 {
		t.Errorf("Expected version 3 after two transitions, got %d", o.Version)
	}
	if o.TxHash == nil || *o.TxHash != "SELLSIG" {
		t.Errorf("Expected tx hash SELLSIG, got %v", o.TxHash)
	}
	// 50% of 1_000_001 rounds down
	if f.quoter.lastAmount != 500_000 {
		t.Errorf("Expected sell amount 500000, got %d", f.quoter.lastAmount)
	}
	if f.quoter.lastIn != "MEME" || f.quoter.lastOut != jupiter.SolMint {
		t.Errorf("Expected MEME→SOL quote, got %s→%s", f.quoter.lastIn, f.quoter.lastOut)
	}
}

func TestTickSellsBalancesAboveInt64(t *testing.T) {
	tests := []struct {
		name    string
		sellPct float64
		want    uint64
	}{
		{"half", 50, 5_000_000_000_000_000_000},
		{"all", 100, 10_000_000_000_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(fakePrices{"MEME": 2.5}, stubWallet{ready: true})
			f.holdings.balance = solana.TokenBalance{Amount: 10_000_000_000_000_000_000, Decimals: 9}
			order := testOrder("MEME", 2.0)
			order.SellPercentage = tt.sellPct
			id := f.store.add(order)

			f.monitor.Tick(context.Background())

			if f.quoter.lastAmount != tt.want {
				t.Errorf("Expected sell amount %d, got %d", tt.want, f.quoter.lastAmount)
			}
			if o := f.store.get(id); o.Status != database.OrderStatusExecuted {
				t.Errorf("Expected executed, got %s", o.Status)
			}
		})
	}
}

func TestTickReportsStoreFailure(t *testing.T) {
	f := newFixture(fakePrices{"MEME": 2.5}, stubWallet{ready: true})
	f.store.listErr = errors.New("connection refused")
	bus := events.NewEventBus()
	f.monitor.bus = bus

	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventError, func(e events.Event) { received <- e })

	if got := f.monitor.Tick(context.Background()); got != 0 {
		t.Errorf("Expected no triggers, got %d", got)
	}

	select {
	case e := <-received:
		if e.Data["source"] != "Take-profit monitor" {
			t.Errorf("Expected take-profit source, got %v", e.Data["source"])
		}
	case <-time.After(time.Second):
		t.Fatal("Expected an error event")
	}
}

func TestTickLeavesOrdersBelowTarget(t *testing.T) {
	f := newFixture(fakePrices{"MEME": 1.9}, stubWallet{ready: true})
	id := f.store.add(testOrder("MEME", 2.0))
	missing := f.store.add(testOrder("NOPRICE", 2.0))

	if got := f.monitor.Tick(context.Background()); got != 0 {
		t.Errorf("Expected no triggers, got %d", got)
	}
	for _, oid := range []string{id, missing} {
		if o := f.store.get(oid); o.Status != database.OrderStatusPending || o.Version != 1 {
			t.Errorf("Expected %s untouched, got %s v%d", oid, o.Status, o.Version)
		}
	}
	if f.swapper.calls != 0 {
		t.Error("Expected no swap")
	}
}

func TestTickLosesRaceToCancel(t *testing.T) {
	f := newFixture(fakePrices{"MEME": 3}, stubWallet{ready: true})
	id := f.store.add(testOrder("MEME", 2.0))
	svc := NewService(f.store, nil)

	// The user cancels between the monitor's load and its update
	f.store.beforeTransition = func() {
		if _, err := svc.Cancel(context.Background(), "user-1", id); err != nil {
			t.Errorf("Cancel failed: %v", err)
		}
	}

	fired := false
	f.monitor.OnTrigger = func(database.TakeProfitOrder, float64) { fired = true }

	if got := f.monitor.Tick(context.Background()); got != 0 {
		t.Errorf("Expected the monitor to skip, got %d", got)
	}
	if fired || f.swapper.calls != 0 {
		t.Error("Expected no trigger callback and no swap")
	}
	if o := f.store.get(id); o.Status != database.OrderStatusCancelled {
		t.Errorf("Expected cancelled to win, got %s", o.Status)
	}
}

func TestTickFailureOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *monitorFixture)
		wantErr string
	}{
		{"no balance", func(f *monitorFixture) { f.holdings.balance.Amount = 0 }, "no token balance to sell"},
		{"rpc down", func(f *monitorFixture) { f.holdings.err = errors.New("rpc down") }, "failed to read balance: rpc down"},
		{"no route", func(f *monitorFixture) { f.quoter.fail = true }, "failed to get quote"},
		{"swap fails", func(f *monitorFixture) { f.swapper.result = jupiter.SwapResult{Error: "slippage"} }, "slippage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(fakePrices{"MEME": 2}, stubWallet{ready: true})
			id := f.store.add(testOrder("MEME", 2.0))
			tt.setup(f)

			f.monitor.Tick(context.Background())

			o := f.store.get(id)
			if o.Status != database.OrderStatusFailed {
				t.Errorf("Expected failed, got %s", o.Status)
			}
			if o.ErrorMessage == nil || len(*o.ErrorMessage) < len(tt.wantErr) || (*o.ErrorMessage)[:len(tt.wantErr)] != tt.wantErr {
				t.Errorf("Expected error starting %q, got %v", tt.wantErr, o.ErrorMessage)
			}
		})
	}
}

func TestTickWalletNotReady(t *testing.T) {
	f := newFixture(fakePrices{"MEME": 2}, stubWallet{ready: false})
	id := f.store.add(testOrder("MEME", 2.0))

	if got := f.monitor.Tick(context.Background()); got != 1 {
		t.Errorf("Expected order to trigger, got %d", got)
	}
	if o := f.store.get(id); o.Status != database.OrderStatusTriggered {
		t.Errorf("Expected order left triggered, got %s", o.Status)
	}
	if f.swapper.calls != 0 {
		t.Error("Expected no swap without a ready wallet")
	}
}

func TestTickFiltersByWallet(t *testing.T) {
	f := newFixture(fakePrices{"MEME": 5}, stubWallet{ready: true})
	f.monitor.config.WalletAddress = "OWNER"

	foreign := testOrder("MEME", 2.0)
	foreign.WalletAddress = "SOMEONE_ELSE"
	id := f.store.add(foreign)

	f.monitor.Tick(context.Background())
	if o := f.store.get(id); o.Status != database.OrderStatusPending {
		t.Errorf("Expected foreign wallet order untouched, got %s", o.Status)
	}
}

func TestTickRunsOncePerOrder(t *testing.T) {
	f := newFixture(fakePrices{"MEME": 5}, stubWallet{ready: true})
	f.store.add(testOrder("MEME", 2.0))

	f.monitor.Tick(context.Background())
	f.monitor.Tick(context.Background())
	if f.swapper.calls != 1 {
		t.Errorf("Expected one sell across ticks, got %d", f.swapper.calls)
	}
}

func TestMonitorStartStop(t *testing.T) {
	f := newFixture(fakePrices{}, stubWallet{})
	f.monitor.Start()
	f.monitor.Stop()

	disabled := NewMonitor(f.store, fakePrices{}, nil, nil, nil, nil, nil, MonitorConfig{}, zerolog.Nop())
	disabled.Start()
	disabled.Stop()
	if disabled.config.Interval.Seconds() != 30 {
		t.Errorf("Expected default interval 30s, got %v", disabled.config.Interval)
	}
}

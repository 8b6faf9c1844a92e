package copytrade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"solana-copy-trader/internal/ai/llm"
	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/market"
	"solana-copy-trader/internal/wallet"
)

// memStore is an in-memory SignalStore, TradeStore and SignalLister
type memStore struct {
	mu      sync.Mutex
	signals map[string]*database.Signal
	trades  map[string]*database.ExecutedTrade
	sub     *database.Subscription
	nextID  int
}

func newMemStore(signals ...*database.Signal) *memStore {
	s := &memStore{
		signals: make(map[string]*database.Signal),
		trades:  make(map[string]*database.ExecutedTrade),
	}
	for _, sig := range signals {
		s.signals[sig.ID] = sig
	}
	return s
}

func (s *memStore) GetSignal(_ context.Context, id string) (*database.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *sig
	return &cp, nil
}

func (s *memStore) UpdateSignalScore(_ context.Context, id string, score int, reasoning string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig := s.signals[id]
	sig.RiskScore = &score
	sig.RiskReasoning = &reasoning
	return nil
}

func (s *memStore) UpdateSignalTokenSymbol(_ context.Context, id, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[id].TokenSymbol = &symbol
	return nil
}

func (s *memStore) TransitionSignalStatus(_ context.Context, id string, from []string, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if sig.Status == f {
			sig.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListSignals(_ context.Context, f database.SignalFilter) ([]database.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Signal
	for _, sig := range s.signals {
		if f.Status == "" || sig.Status == f.Status {
			out = append(out, *sig)
		}
	}
	return out, nil
}

func (s *memStore) GetSubscription(_ context.Context, userID string) (*database.Subscription, error) {
	if s.sub == nil {
		return nil, database.ErrNotFound
	}
	return s.sub, nil
}

// CreateExecutedTrade mirrors the partial unique index on live claims
func (s *memStore) CreateExecutedTrade(_ context.Context, t *database.ExecutedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := t.Status == database.TradeStatusPending || t.Status == database.TradeStatusSuccess
	if live && t.SignalID != nil {
		for _, other := range s.trades {
			if other.SignalID != nil && *other.SignalID == *t.SignalID &&
				(other.Status == database.TradeStatusPending || other.Status == database.TradeStatusSuccess) {
				return database.ErrSignalAlreadyClaimed
			}
		}
	}
	s.nextID++
	t.ID = fmt.Sprintf("trade-%d", s.nextID)
	cp := *t
	s.trades[t.ID] = &cp
	return nil
}

func (s *memStore) CompleteExecutedTrade(_ context.Context, id string, res database.TradeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok || t.Status != database.TradeStatusPending {
		return database.ErrNotFound
	}
	t.Status = res.Status
	if res.TxHash != "" {
		tx := res.TxHash
		t.TxHash = &tx
	}
	t.AmountOut = res.AmountOut
	t.EntryPrice = res.EntryPrice
	return nil
}

func (s *memStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signals[id].Status
}

func (s *memStore) tradesByStatus(status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.trades {
		if t.Status == status {
			n++
		}
	}
	return n
}

type fakeScorer struct {
	verdict llm.TokenAnalysis
	calls   int32
	panics  bool
	lastCtx llm.TokenContext
}

func (f *fakeScorer) AnalyzeToken(_ context.Context, tc llm.TokenContext, _ string) llm.TokenAnalysis {
	atomic.AddInt32(&f.calls, 1)
	if f.panics {
		panic("scorer exploded")
	}
	f.lastCtx = tc
	return f.verdict
}

type fakeMarket struct {
	info *market.TokenInfo
	err  error
}

func (f *fakeMarket) GetTokenInfo(context.Context, string) (*market.TokenInfo, error) {
	return f.info, f.err
}

func (f *fakeMarket) GetTokenPriceData(context.Context, string) (*market.TokenPriceData, error) {
	if f.info == nil {
		return nil, f.err
	}
	return f.info.PriceData(), f.err
}

type fakeQuoter struct {
	calls      int32
	lastAmount uint64
	fail       bool
}

func (f *fakeQuoter) GetQuote(_ context.Context, in, out string, amount uint64, _ int) (*jupiter.Quote, error) {
	atomic.AddInt32(&f.calls, 1)
	f.lastAmount = amount
	if f.fail {
		return nil, errors.New("no route")
	}
	return &jupiter.Quote{InputMint: in, OutputMint: out, InAmount: fmt.Sprint(amount), OutAmount: "4200"}, nil
}

type fakeSwapper struct {
	calls  int32
	result jupiter.SwapResult
	gate   chan struct{} // blocks ExecuteSwap until closed when set
}

func (f *fakeSwapper) ExecuteSwap(_ context.Context, _ wallet.Wallet, _ *jupiter.Quote, _ uint64) jupiter.SwapResult {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	return f.result
}

type readyWallet struct{}

func (readyWallet) PublicKey() string { return "USER" }
func (readyWallet) Ready() bool       { return true }
func (readyWallet) SignTransaction(_ context.Context, tx []byte) ([]byte, error) {
	return tx, nil
}

func buySignal(id string, sol float64) *database.Signal {
	label := "Smart Money"
	return &database.Signal{
		ID:            id,
		WalletAddress: "WHALE",
		WhaleLabel:    &label,
		TokenAddress:  "MEME",
		Direction:     database.DirectionBuy,
		SolAmount:     sol,
		Status:        database.SignalStatusNew,
		TxHash:        "tx-" + id,
	}
}

package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-copy-trader/internal/ai/llm"
	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/market"
)

// memStore backs every store interface the server's dependencies need
type memStore struct {
	mu      sync.Mutex
	down    bool
	whales  map[string]*database.Whale
	signals map[string]*database.Signal
	trades  []*database.ExecutedTrade
	subs    map[string]*database.Subscription
	orders  map[string]*database.TakeProfitOrder
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{
		whales:  make(map[string]*database.Whale),
		signals: make(map[string]*database.Signal),
		subs:    make(map[string]*database.Subscription),
		orders:  make(map[string]*database.TakeProfitOrder),
	}
}

func (s *memStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *memStore) HealthCheck(context.Context) error {
	if s.down {
		return errors.New("connection refused")
	}
	return nil
}

func (s *memStore) addSignal(sig database.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[sig.ID] = &sig
}

func (s *memStore) signalStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signals[id].Status
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

func (s *memStore) ListSignals(_ context.Context, f database.SignalFilter) ([]database.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Signal
	for _, sig := range s.signals {
		if f.Status != "" && sig.Status != f.Status {
			continue
		}
		out = append(out, *sig)
	}
	return out, nil
}

func (s *memStore) SignalExistsByTxHash(_ context.Context, tx string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range s.signals {
		if sig.TxHash == tx {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateSignal(_ context.Context, sig *database.Signal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig.ID = s.id("sig")
	cp := *sig
	s.signals[sig.ID] = &cp
	return true, nil
}

func (s *memStore) UpdateSignalScore(_ context.Context, id string, score int, reasoning string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[id].RiskScore = &score
	s.signals[id].RiskReasoning = &reasoning
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

func (s *memStore) ListWhales(_ context.Context, activeOnly bool) ([]database.Whale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Whale
	for _, w := range s.whales {
		if activeOnly && !w.IsActive {
			continue
		}
		out = append(out, *w)
	}
	return out, nil
}

func (s *memStore) ListActiveWhales(ctx context.Context) ([]database.Whale, error) {
	return s.ListWhales(ctx, true)
}

func (s *memStore) GetWhale(_ context.Context, address string) (*database.Whale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.whales[address]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *memStore) UpsertWhale(_ context.Context, w *database.Whale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.whales[w.Address] = &cp
	return nil
}

func (s *memStore) DeleteWhale(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.whales[address]; !ok {
		return database.ErrNotFound
	}
	delete(s.whales, address)
	return nil
}

func (s *memStore) CreateExecutedTrade(_ context.Context, t *database.ExecutedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.trades {
		if t.Status == database.TradeStatusFailed || other.Status == database.TradeStatusFailed {
			continue
		}
		if other.SignalID != nil && t.SignalID != nil && *other.SignalID == *t.SignalID {
			return database.ErrSignalAlreadyClaimed
		}
	}
	t.ID = s.id("trade")
	cp := *t
	s.trades = append(s.trades, &cp)
	return nil
}

func (s *memStore) CompleteExecutedTrade(_ context.Context, id string, res database.TradeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trades {
		if t.ID == id {
			t.Status = res.Status
			t.AmountOut = res.AmountOut
			t.EntryPrice = res.EntryPrice
			return nil
		}
	}
	return database.ErrNotFound
}

func (s *memStore) ListExecutedTrades(_ context.Context, userID string, limit int) ([]database.ExecutedTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.ExecutedTrade
	for _, t := range s.trades {
		if t.UserID == userID && len(out) < limit {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memStore) GetSubscription(_ context.Context, userID string) (*database.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *memStore) UpsertSubscription(_ context.Context, sub *database.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subs[sub.UserID] = &cp
	return nil
}

func (s *memStore) CreateTakeProfitOrder(_ context.Context, o *database.TakeProfitOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.id("tp")
	o.Version = 1
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *memStore) GetTakeProfitOrder(_ context.Context, id string) (*database.TakeProfitOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) ListTakeProfitOrders(_ context.Context, userID, status string) ([]database.TakeProfitOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.TakeProfitOrder
	for _, o := range s.orders {
		if o.UserID == userID && (status == "" || o.Status == status) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *memStore) TransitionTakeProfitOrder(_ context.Context, t database.OrderTransition) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[t.ID]
	if !ok || o.Version != t.ExpectedVersion || o.Status != t.From {
		return 0, database.ErrVersionConflict
	}
	o.Status = t.To
	o.Version++
	return o.Version, nil
}

type fixedScorer struct{ score int }

func (f fixedScorer) AnalyzeToken(context.Context, llm.TokenContext, string) llm.TokenAnalysis {
	return llm.TokenAnalysis{Score: f.score, Reasoning: "test verdict", RiskLevel: "LOW", Recommendation: "BUY"}
}

type fakeQuoter struct{ fail bool }

func (q fakeQuoter) GetQuote(_ context.Context, in, out string, amount uint64, slippage int) (*jupiter.Quote, error) {
	if q.fail {
		return nil, errors.New("no route")
	}
	return &jupiter.Quote{
		InputMint:   in,
		OutputMint:  out,
		InAmount:    fmt.Sprint(amount),
		OutAmount:   "42000000",
		SlippageBps: slippage,
	}, nil
}

type fakeSwaps struct {
	lastQuote *jupiter.Quote
	lastUser  string
}

func (f *fakeSwaps) BuildSwapTransaction(_ context.Context, q *jupiter.Quote, user string, _ jupiter.Fees) (*jupiter.SwapTransaction, error) {
	f.lastQuote = q
	f.lastUser = user
	return &jupiter.SwapTransaction{SwapTransaction: "AQID", LastValidBlockHeight: 99}, nil
}

type fakeMarket map[string]*market.TokenInfo

func (m fakeMarket) GetTokenInfo(_ context.Context, token string) (*market.TokenInfo, error) {
	return m[token], nil
}

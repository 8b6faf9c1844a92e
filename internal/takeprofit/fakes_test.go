package takeprofit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/market"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/wallet"
)

type memStore struct {
	mu     sync.Mutex
	orders map[string]*database.TakeProfitOrder
	nextID int
	// beforeTransition runs once before the next transition, to simulate a
	// concurrent writer
	beforeTransition func()
	listErr          error
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]*database.TakeProfitOrder)}
}

func (s *memStore) CreateTakeProfitOrder(_ context.Context, o *database.TakeProfitOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	o.ID = fmt.Sprintf("order-%d", s.nextID)
	o.Status = database.OrderStatusPending
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
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []database.TakeProfitOrder
	for i := 1; i <= s.nextID; i++ {
		o, ok := s.orders[fmt.Sprintf("order-%d", i)]
		if !ok {
			continue
		}
		if (userID == "" || o.UserID == userID) && (status == "" || o.Status == status) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *memStore) TransitionTakeProfitOrder(_ context.Context, t database.OrderTransition) (int, error) {
	if hook := s.beforeTransition; hook != nil {
		s.beforeTransition = nil
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[t.ID]
	if !ok || o.Version != t.ExpectedVersion || o.Status != t.From {
		return 0, database.ErrVersionConflict
	}
	o.Status = t.To
	o.Version++
	if t.TxHash != "" {
		tx := t.TxHash
		o.TxHash = &tx
	}
	if t.ErrorMessage != "" {
		msg := t.ErrorMessage
		o.ErrorMessage = &msg
	}
	return o.Version, nil
}

func (s *memStore) get(id string) database.TakeProfitOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

func (s *memStore) add(o database.TakeProfitOrder) string {
	s.CreateTakeProfitOrder(context.Background(), &o)
	return o.ID
}

type fakePrices map[string]float64

func (f fakePrices) GetTokenPriceData(_ context.Context, token string) (*market.TokenPriceData, error) {
	p, ok := f[token]
	if !ok {
		return nil, errors.New("no pairs")
	}
	return &market.TokenPriceData{Price: p}, nil
}

type fakeHoldings struct {
	balance solana.TokenBalance
	err     error
}

func (f *fakeHoldings) GetTokenBalance(context.Context, string, string) (solana.TokenBalance, error) {
	return f.balance, f.err
}

type fakeQuoter struct {
	lastAmount uint64
	lastIn     string
	lastOut    string
	fail       bool
}

func (f *fakeQuoter) GetQuote(_ context.Context, in, out string, amount uint64, _ int) (*jupiter.Quote, error) {
	f.lastIn, f.lastOut, f.lastAmount = in, out, amount
	if f.fail {
		return nil, jupiter.ErrNoRoute
	}
	return &jupiter.Quote{InputMint: in, OutputMint: out, InAmount: fmt.Sprint(amount), OutAmount: "1000"}, nil
}

type fakeSwapper struct {
	calls  int
	result jupiter.SwapResult
}

func (f *fakeSwapper) ExecuteSwap(context.Context, wallet.Wallet, *jupiter.Quote, uint64) jupiter.SwapResult {
	f.calls++
	return f.result
}

type stubWallet struct{ ready bool }

func (w stubWallet) PublicKey() string { return "OWNER" }
func (w stubWallet) Ready() bool       { return w.ready }
func (w stubWallet) SignTransaction(_ context.Context, tx []byte) ([]byte, error) {
	return tx, nil
}

func testOrder(token string, target float64) database.TakeProfitOrder {
	return database.TakeProfitOrder{
		UserID:         "user-1",
		WalletAddress:  "OWNER",
		TokenAddress:   token,
		EntryPrice:     target / 2,
		TargetPercent:  100,
		TargetPrice:    target,
		SellPercentage: 50,
	}
}

package copytrade

import (
	"context"
	"errors"
	"sync"
	"time"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/logging"
	"solana-copy-trader/internal/wallet"

	"github.com/rs/zerolog"
)

// SignalLister finds signals awaiting a scoring run
type SignalLister interface {
	ListSignals(ctx context.Context, f database.SignalFilter) ([]database.Signal, error)
	GetSubscription(ctx context.Context, userID string) (*database.Subscription, error)
}

// Gate can veto unattended executions, e.g. a circuit breaker
type Gate interface {
	CanTrade(solAmount float64) (bool, string)
	RecordExecution(success bool, solAmount float64)
}

// AutoCopierConfig configures the auto-copy loop
type AutoCopierConfig struct {
	Enabled      bool
	Interval     time.Duration
	UserID       string
	BatchSize    int
	MaxSignalAge time.Duration // zero copies signals of any age
	Defaults     Config
}

// AutoCopier processes open signals and executes the prepared trades with a
// local wallet. It is the unattended form of prepare + confirm. Each signal
// is processed at most once per run of the loop; a signal the gate blocks
// is left untouched and picked up again on a later tick.
type AutoCopier struct {
	lister       SignalLister
	orchestrator *Orchestrator
	executor     *Executor
	wallet       wallet.Wallet
	gate         Gate
	config       AutoCopierConfig
	logger       zerolog.Logger
	now          func() time.Time

	mu        sync.Mutex
	attempted map[string]struct{}

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAutoCopier creates an auto-copy loop
func NewAutoCopier(lister SignalLister, o *Orchestrator, e *Executor, w wallet.Wallet, cfg AutoCopierConfig, logger zerolog.Logger) *AutoCopier {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &AutoCopier{
		lister:       lister,
		orchestrator: o,
		executor:     e,
		wallet:       w,
		config:       cfg,
		logger:       logger.With().Str("component", "autocopy").Logger(),
		now:          time.Now,
		attempted:    make(map[string]struct{}),
		stopChan:     make(chan struct{}),
	}
}

// SetGate installs a gate consulted before every execution
func (a *AutoCopier) SetGate(g Gate) {
	a.gate = g
}

// Start begins the background loop
func (a *AutoCopier) Start() {
	if !a.config.Enabled {
		a.logger.Info().Msg("Auto-copy is disabled")
		return
	}

	a.wg.Add(1)
	go a.run()
	a.logger.Info().Dur("interval", a.config.Interval).Msg("Auto-copy started")
}

func (a *AutoCopier) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	a.tick()

	for {
		select {
		case <-ticker.C:
			a.tick()
		case <-a.stopChan:
			a.logger.Info().Msg("Auto-copy stopped")
			return
		}
	}
}

func (a *AutoCopier) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	a.Tick(ctx)
}

// openStatuses are listed each tick: NEW signals nobody scored yet and
// PENDING ones scored by the server but not executed.
var openStatuses = []string{database.SignalStatusNew, database.SignalStatusPending}

// Tick runs one pass over open signals and returns how many were executed
func (a *AutoCopier) Tick(ctx context.Context) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.gate != nil {
		if ok, reason := a.gate.CanTrade(0); !ok {
			a.logger.Warn().Str("reason", reason).Msg("Auto-copy halted")
			return 0
		}
	}

	signals, err := a.openSignals(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to list open signals")
		return 0
	}
	if len(signals) == 0 {
		return 0
	}

	cfg := a.config.Defaults
	sub, err := a.lister.GetSubscription(ctx, a.config.UserID)
	switch {
	case err == nil:
		if !sub.IsActive {
			a.logger.Debug().Str("user_id", a.config.UserID).Msg("Subscription inactive, skipping tick")
			return 0
		}
		cfg = ConfigFromSubscription(sub, a.config.Defaults)
	case !errors.Is(err, database.ErrNotFound):
		a.logger.Warn().Err(err).Msg("Failed to load subscription, using defaults")
	}

	executed := 0
	for i := range signals {
		if a.copySignal(ctx, &signals[i], cfg) {
			executed++
		}
	}
	return executed
}

// openSignals lists NEW and PENDING signals within the age limit and
// forgets attempts on signals that are no longer open.
func (a *AutoCopier) openSignals(ctx context.Context) ([]database.Signal, error) {
	var out []database.Signal
	open := make(map[string]struct{})
	for _, status := range openStatuses {
		signals, err := a.lister.ListSignals(ctx, database.SignalFilter{
			Status: status,
			Limit:  a.config.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		for _, sig := range signals {
			open[sig.ID] = struct{}{}
			if a.config.MaxSignalAge > 0 && a.now().Sub(sig.CreatedAt) > a.config.MaxSignalAge {
				continue
			}
			out = append(out, sig)
		}
	}

	for id := range a.attempted {
		if _, ok := open[id]; !ok {
			delete(a.attempted, id)
		}
	}
	return out, nil
}

func (a *AutoCopier) copySignal(ctx context.Context, sig *database.Signal, cfg Config) bool {
	if _, done := a.attempted[sig.ID]; done {
		return false
	}
	log := logging.SignalContext(a.logger, sig.ID, sig.TokenAddress)

	size := PositionSize(sig, cfg)
	if a.gate != nil && sig.Direction == database.DirectionBuy {
		if ok, reason := a.gate.CanTrade(size); !ok {
			log.Warn().Str("reason", reason).Float64("sol", size).Msg("Execution blocked, signal kept for a later tick")
			return false
		}
	}

	// Failures past this point are not retried automatically
	a.attempted[sig.ID] = struct{}{}

	res, err := a.orchestrator.ProcessSignal(ctx, sig.ID, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Signal processing failed")
		return false
	}
	if res.Skipped || res.Prepared == nil {
		log.Debug().Str("reason", res.Reason).Msg("Signal skipped")
		return false
	}

	result, err := a.executor.ConfirmExecution(ctx, res.Prepared, a.config.UserID, a.wallet)
	if err != nil {
		log.Warn().Err(err).Msg("Execution not started")
		return false
	}
	if a.gate != nil {
		a.gate.RecordExecution(result.Success, res.Prepared.SolAmount)
	}
	if !result.Success {
		log.Warn().Str("error", result.Error).Msg("Copy trade failed")
		return false
	}
	log.Info().Str("tx", result.TxHash).Uint64("amount_out", result.AmountOut).Msg("Copy trade executed")
	return true
}

// Stop ends the loop after any in-flight tick completes
func (a *AutoCopier) Stop() {
	if !a.config.Enabled {
		return
	}
	close(a.stopChan)
	a.wg.Wait()
}

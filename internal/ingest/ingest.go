// Package ingest turns wallet-activity webhooks into signals.
package ingest

import (
	"context"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"
	"solana-copy-trader/internal/metrics"

	"github.com/rs/zerolog"
)

// Store is the persistence the ingestion handler needs
type Store interface {
	ListActiveWhales(ctx context.Context) ([]database.Whale, error)
	SignalExistsByTxHash(ctx context.Context, txHash string) (bool, error)
	CreateSignal(ctx context.Context, s *database.Signal) (bool, error)
}

// IngestResult reports the signals created from one batch
type IngestResult struct {
	Processed int      `json:"processed"`
	SignalIDs []string `json:"signalIds"`
}

// Handler filters, dedupes and stores webhook events
type Handler struct {
	store  Store
	bus    *events.EventBus
	logger zerolog.Logger
}

// NewHandler creates an ingestion handler. bus may be nil.
func NewHandler(store Store, bus *events.EventBus, logger zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		bus:    bus,
		logger: logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest stores one signal per new swap by an active whale. A failure on
// one event is logged and does not affect the rest of the batch.
func (h *Handler) Ingest(ctx context.Context, evs []WebhookEvent) (IngestResult, error) {
	result := IngestResult{SignalIDs: []string{}}
	if len(evs) == 0 {
		return result, nil
	}

	whales, err := h.store.ListActiveWhales(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load tracked whales")
		return result, err
	}
	tracked := make(map[string]database.Whale, len(whales))
	for _, w := range whales {
		tracked[w.Address] = w
	}

	seen := make(map[string]bool, len(evs))
	for i := range evs {
		id, outcome := h.ingestOne(ctx, &evs[i], tracked, seen)
		metrics.RecordWebhookEvent(outcome)
		if id != "" {
			result.SignalIDs = append(result.SignalIDs, id)
		}
	}
	result.Processed = len(result.SignalIDs)

	h.logger.Info().
		Int("events", len(evs)).
		Int("signals", result.Processed).
		Msg("Webhook batch ingested")
	return result, nil
}

func (h *Handler) ingestOne(ctx context.Context, ev *WebhookEvent, tracked map[string]database.Whale, seen map[string]bool) (string, string) {
	if ev.Type != EventTypeSwap || ev.Signature == "" {
		return "", "ignored"
	}

	whale, ok := matchWhale(ev, tracked)
	if !ok {
		return "", "ignored"
	}

	if seen[ev.Signature] {
		return "", "duplicate"
	}
	seen[ev.Signature] = true

	log := h.logger.With().Str("tx", ev.Signature).Str("wallet", whale.Address).Logger()

	exists, err := h.store.SignalExistsByTxHash(ctx, ev.Signature)
	if err != nil {
		log.Error().Err(err).Msg("Failed to check for existing signal")
		return "", "error"
	}
	if exists {
		log.Debug().Msg("Signal already stored")
		return "", "duplicate"
	}

	t, ok := ev.normalize(whale.Address)
	if !ok {
		log.Debug().Msg("Swap is not a SOL trade, dropped")
		return "", "ignored"
	}

	sig := &database.Signal{
		WalletAddress: whale.Address,
		TokenAddress:  t.token,
		Direction:     t.direction,
		SolAmount:     t.solAmount,
		TokenAmount:   t.tokenAmount,
		Status:        database.SignalStatusNew,
		TxHash:        ev.Signature,
	}
	if whale.Label != "" {
		label := whale.Label
		sig.WhaleLabel = &label
	}

	created, err := h.store.CreateSignal(ctx, sig)
	if err != nil {
		log.Error().Err(err).Msg("Failed to store signal")
		return "", "error"
	}
	if !created {
		return "", "duplicate"
	}

	log.Info().
		Str("signal_id", sig.ID).
		Str("token", sig.TokenAddress).
		Str("direction", sig.Direction).
		Float64("sol", sig.SolAmount).
		Msg("Signal created")

	if h.bus != nil {
		h.bus.PublishSignalCreated(sig.ID, sig.WalletAddress, sig.TokenAddress, sig.Direction, sig.SolAmount)
	}
	return sig.ID, "created"
}

func matchWhale(ev *WebhookEvent, tracked map[string]database.Whale) (database.Whale, bool) {
	for _, addr := range ev.participants() {
		if addr == "" {
			continue
		}
		if w, ok := tracked[addr]; ok {
			return w, true
		}
	}
	return database.Whale{}, false
}

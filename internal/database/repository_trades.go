package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
// EXECUTED TRADES
// ============================================================================

// CreateExecutedTrade inserts a trade row. For a signal-bound trade in
// PENDING or SUCCESS status the insert is the claim on the signal: a second
// live claim fails with ErrSignalAlreadyClaimed.
func (r *Repository) CreateExecutedTrade(ctx context.Context, t *ExecutedTrade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TradeStatusPending
	}

	query := `
		INSERT INTO executed_trades (id, user_id, signal_id, token_address, amount_in,
			amount_out, entry_price, status, tx_hash, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		t.ID, t.UserID, t.SignalID, t.TokenAddress, t.AmountIn,
		t.AmountOut, t.EntryPrice, t.Status, t.TxHash, t.ErrorMessage,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSignalAlreadyClaimed
		}
		return fmt.Errorf("failed to insert executed trade: %w", err)
	}
	return nil
}

// CompleteExecutedTrade moves a PENDING trade to its final status
func (r *Repository) CompleteExecutedTrade(ctx context.Context, id string, res TradeResult) error {
	query := `
		UPDATE executed_trades
		SET status = $2, tx_hash = COALESCE($3, tx_hash), amount_out = COALESCE($4, amount_out),
			entry_price = COALESCE($5, entry_price), error_message = $6
		WHERE id = $1 AND status = 'PENDING'
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		id, res.Status, nullString(res.TxHash), res.AmountOut, res.EntryPrice, nullString(res.ErrorMessage),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSignalAlreadyClaimed
		}
		return fmt.Errorf("failed to complete executed trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetExecutedTrade returns a trade by ID
func (r *Repository) GetExecutedTrade(ctx context.Context, id string) (*ExecutedTrade, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var t ExecutedTrade
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, signal_id, token_address, amount_in, amount_out, entry_price,
			status, tx_hash, error_message, created_at, updated_at
		FROM executed_trades WHERE id = $1`, id,
	).Scan(&t.ID, &t.UserID, &t.SignalID, &t.TokenAddress, &t.AmountIn, &t.AmountOut, &t.EntryPrice,
		&t.Status, &t.TxHash, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ListExecutedTrades returns a user's trades newest first
func (r *Repository) ListExecutedTrades(ctx context.Context, userID string, limit int) ([]ExecutedTrade, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, signal_id, token_address, amount_in, amount_out, entry_price,
			status, tx_hash, error_message, created_at, updated_at
		FROM executed_trades WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executed trades: %w", err)
	}
	defer rows.Close()

	var trades []ExecutedTrade
	for rows.Next() {
		var t ExecutedTrade
		if err := rows.Scan(&t.ID, &t.UserID, &t.SignalID, &t.TokenAddress, &t.AmountIn, &t.AmountOut,
			&t.EntryPrice, &t.Status, &t.TxHash, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan executed trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ============================================================================
// SUBSCRIPTIONS
// ============================================================================

// GetSubscription returns the user's copy-trade settings
func (r *Repository) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	var s Subscription
	err := r.db.Pool.QueryRow(ctx, `
		SELECT user_id, max_sol_per_trade, score_threshold, slippage_bps, use_mev_protection,
			is_active, created_at, updated_at
		FROM subscriptions WHERE user_id = $1`, userID,
	).Scan(&s.UserID, &s.MaxSolPerTrade, &s.ScoreThreshold, &s.SlippageBps, &s.UseMevProtection,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// UpsertSubscription creates or replaces the user's copy-trade settings
func (r *Repository) UpsertSubscription(ctx context.Context, s *Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, max_sol_per_trade, score_threshold, slippage_bps,
			use_mev_protection, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			max_sol_per_trade = EXCLUDED.max_sol_per_trade,
			score_threshold = EXCLUDED.score_threshold,
			slippage_bps = EXCLUDED.slippage_bps,
			use_mev_protection = EXCLUDED.use_mev_protection,
			is_active = EXCLUDED.is_active
		RETURNING created_at, updated_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		s.UserID, s.MaxSolPerTrade, s.ScoreThreshold, s.SlippageBps, s.UseMevProtection, s.IsActive,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

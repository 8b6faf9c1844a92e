package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const signalColumns = `id, wallet_address, whale_label, token_address, token_symbol, direction,
	sol_amount, token_amount, risk_score, risk_reasoning, status, tx_hash, created_at, updated_at`

func scanSignal(row pgx.Row) (*Signal, error) {
	var s Signal
	err := row.Scan(
		&s.ID, &s.WalletAddress, &s.WhaleLabel, &s.TokenAddress, &s.TokenSymbol, &s.Direction,
		&s.SolAmount, &s.TokenAmount, &s.RiskScore, &s.RiskReasoning, &s.Status, &s.TxHash,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSignal inserts a signal unless its tx hash is already stored.
// Returns false with no error for a duplicate.
func (r *Repository) CreateSignal(ctx context.Context, s *Signal) (bool, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = SignalStatusNew
	}

	query := `
		INSERT INTO signals (id, wallet_address, whale_label, token_address, token_symbol,
			direction, sol_amount, token_amount, status, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tx_hash) DO NOTHING
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		s.ID, s.WalletAddress, s.WhaleLabel, s.TokenAddress, s.TokenSymbol,
		s.Direction, s.SolAmount, s.TokenAmount, s.Status, s.TxHash,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert signal: %w", err)
	}
	return true, nil
}

// SignalExistsByTxHash reports whether a signal with the hash is stored
func (r *Repository) SignalExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM signals WHERE tx_hash = $1)`, txHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check signal: %w", err)
	}
	return exists, nil
}

// GetSignal returns a signal by ID
func (r *Repository) GetSignal(ctx context.Context, id string) (*Signal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	s, err := scanSignal(r.db.Pool.QueryRow(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// UpdateSignalScore records the risk evaluation on a signal
func (r *Repository) UpdateSignalScore(ctx context.Context, id string, score int, reasoning string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE signals SET risk_score = $2, risk_reasoning = $3 WHERE id = $1`,
		id, score, reasoning,
	)
	if err != nil {
		return fmt.Errorf("failed to update signal score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSignalTokenSymbol fills the symbol once market data resolves it
func (r *Repository) UpdateSignalTokenSymbol(ctx context.Context, id, symbol string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE signals SET token_symbol = $2 WHERE id = $1 AND token_symbol IS NULL`, id, symbol)
	return err
}

// TransitionSignalStatus sets status to `to` only when the current status is
// one of `from`. Returns false when no row matched.
func (r *Repository) TransitionSignalStatus(ctx context.Context, id string, from []string, to string) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition requires at least one source status")
	}
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE signals SET status = $2 WHERE id = $1 AND status = ANY($3)`,
		id, to, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update signal status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListSignals returns signals newest first
func (r *Repository) ListSignals(ctx context.Context, f SignalFilter) ([]Signal, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.WalletAddress != "" {
		args = append(args, f.WalletAddress)
		where = append(where, fmt.Sprintf("wallet_address = $%d", len(args)))
	}

	query := `SELECT ` + signalColumns + ` FROM signals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, *s)
	}
	return signals, rows.Err()
}

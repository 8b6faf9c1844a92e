package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const takeProfitColumns = `id, user_id, wallet_address, token_address, token_symbol, entry_price,
	target_percent, target_price, sell_percentage, status, version, tx_hash, error_message,
	triggered_at, created_at, updated_at`

func scanTakeProfitOrder(row pgx.Row) (*TakeProfitOrder, error) {
	var o TakeProfitOrder
	err := row.Scan(&o.ID, &o.UserID, &o.WalletAddress, &o.TokenAddress, &o.TokenSymbol, &o.EntryPrice,
		&o.TargetPercent, &o.TargetPrice, &o.SellPercentage, &o.Status, &o.Version, &o.TxHash,
		&o.ErrorMessage, &o.TriggeredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateTakeProfitOrder inserts a pending order at version 1
func (r *Repository) CreateTakeProfitOrder(ctx context.Context, o *TakeProfitOrder) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Status = OrderStatusPending
	o.Version = 1

	query := `
		INSERT INTO take_profit_orders (id, user_id, wallet_address, token_address, token_symbol,
			entry_price, target_percent, target_price, sell_percentage, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		o.ID, o.UserID, o.WalletAddress, o.TokenAddress, o.TokenSymbol,
		o.EntryPrice, o.TargetPercent, o.TargetPrice, o.SellPercentage, o.Status, o.Version,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert take-profit order: %w", err)
	}
	return nil
}

// GetTakeProfitOrder returns an order by ID
func (r *Repository) GetTakeProfitOrder(ctx context.Context, id string) (*TakeProfitOrder, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	o, err := scanTakeProfitOrder(r.db.Pool.QueryRow(ctx,
		`SELECT `+takeProfitColumns+` FROM take_profit_orders WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

// ListTakeProfitOrders returns orders filtered by user and/or status, in
// creation order. Empty filters match everything.
func (r *Repository) ListTakeProfitOrders(ctx context.Context, userID, status string) ([]TakeProfitOrder, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+takeProfitColumns+` FROM take_profit_orders
		WHERE ($1::text = '' OR user_id = $1::text) AND ($2::text = '' OR status = $2::text)
		ORDER BY created_at`, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query take-profit orders: %w", err)
	}
	defer rows.Close()

	var orders []TakeProfitOrder
	for rows.Next() {
		o, err := scanTakeProfitOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan take-profit order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// TransitionTakeProfitOrder applies a compare-and-swap status change. The
// row must still be at ExpectedVersion and in From status; otherwise
// ErrVersionConflict is returned and nothing changes. Returns the new version.
func (r *Repository) TransitionTakeProfitOrder(ctx context.Context, t OrderTransition) (int, error) {
	query := `
		UPDATE take_profit_orders
		SET status = $4, version = version + 1,
			tx_hash = COALESCE($5, tx_hash),
			error_message = COALESCE($6, error_message),
			triggered_at = CASE WHEN $7 THEN NOW() ELSE triggered_at END
		WHERE id = $1 AND version = $2 AND status = $3
		RETURNING version
	`
	var version int
	err := r.db.Pool.QueryRow(ctx, query,
		t.ID, t.ExpectedVersion, t.From, t.To, nullString(t.TxHash), nullString(t.ErrorMessage),
		t.To == OrderStatusTriggered,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVersionConflict
		}
		return 0, fmt.Errorf("failed to update take-profit order: %w", err)
	}
	return version, nil
}

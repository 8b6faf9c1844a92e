package database

import (
	"context"
	"fmt"
)

// ListWhales returns every tracked wallet; activeOnly filters to active ones
func (r *Repository) ListWhales(ctx context.Context, activeOnly bool) ([]Whale, error) {
	query := `SELECT address, label, is_active, created_at, updated_at FROM whales`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query whales: %w", err)
	}
	defer rows.Close()

	var whales []Whale
	for rows.Next() {
		var w Whale
		if err := rows.Scan(&w.Address, &w.Label, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan whale: %w", err)
		}
		whales = append(whales, w)
	}
	return whales, rows.Err()
}

// ListActiveWhales returns wallets currently generating signals
func (r *Repository) ListActiveWhales(ctx context.Context) ([]Whale, error) {
	return r.ListWhales(ctx, true)
}

// GetWhale returns a whale by address
func (r *Repository) GetWhale(ctx context.Context, address string) (*Whale, error) {
	var w Whale
	err := r.db.Pool.QueryRow(ctx,
		`SELECT address, label, is_active, created_at, updated_at FROM whales WHERE address = $1`, address,
	).Scan(&w.Address, &w.Label, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// UpsertWhale creates or updates a tracked wallet
func (r *Repository) UpsertWhale(ctx context.Context, w *Whale) error {
	query := `
		INSERT INTO whales (address, label, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET label = EXCLUDED.label, is_active = EXCLUDED.is_active
		RETURNING created_at, updated_at
	`
	if err := r.db.Pool.QueryRow(ctx, query, w.Address, w.Label, w.IsActive).Scan(&w.CreatedAt, &w.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert whale: %w", err)
	}
	return nil
}

// DeleteWhale removes a tracked wallet. Existing signals are kept.
func (r *Repository) DeleteWhale(ctx context.Context, address string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM whales WHERE address = $1`, address)
	if err != nil {
		return fmt.Errorf("failed to delete whale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN builds the libpq connection string
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, cfg Config, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Msg("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// RunMigrations creates the schema. Every statement is idempotent.
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("Running database migrations...")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS whales (
			address VARCHAR(64) PRIMARY KEY,
			label VARCHAR(100) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_whales_active ON whales(is_active)`,

		`CREATE TABLE IF NOT EXISTS signals (
			id UUID PRIMARY KEY,
			wallet_address VARCHAR(64) NOT NULL,
			whale_label VARCHAR(100),
			token_address VARCHAR(64) NOT NULL,
			token_symbol VARCHAR(32),
			direction VARCHAR(4) NOT NULL CHECK (direction IN ('BUY', 'SELL')),
			sol_amount DECIMAL(30, 9) NOT NULL DEFAULT 0,
			token_amount DECIMAL(40, 12) NOT NULL DEFAULT 0,
			risk_score INTEGER CHECK (risk_score BETWEEN 0 AND 100),
			risk_reasoning TEXT,
			status VARCHAR(10) NOT NULL DEFAULT 'NEW',
			tx_hash VARCHAR(128) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_wallet ON signals(wallet_address)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_created ON signals(created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS executed_trades (
			id UUID PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			signal_id UUID REFERENCES signals(id) ON DELETE SET NULL,
			token_address VARCHAR(64) NOT NULL,
			amount_in DECIMAL(30, 9) NOT NULL,
			amount_out DECIMAL(40, 12),
			entry_price DECIMAL(30, 12),
			status VARCHAR(10) NOT NULL DEFAULT 'PENDING',
			tx_hash VARCHAR(128),
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executed_trades_user ON executed_trades(user_id, created_at DESC)`,
		// One live claim per signal: a PENDING or SUCCESS row blocks any other
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_executed_trades_signal_claim
			ON executed_trades(signal_id) WHERE status IN ('PENDING', 'SUCCESS') AND signal_id IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS subscriptions (
			user_id VARCHAR(64) PRIMARY KEY,
			max_sol_per_trade DECIMAL(30, 9) NOT NULL DEFAULT 0.1,
			score_threshold INTEGER NOT NULL DEFAULT 80,
			slippage_bps INTEGER NOT NULL DEFAULT 100,
			use_mev_protection BOOLEAN NOT NULL DEFAULT TRUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS take_profit_orders (
			id UUID PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			wallet_address VARCHAR(64) NOT NULL,
			token_address VARCHAR(64) NOT NULL,
			token_symbol VARCHAR(32) NOT NULL DEFAULT '',
			entry_price DECIMAL(30, 12) NOT NULL,
			target_percent DECIMAL(10, 4) NOT NULL,
			target_price DECIMAL(30, 12) NOT NULL,
			sell_percentage DECIMAL(7, 4) NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			version INTEGER NOT NULL DEFAULT 1,
			tx_hash VARCHAR(128),
			error_message TEXT,
			triggered_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_take_profit_status ON take_profit_orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_take_profit_user ON take_profit_orders(user_id)`,

		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = NOW();
			RETURN NEW;
		END;
		$$ language 'plpgsql'`,
	}

	for _, table := range []string{"whales", "signals", "executed_trades", "subscriptions", "take_profit_orders"} {
		migrations = append(migrations,
			fmt.Sprintf(`DROP TRIGGER IF EXISTS update_%s_updated_at ON %s`, table, table),
			fmt.Sprintf(`CREATE TRIGGER update_%s_updated_at BEFORE UPDATE ON %s
			FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`, table, table),
		)
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	db.logger.Info().Int("statements", len(migrations)).Msg("Database migrations completed")
	return nil
}

// HealthCheck verifies the database connection
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

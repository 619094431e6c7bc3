// Package database persists backtest runs and their trades in PostgreSQL.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds the database connection settings.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"` // Default: localhost
	Port     int    `json:"port"` // Default: 5432
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"` // Default: disable
}

// DefaultConfig returns a disabled local-PostgreSQL configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Database: "coinone_bot",
		SSLMode:  "disable",
	}
}

// NewDB opens a connection pool and verifies connectivity.
func NewDB(cfg *Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "Database").Logger()
	log.Info().Str("database", cfg.Database).Msg("PostgreSQL connected")

	return &DB{Pool: pool, logger: log}, nil
}

// Close releases the connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// RunMigrations creates the schema if it does not exist yet.
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id SERIAL PRIMARY KEY,
			quote_currency VARCHAR(10) NOT NULL,
			target_currency VARCHAR(10) NOT NULL,
			interval VARCHAR(8) NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			initial_capital DECIMAL(20, 8) NOT NULL,
			final_capital DECIMAL(20, 8) NOT NULL,
			total_pnl DECIMAL(20, 8) NOT NULL,
			total_fees DECIMAL(20, 8) NOT NULL,
			total_trades INTEGER NOT NULL,
			winning_trades INTEGER NOT NULL,
			losing_trades INTEGER NOT NULL,
			win_rate DECIMAL(10, 4) NOT NULL,
			profit_factor DECIMAL(20, 8) NOT NULL,
			max_drawdown DECIMAL(10, 4) NOT NULL,
			skipped_steps INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_runs_pair
			ON backtest_runs(quote_currency, target_currency)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_runs_created_at
			ON backtest_runs(created_at)`,

		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id SERIAL PRIMARY KEY,
			run_id INTEGER NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
			trade_id VARCHAR(36) NOT NULL,
			entry_time TIMESTAMPTZ NOT NULL,
			exit_time TIMESTAMPTZ NOT NULL,
			side VARCHAR(5) NOT NULL,
			strategy VARCHAR(40) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			size DECIMAL(20, 8) NOT NULL,
			pnl DECIMAL(20, 8) NOT NULL,
			pnl_percent DECIMAL(10, 4) NOT NULL,
			fees DECIMAL(20, 8) NOT NULL,
			reasoning TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_trades_run_id
			ON backtest_trades(run_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	db.logger.Info().Msg("Database migrations complete")
	return nil
}

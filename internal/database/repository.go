package database

import (
	"context"
	"fmt"
	"time"

	"coinone-trading-bot/internal/backtest"
	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/position"
)

func sideFromString(s string) position.Side {
	if s == string(position.SideShort) {
		return position.SideShort
	}
	return position.SideLong
}

// Repository provides data access for backtest runs.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over the given connection pool.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// BacktestRun is one stored run with its summary metrics.
type BacktestRun struct {
	ID             int64     `json:"id"`
	QuoteCurrency  string    `json:"quote_currency"`
	TargetCurrency string    `json:"target_currency"`
	Interval       string    `json:"interval"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	TotalPnL       float64   `json:"total_pnl"`
	TotalFees      float64   `json:"total_fees"`
	TotalTrades    int       `json:"total_trades"`
	WinningTrades  int       `json:"winning_trades"`
	LosingTrades   int       `json:"losing_trades"`
	WinRate        float64   `json:"win_rate"`
	ProfitFactor   float64   `json:"profit_factor"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	SkippedSteps   int       `json:"skipped_steps"`
	CreatedAt      time.Time `json:"created_at"`
}

// SaveRun stores a backtest result and its trades in one transaction and
// returns the run id.
func (r *Repository) SaveRun(ctx context.Context, quote, target string, interval coinone.Interval, start, end time.Time, result *backtest.Result) (int64, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var runID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO backtest_runs (
			quote_currency, target_currency, interval, start_time, end_time,
			initial_capital, final_capital, total_pnl, total_fees,
			total_trades, winning_trades, losing_trades,
			win_rate, profit_factor, max_drawdown, skipped_steps
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`,
		quote, target, string(interval), start, end,
		result.InitialCapital, result.FinalCapital, result.TotalPnL, result.TotalFees,
		result.TotalTrades, result.WinningTrades, result.LosingTrades,
		result.WinRate, result.ProfitFactor, result.MaxDrawdown, result.SkippedSteps,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert backtest run: %w", err)
	}

	for _, trade := range result.Trades {
		_, err = tx.Exec(ctx, `
			INSERT INTO backtest_trades (
				run_id, trade_id, entry_time, exit_time, side, strategy,
				entry_price, exit_price, size, pnl, pnl_percent, fees, reasoning
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`,
			runID, trade.ID, trade.EntryTime, trade.ExitTime,
			string(trade.Side), trade.Strategy,
			trade.EntryPrice, trade.ExitPrice, trade.Size,
			trade.PnL, trade.PnLPercent, trade.Fees, trade.Reasoning,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert backtest trade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return runID, nil
}

// GetRuns returns the most recent runs for a market pair.
func (r *Repository) GetRuns(ctx context.Context, quote, target string, limit int) ([]BacktestRun, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, quote_currency, target_currency, interval, start_time, end_time,
			   initial_capital, final_capital, total_pnl, total_fees,
			   total_trades, winning_trades, losing_trades,
			   win_rate, profit_factor, max_drawdown, skipped_steps, created_at
		FROM backtest_runs
		WHERE quote_currency = $1 AND target_currency = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, quote, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs: %w", err)
	}
	defer rows.Close()

	runs := []BacktestRun{}
	for rows.Next() {
		var run BacktestRun
		err := rows.Scan(
			&run.ID, &run.QuoteCurrency, &run.TargetCurrency, &run.Interval,
			&run.StartTime, &run.EndTime,
			&run.InitialCapital, &run.FinalCapital, &run.TotalPnL, &run.TotalFees,
			&run.TotalTrades, &run.WinningTrades, &run.LosingTrades,
			&run.WinRate, &run.ProfitFactor, &run.MaxDrawdown, &run.SkippedSteps,
			&run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest runs: %w", err)
	}
	return runs, nil
}

// GetRunTrades returns the trades of one stored run in entry order.
func (r *Repository) GetRunTrades(ctx context.Context, runID int64) ([]backtest.Trade, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT trade_id, entry_time, exit_time, side, strategy,
			   entry_price, exit_price, size, pnl, pnl_percent, fees, reasoning
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY entry_time ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest trades: %w", err)
	}
	defer rows.Close()

	trades := []backtest.Trade{}
	for rows.Next() {
		var trade backtest.Trade
		var side string
		err := rows.Scan(
			&trade.ID, &trade.EntryTime, &trade.ExitTime, &side, &trade.Strategy,
			&trade.EntryPrice, &trade.ExitPrice, &trade.Size,
			&trade.PnL, &trade.PnLPercent, &trade.Fees, &trade.Reasoning,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest trade: %w", err)
		}
		trade.Side = sideFromString(side)
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest trades: %w", err)
	}
	return trades, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/wangchao9206/ai-quant/internal/domain"
)

// Compile-time interface check.
var _ ResultSink = (*SQLiteStore)(nil)

// SQLiteStore implements ResultSink backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at   TEXT    NOT NULL,
	symbol       TEXT    NOT NULL,
	parameters   TEXT    NOT NULL, -- JSON
	initial_cash REAL    NOT NULL,
	final_value  REAL    NOT NULL,
	net_profit   REAL    NOT NULL,
	sharpe_ratio REAL    NOT NULL,
	max_drawdown REAL    NOT NULL,
	total_trades INTEGER NOT NULL,
	won_trades   INTEGER NOT NULL,
	lost_trades  INTEGER NOT NULL,
	win_rate_pct REAL    NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_trades (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       INTEGER NOT NULL REFERENCES backtest_runs(id),
	entry_time   TEXT    NOT NULL,
	exit_time    TEXT    NOT NULL,
	direction    TEXT    NOT NULL,
	size         INTEGER NOT NULL,
	entry_price  REAL    NOT NULL,
	exit_price   REAL    NOT NULL,
	gross_pnl    REAL    NOT NULL,
	net_pnl      REAL    NOT NULL,
	commission   REAL    NOT NULL,
	return_rate  REAL    NOT NULL,
	bars_held    INTEGER NOT NULL,
	entry_reason TEXT    NOT NULL,
	exit_reason  TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS optimization_runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at      TEXT    NOT NULL,
	symbol          TEXT    NOT NULL,
	best_parameters TEXT    NOT NULL, -- JSON
	best_return_pct REAL,             -- NULL when every trial failed
	trials          INTEGER NOT NULL,
	failed_trials   INTEGER NOT NULL
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveBacktest records one finished run and its trades in a single
// transaction and returns the run id.
func (s *SQLiteStore) SaveBacktest(ctx context.Context, res *domain.BacktestResult) (int64, error) {
	params, err := json.Marshal(res.Parameters)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	m := res.Metrics
	r, err := tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			created_at, symbol, parameters, initial_cash, final_value,
			net_profit, sharpe_ratio, max_drawdown, total_trades,
			won_trades, lost_trades, win_rate_pct
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), res.Symbol, string(params),
		m.InitialCash, m.FinalValue, m.NetProfit, m.SharpeRatio,
		m.MaxDrawdownPct, m.TotalTrades, m.WonTrades, m.LostTrades, m.WinRatePct,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, t := range res.Trades {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO backtest_trades (
				run_id, entry_time, exit_time, direction, size,
				entry_price, exit_price, gross_pnl, net_pnl, commission,
				return_rate, bars_held, entry_reason, exit_reason
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339), t.Direction, t.Size,
			t.EntryPrice, t.ExitPrice, t.GrossPnL, t.NetPnL, t.Commission,
			t.ReturnRate, t.BarsHeld, t.EntryReason, t.ExitReason,
		); err != nil {
			return 0, fmt.Errorf("inserting trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// SaveOptimization records a finished parameter search and returns the row
// id. The best return is stored as NULL when no trial succeeded.
func (s *SQLiteStore) SaveOptimization(ctx context.Context, symbol string, res *domain.OptimizationResult) (int64, error) {
	params, err := json.Marshal(res.BestParameters)
	if err != nil {
		return 0, err
	}

	var bestReturn sql.NullFloat64
	var failed int
	for _, tr := range res.Trials {
		if tr.Failed {
			failed++
			continue
		}
		if math.IsInf(tr.ReturnRate, 0) || math.IsNaN(tr.ReturnRate) {
			continue
		}
		if !bestReturn.Valid || tr.ReturnRate > bestReturn.Float64 {
			bestReturn = sql.NullFloat64{Float64: tr.ReturnRate, Valid: true}
		}
	}

	r, err := s.db.ExecContext(ctx, `
		INSERT INTO optimization_runs (
			created_at, symbol, best_parameters, best_return_pct, trials, failed_trials
		) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), symbol, string(params),
		bestReturn, len(res.Trials), failed,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting optimization run: %w", err)
	}
	return r.LastInsertId()
}

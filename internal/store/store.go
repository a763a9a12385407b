// Package store persists market data and backtest output. Bar data lives in
// Parquet files on disk, keyed by period and symbol; completed backtest and
// optimization runs go to SQLite.
package store

import (
	"context"
	"time"

	"github.com/wangchao9206/ai-quant/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data for one period granularity
// at a time ("daily", "60", "30", "15", "5").
type BarStore interface {
	// WriteBars persists a batch of bars under the given period.
	WriteBars(ctx context.Context, period string, bars []domain.Bar) error

	// ReadBars returns bars for the symbol and period within [start, end],
	// sorted by timestamp.
	ReadBars(ctx context.Context, symbol, period string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols stored under the period.
	ListSymbols(ctx context.Context, period string) ([]string, error)
}

// ResultSink records completed runs for later inspection.
type ResultSink interface {
	// SaveBacktest records one finished backtest run and its trades.
	SaveBacktest(ctx context.Context, res *domain.BacktestResult) (int64, error)

	// SaveOptimization records a finished parameter search.
	SaveOptimization(ctx context.Context, symbol string, res *domain.OptimizationResult) (int64, error)
}

// Package provider supplies historical bar data to the backtest engine,
// either straight from the Alpaca market-data API or from the local Parquet
// store.
package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/store"
)

// MarketDataProvider returns bars for a symbol, period, and time range,
// sorted by timestamp.
type MarketDataProvider interface {
	GetBars(ctx context.Context, symbol, period string, start, end time.Time) ([]domain.Bar, error)
}

// Periods supported by the data layer: daily bars plus intraday minutes.
var supportedPeriods = map[string]bool{
	"daily": true,
	"60":    true,
	"30":    true,
	"15":    true,
	"5":     true,
}

// ValidPeriod reports whether the period identifier is supported.
func ValidPeriod(period string) bool { return supportedPeriods[period] }

// timeFrameFor maps a period identifier to an Alpaca bar timeframe.
func timeFrameFor(period string) (marketdata.TimeFrame, error) {
	if period == "daily" {
		return marketdata.OneDay, nil
	}
	minutes, err := strconv.Atoi(period)
	if err != nil || !supportedPeriods[period] {
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported period %q", period)
	}
	return marketdata.NewTimeFrame(minutes, marketdata.Min), nil
}

// ---------------------------------------------------------------------------
// Store-backed provider
// ---------------------------------------------------------------------------

// Compile-time interface check.
var _ MarketDataProvider = (*StoreProvider)(nil)

// StoreProvider serves bars from the local Parquet store. It never reaches
// the network, so backtests over already-gathered data stay reproducible
// offline.
type StoreProvider struct {
	store store.BarStore
}

// NewStoreProvider creates a provider reading from the given bar store.
func NewStoreProvider(s store.BarStore) *StoreProvider {
	return &StoreProvider{store: s}
}

// GetBars reads bars from the store.
func (p *StoreProvider) GetBars(ctx context.Context, symbol, period string, start, end time.Time) ([]domain.Bar, error) {
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("unsupported period %q", period)
	}
	return p.store.ReadBars(ctx, symbol, period, start, end)
}

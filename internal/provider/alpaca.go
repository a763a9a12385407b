package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/util"
)

// Compile-time interface check.
var _ MarketDataProvider = (*AlpacaProvider)(nil)

// AlpacaProvider fetches bars from the Alpaca market-data API. Requests are
// rate limited and retried with backoff.
type AlpacaProvider struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
	feed    marketdata.Feed
	log     *slog.Logger
}

// NewAlpacaProvider creates an AlpacaProvider with the given credentials.
// ratePerMin caps outgoing API calls; dataURL overrides the default
// market-data endpoint when non-empty.
func NewAlpacaProvider(apiKey, apiSecret, dataURL string, ratePerMin int) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &AlpacaProvider{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(ratePerMin),
		feed:    marketdata.SIP,
		log:     slog.Default().With("provider", "alpaca"),
	}
}

// GetBars fetches bars for one symbol from the Alpaca API.
func (p *AlpacaProvider) GetBars(ctx context.Context, symbol, period string, start, end time.Time) ([]domain.Bar, error) {
	tf, err := timeFrameFor(period)
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var raw []marketdata.Bar
	err = util.Retry(ctx, 3, time.Second, func() error {
		var ferr error
		raw, ferr = p.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: tf,
			Start:     start,
			End:       end,
			Feed:      p.feed,
		})
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s/%s: %w", symbol, period, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  ab.Timestamp,
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	p.log.Debug("fetched bars", "symbol", symbol, "period", period, "count", len(bars))
	return bars, nil
}

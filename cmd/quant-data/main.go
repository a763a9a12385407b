package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wangchao9206/ai-quant/internal/config"
	"github.com/wangchao9206/ai-quant/internal/provider"
	"github.com/wangchao9206/ai-quant/internal/store"
	"github.com/wangchao9206/ai-quant/internal/util"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to YAML config")
		symbols = flag.String("symbols", "", "comma-separated symbols to fetch (required)")
		period  = flag.String("period", "daily", "bar period: daily, 60, 30, 15, 5")
		start   = flag.String("start", "", "start date YYYY-MM-DD (required)")
		end     = flag.String("end", "", "end date YYYY-MM-DD (default today)")
	)
	flag.Parse()

	if *symbols == "" || *start == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("Alpaca credentials missing: set alpaca.api_key/api_secret or APCA_API_KEY_ID/APCA_API_SECRET_KEY")
	}

	startTime, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatalf("invalid start date: %v", err)
	}
	endTime := time.Now().UTC().Truncate(24 * time.Hour)
	if *end != "" {
		endTime, err = time.Parse("2006-01-02", *end)
		if err != nil {
			log.Fatalf("invalid end date: %v", err)
		}
	}

	if !provider.ValidPeriod(*period) {
		log.Fatalf("unsupported period %q", *period)
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	alpaca := provider.NewAlpacaProvider(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		cfg.Alpaca.RateLimitPerMin,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, sym := range strings.Split(*symbols, ",") {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		bars, err := alpaca.GetBars(ctx, sym, *period, startTime, endTime)
		if err != nil {
			slog.Error("fetching bars", "symbol", sym, "err", err)
			continue
		}
		if err := pstore.WriteBars(ctx, *period, bars); err != nil {
			slog.Error("writing bars", "symbol", sym, "err", err)
			continue
		}
		slog.Info("stored bars", "symbol", sym, "period", *period, "count", len(bars))
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/wangchao9206/ai-quant/internal/backtest"
	"github.com/wangchao9206/ai-quant/internal/config"
	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/provider"
	"github.com/wangchao9206/ai-quant/internal/store"
	"github.com/wangchao9206/ai-quant/internal/strategy"
	"github.com/wangchao9206/ai-quant/internal/strategy/builtins"
	"github.com/wangchao9206/ai-quant/internal/util"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "path to YAML config")
		symbol    = flag.String("symbol", "", "symbol to backtest (required)")
		period    = flag.String("period", "daily", "bar period: daily, 60, 30, 15, 5")
		start     = flag.String("start", "", "start date YYYY-MM-DD (required)")
		end       = flag.String("end", "", "end date YYYY-MM-DD (required)")
		stratName = flag.String("strategy", "trend-following", "registered strategy name")
		fast      = flag.Int("fast", 10, "fast moving average period")
		slow      = flag.Int("slow", 30, "slow moving average period")
		atr       = flag.Int("atr", 14, "ATR period")
		atrMult   = flag.Float64("atr-mult", 2.0, "ATR trailing stop multiplier")
		risk      = flag.Float64("risk", 0.02, "risk per trade as a fraction of equity")
		ema       = flag.Bool("ema", false, "use exponential moving averages")
		cash      = flag.Float64("cash", 0, "initial cash (default from config)")
	)
	flag.Parse()

	if *symbol == "" || *start == "" || *end == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	startTime, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatalf("invalid start date: %v", err)
	}
	endTime, err := time.Parse("2006-01-02", *end)
	if err != nil {
		log.Fatalf("invalid end date: %v", err)
	}

	params := domain.StrategyParameters{
		FastPeriod:         *fast,
		SlowPeriod:         *slow,
		ATRPeriod:          *atr,
		ATRMultiplier:      *atrMult,
		RiskPerTrade:       *risk,
		ContractMultiplier: 1,
		UseExponentialMA:   *ema,
	}

	initialCash := *cash
	if initialCash == 0 {
		initialCash = cfg.Backtest.InitialCash
	}

	ctx := context.Background()
	p := provider.NewStoreProvider(store.NewParquetStore(cfg.Storage.DataDir))
	bars, err := p.GetBars(ctx, *symbol, *period, startTime, endTime)
	if err != nil {
		log.Fatalf("loading bars: %v", err)
	}

	strat, err := builtins.NewCatalog().Resolve(strategy.Spec{Name: *stratName})
	if err != nil {
		log.Fatalf("resolving strategy: %v", err)
	}

	engine := backtest.NewEngine(cfg.Backtest.CommissionRate)
	res, err := engine.Run(ctx, bars, params, strat, initialCash)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatalf("encoding result: %v", err)
	}
}

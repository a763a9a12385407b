package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wangchao9206/ai-quant/internal/backtest"
	"github.com/wangchao9206/ai-quant/internal/config"
	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/optimizer"
	"github.com/wangchao9206/ai-quant/internal/provider"
	"github.com/wangchao9206/ai-quant/internal/store"
	"github.com/wangchao9206/ai-quant/internal/strategy"
	"github.com/wangchao9206/ai-quant/internal/strategy/builtins"
	"github.com/wangchao9206/ai-quant/internal/util"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to YAML config")
		symbol  = flag.String("symbol", "", "symbol to optimize (required)")
		period  = flag.String("period", "daily", "bar period: daily, 60, 30, 15, 5")
		start   = flag.String("start", "", "start date YYYY-MM-DD (required)")
		end     = flag.String("end", "", "end date YYYY-MM-DD (required)")
		trials  = flag.Int("trials", 0, "max trials (default from config)")
		target  = flag.Float64("target", 0, "target return percent (default from config)")
		workers = flag.Int("workers", 0, "parallel trial workers (default from config)")
		seed    = flag.Int64("seed", 0, "random seed for reproducible searches")
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

	ctx := context.Background()
	p := provider.NewStoreProvider(store.NewParquetStore(cfg.Storage.DataDir))
	bars, err := p.GetBars(ctx, *symbol, *period, startTime, endTime)
	if err != nil {
		log.Fatalf("loading bars: %v", err)
	}

	opts := optimizer.Options{
		MaxTrials:    cfg.Optimizer.MaxTrials,
		TargetReturn: cfg.Optimizer.TargetReturn,
		Workers:      cfg.Optimizer.Workers,
		TrialTimeout: time.Duration(cfg.Optimizer.TrialTimeout),
		Seed:         *seed,
	}
	if *trials > 0 {
		opts.MaxTrials = *trials
	}
	if *target != 0 {
		opts.TargetReturn = *target
	}
	if *workers > 0 {
		opts.Workers = *workers
	}

	catalog := builtins.NewCatalog()
	opt := optimizer.New(backtest.NewEngine(cfg.Backtest.CommissionRate), opts)
	res, err := opt.Optimize(ctx, bars, func() strategy.Strategy {
		s, _ := catalog.Resolve(strategy.Spec{Name: "trend-following"})
		return s
	}, domain.DefaultParameters(), cfg.Backtest.InitialCash)
	if err != nil {
		log.Fatalf("optimization failed: %v", err)
	}

	for i, tr := range res.Trials {
		if tr.Failed {
			fmt.Printf("trial %2d: failed: %s\n", i, tr.Error)
			continue
		}
		fmt.Printf("trial %2d: fast=%d slow=%d atr=%d mult=%.1f risk=%.2f return=%.2f%%\n",
			i, tr.Parameters.FastPeriod, tr.Parameters.SlowPeriod,
			tr.Parameters.ATRPeriod, tr.Parameters.ATRMultiplier,
			tr.Parameters.RiskPerTrade, tr.ReturnRate)
	}

	if res.BestResult == nil {
		fmt.Println("no trial produced a usable result")
		return
	}

	fmt.Printf("\nbest: net profit %.2f over %d trades\n",
		res.BestResult.Metrics.NetProfit, res.BestResult.Metrics.TotalTrades)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.BestParameters); err != nil {
		log.Fatalf("encoding parameters: %v", err)
	}
}

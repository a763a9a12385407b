package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wangchao9206/ai-quant/internal/backtest"
	"github.com/wangchao9206/ai-quant/internal/config"
	"github.com/wangchao9206/ai-quant/internal/httpapi"
	"github.com/wangchao9206/ai-quant/internal/optimizer"
	"github.com/wangchao9206/ai-quant/internal/provider"
	"github.com/wangchao9206/ai-quant/internal/store"
	"github.com/wangchao9206/ai-quant/internal/strategy/builtins"
	"github.com/wangchao9206/ai-quant/internal/util"
)

func configPath() string {
	if p := os.Getenv("QUANT_CONFIG"); p != "" {
		return p
	}
	p := "config/quant.yaml"
	if _, err := os.Stat(p); err != nil {
		return "" // defaults + environment
	}
	return p
}

func main() {
	cfgFlag := flag.String("config", "", "path to YAML config (default config/quant.yaml if present)")
	flag.Parse()

	path := *cfgFlag
	if path == "" {
		path = configPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	var sink store.ResultSink
	if cfg.Storage.SQLitePath != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			slog.Warn("opening result database, runs will not be recorded", "err", err)
		} else {
			defer sqlStore.Close()
			sink = sqlStore
		}
	}

	symbols := provider.NewSymbolCache(func(ctx context.Context) ([]string, error) {
		return pstore.ListSymbols(ctx, "daily")
	}, 5*time.Minute)

	api := httpapi.NewServer(
		provider.NewStoreProvider(pstore),
		symbols,
		builtins.NewCatalog(),
		backtest.NewEngine(cfg.Backtest.CommissionRate),
		sink,
		optimizer.Options{
			MaxTrials:    cfg.Optimizer.MaxTrials,
			TargetReturn: cfg.Optimizer.TargetReturn,
			Workers:      cfg.Optimizer.Workers,
			TrialTimeout: time.Duration(cfg.Optimizer.TrialTimeout),
		},
		cfg.Backtest.InitialCash,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "err", err)
		}
	}()

	slog.Info("quant-server listening", "addr", addr, "data_dir", cfg.Storage.DataDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	slog.Info("quant-server stopped")
}

// Package httpapi exposes the backtest engine over a small REST surface:
// run a backtest, optimize parameters, list symbols and strategies.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wangchao9206/ai-quant/internal/backtest"
	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/optimizer"
	"github.com/wangchao9206/ai-quant/internal/provider"
	"github.com/wangchao9206/ai-quant/internal/store"
	"github.com/wangchao9206/ai-quant/internal/strategy"
)

// DefaultStrategy is used when a request names no strategy.
const DefaultStrategy = "trend-following"

// Server serves the backtest REST API.
type Server struct {
	provider    provider.MarketDataProvider
	symbols     *provider.SymbolCache
	catalog     *strategy.Catalog
	engine      *backtest.Engine
	sink        store.ResultSink // nil disables result persistence
	optDefaults optimizer.Options
	initialCash float64
	log         *slog.Logger
}

// NewServer wires the API over its collaborators. sink may be nil; runs then
// go unrecorded.
func NewServer(
	p provider.MarketDataProvider,
	symbols *provider.SymbolCache,
	catalog *strategy.Catalog,
	engine *backtest.Engine,
	sink store.ResultSink,
	optDefaults optimizer.Options,
	initialCash float64,
) *Server {
	return &Server{
		provider:    p,
		symbols:     symbols,
		catalog:     catalog,
		engine:      engine,
		sink:        sink,
		optDefaults: optDefaults,
		initialCash: initialCash,
		log:         slog.Default().With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/backtest/run", s.handleRun)
	mux.HandleFunc("POST /api/backtest/optimize", s.handleOptimize)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes. Precondition failures
// are the client's fault; execution faults are ours.
func statusFor(err error) int {
	var insData *domain.InsufficientDataError
	var invParams *domain.InvalidParametersError
	var invStrat *domain.InvalidStrategyError
	switch {
	case errors.As(err, &insData), errors.As(err, &invParams), errors.As(err, &invStrat):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ---------------------------------------------------------------------------
// Request plumbing
// ---------------------------------------------------------------------------

// runInput is a validated BacktestRequest ready to execute.
type runInput struct {
	bars        []domain.Bar
	params      domain.StrategyParameters
	spec        strategy.Spec
	initialCash float64
}

func (s *Server) prepareRun(r *http.Request, req *BacktestRequest) (*runInput, int, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("symbol is required")
	}
	period := req.Period
	if period == "" {
		period = "daily"
	}
	if !provider.ValidPeriod(period) {
		return nil, http.StatusBadRequest, fmt.Errorf("unsupported period %q", period)
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid start date %q", req.Start)
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid end date %q", req.End)
	}
	if end.Before(start) {
		return nil, http.StatusBadRequest, fmt.Errorf("end date precedes start date")
	}

	bars, err := s.provider.GetBars(r.Context(), symbol, period, start, end)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("fetching bars: %w", err)
	}

	spec := strategy.Spec{Name: DefaultStrategy}
	if req.Strategy != nil {
		spec = *req.Strategy
	}

	cash := req.InitialCash
	if cash == 0 {
		cash = s.initialCash
	}

	return &runInput{
		bars:        bars,
		params:      req.Parameters.apply(domain.DefaultParameters()),
		spec:        spec,
		initialCash: cash,
	}, 0, nil
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	in, status, err := s.prepareRun(r, &req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	strat, err := s.catalog.Resolve(in.spec)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	res, err := s.engine.Run(r.Context(), in.bars, in.params, strat, in.initialCash)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if s.sink != nil {
		if _, serr := s.sink.SaveBacktest(r.Context(), res); serr != nil {
			s.log.Warn("recording backtest run", "err", serr)
		}
	}
	writeJSON(w, res)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	in, status, err := s.prepareRun(r, &req.BacktestRequest)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	// Validate the strategy spec up front; the optimizer builds fresh
	// instances per trial.
	if _, err := s.catalog.Resolve(in.spec); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	opts := s.optDefaults
	if req.MaxTrials > 0 {
		opts.MaxTrials = req.MaxTrials
	}
	if req.TargetReturn != 0 {
		opts.TargetReturn = req.TargetReturn
	}
	if req.Seed != 0 {
		opts.Seed = req.Seed
	}

	opt := optimizer.New(s.engine, opts)
	res, err := opt.Optimize(r.Context(), in.bars, func() strategy.Strategy {
		st, rerr := s.catalog.Resolve(in.spec)
		if rerr != nil {
			// Unreachable: Resolve succeeded above for the same input.
			panic(rerr)
		}
		return st
	}, in.params, in.initialCash)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if s.sink != nil {
		symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
		if _, serr := s.sink.SaveOptimization(r.Context(), symbol, res); serr != nil {
			s.log.Warn("recording optimization run", "err", serr)
		}
	}
	writeJSON(w, toOptimizeResponse(res))
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.symbols.Symbols(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, map[string]any{"symbols": symbols})
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"strategies": s.catalog.List()})
}

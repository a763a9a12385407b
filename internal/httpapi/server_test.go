package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wangchao9206/ai-quant/internal/backtest"
	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/optimizer"
	"github.com/wangchao9206/ai-quant/internal/provider"
	"github.com/wangchao9206/ai-quant/internal/store"
	"github.com/wangchao9206/ai-quant/internal/strategy/builtins"
)

// rally-then-crash fixture: with fast 2 / slow 3 / ATR 2 / multiplier 1 it
// produces exactly one long trade closed by the trailing stop.
var fixtureCloses = []float64{10, 10, 10, 10, 11, 14, 20, 14}

func seedBars(t *testing.T, ps *store.ParquetStore) {
	t.Helper()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(fixtureCloses))
	for i, c := range fixtureCloses {
		bars[i] = domain.Bar{
			Symbol:    "TEST",
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	if err := ps.WriteBars(context.Background(), "daily", bars); err != nil {
		t.Fatalf("seeding bars: %v", err)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ps := store.NewParquetStore(t.TempDir())
	seedBars(t, ps)

	symbols := provider.NewSymbolCache(func(ctx context.Context) ([]string, error) {
		return ps.ListSymbols(ctx, "daily")
	}, time.Minute)

	srv := NewServer(
		provider.NewStoreProvider(ps),
		symbols,
		builtins.NewCatalog(),
		backtest.NewEngine(backtest.DefaultCommissionRate),
		nil,
		optimizer.Options{Workers: 2},
		100000,
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

const fixtureParams = `{"fast_period": 2, "slow_period": 3, "atr_period": 2, "atr_multiplier": 1.0}`

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRunEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/backtest/run", `{
		"symbol": "test",
		"start": "2024-01-01",
		"end": "2024-01-31",
		"parameters": `+fixtureParams+`
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var res domain.BacktestResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if res.Symbol != "TEST" {
		t.Errorf("symbol = %q, want TEST", res.Symbol)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	if !strings.Contains(res.Trades[0].ExitReason, "trailing stop") {
		t.Errorf("exit reason = %q, want a trailing stop exit", res.Trades[0].ExitReason)
	}
	if res.Metrics.InitialCash != 100000 {
		t.Errorf("initial cash = %f, want the server default 100000", res.Metrics.InitialCash)
	}
}

func TestRunInsufficientDataIs422(t *testing.T) {
	ts := newTestServer(t)

	// Default parameters need slow_period+5 = 35 bars; the fixture has 8.
	resp := postJSON(t, ts.URL+"/api/backtest/run", `{
		"symbol": "TEST",
		"start": "2024-01-01",
		"end": "2024-01-31"
	}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestRunUnknownStrategyIs422(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/backtest/run", `{
		"symbol": "TEST",
		"start": "2024-01-01",
		"end": "2024-01-31",
		"strategy": {"name": "does-not-exist"},
		"parameters": `+fixtureParams+`
	}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestRunRuleStrategy(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/backtest/run", `{
		"symbol": "TEST",
		"start": "2024-01-01",
		"end": "2024-01-31",
		"strategy": {"rules": {"name": "my-rules", "stop_loss_pct": 0.1}},
		"parameters": `+fixtureParams+`
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRunRequestValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{not json`},
		{"missing symbol", `{"start": "2024-01-01", "end": "2024-01-31"}`},
		{"bad date", `{"symbol": "TEST", "start": "January 1st", "end": "2024-01-31"}`},
		{"inverted range", `{"symbol": "TEST", "start": "2024-02-01", "end": "2024-01-01"}`},
		{"bad period", `{"symbol": "TEST", "period": "weekly", "start": "2024-01-01", "end": "2024-01-31"}`},
	}
	for _, c := range cases {
		resp := postJSON(t, ts.URL+"/api/backtest/run", c.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", c.name, resp.StatusCode)
		}
	}
}

func TestOptimizeEndpointAllTrialsFail(t *testing.T) {
	ts := newTestServer(t)

	// Every candidate needs at least 25 bars; the fixture has 8, so all
	// trials fail and the response must still be valid JSON.
	resp := postJSON(t, ts.URL+"/api/backtest/optimize", `{
		"symbol": "TEST",
		"start": "2024-01-01",
		"end": "2024-01-31",
		"max_trials": 3,
		"seed": 1
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var res OptimizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if res.BestResult != nil {
		t.Error("best_result set although every trial failed")
	}
	if len(res.Trials) != 3 {
		t.Fatalf("trials = %d, want 3", len(res.Trials))
	}
	for i, tr := range res.Trials {
		if !tr.Failed || tr.ReturnRate != nil {
			t.Errorf("trial %d = %+v, want failed with null return_rate", i, tr)
		}
	}
}

func TestSymbolsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/symbols")
	if err != nil {
		t.Fatalf("GET /api/symbols: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Symbols) != 1 || body.Symbols[0] != "TEST" {
		t.Errorf("symbols = %v, want [TEST]", body.Symbols)
	}
}

func TestStrategiesEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/strategies")
	if err != nil {
		t.Fatalf("GET /api/strategies: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Strategies []string `json:"strategies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	found := false
	for _, name := range body.Strategies {
		if name == DefaultStrategy {
			found = true
		}
	}
	if !found {
		t.Errorf("strategies = %v, want %q included", body.Strategies, DefaultStrategy)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/backtest/run", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}

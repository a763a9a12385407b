// Package domain defines the core types shared across the ai-quant backtest
// engine: bars, strategy parameters, positions, order intents, trades, and
// run results.
package domain

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is a single OHLCV bar. Bars in a series are expected to be pre-cleaned:
// strictly increasing unique timestamps, High >= Low, Volume >= 0.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count,omitempty"`
	VWAP       float64   `json:"vwap,omitempty"`
}

// ---------------------------------------------------------------------------
// Strategy parameters
// ---------------------------------------------------------------------------

// StrategyParameters holds the tunable inputs of a backtest run.
type StrategyParameters struct {
	FastPeriod         int     `json:"fast_period" yaml:"fast_period"`
	SlowPeriod         int     `json:"slow_period" yaml:"slow_period"`
	ATRPeriod          int     `json:"atr_period" yaml:"atr_period"`
	ATRMultiplier      float64 `json:"atr_multiplier" yaml:"atr_multiplier"`
	RiskPerTrade       float64 `json:"risk_per_trade" yaml:"risk_per_trade"`
	ContractMultiplier int     `json:"contract_multiplier" yaml:"contract_multiplier"`
	UseExponentialMA   bool    `json:"use_exponential_ma" yaml:"use_exponential_ma"`
}

// DefaultParameters returns the stock trend-following parameter set.
func DefaultParameters() StrategyParameters {
	return StrategyParameters{
		FastPeriod:         10,
		SlowPeriod:         30,
		ATRPeriod:          14,
		ATRMultiplier:      2.0,
		RiskPerTrade:       0.02,
		ContractMultiplier: 1,
	}
}

// Validate checks the structural constraints on the parameter set and returns
// an *InvalidParametersError describing the first violation found.
func (p StrategyParameters) Validate() error {
	switch {
	case p.FastPeriod <= 0:
		return &InvalidParametersError{Field: "fast_period", Reason: fmt.Sprintf("must be > 0, got %d", p.FastPeriod)}
	case p.SlowPeriod <= 0:
		return &InvalidParametersError{Field: "slow_period", Reason: fmt.Sprintf("must be > 0, got %d", p.SlowPeriod)}
	case p.FastPeriod >= p.SlowPeriod:
		return &InvalidParametersError{Field: "fast_period", Reason: fmt.Sprintf("must be < slow_period, got %d >= %d", p.FastPeriod, p.SlowPeriod)}
	case p.ATRPeriod <= 0:
		return &InvalidParametersError{Field: "atr_period", Reason: fmt.Sprintf("must be > 0, got %d", p.ATRPeriod)}
	case p.ATRMultiplier <= 0:
		return &InvalidParametersError{Field: "atr_multiplier", Reason: fmt.Sprintf("must be > 0, got %g", p.ATRMultiplier)}
	case p.RiskPerTrade <= 0 || p.RiskPerTrade > 1:
		return &InvalidParametersError{Field: "risk_per_trade", Reason: fmt.Sprintf("must be in (0, 1], got %g", p.RiskPerTrade)}
	case p.ContractMultiplier < 1:
		return &InvalidParametersError{Field: "contract_multiplier", Reason: fmt.Sprintf("must be >= 1, got %d", p.ContractMultiplier)}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Position and order intents
// ---------------------------------------------------------------------------

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionFlat  PositionSide = "flat"
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// Position is the single position a simulated account may hold. The zero
// value is a flat position.
type Position struct {
	Side            PositionSide
	Size            int
	EntryPrice      float64
	StopPrice       float64
	EntryReason     string
	EntryTime       time.Time
	EntryIndex      int
	EntryCommission float64
}

// Open reports whether the position is long or short.
func (p Position) Open() bool {
	return p.Side == PositionLong || p.Side == PositionShort
}

// IntentType enumerates the order intents a strategy may emit for a bar.
type IntentType int

const (
	IntentNone IntentType = iota
	IntentOpenLong
	IntentOpenShort
	IntentClose
	IntentAdjustStop
)

// OrderIntent is the per-bar output of a strategy: at most one intent per
// bar, resolved by the broker simulator at that bar's close.
type OrderIntent struct {
	Type      IntentType
	Size      int     // units for open intents; ignored otherwise
	StopPrice float64 // initial stop for opens, new stop for adjustments
	Reason    string  // entry reason for opens, exit reason for closes
}

// ---------------------------------------------------------------------------
// Run output
// ---------------------------------------------------------------------------

// Trade is one closed round trip. Trades are immutable once created and
// appended to the ledger in exit-time order.
type Trade struct {
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time"`
	Direction   string    `json:"direction"` // "long" or "short"
	Size        int       `json:"size"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	GrossPnL    float64   `json:"gross_pnl"`
	NetPnL      float64   `json:"net_pnl"`
	Commission  float64   `json:"commission"`
	ReturnRate  float64   `json:"return_rate"` // gross PnL / entry notional * 100
	BarsHeld    int       `json:"bars_held"`
	EntryReason string    `json:"entry_reason"`
	ExitReason  string    `json:"exit_reason"`
}

// EquityPoint is one point of the compounded equity curve, one per bar.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
	Return float64   `json:"return"` // period return vs previous point, 0 at t=0
}

// Metrics summarizes a completed run.
type Metrics struct {
	InitialCash    float64 `json:"initial_cash"`
	FinalValue     float64 `json:"final_value"`
	NetProfit      float64 `json:"net_profit"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	TotalTrades    int     `json:"total_trades"`
	WonTrades      int     `json:"won_trades"`
	LostTrades     int     `json:"lost_trades"`
	WinRatePct     float64 `json:"win_rate_pct"`
}

// BacktestResult is the complete output of one engine run.
type BacktestResult struct {
	Symbol      string             `json:"symbol,omitempty"`
	Parameters  StrategyParameters `json:"parameters"`
	EquityCurve []EquityPoint      `json:"equity_curve"`
	Trades      []Trade            `json:"trades"`
	Metrics     Metrics            `json:"metrics"`
}

// ---------------------------------------------------------------------------
// Optimization output
// ---------------------------------------------------------------------------

// OptimizationTrial records the outcome of a single parameter candidate.
// ReturnRate is net_profit / initial_cash * 100, or -Inf when the trial
// failed.
type OptimizationTrial struct {
	Parameters StrategyParameters `json:"parameters"`
	ReturnRate float64            `json:"return_rate"`
	Failed     bool               `json:"failed,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// OptimizationResult is the outcome of a parameter search. BestParameters
// defaults to the base parameters and BestResult is nil when no trial
// produced a usable result.
type OptimizationResult struct {
	BestParameters StrategyParameters  `json:"best_parameters"`
	BestResult     *BacktestResult     `json:"best_result,omitempty"`
	Trials         []OptimizationTrial `json:"trials,omitempty"`
}

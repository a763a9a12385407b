// Package backtest orchestrates one deterministic historical simulation:
// indicators in, strategy decisions and broker fills per bar, performance
// metrics out. A run yields either a complete result or a typed error,
// never a truncated result.
package backtest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wangchao9206/ai-quant/internal/broker"
	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/indicator"
	"github.com/wangchao9206/ai-quant/internal/strategy"
)

// DefaultCommissionRate is the commission charged per fill as a fraction of
// notional.
const DefaultCommissionRate = 0.0001

// minExtraBars is how many bars beyond the slow period a run requires.
const minExtraBars = 5

// Engine runs backtests. It is stateless across runs: every Run builds its
// own broker and indicator pipeline, so one Engine may serve many concurrent
// callers over a shared read-only bar series.
type Engine struct {
	commissionRate float64
	log            *slog.Logger
}

// NewEngine creates an Engine charging the given commission rate per fill.
func NewEngine(commissionRate float64) *Engine {
	return &Engine{
		commissionRate: commissionRate,
		log:            slog.Default().With("component", "backtest"),
	}
}

// Run executes one backtest over the bar series with the given parameters
// and strategy, starting from initialCash. Bars are processed strictly in
// order; fills resolve synchronously at the deciding bar's close, so at most
// one order is ever in flight and it is resolved before the next decision.
//
// Preconditions surface as *InvalidParametersError, *InvalidStrategyError,
// or *InsufficientDataError. Any fault during iteration, including a
// panicking strategy, is converted to *ExecutionFailedError.
func (e *Engine) Run(
	ctx context.Context,
	bars []domain.Bar,
	params domain.StrategyParameters,
	strat strategy.Strategy,
	initialCash float64,
) (result *domain.BacktestResult, err error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if initialCash <= 0 {
		return nil, &domain.InvalidParametersError{
			Field:  "initial_cash",
			Reason: fmt.Sprintf("must be > 0, got %g", initialCash),
		}
	}
	if err := strategy.Validate(strat, params); err != nil {
		return nil, err
	}

	required := params.SlowPeriod + minExtraBars
	if len(bars) < required {
		return nil, &domain.InsufficientDataError{Required: required, Available: len(bars)}
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("run panicked", "strategy", strat.Name(), "panic", r)
			result = nil
			err = &domain.ExecutionFailedError{Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()

	closes := indicator.Closes(bars)
	var fast, slow indicator.Series
	if params.UseExponentialMA {
		fast = indicator.EMA(closes, params.FastPeriod)
		slow = indicator.EMA(closes, params.SlowPeriod)
	} else {
		fast = indicator.SMA(closes, params.FastPeriod)
		slow = indicator.SMA(closes, params.SlowPeriod)
	}
	cross := indicator.Crossover(fast, slow)
	atr := indicator.ATR(bars, params.ATRPeriod)

	sim := broker.NewSimulator(initialCash, e.commissionRate, params.ContractMultiplier)
	values := make([]float64, len(bars))

	for i, bar := range bars {
		if cerr := ctx.Err(); cerr != nil {
			return nil, &domain.ExecutionFailedError{
				Detail: fmt.Sprintf("run aborted at bar %d", i),
				Err:    cerr,
			}
		}

		env := strategy.Env{
			Index:    i,
			Bar:      bar,
			Cross:    cross[i],
			Position: sim.Position(),
			Account: strategy.Account{
				Cash:   sim.Cash(),
				Equity: sim.Equity(bar.Close),
			},
		}
		env.ATR, env.ATRValid = atr.At(i)
		env.FastMA, env.FastValid = fast.At(i)
		env.SlowMA, env.SlowValid = slow.At(i)

		intent, serr := strat.OnBar(env)
		if serr != nil {
			return nil, &domain.ExecutionFailedError{
				Detail: fmt.Sprintf("strategy %q at bar %d", strat.Name(), i),
				Err:    serr,
			}
		}
		if berr := sim.Execute(intent, bar, i); berr != nil {
			return nil, &domain.ExecutionFailedError{
				Detail: fmt.Sprintf("broker fill at bar %d", i),
				Err:    berr,
			}
		}

		values[i] = sim.Equity(bar.Close)
	}

	curve := BuildEquityCurve(bars, values)
	trades := sim.Trades()

	return &domain.BacktestResult{
		Symbol:      bars[0].Symbol,
		Parameters:  params,
		EquityCurve: curve,
		Trades:      trades,
		Metrics:     Analyze(initialCash, curve, trades),
	}, nil
}

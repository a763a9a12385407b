// Package builtins provides the strategy implementations that ship with
// ai-quant.
package builtins

import (
	"fmt"

	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*TrendFollowing)(nil)

// TrendFollowing is the stock dual moving-average trend follower: it opens
// with the crossover, sizes the entry from ATR-based risk, and rides the
// position behind a ratcheting ATR stop.
//
// Entry sizing is symmetric for longs and shorts: risk-based size, a
// fallback to one unit when the computed size rounds to zero and one unit is
// affordable, and a clamp at the max-affordable size at the entry close.
type TrendFollowing struct {
	params domain.StrategyParameters
}

// NewTrendFollowing creates an unconfigured trend-following strategy; Init
// must run before the first bar.
func NewTrendFollowing() *TrendFollowing {
	return &TrendFollowing{}
}

// Name returns "trend-following".
func (s *TrendFollowing) Name() string { return "trend-following" }

// ParamNames lists every run parameter; the trend follower consumes the full
// set.
func (s *TrendFollowing) ParamNames() []string {
	return []string{
		"fast_period", "slow_period", "atr_period", "atr_multiplier",
		"risk_per_trade", "contract_multiplier", "use_exponential_ma",
	}
}

// Init validates and stores the run parameters.
func (s *TrendFollowing) Init(p domain.StrategyParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.params = p
	return nil
}

// OnBar implements the flat/long/short state machine. One decision per bar;
// a pending order blocks new decisions.
func (s *TrendFollowing) OnBar(env strategy.Env) (domain.OrderIntent, error) {
	if env.OrderPending {
		return domain.OrderIntent{}, nil
	}

	switch env.Position.Side {
	case domain.PositionLong:
		return s.manageLong(env), nil
	case domain.PositionShort:
		return s.manageShort(env), nil
	default:
		return s.tryOpen(env), nil
	}
}

// tryOpen handles the flat state: crossover in, risk-sized entry out.
func (s *TrendFollowing) tryOpen(env strategy.Env) domain.OrderIntent {
	if env.Cross == 0 || !env.ATRValid {
		return domain.OrderIntent{}
	}

	p := s.params
	close := env.Bar.Close
	stopDist := env.ATR * p.ATRMultiplier

	size := s.entrySize(env, stopDist)
	if size <= 0 {
		// Not an error: the account cannot carry even one unit of risk.
		return domain.OrderIntent{}
	}

	if env.Cross > 0 {
		return domain.OrderIntent{
			Type:      domain.IntentOpenLong,
			Size:      size,
			StopPrice: close - stopDist,
			Reason: fmt.Sprintf("bullish crossover (MA%d > MA%d), ATR %.2f, risk %.0f%%",
				p.FastPeriod, p.SlowPeriod, env.ATR, p.RiskPerTrade*100),
		}
	}
	return domain.OrderIntent{
		Type:      domain.IntentOpenShort,
		Size:      size,
		StopPrice: close + stopDist,
		Reason: fmt.Sprintf("bearish crossover (MA%d < MA%d), ATR %.2f, risk %.0f%%",
			p.FastPeriod, p.SlowPeriod, env.ATR, p.RiskPerTrade*100),
	}
}

// entrySize computes the risk-based position size clamped to what cash can
// carry at the entry close.
func (s *TrendFollowing) entrySize(env strategy.Env, stopDist float64) int {
	p := s.params

	size := 0
	riskPerUnit := stopDist * float64(p.ContractMultiplier)
	if riskPerUnit > 0 {
		riskAmount := env.Account.Equity * p.RiskPerTrade
		size = int(riskAmount / riskPerUnit)
	}

	affordable := maxAffordable(env.Account.Cash, env.Bar.Close, p.ContractMultiplier)
	if size == 0 && affordable >= 1 {
		size = 1
	}
	if size > affordable {
		size = affordable
	}
	return size
}

// manageLong trails the stop upward and exits on a bearish crossover or a
// close below the stop. The crossover exit is evaluated first.
func (s *TrendFollowing) manageLong(env strategy.Env) domain.OrderIntent {
	if env.Cross < 0 {
		return domain.OrderIntent{
			Type: domain.IntentClose,
			Reason: fmt.Sprintf("bearish crossover (MA%d < MA%d)",
				s.params.FastPeriod, s.params.SlowPeriod),
		}
	}

	stop := env.Position.StopPrice
	if env.ATRValid {
		if candidate := env.Bar.Close - env.ATR*s.params.ATRMultiplier; candidate > stop {
			stop = candidate
		}
	}

	if env.Bar.Close < stop {
		return domain.OrderIntent{
			Type:   domain.IntentClose,
			Reason: fmt.Sprintf("trailing stop hit (close %.2f < stop %.2f)", env.Bar.Close, stop),
		}
	}
	if stop != env.Position.StopPrice {
		return domain.OrderIntent{Type: domain.IntentAdjustStop, StopPrice: stop}
	}
	return domain.OrderIntent{}
}

// manageShort mirrors manageLong: the stop only ratchets downward and a
// close above it exits.
func (s *TrendFollowing) manageShort(env strategy.Env) domain.OrderIntent {
	if env.Cross > 0 {
		return domain.OrderIntent{
			Type: domain.IntentClose,
			Reason: fmt.Sprintf("bullish crossover (MA%d > MA%d)",
				s.params.FastPeriod, s.params.SlowPeriod),
		}
	}

	stop := env.Position.StopPrice
	if env.ATRValid {
		if candidate := env.Bar.Close + env.ATR*s.params.ATRMultiplier; candidate < stop {
			stop = candidate
		}
	}

	if env.Bar.Close > stop {
		return domain.OrderIntent{
			Type:   domain.IntentClose,
			Reason: fmt.Sprintf("trailing stop hit (close %.2f > stop %.2f)", env.Bar.Close, stop),
		}
	}
	if stop != env.Position.StopPrice {
		return domain.OrderIntent{Type: domain.IntentAdjustStop, StopPrice: stop}
	}
	return domain.OrderIntent{}
}

// maxAffordable returns how many units the available cash can buy at the
// given price and contract multiplier.
func maxAffordable(cash, price float64, contractMultiplier int) int {
	notionalPerUnit := price * float64(contractMultiplier)
	if notionalPerUnit <= 0 {
		return 0
	}
	return int(cash / notionalPerUnit)
}

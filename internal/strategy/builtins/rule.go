package builtins

import (
	"fmt"
	"strings"

	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*RuleStrategy)(nil)

// RuleStrategy executes a declarative long-only rule set: enter one unit on
// a bullish crossover, exit on a bearish crossover, an optional percentage
// stop-loss, or an optional percentage take-profit. The definition is
// validated once at construction; nothing is compiled or executed.
type RuleStrategy struct {
	def    strategy.RuleDefinition
	params domain.StrategyParameters
}

// NewRuleStrategy validates a rule definition and builds a strategy from it.
// Invalid definitions fail closed with *InvalidStrategyError.
func NewRuleStrategy(def strategy.RuleDefinition) (strategy.Strategy, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, &domain.InvalidStrategyError{Name: "rule", Reason: "rule definition needs a name"}
	}
	if def.StopLossPct < 0 || def.StopLossPct >= 1 {
		return nil, &domain.InvalidStrategyError{
			Name:   name,
			Reason: fmt.Sprintf("stop_loss_pct must be in [0, 1), got %g", def.StopLossPct),
		}
	}
	if def.TakeProfitPct < 0 || def.TakeProfitPct >= 1 {
		return nil, &domain.InvalidStrategyError{
			Name:   name,
			Reason: fmt.Sprintf("take_profit_pct must be in [0, 1), got %g", def.TakeProfitPct),
		}
	}
	def.Name = name
	return &RuleStrategy{def: def}, nil
}

// Name returns the name from the rule definition.
func (s *RuleStrategy) Name() string { return s.def.Name }

// ParamNames lists the parameters a rule strategy consumes: only the moving
// averages that drive its crossover entry.
func (s *RuleStrategy) ParamNames() []string {
	return []string{"fast_period", "slow_period", "use_exponential_ma"}
}

// Init stores the run parameters.
func (s *RuleStrategy) Init(p domain.StrategyParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.params = p
	return nil
}

// OnBar enters long one unit on a bullish crossover and exits on a bearish
// crossover or a configured stop-loss / take-profit breach.
func (s *RuleStrategy) OnBar(env strategy.Env) (domain.OrderIntent, error) {
	if env.OrderPending {
		return domain.OrderIntent{}, nil
	}

	pos := env.Position
	if !pos.Open() {
		if env.Cross <= 0 {
			return domain.OrderIntent{}, nil
		}
		if maxAffordable(env.Account.Cash, env.Bar.Close, s.params.ContractMultiplier) < 1 {
			return domain.OrderIntent{}, nil
		}
		intent := domain.OrderIntent{
			Type:   domain.IntentOpenLong,
			Size:   1,
			Reason: fmt.Sprintf("rule %q: bullish crossover entry", s.def.Name),
		}
		if s.def.StopLossPct > 0 {
			intent.StopPrice = env.Bar.Close * (1 - s.def.StopLossPct)
		}
		return intent, nil
	}

	close := env.Bar.Close
	switch {
	case env.Cross < 0:
		return domain.OrderIntent{
			Type:   domain.IntentClose,
			Reason: fmt.Sprintf("rule %q: bearish crossover exit", s.def.Name),
		}, nil
	case s.def.StopLossPct > 0 && close < pos.EntryPrice*(1-s.def.StopLossPct):
		return domain.OrderIntent{
			Type:   domain.IntentClose,
			Reason: fmt.Sprintf("rule %q: stop-loss %.1f%% breached", s.def.Name, s.def.StopLossPct*100),
		}, nil
	case s.def.TakeProfitPct > 0 && close > pos.EntryPrice*(1+s.def.TakeProfitPct):
		return domain.OrderIntent{
			Type:   domain.IntentClose,
			Reason: fmt.Sprintf("rule %q: take-profit %.1f%% reached", s.def.Name, s.def.TakeProfitPct*100),
		}, nil
	}
	return domain.OrderIntent{}, nil
}

// NewCatalog returns a Catalog with every built-in registered and the rule
// builder installed.
func NewCatalog() *strategy.Catalog {
	c := strategy.NewCatalog()
	c.Register("trend-following", func() strategy.Strategy { return NewTrendFollowing() })
	c.SetRuleBuilder(NewRuleStrategy)
	return c
}

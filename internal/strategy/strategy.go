// Package strategy defines the per-bar decision contract trading strategies
// must satisfy, and provides a Catalog that resolves strategy specs into
// validated instances. Custom strategies are declarative rule descriptions
// checked up front; submitted code is never compiled or executed.
package strategy

import (
	"sort"

	"github.com/wangchao9206/ai-quant/internal/domain"
)

// Account is the snapshot of simulated account state visible to a strategy.
type Account struct {
	Cash   float64
	Equity float64
}

// Env is the full input for one bar decision: the bar, the indicator values
// derived for it, and the current position and account state. Indicator
// values carry explicit validity so a strategy can tell warmup from zero.
type Env struct {
	Index int
	Bar   domain.Bar

	Cross     int // +1 bullish crossover, -1 bearish, 0 none
	ATR       float64
	ATRValid  bool
	FastMA    float64
	FastValid bool
	SlowMA    float64
	SlowValid bool

	Position domain.Position
	Account  Account

	// OrderPending is true while an order from a previous decision is
	// unresolved. Strategies must not emit new intents while it is set.
	OrderPending bool
}

// Strategy is the capability interface every strategy satisfies: one
// decision per bar, position state in, order intent out.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// ParamNames returns the parameter names the strategy consumes. The
	// catalog intersects them with the run's parameters during validation.
	ParamNames() []string

	// Init configures the strategy for a run. It is called once before the
	// first bar and must reject parameters the strategy cannot honour.
	Init(p domain.StrategyParameters) error

	// OnBar makes the decision for one bar.
	OnBar(env Env) (domain.OrderIntent, error)
}

// parameterFields is the canonical set of run parameter names a strategy may
// declare in ParamNames.
var parameterFields = map[string]struct{}{
	"fast_period":         {},
	"slow_period":         {},
	"atr_period":          {},
	"atr_multiplier":      {},
	"risk_per_trade":      {},
	"contract_multiplier": {},
	"use_exponential_ma":  {},
}

// Validate checks a strategy against the run's parameters: its declared
// parameter names are intersected with the canonical set, and Init must
// accept the parameter values. Any failure yields *InvalidStrategyError;
// an invalid strategy never reaches the engine loop.
func Validate(s Strategy, p domain.StrategyParameters) error {
	if s == nil {
		return &domain.InvalidStrategyError{Name: "", Reason: "nil strategy"}
	}

	matched := 0
	for _, name := range s.ParamNames() {
		if _, ok := parameterFields[name]; ok {
			matched++
		}
	}
	if matched == 0 {
		return &domain.InvalidStrategyError{
			Name:   s.Name(),
			Reason: "declares no recognised parameters",
		}
	}

	if err := s.Init(p); err != nil {
		return &domain.InvalidStrategyError{Name: s.Name(), Reason: err.Error()}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// RuleDefinition is a statically validated description of a custom strategy:
// a crossover entry with optional percentage stop-loss and take-profit
// exits. It replaces arbitrary uploaded code.
type RuleDefinition struct {
	Name          string  `json:"name" yaml:"name"`
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
}

// Spec identifies the strategy for a run: either the name of a registered
// built-in or an inline rule definition.
type Spec struct {
	Name  string          `json:"name" yaml:"name"`
	Rules *RuleDefinition `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// RuleBuilder constructs a strategy from a validated rule definition.
type RuleBuilder func(RuleDefinition) (Strategy, error)

// Catalog holds named strategy factories plus an optional rule builder for
// inline definitions. A fresh instance is produced per resolution so runs
// never share strategy state.
type Catalog struct {
	factories   map[string]func() Strategy
	ruleBuilder RuleBuilder
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]func() Strategy)}
}

// Register adds a named strategy factory.
func (c *Catalog) Register(name string, factory func() Strategy) {
	c.factories[name] = factory
}

// SetRuleBuilder installs the constructor used for inline rule definitions.
func (c *Catalog) SetRuleBuilder(b RuleBuilder) {
	c.ruleBuilder = b
}

// List returns the sorted names of all registered strategies.
func (c *Catalog) List() []string {
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve turns a spec into a fresh strategy instance. It fails closed: an
// unknown name, a missing rule builder, or an invalid rule definition all
// yield *InvalidStrategyError.
func (c *Catalog) Resolve(spec Spec) (Strategy, error) {
	if spec.Rules != nil {
		if c.ruleBuilder == nil {
			return nil, &domain.InvalidStrategyError{
				Name:   spec.Rules.Name,
				Reason: "rule-based strategies are not enabled",
			}
		}
		return c.ruleBuilder(*spec.Rules)
	}

	factory, ok := c.factories[spec.Name]
	if !ok {
		return nil, &domain.InvalidStrategyError{Name: spec.Name, Reason: "unknown strategy"}
	}
	return factory(), nil
}

package httpapi

import (
	"math"

	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/strategy"
)

// ParametersPatch carries optional parameter overrides from a request. Fields
// left out of the JSON body keep their defaults.
type ParametersPatch struct {
	FastPeriod         *int     `json:"fast_period"`
	SlowPeriod         *int     `json:"slow_period"`
	ATRPeriod          *int     `json:"atr_period"`
	ATRMultiplier      *float64 `json:"atr_multiplier"`
	RiskPerTrade       *float64 `json:"risk_per_trade"`
	ContractMultiplier *int     `json:"contract_multiplier"`
	UseExponentialMA   *bool    `json:"use_exponential_ma"`
}

// apply overlays the patch on a base parameter set.
func (p *ParametersPatch) apply(base domain.StrategyParameters) domain.StrategyParameters {
	if p == nil {
		return base
	}
	if p.FastPeriod != nil {
		base.FastPeriod = *p.FastPeriod
	}
	if p.SlowPeriod != nil {
		base.SlowPeriod = *p.SlowPeriod
	}
	if p.ATRPeriod != nil {
		base.ATRPeriod = *p.ATRPeriod
	}
	if p.ATRMultiplier != nil {
		base.ATRMultiplier = *p.ATRMultiplier
	}
	if p.RiskPerTrade != nil {
		base.RiskPerTrade = *p.RiskPerTrade
	}
	if p.ContractMultiplier != nil {
		base.ContractMultiplier = *p.ContractMultiplier
	}
	if p.UseExponentialMA != nil {
		base.UseExponentialMA = *p.UseExponentialMA
	}
	return base
}

// BacktestRequest is the body of POST /api/backtest/run.
type BacktestRequest struct {
	Symbol      string           `json:"symbol"`
	Period      string           `json:"period"`
	Start       string           `json:"start"` // YYYY-MM-DD
	End         string           `json:"end"`   // YYYY-MM-DD
	Strategy    *strategy.Spec   `json:"strategy"`
	Parameters  *ParametersPatch `json:"parameters"`
	InitialCash float64          `json:"initial_cash"`
}

// OptimizeRequest is the body of POST /api/backtest/optimize.
type OptimizeRequest struct {
	BacktestRequest
	MaxTrials    int     `json:"max_trials"`
	TargetReturn float64 `json:"target_return"`
	Seed         int64   `json:"seed"`
}

// TrialResponse mirrors an optimization trial with a JSON-safe return rate:
// failed trials report null instead of -Inf.
type TrialResponse struct {
	Parameters domain.StrategyParameters `json:"parameters"`
	ReturnRate *float64                  `json:"return_rate"`
	Failed     bool                      `json:"failed,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// OptimizeResponse is the JSON shape of an optimization result.
type OptimizeResponse struct {
	BestParameters domain.StrategyParameters `json:"best_parameters"`
	BestResult     *domain.BacktestResult    `json:"best_result,omitempty"`
	Trials         []TrialResponse           `json:"trials"`
}

func toOptimizeResponse(res *domain.OptimizationResult) OptimizeResponse {
	out := OptimizeResponse{
		BestParameters: res.BestParameters,
		BestResult:     res.BestResult,
		Trials:         make([]TrialResponse, len(res.Trials)),
	}
	for i, tr := range res.Trials {
		t := TrialResponse{
			Parameters: tr.Parameters,
			Failed:     tr.Failed,
			Error:      tr.Error,
		}
		if !tr.Failed && !math.IsInf(tr.ReturnRate, 0) && !math.IsNaN(tr.ReturnRate) {
			rate := tr.ReturnRate
			t.ReturnRate = &rate
		}
		out.Trials[i] = t
	}
	return out
}

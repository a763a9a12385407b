// Package optimizer searches the strategy parameter space with randomized
// trials. Every candidate runs a full backtest over the same bar series; the
// best trial by return rate wins, and the search stops early once a candidate
// strictly exceeds the target return. Early stop is advisory: trials already running
// are finished and recorded.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/wangchao9206/ai-quant/internal/backtest"
	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/strategy"
)

// Defaults for an unconfigured search.
const (
	DefaultMaxTrials    = 20
	DefaultTargetReturn = 20.0 // percent of initial cash
	DefaultWorkers      = 4
)

// Options tunes a parameter search. The zero value picks the defaults; a
// non-zero Seed makes candidate generation reproducible.
type Options struct {
	MaxTrials    int
	TargetReturn float64       // stop once a trial's return rate exceeds this
	Workers      int           // 1 runs trials sequentially
	TrialTimeout time.Duration // per-trial deadline, 0 for none
	Seed         int64
}

func (o Options) withDefaults() Options {
	if o.MaxTrials <= 0 {
		o.MaxTrials = DefaultMaxTrials
	}
	if o.TargetReturn == 0 {
		o.TargetReturn = DefaultTargetReturn
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return o
}

// Optimizer runs randomized parameter searches on top of a backtest engine.
type Optimizer struct {
	engine *backtest.Engine
	opts   Options
	log    *slog.Logger
}

// New creates an Optimizer around the given engine.
func New(engine *backtest.Engine, opts Options) *Optimizer {
	return &Optimizer{
		engine: engine,
		opts:   opts.withDefaults(),
		log:    slog.Default().With("component", "optimizer"),
	}
}

// ---------------------------------------------------------------------------
// Candidate generation
// ---------------------------------------------------------------------------

// Discrete value pools for the randomized parameters. Periods draw from
// stepped ranges, the rest from small curated sets.
var (
	atrPeriodPool     = []int{10, 14, 20, 30}
	atrMultiplierPool = []float64{1.0, 1.5, 2.0, 2.5, 3.0, 3.5, 4.0}
	riskPool          = []float64{0.01, 0.02, 0.03, 0.05}
)

func randStep(rng *rand.Rand, lo, hi, step int) int {
	n := (hi-lo)/step + 1
	return lo + rng.Intn(n)*step
}

// mutators each redraw one searched field from its pool.
var mutators = []func(*rand.Rand, *domain.StrategyParameters){
	func(rng *rand.Rand, p *domain.StrategyParameters) { p.FastPeriod = randStep(rng, 5, 29, 2) },
	func(rng *rand.Rand, p *domain.StrategyParameters) { p.SlowPeriod = randStep(rng, 20, 95, 5) },
	func(rng *rand.Rand, p *domain.StrategyParameters) {
		p.ATRPeriod = atrPeriodPool[rng.Intn(len(atrPeriodPool))]
	},
	func(rng *rand.Rand, p *domain.StrategyParameters) {
		p.ATRMultiplier = atrMultiplierPool[rng.Intn(len(atrMultiplierPool))]
	},
	func(rng *rand.Rand, p *domain.StrategyParameters) {
		p.RiskPerTrade = riskPool[rng.Intn(len(riskPool))]
	},
}

// mutate clones the base and redraws one to three randomly chosen searched
// fields, inheriting everything else, so candidates stay in the base's
// neighborhood. Candidates where the fast period reaches the slow one are
// repaired by pushing the slow period out.
func mutate(rng *rand.Rand, base domain.StrategyParameters) domain.StrategyParameters {
	p := base
	k := 1 + rng.Intn(3)
	for _, fi := range rng.Perm(len(mutators))[:k] {
		mutators[fi](rng, &p)
	}
	if p.FastPeriod >= p.SlowPeriod {
		p.SlowPeriod = p.FastPeriod + 5
	}
	return p
}

// candidates pre-draws the whole trial list so the search is reproducible for
// a given seed regardless of worker scheduling.
func (o *Optimizer) candidates(base domain.StrategyParameters) []domain.StrategyParameters {
	seed := o.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	out := make([]domain.StrategyParameters, o.opts.MaxTrials)
	for i := range out {
		out[i] = mutate(rng, base)
	}
	return out
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

// Optimize searches for the parameter set with the highest return rate over
// the bar series, starting each trial from a fresh strategy built by
// newStrategy. Trials are recorded in trial order; failed trials stay in the
// list flagged with their error and never become the best. When no trial
// succeeds the result carries the base parameters and a nil BestResult.
func (o *Optimizer) Optimize(
	ctx context.Context,
	bars []domain.Bar,
	newStrategy func() strategy.Strategy,
	base domain.StrategyParameters,
	initialCash float64,
) (*domain.OptimizationResult, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}

	cands := o.candidates(base)
	trials := o.runTrials(ctx, bars, newStrategy, cands, initialCash)

	best := &domain.OptimizationResult{
		BestParameters: base,
		Trials:         make([]domain.OptimizationTrial, len(trials)),
	}
	bestRate := math.Inf(-1)
	for i, tr := range trials {
		best.Trials[i] = tr.record
		if tr.record.Failed || tr.result == nil {
			continue
		}
		if tr.record.ReturnRate > bestRate {
			bestRate = tr.record.ReturnRate
			best.BestParameters = tr.record.Parameters
			best.BestResult = tr.result
		}
	}

	o.log.Info("search finished",
		"trials", len(trials),
		"best_return_pct", fmt.Sprintf("%.2f", bestRate),
		"target_pct", o.opts.TargetReturn,
	)
	return best, nil
}

// trialOutcome pairs the public trial record with the full backtest result,
// which only the winning trial surfaces.
type trialOutcome struct {
	record domain.OptimizationTrial
	result *domain.BacktestResult
}

func (o *Optimizer) runTrial(
	ctx context.Context,
	idx int,
	bars []domain.Bar,
	strat strategy.Strategy,
	params domain.StrategyParameters,
	initialCash float64,
) trialOutcome {
	if o.opts.TrialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.TrialTimeout)
		defer cancel()
	}

	res, err := o.engine.Run(ctx, bars, params, strat, initialCash)
	if err != nil {
		terr := &domain.TrialFailedError{Trial: idx, Err: err}
		o.log.Warn("trial failed", "trial", idx, "err", err)
		return trialOutcome{record: domain.OptimizationTrial{
			Parameters: params,
			ReturnRate: math.Inf(-1),
			Failed:     true,
			Error:      terr.Error(),
		}}
	}

	return trialOutcome{
		record: domain.OptimizationTrial{
			Parameters: params,
			ReturnRate: res.Metrics.NetProfit / initialCash * 100,
		},
		result: res,
	}
}

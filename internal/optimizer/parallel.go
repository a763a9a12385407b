package optimizer

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/strategy"
)

type indexedOutcome struct {
	idx int
	out trialOutcome
}

// runTrials executes the candidate list and returns the outcomes of every
// trial that ran, in candidate order. Once a trial strictly exceeds the
// target return no further trials start; in-flight trials still finish and are recorded,
// so the returned list may hold a few trials past the winning one.
func (o *Optimizer) runTrials(
	ctx context.Context,
	bars []domain.Bar,
	newStrategy func() strategy.Strategy,
	cands []domain.StrategyParameters,
	initialCash float64,
) []trialOutcome {
	if o.opts.Workers == 1 {
		return o.runSequential(ctx, bars, newStrategy, cands, initialCash)
	}

	jobs := make(chan int, len(cands))
	for i := range cands {
		jobs <- i
	}
	close(jobs)

	var (
		wg      sync.WaitGroup
		stop    atomic.Bool
		results = make(chan indexedOutcome, len(cands))
	)

	workers := min(o.opts.Workers, len(cands))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil || stop.Load() {
					return
				}
				tr := o.runTrial(ctx, i, bars, newStrategy(), cands[i], initialCash)
				results <- indexedOutcome{idx: i, out: tr}
				if !tr.record.Failed && tr.record.ReturnRate > o.opts.TargetReturn {
					o.log.Info("target reached", "trial", i, "return_pct", tr.record.ReturnRate)
					stop.Store(true)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	collected := make([]indexedOutcome, 0, len(cands))
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(a, b int) bool { return collected[a].idx < collected[b].idx })

	out := make([]trialOutcome, len(collected))
	for i, r := range collected {
		out[i] = r.out
	}
	return out
}

func (o *Optimizer) runSequential(
	ctx context.Context,
	bars []domain.Bar,
	newStrategy func() strategy.Strategy,
	cands []domain.StrategyParameters,
	initialCash float64,
) []trialOutcome {
	out := make([]trialOutcome, 0, len(cands))
	for i, p := range cands {
		if ctx.Err() != nil {
			break
		}
		tr := o.runTrial(ctx, i, bars, newStrategy(), p, initialCash)
		out = append(out, tr)
		if !tr.record.Failed && tr.record.ReturnRate > o.opts.TargetReturn {
			o.log.Info("target reached", "trial", i, "return_pct", tr.record.ReturnRate)
			break
		}
	}
	return out
}

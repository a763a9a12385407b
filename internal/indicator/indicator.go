// Package indicator derives moving averages, volatility, and crossover
// signals from a bar series. Outputs align 1:1 with the input bars; warmup
// values are explicitly undefined rather than zero so callers can tell "not
// ready" apart from "zero".
package indicator

import (
	"math"

	"github.com/wangchao9206/ai-quant/internal/domain"
)

// Series is an indicator output aligned with its source bars. Undefined
// positions (the warmup window) report ok=false from At.
type Series struct {
	values []float64
	valid  []bool
}

func newSeries(n int) Series {
	return Series{
		values: make([]float64, n),
		valid:  make([]bool, n),
	}
}

// Len returns the number of positions, equal to the source bar count.
func (s Series) Len() int { return len(s.values) }

// At returns the value at index i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s.values) {
		return 0, false
	}
	return s.values[i], s.valid[i]
}

func (s *Series) set(i int, v float64) {
	s.values[i] = v
	s.valid[i] = true
}

// Closes extracts the close prices of a bar series.
func Closes(bars []domain.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// SMA computes the simple moving average of the last period values.
// Undefined for the first period-1 positions.
func SMA(values []float64, period int) Series {
	s := newSeries(len(values))
	if period <= 0 || len(values) < period {
		return s
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			s.set(i, sum/float64(period))
		}
	}
	return s
}

// EMA computes the exponential moving average with alpha = 2/(period+1),
// seeded by the first period-bar SMA. Undefined for the first period-1
// positions.
func EMA(values []float64, period int) Series {
	s := newSeries(len(values))
	if period <= 0 || len(values) < period {
		return s
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	prev := sum / float64(period)
	s.set(period-1, prev)

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		s.set(i, prev)
	}
	return s
}

// ATR computes the Wilder-smoothed average true range over period bars.
// The first bar's true range is High-Low (no previous close); the smoothed
// average seeds with the plain mean of the first period true ranges, so the
// series is undefined for the first period-1 positions.
func ATR(bars []domain.Bar, period int) Series {
	s := newSeries(len(bars))
	if period <= 0 || len(bars) < period {
		return s
	}

	tr := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			tr[i] = b.High - b.Low
			continue
		}
		prevClose := bars[i-1].Close
		tr[i] = math.Max(b.High-b.Low,
			math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	s.set(period-1, prev)

	for i := period; i < len(bars); i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		s.set(i, prev)
	}
	return s
}

// Crossover detects fast/slow crossings. The result aligns with the inputs:
// +1 where fast crosses above slow, -1 where it crosses below, 0 elsewhere.
// A crossing at t requires both series defined at t-1 and t.
func Crossover(fast, slow Series) []int {
	n := fast.Len()
	if slow.Len() < n {
		n = slow.Len()
	}
	cross := make([]int, n)
	for i := 1; i < n; i++ {
		f0, ok1 := fast.At(i - 1)
		s0, ok2 := slow.At(i - 1)
		f1, ok3 := fast.At(i)
		s1, ok4 := slow.At(i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		switch {
		case f1 > s1 && f0 <= s0:
			cross[i] = 1
		case f1 < s1 && f0 >= s0:
			cross[i] = -1
		}
	}
	return cross
}

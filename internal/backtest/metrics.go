package backtest

import (
	"math"

	"github.com/wangchao9206/ai-quant/internal/domain"
)

// periodsPerYear annualizes daily period returns.
const periodsPerYear = 252

// BuildEquityCurve pairs each bar with its post-fill equity and the period
// return against the previous point. The first point and any point whose
// predecessor is zero report a return of 0.
func BuildEquityCurve(bars []domain.Bar, values []float64) []domain.EquityPoint {
	curve := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		ret := 0.0
		if i > 0 && values[i-1] != 0 {
			ret = v/values[i-1] - 1
		}
		curve[i] = domain.EquityPoint{
			Date:   bars[i].Timestamp,
			Value:  v,
			Return: ret,
		}
	}
	return curve
}

// SharpeRatio annualizes mean period return over its sample standard
// deviation at daily periodicity with a zero risk-free rate. It returns 0
// when fewer than two returns exist or the deviation is zero.
func SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sqDiff float64
	for _, r := range returns {
		d := r - mean
		sqDiff += d * d
	}
	std := math.Sqrt(sqDiff / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}

// MaxDrawdownPct returns the largest peak-to-trough equity decline as a
// percentage of the peak.
func MaxDrawdownPct(values []float64) float64 {
	var peak, maxDD float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// TradeStats classifies the ledger by net PnL: positive wins, negative
// loses, zero counts toward neither.
func TradeStats(trades []domain.Trade) (total, won, lost int, winRatePct float64) {
	total = len(trades)
	for _, t := range trades {
		switch {
		case t.NetPnL > 0:
			won++
		case t.NetPnL < 0:
			lost++
		}
	}
	if total > 0 {
		winRatePct = float64(won) / float64(total) * 100
	}
	return total, won, lost, winRatePct
}

// Analyze derives the summary metrics of a completed run from its equity
// curve and trade ledger. Trade stats come from the ledger alone,
// independent of the curve.
func Analyze(initialCash float64, curve []domain.EquityPoint, trades []domain.Trade) domain.Metrics {
	finalValue := initialCash
	returns := make([]float64, len(curve))
	values := make([]float64, len(curve))
	for i, p := range curve {
		returns[i] = p.Return
		values[i] = p.Value
	}
	if len(curve) > 0 {
		finalValue = curve[len(curve)-1].Value
	}

	total, won, lost, winRate := TradeStats(trades)

	return domain.Metrics{
		InitialCash:    initialCash,
		FinalValue:     finalValue,
		NetProfit:      finalValue - initialCash,
		SharpeRatio:    SharpeRatio(returns),
		MaxDrawdownPct: MaxDrawdownPct(values),
		TotalTrades:    total,
		WonTrades:      won,
		LostTrades:     lost,
		WinRatePct:     winRate,
	}
}

package builtins

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wangchao9206/ai-quant/internal/domain"
	"github.com/wangchao9206/ai-quant/internal/strategy"
)

func configured(t *testing.T, p domain.StrategyParameters) *TrendFollowing {
	t.Helper()
	s := NewTrendFollowing()
	if err := s.Init(p); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func flatEnv(close float64, cross int, atr float64, cash, equity float64) strategy.Env {
	return strategy.Env{
		Bar:      domain.Bar{Close: close, Timestamp: time.Now()},
		Cross:    cross,
		ATR:      atr,
		ATRValid: true,
		Account:  strategy.Account{Cash: cash, Equity: equity},
	}
}

func TestTrendFollowingRiskSizing(t *testing.T) {
	p := domain.DefaultParameters() // risk 2%, ATR mult 2.0, contract 1
	s := configured(t, p)

	// stop distance = 2 * 2.0 = 4; risk = 100000 * 0.02 = 2000; size = 500.
	intent, err := s.OnBar(flatEnv(10, 1, 2, 100000, 100000))
	if err != nil {
		t.Fatal(err)
	}
	if intent.Type != domain.IntentOpenLong {
		t.Fatalf("intent = %v, want open long", intent.Type)
	}
	if intent.Size != 500 {
		t.Errorf("size = %d, want 500", intent.Size)
	}
	if intent.StopPrice != 6 {
		t.Errorf("stop = %f, want 6 (close - ATR*multiplier)", intent.StopPrice)
	}
}

func TestTrendFollowingFallbackToOneUnit(t *testing.T) {
	p := domain.DefaultParameters()
	s := configured(t, p)

	// risk = 50 * 0.02 = 1, risk per unit = 4: size rounds to 0, but one
	// unit at close 10 is affordable.
	intent, _ := s.OnBar(flatEnv(10, 1, 2, 50, 50))
	if intent.Type != domain.IntentOpenLong || intent.Size != 1 {
		t.Errorf("intent = %+v, want open long size 1", intent)
	}
}

func TestTrendFollowingClampsToAffordable(t *testing.T) {
	p := domain.DefaultParameters()
	s := configured(t, p)

	// Risk sizing wants 500 units but cash covers only 50 at close 10.
	intent, _ := s.OnBar(flatEnv(10, 1, 2, 500, 100000))
	if intent.Size != 50 {
		t.Errorf("size = %d, want 50 (max affordable)", intent.Size)
	}
}

func TestTrendFollowingSkipsWhenBroke(t *testing.T) {
	p := domain.DefaultParameters()
	s := configured(t, p)

	// Cannot afford one unit: no trade, no error.
	intent, err := s.OnBar(flatEnv(10, 1, 2, 5, 5))
	if err != nil {
		t.Fatal(err)
	}
	if intent.Type != domain.IntentNone {
		t.Errorf("intent = %+v, want none", intent)
	}
}

func TestTrendFollowingShortIsSymmetric(t *testing.T) {
	p := domain.DefaultParameters()
	s := configured(t, p)

	intent, _ := s.OnBar(flatEnv(10, -1, 2, 100000, 100000))
	if intent.Type != domain.IntentOpenShort {
		t.Fatalf("intent = %v, want open short", intent.Type)
	}
	if intent.Size != 500 {
		t.Errorf("short size = %d, want 500 (same sizing as long)", intent.Size)
	}
	if intent.StopPrice != 14 {
		t.Errorf("short stop = %f, want 14 (close + ATR*multiplier)", intent.StopPrice)
	}

	// Same affordability clamp as the long side.
	clamped, _ := s.OnBar(flatEnv(10, -1, 2, 500, 100000))
	if clamped.Size != 50 {
		t.Errorf("short clamped size = %d, want 50", clamped.Size)
	}
}

func TestTrendFollowingRequiresATR(t *testing.T) {
	s := configured(t, domain.DefaultParameters())
	env := flatEnv(10, 1, 0, 100000, 100000)
	env.ATRValid = false

	intent, _ := s.OnBar(env)
	if intent.Type != domain.IntentNone {
		t.Error("entry emitted while ATR undefined")
	}
}

func TestTrendFollowingPendingOrderBlocks(t *testing.T) {
	s := configured(t, domain.DefaultParameters())
	env := flatEnv(10, 1, 2, 100000, 100000)
	env.OrderPending = true

	intent, _ := s.OnBar(env)
	if intent.Type != domain.IntentNone {
		t.Error("decision emitted while an order is pending")
	}
}

func longEnv(close float64, cross int, atr float64, stop float64) strategy.Env {
	env := flatEnv(close, cross, atr, 100000, 100000)
	env.Position = domain.Position{
		Side:       domain.PositionLong,
		Size:       10,
		EntryPrice: 10,
		StopPrice:  stop,
	}
	return env
}

func TestTrendFollowingSignalExitBeforeStop(t *testing.T) {
	s := configured(t, domain.DefaultParameters())

	// Close is below the stop AND the crossover reversed: the signal exit
	// is evaluated first.
	intent, _ := s.OnBar(longEnv(5, -1, 2, 8))
	if intent.Type != domain.IntentClose {
		t.Fatalf("intent = %v, want close", intent.Type)
	}
	if want := "bearish crossover"; !strings.Contains(intent.Reason, want) {
		t.Errorf("exit reason = %q, want mention of %q", intent.Reason, want)
	}
}

func TestTrendFollowingTrailsAndStops(t *testing.T) {
	s := configured(t, domain.DefaultParameters())

	// Close 20, ATR 2, mult 2 -> candidate stop 16, above the current 8.
	intent, _ := s.OnBar(longEnv(20, 0, 2, 8))
	if intent.Type != domain.IntentAdjustStop || intent.StopPrice != 16 {
		t.Fatalf("intent = %+v, want adjust stop to 16", intent)
	}

	// Candidate below the current stop: never loosens, no intent.
	intent, _ = s.OnBar(longEnv(20, 0, 10, 18))
	if intent.Type != domain.IntentNone {
		t.Errorf("intent = %+v, want none (stop must not loosen)", intent)
	}

	// Close below the stop: stop exit.
	intent, _ = s.OnBar(longEnv(15, 0, 1, 18))
	if intent.Type != domain.IntentClose {
		t.Fatalf("intent = %v, want close", intent.Type)
	}
	if want := "trailing stop"; !strings.Contains(intent.Reason, want) {
		t.Errorf("exit reason = %q, want mention of %q", intent.Reason, want)
	}
}

func TestTrendFollowingShortTrailMirror(t *testing.T) {
	s := configured(t, domain.DefaultParameters())
	env := flatEnv(10, 0, 1, 100000, 100000)
	env.Position = domain.Position{
		Side:       domain.PositionShort,
		Size:       10,
		EntryPrice: 15,
		StopPrice:  17,
	}

	// Candidate = 10 + 1*2 = 12, below 17: ratchets down.
	intent, _ := s.OnBar(env)
	if intent.Type != domain.IntentAdjustStop || intent.StopPrice != 12 {
		t.Fatalf("intent = %+v, want adjust stop to 12", intent)
	}

	// Close above the stop: exit.
	env.Bar.Close = 18
	intent, _ = s.OnBar(env)
	if intent.Type != domain.IntentClose {
		t.Errorf("intent = %v, want close above short stop", intent.Type)
	}

	// Bullish crossover closes the short.
	env.Bar.Close = 10
	env.Cross = 1
	intent, _ = s.OnBar(env)
	if intent.Type != domain.IntentClose {
		t.Errorf("intent = %v, want signal close", intent.Type)
	}
}

func TestTrendFollowingInitRejectsBadParams(t *testing.T) {
	s := NewTrendFollowing()
	p := domain.DefaultParameters()
	p.FastPeriod = 40 // >= slow

	err := s.Init(p)
	var iperr *domain.InvalidParametersError
	if !errors.As(err, &iperr) {
		t.Fatalf("Init returned %T, want *InvalidParametersError", err)
	}
}

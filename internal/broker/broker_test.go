package broker

import (
	"math"
	"testing"
	"time"

	"github.com/wangchao9206/ai-quant/internal/domain"
)

func bar(day int, close float64) domain.Bar {
	return domain.Bar{
		Symbol:    "TEST",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:      close, High: close, Low: close, Close: close,
		Volume: 1000,
	}
}

func TestSimulatorLongRoundTrip(t *testing.T) {
	sim := NewSimulator(100000, 0.0001, 1)

	open := domain.OrderIntent{Type: domain.IntentOpenLong, Size: 10, StopPrice: 95, Reason: "entry"}
	if err := sim.Execute(open, bar(0, 100), 0); err != nil {
		t.Fatalf("open: %v", err)
	}

	pos := sim.Position()
	if pos.Side != domain.PositionLong || pos.Size != 10 {
		t.Fatalf("position = %+v, want long 10", pos)
	}
	wantCash := 100000 - 1000 - 0.1 // notional 10*100, commission 0.0001*1000
	if math.Abs(sim.Cash()-wantCash) > 1e-9 {
		t.Errorf("cash after open = %f, want %f", sim.Cash(), wantCash)
	}
	if math.Abs(sim.Equity(100)-(wantCash+1000)) > 1e-9 {
		t.Errorf("equity at entry = %f, want %f", sim.Equity(100), wantCash+1000)
	}

	closeIntent := domain.OrderIntent{Type: domain.IntentClose, Reason: "exit"}
	if err := sim.Execute(closeIntent, bar(3, 110), 3); err != nil {
		t.Fatalf("close: %v", err)
	}

	trades := sim.Trades()
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	tr := trades[0]
	if tr.GrossPnL != 100 {
		t.Errorf("gross pnl = %f, want 100", tr.GrossPnL)
	}
	wantNet := 100 - 0.1 - 0.11 // entry comm 0.1, exit comm 0.0001*1100
	if math.Abs(tr.NetPnL-wantNet) > 1e-9 {
		t.Errorf("net pnl = %f, want %f", tr.NetPnL, wantNet)
	}
	if tr.BarsHeld != 3 {
		t.Errorf("bars held = %d, want 3", tr.BarsHeld)
	}
	if tr.ReturnRate != 10 {
		t.Errorf("return rate = %f, want 10", tr.ReturnRate)
	}
	if sim.Position().Open() {
		t.Error("position should be flat after close")
	}

	// Invariant: net pnl equals final equity minus initial cash.
	if diff := sim.Equity(110) - 100000 - tr.NetPnL; math.Abs(diff) > 1e-9 {
		t.Errorf("equity delta %f != net pnl %f", sim.Equity(110)-100000, tr.NetPnL)
	}
}

func TestSimulatorShortCreditsNotional(t *testing.T) {
	sim := NewSimulator(50000, 0, 2)

	open := domain.OrderIntent{Type: domain.IntentOpenShort, Size: 5, StopPrice: 105, Reason: "entry"}
	if err := sim.Execute(open, bar(0, 100), 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	// Short open credits notional: 5 * 100 * 2 = 1000.
	if sim.Cash() != 51000 {
		t.Errorf("cash after short open = %f, want 51000", sim.Cash())
	}
	// Mark-to-market cancels the credit at the entry price.
	if sim.Equity(100) != 50000 {
		t.Errorf("equity at entry = %f, want 50000", sim.Equity(100))
	}

	if err := sim.Execute(domain.OrderIntent{Type: domain.IntentClose, Reason: "exit"}, bar(2, 90), 2); err != nil {
		t.Fatalf("close: %v", err)
	}
	tr := sim.Trades()[0]
	if tr.GrossPnL != 100 { // (100-90) * 5 * 2
		t.Errorf("short gross pnl = %f, want 100", tr.GrossPnL)
	}
	if tr.Direction != "short" {
		t.Errorf("direction = %q, want short", tr.Direction)
	}
	if sim.Cash() != 50100 {
		t.Errorf("cash after cover = %f, want 50100", sim.Cash())
	}
}

func TestSimulatorZeroSizeOpenIsNoop(t *testing.T) {
	sim := NewSimulator(1000, 0.0001, 1)
	err := sim.Execute(domain.OrderIntent{Type: domain.IntentOpenLong, Size: 0}, bar(0, 100), 0)
	if err != nil {
		t.Fatalf("zero-size open returned error: %v", err)
	}
	if sim.Position().Open() || sim.Cash() != 1000 {
		t.Error("zero-size open must not change broker state")
	}
}

func TestSimulatorStopOnlyTightens(t *testing.T) {
	sim := NewSimulator(100000, 0, 1)
	if err := sim.Execute(domain.OrderIntent{Type: domain.IntentOpenLong, Size: 1, StopPrice: 95}, bar(0, 100), 0); err != nil {
		t.Fatal(err)
	}

	// Raising the stop sticks.
	if err := sim.Execute(domain.OrderIntent{Type: domain.IntentAdjustStop, StopPrice: 98}, bar(1, 103), 1); err != nil {
		t.Fatal(err)
	}
	if sim.Position().StopPrice != 98 {
		t.Errorf("stop = %f, want 98", sim.Position().StopPrice)
	}

	// Lowering is ignored.
	if err := sim.Execute(domain.OrderIntent{Type: domain.IntentAdjustStop, StopPrice: 90}, bar(2, 101), 2); err != nil {
		t.Fatal(err)
	}
	if sim.Position().StopPrice != 98 {
		t.Errorf("stop loosened to %f, want 98", sim.Position().StopPrice)
	}
}

func TestSimulatorRejectsInconsistentIntents(t *testing.T) {
	sim := NewSimulator(100000, 0, 1)
	if err := sim.Execute(domain.OrderIntent{Type: domain.IntentClose}, bar(0, 100), 0); err == nil {
		t.Error("close with no position should error")
	}
	if err := sim.Execute(domain.OrderIntent{Type: domain.IntentOpenLong, Size: 1}, bar(0, 100), 0); err != nil {
		t.Fatal(err)
	}
	if err := sim.Execute(domain.OrderIntent{Type: domain.IntentOpenShort, Size: 1}, bar(1, 100), 1); err == nil {
		t.Error("second open should error while a position is held")
	}
}

// Package broker simulates order execution for backtests: fills, commission,
// cash accounting, and the closed-trade ledger.
package broker

import (
	"fmt"

	"github.com/wangchao9206/ai-quant/internal/domain"
)

// Simulator executes order intents against simulated cash and a single
// position. Fills happen at the deciding bar's close, a documented
// simplification that flatters reported returns relative to next-bar-open
// execution. Short opens credit the full notional to cash; there is no
// margin-call simulation.
type Simulator struct {
	cash           float64
	commissionRate float64 // fraction of notional
	multiplier     int     // contract multiplier, notional per unit per price point
	position       domain.Position
	trades         []domain.Trade
}

// NewSimulator creates a Simulator with the given starting cash, commission
// rate (fraction of notional per fill), and contract multiplier.
func NewSimulator(initialCash, commissionRate float64, contractMultiplier int) *Simulator {
	return &Simulator{
		cash:           initialCash,
		commissionRate: commissionRate,
		multiplier:     contractMultiplier,
	}
}

// Cash returns the current free cash.
func (b *Simulator) Cash() float64 { return b.cash }

// Position returns a copy of the current position.
func (b *Simulator) Position() domain.Position { return b.position }

// Trades returns the ledger of closed trades in exit-time order.
func (b *Simulator) Trades() []domain.Trade { return b.trades }

// Equity returns cash plus the position marked to the given price.
func (b *Simulator) Equity(markPrice float64) float64 {
	switch b.position.Side {
	case domain.PositionLong:
		return b.cash + b.notional(markPrice, b.position.Size)
	case domain.PositionShort:
		return b.cash - b.notional(markPrice, b.position.Size)
	default:
		return b.cash
	}
}

// Execute resolves one order intent at the bar's close. A zero-size open is
// a no-op, not an error; intents inconsistent with the position state are
// errors (the strategy contract allows one position at a time).
func (b *Simulator) Execute(intent domain.OrderIntent, bar domain.Bar, index int) error {
	switch intent.Type {
	case domain.IntentNone:
		return nil
	case domain.IntentOpenLong, domain.IntentOpenShort:
		return b.open(intent, bar, index)
	case domain.IntentClose:
		return b.close(intent, bar, index)
	case domain.IntentAdjustStop:
		return b.adjustStop(intent)
	default:
		return fmt.Errorf("unknown intent type %d", intent.Type)
	}
}

func (b *Simulator) open(intent domain.OrderIntent, bar domain.Bar, index int) error {
	if b.position.Open() {
		return fmt.Errorf("open intent with %s position already held", b.position.Side)
	}
	if intent.Size <= 0 {
		return nil // sized to zero, nothing to fill
	}

	notional := b.notional(bar.Close, intent.Size)
	commission := notional * b.commissionRate

	side := domain.PositionLong
	if intent.Type == domain.IntentOpenShort {
		side = domain.PositionShort
		b.cash += notional - commission
	} else {
		b.cash -= notional + commission
	}

	b.position = domain.Position{
		Side:            side,
		Size:            intent.Size,
		EntryPrice:      bar.Close,
		StopPrice:       intent.StopPrice,
		EntryReason:     intent.Reason,
		EntryTime:       bar.Timestamp,
		EntryIndex:      index,
		EntryCommission: commission,
	}
	return nil
}

func (b *Simulator) close(intent domain.OrderIntent, bar domain.Bar, index int) error {
	pos := b.position
	if !pos.Open() {
		return fmt.Errorf("close intent with no open position")
	}

	exitNotional := b.notional(bar.Close, pos.Size)
	commission := exitNotional * b.commissionRate

	var gross float64
	if pos.Side == domain.PositionLong {
		b.cash += exitNotional - commission
		gross = (bar.Close - pos.EntryPrice) * float64(pos.Size) * float64(b.multiplier)
	} else {
		b.cash -= exitNotional + commission
		gross = (pos.EntryPrice - bar.Close) * float64(pos.Size) * float64(b.multiplier)
	}

	totalCommission := pos.EntryCommission + commission
	entryNotional := b.notional(pos.EntryPrice, pos.Size)

	returnRate := 0.0
	if entryNotional != 0 {
		returnRate = gross / entryNotional * 100
	}

	b.trades = append(b.trades, domain.Trade{
		EntryTime:   pos.EntryTime,
		ExitTime:    bar.Timestamp,
		Direction:   string(pos.Side),
		Size:        pos.Size,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   bar.Close,
		GrossPnL:    gross,
		NetPnL:      gross - totalCommission,
		Commission:  totalCommission,
		ReturnRate:  returnRate,
		BarsHeld:    index - pos.EntryIndex,
		EntryReason: pos.EntryReason,
		ExitReason:  intent.Reason,
	})

	b.position = domain.Position{}
	return nil
}

// adjustStop moves the stop of the open position. The stop only tightens: a
// long stop never drops, a short stop never rises.
func (b *Simulator) adjustStop(intent domain.OrderIntent) error {
	switch b.position.Side {
	case domain.PositionLong:
		if intent.StopPrice > b.position.StopPrice {
			b.position.StopPrice = intent.StopPrice
		}
	case domain.PositionShort:
		if intent.StopPrice < b.position.StopPrice {
			b.position.StopPrice = intent.StopPrice
		}
	default:
		return fmt.Errorf("stop adjustment with no open position")
	}
	return nil
}

func (b *Simulator) notional(price float64, size int) float64 {
	return price * float64(size) * float64(b.multiplier)
}

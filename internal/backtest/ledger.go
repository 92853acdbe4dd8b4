// Package backtest implements the non-interactive and interactive replay
// runners of spec §4.8, driving the simulated executor from a sorted
// segment stream and bookkeeping the resulting fills.
package backtest

import (
	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/symbolmap"
	"github.com/rishav/floxcore/internal/types"
)

// Position is one symbol's net holding: Quantity is signed (positive long,
// negative short), AvgPrice is the weighted average entry price of the
// currently open side.
type Position struct {
	Quantity decimal.Quantity
	AvgPrice decimal.Price
}

// Ledger accumulates positions and realized PnL purely from an executor's
// fill log. Unlike the teacher's ClearingHouse (internal/settlement/
// clearing.go), which nets trades into T+0/T+1/T+2 settlement instructions
// against per-account margin, a backtest has no counterparty or settlement
// cycle to model — spec.md's Non-goals exclude margin/netting/clearing
// entirely, so Ledger keeps only the part of that concept a backtest
// actually needs: a running position and a running realized-PnL figure per
// symbol, replayed straight off the fill stream.
type Ledger struct {
	positions *symbolmap.Map[Position]
	realized  *symbolmap.Map[decimal.Volume]
}

// NewLedger constructs an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		positions: symbolmap.New[Position](),
		realized:  symbolmap.New[decimal.Volume](),
	}
}

// OnFill applies one fill to the ledger's position and realized-PnL state
// for its symbol.
func (l *Ledger) OnFill(f types.Fill) {
	pos := l.positions.Get(f.Symbol)
	delta := signedQty(f.Side, f.Quantity)
	newPos, realizedDelta := applyFill(*pos, f.Price, delta)
	*pos = newPos

	if realizedDelta != 0 {
		r := l.realized.Get(f.Symbol)
		*r = r.Add(realizedDelta)
	}
}

// Position returns symbol's current net position.
func (l *Ledger) Position(symbol types.SymbolId) Position {
	return *l.positions.Get(symbol)
}

// RealizedPnL returns symbol's running realized PnL.
func (l *Ledger) RealizedPnL(symbol types.SymbolId) decimal.Volume {
	return *l.realized.Get(symbol)
}

// TotalRealizedPnL sums realized PnL across every symbol the ledger has
// seen a fill for.
func (l *Ledger) TotalRealizedPnL() decimal.Volume {
	var total decimal.Volume
	l.realized.ForEach(func(_ types.SymbolId, v *decimal.Volume) {
		total = total.Add(*v)
	})
	return total
}

func signedQty(side types.Side, qty decimal.Quantity) decimal.Quantity {
	if side == types.SideSell {
		return -qty
	}
	return qty
}

func absQty(q decimal.Quantity) decimal.Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// applyFill folds one signed fill quantity into pos, returning the updated
// position and any realized PnL booked by closing (or flipping) an
// existing position. A fill that extends a position (same sign, or opening
// from flat) only moves the weighted-average entry price; a fill on the
// opposite sign closes some or all of the existing position at a realized
// gain/loss, and any quantity beyond what was open starts a new position on
// the other side at the fill price.
func applyFill(pos Position, price decimal.Price, signed decimal.Quantity) (Position, decimal.Volume) {
	if pos.Quantity == 0 || sameSign(pos.Quantity, signed) {
		return extendPosition(pos, price, signed), 0
	}

	closing := absQty(signed)
	if closing > absQty(pos.Quantity) {
		closing = absQty(pos.Quantity)
	}

	var pnlPerUnit decimal.Price
	if pos.Quantity > 0 {
		pnlPerUnit = price.Sub(pos.AvgPrice)
	} else {
		pnlPerUnit = pos.AvgPrice.Sub(price)
	}
	realized := pnlPerUnit.Mul(closing)

	remaining := pos.Quantity + signed
	if remaining == 0 {
		return Position{}, realized
	}
	if sameSign(remaining, pos.Quantity) {
		// Partially closed; average price of the remaining side is unchanged.
		return Position{Quantity: remaining, AvgPrice: pos.AvgPrice}, realized
	}
	// Flipped through flat: the excess opens a fresh position at price.
	return Position{Quantity: remaining, AvgPrice: price}, realized
}

func sameSign(a, b decimal.Quantity) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func extendPosition(pos Position, price decimal.Price, signed decimal.Quantity) Position {
	newQty := pos.Quantity + signed
	if newQty == 0 {
		return Position{}
	}
	existingCost := pos.AvgPrice.Mul(absQty(pos.Quantity))
	addedCost := price.Mul(absQty(signed))
	avg := existingCost.Add(addedCost).DivQuantity(absQty(newQty))
	return Position{Quantity: newQty, AvgPrice: avg}
}

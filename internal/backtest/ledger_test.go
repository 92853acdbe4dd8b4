package backtest

import (
	"testing"

	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/types"
)

func fill(symbol types.SymbolId, side types.Side, price, qty int64) types.Fill {
	return types.Fill{
		Symbol:   symbol,
		Side:     side,
		Price:    decimal.NewPrice(price, 0),
		Quantity: decimal.Quantity(qty * decimal.Scale),
	}
}

func TestLedgerOpensAndExtendsLongPosition(t *testing.T) {
	l := NewLedger()
	l.OnFill(fill(1, types.SideBuy, 100, 10))
	l.OnFill(fill(1, types.SideBuy, 110, 10))

	pos := l.Position(1)
	if pos.Quantity != decimal.Quantity(20*decimal.Scale) {
		t.Fatalf("Quantity = %v, want 20", pos.Quantity.Float64())
	}
	if pos.AvgPrice != decimal.NewPrice(105, 0) {
		t.Fatalf("AvgPrice = %v, want 105", pos.AvgPrice.Float64())
	}
	if l.RealizedPnL(1) != 0 {
		t.Fatalf("RealizedPnL = %v, want 0", l.RealizedPnL(1).Float64())
	}
}

func TestLedgerRealizesPnLOnPartialClose(t *testing.T) {
	l := NewLedger()
	l.OnFill(fill(1, types.SideBuy, 100, 10))
	l.OnFill(fill(1, types.SideSell, 120, 4))

	pos := l.Position(1)
	if pos.Quantity != decimal.Quantity(6*decimal.Scale) {
		t.Fatalf("Quantity = %v, want 6", pos.Quantity.Float64())
	}
	if pos.AvgPrice != decimal.NewPrice(100, 0) {
		t.Fatalf("AvgPrice after partial close = %v, want 100", pos.AvgPrice.Float64())
	}
	want := decimal.NewPrice(20, 0).Mul(decimal.Quantity(4 * decimal.Scale))
	if l.RealizedPnL(1) != want {
		t.Fatalf("RealizedPnL = %v, want %v", l.RealizedPnL(1).Float64(), want.Float64())
	}
}

func TestLedgerFlipsThroughFlat(t *testing.T) {
	l := NewLedger()
	l.OnFill(fill(1, types.SideBuy, 100, 5))
	l.OnFill(fill(1, types.SideSell, 90, 12))

	pos := l.Position(1)
	if pos.Quantity != decimal.Quantity(-7*decimal.Scale) {
		t.Fatalf("Quantity = %v, want -7 (flipped short)", pos.Quantity.Float64())
	}
	if pos.AvgPrice != decimal.NewPrice(90, 0) {
		t.Fatalf("AvgPrice after flip = %v, want 90 (fill price)", pos.AvgPrice.Float64())
	}
	wantLoss := decimal.NewPrice(10, 0).Mul(decimal.Quantity(5 * decimal.Scale))
	if l.RealizedPnL(1) != -wantLoss {
		t.Fatalf("RealizedPnL = %v, want %v", l.RealizedPnL(1).Float64(), (-wantLoss).Float64())
	}
}

func TestLedgerClosingEntireShortZeroesPosition(t *testing.T) {
	l := NewLedger()
	l.OnFill(fill(1, types.SideSell, 100, 10))
	l.OnFill(fill(1, types.SideBuy, 80, 10))

	pos := l.Position(1)
	if pos.Quantity != 0 {
		t.Fatalf("Quantity = %v, want 0", pos.Quantity.Float64())
	}
	want := decimal.NewPrice(20, 0).Mul(decimal.Quantity(10 * decimal.Scale))
	if l.RealizedPnL(1) != want {
		t.Fatalf("RealizedPnL = %v, want %v", l.RealizedPnL(1).Float64(), want.Float64())
	}
}

func TestLedgerTotalRealizedPnLSumsAcrossSymbols(t *testing.T) {
	l := NewLedger()
	l.OnFill(fill(1, types.SideBuy, 100, 10))
	l.OnFill(fill(1, types.SideSell, 110, 10))
	l.OnFill(fill(2, types.SideBuy, 50, 4))
	l.OnFill(fill(2, types.SideSell, 40, 4))

	want := decimal.NewPrice(10, 0).Mul(decimal.Quantity(10*decimal.Scale)) -
		decimal.NewPrice(10, 0).Mul(decimal.Quantity(4*decimal.Scale))
	if l.TotalRealizedPnL() != want {
		t.Fatalf("TotalRealizedPnL = %v, want %v", l.TotalRealizedPnL().Float64(), want.Float64())
	}
}

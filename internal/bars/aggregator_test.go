package bars

import (
	"testing"

	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/types"
)

func mkTrade(symbol types.SymbolId, price, qty int64, ts int64, isBuy bool) types.Trade {
	return types.Trade{
		Symbol:       symbol,
		Price:        decimal.NewPrice(price, 0),
		Quantity:     decimal.Quantity(qty * decimal.Scale),
		IsBuy:        isBuy,
		ExchangeTsNs: ts,
	}
}

func TestTimeBarClosesOnInterval(t *testing.T) {
	var emitted []types.BarEvent
	tf := types.NewTimeframeId(types.BarKindTime, 1000)
	agg := NewAggregator(NewTimePolicy(1000), tf, func(ev types.BarEvent) { emitted = append(emitted, ev) })

	agg.OnTrade(mkTrade(1, 100, 1, 0, true))
	agg.OnTrade(mkTrade(1, 105, 1, 500, true))
	agg.OnTrade(mkTrade(1, 110, 1, 1200, true)) // crosses the 1000ns boundary, should close prior bar

	if len(emitted) != 1 {
		t.Fatalf("expected 1 emitted bar, got %d", len(emitted))
	}
	bar := emitted[0].Bar
	if bar.Open != decimal.NewPrice(100, 0) || bar.High != decimal.NewPrice(105, 0) || bar.Close != decimal.NewPrice(105, 0) {
		t.Fatalf("unexpected bar: %+v", bar)
	}
	if bar.TradeCount != 2 {
		t.Fatalf("TradeCount = %d, want 2", bar.TradeCount)
	}
}

func TestTickBarClosesAfterN(t *testing.T) {
	var emitted []types.BarEvent
	tf := types.NewTimeframeId(types.BarKindTick, 3)
	agg := NewAggregator(NewTickPolicy(3), tf, func(ev types.BarEvent) { emitted = append(emitted, ev) })

	for i := int64(0); i < 4; i++ {
		agg.OnTrade(mkTrade(1, 100+i, 1, i, true))
	}
	if len(emitted) != 1 {
		t.Fatalf("expected 1 emitted bar after 4 trades with N=3, got %d", len(emitted))
	}
	if emitted[0].Bar.TradeCount != 3 {
		t.Fatalf("TradeCount = %d, want 3", emitted[0].Bar.TradeCount)
	}
}

func TestStopEmitsForcedBars(t *testing.T) {
	var emitted []types.BarEvent
	tf := types.NewTimeframeId(types.BarKindTime, 1_000_000)
	agg := NewAggregator(NewTimePolicy(1_000_000), tf, func(ev types.BarEvent) { emitted = append(emitted, ev) })

	agg.OnTrade(mkTrade(1, 100, 1, 0, true))
	agg.Stop()

	if len(emitted) != 1 {
		t.Fatalf("expected 1 forced bar, got %d", len(emitted))
	}
	if emitted[0].Bar.CloseReason != types.CloseReasonForced {
		t.Fatalf("CloseReason = %v, want Forced", emitted[0].Bar.CloseReason)
	}
}

func TestMultiTimeframeFansOutToAllSlots(t *testing.T) {
	var tickEmitted, timeEmitted int
	m := NewMultiTimeframeAggregator()
	m.AddTimeframe(NewTickPolicy(2), types.NewTimeframeId(types.BarKindTick, 2), func(types.BarEvent) { tickEmitted++ })
	m.AddTimeframe(NewTimePolicy(1000), types.NewTimeframeId(types.BarKindTime, 1000), func(types.BarEvent) { timeEmitted++ })

	m.OnTrade(mkTrade(1, 100, 1, 0, true))
	m.OnTrade(mkTrade(1, 101, 1, 500, true))
	m.OnTrade(mkTrade(1, 102, 1, 1500, true))

	if tickEmitted != 1 {
		t.Fatalf("tickEmitted = %d, want 1", tickEmitted)
	}
	if timeEmitted != 1 {
		t.Fatalf("timeEmitted = %d, want 1", timeEmitted)
	}
}

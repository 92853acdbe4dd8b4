package bars

import (
	"testing"

	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/types"
)

func mkBar(close int64) types.Bar {
	return types.Bar{Close: decimal.NewPrice(close, 0)}
}

func TestBarMatrixPushAndAt(t *testing.T) {
	m := NewBarMatrix(4)
	tf := types.NewTimeframeId(types.BarKindTime, 60)

	m.Push(1, tf, mkBar(100))
	m.Push(1, tf, mkBar(101))
	m.Push(1, tf, mkBar(102))

	newest, ok := m.At(1, tf, 0)
	if !ok || newest.Close != decimal.NewPrice(102, 0) {
		t.Fatalf("At(0) = %+v, %v, want close 102", newest, ok)
	}
	prev, ok := m.At(1, tf, 1)
	if !ok || prev.Close != decimal.NewPrice(101, 0) {
		t.Fatalf("At(1) = %+v, %v, want close 101", prev, ok)
	}
	if _, ok := m.At(1, tf, 5); ok {
		t.Fatal("At(5) should report !ok with only 3 bars pushed")
	}
}

func TestBarMatrixWarmupNewestLast(t *testing.T) {
	m := NewBarMatrix(4)
	tf := types.NewTimeframeId(types.BarKindTime, 60)
	m.Warmup(1, tf, []types.Bar{mkBar(1), mkBar(2), mkBar(3)})

	newest, ok := m.At(1, tf, 0)
	if !ok || newest.Close != decimal.NewPrice(3, 0) {
		t.Fatalf("newest after warmup = %+v, want close 3", newest)
	}
}

func TestBarMatrixConsumeFromBus(t *testing.T) {
	m := NewBarMatrix(4)
	tf := types.NewTimeframeId(types.BarKindTick, 10)
	ev := types.BarEvent{Symbol: 2, BarKind: types.BarKindTick, BarParam: 10, Bar: mkBar(50)}
	m.Consume(0, &ev)

	bar, ok := m.At(2, tf, 0)
	if !ok || bar.Close != decimal.NewPrice(50, 0) {
		t.Fatalf("Consume did not populate matrix: %+v, %v", bar, ok)
	}
}

package orderbook

import (
	"testing"

	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/types"
)

func tick(whole int64) decimal.Price { return decimal.NewPrice(whole, 0) }

func TestEmptyBook(t *testing.T) {
	b := New(1, DefaultConfig(tick(1)))
	if _, ok := b.BestBid(); ok {
		t.Fatal("empty book BestBid should report !ok")
	}
	if _, ok := b.BestAsk(); ok {
		t.Fatal("empty book BestAsk should report !ok")
	}
	if _, ok := b.Mid(); ok {
		t.Fatal("empty book Mid should report !ok")
	}
}

func TestSnapshotSeedsBestBidAsk(t *testing.T) {
	b := New(1, DefaultConfig(tick(1)))
	u := &types.BookUpdate{
		Kind: types.BookUpdateSnapshot,
		Bids: []types.BookLevel{
			{Price: tick(99), Quantity: decimal.Quantity(10 * decimal.Scale)},
			{Price: tick(98), Quantity: decimal.Quantity(5 * decimal.Scale)},
		},
		Asks: []types.BookLevel{
			{Price: tick(101), Quantity: decimal.Quantity(8 * decimal.Scale)},
			{Price: tick(102), Quantity: decimal.Quantity(3 * decimal.Scale)},
		},
	}
	if err := b.Apply(u); err != nil {
		t.Fatal(err)
	}
	bid, ok := b.BestBid()
	if !ok || bid != tick(99) {
		t.Fatalf("BestBid = %v, %v, want 99", bid, ok)
	}
	ask, ok := b.BestAsk()
	if !ok || ask != tick(101) {
		t.Fatalf("BestAsk = %v, %v, want 101", ask, ok)
	}
	if crossed := b.IsCrossed(); crossed {
		t.Fatal("book should not be crossed")
	}
}

func TestDeltaUpdatesAndClearsLevel(t *testing.T) {
	b := New(1, DefaultConfig(tick(1)))
	snap := &types.BookUpdate{
		Kind: types.BookUpdateSnapshot,
		Bids: []types.BookLevel{{Price: tick(100), Quantity: decimal.Quantity(10 * decimal.Scale)}},
		Asks: []types.BookLevel{{Price: tick(101), Quantity: decimal.Quantity(10 * decimal.Scale)}},
	}
	if err := b.Apply(snap); err != nil {
		t.Fatal(err)
	}

	delta := &types.BookUpdate{
		Kind: types.BookUpdateDelta,
		Bids: []types.BookLevel{{Price: tick(100), Quantity: 0}, {Price: tick(99), Quantity: decimal.Quantity(4 * decimal.Scale)}},
	}
	if err := b.Apply(delta); err != nil {
		t.Fatal(err)
	}
	bid, ok := b.BestBid()
	if !ok || bid != tick(99) {
		t.Fatalf("BestBid after clearing top level = %v, %v, want 99", bid, ok)
	}
}

func TestDeltaOutsideGridIsFatal(t *testing.T) {
	cfg := Config{TickSize: tick(1), MaxLevels: 16}
	b := New(1, cfg)
	if err := b.Apply(&types.BookUpdate{
		Kind: types.BookUpdateSnapshot,
		Bids: []types.BookLevel{{Price: tick(100), Quantity: decimal.Quantity(decimal.Scale)}},
	}); err != nil {
		t.Fatal(err)
	}
	farDelta := &types.BookUpdate{
		Kind: types.BookUpdateDelta,
		Bids: []types.BookLevel{{Price: tick(100000), Quantity: decimal.Quantity(decimal.Scale)}},
	}
	if err := b.Apply(farDelta); err != ErrOutOfGrid {
		t.Fatalf("expected ErrOutOfGrid, got %v", err)
	}
}

func TestConsumeAsksWalksMultipleLevels(t *testing.T) {
	b := New(1, DefaultConfig(tick(1)))
	snap := &types.BookUpdate{
		Kind: types.BookUpdateSnapshot,
		Bids: []types.BookLevel{{Price: tick(99), Quantity: decimal.Quantity(decimal.Scale)}},
		Asks: []types.BookLevel{
			{Price: tick(101), Quantity: decimal.Quantity(5 * decimal.Scale)},
			{Price: tick(102), Quantity: decimal.Quantity(5 * decimal.Scale)},
		},
	}
	if err := b.Apply(snap); err != nil {
		t.Fatal(err)
	}
	filled, notional := b.ConsumeAsks(decimal.Quantity(8 * decimal.Scale))
	if filled != decimal.Quantity(8*decimal.Scale) {
		t.Fatalf("filled = %v, want 8", filled.Float64())
	}
	// 5 @ 101 + 3 @ 102 = 505 + 306 = 811
	want := decimal.Volume(811 * decimal.Scale)
	if notional != want {
		t.Fatalf("notional = %v, want %v", notional.Float64(), want.Float64())
	}
}

func TestSpreadAndMid(t *testing.T) {
	b := New(1, DefaultConfig(tick(1)))
	if err := b.Apply(&types.BookUpdate{
		Kind: types.BookUpdateSnapshot,
		Bids: []types.BookLevel{{Price: tick(100), Quantity: decimal.Quantity(decimal.Scale)}},
		Asks: []types.BookLevel{{Price: tick(102), Quantity: decimal.Quantity(decimal.Scale)}},
	}); err != nil {
		t.Fatal(err)
	}
	spread, ok := b.Spread()
	if !ok || spread != tick(2) {
		t.Fatalf("Spread = %v, %v, want 2", spread, ok)
	}
	mid, ok := b.Mid()
	if !ok || mid != tick(101) {
		t.Fatalf("Mid = %v, %v, want 101", mid, ok)
	}
}

func TestBidAskLevelsOrdering(t *testing.T) {
	b := New(1, DefaultConfig(tick(1)))
	if err := b.Apply(&types.BookUpdate{
		Kind: types.BookUpdateSnapshot,
		Bids: []types.BookLevel{
			{Price: tick(98), Quantity: decimal.Quantity(decimal.Scale)},
			{Price: tick(100), Quantity: decimal.Quantity(decimal.Scale)},
			{Price: tick(99), Quantity: decimal.Quantity(decimal.Scale)},
		},
		Asks: []types.BookLevel{
			{Price: tick(103), Quantity: decimal.Quantity(decimal.Scale)},
			{Price: tick(101), Quantity: decimal.Quantity(decimal.Scale)},
			{Price: tick(102), Quantity: decimal.Quantity(decimal.Scale)},
		},
	}); err != nil {
		t.Fatal(err)
	}
	bids := b.BidLevels(10)
	if len(bids) != 3 || bids[0].Price != tick(100) || bids[2].Price != tick(98) {
		t.Fatalf("bid levels not descending: %+v", bids)
	}
	asks := b.AskLevels(10)
	if len(asks) != 3 || asks[0].Price != tick(101) || asks[2].Price != tick(103) {
		t.Fatalf("ask levels not ascending: %+v", asks)
	}
}

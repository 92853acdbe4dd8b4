// Package tests exercises floxcore end to end: the broadcast bus and pool
// feeding an indexed order book and bar aggregator, the simulated executor
// matching every order type against that book, the backtest runner driving
// all of it from a segment log, and the segment writer/reader round trip
// that produces the log in the first place.
package tests

import (
	"os"
	"testing"

	"github.com/rishav/floxcore/internal/backtest"
	"github.com/rishav/floxcore/internal/bars"
	"github.com/rishav/floxcore/internal/bus"
	"github.com/rishav/floxcore/internal/clock"
	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/executor"
	"github.com/rishav/floxcore/internal/feed"
	"github.com/rishav/floxcore/internal/orderbook"
	"github.com/rishav/floxcore/internal/segment"
	"github.com/rishav/floxcore/internal/types"
)

// ----------------------------------------------------------------------
// Scenario: broadcast bus fan-out with no loss and strict FIFO delivery.
// ----------------------------------------------------------------------

func TestBusDeliversEveryTradeInOrderToEveryConsumer(t *testing.T) {
	b, err := bus.New[types.TradeEvent](bus.Config{Capacity: 64, MaxConsumers: 4, DrainOnStop: true})
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}

	var got1, got2 []decimal.Price
	c1 := recordingSubscriber(func(_ int64, ev *types.TradeEvent) { got1 = append(got1, ev.Trade.Price) })
	c2 := recordingSubscriber(func(_ int64, ev *types.TradeEvent) { got2 = append(got2, ev.Trade.Price) })

	if err := b.Subscribe(c1, true, bus.ComponentStrategy); err != nil {
		t.Fatalf("subscribe c1: %v", err)
	}
	if err := b.Subscribe(c2, true, bus.ComponentRisk); err != nil {
		t.Fatalf("subscribe c2: %v", err)
	}
	b.Start()

	prices := []decimal.Price{decimal.NewPrice(100, 0), decimal.NewPrice(101, 0), decimal.NewPrice(99, 0)}
	var lastSeq int64
	for _, p := range prices {
		seq, err := b.Publish(types.TradeEvent{Trade: types.Trade{Symbol: 1, Price: p}})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		lastSeq = seq
	}
	b.WaitConsumed(lastSeq)
	b.Stop()

	for _, got := range [][]decimal.Price{got1, got2} {
		if len(got) != len(prices) {
			t.Fatalf("consumer saw %d trades, want %d", len(got), len(prices))
		}
		for i, p := range prices {
			if got[i] != p {
				t.Fatalf("trade %d: got %v, want %v", i, got[i].Float64(), p.Float64())
			}
		}
	}
}

type recordingSubscriber func(int64, *types.TradeEvent)

func (f recordingSubscriber) Consume(seq int64, ev *types.TradeEvent) { f(seq, ev) }

// ----------------------------------------------------------------------
// Scenario: pool handle lifetime — Clear only runs once the last clone is
// released, and a released slot is reusable.
// ----------------------------------------------------------------------

func TestPoolHandleReleasesOnlyAfterEveryCloneReleased(t *testing.T) {
	p := bus.NewPool[*types.BookUpdate](1, func() *types.BookUpdate { return &types.BookUpdate{} })

	h, ok := p.Acquire()
	if !ok {
		t.Fatal("expected a free slot")
	}
	h.Get().Symbol = 7

	clone := h.Clone()
	if clone.RefCount() != 2 {
		t.Fatalf("refcount after clone = %d, want 2", clone.RefCount())
	}

	h.Release()
	if clone.Get().Symbol != 7 {
		t.Fatal("slot cleared while a clone was still outstanding")
	}

	clone.Release()
	if _, ok := p.Acquire(); !ok {
		t.Fatal("expected the slot to be free again after the last release")
	}
}

// ----------------------------------------------------------------------
// Scenario: indexed order book applies a snapshot then a delta and reports
// best bid/ask consistent with the levels just set; an out-of-grid delta
// is rejected rather than silently dropped.
// ----------------------------------------------------------------------

func TestOrderBookSnapshotThenDeltaTracksBestBidAsk(t *testing.T) {
	book := orderbook.New(1, orderbook.DefaultConfig(decimal.NewPrice(0, 1_000_000)))

	snap := types.BookUpdate{
		Symbol: 1,
		Kind:   types.BookUpdateSnapshot,
		Bids:   []types.BookLevel{{Price: decimal.NewPrice(100, 0), Quantity: decimal.Quantity(10 * decimal.Scale)}},
		Asks:   []types.BookLevel{{Price: decimal.NewPrice(101, 0), Quantity: decimal.Quantity(5 * decimal.Scale)}},
	}
	if err := book.Apply(&snap); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}

	bid, ok := book.BestBid()
	if !ok || bid != decimal.NewPrice(100, 0) {
		t.Fatalf("best bid = %v, ok=%v", bid.Float64(), ok)
	}
	ask, ok := book.BestAsk()
	if !ok || ask != decimal.NewPrice(101, 0) {
		t.Fatalf("best ask = %v, ok=%v", ask.Float64(), ok)
	}

	delta := types.BookUpdate{
		Symbol: 1,
		Kind:   types.BookUpdateDelta,
		Bids:   []types.BookLevel{{Price: decimal.NewPrice(100, 50_000_000), Quantity: decimal.Quantity(3 * decimal.Scale)}},
	}
	if err := book.Apply(&delta); err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	bid, _ = book.BestBid()
	if bid != decimal.NewPrice(100, 50_000_000) {
		t.Fatalf("best bid after delta = %v, want 100.5", bid.Float64())
	}

	farDelta := types.BookUpdate{
		Symbol: 1,
		Kind:   types.BookUpdateDelta,
		Bids:   []types.BookLevel{{Price: decimal.NewPrice(1_000_000, 0), Quantity: decimal.Quantity(1 * decimal.Scale)}},
	}
	if err := book.Apply(&farDelta); err != orderbook.ErrOutOfGrid {
		t.Fatalf("expected ErrOutOfGrid for a far delta, got %v", err)
	}
}

// ----------------------------------------------------------------------
// Scenario: time-bar aggregator closes a bar on threshold and reports
// correct OHLC.
// ----------------------------------------------------------------------

func TestTimeBarAggregatorEmitsCorrectOHLC(t *testing.T) {
	var emitted []types.BarEvent
	agg := bars.NewAggregator(bars.NewTimePolicy(1_000_000_000), 1, func(ev types.BarEvent) {
		emitted = append(emitted, ev)
	})

	trades := []types.Trade{
		{Symbol: 1, Price: decimal.NewPrice(100, 0), Quantity: decimal.Quantity(1 * decimal.Scale), ExchangeTsNs: 0},
		{Symbol: 1, Price: decimal.NewPrice(102, 0), Quantity: decimal.Quantity(1 * decimal.Scale), ExchangeTsNs: 500_000_000},
		{Symbol: 1, Price: decimal.NewPrice(98, 0), Quantity: decimal.Quantity(1 * decimal.Scale), ExchangeTsNs: 900_000_000},
		// crosses the 1s boundary: closes the first bar.
		{Symbol: 1, Price: decimal.NewPrice(105, 0), Quantity: decimal.Quantity(1 * decimal.Scale), ExchangeTsNs: 1_200_000_000},
	}
	for _, tr := range trades {
		agg.OnTrade(tr)
	}

	if len(emitted) != 1 {
		t.Fatalf("emitted %d bars, want 1", len(emitted))
	}
	bar := emitted[0].Bar
	if bar.Open != decimal.NewPrice(100, 0) || bar.High != decimal.NewPrice(102, 0) ||
		bar.Low != decimal.NewPrice(98, 0) || bar.Close != decimal.NewPrice(98, 0) {
		t.Fatalf("bar OHLC = %+v, want open=100 high=102 low=98 close=98", bar)
	}
}

// ----------------------------------------------------------------------
// Scenario: limit order resting then filled by an opposing trade, plus an
// OCO pair where filling one leg cancels the other.
// ----------------------------------------------------------------------

func newExec(t *testing.T) (*executor.Executor, *clock.Simulated) {
	t.Helper()
	clk := clock.NewSimulated(0)
	return executor.New(clk, types.NoopExecutionListener{}), clk
}

func TestLimitOrderRestsThenFillsOnBookUpdate(t *testing.T) {
	exec, _ := newExec(t)

	order := &types.Order{Symbol: 1, Side: types.SideBuy, Type: types.OrderTypeLimit,
		Price: decimal.NewPrice(100, 0), Quantity: decimal.Quantity(10 * decimal.Scale)}
	exec.Submit(order)

	exec.OnBookUpdate(1, decimal.NewPrice(99, 0), decimal.NewPrice(100, 0), true, true)

	if len(exec.Fills()) != 1 {
		t.Fatalf("expected 1 fill once the ask touches the resting bid, got %d", len(exec.Fills()))
	}
	if exec.Fills()[0].Price != decimal.NewPrice(100, 0) {
		t.Fatalf("fill price = %v, want 100", exec.Fills()[0].Price.Float64())
	}
}

func TestOCOFillOfOneLegCancelsTheOther(t *testing.T) {
	exec, _ := newExec(t)

	stopLoss := &types.Order{Symbol: 1, Side: types.SideSell, Type: types.OrderTypeStopMarket,
		TriggerPrice: decimal.NewPrice(90, 0), Quantity: decimal.Quantity(10 * decimal.Scale)}
	takeProfit := &types.Order{Symbol: 1, Side: types.SideSell, Type: types.OrderTypeLimit,
		Price: decimal.NewPrice(110, 0), Quantity: decimal.Quantity(10 * decimal.Scale)}
	exec.SubmitOCO(stopLoss, takeProfit)

	exec.OnBookUpdate(1, decimal.NewPrice(110, 0), decimal.NewPrice(111, 0), true, true)
	exec.OnTrade(types.Trade{Symbol: 1, Price: decimal.NewPrice(110, 0), Quantity: decimal.Quantity(10 * decimal.Scale)})

	if len(exec.Fills()) != 1 {
		t.Fatalf("expected exactly one OCO leg to fill, got %d fills", len(exec.Fills()))
	}
	if exec.CancelOrder(stopLoss.ID) {
		t.Fatal("the stop-loss leg should already be canceled by the OCO fill, not still live")
	}
}

// ----------------------------------------------------------------------
// Scenario: segment writer/reader round trip preserves every event.
// ----------------------------------------------------------------------

func TestSegmentWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := segment.NewWriter(segment.DefaultWriterConfig(dir))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	want := []segment.Event{
		{Kind: segment.FrameTypeTrade, Trade: types.Trade{Symbol: 1, Price: decimal.NewPrice(100, 0), Quantity: decimal.Quantity(1 * decimal.Scale), ExchangeTsNs: 1}},
		{Kind: segment.FrameTypeTrade, Trade: types.Trade{Symbol: 1, Price: decimal.NewPrice(101, 0), Quantity: decimal.Quantity(2 * decimal.Scale), ExchangeTsNs: 2}},
		{Kind: segment.FrameTypeBookUpdate, Book: types.BookUpdate{
			Symbol: 1, Kind: types.BookUpdateSnapshot, ExchangeTsNs: 3,
			Bids: []types.BookLevel{{Price: decimal.NewPrice(99, 0), Quantity: decimal.Quantity(5 * decimal.Scale)}},
		}},
	}
	for _, ev := range want {
		if err := w.Append(ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected at least one segment file, err=%v entries=%v", err, entries)
	}

	dr, err := segment.OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	var got []segment.Event
	if err := dr.ForEach(segment.DefaultForEachOpts(), func(ev segment.Event) bool {
		got = append(got, ev)
		return true
	}); err != nil {
		t.Fatalf("ForEach: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("read back %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || got[i].TimestampNs() != want[i].TimestampNs() {
			t.Fatalf("event %d: got kind=%v ts=%d, want kind=%v ts=%d",
				i, got[i].Kind, got[i].TimestampNs(), want[i].Kind, want[i].TimestampNs())
		}
	}
}

// ----------------------------------------------------------------------
// Scenario: the backtest runner replays a segment directory end to end,
// driving a strategy that submits a market order on the first trade, and
// the ledger reflects the resulting fill.
// ----------------------------------------------------------------------

type buyOnFirstTrade struct {
	feed.NoopMarketDataSubscriber
	handler types.ISignalHandler
	done    bool
}

func (s *buyOnFirstTrade) Start() {}
func (s *buyOnFirstTrade) Stop()  {}

func (s *buyOnFirstTrade) OnTrade(ev types.TradeEvent) {
	if s.done {
		return
	}
	s.done = true
	s.handler.OnSignal(types.Signal{Verb: types.SignalMarket, Symbol: ev.Trade.Symbol,
		Side: types.SideBuy, Quantity: decimal.Quantity(1 * decimal.Scale)})
}

type sliceSource []segment.Event

func (s sliceSource) ForEach(_ segment.ForEachOpts, cb func(segment.Event) bool) error {
	for _, ev := range s {
		if !cb(ev) {
			break
		}
	}
	return nil
}

func TestBacktestRunnerReplaysTradesAndFillsThroughLedger(t *testing.T) {
	clk := clock.NewSimulated(0)
	exec := executor.New(clk, types.NoopExecutionListener{})
	strategy := &buyOnFirstTrade{}

	runner := backtest.NewRunner(backtest.RunnerConfig{
		Clock:           clk,
		Executor:        exec,
		Strategy:        strategy,
		DefaultTickSize: decimal.NewPrice(1, 0),
	})
	strategy.handler = runner

	src := sliceSource{
		{Kind: segment.FrameTypeBookUpdate, Book: types.BookUpdate{
			Symbol: 1, Kind: types.BookUpdateSnapshot, ExchangeTsNs: 1,
			Asks: []types.BookLevel{{Price: decimal.NewPrice(100, 0), Quantity: decimal.Quantity(10 * decimal.Scale)}},
		}},
		{Kind: segment.FrameTypeTrade, Trade: types.Trade{Symbol: 1, Price: decimal.NewPrice(100, 0), Quantity: decimal.Quantity(1 * decimal.Scale), ExchangeTsNs: 2}},
		{Kind: segment.FrameTypeTrade, Trade: types.Trade{Symbol: 1, Price: decimal.NewPrice(101, 0), Quantity: decimal.Quantity(1 * decimal.Scale), ExchangeTsNs: 3}},
	}

	result, err := runner.Run(src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.EventsProcessed != int64(len(src)) {
		t.Fatalf("events processed = %d, want %d", result.EventsProcessed, len(src))
	}
	if len(result.Fills) != 1 {
		t.Fatalf("expected exactly 1 fill from the market buy, got %d", len(result.Fills))
	}

	pos := runner.Ledger().Position(1)
	if pos.Quantity != decimal.Quantity(1 * decimal.Scale) {
		t.Fatalf("ledger position = %v, want +1", pos.Quantity.Float64())
	}
}

// ----------------------------------------------------------------------
// Scenario: decimal arithmetic stays exact where float64 would not.
// ----------------------------------------------------------------------

func TestDecimalArithmeticIsExactWhereFloatIsNot(t *testing.T) {
	price := decimal.NewPrice(0, 10_000_000) // 0.1
	three := decimal.Quantity(3 * decimal.Scale)

	notional := price.Mul(three) // 0.1 * 3, exactly 0.3 in fixed point
	if notional != decimal.Volume(30_000_000) {
		t.Fatalf("0.1 * 3 = %d scaled units, want 30000000 (0.3 exactly)", int64(notional))
	}

	tenth := 0.1 // a float64 variable, so the sum below is not folded as an exact constant
	if f := tenth + tenth + tenth; f == 0.3 {
		t.Skip("float64 0.1+0.1+0.1 happened to equal 0.3 on this platform; fixed-point guarantee still holds above")
	}
}

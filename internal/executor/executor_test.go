package executor

import (
	"testing"

	"github.com/rishav/floxcore/internal/clock"
	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/types"
)

type recorder struct {
	types.NoopExecutionListener
	events []types.OrderEvent
}

func (r *recorder) OnOrderSubmitted(ev types.OrderEvent)      { r.events = append(r.events, ev) }
func (r *recorder) OnOrderAccepted(ev types.OrderEvent)       { r.events = append(r.events, ev) }
func (r *recorder) OnOrderFilled(ev types.OrderEvent)         { r.events = append(r.events, ev) }
func (r *recorder) OnOrderCanceled(ev types.OrderEvent)       { r.events = append(r.events, ev) }
func (r *recorder) OnOrderRejected(ev types.OrderEvent)       { r.events = append(r.events, ev) }
func (r *recorder) OnTrailingStopUpdated(ev types.OrderEvent) { r.events = append(r.events, ev) }
func (r *recorder) OnOrderTriggered(ev types.OrderEvent)      { r.events = append(r.events, ev) }

func statuses(r *recorder) []types.OrderStatus {
	out := make([]types.OrderStatus, len(r.events))
	for i, e := range r.events {
		out[i] = e.Status
	}
	return out
}

func px(whole int64) decimal.Price       { return decimal.NewPrice(whole, 0) }
func qty(whole int64) decimal.Quantity   { return decimal.Quantity(whole * decimal.Scale) }

func TestMarketBuyFillsAgainstBestAsk(t *testing.T) {
	rec := &recorder{}
	ex := New(clock.NewSimulated(0), rec)
	ex.OnBookUpdate(1, px(99), px(101), true, true)

	order := &types.Order{Symbol: 1, Side: types.SideBuy, Type: types.OrderTypeMarket, Quantity: qty(5)}
	ex.Submit(order)

	if !order.IsFilled() {
		t.Fatalf("expected market order fully filled, got filled=%v", order.FilledQty)
	}
	fills := ex.Fills()
	if len(fills) != 1 || fills[0].Price != px(101) {
		t.Fatalf("fills = %+v, want 1 fill at 101", fills)
	}
	got := statuses(rec)
	want := []types.OrderStatus{types.OrderStatusSubmitted, types.OrderStatusAccepted, types.OrderStatusFilled}
	if len(got) != len(want) {
		t.Fatalf("event sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLimitOrderRestsThenFillsOnBookMove(t *testing.T) {
	rec := &recorder{}
	ex := New(clock.NewSimulated(0), rec)
	ex.OnBookUpdate(1, px(99), px(101), true, true)

	order := &types.Order{Symbol: 1, Side: types.SideBuy, Type: types.OrderTypeLimit, Price: px(100), Quantity: qty(1)}
	ex.Submit(order)
	if order.IsFilled() {
		t.Fatal("limit buy at 100 should not fill against ask 101")
	}

	ex.OnBookUpdate(1, px(99), px(100), true, true)
	if !order.IsFilled() {
		t.Fatal("limit buy at 100 should fill once ask reaches 100")
	}
}

func TestStopSellTriggersOnLastTradeAtOrBelow(t *testing.T) {
	rec := &recorder{}
	ex := New(clock.NewSimulated(0), rec)
	ex.OnBookUpdate(1, px(99), px(101), true, true)

	order := &types.Order{Symbol: 1, Side: types.SideSell, Type: types.OrderTypeStopMarket, TriggerPrice: px(95), Quantity: qty(2)}
	ex.Submit(order)

	ex.OnTrade(types.Trade{Symbol: 1, Price: px(96), Quantity: qty(1), IsBuy: true})
	if order.Type != types.OrderTypeStopMarket {
		t.Fatalf("order should not have triggered above trigger price yet")
	}

	ex.OnTrade(types.Trade{Symbol: 1, Price: px(95), Quantity: qty(1), IsBuy: false})
	if order.Type != types.OrderTypeMarket {
		t.Fatalf("triggered stop-market should coerce to market, got %v", order.Type)
	}
	if !order.IsFilled() {
		t.Fatal("triggered stop-market should fill immediately against best bid")
	}
}

func TestTrailingStopSellRatchetsUpOnly(t *testing.T) {
	rec := &recorder{}
	ex := New(clock.NewSimulated(0), rec)

	order := &types.Order{Symbol: 1, Side: types.SideSell, Type: types.OrderTypeTrailingStop, TrailingOffset: px(5), Quantity: qty(1)}
	ex.OnTrade(types.Trade{Symbol: 1, Price: px(100), Quantity: qty(1), IsBuy: true})
	ex.Submit(order)

	ts := ex.trailing[order.ID]
	if ts.triggerPrice != px(95) {
		t.Fatalf("initial trigger = %v, want 95", ts.triggerPrice)
	}

	ex.OnTrade(types.Trade{Symbol: 1, Price: px(110), Quantity: qty(1), IsBuy: true})
	if ex.trailing[order.ID].triggerPrice != px(105) {
		t.Fatalf("trigger should ratchet up to 105 after price rises, got %v", ex.trailing[order.ID].triggerPrice)
	}

	ex.OnTrade(types.Trade{Symbol: 1, Price: px(108), Quantity: qty(1), IsBuy: false})
	if ex.trailing[order.ID].triggerPrice != px(105) {
		t.Fatalf("trigger should not regress on a price pullback, got %v", ex.trailing[order.ID].triggerPrice)
	}
}

func TestOCOCancelsOtherLegOnFill(t *testing.T) {
	rec := &recorder{}
	ex := New(clock.NewSimulated(0), rec)
	ex.OnBookUpdate(1, px(99), px(101), true, true)

	leg1 := &types.Order{Symbol: 1, Side: types.SideBuy, Type: types.OrderTypeMarket, Quantity: qty(1)}
	leg2 := &types.Order{Symbol: 1, Side: types.SideSell, Type: types.OrderTypeLimit, Price: px(200), Quantity: qty(1)}
	ex.SubmitOCO(leg1, leg2)

	if !leg1.IsFilled() {
		t.Fatal("leg1 market order should have filled immediately")
	}

	found := false
	for _, ev := range rec.events {
		if ev.Order == leg2 && ev.Status == types.OrderStatusCanceled {
			found = true
		}
	}
	if !found {
		t.Fatal("OCO leg2 should be canceled once leg1 fills")
	}
}

func TestCancelOrderRemovesFromPending(t *testing.T) {
	rec := &recorder{}
	ex := New(clock.NewSimulated(0), rec)

	order := &types.Order{Symbol: 1, Side: types.SideBuy, Type: types.OrderTypeLimit, Price: px(50), Quantity: qty(1)}
	ex.Submit(order)
	if !ex.CancelOrder(order.ID) {
		t.Fatal("CancelOrder should find the resting limit order")
	}
	ex.OnBookUpdate(1, px(49), px(50), true, true)
	if order.IsFilled() {
		t.Fatal("canceled order should never fill")
	}
}

func TestCapabilitiesAdvertisesFullSupport(t *testing.T) {
	ex := New(clock.NewSimulated(0), nil)
	caps := ex.Capabilities()
	for _, c := range []types.Capability{
		types.CapLimit, types.CapMarket, types.CapStopMarket, types.CapTrailingStop, types.CapOCO,
	} {
		if !caps.Has(c) {
			t.Fatalf("Capabilities() missing %v", c)
		}
	}
}

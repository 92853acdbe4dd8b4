package feed

import (
	"sync"

	"github.com/rishav/floxcore/internal/types"
)

// DefaultBufferSize is Dashboard's subscriber channel capacity when none is
// given, matching the teacher's Publisher default.
const DefaultBufferSize = 100

// Dashboard is a non-blocking fan-out tap for the market-data callbacks a
// strategy receives: a UI, logger, or metrics exporter subscribes to the
// channels it cares about instead of being wired into the hot replay path
// directly. Adapted from the teacher's internal/marketdata.Publisher
// (per-symbol and all-symbols channel subscription, drop-on-full delivery)
// and generalized from the teacher's string-keyed L1Quote/L2Depth/
// TradeReport shapes to the spec's IMarketDataSubscriber event types.
type Dashboard struct {
	mu sync.RWMutex

	tradeSubs    map[types.SymbolId][]chan types.TradeEvent
	allTradeSubs []chan types.TradeEvent

	bookSubs    map[types.SymbolId][]chan *types.BookUpdateEvent
	allBookSubs []chan *types.BookUpdateEvent

	barSubs    map[types.SymbolId][]chan types.BarEvent
	allBarSubs []chan types.BarEvent

	errSubs []chan types.MarketDataError

	bufferSize int
}

// NewDashboard constructs a Dashboard whose subscriber channels are
// buffered to bufferSize (DefaultBufferSize if <= 0).
func NewDashboard(bufferSize int) *Dashboard {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Dashboard{
		tradeSubs:  make(map[types.SymbolId][]chan types.TradeEvent),
		bookSubs:   make(map[types.SymbolId][]chan *types.BookUpdateEvent),
		barSubs:    make(map[types.SymbolId][]chan types.BarEvent),
		bufferSize: bufferSize,
	}
}

// SubscribeTrades returns a channel receiving trades for symbol only.
func (d *Dashboard) SubscribeTrades(symbol types.SymbolId) <-chan types.TradeEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan types.TradeEvent, d.bufferSize)
	d.tradeSubs[symbol] = append(d.tradeSubs[symbol], ch)
	return ch
}

// SubscribeAllTrades returns a channel receiving every trade.
func (d *Dashboard) SubscribeAllTrades() <-chan types.TradeEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan types.TradeEvent, d.bufferSize)
	d.allTradeSubs = append(d.allTradeSubs, ch)
	return ch
}

// SubscribeBookUpdates returns a channel receiving book updates for symbol
// only.
func (d *Dashboard) SubscribeBookUpdates(symbol types.SymbolId) <-chan *types.BookUpdateEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan *types.BookUpdateEvent, d.bufferSize)
	d.bookSubs[symbol] = append(d.bookSubs[symbol], ch)
	return ch
}

// SubscribeAllBookUpdates returns a channel receiving every book update.
func (d *Dashboard) SubscribeAllBookUpdates() <-chan *types.BookUpdateEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan *types.BookUpdateEvent, d.bufferSize)
	d.allBookSubs = append(d.allBookSubs, ch)
	return ch
}

// SubscribeBars returns a channel receiving finished bars for symbol only.
func (d *Dashboard) SubscribeBars(symbol types.SymbolId) <-chan types.BarEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan types.BarEvent, d.bufferSize)
	d.barSubs[symbol] = append(d.barSubs[symbol], ch)
	return ch
}

// SubscribeAllBars returns a channel receiving every finished bar.
func (d *Dashboard) SubscribeAllBars() <-chan types.BarEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan types.BarEvent, d.bufferSize)
	d.allBarSubs = append(d.allBarSubs, ch)
	return ch
}

// SubscribeErrors returns a channel receiving every market-data error.
func (d *Dashboard) SubscribeErrors() <-chan types.MarketDataError {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan types.MarketDataError, d.bufferSize)
	d.errSubs = append(d.errSubs, ch)
	return ch
}

// OnTrade implements types.IMarketDataSubscriber, fanning the trade out to
// every matching subscriber. A subscriber whose channel is full has the
// update dropped rather than blocking the replay loop.
func (d *Dashboard) OnTrade(ev types.TradeEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, ch := range d.tradeSubs[ev.Trade.Symbol] {
		select {
		case ch <- ev:
		default:
		}
	}
	for _, ch := range d.allTradeSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// OnBookUpdate implements types.IMarketDataSubscriber.
func (d *Dashboard) OnBookUpdate(ev *types.BookUpdateEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, ch := range d.bookSubs[ev.Update.Symbol] {
		select {
		case ch <- ev:
		default:
		}
	}
	for _, ch := range d.allBookSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// OnBar implements types.IMarketDataSubscriber.
func (d *Dashboard) OnBar(ev types.BarEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, ch := range d.barSubs[ev.Symbol] {
		select {
		case ch <- ev:
		default:
		}
	}
	for _, ch := range d.allBarSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// OnMarketDataError implements types.IMarketDataSubscriber.
func (d *Dashboard) OnMarketDataError(e types.MarketDataError) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, ch := range d.errSubs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close closes every subscriber channel. Callers must stop publishing
// before calling Close.
func (d *Dashboard) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, subs := range d.tradeSubs {
		for _, ch := range subs {
			close(ch)
		}
	}
	for _, ch := range d.allTradeSubs {
		close(ch)
	}
	for _, subs := range d.bookSubs {
		for _, ch := range subs {
			close(ch)
		}
	}
	for _, ch := range d.allBookSubs {
		close(ch)
	}
	for _, subs := range d.barSubs {
		for _, ch := range subs {
			close(ch)
		}
	}
	for _, ch := range d.allBarSubs {
		close(ch)
	}
	for _, ch := range d.errSubs {
		close(ch)
	}
}

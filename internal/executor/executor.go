// Package executor implements the simulated order executor (spec §4.7): a
// paper-trading fill engine that matches a trader's own resting and
// conditional orders against incoming market data, rather than the
// teacher's internal/matching.Engine, which matches two sides of a shared
// exchange book against each other. The state-machine shape (single-
// threaded core, monotonic sequence/trade counters, FIFO fill emission) is
// carried over from the teacher; the match predicates themselves are
// rewritten for order-vs-market-data semantics.
package executor

import (
	"fmt"

	"github.com/rishav/floxcore/internal/clock"
	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/symbolmap"
	"github.com/rishav/floxcore/internal/types"
)

// marketState is the per-symbol reference data the matching rules read:
// best bid/ask and the last trade price, each with a presence flag since a
// symbol may have traded without ever carrying book data or vice versa.
type marketState struct {
	bestBid, bestAsk, lastTrade decimal.Price
	hasBid, hasAsk, hasTrade    bool
}

// trailingState tracks one TRAILING_STOP order's current trigger.
type trailingState struct {
	triggerPrice decimal.Price
	offset       decimal.Price // resolved absolute offset
}

// Executor is the single-threaded simulated order executor. It must be
// driven from one goroutine (spec §5); it holds no internal locking.
type Executor struct {
	clock    clock.IClock
	listener types.IOrderExecutionListener

	pending     []*types.Order // resting LIMIT/MARKET
	conditional []*types.Order // resting STOP/TP/TRAILING

	market   *symbolmap.Map[marketState]
	trailing map[types.OrderId]*trailingState
	ocoLink  map[types.OrderId]types.OrderId

	fills   []types.Fill
	nextID  uint64
}

// New constructs an Executor. If listener is nil, a NoopExecutionListener is
// installed.
func New(c clock.IClock, listener types.IOrderExecutionListener) *Executor {
	if listener == nil {
		listener = types.NoopExecutionListener{}
	}
	return &Executor{
		clock:    c,
		listener: listener,
		market:   symbolmap.New[marketState](),
		trailing: make(map[types.OrderId]*trailingState),
		ocoLink:  make(map[types.OrderId]types.OrderId),
	}
}

// Capabilities returns the feature bitmask the simulated executor supports:
// every order kind, every TIF, reduceOnly/closePosition, and OCO (spec
// §4.7).
func (e *Executor) Capabilities() types.Capability {
	return types.CapLimit | types.CapMarket | types.CapStopMarket | types.CapStopLimit |
		types.CapTakeProfitMarket | types.CapTakeProfitLimit | types.CapTrailingStop | types.CapIceberg |
		types.CapTIFGoodTilCancel | types.CapTIFImmediateOrCancel | types.CapTIFFillOrKill | types.CapTIFGoodTilTime |
		types.CapReduceOnly | types.CapClosePosition | types.CapPostOnly | types.CapOCO
}

// Fills returns the append-only fill log accumulated so far.
func (e *Executor) Fills() []types.Fill { return e.fills }

func (e *Executor) nextOrderID() types.OrderId {
	e.nextID++
	return types.OrderId(e.nextID)
}

// Submit accepts a new order, assigning an id if order.ID is zero. It
// always emits SUBMITTED then ACCEPTED before returning, matching the fixed
// event ordering spec §4.7 requires for every order.
func (e *Executor) Submit(order *types.Order) {
	e.register(order)
	e.resolve(order)
}

// register assigns an id and walks the order through SUBMITTED -> ACCEPTED
// (-> PENDING_TRIGGER for conditional orders), without attempting a fill.
// Split out from Submit so SubmitOCO can register both legs of a pair
// before either leg can cancel the other out from under resolve.
func (e *Executor) register(order *types.Order) {
	if order.ID == 0 {
		order.ID = e.nextOrderID()
	}
	order.CreatedAt = e.clock.NowNs()

	e.emit(types.OrderStatusSubmitted, order, nil)
	e.emit(types.OrderStatusAccepted, order, nil)

	if order.Type.IsConditional() {
		e.conditional = append(e.conditional, order)
		e.emit(types.OrderStatusPendingTrigger, order, nil)
		if order.Type == types.OrderTypeTrailingStop {
			e.seedTrailing(order)
		}
	}
}

// resolve attempts an immediate fill for a non-conditional order; a
// conditional order is left resting until a trigger fires.
func (e *Executor) resolve(order *types.Order) {
	if order.Type.IsConditional() {
		return
	}
	e.tryFillOrRest(order)
}

// SubmitOCO registers a one-cancels-the-other link between two orders,
// registering both legs before either resolves, so a fill on one leg can
// always find and cancel the other.
func (e *Executor) SubmitOCO(order1, order2 *types.Order) {
	if order1.ID == 0 {
		order1.ID = e.nextOrderID()
	}
	if order2.ID == 0 {
		order2.ID = e.nextOrderID()
	}
	e.ocoLink[order1.ID] = order2.ID
	e.ocoLink[order2.ID] = order1.ID

	e.register(order1)
	e.register(order2)
	e.resolve(order1)
	if _, linked := e.ocoLink[order2.ID]; !linked {
		// order1 finished during resolve and consumed the link. A
		// conditional order2 was already canceled off the conditional list;
		// a non-conditional one is on no list yet, so cancel it here.
		if !order2.Type.IsConditional() {
			e.emit(types.OrderStatusCanceled, order2, nil)
		}
		return
	}
	e.resolve(order2)
}

func (e *Executor) seedTrailing(order *types.Order) {
	st, ok := e.market.Lookup(order.Symbol)
	var ref decimal.Price
	if ok && st.hasTrade {
		ref = st.lastTrade
	} else {
		ref = order.Price
	}
	offset := order.TrailingOffset
	if offset == 0 && order.TrailingCallbackRateBps != 0 {
		offset = decimal.Price(int64(ref) * order.TrailingCallbackRateBps / 10_000)
	}
	trigger := ref - offset
	if order.Side == types.SideBuy {
		trigger = ref + offset
	}
	e.trailing[order.ID] = &trailingState{triggerPrice: trigger, offset: offset}
}

// CancelOrder searches both the pending and conditional lists for id; on a
// match it emits CANCELED, evicts any trailing state, and notifies the OCO
// link.
func (e *Executor) CancelOrder(id types.OrderId) bool {
	if idx := indexOfOrder(e.pending, id); idx >= 0 {
		order := e.pending[idx]
		e.pending = removeOrder(e.pending, idx)
		e.finishOrder(order, types.OrderStatusCanceled)
		return true
	}
	if idx := indexOfOrder(e.conditional, id); idx >= 0 {
		order := e.conditional[idx]
		e.conditional = removeOrder(e.conditional, idx)
		delete(e.trailing, id)
		e.finishOrder(order, types.OrderStatusCanceled)
		return true
	}
	return false
}

// CancelAllOrders cancels every resting order (pending and conditional) for
// symbol.
func (e *Executor) CancelAllOrders(symbol types.SymbolId) {
	for _, o := range append(append([]*types.Order{}, e.pending...), e.conditional...) {
		if o.Symbol == symbol {
			e.CancelOrder(o.ID)
		}
	}
}

func (e *Executor) finishOrder(order *types.Order, status types.OrderStatus) {
	e.emit(status, order, nil)
	if other, ok := e.ocoLink[order.ID]; ok {
		delete(e.ocoLink, order.ID)
		delete(e.ocoLink, other)
		e.CancelOrder(other)
	}
}

// OnTrade updates last-trade reference data and runs the matching/trigger
// rules against every resting order for the symbol.
func (e *Executor) OnTrade(trade types.Trade) {
	st := e.market.Get(trade.Symbol)
	st.lastTrade = trade.Price
	st.hasTrade = true

	e.updateTrailing(trade.Symbol, trade.Price)
	e.checkConditional(trade.Symbol, trade.Price)
	e.matchPending(trade.Symbol, trade.Price)
}

// OnBookUpdate updates the best bid/ask reference for the symbol and
// attempts to match resting pending orders against it.
func (e *Executor) OnBookUpdate(symbol types.SymbolId, bestBid, bestAsk decimal.Price, hasBid, hasAsk bool) {
	st := e.market.Get(symbol)
	if hasBid {
		st.bestBid = bestBid
		st.hasBid = true
	}
	if hasAsk {
		st.bestAsk = bestAsk
		st.hasAsk = true
	}
	e.matchAgainstBook(symbol)
}

func (e *Executor) updateTrailing(symbol types.SymbolId, last decimal.Price) {
	for _, o := range e.conditional {
		if o.Symbol != symbol || o.Type != types.OrderTypeTrailingStop {
			continue
		}
		ts, ok := e.trailing[o.ID]
		if !ok {
			continue
		}
		advanced := false
		var newTrigger decimal.Price
		if o.Side == types.SideSell {
			// SELL trailing stop: trigger never moves down.
			candidate := last - ts.offset
			if candidate > ts.triggerPrice {
				newTrigger = candidate
				advanced = true
			}
		} else {
			// BUY trailing stop: trigger never moves up.
			candidate := last + ts.offset
			if candidate < ts.triggerPrice {
				newTrigger = candidate
				advanced = true
			}
		}
		if advanced {
			ts.triggerPrice = newTrigger
			e.emitTrailing(o, newTrigger)
		}
	}
}

func (e *Executor) checkConditional(symbol types.SymbolId, last decimal.Price) {
	var triggered []*types.Order
	remaining := e.conditional[:0]
	for _, o := range e.conditional {
		if o.Symbol != symbol {
			remaining = append(remaining, o)
			continue
		}
		if e.isTriggered(o, last) {
			triggered = append(triggered, o)
		} else {
			remaining = append(remaining, o)
		}
	}
	e.conditional = remaining

	for _, o := range triggered {
		delete(e.trailing, o.ID)
		o.Type = o.Type.TriggeredType()
		e.emit(types.OrderStatusTriggered, o, nil)
		e.tryFillOrRest(o)
	}
}

func (e *Executor) isTriggered(o *types.Order, last decimal.Price) bool {
	switch {
	case o.Type == types.OrderTypeStopMarket || o.Type == types.OrderTypeStopLimit:
		if o.Side == types.SideSell {
			return last <= o.TriggerPrice
		}
		return last >= o.TriggerPrice
	case o.Type == types.OrderTypeTakeProfitMarket || o.Type == types.OrderTypeTakeProfitLimit:
		if o.Side == types.SideSell {
			return last >= o.TriggerPrice
		}
		return last <= o.TriggerPrice
	case o.Type == types.OrderTypeTrailingStop:
		ts, ok := e.trailing[o.ID]
		if !ok {
			return false
		}
		if o.Side == types.SideSell {
			return last <= ts.triggerPrice
		}
		return last >= ts.triggerPrice
	default:
		return false
	}
}

// tryFillOrRest attempts an immediate fill against current reference data;
// unfilled remainder is pushed to the pending list unless the order's TIF
// forbids resting (IOC/FOK).
func (e *Executor) tryFillOrRest(order *types.Order) {
	e.attemptFill(order)
	if order.RemainingQty() <= 0 {
		return
	}
	switch order.TimeInForce {
	case types.TIFImmediateOrCancel, types.TIFFillOrKill:
		e.finishOrder(order, types.OrderStatusCanceled)
	default:
		e.pending = append(e.pending, order)
	}
}

// attemptFill fills as much of order as current reference data supports,
// emitting PARTIALLY_FILLED/FILLED events as it goes.
func (e *Executor) attemptFill(order *types.Order) {
	st, ok := e.market.Lookup(order.Symbol)
	if !ok {
		return
	}
	fillPrice, ok := e.matchPrice(order, st)
	if !ok {
		return
	}
	qty := order.RemainingQty()
	if qty <= 0 {
		return
	}
	e.recordFill(order, fillPrice, qty)
}

func (e *Executor) matchPrice(order *types.Order, st *marketState) (decimal.Price, bool) {
	switch order.Type {
	case types.OrderTypeMarket:
		if order.Side == types.SideBuy {
			if st.hasAsk {
				return st.bestAsk, true
			}
			if st.hasTrade {
				return st.lastTrade, true
			}
			return 0, false
		}
		if st.hasBid {
			return st.bestBid, true
		}
		if st.hasTrade {
			return st.lastTrade, true
		}
		return 0, false
	case types.OrderTypeLimit:
		if order.Side == types.SideBuy {
			if st.hasAsk && order.Price >= st.bestAsk {
				return st.bestAsk, true
			}
			return 0, false
		}
		if st.hasBid && order.Price <= st.bestBid {
			return st.bestBid, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func (e *Executor) recordFill(order *types.Order, price decimal.Price, qty decimal.Quantity) {
	order.FilledQty += qty
	e.fills = append(e.fills, types.Fill{
		OrderId:     order.ID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Price:       price,
		Quantity:    qty,
		TimestampNs: e.clock.NowNs(),
	})

	status := types.OrderStatusPartiallyFilled
	if order.IsFilled() {
		status = types.OrderStatusFilled
	}
	e.emitFill(order, status, price, qty)

	if order.IsFilled() {
		if other, ok := e.ocoLink[order.ID]; ok {
			delete(e.ocoLink, order.ID)
			delete(e.ocoLink, other)
			e.CancelOrder(other)
		}
	}
}

// matchPending re-attempts every pending order for symbol after a trade
// moves the reference trade price (relevant when an order only had
// last-trade fallback data, not book data).
func (e *Executor) matchPending(symbol types.SymbolId, _ decimal.Price) {
	e.matchAgainstBook(symbol)
}

func (e *Executor) matchAgainstBook(symbol types.SymbolId) {
	remaining := e.pending[:0]
	for _, o := range e.pending {
		if o.Symbol != symbol {
			remaining = append(remaining, o)
			continue
		}
		e.attemptFill(o)
		if o.RemainingQty() > 0 {
			remaining = append(remaining, o)
		}
	}
	e.pending = remaining
}

func (e *Executor) emit(status types.OrderStatus, order *types.Order, rejectReason *string) {
	ev := types.OrderEvent{Status: status, Order: order, ExchangeTs: e.clock.NowNs()}
	if rejectReason != nil {
		ev.RejectReason = *rejectReason
	}
	switch status {
	case types.OrderStatusSubmitted:
		e.listener.OnOrderSubmitted(ev)
	case types.OrderStatusAccepted:
		e.listener.OnOrderAccepted(ev)
	case types.OrderStatusCanceled:
		e.listener.OnOrderCanceled(ev)
	case types.OrderStatusRejected:
		e.listener.OnOrderRejected(ev)
	case types.OrderStatusTriggered:
		e.listener.OnOrderTriggered(ev)
	case types.OrderStatusPendingTrigger:
		// No dedicated callback in types.IOrderExecutionListener; submission
		// state is already observable via OnOrderAccepted.
	}
}

func (e *Executor) emitFill(order *types.Order, status types.OrderStatus, price decimal.Price, qty decimal.Quantity) {
	e.listener.OnOrderFilled(types.OrderEvent{
		Status:     status,
		Order:      order,
		FillQty:    qty,
		FillPrice:  price,
		HasFill:    true,
		ExchangeTs: e.clock.NowNs(),
	})
}

func (e *Executor) emitTrailing(order *types.Order, newTrigger decimal.Price) {
	e.listener.OnTrailingStopUpdated(types.OrderEvent{
		Status:           types.OrderStatusTrailingUpdated,
		Order:            order,
		NewTrailingPrice: newTrigger,
		HasTrailing:      true,
		ExchangeTs:       e.clock.NowNs(),
	})
}

func indexOfOrder(list []*types.Order, id types.OrderId) int {
	for i, o := range list {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func removeOrder(list []*types.Order, idx int) []*types.Order {
	return append(list[:idx], list[idx+1:]...)
}

// errUnknownSymbol is returned by symbol-scoped lookups when the executor
// has never observed market data for a symbol.
var errUnknownSymbol = fmt.Errorf("executor: no market data for symbol")

// MarketState exposes a snapshot of a symbol's reference data, for tests and
// diagnostics.
func (e *Executor) MarketState(symbol types.SymbolId) (bestBid, bestAsk, lastTrade decimal.Price, err error) {
	st, ok := e.market.Lookup(symbol)
	if !ok {
		return 0, 0, 0, errUnknownSymbol
	}
	return st.bestBid, st.bestAsk, st.lastTrade, nil
}

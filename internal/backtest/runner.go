package backtest

import (
	"sync"

	"github.com/rishav/floxcore/internal/clock"
	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/executor"
	"github.com/rishav/floxcore/internal/orderbook"
	"github.com/rishav/floxcore/internal/registry"
	"github.com/rishav/floxcore/internal/segment"
	"github.com/rishav/floxcore/internal/symbolmap"
	"github.com/rishav/floxcore/internal/types"
)

// Strategy is the collaborator the runner drives: it consumes market data
// like any other subscriber and is told when a replay starts and ends.
type Strategy interface {
	types.IMarketDataSubscriber
	Start()
	Stop()
}

// Source is whatever the runner replays: a single segment.Reader or a
// segment.DirReader both satisfy this by construction.
type Source interface {
	ForEach(opts segment.ForEachOpts, cb func(segment.Event) bool) error
}

// BacktestResult is what a completed (or stopped) run returns: the fill
// log plus basic event-count bookkeeping.
type BacktestResult struct {
	Fills           []types.Fill
	EventsProcessed int64
	TradeCount      int64
	BookUpdateCount int64
}

// RunnerState is the interactive runner's externally observable state.
type RunnerState int

const (
	StateIdle RunnerState = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s RunnerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// StepMode selects what stepUntil runs toward.
type StepMode int

const (
	stepModeNone StepMode = iota
	stepModeSingle
	// StepModeUntilTrade runs until (and including) the next trade event.
	StepModeUntilTrade
	// StepModeUntilBookUpdate runs until (and including) the next book
	// update event.
	StepModeUntilBookUpdate
)

// Snapshot is what a Breakpoint predicate is evaluated against after each
// event the runner processes.
type Snapshot struct {
	EventCount      int64
	TradeCount      int64
	BookUpdateCount int64
	NowNs           int64
	Kind            segment.FrameType
}

// Breakpoint is a predicate the interactive runner checks after every
// event; returning true pauses the run.
type Breakpoint func(Snapshot) bool

// BreakAtTime pauses once the clock reaches or passes ns.
func BreakAtTime(ns int64) Breakpoint {
	return func(s Snapshot) bool { return s.NowNs >= ns }
}

// BreakAtEventCount pauses once n events have been processed.
func BreakAtEventCount(n int64) Breakpoint {
	return func(s Snapshot) bool { return s.EventCount >= n }
}

// BreakAtTradeCount pauses once n trade events have been processed.
func BreakAtTradeCount(n int64) Breakpoint {
	return func(s Snapshot) bool { return s.TradeCount >= n }
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Clock           clock.IClock
	Executor        *executor.Executor
	Strategy        Strategy
	Ledger          *Ledger
	Registry        *registry.Registry
	DefaultTickSize decimal.Price
}

// Runner drives a simulated Executor and Strategy from a sorted event
// source (spec §4.8), in either a non-interactive batch mode (Run) or an
// interactive, externally paced mode (Start plus Resume/Step/StepUntil/
// Pause/Stop).
type Runner struct {
	clock       clock.IClock
	exec        *executor.Executor
	strategy    Strategy
	ledger      *Ledger
	registry    *registry.Registry
	defaultTick decimal.Price
	books       *symbolmap.Map[*orderbook.IndexedOrderBook]

	mu            sync.Mutex
	cond          *sync.Cond
	state         RunnerState
	stepMode      StepMode
	pauseRequested bool
	breakOnSignal bool
	signaled      bool
	breakpoints   []Breakpoint

	eventCount, tradeCount, bookCount int64
	ledgerIdx                         int
}

// NewRunner constructs a Runner. The ledger is kept in sync with the
// executor's fill log as events are processed; callers that want their own
// IOrderExecutionListener should register it directly on cfg.Executor.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSimulated(0)
	}
	if cfg.Ledger == nil {
		cfg.Ledger = NewLedger()
	}
	return &Runner{
		clock:       cfg.Clock,
		exec:        cfg.Executor,
		strategy:    cfg.Strategy,
		ledger:      cfg.Ledger,
		registry:    cfg.Registry,
		defaultTick: cfg.DefaultTickSize,
		books:       symbolmap.New[*orderbook.IndexedOrderBook](),
		state:       StateIdle,
	}
}

// Ledger returns the runner's position/PnL ledger.
func (r *Runner) Ledger() *Ledger { return r.ledger }

// Run replays src to completion without pausing, per spec §4.8's
// non-interactive contract: start the strategy, forward every event to the
// executor then the strategy, stop the strategy, and return the fill log.
func (r *Runner) Run(src Source) (BacktestResult, error) {
	r.strategy.Start()
	defer r.strategy.Stop()

	err := src.ForEach(segment.DefaultForEachOpts(), func(ev segment.Event) bool {
		r.handleEvent(ev)
		return true
	})
	return r.result(), err
}

// Start replays src under interactive control, beginning paused on the
// caller's goroutine; other goroutines drive it via Resume/Step/
// StepUntil/Pause/Stop. It returns once the source is exhausted or Stop is
// called.
func (r *Runner) Start(src Source) (BacktestResult, error) {
	r.mu.Lock()
	if r.cond == nil {
		r.cond = sync.NewCond(&r.mu)
	}
	r.state = StatePaused
	r.mu.Unlock()

	r.strategy.Start()
	defer r.strategy.Stop()

	err := src.ForEach(segment.DefaultForEachOpts(), r.runGate)
	return r.result(), err
}

func (r *Runner) result() BacktestResult {
	return BacktestResult{
		Fills:           append([]types.Fill(nil), r.exec.Fills()...),
		EventsProcessed: r.eventCount,
		TradeCount:      r.tradeCount,
		BookUpdateCount: r.bookCount,
	}
}

// runGate is the ForEach callback for interactive mode: it blocks while
// paused, processes exactly one event once woken, then re-evaluates
// whatever caused the wake-up to decide whether to pause again.
func (r *Runner) runGate(ev segment.Event) bool {
	r.mu.Lock()
	for r.state == StatePaused {
		r.cond.Wait()
	}
	if r.state == StateStopped {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	r.handleEvent(ev)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateStopped {
		return false
	}

	switch {
	case r.stepMode == stepModeSingle:
		r.stepMode = stepModeNone
		r.state = StatePaused
		return true
	case r.stepMode == StepModeUntilTrade && ev.Kind == segment.FrameTypeTrade:
		r.stepMode = stepModeNone
		r.state = StatePaused
		return true
	case r.stepMode == StepModeUntilBookUpdate && ev.Kind == segment.FrameTypeBookUpdate:
		r.stepMode = stepModeNone
		r.state = StatePaused
		return true
	}

	if r.breakOnSignal && r.signaled {
		r.signaled = false
		r.state = StatePaused
		return true
	}
	if r.pauseRequested {
		r.pauseRequested = false
		r.state = StatePaused
		return true
	}

	snap := Snapshot{
		EventCount:      r.eventCount,
		TradeCount:      r.tradeCount,
		BookUpdateCount: r.bookCount,
		NowNs:           r.clock.NowNs(),
		Kind:            ev.Kind,
	}
	for _, bp := range r.breakpoints {
		if bp(snap) {
			r.state = StatePaused
			return true
		}
	}
	return true
}

func (r *Runner) handleEvent(ev segment.Event) {
	r.clock.AdvanceTo(ev.TimestampNs())
	r.eventCount++

	switch ev.Kind {
	case segment.FrameTypeTrade:
		r.tradeCount++
		r.exec.OnTrade(ev.Trade)
		r.strategy.OnTrade(types.TradeEvent{Trade: ev.Trade, RecvTsNs: ev.Trade.ExchangeTsNs})
	case segment.FrameTypeBookUpdate:
		r.bookCount++
		update := ev.Book
		book := r.bookFor(update.Symbol)
		if err := book.Apply(&update); err != nil {
			r.strategy.OnMarketDataError(types.MarketDataError{
				Code:        types.MarketDataErrInvalidMessage,
				Symbol:      update.Symbol,
				Message:     err.Error(),
				TimestampNs: update.ExchangeTsNs,
			})
			return
		}
		bestBid, hasBid := book.BestBid()
		bestAsk, hasAsk := book.BestAsk()
		r.exec.OnBookUpdate(update.Symbol, bestBid, bestAsk, hasBid, hasAsk)
		r.strategy.OnBookUpdate(&types.BookUpdateEvent{Update: update})
	}
	r.syncLedger()
}

// syncLedger applies every fill appended to the executor's log since the
// last sync, keeping the ledger's position/PnL state current for State()
// observability during an interactive run.
func (r *Runner) syncLedger() {
	fills := r.exec.Fills()
	for ; r.ledgerIdx < len(fills); r.ledgerIdx++ {
		r.ledger.OnFill(fills[r.ledgerIdx])
	}
}

func (r *Runner) bookFor(symbol types.SymbolId) *orderbook.IndexedOrderBook {
	slot := r.books.Get(symbol)
	if *slot == nil {
		tick := r.defaultTick
		if r.registry != nil {
			if info, ok := r.registry.Lookup(symbol); ok && info.TickSize > 0 {
				tick = info.TickSize
			}
		}
		*slot = orderbook.New(symbol, orderbook.DefaultConfig(tick))
	}
	return *slot
}

// OnSignal implements types.ISignalHandler: it translates a strategy's
// Signal into an order (or a cancel/modify) and dispatches it to the
// executor (spec §4.8).
func (r *Runner) OnSignal(sig types.Signal) {
	switch sig.Verb {
	case types.SignalCancel:
		r.exec.CancelOrder(sig.OrderId)
	case types.SignalCancelAll:
		r.exec.CancelAllOrders(sig.Symbol)
	case types.SignalModify:
		r.exec.CancelOrder(sig.OrderId)
		// Spec §3: "replacement produces a new id" — the canceled order's id
		// is never reused, so clear it and let Submit assign a fresh one.
		replacement := r.buildOrder(sig, types.OrderTypeLimit)
		replacement.ID = 0
		r.exec.Submit(replacement)
	case types.SignalOCO:
		order1 := r.buildOrder(sig, signalOrderType(sig.Verb))
		var order2 *types.Order
		if sig.OCO != nil {
			order2 = r.buildOrder(*sig.OCO, signalOrderType(sig.OCO.Verb))
		}
		if order2 != nil {
			r.exec.SubmitOCO(order1, order2)
		} else {
			r.exec.Submit(order1)
		}
	default:
		r.exec.Submit(r.buildOrder(sig, signalOrderType(sig.Verb)))
	}

	if r.breakOnSignal {
		r.mu.Lock()
		r.signaled = true
		r.mu.Unlock()
	}
}

func (r *Runner) buildOrder(sig types.Signal, orderType types.OrderType) *types.Order {
	return &types.Order{
		ID:                      sig.OrderId,
		Side:                    sig.Side,
		Price:                   sig.Price,
		Quantity:                sig.Quantity,
		Type:                    orderType,
		Symbol:                  sig.Symbol,
		TimeInForce:             sig.TimeInForce,
		Flags:                   sig.Flags,
		TriggerPrice:            sig.TriggerPrice,
		TrailingOffset:          sig.TrailingOffset,
		TrailingCallbackRateBps: sig.TrailingCallbackRateBps,
		ClientOrderId:           sig.ClientOrderId,
		CreatedAt:               r.clock.NowNs(),
	}
}

func signalOrderType(v types.SignalVerb) types.OrderType {
	switch v {
	case types.SignalLimit:
		return types.OrderTypeLimit
	case types.SignalMarket:
		return types.OrderTypeMarket
	case types.SignalStopMarket:
		return types.OrderTypeStopMarket
	case types.SignalStopLimit:
		return types.OrderTypeStopLimit
	case types.SignalTakeProfitMarket:
		return types.OrderTypeTakeProfitMarket
	case types.SignalTakeProfitLimit:
		return types.OrderTypeTakeProfitLimit
	case types.SignalTrailingStop:
		return types.OrderTypeTrailingStop
	default:
		return types.OrderTypeMarket
	}
}

// Resume runs until the next breakpoint or the end of the source.
func (r *Runner) Resume() {
	r.mu.Lock()
	if r.state != StateStopped {
		r.state = StateRunning
		r.stepMode = stepModeNone
	}
	r.mu.Unlock()
	r.cond.Broadcast()
}

// Step executes exactly one event, then pauses.
func (r *Runner) Step() {
	r.mu.Lock()
	if r.state != StateStopped {
		r.stepMode = stepModeSingle
		r.state = StateRunning
	}
	r.mu.Unlock()
	r.cond.Broadcast()
}

// StepUntil runs until the next event of the requested class, then pauses.
func (r *Runner) StepUntil(mode StepMode) {
	r.mu.Lock()
	if r.state != StateStopped {
		r.stepMode = mode
		r.state = StateRunning
	}
	r.mu.Unlock()
	r.cond.Broadcast()
}

// Pause requests a pause at the next event boundary; it does not
// interrupt the event currently being processed.
func (r *Runner) Pause() {
	r.mu.Lock()
	r.pauseRequested = true
	r.mu.Unlock()
}

// Stop terminates the loop; Start returns as soon as the in-flight event
// (if any) finishes.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.state = StateStopped
	r.mu.Unlock()
	r.cond.Broadcast()
}

// State reports the runner's current control state.
func (r *Runner) State() RunnerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// AddBreakpoint registers a predicate checked after every processed event.
func (r *Runner) AddBreakpoint(bp Breakpoint) {
	r.mu.Lock()
	r.breakpoints = append(r.breakpoints, bp)
	r.mu.Unlock()
}

// SetBreakOnSignal toggles pausing immediately after any signal-driven
// order submission, cancel, or modify.
func (r *Runner) SetBreakOnSignal(enabled bool) {
	r.mu.Lock()
	r.breakOnSignal = enabled
	r.mu.Unlock()
}

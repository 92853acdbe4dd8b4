package bars

import (
	"github.com/rishav/floxcore/internal/symbolmap"
	"github.com/rishav/floxcore/internal/types"
)

// SymbolState is the per-symbol in-progress bar plus whether it has been
// initialized by a first trade yet.
type SymbolState struct {
	Bar  types.Bar
	Init bool
}

// EmitFunc receives a finished bar for a symbol.
type EmitFunc func(types.BarEvent)

// Aggregator runs a single Policy over every symbol's trade stream,
// following spec §4.4's per-symbol init/update/close cycle. It must be
// driven by a single goroutine (spec §5: single-writer structure).
type Aggregator struct {
	policy     Policy
	timeframe  types.TimeframeId
	states     *symbolmap.Map[SymbolState]
	instrument *symbolmap.Map[string]
	emit       EmitFunc
}

// NewAggregator builds an Aggregator for one policy, emitting finished bars
// via emit.
func NewAggregator(policy Policy, timeframe types.TimeframeId, emit EmitFunc) *Aggregator {
	return &Aggregator{
		policy:     policy,
		timeframe:  timeframe,
		states:     symbolmap.New[SymbolState](),
		instrument: symbolmap.New[string](),
		emit:       emit,
	}
}

// OnTrade folds one trade into the symbol's in-progress bar, emitting and
// reinitializing if the policy says the bar should close.
func (a *Aggregator) OnTrade(trade types.Trade) {
	st := a.states.Get(trade.Symbol)
	*a.instrument.Get(trade.Symbol) = trade.Instrument

	if !st.Init {
		a.policy.InitBar(trade, &st.Bar)
		st.Init = true
		return
	}
	if a.policy.ShouldClose(trade, &st.Bar) {
		st.Bar.CloseReason = types.CloseReasonThreshold
		a.emitBar(trade.Symbol, st.Bar)
		a.policy.InitBar(trade, &st.Bar)
		return
	}
	a.policy.Update(trade, &st.Bar)
}

func (a *Aggregator) emitBar(symbol types.SymbolId, bar types.Bar) {
	instrument, _ := a.instrument.Lookup(symbol)
	ev := types.BarEvent{
		Symbol:   symbol,
		BarKind:  a.timeframe.Kind(),
		BarParam: a.timeframe.Param(),
		Bar:      bar,
	}
	if instrument != nil {
		ev.Instrument = *instrument
	}
	if a.emit != nil {
		a.emit(ev)
	}
}

// Stop emits every initialized bar with reason Forced. Spec §4.4 names no
// implicit gap detection in the core; a higher layer may set CloseReasonGap
// before calling a component-specific emit path instead of Stop.
func (a *Aggregator) Stop() {
	a.states.ForEach(func(symbol types.SymbolId, st *SymbolState) {
		if !st.Init {
			return
		}
		st.Bar.CloseReason = types.CloseReasonForced
		a.emitBar(symbol, st.Bar)
		st.Init = false
	})
}

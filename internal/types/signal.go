package types

import "github.com/rishav/floxcore/internal/decimal"

// SignalVerb identifies which order verb a Signal carries. Kept as a tagged
// union (verb + fields) rather than an interface hierarchy so the backtest
// runner's signal-handler dispatch stays a single switch.
type SignalVerb int

const (
	SignalMarket SignalVerb = iota
	SignalLimit
	SignalCancel
	SignalCancelAll
	SignalModify
	SignalStopMarket
	SignalStopLimit
	SignalTakeProfitMarket
	SignalTakeProfitLimit
	SignalTrailingStop
	SignalOCO
)

// Signal is the tagged union a strategy emits; ISignalHandler.OnSignal
// receives these and the backtest runner translates them into orders.
type Signal struct {
	Verb SignalVerb

	Symbol      SymbolId
	Side        Side
	Price       decimal.Price
	Quantity    decimal.Quantity
	TimeInForce TimeInForce
	Flags       OrderFlags

	TriggerPrice            decimal.Price
	TrailingOffset          decimal.Price
	TrailingCallbackRateBps int64

	// OrderId identifies the target order for Cancel/Modify; if zero on
	// submission verbs the runner assigns a fresh id.
	OrderId OrderId
	// ClientOrderId optionally tags a new order.
	ClientOrderId string

	// OCO carries the second leg when Verb == SignalOCO; Signal itself
	// describes the first leg.
	OCO *Signal
}

// ISignalHandler is implemented by the backtest runner (and any live
// executor front-end) to receive strategy signals.
type ISignalHandler interface {
	OnSignal(Signal)
}

// Capability is a bitmask flag describing one feature an executor
// implementation supports; Executor.Capabilities() returns the OR of all
// supported flags (spec §4.7).
type Capability uint32

const (
	CapLimit Capability = 1 << iota
	CapMarket
	CapStopMarket
	CapStopLimit
	CapTakeProfitMarket
	CapTakeProfitLimit
	CapTrailingStop
	CapIceberg
	CapTIFGoodTilCancel
	CapTIFImmediateOrCancel
	CapTIFFillOrKill
	CapTIFGoodTilTime
	CapReduceOnly
	CapClosePosition
	CapPostOnly
	CapOCO
)

// Has reports whether c contains every bit in want.
func (c Capability) Has(want Capability) bool { return c&want == want }

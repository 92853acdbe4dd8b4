package types

import "github.com/rishav/floxcore/internal/decimal"

// Trade is a single execution reported by a venue. IsBuy is the taker
// side, matching the teacher's FillEvent.TakerSide convention.
type Trade struct {
	Symbol      SymbolId
	Instrument  string
	Price       decimal.Price
	Quantity    decimal.Quantity
	IsBuy       bool
	ExchangeTsNs int64
}

// Notional returns price*quantity as a Volume.
func (t Trade) Notional() decimal.Volume { return t.Price.Mul(t.Quantity) }

// BookUpdateKind distinguishes a full replace from an incremental update.
type BookUpdateKind uint8

const (
	// BookUpdateSnapshot fully replaces book state for the symbol.
	BookUpdateSnapshot BookUpdateKind = iota
	// BookUpdateDelta incrementally updates book state.
	BookUpdateDelta
)

// BookLevel is a single (price, quantity) pair. A DELTA level with
// Quantity == 0 means "remove this level".
type BookLevel struct {
	Price    decimal.Price
	Quantity decimal.Quantity
}

// OptionType distinguishes call/put for symbols that carry option
// metadata; Instrument types that are not options leave this at
// OptionTypeNone.
type OptionType uint8

const (
	OptionTypeNone OptionType = iota
	OptionTypeCall
	OptionTypePut
)

// BookUpdate carries either a full snapshot or an incremental delta for one
// symbol's order book. Bids/Asks are arena-backed dynamic sequences in the
// reference implementation (std::pmr::vector<BookLevel>); here they are
// plain slices whose backing array is owned by the pool slot that holds
// this BookUpdate (see internal/bus.Pool).
type BookUpdate struct {
	Symbol       SymbolId
	Instrument   string
	Kind         BookUpdateKind
	Bids         []BookLevel
	Asks         []BookLevel
	ExchangeTsNs int64
	SystemTsNs   int64

	// Option metadata, only meaningful when the symbol is an option.
	HasOptionMeta bool
	Strike        decimal.Price
	Expiry        int64
	OptionType    OptionType
}

// Clear resets a BookUpdate for reuse from a pool slot, truncating but not
// releasing the backing arrays so repeated acquisitions don't reallocate.
func (b *BookUpdate) Clear() {
	b.Symbol = 0
	b.Instrument = ""
	b.Kind = BookUpdateSnapshot
	b.Bids = b.Bids[:0]
	b.Asks = b.Asks[:0]
	b.ExchangeTsNs = 0
	b.SystemTsNs = 0
	b.HasOptionMeta = false
	b.Strike = 0
	b.Expiry = 0
	b.OptionType = OptionTypeNone
}

// BookUpdateEvent wraps a BookUpdate with the bus-assigned sequencing and
// gap-detection fields. Seq/PrevSeq come from the exchange feed; TickSeq is
// assigned by the broadcast bus on publish.
type BookUpdateEvent struct {
	Update   BookUpdate
	Seq      int64
	PrevSeq  int64
	TickSeq  int64
	RecvTsNs int64
	PubTsNs  int64
}

// Clear resets a BookUpdateEvent (and its embedded BookUpdate) for reuse.
func (e *BookUpdateEvent) Clear() {
	e.Update.Clear()
	e.Seq = 0
	e.PrevSeq = 0
	e.TickSeq = 0
	e.RecvTsNs = 0
	e.PubTsNs = 0
}

// SetTickSeq implements bus.Sequenceable.
func (e *BookUpdateEvent) SetTickSeq(seq int64) { e.TickSeq = seq }

// TradeEvent is a value-typed wrapper around a Trade with the same
// sequencing fields as BookUpdateEvent. Small and fixed-size, so unlike
// BookUpdateEvent it is never pool-backed.
type TradeEvent struct {
	Trade    Trade
	Seq      int64
	PrevSeq  int64
	TickSeq  int64
	RecvTsNs int64
	PubTsNs  int64
}

// SetTickSeq implements bus.Sequenceable.
func (e *TradeEvent) SetTickSeq(seq int64) { e.TickSeq = seq }

// CloseReason records why a bar was emitted.
type CloseReason uint8

const (
	CloseReasonThreshold CloseReason = iota
	CloseReasonGap
	CloseReasonForced
	CloseReasonWarmup
)

func (r CloseReason) String() string {
	switch r {
	case CloseReasonThreshold:
		return "threshold"
	case CloseReasonGap:
		return "gap"
	case CloseReasonForced:
		return "forced"
	case CloseReasonWarmup:
		return "warmup"
	default:
		return "unknown"
	}
}

// Bar is a synthesized OHLCV bar.
type Bar struct {
	Open, High, Low, Close decimal.Price
	Volume                 decimal.Volume
	BuyVolume              decimal.Volume
	TradeCount             int64
	StartTime, EndTime     int64
	CloseReason            CloseReason
}

// BarEvent associates a finished Bar with its symbol and timeframe.
type BarEvent struct {
	Symbol     SymbolId
	Instrument string
	BarKind    BarKind
	BarParam   uint32
	Bar        Bar
}

// MarketDataErrorCode enumerates the exchange-error taxonomy from spec §7.
type MarketDataErrorCode uint8

const (
	MarketDataErrConnectionLost MarketDataErrorCode = iota
	MarketDataErrConnectionTimeout
	MarketDataErrInvalidMessage
	MarketDataErrRateLimited
	MarketDataErrSubscriptionFailed
	MarketDataErrStaleData
)

// MarketDataError is delivered to IMarketDataSubscriber.OnMarketDataError.
type MarketDataError struct {
	Code        MarketDataErrorCode
	Symbol      SymbolId
	Message     string
	TimestampNs int64
}

// IMarketDataSubscriber is the collaborator interface a strategy or
// recorder implements to consume the broadcast bus. Default (embeddable)
// no-op implementations live in internal/feed.
type IMarketDataSubscriber interface {
	OnTrade(TradeEvent)
	OnBookUpdate(*BookUpdateEvent)
	OnBar(BarEvent)
	OnMarketDataError(MarketDataError)
}

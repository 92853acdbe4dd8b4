// Package orderbook maintains a single symbol's two-sided depth as a
// tick-indexed fixed array rather than the teacher's red-black-tree price
// levels. The array shape itself is grounded on ndrandal-feed-simulator's
// internal/orderbook/book.go, whose sorted []PriceLevel slices are here
// replaced by two fixed Quantity arrays addressed directly by tick, trading
// the tree's O(log P) inserts for O(1) inserts/clears at the cost of a
// bounded price grid.
package orderbook

import (
	"errors"

	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/types"
)

// DefaultMaxLevels is the default fixed grid width per side.
const DefaultMaxLevels = 8192

// ErrOutOfGrid is returned when a DELTA addresses a price outside the
// configured MaxLevels window around the current base tick. The source
// material leaves this case undocumented; floxcore treats it as a fatal
// configuration error rather than silently dropping the level.
var ErrOutOfGrid = errors.New("orderbook: delta price outside configured grid")

// Config configures an IndexedOrderBook.
type Config struct {
	// TickSize is the minimum price increment; ticks = price / TickSize.
	TickSize decimal.Price
	// MaxLevels bounds the number of addressable ticks per side.
	MaxLevels int
}

// DefaultConfig returns MaxLevels=8192 with the given tick size.
func DefaultConfig(tickSize decimal.Price) Config {
	return Config{TickSize: tickSize, MaxLevels: DefaultMaxLevels}
}

// levelsPerLine is how many int64-sized Quantity values fill one 64-byte
// cache line. New rounds each side's array length up to a multiple of it;
// Go exposes no alignment attribute, so the arrays' start addresses are not
// guaranteed to fall on a 64-byte boundary.
const levelsPerLine = 8

// IndexedOrderBook is a single-writer, tick-addressed depth book for one
// symbol. It must be driven by exactly one bus consumer (spec §5); it holds
// no internal synchronization.
type IndexedOrderBook struct {
	symbol   types.SymbolId
	tickSize decimal.Price
	maxLevels int

	// base is the tick index that bidQty[0]/askQty[0] represent. Re-seated
	// on every SNAPSHOT to keep the live book centered in the grid.
	base int64

	bidQty []decimal.Quantity
	askQty []decimal.Quantity

	bidMinSet, bidMaxSet bool
	bidMinTick, bidMaxTick, bidBestTick int64

	askMinSet, askMaxSet bool
	askMinTick, askMaxTick, askBestTick int64
}

// New constructs an empty book. Capacity is rounded up to a multiple of the
// cache-line group size purely for the doc-comment's alignment claim; it
// does not change addressing.
func New(symbol types.SymbolId, cfg Config) *IndexedOrderBook {
	n := cfg.MaxLevels
	if n <= 0 {
		n = DefaultMaxLevels
	}
	if rem := n % levelsPerLine; rem != 0 {
		n += levelsPerLine - rem
	}
	return &IndexedOrderBook{
		symbol:    symbol,
		tickSize:  cfg.TickSize,
		maxLevels: n,
		bidQty:    make([]decimal.Quantity, n),
		askQty:    make([]decimal.Quantity, n),
	}
}

// Symbol returns the symbol this book tracks.
func (b *IndexedOrderBook) Symbol() types.SymbolId { return b.symbol }

func (b *IndexedOrderBook) tickOf(p decimal.Price) int64 {
	return decimal.Ticks(p, b.tickSize)
}

// Apply dispatches a SNAPSHOT or DELTA book update.
func (b *IndexedOrderBook) Apply(u *types.BookUpdate) error {
	switch u.Kind {
	case types.BookUpdateSnapshot:
		return b.applySnapshot(u)
	default:
		return b.applyDelta(u)
	}
}

// applySnapshot clears all state, re-seats the base index at the median of
// the snapshot's best bid/ask, then writes each level.
func (b *IndexedOrderBook) applySnapshot(u *types.BookUpdate) error {
	for i := range b.bidQty {
		b.bidQty[i] = 0
		b.askQty[i] = 0
	}
	b.bidMinSet, b.bidMaxSet = false, false
	b.askMinSet, b.askMaxSet = false, false
	b.bidBestTick, b.askBestTick = 0, 0

	b.base = b.medianTick(u)

	for _, lvl := range u.Bids {
		if lvl.Quantity == 0 {
			continue
		}
		if err := b.setBid(b.tickOf(lvl.Price), lvl.Quantity); err != nil {
			return err
		}
	}
	for _, lvl := range u.Asks {
		if lvl.Quantity == 0 {
			continue
		}
		if err := b.setAsk(b.tickOf(lvl.Price), lvl.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// medianTick picks a re-centering base tick from the snapshot: the midpoint
// of the first bid and first ask ticks when both sides are present,
// otherwise whichever side is present, otherwise the book's previous base.
func (b *IndexedOrderBook) medianTick(u *types.BookUpdate) int64 {
	switch {
	case len(u.Bids) > 0 && len(u.Asks) > 0:
		return (b.tickOf(u.Bids[0].Price) + b.tickOf(u.Asks[0].Price)) / 2
	case len(u.Bids) > 0:
		return b.tickOf(u.Bids[0].Price)
	case len(u.Asks) > 0:
		return b.tickOf(u.Asks[0].Price)
	default:
		return b.base
	}
}

// applyDelta writes each level's (price, qty); qty==0 clears the slot.
func (b *IndexedOrderBook) applyDelta(u *types.BookUpdate) error {
	for _, lvl := range u.Bids {
		if err := b.setBid(b.tickOf(lvl.Price), lvl.Quantity); err != nil {
			return err
		}
	}
	for _, lvl := range u.Asks {
		if err := b.setAsk(b.tickOf(lvl.Price), lvl.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (b *IndexedOrderBook) indexOf(tick int64) (int, bool) {
	idx := tick - b.base + int64(b.maxLevels/2)
	if idx < 0 || idx >= int64(b.maxLevels) {
		return 0, false
	}
	return int(idx), true
}

func (b *IndexedOrderBook) setBid(tick int64, qty decimal.Quantity) error {
	idx, ok := b.indexOf(tick)
	if !ok {
		return ErrOutOfGrid
	}
	b.bidQty[idx] = qty
	if qty == 0 {
		b.clearBidBounds(tick)
		return nil
	}
	if !b.bidMinSet || tick < b.bidMinTick {
		b.bidMinTick = tick
		b.bidMinSet = true
	}
	if !b.bidMaxSet || tick > b.bidMaxTick {
		b.bidMaxTick = tick
		b.bidMaxSet = true
	}
	if tick > b.bidBestTick || !b.hasBid() {
		b.bidBestTick = tick
	}
	return nil
}

func (b *IndexedOrderBook) setAsk(tick int64, qty decimal.Quantity) error {
	idx, ok := b.indexOf(tick)
	if !ok {
		return ErrOutOfGrid
	}
	b.askQty[idx] = qty
	if qty == 0 {
		b.clearAskBounds(tick)
		return nil
	}
	if !b.askMinSet || tick < b.askMinTick {
		b.askMinTick = tick
		b.askMinSet = true
	}
	if !b.askMaxSet || tick > b.askMaxTick {
		b.askMaxTick = tick
		b.askMaxSet = true
	}
	if tick < b.askBestTick || !b.hasAsk() {
		b.askBestTick = tick
	}
	return nil
}

func (b *IndexedOrderBook) hasBid() bool {
	if !b.bidMaxSet {
		return false
	}
	idx, ok := b.indexOf(b.bidBestTick)
	return ok && b.bidQty[idx] > 0
}

func (b *IndexedOrderBook) hasAsk() bool {
	if !b.askMaxSet {
		return false
	}
	idx, ok := b.indexOf(b.askBestTick)
	return ok && b.askQty[idx] > 0
}

// clearBidBounds handles the case where the cleared slot was (or might have
// been) the cached best; scans inward from the cached extremes toward the
// opposite bound until a non-zero slot is found or the window is exhausted.
func (b *IndexedOrderBook) clearBidBounds(tick int64) {
	if !b.bidMaxSet {
		return
	}
	if tick == b.bidBestTick {
		found := false
		for t := b.bidBestTick - 1; t >= b.bidMinTick; t-- {
			if idx, ok := b.indexOf(t); ok && b.bidQty[idx] > 0 {
				b.bidBestTick = t
				found = true
				break
			}
		}
		if !found {
			b.bidMaxSet, b.bidMinSet = false, false
		}
	}
	if tick == b.bidMaxTick {
		for t := b.bidMaxTick - 1; t >= b.bidMinTick; t-- {
			if idx, ok := b.indexOf(t); ok && b.bidQty[idx] > 0 {
				b.bidMaxTick = t
				break
			}
			if t == b.bidMinTick {
				b.bidMaxSet = false
			}
		}
	}
	if tick == b.bidMinTick && b.bidMinSet {
		for t := b.bidMinTick + 1; t <= b.bidMaxTick; t++ {
			if idx, ok := b.indexOf(t); ok && b.bidQty[idx] > 0 {
				b.bidMinTick = t
				break
			}
			if t == b.bidMaxTick {
				b.bidMinSet = false
			}
		}
	}
}

func (b *IndexedOrderBook) clearAskBounds(tick int64) {
	if !b.askMinSet {
		return
	}
	if tick == b.askBestTick {
		found := false
		for t := b.askBestTick + 1; t <= b.askMaxTick; t++ {
			if idx, ok := b.indexOf(t); ok && b.askQty[idx] > 0 {
				b.askBestTick = t
				found = true
				break
			}
		}
		if !found {
			b.askMaxSet, b.askMinSet = false, false
		}
	}
	if tick == b.askMinTick {
		for t := b.askMinTick + 1; t <= b.askMaxTick; t++ {
			if idx, ok := b.indexOf(t); ok && b.askQty[idx] > 0 {
				b.askMinTick = t
				break
			}
			if t == b.askMaxTick {
				b.askMinSet = false
			}
		}
	}
	if tick == b.askMaxTick && b.askMaxSet {
		for t := b.askMaxTick - 1; t >= b.askMinTick; t-- {
			if idx, ok := b.indexOf(t); ok && b.askQty[idx] > 0 {
				b.askMaxTick = t
				break
			}
			if t == b.askMinTick {
				b.askMaxSet = false
			}
		}
	}
}

// BestBid returns the best bid price and the ok flag (false if the bid side
// is empty).
func (b *IndexedOrderBook) BestBid() (decimal.Price, bool) {
	if !b.hasBid() {
		return 0, false
	}
	return decimal.FromTicks(b.bidBestTick, b.tickSize), true
}

// BestAsk returns the best ask price and the ok flag (false if the ask side
// is empty).
func (b *IndexedOrderBook) BestAsk() (decimal.Price, bool) {
	if !b.hasAsk() {
		return 0, false
	}
	return decimal.FromTicks(b.askBestTick, b.tickSize), true
}

// QtyAt returns the resting quantity at a given price (0 if the price is
// outside the grid or empty).
func (b *IndexedOrderBook) QtyAt(p decimal.Price) decimal.Quantity {
	tick := b.tickOf(p)
	if idx, ok := b.indexOf(tick); ok {
		if q := b.bidQty[idx]; q > 0 {
			return q
		}
		return b.askQty[idx]
	}
	return 0
}

// Spread returns bestAsk-bestBid, or false if either side is empty.
func (b *IndexedOrderBook) Spread() (decimal.Price, bool) {
	bid, ok1 := b.BestBid()
	ask, ok2 := b.BestAsk()
	if !ok1 || !ok2 {
		return 0, false
	}
	return ask.Sub(bid), true
}

// Mid returns the midpoint between bestBid and bestAsk (integer-truncated
// since Price has no fractional tick below its scale), or false if either
// side is empty.
func (b *IndexedOrderBook) Mid() (decimal.Price, bool) {
	bid, ok1 := b.BestBid()
	ask, ok2 := b.BestAsk()
	if !ok1 || !ok2 {
		return 0, false
	}
	return decimal.Price((int64(bid) + int64(ask)) / 2), true
}

// IsCrossed reports whether bestBid >= bestAsk.
func (b *IndexedOrderBook) IsCrossed() bool {
	bid, ok1 := b.BestBid()
	ask, ok2 := b.BestAsk()
	return ok1 && ok2 && bid >= ask
}

// BidLevels returns up to n resting bid levels, best price first.
func (b *IndexedOrderBook) BidLevels(n int) []types.BookLevel {
	if !b.bidMinSet {
		return nil
	}
	out := make([]types.BookLevel, 0, n)
	for t := b.bidMaxTick; t >= b.bidMinTick && len(out) < n; t-- {
		idx, ok := b.indexOf(t)
		if !ok {
			continue
		}
		if q := b.bidQty[idx]; q > 0 {
			out = append(out, types.BookLevel{Price: decimal.FromTicks(t, b.tickSize), Quantity: q})
		}
	}
	return out
}

// AskLevels returns up to n resting ask levels, best price first.
func (b *IndexedOrderBook) AskLevels(n int) []types.BookLevel {
	if !b.askMinSet {
		return nil
	}
	out := make([]types.BookLevel, 0, n)
	for t := b.askMinTick; t <= b.askMaxTick && len(out) < n; t++ {
		idx, ok := b.indexOf(t)
		if !ok {
			continue
		}
		if q := b.askQty[idx]; q > 0 {
			out = append(out, types.BookLevel{Price: decimal.FromTicks(t, b.tickSize), Quantity: q})
		}
	}
	return out
}

// ConsumeAsks walks the ask side inward (best first) accumulating quantity
// up to needQty, returning the filled quantity and its notional. Each
// level's price*qty product uses decimal's 128-bit intermediate (Price.Mul);
// the per-level notionals are summed in int64 with Volume.Add.
func (b *IndexedOrderBook) ConsumeAsks(needQty decimal.Quantity) (decimal.Quantity, decimal.Volume) {
	var filled decimal.Quantity
	var notional decimal.Volume
	if !b.askMinSet {
		return 0, 0
	}
	for t := b.askMinTick; t <= b.askMaxTick && filled < needQty; t++ {
		idx, ok := b.indexOf(t)
		if !ok {
			continue
		}
		q := b.askQty[idx]
		if q <= 0 {
			continue
		}
		take := q
		if remaining := needQty - filled; take > remaining {
			take = remaining
		}
		price := decimal.FromTicks(t, b.tickSize)
		notional = notional.Add(price.Mul(take))
		filled += take
	}
	return filled, notional
}

// ConsumeBids is ConsumeAsks' bid-side sibling: walks from best bid downward.
func (b *IndexedOrderBook) ConsumeBids(needQty decimal.Quantity) (decimal.Quantity, decimal.Volume) {
	var filled decimal.Quantity
	var notional decimal.Volume
	if !b.bidMinSet {
		return 0, 0
	}
	for t := b.bidMaxTick; t >= b.bidMinTick && filled < needQty; t-- {
		idx, ok := b.indexOf(t)
		if !ok {
			continue
		}
		q := b.bidQty[idx]
		if q <= 0 {
			continue
		}
		take := q
		if remaining := needQty - filled; take > remaining {
			take = remaining
		}
		price := decimal.FromTicks(t, b.tickSize)
		notional = notional.Add(price.Mul(take))
		filled += take
	}
	return filled, notional
}

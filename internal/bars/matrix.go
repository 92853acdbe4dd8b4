package bars

import (
	"github.com/rishav/floxcore/internal/symbolmap"
	"github.com/rishav/floxcore/internal/types"
)

// ring is a power-of-two-capacity history buffer where index 0 is always
// the newest push (spec §4.6).
type ring struct {
	buf  []types.Bar
	mask uint64
	head uint64 // number of pushes so far
}

func newRing(depth int) *ring {
	cap := 1
	for cap < depth {
		cap <<= 1
	}
	return &ring{buf: make([]types.Bar, cap), mask: uint64(cap - 1)}
}

func (r *ring) push(bar types.Bar) {
	idx := r.head & r.mask
	r.buf[idx] = bar
	r.head++
}

// at returns the bar i slots back from the newest (0 = newest), or false if
// fewer than i+1 bars have ever been pushed.
func (r *ring) at(i int) (types.Bar, bool) {
	if i < 0 || uint64(i) >= r.head || uint64(i) > r.mask {
		return types.Bar{}, false
	}
	idx := (r.head - 1 - uint64(i)) & r.mask
	return r.buf[idx], true
}

// BarMatrix holds a bounded Depth history of bars per (symbol, timeframe),
// generic over however many symbols and timeframes are actually registered
// (spec §4.6: "generic over MaxSymbols x MaxTimeframes x Depth"). Timeframe
// lookup is linear over the small configured set, as the spec directs;
// symbol lookup within a timeframe column is the O(1) symbolmap.Map.
type BarMatrix struct {
	depth      int
	timeframes []types.TimeframeId
	columns    []*symbolmap.Map[*ring]
}

// NewBarMatrix builds an empty matrix holding up to depth bars per series.
func NewBarMatrix(depth int) *BarMatrix {
	return &BarMatrix{depth: depth}
}

func (m *BarMatrix) columnIndex(tf types.TimeframeId) int {
	for i, t := range m.timeframes {
		if t == tf {
			return i
		}
	}
	m.timeframes = append(m.timeframes, tf)
	m.columns = append(m.columns, symbolmap.New[*ring]())
	return len(m.timeframes) - 1
}

func (m *BarMatrix) seriesFor(symbol types.SymbolId, tf types.TimeframeId) *ring {
	col := m.columns[m.columnIndex(tf)]
	r := col.Get(symbol)
	if *r == nil {
		*r = newRing(m.depth)
	}
	return *r
}

// Push appends a finished bar to the (symbol, timeframe) series.
func (m *BarMatrix) Push(symbol types.SymbolId, tf types.TimeframeId, bar types.Bar) {
	m.seriesFor(symbol, tf).push(bar)
}

// Warmup preloads history in newest-last order (history[len-1] becomes the
// most recent bar), matching spec §4.6's warmup ordering.
func (m *BarMatrix) Warmup(symbol types.SymbolId, tf types.TimeframeId, history []types.Bar) {
	series := m.seriesFor(symbol, tf)
	for _, bar := range history {
		series.push(bar)
	}
}

// At returns the bar index slots back from the newest for (symbol, tf), or
// false if not that many bars have been recorded.
func (m *BarMatrix) At(symbol types.SymbolId, tf types.TimeframeId, index int) (types.Bar, bool) {
	for i, t := range m.timeframes {
		if t == tf {
			col := m.columns[i]
			r, ok := col.Lookup(symbol)
			if !ok || *r == nil {
				return types.Bar{}, false
			}
			return (*r).at(index)
		}
	}
	return types.Bar{}, false
}

// Consume implements bus.Subscriber[types.BarEvent] so a BarMatrix can
// auto-populate by subscribing directly to a bar event bus.
func (m *BarMatrix) Consume(_ int64, ev *types.BarEvent) {
	tf := types.NewTimeframeId(ev.BarKind, ev.BarParam)
	m.Push(ev.Symbol, tf, ev.Bar)
}

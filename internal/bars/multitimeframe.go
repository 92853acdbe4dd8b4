package bars

import "github.com/rishav/floxcore/internal/types"

// MaxTimeframes bounds how many timeframe slots a MultiTimeframeAggregator
// holds (spec §4.4).
const MaxTimeframes = 32

// MultiTimeframeAggregator fans a single trade stream out to up to
// MaxTimeframes independent Aggregators, one per configured timeframe.
type MultiTimeframeAggregator struct {
	slots []*Aggregator
}

// NewMultiTimeframeAggregator builds an empty aggregator set.
func NewMultiTimeframeAggregator() *MultiTimeframeAggregator {
	return &MultiTimeframeAggregator{slots: make([]*Aggregator, 0, MaxTimeframes)}
}

// AddTimeframe registers a new timeframe slot. Returns false if
// MaxTimeframes is already occupied.
func (m *MultiTimeframeAggregator) AddTimeframe(policy Policy, tf types.TimeframeId, emit EmitFunc) bool {
	if len(m.slots) >= MaxTimeframes {
		return false
	}
	m.slots = append(m.slots, NewAggregator(policy, tf, emit))
	return true
}

// OnTrade fans trade out to every active timeframe slot.
func (m *MultiTimeframeAggregator) OnTrade(trade types.Trade) {
	for _, s := range m.slots {
		s.OnTrade(trade)
	}
}

// Stop flushes every slot's in-progress bars with reason Forced.
func (m *MultiTimeframeAggregator) Stop() {
	for _, s := range m.slots {
		s.Stop()
	}
}

// Package symbolmap implements the hybrid O(1) per-symbol state map shared
// by the bar aggregator (spec §4.5) and the simulated executor's per-symbol
// market state (spec §4.7): a flat array for the common case of low,
// densely packed symbol ids plus an overflow sequence for the rest.
package symbolmap

import "github.com/rishav/floxcore/internal/types"

// flatSize is the threshold below which SymbolId indexes directly into a
// flat array; spec §4.5 names this as symbol < 256.
const flatSize = 256

type overflowEntry[T any] struct {
	id    types.SymbolId
	state T
}

// Map is a hybrid O(1) map: a flat array for SymbolId < 256 and an overflow
// slice of (id, state) pairs for everything else. It performs no internal
// synchronization — the owning component must serialize access, matching
// spec §4.5.
type Map[T any] struct {
	flat      [flatSize]T
	flatInit  [flatSize]bool
	overflow  []overflowEntry[T]
	zero      T
}

// New constructs an empty Map.
func New[T any]() *Map[T] {
	return &Map[T]{}
}

// Get returns a pointer to symbol's state, creating it (zero-valued) on
// first access, matching spec §4.5's "operator[] creates state on first
// access" semantics.
func (m *Map[T]) Get(symbol types.SymbolId) *T {
	if int(symbol) < flatSize {
		m.flatInit[symbol] = true
		return &m.flat[symbol]
	}
	for i := range m.overflow {
		if m.overflow[i].id == symbol {
			return &m.overflow[i].state
		}
	}
	m.overflow = append(m.overflow, overflowEntry[T]{id: symbol, state: m.zero})
	return &m.overflow[len(m.overflow)-1].state
}

// Lookup returns symbol's state without creating it; ok is false if the
// symbol has never been accessed via Get.
func (m *Map[T]) Lookup(symbol types.SymbolId) (*T, bool) {
	if int(symbol) < flatSize {
		if !m.flatInit[symbol] {
			return nil, false
		}
		return &m.flat[symbol], true
	}
	for i := range m.overflow {
		if m.overflow[i].id == symbol {
			return &m.overflow[i].state, true
		}
	}
	return nil, false
}

// ForEach iterates every initialized entry. The callback must not mutate the
// map.
func (m *Map[T]) ForEach(fn func(symbol types.SymbolId, state *T)) {
	for i := 0; i < flatSize; i++ {
		if m.flatInit[i] {
			fn(types.SymbolId(i), &m.flat[i])
		}
	}
	for i := range m.overflow {
		fn(m.overflow[i].id, &m.overflow[i].state)
	}
}

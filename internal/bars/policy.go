// Package bars synthesizes OHLCV bars from a trade stream using tagged-union
// policy dispatch rather than an interface per policy kind: spec §9's design
// notes cite tag+switch dispatch as 17-20% faster than dynamic dispatch for
// this workload, the same tradeoff the teacher's own order-type handling in
// internal/orders made with a plain enum rather than a strategy interface.
package bars

import (
	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/types"
)

// Policy is a tagged union over the bar-closing rules. Exactly the fields
// relevant to Kind are meaningful; all methods are non-failing and
// allocation-free.
type Policy struct {
	Kind  types.BarKind
	Param uint32

	// Time: interval in nanoseconds.
	IntervalNs int64
	// Tick: close after N trades.
	TickCount int64
	// Volume: close once notional volume reaches Threshold.
	Threshold decimal.Volume
	// Renko: close when |price-open| >= BrickSize.
	BrickSize decimal.Price
	// Range: close when high-low >= RangeThreshold.
	RangeThreshold decimal.Price
}

// NewTimePolicy builds a Time policy closing every interval.
func NewTimePolicy(interval int64) Policy {
	return Policy{Kind: types.BarKindTime, Param: uint32(interval), IntervalNs: interval}
}

// NewTickPolicy builds a Tick policy closing every n trades.
func NewTickPolicy(n int64) Policy {
	return Policy{Kind: types.BarKindTick, Param: uint32(n), TickCount: n}
}

// NewVolumePolicy builds a Volume policy closing once notional volume
// reaches threshold.
func NewVolumePolicy(threshold decimal.Volume) Policy {
	return Policy{Kind: types.BarKindVolume, Param: uint32(threshold / decimal.Scale), Threshold: threshold}
}

// NewRenkoPolicy builds a Renko policy with the given brick size.
func NewRenkoPolicy(brickSize decimal.Price) Policy {
	return Policy{Kind: types.BarKindRenko, Param: uint32(brickSize / decimal.Scale), BrickSize: brickSize}
}

// NewRangePolicy builds a Range policy closing once high-low reaches
// rangeThreshold.
func NewRangePolicy(rangeThreshold decimal.Price) Policy {
	return Policy{Kind: types.BarKindRange, Param: uint32(rangeThreshold / decimal.Scale), RangeThreshold: rangeThreshold}
}

// ShouldClose reports whether trade should close the in-progress bar.
func (p Policy) ShouldClose(trade types.Trade, bar *types.Bar) bool {
	switch p.Kind {
	case types.BarKindTime:
		return trade.ExchangeTsNs >= bar.StartTime+p.IntervalNs
	case types.BarKindTick:
		return bar.TradeCount >= p.TickCount
	case types.BarKindVolume:
		return bar.Volume >= p.Threshold
	case types.BarKindRenko:
		diff := int64(trade.Price) - int64(bar.Open)
		if diff < 0 {
			diff = -diff
		}
		return diff >= int64(p.BrickSize)
	case types.BarKindRange:
		return int64(bar.High-bar.Low) >= int64(p.RangeThreshold)
	default:
		return false
	}
}

// InitBar seeds bar from trade: OHLC=price, volume=notional, tradeCount=1.
func (p Policy) InitBar(trade types.Trade, bar *types.Bar) {
	notional := trade.Notional()
	bar.Open = trade.Price
	bar.High = trade.Price
	bar.Low = trade.Price
	bar.Close = trade.Price
	bar.Volume = notional
	bar.BuyVolume = 0
	if trade.IsBuy {
		bar.BuyVolume = notional
	}
	bar.TradeCount = 1
	bar.StartTime = trade.ExchangeTsNs
	bar.EndTime = trade.ExchangeTsNs
	bar.CloseReason = types.CloseReasonThreshold
}

// Update folds trade into an in-progress bar.
func (p Policy) Update(trade types.Trade, bar *types.Bar) {
	notional := trade.Notional()
	if trade.Price > bar.High {
		bar.High = trade.Price
	}
	if trade.Price < bar.Low {
		bar.Low = trade.Price
	}
	bar.Close = trade.Price
	bar.Volume += notional
	if trade.IsBuy {
		bar.BuyVolume += notional
	}
	bar.TradeCount++
	bar.EndTime = trade.ExchangeTsNs
}

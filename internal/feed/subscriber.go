// Package feed provides default IMarketDataSubscriber implementations and a
// fan-out tap for observing the market-data stream the backtest runner
// forwards to a strategy (spec §6).
package feed

import "github.com/rishav/floxcore/internal/types"

// NoopMarketDataSubscriber is embeddable by any strategy or subscriber that
// only cares about a subset of IMarketDataSubscriber's callbacks, matching
// the embeddable-default pattern types.NoopExecutionListener already uses
// for IOrderExecutionListener.
type NoopMarketDataSubscriber struct{}

func (NoopMarketDataSubscriber) OnTrade(types.TradeEvent)            {}
func (NoopMarketDataSubscriber) OnBookUpdate(*types.BookUpdateEvent) {}
func (NoopMarketDataSubscriber) OnBar(types.BarEvent)                {}
func (NoopMarketDataSubscriber) OnMarketDataError(types.MarketDataError) {}

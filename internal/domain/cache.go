package domain

import "context"

// PriceBook is the shared latest-wins price table. The stream writer calls
// Update for every tick; the scanner calls Get on every evaluation. Both are
// synchronous and non-blocking beyond the minimal critical section: a later
// Update for a symbol always supersedes an earlier one, and a concurrent
// reader sees either the old or the new price, never a torn value. Entries
// for symbols that have never been quoted are simply absent.
type PriceBook interface {
	Update(symbol string, price float64)
	Get(symbol string) (price float64, ok bool)
	Len() int
}

// SignalBus publishes engine events to external consumers: ephemeral pub/sub
// messages plus a durable, trimmed stream of execution records.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// Package domain defines the core types and interfaces of the triangular
// arbitrage engine: instruments, cycles, leg orders, execution records, and
// the contracts implemented by the cache, store, blob, and signal layers.
package domain

// Instrument is a tradable pair on the venue, identified by its symbol and
// decomposed into a base and a quote asset (e.g. ETHBTC: base=ETH, quote=BTC).
// Instruments are immutable once loaded from the exchange catalog.
type Instrument struct {
	Symbol string
	Base   string
	Quote  string
}

// InstrumentIndex maps a symbol to its Instrument for O(1) lookups during
// cycle generation. It is built once at startup and read-only thereafter.
type InstrumentIndex map[string]Instrument

// NewInstrumentIndex builds an index over the full instrument list.
func NewInstrumentIndex(instruments []Instrument) InstrumentIndex {
	idx := make(InstrumentIndex, len(instruments))
	for _, ins := range instruments {
		idx[ins.Symbol] = ins
	}
	return idx
}

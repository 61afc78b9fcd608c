// Package arbitrage implements the triangular arbitrage engine: candidate
// cycle generation from the venue's instrument graph and the periodic scanner
// that evaluates cycles against the live price book.
package arbitrage

import (
	"github.com/arbeng/triarb/internal/domain"
)

// Generate derives every BuyBuySell and BuySellSell cycle from the
// instrument list relative to the home quote asset. The result order is
// deterministic: outer loop over the directly purchasable instruments in
// catalog order, inner loop over the filtered candidates in catalog order,
// all BuyBuySell cycles first. Generate is a pure function over its inputs.
func Generate(instruments []domain.Instrument, quoteAsset string) []domain.Cycle {
	index := domain.NewInstrumentIndex(instruments)

	// Instruments purchasable directly with the home asset.
	buySymbols := make([]domain.Instrument, 0)
	for _, ins := range instruments {
		if ins.Quote == quoteAsset {
			buySymbols = append(buySymbols, ins)
		}
	}

	cycles := make([]domain.Cycle, 0)
	cycles = append(cycles, buyBuySell(buySymbols, instruments, index)...)
	cycles = append(cycles, buySellSell(buySymbols, instruments, index)...)
	return cycles
}

// buyBuySell emits cycles of the shape buy1 (home→X), buy2 (X→Y),
// sell1 (Y→home). For each buy1 it scans instruments quoted in buy1's base
// and closes the triangle through the index.
func buyBuySell(buySymbols, all []domain.Instrument, index domain.InstrumentIndex) []domain.Cycle {
	cycles := make([]domain.Cycle, 0)
	for _, buy1 := range buySymbols {
		for _, buy2 := range all {
			if buy2.Quote != buy1.Base {
				continue
			}
			sell1, ok := index[buy2.Base+buy1.Quote]
			if !ok {
				continue
			}
			cycles = append(cycles, domain.Cycle{
				Kind: domain.CycleBuyBuySell,
				Legs: [3]domain.Instrument{buy1, buy2, sell1},
			})
		}
	}
	return cycles
}

// buySellSell emits cycles of the shape buy1 (home→X), sell1 (X against a
// different quote Y), sell2 (Y→home). sell1 shares buy1's base asset but not
// its quote.
func buySellSell(buySymbols, all []domain.Instrument, index domain.InstrumentIndex) []domain.Cycle {
	cycles := make([]domain.Cycle, 0)
	for _, buy1 := range buySymbols {
		for _, sell1 := range all {
			if sell1.Base != buy1.Base || sell1.Quote == buy1.Quote {
				continue
			}
			sell2, ok := index[sell1.Quote+buy1.Quote]
			if !ok {
				continue
			}
			cycles = append(cycles, domain.Cycle{
				Kind: domain.CycleBuySellSell,
				Legs: [3]domain.Instrument{buy1, sell1, sell2},
			})
		}
	}
	return cycles
}

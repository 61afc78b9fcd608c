// Package marketdata holds the in-process live price state fed by the
// exchange stream and read by the arbitrage scanner.
package marketdata

import (
	"sync"

	"github.com/arbeng/triarb/internal/domain"
)

// Book is the latest-wins price table. It keeps exactly one price per symbol:
// a later Update always supersedes an earlier one and no history is retained.
// The symbol set is fixed and small (the venue catalog), so entries are never
// evicted for the lifetime of the process.
type Book struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewBook creates an empty price book.
func NewBook() *Book {
	return &Book{prices: make(map[string]float64)}
}

// Update unconditionally overwrites the stored price for symbol.
func (b *Book) Update(symbol string, price float64) {
	b.mu.Lock()
	b.prices[symbol] = price
	b.mu.Unlock()
}

// Get returns the current price for symbol, or ok=false when the symbol has
// never been quoted.
func (b *Book) Get(symbol string) (float64, bool) {
	b.mu.RLock()
	price, ok := b.prices[symbol]
	b.mu.RUnlock()
	return price, ok
}

// Len returns the number of symbols currently quoted.
func (b *Book) Len() int {
	b.mu.RLock()
	n := len(b.prices)
	b.mu.RUnlock()
	return n
}

// Compile-time interface check.
var _ domain.PriceBook = (*Book)(nil)

package domain

import "fmt"

// CycleKind tags the two supported triangle shapes.
type CycleKind string

const (
	// CycleBuyBuySell buys the first leg with the home asset, buys the
	// second leg with the acquired asset, and sells the third leg back into
	// the home asset.
	CycleBuyBuySell CycleKind = "buy_buy_sell"

	// CycleBuySellSell buys the first leg with the home asset, sells the
	// acquired asset on the second leg against a different quote, and sells
	// that quote back into the home asset on the third leg.
	CycleBuySellSell CycleKind = "buy_sell_sell"
)

// Cycle is one triangular arbitrage candidate: three instruments whose asset
// chain starts and ends in the home asset. Legs are stored in execution
// order. Cycles are generated once at startup and immutable afterwards.
type Cycle struct {
	Kind CycleKind
	Legs [3]Instrument
}

// Sides returns the order side of each leg in execution order.
func (c Cycle) Sides() [3]OrderSide {
	if c.Kind == CycleBuyBuySell {
		return [3]OrderSide{OrderSideBuy, OrderSideBuy, OrderSideSell}
	}
	return [3]OrderSide{OrderSideBuy, OrderSideSell, OrderSideSell}
}

// Symbols returns the three leg symbols in execution order.
func (c Cycle) Symbols() [3]string {
	return [3]string{c.Legs[0].Symbol, c.Legs[1].Symbol, c.Legs[2].Symbol}
}

// Key is a stable identifier for the cycle, used for in-flight guards and
// event payloads.
func (c Cycle) Key() string {
	return string(c.Kind) + ":" + c.Legs[0].Symbol + ">" + c.Legs[1].Symbol + ">" + c.Legs[2].Symbol
}

// String renders the cycle in the human-readable form used in notifications,
// e.g. "BUY BUY SELL BTCUSDT > ETHBTC > ETHUSDT".
func (c Cycle) String() string {
	label := "BUY BUY SELL"
	if c.Kind == CycleBuySellSell {
		label = "BUY SELL SELL"
	}
	return fmt.Sprintf("%s %s > %s > %s", label, c.Legs[0].Symbol, c.Legs[1].Symbol, c.Legs[2].Symbol)
}

// CrossRate computes the multiplicative round-trip rate of the cycle given
// the three leg prices in execution order. A value above 1 means one unit of
// the home asset comes back as more than one unit before fees.
//
// BuyBuySell: (1/p1) * (1/p2) * p3, i.e. home to X, X to Y, Y back to home.
// BuySellSell: (1/p1) * p2 * p3.
func (c Cycle) CrossRate(p1, p2, p3 float64) float64 {
	if c.Kind == CycleBuyBuySell {
		return (1 / p1) * (1 / p2) * p3
	}
	return (1 / p1) * p2 * p3
}

// ExpectedReturn converts an invested home-asset amount through the cycle at
// the given prices, yielding the home-asset amount that would come back.
func (c Cycle) ExpectedReturn(amount, p1, p2, p3 float64) float64 {
	return amount * c.CrossRate(p1, p2, p3)
}

package domain

import "time"

// OrderSide indicates whether a leg buys or sells its instrument.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// LegRequest is one order of a cycle execution. Price is the cached price
// frozen at decision time; Quantity is the fixed configured per-leg amount.
// All legs are submitted as LIMIT orders with good-till-cancelled
// time-in-force.
type LegRequest struct {
	Symbol   string
	Side     OrderSide
	Price    float64
	Quantity float64
}

// OrderResult wraps the venue response after a leg order is accepted.
type OrderResult struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Status        string
	Price         float64
	OrigQuantity  float64
	ExecutedQty   float64
	TransactTime  time.Time
}

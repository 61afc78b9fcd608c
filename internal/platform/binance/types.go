package binance

// miniTicker is one entry of the all-market mini-ticker stream. Only the
// fields the price book needs are decoded.
type miniTicker struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

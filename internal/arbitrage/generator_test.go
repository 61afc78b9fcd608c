package arbitrage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbeng/triarb/internal/domain"
)

var triangleCatalog = []domain.Instrument{
	{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT"},
	{Symbol: "ETHBTC", Base: "ETH", Quote: "BTC"},
	{Symbol: "ETHUSDT", Base: "ETH", Quote: "USDT"},
}

// checkClosed verifies the asset chain of a cycle starts and ends in the home
// asset, following the per-shape invariants on base/quote composition.
func checkClosed(t *testing.T, c domain.Cycle, home string) {
	t.Helper()

	buy1 := c.Legs[0]
	require.Equal(t, home, buy1.Quote, "first leg must be purchasable with the home asset")

	switch c.Kind {
	case domain.CycleBuyBuySell:
		buy2, sell1 := c.Legs[1], c.Legs[2]
		assert.Equal(t, buy1.Base, buy2.Quote)
		assert.Equal(t, buy2.Base, sell1.Base)
		assert.Equal(t, home, sell1.Quote)
	case domain.CycleBuySellSell:
		sell1, sell2 := c.Legs[1], c.Legs[2]
		assert.Equal(t, buy1.Base, sell1.Base)
		assert.NotEqual(t, home, sell1.Quote)
		assert.Equal(t, sell1.Quote, sell2.Base)
		assert.Equal(t, home, sell2.Quote)
	default:
		t.Fatalf("unknown cycle kind %q", c.Kind)
	}
}

func TestGenerateTriangle(t *testing.T) {
	cycles := Generate(triangleCatalog, "USDT")
	require.Len(t, cycles, 2)

	bbs := cycles[0]
	assert.Equal(t, domain.CycleBuyBuySell, bbs.Kind)
	assert.Equal(t, [3]string{"BTCUSDT", "ETHBTC", "ETHUSDT"}, bbs.Symbols())

	bss := cycles[1]
	assert.Equal(t, domain.CycleBuySellSell, bss.Kind)
	assert.Equal(t, [3]string{"ETHUSDT", "ETHBTC", "BTCUSDT"}, bss.Symbols())

	for _, c := range cycles {
		checkClosed(t, c, "USDT")
	}
}

func TestGenerateNoCycleWithoutClosingLeg(t *testing.T) {
	// ETHUSDT is missing, so neither shape can return to USDT.
	catalog := []domain.Instrument{
		{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT"},
		{Symbol: "ETHBTC", Base: "ETH", Quote: "BTC"},
	}
	cycles := Generate(catalog, "USDT")
	assert.Empty(t, cycles)
}

func TestGenerateDeterministicOrder(t *testing.T) {
	catalog := []domain.Instrument{
		{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT"},
		{Symbol: "BNBUSDT", Base: "BNB", Quote: "USDT"},
		{Symbol: "ETHBTC", Base: "ETH", Quote: "BTC"},
		{Symbol: "ETHBNB", Base: "ETH", Quote: "BNB"},
		{Symbol: "ETHUSDT", Base: "ETH", Quote: "USDT"},
		{Symbol: "BNBBTC", Base: "BNB", Quote: "BTC"},
	}

	first := Generate(catalog, "USDT")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Generate(catalog, "USDT"))
	}

	// BuyBuySell cycles come first, in catalog order of the first leg.
	require.NotEmpty(t, first)
	assert.Equal(t, domain.CycleBuyBuySell, first[0].Kind)
	for _, c := range first {
		checkClosed(t, c, "USDT")
	}
}

func TestGenerateLargerGraph(t *testing.T) {
	catalog := []domain.Instrument{
		{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT"},
		{Symbol: "ETHUSDT", Base: "ETH", Quote: "USDT"},
		{Symbol: "BNBUSDT", Base: "BNB", Quote: "USDT"},
		{Symbol: "ETHBTC", Base: "ETH", Quote: "BTC"},
		{Symbol: "BNBBTC", Base: "BNB", Quote: "BTC"},
		{Symbol: "BNBETH", Base: "BNB", Quote: "ETH"},
	}
	cycles := Generate(catalog, "USDT")

	// Every generated cycle must compose back to USDT and appear at most once
	// per shape for a given asset triple.
	seen := make(map[string]bool)
	for _, c := range cycles {
		checkClosed(t, c, "USDT")
		key := c.Key()
		assert.False(t, seen[key], "duplicate cycle %s", key)
		seen[key] = true
	}

	// BTC->ETH via ETHBTC, BTC->BNB via BNBBTC, ETH->BNB via BNBETH all close.
	want := map[string]bool{
		"buy_buy_sell:BTCUSDT>ETHBTC>ETHUSDT":  true,
		"buy_buy_sell:BTCUSDT>BNBBTC>BNBUSDT":  true,
		"buy_buy_sell:ETHUSDT>BNBETH>BNBUSDT":  true,
		"buy_sell_sell:ETHUSDT>ETHBTC>BTCUSDT": true,
		"buy_sell_sell:BNBUSDT>BNBBTC>BTCUSDT": true,
		"buy_sell_sell:BNBUSDT>BNBETH>ETHUSDT": true,
	}
	for k := range want {
		assert.True(t, seen[k], "missing cycle %s", k)
	}
	assert.Len(t, cycles, len(want))
}

package arbitrage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbeng/triarb/internal/domain"
	"github.com/arbeng/triarb/internal/marketdata"
)

// captureDispatcher records dispatched decisions on a channel. When block is
// set, Execute waits until release is closed, which lets tests hold a cycle
// in flight across scans.
type captureDispatcher struct {
	decisions chan Decision
	block     bool
	release   chan struct{}
}

func newCaptureDispatcher() *captureDispatcher {
	return &captureDispatcher{
		decisions: make(chan Decision, 16),
		release:   make(chan struct{}),
	}
}

func (d *captureDispatcher) Execute(ctx context.Context, dec Decision) {
	d.decisions <- dec
	if d.block {
		<-d.release
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bbsCycle() domain.Cycle {
	return domain.Cycle{
		Kind: domain.CycleBuyBuySell,
		Legs: [3]domain.Instrument{
			{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT"},
			{Symbol: "ETHBTC", Base: "ETH", Quote: "BTC"},
			{Symbol: "ETHUSDT", Base: "ETH", Quote: "USDT"},
		},
	}
}

func waitDecision(t *testing.T, d *captureDispatcher) Decision {
	t.Helper()
	select {
	case dec := <-d.decisions:
		return dec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
		return Decision{}
	}
}

func assertNoDecision(t *testing.T, d *captureDispatcher) {
	t.Helper()
	select {
	case dec := <-d.decisions:
		t.Fatalf("unexpected dispatch: %v", dec.Cycle)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScanSkipsCycleWithMissingLeg(t *testing.T) {
	book := marketdata.NewBook()
	book.Update("BTCUSDT", 10)
	book.Update("ETHBTC", 2)
	// ETHUSDT never quoted.

	disp := newCaptureDispatcher()
	s := NewScanner([]domain.Cycle{bbsCycle()}, book, disp, 1.0, 100, time.Second, testLogger())

	s.ScanOnce(context.Background())
	assertNoDecision(t, disp)
}

func TestScanDispatchesAboveThreshold(t *testing.T) {
	book := marketdata.NewBook()
	book.Update("BTCUSDT", 10)
	book.Update("ETHBTC", 2)
	book.Update("ETHUSDT", 21)

	disp := newCaptureDispatcher()
	s := NewScanner([]domain.Cycle{bbsCycle()}, book, disp, 1.0, 100, time.Second, testLogger())

	s.ScanOnce(context.Background())

	dec := waitDecision(t, disp)
	assert.InDelta(t, 1.05, dec.CrossRate, 1e-9)
	assert.Equal(t, [3]float64{10, 2, 21}, dec.Prices, "prices must be frozen at decision time")
	assert.Equal(t, 100.0, dec.Amount)
	assert.InDelta(t, 105.0, dec.Cycle.ExpectedReturn(dec.Amount, dec.Prices[0], dec.Prices[1], dec.Prices[2]), 1e-9)
}

func TestScanHoldsBelowThreshold(t *testing.T) {
	book := marketdata.NewBook()
	book.Update("BTCUSDT", 10)
	book.Update("ETHBTC", 2)
	book.Update("ETHUSDT", 19)

	disp := newCaptureDispatcher()
	s := NewScanner([]domain.Cycle{bbsCycle()}, book, disp, 1.0, 100, time.Second, testLogger())

	s.ScanOnce(context.Background())
	assertNoDecision(t, disp)
}

// A cross-rate exactly at the threshold is NOT actionable: activation is
// strictly greater-than.
func TestScanThresholdBoundaryIsExclusive(t *testing.T) {
	catalog := []domain.Instrument{
		{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT"},
		{Symbol: "ETHBTC", Base: "ETH", Quote: "BTC"},
		{Symbol: "ETHUSDT", Base: "ETH", Quote: "USDT"},
	}
	cycles := Generate(catalog, "USDT")
	require.NotEmpty(t, cycles)

	book := marketdata.NewBook()
	book.Update("BTCUSDT", 20000)
	book.Update("ETHBTC", 0.05)
	book.Update("ETHUSDT", 1000)

	// (1/20000) * (1/0.05) * 1000 == 1.0 exactly.
	bbs := cycles[0]
	assert.InDelta(t, 1.0, bbs.CrossRate(20000, 0.05, 1000), 1e-9)

	disp := newCaptureDispatcher()
	s := NewScanner(cycles[:1], book, disp, 1.0, 100, time.Second, testLogger())

	s.ScanOnce(context.Background())
	assertNoDecision(t, disp)
}

func TestScanInFlightGuard(t *testing.T) {
	book := marketdata.NewBook()
	book.Update("BTCUSDT", 10)
	book.Update("ETHBTC", 2)
	book.Update("ETHUSDT", 21)

	disp := newCaptureDispatcher()
	disp.block = true
	s := NewScanner([]domain.Cycle{bbsCycle()}, book, disp, 1.0, 100, time.Second, testLogger())

	ctx := context.Background()
	s.ScanOnce(ctx)
	waitDecision(t, disp) // first dispatch is now held in flight

	// Overlapping ticks must not execute the same cycle again.
	s.ScanOnce(ctx)
	s.ScanOnce(ctx)
	assertNoDecision(t, disp)

	close(disp.release)
	s.wg.Wait()

	// Once settled, the cycle becomes eligible again.
	disp.block = false
	s.ScanOnce(ctx)
	waitDecision(t, disp)
}

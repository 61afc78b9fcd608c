// Package feed connects the market-data stream to the price book.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/arbeng/triarb/internal/domain"
	"github.com/arbeng/triarb/internal/platform/binance"
)

// logEvery throttles the tick counter log line.
const logEvery = 30 * time.Second

// StreamFeeder owns the WebSocket connection and writes every tick into the
// price book. The book only ever moves forward: a tick always overwrites
// whatever price was there before it.
type StreamFeeder struct {
	ws     *binance.WSClient
	book   domain.PriceBook
	logger *slog.Logger
}

// NewStreamFeeder creates a StreamFeeder updating book from ws.
func NewStreamFeeder(ws *binance.WSClient, book domain.PriceBook, logger *slog.Logger) *StreamFeeder {
	return &StreamFeeder{
		ws:     ws,
		book:   book,
		logger: logger.With(slog.String("component", "feeder")),
	}
}

// Run connects the stream and blocks until ctx is cancelled. Reconnection is
// handled inside the stream client; Run only has to tear it down at the end.
func (f *StreamFeeder) Run(ctx context.Context) error {
	ticks := make(chan struct{}, 1)
	f.ws.OnTick(func(symbol string, price float64) {
		f.book.Update(symbol, price)
		select {
		case ticks <- struct{}{}:
		default:
		}
	})

	if err := f.ws.Connect(ctx); err != nil {
		return err
	}
	f.logger.InfoContext(ctx, "market stream connected")

	var count uint64
	progress := time.NewTicker(logEvery)
	defer progress.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.InfoContext(ctx, "market stream closing")
			return f.ws.Close()
		case <-ticks:
			count++
		case <-progress.C:
			f.logger.DebugContext(ctx, "market stream alive",
				slog.Uint64("tick_batches", count),
				slog.Int("quoted_symbols", f.book.Len()),
			)
		}
	}
}

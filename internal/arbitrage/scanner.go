package arbitrage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arbeng/triarb/internal/domain"
)

// Decision is an actionable cycle handed to the dispatcher: the cycle, the
// three leg prices frozen at decision time, the fixed invested amount, and
// the computed cross-rate. Prices are never re-read after the decision.
type Decision struct {
	Cycle     domain.Cycle
	Prices    [3]float64
	Amount    float64
	CrossRate float64
	At        time.Time
}

// Dispatcher receives actionable cycles. Implementations must contain their
// own failures: an error inside a dispatch must never surface back into the
// scan loop.
type Dispatcher interface {
	Execute(ctx context.Context, d Decision)
}

// Scanner periodically evaluates every generated cycle against the price
// book and dispatches the actionable ones. Each dispatch runs in its own
// goroutine so a slow execution never delays the next tick; a per-cycle
// in-flight guard prevents overlapping ticks from executing the same cycle
// twice concurrently.
type Scanner struct {
	cycles    []domain.Cycle
	book      domain.PriceBook
	disp      Dispatcher
	threshold float64
	amount    float64
	interval  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewScanner creates a Scanner over the precomputed cycle list. threshold is
// the profitability multiplier a cross-rate must strictly exceed; amount is
// the fixed per-leg quantity handed to the dispatcher.
func NewScanner(
	cycles []domain.Cycle,
	book domain.PriceBook,
	disp Dispatcher,
	threshold float64,
	amount float64,
	interval time.Duration,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		cycles:    cycles,
		book:      book,
		disp:      disp,
		threshold: threshold,
		amount:    amount,
		interval:  interval,
		logger:    logger.With(slog.String("component", "scanner")),
		inflight:  make(map[string]struct{}),
	}
}

// Run drives the evaluation loop until ctx is cancelled. It waits for any
// in-flight dispatches to settle before returning.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scanner starting",
		slog.Int("cycles", len(s.cycles)),
		slog.Duration("interval", s.interval),
		slog.Float64("threshold", s.threshold),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.ScanOnce(ctx)
		}
	}
}

// ScanOnce evaluates every cycle in generation order exactly once. A cycle
// with any leg missing from the price book is skipped silently; an actionable
// cycle is dispatched asynchronously unless it is already in flight.
func (s *Scanner) ScanOnce(ctx context.Context) {
	evaluated := 0
	for _, cycle := range s.cycles {
		d, ok := s.evaluate(cycle)
		if !ok {
			continue
		}
		evaluated++
		if d.CrossRate > s.threshold {
			s.dispatch(ctx, d)
		}
	}
	s.logger.DebugContext(ctx, "scan tick",
		slog.Int("evaluated", evaluated),
		slog.Int("quoted_symbols", s.book.Len()),
	)
}

// evaluate reads the three leg prices and computes the cross-rate. ok=false
// means at least one leg has never been quoted; partial market data must
// never produce a decision, so the cycle is skipped without error.
func (s *Scanner) evaluate(cycle domain.Cycle) (Decision, bool) {
	syms := cycle.Symbols()

	p1, ok := s.book.Get(syms[0])
	if !ok {
		return Decision{}, false
	}
	p2, ok := s.book.Get(syms[1])
	if !ok {
		return Decision{}, false
	}
	p3, ok := s.book.Get(syms[2])
	if !ok {
		return Decision{}, false
	}

	return Decision{
		Cycle:     cycle,
		Prices:    [3]float64{p1, p2, p3},
		Amount:    s.amount,
		CrossRate: cycle.CrossRate(p1, p2, p3),
		At:        time.Now().UTC(),
	}, true
}

// dispatch hands the decision to the dispatcher on its own goroutine. The
// cycle stays marked in-flight until the dispatch settles, so the same
// opportunity is never executed twice concurrently even when ticks overlap.
func (s *Scanner) dispatch(ctx context.Context, d Decision) {
	key := d.Cycle.Key()

	s.mu.Lock()
	if _, busy := s.inflight[key]; busy {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "cycle already in flight, skipping",
			slog.String("cycle", key),
		)
		return
	}
	s.inflight[key] = struct{}{}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "actionable cycle",
		slog.String("cycle", d.Cycle.String()),
		slog.Float64("cross_rate", d.CrossRate),
		slog.Float64("amount", d.Amount),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
		}()
		s.disp.Execute(ctx, d)
	}()
}

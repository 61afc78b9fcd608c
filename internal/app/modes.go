package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/arbeng/triarb/internal/arbitrage"
	"github.com/arbeng/triarb/internal/domain"
	"github.com/arbeng/triarb/internal/executor"
	"github.com/arbeng/triarb/internal/feed"
	"github.com/arbeng/triarb/internal/pipeline"
)

// startup performs the one-shot launch sequence shared by every mode: fetch
// the instrument catalog, report the account balance, and generate the
// candidate cycle list. A catalog failure is fatal; nothing can run without
// the instrument set.
func (a *App) startup(ctx context.Context, deps *Dependencies) ([]domain.Cycle, error) {
	instruments, err := deps.Venue.Instruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: instrument catalog: %w", err)
	}
	a.logger.InfoContext(ctx, "instrument catalog loaded",
		slog.Int("instruments", len(instruments)),
	)

	a.reportBalance(ctx, deps)

	cycles := arbitrage.Generate(instruments, a.cfg.Engine.QuoteAsset)
	bbs, bss := 0, 0
	for _, c := range cycles {
		if c.Kind == domain.CycleBuyBuySell {
			bbs++
		} else {
			bss++
		}
	}
	a.logger.InfoContext(ctx, "candidate cycles generated",
		slog.Int("total", len(cycles)),
		slog.Int("buy_buy_sell", bbs),
		slog.Int("buy_sell_sell", bss),
	)
	if len(cycles) == 0 {
		a.logger.WarnContext(ctx, "no triangular cycles for quote asset",
			slog.String("quote_asset", a.cfg.Engine.QuoteAsset),
		)
	}
	return cycles, nil
}

// reportBalance logs and notifies the free balance of the home asset. Scan
// mode may run without API keys, so a failure here only warns.
func (a *App) reportBalance(ctx context.Context, deps *Dependencies) {
	asset := a.cfg.Engine.QuoteAsset
	free, err := deps.Venue.FreeBalance(ctx, asset)
	if err != nil {
		a.logger.WarnContext(ctx, "balance report unavailable",
			slog.String("asset", asset),
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.InfoContext(ctx, "account balance",
		slog.String("asset", asset),
		slog.Float64("free", free),
	)
	if err := deps.Notifier.NotifyAll(ctx, "Bot started",
		fmt.Sprintf("Free balance: %.4f %s", free, asset)); err != nil {
		a.logger.WarnContext(ctx, "startup notification failed",
			slog.String("error", err.Error()),
		)
	}
}

// buildEngine assembles the executor and scanner over the generated cycles.
func (a *App) buildEngine(deps *Dependencies, cycles []domain.Cycle, dryRun bool) *arbitrage.Scanner {
	exec := executor.NewExecutor(deps.Venue, deps.Notifier, a.logger)
	exec.SetDryRun(dryRun)
	if !dryRun {
		exec.SetRecording(deps.ExecutionStore, deps.SignalBus)
	}

	return arbitrage.NewScanner(
		cycles,
		deps.Book,
		exec,
		a.cfg.Engine.Profitability,
		a.cfg.Engine.Amount,
		a.cfg.Engine.Interval.Duration,
		a.logger,
	)
}

// runEngine starts the market stream feeder and the scanner and blocks until
// either fails or the context ends.
func (a *App) runEngine(ctx context.Context, deps *Dependencies, scanner *arbitrage.Scanner) error {
	g, ctx := errgroup.WithContext(ctx)

	feeder := feed.NewStreamFeeder(deps.Stream, deps.Book, a.logger)
	g.Go(func() error {
		return feeder.Run(ctx)
	})
	g.Go(func() error {
		return scanner.Run(ctx)
	})

	return g.Wait()
}

// TradeMode runs the live engine: stream, scan, execute.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	cycles, err := a.startup(ctx, deps)
	if err != nil {
		return err
	}
	return a.runEngine(ctx, deps, a.buildEngine(deps, cycles, false))
}

// ScanMode runs the engine without submitting orders: actionable cycles are
// logged and notified only. Useful for threshold tuning and for running
// without trading credentials.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode, orders disabled")

	cycles, err := a.startup(ctx, deps)
	if err != nil {
		return err
	}
	return a.runEngine(ctx, deps, a.buildEngine(deps, cycles, true))
}

// FullMode runs trade mode plus the execution report archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	if deps.ExecutionStore == nil || deps.BlobWriter == nil {
		return fmt.Errorf("app: full mode requires postgres and s3 to be enabled")
	}
	a.logger.InfoContext(ctx, "starting full mode")

	cycles, err := a.startup(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	scanner := a.buildEngine(deps, cycles, false)
	feeder := feed.NewStreamFeeder(deps.Stream, deps.Book, a.logger)
	archiver := pipeline.NewArchiver(
		deps.ExecutionStore,
		deps.BlobWriter,
		a.cfg.Archive.Interval.Duration,
		a.cfg.Archive.Prefix,
		a.logger,
	)

	g.Go(func() error {
		return feeder.Run(ctx)
	})
	g.Go(func() error {
		return scanner.Run(ctx)
	})
	g.Go(func() error {
		return archiver.Run(ctx)
	})

	return g.Wait()
}

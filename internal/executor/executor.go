// Package executor submits the three leg orders of an actionable cycle and
// reports the outcome. Each attempt is self-contained: no state survives it,
// failures are contained here and never reach the scan loop, and successful
// legs of a partially failed attempt are not rolled back.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arbeng/triarb/internal/arbitrage"
	"github.com/arbeng/triarb/internal/domain"
	"github.com/arbeng/triarb/internal/notify"
)

// Redis destinations for execution records.
const (
	executionsChannel = "triarb.executions"
	executionsStream  = "triarb.executions.log"
)

// OrderSubmitter is the interface through which the executor submits one leg
// order to the venue. It is implemented by the platform client.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, leg domain.LegRequest) (domain.OrderResult, error)
}

// Notifier delivers operator-facing messages. Delivery is fire-and-forget
// from the executor's point of view; send errors are logged, never surfaced.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Executor turns scanner decisions into concurrent leg submissions. All three
// legs are issued without waiting for one another and the executor always
// waits for all three to settle; in-flight legs are never cancelled.
type Executor struct {
	orders   OrderSubmitter
	notifier Notifier
	logger   *slog.Logger

	store  domain.ExecutionStore
	bus    domain.SignalBus
	dryRun bool
}

// NewExecutor creates an Executor submitting through orders and reporting
// through notifier.
func NewExecutor(orders OrderSubmitter, notifier Notifier, logger *slog.Logger) *Executor {
	return &Executor{
		orders:   orders,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// SetRecording enables persistence of execution records: store rows for
// audit queries and bus messages for external consumers. Either may be nil.
func (e *Executor) SetRecording(store domain.ExecutionStore, bus domain.SignalBus) {
	e.store = store
	e.bus = bus
}

// SetDryRun switches the executor into observe-only mode: decisions are
// logged and notified but no order ever reaches the venue.
func (e *Executor) SetDryRun(dryRun bool) {
	e.dryRun = dryRun
}

var _ arbitrage.Dispatcher = (*Executor)(nil)

// Execute runs one attempt at an actionable cycle. It never returns an error
// to the caller: every failure mode ends in a log line and a notification.
func (e *Executor) Execute(ctx context.Context, d arbitrage.Decision) {
	exec := domain.Execution{
		ID:        uuid.New().String(),
		CycleKey:  d.Cycle.Key(),
		Kind:      d.Cycle.Kind,
		Amount:    d.Amount,
		CrossRate: d.CrossRate,
		StartedAt: time.Now().UTC(),
	}

	sides := d.Cycle.Sides()
	syms := d.Cycle.Symbols()
	for i := range exec.Legs {
		exec.Legs[i].Request = domain.LegRequest{
			Symbol:   syms[i],
			Side:     sides[i],
			Price:    d.Prices[i],
			Quantity: d.Amount,
		}
	}

	log := e.logger.With(
		slog.String("execution_id", exec.ID),
		slog.String("cycle", d.Cycle.String()),
	)

	// The descriptive cycle message goes out regardless of what happens to
	// the orders, dry run included.
	e.send(ctx, log, notify.EventCycleActionable, "Arbitrage cycle", e.describe(d))

	if e.dryRun {
		log.InfoContext(ctx, "dry run, orders not submitted",
			slog.Float64("cross_rate", d.CrossRate),
			slog.Float64("expected_return", d.Cycle.ExpectedReturn(d.Amount, d.Prices[0], d.Prices[1], d.Prices[2])),
		)
		return
	}

	// Submit all three legs at once and wait for every one of them to
	// settle. The group deliberately has no derived context, and the
	// submission context is detached from the caller's cancellation: once a
	// leg is issued it runs to completion even through shutdown, and a
	// failing leg must not cancel its siblings.
	legCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	for i := range exec.Legs {
		i := i
		g.Go(func() error {
			res, err := e.orders.SubmitOrder(legCtx, exec.Legs[i].Request)
			if err != nil {
				exec.Legs[i].Err = err.Error()
				return err
			}
			exec.Legs[i].Result = &res
			return nil
		})
	}
	_ = g.Wait()

	exec.CompletedAt = time.Now().UTC()
	exec.Status = settle(exec.Legs)

	switch exec.Status {
	case domain.ExecutionFilled:
		log.InfoContext(ctx, "cycle executed",
			slog.Float64("cross_rate", exec.CrossRate),
		)
		e.send(ctx, log, notify.EventExecutionFilled, "Cycle executed", e.fillReport(exec))

	case domain.ExecutionPartial:
		log.ErrorContext(ctx, "cycle partially executed, unwind required",
			slog.String("error", exec.FirstError()),
		)
		e.send(ctx, log, notify.EventExecutionPartial, "Cycle PARTIALLY executed, unwind required", e.failureReport(exec))

	case domain.ExecutionFailed:
		log.ErrorContext(ctx, "cycle execution failed",
			slog.String("error", exec.FirstError()),
		)
		e.send(ctx, log, notify.EventExecutionFailed, "Cycle execution failed", e.failureReport(exec))
	}

	e.record(ctx, log, exec)
}

// describe renders the always-sent cycle summary: the shape, the leg chain,
// the invested amount, and the return the frozen prices promise.
func (e *Executor) describe(d arbitrage.Decision) string {
	home := d.Cycle.Legs[0].Quote
	ret := d.Cycle.ExpectedReturn(d.Amount, d.Prices[0], d.Prices[1], d.Prices[2])
	return fmt.Sprintf("%s\nINVEST %.4f %s\nEXPECTED RETURN %.4f %s (cross-rate %.6f)",
		d.Cycle.String(), d.Amount, home, ret, home, d.CrossRate)
}

// fillReport renders a filled execution as JSON so the order results can be
// audited verbatim.
func (e *Executor) fillReport(exec domain.Execution) string {
	results := make([]domain.OrderResult, 0, len(exec.Legs))
	for _, leg := range exec.Legs {
		if leg.Result != nil {
			results = append(results, *leg.Result)
		}
	}
	body, err := json.Marshal(results)
	if err != nil {
		body = []byte(fmt.Sprintf("%+v", results))
	}
	return fmt.Sprintf("%s\nat %s", body, exec.CompletedAt.Format(time.RFC3339))
}

// failureReport renders the per-leg outcome of a partial or failed execution.
func (e *Executor) failureReport(exec domain.Execution) string {
	var b strings.Builder
	for _, leg := range exec.Legs {
		switch {
		case leg.Err != "":
			fmt.Fprintf(&b, "%s %s: FAILED: %s\n", leg.Request.Side, leg.Request.Symbol, leg.Err)
		case leg.Result != nil:
			fmt.Fprintf(&b, "%s %s: order %d %s\n", leg.Request.Side, leg.Request.Symbol, leg.Result.OrderID, leg.Result.Status)
		default:
			fmt.Fprintf(&b, "%s %s: not submitted\n", leg.Request.Side, leg.Request.Symbol)
		}
	}
	fmt.Fprintf(&b, "at %s", exec.CompletedAt.Format(time.RFC3339))
	return b.String()
}

// send delivers one notification, containing any sender failure here.
func (e *Executor) send(ctx context.Context, log *slog.Logger, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		log.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// record persists the execution to the store and the signal bus when either
// is configured. Persistence failures are logged; the attempt itself already
// happened and must not be reported as failed because of them.
func (e *Executor) record(ctx context.Context, log *slog.Logger, exec domain.Execution) {
	if e.store != nil {
		if err := e.store.Create(ctx, exec); err != nil {
			log.WarnContext(ctx, "execution record failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(newExecutionEvent(exec))
	if err != nil {
		log.WarnContext(ctx, "execution event marshal failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if err := e.bus.Publish(ctx, executionsChannel, payload); err != nil {
		log.WarnContext(ctx, "execution publish failed",
			slog.String("error", err.Error()),
		)
	}
	if err := e.bus.StreamAppend(ctx, executionsStream, payload); err != nil {
		log.WarnContext(ctx, "execution stream append failed",
			slog.String("error", err.Error()),
		)
	}
}

// settle derives the execution status from the leg outcomes.
func settle(legs [3]domain.ExecutionLeg) domain.ExecutionStatus {
	ok := 0
	for _, leg := range legs {
		if leg.Err == "" && leg.Result != nil {
			ok++
		}
	}
	switch ok {
	case len(legs):
		return domain.ExecutionFilled
	case 0:
		return domain.ExecutionFailed
	default:
		return domain.ExecutionPartial
	}
}

// executionEvent is the wire shape of an execution record on the signal bus.
type executionEvent struct {
	ID          string                 `json:"id"`
	CycleKey    string                 `json:"cycle_key"`
	Kind        domain.CycleKind       `json:"kind"`
	Amount      float64                `json:"amount"`
	CrossRate   float64                `json:"cross_rate"`
	Status      domain.ExecutionStatus `json:"status"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
}

func newExecutionEvent(exec domain.Execution) executionEvent {
	return executionEvent{
		ID:          exec.ID,
		CycleKey:    exec.CycleKey,
		Kind:        exec.Kind,
		Amount:      exec.Amount,
		CrossRate:   exec.CrossRate,
		Status:      exec.Status,
		Error:       exec.FirstError(),
		StartedAt:   exec.StartedAt,
		CompletedAt: exec.CompletedAt,
	}
}

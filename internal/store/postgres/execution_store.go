package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbeng/triarb/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL. Each
// execution row owns exactly three leg rows, keyed by leg index.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore over the client's pool.
func NewExecutionStore(c *Client) *ExecutionStore {
	return &ExecutionStore{pool: c.Pool()}
}

// Create inserts an execution and its legs in one transaction.
func (s *ExecutionStore) Create(ctx context.Context, exec domain.Execution) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO executions (id, cycle_key, kind, amount, cross_rate, status, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		exec.ID, exec.CycleKey, string(exec.Kind), exec.Amount, exec.CrossRate,
		string(exec.Status), exec.StartedAt, exec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution: %w", err)
	}

	for i, leg := range exec.Legs {
		var (
			orderID       *int64
			clientOrderID *string
			orderStatus   *string
			origQuantity  *float64
			executedQty   *float64
			transactTime  *time.Time
		)
		if r := leg.Result; r != nil {
			orderID = &r.OrderID
			clientOrderID = &r.ClientOrderID
			orderStatus = &r.Status
			origQuantity = &r.OrigQuantity
			executedQty = &r.ExecutedQty
			transactTime = &r.TransactTime
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO execution_legs (execution_id, leg_index, symbol, side, price, quantity, order_id, client_order_id, order_status, orig_quantity, executed_qty, transact_time, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			exec.ID, i, leg.Request.Symbol, string(leg.Request.Side),
			leg.Request.Price, leg.Request.Quantity,
			orderID, clientOrderID, orderStatus, origQuantity, executedQty, transactTime,
			leg.Err,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert execution leg %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// GetByID returns one execution with its legs, or domain.ErrNotFound.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.Execution, error) {
	var exec domain.Execution
	var kind, status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, cycle_key, kind, amount, cross_rate, status, started_at, completed_at
		FROM executions WHERE id = $1`,
		id,
	).Scan(&exec.ID, &exec.CycleKey, &kind, &exec.Amount,
		&exec.CrossRate, &status, &exec.StartedAt, &exec.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Execution{}, domain.ErrNotFound
		}
		return domain.Execution{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	exec.Kind = domain.CycleKind(kind)
	exec.Status = domain.ExecutionStatus(status)

	if err := s.loadLegs(ctx, &exec); err != nil {
		return domain.Execution{}, err
	}
	return exec, nil
}

// ListSince returns all executions started at or after the given time, legs
// included, oldest first.
func (s *ExecutionStore) ListSince(ctx context.Context, since time.Time) ([]domain.Execution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, cycle_key, kind, amount, cross_rate, status, started_at, completed_at
		FROM executions
		WHERE started_at >= $1
		ORDER BY started_at`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		var exec domain.Execution
		var kind, status string
		if err := rows.Scan(&exec.ID, &exec.CycleKey, &kind, &exec.Amount,
			&exec.CrossRate, &status, &exec.StartedAt, &exec.CompletedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		exec.Kind = domain.CycleKind(kind)
		exec.Status = domain.ExecutionStatus(status)
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}

	for i := range execs {
		if err := s.loadLegs(ctx, &execs[i]); err != nil {
			return nil, err
		}
	}
	return execs, nil
}

// loadLegs fills an execution's leg array from its leg rows.
func (s *ExecutionStore) loadLegs(ctx context.Context, exec *domain.Execution) error {
	rows, err := s.pool.Query(ctx, `
		SELECT leg_index, symbol, side, price, quantity, order_id, client_order_id, order_status, orig_quantity, executed_qty, transact_time, error
		FROM execution_legs
		WHERE execution_id = $1
		ORDER BY leg_index`,
		exec.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: list legs for %s: %w", exec.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx           int
			leg           domain.ExecutionLeg
			side          string
			orderID       *int64
			clientOrderID *string
			orderStatus   *string
			origQuantity  *float64
			executedQty   *float64
			transactTime  *time.Time
		)
		if err := rows.Scan(&idx, &leg.Request.Symbol, &side,
			&leg.Request.Price, &leg.Request.Quantity,
			&orderID, &clientOrderID, &orderStatus, &origQuantity, &executedQty, &transactTime,
			&leg.Err); err != nil {
			return fmt.Errorf("postgres: scan leg for %s: %w", exec.ID, err)
		}
		leg.Request.Side = domain.OrderSide(side)

		if orderID != nil {
			result := domain.OrderResult{
				OrderID: *orderID,
				Symbol:  leg.Request.Symbol,
				Side:    leg.Request.Side,
				Price:   leg.Request.Price,
			}
			if clientOrderID != nil {
				result.ClientOrderID = *clientOrderID
			}
			if orderStatus != nil {
				result.Status = *orderStatus
			}
			if origQuantity != nil {
				result.OrigQuantity = *origQuantity
			}
			if executedQty != nil {
				result.ExecutedQty = *executedQty
			}
			if transactTime != nil {
				result.TransactTime = *transactTime
			}
			leg.Result = &result
		}

		if idx >= 0 && idx < len(exec.Legs) {
			exec.Legs[idx] = leg
		}
	}
	return rows.Err()
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)

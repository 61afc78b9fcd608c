package domain

import "time"

// ExecutionStatus is the settlement state of a three-leg execution.
type ExecutionStatus string

const (
	// ExecutionFilled means every leg order was accepted by the venue.
	ExecutionFilled ExecutionStatus = "filled"

	// ExecutionPartial means at least one leg was accepted and at least one
	// leg failed. The accepted legs are NOT rolled back; the record exists so
	// an operator (or a future unwind policy) can act on it.
	ExecutionPartial ExecutionStatus = "partial"

	// ExecutionFailed means no leg order was accepted.
	ExecutionFailed ExecutionStatus = "failed"
)

// ExecutionLeg tracks one leg's request and settlement outcome. Exactly one
// of Result and Err is set once the leg has settled.
type ExecutionLeg struct {
	Request LegRequest
	Result  *OrderResult
	Err     string
}

// Execution records one attempt at executing an actionable cycle: the frozen
// decision inputs and the per-leg outcomes. It is ephemeral in the engine
// (nothing is retained between attempts) but may be persisted for audit.
type Execution struct {
	ID          string
	CycleKey    string
	Kind        CycleKind
	Amount      float64
	CrossRate   float64
	Legs        [3]ExecutionLeg
	Status      ExecutionStatus
	StartedAt   time.Time
	CompletedAt time.Time
}

// FirstError returns the first leg error in execution order, or "" when all
// legs settled cleanly.
func (e Execution) FirstError() string {
	for _, leg := range e.Legs {
		if leg.Err != "" {
			return leg.Err
		}
	}
	return ""
}

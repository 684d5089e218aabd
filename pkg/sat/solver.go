package sat

import (
	"context"
	"time"
)

type Status int

const (
	Unknown    Status = iota // No definitive answer within the budget
	Optimal                  // Proven optimal (or satisfiable, for instances without cost)
	Feasible                 // Satisfiable, optimality not proven before the budget ran out
	Infeasible               // Proven unsatisfiable
)

func (status Status) String() string {
	switch status {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// Solution is the outcome of a solve. Values are only present for Optimal and Feasible statuses.
type Solution struct {
	Status Status
	Cost   int
	values []bool
}

// HasModel reports whether the solution carries an assignment
func (solution Solution) HasModel() bool {
	return solution.Status == Optimal || solution.Status == Feasible
}

// Value returns the value assigned to a variable; unassigned variables are false
func (solution Solution) Value(variable int) bool {
	if variable <= 0 || variable > len(solution.values) {
		return false
	}
	return solution.values[variable-1]
}

// Solver minimizes the cost of a pseudo-boolean instance within a wall-clock budget. A
// non-positive timeout means no budget other than the context.
type Solver interface {
	Solve(ctx context.Context, instance *Instance, timeout time.Duration) (Solution, error)
}

package sat

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/crillab/gophersat/solver"
	"go.uber.org/zap"
)

type gophersatSolver struct {
	logger *zap.Logger
}

// NewGophersatSolver returns an in-process pseudo-boolean optimizer.
//
// The cost is minimized by descent: every step is a plain satisfiability call over the instance
// plus a bound forcing the cost strictly below the best model found so far. The budget is checked
// between steps, so once it runs out the best model is returned right away while the step in
// flight finishes in the background and is discarded. A single step cannot be interrupted; the
// search goroutine outlives Solve by at most that one step.
func NewGophersatSolver(logger *zap.Logger) Solver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gophersatSolver{
		logger: logger,
	}
}

// descentStep is the outcome of one satisfiability call of the descent
type descentStep struct {
	status solver.Status
	model  []bool
	err    error
}

func (gophersat *gophersatSolver) Solve(ctx context.Context, instance *Instance, timeout time.Duration) (Solution, error) {
	if err := instance.Validate(); err != nil {
		return Solution{}, fmt.Errorf("invalid instance: %w", err)
	}
	for _, constraint := range instance.Constraints {
		if constraint.Impossible() {
			return Solution{Status: Infeasible}, nil
		}
	}
	if instance.Variables == 0 {
		return Solution{Status: Optimal, Cost: instance.Offset}, nil
	}

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	steps := make(chan descentStep)
	bounds := make(chan Constraint)
	go gophersat.descend(ctx, instance, steps, bounds)

	var best *Solution
	for {
		select {
		case step, ok := <-steps:
			if !ok {
				// The descent ended on its own: the last bound was unsatisfiable
				if best == nil {
					return Solution{Status: Infeasible}, nil
				}
				best.Status = Optimal
				return *best, nil
			}
			if step.err != nil {
				return Solution{}, step.err
			}

			candidate := Solution{Status: Feasible, values: step.model}
			if err := instance.Check(candidate.Value); err != nil {
				return Solution{}, err
			}
			candidate.Cost = instance.Evaluate(candidate.Value)
			best = &candidate
			gophersat.logger.Debug("improved model", zap.Int("cost", candidate.Cost))

			select {
			case bounds <- costBelow(instance, candidate):
			case <-ctx.Done():
				return *best, nil
			}
		case <-ctx.Done():
			if best == nil {
				gophersat.logger.Debug("budget ran out before any model was found", zap.Duration("timeout", timeout))
				return Solution{Status: Unknown}, nil
			}
			return *best, nil
		}
	}
}

// descend runs satisfiability calls until one fails. After every model it waits for the next cost
// bound; an impossible bound means the model is already at the lowest possible cost.
func (gophersat *gophersatSolver) descend(ctx context.Context, instance *Instance, steps chan<- descentStep, bounds <-chan Constraint) {
	defer close(steps)

	extra := make([]Constraint, 0)
	for {
		step := solveOnce(instance, extra)
		if step.err == nil && step.status != solver.Sat {
			return
		}

		select {
		case steps <- step:
		case <-ctx.Done():
			return
		}
		if step.err != nil {
			return
		}

		var bound Constraint
		select {
		case bound = <-bounds:
		case <-ctx.Done():
			return
		}
		if bound.Impossible() {
			return
		}
		extra = append(extra, bound)
	}
}

func solveOnce(instance *Instance, extra []Constraint) (step descentStep) {
	defer func() {
		if r := recover(); r != nil {
			step = descentStep{err: fmt.Errorf("pseudo-boolean search failed: %v", r)}
		}
	}()

	pbSolver := solver.New(toProblem(instance, extra))
	step.status = pbSolver.Solve()
	if step.status == solver.Sat {
		step.model = pbSolver.Model()
	}
	return step
}

// costBelow requires the cost terms of the instance to sum strictly below their sum in solution.
// At zero no lower cost exists and the returned constraint is impossible.
func costBelow(instance *Instance, solution Solution) Constraint {
	literals := make([]int, 0, len(instance.Cost))
	weights := make([]int, 0, len(instance.Cost))
	for _, term := range instance.Cost {
		literals = append(literals, term.Literal)
		weights = append(weights, term.Weight)
	}
	return LessOrEqual(literals, weights, solution.Cost-instance.Offset-1)
}

// toProblem translates the instance and the extra constraints. gophersat rearranges the slices it
// is given, so every constraint is handed over as a copy.
func toProblem(instance *Instance, extra []Constraint) *solver.Problem {
	constraints := make([]solver.PBConstr, 0, len(instance.Constraints)+len(extra)+instance.Variables)
	for _, constraint := range slices.Concat(instance.Constraints, extra) {
		literals := append([]int(nil), constraint.Literals...)
		weights := append([]int(nil), constraint.Weights...)
		constraints = append(constraints, solver.GtEq(literals, weights, constraint.AtLeast))
	}
	// Every variable must be known to the problem, even if it only appears in the cost
	for variable := 1; variable <= instance.Variables; variable++ {
		constraints = append(constraints, solver.PropClause(variable, -variable))
	}
	return solver.ParsePBConstrs(constraints)
}

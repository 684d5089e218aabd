package engine

import (
	"context"

	"github.com/limaJavier/timetabler/pkg/diagnostics"
	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/limaJavier/timetabler/pkg/sat"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type bestEffortSolver struct {
	options Options
}

// NewBestEffortSolver returns a solver that places as many hours as possible and reports the
// blocks it had to leave out instead of failing
func NewBestEffortSolver(options Options) RebuildSolver {
	return &bestEffortSolver{
		options: options.withDefaults(),
	}
}

func (solver *bestEffortSolver) Solve(ctx context.Context, snapshot *model.ScheduleState) (*Result, error) {
	options := solver.options
	if err := options.Weights.Validate(); err != nil {
		return nil, err
	}
	run := newRun(BestEffort)
	logger := options.Logger.With(zap.String("run", run.id), zap.Stringer("mode", run.mode))
	state := snapshot.Clone()
	units := rebuildUnits(state, options.Retention)

	var last attemptOutcome
	for i, profile := range options.Profiles {
		attempt := i + 1
		options.Events.Emit(AttemptStarted{RunId: run.id, Attempt: attempt, Profile: profile.Name})
		config := options.builderConfig(BestEffort, profile.Apply(options.Weights))

		outcome, err := solveAttempt(ctx, state, units, config, options.Solver, options.AttemptTimeout, logger.With(zap.Int("attempt", attempt)))
		if err != nil {
			return nil, err
		}
		if outcome.solved() {
			unplaced := applyChoice(state, units, outcome.chosen)
			result := newResult(run, snapshot, state, unplaced, model.ProvenanceBestEffort, outcome.instance, outcome.solution)
			result.Stats.Attempts = attempt
			result.Stats.Profile = profile.Name
			if len(unplaced) > 0 {
				logger.Info("blocks left unplaced", zap.Uint64s("blocks", unplacedIds(unplaced)), zap.Int("hours", unplacedHours(unplaced)))
			}
			reportViolations(logger, result)
			options.Events.Emit(Solved{Stats: result.Stats})
			return result, nil
		}

		last = outcome
		options.Events.Emit(AttemptFailed{RunId: run.id, Attempt: attempt, Profile: profile.Name, Reason: outcome.solution.Status.String()})
		if ctx.Err() != nil {
			return nil, &Error{Kind: SolverTimeout, Message: "solve cancelled", Cause: ctx.Err()}
		}
	}

	// Only fixed blocks can make a best-effort model infeasible
	report := diagnostics.Analyze(state)
	emitDiagnostics(options.Events, run, state, report)
	kind := SolverInfeasible
	if last.solution.Status == sat.Unknown {
		kind = SolverTimeout
	}
	failure := newError(kind, "no best-effort schedule found after %d attempts", len(options.Profiles))
	failure.Findings = report.Findings
	if pairs := pinnedConflicts(units); len(pairs) > 0 {
		failure.Message += "; fixed blocks already conflict: " + describePairs(pairs)
		failure.Blocks = lo.Uniq(lo.FlatMap(pairs, func(pair model.ConflictPair, _ int) []uint64 { return []uint64{pair.First, pair.Second} }))
	}
	return nil, failure
}

func unplacedHours(blocks []UnplacedBlock) int {
	return lo.SumBy(blocks, func(block UnplacedBlock) int { return block.Duration })
}

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/limaJavier/timetabler/pkg/diagnostics"
	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/limaJavier/timetabler/pkg/sat"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RebuildSolver produces a placement for every block of a snapshot
type RebuildSolver interface {
	Solve(ctx context.Context, snapshot *model.ScheduleState) (*Result, error)
}

type rebuildSolver struct {
	options Options
}

func NewRebuildSolver(options Options) RebuildSolver {
	return &rebuildSolver{
		options: options.withDefaults(),
	}
}

func (solver *rebuildSolver) Solve(ctx context.Context, snapshot *model.ScheduleState) (*Result, error) {
	options := solver.options
	if err := options.Weights.Validate(); err != nil {
		return nil, err
	}
	run := newRun(Rebuild)
	logger := options.Logger.With(zap.String("run", run.id), zap.Stringer("mode", run.mode))
	state := snapshot.Clone()
	units := rebuildUnits(state, options.Retention)

	//** Structural checks
	if options.PreFlight {
		report := diagnostics.Analyze(state)
		emitDiagnostics(options.Events, run, state, report)
		if report.Blocking() {
			logger.Warn("pre-flight analysis proves infeasibility", zap.String("findings", report.Summary()))
			return nil, structuralError(report.BlockingFindings())
		}
	}
	if findings := emptyUnitFindings(state, units); len(findings) > 0 {
		return nil, structuralError(findings)
	}

	//** Relaxation sequence
	var last attemptOutcome
	for i, profile := range options.Profiles {
		attempt := i + 1
		options.Events.Emit(AttemptStarted{RunId: run.id, Attempt: attempt, Profile: profile.Name})
		config := options.builderConfig(Rebuild, profile.Apply(options.Weights))

		outcome, err := solveAttempt(ctx, state, units, config, options.Solver, options.AttemptTimeout, logger.With(zap.Int("attempt", attempt)))
		if err != nil {
			return nil, err
		}
		if outcome.solved() {
			unplaced := applyChoice(state, units, outcome.chosen)
			result := newResult(run, snapshot, state, unplaced, model.ProvenanceRebuild, outcome.instance, outcome.solution)
			result.Stats.Attempts = attempt
			result.Stats.Profile = profile.Name
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

	return nil, solver.explain(ctx, run, state, units, last, logger)
}

// explain runs after every profile failed and builds the error telling the caller why
func (solver *rebuildSolver) explain(ctx context.Context, run run, state *model.ScheduleState, units []*unit, last attemptOutcome, logger *zap.Logger) error {
	options := solver.options
	kind := SolverInfeasible
	if last.solution.Status == sat.Unknown {
		kind = SolverTimeout
	}

	report := diagnostics.Analyze(state)
	if !options.PreFlight {
		emitDiagnostics(options.Events, run, state, report)
	}
	if report.Blocking() {
		return structuralError(report.BlockingFindings())
	}

	// A relaxed best-effort pass names the blocks that cannot be placed
	config := options.builderConfig(BestEffort, Weights{})
	outcome, err := solveAttempt(ctx, state, units, config, options.Solver, options.AttemptTimeout, logger.With(zap.String("attempt", "relaxed")))
	if err != nil {
		return err
	}

	failure := newError(kind, "no schedule found after %d attempts", len(options.Profiles))
	failure.Findings = report.Findings
	switch {
	case outcome.solved():
		failure.Unplaceable = applyChoice(state.Clone(), units, outcome.chosen)
		failure.Blocks = unplacedIds(failure.Unplaceable)
		if len(failure.Unplaceable) == 0 {
			failure.Message += "; every block can be placed once quality penalties are dropped"
		}
	case outcome.solution.Status == sat.Infeasible:
		if pairs := pinnedConflicts(units); len(pairs) > 0 {
			failure.Message += "; fixed blocks already conflict: " + describePairs(pairs)
			failure.Blocks = lo.Uniq(lo.FlatMap(pairs, func(pair model.ConflictPair, _ int) []uint64 { return []uint64{pair.First, pair.Second} }))
		}
	}
	logger.Warn("rebuild failed", zap.String("kind", string(failure.Kind)), zap.Uint64s("blocks", failure.Blocks))
	return failure
}

// attemptOutcome is the decoded result of one model solve
type attemptOutcome struct {
	instance *sat.Instance
	solution sat.Solution
	chosen   []int
}

func (outcome attemptOutcome) solved() bool {
	return outcome.solution.HasModel()
}

// solveAttempt builds and solves one model. Errors are only returned for invalid models and
// solver failures; infeasibility and timeouts are reported through the solution status.
func solveAttempt(ctx context.Context, state *model.ScheduleState, units []*unit, config builderConfig, solver sat.Solver, timeout time.Duration, logger *zap.Logger) (attemptOutcome, error) {
	builder := newModelBuilder(state, units, config)
	instance := builder.build()
	logger.Debug("model built", zap.Int("variables", instance.Variables), zap.Int("constraints", len(instance.Constraints)), zap.Int("terms", len(instance.Cost)))

	solution, err := solver.Solve(ctx, instance, timeout)
	if err != nil {
		return attemptOutcome{}, &Error{Kind: ModelInvalid, Message: "model could not be solved", Variables: instance.Variables, Cause: err}
	}
	logger.Debug("model solved", zap.Stringer("status", solution.Status), zap.Int("cost", solution.Cost))

	outcome := attemptOutcome{instance: instance, solution: solution}
	if solution.HasModel() {
		outcome.chosen = builder.decode(solution)
	}
	return outcome, nil
}

// builderConfig derives the model configuration of an attempt
func (options Options) builderConfig(mode Mode, weights Weights) builderConfig {
	return builderConfig{
		mode:            mode,
		weights:         weights,
		gapThreshold:    options.GapThreshold,
		lowLoadHours:    options.LowLoadHours,
		condenseMaxLoad: options.CondenseMaxLoad,
		unplacedPenalty: options.UnplacedPenalty,
	}
}

// emptyUnitFindings reports the free units that have no candidate at all
func emptyUnitFindings(state *model.ScheduleState, units []*unit) []diagnostics.Finding {
	findings := make([]diagnostics.Finding, 0)
	for _, unit := range units {
		if unit.pinned || len(unit.candidates) > 0 {
			continue
		}
		resources := lo.Uniq(lo.FlatMap(unit.members, func(member model.Block, _ int) []model.Resource {
			return diagnostics.BlockingResources(state, member)
		}))
		names := lo.Map(resources, func(resource model.Resource, _ int) string { return state.Name(resource) })
		findings = append(findings, diagnostics.Finding{
			Kind:      diagnostics.NoCandidates,
			Blocking:  true,
			Blocks:    unit.ids(),
			Resources: resources,
			Message:   fmt.Sprintf("blocks %v have no available slot: closed by %s", unit.ids(), strings.Join(names, ", ")),
		})
	}
	return findings
}

func structuralError(findings []diagnostics.Finding) *Error {
	err := newError(StructuralInfeasibility, "the snapshot cannot be scheduled")
	err.Findings = findings
	err.Blocks = lo.Uniq(lo.FlatMap(findings, func(finding diagnostics.Finding, _ int) []uint64 { return finding.Blocks }))
	return err
}

func emitDiagnostics(sink EventSink, run run, state *model.ScheduleState, report diagnostics.Report) {
	for _, load := range report.Loads {
		if !load.Overloaded() {
			continue
		}
		resource := load.Resource
		sink.Emit(Diagnostic{
			RunId:    run.id,
			Resource: &resource,
			Load:     load.Required,
			Capacity: load.Capacity,
			Message:  fmt.Sprintf("%s needs %d hours but only %d are available", state.Name(resource), load.Required, load.Capacity),
		})
	}
	for _, finding := range report.Findings {
		if finding.Kind == diagnostics.Overload {
			continue
		}
		sink.Emit(Diagnostic{RunId: run.id, Load: finding.Load, Capacity: finding.Capacity, Message: finding.Message})
	}
}

// pinnedConflicts lists the clashes between units that cannot move
func pinnedConflicts(units []*unit) []model.ConflictPair {
	blocks := make([]model.Block, 0)
	for _, unit := range units {
		if !unit.pinned {
			continue
		}
		for _, member := range unit.members {
			member.Placement = unit.candidates[0]
			blocks = append(blocks, member)
		}
	}
	return model.NewOccupancyIndex(blocks).Conflicts()
}

func describePairs(pairs []model.ConflictPair) string {
	return strings.Join(lo.Map(pairs, func(pair model.ConflictPair, _ int) string {
		return fmt.Sprintf("%d/%d", pair.First, pair.Second)
	}), ", ")
}

func reportViolations(logger *zap.Logger, result *Result) {
	for _, violation := range result.Violations {
		logger.Warn("schedule keeps an existing violation", zap.Stringer("kind", violation.Kind), zap.String("message", violation.Message))
	}
}

// RebuildModel builds the model of the first rebuild attempt without solving it. It is meant for
// exporting the instance to an external pseudo-boolean solver.
func RebuildModel(snapshot *model.ScheduleState, options Options, mode Mode) *sat.Instance {
	options = options.withDefaults()
	state := snapshot.Clone()
	units := rebuildUnits(state, options.Retention)
	config := options.builderConfig(mode, options.Profiles[0].Apply(options.Weights))
	return newModelBuilder(state, units, config).build()
}

package engine

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/limaJavier/timetabler/pkg/sat"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Change records a block that moved
type Change struct {
	BlockId uint64
	From    model.Slot
	To      model.Slot
}

// EditResult is the outcome of a successful edit
type EditResult struct {
	RunId      string
	Changes    []Change          // Every block that moved, ordered by id
	Placements []model.Committed // The new position of every moved block
	State      *model.ScheduleState
	Movable    int // Units the planner was allowed to move
	Variables  int
	Stats      Stats
}

// EditPlanner moves one block and repairs the schedule around it
type EditPlanner interface {
	Resolve(ctx context.Context, snapshot *model.ScheduleState, request EditRequest) (*EditResult, error)
}

type editResolver struct {
	options EditOptions
}

// NewEditResolver returns a planner that re-solves a neighbourhood of the edited block as a model
func NewEditResolver(options EditOptions) EditPlanner {
	return &editResolver{
		options: options.withDefaults(),
	}
}

func (resolver *editResolver) Resolve(ctx context.Context, snapshot *model.ScheduleState, request EditRequest) (*EditResult, error) {
	options := resolver.options
	run := newRun(Edit)
	logger := options.Logger.With(zap.String("run", run.id), zap.Uint64("block", request.Block), zap.Stringer("target", request.Target))
	state := snapshot.Clone()

	edit, done, err := validateEdit(state, request)
	if err != nil {
		logger.Info("edit rejected", zap.Error(err))
		return nil, err
	} else if done {
		return newEditResult(run, snapshot, state, model.ProvenanceManualEdit, 0, 0), nil
	}

	//** Model
	movable := options.Scope.Movable(state, edit.members, request.Target)
	units := editUnits(state, edit, movable)
	free := lo.CountBy(units, func(unit *unit) bool { return !unit.pinned })
	options.Events.Emit(AttemptStarted{RunId: run.id, Attempt: 1, Profile: options.Scope.Name()})

	builder := newModelBuilder(state, units, builderConfig{
		mode:             Edit,
		stayPenalty:      options.StayPenalty,
		duplicatePenalty: options.DuplicatePenalty,
	})
	instance := builder.build()
	logger.Debug("edit model built", zap.String("scope", options.Scope.Name()), zap.Int("movable", free), zap.Int("variables", instance.Variables))

	fail := func(reason Reason, cause error, format string, args ...any) error {
		err := newEditConflict(reason, free, instance.Variables, format, args...)
		err.Cause = cause
		err.Blocks = edit.ids()
		options.Events.Emit(AttemptFailed{RunId: run.id, Attempt: 1, Profile: options.Scope.Name(), Reason: string(reason)})
		logger.Info("edit failed", zap.Error(err))
		return err
	}

	solution, err := options.Solver.Solve(ctx, instance, options.Timeout)
	if err != nil {
		return nil, fail(ReasonModelInvalid, err, "edit model could not be solved")
	}
	switch solution.Status {
	case sat.Infeasible:
		return nil, fail(ReasonInfeasible, nil, "no arrangement of %d movable units admits block %d at %v", free, request.Block, request.Target)
	case sat.Unknown:
		return nil, fail(ReasonTimeout, ctx.Err(), "no arrangement found within %v", options.Timeout)
	}

	applyChoice(state, units, builder.decode(solution))
	if remaining := editConflicts(snapshot, state); len(remaining) > 0 {
		return nil, fail(ReasonUnresolved, nil, "moved blocks still conflict: %s", describePairs(remaining))
	}

	result := newEditResult(run, snapshot, state, model.ProvenanceManualEdit, free, instance.Variables)
	result.Stats.Constraints = len(instance.Constraints)
	result.Stats.Cost = solution.Cost
	options.Events.Emit(Solved{Stats: result.Stats})
	return result, nil
}

func (edit edit) ids() []uint64 {
	return lo.Map(edit.members, func(member model.Block, _ int) uint64 { return member.Id })
}

// editUnits pins every placed unit at its slot except the source, pinned at the target, and the
// units holding a movable block, free over their static candidates. Unplaced blocks are left out.
func editUnits(state *model.ScheduleState, edit edit, movable []uint64) []*unit {
	units := make([]*unit, 0, len(state.Blocks))
	for _, source := range state.Units() {
		unit := newUnit(source)
		current, placed := source.Placement()
		switch {
		case unit.key == edit.source.UnitKey():
			unit.source = true
			unit.pin(edit.request.Target)
		case !placed:
			continue
		case !source.Pinned() && lo.SomeBy(source.Members, func(member model.Block) bool { return slices.Contains(movable, member.Id) }):
			if unit.candidates = state.Candidates(unit.members...); len(unit.candidates) == 0 {
				unit.pin(current)
			}
		default:
			unit.pin(current)
		}
		units = append(units, unit)
	}
	return units
}

// editConflicts returns the conflicts of the edited state that involve a block that moved.
// Conflicts between blocks that stayed put are not the edit's business.
func editConflicts(snapshot, state *model.ScheduleState) []model.ConflictPair {
	changed := make(map[uint64]bool)
	for _, change := range changes(snapshot, state) {
		changed[change.BlockId] = true
	}
	return lo.Filter(model.NewOccupancyIndex(state.Blocks).Conflicts(), func(pair model.ConflictPair, _ int) bool {
		return changed[pair.First] || changed[pair.Second]
	})
}

// changes lists the blocks whose slot differs between two states, ordered by id
func changes(before, after *model.ScheduleState) []Change {
	moves := make([]Change, 0)
	for _, block := range after.Blocks {
		previous, ok := before.Block(block.Id)
		if ok && previous.Placement != block.Placement {
			moves = append(moves, Change{BlockId: block.Id, From: previous.Placement, To: block.Placement})
		}
	}
	slices.SortFunc(moves, func(a, b Change) int { return cmp.Compare(a.BlockId, b.BlockId) })
	return moves
}

func newEditResult(run run, snapshot, state *model.ScheduleState, provenance model.Provenance, movable, variables int) *EditResult {
	moves := changes(snapshot, state)
	return &EditResult{
		RunId:   run.id,
		Changes: moves,
		Placements: lo.Map(moves, func(change Change, _ int) model.Committed {
			return model.Committed{BlockId: change.BlockId, Slot: change.To, Placed: change.To.Placed(), Provenance: provenance}
		}),
		State:     state,
		Movable:   movable,
		Variables: variables,
		Stats: Stats{
			RunId:     run.id,
			Mode:      run.mode,
			Attempts:  1,
			Variables: variables,
			Placed:    lo.CountBy(state.Blocks, func(block model.Block) bool { return block.Placed() }),
			Unplaced:  lo.CountBy(state.Blocks, func(block model.Block) bool { return !block.Placed() }),
			Moved:     len(moves),
			Elapsed:   time.Since(run.started),
		},
	}
}

type fallbackPlanner struct {
	primary EditPlanner
	backup  EditPlanner
}

// Fallback chains two planners: backup runs only when primary could not resolve the edit. A
// rejected edit is never retried.
func Fallback(primary, backup EditPlanner) EditPlanner {
	return &fallbackPlanner{
		primary: primary,
		backup:  backup,
	}
}

func (planner *fallbackPlanner) Resolve(ctx context.Context, snapshot *model.ScheduleState, request EditRequest) (*EditResult, error) {
	result, err := planner.primary.Resolve(ctx, snapshot, request)
	if err == nil || !IsKind(err, EditConflict) || ctx.Err() != nil {
		return result, err
	}
	result, backupErr := planner.backup.Resolve(ctx, snapshot, request)
	if backupErr != nil {
		return nil, errors.Join(backupErr, err)
	}
	return result, nil
}

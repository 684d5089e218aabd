package engine

import (
	"cmp"
	"context"
	"slices"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type greedyCascade struct {
	options EditOptions
}

// NewGreedyCascade returns a planner that repairs an edit without building a model. Every iteration
// relocates each block still in conflict to its best slot.
func NewGreedyCascade(options EditOptions) EditPlanner {
	return &greedyCascade{
		options: options.withDefaults(),
	}
}

// relocation is a candidate move of a unit
type relocation struct {
	key       model.UnitKey
	members   []model.Block
	to        model.Slot
	conflicts int
	cost      int
}

func compareRelocations(a, b relocation) int {
	if c := cmp.Compare(a.conflicts, b.conflicts); c != 0 {
		return c
	} else if c := cmp.Compare(a.cost, b.cost); c != 0 {
		return c
	} else if c := cmp.Compare(a.members[0].Id, b.members[0].Id); c != 0 {
		return c
	} else if c := cmp.Compare(a.to.Day, b.to.Day); c != 0 {
		return c
	}
	return cmp.Compare(a.to.Hour, b.to.Hour)
}

func (greedy *greedyCascade) Resolve(ctx context.Context, snapshot *model.ScheduleState, request EditRequest) (*EditResult, error) {
	options := greedy.options
	run := newRun(Edit)
	logger := options.Logger.With(zap.String("run", run.id), zap.Uint64("block", request.Block), zap.Stringer("target", request.Target))
	state := snapshot.Clone()

	edit, done, err := validateEdit(state, request)
	if err != nil {
		logger.Info("edit rejected", zap.Error(err))
		return nil, err
	} else if done {
		return newEditResult(run, snapshot, state, model.ProvenanceGreedyEdit, 0, 0), nil
	}

	//** Working copy with the source moved
	for _, member := range edit.members {
		state.SetPlacement(member.Id, request.Target)
	}
	index := model.NewOccupancyIndex(state.Blocks)
	baseline := lo.Associate(model.NewOccupancyIndex(snapshot.Blocks).Conflicts(), func(pair model.ConflictPair) (model.ConflictPair, bool) { return pair, true })
	relocations := make(map[model.UnitKey]int)
	options.Events.Emit(AttemptStarted{RunId: run.id, Attempt: 1, Profile: "greedy"})

	fail := func(format string, args ...any) error {
		err := newEditConflict(ReasonUnresolved, len(relocations), 0, format, args...)
		err.Blocks = edit.ids()
		options.Events.Emit(AttemptFailed{RunId: run.id, Attempt: 1, Profile: "greedy", Reason: string(ReasonUnresolved)})
		logger.Info("greedy cascade failed", zap.Error(err))
		return err
	}

	// Conflicts that already existed in the snapshot are left alone unless one side has moved
	relevantConflicts := func() []model.ConflictPair {
		return lo.Filter(index.Conflicts(), func(pair model.ConflictPair, _ int) bool {
			return !baseline[pair] || greedy.movedEither(snapshot, index, pair)
		})
	}

	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			err := newEditConflict(ReasonTimeout, len(relocations), 0, "greedy cascade cancelled")
			err.Cause = ctx.Err()
			return nil, err
		}

		conflicts := relevantConflicts()
		if len(conflicts) == 0 {
			break
		}
		if iteration >= options.MaxIterations {
			return nil, fail("%d conflicts remain after %d iterations", len(conflicts), iteration)
		}

		//** Relocate every unit in conflict
		moved := 0
		seen := make(map[model.UnitKey]bool)
		for _, id := range conflictingIds(conflicts) {
			block, _ := state.Block(id)
			key := block.UnitKey()
			if seen[key] || edit.isSource(id) {
				continue
			}
			seen[key] = true
			members := state.Members(block)
			if lo.SomeBy(members, func(member model.Block) bool { return member.Locked }) || relocations[key] >= options.RelocationCap {
				continue
			}
			// An earlier move of this iteration may have settled the unit already
			if moved > 0 && !involved(relevantConflicts(), members) {
				continue
			}

			move, ok := greedy.bestSlot(snapshot, state, index, edit, members)
			if !ok {
				continue
			}
			for _, member := range move.members {
				state.SetPlacement(member.Id, move.to)
				index.Move(member.Id, move.to)
			}
			relocations[key]++
			moved++
			logger.Debug("relocated", zap.Int("iteration", iteration), zap.Uint64s("blocks", lo.Map(move.members, func(member model.Block, _ int) uint64 { return member.Id })), zap.Stringer("to", move.to), zap.Int("conflicts", move.conflicts))
		}
		if moved == 0 {
			return nil, fail("deadlock: no block in conflict can move (%d conflicts)", len(conflicts))
		}
	}

	result := newEditResult(run, snapshot, state, model.ProvenanceGreedyEdit, len(relocations), 0)
	options.Events.Emit(Solved{Stats: result.Stats})
	return result, nil
}

// movedEither reports whether one block of the pair left its original slot
func (greedy *greedyCascade) movedEither(snapshot *model.ScheduleState, index *model.OccupancyIndex, pair model.ConflictPair) bool {
	for _, id := range []uint64{pair.First, pair.Second} {
		original, _ := snapshot.Block(id)
		current, _ := index.Block(id)
		if original.Placement != current.Placement {
			return true
		}
	}
	return false
}

// bestSlot scores every admissible slot of a unit. Slots colliding with a locked block or with
// the edited block are never admissible.
func (greedy *greedyCascade) bestSlot(snapshot, state *model.ScheduleState, index *model.OccupancyIndex, edit edit, members []model.Block) (relocation, bool) {
	current := members[0].Placement
	original, _ := snapshot.Block(members[0].Id)
	isMember := func(id uint64) bool {
		return lo.ContainsBy(members, func(member model.Block) bool { return member.Id == id })
	}

	best := relocation{}
	found := false
	for _, slot := range state.Candidates(members...) {
		if slot == current {
			continue
		}
		conflicts := lo.Uniq(lo.FlatMap(members, func(member model.Block, _ int) []uint64 {
			return lo.Reject(index.ConflictsAt(member, slot), func(id uint64, _ int) bool { return isMember(id) })
		}))
		admissible := lo.NoneBy(conflicts, func(id uint64) bool {
			block, _ := index.Block(id)
			return block.Locked || edit.isSource(id)
		})
		if !admissible {
			continue
		}

		move := relocation{
			key:       members[0].UnitKey(),
			members:   members,
			to:        slot,
			conflicts: len(conflicts),
			cost:      greedy.cost(state, index, members, original.Placement, slot),
		}
		if !found || compareRelocations(move, best) < 0 {
			best, found = move, true
		}
	}
	return best, found
}

// cost weighs a conflict-free move: distance from the original slot, morning preference, teacher
// gaps it opens or closes, and same-lesson duplicates it creates
func (greedy *greedyCascade) cost(state *model.ScheduleState, index *model.OccupancyIndex, members []model.Block, original, to model.Slot) int {
	cost := 0
	if original.Placed() {
		cost += abs(to.Day-original.Day)*state.MaxHours + abs(to.Hour-original.Hour)
	}
	cost += to.Hour * lo.Max(lo.Map(members, func(member model.Block, _ int) int { return member.Priority }))

	from := members[0].Placement
	for _, teacher := range lo.Uniq(lo.FlatMap(members, func(member model.Block, _ int) []uint64 { return member.Teachers })) {
		hours := func(at model.Slot) []int {
			return lo.Uniq(lo.FlatMap(members, func(member model.Block, _ int) []int {
				if !slices.Contains(member.Teachers, teacher) {
					return nil
				}
				return lo.Map(at.Span(member.Duration), func(slot model.Slot, _ int) int { return slot.Hour })
			}))
		}
		days := lo.Uniq([]int{from.Day, to.Day})
		for _, day := range days {
			others := workedHours(index, teacher, day, state.MaxHours, members)
			before, after := slices.Clone(others), slices.Clone(others)
			if day == from.Day {
				before = append(before, hours(from)...)
			}
			if day == to.Day {
				after = append(after, hours(to)...)
			}
			cost += gaps(after) - gaps(before)
		}
	}

	duplicates := 0
	for _, member := range members {
		if member.Lesson == "" {
			continue
		}
		for _, other := range state.Blocks {
			if other.Class == member.Class && other.Lesson == member.Lesson && other.Placed() && other.Placement.Day == to.Day &&
				!lo.ContainsBy(members, func(m model.Block) bool { return m.Id == other.Id }) {
				duplicates++
			}
		}
	}
	cost += duplicates * state.MaxDays * state.MaxHours
	return cost
}

// workedHours returns the hours a teacher works on a day, ignoring the given blocks
func workedHours(index *model.OccupancyIndex, teacher uint64, day, maxHours int, ignore []model.Block) []int {
	hours := make([]int, 0)
	for hour := 1; hour <= maxHours; hour++ {
		key := model.OccupancyKey{Kind: model.TeacherResource, Id: teacher, Day: day, Hour: hour}
		if lo.SomeBy(index.Occupants(key), func(id uint64) bool {
			return !lo.ContainsBy(ignore, func(member model.Block) bool { return member.Id == id })
		}) {
			hours = append(hours, hour)
		}
	}
	return hours
}

// gaps counts the idle hours between the first and the last worked hour
func gaps(hours []int) int {
	hours = lo.Uniq(hours)
	if len(hours) == 0 {
		return 0
	}
	return lo.Max(hours) - lo.Min(hours) + 1 - len(hours)
}

// involved reports whether one of the members is part of a conflict pair
func involved(pairs []model.ConflictPair, members []model.Block) bool {
	return lo.SomeBy(pairs, func(pair model.ConflictPair) bool {
		return lo.SomeBy(members, func(member model.Block) bool { return member.Id == pair.First || member.Id == pair.Second })
	})
}

func conflictingIds(pairs []model.ConflictPair) []uint64 {
	ids := lo.Uniq(lo.FlatMap(pairs, func(pair model.ConflictPair, _ int) []uint64 { return []uint64{pair.First, pair.Second} }))
	slices.Sort(ids)
	return ids
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

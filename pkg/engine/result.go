package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/limaJavier/timetabler/pkg/sat"
	"github.com/samber/lo"
)

// UnplacedBlock describes a block a best-effort pass could not place
type UnplacedBlock struct {
	BlockId  uint64
	Class    uint64
	Lesson   string
	Duration int
}

// Result is the outcome of a successful rebuild or best-effort solve
type Result struct {
	RunId      string
	State      *model.ScheduleState // Private copy carrying the new placement
	Placements []model.Committed    // One entry per block, ordered by id
	Unplaced   []UnplacedBlock
	Violations []model.Violation // Invariant violations inherited from pinned placements, if any
	Stats      Stats
}

// Placement returns the slot of every block
func (result *Result) Placement() model.Placement {
	return result.State.Placement()
}

func unplacedIds(blocks []UnplacedBlock) []uint64 {
	return lo.Map(blocks, func(block UnplacedBlock, _ int) uint64 { return block.BlockId })
}

// run carries the bookkeeping shared by the attempts of one invocation
type run struct {
	id      string
	mode    Mode
	started time.Time
}

func newRun(mode Mode) run {
	return run{
		id:      uuid.NewString(),
		mode:    mode,
		started: time.Now(),
	}
}

// applyChoice writes the chosen candidate of every unit into the state and returns the blocks left
// unplaced, ordered by id
func applyChoice(state *model.ScheduleState, units []*unit, chosen []int) []UnplacedBlock {
	unplaced := make([]UnplacedBlock, 0)
	for u, unit := range units {
		slot := model.Unplaced
		if chosen[u] >= 0 {
			slot = unit.candidates[chosen[u]]
		}
		for _, member := range unit.members {
			state.SetPlacement(member.Id, slot)
			if !slot.Placed() {
				unplaced = append(unplaced, UnplacedBlock{
					BlockId:  member.Id,
					Class:    member.Class,
					Lesson:   member.Lesson,
					Duration: member.Duration,
				})
			}
		}
	}
	slices.SortFunc(unplaced, func(a, b UnplacedBlock) int { return cmp.Compare(a.BlockId, b.BlockId) })
	return unplaced
}

// committed lists the final position of every block of the state
func committed(state *model.ScheduleState, provenance model.Provenance) []model.Committed {
	placements := lo.Map(state.Blocks, func(block model.Block, _ int) model.Committed {
		return model.Committed{
			BlockId:    block.Id,
			Slot:       block.Placement,
			Placed:     block.Placed(),
			Provenance: provenance,
		}
	})
	slices.SortFunc(placements, func(a, b model.Committed) int { return cmp.Compare(a.BlockId, b.BlockId) })
	return placements
}

// moved counts the blocks whose slot differs between two states
func moved(before, after *model.ScheduleState) int {
	count := 0
	for _, block := range after.Blocks {
		if previous, ok := before.Block(block.Id); ok && previous.Placement != block.Placement {
			count++
		}
	}
	return count
}

func newResult(run run, snapshot, state *model.ScheduleState, unplaced []UnplacedBlock, provenance model.Provenance, instance *sat.Instance, solution sat.Solution) *Result {
	return &Result{
		RunId:      run.id,
		State:      state,
		Placements: committed(state, provenance),
		Unplaced:   unplaced,
		Violations: model.Verify(state),
		Stats: Stats{
			RunId:       run.id,
			Mode:        run.mode,
			Variables:   instance.Variables,
			Constraints: len(instance.Constraints),
			Placed:      len(state.Blocks) - len(unplaced),
			Unplaced:    len(unplaced),
			Moved:       moved(snapshot, state),
			Cost:        solution.Cost,
			Elapsed:     time.Since(run.started),
		},
	}
}

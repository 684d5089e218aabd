package engine

import (
	"slices"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/samber/lo"
)

// ScopeStrategy decides which blocks an edit may move besides the edited one
type ScopeStrategy interface {
	Name() string
	// Movable returns the ids of the blocks allowed to move when source is placed at target
	Movable(state *model.ScheduleState, source []model.Block, target model.Slot) []uint64
}

// FocusedScope frees the blocks the edit collides with and their immediate neighbourhood: the
// blocks sharing a class or a teacher with them
type FocusedScope struct{}

func (FocusedScope) Name() string {
	return "focused"
}

func (FocusedScope) Movable(state *model.ScheduleState, source []model.Block, target model.Slot) []uint64 {
	candidates := lo.Filter(state.Blocks, func(block model.Block, _ int) bool {
		return block.Placed() && !block.Locked && !lo.ContainsBy(source, func(member model.Block) bool { return member.Id == block.Id })
	})

	//** Direct collisions
	direct := lo.Filter(candidates, func(block model.Block, _ int) bool {
		return lo.SomeBy(source, func(member model.Block) bool {
			if model.ConflictAt(member, target, block, block.Placement) {
				return true
			}
			return member.Lesson != "" && block.Class == member.Class && block.Lesson == member.Lesson && block.Placement.Day == target.Day
		})
	})

	//** Neighbourhood
	movable := lo.Filter(candidates, func(block model.Block, _ int) bool {
		return lo.SomeBy(direct, func(other model.Block) bool {
			return block.Id == other.Id || block.Class == other.Class || lo.Some(block.Teachers, other.Teachers)
		})
	})

	ids := lo.Map(movable, func(block model.Block, _ int) uint64 { return block.Id })
	slices.Sort(ids)
	return ids
}

// FreeScope lets every unlocked placed block move
type FreeScope struct{}

func (FreeScope) Name() string {
	return "free"
}

func (FreeScope) Movable(state *model.ScheduleState, source []model.Block, _ model.Slot) []uint64 {
	ids := make([]uint64, 0, len(state.Blocks))
	for _, block := range state.Blocks {
		if block.Placed() && !block.Locked && !lo.ContainsBy(source, func(member model.Block) bool { return member.Id == block.Id }) {
			ids = append(ids, block.Id)
		}
	}
	slices.Sort(ids)
	return ids
}

// ParseScope maps a scope name to its strategy
func ParseScope(name string) (ScopeStrategy, bool) {
	switch name {
	case FocusedScope{}.Name():
		return FocusedScope{}, true
	case FreeScope{}.Name():
		return FreeScope{}, true
	}
	return nil, false
}

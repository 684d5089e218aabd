package engine

import (
	"strings"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/samber/lo"
)

// EditRequest asks for a block (and its sibling group) to start at a new slot
type EditRequest struct {
	Block  uint64
	Target model.Slot
}

// edit is a request that passed pre-validation
type edit struct {
	request EditRequest
	source  model.Block
	members []model.Block // Source together with its siblings
}

func (edit edit) isSource(id uint64) bool {
	return lo.ContainsBy(edit.members, func(member model.Block) bool { return member.Id == id })
}

// validateEdit checks a request against the state before any model is built. done is true when
// the block already sits at the target.
func validateEdit(state *model.ScheduleState, request EditRequest) (validated edit, done bool, err error) {
	source, ok := state.Block(request.Block)
	if !ok {
		return edit{}, false, newError(EditRejected, "block %d does not exist", request.Block)
	}
	members := state.Members(source)
	if locked, ok := lo.Find(members, func(member model.Block) bool { return member.Locked }); ok {
		err := newError(EditRejected, "block %d is locked", locked.Id)
		err.Blocks = []uint64{locked.Id}
		return edit{}, false, err
	}

	target := request.Target
	for _, member := range members {
		if !state.InGrid(member, target) {
			err := newError(EditRejected, "block %d (%d hours) does not fit at %v within a %dx%d grid", member.Id, member.Duration, target, state.MaxDays, state.MaxHours)
			err.Blocks = []uint64{member.Id}
			return edit{}, false, err
		}
	}
	for _, member := range members {
		if closed := state.ClosedResources(member, target); len(closed) > 0 {
			names := lo.Map(closed, func(resource model.Resource, _ int) string { return state.Name(resource) })
			err := newError(EditRejected, "block %d cannot start at %v: closed for %s", member.Id, target, strings.Join(names, ", "))
			err.Blocks = []uint64{member.Id}
			return edit{}, false, err
		}
	}

	validated = edit{request: request, source: source, members: members}
	if lo.EveryBy(members, func(member model.Block) bool { return member.Placement == target }) {
		return validated, true, nil
	}

	for _, other := range state.Blocks {
		if !other.Locked || !other.Placed() || validated.isSource(other.Id) {
			continue
		}
		for _, member := range members {
			if model.ConflictAt(member, target, other, other.Placement) {
				err := newError(EditRejected, "block %d at %v collides with locked block %d", member.Id, target, other.Id)
				err.Blocks = []uint64{other.Id}
				return edit{}, false, err
			}
		}
	}
	return validated, false, nil
}

package engine

import (
	"slices"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/samber/lo"
)

// unit is a placement unit as seen by a model: the blocks that share one set of decision
// variables and the slots they may take
type unit struct {
	key        model.UnitKey
	members    []model.Block
	candidates []model.Slot
	pinned     bool       // A single forced candidate
	current    model.Slot // Slot before the run, when the members agree on one
	stay       bool       // Leaving the current slot is penalized
	source     bool       // The unit an edit moves
}

func newUnit(source model.Unit) *unit {
	current, _ := source.Placement()
	return &unit{
		key:     source.Key,
		members: source.Members,
		current: current,
	}
}

// pin fixes the unit at a single slot
func (unit *unit) pin(at model.Slot) {
	unit.pinned = true
	unit.candidates = []model.Slot{at}
}

func (unit *unit) priority() int {
	return lo.Max(lo.Map(unit.members, func(member model.Block, _ int) int { return member.Priority }))
}

func (unit *unit) duration() int {
	return lo.Max(lo.Map(unit.members, func(member model.Block, _ int) int { return member.Duration }))
}

func (unit *unit) ids() []uint64 {
	return lo.Map(unit.members, func(member model.Block, _ int) uint64 { return member.Id })
}

// currentCandidate returns the position of the current slot among the candidates
func (unit *unit) currentCandidate() (int, bool) {
	if !unit.current.Placed() {
		return 0, false
	}
	i := slices.Index(unit.candidates, unit.current)
	return i, i >= 0
}

// footprint returns the distinct occupancy keys the unit books when started at the slot
func (unit *unit) footprint(at model.Slot) []model.OccupancyKey {
	return lo.Uniq(lo.FlatMap(unit.members, func(member model.Block, _ int) []model.OccupancyKey { return member.Occupancy(at) }))
}

// teacherHours returns, for every teacher of the unit, the hours it books when started at the slot
func (unit *unit) teacherHours(at model.Slot) map[uint64][]int {
	hours := make(map[uint64][]int)
	for _, member := range unit.members {
		for _, teacher := range member.Teachers {
			for _, slot := range at.Span(member.Duration) {
				if !slices.Contains(hours[teacher], slot.Hour) {
					hours[teacher] = append(hours[teacher], slot.Hour)
				}
			}
		}
	}
	return hours
}

// lessons returns the distinct class and lesson pairs of the members
func (unit *unit) lessons() []classLesson {
	lessons := make([]classLesson, 0, len(unit.members))
	for _, member := range unit.members {
		if member.Lesson == "" {
			continue
		}
		key := classLesson{class: member.Class, lesson: member.Lesson}
		if !slices.Contains(lessons, key) {
			lessons = append(lessons, key)
		}
	}
	return lessons
}

func (unit *unit) hasTeacher(teacher uint64) bool {
	return lo.SomeBy(unit.members, func(member model.Block) bool { return slices.Contains(member.Teachers, teacher) })
}

type classLesson struct {
	class  uint64
	lesson string
}

// rebuildUnits decides, for every placement unit of the state, whether it is pinned or free under
// the retention mode, and enumerates the static candidates of the free ones
func rebuildUnits(state *model.ScheduleState, retention Retention) []*unit {
	units := make([]*unit, 0, len(state.Blocks))
	for _, source := range state.Units() {
		unit := newUnit(source)
		placed := unit.current.Placed()

		if anchor, ok := source.Anchor(); ok {
			unit.pin(anchor)
		} else if placed && retention == KeepPlaced {
			unit.pin(unit.current)
		} else if placed && retention == KeepManual && lo.SomeBy(unit.members, func(member model.Block) bool { return member.Manual }) {
			unit.pin(unit.current)
		} else {
			unit.candidates = state.Candidates(unit.members...)
			unit.stay = placed && retention == KeepCurrent
		}
		units = append(units, unit)
	}
	return units
}

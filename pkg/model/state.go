package model

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

const (
	MaxTeachersPerBlock = 7
	MaxRoomsPerBlock    = 7
)

// Settings describes the weekly grid
type Settings struct {
	MaxDays  int
	MaxHours int
}

// ScheduleState aggregates a full snapshot of the school: the grid, the blocks and every resource
// with its administrative availability
type ScheduleState struct {
	Settings
	Blocks   []Block
	Teachers map[uint64]Teacher
	Classes  map[uint64]SchoolClass
	Rooms    map[uint64]Room

	blockIndex map[uint64]int
}

// NewScheduleState validates the snapshot and builds a state from it
func NewScheduleState(settings Settings, blocks []Block, teachers []Teacher, classes []SchoolClass, rooms []Room) (*ScheduleState, error) {
	if settings.MaxDays <= 0 || settings.MaxHours <= 0 {
		return nil, fmt.Errorf("grid must have at least one day and one hour: got %d days and %d hours", settings.MaxDays, settings.MaxHours)
	}

	state := &ScheduleState{
		Settings: settings,
		Blocks:   make([]Block, 0, len(blocks)),
		Teachers: lo.SliceToMap(teachers, func(teacher Teacher) (uint64, Teacher) { return teacher.Id, teacher }),
		Classes:  lo.SliceToMap(classes, func(class SchoolClass) (uint64, SchoolClass) { return class.Id, class }),
		Rooms:    lo.SliceToMap(rooms, func(room Room) (uint64, Room) { return room.Id, room }),
	}
	if len(state.Teachers) != len(teachers) {
		return nil, fmt.Errorf("teacher ids must be unique")
	} else if len(state.Classes) != len(classes) {
		return nil, fmt.Errorf("class ids must be unique")
	} else if len(state.Rooms) != len(rooms) {
		return nil, fmt.Errorf("room ids must be unique")
	}

	for _, block := range blocks {
		if err := state.validateBlock(block); err != nil {
			return nil, err
		}
		state.Blocks = append(state.Blocks, block.Clone())
	}
	state.reindex()
	if len(state.blockIndex) != len(state.Blocks) {
		return nil, fmt.Errorf("block ids must be unique")
	}

	return state, nil
}

func (state *ScheduleState) validateBlock(block Block) error {
	if _, ok := state.Classes[block.Class]; !ok {
		return fmt.Errorf("block %d references unknown class %d", block.Id, block.Class)
	}
	if len(block.Teachers) == 0 || len(block.Teachers) > MaxTeachersPerBlock {
		return fmt.Errorf("block %d must have between 1 and %d teachers: got %d", block.Id, MaxTeachersPerBlock, len(block.Teachers))
	} else if len(block.Rooms) > MaxRoomsPerBlock {
		return fmt.Errorf("block %d must have at most %d rooms: got %d", block.Id, MaxRoomsPerBlock, len(block.Rooms))
	}
	if len(lo.Uniq(block.Teachers)) != len(block.Teachers) || len(lo.Uniq(block.Rooms)) != len(block.Rooms) {
		return fmt.Errorf("block %d lists a teacher or a room more than once", block.Id)
	}
	for _, teacher := range block.Teachers {
		if _, ok := state.Teachers[teacher]; !ok {
			return fmt.Errorf("block %d references unknown teacher %d", block.Id, teacher)
		}
	}
	for _, room := range block.Rooms {
		if _, ok := state.Rooms[room]; !ok {
			return fmt.Errorf("block %d references unknown room %d", block.Id, room)
		}
	}
	if block.Duration <= 0 || block.Duration > state.MaxHours {
		return fmt.Errorf("block %d has duration %d outside [1, %d]", block.Id, block.Duration, state.MaxHours)
	}
	if block.Placed() && !state.InGrid(block, block.Placement) {
		return fmt.Errorf("block %d is placed at %v which does not fit the %dx%d grid", block.Id, block.Placement, state.MaxDays, state.MaxHours)
	} else if !block.Placed() && block.Placement != Unplaced {
		return fmt.Errorf("block %d has a partial placement %+v", block.Id, block.Placement)
	}
	return nil
}

func (state *ScheduleState) reindex() {
	state.blockIndex = make(map[uint64]int, len(state.Blocks))
	for i, block := range state.Blocks {
		state.blockIndex[block.Id] = i
	}
}

// Block returns the block with the given id. It never writes to the state, so concurrent readers
// of one snapshot are safe.
func (state *ScheduleState) Block(id uint64) (Block, bool) {
	i, ok := state.position(id)
	if !ok {
		return Block{}, false
	}
	return state.Blocks[i], true
}

// position finds a block in Blocks, falling back to a scan when the index is missing or stale
// (states built as literals, or whose Blocks were edited directly)
func (state *ScheduleState) position(id uint64) (int, bool) {
	if i, ok := state.blockIndex[id]; ok && i < len(state.Blocks) && state.Blocks[i].Id == id {
		return i, true
	}
	i := slices.IndexFunc(state.Blocks, func(block Block) bool { return block.Id == id })
	return i, i >= 0
}

// SetPlacement moves a block of this state
func (state *ScheduleState) SetPlacement(id uint64, slot Slot) bool {
	i, ok := state.position(id)
	if !ok {
		return false
	}
	state.Blocks[i].Placement = slot
	return true
}

// Members returns the block together with its siblings (the whole group moves as one), sorted by id
func (state *ScheduleState) Members(block Block) []Block {
	if block.Sibling == 0 {
		return []Block{block}
	}
	return state.SiblingGroup(block.Sibling)
}

// SiblingGroup returns the members of a sibling group sorted by id
func (state *ScheduleState) SiblingGroup(group uint64) []Block {
	if group == 0 {
		return nil
	}
	members := lo.Filter(state.Blocks, func(block Block, _ int) bool { return block.Sibling == group })
	slices.SortFunc(members, func(a, b Block) int { return compareIds(a.Id, b.Id) })
	return members
}

// Availability returns the administrative availability of a resource; ok is false for unknown resources
func (state *ScheduleState) Availability(resource Resource) (availability Availability, ok bool) {
	switch resource.Kind {
	case TeacherResource:
		teacher, found := state.Teachers[resource.Id]
		return teacher.Availability, found
	case ClassResource:
		class, found := state.Classes[resource.Id]
		return class.Availability, found
	case RoomResource:
		room, found := state.Rooms[resource.Id]
		return room.Availability, found
	}
	return nil, false
}

// IsOpen reports whether the resource is administratively available at the given day and hour
func (state *ScheduleState) IsOpen(resource Resource, day, hour int) bool {
	if day < 1 || day > state.MaxDays || hour < 1 || hour > state.MaxHours {
		return false
	}
	availability, ok := state.Availability(resource)
	return ok && availability.IsOpen(day, hour)
}

// SlotStatus classifies a resource's slot. Blocks listed in exclude are ignored when looking for
// placements (typically the block being moved and its siblings).
func (state *ScheduleState) SlotStatus(resource Resource, at Slot, exclude ...uint64) SlotStatus {
	if !state.IsOpen(resource, at.Day, at.Hour) {
		return SlotAdministrativelyClosed
	}
	key := OccupancyKey{Kind: resource.Kind, Id: resource.Id, Day: at.Day, Hour: at.Hour}
	for _, block := range state.Blocks {
		if !block.Placed() || slices.Contains(exclude, block.Id) || block.Placement.Day != at.Day {
			continue
		}
		if slices.Contains(block.Occupancy(block.Placement), key) {
			return SlotOccupiedByPlacement
		}
	}
	return SlotOpen
}

// InGrid reports whether the block started at the slot stays inside the grid and within one day
func (state *ScheduleState) InGrid(block Block, at Slot) bool {
	return at.Placed() && at.Day <= state.MaxDays && at.Hour+block.Duration-1 <= state.MaxHours
}

// Fits reports whether every resource of the block is open across its whole duration when started at the slot
func (state *ScheduleState) Fits(block Block, at Slot) bool {
	return state.InGrid(block, at) && len(state.ClosedResources(block, at)) == 0
}

// ClosedResources returns the resources of the block that are closed somewhere in its span
func (state *ScheduleState) ClosedResources(block Block, at Slot) []Resource {
	closed := make([]Resource, 0)
	for _, resource := range block.Resources() {
		for _, hour := range at.Span(block.Duration) {
			if !state.IsOpen(resource, hour.Day, hour.Hour) {
				closed = append(closed, resource)
				break
			}
		}
	}
	return closed
}

// Candidates returns, in day-major order, every slot where all the given members fit statically
func (state *ScheduleState) Candidates(members ...Block) []Slot {
	candidates := make([]Slot, 0)
	for day := 1; day <= state.MaxDays; day++ {
		for hour := 1; hour <= state.MaxHours; hour++ {
			slot := Slot{Day: day, Hour: hour}
			if lo.EveryBy(members, func(member Block) bool { return state.Fits(member, slot) }) {
				candidates = append(candidates, slot)
			}
		}
	}
	return candidates
}

// Placement returns the current slot of every block
func (state *ScheduleState) Placement() Placement {
	placement := make(Placement, len(state.Blocks))
	for _, block := range state.Blocks {
		placement[block.Id] = block.Placement
	}
	return placement
}

// WithPlacement returns a copy of the state where the given blocks have been moved
func (state *ScheduleState) WithPlacement(placement Placement) *ScheduleState {
	clone := state.Clone()
	for id, slot := range placement {
		clone.SetPlacement(id, slot)
	}
	return clone
}

// Name returns a human-readable name for a resource
func (state *ScheduleState) Name(resource Resource) string {
	var name string
	switch resource.Kind {
	case TeacherResource:
		name = state.Teachers[resource.Id].Name
	case ClassResource:
		name = state.Classes[resource.Id].Name
	case RoomResource:
		name = state.Rooms[resource.Id].Name
	}
	if name == "" {
		return resource.String()
	}
	return fmt.Sprintf("%v %q", resource.Kind, name)
}

// Clone returns a deep copy of the state. Solvers only ever work on clones.
func (state *ScheduleState) Clone() *ScheduleState {
	clone := &ScheduleState{
		Settings: state.Settings,
		Blocks:   lo.Map(state.Blocks, func(block Block, _ int) Block { return block.Clone() }),
		Teachers: make(map[uint64]Teacher, len(state.Teachers)),
		Classes:  make(map[uint64]SchoolClass, len(state.Classes)),
		Rooms:    make(map[uint64]Room, len(state.Rooms)),
	}
	for id, teacher := range state.Teachers {
		teacher.Availability = teacher.Availability.Clone()
		clone.Teachers[id] = teacher
	}
	for id, class := range state.Classes {
		class.Availability = class.Availability.Clone()
		clone.Classes[id] = class
	}
	for id, room := range state.Rooms {
		room.Availability = room.Availability.Clone()
		clone.Rooms[id] = room
	}
	clone.reindex()
	return clone
}

func compareIds(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

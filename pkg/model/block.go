package model

import (
	"slices"

	"github.com/samber/lo"
)

// Block is an atomic schedulable unit: one class, one or more teachers, optional shared rooms and a
// duration of contiguous hours within one day
type Block struct {
	Id        uint64
	Class     uint64
	Lesson    string
	Duration  int
	Teachers  []uint64
	Rooms     []uint64
	Locked    bool
	Manual    bool
	Sibling   uint64 // Sibling-group id, 0 means the block has no siblings
	Priority  int    // Morning-priority multiplier, 0 means no preference
	Placement Slot
}

// Placed reports whether the block currently has a slot
func (block Block) Placed() bool {
	return block.Placement.Placed()
}

// Resources returns every resource the block books: its class, its teachers and its rooms
func (block Block) Resources() []Resource {
	resources := make([]Resource, 0, 1+len(block.Teachers)+len(block.Rooms))
	resources = append(resources, Resource{Kind: ClassResource, Id: block.Class})
	for _, teacher := range block.Teachers {
		resources = append(resources, Resource{Kind: TeacherResource, Id: teacher})
	}
	for _, room := range block.Rooms {
		resources = append(resources, Resource{Kind: RoomResource, Id: room})
	}
	return resources
}

// Occupancy returns the footprint of the block when started at the given slot: one key per
// booked resource and covered hour
func (block Block) Occupancy(at Slot) []OccupancyKey {
	if !at.Placed() {
		return nil
	}
	resources := block.Resources()
	keys := make([]OccupancyKey, 0, len(resources)*block.Duration)
	for _, hour := range at.Span(block.Duration) {
		for _, resource := range resources {
			keys = append(keys, OccupancyKey{Kind: resource.Kind, Id: resource.Id, Day: hour.Day, Hour: hour.Hour})
		}
	}
	return keys
}

// SharesResource reports whether both blocks book at least one common teacher, class or room
func (block Block) SharesResource(other Block) bool {
	if block.Class == other.Class {
		return true
	}
	return lo.SomeBy(block.Teachers, func(teacher uint64) bool { return slices.Contains(other.Teachers, teacher) }) ||
		lo.SomeBy(block.Rooms, func(room uint64) bool { return slices.Contains(other.Rooms, room) })
}

// SameSiblingGroup reports whether both blocks belong to the same (non-empty) sibling group
func (block Block) SameSiblingGroup(other Block) bool {
	return block.Sibling != 0 && block.Sibling == other.Sibling
}

// UnitKey identifies the placement unit a block belongs to: the block itself or its sibling group
type UnitKey struct {
	Group bool
	Id    uint64
}

// UnitKey returns the key of the placement unit of the block
func (block Block) UnitKey() UnitKey {
	if block.Sibling != 0 {
		return UnitKey{Group: true, Id: block.Sibling}
	}
	return UnitKey{Id: block.Id}
}

// Clone returns a copy of the block that does not share slices with the original
func (block Block) Clone() Block {
	clone := block
	clone.Teachers = slices.Clone(block.Teachers)
	clone.Rooms = slices.Clone(block.Rooms)
	return clone
}

// Placement associates block ids with their slots
type Placement map[uint64]Slot

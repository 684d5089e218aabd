package model

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
)

// Unit is a set of blocks that are placed together: a single block or a whole sibling group
type Unit struct {
	Key     UnitKey
	Members []Block
}

// Anchor returns the slot of the first locked and placed member, if any
func (unit Unit) Anchor() (Slot, bool) {
	member, ok := lo.Find(unit.Members, func(member Block) bool { return member.Locked && member.Placed() })
	return member.Placement, ok
}

// Pinned reports whether one of the members is locked in place
func (unit Unit) Pinned() bool {
	_, ok := unit.Anchor()
	return ok
}

// Placement returns the slot shared by the members, if they all agree on one
func (unit Unit) Placement() (Slot, bool) {
	slot := unit.Members[0].Placement
	agree := lo.EveryBy(unit.Members, func(member Block) bool { return member.Placement == slot })
	return slot, agree && slot.Placed()
}

// Ids returns the ids of the members
func (unit Unit) Ids() []uint64 {
	return blockIds(unit.Members)
}

// Units groups the blocks of the state into placement units, ordered by their first block id
func (state *ScheduleState) Units() []Unit {
	units := make([]Unit, 0, len(state.Blocks))
	seen := make(map[UnitKey]bool)
	for _, block := range state.Blocks {
		key := block.UnitKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		units = append(units, Unit{Key: key, Members: state.Members(block)})
	}
	slices.SortFunc(units, func(a, b Unit) int { return cmp.Compare(a.Members[0].Id, b.Members[0].Id) })
	return units
}

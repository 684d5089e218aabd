package model

import (
	"cmp"
	"slices"
)

// OccupancyKey is a single booking of a resource on a given day and hour
type OccupancyKey struct {
	Kind ResourceKind
	Id   uint64
	Day  int
	Hour int
}

// Resource returns the resource booked by the key
func (key OccupancyKey) Resource() Resource {
	return Resource{Kind: key.Kind, Id: key.Id}
}

// Conflict is the shared exclusivity predicate: two placed blocks conflict if and only if their
// footprints intersect and they are not members of the same sibling group
func Conflict(a, b Block) bool {
	if a.Id == b.Id || !a.Placed() || !b.Placed() {
		return false
	}
	return ConflictAt(a, a.Placement, b, b.Placement)
}

// ConflictAt evaluates the exclusivity predicate for two blocks at arbitrary start slots
func ConflictAt(a Block, at Slot, b Block, bt Slot) bool {
	if a.Id == b.Id || a.SameSiblingGroup(b) {
		return false
	}
	return at.Overlaps(a.Duration, bt, b.Duration) && a.SharesResource(b)
}

// ConflictPair holds two conflicting block ids, First < Second
type ConflictPair struct {
	First  uint64
	Second uint64
}

// OccupancyIndex maps every occupancy key to the placed blocks booking it
type OccupancyIndex struct {
	occupants map[OccupancyKey][]uint64
	blocks    map[uint64]Block
}

// NewOccupancyIndex indexes every placed block of the slice
func NewOccupancyIndex(blocks []Block) *OccupancyIndex {
	index := &OccupancyIndex{
		occupants: make(map[OccupancyKey][]uint64),
		blocks:    make(map[uint64]Block, len(blocks)),
	}
	for _, block := range blocks {
		index.Add(block)
	}
	return index
}

// Add indexes the block at its current placement; unplaced blocks are ignored
func (index *OccupancyIndex) Add(block Block) {
	if !block.Placed() {
		return
	}
	if _, ok := index.blocks[block.Id]; ok {
		index.Remove(block.Id)
	}
	index.blocks[block.Id] = block
	for _, key := range block.Occupancy(block.Placement) {
		if !slices.Contains(index.occupants[key], block.Id) {
			index.occupants[key] = append(index.occupants[key], block.Id)
		}
	}
}

// Remove drops the block from the index
func (index *OccupancyIndex) Remove(id uint64) {
	block, ok := index.blocks[id]
	if !ok {
		return
	}
	delete(index.blocks, id)
	for _, key := range block.Occupancy(block.Placement) {
		occupants := slices.DeleteFunc(index.occupants[key], func(occupant uint64) bool { return occupant == id })
		if len(occupants) == 0 {
			delete(index.occupants, key)
		} else {
			index.occupants[key] = occupants
		}
	}
}

// Move re-indexes the block at a new slot
func (index *OccupancyIndex) Move(id uint64, to Slot) {
	block, ok := index.blocks[id]
	if !ok {
		return
	}
	index.Remove(id)
	block.Placement = to
	index.Add(block)
}

// Block returns the indexed copy of a block
func (index *OccupancyIndex) Block(id uint64) (Block, bool) {
	block, ok := index.blocks[id]
	return block, ok
}

// Occupants returns the ids of the blocks booking the key
func (index *OccupancyIndex) Occupants(key OccupancyKey) []uint64 {
	return index.occupants[key]
}

// ConflictsAt returns the ids of indexed blocks that would conflict with block if it started at
// the given slot. The block itself is never reported.
func (index *OccupancyIndex) ConflictsAt(block Block, at Slot) []uint64 {
	seen := make(map[uint64]bool)
	conflicts := make([]uint64, 0)
	for _, key := range block.Occupancy(at) {
		for _, occupant := range index.occupants[key] {
			if seen[occupant] || occupant == block.Id {
				continue
			}
			seen[occupant] = true
			if ConflictAt(block, at, index.blocks[occupant], index.blocks[occupant].Placement) {
				conflicts = append(conflicts, occupant)
			}
		}
	}
	slices.Sort(conflicts)
	return conflicts
}

// Conflicts returns every conflicting pair of indexed blocks, sorted
func (index *OccupancyIndex) Conflicts() []ConflictPair {
	seen := make(map[ConflictPair]bool)
	pairs := make([]ConflictPair, 0)
	for _, occupants := range index.occupants {
		if len(occupants) < 2 {
			continue
		}
		for i := range len(occupants) - 1 {
			for j := i + 1; j < len(occupants); j++ {
				first, second := min(occupants[i], occupants[j]), max(occupants[i], occupants[j])
				pair := ConflictPair{First: first, Second: second}
				if seen[pair] || !Conflict(index.blocks[first], index.blocks[second]) {
					continue
				}
				seen[pair] = true
				pairs = append(pairs, pair)
			}
		}
	}
	slices.SortFunc(pairs, func(a, b ConflictPair) int {
		if c := cmp.Compare(a.First, b.First); c != 0 {
			return c
		}
		return cmp.Compare(a.Second, b.Second)
	})
	return pairs
}

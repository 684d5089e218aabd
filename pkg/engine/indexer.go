package engine

import "sort"

// indexer gives a unique variable index to every (unit, candidate) pair and vice versa
type indexer interface {
	// Returns the variable of the candidate-th slot of a unit
	Index(unit, candidate int) int
	// Returns the unit and candidate a decision variable stands for
	Attributes(variable int) (unit int, candidate int)
	// Returns the number of decision variables
	Variables() int
}

// offsetIndexer lays the candidates of every unit one after the other, starting at variable 1
type offsetIndexer struct {
	offsets []int // offsets[u] is the number of variables used by units before u
}

func newIndexer(units []*unit) indexer {
	offsets := make([]int, len(units)+1)
	for i, unit := range units {
		offsets[i+1] = offsets[i] + len(unit.candidates)
	}
	return &offsetIndexer{
		offsets: offsets,
	}
}

func (indexer *offsetIndexer) Index(unit, candidate int) int {
	return indexer.offsets[unit] + candidate + 1
}

func (indexer *offsetIndexer) Attributes(variable int) (unit int, candidate int) {
	// First unit whose range ends at or after the variable
	unit = sort.Search(len(indexer.offsets)-1, func(i int) bool { return indexer.offsets[i+1] >= variable })
	return unit, variable - indexer.offsets[unit] - 1
}

func (indexer *offsetIndexer) Variables() int {
	return indexer.offsets[len(indexer.offsets)-1]
}

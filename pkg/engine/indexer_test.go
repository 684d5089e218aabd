package engine

import (
	"testing"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestIndexer(t *testing.T) {
	//** Arrange
	units := []*unit{
		{candidates: make([]model.Slot, 3)},
		{candidates: make([]model.Slot, 1)},
		{candidates: make([]model.Slot, 0)},
		{candidates: make([]model.Slot, 2)},
	}

	//** Act
	indexer := newIndexer(units)

	//** Assert
	assert.Equal(t, 6, indexer.Variables())
	variable := 1
	for u, unit := range units {
		for c := range unit.candidates {
			assert.Equal(t, variable, indexer.Index(u, c))
			gotUnit, gotCandidate := indexer.Attributes(variable)
			assert.Equal(t, u, gotUnit)
			assert.Equal(t, c, gotCandidate)
			variable++
		}
	}
}

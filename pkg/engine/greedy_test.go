package engine

import (
	"context"
	"testing"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreedyCascade(t *testing.T) {
	//** Arrange
	snapshot := placedState(t)
	before := snapshot.Placement()

	//** Act
	result, err := NewGreedyCascade(testEditOptions()).Resolve(context.Background(), snapshot, EditRequest{Block: 2, Target: slot(1, 1)})

	//** Assert
	require.NoError(t, err)
	assert.Empty(t, model.Verify(result.State))
	assert.Empty(t, model.VerifyLocked(snapshot, result.State))
	placement := result.State.Placement()
	assert.Equal(t, slot(1, 1), placement[2])
	assert.NotEqual(t, slot(1, 1), placement[1])
	for _, committed := range result.Placements {
		assert.Equal(t, model.ProvenanceGreedyEdit, committed.Provenance)
	}
	assert.Equal(t, before, snapshot.Placement())
}

func TestGreedyPrefersNearbySlots(t *testing.T) {
	//** Arrange
	snapshot := newState(t, 2, 3, []model.Block{
		{Id: 1, Class: 1, Duration: 1, Teachers: []uint64{1}, Placement: slot(1, 1)},
		{Id: 2, Class: 1, Duration: 1, Teachers: []uint64{2}, Placement: slot(1, 3)},
	}, teachers(1, 2)...)

	//** Act
	result, err := NewGreedyCascade(testEditOptions()).Resolve(context.Background(), snapshot, EditRequest{Block: 2, Target: slot(1, 1)})

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, []Change{
		{BlockId: 1, From: slot(1, 1), To: slot(1, 2)},
		{BlockId: 2, From: slot(1, 3), To: slot(1, 1)},
	}, result.Changes)
	assert.Equal(t, 1, result.Movable)
}

func TestGreedyChain(t *testing.T) {
	//** Arrange
	// Block 3 takes block 1's hour; block 1 can only go where block 2 sits, which then takes the
	// first hour
	snapshot := newState(t, 1, 3, []model.Block{
		{Id: 1, Class: 1, Duration: 1, Teachers: []uint64{1}, Placement: slot(1, 1)},
		{Id: 2, Class: 2, Duration: 1, Teachers: []uint64{1}, Placement: slot(1, 2)},
		{Id: 3, Class: 1, Duration: 1, Teachers: []uint64{2}, Placement: slot(1, 3)},
	},
		model.Teacher{Id: 1, Availability: model.Availability{slot(1, 3): model.Closed}},
		model.Teacher{Id: 2},
	)

	//** Act
	result, err := NewGreedyCascade(testEditOptions()).Resolve(context.Background(), snapshot, EditRequest{Block: 3, Target: slot(1, 1)})

	//** Assert
	require.NoError(t, err)
	assert.Empty(t, model.Verify(result.State))
	assert.Len(t, result.Changes, 3)
}

func TestGreedyRelocatesEveryConflictPerIteration(t *testing.T) {
	//** Arrange
	// Block 3 lands on block 1 (same class) and on block 2 (same teacher); one iteration must
	// move both of them
	snapshot := newState(t, 1, 3, []model.Block{
		{Id: 1, Class: 1, Duration: 1, Teachers: []uint64{2}, Placement: slot(1, 1)},
		{Id: 2, Class: 2, Duration: 1, Teachers: []uint64{1}, Placement: slot(1, 1)},
		{Id: 3, Class: 1, Duration: 1, Teachers: []uint64{1}, Placement: slot(1, 3)},
	}, teachers(1, 2)...)
	options := testEditOptions()
	options.MaxIterations = 1

	//** Act
	result, err := NewGreedyCascade(options).Resolve(context.Background(), snapshot, EditRequest{Block: 3, Target: slot(1, 1)})

	//** Assert
	require.NoError(t, err)
	assert.Empty(t, model.Verify(result.State))
	assert.Equal(t, 2, result.Movable)
	placement := result.State.Placement()
	assert.Equal(t, slot(1, 1), placement[3])
	assert.NotEqual(t, slot(1, 1), placement[1])
	assert.NotEqual(t, slot(1, 1), placement[2])
}

func TestGreedyIterationBudget(t *testing.T) {
	//** Arrange
	snapshot := placedState(t)
	options := testEditOptions()
	options.MaxIterations = 0

	//** Act
	_, err := NewGreedyCascade(options).Resolve(context.Background(), snapshot, EditRequest{Block: 2, Target: slot(1, 1)})

	//** Assert
	var engineErr *Error
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, EditConflict, engineErr.Kind)
	assert.Equal(t, ReasonUnresolved, engineErr.Reason)
	assert.Contains(t, engineErr.Message, "after 0 iterations")
}

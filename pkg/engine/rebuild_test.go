package engine

import (
	"context"
	"testing"

	"github.com/limaJavier/timetabler/pkg/diagnostics"
	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/limaJavier/timetabler/pkg/sat"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splitLessonState is one teacher and one class on a 5x6 grid with a lesson split into three
// 2-hour blocks. The teacher is closed on hours 5-6 every day and on every closed day.
func splitLessonState(t *testing.T, closedDays ...int) *model.ScheduleState {
	t.Helper()
	blocks := lo.Map([]uint64{1, 2, 3}, func(id uint64, _ int) model.Block {
		return model.Block{Id: id, Class: 1, Lesson: "MATH", Duration: 2, Teachers: []uint64{1}}
	})
	return newState(t, 5, 6, blocks, model.Teacher{Id: 1, Name: "Ada", Availability: closedHours(5, 6, closedDays, 5, 6)})
}

// schoolState is a small school with two classes, three teachers, a shared lab and a sibling
// group splitting both classes for physical education
func schoolState(t *testing.T) *model.ScheduleState {
	t.Helper()
	return newState(t, 3, 5, []model.Block{
		{Id: 1, Class: 1, Lesson: "MATH", Duration: 2, Teachers: []uint64{1}},
		{Id: 2, Class: 1, Lesson: "MATH", Duration: 1, Teachers: []uint64{1}},
		{Id: 3, Class: 1, Lesson: "CHEM", Duration: 2, Teachers: []uint64{2}, Rooms: []uint64{1}},
		{Id: 4, Class: 1, Lesson: "LIT", Duration: 1, Teachers: []uint64{3}, Priority: 2},
		{Id: 5, Class: 2, Lesson: "MATH", Duration: 2, Teachers: []uint64{1}},
		{Id: 6, Class: 2, Lesson: "CHEM", Duration: 1, Teachers: []uint64{2}, Rooms: []uint64{1}},
		{Id: 7, Class: 2, Lesson: "LIT", Duration: 2, Teachers: []uint64{3}},
		{Id: 8, Class: 1, Lesson: "PE", Duration: 1, Teachers: []uint64{4}, Sibling: 1},
		{Id: 9, Class: 2, Lesson: "PE", Duration: 1, Teachers: []uint64{5}, Sibling: 1},
		{Id: 10, Class: 2, Lesson: "ART", Duration: 1, Teachers: []uint64{3}, Locked: true, Placement: slot(2, 3)},
	},
		model.Teacher{Id: 1, Name: "Ada"},
		model.Teacher{Id: 2, Name: "Boole", Availability: closedHours(3, 5, []int{3})},
		model.Teacher{Id: 3, Name: "Curie", MaxHoursPerDay: 2},
		model.Teacher{Id: 4, Name: "Dirac"},
		model.Teacher{Id: 5, Name: "Euler"},
	)
}

func TestRebuildSplitLessons(t *testing.T) {
	t.Run("Two usable days", func(t *testing.T) {
		//** Arrange
		solver := &countingSolver{}
		options := testOptions()
		options.Solver = solver

		//** Act
		result, err := NewRebuildSolver(options).Solve(context.Background(), splitLessonState(t, 3, 4, 5))

		//** Assert
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, IsKind(err, StructuralInfeasibility))
		var engineErr *Error
		require.ErrorAs(t, err, &engineErr)
		assert.ElementsMatch(t, []uint64{1, 2, 3}, engineErr.Blocks)
		assert.Equal(t, diagnostics.SplitDays, engineErr.Findings[0].Kind)
		assert.Zero(t, solver.calls)
	})

	t.Run("Exactly three usable days", func(t *testing.T) {
		//** Act
		result, err := NewRebuildSolver(testOptions()).Solve(context.Background(), splitLessonState(t, 4, 5))

		//** Assert
		require.NoError(t, err)
		assert.Empty(t, result.Violations)
		days := lo.Map(result.State.Blocks, func(block model.Block, _ int) int { return block.Placement.Day })
		assert.ElementsMatch(t, []int{1, 2, 3}, days)
		for _, block := range result.State.Blocks {
			assert.LessOrEqual(t, block.Placement.Hour+block.Duration-1, 4)
		}
	})
}

func TestRebuildNoCandidates(t *testing.T) {
	for _, preFlight := range []bool{true, false} {
		//** Arrange
		state := newState(t, 5, 6,
			[]model.Block{{Id: 42, Class: 1, Lesson: "ART", Duration: 1, Teachers: []uint64{7}}},
			model.Teacher{Id: 7, Name: "Boole", Availability: closedHours(5, 6, []int{1, 2, 3, 4, 5})},
		)
		solver := &countingSolver{}
		options := testOptions()
		options.Solver = solver
		options.PreFlight = preFlight

		//** Act
		_, err := NewRebuildSolver(options).Solve(context.Background(), state)

		//** Assert
		require.Error(t, err)
		assert.Equal(t, StructuralInfeasibility, KindOf(err))
		var engineErr *Error
		require.ErrorAs(t, err, &engineErr)
		assert.Equal(t, []uint64{42}, engineErr.Blocks)
		finding, ok := lo.Find(engineErr.Findings, func(finding diagnostics.Finding) bool { return finding.Kind == diagnostics.NoCandidates })
		require.True(t, ok)
		assert.Equal(t, []model.Resource{{Kind: model.TeacherResource, Id: 7}}, finding.Resources)
		assert.Contains(t, err.Error(), `teacher "Boole"`)
		assert.Zero(t, solver.calls)
	}
}

func TestRebuildSchool(t *testing.T) {
	//** Arrange
	snapshot := schoolState(t)
	recorder := &eventRecorder{}
	options := testOptions()
	options.Events = recorder

	//** Act
	result, err := NewRebuildSolver(options).Solve(context.Background(), snapshot)

	//** Assert
	require.NoError(t, err)
	state := result.State
	assert.Empty(t, model.Verify(state))
	assert.Empty(t, model.VerifyLocked(snapshot, state))
	assertDisjoint(t, state)

	// Siblings share one slot
	pe1, _ := state.Block(8)
	pe2, _ := state.Block(9)
	assert.Equal(t, pe1.Placement, pe2.Placement)

	// Every block is placed and reported once, with its provenance
	assert.Len(t, result.Placements, len(state.Blocks))
	assert.True(t, lo.EveryBy(result.Placements, func(placement model.Committed) bool {
		return placement.Placed && placement.Provenance == model.ProvenanceRebuild
	}))
	assert.Empty(t, result.Unplaced)

	// The snapshot is untouched
	for _, block := range snapshot.Blocks {
		if !block.Locked {
			assert.False(t, block.Placed())
		}
	}

	// Events
	require.Len(t, eventsOf[AttemptStarted](recorder), 1)
	solved := eventsOf[Solved](recorder)
	require.Len(t, solved, 1)
	assert.Equal(t, "strict", solved[0].Stats.Profile)
	assert.Equal(t, result.RunId, solved[0].Stats.RunId)
	assert.NotEmpty(t, result.RunId)
}

func TestRebuildKeepCurrentIdempotence(t *testing.T) {
	//** Arrange
	snapshot := newState(t, 3, 4, []model.Block{
		{Id: 1, Class: 1, Lesson: "MATH", Duration: 2, Teachers: []uint64{1}},
		{Id: 2, Class: 1, Lesson: "MATH", Duration: 1, Teachers: []uint64{1}},
		{Id: 3, Class: 1, Lesson: "LIT", Duration: 1, Teachers: []uint64{2}, Priority: 1},
		{Id: 4, Class: 2, Lesson: "LIT", Duration: 2, Teachers: []uint64{2}},
	}, teachers(1, 2)...)
	first, err := NewRebuildSolver(testOptions()).Solve(context.Background(), snapshot)
	require.NoError(t, err)
	options := testOptions()
	options.Retention = KeepCurrent

	//** Act
	second, err := NewRebuildSolver(options).Solve(context.Background(), first.State)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, first.Placement(), second.Placement())
	assert.Zero(t, second.Stats.Moved)
}

func TestRebuildRetention(t *testing.T) {
	//** Arrange
	snapshot := newState(t, 2, 3, []model.Block{
		{Id: 1, Class: 1, Duration: 1, Teachers: []uint64{1}, Placement: slot(2, 3)},
		{Id: 2, Class: 1, Duration: 1, Teachers: []uint64{1}, Manual: true, Placement: slot(2, 2)},
		{Id: 3, Class: 1, Duration: 1, Teachers: []uint64{1}},
	}, teachers(1)...)

	t.Run("Keep placed", func(t *testing.T) {
		options := testOptions()
		options.Retention = KeepPlaced

		result, err := NewRebuildSolver(options).Solve(context.Background(), snapshot)

		require.NoError(t, err)
		assert.Equal(t, slot(2, 3), result.Placement()[1])
		assert.Equal(t, slot(2, 2), result.Placement()[2])
	})

	t.Run("Keep manual", func(t *testing.T) {
		options := testOptions()
		options.Retention = KeepManual

		result, err := NewRebuildSolver(options).Solve(context.Background(), snapshot)

		require.NoError(t, err)
		assert.Equal(t, slot(2, 2), result.Placement()[2])
		assert.Empty(t, result.Violations)
	})
}

func TestRebuildRelaxation(t *testing.T) {
	//** Arrange
	recorder := &eventRecorder{}
	solver := &countingSolver{
		forced:   []sat.Status{sat.Unknown, sat.Infeasible},
		delegate: sat.NewGophersatSolver(nil),
	}
	options := testOptions()
	options.Solver = solver
	options.Events = recorder

	//** Act
	result, err := NewRebuildSolver(options).Solve(context.Background(), schoolState(t))

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stats.Attempts)
	assert.Equal(t, "lenient", result.Stats.Profile)
	failed := eventsOf[AttemptFailed](recorder)
	require.Len(t, failed, 2)
	assert.Equal(t, "strict", failed[0].Profile)
	assert.Equal(t, "unknown", failed[0].Reason)
	assert.Equal(t, "softened", failed[1].Profile)
	assert.Equal(t, "infeasible", failed[1].Reason)
	assert.Len(t, eventsOf[AttemptStarted](recorder), 3)
}

func TestRebuildUnplaceable(t *testing.T) {
	//** Arrange
	// Three blocks pairwise sharing a resource need three hours, every resource only needs two
	snapshot := newState(t, 1, 2, []model.Block{
		{Id: 1, Class: 1, Duration: 1, Teachers: []uint64{1}, Rooms: []uint64{1}},
		{Id: 2, Class: 2, Duration: 1, Teachers: []uint64{1}, Rooms: []uint64{2}},
		{Id: 3, Class: 3, Duration: 1, Teachers: []uint64{2}, Rooms: []uint64{1, 2}},
	}, teachers(1, 2)...)
	recorder := &eventRecorder{}
	options := testOptions()
	options.Events = recorder

	//** Act
	_, err := NewRebuildSolver(options).Solve(context.Background(), snapshot)

	//** Assert
	require.Error(t, err)
	var engineErr *Error
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, SolverInfeasible, engineErr.Kind)
	require.Len(t, engineErr.Unplaceable, 1)
	assert.Equal(t, []uint64{engineErr.Unplaceable[0].BlockId}, engineErr.Blocks)
	assert.Len(t, eventsOf[AttemptFailed](recorder), len(DefaultProfiles()))
	assert.Contains(t, err.Error(), "unplaceable blocks")
}

func TestRebuildSolverFailure(t *testing.T) {
	//** Arrange
	options := testOptions()
	options.Solver = failingSolver{}

	//** Act
	_, err := NewRebuildSolver(options).Solve(context.Background(), schoolState(t))

	//** Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, IsKind(err, ModelInvalid))
	assert.False(t, IsKind(err, SolverInfeasible))
}

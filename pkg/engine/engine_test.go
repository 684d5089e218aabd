package engine

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/limaJavier/timetabler/pkg/sat"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newState builds a snapshot whose classes and rooms are derived from the blocks
func newState(t *testing.T, days, hours int, blocks []model.Block, teachers ...model.Teacher) *model.ScheduleState {
	t.Helper()
	classes := lo.Uniq(lo.Map(blocks, func(block model.Block, _ int) uint64 { return block.Class }))
	rooms := lo.Uniq(lo.FlatMap(blocks, func(block model.Block, _ int) []uint64 { return block.Rooms }))
	state, err := model.NewScheduleState(
		model.Settings{MaxDays: days, MaxHours: hours},
		blocks,
		teachers,
		lo.Map(classes, func(id uint64, _ int) model.SchoolClass { return model.SchoolClass{Id: id} }),
		lo.Map(rooms, func(id uint64, _ int) model.Room { return model.Room{Id: id} }),
	)
	require.NoError(t, err)
	return state
}

func teachers(ids ...uint64) []model.Teacher {
	return lo.Map(ids, func(id uint64, _ int) model.Teacher { return model.Teacher{Id: id} })
}

// closedHours returns an availability closed on the given hours of every day, and on every hour
// of the given days
func closedHours(days, hours int, closedDays []int, closed ...int) model.Availability {
	availability := model.Availability{}
	for day := 1; day <= days; day++ {
		for hour := 1; hour <= hours; hour++ {
			if slices.Contains(closedDays, day) || slices.Contains(closed, hour) {
				availability[model.Slot{Day: day, Hour: hour}] = model.Closed
			}
		}
	}
	return availability
}

func slot(day, hour int) model.Slot {
	return model.Slot{Day: day, Hour: hour}
}

func testOptions() Options {
	options := DefaultOptions()
	options.AttemptTimeout = 10 * time.Second
	return options
}

func testEditOptions() EditOptions {
	options := DefaultEditOptions()
	options.Timeout = 10 * time.Second
	return options
}

// assertDisjoint checks the exclusivity property on every pair of overlapping placed blocks:
// teachers and rooms are disjoint, and the class differs unless both blocks are siblings
func assertDisjoint(t *testing.T, state *model.ScheduleState) {
	t.Helper()
	for i, a := range state.Blocks {
		for _, b := range state.Blocks[i+1:] {
			if !a.Placed() || !b.Placed() || !a.Placement.Overlaps(a.Duration, b.Placement, b.Duration) {
				continue
			}
			assert.Empty(t, lo.Intersect(a.Teachers, b.Teachers), "blocks %d and %d share a teacher", a.Id, b.Id)
			assert.Empty(t, lo.Intersect(a.Rooms, b.Rooms), "blocks %d and %d share a room", a.Id, b.Id)
			if !a.SameSiblingGroup(b) {
				assert.NotEqual(t, a.Class, b.Class, "blocks %d and %d share a class", a.Id, b.Id)
			}
		}
	}
}

// countingSolver records how many times it is asked to solve and delegates to another solver
type countingSolver struct {
	mutex    sync.Mutex
	calls    int
	delegate sat.Solver
	// Statuses forced on the first calls, before delegating
	forced []sat.Status
}

func (solver *countingSolver) Solve(ctx context.Context, instance *sat.Instance, timeout time.Duration) (sat.Solution, error) {
	solver.mutex.Lock()
	call := solver.calls
	solver.calls++
	solver.mutex.Unlock()

	if call < len(solver.forced) {
		return sat.Solution{Status: solver.forced[call]}, nil
	}
	if solver.delegate == nil {
		return sat.Solution{Status: sat.Unknown}, nil
	}
	return solver.delegate.Solve(ctx, instance, timeout)
}

// failingSolver always returns an error
type failingSolver struct{}

func (failingSolver) Solve(context.Context, *sat.Instance, time.Duration) (sat.Solution, error) {
	return sat.Solution{}, assert.AnError
}

// eventRecorder keeps every emitted event
type eventRecorder struct {
	mutex  sync.Mutex
	events []Event
}

func (recorder *eventRecorder) Emit(event Event) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.events = append(recorder.events, event)
}

func eventsOf[T Event](recorder *eventRecorder) []T {
	return lo.FilterMap(recorder.events, func(event Event, _ int) (T, bool) {
		typed, ok := event.(T)
		return typed, ok
	})
}

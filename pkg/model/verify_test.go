package model

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func violationKinds(violations []Violation) []ViolationKind {
	return lo.Map(violations, func(violation Violation, _ int) ViolationKind { return violation.Kind })
}

func TestVerify(t *testing.T) {
	t.Run("Valid schedule", func(t *testing.T) {
		//** Arrange
		state := newTestState(t,
			Block{Id: 1, Class: 1, Lesson: "MATH", Duration: 2, Teachers: []uint64{1}, Placement: Slot{Day: 1, Hour: 1}},
			Block{Id: 2, Class: 1, Lesson: "MATH", Duration: 2, Teachers: []uint64{1}, Placement: Slot{Day: 2, Hour: 1}},
			Block{Id: 3, Class: 1, Lesson: "LANG", Duration: 1, Teachers: []uint64{2}, Rooms: []uint64{1}, Sibling: 9, Placement: Slot{Day: 1, Hour: 3}},
			Block{Id: 4, Class: 1, Lesson: "LANG", Duration: 1, Teachers: []uint64{3}, Sibling: 9, Placement: Slot{Day: 1, Hour: 3}},
		)

		//** Act
		violations := Verify(state)

		//** Assert
		assert.Empty(t, violations)
	})

	t.Run("Every invariant broken once", func(t *testing.T) {
		//** Arrange
		state := newTestState(t,
			Block{Id: 1, Class: 1, Lesson: "MATH", Duration: 2, Teachers: []uint64{1}, Placement: Slot{Day: 1, Hour: 1}},
			Block{Id: 2, Class: 2, Lesson: "PHYS", Duration: 1, Teachers: []uint64{1}, Placement: Slot{Day: 1, Hour: 2}},
			Block{Id: 3, Class: 1, Lesson: "MATH", Duration: 1, Teachers: []uint64{3}, Placement: Slot{Day: 1, Hour: 5}},
			Block{Id: 4, Class: 2, Lesson: "CHEM", Duration: 1, Teachers: []uint64{2}, Placement: Slot{Day: 1, Hour: 1}},
			Block{Id: 5, Class: 2, Lesson: "LANG", Duration: 1, Teachers: []uint64{3}, Sibling: 9, Placement: Slot{Day: 4, Hour: 1}},
			Block{Id: 6, Class: 1, Lesson: "LANG", Duration: 1, Teachers: []uint64{3}, Sibling: 9, Placement: Slot{Day: 4, Hour: 2}},
			Block{Id: 7, Class: 2, Lesson: "ART", Duration: 2, Teachers: []uint64{3}, Placement: Slot{Day: 4, Hour: 3}},
		)

		//** Act
		violations := Verify(state)

		//** Assert
		assert.Equal(t, []ViolationKind{ClosedSlot, ResourceClash, SiblingSplit, DuplicateLessonDay, DailyLimitExceeded}, violationKinds(violations))
		assert.Equal(t, []uint64{1, 2}, violations[1].Blocks)
		assert.Equal(t, []uint64{1, 3}, violations[3].Blocks)
	})
}

func TestVerifyLocked(t *testing.T) {
	//** Arrange
	before := newTestState(t,
		Block{Id: 1, Class: 1, Duration: 1, Teachers: []uint64{1}, Locked: true, Placement: Slot{Day: 1, Hour: 1}},
		Block{Id: 2, Class: 2, Duration: 1, Teachers: []uint64{2}, Placement: Slot{Day: 2, Hour: 1}},
	)
	after := before.WithPlacement(Placement{1: {Day: 1, Hour: 2}, 2: {Day: 3, Hour: 3}})

	//** Act
	violations := VerifyLocked(before, after)

	//** Assert
	assert.Len(t, violations, 1)
	assert.Equal(t, []uint64{1}, violations[0].Blocks)
	assert.Empty(t, VerifyLocked(before, before.Clone()))
}

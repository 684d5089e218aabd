package model

import (
	"cmp"
	"fmt"
	"slices"
)

type ViolationKind int

const (
	OutOfGrid ViolationKind = iota
	ClosedSlot
	ResourceClash
	SiblingSplit
	DuplicateLessonDay
	LockedMoved
	DailyLimitExceeded
)

func (kind ViolationKind) String() string {
	switch kind {
	case OutOfGrid:
		return "out-of-grid"
	case ClosedSlot:
		return "closed-slot"
	case ResourceClash:
		return "resource-clash"
	case SiblingSplit:
		return "sibling-split"
	case DuplicateLessonDay:
		return "duplicate-lesson-day"
	case LockedMoved:
		return "locked-moved"
	case DailyLimitExceeded:
		return "daily-limit-exceeded"
	default:
		return fmt.Sprintf("violation(%d)", int(kind))
	}
}

// Violation describes a single broken invariant and the blocks involved in it
type Violation struct {
	Kind    ViolationKind
	Blocks  []uint64
	Message string
}

func (violation Violation) String() string {
	return fmt.Sprintf("%v: %v", violation.Kind, violation.Message)
}

// Verify re-checks a schedule independently of whichever engine produced it and returns every
// violation found. Unplaced blocks are ignored, except for sibling groups which must agree.
func Verify(state *ScheduleState) []Violation {
	violations := make([]Violation, 0)

	//** Shape and administrative availability
	for _, block := range state.Blocks {
		if !block.Placed() {
			continue
		}
		if !state.InGrid(block, block.Placement) {
			violations = append(violations, Violation{
				Kind:    OutOfGrid,
				Blocks:  []uint64{block.Id},
				Message: fmt.Sprintf("block %d at %v does not fit %d consecutive hours within the day", block.Id, block.Placement, block.Duration),
			})
			continue
		}
		if block.Locked {
			// Locked blocks are placed by hand and may sit on closed slots
			continue
		}
		for _, resource := range state.ClosedResources(block, block.Placement) {
			violations = append(violations, Violation{
				Kind:    ClosedSlot,
				Blocks:  []uint64{block.Id},
				Message: fmt.Sprintf("block %d at %v uses %v while it is closed", block.Id, block.Placement, state.Name(resource)),
			})
		}
	}

	//** Resource exclusivity
	index := NewOccupancyIndex(state.Blocks)
	for _, pair := range index.Conflicts() {
		first, _ := index.Block(pair.First)
		second, _ := index.Block(pair.Second)
		violations = append(violations, Violation{
			Kind:    ResourceClash,
			Blocks:  []uint64{pair.First, pair.Second},
			Message: fmt.Sprintf("blocks %d at %v and %d at %v share a resource", first.Id, first.Placement, second.Id, second.Placement),
		})
	}

	//** Sibling groups
	groups := make(map[uint64][]Block)
	for _, block := range state.Blocks {
		if block.Sibling != 0 {
			groups[block.Sibling] = append(groups[block.Sibling], block)
		}
	}
	for group, members := range groups {
		for _, member := range members[1:] {
			if member.Placement != members[0].Placement {
				violations = append(violations, Violation{
					Kind:    SiblingSplit,
					Blocks:  blockIds(members),
					Message: fmt.Sprintf("sibling group %d is split: block %d at %v, block %d at %v", group, members[0].Id, members[0].Placement, member.Id, member.Placement),
				})
				break
			}
		}
	}

	//** Same lesson on the same day
	lessonDays := make(map[lessonDay][]uint64)
	units := make(map[lessonDay]map[UnitKey]bool)
	for _, block := range state.Blocks {
		if block.Placed() && block.Lesson != "" {
			key := lessonDay{Class: block.Class, Lesson: block.Lesson, Day: block.Placement.Day}
			lessonDays[key] = append(lessonDays[key], block.Id)
			if units[key] == nil {
				units[key] = make(map[UnitKey]bool)
			}
			units[key][block.UnitKey()] = true
		}
	}
	for key, ids := range lessonDays {
		if len(units[key]) > 1 {
			slices.Sort(ids)
			violations = append(violations, Violation{
				Kind:    DuplicateLessonDay,
				Blocks:  ids,
				Message: fmt.Sprintf("class %d has lesson %q %d times on day %d", key.Class, key.Lesson, len(units[key]), key.Day),
			})
		}
	}

	//** Teacher daily limit
	for teacherId, teacher := range state.Teachers {
		if teacher.MaxHoursPerDay <= 0 {
			continue
		}
		for day, hours := range TeacherDailyLoad(state, teacherId) {
			if hours > teacher.MaxHoursPerDay {
				violations = append(violations, Violation{
					Kind:    DailyLimitExceeded,
					Message: fmt.Sprintf("%v teaches %d hours on day %d, limit is %d", state.Name(Resource{Kind: TeacherResource, Id: teacherId}), hours, day, teacher.MaxHoursPerDay),
				})
			}
		}
	}

	slices.SortFunc(violations, func(a, b Violation) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Message, b.Message)
	})
	return violations
}

// VerifyLocked reports every locked block of before whose placement differs in after
func VerifyLocked(before, after *ScheduleState) []Violation {
	violations := make([]Violation, 0)
	for _, block := range before.Blocks {
		if !block.Locked {
			continue
		}
		moved, ok := after.Block(block.Id)
		if !ok || moved.Placement != block.Placement {
			violations = append(violations, Violation{
				Kind:    LockedMoved,
				Blocks:  []uint64{block.Id},
				Message: fmt.Sprintf("locked block %d moved from %v to %v", block.Id, block.Placement, moved.Placement),
			})
		}
	}
	return violations
}

// TeacherDailyLoad returns the number of placed hours the teacher gives on each day
func TeacherDailyLoad(state *ScheduleState, teacher uint64) map[int]int {
	load := make(map[int]int)
	for _, block := range state.Blocks {
		if block.Placed() && slices.Contains(block.Teachers, teacher) {
			load[block.Placement.Day] += block.Duration
		}
	}
	return load
}

type lessonDay struct {
	Class  uint64
	Lesson string
	Day    int
}

func blockIds(blocks []Block) []uint64 {
	ids := make([]uint64, 0, len(blocks))
	for _, block := range blocks {
		ids = append(ids, block.Id)
	}
	slices.Sort(ids)
	return ids
}

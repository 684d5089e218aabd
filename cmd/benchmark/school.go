package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/samber/lo"
)

// School describes a synthetic school. Every class takes every subject; a subject is taught by the
// same teacher to a run of consecutive classes.
type School struct {
	Name              string
	Days              int
	Hours             int
	Classes           int
	Subjects          int
	HoursPerSubject   int
	ClassesPerTeacher int
	Labs              int // Rooms shared by the first subject of every class
	ClosedSlots       int // Closed slots per teacher
	Seed              uint64
}

var schools = []School{
	{Name: "small", Days: 5, Hours: 6, Classes: 3, Subjects: 5, HoursPerSubject: 4, ClassesPerTeacher: 2, Labs: 1, ClosedSlots: 2, Seed: 1},
	{Name: "medium", Days: 5, Hours: 6, Classes: 8, Subjects: 6, HoursPerSubject: 4, ClassesPerTeacher: 3, Labs: 2, ClosedSlots: 3, Seed: 2},
	{Name: "large", Days: 5, Hours: 7, Classes: 16, Subjects: 7, HoursPerSubject: 4, ClassesPerTeacher: 4, Labs: 3, ClosedSlots: 4, Seed: 3},
}

// generate builds the unplaced snapshot of a school. Subject hours are split into one-hour blocks,
// except for a double lesson on even subjects.
func generate(school School) (*model.ScheduleState, error) {
	random := rand.New(rand.NewPCG(school.Seed, school.Seed))

	classes := lo.Times(school.Classes, func(i int) model.SchoolClass {
		return model.SchoolClass{Id: uint64(i + 1), Name: fmt.Sprintf("%d%c", i/4+1, 'A'+i%4)}
	})
	rooms := lo.Times(school.Labs, func(i int) model.Room {
		return model.Room{Id: uint64(i + 1), Name: fmt.Sprintf("Lab %d", i+1)}
	})

	teacherOf := func(class, subject int) uint64 {
		groups := (school.Classes + school.ClassesPerTeacher - 1) / school.ClassesPerTeacher
		return uint64(subject*groups + class/school.ClassesPerTeacher + 1)
	}

	blocks := make([]model.Block, 0)
	for class := range school.Classes {
		for subject := range school.Subjects {
			durations := lo.Times(school.HoursPerSubject, func(int) int { return 1 })
			if subject%2 == 0 && school.HoursPerSubject >= 2 {
				durations = append([]int{2}, durations[2:]...)
			}
			for _, duration := range durations {
				block := model.Block{
					Id:       uint64(len(blocks) + 1),
					Class:    uint64(class + 1),
					Lesson:   fmt.Sprintf("S%d", subject+1),
					Duration: duration,
					Teachers: []uint64{teacherOf(class, subject)},
				}
				if subject == 0 && school.Labs > 0 {
					block.Rooms = []uint64{uint64(class%school.Labs + 1)}
				}
				blocks = append(blocks, block)
			}
		}
	}

	teacherIds := lo.Uniq(lo.FlatMap(blocks, func(block model.Block, _ int) []uint64 { return block.Teachers }))
	teachers := lo.Map(teacherIds, func(id uint64, _ int) model.Teacher {
		availability := make(model.Availability)
		for range school.ClosedSlots {
			availability[model.Slot{Day: random.IntN(school.Days) + 1, Hour: random.IntN(school.Hours) + 1}] = model.Closed
		}
		return model.Teacher{Id: id, Name: fmt.Sprintf("Teacher %d", id), Availability: availability}
	})

	return model.NewScheduleState(model.Settings{MaxDays: school.Days, MaxHours: school.Hours}, blocks, teachers, classes, rooms)
}

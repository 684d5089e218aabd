package main

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/limaJavier/timetabler/pkg/engine"
	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/samber/lo"
)

var Days = map[int]string{
	1: "Monday",
	2: "Tuesday",
	3: "Wednesday",
	4: "Thursday",
	5: "Friday",
	6: "Saturday",
	7: "Sunday",
}

// lessonEntry is one hour of a class timetable
type lessonEntry struct {
	Day      string   `json:"day"`
	Hour     int      `json:"hour"`
	BlockId  uint64   `json:"block"`
	Lesson   string   `json:"lesson"`
	Teachers []string `json:"teachers"`
	Rooms    []string `json:"rooms,omitempty"`
}

// perClassTimetable groups the placed hours of every block by class name, ordered by day and hour
func perClassTimetable(state *model.ScheduleState) map[string][]lessonEntry {
	names := func(kind model.ResourceKind, ids []uint64) []string {
		return lo.Map(ids, func(id uint64, _ int) string { return displayName(state, model.Resource{Kind: kind, Id: id}) })
	}

	blocks := lo.Filter(state.Blocks, func(block model.Block, _ int) bool { return block.Placed() })
	slices.SortFunc(blocks, func(a, b model.Block) int {
		if dayComparison := cmp.Compare(a.Placement.Day, b.Placement.Day); dayComparison != 0 {
			return dayComparison
		}
		return cmp.Compare(a.Placement.Hour, b.Placement.Hour)
	})

	timetable := make(map[string][]lessonEntry)
	for _, block := range blocks {
		class := displayName(state, model.Resource{Kind: model.ClassResource, Id: block.Class})
		for _, slot := range block.Placement.Span(block.Duration) {
			day, ok := Days[slot.Day]
			if !ok {
				day = fmt.Sprintf("Day %d", slot.Day)
			}
			timetable[class] = append(timetable[class], lessonEntry{
				Day:      day,
				Hour:     slot.Hour,
				BlockId:  block.Id,
				Lesson:   block.Lesson,
				Teachers: names(model.TeacherResource, block.Teachers),
				Rooms:    names(model.RoomResource, block.Rooms),
			})
		}
	}
	return timetable
}

// displayName is the bare name of a resource, or its kind and id when it has none
func displayName(state *model.ScheduleState, resource model.Resource) string {
	var name string
	switch resource.Kind {
	case model.TeacherResource:
		name = state.Teachers[resource.Id].Name
	case model.ClassResource:
		name = state.Classes[resource.Id].Name
	case model.RoomResource:
		name = state.Rooms[resource.Id].Name
	}
	if name == "" {
		return resource.String()
	}
	return name
}

func printTimetable(state *model.ScheduleState, asJson bool) error {
	timetable := perClassTimetable(state)
	if asJson {
		timetableJson, err := json.Marshal(timetable)
		if err != nil {
			return fmt.Errorf("an error occurred while building output json: %w", err)
		}
		fmt.Println(string(timetableJson))
		return nil
	}

	classes := lo.Keys(timetable)
	slices.Sort(classes)
	for _, class := range classes {
		fmt.Printf("\n%s\n", class)
		for _, entry := range timetable[class] {
			fmt.Printf("  %-9s %2d  %-12s %s\n", entry.Day, entry.Hour, entry.Lesson, strings.Join(entry.Teachers, ", "))
		}
	}
	fmt.Println()
	return nil
}

func printStats(stats engine.Stats) {
	fmt.Printf("Run: %s (%v)\n", stats.RunId, stats.Mode)
	if stats.Profile != "" {
		fmt.Printf("Profile: %s after %d attempts\n", stats.Profile, stats.Attempts)
	}
	fmt.Printf("Variables: %v\n", stats.Variables)
	fmt.Printf("Constraints: %v\n", stats.Constraints)
	fmt.Printf("Placed: %d, unplaced: %d, moved: %d, cost: %d, elapsed: %v\n", stats.Placed, stats.Unplaced, stats.Moved, stats.Cost, stats.Elapsed)
}

// printFailure explains an engine error: its findings and the blocks that could not be placed
func printFailure(err error) {
	var engineErr *engine.Error
	if !errors.As(err, &engineErr) {
		return
	}

	fmt.Printf("%s: %s\n", engineErr.Kind, engineErr.Message)
	if engineErr.Reason != "" {
		fmt.Printf("Reason: %s (movable units: %d, variables: %d)\n", engineErr.Reason, engineErr.Movable, engineErr.Variables)
	}
	for _, finding := range engineErr.Findings {
		fmt.Printf("  - %v\n", finding)
	}
	for _, unplaced := range engineErr.Unplaceable {
		fmt.Printf("  unplaceable: block %d (class %d, %s, %dh)\n", unplaced.BlockId, unplaced.Class, unplaced.Lesson, unplaced.Duration)
	}
}

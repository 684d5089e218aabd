package model

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

type RawSettings struct {
	MaxDays  int
	MaxHours int
}

// RawResource is the serialized form shared by teachers, classes and rooms. Availability is a
// [day][hour] matrix where false marks a closed slot; missing rows and columns are open.
type RawResource struct {
	Id             uint64
	Name           string
	Availability   [][]bool
	MaxHoursPerDay int
}

type RawBlock struct {
	Id       uint64
	Class    uint64
	Lesson   string
	Duration int
	Teachers []uint64
	Rooms    []uint64
	Locked   bool
	Manual   bool
	Sibling  uint64
	Priority int
	Day      int
	Hour     int
}

type RawSnapshot struct {
	Settings RawSettings
	Teachers []RawResource
	Classes  []RawResource
	Rooms    []RawResource
	Blocks   []RawBlock
}

// SnapshotFromJson reads and validates a JSON snapshot
func SnapshotFromJson(file string) (*ScheduleState, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read snapshot file: %w", err)
	}
	return SnapshotFromBytes(bytes)
}

// SnapshotFromBytes decodes and validates a JSON snapshot held in memory
func SnapshotFromBytes(bytes []byte) (*ScheduleState, error) {
	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return nil, fmt.Errorf("invalid snapshot json: %w", err)
	}

	var rawSnapshot RawSnapshot
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &rawSnapshot,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(inputJson); err != nil {
		return nil, fmt.Errorf("cannot decode snapshot: %w", err)
	}
	return ProcessRawSnapshot(rawSnapshot)
}

// ProcessRawSnapshot turns the serialized snapshot into a validated ScheduleState
func ProcessRawSnapshot(raw RawSnapshot) (*ScheduleState, error) {
	settings := Settings{MaxDays: raw.Settings.MaxDays, MaxHours: raw.Settings.MaxHours}

	//** Resources
	availability := func(kind ResourceKind, resource RawResource) (Availability, error) {
		if len(resource.Availability) > settings.MaxDays {
			return nil, fmt.Errorf("%v %d has availability for %d days, grid has %d", kind, resource.Id, len(resource.Availability), settings.MaxDays)
		}
		marks := make(Availability)
		for day, hours := range resource.Availability {
			if len(hours) > settings.MaxHours {
				return nil, fmt.Errorf("%v %d has availability for %d hours on day %d, grid has %d", kind, resource.Id, len(hours), day+1, settings.MaxHours)
			}
			for hour, open := range hours {
				if !open {
					marks[Slot{Day: day + 1, Hour: hour + 1}] = Closed
				}
			}
		}
		return marks, nil
	}

	teachers := make([]Teacher, 0, len(raw.Teachers))
	for _, rawTeacher := range raw.Teachers {
		marks, err := availability(TeacherResource, rawTeacher)
		if err != nil {
			return nil, err
		} else if rawTeacher.MaxHoursPerDay < 0 {
			return nil, fmt.Errorf("teacher %d has a negative daily limit", rawTeacher.Id)
		}
		teachers = append(teachers, Teacher{Id: rawTeacher.Id, Name: rawTeacher.Name, Availability: marks, MaxHoursPerDay: rawTeacher.MaxHoursPerDay})
	}
	classes := make([]SchoolClass, 0, len(raw.Classes))
	for _, rawClass := range raw.Classes {
		marks, err := availability(ClassResource, rawClass)
		if err != nil {
			return nil, err
		}
		classes = append(classes, SchoolClass{Id: rawClass.Id, Name: rawClass.Name, Availability: marks})
	}
	rooms := make([]Room, 0, len(raw.Rooms))
	for _, rawRoom := range raw.Rooms {
		marks, err := availability(RoomResource, rawRoom)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, Room{Id: rawRoom.Id, Name: rawRoom.Name, Availability: marks})
	}

	//** Blocks
	blocks := lo.Map(raw.Blocks, func(rawBlock RawBlock, _ int) Block {
		return Block{
			Id:        rawBlock.Id,
			Class:     rawBlock.Class,
			Lesson:    rawBlock.Lesson,
			Duration:  rawBlock.Duration,
			Teachers:  rawBlock.Teachers,
			Rooms:     rawBlock.Rooms,
			Locked:    rawBlock.Locked,
			Manual:    rawBlock.Manual,
			Sibling:   rawBlock.Sibling,
			Priority:  rawBlock.Priority,
			Placement: Slot{Day: rawBlock.Day, Hour: rawBlock.Hour},
		}
	})
	for _, block := range blocks {
		if block.Priority < 0 {
			return nil, fmt.Errorf("block %d has a negative priority", block.Id)
		}
	}

	return NewScheduleState(settings, blocks, teachers, classes, rooms)
}

// ToRawSnapshot serializes a state back into its raw form
func ToRawSnapshot(state *ScheduleState) RawSnapshot {
	matrix := func(availability Availability) [][]bool {
		if len(availability) == 0 {
			return nil
		}
		rows := make([][]bool, state.MaxDays)
		for day := range state.MaxDays {
			rows[day] = make([]bool, state.MaxHours)
			for hour := range state.MaxHours {
				rows[day][hour] = availability.IsOpen(day+1, hour+1)
			}
		}
		return rows
	}

	raw := RawSnapshot{
		Settings: RawSettings{MaxDays: state.MaxDays, MaxHours: state.MaxHours},
		Teachers: make([]RawResource, 0, len(state.Teachers)),
		Classes:  make([]RawResource, 0, len(state.Classes)),
		Rooms:    make([]RawResource, 0, len(state.Rooms)),
	}
	for _, id := range sortedKeys(state.Teachers) {
		teacher := state.Teachers[id]
		raw.Teachers = append(raw.Teachers, RawResource{Id: id, Name: teacher.Name, Availability: matrix(teacher.Availability), MaxHoursPerDay: teacher.MaxHoursPerDay})
	}
	for _, id := range sortedKeys(state.Classes) {
		class := state.Classes[id]
		raw.Classes = append(raw.Classes, RawResource{Id: id, Name: class.Name, Availability: matrix(class.Availability)})
	}
	for _, id := range sortedKeys(state.Rooms) {
		room := state.Rooms[id]
		raw.Rooms = append(raw.Rooms, RawResource{Id: id, Name: room.Name, Availability: matrix(room.Availability)})
	}
	raw.Blocks = lo.Map(state.Blocks, func(block Block, _ int) RawBlock {
		return RawBlock{
			Id:       block.Id,
			Class:    block.Class,
			Lesson:   block.Lesson,
			Duration: block.Duration,
			Teachers: block.Teachers,
			Rooms:    block.Rooms,
			Locked:   block.Locked,
			Manual:   block.Manual,
			Sibling:  block.Sibling,
			Priority: block.Priority,
			Day:      block.Placement.Day,
			Hour:     block.Placement.Hour,
		}
	})
	return raw
}

func sortedKeys[V any](entries map[uint64]V) []uint64 {
	keys := lo.Keys(entries)
	slices.Sort(keys)
	return keys
}

package model

import "fmt"

// Slot is a (day, hour) coordinate of the weekly grid. Both coordinates are 1-based; the zero
// value stands for "unplaced".
type Slot struct {
	Day  int
	Hour int
}

// Unplaced is the placement of a block that has no slot.
var Unplaced = Slot{}

// Placed reports whether the slot denotes an actual position in the grid
func (slot Slot) Placed() bool {
	return slot.Day > 0 && slot.Hour > 0
}

// Span returns the duration consecutive hours starting at slot
func (slot Slot) Span(duration int) []Slot {
	hours := make([]Slot, 0, duration)
	for offset := range duration {
		hours = append(hours, Slot{Day: slot.Day, Hour: slot.Hour + offset})
	}
	return hours
}

// Overlaps reports whether [slot, slot+duration) and [other, other+otherDuration) intersect on the same day
func (slot Slot) Overlaps(duration int, other Slot, otherDuration int) bool {
	if !slot.Placed() || !other.Placed() || slot.Day != other.Day {
		return false
	}
	return slot.Hour < other.Hour+otherDuration && other.Hour < slot.Hour+duration
}

func (slot Slot) String() string {
	if !slot.Placed() {
		return "unplaced"
	}
	return fmt.Sprintf("d%d/h%d", slot.Day, slot.Hour)
}

// Mark is the administrative state of a single slot for a resource
type Mark int

const (
	Open Mark = iota
	Closed
)

// Availability is a per-slot Open/Closed map. Slots missing from the map are open.
type Availability map[Slot]Mark

// IsOpen reports whether the slot has not been administratively closed
func (availability Availability) IsOpen(day, hour int) bool {
	return availability[Slot{Day: day, Hour: hour}] != Closed
}

// Clone returns a deep copy of the availability map
func (availability Availability) Clone() Availability {
	if availability == nil {
		return nil
	}
	clone := make(Availability, len(availability))
	for slot, mark := range availability {
		clone[slot] = mark
	}
	return clone
}

// SlotStatus is the tri-state view of a resource's slot. Administrative closure takes precedence
// over occupancy: a closed slot stays closed even if a (locked) block has been placed on it.
type SlotStatus int

const (
	SlotOpen SlotStatus = iota
	SlotAdministrativelyClosed
	SlotOccupiedByPlacement
)

func (status SlotStatus) String() string {
	switch status {
	case SlotAdministrativelyClosed:
		return "administratively-closed"
	case SlotOccupiedByPlacement:
		return "occupied-by-placement"
	default:
		return "open"
	}
}

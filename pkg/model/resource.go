package model

import "fmt"

type ResourceKind int

const (
	TeacherResource ResourceKind = iota
	ClassResource
	RoomResource
)

func (kind ResourceKind) String() string {
	switch kind {
	case TeacherResource:
		return "teacher"
	case ClassResource:
		return "class"
	case RoomResource:
		return "room"
	default:
		return fmt.Sprintf("resource(%d)", int(kind))
	}
}

// Resource identifies anything that can be booked at most once per slot
type Resource struct {
	Kind ResourceKind
	Id   uint64
}

func (resource Resource) String() string {
	return fmt.Sprintf("%v#%d", resource.Kind, resource.Id)
}

type Teacher struct {
	Id             uint64
	Name           string
	Availability   Availability
	MaxHoursPerDay int // 0 means unlimited
}

type SchoolClass struct {
	Id           uint64
	Name         string
	Availability Availability
}

type Room struct {
	Id           uint64
	Name         string
	Availability Availability
}

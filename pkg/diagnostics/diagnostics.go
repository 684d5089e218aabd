package diagnostics

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/samber/lo"
)

type FindingKind int

const (
	Overload             FindingKind = iota // A resource needs more hours than it has open
	NoCandidates                            // A block has no slot where all its resources are open
	SiblingNoCommonSlot                     // Every member of a sibling group fits somewhere, but never at the same slot
	SplitDays                               // The blocks of a split lesson cannot be laid on distinct days
	SiblingResourceClash                    // Two members of a sibling group book the same teacher or room
	LockedClash                             // Two locked blocks book the same resource at the same time
)

func (kind FindingKind) String() string {
	switch kind {
	case Overload:
		return "overload"
	case NoCandidates:
		return "no-candidates"
	case SiblingNoCommonSlot:
		return "sibling-no-common-slot"
	case SplitDays:
		return "split-days"
	case SiblingResourceClash:
		return "sibling-resource-clash"
	case LockedClash:
		return "locked-clash"
	default:
		return fmt.Sprintf("finding(%d)", int(kind))
	}
}

// Finding is a single structural problem of a snapshot. Blocking findings prove that no complete
// schedule exists; the others are warnings.
type Finding struct {
	Kind      FindingKind
	Blocking  bool
	Blocks    []uint64
	Resources []model.Resource
	Load      int
	Capacity  int
	Message   string
}

func (finding Finding) String() string {
	return fmt.Sprintf("%v: %v", finding.Kind, finding.Message)
}

// Load compares the hours a resource must give with the hours it can give
type Load struct {
	Resource model.Resource
	Name     string
	Required int
	Capacity int
}

func (load Load) Overloaded() bool {
	return load.Required > load.Capacity
}

type Report struct {
	Findings []Finding
	Loads    []Load
}

// Blocking reports whether any finding proves the snapshot infeasible
func (report Report) Blocking() bool {
	return lo.SomeBy(report.Findings, func(finding Finding) bool { return finding.Blocking })
}

// BlockingFindings returns the findings that prove infeasibility
func (report Report) BlockingFindings() []Finding {
	return lo.Filter(report.Findings, func(finding Finding, _ int) bool { return finding.Blocking })
}

// Summary joins every finding message into a single line
func (report Report) Summary() string {
	return strings.Join(lo.Map(report.Findings, func(finding Finding, _ int) string { return finding.String() }), "; ")
}

// Analyze runs every structural check over the snapshot. It never builds a model and never
// modifies the state.
func Analyze(state *model.ScheduleState) Report {
	report := Report{
		Findings: make([]Finding, 0),
	}

	report.Loads = loads(state)
	for _, load := range report.Loads {
		if load.Overloaded() {
			report.Findings = append(report.Findings, Finding{
				Kind:      Overload,
				Blocking:  true,
				Resources: []model.Resource{load.Resource},
				Load:      load.Required,
				Capacity:  load.Capacity,
				Message:   fmt.Sprintf("%v needs %d hours but only %d are available", load.Name, load.Required, load.Capacity),
			})
		}
	}

	report.Findings = append(report.Findings, candidateFindings(state)...)
	report.Findings = append(report.Findings, splitFindings(state)...)
	report.Findings = append(report.Findings, siblingClashFindings(state)...)
	report.Findings = append(report.Findings, lockedClashFindings(state)...)

	slices.SortStableFunc(report.Findings, func(a, b Finding) int { return cmp.Compare(a.Kind, b.Kind) })
	return report
}

//** Load versus capacity

func loads(state *model.ScheduleState) []Load {
	// Per resource, every placement unit counts once with its longest member
	required := make(map[model.Resource]map[model.UnitKey]int)
	for _, block := range state.Blocks {
		for _, resource := range block.Resources() {
			if required[resource] == nil {
				required[resource] = make(map[model.UnitKey]int)
			}
			key := block.UnitKey()
			required[resource][key] = max(required[resource][key], block.Duration)
		}
	}

	resources := make([]model.Resource, 0, len(state.Teachers)+len(state.Classes)+len(state.Rooms))
	for _, id := range sortedIds(state.Teachers) {
		resources = append(resources, model.Resource{Kind: model.TeacherResource, Id: id})
	}
	for _, id := range sortedIds(state.Classes) {
		resources = append(resources, model.Resource{Kind: model.ClassResource, Id: id})
	}
	for _, id := range sortedIds(state.Rooms) {
		resources = append(resources, model.Resource{Kind: model.RoomResource, Id: id})
	}

	loads := make([]Load, 0, len(resources))
	for _, resource := range resources {
		load := Load{
			Resource: resource,
			Name:     state.Name(resource),
			Capacity: Capacity(state, resource),
		}
		for _, hours := range required[resource] {
			load.Required += hours
		}
		loads = append(loads, load)
	}
	return loads
}

// Capacity counts the hours a resource can give in a week: its open slots together with the slots
// held by its own locked blocks, capped per day by the teacher's daily limit
func Capacity(state *model.ScheduleState, resource model.Resource) int {
	held := make(map[model.Slot]bool)
	for _, block := range state.Blocks {
		if !block.Locked || !block.Placed() || !slices.Contains(block.Resources(), resource) {
			continue
		}
		for _, slot := range block.Placement.Span(block.Duration) {
			held[slot] = true
		}
	}

	limit := 0
	if resource.Kind == model.TeacherResource {
		limit = state.Teachers[resource.Id].MaxHoursPerDay
	}

	capacity := 0
	for day := 1; day <= state.MaxDays; day++ {
		daily := 0
		for hour := 1; hour <= state.MaxHours; hour++ {
			if state.IsOpen(resource, day, hour) || held[model.Slot{Day: day, Hour: hour}] {
				daily++
			}
		}
		if limit > 0 {
			daily = min(daily, limit)
		}
		capacity += daily
	}
	return capacity
}

//** Static candidates

func candidateFindings(state *model.ScheduleState) []Finding {
	findings := make([]Finding, 0)
	for _, unit := range state.Units() {
		if unit.Pinned() || len(state.Candidates(unit.Members...)) > 0 {
			continue
		}

		stranded := lo.Filter(unit.Members, func(member model.Block, _ int) bool { return len(state.Candidates(member)) == 0 })
		if len(stranded) == 0 {
			findings = append(findings, Finding{
				Kind:     SiblingNoCommonSlot,
				Blocking: true,
				Blocks:   unit.Ids(),
				Message:  fmt.Sprintf("sibling group %d has no slot where all of blocks %v are available", unit.Key.Id, unit.Ids()),
			})
			continue
		}
		for _, block := range stranded {
			closed := BlockingResources(state, block)
			findings = append(findings, Finding{
				Kind:      NoCandidates,
				Blocking:  true,
				Blocks:    []uint64{block.Id},
				Resources: closed,
				Message: fmt.Sprintf("block %d (%v) has no available slot: closed by %v", block.Id, describe(state, block),
					strings.Join(lo.Map(closed, func(resource model.Resource, _ int) string { return state.Name(resource) }), ", ")),
			})
		}
	}
	return findings
}

// BlockingResources names the resources that keep a block out of the grid: those that on their own
// leave no room for the block, or, when no single one does, every resource with a closed slot
func BlockingResources(state *model.ScheduleState, block model.Block) []model.Resource {
	resources := block.Resources()
	fitsAlone := func(resource model.Resource) bool {
		for day := 1; day <= state.MaxDays; day++ {
			for hour := 1; hour+block.Duration-1 <= state.MaxHours; hour++ {
				if lo.EveryBy(model.Slot{Day: day, Hour: hour}.Span(block.Duration), func(slot model.Slot) bool {
					return state.IsOpen(resource, slot.Day, slot.Hour)
				}) {
					return true
				}
			}
		}
		return false
	}

	blocking := lo.Filter(resources, func(resource model.Resource, _ int) bool { return !fitsAlone(resource) })
	if len(blocking) > 0 {
		return blocking
	}
	return lo.Filter(resources, func(resource model.Resource, _ int) bool {
		availability, _ := state.Availability(resource)
		return lo.SomeBy(lo.Values(availability), func(mark model.Mark) bool { return mark == model.Closed })
	})
}

//** Split lessons

type classLesson struct {
	class  uint64
	lesson string
}

func splitFindings(state *model.ScheduleState) []Finding {
	lessons := make(map[classLesson][]model.Unit)
	for _, unit := range state.Units() {
		seen := make(map[classLesson]bool)
		for _, member := range unit.Members {
			key := classLesson{class: member.Class, lesson: member.Lesson}
			if member.Lesson == "" || seen[key] {
				continue
			}
			seen[key] = true
			lessons[key] = append(lessons[key], unit)
		}
	}

	keys := lo.Keys(lessons)
	slices.SortFunc(keys, func(a, b classLesson) int {
		if c := cmp.Compare(a.class, b.class); c != 0 {
			return c
		}
		return cmp.Compare(a.lesson, b.lesson)
	})

	findings := make([]Finding, 0)
	for _, key := range keys {
		units := lessons[key]
		if len(units) < 2 {
			continue
		}

		days := UsableDays(state, units)
		matched := matchUnitsToDays(units, days)
		if matched == len(units) {
			continue
		}

		usable := lo.Uniq(lo.Flatten(lo.Values(days)))
		blocks := lo.Uniq(lo.FlatMap(units, func(unit model.Unit, _ int) []uint64 { return unit.Ids() }))
		slices.Sort(blocks)
		findings = append(findings, Finding{
			Kind:      SplitDays,
			Blocking:  true,
			Blocks:    blocks,
			Resources: []model.Resource{{Kind: model.ClassResource, Id: key.class}},
			Load:      len(units),
			Capacity:  len(usable),
			Message: fmt.Sprintf("lesson %q of %v is split into %d blocks but only %d can be laid on distinct days (%d usable days)",
				key.lesson, state.Name(model.Resource{Kind: model.ClassResource, Id: key.class}), len(units), matched, len(usable)),
		})
	}
	return findings
}

// UsableDays returns, for each unit (by position), the days on which it has a static candidate.
// A pinned unit can only use the day it is locked on.
func UsableDays(state *model.ScheduleState, units []model.Unit) map[int][]int {
	days := make(map[int][]int, len(units))
	for i, unit := range units {
		if anchor, ok := unit.Anchor(); ok {
			days[i] = []int{anchor.Day}
			continue
		}
		days[i] = lo.Uniq(lo.Map(state.Candidates(unit.Members...), func(slot model.Slot, _ int) int { return slot.Day }))
	}
	return days
}

// matchUnitsToDays returns the size of a maximum matching of units onto distinct days
func matchUnitsToDays(units []model.Unit, days map[int][]int) int {
	allDays := lo.Uniq(lo.Flatten(lo.Values(days)))
	if len(allDays) == 0 {
		return 0
	}
	slices.Sort(allDays)

	neighbors := func(unitAny any, dayAny any) (bool, error) {
		return slices.Contains(days[unitAny.(int)], dayAny.(int)), nil
	}

	unitsAny := lo.Map(units, func(_ model.Unit, i int) any { return i })
	daysAny := lo.Map(allDays, func(day int, _ int) any { return day })

	graph, err := bipartitegraph.NewBipartiteGraph(unitsAny, daysAny, neighbors)
	if err != nil {
		return 0
	}
	return len(graph.LargestMatching())
}

//** Sibling groups

func siblingClashFindings(state *model.ScheduleState) []Finding {
	findings := make([]Finding, 0)
	for _, unit := range state.Units() {
		if !unit.Key.Group {
			continue
		}
		for i := range len(unit.Members) - 1 {
			for j := i + 1; j < len(unit.Members); j++ {
				a, b := unit.Members[i], unit.Members[j]
				shared := append(lo.Intersect(a.Teachers, b.Teachers), lo.Intersect(a.Rooms, b.Rooms)...)
				if len(shared) == 0 {
					continue
				}
				findings = append(findings, Finding{
					Kind:    SiblingResourceClash,
					Blocks:  []uint64{a.Id, b.Id},
					Message: fmt.Sprintf("sibling blocks %d and %d of group %d share a teacher or a room", a.Id, b.Id, unit.Key.Id),
				})
			}
		}
	}
	return findings
}

func lockedClashFindings(state *model.ScheduleState) []Finding {
	locked := lo.Filter(state.Blocks, func(block model.Block, _ int) bool { return block.Locked && block.Placed() })
	index := model.NewOccupancyIndex(locked)
	return lo.Map(index.Conflicts(), func(pair model.ConflictPair, _ int) Finding {
		return Finding{
			Kind:     LockedClash,
			Blocking: true,
			Blocks:   []uint64{pair.First, pair.Second},
			Message:  fmt.Sprintf("locked blocks %d and %d overlap on a shared resource", pair.First, pair.Second),
		}
	})
}

func describe(state *model.ScheduleState, block model.Block) string {
	class := state.Name(model.Resource{Kind: model.ClassResource, Id: block.Class})
	if block.Lesson == "" {
		return class
	}
	return fmt.Sprintf("%v, lesson %q", class, block.Lesson)
}

func sortedIds[V any](entries map[uint64]V) []uint64 {
	ids := lo.Keys(entries)
	slices.Sort(ids)
	return ids
}

package engine

import (
	"cmp"
	"slices"

	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/limaJavier/timetabler/pkg/sat"
	"github.com/samber/lo"
)

type builderConfig struct {
	mode             Mode
	weights          Weights
	gapThreshold     int
	lowLoadHours     int
	condenseMaxLoad  int
	unplacedPenalty  int
	stayPenalty      int
	duplicatePenalty int
}

type teacherDayKey struct {
	teacher uint64
	day     int
}

// teacherDay holds the auxiliary variables describing one teacher's day. Slices are indexed by
// hour-1; a zero entry means the variable was not needed.
type teacherDay struct {
	key       teacherDayKey
	covering  map[int][]int // Hour -> decision variables booking the teacher at that hour
	occupied  []int
	before    []int // Worked at this hour or earlier
	after     []int // Works at this hour or later
	gaps      []int
	adjacent  []int // Works at this hour and the next one
	works     int
	single    int
	large     int
	condensed bool
	amplified bool
}

// lessonDayGroup gathers the decision variables that would put a class+lesson on one day
type lessonDayGroup struct {
	key       classLesson
	day       int
	variables []int
	duplicate int // Soft indicator, 0 when the rule is hard
}

// modelBuilder turns placement units into a pseudo-boolean instance. Every variable is allocated
// up front so that constraint families can be generated concurrently.
type modelBuilder struct {
	state    *model.ScheduleState
	units    []*unit
	indexer  indexer
	config   builderConfig
	instance *sat.Instance

	placed       []int // Best-effort placement indicator of every unit
	keyVariables map[model.OccupancyKey][]int
	teacherLoads map[teacherDayKey]map[int]int // Decision variable -> hours it books for the teacher that day
	teacherDays  []*teacherDay
	lessonDays   []*lessonDayGroup
}

func newModelBuilder(state *model.ScheduleState, units []*unit, config builderConfig) *modelBuilder {
	builder := &modelBuilder{
		state:        state,
		units:        units,
		indexer:      newIndexer(units),
		config:       config,
		instance:     sat.NewInstance(),
		keyVariables: make(map[model.OccupancyKey][]int),
		teacherLoads: make(map[teacherDayKey]map[int]int),
	}

	//** Allocate variables
	builder.instance.NewVariables(builder.indexer.Variables())
	if config.mode == BestEffort {
		builder.placed = builder.instance.NewVariables(len(units))
	}
	builder.indexFootprints()
	if config.mode != Edit {
		builder.layoutTeacherDays()
	}
	builder.layoutLessonDays()

	return builder
}

// variables returns the decision variables of a unit
func (builder *modelBuilder) variables(u int) []int {
	return lo.Map(builder.units[u].candidates, func(_ model.Slot, c int) int { return builder.indexer.Index(u, c) })
}

// fixed reports whether a variable belongs to a unit that stays where it is during an edit
func (builder *modelBuilder) fixed(variable int) bool {
	u, _ := builder.indexer.Attributes(variable)
	return builder.config.mode == Edit && builder.units[u].pinned && !builder.units[u].source
}

func (builder *modelBuilder) indexFootprints() {
	for u, unit := range builder.units {
		for c, slot := range unit.candidates {
			variable := builder.indexer.Index(u, c)
			for _, key := range unit.footprint(slot) {
				builder.keyVariables[key] = append(builder.keyVariables[key], variable)
			}
			for teacher, hours := range unit.teacherHours(slot) {
				key := teacherDayKey{teacher: teacher, day: slot.Day}
				if builder.teacherLoads[key] == nil {
					builder.teacherLoads[key] = make(map[int]int)
				}
				builder.teacherLoads[key][variable] = len(hours)
			}
		}
	}
}

func (builder *modelBuilder) layoutTeacherDays() {
	weights := builder.config.weights
	needGaps := weights.Gap > 0 || weights.Fragmentation > 0
	needAdjacency := weights.Adjacency > 0
	needSingle := weights.SingleLesson > 0
	needCondensation := weights.Condensation > 0
	if !needGaps && !needAdjacency && !needSingle && !needCondensation {
		return
	}

	hours := builder.state.MaxHours
	condensed := builder.condensedDays()
	amplified := builder.amplifiedTeachers()

	covering := make(map[teacherDayKey]map[int][]int)
	for key := range builder.teacherLoads {
		covering[key] = make(map[int][]int)
	}
	for occupancy, variables := range builder.keyVariables {
		if occupancy.Kind != model.TeacherResource {
			continue
		}
		key := teacherDayKey{teacher: occupancy.Id, day: occupancy.Day}
		covering[key][occupancy.Hour] = slices.Sorted(slices.Values(variables))
	}

	keys := lo.Keys(covering)
	slices.SortFunc(keys, compareTeacherDays)
	for _, key := range keys {
		day := &teacherDay{
			key:       key,
			covering:  covering[key],
			occupied:  builder.instance.NewVariables(hours),
			condensed: needCondensation && condensed[key],
			amplified: amplified[key.teacher],
		}
		if needGaps {
			day.before = builder.instance.NewVariables(hours)
			day.after = builder.instance.NewVariables(hours)
			day.gaps = make([]int, hours)
			for h := 2; h < hours; h++ {
				day.gaps[h-1] = builder.instance.NewVariable()
			}
			if weights.Fragmentation > 0 && hours-2 > builder.config.gapThreshold {
				day.large = builder.instance.NewVariable()
			}
		}
		if needSingle || day.condensed {
			day.works = builder.instance.NewVariable()
		}
		if needSingle {
			day.single = builder.instance.NewVariable()
		}
		if needAdjacency && hours > 1 {
			day.adjacent = builder.instance.NewVariables(hours - 1)
		}
		builder.teacherDays = append(builder.teacherDays, day)
	}
}

func (builder *modelBuilder) layoutLessonDays() {
	type groupKey struct {
		lesson classLesson
		day    int
	}
	groups := make(map[groupKey]*lessonDayGroup)
	units := make(map[groupKey]map[int]bool)
	for u, unit := range builder.units {
		for _, lesson := range unit.lessons() {
			for c, slot := range unit.candidates {
				key := groupKey{lesson: lesson, day: slot.Day}
				if groups[key] == nil {
					groups[key] = &lessonDayGroup{key: lesson, day: slot.Day}
					units[key] = make(map[int]bool)
				}
				groups[key].variables = append(groups[key].variables, builder.indexer.Index(u, c))
				units[key][u] = true
			}
		}
	}

	keys := lo.Keys(groups)
	slices.SortFunc(keys, func(a, b groupKey) int {
		if c := cmp.Compare(a.lesson.class, b.lesson.class); c != 0 {
			return c
		} else if c := cmp.Compare(a.lesson.lesson, b.lesson.lesson); c != 0 {
			return c
		}
		return cmp.Compare(a.day, b.day)
	})
	for _, key := range keys {
		group := groups[key]
		if len(units[key]) < 2 {
			continue
		}
		if builder.config.mode == Edit {
			if lo.EveryBy(group.variables, builder.fixed) {
				continue
			}
			group.duplicate = builder.instance.NewVariable()
		}
		builder.lessonDays = append(builder.lessonDays, group)
	}
}

// condensedDays picks, for lightly loaded teachers, the days they should preferably keep free:
// days without any locked lesson, fewest open hours first, as many as the teacher can spare
func (builder *modelBuilder) condensedDays() map[teacherDayKey]bool {
	condensed := make(map[teacherDayKey]bool)
	state := builder.state
	for _, teacherId := range sortedIds(state.Teachers) {
		load := builder.teacherWeeklyLoad(teacherId)
		if load == 0 || load > builder.config.condenseMaxLoad {
			continue
		}

		resource := model.Resource{Kind: model.TeacherResource, Id: teacherId}
		openHours := make(map[int]int)
		for day := 1; day <= state.MaxDays; day++ {
			for hour := 1; hour <= state.MaxHours; hour++ {
				if state.IsOpen(resource, day, hour) {
					openHours[day]++
				}
			}
		}
		available := lo.Filter(lo.Keys(openHours), func(day int, _ int) bool { return openHours[day] > 0 })

		perDay := state.MaxHours
		if limit := state.Teachers[teacherId].MaxHoursPerDay; limit > 0 {
			perDay = min(perDay, limit)
		}
		needed := (load + perDay - 1) / perDay
		spare := len(available) - needed
		if spare <= 0 {
			continue
		}

		lockedDays := make(map[int]bool)
		for _, unit := range builder.units {
			if unit.pinned && unit.hasTeacher(teacherId) && lo.SomeBy(unit.members, func(member model.Block) bool { return member.Locked }) {
				lockedDays[unit.candidates[0].Day] = true
			}
		}
		days := lo.Filter(available, func(day int, _ int) bool { return !lockedDays[day] })
		slices.SortFunc(days, func(a, b int) int {
			if c := cmp.Compare(openHours[a], openHours[b]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		for _, day := range days[:min(spare, len(days))] {
			condensed[teacherDayKey{teacher: teacherId, day: day}] = true
		}
	}
	return condensed
}

// amplifiedTeachers returns the teachers whose average daily load is low enough for their
// adjacency reward to double
func (builder *modelBuilder) amplifiedTeachers() map[uint64]bool {
	amplified := make(map[uint64]bool)
	state := builder.state
	for teacherId := range state.Teachers {
		load := builder.teacherWeeklyLoad(teacherId)
		resource := model.Resource{Kind: model.TeacherResource, Id: teacherId}
		days := 0
		for day := 1; day <= state.MaxDays; day++ {
			if lo.SomeBy(lo.RangeFrom(1, state.MaxHours), func(hour int) bool { return state.IsOpen(resource, day, hour) }) {
				days++
			}
		}
		if load > 0 && load < builder.config.lowLoadHours*days {
			amplified[teacherId] = true
		}
	}
	return amplified
}

func (builder *modelBuilder) teacherWeeklyLoad(teacher uint64) int {
	load := 0
	for _, unit := range builder.units {
		hours := 0
		for _, member := range unit.members {
			if slices.Contains(member.Teachers, teacher) {
				hours = max(hours, member.Duration)
			}
		}
		load += hours
	}
	return load
}

//** Generation

// family is the output of one constraint generator
type family struct {
	index       int
	constraints []sat.Constraint
	cost        []sat.Term
}

func (builder *modelBuilder) build() *sat.Instance {
	generators := []func(builder *modelBuilder) family{
		placementConstraints,
		exclusivityConstraints,
		lessonDayConstraints,
		dailyLimitConstraints,
		teacherDayConstraints,
		morningCost,
		stayCost,
	}

	families := make([]family, len(generators))
	familiesChannel := make(chan family) // Channel to collect generated families

	// Execute generators on different goroutines, every one of them only reads the builder
	for i, generator := range generators {
		go func(i int, generator func(builder *modelBuilder) family) {
			generated := generator(builder)
			generated.index = i
			familiesChannel <- generated
		}(i, generator)
	}

	// Collect generated families
	for range generators {
		generated := <-familiesChannel
		families[generated.index] = generated
	}
	close(familiesChannel)

	// Families are appended in a fixed order so that equal inputs give equal instances
	for _, generated := range families {
		builder.instance.Add(generated.constraints...)
		for _, term := range generated.cost {
			builder.instance.Minimize(term.Literal, term.Weight)
		}
	}
	return builder.instance
}

// decode returns the chosen candidate of every unit, -1 for units left unplaced
func (builder *modelBuilder) decode(solution sat.Solution) []int {
	chosen := make([]int, len(builder.units))
	for u := range builder.units {
		chosen[u] = slices.IndexFunc(builder.variables(u), solution.Value)
	}
	return chosen
}

func placementConstraints(builder *modelBuilder) family {
	generated := family{}
	for u, unit := range builder.units {
		variables := builder.variables(u)
		if builder.config.mode == BestEffort {
			placed := builder.placed[u]
			if unit.pinned {
				generated.constraints = append(generated.constraints, sat.Clause(variables[0]), sat.Clause(placed))
				continue
			}
			// sum(candidates) = placed
			generated.constraints = append(generated.constraints, sat.Equal(append(variables, placed), append(ones(len(variables)), -1), 0)...)
			generated.cost = append(generated.cost, sat.Term{Literal: -placed, Weight: builder.config.unplacedPenalty * unit.duration()})
			continue
		}

		if len(variables) == 0 {
			// A unit without candidates makes the instance infeasible
			generated.constraints = append(generated.constraints, sat.Constraint{AtLeast: 1})
		} else if unit.pinned {
			generated.constraints = append(generated.constraints, sat.Clause(variables[0]))
		} else {
			generated.constraints = append(generated.constraints, sat.Exactly(variables, 1)...)
		}
	}
	return generated
}

func exclusivityConstraints(builder *modelBuilder) family {
	generated := family{}
	keys := lo.Keys(builder.keyVariables)
	slices.SortFunc(keys, compareOccupancyKeys)
	for _, key := range keys {
		variables := builder.keyVariables[key]
		units := lo.Uniq(lo.Map(variables, func(variable int, _ int) int {
			u, _ := builder.indexer.Attributes(variable)
			return u
		}))
		if len(units) < 2 {
			continue
		}

		if builder.config.mode != Edit {
			generated.constraints = append(generated.constraints, sat.AtMost(variables, 1))
			continue
		}

		// During an edit, clashes between blocks that stay put are left alone: a single fixed
		// occupant is enough to forbid every moving candidate on the key
		fixed, moving := lo.FilterReject(variables, func(variable int, _ int) bool { return builder.fixed(variable) })
		if len(moving) == 0 {
			continue
		}
		if len(fixed) > 0 {
			moving = append(moving, fixed[0])
		}
		generated.constraints = append(generated.constraints, sat.AtMost(moving, 1))
	}
	return generated
}

func lessonDayConstraints(builder *modelBuilder) family {
	generated := family{}
	for _, group := range builder.lessonDays {
		if group.duplicate == 0 {
			generated.constraints = append(generated.constraints, sat.AtMost(group.variables, 1))
			continue
		}
		// sum(variables) + M * ~duplicate <= 1 + M
		excess := len(group.variables) - 1
		generated.constraints = append(generated.constraints,
			sat.LessOrEqual(append(slices.Clone(group.variables), -group.duplicate), append(ones(len(group.variables)), excess), 1+excess))
		generated.cost = append(generated.cost, sat.Term{Literal: group.duplicate, Weight: builder.config.duplicatePenalty})
	}
	return generated
}

func dailyLimitConstraints(builder *modelBuilder) family {
	generated := family{}
	keys := lo.Keys(builder.teacherLoads)
	slices.SortFunc(keys, compareTeacherDays)
	for _, key := range keys {
		limit := builder.state.Teachers[key.teacher].MaxHoursPerDay
		if limit <= 0 {
			continue
		}
		loads := builder.teacherLoads[key]
		variables := lo.Keys(loads)
		slices.Sort(variables)
		weights := lo.Map(variables, func(variable int, _ int) int { return loads[variable] })

		if builder.config.mode == Edit {
			if lo.EveryBy(variables, builder.fixed) {
				continue
			}
			// Never make an existing excess worse
			fixedLoad := lo.SumBy(lo.Filter(variables, func(variable int, _ int) bool { return builder.fixed(variable) }), func(variable int) int { return loads[variable] })
			limit = max(limit, fixedLoad)
		}
		generated.constraints = append(generated.constraints, sat.LessOrEqual(variables, weights, limit))
	}
	return generated
}

func morningCost(builder *modelBuilder) family {
	generated := family{}
	weight := builder.config.weights.Morning
	if builder.config.mode == Edit || weight == 0 {
		return generated
	}
	for u, unit := range builder.units {
		priority := unit.priority()
		if unit.pinned || priority == 0 {
			continue
		}
		for c, slot := range unit.candidates {
			generated.cost = append(generated.cost, sat.Term{Literal: builder.indexer.Index(u, c), Weight: slot.Hour * priority * weight})
		}
	}
	return generated
}

func stayCost(builder *modelBuilder) family {
	generated := family{}
	for u, unit := range builder.units {
		weight := 0
		if builder.config.mode == Edit && !unit.pinned {
			weight = builder.config.stayPenalty
		} else if builder.config.mode != Edit && unit.stay {
			weight = builder.config.weights.Stay
		}
		c, ok := unit.currentCandidate()
		if weight == 0 || !ok {
			continue
		}
		generated.cost = append(generated.cost, sat.Term{Literal: -builder.indexer.Index(u, c), Weight: weight})
	}
	return generated
}

func ones(n int) []int {
	return lo.Times(n, func(_ int) int { return 1 })
}

func sortedIds[V any](entries map[uint64]V) []uint64 {
	ids := lo.Keys(entries)
	slices.Sort(ids)
	return ids
}

func compareTeacherDays(a, b teacherDayKey) int {
	if c := cmp.Compare(a.teacher, b.teacher); c != 0 {
		return c
	}
	return cmp.Compare(a.day, b.day)
}

func compareOccupancyKeys(a, b model.OccupancyKey) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	} else if c := cmp.Compare(a.Id, b.Id); c != 0 {
		return c
	} else if c := cmp.Compare(a.Day, b.Day); c != 0 {
		return c
	}
	return cmp.Compare(a.Hour, b.Hour)
}

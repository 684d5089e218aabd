package engine

import (
	"slices"

	"github.com/limaJavier/timetabler/pkg/sat"
)

// teacherDayConstraints links the auxiliary variables of every teacher-day to the decision
// variables and prices them
func teacherDayConstraints(builder *modelBuilder) family {
	generated := family{}
	weights := builder.config.weights
	hours := builder.state.MaxHours

	for _, day := range builder.teacherDays {
		//** Occupancy: occupied[h] <=> some covering variable is selected
		for h := 1; h <= hours; h++ {
			occupied := day.occupied[h-1]
			covering := day.covering[h]
			for _, variable := range covering {
				generated.constraints = append(generated.constraints, sat.Implies(variable, occupied))
			}
			generated.constraints = append(generated.constraints, sat.Clause(append([]int{-occupied}, covering...)...))
		}

		//** Gaps
		if day.before != nil {
			for h := 1; h <= hours; h++ {
				generated.constraints = append(generated.constraints,
					sat.Implies(day.occupied[h-1], day.before[h-1]),
					sat.Implies(day.occupied[h-1], day.after[h-1]),
				)
				if h > 1 {
					generated.constraints = append(generated.constraints, sat.Implies(day.before[h-2], day.before[h-1]))
				}
				if h < hours {
					generated.constraints = append(generated.constraints, sat.Implies(day.after[h], day.after[h-1]))
				}
			}

			gaps := make([]int, 0, hours)
			for h := 2; h < hours; h++ {
				gap := day.gaps[h-1]
				gaps = append(gaps, gap)
				// Worked earlier and later but not now: idle hour
				generated.constraints = append(generated.constraints, sat.Clause(-day.before[h-2], -day.after[h], day.occupied[h-1], gap))
				if weights.Gap > 0 {
					generated.cost = append(generated.cost, sat.Term{Literal: gap, Weight: weights.Gap})
				}
			}

			if day.large != 0 {
				// sum(gaps) + M * ~large <= threshold + M
				m := len(gaps)
				generated.constraints = append(generated.constraints,
					sat.LessOrEqual(append(gaps, -day.large), append(ones(m), m), builder.config.gapThreshold+m))
				generated.cost = append(generated.cost, sat.Term{Literal: day.large, Weight: weights.Fragmentation})
			}
		}

		//** Working day
		if day.works != 0 {
			for _, occupied := range day.occupied {
				generated.constraints = append(generated.constraints, sat.Implies(occupied, day.works))
			}
		}
		if day.single != 0 {
			// sum(occupied) + 2 * single + 2 * ~works >= 2
			generated.constraints = append(generated.constraints,
				sat.GreaterOrEqual(append(slices.Clone(day.occupied), day.single, -day.works), append(ones(hours), 2, 2), 2))
			generated.cost = append(generated.cost, sat.Term{Literal: day.single, Weight: weights.SingleLesson})
		}
		if day.condensed && weights.Condensation > 0 {
			generated.cost = append(generated.cost, sat.Term{Literal: day.works, Weight: weights.Condensation})
		}

		//** Adjacency
		reward := weights.Adjacency
		if day.amplified {
			reward *= 2
		}
		for h, adjacent := range day.adjacent {
			generated.constraints = append(generated.constraints,
				sat.Implies(adjacent, day.occupied[h]),
				sat.Implies(adjacent, day.occupied[h+1]),
			)
			generated.cost = append(generated.cost, sat.Term{Literal: adjacent, Weight: -reward})
		}
	}
	return generated
}

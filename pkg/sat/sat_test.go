package sat

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGreaterOrEqual(t *testing.T) {
	t.Run("At most normalizes onto complements", func(t *testing.T) {
		constraint := AtMost([]int{1, 2}, 1)

		assert.Equal(t, []int{-1, -2}, constraint.Literals)
		assert.Equal(t, []int{1, 1}, constraint.Weights)
		assert.Equal(t, 1, constraint.AtLeast)
	})

	t.Run("Repeated and opposite literals are merged", func(t *testing.T) {
		constraint := GreaterOrEqual([]int{1, 1, 2, -2}, []int{2, 1, -1, 3}, 2)

		// 3x1 - 4x2 + 3 >= 2  <=>  3x1 + 4(~x2) >= 3
		assert.Equal(t, []int{1, -2}, constraint.Literals)
		assert.Equal(t, []int{3, 3}, constraint.Weights)
		assert.Equal(t, 3, constraint.AtLeast)
	})

	t.Run("Trivial and impossible constraints", func(t *testing.T) {
		assert.True(t, AtMost([]int{1, 2, 3}, 3).Trivial())
		assert.True(t, AtLeast([]int{1, 2}, 3).Impossible())
	})
}

func TestInstance(t *testing.T) {
	//** Arrange
	instance := NewInstance()
	variables := instance.NewVariables(3)
	instance.Add(Exactly(variables, 1)...)
	instance.Minimize(variables[0], 5)
	instance.Minimize(variables[1], -2)

	t.Run("Evaluate and check", func(t *testing.T) {
		onlyFirst := func(variable int) bool { return variable == 1 }
		onlySecond := func(variable int) bool { return variable == 2 }
		none := func(int) bool { return false }

		assert.Equal(t, 5, instance.Evaluate(onlyFirst))
		assert.Equal(t, -2, instance.Evaluate(onlySecond))
		assert.NoError(t, instance.Check(onlySecond))
		assert.Error(t, instance.Check(none))
	})

	t.Run("OPB", func(t *testing.T) {
		expected := "* #variable= 3 #constraint= 2\n" +
			"* offset= -2\n" +
			"min: +5 x1 +2 ~x2 ;\n" +
			"+1 x1 +1 x2 +1 x3 >= 1 ;\n" +
			"+1 ~x1 +1 ~x2 +1 ~x3 >= 2 ;\n"
		assert.Equal(t, expected, instance.ToOPB())
	})

	t.Run("Out of range literal", func(t *testing.T) {
		broken := NewInstance()
		broken.NewVariable()
		broken.Add(Clause(1, 2))
		assert.Error(t, broken.Validate())
	})
}

func TestGophersatSolver(t *testing.T) {
	solver := NewGophersatSolver(zap.NewNop())
	ctx := context.Background()

	t.Run("Optimal instance", func(t *testing.T) {
		//** Arrange
		instance := NewInstance()
		variables := instance.NewVariables(3)
		instance.Add(Exactly(variables, 1)...)
		instance.Minimize(variables[0], 5)
		instance.Minimize(variables[1], 3)
		instance.Minimize(variables[2], 4)

		//** Act
		solution, err := solver.Solve(ctx, instance, 10*time.Second)

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, Optimal, solution.Status)
		assert.Equal(t, 3, solution.Cost)
		assert.False(t, solution.Value(variables[0]))
		assert.True(t, solution.Value(variables[1]))
		assert.False(t, solution.Value(variables[2]))
	})

	t.Run("Reward only variable", func(t *testing.T) {
		//** Arrange
		instance := NewInstance()
		variable := instance.NewVariable()
		instance.Minimize(variable, -2)

		//** Act
		solution, err := solver.Solve(ctx, instance, 10*time.Second)

		//** Assert
		require.NoError(t, err)
		assert.True(t, solution.Value(variable))
		assert.Equal(t, -2, solution.Cost)
	})

	t.Run("Infeasible instance", func(t *testing.T) {
		//** Arrange
		instance := NewInstance()
		variables := instance.NewVariables(2)
		instance.Add(Clause(variables[0]), Clause(variables[1]), AtMost(variables, 1))

		//** Act
		solution, err := solver.Solve(ctx, instance, 10*time.Second)

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, Infeasible, solution.Status)
		assert.False(t, solution.HasModel())
	})

	t.Run("Invalid instance", func(t *testing.T) {
		instance := NewInstance()
		instance.Add(Clause(4))

		_, err := solver.Solve(ctx, instance, time.Second)
		assert.Error(t, err)
	})

	t.Run("Constraints are left untouched", func(t *testing.T) {
		//** Arrange
		instance := NewInstance()
		variables := instance.NewVariables(4)
		instance.Add(GreaterOrEqual([]int{variables[3], -variables[0], variables[1]}, []int{3, 1, 2}, 3))
		instance.Add(AtMost(variables, 2))
		instance.Add(Clause(-variables[2], variables[0]))
		instance.Minimize(variables[1], 2)
		instance.Minimize(variables[3], 1)
		before := slices.Clone(instance.Constraints)
		for i, constraint := range before {
			before[i].Literals = slices.Clone(constraint.Literals)
			before[i].Weights = slices.Clone(constraint.Weights)
		}

		//** Act
		solution, err := solver.Solve(ctx, instance, 10*time.Second)

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, Optimal, solution.Status)
		assert.Equal(t, before, instance.Constraints)
		assert.NoError(t, instance.Check(solution.Value))
	})

	t.Run("Optimum that leaves a block out", func(t *testing.T) {
		//** Arrange
		// Two blocks compete for a single slot; each one left out costs 100
		instance := NewInstance()
		placed := instance.NewVariables(2)
		instance.Add(AtMost(placed, 1))
		instance.Minimize(-placed[0], 100)
		instance.Minimize(-placed[1], 100)

		//** Act
		start := time.Now()
		solution, err := solver.Solve(ctx, instance, 5*time.Second)

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, Optimal, solution.Status)
		assert.Equal(t, 100, solution.Cost)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("Budget returns the best model found", func(t *testing.T) {
		//** Arrange
		instance := assignmentInstance(60, 30)
		timeout := 300 * time.Millisecond

		//** Act
		start := time.Now()
		solution, err := solver.Solve(ctx, instance, timeout)
		elapsed := time.Since(start)

		//** Assert
		require.NoError(t, err)
		assert.Less(t, elapsed, timeout+time.Second)
		assert.NotEqual(t, Infeasible, solution.Status)
		if solution.HasModel() {
			assert.NoError(t, instance.Check(solution.Value))
			assert.Equal(t, instance.Evaluate(solution.Value), solution.Cost)
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		//** Arrange
		instance := assignmentInstance(60, 30)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		//** Act
		start := time.Now()
		solution, err := solver.Solve(cancelled, instance, time.Minute)

		//** Assert
		require.NoError(t, err)
		assert.Contains(t, []Status{Unknown, Feasible}, solution.Status)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

// assignmentInstance puts every item in exactly one of the slots, at most two items per slot, at a
// random cost per placement
func assignmentInstance(items, slotCount int) *Instance {
	random := rand.New(rand.NewPCG(7, 7))
	instance := NewInstance()
	placements := make([][]int, items)
	for item := range items {
		placements[item] = instance.NewVariables(slotCount)
		instance.Add(Exactly(placements[item], 1)...)
		for _, placement := range placements[item] {
			instance.Minimize(placement, random.IntN(20)+1)
		}
	}
	for slot := range slotCount {
		column := make([]int, 0, items)
		for item := range items {
			column = append(column, placements[item][slot])
		}
		instance.Add(AtMost(column, 2))
	}
	return instance
}

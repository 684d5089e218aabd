package sat

import (
	"fmt"
	"slices"
	"strings"
)

// Constraint is a normalized pseudo-boolean constraint: sum(Weights[i] * Literals[i]) >= AtLeast,
// where every weight is positive and every variable appears at most once. A negative literal
// stands for the negation of its variable.
type Constraint struct {
	Literals []int
	Weights  []int
	AtLeast  int
}

// Trivial reports whether the constraint holds whatever the assignment
func (constraint Constraint) Trivial() bool {
	return constraint.AtLeast <= 0
}

// Impossible reports whether no assignment can satisfy the constraint
func (constraint Constraint) Impossible() bool {
	sum := 0
	for _, weight := range constraint.Weights {
		sum += weight
	}
	return sum < constraint.AtLeast
}

// Holds evaluates the constraint under an assignment
func (constraint Constraint) Holds(value func(variable int) bool) bool {
	sum := 0
	for i, literal := range constraint.Literals {
		if literalValue(literal, value) {
			sum += constraint.Weights[i]
		}
	}
	return sum >= constraint.AtLeast
}

// Term is a weighted literal of the cost function
type Term struct {
	Literal int
	Weight  int
}

// Instance is a pseudo-boolean optimization problem: a set of constraints over boolean variables
// and a linear cost to minimize
type Instance struct {
	Variables   int
	Constraints []Constraint
	Cost        []Term
	Offset      int // Constant part of the cost, produced when negative weights are normalized
}

func NewInstance() *Instance {
	return &Instance{
		Constraints: make([]Constraint, 0),
		Cost:        make([]Term, 0),
	}
}

// NewVariable allocates a fresh variable and returns its (positive) index
func (instance *Instance) NewVariable() int {
	instance.Variables++
	return instance.Variables
}

// NewVariables allocates n fresh variables
func (instance *Instance) NewVariables(n int) []int {
	variables := make([]int, 0, n)
	for range n {
		variables = append(variables, instance.NewVariable())
	}
	return variables
}

// Add appends constraints to the instance; trivially satisfied constraints are dropped
func (instance *Instance) Add(constraints ...Constraint) {
	for _, constraint := range constraints {
		if !constraint.Trivial() {
			instance.Constraints = append(instance.Constraints, constraint)
		}
	}
}

// Minimize adds weight * literal to the cost. A negative weight (a reward) is rewritten as a
// positive weight on the complement plus a constant.
func (instance *Instance) Minimize(literal, weight int) {
	if weight == 0 {
		return
	} else if weight < 0 {
		instance.Offset += weight
		literal, weight = -literal, -weight
	}
	instance.Cost = append(instance.Cost, Term{Literal: literal, Weight: weight})
}

// Validate checks that every literal refers to an allocated variable
func (instance *Instance) Validate() error {
	check := func(literal int) error {
		if literal == 0 || abs(literal) > instance.Variables {
			return fmt.Errorf("literal %d is out of range [1, %d]", literal, instance.Variables)
		}
		return nil
	}
	for i, constraint := range instance.Constraints {
		if len(constraint.Literals) != len(constraint.Weights) {
			return fmt.Errorf("constraint %d has %d literals and %d weights", i, len(constraint.Literals), len(constraint.Weights))
		}
		for _, literal := range constraint.Literals {
			if err := check(literal); err != nil {
				return fmt.Errorf("constraint %d: %w", i, err)
			}
		}
	}
	for _, term := range instance.Cost {
		if err := check(term.Literal); err != nil {
			return fmt.Errorf("cost: %w", err)
		}
	}
	return nil
}

// Check returns an error naming the first constraint the assignment violates
func (instance *Instance) Check(value func(variable int) bool) error {
	for i, constraint := range instance.Constraints {
		if !constraint.Holds(value) {
			return fmt.Errorf("assignment violates constraint %d: %v", i, constraint)
		}
	}
	return nil
}

// Evaluate returns the cost of an assignment
func (instance *Instance) Evaluate(value func(variable int) bool) int {
	cost := instance.Offset
	for _, term := range instance.Cost {
		if literalValue(term.Literal, value) {
			cost += term.Weight
		}
	}
	return cost
}

// ToOPB serializes the instance in the OPB format used by pseudo-boolean solvers
func (instance *Instance) ToOPB() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "* #variable= %d #constraint= %d\n", instance.Variables, len(instance.Constraints))
	if instance.Offset != 0 {
		fmt.Fprintf(&builder, "* offset= %d\n", instance.Offset)
	}
	if len(instance.Cost) > 0 {
		builder.WriteString("min:")
		for _, term := range instance.Cost {
			fmt.Fprintf(&builder, " +%d %s", term.Weight, opbLiteral(term.Literal))
		}
		builder.WriteString(" ;\n")
	}
	for _, constraint := range instance.Constraints {
		for i, literal := range constraint.Literals {
			fmt.Fprintf(&builder, "+%d %s ", constraint.Weights[i], opbLiteral(literal))
		}
		fmt.Fprintf(&builder, ">= %d ;\n", constraint.AtLeast)
	}
	return builder.String()
}

//** Constraint constructors

// Clause requires at least one of the literals to hold
func Clause(literals ...int) Constraint {
	return AtLeast(literals, 1)
}

// Implies requires b to hold whenever a holds
func Implies(a, b int) Constraint {
	return Clause(-a, b)
}

// AtLeast requires at least n of the literals to hold
func AtLeast(literals []int, n int) Constraint {
	return GreaterOrEqual(literals, ones(len(literals)), n)
}

// AtMost allows at most n of the literals to hold
func AtMost(literals []int, n int) Constraint {
	return LessOrEqual(literals, ones(len(literals)), n)
}

// Exactly requires exactly n of the literals to hold
func Exactly(literals []int, n int) []Constraint {
	return []Constraint{AtLeast(literals, n), AtMost(literals, n)}
}

// Equal requires sum(weights * literals) to be exactly n
func Equal(literals []int, weights []int, n int) []Constraint {
	return []Constraint{GreaterOrEqual(literals, weights, n), LessOrEqual(literals, weights, n)}
}

// LessOrEqual requires sum(weights * literals) <= n
func LessOrEqual(literals []int, weights []int, n int) Constraint {
	negated := make([]int, len(weights))
	for i, weight := range weights {
		negated[i] = -weight
	}
	return GreaterOrEqual(literals, negated, -n)
}

// GreaterOrEqual requires sum(weights * literals) >= n. Weights may be negative and variables may
// repeat; the result is normalized to positive weights over distinct variables.
func GreaterOrEqual(literals []int, weights []int, n int) Constraint {
	if len(literals) != len(weights) {
		panic(fmt.Sprintf("sat: %d literals and %d weights", len(literals), len(weights)))
	}

	// Express everything over positive literals: w * -v = w - w * v
	coefficients := make(map[int]int, len(literals))
	for i, literal := range literals {
		if literal > 0 {
			coefficients[literal] += weights[i]
		} else {
			coefficients[-literal] -= weights[i]
			n -= weights[i]
		}
	}

	variables := make([]int, 0, len(coefficients))
	for variable, coefficient := range coefficients {
		if coefficient != 0 {
			variables = append(variables, variable)
		}
	}
	slices.Sort(variables)

	// Turn negative coefficients back into positive ones over the complement: -w * v = w * -v - w
	constraint := Constraint{
		Literals: make([]int, 0, len(variables)),
		Weights:  make([]int, 0, len(variables)),
		AtLeast:  n,
	}
	for _, variable := range variables {
		coefficient := coefficients[variable]
		if coefficient > 0 {
			constraint.Literals = append(constraint.Literals, variable)
			constraint.Weights = append(constraint.Weights, coefficient)
		} else {
			constraint.Literals = append(constraint.Literals, -variable)
			constraint.Weights = append(constraint.Weights, -coefficient)
			constraint.AtLeast -= coefficient
		}
	}

	// Weights above the bound behave exactly like the bound itself
	if constraint.AtLeast > 0 {
		for i, weight := range constraint.Weights {
			constraint.Weights[i] = min(weight, constraint.AtLeast)
		}
	}
	return constraint
}

func ones(n int) []int {
	weights := make([]int, n)
	for i := range weights {
		weights[i] = 1
	}
	return weights
}

func literalValue(literal int, value func(variable int) bool) bool {
	if literal > 0 {
		return value(literal)
	}
	return !value(-literal)
}

func opbLiteral(literal int) string {
	if literal < 0 {
		return fmt.Sprintf("~x%d", -literal)
	}
	return fmt.Sprintf("x%d", literal)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/limaJavier/timetabler/pkg/diagnostics"
)

type Kind string

const (
	StructuralInfeasibility Kind = "STRUCTURAL_INFEASIBILITY" // Some block has no valid slot, found without building a model
	SolverInfeasible        Kind = "SOLVER_INFEASIBLE"        // The model admits no solution
	SolverTimeout           Kind = "SOLVER_TIMEOUT"           // No definitive answer within the budget
	EditRejected            Kind = "EDIT_REJECTED"            // An edit failed pre-validation
	EditConflict            Kind = "EDIT_CONFLICT"            // An edit could not be resolved
	ModelInvalid            Kind = "MODEL_INVALID"            // The solver rejected the model or returned a model that breaks it
)

// Reason refines an EditConflict
type Reason string

const (
	ReasonInfeasible   Reason = "infeasible"
	ReasonModelInvalid Reason = "model-invalid"
	ReasonTimeout      Reason = "timeout"
	ReasonUnresolved   Reason = "unresolved"
)

// Error is the failure returned by every engine. It always carries enough context for the caller
// to explain the failure: the blocks involved, the diagnostic findings and, after a relaxed
// best-effort pass, the blocks that cannot be placed.
type Error struct {
	Kind        Kind
	Reason      Reason
	Message     string
	Blocks      []uint64
	Findings    []diagnostics.Finding
	Unplaceable []UnplacedBlock
	Movable     int
	Variables   int
	Cause       error
}

func (err *Error) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "[%s] %s", err.Kind, err.Message)
	if err.Reason != "" {
		fmt.Fprintf(&builder, " (%s)", err.Reason)
	}
	for _, finding := range err.Findings {
		fmt.Fprintf(&builder, "; %v", finding)
	}
	if len(err.Unplaceable) > 0 {
		fmt.Fprintf(&builder, "; unplaceable blocks: %v", unplacedIds(err.Unplaceable))
	}
	if err.Cause != nil {
		fmt.Fprintf(&builder, ": %v", err.Cause)
	}
	return builder.String()
}

func (err *Error) Unwrap() error {
	return err.Cause
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func newEditConflict(reason Reason, movable, variables int, format string, args ...any) *Error {
	err := newError(EditConflict, format, args...)
	err.Reason = reason
	err.Movable = movable
	err.Variables = variables
	return err
}

// KindOf returns the kind of an engine error, or an empty kind for any other error
func KindOf(err error) Kind {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	return ""
}

// IsKind reports whether err is an engine error of the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

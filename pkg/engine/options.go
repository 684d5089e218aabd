package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/limaJavier/timetabler/pkg/sat"
	"go.uber.org/zap"
)

type Mode int

const (
	Rebuild Mode = iota
	BestEffort
	Edit
)

func (mode Mode) String() string {
	switch mode {
	case Rebuild:
		return "rebuild"
	case BestEffort:
		return "best-effort"
	case Edit:
		return "edit"
	default:
		return fmt.Sprintf("mode(%d)", int(mode))
	}
}

// Retention decides which existing placements survive a rebuild
type Retention int

const (
	ClearAll    Retention = iota // Only locked blocks keep their slot; every other placement is discarded
	KeepPlaced                   // Every placed block keeps its slot
	KeepManual                   // Locked and manually placed blocks keep their slot
	KeepLocked                   // Only locked blocks keep their slot
	KeepCurrent                  // Locked blocks keep their slot; other placed blocks prefer to stay
)

var retentionNames = map[Retention]string{
	ClearAll:    "clear-all",
	KeepPlaced:  "keep-placed",
	KeepManual:  "keep-manual",
	KeepLocked:  "keep-locked",
	KeepCurrent: "keep-current",
}

func (retention Retention) String() string {
	if name, ok := retentionNames[retention]; ok {
		return name
	}
	return fmt.Sprintf("retention(%d)", int(retention))
}

// ParseRetention maps a retention name back to its value
func ParseRetention(name string) (Retention, error) {
	for retention, retentionName := range retentionNames {
		if retentionName == name {
			return retention, nil
		}
	}
	return 0, fmt.Errorf("unknown retention mode %q", name)
}

// Weights are the non-negative penalties of the soft objective
type Weights struct {
	Gap           int // Per idle hour between a teacher's first and last hour of a day
	Morning       int // Per hour of delay of a priority block, multiplied by its priority
	Adjacency     int // Reward per pair of consecutive hours a teacher works
	Fragmentation int // When a teacher's idle hours in a day exceed the gap threshold
	SingleLesson  int // When a teacher comes in for a single hour
	Condensation  int // When a teacher works on a day picked to be kept free
	Stay          int // When a block leaves its current slot (keep-current retention)
}

func (weights Weights) Validate() error {
	if weights.Gap < 0 || weights.Morning < 0 || weights.Adjacency < 0 || weights.Fragmentation < 0 ||
		weights.SingleLesson < 0 || weights.Condensation < 0 || weights.Stay < 0 {
		return fmt.Errorf("weights must be non-negative: %+v", weights)
	}
	return nil
}

func DefaultWeights() Weights {
	return Weights{
		Gap:           10,
		Morning:       1,
		Adjacency:     2,
		Fragmentation: 20,
		SingleLesson:  15,
		Condensation:  30,
		Stay:          5,
	}
}

// RelaxationProfile scales the secondary penalties for one attempt. The gap penalty is never
// relaxed.
type RelaxationProfile struct {
	Name          string
	Fragmentation float64
	SingleLesson  float64
	Condensation  float64
}

// Apply returns the weights used by an attempt run under the profile
func (profile RelaxationProfile) Apply(weights Weights) Weights {
	scale := func(weight int, factor float64) int {
		return int(math.Round(float64(weight) * factor))
	}
	relaxed := weights
	relaxed.Fragmentation = scale(weights.Fragmentation, profile.Fragmentation)
	relaxed.SingleLesson = scale(weights.SingleLesson, profile.SingleLesson)
	relaxed.Condensation = scale(weights.Condensation, profile.Condensation)
	return relaxed
}

// DefaultProfiles is the relaxation sequence tried in order until one attempt succeeds
func DefaultProfiles() []RelaxationProfile {
	return []RelaxationProfile{
		{Name: "strict", Fragmentation: 1, SingleLesson: 1, Condensation: 1},
		{Name: "softened", Fragmentation: 0.5, SingleLesson: 0.5, Condensation: 0.5},
		{Name: "lenient", Fragmentation: 0.25, SingleLesson: 0.25, Condensation: 0},
		{Name: "bare", Fragmentation: 0, SingleLesson: 0, Condensation: 0},
	}
}

// Options configure the rebuild and best-effort solvers
type Options struct {
	AttemptTimeout  time.Duration
	Weights         Weights
	Profiles        []RelaxationProfile
	Retention       Retention
	PreFlight       bool // Run the structural analysis before building any model
	GapThreshold    int  // Idle hours in a day above which the fragmentation penalty applies
	LowLoadHours    int  // Average daily hours under which a teacher's adjacency reward doubles
	CondenseMaxLoad int  // Weekly hours up to which a teacher is considered for free days
	UnplacedPenalty int  // Per unplaced hour in best-effort mode
	Solver          sat.Solver
	Events          EventSink
	Logger          *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		AttemptTimeout:  30 * time.Second,
		Weights:         DefaultWeights(),
		Profiles:        DefaultProfiles(),
		Retention:       KeepLocked,
		PreFlight:       true,
		GapThreshold:    2,
		LowLoadHours:    3,
		CondenseMaxLoad: 12,
		UnplacedPenalty: 100_000,
	}
}

// withDefaults fills the collaborators a caller left empty
func (options Options) withDefaults() Options {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Events == nil {
		options.Events = NopSink{}
	}
	if options.Solver == nil {
		options.Solver = sat.NewGophersatSolver(options.Logger)
	}
	if len(options.Profiles) == 0 {
		options.Profiles = []RelaxationProfile{{Name: "strict", Fragmentation: 1, SingleLesson: 1, Condensation: 1}}
	}
	return options
}

// EditOptions configure the edit resolver and the greedy cascade
type EditOptions struct {
	Scope            ScopeStrategy
	StayPenalty      int // Per block that leaves its slot
	DuplicatePenalty int // Per day a class has the same lesson twice
	Timeout          time.Duration
	MaxIterations    int // Greedy cascade iteration budget
	RelocationCap    int // Greedy cascade moves allowed per block
	Solver           sat.Solver
	Events           EventSink
	Logger           *zap.Logger
}

func DefaultEditOptions() EditOptions {
	return EditOptions{
		Scope:            FocusedScope{},
		StayPenalty:      10,
		DuplicatePenalty: 50,
		Timeout:          10 * time.Second,
		MaxIterations:    200,
		RelocationCap:    5,
	}
}

func (options EditOptions) withDefaults() EditOptions {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Events == nil {
		options.Events = NopSink{}
	}
	if options.Solver == nil {
		options.Solver = sat.NewGophersatSolver(options.Logger)
	}
	if options.Scope == nil {
		options.Scope = FocusedScope{}
	}
	return options
}

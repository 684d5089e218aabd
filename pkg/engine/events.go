package engine

import (
	"time"

	"github.com/limaJavier/timetabler/pkg/model"
	"go.uber.org/zap"
)

// Event is emitted while a solve or an edit is in progress
type Event interface {
	event()
}

// AttemptStarted opens an attempt of the relaxation sequence (or the single attempt of an edit)
type AttemptStarted struct {
	RunId   string
	Attempt int
	Profile string
}

// AttemptFailed closes an attempt that did not produce a schedule
type AttemptFailed struct {
	RunId   string
	Attempt int
	Profile string
	Reason  string
}

// Diagnostic reports a bottleneck found by the structural analysis
type Diagnostic struct {
	RunId    string
	Resource *model.Resource
	Load     int
	Capacity int
	Message  string
}

// Solved is the terminal summary of a successful run
type Solved struct {
	Stats Stats
}

func (AttemptStarted) event() {}
func (AttemptFailed) event()  {}
func (Diagnostic) event()     {}
func (Solved) event()         {}

// Stats summarizes a run
type Stats struct {
	RunId       string
	Mode        Mode
	Attempts    int
	Profile     string
	Variables   int
	Constraints int
	Placed      int
	Unplaced    int
	Moved       int
	Cost        int
	Elapsed     time.Duration
}

type EventSink interface {
	Emit(event Event)
}

// EventSinkFunc adapts a function to an EventSink
type EventSinkFunc func(event Event)

func (sink EventSinkFunc) Emit(event Event) {
	sink(event)
}

// NopSink drops every event
type NopSink struct{}

func (NopSink) Emit(Event) {}

// LogSink forwards every event to a zap logger
type LogSink struct {
	Logger *zap.Logger
}

func (sink LogSink) Emit(event Event) {
	switch e := event.(type) {
	case AttemptStarted:
		sink.Logger.Info("attempt started", zap.String("run", e.RunId), zap.Int("attempt", e.Attempt), zap.String("profile", e.Profile))
	case AttemptFailed:
		sink.Logger.Warn("attempt failed", zap.String("run", e.RunId), zap.Int("attempt", e.Attempt), zap.String("profile", e.Profile), zap.String("reason", e.Reason))
	case Diagnostic:
		fields := []zap.Field{zap.String("run", e.RunId), zap.String("message", e.Message)}
		if e.Resource != nil {
			fields = append(fields, zap.Stringer("resource", e.Resource), zap.Int("load", e.Load), zap.Int("capacity", e.Capacity))
		}
		sink.Logger.Warn("diagnostic", fields...)
	case Solved:
		sink.Logger.Info("solved",
			zap.String("run", e.Stats.RunId),
			zap.Stringer("mode", e.Stats.Mode),
			zap.Int("attempts", e.Stats.Attempts),
			zap.String("profile", e.Stats.Profile),
			zap.Int("placed", e.Stats.Placed),
			zap.Int("unplaced", e.Stats.Unplaced),
			zap.Int("moved", e.Stats.Moved),
			zap.Int("cost", e.Stats.Cost),
			zap.Duration("elapsed", e.Stats.Elapsed),
		)
	}
}

// Tee sends every event to all the given sinks
func Tee(sinks ...EventSink) EventSink {
	return EventSinkFunc(func(event Event) {
		for _, sink := range sinks {
			sink.Emit(event)
		}
	})
}

package model

import "context"

// Provenance tags every committed placement with the operation that produced it
type Provenance string

const (
	ProvenanceRebuild    Provenance = "rebuild"
	ProvenanceBestEffort Provenance = "best-effort"
	ProvenanceManualEdit Provenance = "manual-edit"
	ProvenanceGreedyEdit Provenance = "greedy-edit"
)

// Committed is the final position of one processed block
type Committed struct {
	BlockId    uint64
	Slot       Slot
	Placed     bool
	Provenance Provenance
}

// SnapshotSource supplies the full school snapshot a solve operates on
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*ScheduleState, error)
}

// PlacementSink accepts the placements of a definitive result. Implementations must apply the
// whole batch or nothing.
type PlacementSink interface {
	Commit(ctx context.Context, placements []Committed) error
}

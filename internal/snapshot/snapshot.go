package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/limaJavier/timetabler/pkg/model"
)

// FileSource reads the school snapshot from a JSON file
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (source *FileSource) Snapshot(ctx context.Context) (*model.ScheduleState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return model.SnapshotFromJson(source.Path)
}

// FileSink writes the base snapshot with the committed placements applied. The file is replaced
// atomically, so readers see either the previous snapshot or the complete new one.
type FileSink struct {
	Path string
	Base *model.ScheduleState
}

func NewFileSink(path string, base *model.ScheduleState) *FileSink {
	return &FileSink{Path: path, Base: base}
}

func (sink *FileSink) Commit(ctx context.Context, placements []model.Committed) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	state := sink.Base.Clone()
	for _, committed := range placements {
		slot := committed.Slot
		if !committed.Placed {
			slot = model.Unplaced
		}
		if !state.SetPlacement(committed.BlockId, slot) {
			return fmt.Errorf("block %d is not part of the snapshot", committed.BlockId)
		}
	}
	return Write(sink.Path, state)
}

// Write serializes a state into path through a temporary file in the same directory
func Write(path string, state *model.ScheduleState) error {
	data, err := json.MarshalIndent(model.ToRawSnapshot(state), "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create temporary snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cannot replace snapshot file: %w", err)
	}
	return nil
}

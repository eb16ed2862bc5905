// Package store persists the state of a simulated device and its directory.
//
// Every save writes a complete [Snapshot]; there are no incremental updates.
// Snapshots are JSON documents compressed with the codec in
// utilities/compression.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dargueta/blocksim"
	"github.com/dargueta/blocksim/utilities/compression"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SnapshotVersion is the version of the snapshot layout written by this
// package.
const SnapshotVersion = 1

// Snapshot is the complete persisted state: every block on the device and every
// file in the directory.
type Snapshot struct {
	Version int `json:"version"`
	// DeviceID is assigned when the device is first created and never changes.
	DeviceID uuid.UUID `json:"device_id"`
	Capacity uint      `json:"capacity"`
	SavedAt  time.Time `json:"saved_at"`
	// Blocks holds one entry per block, `null` for a free block and the owner's
	// name otherwise.
	Blocks []blocksim.BlockState        `json:"blocks"`
	Files  map[string]blocksim.FileInfo `json:"files"`
}

// Validate checks the snapshot's structure. It doesn't check that the blocks
// and files agree; that's up to whoever restores the directory.
func (s *Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return blocksim.ErrPersistenceFailure.WithMessage(
			fmt.Sprintf("unsupported snapshot version %d, expected %d", s.Version, SnapshotVersion))
	}
	if s.Capacity == 0 {
		return blocksim.ErrPersistenceFailure.WithMessage("snapshot has a capacity of zero")
	}
	if uint(len(s.Blocks)) != s.Capacity {
		return blocksim.ErrPersistenceFailure.WithMessage(
			fmt.Sprintf(
				"snapshot capacity is %d blocks but it has %d block labels",
				s.Capacity,
				len(s.Blocks)))
	}
	return nil
}

// Encode writes a compressed snapshot to `w`.
func Encode(w io.Writer, snapshot Snapshot) error {
	if snapshot.Files == nil {
		snapshot.Files = map[string]blocksim.FileInfo{}
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "failed to serialize snapshot")
	}
	if _, err := compression.Compress(bytes.NewReader(raw), w); err != nil {
		return errors.Wrap(err, "failed to compress snapshot")
	}
	return nil
}

// Decode reads a compressed snapshot from `r` and validates it.
func Decode(r io.Reader) (Snapshot, error) {
	raw, err := compression.DecompressToBytes(r)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to decompress snapshot")
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to parse snapshot")
	}
	if err := snapshot.Validate(); err != nil {
		return Snapshot{}, err
	}
	if snapshot.Files == nil {
		snapshot.Files = map[string]blocksim.FileInfo{}
	}
	return snapshot, nil
}

// Store is anything that can hold a snapshot between sessions.
type Store interface {
	// Load returns the most recently saved snapshot. The boolean is false if
	// nothing has been saved yet, in which case the error is nil.
	Load() (Snapshot, bool, error)
	// Save replaces the stored snapshot. A failed save must leave the previous
	// snapshot intact.
	Save(snapshot Snapshot) error
}

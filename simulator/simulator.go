// Package simulator ties a device, its directory and a store together into a
// single session that can be handed to a presentation layer.
package simulator

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dargueta/blocksim"
	"github.com/dargueta/blocksim/device"
	"github.com/dargueta/blocksim/directory"
	"github.com/dargueta/blocksim/store"
	"github.com/google/uuid"
	"github.com/nnsgmsone/damrey/logger"
)

// Config controls how a Simulator is created.
type Config struct {
	// Capacity is the number of blocks on a new device. It's only used if the
	// store has no snapshot; if it does and Capacity is non-zero, the two must
	// agree. Zero means blocksim.DefaultCapacity.
	Capacity uint
	// Store holds the state between sessions. Nil means a fresh in-memory
	// store, i.e. nothing survives the process.
	Store store.Store
	// LogWriter receives log output. Nil means stderr.
	LogWriter io.Writer
}

// Simulator is one session over one device. It implements blocksim.FileManager.
//
// Every mutating operation updates the device and the directory together and
// then saves a snapshot, all while holding the write lock, so readers never see
// one without the other.
type Simulator struct {
	lock     sync.RWMutex
	dir      *directory.Directory
	store    store.Store
	deviceID uuid.UUID
	log      logger.Log
}

// New creates a simulator, restoring the state saved in cfg.Store if there is
// any.
func New(cfg Config) (*Simulator, error) {
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	if cfg.LogWriter == nil {
		cfg.LogWriter = os.Stderr
	}

	sim := &Simulator{
		store: cfg.Store,
		log:   logger.New(cfg.LogWriter, "blocksim"),
	}

	snapshot, found, err := cfg.Store.Load()
	if err != nil {
		return nil, blocksim.ErrPersistenceFailure.Wrap(err)
	}

	if found {
		if cfg.Capacity != 0 && cfg.Capacity != snapshot.Capacity {
			return nil, blocksim.ErrInvalidArgument.WithMessage(
				fmt.Sprintf(
					"saved device has %d blocks but %d were requested",
					snapshot.Capacity,
					cfg.Capacity))
		}
		if err := sim.restore(snapshot); err != nil {
			return nil, blocksim.ErrPersistenceFailure.Wrap(err)
		}
		return sim, nil
	}

	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = blocksim.DefaultCapacity
	}
	dev, err := device.New(capacity)
	if err != nil {
		return nil, err
	}
	sim.dir, err = directory.New(dev)
	if err != nil {
		return nil, err
	}
	sim.deviceID = uuid.New()
	return sim, nil
}

func (sim *Simulator) restore(snapshot store.Snapshot) error {
	dev, err := device.FromStates(snapshot.Blocks)
	if err != nil {
		return err
	}
	dir, err := directory.Restore(dev, snapshot.Files)
	if err != nil {
		return err
	}

	sim.dir = dir
	sim.deviceID = snapshot.DeviceID
	if sim.deviceID == uuid.Nil {
		sim.deviceID = uuid.New()
	}
	return nil
}

// snapshot must be called with the lock held.
func (sim *Simulator) snapshot() store.Snapshot {
	return store.Snapshot{
		Version:  store.SnapshotVersion,
		DeviceID: sim.deviceID,
		Capacity: sim.dir.Capacity(),
		SavedAt:  time.Now().UTC(),
		Blocks:   sim.dir.DeviceSnapshot(),
		Files:    sim.dir.Files(),
	}
}

// persist saves the current state. It must be called with the write lock held.
// The in-memory state is kept whether or not the save works.
func (sim *Simulator) persist(operation string) error {
	if err := sim.store.Save(sim.snapshot()); err != nil {
		sim.log.Errorf("%s: state changed but snapshot failed: %v\n", operation, err)
		return blocksim.ErrPersistenceFailure.Wrap(err)
	}
	return nil
}

// CreateFile allocates a new file. An empty fileType means blocksim.TextFile.
func (sim *Simulator) CreateFile(
	name string,
	size uint,
	method blocksim.Method,
	fileType blocksim.FileType,
	content string,
) error {
	if fileType == "" {
		fileType = blocksim.TextFile
	}

	sim.lock.Lock()
	defer sim.lock.Unlock()

	if _, err := sim.dir.Create(name, size, method, fileType, content); err != nil {
		return err
	}
	return sim.persist(fmt.Sprintf("create %q", name))
}

// DeleteFile removes a file and frees its blocks. Nothing is saved if the file
// didn't exist.
func (sim *Simulator) DeleteFile(name string) (bool, error) {
	sim.lock.Lock()
	defer sim.lock.Unlock()

	if !sim.dir.Delete(name) {
		return false, nil
	}
	return true, sim.persist(fmt.Sprintf("delete %q", name))
}

func (sim *Simulator) GetAllFiles() map[string]blocksim.FileInfo {
	sim.lock.RLock()
	defer sim.lock.RUnlock()
	return sim.dir.Files()
}

// GetFile returns the metadata of a single file.
func (sim *Simulator) GetFile(name string) (blocksim.FileInfo, bool) {
	sim.lock.RLock()
	defer sim.lock.RUnlock()
	return sim.dir.Get(name)
}

func (sim *Simulator) GetFileContent(name string) (string, bool) {
	sim.lock.RLock()
	defer sim.lock.RUnlock()
	return sim.dir.Content(name)
}

func (sim *Simulator) UpdateFileContent(name, content string) (bool, error) {
	sim.lock.Lock()
	defer sim.lock.Unlock()

	if !sim.dir.UpdateContent(name, content) {
		return false, nil
	}
	return true, sim.persist(fmt.Sprintf("update %q", name))
}

func (sim *Simulator) DeviceSnapshot() []blocksim.BlockState {
	sim.lock.RLock()
	defer sim.lock.RUnlock()
	return sim.dir.DeviceSnapshot()
}

func (sim *Simulator) FreeBlockCount() int {
	sim.lock.RLock()
	defer sim.lock.RUnlock()
	return sim.dir.FreeBlockCount()
}

func (sim *Simulator) Capacity() uint {
	sim.lock.RLock()
	defer sim.lock.RUnlock()
	return sim.dir.Capacity()
}

// DeviceID returns the identifier assigned to the device when it was first
// created.
func (sim *Simulator) DeviceID() uuid.UUID {
	sim.lock.RLock()
	defer sim.lock.RUnlock()
	return sim.deviceID
}

// Verify checks that the device and the directory agree on block ownership.
func (sim *Simulator) Verify() error {
	sim.lock.RLock()
	defer sim.lock.RUnlock()
	return sim.dir.Verify()
}

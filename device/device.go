// Package device models a fixed-size virtual block device. Each block is either
// free or owned by a single file; the device knows nothing about what a file
// is beyond its name.
//
// All block indexes begin at 0.

package device

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/blocksim"
)

// Device is an ordered sequence of blocks whose length is fixed at construction.
//
// Two structures describe the same thing: `inUse` is an allocation bitmap used
// for scanning, and `owners` records who holds each allocated block. They're
// always updated together.
type Device struct {
	inUse    bitmap.Bitmap
	owners   []string
	capacity uint
}

// New creates a device of `capacity` blocks, all of them free.
func New(capacity uint) (*Device, error) {
	if capacity == 0 {
		return nil, blocksim.ErrInvalidArgument.WithMessage(
			"device capacity must be at least one block")
	}
	return &Device{
		inUse:    bitmap.New(int(capacity)),
		owners:   make([]string, capacity),
		capacity: capacity,
	}, nil
}

// FromStates creates a device whose blocks are in the given states. It's used
// to restore a device from a snapshot.
func FromStates(states []blocksim.BlockState) (*Device, error) {
	dev, err := New(uint(len(states)))
	if err != nil {
		return nil, err
	}

	for i, state := range states {
		if owner, owned := state.Owner(); owned {
			if owner == "" {
				return nil, blocksim.ErrInvalidArgument.WithMessage(
					fmt.Sprintf("block %d is owned by a file with an empty name", i))
			}
			dev.inUse.Set(i, true)
			dev.owners[i] = owner
		}
	}
	return dev, nil
}

// Capacity returns the total number of blocks on the device.
func (dev *Device) Capacity() uint {
	return dev.capacity
}

func (dev *Device) checkBounds(block blocksim.BlockID) error {
	if uint(block) >= dev.capacity {
		return blocksim.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid block id: %d not in range [0, %d)", block, dev.capacity))
	}
	return nil
}

// IsFree returns true if the block is in range and not owned by anything.
func (dev *Device) IsFree(block blocksim.BlockID) bool {
	return uint(block) < dev.capacity && !dev.inUse.Get(int(block))
}

// State returns the state of a single block.
func (dev *Device) State(block blocksim.BlockID) (blocksim.BlockState, error) {
	if err := dev.checkBounds(block); err != nil {
		return blocksim.Free, err
	}
	if !dev.inUse.Get(int(block)) {
		return blocksim.Free, nil
	}
	return blocksim.OwnedBy(dev.owners[block]), nil
}

// Snapshot returns the state of every block in block order. The returned slice
// is a copy.
func (dev *Device) Snapshot() []blocksim.BlockState {
	states := make([]blocksim.BlockState, dev.capacity)
	for i := uint(0); i < dev.capacity; i++ {
		if dev.inUse.Get(int(i)) {
			states[i] = blocksim.OwnedBy(dev.owners[i])
		}
	}
	return states
}

// FreeBlockCount returns the number of free blocks on the device.
func (dev *Device) FreeBlockCount() int {
	count := 0
	for i := 0; i < int(dev.capacity); i++ {
		if !dev.inUse.Get(i) {
			count++
		}
	}
	return count
}

// FreeBlockIndices returns the indices of all free blocks in ascending order.
// This is the scan order used by the linked and indexed strategies.
func (dev *Device) FreeBlockIndices() []blocksim.BlockID {
	free := make([]blocksim.BlockID, 0, dev.capacity)
	for i := 0; i < int(dev.capacity); i++ {
		if !dev.inUse.Get(i) {
			free = append(free, blocksim.BlockID(i))
		}
	}
	return free
}

// HasFreeRunAt returns true if `count` blocks beginning at `start` are all
// free. Runs extending past the end of the device are never free.
func (dev *Device) HasFreeRunAt(start blocksim.BlockID, count uint) bool {
	if count > dev.capacity || uint(start) > dev.capacity-count {
		return false
	}
	for i := uint(start); i < uint(start)+count; i++ {
		if dev.inUse.Get(int(i)) {
			return false
		}
	}
	return true
}

// FindFreeRun returns the first block of the lowest-addressed run of `count`
// free blocks. The boolean is false if there's no such run.
//
// Starting offsets are tried in ascending order, so this is first-fit: a
// larger run further along the device is never preferred.
func (dev *Device) FindFreeRun(count uint) (blocksim.BlockID, bool) {
	if count == 0 || count > dev.capacity {
		return 0, false
	}

	for start := uint(0); start <= dev.capacity-count; start++ {
		if dev.HasFreeRunAt(blocksim.BlockID(start), count) {
			return blocksim.BlockID(start), true
		}
	}
	return 0, false
}

// MarkOwned assigns the listed blocks to `owner`. Every block must be in range,
// free, and listed only once. If any of these conditions doesn't hold, the
// device is not modified.
func (dev *Device) MarkOwned(blocks []blocksim.BlockID, owner string) error {
	if owner == "" {
		return blocksim.ErrInvalidArgument.WithMessage("owner name can't be empty")
	}

	seen := make(map[blocksim.BlockID]struct{}, len(blocks))
	for _, block := range blocks {
		if err := dev.checkBounds(block); err != nil {
			return err
		}
		if dev.inUse.Get(int(block)) {
			return blocksim.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("block %d is already owned by %q", block, dev.owners[block]))
		}
		if _, dup := seen[block]; dup {
			return blocksim.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("block %d listed more than once", block))
		}
		seen[block] = struct{}{}
	}

	for _, block := range blocks {
		dev.inUse.Set(int(block), true)
		dev.owners[block] = owner
	}
	return nil
}

// FreeBlock returns a single block to the free pool. The block must currently
// be owned by `owner`; freeing a free block or another file's block fails and
// leaves the device untouched.
func (dev *Device) FreeBlock(block blocksim.BlockID, owner string) error {
	if err := dev.checkBounds(block); err != nil {
		return err
	}
	if !dev.inUse.Get(int(block)) {
		return blocksim.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("block %d is already free", block))
	}
	if dev.owners[block] != owner {
		return blocksim.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("block %d is owned by %q, not %q", block, dev.owners[block], owner))
	}

	dev.inUse.Set(int(block), false)
	dev.owners[block] = ""
	return nil
}

// Release frees every block owned by `owner` and returns how many there were.
// It doesn't rely on any record of which blocks the owner was given, so it
// also catches blocks a caller lost track of.
func (dev *Device) Release(owner string) int {
	released := 0
	for i := 0; i < int(dev.capacity); i++ {
		if dev.inUse.Get(i) && dev.owners[i] == owner {
			dev.inUse.Set(i, false)
			dev.owners[i] = ""
			released++
		}
	}
	return released
}

// BlocksOwnedBy returns the blocks currently owned by `owner`, in ascending
// order.
func (dev *Device) BlocksOwnedBy(owner string) []blocksim.BlockID {
	var blocks []blocksim.BlockID
	for i := 0; i < int(dev.capacity); i++ {
		if dev.inUse.Get(i) && dev.owners[i] == owner {
			blocks = append(blocks, blocksim.BlockID(i))
		}
	}
	return blocks
}

// Clone returns an independent copy of the device.
func (dev *Device) Clone() *Device {
	inUse := make(bitmap.Bitmap, len(dev.inUse))
	copy(inUse, dev.inUse)
	return &Device{
		inUse:    inUse,
		owners:   append([]string(nil), dev.owners...),
		capacity: dev.capacity,
	}
}

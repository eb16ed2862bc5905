// Package allocation implements the strategies used to place a new file's
// blocks on a device.
//
// Every strategy picks the lowest-numbered qualifying blocks, so identical
// device states always produce identical placements. A failed allocation never
// modifies the device.
package allocation

import (
	"fmt"

	"github.com/dargueta/blocksim"
	"github.com/dargueta/blocksim/device"
)

// Placement describes where a file's blocks ended up.
type Placement struct {
	// Blocks are the data blocks in logical order. For linked files this is the
	// order of the chain.
	Blocks []blocksim.BlockID
	// Index is the index block of an indexed file, nil otherwise.
	Index *blocksim.BlockID
}

// OwnedBlocks returns all blocks in the placement, index block first.
func (p Placement) OwnedBlocks() []blocksim.BlockID {
	blocks := make([]blocksim.BlockID, 0, len(p.Blocks)+1)
	if p.Index != nil {
		blocks = append(blocks, *p.Index)
	}
	return append(blocks, p.Blocks...)
}

// Allocator is a block allocation strategy. An allocator is chosen once when a
// file is created and is used again to release the file's blocks.
type Allocator interface {
	// Method returns the strategy this allocator implements.
	Method() blocksim.Method

	// Allocate claims blocks for a file of `size` blocks and marks them as
	// owned by `owner`. On failure the device is left untouched.
	Allocate(dev *device.Device, owner string, size uint) (Placement, error)

	// Release frees every block held by `owner`, starting with those recorded
	// in `placement`. It returns the number of blocks freed.
	Release(dev *device.Device, owner string, placement Placement) int
}

// ForMethod returns the allocator implementing the given strategy.
func ForMethod(method blocksim.Method) (Allocator, error) {
	switch method {
	case blocksim.Contiguous:
		return contiguousAllocator{}, nil
	case blocksim.Linked:
		return linkedAllocator{}, nil
	case blocksim.Indexed:
		return indexedAllocator{}, nil
	default:
		return nil, blocksim.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("no allocator for method %s", method))
	}
}

func checkSize(size uint) error {
	if size < 1 {
		return blocksim.ErrInvalidArgument.WithMessage("a file must have at least one block")
	}
	return nil
}

// releaseAll frees the recorded blocks, then sweeps the device for anything
// else still carrying the owner's name. Recorded blocks that are no longer
// owned by `owner` are skipped rather than taken from someone else.
func releaseAll(dev *device.Device, owner string, blocks []blocksim.BlockID) int {
	released := 0
	for _, block := range blocks {
		if dev.FreeBlock(block, owner) == nil {
			released++
		}
	}
	return released + dev.Release(owner)
}

package allocation

import (
	"fmt"

	"github.com/dargueta/blocksim"
	"github.com/dargueta/blocksim/device"
)

// indexedAllocator reserves one extra block as the file's index block, followed
// by the data blocks. The index block is the lowest free block; the data blocks
// are the next `size` free blocks.
//
// On the device the index block carries the owner's name exactly like a data
// block does. Only the Placement tells them apart.
type indexedAllocator struct{}

func (indexedAllocator) Method() blocksim.Method {
	return blocksim.Indexed
}

func (indexedAllocator) Allocate(
	dev *device.Device, owner string, size uint,
) (Placement, error) {
	if err := checkSize(size); err != nil {
		return Placement{}, err
	}

	free := dev.FreeBlockIndices()
	// Written without size+1 so that a huge size can't wrap around.
	if size >= uint(len(free)) {
		return Placement{}, blocksim.ErrInsufficientSpace.WithMessage(
			fmt.Sprintf(
				"need %d blocks (%d data + 1 index), %d free", size+1, size, len(free)))
	}

	claimed := free[: size+1 : size+1]
	if err := dev.MarkOwned(claimed, owner); err != nil {
		return Placement{}, err
	}

	index := claimed[0]
	return Placement{
		Blocks: append([]blocksim.BlockID(nil), claimed[1:]...),
		Index:  &index,
	}, nil
}

func (indexedAllocator) Release(
	dev *device.Device, owner string, placement Placement,
) int {
	return releaseAll(dev, owner, placement.OwnedBlocks())
}

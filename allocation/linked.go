package allocation

import (
	"fmt"

	"github.com/dargueta/blocksim"
	"github.com/dargueta/blocksim/device"
)

// linkedAllocator takes the lowest free blocks wherever they are. The order of
// the returned blocks is the order of the chain.
type linkedAllocator struct{}

func (linkedAllocator) Method() blocksim.Method {
	return blocksim.Linked
}

func (linkedAllocator) Allocate(
	dev *device.Device, owner string, size uint,
) (Placement, error) {
	if err := checkSize(size); err != nil {
		return Placement{}, err
	}

	free := dev.FreeBlockIndices()
	if uint(len(free)) < size {
		return Placement{}, blocksim.ErrInsufficientSpace.WithMessage(
			fmt.Sprintf("need %d blocks, %d free", size, len(free)))
	}

	blocks := free[:size:size]
	if err := dev.MarkOwned(blocks, owner); err != nil {
		return Placement{}, err
	}
	return Placement{Blocks: blocks}, nil
}

func (linkedAllocator) Release(
	dev *device.Device, owner string, placement Placement,
) int {
	return releaseAll(dev, owner, placement.Blocks)
}

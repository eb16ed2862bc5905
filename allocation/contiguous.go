package allocation

import (
	"fmt"

	"github.com/dargueta/blocksim"
	"github.com/dargueta/blocksim/device"
)

// contiguousAllocator places a file in a single run of consecutive blocks,
// using the first run that fits. It fails when free space is fragmented into
// runs that are all too short, even if their total would be enough.
type contiguousAllocator struct{}

func (contiguousAllocator) Method() blocksim.Method {
	return blocksim.Contiguous
}

func (contiguousAllocator) Allocate(
	dev *device.Device, owner string, size uint,
) (Placement, error) {
	if err := checkSize(size); err != nil {
		return Placement{}, err
	}

	start, found := dev.FindFreeRun(size)
	if !found {
		return Placement{}, blocksim.ErrInsufficientContiguousSpace.WithMessage(
			fmt.Sprintf(
				"no run of %d free blocks (%d free in total)", size, dev.FreeBlockCount()))
	}

	blocks := make([]blocksim.BlockID, size)
	for i := range blocks {
		blocks[i] = start + blocksim.BlockID(i)
	}
	if err := dev.MarkOwned(blocks, owner); err != nil {
		return Placement{}, err
	}
	return Placement{Blocks: blocks}, nil
}

func (contiguousAllocator) Release(
	dev *device.Device, owner string, placement Placement,
) int {
	return releaseAll(dev, owner, placement.Blocks)
}

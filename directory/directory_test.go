package directory_test

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/dargueta/blocksim"
	"github.com/dargueta/blocksim/device"
	"github.com/dargueta/blocksim/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectory(t *testing.T, capacity uint) *directory.Directory {
	dev, err := device.New(capacity)
	require.NoError(t, err)
	dir, err := directory.New(dev)
	require.NoError(t, err)
	return dir
}

func mustCreate(
	t *testing.T, dir *directory.Directory, name string, size uint, method blocksim.Method,
) blocksim.FileInfo {
	info, err := dir.Create(name, size, method, blocksim.TextFile, "content of "+name)
	require.NoErrorf(t, err, "failed to create %q (%d blocks, %s)", name, size, method)
	return info
}

func TestCreateRecordsPlacement(t *testing.T) {
	dir := newDirectory(t, blocksim.DefaultCapacity)

	contiguous := mustCreate(t, dir, "a", 2, blocksim.Contiguous)
	linked := mustCreate(t, dir, "b", 3, blocksim.Linked)
	indexed := mustCreate(t, dir, "c", 3, blocksim.Indexed)

	assert.Equal(t, []blocksim.BlockID{0, 1}, contiguous.Blocks)
	assert.Nil(t, contiguous.Index)
	assert.Equal(t, []blocksim.BlockID{2, 3, 4}, linked.Blocks)
	require.NotNil(t, indexed.Index)
	assert.EqualValues(t, 5, *indexed.Index)
	assert.Equal(t, []blocksim.BlockID{6, 7, 8}, indexed.Blocks)

	assert.Equal(t, blocksim.TextFile, indexed.Type)
	assert.Equal(t, "content of c", indexed.Content)
	assert.Equal(t, 50-9, dir.FreeBlockCount())
	assert.NoError(t, dir.Verify())
}

func TestCreateRejectsBadArguments(t *testing.T) {
	dir := newDirectory(t, 10)

	_, err := dir.Create("", 1, blocksim.Linked, blocksim.TextFile, "")
	assert.ErrorIs(t, err, blocksim.ErrInvalidArgument)
	_, err = dir.Create("a", 0, blocksim.Linked, blocksim.TextFile, "")
	assert.ErrorIs(t, err, blocksim.ErrInvalidArgument)
	_, err = dir.Create("a", 1, blocksim.Method(0), blocksim.TextFile, "")
	assert.ErrorIs(t, err, blocksim.ErrInvalidArgument)
	_, err = dir.Create("a", 1, blocksim.Linked, "", "")
	assert.ErrorIs(t, err, blocksim.ErrInvalidArgument)

	assert.Equal(t, 0, dir.Len())
	assert.Equal(t, 10, dir.FreeBlockCount())
}

func TestCreateDuplicateLeavesStateUnchanged(t *testing.T) {
	dir := newDirectory(t, 10)
	mustCreate(t, dir, "a", 2, blocksim.Linked)
	filesBefore := dir.Files()
	blocksBefore := dir.DeviceSnapshot()

	for _, method := range blocksim.Methods() {
		_, err := dir.Create("a", 1, method, blocksim.TextFile, "other content")
		assert.ErrorIs(t, err, blocksim.ErrDuplicateName)
	}

	assert.Equal(t, filesBefore, dir.Files())
	assert.Equal(t, blocksBefore, dir.DeviceSnapshot())
}

func TestCreateAllocationFailureCarriesCause(t *testing.T) {
	dir := newDirectory(t, 10)
	mustCreate(t, dir, "a", 2, blocksim.Contiguous)
	mustCreate(t, dir, "gap", 4, blocksim.Contiguous)
	mustCreate(t, dir, "b", 1, blocksim.Contiguous)
	require.True(t, dir.Delete("gap"))
	blocksBefore := dir.DeviceSnapshot()

	// Seven blocks are free: 2-5 and 7-9. No run of five exists.
	_, err := dir.Create("big", 5, blocksim.Contiguous, blocksim.TextFile, "")
	assert.ErrorIs(t, err, blocksim.ErrAllocationFailed)
	assert.ErrorIs(t, err, blocksim.ErrInsufficientContiguousSpace)

	_, err = dir.Create("big", 8, blocksim.Linked, blocksim.TextFile, "")
	assert.ErrorIs(t, err, blocksim.ErrAllocationFailed)
	assert.ErrorIs(t, err, blocksim.ErrInsufficientSpace)

	_, err = dir.Create("big", 7, blocksim.Indexed, blocksim.TextFile, "")
	assert.ErrorIs(t, err, blocksim.ErrInsufficientSpace, "indexed needs an eighth block")

	_, exists := dir.Get("big")
	assert.False(t, exists)
	assert.Equal(t, blocksBefore, dir.DeviceSnapshot())

	info := mustCreate(t, dir, "big", 7, blocksim.Linked)
	assert.Equal(t, []blocksim.BlockID{2, 3, 4, 5, 7, 8, 9}, info.Blocks)
	assert.NoError(t, dir.Verify())
}

func TestCreateHugeSizeFails(t *testing.T) {
	for _, method := range blocksim.Methods() {
		t.Run(method.String(), func(t *testing.T) {
			dir := newDirectory(t, blocksim.DefaultCapacity)
			_, err := dir.Create("big", math.MaxUint, method, blocksim.TextFile, "")
			assert.ErrorIs(t, err, blocksim.ErrAllocationFailed)
			assert.Equal(t, 0, dir.Len())
			assert.Equal(t, blocksim.DefaultCapacity, dir.FreeBlockCount())
		})
	}
}

// Deleting an indexed file must free the index block as well as the data
// blocks.
func TestDeleteIndexedFreesIndexBlock(t *testing.T) {
	dir := newDirectory(t, blocksim.DefaultCapacity)
	mustCreate(t, dir, "a", 3, blocksim.Indexed)
	require.Equal(t, 46, dir.FreeBlockCount())

	assert.True(t, dir.Delete("a"))
	assert.Equal(t, 50, dir.FreeBlockCount())
	for i, state := range dir.DeviceSnapshot() {
		assert.Truef(t, state.IsFree(), "block %d still allocated after delete", i)
	}
}

func TestDeleteMissingIsNoOp(t *testing.T) {
	dir := newDirectory(t, 10)
	mustCreate(t, dir, "a", 2, blocksim.Linked)

	assert.False(t, dir.Delete("b"))
	assert.Equal(t, 1, dir.Len())
	assert.Equal(t, 8, dir.FreeBlockCount())
}

func TestDeleteThenCreateReproducesPlacement(t *testing.T) {
	for _, method := range blocksim.Methods() {
		t.Run(method.String(), func(t *testing.T) {
			dir := newDirectory(t, 30)
			mustCreate(t, dir, "x", 3, blocksim.Linked)
			mustCreate(t, dir, "y", 2, blocksim.Contiguous)
			require.True(t, dir.Delete("x"))

			first := mustCreate(t, dir, "a", 4, method)
			require.True(t, dir.Delete("a"))
			second := mustCreate(t, dir, "a", 4, method)

			assert.Equal(t, first, second)
		})
	}
}

func TestContentAndUpdate(t *testing.T) {
	dir := newDirectory(t, 10)
	original := mustCreate(t, dir, "a", 2, blocksim.Indexed)

	content, found := dir.Content("a")
	assert.True(t, found)
	assert.Equal(t, "content of a", content)

	_, found = dir.Content("b")
	assert.False(t, found)

	assert.True(t, dir.UpdateContent("a", "new text"))
	assert.False(t, dir.UpdateContent("b", "new text"))

	updated, found := dir.Get("a")
	require.True(t, found)
	assert.Equal(t, "new text", updated.Content)

	// Nothing but the content changed.
	updated.Content = original.Content
	assert.Equal(t, original, updated)
}

func TestFilesReturnsCopy(t *testing.T) {
	dir := newDirectory(t, 10)
	mustCreate(t, dir, "a", 2, blocksim.Indexed)

	files := dir.Files()
	info := files["a"]
	info.Blocks[0] = 9
	*info.Index = 9
	info.Content = "mangled"
	files["a"] = info
	delete(files, "a")
	files["ghost"] = blocksim.FileInfo{Name: "ghost"}

	assert.NoError(t, dir.Verify())
	assert.Equal(t, []string{"a"}, dir.Names())
	content, _ := dir.Content("a")
	assert.Equal(t, "content of a", content)
}

// Throw a long random sequence of operations at the directory and make sure the
// ownership invariant survives every one of them.
func TestInvariantHoldsUnderRandomOperations(t *testing.T) {
	dir := newDirectory(t, blocksim.DefaultCapacity)
	rng := rand.New(rand.NewSource(566))
	methods := blocksim.Methods()

	for step := 0; step < 2000; step++ {
		name := fmt.Sprintf("f%d", rng.Intn(20))

		switch rng.Intn(3) {
		case 0:
			size := uint(rng.Intn(8) + 1)
			method := methods[rng.Intn(len(methods))]
			freeBefore := dir.FreeBlockCount()
			_, err := dir.Create(name, size, method, blocksim.TextFile, "")
			if err != nil {
				assert.Equal(t, freeBefore, dir.FreeBlockCount(), "failed create changed the device")
			}
		case 1:
			dir.Delete(name)
		case 2:
			dir.UpdateContent(name, fmt.Sprintf("step %d", step))
		}

		require.NoErrorf(t, dir.Verify(), "invariant broken after step %d", step)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	dir := newDirectory(t, 20)
	mustCreate(t, dir, "a", 3, blocksim.Contiguous)
	mustCreate(t, dir, "b", 2, blocksim.Indexed)
	mustCreate(t, dir, "free", 4, blocksim.Linked)

	dev, err := device.FromStates(dir.DeviceSnapshot())
	require.NoError(t, err)
	restored, err := directory.Restore(dev, dir.Files())
	require.NoError(t, err)

	assert.Equal(t, dir.Files(), restored.Files())
	assert.Equal(t, dir.DeviceSnapshot(), restored.DeviceSnapshot())

	// The restored directory keeps working: deleting an indexed file still
	// releases its index block.
	require.True(t, restored.Delete("b"))
	assert.Equal(t, 20-7, restored.FreeBlockCount())
	assert.NoError(t, restored.Verify())
}

func TestRestoreDetectsCorruption(t *testing.T) {
	dir := newDirectory(t, 10)
	mustCreate(t, dir, "a", 2, blocksim.Linked)
	mustCreate(t, dir, "b", 2, blocksim.Indexed)

	testCases := []struct {
		Name   string
		Mangle func(states []blocksim.BlockState, files map[string]blocksim.FileInfo)
	}{
		{
			"orphaned block",
			func(states []blocksim.BlockState, _ map[string]blocksim.FileInfo) {
				states[9] = blocksim.OwnedBy("ghost")
			},
		},
		{
			"block not on device",
			func(states []blocksim.BlockState, _ map[string]blocksim.FileInfo) {
				states[1] = blocksim.Free
			},
		},
		{
			"missing index block",
			func(_ []blocksim.BlockState, files map[string]blocksim.FileInfo) {
				info := files["b"]
				info.Index = nil
				files["b"] = info
			},
		},
		{
			"size mismatch",
			func(_ []blocksim.BlockState, files map[string]blocksim.FileInfo) {
				info := files["a"]
				info.Size = 3
				files["a"] = info
			},
		},
		{
			"wrong name",
			func(_ []blocksim.BlockState, files map[string]blocksim.FileInfo) {
				info := files["a"]
				info.Name = "z"
				files["a"] = info
			},
		},
		{
			"zero size",
			func(_ []blocksim.BlockState, files map[string]blocksim.FileInfo) {
				files["empty"] = blocksim.FileInfo{
					Name:   "empty",
					Size:   0,
					Method: blocksim.Linked,
					Type:   blocksim.TextFile,
				}
			},
		},
		{
			"empty type",
			func(_ []blocksim.BlockState, files map[string]blocksim.FileInfo) {
				info := files["a"]
				info.Type = ""
				files["a"] = info
			},
		},
		{
			"unknown method",
			func(_ []blocksim.BlockState, files map[string]blocksim.FileInfo) {
				info := files["a"]
				info.Method = blocksim.Method(12)
				files["a"] = info
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.Name, func(t *testing.T) {
			states := dir.DeviceSnapshot()
			files := dir.Files()
			test.Mangle(states, files)

			dev, err := device.FromStates(states)
			require.NoError(t, err)
			_, err = directory.Restore(dev, files)
			assert.ErrorIs(t, err, blocksim.ErrCorrupted)
		})
	}
}

func TestNewRequiresEmptyDevice(t *testing.T) {
	dev, err := device.New(4)
	require.NoError(t, err)
	require.NoError(t, dev.MarkOwned([]blocksim.BlockID{0}, "a"))

	_, err = directory.New(dev)
	assert.ErrorIs(t, err, blocksim.ErrInvalidArgument)
}

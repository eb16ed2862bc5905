// Package testing contains helpers shared by the tests of several packages.
package testing

import (
	"testing"

	"github.com/dargueta/blocksim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RequireConsistent checks the ownership invariant using nothing but the
// collaborator surface: the blocks claimed by the files (including index
// blocks) must be disjoint, and must be exactly the non-free blocks on the
// device, each owned by the file claiming it.
func RequireConsistent(t *testing.T, fm blocksim.FileManager) {
	t.Helper()

	states := fm.DeviceSnapshot()
	claimedBy := make(map[blocksim.BlockID]string)

	for name, info := range fm.GetAllFiles() {
		require.Equal(t, name, info.Name, "directory key doesn't match file name")
		require.EqualValuesf(t, info.Size, len(info.Blocks), "%q has the wrong number of blocks", name)
		require.Equalf(
			t,
			info.Method == blocksim.Indexed,
			info.Index != nil,
			"index block presence is wrong for %q (%s)",
			name,
			info.Method)

		for _, block := range info.OwnedBlocks() {
			require.Lessf(t, int(block), len(states), "%q claims block %d past the end", name, block)
			other, taken := claimedBy[block]
			require.Falsef(t, taken, "block %d claimed by %q and %q", block, other, name)
			claimedBy[block] = name
		}
	}

	for i, state := range states {
		owner, owned := state.Owner()
		claimant, claimed := claimedBy[blocksim.BlockID(i)]
		assert.Equalf(t, claimed, owned, "block %d: claimed=%t but owned=%t", i, claimed, owned)
		if owned && claimed {
			assert.Equalf(t, claimant, owner, "block %d is claimed by %q but owned by %q", i, claimant, owner)
		}
	}
}

// CountFree returns the number of free blocks in a device snapshot.
func CountFree(states []blocksim.BlockState) int {
	free := 0
	for _, state := range states {
		if state.IsFree() {
			free++
		}
	}
	return free
}

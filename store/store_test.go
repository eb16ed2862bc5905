package store_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dargueta/blocksim"
	"github.com/dargueta/blocksim/store"
	bt "github.com/dargueta/blocksim/testing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() store.Snapshot {
	index := blocksim.BlockID(2)
	blocks := make([]blocksim.BlockState, 8)
	blocks[0] = blocksim.OwnedBy("a")
	blocks[1] = blocksim.OwnedBy("a")
	blocks[2] = blocksim.OwnedBy("free")
	blocks[3] = blocksim.OwnedBy("free")

	return store.Snapshot{
		Version:  store.SnapshotVersion,
		DeviceID: uuid.MustParse("6f1c5b4e-2a0d-4c8e-9a51-3d2b7e0f9c11"),
		Capacity: 8,
		SavedAt:  time.Date(2026, 10, 16, 12, 30, 0, 0, time.UTC),
		Blocks:   blocks,
		Files: map[string]blocksim.FileInfo{
			"a": {
				Name:    "a",
				Size:    2,
				Method:  blocksim.Contiguous,
				Blocks:  []blocksim.BlockID{0, 1},
				Content: "hello",
				Type:    blocksim.TextFile,
			},
			"free": {
				Name:    "free",
				Size:    1,
				Method:  blocksim.Indexed,
				Blocks:  []blocksim.BlockID{3},
				Index:   &index,
				Content: "",
				Type:    blocksim.TextFile,
			},
		},
	}
}

func assertSnapshotsEqual(t *testing.T, expected, actual store.Snapshot) {
	assert.Equal(t, expected.Version, actual.Version)
	assert.Equal(t, expected.DeviceID, actual.DeviceID)
	assert.Equal(t, expected.Capacity, actual.Capacity)
	assert.Truef(
		t, expected.SavedAt.Equal(actual.SavedAt),
		"timestamps differ: %s != %s", expected.SavedAt, actual.SavedAt)
	assert.Equal(t, expected.Blocks, actual.Blocks)
	assert.Equal(t, expected.Files, actual.Files)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := sampleSnapshot()

	var buffer bytes.Buffer
	require.NoError(t, store.Encode(&buffer, original))

	decoded, err := store.Decode(&buffer)
	require.NoError(t, err)
	assertSnapshotsEqual(t, original, decoded)
}

func TestEncodedLayout(t *testing.T) {
	ms := store.NewMemoryStore()
	require.NoError(t, ms.Save(sampleSnapshot()))

	stream := bt.LoadSnapshotJSON(t, ms.Bytes())
	raw, err := io.ReadAll(stream)
	require.NoError(t, err)

	var document struct {
		Capacity uint                       `json:"capacity"`
		Blocks   []*string                  `json:"blocks"`
		Files    map[string]json.RawMessage `json:"files"`
	}
	require.NoError(t, json.Unmarshal(raw, &document))

	assert.EqualValues(t, 8, document.Capacity)
	require.Len(t, document.Blocks, 8, "there must be one label per block")
	assert.Equal(t, "a", *document.Blocks[0])
	assert.Equal(t, "free", *document.Blocks[2], "a file named free is still an owner")
	assert.Nil(t, document.Blocks[4], "free blocks are stored as null")
	assert.Len(t, document.Files, 2)
	assert.Contains(t, string(document.Files["free"]), `"method":"Indexed"`)
	assert.Contains(t, string(document.Files["free"]), `"index":2`)
	assert.Contains(t, string(document.Files["a"]), `"index":null`)
}

func TestDecodeRejectsInvalidSnapshots(t *testing.T) {
	testCases := []struct {
		Name     string
		Document string
	}{
		{"wrong version", `{"version": 9, "capacity": 1, "blocks": [null], "files": {}}`},
		{"zero capacity", `{"version": 1, "capacity": 0, "blocks": [], "files": {}}`},
		{"short block array", `{"version": 1, "capacity": 3, "blocks": [null], "files": {}}`},
		{"bad method", `{"version": 1, "capacity": 1, "blocks": ["a"], "files": {"a": {"method": "Sideways"}}}`},
		{"not json", `{{{{`},
	}

	for _, test := range testCases {
		t.Run(test.Name, func(t *testing.T) {
			encoded := bt.EncodeSnapshotJSON(t, test.Document)
			_, err := store.Decode(bytes.NewReader(encoded))
			assert.Error(t, err)
		})
	}
}

func TestDecodeVersionErrorIsPersistenceFailure(t *testing.T) {
	encoded := bt.EncodeSnapshotJSON(
		t, `{"version": 2, "capacity": 1, "blocks": [null], "files": {}}`)
	_, err := store.Decode(bytes.NewReader(encoded))
	assert.ErrorIs(t, err, blocksim.ErrPersistenceFailure)
}

func TestMemoryStore(t *testing.T) {
	ms := store.NewMemoryStore()

	_, found, err := ms.Load()
	require.NoError(t, err)
	assert.False(t, found, "new store shouldn't have a snapshot")
	assert.Nil(t, ms.Bytes())

	original := sampleSnapshot()
	require.NoError(t, ms.Save(original))

	loaded, found, err := ms.Load()
	require.NoError(t, err)
	require.True(t, found)
	assertSnapshotsEqual(t, original, loaded)
}

func TestFileStoreMissingFile(t *testing.T) {
	fs := store.NewFileStore(filepath.Join(t.TempDir(), "state.blocksim"))

	_, found, err := fs.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.blocksim")
	fs := store.NewFileStore(path)
	assert.Equal(t, path, fs.Path())

	original := sampleSnapshot()
	require.NoError(t, fs.Save(original))

	// The temporary file must be gone after a successful save.
	_, err := os.Stat(path + ".rewrite")
	assert.True(t, os.IsNotExist(err), "rewrite file left behind")

	loaded, found, err := store.NewFileStore(path).Load()
	require.NoError(t, err)
	require.True(t, found)
	assertSnapshotsEqual(t, original, loaded)

	// Saving again replaces the whole snapshot.
	updated := sampleSnapshot()
	delete(updated.Files, "a")
	updated.Blocks[0] = blocksim.Free
	updated.Blocks[1] = blocksim.Free
	require.NoError(t, fs.Save(updated))

	loaded, found, err = fs.Load()
	require.NoError(t, err)
	require.True(t, found)
	assertSnapshotsEqual(t, updated, loaded)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.blocksim")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, found, err := store.NewFileStore(path).Load()
	assert.Error(t, err)
	assert.False(t, found)
}

// If the snapshot can't be written, the previous one must survive.
func TestFileStoreFailedSaveKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.blocksim")
	fs := store.NewFileStore(path)
	original := sampleSnapshot()
	require.NoError(t, fs.Save(original))

	// Put a directory where the temporary file needs to go.
	require.NoError(t, os.Mkdir(path+".rewrite", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path+".rewrite", "x"), nil, 0o644))

	err := fs.Save(store.Snapshot{})
	assert.Error(t, err)

	loaded, found, err := fs.Load()
	require.NoError(t, err)
	require.True(t, found)
	assertSnapshotsEqual(t, original, loaded)
}

package testing

import (
	"bytes"
	"io"
	"testing"

	"github.com/dargueta/blocksim/utilities/compression"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// LoadSnapshotJSON takes an encoded snapshot, as written by a store, and
// returns a stream over the uncompressed JSON document.
//
//   - Writes to the stream do not affect `encodedSnapshot`.
//   - The stream's size is fixed to the size of the JSON document.
func LoadSnapshotJSON(t *testing.T, encodedSnapshot []byte) io.ReadWriteSeeker {
	require.Greater(t, len(encodedSnapshot), 0, "encoded snapshot is empty")

	raw, err := compression.DecompressToBytes(bytes.NewReader(encodedSnapshot))
	require.NoError(t, err, "failed to decompress snapshot")
	require.Greater(t, len(raw), 0, "decompressed snapshot is empty")
	return bytesextra.NewReadWriteSeeker(raw)
}

// EncodeSnapshotJSON compresses a raw JSON document the way a store would, so
// tests can feed hand-written snapshots to a store.
func EncodeSnapshotJSON(t *testing.T, document string) []byte {
	encoded, err := compression.CompressBytes([]byte(document))
	require.NoError(t, err, "failed to compress snapshot document")
	return encoded
}

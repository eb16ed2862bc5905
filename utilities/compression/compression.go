package compression

import (
	"bytes"
	"compress/gzip"
	"io"
)

// Compress run-length encodes `input` and gzips the result into `output`.
//
// The returned int64 is the number of bytes of RLE8 data fed to the gzip
// stream, not the size of the compressed output.
func Compress(input io.Reader, output io.Writer) (int64, error) {
	gzWriter, err := gzip.NewWriterLevel(output, gzip.BestCompression)
	if err != nil {
		return 0, err
	}

	n, err := CompressRLE8(input, gzWriter)
	if err != nil {
		gzWriter.Close()
		return n, err
	}
	return n, gzWriter.Close()
}

// Decompress reverses [Compress]. The returned int64 gives the number of bytes
// written to `output`, i.e. the original size.
func Decompress(input io.Reader, output io.Writer) (int64, error) {
	gzReader, err := gzip.NewReader(input)
	if err != nil {
		return 0, err
	}
	defer gzReader.Close()
	return DecompressRLE8(gzReader, output)
}

// CompressBytes is a convenience wrapper around [Compress] for data already in
// memory.
func CompressBytes(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	if _, err := Compress(bytes.NewReader(data), &buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DecompressToBytes is a convenience wrapper around [Decompress] that returns
// the original data in a new slice.
func DecompressToBytes(input io.Reader) ([]byte, error) {
	var buffer bytes.Buffer
	if _, err := Decompress(input, &buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

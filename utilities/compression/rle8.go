package compression

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// maxRLE8Run is the longest run a single RLE8 group can hold: two literal
// bytes plus a repeat count of up to 255.
const maxRLE8Run = 257

// CompressRLE8 encodes `input` into `output` until the input is exhausted. It
// returns the number of bytes written.
func CompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	grouper := NewRunLengthGrouper(input)
	written := int64(0)

	emit := func(data ...byte) error {
		n, err := output.Write(data)
		written += int64(n)
		return err
	}

	for {
		run, err := grouper.GetNextRun()
		if errors.Is(err, io.EOF) {
			return written, nil
		} else if err != nil {
			return written, err
		}

		for run.RunLength >= 2 {
			groupSize := run.RunLength
			if groupSize > maxRLE8Run {
				groupSize = maxRLE8Run
			}
			if err := emit(run.Byte, run.Byte, byte(groupSize-2)); err != nil {
				return written, err
			}
			run.RunLength -= groupSize
		}

		if run.RunLength == 1 {
			if err := emit(run.Byte); err != nil {
				return written, err
			}
		}
	}
}

// DecompressRLE8 decodes RLE8 data from `input` into `output`. It returns the
// number of bytes written. Input ending right after a repeated pair, where the
// repeat count should be, fails with an error wrapping io.ErrUnexpectedEOF.
func DecompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	written := int64(0)
	previous := -1

	for {
		current, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			return written, nil
		} else if err != nil {
			return written, fmt.Errorf("error reading input: %w", err)
		}

		var chunk []byte
		if int(current) == previous {
			count, err := source.ReadByte()
			if errors.Is(err, io.EOF) {
				return written, fmt.Errorf(
					"%w: missing repeat count after two %02x bytes",
					io.ErrUnexpectedEOF,
					current)
			} else if err != nil {
				return written, fmt.Errorf("error reading input: %w", err)
			}

			// One copy was already written on the previous iteration.
			chunk = bytes.Repeat([]byte{current}, int(count)+1)
			previous = -1
		} else {
			chunk = []byte{current}
			previous = int(current)
		}

		n, err := output.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write to output: %w", err)
		}
	}
}

package compression

import (
	"bufio"
	"io"
)

// ByteRun is a single run of one byte value.
type ByteRun struct {
	Byte byte
	// RunLength is the number of times the byte occurs. It's at least 1 for a
	// valid run.
	RunLength int
}

// InvalidRLERun is returned together with an error, including io.EOF.
var InvalidRLERun = ByteRun{}

// RunLengthGrouper splits a byte stream into runs of identical bytes.
type RunLengthGrouper struct {
	rd *bufio.Reader
}

func NewRunLengthGrouper(rd io.Reader) RunLengthGrouper {
	return RunLengthGrouper{rd: bufio.NewReader(rd)}
}

// GetNextRun returns the next run in the stream. At the end of the stream it
// returns [InvalidRLERun] and io.EOF.
func (grouper RunLengthGrouper) GetNextRun() (ByteRun, error) {
	first, err := grouper.rd.ReadByte()
	if err != nil {
		return InvalidRLERun, err
	}

	run := ByteRun{Byte: first, RunLength: 1}
	for {
		next, err := grouper.rd.ReadByte()
		if err == io.EOF {
			return run, nil
		} else if err != nil {
			return InvalidRLERun, err
		}

		if next != first {
			grouper.rd.UnreadByte()
			return run, nil
		}
		run.RunLength++
	}
}

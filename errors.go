package blocksim

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// SimulatorError is the interface implemented by every error the simulator
// returns. Errors derived from one of the sentinel values below always satisfy
// errors.Is against that sentinel.
type SimulatorError interface {
	error
	WithMessage(message string) SimulatorError
	Wrap(err error) SimulatorError
}

type baseSimulatorError string

const rootError = baseSimulatorError("")

// ErrDuplicateName is returned when creating a file whose name is already in
// the directory.
var ErrDuplicateName = rootError.WithMessage("File exists")

// ErrInsufficientSpace is returned by the linked and indexed strategies when the
// device has fewer free blocks than the request needs.
var ErrInsufficientSpace = rootError.WithMessage("No space left on device")

// ErrInsufficientContiguousSpace is returned by the contiguous strategy when no
// single run of free blocks is long enough, regardless of total free space.
var ErrInsufficientContiguousSpace = rootError.WithMessage("No contiguous run of free blocks large enough")

// ErrAllocationFailed wraps the strategy-specific cause of a failed create.
var ErrAllocationFailed = rootError.WithMessage("Allocation failed")

var ErrNotFound = rootError.WithMessage("No such file")
var ErrInvalidArgument = rootError.WithMessage("Invalid argument")

// ErrPersistenceFailure means the in-memory change was applied but could not be
// made durable, or that a stored snapshot could not be read back.
var ErrPersistenceFailure = rootError.WithMessage("Snapshot could not be persisted")

// ErrCorrupted means the device and the directory disagree about block
// ownership.
var ErrCorrupted = rootError.WithMessage("Structure needs cleaning")

func (e baseSimulatorError) Error() string {
	return string(e)
}

func (e baseSimulatorError) WithMessage(message string) SimulatorError {
	return customSimulatorError{
		message:       message,
		originalError: e,
	}
}

func (e baseSimulatorError) Wrap(err error) SimulatorError {
	return customSimulatorError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customSimulatorError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customSimulatorError) Error() string {
	return e.message
}

func (e customSimulatorError) WithMessage(message string) SimulatorError {
	return customSimulatorError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customSimulatorError) Wrap(err error) SimulatorError {
	return customSimulatorError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customSimulatorError) Unwrap() error {
	return e.originalError
}

package blocksim

import (
	"encoding/json"
	"fmt"
)

// BlockID is the zero-based index of a block on the device.
type BlockID uint

// DefaultCapacity is the number of blocks on a device when nothing else is
// specified.
const DefaultCapacity = 50

// Method identifies an allocation strategy.
type Method int

const (
	Contiguous Method = iota + 1
	Linked
	Indexed
)

var methodNames = map[Method]string{
	Contiguous: "Contiguous",
	Linked:     "Linked",
	Indexed:    "Indexed",
}

// Methods returns all allocation strategies in the order they're presented to
// users.
func Methods() []Method {
	return []Method{Contiguous, Linked, Indexed}
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// IsValid returns true if m is one of the defined strategies.
func (m Method) IsValid() bool {
	_, ok := methodNames[m]
	return ok
}

// ParseMethod converts a strategy name to a Method. Matching is exact.
func ParseMethod(name string) (Method, error) {
	for method, methodName := range methodNames {
		if methodName == name {
			return method, nil
		}
	}
	return 0, ErrInvalidArgument.WithMessage(
		fmt.Sprintf("unknown allocation method %q", name))
}

func (m Method) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, ErrInvalidArgument.WithMessage(
			fmt.Sprintf("can't serialize invalid method %d", int(m)))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// FileType is the tag describing a file's payload. Only text is supported.
type FileType string

const TextFile FileType = "Text"

////////////////////////////////////////////////////////////////////////////////
// Block state

// BlockState is the state of a single block: either free, or owned by exactly
// one file. The zero value is a free block.
//
// Ownership is kept separate from the name space, so a file may be called
// "free" without being confused with an unallocated block.
type BlockState struct {
	owner string
	owned bool
}

// Free is the state of an unallocated block.
var Free = BlockState{}

// OwnedBy returns the state of a block belonging to the named file.
func OwnedBy(name string) BlockState {
	return BlockState{owner: name, owned: true}
}

func (s BlockState) IsFree() bool {
	return !s.owned
}

// Owner returns the name of the file owning the block. The boolean is false
// for free blocks.
func (s BlockState) Owner() (string, bool) {
	return s.owner, s.owned
}

func (s BlockState) String() string {
	if !s.owned {
		return "<free>"
	}
	return s.owner
}

// MarshalJSON encodes a free block as null and an owned block as the owner's
// name.
func (s BlockState) MarshalJSON() ([]byte, error) {
	if !s.owned {
		return []byte("null"), nil
	}
	return json.Marshal(s.owner)
}

func (s *BlockState) UnmarshalJSON(data []byte) error {
	var owner *string
	if err := json.Unmarshal(data, &owner); err != nil {
		return err
	}
	if owner == nil {
		*s = Free
	} else {
		*s = OwnedBy(*owner)
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Directory entries

// FileInfo is the metadata the directory keeps about a file.
type FileInfo struct {
	Name   string    `json:"name"`
	Size   uint      `json:"size"`
	Method Method    `json:"method"`
	Blocks []BlockID `json:"blocks"`
	// Index is the index block of an indexed file, and nil for every other
	// method.
	Index   *BlockID `json:"index"`
	Content string   `json:"content"`
	Type    FileType `json:"type"`
}

// Clone returns a deep copy of the file info, so that the copy can be handed to
// callers without letting them modify the directory.
func (f FileInfo) Clone() FileInfo {
	clone := f
	clone.Blocks = append([]BlockID(nil), f.Blocks...)
	if f.Index != nil {
		index := *f.Index
		clone.Index = &index
	}
	return clone
}

// OwnedBlocks returns every block the file holds on the device, including the
// index block if there is one.
func (f FileInfo) OwnedBlocks() []BlockID {
	blocks := make([]BlockID, 0, len(f.Blocks)+1)
	if f.Index != nil {
		blocks = append(blocks, *f.Index)
	}
	return append(blocks, f.Blocks...)
}

////////////////////////////////////////////////////////////////////////////////
// Collaborator surface

// FileManager is the interface consumed by presentation layers: forms, listings,
// block map renderers, the command line.
//
// Naming and allocation failures never modify state. A returned error matching
// ErrPersistenceFailure means the change *was* applied in memory but could not
// be made durable.
type FileManager interface {
	// CreateFile allocates `size` blocks for a new file using `method`.
	CreateFile(name string, size uint, method Method, fileType FileType, content string) error
	// DeleteFile removes the file and frees its blocks. Deleting a file that
	// doesn't exist is not an error; the boolean tells whether it existed.
	DeleteFile(name string) (bool, error)
	// GetAllFiles returns a copy of the directory.
	GetAllFiles() map[string]FileInfo
	GetFileContent(name string) (string, bool)
	// UpdateFileContent replaces the content of a file without touching its
	// blocks. The boolean is false if the file doesn't exist.
	UpdateFileContent(name string, content string) (bool, error)
	// DeviceSnapshot returns the state of every block, in block order.
	DeviceSnapshot() []BlockState
}

// Package directory keeps the table of files on a device and ties each file to
// the blocks it owns.
//
// The directory is the only thing that should modify its device. As long as
// that holds, every non-free block on the device belongs to exactly one file in
// the directory and every block a file lists is owned by that file.
package directory

import (
	"fmt"
	"sort"

	"github.com/dargueta/blocksim"
	"github.com/dargueta/blocksim/allocation"
	"github.com/dargueta/blocksim/device"
)

type record struct {
	info      blocksim.FileInfo
	allocator allocation.Allocator
}

func (r *record) placement() allocation.Placement {
	return allocation.Placement{Blocks: r.info.Blocks, Index: r.info.Index}
}

// Directory maps file names to their metadata and owns the device the files
// live on. It isn't safe for concurrent use.
type Directory struct {
	dev     *device.Device
	records map[string]*record
}

// New creates an empty directory on top of `dev`. The device must be entirely
// free.
func New(dev *device.Device) (*Directory, error) {
	if free := dev.FreeBlockCount(); free != int(dev.Capacity()) {
		return nil, blocksim.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"new directory needs an empty device, %d of %d blocks are in use",
				int(dev.Capacity())-free,
				dev.Capacity()))
	}
	return &Directory{
		dev:     dev,
		records: make(map[string]*record),
	}, nil
}

// Restore rebuilds a directory from a device and the file table that goes with
// it, e.g. after loading a snapshot. The pair must satisfy the ownership
// invariant; if not, this fails with ErrCorrupted.
func Restore(dev *device.Device, files map[string]blocksim.FileInfo) (*Directory, error) {
	dir := &Directory{
		dev:     dev,
		records: make(map[string]*record, len(files)),
	}

	for name, info := range files {
		if info.Name == "" {
			info.Name = name
		} else if info.Name != name {
			return nil, blocksim.ErrCorrupted.WithMessage(
				fmt.Sprintf("file stored under %q calls itself %q", name, info.Name))
		}

		alloc, err := allocation.ForMethod(info.Method)
		if err != nil {
			return nil, blocksim.ErrCorrupted.Wrap(err)
		}
		dir.records[name] = &record{info: info.Clone(), allocator: alloc}
	}

	if err := dir.Verify(); err != nil {
		return nil, err
	}
	return dir, nil
}

func validateCreate(name string, size uint, method blocksim.Method, fileType blocksim.FileType) error {
	switch {
	case name == "":
		return blocksim.ErrInvalidArgument.WithMessage("file name can't be empty")
	case size < 1:
		return blocksim.ErrInvalidArgument.WithMessage("a file must have at least one block")
	case !method.IsValid():
		return blocksim.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("unknown allocation method %s", method))
	case fileType == "":
		return blocksim.ErrInvalidArgument.WithMessage("file type can't be empty")
	}
	return nil
}

// Create allocates blocks for a new file and adds it to the directory.
//
// If the name is taken this fails with ErrDuplicateName. If the strategy can't
// place the file it fails with ErrAllocationFailed, wrapping the strategy's own
// error. Either way, neither the directory nor the device is changed.
func (dir *Directory) Create(
	name string,
	size uint,
	method blocksim.Method,
	fileType blocksim.FileType,
	content string,
) (blocksim.FileInfo, error) {
	if err := validateCreate(name, size, method, fileType); err != nil {
		return blocksim.FileInfo{}, err
	}
	if _, exists := dir.records[name]; exists {
		return blocksim.FileInfo{}, blocksim.ErrDuplicateName.WithMessage(name)
	}

	alloc, err := allocation.ForMethod(method)
	if err != nil {
		return blocksim.FileInfo{}, err
	}

	placement, err := alloc.Allocate(dir.dev, name, size)
	if err != nil {
		return blocksim.FileInfo{}, blocksim.ErrAllocationFailed.Wrap(err)
	}

	rec := &record{
		info: blocksim.FileInfo{
			Name:    name,
			Size:    size,
			Method:  method,
			Blocks:  placement.Blocks,
			Index:   placement.Index,
			Content: content,
			Type:    fileType,
		},
		allocator: alloc,
	}
	dir.records[name] = rec
	return rec.info.Clone(), nil
}

// Delete removes a file and frees all of its blocks, including the index block
// of an indexed file. Deleting a file that doesn't exist does nothing; the
// return value says whether the file was there.
func (dir *Directory) Delete(name string) bool {
	rec, exists := dir.records[name]
	if !exists {
		return false
	}

	rec.allocator.Release(dir.dev, name, rec.placement())
	delete(dir.records, name)
	return true
}

// Get returns a copy of a single file's metadata.
func (dir *Directory) Get(name string) (blocksim.FileInfo, bool) {
	rec, exists := dir.records[name]
	if !exists {
		return blocksim.FileInfo{}, false
	}
	return rec.info.Clone(), true
}

// Files returns a copy of the whole directory. Changing the returned map or
// anything in it has no effect on the directory.
func (dir *Directory) Files() map[string]blocksim.FileInfo {
	files := make(map[string]blocksim.FileInfo, len(dir.records))
	for name, rec := range dir.records {
		files[name] = rec.info.Clone()
	}
	return files
}

// Names returns the names of all files in sorted order.
func (dir *Directory) Names() []string {
	names := make([]string, 0, len(dir.records))
	for name := range dir.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (dir *Directory) Len() int {
	return len(dir.records)
}

// Content returns the content of a file. The boolean is false if there's no
// such file.
func (dir *Directory) Content(name string) (string, bool) {
	rec, exists := dir.records[name]
	if !exists {
		return "", false
	}
	return rec.info.Content, true
}

// UpdateContent replaces the content of a file. Its blocks, size and method are
// not touched. Returns false if there's no such file.
func (dir *Directory) UpdateContent(name, content string) bool {
	rec, exists := dir.records[name]
	if !exists {
		return false
	}
	rec.info.Content = content
	return true
}

// DeviceSnapshot returns the state of every block on the device.
func (dir *Directory) DeviceSnapshot() []blocksim.BlockState {
	return dir.dev.Snapshot()
}

func (dir *Directory) FreeBlockCount() int {
	return dir.dev.FreeBlockCount()
}

func (dir *Directory) Capacity() uint {
	return dir.dev.Capacity()
}

// Verify checks that the directory and the device agree on who owns what:
//
//   - Every file's metadata is valid for a new file (non-empty name and type,
//     at least one block, known method) and self-consistent (block count
//     matches its size, index block present exactly when the method is
//     Indexed).
//   - No block is claimed by two files, or twice by the same file.
//   - Every block a file claims is owned by that file on the device.
//   - Every owned block on the device is claimed by the file that owns it.
//
// It returns ErrCorrupted describing the first problem found.
func (dir *Directory) Verify() error {
	claimedBy := make(map[blocksim.BlockID]string)

	for _, name := range dir.Names() {
		info := dir.records[name].info

		if err := validateCreate(info.Name, info.Size, info.Method, info.Type); err != nil {
			return blocksim.ErrCorrupted.Wrap(err)
		}
		if uint(len(info.Blocks)) != info.Size {
			return blocksim.ErrCorrupted.WithMessage(
				fmt.Sprintf("%q has size %d but %d data blocks", name, info.Size, len(info.Blocks)))
		}
		if (info.Method == blocksim.Indexed) != (info.Index != nil) {
			return blocksim.ErrCorrupted.WithMessage(
				fmt.Sprintf("%q uses %s allocation but index block presence disagrees", name, info.Method))
		}

		for _, block := range info.OwnedBlocks() {
			if other, taken := claimedBy[block]; taken {
				return blocksim.ErrCorrupted.WithMessage(
					fmt.Sprintf("block %d is claimed by both %q and %q", block, other, name))
			}
			claimedBy[block] = name

			state, err := dir.dev.State(block)
			if err != nil {
				return blocksim.ErrCorrupted.Wrap(err)
			}
			if state != blocksim.OwnedBy(name) {
				return blocksim.ErrCorrupted.WithMessage(
					fmt.Sprintf("%q claims block %d but the device has it as %s", name, block, state))
			}
		}
	}

	for i, state := range dir.dev.Snapshot() {
		owner, owned := state.Owner()
		if !owned {
			continue
		}
		if claimedBy[blocksim.BlockID(i)] != owner {
			return blocksim.ErrCorrupted.WithMessage(
				fmt.Sprintf("block %d is owned by %q but no file claims it", i, owner))
		}
	}
	return nil
}

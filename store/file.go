package store

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const (
	defaultFileMode = 0o644
	rewriteSuffix   = ".rewrite"
)

// FileStore keeps the snapshot in a single file. Saves never modify the file in
// place: the new snapshot goes to a temporary file next to it, which is synced
// and renamed over the old one.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the snapshot file.
func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Load() (Snapshot, bool, error) {
	fp, err := os.Open(fs.path)
	if os.IsNotExist(err) {
		return Snapshot{}, false, nil
	} else if err != nil {
		return Snapshot{}, false, errors.Wrapf(err, "failed to open snapshot %q", fs.path)
	}
	defer fp.Close()

	snapshot, err := Decode(bufio.NewReader(fp))
	if err != nil {
		return Snapshot{}, false, errors.WithMessagef(err, "bad snapshot in %q", fs.path)
	}
	return snapshot, true, nil
}

func (fs *FileStore) Save(snapshot Snapshot) error {
	rewritePath := fs.path + rewriteSuffix
	if err := writeSnapshotFile(rewritePath, snapshot); err != nil {
		if removeErr := os.Remove(rewritePath); removeErr != nil && !os.IsNotExist(removeErr) {
			return multierror.Append(err, removeErr)
		}
		return err
	}

	if err := os.Rename(rewritePath, fs.path); err != nil {
		return errors.Wrapf(err, "failed to move snapshot into place at %q", fs.path)
	}
	return syncDir(filepath.Dir(fs.path))
}

func writeSnapshotFile(path string, snapshot Snapshot) error {
	fp, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}

	writer := bufio.NewWriter(fp)
	if err := Encode(writer, snapshot); err != nil {
		fp.Close()
		return err
	}
	if err := writer.Flush(); err != nil {
		fp.Close()
		return errors.Wrapf(err, "failed to write %q", path)
	}
	if err := fp.Sync(); err != nil {
		fp.Close()
		return errors.Wrapf(err, "failed to sync %q", path)
	}
	return errors.Wrapf(fp.Close(), "failed to close %q", path)
}

// syncDir makes the rename of a file inside `dir` durable.
func syncDir(dir string) error {
	fp, err := os.Open(dir)
	if err != nil {
		return errors.Wrapf(err, "failed to open directory %q", dir)
	}
	err = fp.Sync()
	closeErr := fp.Close()
	if err != nil {
		return errors.Wrapf(err, "failed to sync directory %q", dir)
	}
	return errors.Wrapf(closeErr, "failed to close directory %q", dir)
}

// Package storage abstracts the filesystem or object-store operations the
// fragment writer needs. The write path performs only whole-file and
// append-style I/O, so the interface stays deliberately narrow; richer
// backends (object stores) can implement it by buffering appends.
package storage

import (
	"errors"
	"fmt"

	"github.com/vincentschut/tiledb/errs"
)

// ErrNotExist is returned by Read and List when the target is absent.
var ErrNotExist = errors.New("storage: path does not exist")

// Backend performs the durable I/O of the write path. Implementations must
// make Sync a durability barrier: data written and synced before a crash is
// readable afterwards.
type Backend interface {
	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error

	// Write creates or truncates the file at path with the given contents.
	Write(path string, data []byte) error

	// Append appends data to the file at path, creating it if needed.
	Append(path string, data []byte) error

	// Read returns the entire contents of the file at path.
	Read(path string) ([]byte, error)

	// Exists reports whether a file or directory exists at path.
	Exists(path string) (bool, error)

	// List returns the entry names directly under the directory at path.
	List(path string) ([]string, error)

	// Remove removes the file at path.
	Remove(path string) error

	// RemoveAll removes path and everything below it. Removing a missing
	// path is not an error.
	RemoveAll(path string) error

	// Rename atomically moves a file or directory. Used to restamp a
	// global-order fragment's name with its submission window before
	// commit.
	Rename(oldPath, newPath string) error

	// Sync flushes the file at path to durable storage.
	Sync(path string) error

	// SyncDir flushes the directory entry metadata at path, making freshly
	// created files durable by name.
	SyncDir(path string) error
}

// WrapErr tags a backend failure with the storage sentinel so callers can
// classify it with errors.Is.
func WrapErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %v", errs.ErrStorage, op, path, err)
}

// Package storage abstracts the directory tree beneath the bucket root.
//
// The interfaces mirror a handle-based file system: a Dir hands out
// child directories and files by name, and writes go through a Writable
// that stages bytes in a sibling swap file and atomically renames it
// into place on Close. Two implementations are provided: OS-backed
// (osfs.go) and in-memory (memfs.go).
package storage

import (
	"errors"
	"io"
	"strings"
)

// SwapSuffix marks an in-progress write. A swap file present at startup
// indicates a crashed write and is safe to delete.
const SwapSuffix = ".crswap"

var (
	// ErrNotFound reports a missing directory or file entry.
	ErrNotFound = errors.New("storage: entry not found")

	// ErrClosed reports use of a Writable after Close or Abort.
	ErrClosed = errors.New("storage: writable is closed")
)

// Dir is a handle to one directory.
type Dir interface {
	// GetDir returns a handle to the named child directory, creating it
	// when create is true. Without create, a missing directory yields
	// ErrNotFound.
	GetDir(name string, create bool) (Dir, error)

	// GetFile returns a handle to the named file, creating an empty
	// file when create is true. Without create, a missing file yields
	// ErrNotFound.
	GetFile(name string, create bool) (File, error)

	// RemoveEntry removes the named child. Removing a non-empty
	// directory requires recursive. Removing a missing entry yields
	// ErrNotFound.
	RemoveEntry(name string, recursive bool) error

	// Exists reports whether the named child exists.
	Exists(name string) (bool, error)

	// List returns the names of all children in unspecified order.
	List() ([]string, error)
}

// File is a handle to one file.
type File interface {
	// Size returns the current byte length.
	Size() (int64, error)

	// Open returns a reader over the current contents.
	Open() (io.ReadCloser, error)

	// ReadAll returns the full current contents.
	ReadAll() ([]byte, error)

	// CreateWritable stages a new write. With keepExistingData the swap
	// file starts as a copy of the current contents; otherwise it
	// starts empty. The file's visible contents are untouched until the
	// Writable's Close.
	CreateWritable(keepExistingData bool) (Writable, error)
}

// Writable is an in-progress atomic write. Bytes land in a swap file;
// Close renames it over the target, Abort discards it. Exactly one of
// Close or Abort must be called.
type Writable interface {
	io.Writer
	Close() error
	Abort() error
}

// CleanSwap removes leftover swap files one level below dir: for each
// child directory, every entry ending in SwapSuffix is deleted. It is
// called once at startup to sweep the debris of crashed writes.
func CleanSwap(dir Dir) (int, error) {
	children, err := dir.List()
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, name := range children {
		child, err := dir.GetDir(name, false)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // plain file at this level
			}

			return removed, err
		}

		entries, err := child.List()
		if err != nil {
			return removed, err
		}

		for _, entry := range entries {
			if !strings.HasSuffix(entry, SwapSuffix) {
				continue
			}

			if err := child.RemoveEntry(entry, false); err != nil && !errors.Is(err, ErrNotFound) {
				return removed, err
			}

			removed++
		}
	}

	return removed, nil
}

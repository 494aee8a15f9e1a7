// Package storage defines the byte-oriented Storage port the object engine
// depends on (§1, component C3). Concrete backends (local filesystem,
// object stores) are collaborators outside the core; this package only
// states the interface. A reference local-filesystem implementation lives
// in storage/localfs; this repository's own tests use storage/memfs.
package storage

import (
	"context"
	"io"
)

// Entry describes one item returned by Backend.List.
type Entry struct {
	Name  string // path relative to the listed directory
	IsDir bool
}

// Backend is the storage port the object engine calls for every byte-level
// operation. Implementations must treat paths as "/"-separated and relative
// to whatever root the Backend was constructed against.
type Backend interface {
	// Read opens name for reading. The caller must Close the returned
	// reader. Returns an error satisfying errors.Is(err, fs.ErrNotExist) if
	// name does not exist.
	Read(ctx context.Context, name string) (io.ReadCloser, error)

	// Write writes the full content of r to name, creating parent
	// directories as needed and overwriting any existing file at name. It
	// returns the number of bytes written.
	Write(ctx context.Context, name string, r io.Reader) (int64, error)

	// Exists reports whether name exists (as a file or directory).
	Exists(ctx context.Context, name string) (bool, error)

	// List lists the contents of dir. If recursive is true, Name values for
	// nested entries are "/"-joined relative paths from dir; IsDir is
	// reported for every level, not just leaves. The order of the returned
	// entries is unspecified; callers that need a deterministic order must
	// sort them.
	List(ctx context.Context, dir string, recursive bool) ([]Entry, error)

	// Move atomically renames src to dst. It must fail without partial
	// effect if dst already exists: this is the linearization point the
	// commit engine relies on to detect concurrent commits (§5, §4.5 step
	// 6a).
	Move(ctx context.Context, src, dst string) error

	// Delete removes name. If name is a directory, its entire contents are
	// removed. A no-op (not an error) if name does not exist.
	Delete(ctx context.Context, name string) error
}

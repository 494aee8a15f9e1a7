// Package localfs is a reference Storage backend (storage.Backend) rooted at
// a directory on the local filesystem, for running the commit and
// validation engines against real files without a network-backed object
// store (this repository's own tests use storage/memfs instead); production deployments
// are expected to supply their own Backend (cloud blob storage, etc.).
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ocflcore/ocfl/storage"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Backend implements storage.Backend rooted at a directory on the local
// filesystem.
type Backend struct {
	root string // absolute OS path
}

var _ storage.Backend = (*Backend)(nil)

// New returns a Backend rooted at root, creating root if it does not exist.
func New(root string) (*Backend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("localfs: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("localfs: %w", err)
	}
	return &Backend{root: abs}, nil
}

// Root returns the backend's absolute OS-native root directory.
func (b *Backend) Root() string { return b.root }

func (b *Backend) native(name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: "localfs", Path: name, Err: errors.New("invalid path")}
	}
	return filepath.Join(b.root, filepath.FromSlash(name)), nil
}

func (b *Backend) Read(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := b.native(name)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (b *Backend) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	full, err := b.native(name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), dirPerm); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, r)
}

func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := b.native(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (b *Backend) List(ctx context.Context, dir string, recursive bool) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := b.native(dir)
	if err != nil {
		return nil, err
	}
	var entries []storage.Entry
	if !recursive {
		des, err := os.ReadDir(full)
		if err != nil {
			return nil, err
		}
		for _, de := range des {
			entries = append(entries, storage.Entry{Name: de.Name(), IsDir: de.IsDir()})
		}
		return entries, nil
	}
	err = filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == full {
			return nil
		}
		rel, err := filepath.Rel(full, path)
		if err != nil {
			return err
		}
		entries = append(entries, storage.Entry{Name: filepath.ToSlash(rel), IsDir: d.IsDir()})
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Move renames src to dst. It refuses to overwrite an existing dst: os.Rename
// would silently replace it on POSIX systems, defeating the role Move plays
// as the commit engine's linearization point (storage.Backend.Move).
func (b *Backend) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullSrc, err := b.native(src)
	if err != nil {
		return err
	}
	fullDst, err := b.native(dst)
	if err != nil {
		return err
	}
	if strings.HasPrefix(dst+"/", src+"/") && src != dst {
		return fmt.Errorf("localfs: cannot move %s into its own subdirectory %s", src, dst)
	}
	if _, err := os.Stat(fullDst); err == nil {
		return fmt.Errorf("localfs: move destination already exists: %s", dst)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullDst), dirPerm); err != nil {
		return err
	}
	return os.Rename(fullSrc, fullDst)
}

func (b *Backend) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := b.native(name)
	if err != nil {
		return err
	}
	return os.RemoveAll(full)
}

// Package memfs is an in-memory storage.Backend used by this module's own
// test suite, so commit and validation tests don't need a real filesystem.
// It mirrors storage/localfs's method-for-method structure and Move
// semantics (no-clobber), trading the OS for a map guarded by a mutex.
package memfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ocflcore/ocfl/storage"
)

// Backend implements storage.Backend entirely in memory.
type Backend struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ storage.Backend = (*Backend)(nil)

// New returns an empty Backend.
func New() *Backend {
	return &Backend{files: map[string][]byte{}}
}

// NewWith returns a Backend pre-populated with cont, reading each reader to
// completion (and closing it, if it's an io.Closer) immediately.
func NewWith(cont map[string]io.Reader) (*Backend, error) {
	b := New()
	ctx := context.Background()
	for p, r := range cont {
		if _, err := b.Write(ctx, p, r); err != nil {
			return nil, err
		}
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
	}
	return b, nil
}

func clean(name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: "memfs", Path: name, Err: errors.New("invalid path")}
	}
	return name, nil
}

func (b *Backend) Read(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := clean(name)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	content, ok := b.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *Backend) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	name, err := clean(name)
	if err != nil {
		return 0, err
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkShadowLocked(name); err != nil {
		return 0, err
	}
	b.files[name] = content
	return int64(len(content)), nil
}

// checkShadowLocked rejects writing name if an existing file would become a
// directory prefix of it or vice versa — memfs has no real directories, so
// this is the only way to keep List's recursive walk consistent.
func (b *Backend) checkShadowLocked(name string) error {
	if _, ok := b.files[name]; ok {
		return nil // overwrite is allowed (localfs.Write overwrites too)
	}
	for existing := range b.files {
		if strings.HasPrefix(existing+"/", name+"/") && existing != name {
			return fmt.Errorf("memfs: %q conflicts with existing file %q", name, existing)
		}
		if strings.HasPrefix(name+"/", existing+"/") {
			return fmt.Errorf("memfs: %q conflicts with existing file %q", name, existing)
		}
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	name, err := clean(name)
	if err != nil {
		return false, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.files[name]; ok {
		return true, nil
	}
	prefix := name + "/"
	for existing := range b.files {
		if strings.HasPrefix(existing, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) List(ctx context.Context, dir string, recursive bool) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := clean(dir)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	prefix := dir + "/"
	if dir == "." {
		prefix = ""
	}
	seen := map[string]bool{}
	var entries []storage.Entry
	for existing := range b.files {
		if !strings.HasPrefix(existing, prefix) || existing == dir {
			continue
		}
		rel := strings.TrimPrefix(existing, prefix)
		if recursive {
			for _, name := range intermediateDirs(rel) {
				if !seen[name] {
					seen[name] = true
					entries = append(entries, storage.Entry{Name: name, IsDir: true})
				}
			}
			if !seen[rel] {
				seen[rel] = true
				entries = append(entries, storage.Entry{Name: rel, IsDir: false})
			}
			continue
		}
		top := rel
		isDir := false
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			top = rel[:i]
			isDir = true
		}
		if !seen[top] {
			seen[top] = true
			entries = append(entries, storage.Entry{Name: top, IsDir: isDir})
		}
	}
	if len(entries) == 0 && !b.existsLocked(dir) {
		if recursive {
			return nil, nil // as localfs: a recursive listing of a missing directory is empty
		}
		return nil, &fs.PathError{Op: "list", Path: dir, Err: fs.ErrNotExist}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (b *Backend) existsLocked(name string) bool {
	if _, ok := b.files[name]; ok {
		return true
	}
	prefix := name + "/"
	for existing := range b.files {
		if strings.HasPrefix(existing, prefix) {
			return true
		}
	}
	return name == "."
}

func intermediateDirs(rel string) []string {
	segs := strings.Split(path.Dir(rel), "/")
	if len(segs) == 0 || segs[0] == "." {
		return nil
	}
	out := make([]string, len(segs))
	for i := range segs {
		out[i] = strings.Join(segs[:i+1], "/")
	}
	return out
}

// Move renames src to dst, refusing to overwrite an existing dst so it can
// serve as the commit engine's concurrency-detection linearization point,
// same as storage/localfs.Backend.Move.
func (b *Backend) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := clean(src)
	if err != nil {
		return err
	}
	dst, err = clean(dst)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.existsLocked(dst) {
		return fmt.Errorf("memfs: move destination already exists: %s", dst)
	}
	srcPrefix := src + "/"
	moved := map[string][]byte{}
	if content, ok := b.files[src]; ok {
		moved[dst] = content
	}
	for existing, content := range b.files {
		if strings.HasPrefix(existing, srcPrefix) {
			moved[dst+"/"+strings.TrimPrefix(existing, srcPrefix)] = content
		}
	}
	if len(moved) == 0 {
		return &fs.PathError{Op: "move", Path: src, Err: fs.ErrNotExist}
	}
	for existing := range moved {
		if _, ok := b.files[existing]; ok && existing != dst {
			return fmt.Errorf("memfs: move destination already exists: %s", existing)
		}
	}
	for existing := range b.files {
		if existing == src || strings.HasPrefix(existing, srcPrefix) {
			delete(b.files, existing)
		}
	}
	for name, content := range moved {
		b.files[name] = content
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := clean(name)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := name + "/"
	delete(b.files, name)
	for existing := range b.files {
		if strings.HasPrefix(existing, prefix) {
			delete(b.files, existing)
		}
	}
	return nil
}

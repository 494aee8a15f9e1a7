package digest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Map is a bidirectional index between digests and content paths: the
// content-addressable-storage data structure that underlies an inventory's
// manifest, fixity blocks, and version states (the PathBiMap of the OCFL
// object model). A zero Map is not ready for use; call NewMap.
//
// Digest string case is preserved (the OCFL spec requires it), but two
// digests that are equal case-insensitively are treated as a conflict: the
// same content must never be indexed under two differently-cased spellings
// of its own digest.
type Map struct {
	forward map[string][]string // digest -> paths, insertion order preserved
	reverse map[string]string   // path -> digest
	dirs    map[string]struct{} // directories implied by existing paths
	norm    map[string]struct{} // lowercased digests seen, for case-conflict checks
}

// NewMap returns an empty, ready-to-use Map.
func NewMap() *Map {
	return &Map{
		forward: map[string][]string{},
		reverse: map[string]string{},
		dirs:    map[string]struct{}{},
		norm:    map[string]struct{}{},
	}
}

// PathConflictError indicates a path is already present in a Map (possibly
// under a different digest), or that a path and one of its own parent
// directories are both present in the Map (one would shadow the other).
type PathConflictError struct {
	Path string
}

func (e *PathConflictError) Error() string { return "path conflict: " + e.Path }

// DigestConflictError indicates a digest is already present in a Map under a
// different case than the one being added.
type DigestConflictError struct {
	Digest string
}

func (e *DigestConflictError) Error() string { return "digest conflict: " + e.Digest }

// PathInvalidError indicates a path fails the constraints of §4.1: no
// absolute path, no "." or ".." segment, no empty segment, no leading or
// trailing separator.
type PathInvalidError struct {
	Path string
}

func (e *PathInvalidError) Error() string { return "invalid path: " + e.Path }

func validPath(p string) bool {
	return p != "." && fs.ValidPath(p)
}

// parents returns the parent directory paths implied by p, shallowest first:
// "a/b/c" -> ["a", "a/b"].
func parents(p string) []string {
	dir := path.Dir(p)
	if dir == "." {
		return nil
	}
	segs := strings.Split(dir, "/")
	out := make([]string, len(segs))
	for i := range segs {
		out[i] = strings.Join(segs[:i+1], "/")
	}
	return out
}

// Add indexes path p under digest. It is an error if p is already indexed
// (under this or any other digest), if p conflicts with a directory implied
// by another indexed path, or if digest is already present under a
// different case.
func (m *Map) Add(digest, p string) error {
	if !validPath(p) {
		return &PathInvalidError{Path: p}
	}
	if _, exists := m.reverse[p]; exists {
		return &PathConflictError{Path: p}
	}
	if _, isDir := m.dirs[p]; isDir {
		return &PathConflictError{Path: p}
	}
	ps := parents(p)
	for _, parent := range ps {
		if _, isFile := m.reverse[parent]; isFile {
			return &PathConflictError{Path: p}
		}
	}
	norm := strings.ToLower(digest)
	if _, exists := m.forward[digest]; !exists {
		if _, normExists := m.norm[norm]; normExists {
			return &DigestConflictError{Digest: digest}
		}
	}
	m.reverse[p] = digest
	m.forward[digest] = append(m.forward[digest], p)
	m.norm[norm] = struct{}{}
	for _, parent := range ps {
		m.dirs[parent] = struct{}{}
	}
	return nil
}

// RemovePath removes path p from the Map, along with any parent directory
// entries it alone implied. A no-op if p is not present.
func (m *Map) RemovePath(p string) {
	digest, ok := m.reverse[p]
	if !ok {
		return
	}
	delete(m.reverse, p)
	paths := m.forward[digest]
	for i, existing := range paths {
		if existing == p {
			paths = append(paths[:i], paths[i+1:]...)
			break
		}
	}
	if len(paths) == 0 {
		delete(m.forward, digest)
		delete(m.norm, strings.ToLower(digest))
	} else {
		m.forward[digest] = paths
	}
	m.rebuildDirs()
}

// RemoveDigest removes every path indexed under digest.
func (m *Map) RemoveDigest(digest string) {
	for _, p := range append([]string(nil), m.forward[digest]...) {
		delete(m.reverse, p)
	}
	delete(m.forward, digest)
	delete(m.norm, strings.ToLower(digest))
	m.rebuildDirs()
}

func (m *Map) rebuildDirs() {
	m.dirs = map[string]struct{}{}
	for p := range m.reverse {
		for _, parent := range parents(p) {
			m.dirs[parent] = struct{}{}
		}
	}
}

// GetDigest returns the digest indexed for path p, or "" if p is absent.
func (m *Map) GetDigest(p string) string { return m.reverse[p] }

// GetPaths returns the paths indexed under digest, in insertion order. The
// returned slice must not be mutated by the caller.
func (m *Map) GetPaths(digest string) []string { return m.forward[digest] }

// ContainsDigest reports whether digest has at least one indexed path.
func (m *Map) ContainsDigest(digest string) bool {
	_, ok := m.forward[digest]
	return ok
}

// ContainsPath reports whether p is indexed.
func (m *Map) ContainsPath(p string) bool {
	_, ok := m.reverse[p]
	return ok
}

// Len returns the number of distinct digests in the map.
func (m *Map) Len() int { return len(m.forward) }

// Digests returns every digest in the map, sorted case-insensitively so
// iteration order is deterministic (see design note on collection ordering).
func (m *Map) Digests() []string {
	out := make([]string, 0, len(m.forward))
	for d := range m.forward {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// EachPath calls fn once for every (path, digest) pair, in an order
// determined by Digests() then insertion order within a digest. Iteration
// stops early if fn returns an error.
func (m *Map) EachPath(fn func(p, digest string) error) error {
	for _, d := range m.Digests() {
		for _, p := range m.forward[d] {
			if err := fn(p, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Copy returns a deep copy of m.
func (m *Map) Copy() *Map {
	out := NewMap()
	for d, paths := range m.forward {
		cp := make([]string, len(paths))
		copy(cp, paths)
		out.forward[d] = cp
	}
	for p, d := range m.reverse {
		out.reverse[p] = d
	}
	for d := range m.dirs {
		out.dirs[d] = struct{}{}
	}
	for n := range m.norm {
		out.norm[n] = struct{}{}
	}
	return out
}

// MarshalJSON renders m in the inventory.json manifest/fixity/state shape:
// a plain object mapping each digest to its array of paths.
func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m.forward)
}

// UnmarshalJSON decodes m from the inventory.json manifest/fixity/state
// shape. Paths are re-added through Add so the same path-safety and
// case-conflict checks performed at build time apply to inventories loaded
// from disk.
func (m *Map) UnmarshalJSON(b []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = *NewMap()
	digests := make([]string, 0, len(raw))
	for d := range raw {
		digests = append(digests, d)
	}
	sort.Slice(digests, func(i, j int) bool { return strings.ToLower(digests[i]) < strings.ToLower(digests[j]) })
	for _, d := range digests {
		for _, p := range raw[d] {
			if err := m.Add(d, p); err != nil {
				return fmt.Errorf("decoding digest map: %w", err)
			}
		}
	}
	return nil
}

// Merge copies every (digest, path) pair from other into m. It is an error
// if any path in other is already present in m under a different digest.
func (m *Map) Merge(other *Map) error {
	var err error
	other.EachPath(func(p, d string) error {
		if existing := m.GetDigest(p); existing != "" {
			if existing == d {
				return nil
			}
			err = &PathConflictError{Path: p}
			return err
		}
		if addErr := m.Add(d, p); addErr != nil {
			err = addErr
			return err
		}
		return nil
	})
	return err
}

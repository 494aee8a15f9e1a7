// Package pathtree provides a generic hierarchical structure for detecting
// logical-path conflicts in a version state: it is an error for a version
// state to contain both a path "a" and a path "a/b", because "a" cannot be
// simultaneously a file and a directory. Building a Node[T] out of a set of
// paths surfaces that conflict as a plain error instead of requiring every
// caller to reimplement the check.
package pathtree

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrNotFound    = errors.New("node not found")
	ErrNotDir      = errors.New("not a directory node")
	ErrConflict    = errors.New("path conflicts with an existing file or directory node")
)

// Node is one node in the tree: a value of type T if it's a leaf (file),
// or a set of named children if it's an interior node (directory). A nil
// children map means the node is a file node.
type Node[T any] struct {
	Val      T
	children map[string]*Node[T]
}

// NewDir returns an empty directory node.
func NewDir[T any]() *Node[T] {
	return &Node[T]{children: make(map[string]*Node[T])}
}

// NewFile returns a file node holding val.
func NewFile[T any](val T) *Node[T] {
	return &Node[T]{Val: val}
}

// IsDir reports whether node is a directory node.
func (node *Node[T]) IsDir() bool { return node.children != nil }

// Child returns node's direct child named name, or nil if none exists or
// node is not a directory.
func (node *Node[T]) Child(name string) *Node[T] { return node.children[name] }

// Get returns the descendant of node at path p ("." returns node itself).
func (node *Node[T]) Get(p string) (*Node[T], error) {
	if !fs.ValidPath(p) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	if p == "." {
		return node, nil
	}
	for {
		first, rest, more := strings.Cut(p, "/")
		child, ok := node.children[first]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, p)
		}
		node = child
		p = rest
		if !more {
			break
		}
	}
	return node, nil
}

// Set inserts child at path p, creating intermediate directory nodes as
// needed. It returns ErrConflict if p (or an ancestor of p) is already
// occupied by a file node, or if an existing child already occupies a path
// that would become a descendant of p.
func (node *Node[T]) Set(p string, child *Node[T]) error {
	if !fs.ValidPath(p) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	if p == "." {
		*node = *child
		return nil
	}
	dirName := path.Dir(p)
	baseName := path.Base(p)
	parent, err := node.mkdirAll(dirName)
	if err != nil {
		return fmt.Errorf("%w: %q", err, p)
	}
	if existing, ok := parent.children[baseName]; ok && existing.IsDir() != child.IsDir() {
		return fmt.Errorf("%w: %q", ErrConflict, p)
	}
	if existing, ok := parent.children[baseName]; ok && !existing.IsDir() {
		return fmt.Errorf("%w: %q", ErrConflict, p)
	}
	parent.children[baseName] = child
	return nil
}

// SetFile is Set for a file node holding val.
func (node *Node[T]) SetFile(p string, val T) error {
	return node.Set(p, NewFile(val))
}

func (node *Node[T]) mkdirAll(p string) (*Node[T], error) {
	if p == "." {
		if node.children == nil {
			return nil, ErrConflict
		}
		return node, nil
	}
	for {
		if node.children == nil {
			return nil, ErrConflict
		}
		first, rest, more := strings.Cut(p, "/")
		next, ok := node.children[first]
		if !ok {
			next = NewDir[T]()
			node.children[first] = next
		} else if !next.IsDir() {
			return nil, ErrConflict
		}
		node = next
		p = rest
		if !more {
			break
		}
	}
	return node, nil
}

// Len returns the number of file (leaf) nodes under node.
func (node *Node[T]) Len() int {
	if node.children == nil {
		return 1
	}
	var n int
	for _, ch := range node.children {
		n += ch.Len()
	}
	return n
}

// AllPaths returns every file path under node, in sorted order.
func (node *Node[T]) AllPaths() []string {
	var names []string
	_ = Walk(node, func(name string, n *Node[T]) error {
		if name != "." && !n.IsDir() {
			names = append(names, name)
		}
		return nil
	})
	sort.Strings(names)
	return names
}

// WalkFunc is the callback signature for Walk.
type WalkFunc[T any] func(name string, node *Node[T]) error

// Walk visits node and every descendant, depth-first, in sorted child
// order, calling fn with each path ("." for node itself).
func Walk[T any](node *Node[T], fn WalkFunc[T]) error {
	return walk(node, ".", fn)
}

func walk[T any](node *Node[T], p string, fn WalkFunc[T]) error {
	if err := fn(p, node); err != nil {
		return err
	}
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := walk(node.children[name], path.Join(p, name), fn); err != nil {
			return err
		}
	}
	return nil
}

// BuildFiles builds a tree from a flat set of file paths mapped to values,
// returning ErrConflict if any two paths conflict (one is a file, the other
// implies it must be a directory).
func BuildFiles[T any](paths map[string]T) (*Node[T], error) {
	root := NewDir[T]()
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := root.SetFile(name, paths[name]); err != nil {
			return nil, err
		}
	}
	return root, nil
}

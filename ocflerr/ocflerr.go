// Package ocflerr defines the error taxonomy the object engine's exported
// API returns. Every error that crosses a package boundary is classified
// into one of a small set of Kinds so callers can branch on Is or KindOf
// instead of parsing strings.
package ocflerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories callers are expected
// to handle differently.
type Kind int8

const (
	_ Kind = iota
	// InvalidInput indicates a caller-supplied argument was malformed
	// (bad path, bad digest algorithm id, nil option, and the like).
	InvalidInput
	// InvalidInventory indicates an inventory failed validation: missing
	// required field, inconsistent digest map, bad version sequence.
	InvalidInventory
	// PathConstraint indicates a logical or content path violated OCFL's
	// path-safety rules.
	PathConstraint
	// Overwrite indicates an operation would replace existing content and
	// the caller did not opt in to overwriting it.
	Overwrite
	// FixityMismatch indicates computed content digests disagree with the
	// digests recorded in an inventory or supplied by a caller.
	FixityMismatch
	// ObjectOutOfSync indicates a commit lost a race against a concurrent
	// writer: the object's head version advanced between read and write.
	ObjectOutOfSync
	// NotFound indicates a requested object, version, or logical path does
	// not exist.
	NotFound
	// CorruptObject indicates an on-disk object fails structural or
	// fixity checks independent of any particular operation.
	CorruptObject
	// IO indicates a Storage backend call failed for reasons unrelated to
	// OCFL semantics (disk full, network error, permission denied).
	IO
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case InvalidInventory:
		return "InvalidInventory"
	case PathConstraint:
		return "PathConstraint"
	case Overwrite:
		return "Overwrite"
	case FixityMismatch:
		return "FixityMismatch"
	case ObjectOutOfSync:
		return "ObjectOutOfSync"
	case NotFound:
		return "NotFound"
	case CorruptObject:
		return "CorruptObject"
	case IO:
		return "IO"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned across package boundaries. It
// wraps an underlying cause and tags it with a Kind.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "commit.Commit"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given Kind for op, wrapping err. It always
// allocates a new *Error, even when err is already an *Error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with fmt.Errorf-style formatting for the wrapped error.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err is classified as kind, either because it is an
// *Error of that Kind or because it wraps one.
func Is(err error, kind Kind) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// KindOf returns the Kind of err, or 0 if err is not (or does not wrap) an
// *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

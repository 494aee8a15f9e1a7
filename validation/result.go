// Package validation provides the accumulator the object validator uses to
// collect fatal errors and warnings while walking an object, plus a
// logr-backed wrapper (Log) that mirrors every finding to a structured
// logger as it's recorded.
package validation

import (
	"sync"

	"github.com/ocflcore/ocfl/validatecode"
)

// Issue is one fatal error or warning raised during validation, optionally
// tagged with the OCFL validation code it corresponds to.
type Issue struct {
	err  error
	code *validatecode.Code
}

func (i *Issue) Error() string { return i.err.Error() }
func (i *Issue) Unwrap() error { return i.err }

// Code returns the OCFL validation code associated with the issue, or nil
// if none was given.
func (i *Issue) Code() *validatecode.Code { return i.code }

// WithCode wraps err with an OCFL validation code reference.
func WithCode(err error, code validatecode.Code) error {
	if err == nil {
		return nil
	}
	return &Issue{err: err, code: &code}
}

// Result accumulates fatal errors, warnings, and informational notices
// found during one validation run. It is safe for concurrent use so
// multiple version checks can run under an errgroup.
type Result struct {
	mu    sync.RWMutex
	fatal []error
	warn  []error
	info  []error
}

// AddFatal records a fatal error, ignoring a nil err, and returns err
// unchanged for convenient `return r.AddFatal(err)` call sites.
func (r *Result) AddFatal(err error) error {
	if err == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = append(r.fatal, err)
	return err
}

// AddWarn records a non-fatal warning.
func (r *Result) AddWarn(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warn = append(r.warn, err)
}

// AddInfo records a non-fatal, non-warning informational notice (used for
// conditions the OCFL spec's own code catalogue doesn't assign a W/E code
// to, e.g. an optional fixity walk's progress).
func (r *Result) AddInfo(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = append(r.info, err)
}

// Valid reports whether no fatal errors were recorded.
func (r *Result) Valid() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fatal) == 0
}

// Fatal returns a copy of the recorded fatal errors.
func (r *Result) Fatal() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]error(nil), r.fatal...)
}

// Warn returns a copy of the recorded warnings.
func (r *Result) Warn() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]error(nil), r.warn...)
}

// Info returns a copy of the recorded informational notices.
func (r *Result) Info() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]error(nil), r.info...)
}

// Err returns the most recently recorded fatal error, or nil.
func (r *Result) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.fatal) == 0 {
		return nil
	}
	return r.fatal[len(r.fatal)-1]
}

// Merge appends another Result's findings into r.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	other.mu.RLock()
	fatal := append([]error(nil), other.fatal...)
	warn := append([]error(nil), other.warn...)
	info := append([]error(nil), other.info...)
	other.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = append(r.fatal, fatal...)
	r.warn = append(r.warn, warn...)
	r.info = append(r.info, info...)
}

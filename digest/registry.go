package digest

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnknownAlg is returned by Registry.Get when the requested algorithm id
// is not registered.
var ErrUnknownAlg = errors.New("unknown digest algorithm")

// Registry is an immutable set of named Algs. The zero value is not usable;
// use NewRegistry or DefaultRegistry.
type Registry struct {
	algs map[string]Alg
}

// NewRegistry returns a Registry seeded with the built-in algorithms (sha512,
// sha256, sha224, sha1, md5, and the blake2b/sha512 variants from the
// digest-algorithms extension), plus any extras supplied.
func NewRegistry(extra ...Alg) Registry {
	r := Registry{algs: make(map[string]Alg, len(builtin)+len(extra))}
	for _, a := range builtin {
		r.algs[a.ID()] = a
	}
	for _, a := range extra {
		r.algs[a.ID()] = a
	}
	return r
}

// defaultRegistry is the Registry returned by DefaultRegistry.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the package's built-in registry.
func DefaultRegistry() Registry { return defaultRegistry }

// Get returns the Alg registered under id.
func (r Registry) Get(id string) (Alg, error) {
	a, ok := r.algs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlg, id)
	}
	return a, nil
}

// GetAny returns the Algs for every id in the registry, silently skipping ids
// that aren't registered. Used when validating a file against a Set that may
// include fixity algorithms the registry doesn't support.
func (r Registry) GetAny(ids ...string) []Alg {
	algs := make([]Alg, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.algs[id]; ok {
			algs = append(algs, a)
		}
	}
	return algs
}

// Has reports whether id is registered.
func (r Registry) Has(id string) bool {
	_, ok := r.algs[id]
	return ok
}

// With returns a new Registry with additional algorithms merged in, replacing
// any existing entries with the same id.
func (r Registry) With(extra ...Alg) Registry {
	next := Registry{algs: make(map[string]Alg, len(r.algs)+len(extra))}
	for id, a := range r.algs {
		next.algs[id] = a
	}
	for _, a := range extra {
		next.algs[a.ID()] = a
	}
	return next
}

// NewDigester returns a Digester for id.
func (r Registry) NewDigester(id string) (Digester, error) {
	a, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return a.Digester(), nil
}

// NewMultiDigester returns a MultiDigester computing every algorithm in algs
// in one pass over whatever is written to it.
func (r Registry) NewMultiDigester(algs ...string) (*MultiDigester, error) {
	if len(algs) == 0 {
		return nil, errors.New("digest: at least one algorithm is required")
	}
	digesters := make(map[string]Digester, len(algs))
	writers := make([]io.Writer, 0, len(algs))
	for _, id := range algs {
		a, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		d := a.Digester()
		digesters[id] = d
		writers = append(writers, d)
	}
	return &MultiDigester{Writer: io.MultiWriter(writers...), digesters: digesters}, nil
}

// Package layout implements OCFL storage-root layout extensions: the
// deterministic mapping from an object id to the object root path beneath a
// storage root. Flat and HashedNTuple mirror the two layout extensions the
// OCFL extensions registry publishes (0002-flat-direct-storage-layout and
// 0003-hash-and-id-n-tuple-storage-layout).
package layout

import (
	"fmt"
	"strings"

	"github.com/ocflcore/ocfl/digest"
)

// Extension names this package registers, used by the object validator to
// recognize a storage root's extensions/ directory entries as known rather
// than flagging them as unregistered.
const (
	NameFlat         = "0002-flat-direct-storage-layout"
	NameHashedNTuple = "0003-hash-and-id-n-tuple-storage-layout"
)

// Extension maps an object id to the path of its object root, relative to
// the storage root.
type Extension interface {
	// Name returns the extension's registered name, e.g.
	// "0002-flat-direct-storage-layout".
	Name() string
	// Resolve returns the object root path for id.
	Resolve(id string) (string, error)
}

var registered = map[string]bool{
	NameFlat:        true,
	NameHashedNTuple: true,
}

// IsRegistered reports whether name is a layout extension this package
// implements.
func IsRegistered(name string) bool { return registered[name] }

// Flat is the 0002-flat-direct-storage-layout extension: the object root
// path is the id verbatim. It is usable only when every id in a storage
// root is a valid single path segment (no "/").
type Flat struct{}

var _ Extension = Flat{}

func (Flat) Name() string { return NameFlat }

// Resolve returns id unchanged, rejecting ids that aren't safe to use
// directly as a path.
func (Flat) Resolve(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("layout: empty object id")
	}
	if strings.Contains(id, "/") {
		return "", fmt.Errorf("layout: object id %q contains a path separator", id)
	}
	if id == "." || id == ".." {
		return "", fmt.Errorf("layout: object id %q is not a valid direct path", id)
	}
	return id, nil
}

// HashedNTuple is the 0003-hash-and-id-n-tuple-storage-layout extension:
// the object root path is built from TupleNum tuples of TupleSize hex
// characters taken from the id's digest under DigestAlgorithm, followed by
// a percent-encoded rendering of the id itself (truncated and digest-
// suffixed past 100 characters to bound path length).
type HashedNTuple struct {
	DigestAlgorithm string
	TupleSize       int
	TupleNum        int
	Registry        digest.Registry
}

var _ Extension = HashedNTuple{}

// NewHashedNTuple returns the extension with the published default
// parameters: sha256, 3 tuples of 3 hex characters each.
func NewHashedNTuple() HashedNTuple {
	return HashedNTuple{
		DigestAlgorithm: digest.SHA256,
		TupleSize:       3,
		TupleNum:        3,
		Registry:        digest.DefaultRegistry(),
	}
}

func (HashedNTuple) Name() string { return NameHashedNTuple }

// Resolve computes id's object root path.
func (h HashedNTuple) Resolve(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("layout: empty object id")
	}
	tupSize, tupNum := h.TupleSize, h.TupleNum
	if (tupSize == 0) != (tupNum == 0) {
		return "", fmt.Errorf("layout: tupleSize and numberOfTuples must both be zero or both be nonzero")
	}
	reg := h.Registry
	if !reg.Has(h.DigestAlgorithm) {
		reg = digest.DefaultRegistry()
	}
	alg, err := reg.Get(h.DigestAlgorithm)
	if err != nil {
		return "", err
	}
	d := alg.Digester()
	if _, err := d.Write([]byte(id)); err != nil {
		return "", err
	}
	hashID := d.String()
	if tupSize*tupNum > len(hashID) {
		return "", fmt.Errorf("layout: tupleSize*numberOfTuples exceeds %s digest length", h.DigestAlgorithm)
	}
	tuples := make([]string, 0, tupNum+1)
	for i := 0; i < tupNum; i++ {
		tuples = append(tuples, hashID[i*tupSize:(i+1)*tupSize])
	}
	encID := percentEncode(id)
	if len(encID) > 100 {
		encID = encID[:100] + "-" + hashID
	}
	tuples = append(tuples, encID)
	return strings.Join(tuples, "/"), nil
}

const lowerhex = "0123456789abcdef"

// percentEncode escapes every byte of in outside [A-Za-z0-9_-], so an
// object id containing path separators or other unsafe characters can still
// be embedded as the final path segment of a HashedNTuple object root.
func percentEncode(in string) string {
	shouldEscape := func(c byte) bool {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '-', c == '_':
			return false
		default:
			return true
		}
	}
	var numEscape int
	for i := 0; i < len(in); i++ {
		if shouldEscape(in[i]) {
			numEscape++
		}
	}
	if numEscape == 0 {
		return in
	}
	out := make([]byte, 0, len(in)+2*numEscape)
	for i := 0; i < len(in); i++ {
		c := in[i]
		if shouldEscape(c) {
			out = append(out, '%', lowerhex[c>>4], lowerhex[c&15])
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

package object

import "github.com/ocflcore/ocfl/ocfl"

// pathEntry tracks everything the validator has learned about one content
// path under an object root: the digest(s) it's indexed under in the
// inventories seen so far, whether it's referenced from a manifest or
// fixity block, and whether a file was actually found there on disk.
type pathEntry struct {
	digest    string
	fixity    map[string]string // alg -> digest, for fixity-block references
	inVersion ocfl.VNum          // version directory the path is rooted under
	onDisk    bool
}

// pathLedger accumulates manifest/fixity references and on-disk findings
// across the root inventory, every version inventory, and the version
// content walks, so the final cross-check (step 5 of the object validator)
// can be done in one pass instead of re-reading the backend.
type pathLedger struct {
	paths map[string]*pathEntry
}

func newPathLedger() *pathLedger {
	return &pathLedger{paths: map[string]*pathEntry{}}
}

func (l *pathLedger) entry(p string) *pathEntry {
	e, ok := l.paths[p]
	if !ok {
		e = &pathEntry{fixity: map[string]string{}}
		l.paths[p] = e
	}
	return e
}

// addManifest records every (digest, path) pair from a manifest digest.Map.
func (l *pathLedger) addManifest(digests func(func(p, d string) error) error) {
	_ = digests(func(p, d string) error {
		l.entry(p).digest = d
		return nil
	})
}

// addFixity records every (digest, path) pair from a fixity algorithm's
// digest.Map.
func (l *pathLedger) addFixity(alg string, digests func(func(p, d string) error) error) {
	_ = digests(func(p, d string) error {
		l.entry(p).fixity[alg] = d
		return nil
	})
}

// markOnDisk records that a file was found at p during a version content
// walk.
func (l *pathLedger) markOnDisk(p string) {
	l.entry(p).onDisk = true
}

// unreferencedDiskPaths returns every path marked onDisk whose entry has no
// manifest digest (a content file with no manifest entry).
func (l *pathLedger) unreferencedDiskPaths() []string {
	var out []string
	for p, e := range l.paths {
		if e.onDisk && e.digest == "" {
			out = append(out, p)
		}
	}
	return out
}

// missingManifestPaths returns every path with a manifest digest that was
// never found on disk.
func (l *pathLedger) missingManifestPaths() []string {
	var out []string
	for p, e := range l.paths {
		if e.digest != "" && !e.onDisk {
			out = append(out, p)
		}
	}
	return out
}

package digest

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// MultiDigester writes to N digesters in a single pass. Write the full
// content of a stream to it once, then call Sums to read every algorithm's
// result.
type MultiDigester struct {
	io.Writer
	digesters map[string]Digester
}

// Sum returns the digest for alg, or the empty string if alg wasn't
// requested when the MultiDigester was created.
func (md *MultiDigester) Sum(alg string) string {
	if d := md.digesters[alg]; d != nil {
		return d.String()
	}
	return ""
}

// Sums returns every computed digest as a Set.
func (md *MultiDigester) Sums() Set {
	set := make(Set, len(md.digesters))
	for alg, d := range md.digesters {
		set[alg] = d.String()
	}
	return set
}

// Set maps digest algorithm id to a computed (or expected) digest value.
type Set map[string]string

// Algorithms returns the algorithm ids present in s.
func (s Set) Algorithms() []string {
	if len(s) == 0 {
		return nil
	}
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// ConflictsWith returns the algorithm ids for which s and other both have a
// value, but the values differ (case-insensitively).
func (s Set) ConflictsWith(other Set) []string {
	var conflicts []string
	for alg, v := range s {
		if ov, ok := other[alg]; ok && !strings.EqualFold(v, ov) {
			conflicts = append(conflicts, alg)
		}
	}
	return conflicts
}

// DigestError reports a digest computed from bytes that disagrees with an
// expected value.
type DigestError struct {
	Path     string // content path, if known
	Alg      string
	Got      string
	Expected string
	Fixity   bool // true if the mismatch is in a fixity (non-primary) algorithm
}

func (e *DigestError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unexpected %s digest: got %q, expected %q", e.Alg, e.Got, e.Expected)
	}
	return fmt.Sprintf("unexpected %s digest for %q: got %q, expected %q", e.Alg, e.Path, e.Got, e.Expected)
}

// Validate reads r to completion, computing every algorithm named in
// expected using algs known to reg, and returns a *DigestError for the first
// algorithm whose computed value disagrees with expected.
func Validate(ctx context.Context, r io.Reader, expected Set, reg Registry) error {
	md, err := reg.NewMultiDigester(reg.GetAnyIDs(expected.Algorithms())...)
	if err != nil {
		return err
	}
	if _, err := copyContext(ctx, md, r); err != nil {
		return err
	}
	got := md.Sums()
	for _, alg := range got.ConflictsWith(expected) {
		return &DigestError{Alg: alg, Got: got[alg], Expected: expected[alg]}
	}
	return nil
}

// GetAnyIDs is like GetAny but returns only the ids that are registered,
// preserving callers that only have ids (not Algs) on hand.
func (r Registry) GetAnyIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if r.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// copyContext is io.Copy that aborts early if ctx is canceled, checked once
// per 32KiB chunk (the same granularity as io.Copy's default buffer).
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	buf := make([]byte, 32*1024)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

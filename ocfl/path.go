package ocfl

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// Logical and content paths in an OCFL object share the same constraints:
// relative, "/"-separated, no "." or ".." segment, no empty segment, no
// leading or trailing "/". MaxPathLength bounds total length defensively;
// the spec itself doesn't impose one, but unbounded paths are a poor fit for
// most filesystems the Storage port will eventually run on.
const MaxPathLength = 1 << 16

// ErrPathConstraint is wrapped by every path-validation error in this
// package.
var ErrPathConstraint = errors.New("path violates OCFL path constraints")

// ValidPath reports whether p satisfies the OCFL path-safety constraints for
// a logical or content path: relative, "/"-separated, no "." or ".."
// segment, no empty segment, no leading/trailing slash, no backslash.
func ValidPath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty path", ErrPathConstraint)
	}
	if len(p) > MaxPathLength {
		return fmt.Errorf("%w: path exceeds maximum length: %s", ErrPathConstraint, truncate(p))
	}
	if strings.Contains(p, `\`) {
		return fmt.Errorf("%w: backslash not permitted: %s", ErrPathConstraint, p)
	}
	if p == "." || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return fmt.Errorf("%w: %s", ErrPathConstraint, p)
	}
	if !fs.ValidPath(p) {
		return fmt.Errorf("%w: %s", ErrPathConstraint, p)
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= 64 {
		return s
	}
	return s[:64] + "..."
}

// Join joins OCFL path segments using "/", the separator mandated
// regardless of host platform (path.Join already uses "/" and cleans the
// result, which is exactly what's wanted here).
func Join(segments ...string) string { return path.Join(segments...) }

// ValidContentDirectory validates a contentDirectory setting: it must not contain
// "/" or "\" and must not be "." or "..".
func ValidContentDirectory(cd string) error {
	if cd == "" {
		return nil // empty means "use the default"
	}
	if strings.ContainsAny(cd, `/\`) {
		return fmt.Errorf("%w: contentDirectory must not contain a path separator: %q", ErrPathConstraint, cd)
	}
	if cd == "." || cd == ".." {
		return fmt.Errorf("%w: contentDirectory must not be . or ..: %q", ErrPathConstraint, cd)
	}
	return nil
}

// Package namaste reads and writes NAMASTE declaration files: the
// "0=TYPE_VERSION" marker files that identify an OCFL storage root or object
// root and pin it to a specification version.
package namaste

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/ocflcore/ocfl/ocfl"
	"github.com/ocflcore/ocfl/storage"
)

// Declaration type strings.
const (
	TypeObject = "ocfl_object"
	TypeRoot   = "ocfl"
)

var (
	ErrNotExist  = fmt.Errorf("missing NAMASTE declaration: %w", fs.ErrNotExist)
	ErrContents  = errors.New("invalid NAMASTE declaration contents")
	ErrMultiple  = errors.New("multiple NAMASTE declarations found")
	declarationR = regexp.MustCompile(`^0=([a-z_]+)_([0-9]+\.[0-9]+)$`)
)

// Declaration is a parsed "0=TYPE_VERSION" NAMASTE filename.
type Declaration struct {
	Type    string
	Version ocfl.Spec
}

// Parse parses a NAMASTE filename, e.g. "0=ocfl_object_1.0".
func Parse(name string) (Declaration, error) {
	m := declarationR.FindStringSubmatch(name)
	if m == nil {
		return Declaration{}, ErrNotExist
	}
	spec, err := ocfl.ParseSpec(m[2])
	if err != nil {
		return Declaration{}, fmt.Errorf("%w: %v", ErrNotExist, err)
	}
	return Declaration{Type: m[1], Version: spec}, nil
}

// Find locates the single NAMASTE declaration among dir entries. It is an
// error for zero or more than one declaration to be present.
func Find(entries []storage.Entry) (Declaration, error) {
	var found []Declaration
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if d, err := Parse(e.Name); err == nil {
			found = append(found, d)
		}
	}
	switch len(found) {
	case 0:
		return Declaration{}, ErrNotExist
	case 1:
		return found[0], nil
	default:
		return Declaration{}, ErrMultiple
	}
}

// Name returns the declaration's filename, e.g. "0=ocfl_object_1.0".
func (d Declaration) Name() string {
	if d.Type == "" || d.Version.Empty() {
		return ""
	}
	return "0=" + d.Type + "_" + d.Version.String()
}

// Body returns the expected file contents of the declaration.
func (d Declaration) Body() string {
	if d.Type == "" || d.Version.Empty() {
		return ""
	}
	return d.Type + "_" + d.Version.String() + "\n"
}

// IsObject reports whether d declares an OCFL object root.
func (d Declaration) IsObject() bool { return d.Type == TypeObject }

// IsRoot reports whether d declares an OCFL storage root.
func (d Declaration) IsRoot() bool { return d.Type == TypeRoot }

// Validate checks that name, relative to backend's root, both parses as a
// NAMASTE declaration and has the exact body contents the declaration
// requires.
func Validate(ctx context.Context, backend storage.Backend, name string) (err error) {
	decl, err := Parse(path.Base(name))
	if err != nil {
		return err
	}
	f, err := backend.Read(ctx, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("opening %q: %w", name, ErrNotExist)
		}
		return fmt.Errorf("opening %q: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	body, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading %q: %w", name, err)
	}
	if string(body) != decl.Body() {
		return fmt.Errorf("contents of %q: %w", name, ErrContents)
	}
	return nil
}

// Write writes declaration d's file into dir.
func Write(ctx context.Context, backend storage.Backend, dir string, d Declaration) error {
	_, err := backend.Write(ctx, path.Join(dir, d.Name()), strings.NewReader(d.Body()))
	if err != nil {
		return fmt.Errorf("writing declaration: %w", err)
	}
	return nil
}

package object_test

import (
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ocflcore/ocfl/commit"
	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/object"
	"github.com/ocflcore/ocfl/storage/memfs"
	"github.com/ocflcore/ocfl/update"
	"github.com/ocflcore/ocfl/validation"
)

func buildValidObject(is *is.I, backend *memfs.Backend) {
	ctx := context.Background()
	staging := memfs.New()
	reg := digest.DefaultRegistry()
	alg, err := reg.Get(digest.SHA256)
	is.NoErr(err)

	u1, err := update.New(nil, alg, reg, staging, "s1")
	is.NoErr(err)
	is.NoErr(u1.AddFile(ctx, "a.txt", strings.NewReader("hello")))
	_, err = commit.Commit(ctx, backend, "obj", "urn:test:object-validator", u1.Finalize(), staging, reg, commit.WithMessage("v1"))
	is.NoErr(err)
}

func TestValidateAcceptsWellFormedObject(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	buildValidObject(is, backend)

	res, err := object.Validate(ctx, backend, "obj")
	is.NoErr(err)
	is.True(res.Valid())
}

func TestValidateFlagsUnreferencedContentFile(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	buildValidObject(is, backend)

	_, err := backend.Write(ctx, "obj/v1/content/extra.txt", strings.NewReader("not in the manifest"))
	is.NoErr(err)

	res, err := object.Validate(ctx, backend, "obj")
	is.NoErr(err)
	is.True(!res.Valid())

	found := findIssue(res.Fatal(), "E023", "v1/content/extra.txt")
	is.True(found)
}

func TestValidateFlagsMissingContentFile(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	buildValidObject(is, backend)

	is.NoErr(backend.Delete(ctx, "obj/v1/content/a.txt"))

	res, err := object.Validate(ctx, backend, "obj")
	is.NoErr(err)
	is.True(!res.Valid())
	is.True(findIssue(res.Fatal(), "E093", "v1/content/a.txt"))
}

func TestValidateRejectsMissingNamasteDeclaration(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	buildValidObject(is, backend)
	is.NoErr(backend.Delete(ctx, "obj/0=ocfl_object_1.0"))

	res, err := object.Validate(ctx, backend, "obj")
	is.NoErr(err)
	is.True(!res.Valid())
}

func TestValidateWithFixityCheckDetectsTamperedContent(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	buildValidObject(is, backend)

	is.NoErr(backend.Delete(ctx, "obj/v1/content/a.txt"))
	_, err := backend.Write(ctx, "obj/v1/content/a.txt", strings.NewReader("tampered"))
	is.NoErr(err)

	res, err := object.Validate(ctx, backend, "obj", object.WithFixityCheck())
	is.NoErr(err)
	is.True(!res.Valid())
}

func findIssue(errs []error, code, substring string) bool {
	for _, err := range errs {
		issue, ok := err.(*validation.Issue)
		if !ok {
			continue
		}
		if issue.Code() == nil || issue.Code().Code != code {
			continue
		}
		if strings.Contains(issue.Error(), substring) {
			return true
		}
	}
	return false
}

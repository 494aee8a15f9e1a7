package update_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/inventory"
	"github.com/ocflcore/ocfl/ocflerr"
	"github.com/ocflcore/ocfl/storage/memfs"
	"github.com/ocflcore/ocfl/update"
)

func sha256Alg(is *is.I) digest.Alg {
	algs := digest.DefaultRegistry().GetAny(digest.SHA256)
	is.Equal(len(algs), 1)
	return algs[0]
}

func TestUpdaterAddFileStagesNewContent(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	staging := memfs.New()
	reg := digest.DefaultRegistry()

	u, err := update.New(nil, sha256Alg(is), reg, staging, "stage")
	is.NoErr(err)
	is.NoErr(u.AddFile(ctx, "a.txt", strings.NewReader("hello")))

	is.True(u.State().ContainsPath("a.txt"))
	stage := u.Finalize()
	is.Equal(len(stage.Files), 1)
}

func TestUpdaterAddFileDedupsIdenticalContent(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	staging := memfs.New()
	u, err := update.New(nil, sha256Alg(is), digest.DefaultRegistry(), staging, "stage")
	is.NoErr(err)
	is.NoErr(u.AddFile(ctx, "a.txt", strings.NewReader("hello")))
	is.NoErr(u.AddFile(ctx, "b.txt", strings.NewReader("hello"))) // same bytes, second logical path

	stage := u.Finalize()
	is.Equal(len(stage.Files), 1) // one digest backs both paths
	is.Equal(stage.State.GetDigest("a.txt"), stage.State.GetDigest("b.txt"))
}

func TestUpdaterAddFileRequiresOverwriteOption(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	staging := memfs.New()
	u, err := update.New(nil, sha256Alg(is), digest.DefaultRegistry(), staging, "stage")
	is.NoErr(err)
	is.NoErr(u.AddFile(ctx, "a.txt", strings.NewReader("v1")))

	err = u.AddFile(ctx, "a.txt", strings.NewReader("v2"))
	is.True(ocflerr.Is(err, ocflerr.Overwrite))

	is.NoErr(u.AddFile(ctx, "a.txt", strings.NewReader("v2"), update.WithOverwrite()))
	is.Equal(u.State().GetDigest("a.txt"), u.Finalize().State.GetDigest("a.txt"))
}

func TestUpdaterRemoveAndRenameFile(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	staging := memfs.New()
	u, err := update.New(nil, sha256Alg(is), digest.DefaultRegistry(), staging, "stage")
	is.NoErr(err)
	is.NoErr(u.AddFile(ctx, "a.txt", strings.NewReader("hello")))

	is.NoErr(u.RenameFile("a.txt", "b.txt"))
	is.True(!u.State().ContainsPath("a.txt"))
	is.True(u.State().ContainsPath("b.txt"))

	is.NoErr(u.RemoveFile("b.txt"))
	is.True(!u.State().ContainsPath("b.txt"))

	err = u.RemoveFile("b.txt")
	is.True(ocflerr.Is(err, ocflerr.NotFound))
}

func TestUpdaterReinstateFile(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	staging := memfs.New()
	reg := digest.DefaultRegistry()
	alg := sha256Alg(is)

	u1, err := update.New(nil, alg, reg, staging, "stage1")
	is.NoErr(err)
	is.NoErr(u1.AddFile(ctx, "a.txt", strings.NewReader("hello")))
	base, err := inventory.NewBuilder("urn:test:reinstate").New(u1.Finalize(), time.Now(), "v1", nil)
	is.NoErr(err)

	u2, err := update.New(base, alg, reg, staging, "stage2")
	is.NoErr(err)
	is.NoErr(u2.RemoveFile("a.txt"))
	is.NoErr(u2.ReinstateFile(base.Head, "a.txt", "a-restored.txt"))
	is.True(u2.State().ContainsPath("a-restored.txt"))
	is.Equal(u2.State().GetDigest("a-restored.txt"), base.GetVersion(base.Head).State.GetDigest("a.txt"))
}

func TestUpdaterAddTreeWalksSourceDirectory(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	source := memfs.New()
	_, err := source.Write(ctx, "src/a.txt", strings.NewReader("a"))
	is.NoErr(err)
	_, err = source.Write(ctx, "src/nested/b.txt", strings.NewReader("b"))
	is.NoErr(err)

	staging := memfs.New()
	u, err := update.New(nil, sha256Alg(is), digest.DefaultRegistry(), staging, "stage")
	is.NoErr(err)
	is.NoErr(u.AddTree(ctx, source, "src"))

	is.True(u.State().ContainsPath("a.txt"))
	is.True(u.State().ContainsPath("nested/b.txt"))
}

func TestUpdaterNewRejectsAlgorithmMismatch(t *testing.T) {
	is := is.New(t)
	staging := memfs.New()
	reg := digest.DefaultRegistry()
	sha256 := sha256Alg(is)
	base := &inventory.Inventory{DigestAlgorithm: digest.SHA512}

	_, err := update.New(base, sha256, reg, staging, "stage")
	is.True(ocflerr.Is(err, ocflerr.InvalidInput))
}

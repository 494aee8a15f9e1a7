package commit_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ocflcore/ocfl/commit"
	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/ocfl"
	"github.com/ocflcore/ocfl/ocflerr"
	"github.com/ocflcore/ocfl/storage/memfs"
	"github.com/ocflcore/ocfl/update"
)

func testAlg(is *is.I, reg digest.Registry) digest.Alg {
	alg, err := reg.Get(digest.SHA256)
	is.NoErr(err)
	return alg
}

// TestCommitThreeSuccessivePutsAndPartialReads exercises three successive
// version commits to the same object, then confirms a file added in the
// first version is still resolvable through the final head inventory.
func TestCommitThreeSuccessivePutsAndPartialReads(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	staging := memfs.New()
	reg := digest.DefaultRegistry()
	alg := testAlg(is, reg)

	u1, err := update.New(nil, alg, reg, staging, "s1")
	is.NoErr(err)
	is.NoErr(u1.AddFile(ctx, "a.txt", strings.NewReader("version one")))
	inv1, err := commit.Commit(ctx, backend, "obj1", "urn:test:obj1", u1.Finalize(), staging, reg, commit.WithMessage("v1"))
	is.NoErr(err)
	is.Equal(inv1.Head.String(), "v1")

	u2, err := update.New(inv1, alg, reg, staging, "s2")
	is.NoErr(err)
	is.NoErr(u2.AddFile(ctx, "b.txt", strings.NewReader("version two")))
	inv2, err := commit.Commit(ctx, backend, "obj1", "urn:test:obj1", u2.Finalize(), staging, reg, commit.WithMessage("v2"))
	is.NoErr(err)
	is.Equal(inv2.Head.String(), "v2")

	u3, err := update.New(inv2, alg, reg, staging, "s3")
	is.NoErr(err)
	is.NoErr(u3.AddFile(ctx, "c.txt", strings.NewReader("version three")))
	inv3, err := commit.Commit(ctx, backend, "obj1", "urn:test:obj1", u3.Finalize(), staging, reg, commit.WithMessage("v3"))
	is.NoErr(err)
	is.Equal(inv3.Head.String(), "v3")

	// a.txt, added in v1, is still reachable from the v3 head state
	contentPath, err := inv3.ContentPath(ocfl.VNum{}, "a.txt")
	is.NoErr(err)
	is.Equal(contentPath, "v1/content/a.txt")

	f, err := backend.Read(ctx, "obj1/"+contentPath)
	is.NoErr(err)
	bodyBytes, err := io.ReadAll(f)
	is.NoErr(err)
	is.NoErr(f.Close())
	is.Equal(string(bodyBytes), "version one")

	// b.txt from v2 and c.txt from v3 are both reachable too
	bPath, err := inv3.ContentPath(ocfl.VNum{}, "b.txt")
	is.NoErr(err)
	is.Equal(bPath, "v2/content/b.txt")
	cPath, err := inv3.ContentPath(ocfl.VNum{}, "c.txt")
	is.NoErr(err)
	is.Equal(cPath, "v3/content/c.txt")
}

// TestCommitRenameAddRemoveInOneVersion exercises combining a rename, a new
// file, and a removal within a single committed version.
func TestCommitRenameAddRemoveInOneVersion(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	staging := memfs.New()
	reg := digest.DefaultRegistry()
	alg := testAlg(is, reg)

	u1, err := update.New(nil, alg, reg, staging, "s1")
	is.NoErr(err)
	is.NoErr(u1.AddFile(ctx, "keep.txt", strings.NewReader("kept")))
	is.NoErr(u1.AddFile(ctx, "old-name.txt", strings.NewReader("renamed content")))
	is.NoErr(u1.AddFile(ctx, "gone.txt", strings.NewReader("removed content")))
	inv1, err := commit.Commit(ctx, backend, "obj2", "urn:test:obj2", u1.Finalize(), staging, reg, commit.WithMessage("v1"))
	is.NoErr(err)

	u2, err := update.New(inv1, alg, reg, staging, "s2")
	is.NoErr(err)
	is.NoErr(u2.RenameFile("old-name.txt", "new-name.txt"))
	is.NoErr(u2.AddFile(ctx, "added.txt", strings.NewReader("added content")))
	is.NoErr(u2.RemoveFile("gone.txt"))
	inv2, err := commit.Commit(ctx, backend, "obj2", "urn:test:obj2", u2.Finalize(), staging, reg, commit.WithMessage("v2"))
	is.NoErr(err)

	state := inv2.Versions[inv2.Head].State
	is.True(state.ContainsPath("keep.txt"))
	is.True(state.ContainsPath("new-name.txt"))
	is.True(!state.ContainsPath("old-name.txt"))
	is.True(state.ContainsPath("added.txt"))
	is.True(!state.ContainsPath("gone.txt"))

	// the renamed file's content still resolves to its original v1 content path
	p, err := inv2.ContentPath(ocfl.VNum{}, "new-name.txt")
	is.NoErr(err)
	is.Equal(p, "v1/content/old-name.txt")
}

// TestCommitOverwriteWithoutFlagFails confirms that replacing a logical path
// without update.WithOverwrite fails, and the object is left untouched.
func TestCommitOverwriteWithoutFlagFails(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	staging := memfs.New()
	reg := digest.DefaultRegistry()
	alg := testAlg(is, reg)

	u1, err := update.New(nil, alg, reg, staging, "s1")
	is.NoErr(err)
	is.NoErr(u1.AddFile(ctx, "a.txt", strings.NewReader("original")))
	inv1, err := commit.Commit(ctx, backend, "obj3", "urn:test:obj3", u1.Finalize(), staging, reg, commit.WithMessage("v1"))
	is.NoErr(err)

	u2, err := update.New(inv1, alg, reg, staging, "s2")
	is.NoErr(err)
	err = u2.AddFile(ctx, "a.txt", strings.NewReader("replacement"))
	is.True(ocflerr.Is(err, ocflerr.Overwrite))

	exists, err := backend.Exists(ctx, "obj3/v2")
	is.NoErr(err)
	is.True(!exists)
}

// TestCommitDetectsConcurrentCommit exercises the version-directory guard
// that makes Move-based concurrency detection possible: a commit whose
// target version directory was installed by another writer since the
// commit's base inventory was read must fail with ObjectOutOfSync rather
// than overwrite it.
func TestCommitDetectsConcurrentCommit(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	staging := memfs.New()
	reg := digest.DefaultRegistry()
	alg := testAlg(is, reg)

	u1, err := update.New(nil, alg, reg, staging, "s1")
	is.NoErr(err)
	is.NoErr(u1.AddFile(ctx, "a.txt", strings.NewReader("v1 content")))
	inv1, err := commit.Commit(ctx, backend, "obj4", "urn:test:obj4", u1.Finalize(), staging, reg, commit.WithMessage("v1"))
	is.NoErr(err)

	// a racing writer's commit lands first: obj4/v2 already exists by the
	// time our own commit, built from the same inv1 base, tries to install it
	_, err = backend.Write(ctx, "obj4/v2/inventory.json", strings.NewReader("{}"))
	is.NoErr(err)

	u2, err := update.New(inv1, alg, reg, staging, "s2")
	is.NoErr(err)
	is.NoErr(u2.AddFile(ctx, "loser.txt", strings.NewReader("from a stale base")))
	_, err = commit.Commit(ctx, backend, "obj4", "urn:test:obj4", u2.Finalize(), staging, reg, commit.WithMessage("loses the race"))
	is.True(err != nil)
	is.True(ocflerr.Is(err, ocflerr.ObjectOutOfSync))

	exists, err := backend.Exists(ctx, "obj4/v2/content/loser.txt")
	is.NoErr(err)
	is.True(!exists)
}

// TestCommitMutableHeadRevisionsThenPromote exercises two mutable-HEAD
// revisions followed by Promote, confirming the object gains exactly one
// new immutable version folding in both revisions.
func TestCommitMutableHeadRevisionsThenPromote(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	staging := memfs.New()
	reg := digest.DefaultRegistry()
	alg := testAlg(is, reg)

	u1, err := update.New(nil, alg, reg, staging, "s1")
	is.NoErr(err)
	is.NoErr(u1.AddFile(ctx, "a.txt", strings.NewReader("committed v1")))
	inv1, err := commit.Commit(ctx, backend, "obj5", "urn:test:obj5", u1.Finalize(), staging, reg, commit.WithMessage("v1"))
	is.NoErr(err)

	has, err := commit.HasMutableHead(ctx, backend, "obj5")
	is.NoErr(err)
	is.True(!has)

	ur1, err := update.New(inv1, alg, reg, staging, "r1")
	is.NoErr(err)
	is.NoErr(ur1.AddFile(ctx, "b.txt", strings.NewReader("revision 1")))
	revInv1, err := commit.CommitMutable(ctx, backend, "obj5", "urn:test:obj5", ur1.Finalize(), staging, reg, commit.WithMessage("rev1"))
	is.NoErr(err)
	is.Equal(revInv1.Head, inv1.Head) // head number unchanged until promotion

	has, err = commit.HasMutableHead(ctx, backend, "obj5")
	is.NoErr(err)
	is.True(has)

	ur2, err := update.New(revInv1, alg, reg, staging, "r2")
	is.NoErr(err)
	is.NoErr(ur2.AddFile(ctx, "c.txt", strings.NewReader("revision 2")))
	revInv2, err := commit.CommitMutable(ctx, backend, "obj5", "urn:test:obj5", ur2.Finalize(), staging, reg, commit.WithMessage("rev2"))
	is.NoErr(err)

	state := revInv2.Versions[revInv2.Head].State
	is.True(state.ContainsPath("a.txt"))
	is.True(state.ContainsPath("b.txt"))
	is.True(state.ContainsPath("c.txt"))

	promoted, err := commit.Promote(ctx, backend, "obj5", "urn:test:obj5", reg)
	is.NoErr(err)
	is.Equal(promoted.Head.String(), "v2")

	has, err = commit.HasMutableHead(ctx, backend, "obj5")
	is.NoErr(err)
	is.True(!has)

	exists, err := backend.Exists(ctx, "obj5/v2")
	is.NoErr(err)
	is.True(exists)

	// content staged under the revision subtree is copied into the
	// promoted version's flat content directory
	p, err := promoted.ContentPath(ocfl.VNum{}, "c.txt")
	is.NoErr(err)
	is.Equal(p, "v2/content/c.txt")
	f, err := backend.Read(ctx, "obj5/"+p)
	is.NoErr(err)
	bodyBytes, err := io.ReadAll(f)
	is.NoErr(err)
	is.NoErr(f.Close())
	is.Equal(string(bodyBytes), "revision 2")
}

// TestPromoteDropsAbandonedRevisionOrphans exercises scenario 5's other
// half: a file staged in one mutable-HEAD revision and then removed in a
// later revision, before promotion, must not survive into the promoted
// version's manifest or its on-disk content directory.
func TestPromoteDropsAbandonedRevisionOrphans(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	backend := memfs.New()
	staging := memfs.New()
	reg := digest.DefaultRegistry()
	alg := testAlg(is, reg)

	u1, err := update.New(nil, alg, reg, staging, "s1")
	is.NoErr(err)
	is.NoErr(u1.AddFile(ctx, "a.txt", strings.NewReader("committed v1")))
	inv1, err := commit.Commit(ctx, backend, "obj6", "urn:test:obj6", u1.Finalize(), staging, reg, commit.WithMessage("v1"))
	is.NoErr(err)

	ur1, err := update.New(inv1, alg, reg, staging, "r1")
	is.NoErr(err)
	is.NoErr(ur1.AddFile(ctx, "orphan.txt", strings.NewReader("abandoned content")))
	revInv1, err := commit.CommitMutable(ctx, backend, "obj6", "urn:test:obj6", ur1.Finalize(), staging, reg, commit.WithMessage("rev1"))
	is.NoErr(err)

	ur2, err := update.New(revInv1, alg, reg, staging, "r2")
	is.NoErr(err)
	is.NoErr(ur2.RemoveFile("orphan.txt"))
	revInv2, err := commit.CommitMutable(ctx, backend, "obj6", "urn:test:obj6", ur2.Finalize(), staging, reg, commit.WithMessage("rev2"))
	is.NoErr(err)
	is.True(!revInv2.Versions[revInv2.Head].State.ContainsPath("orphan.txt"))

	promoted, err := commit.Promote(ctx, backend, "obj6", "urn:test:obj6", reg)
	is.NoErr(err)
	is.Equal(promoted.Head.String(), "v2")

	state := promoted.Versions[promoted.Head].State
	is.True(!state.ContainsPath("orphan.txt"))

	entries, err := backend.List(ctx, "obj6/v2/content", true)
	is.NoErr(err)
	for _, e := range entries {
		is.True(!strings.Contains(e.Name, "orphan"))
	}
}

// TestStagingAllocatorNamesAreUniqueAndPrefixed exercises StagingAllocator,
// the caller-facing helper for naming update.New's stagingDir argument.
func TestStagingAllocatorNamesAreUniqueAndPrefixed(t *testing.T) {
	is := is.New(t)
	a := commit.StagingAllocator{Prefix: "tmp/stage"}
	n1, n2 := a.New(), a.New()
	is.True(n1 != n2)
	is.True(strings.HasPrefix(n1, "tmp/stage/"))
	is.True(strings.HasPrefix(n2, "tmp/stage/"))

	defaultAlloc := commit.StagingAllocator{}
	is.True(strings.HasPrefix(defaultAlloc.New(), ".ocfl-staging/"))
}

package commit

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/inventory"
	"github.com/ocflcore/ocfl/namaste"
	"github.com/ocflcore/ocfl/ocflerr"
	"github.com/ocflcore/ocfl/storage"
)

// mutableHeadDir is the object-relative path of the 0005-mutable-head
// extension directory: a staging area for a tentative next version an
// application wants to revise repeatedly before it becomes immutable. Each
// call to CommitMutable adds a new revision rN, nested under the content
// directory as the spec's content-path grammar requires
// (mutableHeadDir/<contentDirectory>/rN/<path>), while the extension's own
// inventory.json at mutableHeadDir always reflects the merged, latest state
// of the tentative version. The object root's real inventory is untouched
// until Promote.
const mutableHeadDir = "extensions/0005-mutable-head"

var revisionNameRexp = regexp.MustCompile(`^r(\d+)$`)

func mutableHeadInvDir(objPath string) string { return path.Join(objPath, mutableHeadDir) }

// HasMutableHead reports whether objPath has an in-progress mutable HEAD.
func HasMutableHead(ctx context.Context, backend storage.Backend, objPath string) (bool, error) {
	return backend.Exists(ctx, path.Join(mutableHeadInvDir(objPath), inventory.FileName))
}

// CommitMutable stages stage as a new revision of a mutable HEAD, without
// touching the object's real, immutable version directories. The first call
// for an object starts the mutable HEAD as a tentative next version seeded
// from the object's current committed head (or from scratch for a new
// object); later calls amend that same tentative version in place, each
// adding a new revision for whatever content it introduces. The tentative
// version's own number never changes until Promote.
func CommitMutable(ctx context.Context, backend storage.Backend, objPath, objID string, stage inventory.Stage, staging storage.Backend, reg digest.Registry, opts ...Option) (*inventory.Inventory, error) {
	cfg := newConfig(opts)
	alg, err := reg.Get(stage.Alg)
	if err != nil {
		return nil, ocflerr.New(ocflerr.InvalidInput, "commit.CommitMutable", err)
	}

	rootInv, err := readExisting(ctx, backend, objPath, objID, reg)
	if err != nil {
		return nil, err
	}
	has, err := HasMutableHead(ctx, backend, objPath)
	if err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit.CommitMutable", err)
	}

	contDir := cfg.contentDir
	if rootInv != nil {
		contDir = rootInv.ContentDir()
	}
	if contDir == "" {
		contDir = inventory.DefaultContentDirectory
	}
	revision, err := nextRevision(ctx, backend, objPath, contDir)
	if err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit.CommitMutable", err)
	}
	contentPath := func(src string) string {
		return path.Join(mutableHeadDir, contDir, revision, src)
	}

	builder := inventory.NewBuilder(objID)
	builder.ContentDirectory = cfg.contentDir
	builder.Padding = cfg.padding

	var newInv *inventory.Inventory
	switch {
	case has:
		extInv, err := readMutableHeadInventory(ctx, backend, objPath, reg)
		if err != nil {
			return nil, err
		}
		newInv, err = builder.Amend(extInv, stage, cfg.created, cfg.message, cfg.user, contentPath)
		if err != nil {
			return nil, ocflerr.New(ocflerr.InvalidInventory, "commit.CommitMutable", err)
		}
	case rootInv == nil:
		newInv, err = builder.NewAt(stage, cfg.created, cfg.message, cfg.user, contentPath)
		if err != nil {
			return nil, ocflerr.New(ocflerr.InvalidInventory, "commit.CommitMutable", err)
		}
	default:
		newInv, err = builder.NextAt(rootInv, stage, cfg.created, cfg.message, cfg.user, contentPath)
		if err != nil {
			return nil, ocflerr.New(ocflerr.InvalidInventory, "commit.CommitMutable", err)
		}
	}
	if !cfg.spec.Empty() {
		newInv.Type = cfg.spec.AsInventoryType()
	} else if rootInv != nil {
		newInv.Type = rootInv.Type
	}

	if res := newInv.Validate(); !res.Valid() {
		return nil, ocflerr.New(ocflerr.InvalidInventory, "commit.CommitMutable", res.Err())
	}
	if rootInv != nil {
		// Compare against the tentative version as Promote will install it:
		// revision content paths rewritten into the new version directory.
		promotedView := *newInv
		promotedView.Manifest = rewriteMapPaths(newInv.Manifest, revisionRewriter(contDir, newInv.Head.String()))
		if res := inventory.PairwiseValidate(rootInv, &promotedView); !res.Valid() {
			return nil, ocflerr.New(ocflerr.InvalidInventory, "commit.CommitMutable", res.Err())
		}
	}

	// transferNewContent writes each file to <dir>/<contentDir>/<src>, so the
	// revision name is prefixed to every src to match contentPath above.
	revStage := inventory.Stage{Alg: stage.Alg, State: stage.State, Files: make(map[string]inventory.FileInfo, len(stage.Files))}
	for sum, info := range stage.Files {
		staged := info.StagingPaths
		if len(staged) == 0 {
			staged = info.SrcPaths
		}
		srcs := make([]string, len(info.SrcPaths))
		for i, src := range info.SrcPaths {
			srcs[i] = path.Join(revision, src)
		}
		revStage.Files[sum] = inventory.FileInfo{Digests: info.Digests, SrcPaths: srcs, StagingPaths: staged}
	}
	if err := transferNewContent(ctx, staging, backend, revStage, newInv, mutableHeadInvDir(objPath), reg, cfg.concurrency); err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit.CommitMutable", err)
	}
	if err := inventory.Write(ctx, backend, newInv, alg, mutableHeadInvDir(objPath)); err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit.CommitMutable", err)
	}
	return newInv, nil
}

func readMutableHeadInventory(ctx context.Context, backend storage.Backend, objPath string, reg digest.Registry) (*inventory.Inventory, error) {
	alg, err := sidecarAlgorithm(ctx, backend, mutableHeadInvDir(objPath), reg)
	if err != nil {
		return nil, ocflerr.New(ocflerr.CorruptObject, "commit", err)
	}
	inv, err := inventory.Read(ctx, backend, mutableHeadInvDir(objPath), alg)
	if err != nil {
		return nil, ocflerr.New(ocflerr.CorruptObject, "commit", err)
	}
	return inv, nil
}

// nextRevision returns the next "rN" revision name for a mutable HEAD,
// "r1" if none exist yet.
func nextRevision(ctx context.Context, backend storage.Backend, objPath, contDir string) (string, error) {
	dir := path.Join(mutableHeadInvDir(objPath), contDir)
	entries, err := backend.List(ctx, dir, false)
	if err != nil {
		return "r1", nil // directory does not exist yet: first revision
	}
	max := 0
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		if m := revisionNameRexp.FindStringSubmatch(e.Name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
	}
	return "r" + strconv.Itoa(max+1), nil
}

// Promote folds every revision accumulated by a mutable HEAD into a single
// new, real, immutable version at the object's root: the extension's
// current inventory becomes the promoted version's inventory (after
// rewriting its manifest/fixity content paths out of the extension's
// revision subtree and into the new version directory), and the revisions'
// content files are copied alongside it. It is an error to call Promote on
// an object with no mutable HEAD.
func Promote(ctx context.Context, backend storage.Backend, objPath, objID string, reg digest.Registry) (*inventory.Inventory, error) {
	has, err := HasMutableHead(ctx, backend, objPath)
	if err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit.Promote", err)
	}
	if !has {
		return nil, ocflerr.Newf(ocflerr.NotFound, "commit.Promote", "object has no mutable HEAD: %s", objPath)
	}
	alg, err := sidecarAlgorithm(ctx, backend, mutableHeadInvDir(objPath), reg)
	if err != nil {
		return nil, ocflerr.New(ocflerr.CorruptObject, "commit.Promote", err)
	}
	headInv, err := inventory.Read(ctx, backend, mutableHeadInvDir(objPath), alg)
	if err != nil {
		return nil, ocflerr.New(ocflerr.CorruptObject, "commit.Promote", err)
	}
	if headInv.ID != objID {
		return nil, ocflerr.Newf(ocflerr.InvalidInput, "commit.Promote", "mutable HEAD belongs to %q, not %q", headInv.ID, objID)
	}

	rootInv, err := readExisting(ctx, backend, objPath, objID, reg)
	if err != nil {
		return nil, err
	}
	if rootInv == nil {
		decl := namaste.Declaration{Type: namaste.TypeObject, Version: headInv.Type.Spec}
		if err := namaste.Write(ctx, backend, objPath, decl); err != nil {
			return nil, ocflerr.New(ocflerr.IO, "commit.Promote", err)
		}
	} else if res := inventory.PairwiseValidate(rootInv, headInv); !res.Valid() {
		return nil, ocflerr.New(ocflerr.InvalidInventory, "commit.Promote", res.Err())
	}

	versionDir := path.Join(objPath, headInv.Head.String())
	if exists, err := backend.Exists(ctx, versionDir); err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit.Promote", err)
	} else if exists {
		return nil, ocflerr.Newf(ocflerr.ObjectOutOfSync, "commit.Promote", "version directory already exists: %s", versionDir)
	}

	// Revisions accumulate in-place; a logical path added in revision 1 and
	// then removed or replaced in revision 2 leaves its digest in
	// headInv.Manifest with no reference from the tentative version's own
	// (merged, final) state. Those orphaned revision-local content paths
	// are staging leftovers, not real version history, and must not survive
	// into the promoted version (scenario 5: "unreferenced orphans from
	// revision 1 are dropped at promotion"). Content inherited from an
	// already-committed real version is untouched by this filter: it never
	// lives under mutableHeadDir in the first place.
	revPrefix := path.Join(mutableHeadDir, headInv.ContentDir()) + "/"
	live := liveStateDigests(headInv)
	liveManifest, survivedRevPaths := filterOrphanedRevisionPaths(headInv.Manifest, revPrefix, live)
	rewrite := revisionRewriter(headInv.ContentDir(), headInv.Head.String())
	promoted := &inventory.Inventory{
		ID:               headInv.ID,
		Type:             headInv.Type,
		DigestAlgorithm:  headInv.DigestAlgorithm,
		Head:             headInv.Head,
		ContentDirectory: headInv.ContentDirectory,
		Versions:         headInv.Versions,
		Manifest:         rewriteMapPaths(liveManifest, rewrite),
		Fixity:           map[string]*digest.Map{},
	}
	for a, m := range headInv.Fixity {
		filtered, _ := filterOrphanedRevisionPaths(m, revPrefix, live)
		promoted.Fixity[a] = rewriteMapPaths(filtered, rewrite)
	}
	if len(promoted.Fixity) == 0 {
		promoted.Fixity = nil
	}
	if rootInv != nil {
		if res := inventory.PairwiseValidate(rootInv, promoted); !res.Valid() {
			return nil, ocflerr.New(ocflerr.InvalidInventory, "commit.Promote", res.Err())
		}
	}

	tempDir := path.Join(objPath, ".ocfl-tmp-"+headInv.Head.String())
	if err := copyRevisionContent(ctx, backend, mutableHeadInvDir(objPath), headInv.ContentDir(), tempDir, survivedRevPaths); err != nil {
		_ = backend.Delete(ctx, tempDir)
		return nil, ocflerr.New(ocflerr.IO, "commit.Promote", err)
	}
	if err := inventory.Write(ctx, backend, promoted, alg, tempDir); err != nil {
		_ = backend.Delete(ctx, tempDir)
		return nil, ocflerr.New(ocflerr.IO, "commit.Promote", err)
	}
	if err := backend.Move(ctx, tempDir, versionDir); err != nil {
		_ = backend.Delete(ctx, tempDir)
		return nil, ocflerr.Newf(ocflerr.ObjectOutOfSync, "commit.Promote", "a concurrent commit installed %s first: %v", versionDir, err)
	}
	if err := inventory.Write(ctx, backend, promoted, alg, objPath); err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit.Promote", err)
	}
	if err := backend.Delete(ctx, mutableHeadInvDir(objPath)); err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit.Promote", err)
	}
	return promoted, nil
}

// revisionRewriter returns a function mapping a manifest path rooted under
// the mutable HEAD's revision subtree (mutableHeadDir/contentDir/rN/rest)
// to its promoted equivalent (newHead/contentDir/rest), leaving any other
// path (content inherited from an already-committed earlier version)
// unchanged.
func revisionRewriter(contentDir, newHead string) func(string) string {
	prefix := path.Join(mutableHeadDir, contentDir) + "/"
	return func(p string) string {
		if !strings.HasPrefix(p, prefix) {
			return p
		}
		rest := p[len(prefix):]
		slash := strings.IndexByte(rest, '/')
		if slash < 0 || !revisionNameRexp.MatchString(rest[:slash]) {
			return p
		}
		return path.Join(newHead, contentDir, rest[slash+1:])
	}
}

// liveStateDigests returns the set of digests referenced by inv's own head
// version state.
func liveStateDigests(inv *inventory.Inventory) map[string]bool {
	live := map[string]bool{}
	if ver := inv.Versions[inv.Head]; ver != nil && ver.State != nil {
		_ = ver.State.EachPath(func(_, d string) error {
			live[d] = true
			return nil
		})
	}
	return live
}

// filterOrphanedRevisionPaths copies m, dropping any entry rooted under
// revPrefix (a mutable-HEAD revision subtree) whose digest is not in live.
// Entries outside revPrefix (inherited from an already-committed version)
// are always kept. It also returns the revision-relative names (the part
// of each surviving revPrefix-rooted path after revPrefix) of everything
// kept, for copyRevisionContent to use as its copy list.
func filterOrphanedRevisionPaths(m *digest.Map, revPrefix string, live map[string]bool) (*digest.Map, map[string]bool) {
	out := digest.NewMap()
	survived := map[string]bool{}
	_ = m.EachPath(func(p, d string) error {
		if strings.HasPrefix(p, revPrefix) {
			if !live[d] {
				return nil
			}
			survived[p[len(revPrefix):]] = true
		}
		return out.Add(d, p)
	})
	return out, survived
}

func rewriteMapPaths(m *digest.Map, rewrite func(string) string) *digest.Map {
	out := digest.NewMap()
	_ = m.EachPath(func(p, d string) error {
		return out.Add(d, rewrite(p))
	})
	return out
}

// copyRevisionContent copies every file under the mutable HEAD's content
// directory that survived orphan filtering (keep, keyed by the file's name
// relative to the content directory, e.g. "r2/file3") into
// dstObjDir/contentDir, stripping the "rN/" revision segment each path
// carries so the promoted version's content directory is flat. Revision
// files not in keep are abandoned-revision orphans and are left behind.
func copyRevisionContent(ctx context.Context, backend storage.Backend, extDir, contentDir, dstObjDir string, keep map[string]bool) error {
	srcContentDir := path.Join(extDir, contentDir)
	if exists, err := backend.Exists(ctx, srcContentDir); err != nil || !exists {
		return err
	}
	entries, err := backend.List(ctx, srcContentDir, true)
	if err != nil {
		return err
	}
	type file struct{ rev int; rel, full string }
	var files []file
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if !keep[e.Name] {
			continue
		}
		slash := strings.IndexByte(e.Name, '/')
		if slash < 0 {
			continue
		}
		m := revisionNameRexp.FindStringSubmatch(e.Name[:slash])
		if m == nil {
			continue
		}
		rev, _ := strconv.Atoi(m[1])
		files = append(files, file{rev: rev, rel: e.Name[slash+1:], full: e.Name})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].rev < files[j].rev })
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := backend.Read(ctx, path.Join(srcContentDir, f.full))
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.full, err)
		}
		dst := path.Join(dstObjDir, contentDir, f.rel)
		_, werr := backend.Write(ctx, dst, r)
		r.Close()
		if werr != nil {
			return fmt.Errorf("writing %s: %w", dst, werr)
		}
	}
	return nil
}

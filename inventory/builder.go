package inventory

import (
	"fmt"
	"path"
	"time"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/ocfl"
)

// FileInfo is everything the builder needs to know about one file being
// added to a new version: its digests under every algorithm in play
// (primary plus any fixity algorithms), and SrcPaths, the sanitized
// logical-path-derived basis for its content, if it's new content.
// ContentPathFunc namespaces each entry of SrcPaths into its final manifest
// content path, so SrcPaths must already be relative to the destination
// version's content directory, not to wherever the bytes happen to be
// staged.
//
// StagingPaths, parallel to SrcPaths, names where each entry's bytes can
// actually be read from in whatever Storage backend staged them. A caller
// that stages content at the same path it wants namespaced (as tests that
// build a Stage by hand tend to do) may leave StagingPaths nil; SrcPaths is
// then used as the read location too.
type FileInfo struct {
	Digests      digest.Set
	SrcPaths     []string
	StagingPaths []string
}

// Stage is the input to Builder.New/Next/Amend: a fully-resolved version
// state plus enough information about any newly introduced content to
// extend the inventory's manifest and fixity blocks. It is produced by the
// version updater (update package) and is not itself part of the public
// inventory model.
type Stage struct {
	Alg   string              // digest algorithm identifying State's digests
	State *digest.Map         // logical path -> primary digest, for the new version
	Files map[string]FileInfo // primary digest -> file info, for every digest referenced by State that isn't already in the base inventory's manifest
}

// Builder constructs inventories: a fresh one for an object's first version,
// or a successor for an existing inventory's next version.
type Builder struct {
	ID               string
	ContentDirectory string
	Padding          int
}

// NewBuilder returns a Builder for object id.
func NewBuilder(id string) *Builder {
	return &Builder{ID: id}
}

// ContentPathFunc namespaces a newly staged file's content-path basis (a
// FileInfo.SrcPaths entry, relative to the version's content directory)
// into its final manifest content path (relative to the object root). New/Next use the standard "<head>/<contentDirectory>/<src>"
// layout; the mutable-HEAD extension (commit package) supplies its own to
// nest new content under a revision subtree instead.
type ContentPathFunc func(src string) string

// New builds the first version (v1) of a new object's inventory from stage.
func (b *Builder) New(stage Stage, created time.Time, msg string, user *ocfl.User) (*Inventory, error) {
	contDir, head, err := b.newHead()
	if err != nil {
		return nil, err
	}
	return b.NewAt(stage, created, msg, user, func(src string) string {
		return path.Join(head.String(), contDir, src)
	})
}

// NewAt is New with an explicit content path function.
func (b *Builder) NewAt(stage Stage, created time.Time, msg string, user *ocfl.User, contentPath ContentPathFunc) (*Inventory, error) {
	_, head, err := b.newHead()
	if err != nil {
		return nil, err
	}
	inv := &Inventory{
		ID:               b.ID,
		Type:             ocfl.Spec1_0.AsInventoryType(),
		DigestAlgorithm:  stage.Alg,
		Head:             head,
		ContentDirectory: b.ContentDirectory,
		Versions: map[ocfl.VNum]*Version{
			head: {
				Created: created.Truncate(time.Second),
				Message: msg,
				User:    user,
				State:   stage.State,
			},
		},
	}
	manifests, err := buildManifests(nil, stage, contentPath)
	if err != nil {
		return nil, err
	}
	inv.Manifest = manifests[stage.Alg]
	if inv.Manifest == nil {
		inv.Manifest = digest.NewMap()
	}
	delete(manifests, stage.Alg)
	inv.Fixity = manifests
	return inv, nil
}

func (b *Builder) newHead() (contDir string, head ocfl.VNum, err error) {
	contDir = b.ContentDirectory
	if contDir == "" {
		contDir = DefaultContentDirectory
	} else if err := ocfl.ValidContentDirectory(contDir); err != nil {
		return "", ocfl.VNum{}, err
	}
	head = ocfl.V(1, b.Padding)
	if err := head.Valid(); err != nil {
		return "", ocfl.VNum{}, fmt.Errorf("inventory: invalid version padding %d: %w", b.Padding, err)
	}
	return contDir, head, nil
}

// Next builds a successor inventory to base using stage as the new head
// version's state and content. base is not modified.
func (b *Builder) Next(base *Inventory, stage Stage, created time.Time, msg string, user *ocfl.User) (*Inventory, error) {
	next, err := base.Head.Next()
	if err != nil {
		return nil, fmt.Errorf("inventory: object's version numbering scheme does not support a version beyond %s: %w", base.Head, err)
	}
	contDir := base.ContentDir()
	return b.NextAt(base, stage, created, msg, user, func(src string) string {
		return path.Join(next.String(), contDir, src)
	})
}

// NextAt is Next with an explicit content path function.
func (b *Builder) NextAt(base *Inventory, stage Stage, created time.Time, msg string, user *ocfl.User, contentPath ContentPathFunc) (*Inventory, error) {
	if base.DigestAlgorithm != stage.Alg {
		return nil, fmt.Errorf("inventory: stage digest algorithm %q does not match base inventory algorithm %q", stage.Alg, base.DigestAlgorithm)
	}
	next, err := base.Head.Next()
	if err != nil {
		return nil, fmt.Errorf("inventory: object's version numbering scheme does not support a version beyond %s: %w", base.Head, err)
	}
	newInv := copyInventory(base)
	newInv.Head = next
	newInv.Versions[next] = &Version{
		Created: created.Truncate(time.Second),
		Message: msg,
		User:    user,
		State:   stage.State,
	}
	manifests, err := buildManifests(priorManifests(stage.Alg, base), stage, contentPath)
	if err != nil {
		return nil, err
	}
	newInv.Manifest = manifests[stage.Alg]
	delete(manifests, stage.Alg)
	newInv.Fixity = manifests
	return newInv, nil
}

// Amend rebuilds base's own head version in place, under the same version
// number, merging stage's state and any newly staged content into it. Used
// by the mutable-HEAD extension: each successive revision before promotion
// amends the same tentative head version instead of advancing to a new one.
func (b *Builder) Amend(base *Inventory, stage Stage, created time.Time, msg string, user *ocfl.User, contentPath ContentPathFunc) (*Inventory, error) {
	if base.DigestAlgorithm != stage.Alg {
		return nil, fmt.Errorf("inventory: stage digest algorithm %q does not match base inventory algorithm %q", stage.Alg, base.DigestAlgorithm)
	}
	newInv := copyInventory(base)
	newInv.Head = base.Head
	newInv.Versions[base.Head] = &Version{
		Created: created.Truncate(time.Second),
		Message: msg,
		User:    user,
		State:   stage.State,
	}
	manifests, err := buildManifests(priorManifests(stage.Alg, base), stage, contentPath)
	if err != nil {
		return nil, err
	}
	newInv.Manifest = manifests[stage.Alg]
	delete(manifests, stage.Alg)
	newInv.Fixity = manifests
	return newInv, nil
}

func priorManifests(alg string, base *Inventory) map[string]*digest.Map {
	prior := make(map[string]*digest.Map, 1+len(base.Fixity))
	prior[alg] = base.Manifest
	for a, m := range base.Fixity {
		prior[a] = m
	}
	return prior
}

func copyInventory(base *Inventory) *Inventory {
	cp := &Inventory{
		ID:               base.ID,
		Type:             base.Type,
		DigestAlgorithm:  base.DigestAlgorithm,
		ContentDirectory: base.ContentDirectory,
		Versions:         make(map[ocfl.VNum]*Version, len(base.Versions)+1),
	}
	for v, ver := range base.Versions {
		verCopy := *ver
		if ver.State != nil {
			verCopy.State = ver.State.Copy()
		}
		cp.Versions[v] = &verCopy
	}
	return cp
}

// buildManifests merges stage's file info into a copy of prior (keyed by
// algorithm id), producing the full set of manifest/fixity maps for the new
// version. contentPath namespaces each newly staged source path into its
// final manifest content path.
func buildManifests(prior map[string]*digest.Map, stage Stage, contentPath ContentPathFunc) (map[string]*digest.Map, error) {
	merged := make(map[string]*digest.Map, len(prior)+1)
	for alg, m := range prior {
		if m == nil {
			continue
		}
		merged[alg] = m.Copy()
	}
	if merged[stage.Alg] == nil {
		merged[stage.Alg] = digest.NewMap()
	}
	// Every digest referenced by the new state must resolve to a manifest
	// entry: either it was already present (prior version's content) or
	// stage.Files supplies new source paths for it.
	err := stage.State.EachPath(func(_, sum string) error {
		if merged[stage.Alg].ContainsDigest(sum) {
			return nil
		}
		info, ok := stage.Files[sum]
		if !ok || len(info.SrcPaths) == 0 {
			return fmt.Errorf("inventory: no content path supplied for new digest %s", sum)
		}
		for alg, d := range info.Digests {
			if merged[alg] == nil {
				merged[alg] = digest.NewMap()
			}
			for _, src := range info.SrcPaths {
				dst := contentPath(src)
				if merged[alg].ContainsPath(dst) {
					continue
				}
				if err := merged[alg].Add(d, dst); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

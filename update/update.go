// Package update implements the version updater (C9): a mutable working
// copy of a version's logical state plus the content staged for any new
// digests it introduces, built up by a sequence of add/remove/rename/
// reinstate calls and turned into an inventory.Stage by Finalize. The
// add-file processor (C10) — walking a source tree and staging every file
// under it — is AddTree, built on top of the same per-file primitives.
package update

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/inventory"
	"github.com/ocflcore/ocfl/ocfl"
	"github.com/ocflcore/ocfl/ocflerr"
	"github.com/ocflcore/ocfl/storage"
)

// options control the behavior of a single add/rename/reinstate call.
type options struct {
	overwrite  bool
	moveSource bool
}

// Option configures a single call to AddFile, AddPath, AddTree,
// RenameFile, or ReinstateFile.
type Option func(*options)

// WithOverwrite allows the call to replace an existing logical path instead
// of failing with an Overwrite error.
func WithOverwrite() Option { return func(o *options) { o.overwrite = true } }

// WithMoveSource allows AddPath/AddTree to move source content into the
// updater's staging backend instead of copying it, when the source and
// staging backends are the same. It has no effect on AddFile, which always
// consumes an io.Reader.
func WithMoveSource() Option { return func(o *options) { o.moveSource = true } }

func apply(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Updater builds the next version's state and content set for an object,
// starting from the head state of an existing inventory (base), or from
// scratch for a new object (base == nil).
type Updater struct {
	alg        digest.Alg
	reg        digest.Registry
	base       *inventory.Inventory
	state      *digest.Map
	files      map[string]inventory.FileInfo
	staging    storage.Backend
	stagingDir string
	fixityAlgs []string
	seq        int
}

// New returns an Updater seeded from base's head version state (or an empty
// state if base is nil). staging is where AddFile/AddPath/AddTree place the
// bytes of any newly introduced content; stagingDir scopes those writes to
// a subdirectory of staging (callers typically use a fresh temp directory
// per update so concurrent updates don't collide). fixityAlgs names
// additional digest algorithms (beyond alg) to compute for new content and
// record in the resulting stage's fixity block.
func New(base *inventory.Inventory, alg digest.Alg, reg digest.Registry, staging storage.Backend, stagingDir string, fixityAlgs ...string) (*Updater, error) {
	if base != nil && base.DigestAlgorithm != alg.ID() {
		return nil, ocflerr.Newf(ocflerr.InvalidInput, "update.New", "digest algorithm %q does not match object's existing algorithm %q", alg.ID(), base.DigestAlgorithm)
	}
	u := &Updater{
		alg:        alg,
		reg:        reg,
		base:       base,
		files:      map[string]inventory.FileInfo{},
		staging:    staging,
		stagingDir: stagingDir,
		fixityAlgs: fixityAlgs,
	}
	if base != nil {
		head := base.GetVersion(ocfl.VNum{})
		if head != nil {
			u.state = head.State.Copy()
		}
	}
	if u.state == nil {
		u.state = digest.NewMap()
	}
	return u, nil
}

// State returns the updater's current working state. The returned Map must
// not be mutated by the caller.
func (u *Updater) State() *digest.Map { return u.state }

func (u *Updater) knownDigest(sum string) bool {
	if u.base != nil && u.base.Manifest != nil && u.base.Manifest.ContainsDigest(sum) {
		return true
	}
	_, ok := u.files[sum]
	return ok
}

// nextStagingPath allocates a collision-free staging path derived from
// logical, so two distinct digests added under the same logical path across
// calls (e.g. a file replaced then the replacement removed) never clobber
// each other's staged bytes. It is purely a scratch write location: it must
// never be used as a FileInfo.SrcPaths entry, which instead namespaces the
// final manifest content path and so must stay derived from the sanitized
// logical path, nested directories and all.
func (u *Updater) nextStagingPath(logical string) string {
	u.seq++
	return path.Join(u.stagingDir, strconv.Itoa(u.seq)+"_"+path.Base(logical))
}

func (u *Updater) digestAlgs() []string {
	algs := make([]string, 0, 1+len(u.fixityAlgs))
	algs = append(algs, u.alg.ID())
	algs = append(algs, u.fixityAlgs...)
	return algs
}

// checkOverwrite reports an Overwrite error if logical is already present in
// the working state and o doesn't opt in to replacing it. Callers that are
// about to write or move bytes in staging must call this before touching
// staging, not only before committing the state change: an Overwrite failure
// must never leave orphaned or relocated bytes behind.
func (u *Updater) checkOverwrite(logical string, o options) error {
	if u.state.ContainsPath(logical) && !o.overwrite {
		return ocflerr.Newf(ocflerr.Overwrite, "update", "logical path already exists in version state: %s", logical)
	}
	return nil
}

func (u *Updater) setState(logical, sum string, o options) error {
	if err := u.checkOverwrite(logical, o); err != nil {
		return err
	}
	if u.state.ContainsPath(logical) {
		u.state.RemovePath(logical)
	}
	if err := u.state.Add(sum, logical); err != nil {
		return ocflerr.New(ocflerr.PathConstraint, "update", err)
	}
	return nil
}

// RemoveFile removes logical from the working state.
func (u *Updater) RemoveFile(logical string) error {
	if !u.state.ContainsPath(logical) {
		return ocflerr.Newf(ocflerr.NotFound, "update.RemoveFile", "logical path not found: %s", logical)
	}
	u.state.RemovePath(logical)
	return nil
}

// RenameFile moves src to dst within the working state without touching any
// content.
func (u *Updater) RenameFile(src, dst string, opts ...Option) error {
	o := apply(opts)
	sum := u.state.GetDigest(src)
	if sum == "" {
		return ocflerr.Newf(ocflerr.NotFound, "update.RenameFile", "logical path not found: %s", src)
	}
	if dst != src {
		u.state.RemovePath(src)
	}
	if err := u.setState(dst, sum, o); err != nil {
		return err
	}
	return nil
}

// ReinstateFile copies the content reference for srcLogical in version v's
// state (the base inventory's, not the working state) into the working
// state at dstLogical. No new content is staged: v's digest is already in
// the base inventory's manifest.
func (u *Updater) ReinstateFile(v ocfl.VNum, srcLogical, dstLogical string, opts ...Option) error {
	o := apply(opts)
	if u.base == nil {
		return ocflerr.Newf(ocflerr.NotFound, "update.ReinstateFile", "no prior version %s: object has no base inventory", v)
	}
	ver := u.base.GetVersion(v)
	if ver == nil || ver.State == nil {
		return ocflerr.Newf(ocflerr.NotFound, "update.ReinstateFile", "version not found: %s", v)
	}
	sum := ver.State.GetDigest(srcLogical)
	if sum == "" {
		return ocflerr.Newf(ocflerr.NotFound, "update.ReinstateFile", "logical path not found in version %s: %s", v, srcLogical)
	}
	return u.setState(dstLogical, sum, o)
}

// AddFile digests r's full content, stages it if its digest is new to the
// object, and adds logical to the working state under that digest. If
// logical is already present in the state, WithOverwrite must be given or
// AddFile fails.
func (u *Updater) AddFile(ctx context.Context, logical string, r io.Reader, opts ...Option) error {
	if err := ocfl.ValidPath(logical); err != nil {
		return ocflerr.New(ocflerr.PathConstraint, "update.AddFile", err)
	}
	o := apply(opts)
	if err := u.checkOverwrite(logical, o); err != nil {
		return err
	}
	md, err := u.reg.NewMultiDigester(u.digestAlgs()...)
	if err != nil {
		return ocflerr.New(ocflerr.InvalidInput, "update.AddFile", err)
	}
	stagedPath := u.nextStagingPath(logical)
	if _, err := u.staging.Write(ctx, stagedPath, io.TeeReader(r, md)); err != nil {
		return ocflerr.New(ocflerr.IO, "update.AddFile", err)
	}
	sums := md.Sums()
	sum := sums[u.alg.ID()]
	if u.knownDigest(sum) {
		_ = u.staging.Delete(ctx, stagedPath) // dedup: existing manifest entry covers this content
	} else {
		u.files[sum] = inventory.FileInfo{Digests: sums, SrcPaths: []string{logical}, StagingPaths: []string{stagedPath}}
	}
	return u.setState(logical, sum, o)
}

// AddPath digests the file at srcPath in source and adds it to the working
// state at logical, staging its bytes (by copy, or by move if WithMoveSource
// is given and source is the updater's own staging backend).
func (u *Updater) AddPath(ctx context.Context, logical string, source storage.Backend, srcPath string, opts ...Option) error {
	f, err := source.Read(ctx, srcPath)
	if err != nil {
		return ocflerr.New(ocflerr.IO, "update.AddPath", err)
	}
	defer f.Close()
	o := apply(opts)
	if o.moveSource && source == u.staging {
		return u.addByMove(ctx, logical, srcPath, o)
	}
	return u.AddFile(ctx, logical, f, opts...)
}

func (u *Updater) addByMove(ctx context.Context, logical, srcPath string, o options) error {
	if err := ocfl.ValidPath(logical); err != nil {
		return ocflerr.New(ocflerr.PathConstraint, "update.AddPath", err)
	}
	if err := u.checkOverwrite(logical, o); err != nil {
		return err
	}
	f, err := u.staging.Read(ctx, srcPath)
	if err != nil {
		return ocflerr.New(ocflerr.IO, "update.AddPath", err)
	}
	md, err := u.reg.NewMultiDigester(u.digestAlgs()...)
	if err != nil {
		f.Close()
		return ocflerr.New(ocflerr.InvalidInput, "update.AddPath", err)
	}
	if _, err := io.Copy(md, f); err != nil {
		f.Close()
		return ocflerr.New(ocflerr.IO, "update.AddPath", err)
	}
	f.Close()
	sums := md.Sums()
	sum := sums[u.alg.ID()]
	if u.knownDigest(sum) {
		_ = u.staging.Delete(ctx, srcPath)
	} else {
		dst := u.nextStagingPath(logical)
		if err := u.staging.Move(ctx, srcPath, dst); err != nil {
			return ocflerr.New(ocflerr.IO, "update.AddPath", err)
		}
		u.files[sum] = inventory.FileInfo{Digests: sums, SrcPaths: []string{logical}, StagingPaths: []string{dst}}
	}
	return u.setState(logical, sum, o)
}

// AddTree walks every file under srcDir in source, adding each one to the
// working state at its path relative to srcDir (the add-file processor,
// C10).
func (u *Updater) AddTree(ctx context.Context, source storage.Backend, srcDir string, opts ...Option) error {
	entries, err := source.List(ctx, srcDir, true)
	if err != nil {
		return ocflerr.New(ocflerr.IO, "update.AddTree", err)
	}
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := u.AddPath(ctx, e.Name, source, path.Join(srcDir, e.Name), opts...); err != nil {
			return fmt.Errorf("adding %s: %w", e.Name, err)
		}
	}
	return nil
}

// Finalize returns the inventory.Stage representing everything accumulated
// by prior calls, ready for inventory.Builder.New or Builder.Next.
func (u *Updater) Finalize() inventory.Stage {
	return inventory.Stage{
		Alg:   u.alg.ID(),
		State: u.state.Copy(),
		Files: u.files,
	}
}

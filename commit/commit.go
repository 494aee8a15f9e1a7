// Package commit implements the commit engine (C11): it turns a staged
// version (inventory.Stage, typically produced by update.Updater) into a
// new object version on a Storage backend, or creates a brand-new object.
// Commit follows the same stage -> validate -> pairwise-compare -> write ->
// install -> cleanup sequence for both a standard immutable version and a
// mutable-HEAD revision (see mutable.go), and uses the Storage port's Move
// as its concurrency linearization point to detect a racing writer.
package commit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/inventory"
	"github.com/ocflcore/ocfl/logging"
	"github.com/ocflcore/ocfl/namaste"
	"github.com/ocflcore/ocfl/ocfl"
	"github.com/ocflcore/ocfl/ocflerr"
	"github.com/ocflcore/ocfl/storage"
	"golang.org/x/sync/errgroup"
	"log/slog"
)

type config struct {
	created     time.Time
	message     string
	user        *ocfl.User
	requireHead int
	padding     int
	contentDir  string
	spec        ocfl.Spec
	logger      *slog.Logger
	concurrency int
}

// Option configures a Commit call.
type Option func(*config)

func WithCreated(t time.Time) Option       { return func(c *config) { c.created = t } }
func WithMessage(msg string) Option        { return func(c *config) { c.message = msg } }
func WithUser(u *ocfl.User) Option         { return func(c *config) { c.user = u } }
func WithRequireHead(n int) Option         { return func(c *config) { c.requireHead = n } }
func WithPadding(n int) Option             { return func(c *config) { c.padding = n } }
func WithContentDirectory(s string) Option { return func(c *config) { c.contentDir = s } }
func WithSpec(s ocfl.Spec) Option          { return func(c *config) { c.spec = s } }
func WithLogger(l *slog.Logger) Option     { return func(c *config) { c.logger = l } }
func WithConcurrency(n int) Option         { return func(c *config) { c.concurrency = n } }

func newConfig(opts []Option) *config {
	c := &config{
		created:     time.Now().UTC(),
		contentDir:  inventory.DefaultContentDirectory,
		logger:      logging.Disabled(),
		concurrency: 4,
	}
	for _, o := range opts {
		o(c)
	}
	c.created = c.created.Truncate(time.Second)
	return c
}

// Commit creates or updates the OCFL object at objPath on backend using the
// content staged in stage. staging is the Storage backend stage.Files' paths
// are relative to (typically the same backend an update.Updater staged
// content into). stage.Alg names the object's digest algorithm: for an
// update it must match the existing object's algorithm.
func Commit(ctx context.Context, backend storage.Backend, objPath, objID string, stage inventory.Stage, staging storage.Backend, reg digest.Registry, opts ...Option) (*inventory.Inventory, error) {
	cfg := newConfig(opts)
	alg, err := reg.Get(stage.Alg)
	if err != nil {
		return nil, ocflerr.New(ocflerr.InvalidInput, "commit.Commit", err)
	}

	baseInv, err := readExisting(ctx, backend, objPath, objID, reg)
	if err != nil {
		return nil, err
	}

	builder := inventory.NewBuilder(objID)
	builder.ContentDirectory = cfg.contentDir
	builder.Padding = cfg.padding

	var newInv *inventory.Inventory
	if baseInv == nil {
		newInv, err = builder.New(stage, cfg.created, cfg.message, cfg.user)
	} else {
		newInv, err = builder.Next(baseInv, stage, cfg.created, cfg.message, cfg.user)
	}
	if err != nil {
		return nil, ocflerr.New(ocflerr.InvalidInventory, "commit.Commit", err)
	}
	if cfg.requireHead > 0 && newInv.Head.Num() != cfg.requireHead {
		return nil, ocflerr.Newf(ocflerr.ObjectOutOfSync, "commit.Commit", "commit requires version %d but the object's next version is %s", cfg.requireHead, newInv.Head)
	}
	if !cfg.spec.Empty() {
		newInv.Type = cfg.spec.AsInventoryType()
	} else if baseInv != nil {
		newInv.Type = baseInv.Type
	} else {
		newInv.Type = ocfl.Spec1_0.AsInventoryType()
	}

	if res := newInv.Validate(); !res.Valid() {
		return nil, ocflerr.New(ocflerr.InvalidInventory, "commit.Commit", res.Err())
	}
	if baseInv != nil {
		if res := inventory.PairwiseValidate(baseInv, newInv); !res.Valid() {
			return nil, ocflerr.New(ocflerr.InvalidInventory, "commit.Commit", res.Err())
		}
	}

	cfg.logger.DebugContext(ctx, "committing object version", "id", objID, "head", newInv.Head.String())

	if baseInv == nil {
		decl := namaste.Declaration{Type: namaste.TypeObject, Version: newInv.Type.Spec}
		if err := namaste.Write(ctx, backend, objPath, decl); err != nil {
			return nil, ocflerr.New(ocflerr.IO, "commit.Commit", err)
		}
	}

	versionDir := path.Join(objPath, newInv.Head.String())
	if exists, err := backend.Exists(ctx, versionDir); err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit.Commit", err)
	} else if exists {
		return nil, ocflerr.Newf(ocflerr.ObjectOutOfSync, "commit.Commit", "version directory already exists: %s", versionDir)
	}

	tempDir := path.Join(objPath, ".ocfl-tmp-"+newInv.Head.String())
	if err := transferNewContent(ctx, staging, backend, stage, newInv, tempDir, reg, cfg.concurrency); err != nil {
		_ = backend.Delete(ctx, tempDir)
		return nil, ocflerr.New(ocflerr.IO, "commit.Commit", err)
	}
	if err := inventory.Write(ctx, backend, newInv, alg, tempDir); err != nil {
		_ = backend.Delete(ctx, tempDir)
		return nil, ocflerr.New(ocflerr.IO, "commit.Commit", err)
	}
	if err := backend.Move(ctx, tempDir, versionDir); err != nil {
		_ = backend.Delete(ctx, tempDir)
		return nil, ocflerr.Newf(ocflerr.ObjectOutOfSync, "commit.Commit", "a concurrent commit installed %s first: %v", versionDir, err)
	}
	if err := inventory.Write(ctx, backend, newInv, alg, objPath); err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit.Commit", err)
	}
	return newInv, nil
}

// readExisting loads and shallow-validates the object's current root
// inventory, returning nil if no object exists yet at objPath.
func readExisting(ctx context.Context, backend storage.Backend, objPath, objID string, reg digest.Registry) (*inventory.Inventory, error) {
	exists, err := backend.Exists(ctx, path.Join(objPath, inventory.FileName))
	if err != nil {
		return nil, ocflerr.New(ocflerr.IO, "commit", err)
	}
	if !exists {
		return nil, nil
	}
	alg, err := sidecarAlgorithm(ctx, backend, objPath, reg)
	if err != nil {
		return nil, ocflerr.New(ocflerr.CorruptObject, "commit", err)
	}
	inv, err := inventory.Read(ctx, backend, objPath, alg)
	if err != nil {
		return nil, ocflerr.New(ocflerr.CorruptObject, "commit", err)
	}
	if inv.ID != objID {
		return nil, ocflerr.Newf(ocflerr.InvalidInput, "commit", "object at %s has id %q, not %q", objPath, inv.ID, objID)
	}
	if res := inv.Validate(); !res.Valid() {
		return nil, ocflerr.New(ocflerr.InvalidInventory, "commit", res.Err())
	}
	return inv, nil
}

// sidecarAlgorithm finds the object root's inventory.json.<alg> sidecar and
// resolves the algorithm it names, without assuming the algorithm ahead of
// time (a fresh read of an unfamiliar object doesn't know it yet).
func sidecarAlgorithm(ctx context.Context, backend storage.Backend, objPath string, reg digest.Registry) (digest.Alg, error) {
	entries, err := backend.List(ctx, objPath, false)
	if err != nil {
		return nil, err
	}
	prefix := inventory.FileName + "."
	for _, e := range entries {
		if e.IsDir || len(e.Name) <= len(prefix) || e.Name[:len(prefix)] != prefix {
			continue
		}
		return reg.Get(e.Name[len(prefix):])
	}
	return nil, errors.New("object root has no inventory sidecar")
}

// transferNewContent copies every newly staged file from staging into
// tempDir (the version directory being assembled before its atomic
// install), using a bounded worker pool. Each copy streams through a digest
// verifier for digestAlgorithm and every fixity algorithm recorded for that
// file; a mismatch aborts the whole transfer with a FixityMismatch error
// instead of installing corrupted or truncated content under the object
// root.
func transferNewContent(ctx context.Context, staging, dest storage.Backend, stage inventory.Stage, inv *inventory.Inventory, tempDir string, reg digest.Registry, concurrency int) error {
	// buildManifests (inventory.Builder) names every new content path as
	// path.Join(head, contentDir, src) for src in FileInfo.SrcPaths, so the
	// content-path basis doubles as the content-directory-relative
	// destination path; the physical read location is StagingPaths'
	// corresponding entry (or src itself, if a caller built the Stage by
	// hand with no separate staging area).
	type job struct {
		staged, dst string
		expect      digest.Set
	}
	var jobs []job
	for _, info := range stage.Files {
		for i, src := range info.SrcPaths {
			staged := src
			if i < len(info.StagingPaths) {
				staged = info.StagingPaths[i]
			}
			jobs = append(jobs, job{
				staged: staged,
				dst:    path.Join(tempDir, inv.ContentDir(), src),
				expect: info.Digests,
			})
		}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(concurrency)
	for _, j := range jobs {
		j := j
		grp.Go(func() error {
			r, err := staging.Read(gctx, j.staged)
			if err != nil {
				return fmt.Errorf("reading staged content %s: %w", j.staged, err)
			}
			defer r.Close()
			md, err := reg.NewMultiDigester(reg.GetAnyIDs(j.expect.Algorithms())...)
			if err != nil {
				return fmt.Errorf("preparing fixity check for %s: %w", j.dst, err)
			}
			if _, err := dest.Write(gctx, j.dst, io.TeeReader(r, md)); err != nil {
				return fmt.Errorf("writing %s: %w", j.dst, err)
			}
			got := md.Sums()
			for _, alg := range got.ConflictsWith(j.expect) {
				return ocflerr.New(ocflerr.FixityMismatch, "commit.Commit", &digest.DigestError{
					Path:     j.dst,
					Alg:      alg,
					Got:      got[alg],
					Expected: j.expect[alg],
					Fixity:   alg != inv.DigestAlgorithm,
				})
			}
			return nil
		})
	}
	return grp.Wait()
}

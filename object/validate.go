// Package object implements the standalone object validator (C12): given a
// storage-rooted OCFL object directory, it walks every structural
// requirement the spec imposes and reports every deviation it finds as a
// coded issue, continuing past the first failure so a single run surfaces
// everything wrong with an object instead of stopping at the first defect.
// It never returns an error for a validation failure — only for an
// underlying Storage I/O failure that prevents the walk from continuing.
package object

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/inventory"
	"github.com/ocflcore/ocfl/layout"
	"github.com/ocflcore/ocfl/namaste"
	"github.com/ocflcore/ocfl/ocfl"
	"github.com/ocflcore/ocfl/storage"
	"github.com/ocflcore/ocfl/validatecode"
	"github.com/ocflcore/ocfl/validation"
)

var versionDirRexp = regexp.MustCompile(`^v\d+$`)

type config struct {
	logger      logr.Logger
	reg         digest.Registry
	checkFixity bool
	concurrency int
}

// Option configures a Validate call.
type Option func(*config)

// WithLogger streams every issue to l as it's recorded, in addition to
// accumulating it in the returned Result.
func WithLogger(l logr.Logger) Option { return func(c *config) { c.logger = l } }

// WithRegistry supplies the digest algorithm registry used to verify
// fixity; defaults to digest.DefaultRegistry().
func WithRegistry(reg digest.Registry) Option { return func(c *config) { c.reg = reg } }

// WithFixityCheck enables the optional content-digest walk (step 6 of the
// object validator): every content file is streamed through every
// algorithm named for it in the manifest and fixity blocks, and a mismatch
// is reported as an Error-severity issue. Disabled by default since it
// requires reading every byte of every content file.
func WithFixityCheck() Option { return func(c *config) { c.checkFixity = true } }

// WithConcurrency bounds how many content files the optional fixity walk
// digests concurrently. Default 4.
func WithConcurrency(n int) Option { return func(c *config) { c.concurrency = n } }

func newConfig(opts []Option) *config {
	c := &config{reg: digest.DefaultRegistry(), concurrency: 4}
	for _, o := range opts {
		o(c)
	}
	return c
}

// validator holds the state accumulated while walking one object.
type validator struct {
	cfg    *config
	log    validation.Log
	backend storage.Backend
	root   string

	rootInv *inventory.Inventory
	ledger  *pathLedger
}

// Validate walks the OCFL object rooted at root (relative to backend) and
// returns a Result cataloguing every issue found. A non-nil error indicates
// the walk itself could not complete (a Storage I/O failure), not that the
// object is invalid.
func Validate(ctx context.Context, backend storage.Backend, root string, opts ...Option) (*validation.Result, error) {
	cfg := newConfig(opts)
	v := &validator{
		cfg:     cfg,
		log:     validation.NewLog(cfg.logger),
		backend: backend,
		root:    root,
		ledger:  newPathLedger(),
	}
	if err := v.validateNamaste(ctx); err != nil {
		return v.log.Result, err
	}
	if v.log.Err() != nil {
		return v.log.Result, nil
	}
	if err := v.validateRootInventory(ctx); err != nil {
		return v.log.Result, err
	}
	if v.rootInv == nil {
		return v.log.Result, nil
	}
	if err := v.validateRootEntries(ctx); err != nil {
		return v.log.Result, err
	}
	for _, vn := range reverseVNums(v.rootInv.VNums()) {
		if err := v.validateVersionDir(ctx, vn); err != nil {
			return v.log.Result, err
		}
	}
	v.checkOrphanManifestEntries()
	v.checkManifestDiskCrossReference()
	if err := v.validateExtensionsDir(ctx); err != nil {
		return v.log.Result, err
	}
	if cfg.checkFixity {
		if err := v.walkFixity(ctx); err != nil {
			return v.log.Result, err
		}
	}
	return v.log.Result, nil
}

// checkManifestDiskCrossReference is step 5: every manifest content path
// must exist on disk, and every file found under a version's content
// directory must be referenced by the manifest. Unlike the optional fixity
// walk (step 6), this never reads file content — it only compares the
// ledger's manifest references against what walkVersionContent found.
func (v *validator) checkManifestDiskCrossReference() {
	for _, p := range v.ledger.missingManifestPaths() {
		v.log.AddFatal(validation.WithCode(fmt.Errorf("manifest path does not exist: %s", p), validatecode.E093))
	}
	for _, p := range v.ledger.unreferencedDiskPaths() {
		v.log.AddFatal(validation.WithCode(fmt.Errorf("content file not referenced in manifest: %s", p), validatecode.E023))
	}
}

func reverseVNums(vs ocfl.VNums) ocfl.VNums {
	out := make(ocfl.VNums, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	return out
}

// validateNamaste checks the object root NAMASTE declaration (step 1).
func (v *validator) validateNamaste(ctx context.Context) error {
	entries, err := v.backend.List(ctx, v.root, false)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			v.log.AddFatal(fmt.Errorf("object root does not exist: %s", v.root))
			return nil
		}
		return err
	}
	decl, err := namaste.Find(entries)
	if err != nil {
		v.log.AddFatal(validation.WithCode(fmt.Errorf("object root %s: %w", v.root, err), validatecode.E003))
		return nil
	}
	if !decl.IsObject() {
		v.log.AddFatal(validation.WithCode(fmt.Errorf("declaration is not an OCFL object declaration: %s", decl.Name()), validatecode.E004))
		return nil
	}
	if err := namaste.Validate(ctx, v.backend, path.Join(v.root, decl.Name())); err != nil {
		v.log.AddFatal(validation.WithCode(err, validatecode.E007))
	}
	return nil
}

// validateRootInventory checks the root inventory.json and its sidecar
// (step 2).
func (v *validator) validateRootInventory(ctx context.Context) error {
	exists, err := v.backend.Exists(ctx, path.Join(v.root, inventory.FileName))
	if err != nil {
		return err
	}
	if !exists {
		v.log.AddFatal(validation.WithCode(errors.New("missing root inventory.json"), validatecode.E033))
		return nil
	}
	alg, err := v.sidecarAlgorithm(ctx, v.root)
	if err != nil {
		v.log.AddFatal(validation.WithCode(err, validatecode.E034))
		return nil
	}
	inv := v.decodeInventory(ctx, v.root, alg, validatecode.E100)
	if inv == nil {
		return nil
	}
	if res := inv.Validate(); res != nil {
		v.log.AddResult(res)
	}
	v.rootInv = inv
	v.ledger.addManifest(inv.Manifest.EachPath)
	for algID, m := range inv.Fixity {
		v.ledger.addFixity(algID, m.EachPath)
	}
	return nil
}

// validateRootEntries checks that the object root contains nothing beyond
// the declaration, inventory+sidecar, logs/, extensions/, and one
// directory per version in the inventory (step 3).
func (v *validator) validateRootEntries(ctx context.Context) error {
	entries, err := v.backend.List(ctx, v.root, false)
	if err != nil {
		return err
	}
	want := map[string]bool{
		inventory.FileName: true,
		inventory.FileName + "." + v.rootInv.DigestAlgorithm: true,
		"logs":       true,
		"extensions": true,
	}
	decl, _ := namaste.Find(entries)
	want[decl.Name()] = true
	vnums := v.rootInv.VNums()
	have := map[ocfl.VNum]bool{}
	for _, vn := range vnums {
		want[vn.String()] = true
	}
	for _, e := range entries {
		if want[e.Name] {
			if e.IsDir && versionDirRexp.MatchString(e.Name) {
				if vn, err := ocfl.ParseVNum(e.Name); err == nil {
					have[vn] = true
				}
			}
			continue
		}
		v.log.AddFatal(validation.WithCode(fmt.Errorf("unexpected entry in object root: %s", e.Name), validatecode.E001))
	}
	for _, vn := range vnums {
		if !have[vn] {
			v.log.AddFatal(validation.WithCode(fmt.Errorf("missing version directory: %s", vn), validatecode.E008))
		}
	}
	return nil
}

// validateVersionDir checks one version directory (step 4): its inventory
// (if present), its content files (added to the ledger), and any unexpected
// entries.
func (v *validator) validateVersionDir(ctx context.Context, vn ocfl.VNum) error {
	vDir := path.Join(v.root, vn.String())
	entries, err := v.backend.List(ctx, vDir, false)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // already flagged missing in validateRootEntries
		}
		return err
	}
	contentDir := v.rootInv.ContentDir()
	var hasInventory, hasContentDir bool
	var sidecarSuffix string
	for _, e := range entries {
		switch {
		case !e.IsDir && e.Name == inventory.FileName:
			hasInventory = true
		case !e.IsDir && strings.HasPrefix(e.Name, inventory.FileName+"."):
			sidecarSuffix = strings.TrimPrefix(e.Name, inventory.FileName+".")
		case e.IsDir && e.Name == contentDir:
			hasContentDir = true
		case e.IsDir:
			v.log.AddWarn(validation.WithCode(fmt.Errorf("%s: unexpected directory: %s", vn, e.Name), validatecode.W002))
		default:
			v.log.AddFatal(validation.WithCode(fmt.Errorf("%s: unexpected file: %s", vn, e.Name), validatecode.E015))
		}
	}
	if hasContentDir {
		if err := v.walkVersionContent(ctx, vn, contentDir); err != nil {
			return err
		}
	}
	if !hasInventory {
		v.log.AddWarn(validation.WithCode(fmt.Errorf("%s: missing version inventory", vn), validatecode.W010))
		return nil
	}
	return v.validateVersionInventory(ctx, vn, sidecarSuffix)
}

func (v *validator) walkVersionContent(ctx context.Context, vn ocfl.VNum, contentDir string) error {
	contPath := path.Join(v.root, vn.String(), contentDir)
	entries, err := v.backend.List(ctx, contPath, true)
	if err != nil {
		return err
	}
	var files int
	dirsWithFiles := map[string]bool{}
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		files++
		objPath := path.Join(vn.String(), contentDir, e.Name)
		v.ledger.markOnDisk(objPath)
		for dir := path.Dir(e.Name); dir != "." && dir != "/"; dir = path.Dir(dir) {
			dirsWithFiles[dir] = true
		}
	}
	for _, e := range entries {
		if e.IsDir && !dirsWithFiles[e.Name] {
			v.log.AddWarn(fmt.Errorf("%s: empty directory under content directory: %s", vn, e.Name))
		}
	}
	if files == 0 {
		v.log.AddFatal(validation.WithCode(fmt.Errorf("%s: content directory contains no files", vn), validatecode.E016))
	}
	return nil
}

func (v *validator) validateVersionInventory(ctx context.Context, vn ocfl.VNum, sidecarSuffix string) error {
	vDir := path.Join(v.root, vn.String())
	if sidecarSuffix == "" {
		v.log.AddFatal(validation.WithCode(fmt.Errorf("%s: missing inventory sidecar", vn), validatecode.E034))
		return nil
	}
	alg, err := v.cfg.reg.Get(sidecarSuffix)
	if err != nil {
		v.log.AddFatal(fmt.Errorf("%s: unsupported sidecar digest algorithm: %s", vn, sidecarSuffix))
		return nil
	}
	inv := v.decodeInventory(ctx, vDir, alg, validatecode.E100)
	if inv == nil {
		return nil
	}
	if res := inv.Validate(); res != nil {
		v.log.AddResult(res)
	}
	v.ledger.addManifest(inv.Manifest.EachPath)
	for algID, m := range inv.Fixity {
		v.ledger.addFixity(algID, m.EachPath)
	}

	if vn == v.rootInv.Head {
		if inv.SidecarDigest() != v.rootInv.SidecarDigest() {
			v.log.AddFatal(validation.WithCode(fmt.Errorf("%s: inventory is not byte-identical to the root inventory", vn), validatecode.E044))
		}
		return nil
	}
	if inv.ID != v.rootInv.ID {
		v.log.AddFatal(fmt.Errorf("%s: inventory id %q does not match root inventory id %q", vn, inv.ID, v.rootInv.ID))
	}
	if inv.ContentDirectory != v.rootInv.ContentDirectory {
		v.log.AddFatal(fmt.Errorf("%s: contentDirectory %q does not match root inventory's %q", vn, inv.ContentDirectory, v.rootInv.ContentDirectory))
	}
	if inv.Head != vn {
		v.log.AddFatal(fmt.Errorf("%s: inventory head is %s, expected %s", vn, inv.Head, vn))
	}
	for shared, rootVer := range v.rootInv.Versions {
		ver := inv.Versions[shared]
		if ver == nil {
			continue
		}
		if err := statesDiffer(rootVer.State, ver.State); err != nil {
			v.log.AddFatal(validation.WithCode(fmt.Errorf("%s: version %s: %w", vn, shared, err), validatecode.E066))
		}
		if !rootVer.Created.Equal(ver.Created) || rootVer.Message != ver.Message {
			v.log.AddWarn(validation.WithCode(fmt.Errorf("%s: version %s metadata differs from root inventory", vn, shared), validatecode.W011))
		}
	}
	return nil
}

func statesDiffer(a, b *digest.Map) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("state digest count differs from root inventory")
	}
	var err error
	_ = a.EachPath(func(p, d string) error {
		if got := b.GetDigest(p); got != d {
			err = fmt.Errorf("path %s does not match root inventory's state", p)
			return err
		}
		return nil
	})
	return err
}

// checkOrphanManifestEntries flags a manifest digest with no referencing
// version state anywhere in the inventory (decision recorded in
// SPEC_FULL.md: this is a CorruptObject signal from the on-disk validator,
// never an InvalidInventory error from the in-memory validators).
func (v *validator) checkOrphanManifestEntries() {
	if v.rootInv == nil {
		return
	}
	for _, sum := range v.rootInv.Manifest.Digests() {
		var used bool
		for _, ver := range v.rootInv.Versions {
			if ver.State != nil && ver.State.ContainsDigest(sum) {
				used = true
				break
			}
		}
		if !used {
			v.log.AddFatal(validation.WithCode(fmt.Errorf("manifest digest not referenced by any version state: %s", sum), validatecode.E066))
		}
	}
}

// validateExtensionsDir checks step 7: every entry under extensions/ must
// be a directory, and unregistered extension names produce a warning
// rather than a fatal error.
func (v *validator) validateExtensionsDir(ctx context.Context) error {
	extDir := path.Join(v.root, "extensions")
	exists, err := v.backend.Exists(ctx, extDir)
	if err != nil || !exists {
		return nil
	}
	entries, err := v.backend.List(ctx, extDir, false)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir {
			v.log.AddFatal(validation.WithCode(fmt.Errorf("extensions: unexpected file: %s", e.Name), validatecode.E001))
			continue
		}
		if !layout.IsRegistered(e.Name) && e.Name != mutableHeadExtensionName {
			v.log.AddWarn(validation.WithCode(fmt.Errorf("extensions: unregistered extension: %s", e.Name), validatecode.W013))
		}
	}
	return nil
}

// mutableHeadExtensionName is the directory name commit's mutable-HEAD
// implementation uses; the object validator doesn't otherwise depend on
// the commit package, so it's named directly rather than imported.
const mutableHeadExtensionName = "0005-mutable-head"

// walkFixity is the optional step 6: a concurrent re-digest of every
// content file named in the manifest or a fixity block, checked against
// every digest recorded for it. Existence (step 5) is already checked by
// checkManifestDiskCrossReference regardless of whether this runs.
func (v *validator) walkFixity(ctx context.Context) error {
	type job struct {
		path   string
		expect digest.Set
	}
	var jobs []job
	for p, e := range v.ledger.paths {
		expect := digest.Set{}
		if e.digest != "" {
			expect[v.rootInv.DigestAlgorithm] = e.digest
		}
		for alg, d := range e.fixity {
			expect[alg] = d
		}
		if len(expect) > 0 {
			jobs = append(jobs, job{path: p, expect: expect})
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].path < jobs[j].path })

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(v.cfg.concurrency)
	for _, j := range jobs {
		j := j
		grp.Go(func() error {
			r, err := v.backend.Read(gctx, path.Join(v.root, j.path))
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil // already reported by missingManifestPaths
				}
				return err
			}
			defer r.Close()
			verr := digest.Validate(gctx, r, j.expect, v.cfg.reg)
			if verr != nil {
				var derr *digest.DigestError
				if errors.As(verr, &derr) {
					derr.Path = j.path
					v.log.AddFatal(validation.WithCode(derr, validatecode.E093))
					return nil
				}
				return verr
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	v.log.AddInfo(fmt.Errorf("fixity walk verified %d content path(s)", len(jobs)))
	return nil
}

// sidecarAlgorithm finds dir's inventory.json.<alg> sidecar and resolves
// the algorithm it names.
func (v *validator) sidecarAlgorithm(ctx context.Context, dir string) (digest.Alg, error) {
	entries, err := v.backend.List(ctx, dir, false)
	if err != nil {
		return nil, err
	}
	prefix := inventory.FileName + "."
	for _, e := range entries {
		if e.IsDir || !strings.HasPrefix(e.Name, prefix) {
			continue
		}
		return v.cfg.reg.Get(e.Name[len(prefix):])
	}
	return nil, errors.New("no inventory sidecar found")
}

// decodeInventory reads and decodes dir/inventory.json, verifying it
// against its sidecar under alg. Decode or sidecar-mismatch failures are
// recorded as fatal issues (never returned as an error) so the walk can
// continue with whatever else it can check; a nil return means decoding
// failed entirely and the caller should stop processing dir's inventory.
func (v *validator) decodeInventory(ctx context.Context, dir string, alg digest.Alg, mismatchCode validatecode.Code) *inventory.Inventory {
	inv, err := inventory.Read(ctx, v.backend, dir, alg)
	if err != nil {
		if strings.Contains(err.Error(), "does not match digest recorded in sidecar") {
			v.log.AddFatal(validation.WithCode(err, mismatchCode))
			return nil
		}
		v.log.AddFatal(validation.WithCode(fmt.Errorf("%s: %w", dir, err), validatecode.E034))
		return nil
	}
	return inv
}

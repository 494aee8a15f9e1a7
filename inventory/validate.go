package inventory

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/ocfl"
	"github.com/ocflcore/ocfl/validatecode"
	"github.com/ocflcore/ocfl/validation"
)

// Validate performs shallow validation: it checks the inventory's own
// structure and internal consistency (required fields, version numbering,
// every state digest present in the manifest) without touching the Storage
// backend. It does not check that every manifest digest is used by some
// version, and it never reports content-addressed fixity; the object
// package's on-disk validator checks both.
func (inv *Inventory) Validate() *validation.Result {
	result := &validation.Result{}
	if inv.Type.Empty() {
		result.AddFatal(validation.WithCode(errors.New("missing required field: type"), validatecode.E036))
	}
	if inv.ID == "" {
		result.AddFatal(validation.WithCode(errors.New("missing required field: id"), validatecode.E036))
	}
	if inv.Head.Empty() {
		result.AddFatal(validation.WithCode(errors.New("missing required field: head"), validatecode.E036))
	}
	if result.Err() != nil {
		return result
	}
	if u, err := url.ParseRequestURI(inv.ID); err != nil || u.Scheme == "" {
		result.AddWarn(validation.WithCode(fmt.Errorf("id is not a URI: %s", inv.ID), validatecode.W005))
	}
	if !digest.Primary(inv.DigestAlgorithm) {
		result.AddFatal(validation.WithCode(fmt.Errorf("digestAlgorithm must be sha512 or sha256, got %q", inv.DigestAlgorithm), validatecode.E042))
	}
	if err := inv.Head.Valid(); err != nil {
		result.AddFatal(validation.WithCode(fmt.Errorf("head is invalid: %w", err), validatecode.E011))
	}
	if err := ocfl.ValidContentDirectory(inv.ContentDirectory); err != nil {
		result.AddFatal(validation.WithCode(err, validatecode.E017))
	}
	if inv.Manifest == nil {
		result.AddFatal(validation.WithCode(errors.New("missing manifest"), validatecode.E036))
		return result
	}

	vnums := inv.VNums()
	if err := vnums.Valid(); err != nil {
		code := validatecode.E009
		if errors.Is(err, ocfl.ErrVNumPadding) {
			code = validatecode.E012
		}
		result.AddFatal(validation.WithCode(err, code))
	} else if vnums.Head() != inv.Head {
		result.AddFatal(validation.WithCode(fmt.Errorf("head %s is not the highest version present", inv.Head), validatecode.E049))
	}

	for _, v := range vnums {
		ver := inv.Versions[v]
		if ver.State == nil {
			result.AddFatal(validation.WithCode(fmt.Errorf("version %s missing state", v), validatecode.E036))
			continue
		}
		_ = ver.State.EachPath(func(logical, sum string) error {
			if strings.HasPrefix(logical, "/") || strings.HasSuffix(logical, "/") {
				result.AddFatal(validation.WithCode(fmt.Errorf("version %s: logical path has leading/trailing slash: %s", v, logical), validatecode.E064))
			}
			if !inv.Manifest.ContainsDigest(sum) {
				result.AddFatal(validation.WithCode(fmt.Errorf("version %s: state digest not in manifest: %s", v, sum), validatecode.E023))
			}
			return nil
		})
		if ver.Message == "" {
			result.AddWarn(validation.WithCode(fmt.Errorf("version %s missing recommended field: message", v), validatecode.W007))
		}
		if ver.User != nil {
			if ver.User.Name == "" {
				result.AddFatal(validation.WithCode(fmt.Errorf("version %s: user missing required field: name", v), validatecode.E036))
			} else if ver.User.Address == "" {
				result.AddWarn(validation.WithCode(fmt.Errorf("version %s: user missing recommended field: address", v), validatecode.W008))
			}
		} else {
			result.AddWarn(validation.WithCode(fmt.Errorf("version %s missing recommended field: user", v), validatecode.W008))
		}
	}

	// A manifest entry with no referencing state anywhere in the inventory
	// is never flagged here: the Open Question in §9 resolves this as a
	// CorruptObject signal raised only by the on-disk object validator,
	// not an InvalidInventory error from this in-memory check (OCFL keeps
	// every version's history live, and a single immutable snapshot has no
	// way to distinguish "never referenced" from "referenced only by a
	// version this particular validator call isn't iterating yet").
	return result
}

// PairwiseValidate compares two adjacent inventories — prev (the inventory
// an object carried before a commit) and next (the inventory produced by
// the commit) — and checks the invariants that only make sense across a
// version boundary: next's version sequence extends prev's without
// rewriting history, and every earlier version's state and digest in prev
// survives unchanged in next.
func PairwiseValidate(prev, next *Inventory) *validation.Result {
	result := &validation.Result{}
	if prev.ID != next.ID {
		result.AddFatal(fmt.Errorf("object id changed: %s -> %s", prev.ID, next.ID))
	}
	if prev.DigestAlgorithm != next.DigestAlgorithm {
		result.AddFatal(fmt.Errorf("digestAlgorithm changed: %s -> %s", prev.DigestAlgorithm, next.DigestAlgorithm))
	}
	if prev.Type != next.Type {
		result.AddFatal(fmt.Errorf("type changed: %s -> %s", prev.Type, next.Type))
	}
	if prev.ContentDir() != next.ContentDir() {
		result.AddFatal(fmt.Errorf("contentDirectory changed: %s -> %s", prev.ContentDir(), next.ContentDir()))
	}
	wantNext, err := prev.Head.Next()
	if err != nil {
		result.AddFatal(fmt.Errorf("prior inventory's head %s cannot be extended: %w", prev.Head, err))
		return result
	}
	if next.Head != wantNext {
		result.AddFatal(fmt.Errorf("next inventory's head is %s, expected %s", next.Head, wantNext))
	}
	for _, v := range prev.VNums() {
		prevVer, nextVer := prev.Versions[v], next.Versions[v]
		if nextVer == nil {
			result.AddFatal(fmt.Errorf("version %s present in prior inventory is missing from next", v))
			continue
		}
		if !prevVer.Created.Equal(nextVer.Created) {
			result.AddFatal(fmt.Errorf("version %s: created timestamp changed", v))
		}
		if err := statesEqual(prevVer.State, nextVer.State); err != nil {
			result.AddFatal(fmt.Errorf("version %s: state changed: %w", v, err))
		}
	}

	if prev.Manifest != nil && next.Manifest != nil {
		headPrefix := next.Head.String() + "/"
		_ = prev.Manifest.EachPath(func(p, d string) error {
			if next.Manifest.GetDigest(p) != d {
				result.AddFatal(fmt.Errorf("manifest path %s: missing or re-digested in next inventory", p))
			}
			return nil
		})
		_ = next.Manifest.EachPath(func(p, d string) error {
			if prev.Manifest.ContainsPath(p) {
				return nil
			}
			if !strings.HasPrefix(p, headPrefix) {
				result.AddFatal(fmt.Errorf("new manifest path %s is not rooted under %s", p, headPrefix))
			}
			return nil
		})
	}
	return result
}

func statesEqual(a, b *digest.Map) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("digest count differs: %d != %d", a.Len(), b.Len())
	}
	var err error
	_ = a.EachPath(func(p, d string) error {
		if got := b.GetDigest(p); got != d {
			err = fmt.Errorf("path %s: digest changed %s -> %s", p, d, got)
			return err
		}
		return nil
	})
	return err
}

// Package inventory models an OCFL object's inventory.json (C5: the
// Inventory/Version data model), builds successor inventories for new
// versions (C6), and implements the canonical JSON codec and the shallow
// and pairwise validators (C7, C8); it has no separate deep validator.
package inventory

import (
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/ocfl"
)

// DefaultContentDirectory is used when an inventory doesn't set
// contentDirectory explicitly.
const DefaultContentDirectory = "content"

// Inventory is the decoded contents of an inventory.json file.
type Inventory struct {
	ID               string                 `json:"id"`
	Type             ocfl.InventoryType     `json:"type"`
	DigestAlgorithm  string                 `json:"digestAlgorithm"`
	Head             ocfl.VNum              `json:"head"`
	ContentDirectory string                 `json:"contentDirectory,omitempty"`
	Manifest         *digest.Map            `json:"manifest"`
	Versions         map[ocfl.VNum]*Version `json:"versions"`
	Fixity           map[string]*digest.Map `json:"fixity,omitempty"`

	// sidecarDigest is the digest recorded in the inventory's sidecar file,
	// set only by Read; it stays empty for an inventory built in memory,
	// even after Write. It is not part of the JSON encoding.
	sidecarDigest string
}

// Version is one entry in an inventory's "versions" block.
type Version struct {
	Created time.Time   `json:"created"`
	State   *digest.Map `json:"state"`
	Message string      `json:"message,omitempty"`
	User    *ocfl.User  `json:"user,omitempty"`
}

// ContentDir returns the inventory's effective content directory name,
// substituting DefaultContentDirectory when unset.
func (inv *Inventory) ContentDir() string {
	if inv.ContentDirectory == "" {
		return DefaultContentDirectory
	}
	return inv.ContentDirectory
}

// SidecarDigest returns the digest recorded in the sidecar file this
// inventory was decoded from, or "" if the inventory was never decoded
// from a sidecar-backed source.
func (inv *Inventory) SidecarDigest() string { return inv.sidecarDigest }

// VNums returns the inventory's version numbers in ascending order.
func (inv *Inventory) VNums() ocfl.VNums {
	vnums := make(ocfl.VNums, 0, len(inv.Versions))
	for v := range inv.Versions {
		vnums = append(vnums, v)
	}
	sort.Sort(vnums)
	return vnums
}

// GetVersion returns the version entry for v, or the head version if v is
// the zero VNum. Returns nil if no such version exists.
func (inv *Inventory) GetVersion(v ocfl.VNum) *Version {
	if v.Empty() {
		v = inv.Head
	}
	return inv.Versions[v]
}

// ContentPath resolves the logical path in version v's state (head version
// if v is the zero VNum) to one of its manifest content paths.
func (inv *Inventory) ContentPath(v ocfl.VNum, logical string) (string, error) {
	ver := inv.GetVersion(v)
	if ver == nil {
		return "", fmt.Errorf("inventory: version not found: %s", v)
	}
	sum := ver.State.GetDigest(logical)
	if sum == "" {
		return "", fmt.Errorf("inventory: no such logical path: %s", logical)
	}
	paths := inv.Manifest.GetPaths(sum)
	if len(paths) == 0 {
		return "", fmt.Errorf("inventory: manifest has no content path for digest %s", sum)
	}
	return paths[0], nil
}

// EachStatePath calls fn once for every logical path in version v's state
// (head version if v is the zero VNum), with its primary digest and the
// manifest content paths backing it. Iteration stops with an error at the
// first state digest that has no manifest entry; fn has already been called
// for the paths visited before it.
func (inv *Inventory) EachStatePath(v ocfl.VNum, fn func(logical, digest string, contentPaths []string) error) error {
	ver := inv.GetVersion(v)
	if ver == nil || ver.State == nil {
		return fmt.Errorf("inventory: version not found: %s", v)
	}
	if inv.Manifest == nil {
		return fmt.Errorf("inventory: no manifest")
	}
	return ver.State.EachPath(func(logical, sum string) error {
		paths := inv.Manifest.GetPaths(sum)
		if len(paths) == 0 {
			return fmt.Errorf("inventory: manifest has no content path for digest %s (logical path %s)", sum, logical)
		}
		return fn(logical, sum, paths)
	})
}

// VersionContentPath joins a version directory, the inventory's content
// directory, and a relative path under it into a manifest-style content
// path.
func (inv *Inventory) VersionContentPath(v ocfl.VNum, rel string) string {
	return path.Join(v.String(), inv.ContentDir(), rel)
}

package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/storage"
)

// FileName is the required name of an object's inventory file.
const FileName = "inventory.json"

var sidecarContentsRexp = regexp.MustCompile(`^([a-fA-F0-9]+)\s+inventory\.json\s*\n?$`)

// Encode renders inv as canonical, indented JSON and computes its digest
// under alg. encoding/json already sorts map keys, which combined with
// digest.Map's own digest-sorted marshaling is what makes two semantically
// equal inventories byte-identical regardless of construction order.
func Encode(inv *Inventory, alg digest.Alg) (body []byte, sidecarDigest string, err error) {
	body, err = json.MarshalIndent(inv, "", "   ")
	if err != nil {
		return nil, "", fmt.Errorf("encoding inventory: %w", err)
	}
	d := alg.Digester()
	if _, err := io.Copy(d, bytes.NewReader(body)); err != nil {
		return nil, "", err
	}
	return body, d.String(), nil
}

// Write encodes inv and writes inventory.json plus its digest sidecar
// (inventory.json.<alg>) into every directory in dirs, relative to
// backend's root. All copies receive identical bytes and the same sidecar
// digest — the root inventory and the head version's inventory are meant
// to agree exactly.
func Write(ctx context.Context, backend storage.Backend, inv *Inventory, alg digest.Alg, dirs ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, sum, err := Encode(inv, alg)
	if err != nil {
		return err
	}
	sidecar := sum + " " + FileName + "\n"
	for _, dir := range dirs {
		invPath := path.Join(dir, FileName)
		if _, err := backend.Write(ctx, invPath, bytes.NewReader(body)); err != nil {
			return fmt.Errorf("writing %s: %w", invPath, err)
		}
		sidePath := invPath + "." + alg.ID()
		if _, err := backend.Write(ctx, sidePath, strings.NewReader(sidecar)); err != nil {
			return fmt.Errorf("writing %s: %w", sidePath, err)
		}
	}
	return nil
}

// Decode parses inventory JSON without validating its semantic content
// (shallow/deep validation is a separate step). It is tolerant of unknown
// top-level fields, as the OCFL spec permits inventories to carry
// extension-defined keys.
func Decode(r io.Reader) (*Inventory, error) {
	var inv Inventory
	dec := json.NewDecoder(r)
	if err := dec.Decode(&inv); err != nil {
		return nil, fmt.Errorf("decoding inventory: %w", err)
	}
	return &inv, nil
}

// ReadSidecarDigest parses the contents of an inventory.json.<alg> sidecar
// file, returning the digest it records.
func ReadSidecarDigest(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m := sidecarContentsRexp.FindSubmatch(b)
	if len(m) != 2 {
		return "", fmt.Errorf("malformed inventory sidecar contents: %q", string(b))
	}
	return string(m[1]), nil
}

// Read reads and decodes dir/inventory.json from backend, then verifies it
// against dir/inventory.json.<alg> using alg. The returned inventory's
// SidecarDigest() reflects the verified digest.
func Read(ctx context.Context, backend storage.Backend, dir string, alg digest.Alg) (*Inventory, error) {
	invPath := path.Join(dir, FileName)
	f, err := backend.Read(ctx, invPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", invPath, err)
	}
	body, err := io.ReadAll(f)
	cerr := f.Close()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", invPath, err)
	}
	if cerr != nil {
		return nil, cerr
	}
	inv, err := Decode(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	sidePath := invPath + "." + alg.ID()
	sf, err := backend.Read(ctx, sidePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sidePath, err)
	}
	defer sf.Close()
	wantDigest, err := ReadSidecarDigest(sf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sidePath, err)
	}
	gotDigester := alg.Digester()
	if _, err := io.Copy(gotDigester, bytes.NewReader(body)); err != nil {
		return nil, err
	}
	if !strings.EqualFold(gotDigester.String(), wantDigest) {
		return nil, fmt.Errorf("%s: content does not match digest recorded in sidecar: got %s, want %s", invPath, gotDigester, wantDigest)
	}
	inv.sidecarDigest = wantDigest
	return inv, nil
}

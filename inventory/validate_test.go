package inventory_test

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/inventory"
	"github.com/ocflcore/ocfl/ocfl"
)

func TestValidateAcceptsWellFormedInventory(t *testing.T) {
	is := is.New(t)
	inv := testInventory(is)
	inv.Versions[inv.Head].User = &ocfl.User{Name: "bob", Address: "mailto:bob@example.org"}
	res := inv.Validate()
	is.True(res.Valid())
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	is := is.New(t)
	inv := &inventory.Inventory{}
	res := inv.Validate()
	is.True(!res.Valid())
	is.True(len(res.Fatal()) > 0)
}

func TestValidateRejectsBadDigestAlgorithm(t *testing.T) {
	is := is.New(t)
	inv := testInventory(is)
	inv.DigestAlgorithm = "md5"
	res := inv.Validate()
	is.True(!res.Valid())
}

func TestValidateFlagsStateDigestMissingFromManifest(t *testing.T) {
	is := is.New(t)
	inv := testInventory(is)
	is.NoErr(inv.Versions[inv.Head].State.Add("not-in-manifest", "ghost.txt"))
	res := inv.Validate()
	is.True(!res.Valid())
}

func TestValidateWarnsOnMissingRecommendedFields(t *testing.T) {
	is := is.New(t)
	inv := testInventory(is)
	res := inv.Validate()
	is.True(res.Valid())
	is.True(len(res.Warn()) > 0) // user has no address
}

func TestPairwiseValidateAcceptsExtension(t *testing.T) {
	is := is.New(t)
	b := inventory.NewBuilder("urn:test:pairwise")
	v1, err := b.New(inventory.Stage{
		Alg:   digest.SHA256,
		State: mustMap(is, "aaaa", "a.txt"),
		Files: map[string]inventory.FileInfo{
			"aaaa": {Digests: digest.Set{digest.SHA256: "aaaa"}, SrcPaths: []string{"a.txt"}},
		},
	}, time.Now(), "v1", nil)
	is.NoErr(err)

	v2State := mustMap(is, "aaaa", "a.txt")
	is.NoErr(v2State.Add("bbbb", "b.txt"))
	v2, err := b.Next(v1, inventory.Stage{
		Alg:   digest.SHA256,
		State: v2State,
		Files: map[string]inventory.FileInfo{
			"bbbb": {Digests: digest.Set{digest.SHA256: "bbbb"}, SrcPaths: []string{"b.txt"}},
		},
	}, time.Now(), "v2", nil)
	is.NoErr(err)

	res := inventory.PairwiseValidate(v1, v2)
	is.True(res.Valid())
}

func TestPairwiseValidateRejectsRewrittenHistory(t *testing.T) {
	is := is.New(t)
	v1 := testInventory(is)
	v2 := testInventory(is)
	v2.Head = ocfl.V(2, 0)
	v2.Versions[ocfl.V(2, 0)] = v2.Versions[v1.Head]
	delete(v2.Versions, v1.Head)
	// v1's own version entry is now missing from v2 entirely
	res := inventory.PairwiseValidate(v1, v2)
	is.True(!res.Valid())
}

func TestPairwiseValidateRejectsChangedEarlierState(t *testing.T) {
	is := is.New(t)
	b := inventory.NewBuilder("urn:test:pairwise2")
	v1, err := b.New(inventory.Stage{
		Alg:   digest.SHA256,
		State: mustMap(is, "aaaa", "a.txt"),
		Files: map[string]inventory.FileInfo{
			"aaaa": {Digests: digest.Set{digest.SHA256: "aaaa"}, SrcPaths: []string{"a.txt"}},
		},
	}, time.Now(), "v1", nil)
	is.NoErr(err)

	v2, err := b.Next(v1, inventory.Stage{
		Alg:   digest.SHA256,
		State: mustMap(is, "aaaa", "a.txt"),
	}, time.Now(), "v2", nil)
	is.NoErr(err)
	// tamper with v1's recorded state inside v2, simulating rewritten history
	is.NoErr(v2.Versions[v1.Head].State.Add("cccc", "sneaky.txt"))

	res := inventory.PairwiseValidate(v1, v2)
	is.True(!res.Valid())
}

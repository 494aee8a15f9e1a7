package inventory_test

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ocflcore/ocfl/digest"
	"github.com/ocflcore/ocfl/inventory"
	"github.com/ocflcore/ocfl/ocfl"
)

func TestBuilderNew(t *testing.T) {
	is := is.New(t)
	b := inventory.NewBuilder("urn:test:obj1")
	stage := inventory.Stage{
		Alg:   digest.SHA512,
		State: mustMap(is, "aaaa", "file1.txt"),
		Files: map[string]inventory.FileInfo{
			"aaaa": {Digests: digest.Set{digest.SHA512: "aaaa"}, SrcPaths: []string{"staging/file1.txt"}},
		},
	}
	inv, err := b.New(stage, time.Now(), "first version", &ocfl.User{Name: "alice"})
	is.NoErr(err)
	is.Equal(inv.Head, ocfl.V(1, 0))
	is.Equal(inv.ID, "urn:test:obj1")
	is.Equal(inv.DigestAlgorithm, digest.SHA512)
	is.True(inv.Manifest.ContainsDigest("aaaa"))
	is.Equal(inv.Manifest.GetPaths("aaaa")[0], "v1/content/staging/file1.txt")
	is.Equal(len(inv.Versions), 1)
}

func TestBuilderNext(t *testing.T) {
	is := is.New(t)
	b := inventory.NewBuilder("urn:test:obj1")
	v1Stage := inventory.Stage{
		Alg:   digest.SHA512,
		State: mustMap(is, "aaaa", "file1.txt"),
		Files: map[string]inventory.FileInfo{
			"aaaa": {Digests: digest.Set{digest.SHA512: "aaaa"}, SrcPaths: []string{"file1.txt"}},
		},
	}
	v1, err := b.New(v1Stage, time.Now(), "v1", nil)
	is.NoErr(err)

	v2State := mustMap(is, "aaaa", "file1.txt")
	is.NoErr(v2State.Add("bbbb", "file2.txt"))
	v2Stage := inventory.Stage{
		Alg:   digest.SHA512,
		State: v2State,
		Files: map[string]inventory.FileInfo{
			"bbbb": {Digests: digest.Set{digest.SHA512: "bbbb"}, SrcPaths: []string{"file2.txt"}},
		},
	}
	v2, err := b.Next(v1, v2Stage, time.Now(), "v2", nil)
	is.NoErr(err)
	is.Equal(v2.Head, ocfl.V(2, 0))
	is.True(v2.Manifest.ContainsDigest("aaaa")) // carried forward from v1
	is.True(v2.Manifest.ContainsDigest("bbbb"))
	is.Equal(v2.Manifest.GetPaths("aaaa")[0], "v1/content/file1.txt") // original content path preserved
	is.Equal(len(v1.Versions), 1)                                    // base untouched
}

func TestBuilderAmend(t *testing.T) {
	is := is.New(t)
	b := inventory.NewBuilder("urn:test:obj1")
	v1Stage := inventory.Stage{
		Alg:   digest.SHA512,
		State: mustMap(is, "aaaa", "file1.txt"),
		Files: map[string]inventory.FileInfo{
			"aaaa": {Digests: digest.Set{digest.SHA512: "aaaa"}, SrcPaths: []string{"file1.txt"}},
		},
	}
	v1, err := b.New(v1Stage, time.Now(), "v1", nil)
	is.NoErr(err)

	revisedState := mustMap(is, "aaaa", "file1.txt")
	is.NoErr(revisedState.Add("cccc", "file3.txt"))
	revisedStage := inventory.Stage{
		Alg:   digest.SHA512,
		State: revisedState,
		Files: map[string]inventory.FileInfo{
			"cccc": {Digests: digest.Set{digest.SHA512: "cccc"}, SrcPaths: []string{"r1/file3.txt"}},
		},
	}
	amended, err := b.Amend(v1, revisedStage, time.Now(), "revision", nil, func(src string) string {
		return "extensions/0005-mutable-head/content/" + src
	})
	is.NoErr(err)
	is.Equal(amended.Head, ocfl.V(1, 0)) // same version number, in place
	is.True(amended.Manifest.ContainsDigest("cccc"))
}

func TestBuilderNextRejectsAlgorithmMismatch(t *testing.T) {
	is := is.New(t)
	b := inventory.NewBuilder("urn:test:obj1")
	v1Stage := inventory.Stage{
		Alg:   digest.SHA512,
		State: mustMap(is, "aaaa", "f"),
		Files: map[string]inventory.FileInfo{
			"aaaa": {Digests: digest.Set{digest.SHA512: "aaaa"}, SrcPaths: []string{"f"}},
		},
	}
	v1, err := b.New(v1Stage, time.Now(), "", nil)
	is.NoErr(err)

	badStage := inventory.Stage{
		Alg:   digest.SHA256,
		State: mustMap(is, "bbbb", "g"),
		Files: map[string]inventory.FileInfo{
			"bbbb": {Digests: digest.Set{digest.SHA256: "bbbb"}, SrcPaths: []string{"g"}},
		},
	}
	_, err = b.Next(v1, badStage, time.Now(), "", nil)
	is.True(err != nil)
}

func mustMap(is *is.I, d, p string) *digest.Map {
	m := digest.NewMap()
	is.NoErr(m.Add(d, p))
	return m
}

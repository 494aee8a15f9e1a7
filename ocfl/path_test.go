package ocfl_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/ocflcore/ocfl/ocfl"
)

func TestValidPath(t *testing.T) {
	is := is.New(t)
	for _, good := range []string{"a", "a/b", "a/b/c.txt", "dir with spaces/f"} {
		is.NoErr(ocfl.ValidPath(good))
	}
	for _, bad := range []string{"", ".", "/a", "a/", "a\\b", "../a", "./a", "a/../b"} {
		is.True(ocfl.ValidPath(bad) != nil)
	}
}

func TestValidContentDirectory(t *testing.T) {
	is := is.New(t)
	is.NoErr(ocfl.ValidContentDirectory(""))
	is.NoErr(ocfl.ValidContentDirectory("content"))
	is.True(ocfl.ValidContentDirectory("a/b") != nil)
	is.True(ocfl.ValidContentDirectory(".") != nil)
	is.True(ocfl.ValidContentDirectory("..") != nil)
}

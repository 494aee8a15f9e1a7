package digest_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/ocflcore/ocfl/digest"
)

func TestMapAddAndLookup(t *testing.T) {
	is := is.New(t)
	m := digest.NewMap()
	is.NoErr(m.Add("abc1", "file1.txt"))
	is.NoErr(m.Add("abc1", "file2.txt")) // same digest, second path
	is.NoErr(m.Add("abc2", "dir/file3.txt"))

	is.Equal(m.GetDigest("file1.txt"), "abc1")
	is.Equal(len(m.GetPaths("abc1")), 2)
	is.True(m.ContainsDigest("abc2"))
	is.True(m.ContainsPath("dir/file3.txt"))
	is.Equal(m.Len(), 2)
}

func TestMapPathConflict(t *testing.T) {
	is := is.New(t)
	m := digest.NewMap()
	is.NoErr(m.Add("abc1", "file.txt"))
	err := m.Add("abc2", "file.txt")
	is.True(err != nil)

	m2 := digest.NewMap()
	is.NoErr(m2.Add("abc1", "a/b"))
	err = m2.Add("abc2", "a/b/c")
	is.True(err != nil) // a/b is a file, can't also be a directory prefix
}

func TestMapDigestCaseConflict(t *testing.T) {
	is := is.New(t)
	m := digest.NewMap()
	is.NoErr(m.Add("abcd1", "file1.txt"))
	err := m.Add("ABCD1", "file2.txt")
	is.True(err != nil)
}

func TestMapInvalidPath(t *testing.T) {
	is := is.New(t)
	m := digest.NewMap()
	for _, bad := range []string{"", ".", "/a", "a/", "../a"} {
		err := m.Add("abcd", bad)
		is.True(err != nil)
	}
}

func TestMapJSONRoundTrip(t *testing.T) {
	is := is.New(t)
	m := digest.NewMap()
	is.NoErr(m.Add("abc1", "a.txt"))
	is.NoErr(m.Add("abc2", "b.txt"))
	is.NoErr(m.Add("abc2", "c.txt"))

	body, err := m.MarshalJSON()
	is.NoErr(err)

	out := digest.NewMap()
	is.NoErr(out.UnmarshalJSON(body))
	is.Equal(out.Len(), m.Len())
	is.Equal(out.GetDigest("a.txt"), "abc1")
	is.Equal(len(out.GetPaths("abc2")), 2)
}

func TestMapMerge(t *testing.T) {
	is := is.New(t)
	a := digest.NewMap()
	is.NoErr(a.Add("abc1", "a.txt"))
	b := digest.NewMap()
	is.NoErr(b.Add("abc2", "b.txt"))
	is.NoErr(a.Merge(b))
	is.Equal(a.Len(), 2)

	conflict := digest.NewMap()
	is.NoErr(conflict.Add("other-digest", "a.txt"))
	is.True(a.Merge(conflict) != nil)
}

func TestMapRemove(t *testing.T) {
	is := is.New(t)
	m := digest.NewMap()
	is.NoErr(m.Add("abc1", "a.txt"))
	is.NoErr(m.Add("abc1", "b.txt"))
	m.RemovePath("a.txt")
	is.True(!m.ContainsPath("a.txt"))
	is.True(m.ContainsDigest("abc1"))
	m.RemoveDigest("abc1")
	is.Equal(m.Len(), 0)
}

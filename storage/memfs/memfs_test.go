package memfs_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ocflcore/ocfl/storage/memfs"
)

func TestWriteReadRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := memfs.New()

	n, err := b.Write(ctx, "a/b/c.txt", strings.NewReader("hello"))
	is.NoErr(err)
	is.Equal(n, int64(5))

	r, err := b.Read(ctx, "a/b/c.txt")
	is.NoErr(err)
	body, err := io.ReadAll(r)
	is.NoErr(err)
	is.NoErr(r.Close())
	is.Equal(string(body), "hello")

	exists, err := b.Exists(ctx, "a/b/c.txt")
	is.NoErr(err)
	is.True(exists)
	exists, err = b.Exists(ctx, "a/b")
	is.NoErr(err)
	is.True(exists) // a directory-like prefix also "exists"
}

func TestWriteRejectsShadowingPaths(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := memfs.New()
	_, err := b.Write(ctx, "a/b", strings.NewReader("file"))
	is.NoErr(err)

	_, err = b.Write(ctx, "a/b/c", strings.NewReader("conflict"))
	is.True(err != nil)
}

func TestListNonRecursiveAndRecursive(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := memfs.New()
	_, err := b.Write(ctx, "dir/x.txt", strings.NewReader("x"))
	is.NoErr(err)
	_, err = b.Write(ctx, "dir/sub/y.txt", strings.NewReader("y"))
	is.NoErr(err)

	top, err := b.List(ctx, "dir", false)
	is.NoErr(err)
	is.Equal(len(top), 2) // "x.txt" and "sub"

	all, err := b.List(ctx, "dir", true)
	is.NoErr(err)
	var names []string
	for _, e := range all {
		names = append(names, e.Name)
	}
	is.True(contains(names, "x.txt"))
	is.True(contains(names, "sub"))
	is.True(contains(names, "sub/y.txt"))
}

func TestMoveIsNoClobber(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := memfs.New()
	_, err := b.Write(ctx, "src.txt", strings.NewReader("content"))
	is.NoErr(err)
	_, err = b.Write(ctx, "dst.txt", strings.NewReader("existing"))
	is.NoErr(err)

	err = b.Move(ctx, "src.txt", "dst.txt")
	is.True(err != nil)

	is.NoErr(b.Move(ctx, "src.txt", "fresh.txt"))
	exists, err := b.Exists(ctx, "src.txt")
	is.NoErr(err)
	is.True(!exists)
	exists, err = b.Exists(ctx, "fresh.txt")
	is.NoErr(err)
	is.True(exists)
}

func TestMoveSubtree(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := memfs.New()
	_, err := b.Write(ctx, "tmp/a.txt", strings.NewReader("a"))
	is.NoErr(err)
	_, err = b.Write(ctx, "tmp/nested/b.txt", strings.NewReader("b"))
	is.NoErr(err)

	is.NoErr(b.Move(ctx, "tmp", "final"))
	exists, err := b.Exists(ctx, "tmp")
	is.NoErr(err)
	is.True(!exists)
	exists, err = b.Exists(ctx, "final/nested/b.txt")
	is.NoErr(err)
	is.True(exists)
}

func TestDeleteRemovesSubtree(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	b := memfs.New()
	_, err := b.Write(ctx, "dir/a.txt", strings.NewReader("a"))
	is.NoErr(err)
	_, err = b.Write(ctx, "dir/b.txt", strings.NewReader("b"))
	is.NoErr(err)

	is.NoErr(b.Delete(ctx, "dir"))
	exists, err := b.Exists(ctx, "dir/a.txt")
	is.NoErr(err)
	is.True(!exists)

	is.NoErr(b.Delete(ctx, "does/not/exist")) // no-op, not an error
}

func TestNewWith(t *testing.T) {
	is := is.New(t)
	b, err := memfs.NewWith(map[string]io.Reader{
		"a.txt": strings.NewReader("a"),
		"b.txt": strings.NewReader("b"),
	})
	is.NoErr(err)
	exists, err := b.Exists(context.Background(), "a.txt")
	is.NoErr(err)
	is.True(exists)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

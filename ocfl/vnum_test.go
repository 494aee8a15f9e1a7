package ocfl_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/ocflcore/ocfl/ocfl"
)

func TestParseVNum(t *testing.T) {
	is := is.New(t)
	v, err := ocfl.ParseVNum("v3")
	is.NoErr(err)
	is.Equal(v.Num(), 3)
	is.Equal(v.Padding(), 0)
	is.Equal(v.String(), "v3")

	v, err = ocfl.ParseVNum("v0003")
	is.NoErr(err)
	is.Equal(v.Num(), 3)
	is.Equal(v.Padding(), 4)
	is.Equal(v.String(), "v0003")

	for _, bad := range []string{"", "v", "v0", "1", "vv1", "v-1"} {
		_, err := ocfl.ParseVNum(bad)
		is.True(err != nil)
	}
}

func TestVNumNext(t *testing.T) {
	is := is.New(t)
	v1 := ocfl.V(1, 0)
	v2, err := v1.Next()
	is.NoErr(err)
	is.Equal(v2.String(), "v2")

	padded, err := ocfl.ParseVNum("v09")
	is.NoErr(err)
	next, err := padded.Next()
	is.NoErr(err)
	is.Equal(next.String(), "v10")

	overflow := ocfl.V(99, 2) // "v99" under a 2-digit padding scheme; ParseVNum("v99") infers no padding
	is.Equal(overflow.String(), "v99")
	_, err = overflow.Next()
	is.True(err != nil)
}

func TestVNumsValid(t *testing.T) {
	is := is.New(t)
	mk := func(ss ...string) ocfl.VNums {
		vs := make(ocfl.VNums, len(ss))
		for i, s := range ss {
			v, err := ocfl.ParseVNum(s)
			is.NoErr(err)
			vs[i] = v
		}
		return vs
	}

	is.NoErr(mk("v1", "v2", "v3").Valid())
	is.True(mk("v1", "v3").Valid() != nil)       // gap
	is.True(mk("v2", "v3").Valid() != nil)       // doesn't start at 1
	is.True(mk("v01", "v2").Valid() != nil)      // inconsistent padding
	is.Equal(mk("v1", "v2", "v3").Head().String(), "v3")
}

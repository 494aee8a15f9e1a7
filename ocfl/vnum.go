// Package ocfl provides the small set of value types shared across the
// object engine: version numbers, the OCFL spec/inventory-type pair, user
// records, and logical/content path validation.
package ocfl

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var vnumRexp = regexp.MustCompile(`^v(\d+)$`)

var (
	// ErrVNumInvalid indicates a string is not a well-formed version number.
	ErrVNumInvalid = errors.New("invalid OCFL version number")
	// ErrVNumPadding indicates a zero-padded version number whose padding
	// doesn't match the width established by the object's other versions.
	ErrVNumPadding = errors.New("inconsistent version number zero-padding")
	// ErrVNumOverflow indicates Next() would exceed the padding width
	// established for the version numbering scheme (e.g. v09 -> v10 is fine,
	// but v99 -> v100 is not representable with 2-digit padding).
	ErrVNumOverflow = errors.New("version number exceeds padding width")
)

// VNum is an OCFL version number: "v" followed by a positive integer,
// optionally zero-padded to a fixed width established by the first version.
type VNum struct {
	num     int
	padding int // 0 means no padding
}

// V constructs a VNum with the given number and zero-padding width (0 for no
// padding).
func V(num int, padding int) VNum { return VNum{num: num, padding: padding} }

// ParseVNum parses a version directory name like "v3" or "v0003".
func ParseVNum(s string) (VNum, error) {
	m := vnumRexp.FindStringSubmatch(s)
	if m == nil {
		return VNum{}, fmt.Errorf("%w: %q", ErrVNumInvalid, s)
	}
	digits := m[1]
	num, err := strconv.Atoi(digits)
	if err != nil || num < 1 {
		return VNum{}, fmt.Errorf("%w: %q", ErrVNumInvalid, s)
	}
	padding := 0
	if len(digits) > 1 && digits[0] == '0' {
		padding = len(digits)
	}
	return VNum{num: num, padding: padding}, nil
}

// Num returns the integer version number.
func (v VNum) Num() int { return v.num }

// Padding returns the zero-padding width, or 0 if unpadded.
func (v VNum) Padding() int { return v.padding }

// Empty reports whether v is the zero value.
func (v VNum) Empty() bool { return v.num == 0 }

// Valid reports whether v is well-formed: a positive number that fits
// within its padding width (if any).
func (v VNum) Valid() error {
	if v.num < 1 {
		return ErrVNumInvalid
	}
	if v.padding > 0 && len(strconv.Itoa(v.num)) > v.padding {
		return ErrVNumOverflow
	}
	return nil
}

// String renders v as a version directory name, e.g. "v3" or "v0003".
func (v VNum) String() string {
	if v.padding > 0 {
		return fmt.Sprintf("v%0*d", v.padding, v.num)
	}
	return fmt.Sprintf("v%d", v.num)
}

// Next returns the version following v, preserving its padding width. An
// error is returned if the next number would overflow that width.
func (v VNum) Next() (VNum, error) {
	next := VNum{num: v.num + 1, padding: v.padding}
	if err := next.Valid(); err != nil {
		return VNum{}, err
	}
	return next, nil
}

// Prev returns the version preceding v. An error is returned if v is v1 (no
// predecessor).
func (v VNum) Prev() (VNum, error) {
	if v.num <= 1 {
		return VNum{}, errors.New("ocfl: version 1 has no predecessor")
	}
	return VNum{num: v.num - 1, padding: v.padding}, nil
}

// MarshalText implements encoding.TextMarshaler so VNum can be used as a
// JSON object key (inventory.json's "versions" block is keyed by version
// directory name).
func (v VNum) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *VNum) UnmarshalText(b []byte) error {
	parsed, err := ParseVNum(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Cmp orders VNums by their integer value (padding is not significant).
func (v VNum) Cmp(other VNum) int {
	switch {
	case v.num < other.num:
		return -1
	case v.num > other.num:
		return 1
	default:
		return 0
	}
}

// VNums is a sortable slice of VNum, ordered by Num().
type VNums []VNum

func (vs VNums) Len() int           { return len(vs) }
func (vs VNums) Less(i, j int) bool { return vs[i].Cmp(vs[j]) < 0 }
func (vs VNums) Swap(i, j int)      { vs[i], vs[j] = vs[j], vs[i] }

// Head returns the highest VNum in vs, or the zero VNum if vs is empty.
func (vs VNums) Head() VNum {
	if len(vs) == 0 {
		return VNum{}
	}
	head := vs[0]
	for _, v := range vs[1:] {
		if v.Cmp(head) > 0 {
			head = v
		}
	}
	return head
}

// Padding returns the padding width shared by every entry in vs, or -1 if
// the entries disagree.
func (vs VNums) Padding() int {
	if len(vs) == 0 {
		return 0
	}
	p := vs[0].padding
	for _, v := range vs[1:] {
		if v.padding != p {
			return -1
		}
	}
	return p
}

// Valid checks that vs is exactly {v1, v2, ..., vN} for some N >= 1, all
// sharing one padding width.
func (vs VNums) Valid() error {
	if len(vs) == 0 {
		return errors.New("ocfl: no versions present")
	}
	if vs.Padding() < 0 {
		return ErrVNumPadding
	}
	seen := make(map[int]bool, len(vs))
	max := 0
	for _, v := range vs {
		if err := v.Valid(); err != nil {
			return err
		}
		seen[v.num] = true
		if v.num > max {
			max = v.num
		}
	}
	if len(seen) != max {
		return fmt.Errorf("ocfl: version numbers are not contiguous from v1 to v%d", max)
	}
	return nil
}

package ocfl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Spec identifies an OCFL specification version, e.g. "1.0" or "1.1".
type Spec struct {
	Major int
	Minor int
}

// Spec1_0 and Spec1_1 are the OCFL specification versions this module
// implements inventories for.
var (
	Spec1_0 = Spec{Major: 1, Minor: 0}
	Spec1_1 = Spec{Major: 1, Minor: 1}
)

var specRexp = regexp.MustCompile(`^(\d+)\.(\d+)$`)

// ParseSpec parses a dotted version string like "1.0".
func ParseSpec(s string) (Spec, error) {
	m := specRexp.FindStringSubmatch(s)
	if m == nil {
		return Spec{}, fmt.Errorf("invalid OCFL spec version: %q", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	return Spec{Major: major, Minor: minor}, nil
}

// Empty reports whether s is the zero value.
func (s Spec) Empty() bool { return s.Major == 0 && s.Minor == 0 }

// String renders s as "Major.Minor".
func (s Spec) String() string { return fmt.Sprintf("%d.%d", s.Major, s.Minor) }

// Cmp orders specs by (Major, Minor).
func (s Spec) Cmp(other Spec) int {
	switch {
	case s.Major != other.Major:
		return s.Major - other.Major
	case s.Minor != other.Minor:
		return s.Minor - other.Minor
	default:
		return 0
	}
}

// InventoryType is the OCFL inventory "type" field: a URI naming the
// inventory section of a specific spec version, e.g.
// "https://ocfl.io/1.0/spec/#inventory".
type InventoryType struct {
	Spec Spec
}

const invTypePrefix = "https://ocfl.io/"
const invTypeSuffix = "/spec/#inventory"

// AsInventoryType returns the canonical inventory type URI for s.
func (s Spec) AsInventoryType() InventoryType { return InventoryType{Spec: s} }

// String renders the canonical inventory type URI.
func (t InventoryType) String() string {
	return invTypePrefix + t.Spec.String() + invTypeSuffix
}

// Empty reports whether t names no spec.
func (t InventoryType) Empty() bool { return t.Spec.Empty() }

// MarshalText implements encoding.TextMarshaler so InventoryType can be used
// directly as a JSON string field.
func (t InventoryType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, parsing the "type"
// field of an inventory.json. Any string of the form
// "https://ocfl.io/<spec>/spec/#inventory" is accepted; anything else is
// rejected so the shallow validator can surface a clear error instead of a
// JSON decode failure deep in a nested struct.
func (t *InventoryType) UnmarshalText(b []byte) error {
	s := string(b)
	if !strings.HasPrefix(s, invTypePrefix) || !strings.HasSuffix(s, invTypeSuffix) {
		return fmt.Errorf("invalid inventory type: %q", s)
	}
	specStr := strings.TrimSuffix(strings.TrimPrefix(s, invTypePrefix), invTypeSuffix)
	spec, err := ParseSpec(specStr)
	if err != nil {
		return fmt.Errorf("invalid inventory type: %q: %w", s, err)
	}
	t.Spec = spec
	return nil
}

package versioning

import (
	"fmt"
	"strings"
)

// Comparator orders version strings. Implementations must fail with
// ErrInvalidVersion rather than treat unparsable input as equal.
type Comparator interface {
	Compare(a, b string) (int, error)
	MajorMinor(v string) (major, minor int64, err error)
}

// GenericScheme is the generic Maven version scheme
type GenericScheme struct{}

// NewGenericScheme returns the default version scheme
func NewGenericScheme() *GenericScheme {
	return &GenericScheme{}
}

// Compare parses both versions and compares them
func (GenericScheme) Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// MajorMinor returns the leading numeric components of v
func (GenericScheme) MajorMinor(v string) (int64, int64, error) {
	parsed, err := Parse(v)
	if err != nil {
		return 0, 0, err
	}
	return parsed.Major(), parsed.Minor(), nil
}

// CompareStrict is Compare with ties between distinct strings broken on the
// raw text, giving a strict total order suitable for sorting
func CompareStrict(c Comparator, a, b string) (int, error) {
	rel, err := c.Compare(a, b)
	if err != nil {
		return 0, err
	}
	if rel != 0 {
		return rel, nil
	}
	return strings.Compare(a, b), nil
}

// SameMajor reports whether both versions share the leading dot-delimited
// token, compared verbatim
func SameMajor(a, b string) bool {
	majorA, _ := splitMajorMinor(a)
	majorB, _ := splitMajorMinor(b)
	return majorA == majorB
}

// SameMinor reports whether both versions share major and minor tokens.
// Any qualifier after '-' in the minor token is ignored (1.2-RC1 ~ 1.2).
func SameMinor(a, b string) bool {
	majorA, minorA := splitMajorMinor(a)
	majorB, minorB := splitMajorMinor(b)
	if majorA != majorB {
		return false
	}
	return stripQualifier(minorA) == stripQualifier(minorB)
}

// splitMajorMinor returns the first two dot-delimited tokens. A version
// without a dot is all major, with minor "0".
func splitMajorMinor(v string) (string, string) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return v, "0"
	}
	return parts[0], parts[1]
}

func stripQualifier(token string) string {
	if i := strings.IndexByte(token, '-'); i >= 0 {
		return token[:i]
	}
	return token
}

// MustParse is Parse for literals known to be valid
func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("versioning: %v", err))
	}
	return v
}

// Package versionfunc exposes stateless version predicates for query callers.
package versionfunc

import (
	"errors"
	"fmt"

	"github.com/alvmarrod/artifact-weaver/internal/versioning"
)

// ErrInvalidOrder is returned by UpgradeSeverity when the target version is
// older than the current one
var ErrInvalidOrder = errors.New("invalid version order")

// Severity classifies an upgrade between two versions
type Severity string

const (
	Major Severity = "MAJOR"
	Minor Severity = "MINOR"
	Patch Severity = "PATCH"
)

// Functions evaluates predicates with a given comparator
type Functions struct {
	cmp versioning.Comparator
}

// New returns predicates backed by cmp; a nil cmp means the generic scheme
func New(cmp versioning.Comparator) *Functions {
	if cmp == nil {
		cmp = versioning.NewGenericScheme()
	}
	return &Functions{cmp: cmp}
}

// IsGreater reports whether nodeVersion > v
func (f *Functions) IsGreater(nodeVersion, v string) (bool, error) {
	rel, err := f.compare(nodeVersion, v)
	return rel > 0, err
}

// IsGreaterOrEqual reports whether nodeVersion >= v
func (f *Functions) IsGreaterOrEqual(nodeVersion, v string) (bool, error) {
	rel, err := f.compare(nodeVersion, v)
	return err == nil && rel >= 0, err
}

// IsLower reports whether nodeVersion < v
func (f *Functions) IsLower(nodeVersion, v string) (bool, error) {
	rel, err := f.compare(nodeVersion, v)
	return rel < 0, err
}

// IsLowerOrEqual reports whether nodeVersion <= v
func (f *Functions) IsLowerOrEqual(nodeVersion, v string) (bool, error) {
	rel, err := f.compare(nodeVersion, v)
	return err == nil && rel <= 0, err
}

// IsSameMajor reports whether both versions share their major token
func (f *Functions) IsSameMajor(v1, v2 string) bool {
	return versioning.SameMajor(v1, v2)
}

// IsSameMinor reports whether both versions share major and minor tokens,
// ignoring a qualifier on the minor token
func (f *Functions) IsSameMinor(v1, v2 string) bool {
	return versioning.SameMinor(v1, v2)
}

// UpgradeSeverity classifies moving from v1 to v2. Equal versions are a PATCH.
func (f *Functions) UpgradeSeverity(v1, v2 string) (Severity, error) {
	rel, err := f.compare(v1, v2)
	if err != nil {
		return "", err
	}
	if rel > 0 {
		return "", fmt.Errorf("%w: %s is newer than %s", ErrInvalidOrder, v1, v2)
	}

	major1, minor1, err := f.cmp.MajorMinor(v1)
	if err != nil {
		return "", err
	}
	major2, minor2, err := f.cmp.MajorMinor(v2)
	if err != nil {
		return "", err
	}

	switch {
	case major2 > major1:
		return Major, nil
	case minor2 > minor1:
		return Minor, nil
	default:
		return Patch, nil
	}
}

func (f *Functions) compare(a, b string) (int, error) {
	rel, err := f.cmp.Compare(a, b)
	if err != nil {
		return 0, fmt.Errorf("compare %q with %q: %w", a, b, err)
	}
	return rel, nil
}

package versioning

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"1.0", "1.0.1", "1.0.0-SNAPSHOT", "2.0", "1.9.9",
	"1", "1.0.0", "1.0-SNAPSHOT", "1.0-alpha1", "1.0-rc1", "1.0-sp1", "1.0.0.Final",
}

func TestCompare_Reflexive(t *testing.T) {
	scheme := NewGenericScheme()
	for _, v := range corpus {
		rel, err := scheme.Compare(v, v)
		require.NoError(t, err)
		assert.Equal(t, 0, rel, v)
	}
}

func TestCompare_AntisymmetricAndTransitive(t *testing.T) {
	scheme := NewGenericScheme()
	compare := func(a, b string) int {
		rel, err := scheme.Compare(a, b)
		require.NoError(t, err)
		return rel
	}

	for _, a := range corpus {
		for _, b := range corpus {
			ab := compare(a, b)
			assert.Equal(t, -ab, compare(b, a), "%s vs %s", a, b)

			for _, c := range corpus {
				bc, ac := compare(b, c), compare(a, c)
				if ab < 0 && bc < 0 {
					assert.Equal(t, -1, ac, "%s < %s < %s", a, b, c)
				}
				if ab <= 0 && bc <= 0 {
					assert.LessOrEqual(t, ac, 0, "%s <= %s <= %s", a, b, c)
				}
				if ab == 0 && bc == 0 {
					assert.Equal(t, 0, ac, "%s == %s == %s", a, b, c)
				}
			}
		}
	}
}

func TestCompare_SortsCorpus(t *testing.T) {
	scheme := NewGenericScheme()
	sorted := append([]string(nil), corpus...)
	sort.Slice(sorted, func(i, j int) bool {
		rel, err := CompareStrict(scheme, sorted[i], sorted[j])
		require.NoError(t, err)
		return rel < 0
	})

	want := []string{
		"1.0-alpha1", "1.0-rc1", "1.0-SNAPSHOT", "1.0.0-SNAPSHOT",
		"1", "1.0", "1.0.0", "1.0.0.Final",
		"1.0-sp1", "1.0.1", "1.9.9", "2.0",
	}
	if diff := cmp.Diff(want, sorted); diff != "" {
		t.Errorf("sorted order mismatch (-want +got):\n%s", diff)
	}
}

func TestCompare_PaddingAgainstQualifiers(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0-SNAPSHOT", 1},
		{"1.0.0", "1.0-alpha", 1},
		{"1.0.0", "1.0-sp1", -1},
		{"1", "1.0-rc1", 1},
		{"1.0.0.Final", "1", 0},
		{"1.0.0-SNAPSHOT", "1.0-SNAPSHOT", 0},
	}

	scheme := NewGenericScheme()
	for _, tt := range tests {
		rel, err := scheme.Compare(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, rel, "%s vs %s", tt.a, tt.b)
	}
}

func TestCompare_Qualifiers(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3-SNAPSHOT", "1.2.3", -1},
		{"1.0-alpha-1", "1.0-beta-1", -1},
		{"1.0-a1", "1.0-alpha-1", 0},
		{"1.0-M1", "1.0-RC1", -1},
		{"1.0-rc2", "1.0-RC10", -1},
		{"1.0-cr1", "1.0-rc1", 0},
		{"1.0-RC1", "1.0-SNAPSHOT", -1},
		{"1.0", "1.0.0", 0},
		{"1.0-ga", "1.0", 0},
		{"1.0.Final", "1.0", 0},
		{"1.0-sp1", "1.0", 1},
		{"1.0.0", "1.0-SNAPSHOT", 1},
		{"1.0.0", "1.0-sp1", -1},
		{"1.0-foo", "1.0", 1},
		{"1.0-foo", "1.0.1", -1},
		{"1.10", "1.9", 1},
		{"01.2", "1.2", 0},
		{"20080808", "20080807", 1},
	}

	scheme := NewGenericScheme()
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			rel, err := scheme.Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rel)

			back, err := scheme.Compare(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, -tt.want, back)
		})
	}
}

func TestCompare_InvalidVersion(t *testing.T) {
	scheme := NewGenericScheme()

	_, err := scheme.Compare("", "1.0")
	assert.True(t, errors.Is(err, ErrInvalidVersion))

	_, err = scheme.Compare("1.0", "1 .0")
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestCompareStrict_BreaksTies(t *testing.T) {
	scheme := NewGenericScheme()

	rel, err := CompareStrict(scheme, "1.0", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, -1, rel)

	rel, err = CompareStrict(scheme, "1.0.0", "1.0")
	require.NoError(t, err)
	assert.Equal(t, 1, rel)

	rel, err = CompareStrict(scheme, "1.0", "1.0")
	require.NoError(t, err)
	assert.Equal(t, 0, rel)
}

func TestMajorMinor(t *testing.T) {
	scheme := NewGenericScheme()

	major, minor, err := scheme.MajorMinor("3.14.1-RC2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), major)
	assert.Equal(t, int64(14), minor)

	major, minor, err = scheme.MajorMinor("7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), major)
	assert.Equal(t, int64(0), minor)

	major, minor, err = scheme.MajorMinor("beta")
	require.NoError(t, err)
	assert.Zero(t, major)
	assert.Zero(t, minor)
}

func TestSameMajor(t *testing.T) {
	assert.True(t, SameMajor("1.2.3", "1.9.0"))
	assert.False(t, SameMajor("1.2.3", "2.0.0"))
	assert.True(t, SameMajor("5", "5.1"))
	assert.False(t, SameMajor("01.0", "1.0"))
}

func TestSameMinor(t *testing.T) {
	assert.True(t, SameMinor("1.2.3", "1.2.9-RC1"))
	assert.True(t, SameMinor("1.2-RC1", "1.2.0"))
	assert.False(t, SameMinor("1.2.3", "1.3.0"))
	assert.False(t, SameMinor("1.2.3", "2.2.3"))
	assert.True(t, SameMinor("4", "4.0.1"))
}

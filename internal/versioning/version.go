package versioning

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidVersion is returned when a version string cannot be parsed
var ErrInvalidVersion = errors.New("invalid version")

type itemKind int

// Kind order matters: qualifiers < free-form strings < numbers
const (
	kindQualifier itemKind = iota
	kindString
	kindNumber
)

// Known qualifiers and their rank relative to a plain release (0)
var qualifierRanks = map[string]int{
	"alpha":     -5,
	"beta":      -4,
	"milestone": -3,
	"cr":        -2,
	"rc":        -2,
	"snapshot":  -1,
	"":          0,
	"ga":        0,
	"final":     0,
	"release":   0,
	"sp":        1,
}

// Single letter aliases, only honoured when directly followed by a number (1.0-a1)
var qualifierAliases = map[string]string{
	"a": "alpha",
	"b": "beta",
	"m": "milestone",
}

type item struct {
	kind itemKind
	num  string // decimal digits without leading zeros, "0" for zero
	str  string // lower-cased text for string items
	rank int    // qualifier rank
}

func (it item) isNumber() bool {
	return it.kind == kindNumber
}

// compare orders two items of arbitrary kinds
func (it item) compare(other item) int {
	if it.kind != other.kind {
		return sign(int(it.kind) - int(other.kind))
	}
	switch it.kind {
	case kindNumber:
		return compareDigits(it.num, other.num)
	case kindQualifier:
		return sign(it.rank - other.rank)
	default:
		return strings.Compare(it.str, other.str)
	}
}

// comparePadding orders an item against the implicit padding (0 / release)
func (it item) comparePadding() int {
	switch it.kind {
	case kindNumber:
		if it.num == "0" {
			return 0
		}
		return 1
	case kindQualifier:
		return sign(it.rank)
	default:
		return 1
	}
}

// Version is a parsed version in the generic Maven scheme
type Version struct {
	raw   string
	items []item
}

// Parse parses a version string into its ordered items
func Parse(s string) (*Version, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty version", ErrInvalidVersion)
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return nil, fmt.Errorf("%w: %q contains whitespace", ErrInvalidVersion, s)
	}

	return &Version{raw: s, items: trimPadding(tokenize(s))}, nil
}

// trimPadding drops padding items (zeros, release qualifiers) that end a run
// of numeric or non-numeric items, scanning from the tail. 1.0.0 parses as 1
// and 1.0-SNAPSHOT as 1-SNAPSHOT.
func trimPadding(items []item) []item {
	end := len(items) - 1
	started, number := false, false

	for i := len(items) - 1; i > 0; i-- {
		it := items[i]
		if !started || it.isNumber() != number {
			end = i
			number = it.isNumber()
			started = true
		}
		inRun := i == len(items)-1 || items[i-1].isNumber() == it.isNumber()
		if end == i && inRun && it.comparePadding() == 0 {
			items = append(items[:i], items[i+1:]...)
			end--
		}
	}
	return items
}

// tokenize splits on '.', '-', '_' and on digit/letter transitions
func tokenize(s string) []item {
	var items []item
	var token strings.Builder
	digits := false

	flush := func(followedByDigit bool) {
		text := token.String()
		token.Reset()
		if digits || text == "" {
			items = append(items, numberItem(text))
			return
		}
		items = append(items, stringItem(text, followedByDigit))
	}

	for _, r := range s {
		switch {
		case r == '.' || r == '-' || r == '_':
			flush(false)
			digits = false
		case r >= '0' && r <= '9':
			if token.Len() > 0 && !digits {
				flush(true)
			}
			digits = true
			token.WriteRune(r)
		default:
			if token.Len() > 0 && digits {
				flush(false)
			}
			digits = false
			token.WriteRune(r)
		}
	}
	flush(false)

	return items
}

func numberItem(text string) item {
	text = strings.TrimLeft(text, "0")
	if text == "" {
		text = "0"
	}
	return item{kind: kindNumber, num: text}
}

func stringItem(text string, followedByDigit bool) item {
	lower := strings.ToLower(text)
	if followedByDigit {
		if alias, ok := qualifierAliases[lower]; ok {
			lower = alias
		}
	}
	if rank, ok := qualifierRanks[lower]; ok {
		return item{kind: kindQualifier, str: lower, rank: rank}
	}
	return item{kind: kindString, str: lower}
}

// String returns the raw version string
func (v *Version) String() string {
	return v.raw
}

// Compare returns -1, 0 or 1. Padding is trimmed at parse time, so 1.0 == 1.0.0
func (v *Version) Compare(other *Version) int {
	these, those := v.items, other.items
	number := true

	for i := 0; ; i++ {
		switch {
		case i >= len(these) && i >= len(those):
			return 0
		case i >= len(these):
			return -comparePadding(those, i, nil)
		case i >= len(those):
			return comparePadding(these, i, nil)
		}

		a, b := these[i], those[i]
		if a.isNumber() != b.isNumber() {
			if number == a.isNumber() {
				return comparePadding(these, i, &number)
			}
			return -comparePadding(those, i, &number)
		}

		if rel := a.compare(b); rel != 0 {
			return rel
		}
		number = a.isNumber()
	}
}

// comparePadding compares the remaining items against padding, stopping at
// the first item whose numeric-ness differs from number (when given)
func comparePadding(items []item, index int, number *bool) int {
	rel := 0
	for _, it := range items[index:] {
		if number != nil && *number != it.isNumber() {
			break
		}
		rel = it.comparePadding()
		if rel != 0 {
			break
		}
	}
	return rel
}

// Major returns the leading numeric component, 0 when absent
func (v *Version) Major() int64 {
	return v.component(0)
}

// Minor returns the second numeric component, 0 when absent
func (v *Version) Minor() int64 {
	return v.component(1)
}

func (v *Version) component(index int) int64 {
	if index >= len(v.items) {
		return 0
	}
	for _, it := range v.items[:index+1] {
		if !it.isNumber() {
			return 0
		}
	}
	n, err := strconv.ParseInt(v.items[index].num, 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}

func compareDigits(a, b string) int {
	if len(a) != len(b) {
		return sign(len(a) - len(b))
	}
	return strings.Compare(a, b)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

package servers

import (
	"cmp"
	"errors"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sorter orders server lists using the collation rules of one language.
// A Sorter is cheap; it builds a fresh collator for every call because
// collators are not safe for concurrent use.
type Sorter struct {
	lang language.Tag
}

// NewSorter returns a Sorter comparing group names with lang's collation.
func NewSorter(lang language.Tag) *Sorter {
	return &Sorter{lang: lang}
}

// Sort returns a stably ordered copy of items. items is never modified.
func (s *Sorter) Sort(items []Server, field Field, order Order) []Server {
	out := slices.Clone(items)
	if out == nil {
		out = []Server{}
	}
	slices.SortStableFunc(out, s.Comparator(field, order))
	return out
}

// Comparator returns the comparison used by Sort.
//
// Names are split on the first '#' into a group and a numeric suffix:
// groups compare by collation, equal groups compare by the integer value of
// the suffix, so "Germany #2" precedes "Germany #11". Within a group, names
// whose suffix has no leading integer sort after all numbered ones. Desc
// negates the whole result; the levels never flip independently.
func (s *Sorter) Comparator(field Field, order Order) func(a, b Server) int {
	dir := 1
	if order == Desc {
		dir = -1
	}

	if field == FieldName {
		col := collate.New(s.lang)
		return func(a, b Server) int {
			return dir * compareNames(col, a.Name, b.Name)
		}
	}

	return func(a, b Server) int {
		return dir * cmp.Compare(a.Distance, b.Distance)
	}
}

var defaultSorter = NewSorter(language.English)

// Sort orders items by field and order using English collation.
func Sort(items []Server, field Field, order Order) []Server {
	return defaultSorter.Sort(items, field, order)
}

// SortBy applies d to items.
func SortBy(items []Server, d SortDirective) []Server {
	return Sort(items, d.Field, d.Order)
}

func compareNames(col *collate.Collator, a, b string) int {
	// groups keep their text as is, trailing space included
	aGroup, aSuffix, _ := strings.Cut(a, "#")
	bGroup, bSuffix, _ := strings.Cut(b, "#")

	if aGroup != bGroup {
		if c := col.CompareString(aGroup, bGroup); c != 0 {
			return c
		}
	}

	aNum, aErr := leadingInt(aSuffix)
	bNum, bErr := leadingInt(bSuffix)
	switch {
	case aErr != nil && bErr != nil:
		return 0
	case aErr != nil:
		return 1
	case bErr != nil:
		return -1
	}
	return cmp.Compare(aNum, bNum)
}

var errNoDigits = errors.New("no leading integer")

// leadingInt parses the integer prefix of s after optional whitespace and
// sign, ignoring anything that follows ("11 (p2p)" is 11). Values beyond
// the int64 range saturate.
func leadingInt(s string) (int64, error) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, errNoDigits
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	return n, nil
}

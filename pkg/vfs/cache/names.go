package cache

import (
	"strings"

	"golang.org/x/text/cases"
)

// NameComparator orders child names inside a directory.
type NameComparator struct {
	caseSensitive bool
}

// NewNameComparator returns a comparator that either compares names byte by
// byte or after Unicode case folding.
func NewNameComparator(caseSensitive bool) NameComparator {
	return NameComparator{caseSensitive: caseSensitive}
}

// CaseSensitive reports whether names differing only in case are distinct.
func (c NameComparator) CaseSensitive() bool { return c.caseSensitive }

// Key returns the form of name used for ordering and lookups.
func (c NameComparator) Key(name string) string {
	if c.caseSensitive {
		return name
	}
	// a Caser keeps state, so it is not shared between goroutines
	return cases.Fold().String(name)
}

// Compare orders a and b, returning -1, 0 or +1.
func (c NameComparator) Compare(a, b string) int {
	if c.caseSensitive {
		return strings.Compare(a, b)
	}
	return strings.Compare(c.Key(a), c.Key(b))
}

// Equal reports whether a and b name the same child.
func (c NameComparator) Equal(a, b string) bool {
	return c.Compare(a, b) == 0
}

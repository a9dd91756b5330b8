// Package classify decides which of two keyword categories a text leans to.
package classify

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the outcome of a classification.
type Category int

const (
	None Category = iota
	CategoryA
	CategoryB
)

// KeywordSet holds two disjoint lists of lowercase keywords. It is not
// modified after construction.
type KeywordSet struct {
	nameA, nameB string
	a, b         []string
}

// NewKeywordSet normalizes both lists and checks that they are usable:
// keywords are lower-cased and trimmed, blanks and duplicates dropped.
func NewKeywordSet(nameA string, a []string, nameB string, b []string) (KeywordSet, error) {
	ks := KeywordSet{
		nameA: nameA,
		nameB: nameB,
		a:     normalize(a),
		b:     normalize(b),
	}
	if len(ks.a) == 0 || len(ks.b) == 0 {
		return KeywordSet{}, errors.New("both keyword categories need at least one keyword")
	}
	for _, kw := range ks.a {
		for _, other := range ks.b {
			if kw == other {
				return KeywordSet{}, fmt.Errorf("keyword %q is listed in both categories", kw)
			}
		}
	}
	return ks, nil
}

func normalize(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// A returns a copy of the category A keywords.
func (ks KeywordSet) A() []string { return append([]string(nil), ks.a...) }

// B returns a copy of the category B keywords.
func (ks KeywordSet) B() []string { return append([]string(nil), ks.b...) }

// Name returns the display name of c.
func (ks KeywordSet) Name(c Category) string {
	switch c {
	case CategoryA:
		return ks.nameA
	case CategoryB:
		return ks.nameB
	default:
		return ""
	}
}

// Result holds keyword occurrence counts for one message.
type Result struct {
	CountA int
	CountB int
}

// Count sums the non-overlapping occurrences of every keyword per category.
// Matching ignores case.
func Count(text string, ks KeywordSet) Result {
	text = strings.ToLower(text)

	var r Result
	for _, kw := range ks.a {
		r.CountA += strings.Count(text, kw)
	}
	for _, kw := range ks.b {
		r.CountB += strings.Count(text, kw)
	}
	return r
}

// Decide picks the category with the strictly greater count. Ties go to
// category B. No occurrences at all yield None.
func (r Result) Decide() Category {
	switch {
	case r.CountA == 0 && r.CountB == 0:
		return None
	case r.CountA > r.CountB:
		return CategoryA
	default:
		return CategoryB
	}
}

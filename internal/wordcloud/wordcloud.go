// Package wordcloud computes the normalized, set-of-tokens identity used to
// recognize that two different texts are "the same phrase" for graph
// storage purposes.
//
// Normalization strips a fixed punctuation set, folds case, and splits on
// spaces. Two texts that produce the same token set are the same WordCloud
// even if the token order or whitespace differs.
package wordcloud

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// punctuation is stripped (not replaced by a space) before splitting, so
// "fine, thanks!" and "fine thanks" normalize to the same token set.
const punctuation = "(),\".;:'?!-"

var caser = cases.Lower(language.Und)

// WordCloud is the normalized, set-of-tokens identity of a phrase. The zero
// value is the empty WordCloud, used by the sentinel root phrase.
//
// WordCloud is comparable and safe to use as a map key: two WordClouds
// constructed from texts with the same token set are ==.
type WordCloud struct {
	key string // sorted, deduplicated tokens joined by a single space
}

// Normalize strips punctuation, lowercases, and splits text into a
// WordCloud. It only fails (ok == false) on malformed UTF-8 — normalization
// itself never rejects well-formed text, including the empty string.
func Normalize(text string) (wc WordCloud, ok bool) {
	if !utf8.ValidString(text) {
		return WordCloud{}, false
	}

	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, text)

	lower := caser.String(stripped)
	tokens := strings.Split(lower, " ")

	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		seen[t] = struct{}{}
	}

	unique := make([]string, 0, len(seen))
	for t := range seen {
		unique = append(unique, t)
	}
	sort.Strings(unique)

	return WordCloud{key: strings.Join(unique, " ")}, true
}

// String returns the canonical wire representation: the sorted, space-joined
// token set. Re-normalizing this string always reproduces the same
// WordCloud, which is what lets a receiver resolve cloud identity from the
// wire string alone.
func (w WordCloud) String() string {
	return w.key
}

// FromWire reconstructs a WordCloud from its canonical wire string. Since
// the wire string is already punctuation-free, lowercase, and space
// separated, this is equivalent to re-normalizing the original text.
func FromWire(s string) WordCloud {
	wc, _ := Normalize(s)
	return wc
}

// Empty reports whether this is the empty WordCloud produced by the empty
// text — the sentinel root's identity.
func (w WordCloud) Empty() bool {
	return w.key == ""
}

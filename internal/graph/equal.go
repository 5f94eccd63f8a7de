package graph

import "github.com/romasoletskyi/looped/internal/wordcloud"

// Equal reports whether d and other represent the same graph: a bijection
// between their phrase indices under which every phrase's texts match as a
// multiset and every phrase's responses match as a multiset once response
// targets are carried across the bijection.
//
// Two graphs built independently (different insertion order, different
// local indices after a merge) can still be Equal — this is the convergence
// property that makes Merge a join over graphs, not just over slices.
func (d *Database) Equal(other *Database) bool {
	if len(d.phrases) != len(other.phrases) {
		return false
	}

	bijection, ok := d.buildBijection(other)
	if !ok {
		return false
	}

	for i, phrase := range d.phrases {
		j := bijection[i]
		if !sameTextMultiset(phrase.Texts, other.phrases[j].Texts) {
			return false
		}
		if !sameResponseMultiset(phrase.Responses, other.phrases[j].Responses, bijection) {
			return false
		}
	}
	return true
}

// buildBijection maps each of d's phrase indices to other's phrase index
// that shares its WordCloud identity (resolved via each phrase's first
// text). It fails if the two graphs don't agree on the same set of clouds.
func (d *Database) buildBijection(other *Database) (map[int]int, bool) {
	if len(d.phrases) != len(other.phrases) {
		return nil, false
	}

	bijection := make(map[int]int, len(d.phrases))
	seen := make(map[int]struct{}, len(other.phrases))
	for i, phrase := range d.phrases {
		cloud, ok := wordcloud.Normalize(phrase.Texts[0])
		if !ok {
			return nil, false
		}
		j, ok := other.phraseIndices[cloud]
		if !ok {
			return nil, false
		}
		if _, dup := seen[j]; dup {
			return nil, false
		}
		seen[j] = struct{}{}
		bijection[i] = j
	}
	return bijection, true
}

func sameTextMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	for _, t := range b {
		counts[t]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

// responseKey is the comparable projection of a Response used to count it
// in a multiset: the remapped target plus the speaker persona.
type responseKey struct {
	target  int
	speaker interface{}
}

func sameResponseMultiset(a, b []Response, bijection map[int]int) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[responseKey]int, len(a))
	for _, r := range a {
		target, ok := bijection[r.Target]
		if !ok {
			return false
		}
		counts[responseKey{target: target, speaker: r.Speaker}]++
	}
	for _, r := range b {
		counts[responseKey{target: r.Target, speaker: r.Speaker}]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

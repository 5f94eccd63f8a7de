// Package chat implements the conversational walker: a cursor into a
// graph.Database that proposes candidate replies weighted by persona
// distance and records the turns a user actually takes.
package chat

import (
	"cmp"
	"math"
	"math/rand"
	"slices"

	"github.com/romasoletskyi/looped/internal/graph"
	"github.com/romasoletskyi/looped/internal/metrics"
	"github.com/romasoletskyi/looped/internal/persona"
)

// Variants is the default number of candidate responses GetPhrases proposes.
const Variants = 4

// Walker holds a cursor into a shared graph and the persona it speaks as.
// It is a single-owner, stateful view over db — concurrent walkers on the
// same graph require external serialization (see the syncserver package).
type Walker struct {
	db       *graph.Database
	rng      *rand.Rand
	persona  persona.GeneralPerson
	cursor   *int // nil = at the sentinel root
	options  []int
	variants int
	metrics  *metrics.Metrics // nil = no counters recorded
}

// NewWalker builds a Walker over db, speaking as the persona decoded from
// personaJSON. A malformed persona falls back to an unspecified one rather
// than failing construction.
func NewWalker(db *graph.Database, youTalk bool, personaJSON []byte) *Walker {
	return NewWalkerWithRand(db, youTalk, personaJSON, rand.New(rand.NewSource(1)))
}

// NewWalkerWithRand is NewWalker with an injectable random source, for
// reproducible sampling in tests.
func NewWalkerWithRand(db *graph.Database, youTalk bool, personaJSON []byte, rng *rand.Rand) *Walker {
	if _, ok := db.RootIndex(); !ok {
		db.InsertTextsAt("", []string{""})
	}
	return &Walker{
		db:       db,
		rng:      rng,
		persona:  persona.ParseJSON(personaJSON, youTalk),
		variants: Variants,
	}
}

// WithMetrics attaches m so subsequent turns increment its chat counters.
// Returns w for chaining.
func (w *Walker) WithMetrics(m *metrics.Metrics) *Walker {
	w.metrics = m
	return w
}

// WithVariants overrides K, the number of candidate replies GetPhrases
// proposes, in place of the Variants default. Non-positive values are
// ignored. Returns w for chaining. This is the config.ChatVariants seam.
func (w *Walker) WithVariants(k int) *Walker {
	if k > 0 {
		w.variants = k
	}
	return w
}

func (w *Walker) cursorIndex() int {
	if w.cursor != nil {
		return *w.cursor
	}
	root, _ := w.db.RootIndex()
	return root
}

// GetPhrases proposes up to K (Variants by default, overridable via
// WithVariants) candidate replies from the current cursor, sampled without
// replacement with probability proportional to exp(-distance(speaker,
// w.persona)). Targets reached by more than one edge have their weights
// summed before sampling, so a popular branch is not under-counted. Returns
// nil if the cursor has no outgoing edges or every edge has zero weight.
func (w *Walker) GetPhrases() []string {
	w.options = nil

	edges := w.db.Responses(w.cursorIndex())
	if len(edges) == 0 {
		return nil
	}

	weights := make(map[int]float64, len(edges))
	for _, e := range edges {
		weights[e.Target] += math.Exp(-persona.Distance(e.Speaker, w.persona))
	}

	targets := make([]int, 0, len(weights))
	for t := range weights {
		targets = append(targets, t)
	}
	slices.Sort(targets)

	chosen := sampleWithoutReplacement(targets, weights, w.variants, w.rng)
	if len(chosen) == 0 {
		return nil
	}

	phrases := make([]string, 0, len(chosen))
	for _, t := range chosen {
		texts := w.db.Texts(t)
		phrases = append(phrases, texts[w.rng.Intn(len(texts))])
	}
	w.options = chosen
	return phrases
}

// sampleWithoutReplacement draws up to k distinct targets from pool, with
// probability proportional to weights, via inverse-CDF sampling: build the
// cumulative distribution, draw u in [0,1), binary search for the first
// bucket >= u, remove that target from the pool, and renormalize.
func sampleWithoutReplacement(pool []int, weights map[int]float64, k int, rng *rand.Rand) []int {
	remaining := append([]int{}, pool...)
	var chosen []int

	for len(chosen) < k && len(remaining) > 0 {
		total := 0.0
		for _, t := range remaining {
			total += weights[t]
		}
		if total <= 0 {
			break
		}

		cdf := make([]float64, len(remaining))
		running := 0.0
		for i, t := range remaining {
			running += weights[t] / total
			cdf[i] = running
		}
		cdf[len(cdf)-1] = 1.0 // guard against float rounding leaving the top bucket short of 1

		u := rng.Float64()
		idx, _ := slices.BinarySearchFunc(cdf, u, cmp.Compare[float64])
		if idx >= len(remaining) {
			idx = len(remaining) - 1
		}

		chosen = append(chosen, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return chosen
}

// AddPhrase records a free-form user contribution: it becomes (or resolves
// to) a phrase, linked from the current cursor with the walker's persona as
// speaker. It is a no-op if text fails to normalize. The cursor advances to
// the new phrase and the conversation side flips.
func (w *Walker) AddPhrase(text string) {
	idx, ok := w.db.InsertTextsAt(text, []string{text})
	if !ok {
		return
	}
	w.db.InsertResponsesTo(w.cursorIndex(), []graph.Response{{Target: idx, Speaker: w.persona}})
	w.cursor = &idx
	w.persona = w.persona.Flip()

	if w.metrics != nil {
		w.metrics.ChatTurnsTotal.Add(1)
		w.metrics.ChatContributionsTotal.Add(1)
	}
}

// ChoosePhrase records that the user picked the k-th candidate most recently
// returned by GetPhrases. Recording the edge even when it already exists
// captures that this persona also uttered it, biasing future weighting.
func (w *Walker) ChoosePhrase(k int) {
	if k < 0 || k >= len(w.options) {
		return
	}
	target := w.options[k]
	w.db.InsertResponsesTo(w.cursorIndex(), []graph.Response{{Target: target, Speaker: w.persona}})
	w.cursor = &target
	w.persona = w.persona.Flip()

	if w.metrics != nil {
		w.metrics.ChatTurnsTotal.Add(1)
	}
}

// Package graph implements the shared conversation graph: phrases
// identified by word-cloud, response edges between them, and the per-peer
// difference tracker that drives delta synchronization between a server and
// many clients.
package graph

import (
	"sort"

	"github.com/romasoletskyi/looped/internal/wordcloud"
)

// Server is the reserved peer id that an outgoing delta's tracker entry is
// always stamped under, regardless of which peer it is destined for.
const Server = "server"

// Database owns the phrase graph, the WordCloud identity index, and the
// per-peer difference tracker. The zero value is not valid; use New.
type Database struct {
	phrases       []*Phrase
	phraseIndices map[wordcloud.WordCloud]int
	tracker       tracker
}

// New returns an empty graph with the sentinel root phrase already inserted,
// so a chat walker always has a starting node to sample from.
func New() *Database {
	d := &Database{
		phrases:       make([]*Phrase, 0),
		phraseIndices: make(map[wordcloud.WordCloud]int),
		tracker:       make(tracker),
	}
	d.InsertTextsAt("", []string{""})
	return d
}

// Updated registers peer (if absent) and resets its outstanding delta to
// empty. Call this once a sync cycle for peer has been confirmed delivered.
func (d *Database) Updated(peer string) {
	d.tracker.reset(peer)
}

// RootIndex returns the index of the sentinel root phrase (empty WordCloud).
// It is present on every Database built with New.
func (d *Database) RootIndex() (int, bool) {
	root, _ := wordcloud.Normalize("")
	idx, ok := d.phraseIndices[root]
	return idx, ok
}

// PhraseCount returns the number of phrases currently in the graph.
func (d *Database) PhraseCount() int {
	return len(d.phrases)
}

// Texts returns a copy of phrase i's text variants.
func (d *Database) Texts(i int) []string {
	out := make([]string, len(d.phrases[i].Texts))
	copy(out, d.phrases[i].Texts)
	return out
}

// Responses returns a copy of phrase i's outgoing response edges.
func (d *Database) Responses(i int) []Response {
	out := make([]Response, len(d.phrases[i].Responses))
	copy(out, d.phrases[i].Responses)
	return out
}

// Peers returns the sorted list of registered peer ids.
func (d *Database) Peers() []string {
	out := d.tracker.peers()
	sort.Strings(out)
	return out
}

// PendingPhrases returns how many phrases currently carry an un-synced
// watermark (text or response) for peer. It reports ok=false if peer is not
// registered.
func (d *Database) PendingPhrases(peer string) (int, bool) {
	delta, ok := d.tracker[peer]
	if !ok {
		return 0, false
	}
	seen := make(map[int]struct{}, len(delta.Texts)+len(delta.Responses))
	for i := range delta.Texts {
		seen[i] = struct{}{}
	}
	for i := range delta.Responses {
		seen[i] = struct{}{}
	}
	return len(seen), true
}

// InsertTextsAt appends texts to the phrase whose identity matches
// baseText's WordCloud, creating that phrase if it doesn't exist yet. It
// returns the phrase index and false only when baseText fails to normalize.
//
// Inserting zero texts into an existing phrase is a pure no-op on the
// tracker: the watermark is only stamped when at least one text is actually
// appended.
func (d *Database) InsertTextsAt(baseText string, texts []string) (int, bool) {
	cloud, ok := wordcloud.Normalize(baseText)
	if !ok {
		return 0, false
	}

	if idx, exists := d.phraseIndices[cloud]; exists {
		if len(texts) > 0 {
			d.tracker.noteTextGrowth(idx, len(d.phrases[idx].Texts))
			d.phrases[idx].Texts = append(d.phrases[idx].Texts, texts...)
		}
		return idx, true
	}

	idx := len(d.phrases)
	d.tracker.noteTextGrowth(idx, 0)
	phrase := &Phrase{Texts: make([]string, 0, len(texts))}
	phrase.Texts = append(phrase.Texts, texts...)
	d.phrases = append(d.phrases, phrase)
	d.phraseIndices[cloud] = idx
	return idx, true
}

// InsertResponsesTo appends response edges to phrase i.
func (d *Database) InsertResponsesTo(i int, responses []Response) {
	d.tracker.noteResponseGrowth(i, len(d.phrases[i].Responses))
	d.phrases[i].Responses = append(d.phrases[i].Responses, responses...)
}

// Difference materializes the compact delta owed to peer: every phrase
// touched since peer's last Updated call, sliced down to just the unsynced
// texts/responses. Calling Difference does not itself clear peer's
// watermark — the caller must call Updated(peer) once the delta is
// confirmed delivered.
func (d *Database) Difference(peer string) *Database {
	out := New()
	out.Updated(Server)

	delta, ok := d.tracker[peer]
	if !ok {
		return out
	}

	handled := make(map[int]struct{}, len(delta.Texts))
	for _, i := range sortedIntKeys(delta.Texts) {
		textStart := delta.Texts[i]
		var respStart *int
		if r, ok := delta.Responses[i]; ok {
			respStart = &r
		}
		d.addSlice(out, i, &textStart, respStart)
		handled[i] = struct{}{}
	}
	for _, i := range sortedIntKeys(delta.Responses) {
		if _, done := handled[i]; done {
			continue
		}
		respStart := delta.Responses[i]
		d.addSlice(out, i, nil, &respStart)
	}

	return out
}

// addSlice appends one phrase to out, carrying the unsynced tail of
// phrases[i]'s texts/responses. When textStart is nil, only the canonical
// representative travels (so the receiver can resolve the cloud) and out's
// tracker is stamped with watermark 1 instead of 0 to mark it identifier-only.
func (d *Database) addSlice(out *Database, i int, textStart, respStart *int) {
	length := len(out.phrases)
	outDelta := out.tracker[Server]

	var texts []string
	if textStart != nil {
		texts = append([]string{}, d.phrases[i].Texts[*textStart:]...)
		outDelta.Texts[length] = 0
	} else {
		texts = []string{d.phrases[i].Texts[0]}
		outDelta.Texts[length] = 1
	}

	var responses []Response
	if respStart != nil {
		responses = append([]Response{}, d.phrases[i].Responses[*respStart:]...)
		outDelta.Responses[length] = 0
		for _, r := range responses {
			targetCloud, _ := wordcloud.Normalize(d.phrases[r.Target].Texts[0])
			out.phraseIndices[targetCloud] = r.Target
		}
	}

	out.phrases = append(out.phrases, &Phrase{Texts: texts, Responses: responses})
}

// Merge applies a peer-originated delta against self, remapping the
// delta's foreign phrase indices through shared WordClouds. delta is
// expected to carry a Server-keyed tracker entry, as produced by Difference
// or TotalClone; a delta missing that entry is treated as empty.
func (d *Database) Merge(delta *Database) {
	serverDelta, ok := delta.tracker[Server]
	if !ok {
		return
	}

	indexToCloud := make(map[int]wordcloud.WordCloud, len(delta.phraseIndices))
	for cloud, idx := range delta.phraseIndices {
		indexToCloud[idx] = cloud
	}

	merged := make(map[int]int, len(serverDelta.Texts))
	for _, i := range sortedIntKeys(serverDelta.Texts) {
		start := serverDelta.Texts[i]
		base := delta.phrases[i].Texts[0]
		slice := delta.phrases[i].Texts[start:]
		if idx, ok := d.InsertTextsAt(base, slice); ok {
			merged[i] = idx
		}
	}

	for _, i := range sortedIntKeys(serverDelta.Responses) {
		localIdx, ok := merged[i]
		if !ok {
			continue
		}
		start := serverDelta.Responses[i]
		source := delta.phrases[i].Responses[start:]
		remapped := make([]Response, len(source))
		for j, r := range source {
			target := r.Target
			if cloud, ok := indexToCloud[target]; ok {
				if localTarget, ok := d.phraseIndices[cloud]; ok {
					target = localTarget
				} else {
					panic("graph: merge delta references a response target whose cloud is unresolvable")
				}
			}
			remapped[j] = Response{Target: target, Speaker: r.Speaker}
		}
		d.InsertResponsesTo(localIdx, remapped)
	}
}

// TotalClone returns a delta as if built for a peer that has never synced:
// every phrase, in full, as if newly touched. This is what a fresh client
// merges to cold-join an existing graph.
//
// The sentinel root is the one exception: every Database built with New
// already owns a root holding the canonical "" text, so shipping that text
// would duplicate it on merge. Only the root's texts after the first travel
// (identifier-only when it has no others); its responses (the conversation
// openers) still travel in full.
func (d *Database) TotalClone() *Database {
	out := New()
	out.Updated(Server)

	root, hasRoot := d.RootIndex()
	for i := range d.phrases {
		if hasRoot && i == root {
			respStart := 0
			if len(d.phrases[i].Texts) > 1 {
				textStart := 1
				d.addSlice(out, i, &textStart, &respStart)
			} else {
				d.addSlice(out, i, nil, &respStart)
			}
			continue
		}
		textStart, respStart := 0, 0
		d.addSlice(out, i, &textStart, &respStart)
	}
	return out
}

func sortedIntKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

package graph

import (
	"encoding/json"
	"fmt"

	"github.com/romasoletskyi/looped/internal/wordcloud"
)

// cloudEntry is one (cloud, index) pair of the phrase-index dictionary, wire
// encoded as a 2-element JSON array so the cloud string doesn't have to be a
// valid JSON object key.
type cloudEntry struct {
	Cloud string
	Index int
}

func (e cloudEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.Cloud, e.Index})
}

func (e *cloudEntry) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("graph: phrase_indices entry: %w", err)
	}
	if err := json.Unmarshal(pair[0], &e.Cloud); err != nil {
		return fmt.Errorf("graph: phrase_indices cloud: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.Index); err != nil {
		return fmt.Errorf("graph: phrase_indices index: %w", err)
	}
	return nil
}

// wireDatabase is the on-the-wire shape of a Database: phrases in index
// order, the phrase-index dictionary as cloud/index pairs, and the tracker
// keyed by peer id.
type wireDatabase struct {
	Phrases       []*Phrase             `json:"phrases"`
	PhraseIndices []cloudEntry          `json:"phrase_indices"`
	Tracker       map[string]*peerDelta `json:"tracker"`
}

// MarshalJSON encodes the full Database, including its difference tracker,
// so a delta produced by Difference or TotalClone survives a trip over the
// wire with its Server-keyed watermarks intact.
func (d *Database) MarshalJSON() ([]byte, error) {
	indices := make([]cloudEntry, 0, len(d.phraseIndices))
	for cloud, idx := range d.phraseIndices {
		indices = append(indices, cloudEntry{Cloud: cloud.String(), Index: idx})
	}
	return json.Marshal(wireDatabase{
		Phrases:       d.phrases,
		PhraseIndices: indices,
		Tracker:       d.tracker,
	})
}

// UnmarshalJSON decodes a Database previously produced by MarshalJSON.
func (d *Database) UnmarshalJSON(data []byte) error {
	var wire wireDatabase
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	d.phrases = wire.Phrases
	if d.phrases == nil {
		d.phrases = make([]*Phrase, 0)
	}

	d.phraseIndices = make(map[wordcloud.WordCloud]int, len(wire.PhraseIndices))
	for _, e := range wire.PhraseIndices {
		d.phraseIndices[wordcloud.FromWire(e.Cloud)] = e.Index
	}

	d.tracker = make(tracker, len(wire.Tracker))
	for peer, delta := range wire.Tracker {
		if delta.Texts == nil {
			delta.Texts = make(map[int]int)
		}
		if delta.Responses == nil {
			delta.Responses = make(map[int]int)
		}
		d.tracker[peer] = delta
	}

	return nil
}

// ParseDatabase decodes a Database from its wire JSON, as produced by
// MarshalJSON or Database.String.
func ParseDatabase(data []byte) (*Database, error) {
	d := &Database{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("graph: parse database: %w", err)
	}
	return d, nil
}

// String returns the canonical wire JSON for d.
func (d *Database) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("graph.Database{<marshal error: %v>}", err)
	}
	return string(b)
}

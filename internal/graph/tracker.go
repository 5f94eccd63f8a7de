package graph

// peerDelta is the first unsynced text/response offset per phrase for one
// registered peer. An offset is recorded only once — the first time a peer
// has outstanding content at that phrase — and never overwritten, so it
// always marks the watermark prior to the first un-shipped element.
type peerDelta struct {
	Texts     map[int]int `json:"texts"`
	Responses map[int]int `json:"responses"`
}

func newPeerDelta() *peerDelta {
	return &peerDelta{
		Texts:     make(map[int]int),
		Responses: make(map[int]int),
	}
}

// tracker maps peer id to that peer's outstanding delta. A peer is
// "registered" exactly when it has an entry here; registration is what lets
// noteTextGrowth/noteResponseGrowth know which peers to stamp.
type tracker map[string]*peerDelta

func (t tracker) registered(peer string) bool {
	_, ok := t[peer]
	return ok
}

func (t tracker) reset(peer string) {
	t[peer] = newPeerDelta()
}

// noteTextGrowth stamps every registered peer's watermark for phrase i with
// priorLen, unless that peer already has a pending watermark there.
func (t tracker) noteTextGrowth(i, priorLen int) {
	for _, delta := range t {
		if _, ok := delta.Texts[i]; !ok {
			delta.Texts[i] = priorLen
		}
	}
}

func (t tracker) noteResponseGrowth(i, priorLen int) {
	for _, delta := range t {
		if _, ok := delta.Responses[i]; !ok {
			delta.Responses[i] = priorLen
		}
	}
}

// peers returns the registered peer ids.
func (t tracker) peers() []string {
	out := make([]string, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	return out
}

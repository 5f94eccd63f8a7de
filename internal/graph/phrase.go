package graph

import "github.com/romasoletskyi/looped/internal/persona"

// Response is a directed edge from one phrase to another, annotated with
// the persona that uttered it. Self-loops and parallel edges are both
// allowed — a response is recorded every time a persona utters it, even if
// the same edge already exists.
type Response struct {
	Target  int                  `json:"target"`
	Speaker persona.GeneralPerson `json:"speaker"`
}

// Phrase is a node of the graph: every text variant that shares one
// WordCloud identity, plus the edges to phrases spoken in response. Texts[0]
// is the canonical representative used to resolve the phrase's WordCloud.
//
// Both slices are append-only; nothing in this package ever removes or
// reorders an existing element.
type Phrase struct {
	Texts     []string   `json:"texts"`
	Responses []Response `json:"responses"`
}

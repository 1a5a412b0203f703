// Package highlight coordinates hover, pin and selection emphasis across the
// map, legend and chart surfaces.
package highlight

import "github.com/rotisserie/eris"

// Emphasis is the effective highlight level of one place.
type Emphasis int

const (
	// EmphasisNone is the neutral level.
	EmphasisNone Emphasis = iota
	// EmphasisPinned marks members of the highlighted legend bucket.
	EmphasisPinned
	// EmphasisHovered marks the single place under the pointer. It reads
	// brighter than bucket emphasis.
	EmphasisHovered
)

var emphasisNames = map[Emphasis]string{
	EmphasisNone:    "none",
	EmphasisPinned:  "pinned",
	EmphasisHovered: "hovered",
}

func (e Emphasis) String() string {
	if s, ok := emphasisNames[e]; ok {
		return s
	}
	return "unknown"
}

// MarshalText encodes the level name.
func (e Emphasis) MarshalText() ([]byte, error) {
	s, ok := emphasisNames[e]
	if !ok {
		return nil, eris.Errorf("highlight: invalid emphasis %d", int(e))
	}
	return []byte(s), nil
}

// Change is one emphasis transition delivered to a Renderer.
type Change struct {
	ID       string   `json:"id"`
	Emphasis Emphasis `json:"emphasis"`
}

// Renderer receives emphasis transitions in the order they occur.
type Renderer interface {
	Emphasize(id string, level Emphasis)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(id string, level Emphasis)

// Emphasize calls f(id, level).
func (f RendererFunc) Emphasize(id string, level Emphasis) { f(id, level) }

// Recorder is a Renderer that collects changes until drained.
type Recorder struct {
	changes []Change
}

// Emphasize records a change.
func (r *Recorder) Emphasize(id string, level Emphasis) {
	r.changes = append(r.changes, Change{ID: id, Emphasis: level})
}

// Drain returns the recorded changes and resets the recorder.
func (r *Recorder) Drain() []Change {
	out := r.changes
	r.changes = nil
	if out == nil {
		out = []Change{}
	}
	return out
}

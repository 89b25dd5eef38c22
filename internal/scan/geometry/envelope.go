package geometry

import "fmt"

// Envelope is the serialised form of a Geometry, tagged by kind. It is used
// by the HTTP API and the result store.
type Envelope struct {
	Kind string `json:"kind"`
	Arc  *Arc   `json:"arc,omitempty"`
	Line *Line  `json:"line,omitempty"`
	Rect *Rect  `json:"rect,omitempty"`
}

// Wrap returns the envelope for g.
func Wrap(g Geometry) Envelope {
	switch v := g.(type) {
	case Arc:
		return Envelope{Kind: KindArc.String(), Arc: &v}
	case Line:
		return Envelope{Kind: KindLine.String(), Line: &v}
	case Rect:
		return Envelope{Kind: KindRect.String(), Rect: &v}
	}
	return Envelope{}
}

// Geometry unpacks and validates the envelope.
func (e Envelope) Geometry() (Geometry, error) {
	kind, err := ParseKind(e.Kind)
	if err != nil {
		return nil, err
	}
	var g Geometry
	switch kind {
	case KindArc:
		if e.Arc == nil {
			return nil, fmt.Errorf("%w: kind arc without arc body", ErrInvalidGeometry)
		}
		g = *e.Arc
	case KindLine:
		if e.Line == nil {
			return nil, fmt.Errorf("%w: kind line without line body", ErrInvalidGeometry)
		}
		g = *e.Line
	case KindRect:
		if e.Rect == nil {
			return nil, fmt.Errorf("%w: kind rect without rect body", ErrInvalidGeometry)
		}
		g = *e.Rect
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Package geometry defines the scan geometries: chi arcs, line profiles and
// rectangular integrals.
//
// Geometries are immutable values in source-frame pixel coordinates (x to the
// right, y down, pixel centres at integer coordinates). They validate their
// own invariants and know how to map a pixel coordinate onto an output bin;
// turning that mapping into index lists is the job of package indexcache.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGeometry is returned when a geometry violates its invariants.
// It is the only scan error meant to reach the user.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Epsilon is the tolerance used for geometry equality and bin counting.
const Epsilon = 1e-9

// Kind identifies the geometry family.
type Kind int

const (
	KindArc Kind = iota
	KindLine
	KindRect
)

func (k Kind) String() string {
	switch k {
	case KindArc:
		return "arc"
	case KindLine:
		return "line"
	case KindRect:
		return "rect"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps the names produced by Kind.String back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "arc", "chi":
		return KindArc, nil
	case "line":
		return KindLine, nil
	case "rect":
		return KindRect, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidGeometry, s)
}

// Point is a position in pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is an axis-aligned box in pixel coordinates, inclusive on both ends.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Geometry is implemented by Arc, Line and Rect.
type Geometry interface {
	Kind() Kind

	// Validate returns an error wrapping ErrInvalidGeometry when an invariant
	// does not hold.
	Validate() error

	// Equal reports whether other is the same kind with every field within
	// Epsilon.
	Equal(other Geometry) bool

	// Translate returns the geometry shifted by (dx, dy).
	Translate(dx, dy float64) Geometry

	// Scale returns the geometry with all lengths multiplied by f. Angles and
	// the number of bins are preserved.
	Scale(f float64) Geometry

	// Bins returns the number of output bins.
	Bins() int

	// Positions returns the x value of each bin in increasing order.
	Positions() []float64

	// Bounds returns the box containing every pixel the geometry can touch.
	Bounds() Bounds
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidGeometry}, args...)...)
}

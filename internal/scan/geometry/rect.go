package geometry

import "math"

// Rect integrates every pixel whose coordinate lies in [X, X+Width) by
// [Y, Y+Height) into a single bin.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Kind() Kind { return KindRect }

func (r Rect) Validate() error {
	if !finite(r.X, r.Y, r.Width, r.Height) {
		return invalidf("rect fields must be finite")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return invalidf("rect size must be positive, got %vx%v", r.Width, r.Height)
	}
	return nil
}

func (r Rect) Equal(other Geometry) bool {
	o, ok := other.(Rect)
	if !ok {
		return false
	}
	return nearlyEqual(r.X, o.X) &&
		nearlyEqual(r.Y, o.Y) &&
		nearlyEqual(r.Width, o.Width) &&
		nearlyEqual(r.Height, o.Height)
}

func (r Rect) Translate(dx, dy float64) Geometry {
	r.X += dx
	r.Y += dy
	return r
}

func (r Rect) Scale(f float64) Geometry {
	r.X *= f
	r.Y *= f
	r.Width *= f
	r.Height *= f
	return r
}

func (r Rect) Bins() int { return 1 }

func (r Rect) Positions() []float64 { return []float64{0} }

func (r Rect) Bounds() Bounds {
	return Bounds{MinX: r.X, MinY: r.Y, MaxX: r.X + r.Width, MaxY: r.Y + r.Height}
}

// Span returns the half-open integer pixel range covered by the rect,
// unclipped.
func (r Rect) Span() (x0, y0, x1, y1 int) {
	return ceilInt(r.X), ceilInt(r.Y), ceilInt(r.X + r.Width), ceilInt(r.Y + r.Height)
}

// Contains reports whether the pixel at (x, y) is inside the rect.
func (r Rect) Contains(x, y int) bool {
	x0, y0, x1, y1 := r.Span()
	return x >= x0 && x < x1 && y >= y0 && y < y1
}

func ceilInt(v float64) int {
	return int(math.Ceil(v - Epsilon))
}

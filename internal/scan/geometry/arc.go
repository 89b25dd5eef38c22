package geometry

import "math"

// Arc is a chi scan: an annulus around Center of mid radius Radius and radial
// extent Width, swept over ChiRange degrees starting at Tilt, binned every
// ChiStep degrees.
//
// Angles are measured counter-clockwise from the +x axis with the image y
// axis flipped, so a pixel directly above the centre sits at 90°.
type Arc struct {
	Center   Point   `json:"center"`
	Radius   float64 `json:"radius"`
	Width    float64 `json:"width"`
	ChiRange float64 `json:"chi_range"`
	Tilt     float64 `json:"tilt"`
	ChiStep  float64 `json:"chi_step"`
}

func (a Arc) Kind() Kind { return KindArc }

// Validate checks radius, width, step and range consistency.
func (a Arc) Validate() error {
	if !finite(a.Center.X, a.Center.Y, a.Radius, a.Width, a.ChiRange, a.Tilt, a.ChiStep) {
		return invalidf("arc fields must be finite")
	}
	if a.Radius <= 0 {
		return invalidf("radius must be positive, got %v", a.Radius)
	}
	if a.Width <= 0 {
		return invalidf("width must be positive, got %v", a.Width)
	}
	if a.ChiStep <= 0 {
		return invalidf("chi step must be positive, got %v", a.ChiStep)
	}
	if a.ChiRange <= 0 || a.ChiRange > 360 {
		return invalidf("chi range must be in (0, 360], got %v", a.ChiRange)
	}
	if a.ChiStep > a.ChiRange {
		return invalidf("chi step %v exceeds chi range %v", a.ChiStep, a.ChiRange)
	}
	if a.Radius-a.Width/2 < 0 {
		return invalidf("inner radius %v is negative (radius %v, width %v)", a.Radius-a.Width/2, a.Radius, a.Width)
	}
	return nil
}

func (a Arc) Equal(other Geometry) bool {
	o, ok := other.(Arc)
	if !ok {
		return false
	}
	return nearlyEqual(a.Center.X, o.Center.X) &&
		nearlyEqual(a.Center.Y, o.Center.Y) &&
		nearlyEqual(a.Radius, o.Radius) &&
		nearlyEqual(a.Width, o.Width) &&
		nearlyEqual(a.ChiRange, o.ChiRange) &&
		nearlyEqual(a.Tilt, o.Tilt) &&
		nearlyEqual(a.ChiStep, o.ChiStep)
}

func (a Arc) Translate(dx, dy float64) Geometry {
	a.Center.X += dx
	a.Center.Y += dy
	return a
}

func (a Arc) Scale(f float64) Geometry {
	a.Center.X *= f
	a.Center.Y *= f
	a.Radius *= f
	a.Width *= f
	return a
}

// Bins returns ceil(ChiRange/ChiStep); a trailing partial bin is kept.
func (a Arc) Bins() int {
	n := int(math.Ceil(a.ChiRange/a.ChiStep - Epsilon))
	if n < 1 {
		n = 1
	}
	return n
}

// Positions returns the start angle of each bin.
func (a Arc) Positions() []float64 {
	n := a.Bins()
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = a.Tilt + float64(i)*a.ChiStep
	}
	return xs
}

// InnerRadius is Radius - Width/2.
func (a Arc) InnerRadius() float64 { return a.Radius - a.Width/2 }

// OuterRadius is Radius + Width/2.
func (a Arc) OuterRadius() float64 { return a.Radius + a.Width/2 }

func (a Arc) Bounds() Bounds {
	r := a.OuterRadius()
	return Bounds{
		MinX: a.Center.X - r,
		MinY: a.Center.Y - r,
		MaxX: a.Center.X + r,
		MaxY: a.Center.Y + r,
	}
}

// Locate returns the bin containing the pixel at (x, y), or ok=false when
// the pixel lies outside the annulus or the swept range.
func (a Arc) Locate(x, y float64) (bin int, ok bool) {
	dx := x - a.Center.X
	dy := a.Center.Y - y
	r := math.Hypot(dx, dy)
	if r < a.InnerRadius() || r > a.OuterRadius() {
		return 0, false
	}
	theta := math.Atan2(dy, dx) * 180 / math.Pi
	rel := math.Mod(theta-a.Tilt, 360)
	if rel < 0 {
		rel += 360
	}
	if rel >= a.ChiRange {
		return 0, false
	}
	bin = int(rel / a.ChiStep)
	if n := a.Bins(); bin >= n {
		bin = n - 1
	}
	return bin, true
}

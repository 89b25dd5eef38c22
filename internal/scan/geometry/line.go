package geometry

import "math"

// Line is a line profile from Start to End, sampled every Step pixels and
// averaged across Width pixels perpendicular to the line.
type Line struct {
	Start Point   `json:"start"`
	End   Point   `json:"end"`
	Width float64 `json:"width"`
	Step  float64 `json:"step"`
}

func (l Line) Kind() Kind { return KindLine }

func (l Line) Validate() error {
	if !finite(l.Start.X, l.Start.Y, l.End.X, l.End.Y, l.Width, l.Step) {
		return invalidf("line fields must be finite")
	}
	if l.Length() <= Epsilon {
		return invalidf("line start and end coincide")
	}
	if l.Width < 1 {
		return invalidf("line width must be >= 1, got %v", l.Width)
	}
	if l.Step <= 0 {
		return invalidf("line step must be positive, got %v", l.Step)
	}
	return nil
}

func (l Line) Equal(other Geometry) bool {
	o, ok := other.(Line)
	if !ok {
		return false
	}
	return nearlyEqual(l.Start.X, o.Start.X) &&
		nearlyEqual(l.Start.Y, o.Start.Y) &&
		nearlyEqual(l.End.X, o.End.X) &&
		nearlyEqual(l.End.Y, o.End.Y) &&
		nearlyEqual(l.Width, o.Width) &&
		nearlyEqual(l.Step, o.Step)
}

func (l Line) Translate(dx, dy float64) Geometry {
	l.Start.X += dx
	l.Start.Y += dy
	l.End.X += dx
	l.End.Y += dy
	return l
}

// Scale keeps the perpendicular width at one pixel or more so a scaled line
// never loses its samples.
func (l Line) Scale(f float64) Geometry {
	l.Start.X *= f
	l.Start.Y *= f
	l.End.X *= f
	l.End.Y *= f
	l.Step *= f
	l.Width = math.Max(1, l.Width*f)
	return l
}

// Length is the distance from Start to End.
func (l Line) Length() float64 {
	return math.Hypot(l.End.X-l.Start.X, l.End.Y-l.Start.Y)
}

// Bins counts the samples at 0, Step, 2*Step, ... up to Length.
func (l Line) Bins() int {
	return int(math.Floor(l.Length()/l.Step+Epsilon)) + 1
}

// Positions returns the distance along the line of each sample.
func (l Line) Positions() []float64 {
	xs := make([]float64, l.Bins())
	for i := range xs {
		xs[i] = float64(i) * l.Step
	}
	return xs
}

func (l Line) Bounds() Bounds {
	pad := l.Width/2 + 1
	return Bounds{
		MinX: math.Min(l.Start.X, l.End.X) - pad,
		MinY: math.Min(l.Start.Y, l.End.Y) - pad,
		MaxX: math.Max(l.Start.X, l.End.X) + pad,
		MaxY: math.Max(l.Start.Y, l.End.Y) + pad,
	}
}

// Sample calls visit for each distinct pixel of sample i: the nearest pixels
// to the points spread across Width along the line normal. Coordinates are
// not clipped to any frame.
func (l Line) Sample(i int, visit func(x, y int)) {
	length := l.Length()
	t := math.Min(float64(i)*l.Step, length)
	dirX := (l.End.X - l.Start.X) / length
	dirY := (l.End.Y - l.Start.Y) / length
	normX, normY := -dirY, dirX
	cx := l.Start.X + t*dirX
	cy := l.Start.Y + t*dirY

	m := int(math.Floor(l.Width + Epsilon))
	seen := make([][2]int, 0, m)
	for j := 0; j < m; j++ {
		o := float64(j) - float64(m-1)/2
		px := int(math.Round(cx + o*normX))
		py := int(math.Round(cy + o*normY))
		dup := false
		for _, s := range seen {
			if s[0] == px && s[1] == py {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen = append(seen, [2]int{px, py})
		visit(px, py)
	}
}

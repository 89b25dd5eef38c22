package geometry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArc() Arc {
	return Arc{
		Center:   Point{X: 500, Y: 500},
		Radius:   100,
		Width:    10,
		ChiRange: 360,
		Tilt:     0,
		ChiStep:  90,
	}
}

func TestArc_Validate(t *testing.T) {
	valid := testArc()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(a *Arc)
	}{
		{"zero radius", func(a *Arc) { a.Radius = 0 }},
		{"zero width", func(a *Arc) { a.Width = 0 }},
		{"zero step", func(a *Arc) { a.ChiStep = 0 }},
		{"zero range", func(a *Arc) { a.ChiRange = 0 }},
		{"range beyond full turn", func(a *Arc) { a.ChiRange = 361 }},
		{"step larger than range", func(a *Arc) { a.ChiStep = 400 }},
		{"negative inner radius", func(a *Arc) { a.Width = 250 }},
		{"nan centre", func(a *Arc) { a.Center.X = math.NaN() }},
		{"infinite tilt", func(a *Arc) { a.Tilt = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testArc()
			tt.mutate(&a)
			err := a.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidGeometry)
		})
	}
}

func TestArc_Bins(t *testing.T) {
	tests := []struct {
		rng, step float64
		want      int
	}{
		{60, 1, 60},
		{360, 90, 4},
		{10, 3, 4},
		{1, 0.1, 10},
		{5, 5, 1},
	}
	for _, tt := range tests {
		a := testArc()
		a.ChiRange, a.ChiStep = tt.rng, tt.step
		assert.Equal(t, tt.want, a.Bins(), "range=%v step=%v", tt.rng, tt.step)
	}
}

func TestArc_Positions(t *testing.T) {
	a := testArc()
	a.Tilt, a.ChiRange, a.ChiStep = 30, 30, 10
	assert.Equal(t, []float64{30, 40, 50}, a.Positions())
}

func TestArc_Locate(t *testing.T) {
	a := testArc()

	tests := []struct {
		name   string
		x, y   float64
		wantOK bool
		want   int
	}{
		{"right of centre", 600, 500, true, 0},
		{"above centre", 500, 400, true, 1},
		{"left of centre", 400, 500, true, 2},
		{"below centre", 500, 600, true, 3},
		{"inner edge", 595, 500, true, 0},
		{"outer edge", 605, 500, true, 0},
		{"centre", 500, 500, false, 0},
		{"outside annulus", 700, 500, false, 0},
		{"inside hole", 550, 500, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, ok := a.Locate(tt.x, tt.y)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, bin)
			}
		})
	}
}

func TestArc_LocatePartialRange(t *testing.T) {
	a := testArc()
	a.ChiRange, a.ChiStep = 60, 10

	_, ok := a.Locate(500, 400)
	assert.False(t, ok, "90 degrees is outside a 60 degree sweep")

	bin, ok := a.Locate(600, 500)
	require.True(t, ok)
	assert.Equal(t, 0, bin)
}

func TestArc_LocateWrapsThroughZero(t *testing.T) {
	a := testArc()
	a.Tilt, a.ChiRange, a.ChiStep = 350, 20, 10

	bin, ok := a.Locate(600, 500)
	require.True(t, ok)
	assert.Equal(t, 1, bin)

	_, ok = a.Locate(500, 400)
	assert.False(t, ok)
}

func TestArc_ScaleAndTranslate(t *testing.T) {
	a := testArc()

	scaled := a.Scale(0.5).(Arc)
	assert.Equal(t, Point{X: 250, Y: 250}, scaled.Center)
	assert.Equal(t, 50.0, scaled.Radius)
	assert.Equal(t, 5.0, scaled.Width)
	assert.Equal(t, a.ChiStep, scaled.ChiStep)
	assert.Equal(t, a.Bins(), scaled.Bins())

	moved := a.Translate(-100, -50).(Arc)
	assert.Equal(t, Point{X: 400, Y: 450}, moved.Center)
	assert.Equal(t, a.Radius, moved.Radius)
}

func TestArc_Equal(t *testing.T) {
	a := testArc()

	b := a
	b.Radius += 1e-10
	assert.True(t, a.Equal(b))

	b.Radius += 1e-6
	assert.False(t, a.Equal(b))

	assert.False(t, a.Equal(Rect{X: 0, Y: 0, Width: 1, Height: 1}))
}

func TestArc_Bounds(t *testing.T) {
	b := testArc().Bounds()
	assert.Equal(t, Bounds{MinX: 395, MinY: 395, MaxX: 605, MaxY: 605}, b)
}

func TestLine_Validate(t *testing.T) {
	valid := Line{Start: Point{0, 0}, End: Point{10, 0}, Width: 1, Step: 1}
	require.NoError(t, valid.Validate())

	for name, l := range map[string]Line{
		"coincident":   {Start: Point{5, 5}, End: Point{5, 5}, Width: 1, Step: 1},
		"narrow":       {Start: Point{0, 0}, End: Point{10, 0}, Width: 0.5, Step: 1},
		"zero step":    {Start: Point{0, 0}, End: Point{10, 0}, Width: 1, Step: 0},
		"nan endpoint": {Start: Point{0, 0}, End: Point{math.NaN(), 0}, Width: 1, Step: 1},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, l.Validate(), ErrInvalidGeometry)
		})
	}
}

func TestLine_BinsAndPositions(t *testing.T) {
	l := Line{Start: Point{0, 0}, End: Point{10, 0}, Width: 1, Step: 2.5}
	assert.Equal(t, 5, l.Bins())
	assert.Equal(t, []float64{0, 2.5, 5, 7.5, 10}, l.Positions())
}

func TestLine_Sample(t *testing.T) {
	collect := func(l Line, i int) [][2]int {
		var got [][2]int
		l.Sample(i, func(x, y int) { got = append(got, [2]int{x, y}) })
		return got
	}

	t.Run("single pixel width", func(t *testing.T) {
		l := Line{Start: Point{0, 0}, End: Point{10, 0}, Width: 1, Step: 1}
		assert.Equal(t, [][2]int{{3, 0}}, collect(l, 3))
	})

	t.Run("three pixels across", func(t *testing.T) {
		l := Line{Start: Point{0, 5}, End: Point{10, 5}, Width: 3, Step: 1}
		assert.Equal(t, [][2]int{{3, 4}, {3, 5}, {3, 6}}, collect(l, 3))
	})

	t.Run("last sample clamps to end", func(t *testing.T) {
		l := Line{Start: Point{0, 0}, End: Point{0, 9}, Width: 1, Step: 2}
		require.Equal(t, 5, l.Bins())
		assert.Equal(t, [][2]int{{0, 8}}, collect(l, 4))
	})
}

func TestLine_ScaleKeepsBinCount(t *testing.T) {
	l := Line{Start: Point{0, 0}, End: Point{100, 0}, Width: 3, Step: 1}

	half := l.Scale(0.5).(Line)
	assert.Equal(t, l.Bins(), half.Bins())
	assert.Equal(t, 1.5, half.Width)

	quarter := l.Scale(0.25).(Line)
	assert.Equal(t, 1.0, quarter.Width)
	assert.Equal(t, l.Bins(), quarter.Bins())
}

func TestRect_Span(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 5, Height: 3}
	x0, y0, x1, y1 := r.Span()
	assert.Equal(t, []int{10, 20, 15, 23}, []int{x0, y0, x1, y1})

	assert.True(t, r.Contains(14, 22))
	assert.False(t, r.Contains(15, 22))
	assert.False(t, r.Contains(10, 23))

	half := r.Scale(0.5).(Rect)
	x0, y0, x1, y1 = half.Span()
	assert.Equal(t, []int{5, 10, 8, 12}, []int{x0, y0, x1, y1})

	assert.Equal(t, 1, r.Bins())
	assert.Equal(t, []float64{0}, r.Positions())
}

func TestRect_Validate(t *testing.T) {
	assert.NoError(t, Rect{Width: 1, Height: 1}.Validate())
	assert.ErrorIs(t, Rect{Width: 0, Height: 1}.Validate(), ErrInvalidGeometry)
	assert.ErrorIs(t, Rect{Width: 1, Height: math.Inf(1)}.Validate(), ErrInvalidGeometry)
}

func TestEnvelope(t *testing.T) {
	t.Run("decodes arc", func(t *testing.T) {
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(`{
			"kind": "arc",
			"arc": {"center": {"x": 500, "y": 500}, "radius": 100, "width": 10,
			        "chi_range": 60, "tilt": 0, "chi_step": 1}
		}`), &env))

		g, err := env.Geometry()
		require.NoError(t, err)
		assert.Equal(t, KindArc, g.Kind())
		assert.Equal(t, 60, g.Bins())
	})

	t.Run("wrap and unwrap", func(t *testing.T) {
		r := Rect{X: 1, Y: 2, Width: 3, Height: 4}
		g, err := Wrap(r).Geometry()
		require.NoError(t, err)
		assert.True(t, r.Equal(g))
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := Envelope{Kind: "polygon"}.Geometry()
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})

	t.Run("missing body", func(t *testing.T) {
		_, err := Envelope{Kind: "line"}.Geometry()
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})

	t.Run("invalid body", func(t *testing.T) {
		_, err := Wrap(Arc{Radius: -1, Width: 1, ChiRange: 10, ChiStep: 1}).Geometry()
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})
}

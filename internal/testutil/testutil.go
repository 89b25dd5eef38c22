// Package testutil provides shared test fixtures: synthetic frames, the
// canonical chi arc and HTTP helpers.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/scanprofile/internal/scan/frames"
	"github.com/banshee-data/scanprofile/internal/scan/geometry"
)

// Epoch is the timestamp of the first fixture frame.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// CanonicalArc is the 60-bin arc used throughout the scan tests: centre
// (500, 500), radius 100, width 10, sweeping 0..60 degrees in 1 degree bins.
func CanonicalArc() geometry.Arc {
	return geometry.Arc{
		Center:   geometry.Point{X: 500, Y: 500},
		Radius:   100,
		Width:    10,
		ChiRange: 60,
		Tilt:     0,
		ChiStep:  1,
	}
}

// UniformFrame returns a w×h frame with every pixel set to v.
func UniformFrame(w, h int, v float64) *frames.Frame {
	f := frames.Uniform(w, h, v)
	f.Timestamp = Epoch
	return f
}

// GradientFrame returns a w×h frame whose pixel (x, y) holds x + w*y, so
// every pixel is distinct.
func GradientFrame(w, h int) *frames.Frame {
	px := make([]float64, w*h)
	for i := range px {
		px[i] = float64(i)
	}
	return &frames.Frame{Pixels: px, Width: w, Height: h, BitDepth: 16, Timestamp: Epoch}
}

// RingFrame returns a w×h frame with a bright ring of radius r around
// (cx, cy) modulated by the polar angle, over a background of 10.
func RingFrame(w, h int, cx, cy, r float64) *frames.Frame {
	px := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			dy := cy - float64(y)
			d := math.Hypot(dx, dy) - r
			theta := math.Atan2(dy, dx)
			px[y*w+x] = 10 + 1000*math.Exp(-d*d/8)*(1.5+math.Sin(3*theta))
		}
	}
	return &frames.Frame{Pixels: px, Width: w, Height: h, BitDepth: 16, Timestamp: Epoch}
}

// FrameAt returns a copy of f stamped with Epoch+offset and sequence seq.
func FrameAt(f *frames.Frame, offset time.Duration, seq uint64) *frames.Frame {
	c := f.Clone()
	c.Timestamp = Epoch.Add(offset)
	c.Seq = seq
	return c
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request without a body.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewJSONRequest creates a test HTTP request carrying v encoded as JSON.
func NewJSONRequest(t *testing.T, method, path string, v interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	switch b := v.(type) {
	case string:
		body = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// DecodeJSON decodes the recorder body into v, failing the test on error.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

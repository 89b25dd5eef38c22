package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/scanprofile/internal/scan/geometry"
)

// Level distinguishes quick previews from full-resolution captures.
type Level int

const (
	LevelQuick Level = iota
	LevelFull
)

func (l Level) String() string {
	switch l {
	case LevelQuick:
		return "quick"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps "quick" and "full" to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "quick":
		return LevelQuick, nil
	case "full":
		return LevelFull, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// Result is one scan profile. It is never modified after the engine
// returns it.
type Result struct {
	ID    uuid.UUID
	Kind  geometry.Kind
	Level Level

	// XData and YData are parallel. XData holds bin positions (start angle
	// for arcs, distance along the line, 0 for a rect).
	XData []float64
	YData []float64

	// Counts is the number of pixels reduced into each bin.
	Counts []int

	Confidence float64
	Timestamp  time.Time
	FrameSeq   uint64

	// Geometry is the geometry as requested, in source-frame coordinates.
	Geometry geometry.Geometry

	Downsample int
	Normalized bool
	Empty      bool
}

// Mean returns the average of YData over bins that received pixels, or 0
// for an empty result.
func (r *Result) Mean() float64 {
	var sum float64
	var n int
	for i, y := range r.YData {
		if r.Counts[i] > 0 {
			sum += y
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Len returns the number of bins.
func (r *Result) Len() int { return len(r.XData) }

// XY returns bin i as a point, so a Result can be plotted directly.
func (r *Result) XY(i int) (x, y float64) { return r.XData[i], r.YData[i] }

type resultJSON struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Level      string            `json:"level"`
	XData      []float64         `json:"x"`
	YData      []float64         `json:"y"`
	Counts     []int             `json:"counts"`
	Confidence float64           `json:"confidence"`
	Timestamp  time.Time         `json:"timestamp"`
	FrameSeq   uint64            `json:"frame_seq"`
	Geometry   geometry.Envelope `json:"geometry"`
	Downsample int               `json:"downsample"`
	Normalized bool              `json:"normalized"`
	Empty      bool              `json:"empty"`
}

// MarshalJSON encodes the result with string kinds and a tagged geometry.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		ID:         r.ID.String(),
		Kind:       r.Kind.String(),
		Level:      r.Level.String(),
		XData:      r.XData,
		YData:      r.YData,
		Counts:     r.Counts,
		Confidence: r.Confidence,
		Timestamp:  r.Timestamp,
		FrameSeq:   r.FrameSeq,
		Geometry:   geometry.Wrap(r.Geometry),
		Downsample: r.Downsample,
		Normalized: r.Normalized,
		Empty:      r.Empty,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w resultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return fmt.Errorf("result id: %w", err)
	}
	kind, err := geometry.ParseKind(w.Kind)
	if err != nil {
		return err
	}
	level, err := ParseLevel(w.Level)
	if err != nil {
		return err
	}
	g, err := w.Geometry.Geometry()
	if err != nil {
		return err
	}
	*r = Result{
		ID:         id,
		Kind:       kind,
		Level:      level,
		XData:      w.XData,
		YData:      w.YData,
		Counts:     w.Counts,
		Confidence: w.Confidence,
		Timestamp:  w.Timestamp,
		FrameSeq:   w.FrameSeq,
		Geometry:   g,
		Downsample: w.Downsample,
		Normalized: w.Normalized,
		Empty:      w.Empty,
	}
	return nil
}

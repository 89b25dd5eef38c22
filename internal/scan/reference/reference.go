// Package reference is the exhaustive static-image analysis: for every bin
// it visits every pixel of the frame and tests membership directly, with no
// index precomputation and no downsampling.
//
// It is slow by construction (bins × pixels) and exists as the ground truth
// the full engine must reproduce.
package reference

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/scanprofile/internal/scan/engine"
	"github.com/banshee-data/scanprofile/internal/scan/frames"
	"github.com/banshee-data/scanprofile/internal/scan/geometry"
)

// Scan analyses frame over g at native resolution.
func Scan(frame *frames.Frame, g geometry.Geometry, normalize bool, reduction engine.Reduction) (*engine.Result, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil geometry", geometry.ErrInvalidGeometry)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, engine.ErrEmptyFrame
	}

	local := g
	if frame.Origin.X != 0 || frame.Origin.Y != 0 {
		local = g.Translate(-float64(frame.Origin.X), -float64(frame.Origin.Y))
	}
	member := membership(local)

	n := g.Bins()
	ys := make([]float64, n)
	counts := make([]int, n)
	total := 0
	for bin := 0; bin < n; bin++ {
		in := member(bin)
		var sum float64
		count := 0
		for y := 0; y < frame.Height; y++ {
			for x := 0; x < frame.Width; x++ {
				if in(x, y) {
					sum += frame.Pixels[y*frame.Width+x]
					count++
				}
			}
		}
		counts[bin] = count
		total += count
		if count == 0 {
			continue
		}
		if reduction == engine.ReductionSum {
			ys[bin] = sum
		} else {
			ys[bin] = sum / float64(count)
		}
	}

	res := &engine.Result{
		ID:         uuid.New(),
		Kind:       g.Kind(),
		Level:      engine.LevelFull,
		XData:      g.Positions(),
		YData:      ys,
		Counts:     counts,
		Confidence: 1,
		Timestamp:  frame.Timestamp,
		FrameSeq:   frame.Seq,
		Geometry:   g,
		Downsample: 1,
	}
	if total == 0 {
		res.Empty = true
		res.Confidence = 0
		return res, nil
	}

	if normalize {
		if frameMax := frame.SourceMax(); frameMax > 0 {
			for i := range ys {
				ys[i] /= frameMax
			}
		}
		res.Normalized = true
	}
	return res, nil
}

// membership returns, per bin, a predicate telling whether pixel (x, y)
// belongs to that bin.
func membership(g geometry.Geometry) func(bin int) func(x, y int) bool {
	switch v := g.(type) {
	case geometry.Arc:
		return func(bin int) func(x, y int) bool {
			return func(x, y int) bool {
				b, ok := v.Locate(float64(x), float64(y))
				return ok && b == bin
			}
		}
	case geometry.Line:
		return func(bin int) func(x, y int) bool {
			pixels := make(map[[2]int]bool)
			v.Sample(bin, func(x, y int) { pixels[[2]int{x, y}] = true })
			return func(x, y int) bool { return pixels[[2]int{x, y}] }
		}
	case geometry.Rect:
		return func(int) func(x, y int) bool { return v.Contains }
	}
	return func(int) func(x, y int) bool {
		return func(int, int) bool { return false }
	}
}

// Package engine turns a frame and a geometry into a scan profile.
//
// Quick and full scans are the same algorithm with different settings: a
// quick engine works on a stride-downsampled (and usually cropped) frame and
// reports a confidence below 1, a full engine works at native resolution
// with confidence 1. Both read their pixel indices from an owned
// indexcache.Cache.
package engine

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/scanprofile/internal/monitoring"
	"github.com/banshee-data/scanprofile/internal/scan/frames"
	"github.com/banshee-data/scanprofile/internal/scan/geometry"
	"github.com/banshee-data/scanprofile/internal/scan/indexcache"
)

var logs monitoring.Streams

// SetLogWriters configures the three logging streams for the engine
// package. Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	logs = monitoring.NewStreams("[engine] ", ops, diag, trace)
}

// ErrEmptyFrame is returned when Scan is given a nil or zero-sized frame.
var ErrEmptyFrame = errors.New("empty frame")

// Reduction selects how the pixels of a bin are combined.
type Reduction int

const (
	ReductionMean Reduction = iota
	ReductionSum
)

func (r Reduction) String() string {
	if r == ReductionSum {
		return "sum"
	}
	return "mean"
}

// ParseReduction maps "mean" (or "") and "sum" to a Reduction.
func ParseReduction(s string) (Reduction, error) {
	switch s {
	case "", "mean":
		return ReductionMean, nil
	case "sum":
		return ReductionSum, nil
	}
	return 0, fmt.Errorf("unknown reduction %q", s)
}

// ConfidencePolicy rates a quick scan given its downsample factor and the
// pixel areas of the uncropped source and of the scanned frame.
type ConfidencePolicy func(downsample, sourceArea, frameArea int) float64

// DefaultConfidence is 1 / (k * sqrt(sourceArea/frameArea)) clamped to
// (0, 1]. It decreases with the downsample factor and with how much of the
// source was cropped away.
func DefaultConfidence(downsample, sourceArea, frameArea int) float64 {
	if downsample < 1 {
		downsample = 1
	}
	ratio := 1.0
	if frameArea > 0 && sourceArea > frameArea {
		ratio = float64(sourceArea) / float64(frameArea)
	}
	c := 1 / (float64(downsample) * math.Sqrt(ratio))
	if c > 1 {
		return 1
	}
	return c
}

// Config parameterises an Engine.
type Config struct {
	Level      Level
	Downsample int
	Normalize  bool
	Reduction  Reduction

	// Confidence is consulted for quick scans only. Nil means
	// DefaultConfidence.
	Confidence ConfidencePolicy
}

// Engine scans frames against geometries. An Engine and its cache are owned
// by a single goroutine.
type Engine struct {
	cfg   Config
	cache *indexcache.Cache
}

// New validates cfg and returns an engine reading indices from cache.
func New(cache *indexcache.Cache, cfg Config) (*Engine, error) {
	if cache == nil {
		return nil, errors.New("engine requires an index cache")
	}
	if cfg.Downsample < 1 {
		return nil, fmt.Errorf("downsample must be >= 1, got %d", cfg.Downsample)
	}
	if cfg.Level == LevelFull {
		cfg.Downsample = 1
	}
	if cfg.Confidence == nil {
		cfg.Confidence = DefaultConfidence
	}
	return &Engine{cfg: cfg, cache: cache}, nil
}

// NewQuickEngine returns a quick engine with mean reduction.
func NewQuickEngine(cache *indexcache.Cache, downsample int, normalize bool) (*Engine, error) {
	return New(cache, Config{Level: LevelQuick, Downsample: downsample, Normalize: normalize})
}

// NewFullEngine returns a native-resolution engine with mean reduction.
func NewFullEngine(cache *indexcache.Cache, normalize bool) (*Engine, error) {
	return New(cache, Config{Level: LevelFull, Downsample: 1, Normalize: normalize})
}

// Config returns the engine settings.
func (e *Engine) Config() Config { return e.cfg }

// Cache returns the index cache the engine reads from.
func (e *Engine) Cache() *indexcache.Cache { return e.cache }

// Scan reduces frame over g. g is in source-frame coordinates; when the
// frame is a crop it is translated by the crop origin first. A geometry that
// touches no pixels yields an Empty result with zero YData and confidence 0.
func (e *Engine) Scan(frame *frames.Frame, g geometry.Geometry) (*Result, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil geometry", geometry.ErrInvalidGeometry)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, ErrEmptyFrame
	}
	start := time.Now()

	local := g
	if frame.Origin.X != 0 || frame.Origin.Y != 0 {
		local = g.Translate(-float64(frame.Origin.X), -float64(frame.Origin.Y))
	}

	k := e.cfg.Downsample
	set, err := e.cache.Get(local, frame.Width, frame.Height, k)
	if err != nil {
		return nil, err
	}
	buf := frame.Downsample(k)

	ys, counts := Reduce(buf.Pixels, set.Bins, e.cfg.Reduction)
	res := &Result{
		ID:         uuid.New(),
		Kind:       g.Kind(),
		Level:      e.cfg.Level,
		XData:      append([]float64(nil), set.Positions...),
		YData:      ys,
		Counts:     counts,
		Timestamp:  frame.Timestamp,
		FrameSeq:   frame.Seq,
		Geometry:   g,
		Downsample: k,
	}

	switch {
	case set.Empty():
		res.Empty = true
		res.Confidence = 0
	case e.cfg.Level == LevelFull:
		res.Confidence = 1
	default:
		res.Confidence = e.cfg.Confidence(k, frame.SourceArea(), frame.Area())
	}

	if e.cfg.Normalize && !res.Empty {
		Normalize(res.YData, frame.SourceMax())
		res.Normalized = true
	}

	if logs.TraceEnabled() {
		logs.Tracef("%s %s scan seq=%d bins=%d pixels=%d k=%d in %v",
			e.cfg.Level, res.Kind, frame.Seq, len(ys), set.Pixels, k, time.Since(start))
	}
	return res, nil
}

// Reduce combines pixels over each bin in index order. Empty bins reduce
// to 0.
func Reduce(pixels []float64, bins [][]int, r Reduction) (ys []float64, counts []int) {
	ys = make([]float64, len(bins))
	counts = make([]int, len(bins))
	for i, bin := range bins {
		if len(bin) == 0 {
			continue
		}
		var sum float64
		for _, idx := range bin {
			sum += pixels[idx]
		}
		counts[i] = len(bin)
		if r == ReductionSum {
			ys[i] = sum
		} else {
			ys[i] = sum / float64(len(bin))
		}
	}
	return ys, counts
}

// Normalize divides ys in place by frameMax. A non-positive maximum leaves
// ys untouched.
func Normalize(ys []float64, frameMax float64) {
	if frameMax <= 0 {
		return
	}
	for i := range ys {
		ys[i] /= frameMax
	}
}

package frames

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/scanprofile/internal/timeutil"
)

// ErrSourceClosed is returned by Next after Close.
var ErrSourceClosed = errors.New("frame source closed")

// Source delivers frames one at a time. Next blocks until a frame is
// available or ctx is done.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
}

// Synthetic patterns.
const (
	PatternRings   = "rings"
	PatternUniform = "uniform"
)

// SyntheticConfig describes a SyntheticSource.
type SyntheticConfig struct {
	Width   int
	Height  int
	FPS     float64
	Pattern string

	// Level is the pixel value of the uniform pattern and the background of
	// the ring pattern.
	Level float64

	// OscillationPeriod modulates the ring intensity with a sine of this many
	// frames, mimicking growth oscillations. Zero disables modulation.
	OscillationPeriod int
}

// SyntheticSource produces a diffraction-like ring pattern or a uniform
// field at a fixed rate, paced by a clock ticker.
type SyntheticSource struct {
	cfg    SyntheticConfig
	clock  timeutil.Clock
	ticker timeutil.Ticker
	base   []float64
	rings  []float64

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// NewSyntheticSource validates cfg and starts the pacing ticker.
func NewSyntheticSource(cfg SyntheticConfig, clock timeutil.Clock) (*SyntheticSource, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("synthetic source size must be positive, got %dx%d", cfg.Width, cfg.Height)
	}
	if math.IsNaN(cfg.FPS) || math.IsInf(cfg.FPS, 0) || cfg.FPS <= 0 {
		return nil, fmt.Errorf("synthetic source fps must be positive, got %v", cfg.FPS)
	}
	if cfg.Pattern == "" {
		cfg.Pattern = PatternRings
	}
	if cfg.Pattern != PatternRings && cfg.Pattern != PatternUniform {
		return nil, fmt.Errorf("unknown synthetic pattern %q", cfg.Pattern)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	s := &SyntheticSource{cfg: cfg, clock: clock}
	s.base, s.rings = renderPattern(cfg)
	s.ticker = clock.NewTicker(time.Duration(float64(time.Second) / cfg.FPS))
	return s, nil
}

// Next waits for the next tick and returns a fresh frame stamped with the
// tick time.
func (s *SyntheticSource) Next(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSourceClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ts := <-s.ticker.C():
		return s.render(ts), nil
	}
}

// Close stops the ticker. Subsequent Next calls return ErrSourceClosed.
func (s *SyntheticSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.ticker.Stop()
	}
}

func (s *SyntheticSource) render(ts time.Time) *Frame {
	s.mu.Lock()
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	gain := 1.0
	if p := s.cfg.OscillationPeriod; p > 0 {
		gain = 1 + 0.25*math.Sin(2*math.Pi*float64(seq)/float64(p))
	}

	px := make([]float64, len(s.base))
	for i := range px {
		px[i] = s.base[i] + gain*s.rings[i]
	}
	return &Frame{
		Pixels:    px,
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		BitDepth:  12,
		Timestamp: ts,
		Seq:       seq,
	}
}

// renderPattern returns the static background and the modulated ring layer.
func renderPattern(cfg SyntheticConfig) (base, rings []float64) {
	n := cfg.Width * cfg.Height
	base = make([]float64, n)
	rings = make([]float64, n)
	for i := range base {
		base[i] = cfg.Level
	}
	if cfg.Pattern == PatternUniform {
		return base, rings
	}

	cx := float64(cfg.Width-1) / 2
	cy := float64(cfg.Height-1) / 2
	rmax := math.Min(cx, cy)
	radii := []float64{0.2 * rmax, 0.45 * rmax, 0.7 * rmax}
	sigma := math.Max(1, 0.02*rmax)
	const peak = 2000.0

	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			dx := float64(x) - cx
			dy := cy - float64(y)
			r := math.Hypot(dx, dy)
			// Streaks brighten the rings along six directions.
			aniso := 0.75 + 0.25*math.Cos(6*math.Atan2(dy, dx))
			v := 0.0
			for _, r0 := range radii {
				d := (r - r0) / sigma
				v += peak * math.Exp(-0.5*d*d)
			}
			rings[y*cfg.Width+x] = v * aniso
		}
	}
	return base, rings
}

// Package indexcache precomputes, per geometry and image shape, the flat
// pixel indices that belong to each output bin.
//
// A Cache holds exactly one entry. Asking for the same key again returns the
// very same *IndexSet; any change of geometry, shape or downsample factor
// builds a new set and replaces the slot. Published sets are never mutated.
package indexcache

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/scanprofile/internal/scan/geometry"
)

// ErrInvalidShape is returned for non-positive image dimensions or a
// downsample factor below 1.
var ErrInvalidShape = errors.New("invalid image shape")

// Key identifies an IndexSet. Geometry is in full-resolution pixel
// coordinates of the frame being scanned.
type Key struct {
	Geometry   geometry.Geometry
	Width      int
	Height     int
	Downsample int
}

func (k Key) matches(o Key) bool {
	return k.Width == o.Width &&
		k.Height == o.Height &&
		k.Downsample == o.Downsample &&
		k.Geometry.Equal(o.Geometry)
}

// IndexSet maps each bin to flat indices into the downsampled buffer.
type IndexSet struct {
	Key Key

	// BufferWidth and BufferHeight are ceil(Width/k) and ceil(Height/k).
	BufferWidth  int
	BufferHeight int

	// Bins holds ascending indices per bin. Empty bins are kept.
	Bins [][]int

	// Positions holds the x value of each bin.
	Positions []float64

	// Pixels is the total number of indices over all bins.
	Pixels int
}

// Empty reports whether every bin is empty.
func (s *IndexSet) Empty() bool { return s.Pixels == 0 }

// Stats summarises cache activity.
type Stats struct {
	Hits          uint64
	Builds        uint64
	LastBuild     time.Duration
	LastReason    string
	LastBinCount  int
	LastPixelSize int
}

// Cache is a single-slot memo of the most recent IndexSet.
type Cache struct {
	name string

	mu    sync.Mutex
	entry *IndexSet
	stats Stats
}

// New returns an empty cache. name appears in log lines.
func New(name string) *Cache {
	return &Cache{name: name}
}

// Get returns the IndexSet for g on a width×height frame downsampled by k,
// building it when the slot holds a different key.
func (c *Cache) Get(g geometry.Geometry, width, height, k int) (*IndexSet, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil geometry", geometry.ErrInvalidGeometry)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || k < 1 {
		return nil, fmt.Errorf("%w: %dx%d downsample %d", ErrInvalidShape, width, height, k)
	}
	key := Key{Geometry: g, Width: width, Height: height, Downsample: k}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry != nil && c.entry.Key.matches(key) {
		c.stats.Hits++
		return c.entry, nil
	}

	reason := c.rebuildReason(key)
	start := time.Now()
	set := Build(key)
	elapsed := time.Since(start)

	c.entry = set
	c.stats.Builds++
	c.stats.LastBuild = elapsed
	c.stats.LastReason = reason
	c.stats.LastBinCount = len(set.Bins)
	c.stats.LastPixelSize = set.Pixels
	logs.Diagf("%s: rebuilt %s index (%s): %d bins, %d pixels on %dx%d in %v",
		c.name, g.Kind(), reason, len(set.Bins), set.Pixels, set.BufferWidth, set.BufferHeight, elapsed)
	return set, nil
}

// Peek returns the cached set without building, or nil.
func (c *Cache) Peek() *IndexSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry
}

// Reset empties the slot.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) rebuildReason(key Key) string {
	prev := c.entry
	switch {
	case prev == nil:
		return "initial"
	case prev.Key.Width != key.Width || prev.Key.Height != key.Height:
		return fmt.Sprintf("shape changed %dx%d -> %dx%d", prev.Key.Width, prev.Key.Height, key.Width, key.Height)
	case prev.Key.Downsample != key.Downsample:
		return fmt.Sprintf("downsample changed %d -> %d", prev.Key.Downsample, key.Downsample)
	default:
		return "geometry changed"
	}
}

// Build computes the IndexSet for key without touching any cache. The
// geometry must already be valid.
func Build(key Key) *IndexSet {
	k := key.Downsample
	bw := (key.Width + k - 1) / k
	bh := (key.Height + k - 1) / k

	g := key.Geometry
	if k > 1 {
		g = g.Scale(1 / float64(k))
	}

	set := &IndexSet{
		Key:          key,
		BufferWidth:  bw,
		BufferHeight: bh,
		Bins:         make([][]int, key.Geometry.Bins()),
		Positions:    key.Geometry.Positions(),
	}

	switch v := g.(type) {
	case geometry.Arc:
		buildArc(set, v)
	case geometry.Line:
		buildLine(set, v)
	case geometry.Rect:
		buildRect(set, v)
	}

	for _, b := range set.Bins {
		set.Pixels += len(b)
	}
	return set
}

// clipBounds converts geometry bounds to an inclusive integer pixel range
// inside the buffer. ok is false when nothing overlaps.
func clipBounds(b geometry.Bounds, w, h int) (x0, y0, x1, y1 int, ok bool) {
	x0 = max(0, int(math.Ceil(b.MinX)))
	y0 = max(0, int(math.Ceil(b.MinY)))
	x1 = min(w-1, int(math.Floor(b.MaxX)))
	y1 = min(h-1, int(math.Floor(b.MaxY)))
	return x0, y0, x1, y1, x0 <= x1 && y0 <= y1
}

func buildArc(set *IndexSet, a geometry.Arc) {
	w := set.BufferWidth
	x0, y0, x1, y1, ok := clipBounds(a.Bounds(), w, set.BufferHeight)
	if !ok {
		return
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if bin, ok := a.Locate(float64(x), float64(y)); ok {
				set.Bins[bin] = append(set.Bins[bin], y*w+x)
			}
		}
	}
}

func buildLine(set *IndexSet, l geometry.Line) {
	w, h := set.BufferWidth, set.BufferHeight
	for i := range set.Bins {
		var idx []int
		l.Sample(i, func(x, y int) {
			if x >= 0 && x < w && y >= 0 && y < h {
				idx = append(idx, y*w+x)
			}
		})
		sort.Ints(idx)
		set.Bins[i] = idx
	}
}

func buildRect(set *IndexSet, r geometry.Rect) {
	w, h := set.BufferWidth, set.BufferHeight
	x0, y0, x1, y1 := r.Span()
	x0, y0 = max(0, x0), max(0, y0)
	x1, y1 = min(w, x1), min(h, y1)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	idx := make([]int, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			idx = append(idx, y*w+x)
		}
	}
	set.Bins[0] = idx
}

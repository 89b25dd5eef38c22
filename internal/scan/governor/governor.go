// Package governor decides, per frame timestamp, whether a frame is analysed
// or dropped so that quick analysis runs at no more than a target rate.
package governor

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/scanprofile/internal/monitoring"
)

var logs monitoring.Streams

// SetLogWriters configures the three logging streams for the governor
// package. Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	logs = monitoring.NewStreams("[governor] ", ops, diag, trace)
}

// dropLogEvery controls how often the cumulative drop count is logged.
const dropLogEvery = 50

// Stats holds the admit/drop counters.
type Stats struct {
	Admitted uint64
	Dropped  uint64
}

// Governor admits a frame when at least one interval has passed since the
// last admitted frame. The decision depends only on the timestamps it is
// given, never on wall-clock time.
type Governor struct {
	mu        sync.Mutex
	targetFPS float64
	interval  time.Duration
	last      time.Time
	hasLast   bool
	stats     Stats
}

// New returns a governor limited to targetFPS. Zero disables limiting.
func New(targetFPS float64) (*Governor, error) {
	g := &Governor{}
	if err := g.Reconfigure(targetFPS); err != nil {
		return nil, err
	}
	return g, nil
}

// Admit reports whether the frame stamped ts should be analysed.
func (g *Governor) Admit(ts time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.hasLast || g.interval == 0 || ts.Sub(g.last) >= g.interval {
		g.last = ts
		g.hasLast = true
		g.stats.Admitted++
		return true
	}

	g.stats.Dropped++
	if g.stats.Dropped%dropLogEvery == 0 {
		logs.Diagf("Throttled %d frames (max %.1f fps)", g.stats.Dropped, g.targetFPS)
	}
	return false
}

// Reconfigure changes the target rate. The last admitted timestamp is kept,
// so the new interval applies from the next call.
func (g *Governor) Reconfigure(targetFPS float64) error {
	if math.IsNaN(targetFPS) || math.IsInf(targetFPS, 0) || targetFPS < 0 {
		return fmt.Errorf("target fps must be a finite non-negative number, got %v", targetFPS)
	}

	var interval time.Duration
	if targetFPS > 0 {
		interval = time.Duration(float64(time.Second) / targetFPS)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.targetFPS = targetFPS
	g.interval = interval
	logs.Diagf("target %.2f fps, interval %v", targetFPS, interval)
	return nil
}

// Interval returns the current minimum spacing between admitted frames.
func (g *Governor) Interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.interval
}

// TargetFPS returns the configured rate.
func (g *Governor) TargetFPS() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.targetFPS
}

// Stats returns a snapshot of the counters.
func (g *Governor) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

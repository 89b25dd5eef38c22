package frames

import (
	"sync"
	"time"
)

// RateMeter estimates the arrival rate of frames from their timestamps
// using an exponential moving average of the inter-frame interval.
type RateMeter struct {
	mu       sync.Mutex
	alpha    float64
	last     time.Time
	interval float64 // smoothed, seconds
	count    uint64
}

// NewRateMeter returns a meter with smoothing factor alpha in (0, 1].
// Higher is more responsive; values outside the range fall back to 0.1.
func NewRateMeter(alpha float64) *RateMeter {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.1
	}
	return &RateMeter{alpha: alpha}
}

// Observe records a frame arrival at ts. Timestamps that do not advance are
// counted but do not affect the estimate.
func (m *RateMeter) Observe(ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.count++
	if m.last.IsZero() {
		m.last = ts
		return
	}
	dt := ts.Sub(m.last).Seconds()
	if dt <= 0 {
		return
	}
	m.last = ts
	if m.interval == 0 {
		m.interval = dt
		return
	}
	// smoothed = prev + alpha * (new - prev)
	m.interval += m.alpha * (dt - m.interval)
}

// FPS returns the estimated rate, or 0 before two distinct timestamps have
// been observed.
func (m *RateMeter) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interval == 0 {
		return 0
	}
	return 1 / m.interval
}

// Count returns the number of observed frames.
func (m *RateMeter) Count() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

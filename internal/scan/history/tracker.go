// Package history tracks a scalar intensity per named profile over frames,
// for plotting intensity oscillations during growth.
package history

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultMaxHistory is the per-profile limit used when none is given.
const DefaultMaxHistory = 1000

// Sample is one measurement.
type Sample struct {
	Seq   uint64  `json:"seq"`
	Value float64 `json:"value"`
}

// Summary describes the samples of one profile.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Tracker keeps, per profile, the value recorded for each frame sequence.
// Recording the same sequence twice replaces the earlier value, so replaying
// a frame does not duplicate it. It is safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	max  int
	data map[string]map[uint64]float64
}

// NewTracker returns a tracker keeping at most maxHistory samples per
// profile. Values below 1 select DefaultMaxHistory.
func NewTracker(maxHistory int) *Tracker {
	if maxHistory < 1 {
		maxHistory = DefaultMaxHistory
	}
	return &Tracker{max: maxHistory, data: make(map[string]map[uint64]float64)}
}

// Add records value for seq, dropping the oldest sequences beyond the limit.
func (t *Tracker) Add(profile string, seq uint64, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.data[profile]
	if !ok {
		d = make(map[uint64]float64)
		t.data[profile] = d
	}
	d[seq] = value

	if len(d) > t.max {
		keys := sortedKeys(d)
		for _, k := range keys[:len(keys)-t.max] {
			delete(d, k)
		}
	}
}

// History returns the samples of profile ordered by sequence.
func (t *Tracker) History(profile string) []Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d := t.data[profile]
	out := make([]Sample, 0, len(d))
	for _, k := range sortedKeys(d) {
		out = append(out, Sample{Seq: k, Value: d[k]})
	}
	return out
}

// Latest returns the value with the highest sequence.
func (t *Tracker) Latest(profile string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d := t.data[profile]
	if len(d) == 0 {
		return 0, false
	}
	var best uint64
	first := true
	for k := range d {
		if first || k > best {
			best = k
			first = false
		}
	}
	return d[best], true
}

// Stats summarises the samples of profile. ok is false when there are none.
func (t *Tracker) Stats(profile string) (s Summary, ok bool) {
	samples := t.History(profile)
	if len(samples) == 0 {
		return Summary{}, false
	}
	vals := make([]float64, len(samples))
	for i, smp := range samples {
		vals[i] = smp.Value
	}
	s.Count = len(vals)
	s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	if len(vals) < 2 {
		s.StdDev = 0
	}
	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)
	return s, true
}

// Profiles returns the tracked profile names in order.
func (t *Tracker) Profiles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.data))
	for name := range t.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FrameCount returns the number of samples kept for profile.
func (t *Tracker) FrameCount(profile string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data[profile])
}

// Len returns the number of tracked profiles.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data)
}

// ClearProfile forgets one profile.
func (t *Tracker) ClearProfile(profile string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, profile)
}

// Clear forgets everything.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = make(map[string]map[uint64]float64)
}

func sortedKeys(d map[uint64]float64) []uint64 {
	keys := make([]uint64, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

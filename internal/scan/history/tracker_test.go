package history

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_AddAndHistory(t *testing.T) {
	tr := NewTracker(10)
	tr.Add("roi1", 1, 105)
	tr.Add("roi1", 0, 100)

	assert.Equal(t, []Sample{{Seq: 0, Value: 100}, {Seq: 1, Value: 105}}, tr.History("roi1"))
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 2, tr.FrameCount("roi1"))
	assert.Empty(t, tr.History("missing"))
}

func TestTracker_ReplayedFrameUpdates(t *testing.T) {
	tr := NewTracker(10)
	tr.Add("roi1", 3, 1)
	tr.Add("roi1", 3, 2)

	assert.Equal(t, 1, tr.FrameCount("roi1"))
	v, ok := tr.Latest("roi1")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestTracker_TrimsOldest(t *testing.T) {
	tr := NewTracker(3)
	for seq := uint64(0); seq < 6; seq++ {
		tr.Add("arc", seq, float64(seq))
	}

	got := tr.History("arc")
	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[0].Seq)
	assert.Equal(t, uint64(5), got[2].Seq)
}

func TestTracker_Latest(t *testing.T) {
	tr := NewTracker(0)
	_, ok := tr.Latest("arc")
	assert.False(t, ok)

	tr.Add("arc", 10, 1)
	tr.Add("arc", 2, 7)
	v, ok := tr.Latest("arc")
	require.True(t, ok)
	assert.Equal(t, 1.0, v, "latest is by sequence, not insertion order")
}

func TestTracker_Stats(t *testing.T) {
	tr := NewTracker(100)
	_, ok := tr.Stats("arc")
	assert.False(t, ok)

	tr.Add("arc", 0, 2)
	s, ok := tr.Stats("arc")
	require.True(t, ok)
	assert.Equal(t, Summary{Count: 1, Mean: 2, StdDev: 0, Min: 2, Max: 2}, s)

	for i, v := range []float64{4, 4, 4, 5, 5, 7, 9} {
		tr.Add("arc", uint64(i+1), v)
	}
	s, ok = tr.Stats("arc")
	require.True(t, ok)
	assert.Equal(t, 8, s.Count)
	assert.InDelta(t, 5.0, s.Mean, 1e-12)
	// Sample (n-1) standard deviation of {2,4,4,4,5,5,7,9}.
	assert.InDelta(t, math.Sqrt(32.0/7.0), s.StdDev, 1e-12)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
}

func TestTracker_Clear(t *testing.T) {
	tr := NewTracker(10)
	tr.Add("a", 0, 1)
	tr.Add("b", 0, 1)
	assert.Equal(t, []string{"a", "b"}, tr.Profiles())

	tr.ClearProfile("a")
	assert.Equal(t, []string{"b"}, tr.Profiles())
	assert.Equal(t, 0, tr.FrameCount("a"))

	tr.Clear()
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(50)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.Add("arc", uint64(w*100+i), float64(i))
				_ = tr.History("arc")
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 50, tr.FrameCount("arc"))
}

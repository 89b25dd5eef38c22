package frames

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scanprofile/internal/timeutil"
)

func sequentialFrame(t *testing.T, w, h int) *Frame {
	t.Helper()
	px := make([]float64, w*h)
	for i := range px {
		px[i] = float64(i)
	}
	f, err := New(w, h, 16, px)
	require.NoError(t, err)
	return f
}

func TestNew_Validates(t *testing.T) {
	_, err := New(0, 3, 8, nil)
	assert.Error(t, err)

	_, err = New(2, 2, 8, []float64{1, 2, 3})
	assert.Error(t, err)

	f, err := New(2, 2, 8, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 3.0, f.At(0, 1))
	assert.Equal(t, 4, f.Area())
	assert.Equal(t, 4, f.SourceArea())
}

func TestFrame_Clone(t *testing.T) {
	f := sequentialFrame(t, 3, 2)
	c := f.Clone()
	c.Pixels[0] = 99

	assert.Equal(t, 0.0, f.Pixels[0])
	assert.Equal(t, f.Width, c.Width)
}

func TestFrame_Crop(t *testing.T) {
	f := sequentialFrame(t, 4, 3)

	t.Run("interior", func(t *testing.T) {
		c, ok := f.Crop(image.Rect(1, 1, 3, 3))
		require.True(t, ok)
		assert.Equal(t, []float64{5, 6, 9, 10}, c.Pixels)
		assert.Equal(t, image.Pt(1, 1), c.Origin)
		assert.Equal(t, 4, c.SourceWidth)
		assert.Equal(t, 3, c.SourceHeight)
		assert.Equal(t, 12, c.SourceArea())
	})

	t.Run("nested crops accumulate origin", func(t *testing.T) {
		c, ok := f.Crop(image.Rect(1, 0, 4, 3))
		require.True(t, ok)
		cc, ok := c.Crop(image.Rect(1, 1, 3, 2))
		require.True(t, ok)
		assert.Equal(t, image.Pt(2, 1), cc.Origin)
		assert.Equal(t, []float64{6, 7}, cc.Pixels)
		assert.Equal(t, 12, cc.SourceArea())
	})

	t.Run("clipped to frame", func(t *testing.T) {
		c, ok := f.Crop(image.Rect(-5, -5, 2, 1))
		require.True(t, ok)
		assert.Equal(t, []float64{0, 1}, c.Pixels)
		assert.Equal(t, image.Pt(0, 0), c.Origin)
	})

	t.Run("whole frame is returned as is", func(t *testing.T) {
		c, ok := f.Crop(image.Rect(0, 0, 10, 10))
		require.True(t, ok)
		assert.Same(t, f, c)
	})

	t.Run("disjoint", func(t *testing.T) {
		_, ok := f.Crop(image.Rect(10, 10, 20, 20))
		assert.False(t, ok)
	})
}

func TestFrame_Downsample(t *testing.T) {
	f := sequentialFrame(t, 5, 3)

	assert.Same(t, f, f.Downsample(1))

	d := f.Downsample(2)
	assert.Equal(t, 3, d.Width)
	assert.Equal(t, 2, d.Height)
	assert.Equal(t, []float64{0, 2, 4, 10, 12, 14}, d.Pixels)
	assert.Equal(t, 15, f.Area(), "source frame untouched")
}

func TestFrame_SourceMax(t *testing.T) {
	f := sequentialFrame(t, 5, 3)
	assert.Equal(t, 14.0, f.SourceMax())

	c, ok := f.Crop(image.Rect(0, 0, 2, 2))
	require.True(t, ok)
	assert.Equal(t, 6.0, c.Max())
	assert.Equal(t, 14.0, c.SourceMax(), "crop keeps the source maximum")

	cc, ok := c.Crop(image.Rect(0, 0, 1, 1))
	require.True(t, ok)
	assert.Equal(t, 14.0, cc.SourceMax(), "nested crop keeps the outermost maximum")

	d := f.Downsample(2)
	assert.Equal(t, 14.0, d.Max())
	odd := f.Downsample(3)
	assert.Equal(t, 8.0, odd.Max())
	assert.Equal(t, 14.0, odd.SourceMax(), "skipped pixels still count")
}

func TestMeanIntensity(t *testing.T) {
	f, err := New(2, 2, 8, []float64{0, 2, 4, 6})
	require.NoError(t, err)

	assert.Equal(t, 3.0, MeanIntensity(f, false))
	assert.Equal(t, 0.5, MeanIntensity(f, true))

	zero := Uniform(3, 3, 0)
	assert.Equal(t, 0.0, MeanIntensity(zero, true))
	assert.Equal(t, 0.0, MeanIntensity(nil, false))
}

func TestFromImage(t *testing.T) {
	t.Run("gray", func(t *testing.T) {
		img := image.NewGray(image.Rect(0, 0, 2, 2))
		img.SetGray(1, 0, color.Gray{Y: 200})
		f := FromImage(img)
		assert.Equal(t, 8, f.BitDepth)
		assert.Equal(t, []float64{0, 200, 0, 0}, f.Pixels)
	})

	t.Run("gray16", func(t *testing.T) {
		img := image.NewGray16(image.Rect(0, 0, 2, 1))
		img.SetGray16(1, 0, color.Gray16{Y: 0x1234})
		f := FromImage(img)
		assert.Equal(t, 16, f.BitDepth)
		assert.Equal(t, []float64{0, 0x1234}, f.Pixels)
	})

	t.Run("colour uses luminosity", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 1, 1))
		img.Set(0, 0, color.RGBA{R: 255, A: 255})
		f := FromImage(img)
		assert.InDelta(t, 0.299*65535, f.Pixels[0], 1e-6)
	})

	t.Run("offset bounds", func(t *testing.T) {
		img := image.NewGray(image.Rect(10, 10, 12, 11))
		img.SetGray(11, 10, color.Gray{Y: 7})
		f := FromImage(img)
		assert.Equal(t, 2, f.Width)
		assert.Equal(t, []float64{0, 7}, f.Pixels)
	})
}

func TestSyntheticSource(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("uniform frames on each tick", func(t *testing.T) {
		clock := timeutil.NewMockClock(start)
		src, err := NewSyntheticSource(SyntheticConfig{Width: 4, Height: 4, FPS: 10, Pattern: PatternUniform, Level: 42}, clock)
		require.NoError(t, err)
		defer src.Close()

		clock.Advance(100 * time.Millisecond)
		f, err := src.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(0), f.Seq)
		assert.True(t, f.Timestamp.Equal(start.Add(100*time.Millisecond)))
		for _, v := range f.Pixels {
			assert.Equal(t, 42.0, v)
		}

		clock.Advance(100 * time.Millisecond)
		f, err = src.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(1), f.Seq)
	})

	t.Run("rings are brighter than the centre", func(t *testing.T) {
		clock := timeutil.NewMockClock(start)
		src, err := NewSyntheticSource(SyntheticConfig{Width: 101, Height: 101, FPS: 30, Level: 10}, clock)
		require.NoError(t, err)
		defer src.Close()

		clock.Advance(time.Second)
		f, err := src.Next(context.Background())
		require.NoError(t, err)
		assert.Greater(t, f.At(60, 50), f.At(50, 50)+1000)
	})

	t.Run("context cancellation", func(t *testing.T) {
		clock := timeutil.NewMockClock(start)
		src, err := NewSyntheticSource(SyntheticConfig{Width: 2, Height: 2, FPS: 1}, clock)
		require.NoError(t, err)
		defer src.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = src.Next(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed", func(t *testing.T) {
		src, err := NewSyntheticSource(SyntheticConfig{Width: 2, Height: 2, FPS: 1}, timeutil.NewMockClock(start))
		require.NoError(t, err)
		src.Close()
		_, err = src.Next(context.Background())
		assert.ErrorIs(t, err, ErrSourceClosed)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewSyntheticSource(SyntheticConfig{Width: 2, Height: 2, FPS: 0}, nil)
		assert.Error(t, err)
		_, err = NewSyntheticSource(SyntheticConfig{Width: 2, Height: 2, FPS: 1, Pattern: "stripes"}, nil)
		assert.Error(t, err)
	})
}

func TestRateMeter(t *testing.T) {
	m := NewRateMeter(0.5)
	start := time.Unix(0, 0)

	assert.Equal(t, 0.0, m.FPS())
	m.Observe(start)
	assert.Equal(t, 0.0, m.FPS())

	m.Observe(start.Add(100 * time.Millisecond))
	m.Observe(start.Add(200 * time.Millisecond))
	assert.InDelta(t, 10.0, m.FPS(), 1e-9)

	m.Observe(start.Add(200 * time.Millisecond))
	assert.Equal(t, uint64(4), m.Count())
	assert.InDelta(t, 10.0, m.FPS(), 1e-9)
}

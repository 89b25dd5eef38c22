package monitor

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scanprofile/internal/fsutil"
	"github.com/banshee-data/scanprofile/internal/scan/engine"
	"github.com/banshee-data/scanprofile/internal/scan/geometry"
	"github.com/banshee-data/scanprofile/internal/scan/indexcache"
	"github.com/banshee-data/scanprofile/internal/testutil"
)

func fullResult(t *testing.T, g geometry.Geometry) *engine.Result {
	t.Helper()
	e, err := engine.NewFullEngine(indexcache.New("plot"), false)
	require.NoError(t, err)
	res, err := e.Scan(testutil.FrameAt(testutil.RingFrame(400, 400, 200, 200, 100), 0, 12), g)
	require.NoError(t, err)
	return res
}

func TestProfilePlotter_WritePNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "plots")
	pp := NewProfilePlotter(dir)
	assert.Equal(t, dir, pp.OutputDir())

	res := fullResult(t, testArc())
	path, err := pp.WritePNG(res)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "full_arc_000012_"), name)
	assert.True(t, strings.HasSuffix(name, res.ID.String()[:8]+".png"), name)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestProfilePlotter_WriteTo(t *testing.T) {
	pp := NewProfilePlotter("")

	t.Run("line profile", func(t *testing.T) {
		line := geometry.Line{Start: geometry.Point{X: 50, Y: 200}, End: geometry.Point{X: 350, Y: 200}, Width: 3, Step: 1}
		var buf bytes.Buffer
		require.NoError(t, pp.WriteTo(&buf, fullResult(t, line)))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
	})

	t.Run("nil result", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, pp.WriteTo(&buf, nil))
		assert.Zero(t, buf.Len())
	})

	t.Run("zero bins", func(t *testing.T) {
		dir := t.TempDir()
		_, err := NewProfilePlotter(dir).WritePNG(&engine.Result{})
		assert.Error(t, err)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "failed plot removed")
	})
}

func TestProfilePlotter_MemoryFS(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	pp := NewProfilePlotterFS("plots", mem)
	res := fullResult(t, testArc())

	path, err := pp.WritePNG(res)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, mem.Files())
	data, err := mem.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	mem.FailCreate = errors.New("disk full")
	_, err = pp.WritePNG(res)
	assert.ErrorIs(t, err, mem.FailCreate)
}

func TestXLabel(t *testing.T) {
	assert.Equal(t, "Angle (deg)", xLabel(geometry.KindArc))
	assert.Equal(t, "Distance (px)", xLabel(geometry.KindLine))
	assert.Equal(t, "Position", xLabel(geometry.KindRect))
}

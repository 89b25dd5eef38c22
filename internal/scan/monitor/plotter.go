package monitor

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/scanprofile/internal/fsutil"
	"github.com/banshee-data/scanprofile/internal/scan/engine"
	"github.com/banshee-data/scanprofile/internal/scan/geometry"
)

var (
	plotWidth  = 10 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// ProfilePlotter renders scan profiles as PNG line plots.
type ProfilePlotter struct {
	outputDir string
	fs        fsutil.FileSystem
}

// NewProfilePlotter writes files under outputDir, creating it on first use.
func NewProfilePlotter(outputDir string) *ProfilePlotter {
	return NewProfilePlotterFS(outputDir, fsutil.OSFileSystem{})
}

// NewProfilePlotterFS is NewProfilePlotter on an explicit filesystem.
func NewProfilePlotterFS(outputDir string, fsys fsutil.FileSystem) *ProfilePlotter {
	return &ProfilePlotter{outputDir: outputDir, fs: fsys}
}

// OutputDir returns the directory WritePNG writes to.
func (pp *ProfilePlotter) OutputDir() string { return pp.outputDir }

// WriteTo renders res as a PNG to w.
func (pp *ProfilePlotter) WriteTo(w io.Writer, res *engine.Result) error {
	p, err := profilePlot(res)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// WritePNG renders res to a file named after its level, kind, frame and ID,
// and returns the path.
func (pp *ProfilePlotter) WritePNG(res *engine.Result) (string, error) {
	if res == nil {
		return "", errors.New("nothing to plot")
	}
	if err := pp.fs.MkdirAll(pp.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%06d_%s.png", res.Level, res.Kind, res.FrameSeq, res.ID.String()[:8])
	path := filepath.Join(pp.outputDir, name)

	f, err := pp.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("create plot file: %w", err)
	}
	if err := pp.WriteTo(f, res); err != nil {
		f.Close()
		pp.fs.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close plot file: %w", err)
	}
	return path, nil
}

func profilePlot(res *engine.Result) (*plot.Plot, error) {
	if res == nil || res.Len() == 0 {
		return nil, errors.New("nothing to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s %s profile, frame %d (confidence %.2f)", res.Level, res.Kind, res.FrameSeq, res.Confidence)
	p.X.Label.Text = xLabel(res.Kind)
	p.Y.Label.Text = "Intensity"
	if res.Normalized {
		p.Y.Label.Text = "Intensity (normalised)"
	}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(res)
	if err != nil {
		return nil, fmt.Errorf("profile line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1.5)
	p.Add(line)

	if res.Len() <= 120 {
		pts, err := plotter.NewScatter(res)
		if err != nil {
			return nil, fmt.Errorf("profile points: %w", err)
		}
		pts.Color = line.Color
		pts.Radius = vg.Points(1.5)
		p.Add(pts)
	}
	return p, nil
}

func xLabel(k geometry.Kind) string {
	switch k {
	case geometry.KindArc:
		return "Angle (deg)"
	case geometry.KindLine:
		return "Distance (px)"
	default:
		return "Position"
	}
}

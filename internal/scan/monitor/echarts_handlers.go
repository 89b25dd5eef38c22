package monitor

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"

	"github.com/banshee-data/scanprofile/internal/httputil"
	"github.com/banshee-data/scanprofile/internal/scan/engine"
	"github.com/banshee-data/scanprofile/internal/scan/pipeline"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleChart renders a scan profile as an HTML line chart.
// Query params:
//   - id (optional; a stored result, default the latest published result)
func (ws *WebServer) handleChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}

	var res *engine.Result
	if idStr := r.URL.Query().Get("id"); idStr != "" {
		rec, status, err := ws.lookupRecord(idStr)
		if err != nil {
			httputil.WriteJSONError(w, status, err.Error())
			return
		}
		res = rec.Result
	} else {
		res = ws.pipeline.Latest()
	}
	if res == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no result available")
		return
	}

	xs := make([]string, res.Len())
	ys := make([]opts.LineData, res.Len())
	for i := range xs {
		x, y := res.XY(i)
		xs[i] = strconv.FormatFloat(x, 'f', -1, 64)
		if res.Counts[i] == 0 {
			ys[i] = opts.LineData{Value: "-"}
			continue
		}
		ys[i] = opts.LineData{Value: y}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Scan Profile", Width: "1000px", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s %s profile", res.Level, res.Kind),
			Subtitle: fmt.Sprintf("frame=%d bins=%d confidence=%.2f downsample=%d", res.FrameSeq, res.Len(), res.Confidence, res.Downsample),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: xLabel(res.Kind), NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Intensity"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(xs).AddSeries("intensity", ys, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(res.Len() <= 120)}))

	ws.renderChart(w, line)
}

// handleHistoryChart renders the intensity history of one profile.
// Query params:
//   - profile (optional; default the profile of the latest result)
func (ws *WebServer) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}

	profile := r.URL.Query().Get("profile")
	if profile == "" {
		if res := ws.pipeline.Latest(); res != nil {
			profile = pipeline.HistoryProfile(res)
		}
	}
	samples := ws.pipeline.History().History(profile)
	if len(samples) == 0 {
		httputil.WriteJSONError(w, http.StatusNotFound, "no history for profile")
		return
	}

	xs := make([]string, len(samples))
	ys := make([]opts.LineData, len(samples))
	for i, s := range samples {
		xs[i] = strconv.FormatUint(s.Seq, 10)
		ys[i] = opts.LineData{Value: s.Value}
	}

	subtitle := fmt.Sprintf("samples=%d", len(samples))
	if sum, ok := ws.pipeline.History().Stats(profile); ok {
		subtitle = fmt.Sprintf("samples=%d mean=%.3f stddev=%.3f", sum.Count, sum.Mean, sum.StdDev)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Intensity History", Width: "1000px", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Intensity history " + profile, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Mean intensity", Min: "dataMin"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(xs).AddSeries(profile, ys, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	ws.renderChart(w, line)
}

type renderer interface {
	Render(w io.Writer) error
}

func (ws *WebServer) renderChart(w http.ResponseWriter, c renderer) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func parseResultID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid result id %q", s)
	}
	return id, nil
}

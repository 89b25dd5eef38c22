// Package monitor serves the HTTP interface for live scanning: geometry and
// ROI control, captures, stored results, charts and pipeline statistics.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/scanprofile/internal/httputil"
	"github.com/banshee-data/scanprofile/internal/monitoring"
	"github.com/banshee-data/scanprofile/internal/scan/geometry"
	"github.com/banshee-data/scanprofile/internal/scan/history"
	"github.com/banshee-data/scanprofile/internal/scan/pipeline"
	"github.com/banshee-data/scanprofile/internal/scan/storage/sqlite"
	"github.com/banshee-data/scanprofile/internal/version"
)

var logs monitoring.Streams

// SetLogWriters configures the three logging streams for the monitor
// package. Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	logs = monitoring.NewStreams("[monitor] ", ops, diag, trace)
}

// WebServer handles the HTTP interface of the scan pipeline.
type WebServer struct {
	address        string
	pipeline       *pipeline.Pipeline
	store          *sqlite.ResultStore
	plotter        *ProfilePlotter
	captureTimeout time.Duration
	server         *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address  string
	Pipeline *pipeline.Pipeline

	// Store persists captures. Nil disables the results endpoints.
	Store *sqlite.ResultStore

	// Plotter writes a PNG per capture. Nil disables plot files.
	Plotter *ProfilePlotter

	// CaptureTimeout bounds a capture request. Defaults to 10s.
	CaptureTimeout time.Duration
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:        config.Address,
		pipeline:       config.Pipeline,
		store:          config.Store,
		plotter:        config.Plotter,
		captureTimeout: config.CaptureTimeout,
	}
	if ws.captureTimeout <= 0 {
		ws.captureTimeout = 10 * time.Second
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler returns the routed handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Start serves until ctx is cancelled, then shuts down gracefully. A listen
// failure is returned immediately.
func (ws *WebServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ws.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", ws.address, err)
	}
	return ws.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (ws *WebServer) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		logs.Opsf("serving HTTP on %s", ln.Addr())
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logs.Diagf("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		logs.Opsf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			logs.Opsf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

// Close stops the server immediately.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/scan/latest", ws.handleLatest)
	mux.HandleFunc("/api/scan/latest/plot.png", ws.handleLatestPlot)
	mux.HandleFunc("/api/scan/geometry", ws.handleGeometry)
	mux.HandleFunc("/api/scan/roi", ws.handleROI)
	mux.HandleFunc("/api/scan/fps", ws.handleFPS)
	mux.HandleFunc("/api/scan/capture", ws.handleCapture)
	mux.HandleFunc("/api/scan/results", ws.handleResults)
	mux.HandleFunc("/api/scan/results/{id}", ws.handleResult)
	mux.HandleFunc("/api/scan/chart", ws.handleChart)
	mux.HandleFunc("/api/scan/history", ws.handleHistory)
	mux.HandleFunc("/api/scan/history/chart", ws.handleHistoryChart)
	mux.HandleFunc("/api/scan/stats", ws.handleStats)

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"state":   ws.pipeline.State().String(),
		"version": version.Version,
	})
}

func (ws *WebServer) handleLatest(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	res := ws.pipeline.Latest()
	if res == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no result yet")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (ws *WebServer) handleLatestPlot(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	res := ws.pipeline.Latest()
	if res == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no result yet")
		return
	}
	pp := ws.plotter
	if pp == nil {
		pp = NewProfilePlotter("")
	}
	w.Header().Set("Content-Type", "image/png")
	if err := pp.WriteTo(w, res); err != nil {
		logs.Opsf("render plot: %v", err)
	}
}

type geometryResponse struct {
	Version  uint64             `json:"version"`
	Geometry *geometry.Envelope `json:"geometry"`
	Bins     int                `json:"bins"`
}

func (ws *WebServer) currentGeometry() geometryResponse {
	g, v := ws.pipeline.Geometry()
	resp := geometryResponse{Version: v}
	if g != nil {
		env := geometry.Wrap(g)
		resp.Geometry = &env
		resp.Bins = g.Bins()
	}
	return resp
}

// handleGeometry reads (GET), replaces (PUT) or clears (DELETE) the scan
// geometry. PUT takes a geometry envelope.
func (ws *WebServer) handleGeometry(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSON(w, http.StatusOK, ws.currentGeometry())

	case http.MethodPut, http.MethodPost:
		var env geometry.Envelope
		if err := httputil.DecodeJSON(r, &env); err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		g, err := env.Geometry()
		if err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := ws.pipeline.SetGeometry(g); err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ws.currentGeometry())

	case http.MethodDelete:
		ws.pipeline.ClearGeometry()
		httputil.WriteJSON(w, http.StatusOK, ws.currentGeometry())

	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete)
	}
}

type roiRequest struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

func roiFromRect(r image.Rectangle) roiRequest {
	return roiRequest{X0: r.Min.X, Y0: r.Min.Y, X1: r.Max.X, Y1: r.Max.Y}
}

// handleROI reads (GET) or sets (PUT) the quick-scan crop. An empty
// rectangle disables cropping.
func (ws *WebServer) handleROI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSON(w, http.StatusOK, roiFromRect(ws.pipeline.ROI()))

	case http.MethodPut, http.MethodPost:
		var req roiRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		ws.pipeline.SetROI(image.Rect(req.X0, req.Y0, req.X1, req.Y1))
		httputil.WriteJSON(w, http.StatusOK, roiFromRect(ws.pipeline.ROI()))

	case http.MethodDelete:
		ws.pipeline.SetROI(image.Rectangle{})
		httputil.WriteJSON(w, http.StatusOK, roiFromRect(ws.pipeline.ROI()))

	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete)
	}
}

// handleFPS changes the quick-analysis rate cap.
func (ws *WebServer) handleFPS(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPut, http.MethodPost) {
		return
	}
	var req struct {
		TargetFPS float64 `json:"target_fps"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ws.pipeline.SetTargetFPS(req.TargetFPS); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

// handleCapture runs a full-resolution scan of the latest frame, writes its
// plot and persists it.
func (ws *WebServer) handleCapture(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPost) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ws.captureTimeout)
	defer cancel()
	res, err := ws.pipeline.Capture(ctx)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrNoGeometry), errors.Is(err, pipeline.ErrNoFrame):
		httputil.WriteJSONError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, pipeline.ErrNotRunning):
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		httputil.WriteJSONError(w, http.StatusGatewayTimeout, "capture timed out")
		return
	default:
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("capture failed: %v", err))
		return
	}

	rec := &sqlite.Record{Result: res, Mean: res.Mean()}
	if ws.plotter != nil && !res.Empty {
		path, err := ws.plotter.WritePNG(res)
		if err != nil {
			logs.Opsf("write plot for %s: %v", res.ID, err)
		} else {
			rec.PlotPath = path
		}
	}
	if ws.store != nil {
		if err := ws.store.Insert(rec); err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store capture: %v", err))
			return
		}
	}
	logs.Diagf("capture %s stored (plot %q)", rec.Result.ID, rec.PlotPath)
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

// handleResults lists stored captures, newest first.
// Query params:
//   - kind, level (optional filters)
//   - limit (optional; default 50, max 500)
func (ws *WebServer) handleResults(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	if ws.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "result storage disabled")
		return
	}

	q := r.URL.Query()
	filter := sqlite.ListFilter{Kind: q.Get("kind"), Level: q.Get("level")}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 || limit > 500 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		filter.Limit = limit
	}

	recs, err := ws.store.ListRecent(filter)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*sqlite.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, recs)
}

// handleResult returns (GET) or deletes (DELETE) one stored capture.
func (ws *WebServer) handleResult(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rec, status, err := ws.lookupRecord(r.PathValue("id"))
		if err != nil {
			httputil.WriteJSONError(w, status, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rec)

	case http.MethodDelete:
		if ws.store == nil {
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "result storage disabled")
			return
		}
		id, err := parseResultID(r.PathValue("id"))
		if err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := ws.store.Delete(id); err != nil {
			if errors.Is(err, sqlite.ErrNotFound) {
				httputil.WriteJSONError(w, http.StatusNotFound, err.Error())
				return
			}
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

// lookupRecord fetches a stored result and maps failures to a status code.
func (ws *WebServer) lookupRecord(idStr string) (*sqlite.Record, int, error) {
	if ws.store == nil {
		return nil, http.StatusServiceUnavailable, errors.New("result storage disabled")
	}
	id, err := parseResultID(idStr)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	rec, err := ws.store.Get(id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, http.StatusNotFound, err
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return rec, http.StatusOK, nil
}

type historyResponse struct {
	Profile string           `json:"profile"`
	Summary history.Summary  `json:"summary"`
	Samples []history.Sample `json:"samples,omitempty"`
}

// handleHistory returns intensity history.
// Query params:
//   - profile (optional; without it every profile is summarised)
//
// DELETE clears the named profile, or everything without one.
func (ws *WebServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	tracker := ws.pipeline.History()
	profile := r.URL.Query().Get("profile")

	switch r.Method {
	case http.MethodGet:
		if profile == "" {
			out := []historyResponse{}
			for _, p := range tracker.Profiles() {
				sum, _ := tracker.Stats(p)
				out = append(out, historyResponse{Profile: p, Summary: sum})
			}
			httputil.WriteJSON(w, http.StatusOK, out)
			return
		}
		sum, ok := tracker.Stats(profile)
		if !ok {
			httputil.WriteJSONError(w, http.StatusNotFound, "no history for profile")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, historyResponse{Profile: profile, Summary: sum, Samples: tracker.History(profile)})

	case http.MethodDelete:
		if profile == "" {
			tracker.Clear()
		} else {
			tracker.ClearProfile(profile)
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

type statsResponse struct {
	pipeline.Stats
	StoredResults *int `json:"stored_results,omitempty"`
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	resp := statsResponse{Stats: ws.pipeline.Stats()}
	if ws.store != nil {
		if n, err := ws.store.Count(); err == nil {
			resp.StoredResults = &n
		} else {
			logs.Opsf("count stored results: %v", err)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

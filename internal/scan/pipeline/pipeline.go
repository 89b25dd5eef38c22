// Package pipeline orchestrates live scanning: frames are submitted from a
// source goroutine, an analysis worker throttles and quick-scans them
// against the current geometry, and captures run a full-resolution scan on
// the most recent raw frame.
//
// Results are delivered through a latest-wins slot. Every computation is
// tagged with the geometry version it started under, and results whose
// version is no longer current are dropped rather than published.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/scanprofile/internal/monitoring"
	"github.com/banshee-data/scanprofile/internal/scan/engine"
	"github.com/banshee-data/scanprofile/internal/scan/frames"
	"github.com/banshee-data/scanprofile/internal/scan/geometry"
	"github.com/banshee-data/scanprofile/internal/scan/governor"
	"github.com/banshee-data/scanprofile/internal/scan/history"
	"github.com/banshee-data/scanprofile/internal/scan/indexcache"
)

var logs monitoring.Streams

// SetLogWriters configures the three logging streams for the pipeline
// package. Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	logs = monitoring.NewStreams("[pipeline] ", ops, diag, trace)
}

var (
	ErrNotRunning     = errors.New("pipeline not running")
	ErrAlreadyRunning = errors.New("pipeline already running")
	ErrNoGeometry     = errors.New("no geometry set")
	ErrNoFrame        = errors.New("no frame received")
)

// Config configures a Pipeline.
type Config struct {
	// TargetFPS caps the quick-analysis rate. Zero analyses every frame.
	TargetFPS  float64
	Downsample int
	Normalize  bool
	Reduction  engine.Reduction

	// Confidence overrides the quick-scan confidence policy.
	Confidence engine.ConfidencePolicy

	// HistoryMax bounds the per-profile intensity history.
	HistoryMax int
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	State           string  `json:"state"`
	GeometryVersion uint64  `json:"geometry_version"`
	SourceFPS       float64 `json:"source_fps"`

	FramesSubmitted    uint64 `json:"frames_submitted"`
	InboxOverwritten   uint64 `json:"inbox_overwritten"`
	PreviewDiscarded   uint64 `json:"preview_discarded"`
	Admitted           uint64 `json:"admitted"`
	Throttled          uint64 `json:"throttled"`
	QuickScans         uint64 `json:"quick_scans"`
	ScanErrors         uint64 `json:"scan_errors"`
	StaleDiscarded     uint64 `json:"stale_discarded"`
	Captures           uint64 `json:"captures"`
	ResultsOverwritten uint64 `json:"results_overwritten"`

	QuickCache indexcache.Stats `json:"quick_cache"`
	FullCache  indexcache.Stats `json:"full_cache"`
}

type captureReply struct {
	res *engine.Result
	err error
}

type captureRequest struct {
	reply chan captureReply
}

// Pipeline is the live scan orchestrator.
type Pipeline struct {
	governor *governor.Governor
	quick    *engine.Engine
	full     *engine.Engine
	history  *history.Tracker
	rate     *frames.RateMeter

	mu         sync.Mutex
	state      State
	geom       geometry.Geometry
	version    uint64
	roi        image.Rectangle
	latestRaw  *frames.Frame
	lastResult *engine.Result
	cancel     context.CancelFunc
	done       chan struct{}
	inbox      *Slot[*frames.Frame]
	results    *Slot[*engine.Result]
	captures   chan captureRequest

	framesSubmitted    atomic.Uint64
	inboxOverwritten   atomic.Uint64
	previewDiscarded   atomic.Uint64
	quickScans         atomic.Uint64
	scanErrors         atomic.Uint64
	staleDiscarded     atomic.Uint64
	capturesDone       atomic.Uint64
	resultsOverwritten atomic.Uint64
}

// New builds an idle pipeline. The quick and full engines each own their
// own index cache, so a capture never evicts the quick entry.
func New(cfg Config) (*Pipeline, error) {
	gov, err := governor.New(cfg.TargetFPS)
	if err != nil {
		return nil, err
	}
	if cfg.Downsample == 0 {
		cfg.Downsample = 1
	}
	quick, err := engine.New(indexcache.New("quick"), engine.Config{
		Level:      engine.LevelQuick,
		Downsample: cfg.Downsample,
		Normalize:  cfg.Normalize,
		Reduction:  cfg.Reduction,
		Confidence: cfg.Confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("quick engine: %w", err)
	}
	full, err := engine.New(indexcache.New("full"), engine.Config{
		Level:      engine.LevelFull,
		Downsample: 1,
		Normalize:  cfg.Normalize,
		Reduction:  cfg.Reduction,
	})
	if err != nil {
		return nil, fmt.Errorf("full engine: %w", err)
	}

	return &Pipeline{
		governor: gov,
		quick:    quick,
		full:     full,
		history:  history.NewTracker(cfg.HistoryMax),
		rate:     frames.NewRateMeter(0.1),
	}, nil
}

// Start launches the analysis worker. The pipeline enters Previewing, or
// QuickAnalyzing when a geometry was set beforehand.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.inbox = NewSlot[*frames.Frame]()
	p.results = NewSlot[*engine.Result]()
	p.captures = make(chan captureRequest)

	if p.geom != nil {
		p.setStateLocked(StateQuickAnalyzing)
	} else {
		p.setStateLocked(StatePreviewing)
	}

	go p.run(ctx, p.done, p.inbox, p.results, p.captures)
	return nil
}

// Stop terminates the worker and waits for it to exit, including an
// in-flight scan. The worker closes the slots and returns the pipeline to
// Idle on its way out.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if done == nil {
		return
	}
	cancel()
	<-done
}

// Submit hands a frame to the pipeline without blocking. The frame becomes
// the capture candidate and replaces any frame the worker has not yet
// picked up. The caller must not modify frame afterwards.
func (p *Pipeline) Submit(frame *frames.Frame) error {
	if frame == nil {
		return nil
	}
	p.mu.Lock()
	if p.done == nil {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.latestRaw = frame
	inbox := p.inbox
	p.mu.Unlock()

	p.framesSubmitted.Add(1)
	p.rate.Observe(frame.Timestamp)
	if inbox.Put(frame) {
		p.inboxOverwritten.Add(1)
	}
	return nil
}

// SetGeometry validates g and makes it current. In-flight computations for
// the previous geometry finish but their results are discarded.
func (p *Pipeline) SetGeometry(g geometry.Geometry) error {
	if g == nil {
		return fmt.Errorf("%w: nil geometry", geometry.ErrInvalidGeometry)
	}
	if err := g.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.geom = g
	p.version++
	if p.state == StatePreviewing {
		p.setStateLocked(StateQuickAnalyzing)
	}
	logs.Diagf("geometry v%d: %s with %d bins", p.version, g.Kind(), g.Bins())
	return nil
}

// ClearGeometry removes the current geometry and returns to Previewing.
func (p *Pipeline) ClearGeometry() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.geom == nil {
		return
	}
	p.geom = nil
	p.version++
	if p.state == StateQuickAnalyzing {
		p.setStateLocked(StatePreviewing)
	}
}

// Geometry returns the current geometry and its version.
func (p *Pipeline) Geometry() (geometry.Geometry, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.geom, p.version
}

// SetROI sets the crop applied to frames before quick scans. An empty
// rectangle disables cropping.
func (p *Pipeline) SetROI(r image.Rectangle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roi = r.Canon()
}

// ROI returns the quick-scan crop.
func (p *Pipeline) ROI() image.Rectangle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roi
}

// SetTargetFPS changes the quick-analysis rate.
func (p *Pipeline) SetTargetFPS(fps float64) error {
	return p.governor.Reconfigure(fps)
}

// Capture runs a full-resolution scan of the most recent raw frame after
// any in-flight quick scan. The result is returned, and published when the
// geometry is still current on completion.
func (p *Pipeline) Capture(ctx context.Context) (*engine.Result, error) {
	p.mu.Lock()
	done, captures := p.done, p.captures
	p.mu.Unlock()
	if done == nil {
		return nil, ErrNotRunning
	}

	req := captureRequest{reply: make(chan captureReply, 1)}
	select {
	case captures <- req:
	case <-done:
		return nil, ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.res, r.err
	case <-done:
		return nil, ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Latest returns the most recently published result, or nil.
func (p *Pipeline) Latest() *engine.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastResult
}

// Next blocks until a result is published that has not been consumed yet.
func (p *Pipeline) Next(ctx context.Context) (*engine.Result, error) {
	p.mu.Lock()
	results := p.results
	p.mu.Unlock()
	if results == nil {
		return nil, ErrNotRunning
	}
	res, err := results.Take(ctx)
	if errors.Is(err, ErrSlotClosed) {
		return nil, ErrNotRunning
	}
	return res, err
}

// State returns the lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// History returns the intensity tracker fed by published results.
func (p *Pipeline) History() *history.Tracker { return p.history }

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	state, version := p.state, p.version
	p.mu.Unlock()

	gs := p.governor.Stats()
	return Stats{
		State:              state.String(),
		GeometryVersion:    version,
		SourceFPS:          p.rate.FPS(),
		FramesSubmitted:    p.framesSubmitted.Load(),
		InboxOverwritten:   p.inboxOverwritten.Load(),
		PreviewDiscarded:   p.previewDiscarded.Load(),
		Admitted:           gs.Admitted,
		Throttled:          gs.Dropped,
		QuickScans:         p.quickScans.Load(),
		ScanErrors:         p.scanErrors.Load(),
		StaleDiscarded:     p.staleDiscarded.Load(),
		Captures:           p.capturesDone.Load(),
		ResultsOverwritten: p.resultsOverwritten.Load(),
		QuickCache:         p.quick.Cache().Stats(),
		FullCache:          p.full.Cache().Stats(),
	}
}

// finish releases the worker's slots and resets the running state, unless a
// later Start has already replaced it.
func (p *Pipeline) finish(done chan struct{}, inbox *Slot[*frames.Frame], results *Slot[*engine.Result]) {
	p.mu.Lock()
	if p.done == done {
		p.cancel()
		p.done = nil
		p.cancel = nil
		p.setStateLocked(StateIdle)
	}
	p.mu.Unlock()

	inbox.Close()
	results.Close()
	logs.Diagf("analysis worker stopped")
}

// HistoryProfile names the history series a result is recorded under.
func HistoryProfile(res *engine.Result) string {
	return res.Kind.String() + "/" + res.Level.String()
}

// run is the analysis worker. It exits when ctx is done, whether through
// Stop or the parent context, and leaves the pipeline Idle so it can be
// started again.
func (p *Pipeline) run(ctx context.Context, done chan struct{}, inbox *Slot[*frames.Frame], results *Slot[*engine.Result], captures chan captureRequest) {
	defer close(done)
	defer p.finish(done, inbox, results)
	logs.Diagf("analysis worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-captures:
			res, err := p.capture()
			req.reply <- captureReply{res: res, err: err}
		case <-inbox.Notify():
			if frame, ok := inbox.TryTake(); ok {
				p.analyse(frame)
			}
		}
	}
}

func (p *Pipeline) analyse(frame *frames.Frame) {
	p.mu.Lock()
	g, version, roi := p.geom, p.version, p.roi
	p.mu.Unlock()

	if g == nil {
		p.previewDiscarded.Add(1)
		return
	}
	if !p.governor.Admit(frame.Timestamp) {
		return
	}

	scanned := frame
	if !roi.Empty() {
		if c, ok := frame.Crop(roi); ok {
			scanned = c
		} else {
			logs.Diagf("roi %v misses %dx%d frame, scanning uncropped", roi, frame.Width, frame.Height)
		}
	}

	res, err := p.quick.Scan(scanned, g)
	if err != nil {
		p.scanErrors.Add(1)
		logs.Opsf("quick scan of frame %d failed: %v", frame.Seq, err)
		return
	}
	p.quickScans.Add(1)
	p.publish(res, version)
}

func (p *Pipeline) capture() (*engine.Result, error) {
	p.mu.Lock()
	g, version, raw := p.geom, p.version, p.latestRaw
	if g == nil {
		p.mu.Unlock()
		return nil, ErrNoGeometry
	}
	if raw == nil {
		p.mu.Unlock()
		return nil, ErrNoFrame
	}
	p.setStateLocked(StateCapturing)
	p.mu.Unlock()

	res, err := p.full.Scan(raw, g)

	p.mu.Lock()
	if p.state == StateCapturing {
		if p.geom != nil {
			p.setStateLocked(StateQuickAnalyzing)
		} else {
			p.setStateLocked(StatePreviewing)
		}
	}
	p.mu.Unlock()

	if err != nil {
		p.scanErrors.Add(1)
		logs.Opsf("capture of frame %d failed: %v", raw.Seq, err)
		return nil, err
	}
	p.capturesDone.Add(1)
	logs.Diagf("captured frame %d: %d bins, confidence %.2f", raw.Seq, res.Len(), res.Confidence)
	p.publish(res, version)
	return res, nil
}

// publish delivers res when version is still current and records its mean
// intensity. It reports whether the result was published.
func (p *Pipeline) publish(res *engine.Result, version uint64) bool {
	p.mu.Lock()
	if version != p.version {
		current := p.version
		p.mu.Unlock()
		p.staleDiscarded.Add(1)
		logs.Tracef("discarding %s result for geometry v%d (current v%d)", res.Level, version, current)
		return false
	}
	p.lastResult = res
	results := p.results
	p.mu.Unlock()

	if results != nil && results.Put(res) {
		p.resultsOverwritten.Add(1)
	}
	if !res.Empty {
		p.history.Add(HistoryProfile(res), res.FrameSeq, res.Mean())
	}
	return true
}

func (p *Pipeline) setStateLocked(s State) {
	if p.state == s {
		return
	}
	logs.Diagf("state %s -> %s", p.state, s)
	p.state = s
}

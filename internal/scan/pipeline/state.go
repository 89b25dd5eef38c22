package pipeline

// State is the pipeline lifecycle state.
type State int

const (
	// StateIdle means the worker is not running.
	StateIdle State = iota
	// StatePreviewing means frames flow but no geometry is set, so nothing
	// is analysed.
	StatePreviewing
	// StateQuickAnalyzing means admitted frames are quick-scanned.
	StateQuickAnalyzing
	// StateCapturing means a full-resolution scan is in progress.
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreviewing:
		return "previewing"
	case StateQuickAnalyzing:
		return "quick_analyzing"
	case StateCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

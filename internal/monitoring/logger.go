// Package monitoring holds the logging plumbing shared by the scan packages.
//
// Each package with runtime behaviour owns a Streams value and exposes a
// SetLogWriters(ops, diag, trace io.Writer) function that replaces it:
//
//   - ops:   actionable warnings and errors
//   - diag:  day-to-day diagnostics (cache rebuilds, throttle summaries, state changes)
//   - trace: per-frame telemetry
package monitoring

import (
	"io"
	"log"
)

// Logf is the process-level diagnostic logger used by binaries. It defaults
// to log.Printf and may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the process logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Streams groups the three log streams of one package. A nil logger means
// the stream is disabled. The zero value discards everything.
type Streams struct {
	ops   *log.Logger
	diag  *log.Logger
	trace *log.Logger
}

// NewStreams builds the three streams with a shared prefix such as "[engine] ".
// Pass nil for any writer to disable that stream.
func NewStreams(prefix string, ops, diag, trace io.Writer) Streams {
	return Streams{
		ops:   newLogger(prefix, ops),
		diag:  newLogger(prefix, diag),
		trace: newLogger(prefix, trace),
	}
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream.
func (s Streams) Opsf(format string, args ...interface{}) {
	if s.ops != nil {
		s.ops.Printf(format, args...)
	}
}

// Diagf logs to the diag stream.
func (s Streams) Diagf(format string, args ...interface{}) {
	if s.diag != nil {
		s.diag.Printf(format, args...)
	}
}

// Tracef logs to the trace stream.
func (s Streams) Tracef(format string, args ...interface{}) {
	if s.trace != nil {
		s.trace.Printf(format, args...)
	}
}

// TraceEnabled reports whether the trace stream is active, so hot paths can
// skip building arguments.
func (s Streams) TraceEnabled() bool { return s.trace != nil }

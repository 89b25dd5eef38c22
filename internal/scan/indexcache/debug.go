package indexcache

import (
	"io"

	"github.com/banshee-data/scanprofile/internal/monitoring"
)

var logs monitoring.Streams

// SetLogWriters configures the three logging streams for the indexcache
// package. Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	logs = monitoring.NewStreams("[indexcache] ", ops, diag, trace)
}

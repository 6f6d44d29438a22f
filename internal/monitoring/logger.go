// Package monitoring routes command-level log output and pipeline events
// through one replaceable logger.
package monitoring

import (
	"log"

	"github.com/banshee-data/ifum-apermap/internal/apermap/pipeline"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// EventLogger returns a sink that writes every event no more verbose than
// verbosity through Logf.
func EventLogger(verbosity pipeline.Level) pipeline.EventSink {
	return pipeline.EventSinkFunc(func(e pipeline.Event) {
		if e.Level > verbosity {
			return
		}
		Logf("[%s] %s", shortID(e.RunID), e)
	})
}

// ParseLevel maps a -log flag value to a level; unknown values select ops.
func ParseLevel(s string) pipeline.Level {
	switch s {
	case "trace":
		return pipeline.LevelTrace
	case "diag":
		return pipeline.LevelDiag
	}
	return pipeline.LevelOps
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Level mirrors the three logging streams.
type Level int

const (
	LevelOps Level = iota
	LevelDiag
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelOps:
		return "ops"
	case LevelDiag:
		return "diag"
	default:
		return "trace"
	}
}

// Stage names the layer that produced an event.
type Stage string

const (
	StageProfiles Stage = "profiles"
	StagePeaks    Stage = "peaks"
	StageTracks   Stage = "tracks"
	StageFibers   Stage = "fibers"
	StageTraces   Stage = "traces"
	StageApermap  Stage = "apermap"
)

// Event is one structured progress record of a run.
type Event struct {
	RunID   string
	Stage   Stage
	Level   Level
	Message string
	Fields  map[string]any
}

func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Level, e.Stage, e.Message)
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	return b.String()
}

// EventSink receives events. Emit is called synchronously from the run.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Emit calls f(e).
func (f EventSinkFunc) Emit(e Event) { f(e) }

// Recorder is an EventSink that keeps every event. It is safe for use by
// concurrent runs.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit stores e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Filter returns the recorded events at level.
func (r *Recorder) Filter(level Level) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

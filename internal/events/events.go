// Package events carries pipeline log and progress notifications to whatever
// presents them (a CLI today, a desktop UI in the original deployment).
//
// Producers call Sink.Emit, which never blocks. Bus is the production sink:
// an unbounded FIFO drained by one forwarder goroutine into a channel, so a
// slow consumer delays delivery but never the pipeline, and events arrive in
// emission order.
package events

import (
	"fmt"
	"sync"
	"time"
)

// Level is the severity of a log event.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelSuccess
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = [...]string{"DEBUG", "INFO", "SUCCESS", "WARNING", "ERROR", "CRITICAL"}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// MarshalText renders the level name.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// ParseLevel reads a level name as produced by String.
func ParseLevel(s string) (Level, error) {
	for i, n := range levelNames {
		if n == s {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("events: unknown level %q", s)
}

// Log is a structured log entry.
type Log struct {
	Time    time.Time `json:"timestamp"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// Progress reports how far a run has advanced, 0 to 100.
type Progress struct {
	Label   string `json:"label"`
	Percent int    `json:"percent"`
}

// Event holds exactly one of Log or Progress.
type Event struct {
	Log      *Log      `json:"log,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
}

// Sink receives events. Emit must not block.
type Sink interface {
	Emit(Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of what was recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Logs returns the recorded log events.
func (r *Recorder) Logs() []Log {
	var out []Log
	for _, ev := range r.Events() {
		if ev.Log != nil {
			out = append(out, *ev.Log)
		}
	}
	return out
}

// Progresses returns the recorded progress events.
func (r *Recorder) Progresses() []Progress {
	var out []Progress
	for _, ev := range r.Events() {
		if ev.Progress != nil {
			out = append(out, *ev.Progress)
		}
	}
	return out
}

// Tee fans every event out to several sinks in order.
func Tee(sinks ...Sink) Sink { return tee(sinks) }

type tee []Sink

func (t tee) Emit(ev Event) {
	for _, s := range t {
		if s != nil {
			s.Emit(ev)
		}
	}
}

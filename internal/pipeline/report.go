package pipeline

import (
	"fmt"
	"time"

	"escrowetl/internal/etlerr"
	"escrowetl/internal/events"
	"escrowetl/internal/metrics"
	"escrowetl/internal/schema"
)

// transition moves to s and reports it with a log line and a progress event.
func (e *execution) transition(s State, pct int, label string) {
	e.mu.Lock()
	e.state = s
	e.res.FinalState = s
	e.mu.Unlock()

	e.log(events.LevelInfo, label, "state: "+string(s))
	e.progress(label, pct)
}

// progress emits pct, raised to the last reported value so percentages never
// go backwards. Emitting under mu keeps concurrent reports in order.
func (e *execution) progress(label string, pct int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pct < e.percent {
		pct = e.percent
	}
	e.percent = pct
	e.sink.Emit(events.Event{Progress: &events.Progress{Label: label, Percent: pct}})
}

func (e *execution) log(level events.Level, msg, details string) {
	e.sink.Emit(events.Event{Log: &events.Log{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Details: details,
	}})
}

// warn reports each row-level warning and counts it.
func (e *execution) warn(ws []schema.Warning) {
	for _, w := range ws {
		e.log(events.LevelWarning, w.String(), "")
	}
	e.res.Warnings += len(ws)
	metrics.RecordRow(e.o.job, metrics.RowsWarned, int64(len(ws)))
}

// fail moves to the error state, records err on the result, and re-emits the
// last progress percentage.
func (e *execution) fail(err error) {
	kind := etlerr.KindOf(err)
	if kind == etlerr.KindUnknown {
		kind = etlerr.KindCritical
	}

	e.mu.Lock()
	from := e.state
	e.state = StateError
	pct := e.percent
	e.mu.Unlock()

	e.res.Success = false
	e.res.FinalState = StateError
	e.res.ErrorKind = kind.String()
	e.res.ErrorSummary = err.Error()

	level := events.LevelError
	if kind == etlerr.KindCritical {
		level = events.LevelCritical
	}
	e.log(level, fmt.Sprintf("ETL run failed while %s: %s", from, kind), err.Error())
	e.progress("Failed", pct)
}

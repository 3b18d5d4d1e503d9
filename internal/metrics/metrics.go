// Package metrics records operational metrics for escrow ETL runs: one step
// sample per pipeline stage, row counters per kind, and loader batch counts.
//
// The backend is global and pluggable. It defaults to a no-op, so recording
// is always safe when nothing is configured. Concrete systems live in
// subpackages (prompush for a Prometheus Pushgateway, datadog for DogStatsD)
// and are installed with SetBackend; the rest of the code depends only on the
// Backend interface.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal    = "escrowetl_step_total"
	StepDuration = "escrowetl_step_duration_seconds"
	RowsTotal    = "escrowetl_rows_total"
	BatchesTotal = "escrowetl_batches_total"
)

// Row kinds recorded with RecordRow.
const (
	RowsExtracted   = "extracted"
	RowsTransformed = "transformed"
	RowsWarned      = "warned"
	RowsInserted    = "inserted"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b and returns the backend it replaced. Passing nil
// restores the no-op backend.
func SetBackend(b Backend) (previous Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	defer mu.Unlock()
	previous, backend = backend, b
	return previous
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a pipeline stage and observes its
// duration, labeled success or failure by err.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta rows of the given kind (RowsExtracted, ...). Non-
// positive deltas are ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches adds delta loader batches.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// Package prompush pushes escrow ETL metrics to a Prometheus Pushgateway.
//
// A run is a short-lived batch job with nothing to scrape, so the collectors
// live in a private registry and Flush pushes them once the run finishes. The
// job label becomes the Pushgateway grouping key; the remaining labels (step,
// status, kind) map onto Prometheus label dimensions.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"escrowetl/internal/metrics"
)

// DefaultJob is the grouping key used when none is configured.
const DefaultJob = "escrowetl"

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	rowCounter   *prometheus.CounterVec
	batchCounter prometheus.Counter
}

// NewBackend registers the escrow ETL collectors in a fresh registry.
// jobName defaults to DefaultJob; gatewayURL is required.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = DefaultJob
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.StepTotal,
				Help: "Pipeline stage executions by step and status.",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metrics.StepDuration,
				Help:    "Pipeline stage duration in seconds by step and status.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"step", "status"},
		),
		rowCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsTotal,
				Help: "Rows by kind (extracted, transformed, warned, inserted).",
			},
			[]string{"kind"},
		),
		batchCounter: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metrics.BatchesTotal,
				Help: "Loader batches written inside the run transaction.",
			},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":   b.stepCounter,
		"step histogram": b.stepDuration,
		"row counter":    b.rowCounter,
		"batch counter":  b.batchCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the registry to the Pushgateway, replacing the previous
// push for the same job.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}

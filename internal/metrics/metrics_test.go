package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

// install swaps in a fake backend for the duration of the test.
func install(tb testing.TB) *fakeBackend {
	tb.Helper()
	fb := &fakeBackend{}
	prev := SetBackend(fb)
	tb.Cleanup(func() { SetBackend(prev) })
	return fb
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := install(t)

	RecordStep("jobA", "extract", nil, 2*time.Second)
	RecordStep("jobB", "load", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.callsCounters) != 2 {
		t.Fatalf("expected 2 counter calls, got %d", len(fb.callsCounters))
	}
	if len(fb.callsHistograms) != 2 {
		t.Fatalf("expected 2 histogram calls, got %d", len(fb.callsHistograms))
	}

	cc0 := fb.callsCounters[0]
	if cc0.name != StepTotal || cc0.delta != 1 {
		t.Fatalf("counter[0] = %#v; want name=%s, delta=1", cc0, StepTotal)
	}
	if cc0.labels["job"] != "jobA" || cc0.labels["step"] != "extract" || cc0.labels["status"] != "success" {
		t.Fatalf("counter[0].labels = %v", cc0.labels)
	}

	h0 := fb.callsHistograms[0]
	if h0.name != StepDuration {
		t.Fatalf("hist[0].name=%q; want %s", h0.name, StepDuration)
	}
	if h0.value < 2.0-0.001 || h0.value > 2.0+0.001 {
		t.Fatalf("hist[0].value=%v; want ~2.0", h0.value)
	}

	cc1 := fb.callsCounters[1]
	if cc1.labels["job"] != "jobB" || cc1.labels["step"] != "load" {
		t.Fatalf("counter[1] labels job/step = %v; want jobB/load", cc1.labels)
	}
	if cc1.labels["status"] != "failure" {
		t.Fatalf("counter[1].labels[status]=%q; want %q", cc1.labels["status"], "failure")
	}
	if h1 := fb.callsHistograms[1]; h1.value < 1.5-0.001 || h1.value > 1.5+0.001 {
		t.Fatalf("hist[1].value=%v; want ~1.5", h1.value)
	}
}

func TestRecordRowAndBatches(t *testing.T) {
	fb := install(t)

	RecordRow("jobX", RowsExtracted, 3)
	RecordRow("jobX", RowsExtracted, 0)  // ignored
	RecordRow("jobX", RowsWarned, -1)    // ignored
	RecordRow("jobY", RowsInserted, 5)
	RecordBatches("jobZ", 2)
	RecordBatches("jobZ", 0) // ignored

	if len(fb.callsCounters) != 3 {
		t.Fatalf("expected 3 counter calls, got %d", len(fb.callsCounters))
	}

	c0 := fb.callsCounters[0]
	if c0.name != RowsTotal || c0.delta != 3 {
		t.Fatalf("counter[0] = %#v; want name=%s, delta=3", c0, RowsTotal)
	}
	if c0.labels["job"] != "jobX" || c0.labels["kind"] != RowsExtracted {
		t.Fatalf("counter[0] labels = %v", c0.labels)
	}

	c1 := fb.callsCounters[1]
	if c1.delta != 5 || c1.labels["kind"] != RowsInserted {
		t.Fatalf("counter[1] = %#v", c1)
	}

	c2 := fb.callsCounters[2]
	if c2.name != BatchesTotal || c2.delta != 2 || c2.labels["job"] != "jobZ" {
		t.Fatalf("counter[2] = %#v", c2)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}

	// nil restores the no-op backend and hands back the previous one.
	if prev := SetBackend(nil); prev != fb {
		t.Fatalf("SetBackend(nil) returned %T, want the fake", prev)
	}
	if _, ok := current().(nopBackend); !ok {
		t.Fatalf("backend after SetBackend(nil) = %T, want nopBackend", current())
	}
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush returned error: %v", err)
	}
}

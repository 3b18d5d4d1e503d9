package events

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestBus_OrderedDeliveryAfterClose(t *testing.T) {
	t.Parallel()

	b := NewBus()
	const n = 500
	for i := 0; i < n; i++ {
		b.Emit(Event{Progress: &Progress{Label: strconv.Itoa(i), Percent: i % 101}})
	}
	b.Close()

	// Emits after Close are dropped.
	b.Emit(Event{Log: &Log{Message: "late"}})

	got := 0
	for ev := range b.Events() {
		if ev.Progress == nil {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Progress.Label != strconv.Itoa(got) {
			t.Fatalf("event %d label %q; out of order", got, ev.Progress.Label)
		}
		got++
	}
	if got != n {
		t.Fatalf("delivered %d events, want %d", got, n)
	}
}

func TestBus_EmitDoesNotBlockWithoutConsumer(t *testing.T) {
	t.Parallel()

	b := NewBus()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			b.Emit(Event{Log: &Log{Level: LevelDebug, Message: "x"}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Emit blocked with no consumer reading")
	}

	b.Close()
	count := 0
	for range b.Events() {
		count++
	}
	if count != 10000 {
		t.Fatalf("delivered %d, want 10000", count)
	}
}

func TestBus_ConcurrentProducers(t *testing.T) {
	t.Parallel()

	b := NewBus()
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				b.Emit(Event{Log: &Log{Message: "m"}})
			}
		}()
	}

	collected := make(chan int)
	go func() {
		n := 0
		for range b.Events() {
			n++
		}
		collected <- n
	}()

	wg.Wait()
	b.Close()
	if n := <-collected; n != 1000 {
		t.Fatalf("delivered %d, want 1000", n)
	}
}

func TestLevelNames(t *testing.T) {
	t.Parallel()

	for l := LevelDebug; l <= LevelCritical; l++ {
		back, err := ParseLevel(l.String())
		if err != nil || back != l {
			t.Fatalf("ParseLevel(%q) = %v, %v", l.String(), back, err)
		}
	}
	if _, err := ParseLevel("LOUD"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if got := Level(42).String(); got != "LEVEL(42)" {
		t.Fatalf("String() = %q", got)
	}
}

func TestRecorderAndTee(t *testing.T) {
	t.Parallel()

	var a, b Recorder
	s := Tee(&a, nil, &b)
	s.Emit(Event{Log: &Log{Level: LevelSuccess, Message: "ok"}})
	s.Emit(Event{Progress: &Progress{Label: "done", Percent: 100}})
	Discard.Emit(Event{Log: &Log{}})

	for _, r := range []*Recorder{&a, &b} {
		if len(r.Logs()) != 1 || r.Logs()[0].Message != "ok" {
			t.Fatalf("logs = %+v", r.Logs())
		}
		if p := r.Progresses(); len(p) != 1 || p[0].Percent != 100 {
			t.Fatalf("progress = %+v", p)
		}
	}
}

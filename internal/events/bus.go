package events

import "sync"

// Bus is an unbounded, ordered event queue. Emit appends and returns
// immediately; a forwarder goroutine delivers to the channel returned by
// Events. After Close the forwarder drains what is queued and then closes the
// channel.
//
// The consumer should read Events until it is closed; an abandoned Bus keeps
// its forwarder parked on the channel send.
type Bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	out    chan Event
}

// NewBus starts the forwarder goroutine.
func NewBus() *Bus {
	b := &Bus{out: make(chan Event)}
	b.cond = sync.NewCond(&b.mu)
	go b.forward()
	return b
}

// Emit enqueues ev. Events emitted after Close are dropped.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	if !b.closed {
		b.queue = append(b.queue, ev)
		b.cond.Signal()
	}
	b.mu.Unlock()
}

// Close stops accepting events. It does not wait for delivery.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Events is the delivery channel. It is closed once every event queued before
// Close has been delivered.
func (b *Bus) Events() <-chan Event { return b.out }

func (b *Bus) forward() {
	defer close(b.out)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 && b.closed {
			b.mu.Unlock()
			return
		}
		batch := b.queue
		b.queue = nil
		b.mu.Unlock()

		for _, ev := range batch {
			b.out <- ev
		}
	}
}

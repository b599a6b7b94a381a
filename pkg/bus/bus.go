// Package bus implements the event model and bounded event channel that
// connects the ingest adapter's probe readers to the state graph applier
// (spec §4.1, component C1).
package bus

import (
	"context"
	"sync/atomic"

	"github.com/sentinelgraph/sentinel/pkg/metrics"
)

// DefaultCapacity is the recommended bus buffer size (spec §4.1).
const DefaultCapacity = 8192

// Bus is a bounded many-producer/single-consumer channel of Events.
//
// Unlike the teacher's events.Broker, which drops events on a full
// subscriber buffer, Publish here applies back-pressure by blocking the
// producer once the bus is at capacity — the specification requires that
// events are never silently dropped (spec §4.1). The sole consumer is the
// state graph applier; forwarding to the hub and to the action dispatcher's
// self-events happens through graph-level observation, not a second bus
// subscriber.
type Bus struct {
	ch     chan Event
	closed int32
}

// New creates a Bus with the given buffer capacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{ch: make(chan Event, capacity)}
}

// Publish enqueues an event, blocking if the bus is at capacity. It returns
// ctx.Err() if ctx is cancelled while waiting, and a non-nil error if the
// bus has been closed.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if atomic.LoadInt32(&b.closed) == 1 {
		return ErrClosed
	}

	select {
	case b.ch <- ev:
		metrics.BusQueueDepth.Set(float64(len(b.ch)))
		return nil
	default:
	}

	metrics.BusBackpressureTotal.Inc()
	select {
	case b.ch <- ev:
		metrics.BusQueueDepth.Set(float64(len(b.ch)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the receive-only channel the graph applier consumes from.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Close stops accepting new events and closes the underlying channel at
// once; events already buffered are still received by the consumer before
// it sees the close. Callers must stop calling Publish before Close.
func (b *Bus) Close() {
	if atomic.CompareAndSwapInt32(&b.closed, 0, 1) {
		close(b.ch)
	}
}

// Len reports the number of currently buffered events.
func (b *Bus) Len() int {
	return len(b.ch)
}

// busClosedError is the type of ErrClosed.
type busClosedError struct{}

func (busClosedError) Error() string { return "bus: closed" }

// ErrClosed is returned by Publish after Close.
var ErrClosed error = busClosedError{}

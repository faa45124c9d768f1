package responder

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultQueueDepth is the capacity of an event channel.
const DefaultQueueDepth = 16

// EventChannel is a bounded FIFO of events with non-blocking producers and a
// single consumer that waits with a timeout.
type EventChannel struct {
	events  chan Event
	dropped atomic.Uint64
}

// NewEventChannel creates a channel holding at most depth events.
func NewEventChannel(depth int) (*EventChannel, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("queue depth %d: %w", depth, ErrInit)
	}
	return &EventChannel{
		events: make(chan Event, depth),
	}, nil
}

// TrySend queues evt without blocking. It returns false when the channel is
// full, in which case the event is dropped and counted.
func (c *EventChannel) TrySend(evt Event) bool {
	select {
	case c.events <- evt:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Receive waits up to timeout for the next event. The second result is false
// on timeout or when ctx is done.
func (c *EventChannel) Receive(ctx context.Context, timeout time.Duration) (Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case evt := <-c.events:
		return evt, true
	case <-timer.C:
		return 0, false
	case <-ctx.Done():
		return 0, false
	}
}

// Len returns the number of queued events.
func (c *EventChannel) Len() int {
	return len(c.events)
}

// Cap returns the channel capacity.
func (c *EventChannel) Cap() int {
	return cap(c.events)
}

// Dropped returns the number of events lost to a full channel.
func (c *EventChannel) Dropped() uint64 {
	return c.dropped.Load()
}

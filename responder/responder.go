// Package responder implements a single-address I2C target that answers
// single-byte reads with a reply selected by the last single-byte command.
//
// The transaction callbacks (OnReceive, OnRequest) do the time critical work
// and hand a notification to the event loop (Run) through a bounded
// EventChannel. The loop does the reporting.
package responder

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/binkynet/BinkyHardware/I2CResponder/bus"
)

const (
	// DefaultPollInterval is how long the event loop waits for an event
	// before looping again.
	DefaultPollInterval = time.Millisecond * 10
	// DefaultWriteTimeout bounds the reply write in OnRequest.
	DefaultWriteTimeout = time.Millisecond * 1000
	// DefaultMonitorWindow is the period over which events are counted for
	// the rate observer.
	DefaultMonitorWindow = time.Second
)

// RateObserver is fed the number of events handled per monitor window.
// It reports whether the count is unusual.
type RateObserver interface {
	Observe(count int) bool
}

// Options tune a Responder. Zero values are replaced by defaults.
type Options struct {
	QueueDepth      int
	PollInterval    time.Duration
	WriteTimeout    time.Duration
	InitialSelector uint8
	Table           *ReplyTable
	Logger          zerolog.Logger
	Monitor         RateObserver
	MonitorWindow   time.Duration
}

// Stats is a snapshot of responder counters.
type Stats struct {
	Received    uint64 // Command bytes classified
	Transmitted uint64 // Reply bytes written to the bus
	Dropped     uint64 // Notifications lost to a full channel
	Queued      int    // Notifications waiting for the event loop
}

// Responder holds everything shared by the transaction callbacks and the
// event loop. It implements bus.Handler.
type Responder struct {
	target bus.Target
	events *EventChannel
	state  *State
	table  ReplyTable
	opts   Options
	log    zerolog.Logger

	reply       [1]byte
	received    atomic.Uint64
	transmitted atomic.Uint64
}

var _ bus.Handler = (*Responder)(nil)

// New creates a responder that replies through target.
func New(target bus.Target, opts Options) (*Responder, error) {
	if target == nil {
		return nil, fmt.Errorf("no target: %w", ErrInit)
	}
	if opts.QueueDepth == 0 {
		opts.QueueDepth = DefaultQueueDepth
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.MonitorWindow <= 0 {
		opts.MonitorWindow = DefaultMonitorWindow
	}
	table := DefaultReplyTable
	if opts.Table != nil {
		table = *opts.Table
	}
	if int(opts.InitialSelector) >= len(table) {
		return nil, fmt.Errorf("initial selector %d out of range: %w", opts.InitialSelector, ErrInit)
	}
	events, err := NewEventChannel(opts.QueueDepth)
	if err != nil {
		return nil, fmt.Errorf("NewEventChannel failed: %w", err)
	}
	return &Responder{
		target: target,
		events: events,
		state:  newState(opts.InitialSelector),
		table:  table,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "responder").Logger(),
	}, nil
}

// OnReceive classifies the first byte written by the controller and notifies
// the event loop. Bytes after the first are ignored; an empty write changes
// nothing.
func (r *Responder) OnReceive(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	r.state.Update(data[0])
	r.received.Add(1)
	return r.events.TrySend(EventReceived)
}

// OnRequest writes the currently selected reply byte and notifies the event
// loop. A failed or short write is returned as ErrReplyFault.
func (r *Responder) OnRequest() (bool, error) {
	r.reply[0] = r.table.Lookup(r.state.Selector())
	n, err := r.target.Write(r.reply[:], r.opts.WriteTimeout)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrReplyFault, err)
	}
	if n != len(r.reply) {
		return false, fmt.Errorf("%w: wrote %d of %d bytes", ErrReplyFault, n, len(r.reply))
	}
	r.transmitted.Add(1)
	return r.events.TrySend(EventTransmitted), nil
}

// State returns the reply selection state.
func (r *Responder) State() *State {
	return r.state
}

// Table returns a copy of the reply table.
func (r *Responder) Table() ReplyTable {
	return r.table
}

// CurrentReply returns the byte the next read will be answered with.
func (r *Responder) CurrentReply() byte {
	return r.table.Lookup(r.state.Selector())
}

// Stats returns a snapshot of the responder counters.
func (r *Responder) Stats() Stats {
	return Stats{
		Received:    r.received.Load(),
		Transmitted: r.transmitted.Load(),
		Dropped:     r.events.Dropped(),
		Queued:      r.events.Len(),
	}
}

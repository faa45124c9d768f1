// Package fifo provides an in-memory bus.Target together with a simulated
// bus controller that drives it.
//
// Each controller transaction holds the bus for its duration, so handler
// callbacks are invoked serially exactly like on a real half-duplex bus.
// The reply written by the handler during a read is handed back to the
// controller through a one-byte deep FIFO.
package fifo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/binkynet/BinkyHardware/I2CResponder/bus"
)

var (
	// ErrAddressNACK indicates the controller addressed a different target.
	ErrAddressNACK = errors.New("address not acknowledged")

	// ErrNoReply indicates the handler did not write a reply during a read.
	ErrNoReply = errors.New("no reply written")

	// ErrFaulted indicates the target stopped after a fatal handler error.
	ErrFaulted = errors.New("target faulted")
)

// Target is an in-memory bus.Target.
type Target struct {
	mu         sync.Mutex // held for the duration of a transaction
	cfg        bus.Config
	configured bool
	handler    bus.Handler
	tx         chan byte
	fault      error
	faulted    chan struct{}
	written    atomic.Uint64

	// WriteErr, when set, is returned by the next Write calls instead of
	// accepting the reply.
	WriteErr error
}

var (
	_ bus.Target = (*Target)(nil)
	_ bus.Server = (*Target)(nil)
)

// New creates an unconfigured target.
func New() *Target {
	return &Target{
		faulted: make(chan struct{}),
	}
}

// Configure implements bus.Target.
func (t *Target) Configure(cfg bus.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
	t.tx = make(chan byte, cfg.SendBufDepth)
	t.configured = true
	return nil
}

// Register implements bus.Target.
func (t *Target) Register(h bus.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.configured {
		return bus.ErrNotConfigured
	}
	t.handler = h
	return nil
}

// Write implements bus.Target. It is only valid from within OnRequest.
func (t *Target) Write(buf []byte, timeout time.Duration) (int, error) {
	if t.WriteErr != nil {
		return 0, t.WriteErr
	}
	if t.tx == nil {
		return 0, bus.ErrNotConfigured
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for i, b := range buf {
		select {
		case t.tx <- b:
			t.written.Add(1)
		case <-timer.C:
			return i, bus.ErrWriteTimeout
		}
	}
	return len(buf), nil
}

// Serve blocks until ctx is done or a handler reported a fatal error.
func (t *Target) Serve(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.faulted:
		return t.fault
	}
}

// Written returns the number of reply bytes accepted by Write.
func (t *Target) Written() uint64 {
	return t.written.Load()
}

// Config returns the applied configuration.
func (t *Target) Config() bus.Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// Controller drives a Target the way a bus controller would.
type Controller struct {
	target *Target
}

// NewController creates a controller attached to t.
func NewController(t *Target) *Controller {
	return &Controller{target: t}
}

// Write performs a write transaction of data to addr.
func (c *Controller) Write(addr uint16, data []byte) error {
	t := c.target
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ready(addr); err != nil {
		return err
	}
	if uint32(len(data)) > t.cfg.ReceiveBufDepth {
		data = data[:t.cfg.ReceiveBufDepth]
	}
	rx := make([]byte, len(data))
	copy(rx, data)
	t.handler.OnReceive(rx)
	return nil
}

// WriteCommand writes a single command byte to addr.
func (c *Controller) WriteCommand(addr uint16, cmd byte) error {
	return c.Write(addr, []byte{cmd})
}

// ReadReply performs a one byte read transaction from addr.
func (c *Controller) ReadReply(addr uint16) (byte, error) {
	t := c.target
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ready(addr); err != nil {
		return 0, err
	}
	if _, err := t.handler.OnRequest(); err != nil {
		t.setFault(err)
		return 0, fmt.Errorf("OnRequest failed: %w", err)
	}
	select {
	case b := <-t.tx:
		// Anything beyond the requested byte is not clocked out.
		for len(t.tx) > 0 {
			<-t.tx
		}
		return b, nil
	default:
		return 0, ErrNoReply
	}
}

// ready is called with t.mu held.
func (t *Target) ready(addr uint16) error {
	if t.fault != nil {
		return ErrFaulted
	}
	if !t.configured {
		return bus.ErrNotConfigured
	}
	if addr != t.cfg.Address {
		return ErrAddressNACK
	}
	if t.handler == nil {
		return bus.ErrNoHandler
	}
	return nil
}

// setFault is called with t.mu held.
func (t *Target) setFault(err error) {
	if t.fault == nil {
		t.fault = err
		close(t.faulted)
	}
}

//go:build tinygo

// Package mcu adapts a TinyGo machine.I2C peripheral running in target mode
// to bus.Target.
package mcu

import (
	"context"
	"fmt"
	"machine"
	"time"

	"github.com/binkynet/BinkyHardware/I2CResponder/bus"
)

// Target wraps a machine.I2C in target mode.
type Target struct {
	i2c     *machine.I2C
	cfg     bus.Config
	handler bus.Handler
	rx      []byte
}

var (
	_ bus.Target = (*Target)(nil)
	_ bus.Server = (*Target)(nil)
)

// New creates a target on the given peripheral.
func New(i2c *machine.I2C) *Target {
	return &Target{i2c: i2c}
}

// Configure implements bus.Target. See checkConfig for the fields that are
// not applied on this target.
func (t *Target) Configure(cfg bus.Config) error {
	if err := checkConfig(cfg); err != nil {
		return err
	}
	// Configure i2c bus as target
	if err := t.i2c.Configure(machine.I2CConfig{
		Mode: machine.I2CModeTarget,
		SDA:  machine.Pin(cfg.SDA),
		SCL:  machine.Pin(cfg.SCL),
	}); err != nil {
		return fmt.Errorf("Failed to configure i2c bus: %w", err)
	}
	// Start listening on the i2c bus
	if err := t.i2c.Listen(cfg.Address); err != nil {
		return fmt.Errorf("Failed to listen on i2c bus: %w", err)
	}
	t.cfg = cfg
	t.rx = make([]byte, cfg.ReceiveBufDepth)
	return nil
}

// Register implements bus.Target.
func (t *Target) Register(h bus.Handler) error {
	if t.rx == nil {
		return bus.ErrNotConfigured
	}
	t.handler = h
	return nil
}

// Write implements bus.Target. The peripheral accepts the reply
// synchronously; the timeout is checked once the reply has been queued.
func (t *Target) Write(buf []byte, timeout time.Duration) (int, error) {
	start := time.Now()
	if err := t.i2c.Reply(buf); err != nil {
		return 0, err
	}
	if time.Since(start) > timeout {
		return len(buf), bus.ErrWriteTimeout
	}
	return len(buf), nil
}

// Serve pumps peripheral events into the registered handler until ctx is
// done, the peripheral fails, or the handler reports a fatal error.
func (t *Target) Serve(ctx context.Context) error {
	if t.handler == nil {
		return bus.ErrNoHandler
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Wait for event
		evt, count, err := t.i2c.WaitForEvent(t.rx)
		if err != nil {
			return fmt.Errorf("Failed to wait for event: %w", err)
		}

		// Handle event
		switch evt {
		case machine.I2CReceive:
			t.handler.OnReceive(t.rx[:count])
		case machine.I2CRequest:
			if _, err := t.handler.OnRequest(); err != nil {
				return err
			}
		case machine.I2CFinish:
			// No response needed
		}
	}
}

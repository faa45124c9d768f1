// Package config holds the settings of an I2C responder: bus setup,
// responder timing, activity monitoring and logging.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/binkynet/BinkyHardware/I2CResponder/activity"
	"github.com/binkynet/BinkyHardware/I2CResponder/bus"
	"github.com/binkynet/BinkyHardware/I2CResponder/responder"
)

const (
	DefaultPort        = 0
	DefaultSDA         = 39
	DefaultSCL         = 40
	DefaultAddress     = 0x09
	DefaultBufferDepth = 128
)

// Config is the complete responder configuration.
type Config struct {
	Bus             bus.Config
	QueueDepth      int
	PollInterval    time.Duration
	WriteTimeout    time.Duration
	InitialSelector uint8
	ReplyTable      responder.ReplyTable
	Activity        activity.Config
	ActivityEnabled bool
	ActivityWindow  time.Duration
	LogLevel        string
}

// Default returns the configuration the device ships with.
func Default() Config {
	return Config{
		Bus: bus.Config{
			Port:            DefaultPort,
			SDA:             DefaultSDA,
			SCL:             DefaultSCL,
			Clock:           bus.ClockDefault,
			SendBufDepth:    DefaultBufferDepth,
			ReceiveBufDepth: DefaultBufferDepth,
			Address:         DefaultAddress,
			AddressWidth:    bus.Address7Bit,
		},
		QueueDepth:      responder.DefaultQueueDepth,
		PollInterval:    responder.DefaultPollInterval,
		WriteTimeout:    responder.DefaultWriteTimeout,
		InitialSelector: 0,
		ReplyTable:      responder.DefaultReplyTable,
		Activity:        activity.DefaultConfig(),
		ActivityEnabled: true,
		ActivityWindow:  responder.DefaultMonitorWindow,
		LogLevel:        "info",
	}
}

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Bus.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("%w: queue depth must be positive, got %d", ErrInvalid, c.QueueDepth)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", ErrInvalid, c.PollInterval)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: write timeout must be positive, got %s", ErrInvalid, c.WriteTimeout)
	}
	if int(c.InitialSelector) >= responder.TableSize {
		return fmt.Errorf("%w: initial selector %d out of range [0,%d]", ErrInvalid, c.InitialSelector, responder.TableSize-1)
	}
	if c.ActivityEnabled {
		if err := c.Activity.Validate(); err != nil {
			return fmt.Errorf("%w: activity: %w", ErrInvalid, err)
		}
		if c.ActivityWindow <= 0 {
			return fmt.Errorf("%w: activity window must be positive, got %s", ErrInvalid, c.ActivityWindow)
		}
	}
	return nil
}

// ResponderOptions converts the configuration into responder options.
// Logger and Monitor are left for the caller to fill in.
func (c Config) ResponderOptions() responder.Options {
	table := c.ReplyTable
	return responder.Options{
		QueueDepth:      c.QueueDepth,
		PollInterval:    c.PollInterval,
		WriteTimeout:    c.WriteTimeout,
		InitialSelector: c.InitialSelector,
		Table:           &table,
		MonitorWindow:   c.ActivityWindow,
	}
}

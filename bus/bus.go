// Package bus defines the boundary between the responder logic and an I2C
// peripheral operating in target (slave) mode.
//
// A Target is configured once, has a single Handler registered on it, and
// invokes that handler serially whenever the bus controller writes to or
// reads from the configured address. Implementations live in sub packages:
// fifo (in-memory, for tests and the simulator) and machine (TinyGo).
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AddressWidth selects 7 or 10 bit target addressing.
type AddressWidth uint8

const (
	Address7Bit  AddressWidth = 7
	Address10Bit AddressWidth = 10
)

// ClockSource selects the peripheral clock.
type ClockSource uint8

const (
	ClockDefault ClockSource = iota
	ClockAPB
	ClockXTAL
)

// String returns a human readable clock source name.
func (c ClockSource) String() string {
	switch c {
	case ClockAPB:
		return "apb"
	case ClockXTAL:
		return "xtal"
	default:
		return "default"
	}
}

// Config describes how a Target is set up on the bus.
type Config struct {
	Port            uint8        // Peripheral (bus) number
	SDA             uint8        // Data pin
	SCL             uint8        // Clock pin
	Clock           ClockSource  // Peripheral clock source
	SendBufDepth    uint32       // Depth of the transmit buffer in bytes
	ReceiveBufDepth uint32       // Depth of the receive buffer in bytes
	Address         uint16       // Target address
	AddressWidth    AddressWidth // 7 or 10 bit addressing
}

// Validate checks that the configuration can be applied to a peripheral.
func (c Config) Validate() error {
	switch c.AddressWidth {
	case Address7Bit:
		if c.Address > 0x7f {
			return fmt.Errorf("address 0x%x does not fit 7 bits: %w", c.Address, ErrInvalidConfig)
		}
	case Address10Bit:
		if c.Address > 0x3ff {
			return fmt.Errorf("address 0x%x does not fit 10 bits: %w", c.Address, ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("unsupported address width %d: %w", c.AddressWidth, ErrInvalidConfig)
	}
	if c.SendBufDepth == 0 || c.ReceiveBufDepth == 0 {
		return fmt.Errorf("buffer depths must be non-zero: %w", ErrInvalidConfig)
	}
	return nil
}

var (
	// ErrInvalidConfig indicates a configuration the peripheral cannot apply.
	ErrInvalidConfig = errors.New("invalid bus configuration")

	// ErrNotConfigured indicates an operation on a target before Configure.
	ErrNotConfigured = errors.New("target not configured")

	// ErrNoHandler indicates bus activity before a handler was registered.
	ErrNoHandler = errors.New("no handler registered")

	// ErrWriteTimeout indicates the reply could not be queued in time.
	ErrWriteTimeout = errors.New("write timeout")
)

// Handler receives transaction callbacks from a Target.
//
// Both methods run in the driver's callback context: they must not block
// (beyond a bounded reply write) and must not log or allocate.
type Handler interface {
	// OnReceive is called when the controller has written data to the target.
	// It reports whether a notification was handed to the consumer.
	OnReceive(data []byte) bool

	// OnRequest is called when the controller reads from the target. The
	// handler must answer through Target.Write before returning. A non-nil
	// error is fatal to the target.
	OnRequest() (bool, error)
}

// Target is an I2C peripheral in target mode.
type Target interface {
	// Configure applies the bus configuration.
	Configure(cfg Config) error

	// Register binds the transaction callbacks.
	Register(h Handler) error

	// Write queues buf as the reply to the current read request, waiting at
	// most timeout. It returns the number of bytes accepted.
	Write(buf []byte, timeout time.Duration) (int, error)
}

// Server is implemented by targets that need an explicit event pump.
// Serve blocks until ctx is done or a fatal error occurs.
type Server interface {
	Serve(ctx context.Context) error
}

// Open configures t and registers h on it.
func Open(t Target, cfg Config, h Handler) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := t.Configure(cfg); err != nil {
		return fmt.Errorf("Configure failed: %w", err)
	}
	if err := t.Register(h); err != nil {
		return fmt.Errorf("Register failed: %w", err)
	}
	return nil
}

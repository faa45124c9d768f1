package mcu

import (
	"fmt"

	"github.com/binkynet/BinkyHardware/I2CResponder/bus"
)

// checkConfig rejects settings the TinyGo peripheral cannot apply.
//
// Port is not read here: the caller picks the machine.I2C instance. The
// peripheral has fixed hardware FIFOs, so SendBufDepth is not applied;
// ReceiveBufDepth sizes the buffer passed to WaitForEvent.
func checkConfig(cfg bus.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.AddressWidth != bus.Address7Bit {
		return fmt.Errorf("only 7 bit addressing is supported: %w", bus.ErrInvalidConfig)
	}
	if cfg.Clock != bus.ClockDefault {
		return fmt.Errorf("clock source %s is not supported: %w", cfg.Clock, bus.ErrInvalidConfig)
	}
	return nil
}

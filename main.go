//go:build tinygo

package main

import (
	"context"
	"image/color"
	"machine"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/drivers/ws2812"

	"github.com/binkynet/BinkyHardware/I2CResponder/activity"
	"github.com/binkynet/BinkyHardware/I2CResponder/bus"
	"github.com/binkynet/BinkyHardware/I2CResponder/bus/mcu"
	"github.com/binkynet/BinkyHardware/I2CResponder/config"
	"github.com/binkynet/BinkyHardware/I2CResponder/logging"
	"github.com/binkynet/BinkyHardware/I2CResponder/responder"
)

var (
	// Color scheme
	colorBoot        = color.RGBA{R: 255, G: 165, B: 0}
	colorConfigError = color.RGBA{R: 96, G: 0, B: 96}
	colorInitError   = color.RGBA{R: 96, G: 0, B: 0}
	colorRunning     = color.RGBA{R: 0, G: 96, B: 0}
	colorReplyFault  = color.RGBA{R: 245, G: 0, B: 0}
)

const (
	// Target side I2C pins
	i2cSDA = machine.GPIO2
	i2cSCL = machine.GPIO3
)

func main() {
	// Give a serial console time to attach
	time.Sleep(time.Second * 2)

	// Configure neopixel
	machine.NEOPIXEL.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led := ws2812.New(machine.NEOPIXEL)
	led.WriteColors([]color.RGBA{colorBoot})

	cfg := config.Default()
	cfg.Bus.Port = 1
	cfg.Bus.SDA = uint8(i2cSDA)
	cfg.Bus.SCL = uint8(i2cSCL)

	log := logging.New(machine.Serial, logging.Level(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		halt(led, colorConfigError, log, err, "Invalid configuration")
	}

	opts := cfg.ResponderOptions()
	opts.Logger = log
	if cfg.ActivityEnabled {
		monitor, err := activity.New(cfg.Activity)
		if err != nil {
			halt(led, colorConfigError, log, err, "Invalid activity monitor configuration")
		}
		opts.Monitor = monitor
	}

	log.Info().Msg("I2C initializing.")
	target := mcu.New(i2cByPort(cfg.Bus.Port))
	r, err := responder.New(target, opts)
	if err != nil {
		halt(led, colorInitError, log, err, "Responder creation failed")
	}
	if err := bus.Open(target, cfg.Bus, r); err != nil {
		halt(led, colorInitError, log, err, "I2C target setup failed")
	}
	log.Info().Uint16("address", cfg.Bus.Address).Msg("I2C initialized.")

	ctx := context.Background()
	go r.Run(ctx)

	// Set led to running state
	led.WriteColors([]color.RGBA{colorRunning})

	if err := target.Serve(ctx); err != nil {
		halt(led, colorReplyFault, log, err, "I2C target stopped")
	}
}

// Select the peripheral for the given port.
func i2cByPort(port uint8) *machine.I2C {
	if port == 0 {
		return machine.I2C0
	}
	return machine.I2C1
}

// Report a fatal error and stop the device.
func halt(led ws2812.Device, c color.RGBA, log zerolog.Logger, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	led.WriteColors([]color.RGBA{c})
	for {
		time.Sleep(time.Minute)
	}
}

//go:build !tinygo

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/binkynet/BinkyHardware/I2CResponder/bus"
	"github.com/binkynet/BinkyHardware/I2CResponder/responder"
)

type fileConfig struct {
	LogLevel  string            `toml:"log_level"`
	Bus       fileBusConfig     `toml:"bus"`
	Responder fileRespondConfig `toml:"responder"`
	Activity  fileActivity      `toml:"activity"`
}

type fileBusConfig struct {
	Port            uint8  `toml:"port"`
	SDA             uint8  `toml:"sda"`
	SCL             uint8  `toml:"scl"`
	Clock           string `toml:"clock"`
	SendBufDepth    uint32 `toml:"send_buf_depth"`
	ReceiveBufDepth uint32 `toml:"receive_buf_depth"`
	Address         uint16 `toml:"address"`
	AddressBits     uint8  `toml:"address_bits"`
}

type fileRespondConfig struct {
	QueueDepth      int    `toml:"queue_depth"`
	PollInterval    string `toml:"poll_interval"`
	WriteTimeout    string `toml:"write_timeout"`
	InitialSelector uint8  `toml:"initial_selector"`
	ReplyTable      []int  `toml:"reply_table"`
}

type fileActivity struct {
	Enabled   bool    `toml:"enabled"`
	Lag       int     `toml:"lag"`
	Threshold float64 `toml:"threshold"`
	Influence float64 `toml:"influence"`
	MinDelta  float64 `toml:"min_delta"`
	Window    string  `toml:"window"`
}

// Load reads a TOML file on top of Default. Only keys present in the file
// override defaults.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(Default(), raw, meta)
}

// Parse reads TOML text on top of Default.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(Default(), raw, meta)
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("bus", "port") {
		cfg.Bus.Port = raw.Bus.Port
	}
	if meta.IsDefined("bus", "sda") {
		cfg.Bus.SDA = raw.Bus.SDA
	}
	if meta.IsDefined("bus", "scl") {
		cfg.Bus.SCL = raw.Bus.SCL
	}
	if meta.IsDefined("bus", "clock") {
		clock, err := parseClock(raw.Bus.Clock)
		if err != nil {
			return Config{}, err
		}
		cfg.Bus.Clock = clock
	}
	if meta.IsDefined("bus", "send_buf_depth") {
		cfg.Bus.SendBufDepth = raw.Bus.SendBufDepth
	}
	if meta.IsDefined("bus", "receive_buf_depth") {
		cfg.Bus.ReceiveBufDepth = raw.Bus.ReceiveBufDepth
	}
	if meta.IsDefined("bus", "address") {
		cfg.Bus.Address = raw.Bus.Address
	}
	if meta.IsDefined("bus", "address_bits") {
		cfg.Bus.AddressWidth = bus.AddressWidth(raw.Bus.AddressBits)
	}

	if meta.IsDefined("responder", "queue_depth") {
		cfg.QueueDepth = raw.Responder.QueueDepth
	}
	if meta.IsDefined("responder", "poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Responder.PollInterval))
		if err != nil {
			return Config{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if meta.IsDefined("responder", "write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Responder.WriteTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.WriteTimeout = d
	}
	if meta.IsDefined("responder", "initial_selector") {
		cfg.InitialSelector = raw.Responder.InitialSelector
	}
	if meta.IsDefined("responder", "reply_table") {
		if len(raw.Responder.ReplyTable) != responder.TableSize {
			return Config{}, fmt.Errorf("reply_table must have %d entries, got %d", responder.TableSize, len(raw.Responder.ReplyTable))
		}
		for i, v := range raw.Responder.ReplyTable {
			if v < 0 || v > 0xff {
				return Config{}, fmt.Errorf("reply_table[%d] = %d is not a byte", i, v)
			}
			cfg.ReplyTable[i] = byte(v)
		}
	}

	if meta.IsDefined("activity", "enabled") {
		cfg.ActivityEnabled = raw.Activity.Enabled
	}
	if meta.IsDefined("activity", "lag") {
		cfg.Activity.Lag = raw.Activity.Lag
	}
	if meta.IsDefined("activity", "threshold") {
		cfg.Activity.Threshold = raw.Activity.Threshold
	}
	if meta.IsDefined("activity", "influence") {
		cfg.Activity.Influence = raw.Activity.Influence
	}
	if meta.IsDefined("activity", "min_delta") {
		cfg.Activity.MinDelta = raw.Activity.MinDelta
	}
	if meta.IsDefined("activity", "window") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Activity.Window))
		if err != nil {
			return Config{}, fmt.Errorf("parse activity window: %w", err)
		}
		cfg.ActivityWindow = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseClock(raw string) (bus.ClockSource, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "default":
		return bus.ClockDefault, nil
	case "apb":
		return bus.ClockAPB, nil
	case "xtal":
		return bus.ClockXTAL, nil
	default:
		return 0, fmt.Errorf("unknown clock source %q", raw)
	}
}

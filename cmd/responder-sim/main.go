// Package main implements an interactive bus controller for exercising the
// responder without hardware.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertbit/grumble"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/binkynet/BinkyHardware/I2CResponder/activity"
	"github.com/binkynet/BinkyHardware/I2CResponder/bus"
	"github.com/binkynet/BinkyHardware/I2CResponder/bus/fifo"
	"github.com/binkynet/BinkyHardware/I2CResponder/config"
	"github.com/binkynet/BinkyHardware/I2CResponder/logging"
	"github.com/binkynet/BinkyHardware/I2CResponder/responder"
)

// Simulator wires a responder to an in-memory bus.
type Simulator struct {
	ID      uuid.UUID
	Config  config.Config
	Target  *fifo.Target
	Ctrl    *fifo.Controller
	Resp    *responder.Responder
	Monitor *activity.Monitor

	cancel   context.CancelFunc
	done     chan error
	loopDone chan error
}

// NewSimulator creates the responder and opens the simulated bus.
func NewSimulator(cfg config.Config, logger zerolog.Logger) (*Simulator, error) {
	id := uuid.New()
	logger = logger.With().Str("session", id.String()).Logger()

	opts := cfg.ResponderOptions()
	opts.Logger = logger
	var monitor *activity.Monitor
	if cfg.ActivityEnabled {
		var err error
		monitor, err = activity.New(cfg.Activity)
		if err != nil {
			return nil, fmt.Errorf("activity.New failed: %w", err)
		}
		opts.Monitor = monitor
	}

	target := fifo.New()
	resp, err := responder.New(target, opts)
	if err != nil {
		return nil, fmt.Errorf("responder.New failed: %w", err)
	}
	if err := bus.Open(target, cfg.Bus, resp); err != nil {
		return nil, fmt.Errorf("bus.Open failed: %w", err)
	}
	return &Simulator{
		ID:      id,
		Config:  cfg,
		Target:  target,
		Ctrl:    fifo.NewController(target),
		Resp:    resp,
		Monitor: monitor,
	}, nil
}

// Start runs the event loop and the target in the background.
func (s *Simulator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	s.loopDone = make(chan error, 1)
	go func() {
		s.loopDone <- s.Resp.Run(ctx)
	}()
	go func() {
		err := s.Target.Serve(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Target stopped")
		}
		s.done <- err
	}()
}

// Stop ends the background work and waits for the event loop to return.
// It returns the event loop result, context.Canceled on a clean stop.
func (s *Simulator) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	err := <-s.loopDone
	s.cancel = nil
	return err
}

// Exchange writes cmd and reads back the reply.
func (s *Simulator) Exchange(cmd byte) (byte, error) {
	addr := s.Config.Bus.Address
	if err := s.Ctrl.WriteCommand(addr, cmd); err != nil {
		return 0, fmt.Errorf("write 0x%02x: %w", cmd, err)
	}
	reply, err := s.Ctrl.ReadReply(addr)
	if err != nil {
		return 0, fmt.Errorf("read after 0x%02x: %w", cmd, err)
	}
	return reply, nil
}

// parseByte accepts decimal, 0x hex, 0o octal or 0b binary byte values.
func parseByte(raw string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", raw)
	}
	return byte(v), nil
}

var sim *Simulator

// AddCommands registers the controller commands.
func AddCommands(app *grumble.App) {
	app.AddCommand(&grumble.Command{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "write a command byte to the responder",
		Args: func(a *grumble.Args) {
			a.String("byte", "command byte, e.g. 0xDD")
		},
		Run: func(c *grumble.Context) error {
			cmd, err := parseByte(c.Args.String("byte"))
			if err != nil {
				return err
			}
			if err := sim.Ctrl.WriteCommand(sim.Config.Bus.Address, cmd); err != nil {
				log.Error().Err(err).Msg("Write failed")
			}
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "read one reply byte from the responder",
		Run: func(c *grumble.Context) error {
			reply, err := sim.Ctrl.ReadReply(sim.Config.Bus.Address)
			if err != nil {
				log.Error().Err(err).Msg("Read failed")
				return nil
			}
			c.App.Printf("0x%02x\n", reply)
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name: "script",
		Help: "write each command byte followed by a read",
		Args: func(a *grumble.Args) {
			a.StringList("bytes", "command bytes")
		},
		Run: func(c *grumble.Context) error {
			var rows []exchange
			for _, raw := range c.Args.StringList("bytes") {
				cmd, err := parseByte(raw)
				if err != nil {
					return err
				}
				reply, err := sim.Exchange(cmd)
				if err != nil {
					log.Error().Err(err).Msg("Exchange failed")
					break
				}
				rows = append(rows, exchange{Command: cmd, Reply: reply})
			}
			c.App.Println(RenderExchanges(rows))
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name: "table",
		Help: "show the reply table and the current selection",
		Run: func(c *grumble.Context) error {
			c.App.Println(RenderReplyTable(sim.Resp.Table(), sim.Resp.State().Selector()))
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name: "stats",
		Help: "show responder counters",
		Run: func(c *grumble.Context) error {
			c.App.Println(RenderStats(sim.Resp.Stats(), sim.Target.Written(), sim.Monitor))
			return nil
		},
	})
}

func main() {
	// Set up logging
	log.Logger = logging.NewConsole(os.Stdout, zerolog.InfoLevel)

	app := setupCLI()
	AddCommands(app)

	if err := app.Run(); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

func setupCLI() *grumble.App {
	var histFile string
	home, err := os.UserHomeDir()
	if err != nil {
		histFile = ".responder-sim"
	} else {
		histFile = filepath.Join(home, ".responder-sim")
	}

	app := grumble.New(&grumble.Config{
		Name:        "responder-sim",
		Description: "simulated I2C bus controller for the command responder",
		HistoryFile: histFile,
		Prompt:      "i2c » ",
		Flags: func(f *grumble.Flags) {
			f.String("c", "config", "", "path to a TOML configuration file")
			f.String("l", "log-level", "", "log level (overrides the configuration)")
		},
	})

	app.OnInit(func(a *grumble.App, flags grumble.FlagMap) error {
		var err error
		cfg := config.Default()
		if path := flags.String("config"); path != "" {
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
		}
		if lvl := flags.String("log-level"); lvl != "" {
			cfg.LogLevel = lvl
		}
		log.Logger = logging.NewConsole(os.Stdout, logging.Level(cfg.LogLevel))

		sim, err = NewSimulator(cfg, log.Logger)
		if err != nil {
			return err
		}
		sim.Start()
		log.Info().
			Str("session", sim.ID.String()).
			Str("address", fmt.Sprintf("0x%02x", cfg.Bus.Address)).
			Msg("Responder ready")
		return nil
	})

	app.OnClose(func() error {
		if sim != nil {
			if err := sim.Stop(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}
		return nil
	})

	return app
}

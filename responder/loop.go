package responder

import (
	"context"
	"fmt"
	"time"
)

// Run consumes notifications from the transaction callbacks and reports
// them. It waits at most the poll interval for each event and returns only
// when ctx is done.
func (r *Responder) Run(ctx context.Context) error {
	r.log.Info().
		Int("queue_depth", r.events.Cap()).
		Dur("poll_interval", r.opts.PollInterval).
		Msg("Event loop started")

	windowStart := time.Now()
	windowCount := 0
	for {
		if err := ctx.Err(); err != nil {
			r.log.Info().Msg("Event loop stopped")
			return err
		}
		if evt, ok := r.events.Receive(ctx, r.opts.PollInterval); ok {
			r.report(evt)
			windowCount++
		}
		if r.opts.Monitor != nil && time.Since(windowStart) >= r.opts.MonitorWindow {
			if r.opts.Monitor.Observe(windowCount) {
				r.log.Warn().
					Int("events", windowCount).
					Dur("window", r.opts.MonitorWindow).
					Uint64("dropped", r.events.Dropped()).
					Msg("Bus activity burst")
			}
			windowStart = time.Now()
			windowCount = 0
		}
	}
}

// report logs a single event. The transmitted byte is looked up again from
// the current selector; no command can arrive between a read and its
// notification on a half-duplex bus.
func (r *Responder) report(evt Event) {
	switch evt {
	case EventReceived:
		r.log.Info().
			Str("command", hexByte(r.state.LastCommand())).
			Msg("Command data received")
	case EventTransmitted:
		r.log.Warn().
			Str("reply", hexByte(r.CurrentReply())).
			Msg("I2C replied data")
	default:
		r.log.Error().Stringer("event", evt).Msg("Unknown event")
	}
}

func hexByte(b byte) string {
	return fmt.Sprintf("0x%02x", b)
}

// Package activity flags bursts in the rate of bus transactions.
//
// Event counts per window are fed to a smoothed z-score peak detector. The
// first Lag windows form the baseline; afterwards a window is a burst when
// the detector signals upward and the count exceeds the mean of the last Lag
// windows by at least MinDelta events. MinDelta keeps a zero-variance
// baseline, such as an idle bus at boot, from turning every busy window into
// a burst.
package activity

import (
	"fmt"
	"sync/atomic"

	"github.com/MicahParks/peakdetect"
)

// Config tunes a Monitor.
type Config struct {
	Lag       int     // Windows used as baseline
	Threshold float64 // Standard deviations that count as a burst
	Influence float64 // Weight of a burst window on the baseline (0..1)
	MinDelta  float64 // Events above the recent mean a burst needs at least
}

// DefaultConfig returns the monitor settings used by the responder.
func DefaultConfig() Config {
	return Config{
		Lag:       10,
		Threshold: 3.5,
		Influence: 0.1,
		MinDelta:  8,
	}
}

// Validate checks the monitor settings.
func (c Config) Validate() error {
	if c.Lag < 2 {
		return fmt.Errorf("lag must be at least 2, got %d", c.Lag)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %v", c.Threshold)
	}
	if c.Influence < 0 || c.Influence > 1 {
		return fmt.Errorf("influence must be in [0,1], got %v", c.Influence)
	}
	if c.MinDelta < 0 {
		return fmt.Errorf("min delta must not be negative, got %v", c.MinDelta)
	}
	return nil
}

// Monitor observes event counts. Observe must only be called from a single
// goroutine (the event loop); Ready and Bursts may be called from any.
type Monitor struct {
	cfg      Config
	baseline []float64
	detector peakdetect.PeakDetector

	// Ring of the last Lag counts
	recent []float64
	next   int
	sum    float64

	ready  atomic.Bool
	bursts atomic.Uint64
}

// New creates a monitor.
func New(cfg Config) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:      cfg,
		baseline: make([]float64, 0, cfg.Lag),
		recent:   make([]float64, 0, cfg.Lag),
	}, nil
}

// Observe records the event count of one window and reports whether it is a
// burst. Always false while the baseline is being collected.
func (m *Monitor) Observe(count int) bool {
	value := float64(count)
	mean := m.mean()
	m.remember(value)

	if m.detector == nil {
		m.baseline = append(m.baseline, value)
		if len(m.baseline) < m.cfg.Lag {
			return false
		}
		detector := peakdetect.NewPeakDetector()
		if err := detector.Initialize(m.cfg.Influence, m.cfg.Threshold, m.baseline); err != nil {
			// Start over with a fresh baseline
			m.baseline = m.baseline[:0]
			return false
		}
		m.detector = detector
		m.ready.Store(true)
		return false
	}
	if m.detector.Next(value) != peakdetect.SignalPositive {
		return false
	}
	if value-mean < m.cfg.MinDelta {
		return false
	}
	m.bursts.Add(1)
	return true
}

// mean returns the mean of the remembered counts.
func (m *Monitor) mean() float64 {
	if len(m.recent) == 0 {
		return 0
	}
	return m.sum / float64(len(m.recent))
}

func (m *Monitor) remember(value float64) {
	if len(m.recent) < m.cfg.Lag {
		m.recent = append(m.recent, value)
		m.sum += value
		return
	}
	m.sum += value - m.recent[m.next]
	m.recent[m.next] = value
	m.next = (m.next + 1) % m.cfg.Lag
}

// Ready reports whether the baseline has been collected.
func (m *Monitor) Ready() bool {
	return m.ready.Load()
}

// Bursts returns the number of bursts detected.
func (m *Monitor) Bursts() uint64 {
	return m.bursts.Load()
}

// Package pacing implements the Heartbeat Pacing Controller (§4.5): a pure,
// unit-testable function from per-node signals to the next heartbeat
// interval, bounded to a configured [min, max] window. The exact signal-to-
// interval formula is an Open Question per §9 ("calculateHeartBeatInterval
// ... is opaque"); this implementation follows the signal the NodeRecord
// actually exposes (PendingUpdateCount, via structs.NodeStatus) and is kept
// pure so tests can exercise the bound without a clock or a registry.
package pacing

import (
	"time"
)

// Config is HeartbeatPacing (§3): validated once on load and again on every
// admin reload.
type Config struct {
	Default        time.Duration
	Min            time.Duration
	Max            time.Duration
	SpeedupFactor  float64
	SlowdownFactor float64
	ScalingEnabled bool
}

// DefaultInterval is the compile-time fallback used when a loaded Default
// is non-positive (§4.5 validation rule 1).
const DefaultInterval = 10 * time.Second

// Validate applies §4.5's three validation rules in order, mutating c to
// the corrected values and returning whether any correction was made (the
// caller logs a warning when true, per §4.5's "fall back to defaults with
// a warning").
func (c *Config) Validate() (corrected bool) {
	if c.Default <= 0 {
		c.Default = DefaultInterval
		corrected = true
	}
	if !(c.Min > 0 && c.Min <= c.Default && c.Default <= c.Max) {
		c.Min = c.Default
		c.Max = c.Default
		corrected = true
	}
	if c.SpeedupFactor < 0 || c.SlowdownFactor < 0 {
		c.SpeedupFactor = 1
		c.SlowdownFactor = 1
		corrected = true
	}
	return corrected
}

// Controller computes per-node intervals from a Config that may be
// hot-swapped; callers pass the Config snapshot they read under the
// config manager's read guard, so Controller itself holds no lock and is
// safe to share.
type Controller struct{}

// NewController returns a ready, stateless Controller.
func NewController() *Controller {
	return &Controller{}
}

// NextInterval is the pure function §4.5 calls for: given the validated
// config and the pending-update signal from the node's last NodeStatus, it
// returns a duration clamped to [cfg.Min, cfg.Max]. When scaling is
// disabled it always returns cfg.Default.
func (c *Controller) NextInterval(cfg Config, pendingUpdateCount int) time.Duration {
	if !cfg.ScalingEnabled {
		return cfg.Default
	}

	interval := float64(cfg.Default)
	switch {
	case pendingUpdateCount > 0:
		// Agent has work queued: speed up (shrink the interval) in
		// proportion to how much is pending, bounded below by Min.
		factor := cfg.SpeedupFactor
		if factor <= 0 {
			factor = 1
		}
		shrink := 1.0 / (1.0 + factor*float64(pendingUpdateCount))
		interval = float64(cfg.Default) * shrink
	case pendingUpdateCount == 0:
		// Agent is idle: slow down (grow the interval), bounded above
		// by Max.
		factor := cfg.SlowdownFactor
		if factor <= 0 {
			factor = 1
		}
		interval = float64(cfg.Default) * (1.0 + factor)
	}

	d := time.Duration(interval)
	if d < cfg.Min {
		d = cfg.Min
	}
	if d > cfg.Max {
		d = cfg.Max
	}
	return d
}

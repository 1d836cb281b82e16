package heater

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// MillivoltsPerSecond converts a ramp rate given in mV/s into output units
// (V) per second.
func MillivoltsPerSecond(v float64) float64 {
	return v / 1000
}

// State is a snapshot of the heater.
type State struct {
	Output  float64
	Speed   float64 // output units per second
	Enabled bool
}

// Heater is the ramped output setpoint. It is safe for concurrent use: the
// loop advances it on every tick while callers enable, disable, reset and
// change speed from outside.
type Heater struct {
	mu      sync.Mutex
	output  float64
	speed   float64
	enabled bool
	anchor  time.Time // zero when the next tick must apply no delta
	dirty   bool      // output changed outside a tick and must be written
}

// New creates a disabled heater at zero output ramping at speed output units
// per second once enabled.
func New(speed float64) *Heater {
	if speed < 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		speed = 0
	}
	return &Heater{speed: speed}
}

// Enable starts ramping from the next tick on.
func (h *Heater) Enable() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = true
	h.anchor = time.Time{}
}

// Disable freezes the setpoint.
func (h *Heater) Disable() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = false
	h.anchor = time.Time{}
}

// Reset zeroes the setpoint. The zero is written on the next tick.
func (h *Heater) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.output = 0
	h.anchor = time.Time{}
	h.dirty = true
}

func (h *Heater) markDirty() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirty = true
}

// SetSpeed changes the ramp rate in output units per second. It applies from
// the next tick.
func (h *Heater) SetSpeed(speed float64) error {
	if speed < 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("invalid heater speed %v", speed)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.speed = speed
	return nil
}

// State returns a consistent snapshot.
func (h *Heater) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return State{Output: h.output, Speed: h.speed, Enabled: h.enabled}
}

// Output returns the current setpoint.
func (h *Heater) Output() float64 {
	return h.State().Output
}

// Enabled reports whether the heater is ramping.
func (h *Heater) Enabled() bool {
	return h.State().Enabled
}

// Advance moves the setpoint to now. It returns the setpoint and whether it
// must be written to the output. The first call after Enable, Disable or
// Reset applies no delta.
func (h *Heater) Advance(now time.Time) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	write := h.dirty
	h.dirty = false
	if !h.enabled {
		return h.output, write
	}

	if !h.anchor.IsZero() {
		if dt := now.Sub(h.anchor).Seconds(); dt > 0 {
			h.output += h.speed * dt
		}
	}
	h.anchor = now
	return h.output, true
}

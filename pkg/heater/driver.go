package heater

import (
	"math"
	"time"

	"github.com/ioyurev/vta-collection/pkg/adam"
)

// Driver performs the hardware side of a tick.
type Driver interface {
	// Ready returns an error when the driver cannot tick yet.
	Ready() error
	// ReadEMF reads one raw thermocouple sample in mV.
	ReadEMF() (float64, error)
	// WriteOutput sets the heater supply output.
	WriteOutput(value float64) error
}

// Ensure the drivers implement Driver.
var (
	_ Driver = (*HardwareDriver)(nil)
	_ Driver = (*SyntheticDriver)(nil)
)

// HardwareDriver ticks against discovered ADAM modules.
type HardwareDriver struct {
	hw *adam.Hardware
}

// NewHardwareDriver wraps hw. hw must outlive the loop.
func NewHardwareDriver(hw *adam.Hardware) *HardwareDriver {
	return &HardwareDriver{hw: hw}
}

// Ready returns adam.ErrNotFound until discovery succeeded.
func (d *HardwareDriver) Ready() error { return d.hw.Ready() }

// ReadEMF reads the input module.
func (d *HardwareDriver) ReadEMF() (float64, error) { return d.hw.Input.ReadValue() }

// WriteOutput writes the output module.
func (d *HardwareDriver) WriteOutput(value float64) error { return d.hw.Output.WriteOutput(value) }

// DefaultSyntheticInterval paces the synthetic driver.
const DefaultSyntheticInterval = 100 * time.Millisecond

// SyntheticDriver runs without hardware: every read waits one interval and
// returns sin(t). Writes are discarded.
type SyntheticDriver struct {
	interval time.Duration
	start    time.Time
	now      func() time.Time
	sleep    func(time.Duration)
}

// NewSyntheticDriver creates a synthetic driver. A zero interval uses
// DefaultSyntheticInterval.
func NewSyntheticDriver(interval time.Duration) *SyntheticDriver {
	if interval <= 0 {
		interval = DefaultSyntheticInterval
	}
	return &SyntheticDriver{
		interval: interval,
		start:    time.Now(),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Ready always succeeds.
func (d *SyntheticDriver) Ready() error { return nil }

// ReadEMF waits one interval and returns the sine of the elapsed seconds.
func (d *SyntheticDriver) ReadEMF() (float64, error) {
	d.sleep(d.interval)
	return math.Sin(d.now().Sub(d.start).Seconds()), nil
}

// WriteOutput discards value.
func (d *SyntheticDriver) WriteOutput(float64) error { return nil }

package heater

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMillivoltsPerSecond(t *testing.T) {
	assert.InDelta(t, 0.005, MillivoltsPerSecond(5), 1e-15)
	assert.Equal(t, float64(0), MillivoltsPerSecond(0))
}

func TestHeater_AntiKick(t *testing.T) {
	h := New(1)
	t0 := time.Unix(1000, 0)

	// Disabled: the setpoint does not move and nothing needs writing.
	out, write := h.Advance(t0)
	assert.Equal(t, float64(0), out)
	assert.False(t, write)

	h.Enable()
	out, write = h.Advance(t0.Add(time.Hour))
	assert.Equal(t, float64(0), out, "first tick after enable applies no delta")
	assert.True(t, write)

	out, _ = h.Advance(t0.Add(time.Hour + 2*time.Second))
	assert.InDelta(t, 2.0, out, 1e-9)
}

func TestHeater_RampSum(t *testing.T) {
	const speed = 0.005
	h := New(speed)
	h.Enable()

	now := time.Unix(0, 0)
	h.Advance(now)

	deltas := []time.Duration{
		100 * time.Millisecond,
		97 * time.Millisecond,
		250 * time.Millisecond,
		1 * time.Second,
		3 * time.Millisecond,
	}
	var total float64
	for _, d := range deltas {
		now = now.Add(d)
		total += d.Seconds()
		h.Advance(now)
	}
	assert.InDelta(t, speed*total, h.Output(), 1e-12)
}

func TestHeater_DisableFreezes(t *testing.T) {
	h := New(1)
	now := time.Unix(0, 0)
	h.Enable()
	h.Advance(now)
	h.Advance(now.Add(time.Second))
	require.InDelta(t, 1.0, h.Output(), 1e-9)

	h.Disable()
	out, write := h.Advance(now.Add(10 * time.Second))
	assert.InDelta(t, 1.0, out, 1e-9)
	assert.False(t, write)

	// Re-enabling after a long pause does not apply the stale delta.
	h.Enable()
	out, _ = h.Advance(now.Add(100 * time.Second))
	assert.InDelta(t, 1.0, out, 1e-9)
	out, _ = h.Advance(now.Add(101 * time.Second))
	assert.InDelta(t, 2.0, out, 1e-9)
}

func TestHeater_Reset(t *testing.T) {
	h := New(1)
	now := time.Unix(0, 0)
	h.Enable()
	h.Advance(now)
	h.Advance(now.Add(3 * time.Second))

	h.Disable()
	h.Reset()
	assert.Equal(t, float64(0), h.Output())

	// The zero is written once by the next tick even though heating is off.
	out, write := h.Advance(now.Add(4 * time.Second))
	assert.Equal(t, float64(0), out)
	assert.True(t, write)
	_, write = h.Advance(now.Add(5 * time.Second))
	assert.False(t, write)

	h.Enable()
	out, _ = h.Advance(now.Add(50 * time.Second))
	assert.Equal(t, float64(0), out, "first tick after reset applies no delta")
}

func TestHeater_SetSpeed(t *testing.T) {
	h := New(0)

	tests := []struct {
		name    string
		speed   float64
		wantErr bool
	}{
		{name: "zero", speed: 0},
		{name: "positive", speed: 0.01},
		{name: "negative", speed: -1, wantErr: true},
		{name: "NaN", speed: math.NaN(), wantErr: true},
		{name: "infinite", speed: math.Inf(1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.State().Speed
			err := h.SetSpeed(tt.speed)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, before, h.State().Speed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.speed, h.State().Speed)
		})
	}
}

func TestHeater_SpeedChangeAppliesNextTick(t *testing.T) {
	h := New(1)
	now := time.Unix(0, 0)
	h.Enable()
	h.Advance(now)
	h.Advance(now.Add(time.Second))

	require.NoError(t, h.SetSpeed(2))
	h.Advance(now.Add(2 * time.Second))
	assert.InDelta(t, 3.0, h.Output(), 1e-9)
}

func TestNew_InvalidSpeed(t *testing.T) {
	assert.Equal(t, float64(0), New(-5).State().Speed)
	assert.Equal(t, float64(0), New(math.NaN()).State().Speed)
}

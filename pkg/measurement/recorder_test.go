package measurement

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ioyurev/vta-collection/pkg/calibration"
	"github.com/ioyurev/vta-collection/pkg/heater"
	"github.com/ioyurev/vta-collection/pkg/thermo"
)

// linearChain converts 1 mV to 100 °C with a 0 °C cold junction.
func linearChain(t *testing.T, cal thermo.Corrector) *thermo.Chain {
	t.Helper()
	tc, err := thermo.New([]float64{0, 100}, thermo.DefaultSearch)
	require.NoError(t, err)
	cjc, err := thermo.NewCompensator(tc, thermo.ConstantTemperature(0))
	require.NoError(t, err)
	return thermo.NewChain(tc, cjc, cal)
}

func point(base time.Time, t1, emf, t2, output float64) heater.DataPoint {
	return heater.DataPoint{
		T1:     base.Add(time.Duration(t1 * float64(time.Second))),
		EMF:    emf,
		T2:     base.Add(time.Duration(t2 * float64(time.Second))),
		Output: output,
	}
}

func TestRecorder_IgnoresUntilEnabled(t *testing.T) {
	r := NewRecorder(nil, nil)
	base := time.Now()

	_, ok := r.Add(point(base, 0, 1, 0.01, 0))
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	r.Enable()
	assert.True(t, r.Recording())
	s, ok := r.Add(point(base, 5, 1.5, 5.25, 0.1))
	require.True(t, ok)

	// The first recorded point is the origin.
	assert.Equal(t, float64(0), s.Time)
	assert.InDelta(t, 0.25, s.OutputTime, 1e-9)
	assert.True(t, math.IsNaN(s.Temperature))

	s, ok = r.Add(point(base, 6, 1.6, 6.5, 0.2))
	require.True(t, ok)
	assert.InDelta(t, 1, s.Time, 1e-9)
	assert.InDelta(t, 1.5, s.OutputTime, 1e-9)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []float64{1.5, 1.6}, r.EMF().Y)
	assert.Equal(t, []float64{0.1, 0.2}, r.Output().Y)
	assert.Equal(t, 0, r.Temperature().Len(), "no chain, no temperature")

	r.Disable()
	_, ok = r.Add(point(base, 7, 1.7, 7, 0.3))
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len(), "disabling keeps the series")
}

func TestRecorder_Temperature(t *testing.T) {
	cal, err := calibration.New(calibration.Linear, []float64{0.01, 1}, "cal", "", nil)
	require.NoError(t, err)

	r := NewRecorder(linearChain(t, cal), nil)
	r.Enable()
	s, ok := r.Add(point(time.Now(), 0, 1, 0, 0))
	require.True(t, ok)

	// 1 mV is 100 °C, corrected by 0.01*100 + 1.
	assert.InDelta(t, 102, s.Temperature, 1e-3)
	temp := r.Temperature()
	assert.Equal(t, TemperatureLabel, temp.YLabel)
	require.Equal(t, 1, temp.Len())
	assert.InDelta(t, 102, temp.Y[0], 1e-3)

	r.SetChain(nil)
	s, _ = r.Add(point(time.Now(), 1, 1, 1, 0))
	assert.True(t, math.IsNaN(s.Temperature))
	assert.Equal(t, 1, r.Temperature().Len())
}

func TestRecorder_ClearResetsOrigin(t *testing.T) {
	r := NewRecorder(nil, nil)
	r.Enable()
	base := time.Now()
	r.Add(point(base, 0, 1, 0, 0))
	r.Add(point(base, 3, 1, 3, 0))

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.True(t, r.Recording())

	s, ok := r.Add(point(base, 10, 2, 10, 0))
	require.True(t, ok)
	assert.Equal(t, float64(0), s.Time)
}

func TestRecorder_SnapshotIsCopy(t *testing.T) {
	r := NewRecorder(nil, nil)
	r.Enable()
	r.Add(point(time.Now(), 0, 1, 0, 0))

	snap := r.EMF()
	snap.Y[0] = 99
	assert.Equal(t, []float64{1}, r.EMF().Y)
}

func TestRecorder_Converter(t *testing.T) {
	r := NewRecorder(nil, nil)
	r.Enable()

	in := make(chan heater.Event, 4)
	base := time.Now()
	p1 := point(base, 0, 1, 0, 0)
	p2 := point(base, 1, 2, 1, 0.1)
	in <- heater.Event{Point: &p1}
	in <- heater.Event{Err: errors.New("read failed")}
	in <- heater.Event{Point: &p2}
	close(in)

	var got []Sample
	for s := range r.Converter(10)(in) {
		got = append(got, s)
	}
	require.Len(t, got, 2)
	assert.Equal(t, float64(1), got[0].EMF)
	assert.Equal(t, float64(2), got[1].EMF)
	assert.Equal(t, 2, r.Len())
}

func TestRecorder_ConverterDropsWhenFull(t *testing.T) {
	r := NewRecorder(nil, nil)
	r.Enable()

	in := make(chan heater.Event, 5)
	base := time.Now()
	for i := 0; i < 5; i++ {
		p := point(base, float64(i), float64(i), float64(i), 0)
		in <- heater.Event{Point: &p}
	}
	close(in)

	out := r.Converter(1)(in)
	// Let the converter drain the input before reading.
	require.Eventually(t, func() bool { return r.Len() == 5 }, time.Second, time.Millisecond)

	var got int
	for range out {
		got++
	}
	assert.Equal(t, 1, got)
	assert.Equal(t, 5, r.Len(), "dropped samples stay recorded")
}

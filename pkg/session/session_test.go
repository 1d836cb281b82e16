package session

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ioyurev/vta-collection/pkg/adam"
	"github.com/ioyurev/vta-collection/pkg/calibration"
	"github.com/ioyurev/vta-collection/pkg/config"
	"github.com/ioyurev/vta-collection/pkg/measurement"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Serial.Port = "sim0"
	cfg.Serial.Candidates = []string{"sim1", "sim0"}
	cfg.Calibration.Directory = t.TempDir()
	cfg.Mock.Ports = []string{"sim1"}
	cfg.Mock.Interval = time.Millisecond
	return cfg
}

func newSimulated(t *testing.T, cfg *config.Config) (*Session, *adam.Simulator) {
	t.Helper()
	sim := adam.NewSimulator(&cfg.Mock, cfg.Modules.InputAddress, cfg.Modules.OutputAddress)
	s, err := New(cfg, WithTransport(sim), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, sim
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Modules.OutputAddress = cfg.Modules.InputAddress
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestSession_NotConnected(t *testing.T) {
	s, _ := newSimulated(t, testConfig(t))

	assert.Nil(t, s.Loop())
	assert.Nil(t, s.Hardware())
	assert.ErrorIs(t, s.NewRun(measurement.NewMetadata("s", "o")), ErrNotConnected)
	assert.ErrorIs(t, s.StartLoop(), ErrNotConnected)
	assert.ErrorIs(t, s.StartHeating(), ErrNotConnected)
	assert.ErrorIs(t, s.StopHeating(), ErrNotConnected)
	assert.ErrorIs(t, s.SetSpeed(5), ErrNotConnected)
	_, err := s.Archive()
	assert.ErrorIs(t, err, ErrNoRun)
	assert.NoError(t, s.StopLoop())
}

func TestSession_Connect(t *testing.T) {
	s, _ := newSimulated(t, testConfig(t))

	require.NoError(t, s.Connect())
	hw := s.Hardware()
	require.NotNil(t, hw)
	assert.Equal(t, "sim1", hw.Port())
	assert.Equal(t, "!014011", hw.Input.Name())
	assert.Equal(t, "!034021", hw.Output.Name())

	loop := s.Loop()
	require.NotNil(t, loop)
	require.NoError(t, s.Connect())
	assert.Same(t, loop, s.Loop(), "second connect is a no-op")
}

func TestSession_DeviceNotFound(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mock.Ports = []string{"elsewhere"}
	s, _ := newSimulated(t, cfg)

	err := s.Connect()
	var nf *adam.DeviceNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"sim0", "sim1"}, nf.Ports)
	assert.Nil(t, s.Loop())
	assert.Nil(t, s.Hardware())
}

func TestSession_Run(t *testing.T) {
	s, sim := newSimulated(t, testConfig(t))
	require.NoError(t, s.Connect())

	meta := measurement.NewMetadata("sample-1", "Operator")
	require.NoError(t, s.NewRun(meta))
	chain := s.Chain()
	require.NotNil(t, chain)
	assert.Equal(t, 25.0, chain.Compensator().Data().Temperature)
	assert.InDelta(t, 0.308, chain.Compensator().Data().EmfCold, 1e-3)

	require.NoError(t, s.StartLoop())
	require.NoError(t, s.StartLoop(), "second start is a no-op")
	require.NotNil(t, s.Samples())
	require.NoError(t, s.SetSpeed(1000))
	assert.Error(t, s.SetSpeed(-1))
	require.NoError(t, s.StartHeating())

	require.Eventually(t, func() bool {
		return s.Recorder().Len() >= 5 && sim.Setpoint() > 0
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, s.StopHeating())
	assert.False(t, s.Recorder().Recording())
	n := s.Recorder().Len()
	require.NoError(t, s.StopLoop())
	assert.Equal(t, float64(0), sim.Setpoint())
	assert.Nil(t, s.Samples())
	assert.Equal(t, n, s.Recorder().Len(), "stopped recording adds no points")
	assert.Greater(t, testutil.ToFloat64(s.metrics.Ticks), float64(0))

	temp := s.Recorder().Temperature()
	assert.Equal(t, n, temp.Len(), "a run records temperature")

	a, err := s.Archive()
	require.NoError(t, err)
	assert.Equal(t, meta.ID, a.Metadata.ID)
	assert.Equal(t, n, a.EMF.Len())
	assert.Nil(t, a.Calibration)
	assert.Equal(t, config.DefaultCoefficients, a.Thermocouple.Coefficients)
	require.NotNil(t, a.CJC)
	assert.Equal(t, 25.0, a.CJC.Temperature)

	dir := filepath.Join(t.TempDir(), "run")
	require.NoError(t, a.WriteDir(dir))
	_, err = os.Stat(filepath.Join(dir, measurement.DataFile))
	assert.NoError(t, err)
}

func TestSession_StartHeatingNeedsRun(t *testing.T) {
	s, _ := newSimulated(t, testConfig(t))
	require.NoError(t, s.Connect())
	assert.ErrorIs(t, s.StartHeating(), ErrNoRun)
}

func TestSession_ActiveCalibration(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calibration.Enabled = true
	s, _ := newSimulated(t, cfg)

	cal, err := calibration.New(calibration.Linear, []float64{0.01, -0.5}, "furnace", "", nil)
	require.NoError(t, err)
	require.NoError(t, s.Registry().Save(cal))
	require.NoError(t, s.Registry().SetActive("furnace"))

	require.NoError(t, s.Connect())
	require.NoError(t, s.NewRun(measurement.NewMetadata("s", "o")))

	a, err := s.Archive()
	require.NoError(t, err)
	require.NotNil(t, a.Calibration)
	assert.Equal(t, "furnace", a.Calibration.Name())

	raw := s.Thermocouple().Temperature(s.Chain().Compensator().Compensate(1))
	assert.InDelta(t, cal.Evaluate(raw), s.Chain().Temperature(1), 1e-9)
}

func TestSession_ActiveFromConfig(t *testing.T) {
	cfg := testConfig(t)
	s, _ := newSimulated(t, cfg)
	cal, err := calibration.New(calibration.Linear, []float64{0.01, 0}, "main", "", nil)
	require.NoError(t, err)
	require.NoError(t, s.Registry().Save(cal))
	require.NoError(t, s.Close())

	cfg.Calibration.Active = "main"
	reopened, err := New(cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Equal(t, "main", reopened.Registry().ActiveName())

	cfg.Calibration.Active = "missing"
	reopened, err = New(cfg)
	require.NoError(t, err, "a missing active calibration is only a warning")
	assert.Equal(t, "", reopened.Registry().ActiveName())
}

func TestSession_NoHardware(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mock.Enabled = true
	cfg.ColdJunction.Temperature = 20
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Connect())
	assert.Nil(t, s.Hardware())
	require.NoError(t, s.NewRun(measurement.NewMetadata("s", "o")))
	assert.Equal(t, 20.0, s.Chain().Compensator().Data().Temperature)

	require.NoError(t, s.StartLoop())
	require.NoError(t, s.StartHeating())

	select {
	case sample := <-s.Samples():
		assert.False(t, math.IsNaN(sample.Temperature), "temperature is recorded")
	case <-time.After(5 * time.Second):
		t.Fatal("no sample")
	}
	require.NoError(t, s.Close())
	assert.Nil(t, s.Loop())
}

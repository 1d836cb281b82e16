package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCalibration(t *testing.T, name, description string) *Calibration {
	t.Helper()
	cal, err := Build(name, description, Linear, scenario)
	require.NoError(t, err)
	return cal
}

func TestRegistry_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	r, err := OpenRegistry(dir, nil)
	require.NoError(t, err)
	assert.Empty(t, r.Names())

	require.NoError(t, r.Save(newCalibration(t, "furnace-b", "second")))
	require.NoError(t, r.Save(newCalibration(t, "furnace-a", "first")))
	assert.Equal(t, []string{"furnace-a", "furnace-b"}, r.Names())
	assert.FileExists(t, filepath.Join(dir, "calibrations", "furnace-a.json"))

	// A fresh registry over the same directory sees the stored calibrations.
	r2, err := OpenRegistry(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"furnace-a", "furnace-b"}, r2.Names())
	assert.Equal(t, "second", r2.Description("furnace-b"))
	assert.Equal(t, "", r2.Description("missing"))

	cal, err := r2.Load("furnace-a")
	require.NoError(t, err)
	assert.Equal(t, Linear, cal.Kind())
	assert.Len(t, cal.Standards(), 3)

	_, err = r2.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Active(t *testing.T) {
	r, err := OpenRegistry(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, r.Save(newCalibration(t, "main", "")))

	assert.True(t, r.Active().IsZero(), "no selection means no correction")
	assert.ErrorIs(t, r.SetActive("missing"), ErrNotFound)

	require.NoError(t, r.SetActive("main"))
	assert.Equal(t, "main", r.ActiveName())
	assert.Equal(t, "main", r.Active().Name())

	assert.ErrorIs(t, r.Delete("main"), ErrActive)
	assert.Equal(t, []string{"main"}, r.Names())

	require.NoError(t, r.SetActive(""))
	require.NoError(t, r.Delete("main"))
	assert.Empty(t, r.Names())
	assert.ErrorIs(t, r.Delete("main"), ErrNotFound)
}

func TestRegistry_BadNames(t *testing.T) {
	r, err := OpenRegistry(t.TempDir(), nil)
	require.NoError(t, err)

	for _, name := range []string{"", "../escape", `a\b`, ".."} {
		cal, err := New(Linear, []float64{0.1, 0}, name, "", nil)
		require.NoError(t, err)
		assert.Error(t, r.Save(cal), "name %q", name)
	}
}

func TestRegistry_SkipsInvalidDocuments(t *testing.T) {
	dir := t.TempDir()
	r, err := OpenRegistry(dir, nil)
	require.NoError(t, err)
	require.NoError(t, r.Save(newCalibration(t, "good", "")))

	bad := `{"calibration_type":"linear","coefficients":[1e999,0],"name":"bad"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calibrations", "bad.json"), []byte(bad), 0o644))
	unknown := `{"calibration_type":"cubic","coefficients":[1,0],"name":"unknown"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calibrations", "unknown.json"), []byte(unknown), 0o644))

	require.NoError(t, r.LoadAll())
	assert.Equal(t, []string{"good"}, r.Names())
}

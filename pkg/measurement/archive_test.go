package measurement

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ioyurev/vta-collection/pkg/calibration"
	"github.com/ioyurev/vta-collection/pkg/thermo"
)

type calibrations map[string]*calibration.Calibration

func (c calibrations) Get(name string) (*calibration.Calibration, bool) {
	cal, ok := c[name]
	return cal, ok
}

func testArchive(t *testing.T) *Archive {
	t.Helper()
	cal, err := calibration.New(calibration.Linear, []float64{0.01, -0.5}, "furnace", "after repair",
		[]calibration.Standard{{Name: "tin", Theoretical: 231.9, Experimental: 230}})
	require.NoError(t, err)

	emf := NewSeries("emf", EMFLabel)
	emf.Append(0, 0.5)
	emf.Append(0.1, 0.75)

	return &Archive{
		Metadata:     NewMetadata("sample-1", "Operator"),
		EMF:          emf,
		Calibration:  cal,
		Thermocouple: ThermocoupleData{Coefficients: []float64{0.9643027, 79.495086}},
		CJC:          &thermo.CJCData{Temperature: 25, EmfCold: 0.308},
	}
}

func TestNewMetadata(t *testing.T) {
	a := NewMetadata("s", "o")
	b := NewMetadata("s", "o")
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.WithinDuration(t, time.Now(), a.CreatedAt, time.Minute)
	assert.Nil(t, a.CalibrationID)
}

func TestArchive_Blobs(t *testing.T) {
	a := testArchive(t)
	blobs, err := a.Blobs()
	require.NoError(t, err)
	assert.Len(t, blobs, 5)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(blobs[MetadataFile], &meta))
	assert.Equal(t, "sample-1", meta["sample"])
	assert.Equal(t, "Operator", meta["operator"])
	assert.Equal(t, "furnace", meta["calibration_id"])
	assert.Equal(t, a.Metadata.ID.String(), meta["id"])
	assert.Contains(t, meta, "created_at")

	assert.Equal(t, "\"time, s\",\"EMF, mV\";\r\n0.0,0.5;\r\n0.1,0.75;\r\n", string(blobs[DataFile]))

	var cjc map[string]float64
	require.NoError(t, json.Unmarshal(blobs[CJCFile], &cjc))
	assert.Equal(t, map[string]float64{"temperature": 25, "e_cold": 0.308}, cjc)

	var tc ThermocoupleData
	require.NoError(t, json.Unmarshal(blobs[ThermocoupleFile], &tc))
	assert.Equal(t, a.Thermocouple, tc)

	var rec calibration.Record
	require.NoError(t, json.Unmarshal(blobs[CalibrationFile], &rec))
	assert.Equal(t, calibration.Linear, rec.Type)
	assert.Equal(t, "furnace", rec.Name)

	assert.Nil(t, a.Metadata.CalibrationID, "blobs do not mutate the archive")
}

func TestArchive_BlobsWithoutCalibration(t *testing.T) {
	a := testArchive(t)
	a.Calibration = nil
	a.CJC = nil

	blobs, err := a.Blobs()
	require.NoError(t, err)
	assert.NotContains(t, blobs, CalibrationFile)
	assert.NotContains(t, blobs, CJCFile)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(blobs[MetadataFile], &meta))
	v, ok := meta["calibration_id"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestArchive_NoData(t *testing.T) {
	a := testArchive(t)
	a.EMF = NewSeries("emf", EMFLabel)
	_, err := a.Blobs()
	assert.ErrorIs(t, err, ErrNoData)
	assert.ErrorIs(t, a.WriteDir(t.TempDir()), ErrNoData)

	a.EMF = nil
	_, err = a.Blobs()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestArchive_DirRoundTrip(t *testing.T) {
	a := testArchive(t)
	dir := filepath.Join(t.TempDir(), "run")
	require.NoError(t, a.WriteDir(dir))
	for _, name := range []string{MetadataFile, DataFile, CalibrationFile, ThermocoupleFile, CJCFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	back, err := Read(os.DirFS(dir), nil)
	require.NoError(t, err)
	assert.Equal(t, a.Metadata.ID, back.Metadata.ID)
	assert.Equal(t, "furnace", *back.Metadata.CalibrationID)
	assert.Equal(t, a.EMF.Y, back.EMF.Y)
	assert.Equal(t, a.Thermocouple, back.Thermocouple)
	assert.Equal(t, *a.CJC, *back.CJC)
	require.NotNil(t, back.Calibration)
	assert.Equal(t, a.Calibration.Coefficients(), back.Calibration.Coefficients())
}

func TestArchive_ZipRoundTrip(t *testing.T) {
	a := testArchive(t)
	var buf bytes.Buffer
	require.NoError(t, a.WriteZip(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 5)
	assert.Equal(t, zip.Deflate, zr.File[0].Method)

	back, err := Read(zr, nil)
	require.NoError(t, err)
	assert.Equal(t, a.EMF.X, back.EMF.X)
	assert.Equal(t, "furnace", back.Calibration.Name())

	path := filepath.Join(t.TempDir(), "run.vtaz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	back, err = ReadZip(path, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Metadata.Sample, back.Metadata.Sample)
}

var errDiskFull = errors.New("disk full")

// shortWriter accepts n bytes and then fails.
type shortWriter struct {
	n int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.n {
		k := w.n
		w.n = 0
		return k, errDiskFull
	}
	w.n -= len(p)
	return len(p), nil
}

func TestArchive_WriteZipFailingWriter(t *testing.T) {
	a := testArchive(t)
	// Enough data that entries spill past the zip writer's buffer.
	for i := 2; i < 5000; i++ {
		a.EMF.Append(float64(i)/10, math.Sin(float64(i))*7.3)
	}

	var buf bytes.Buffer
	require.NoError(t, a.WriteZip(&buf))
	total := buf.Len()

	for _, n := range []int{0, 100, total / 2, total - 1} {
		err := a.WriteZip(&shortWriter{n: n})
		assert.ErrorIs(t, err, errDiskFull, "cut at %d of %d", n, total)
	}
}

func TestRead_InvalidCalibrationFallsBack(t *testing.T) {
	a := testArchive(t)
	dir := t.TempDir()
	require.NoError(t, a.WriteDir(dir))
	bad := `{"calibration_type":"linear","coefficients":[1e999,0],"name":"furnace"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, CalibrationFile), []byte(bad), 0o644))

	back, err := Read(os.DirFS(dir), nil)
	require.NoError(t, err)
	assert.Nil(t, back.Calibration)

	stored, err := calibration.New(calibration.Linear, []float64{0.02, 0}, "furnace", "stored", nil)
	require.NoError(t, err)
	back, err = Read(os.DirFS(dir), calibrations{"furnace": stored})
	require.NoError(t, err)
	assert.Same(t, stored, back.Calibration)

	require.NoError(t, os.Remove(filepath.Join(dir, CalibrationFile)))
	back, err = Read(os.DirFS(dir), calibrations{"furnace": stored})
	require.NoError(t, err)
	assert.Same(t, stored, back.Calibration)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(os.DirFS(t.TempDir()), nil)
	assert.Error(t, err)

	_, err = ReadZip(filepath.Join(t.TempDir(), "missing.vtaz"), nil)
	assert.Error(t, err)
}

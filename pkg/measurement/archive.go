package measurement

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ioyurev/vta-collection/pkg/calibration"
	"github.com/ioyurev/vta-collection/pkg/thermo"
)

// Archive entry names.
const (
	MetadataFile     = "metadata.json"
	DataFile         = "data_input.csv"
	CalibrationFile  = "calibration.json"
	ThermocoupleFile = "thermocouple.json"
	CJCFile          = "cjc.json"
)

// ErrNoData is returned when an archive has no recorded points.
var ErrNoData = errors.New("no data to save")

// Metadata describes a run.
type Metadata struct {
	ID            uuid.UUID `json:"id"`
	Sample        string    `json:"sample"`
	Operator      string    `json:"operator"`
	CalibrationID *string   `json:"calibration_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewMetadata creates metadata for a new run.
func NewMetadata(sample, operator string) Metadata {
	return Metadata{
		ID:        uuid.New(),
		Sample:    sample,
		Operator:  operator,
		CreatedAt: time.Now(),
	}
}

// ThermocoupleData is the thermocouple entry of an archive.
type ThermocoupleData struct {
	Coefficients []float64 `json:"coefficients"`
}

// Archive holds everything saved for one run. Calibration and CJC are
// optional.
type Archive struct {
	Metadata     Metadata
	EMF          *Series
	Calibration  *calibration.Calibration
	Thermocouple ThermocoupleData
	CJC          *thermo.CJCData
}

// CalibrationSource looks up stored calibrations by name.
type CalibrationSource interface {
	Get(name string) (*calibration.Calibration, bool)
}

// Blobs serializes the archive into its named entries. The metadata
// calibration id is set from the attached calibration.
func (a *Archive) Blobs() (map[string][]byte, error) {
	if a.EMF == nil || a.EMF.Len() == 0 {
		return nil, ErrNoData
	}

	meta := a.Metadata
	meta.CalibrationID = nil
	if a.Calibration != nil && a.Calibration.Name() != "" {
		name := a.Calibration.Name()
		meta.CalibrationID = &name
	}

	blobs := make(map[string][]byte, 5)
	var err error
	if blobs[MetadataFile], err = json.MarshalIndent(meta, "", "  "); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if blobs[DataFile], err = a.EMF.MarshalCSV(); err != nil {
		return nil, err
	}
	if blobs[ThermocoupleFile], err = json.MarshalIndent(a.Thermocouple, "", "  "); err != nil {
		return nil, fmt.Errorf("encode thermocouple: %w", err)
	}
	if a.Calibration != nil {
		if blobs[CalibrationFile], err = json.MarshalIndent(a.Calibration, "", "  "); err != nil {
			return nil, fmt.Errorf("encode calibration: %w", err)
		}
	}
	if a.CJC != nil {
		if blobs[CJCFile], err = json.MarshalIndent(a.CJC, "", "  "); err != nil {
			return nil, fmt.Errorf("encode cjc: %w", err)
		}
	}
	return blobs, nil
}

// WriteDir writes every entry as a file in dir, creating it if needed.
func (a *Archive) WriteDir(dir string) error {
	blobs, err := a.Blobs()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	for _, name := range sortedNames(blobs) {
		if err := os.WriteFile(filepath.Join(dir, name), blobs[name], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// WriteZip writes every entry into a deflated zip stream.
func (a *Archive) WriteZip(w io.Writer) error {
	blobs, err := a.Blobs()
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	if err := a.writeEntries(zw, blobs); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func (a *Archive) writeEntries(zw *zip.Writer, blobs map[string][]byte) error {
	for _, name := range sortedNames(blobs) {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: a.Metadata.CreatedAt})
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := f.Write(blobs[name]); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// Read loads an archive from fsys, either a directory (os.DirFS) or an opened
// zip file. An unreadable or invalid calibration entry falls back to fallback
// by the metadata calibration id; fallback may be nil.
func Read(fsys fs.FS, fallback CalibrationSource) (*Archive, error) {
	a := new(Archive)

	data, err := fs.ReadFile(fsys, MetadataFile)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &a.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	if data, err = fs.ReadFile(fsys, DataFile); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if a.EMF, err = ParseCSV("emf", data); err != nil {
		return nil, err
	}

	if data, err = fs.ReadFile(fsys, ThermocoupleFile); err == nil {
		if err := json.Unmarshal(data, &a.Thermocouple); err != nil {
			return nil, fmt.Errorf("decode thermocouple: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read thermocouple: %w", err)
	}

	if data, err = fs.ReadFile(fsys, CJCFile); err == nil {
		a.CJC = new(thermo.CJCData)
		if err := json.Unmarshal(data, a.CJC); err != nil {
			return nil, fmt.Errorf("decode cjc: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read cjc: %w", err)
	}

	a.Calibration = readCalibration(fsys, a.Metadata, fallback)
	return a, nil
}

// ReadZip loads an archive from a zip file on disk.
func ReadZip(path string, fallback CalibrationSource) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()
	return Read(zr, fallback)
}

func readCalibration(fsys fs.FS, meta Metadata, fallback CalibrationSource) *calibration.Calibration {
	if data, err := fs.ReadFile(fsys, CalibrationFile); err == nil {
		cal := new(calibration.Calibration)
		if err := json.Unmarshal(data, cal); err == nil {
			return cal
		}
	}
	if fallback == nil || meta.CalibrationID == nil {
		return nil
	}
	if cal, ok := fallback.Get(*meta.CalibrationID); ok {
		return cal
	}
	return nil
}

func sortedNames(blobs map[string][]byte) []string {
	names := make([]string, 0, len(blobs))
	for name := range blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package measurement

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// TimeLabel is the x-axis label of every series.
const TimeLabel = "time, s"

// lineTerminator ends every CSV record of an exported series.
const lineTerminator = ";\r\n"

// Series is an ordered set of (x, y) points sharing axis labels.
type Series struct {
	Name   string
	XLabel string
	YLabel string
	X      []float64
	Y      []float64
}

// NewSeries creates an empty time series.
func NewSeries(name, yLabel string) *Series {
	return &Series{Name: name, XLabel: TimeLabel, YLabel: yLabel}
}

// Append adds a point.
func (s *Series) Append(x, y float64) {
	s.X = append(s.X, x)
	s.Y = append(s.Y, y)
}

// Len returns the number of points.
func (s *Series) Len() int { return len(s.X) }

// Clear removes all points and keeps the labels.
func (s *Series) Clear() {
	s.X = s.X[:0]
	s.Y = s.Y[:0]
}

// Clone returns a deep copy of s.
func (s *Series) Clone() *Series {
	c := *s
	c.X = append([]float64(nil), s.X...)
	c.Y = append([]float64(nil), s.Y...)
	return &c
}

// Downsample returns at most maxPoints points of s picked by decimation.
// The result reuses dst when it has capacity.
func (s *Series) Downsample(dst *Series, maxPoints int) *Series {
	if dst == nil {
		dst = &Series{}
	}
	dst.Name, dst.XLabel, dst.YLabel = s.Name, s.XLabel, s.YLabel
	dst.X, dst.Y = dst.X[:0], dst.Y[:0]

	n := s.Len()
	if maxPoints <= 0 || n <= maxPoints {
		dst.X = append(dst.X, s.X...)
		dst.Y = append(dst.Y, s.Y...)
		return dst
	}

	step := float64(n) / float64(maxPoints)
	for i := 0; i < maxPoints; i++ {
		idx := int(float64(i) * step)
		dst.X = append(dst.X, s.X[idx])
		dst.Y = append(dst.Y, s.Y[idx])
	}
	return dst
}

// WriteCSV writes the label row followed by one row per point. Fields are
// comma separated and every record ends with ";\r\n".
func (s *Series) WriteCSV(w io.Writer) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	record := func(fields ...string) error {
		buf.Reset()
		if err := cw.Write(fields); err != nil {
			return err
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		line := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
		if _, err := w.Write(line); err != nil {
			return err
		}
		_, err := io.WriteString(w, lineTerminator)
		return err
	}

	if err := record(s.XLabel, s.YLabel); err != nil {
		return fmt.Errorf("write %s header: %w", s.Name, err)
	}
	for i := range s.X {
		if err := record(formatFloat(s.X[i]), formatFloat(s.Y[i])); err != nil {
			return fmt.Errorf("write %s row %d: %w", s.Name, i, err)
		}
	}
	return nil
}

// MarshalCSV returns the CSV form of s.
func (s *Series) MarshalCSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseCSV reads a series written by WriteCSV.
func ParseCSV(name string, data []byte) (*Series, error) {
	lines := strings.Split(string(data), lineTerminator)
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoData)
	}

	header, err := parseRecord(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%s header: %w", name, err)
	}
	s := &Series{Name: name, XLabel: header[0], YLabel: header[1]}
	for i, line := range lines[1:] {
		fields, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, i, err)
		}
		x, err := parseFloat(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, i, err)
		}
		y, err := parseFloat(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, i, err)
		}
		s.Append(x, y)
	}
	return s, nil
}

func parseRecord(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = 2
	return r.Read()
}

// formatFloat renders v the way the archive readers expect: shortest
// round-trip digits, always with a fractional part or an exponent.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

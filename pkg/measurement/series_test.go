package measurement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeries_WriteCSV(t *testing.T) {
	s := NewSeries("emf", EMFLabel)
	s.Append(0, 1.25)
	s.Append(0.5, -0.001)
	s.Append(1, 2)

	data, err := s.MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "\"time, s\",\"EMF, mV\";\r\n0.0,1.25;\r\n0.5,-0.001;\r\n1.0,2.0;\r\n", string(data))
}

func TestSeries_WriteCSV_Empty(t *testing.T) {
	data, err := NewSeries("emf", EMFLabel).MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "\"time, s\",\"EMF, mV\";\r\n", string(data))
}

func TestParseCSV(t *testing.T) {
	s := NewSeries("emf", EMFLabel)
	s.Append(0, 0.3081)
	s.Append(0.1, 1e-05)
	s.Append(0.2, math.Inf(1))
	data, err := s.MarshalCSV()
	require.NoError(t, err)

	back, err := ParseCSV("emf", data)
	require.NoError(t, err)
	assert.Equal(t, TimeLabel, back.XLabel)
	assert.Equal(t, EMFLabel, back.YLabel)
	assert.Equal(t, s.X, back.X)
	assert.Equal(t, s.Y, back.Y)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "one field", data: "\"time, s\";\r\n"},
		{name: "not a number", data: "\"time, s\",\"EMF, mV\";\r\n0.0,abc;\r\n"},
		{name: "three fields", data: "\"time, s\",\"EMF, mV\";\r\n0.0,1.0,2.0;\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV("emf", []byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{-3, "-3.0"},
		{123.456, "123.456"},
		{0.0001, "0.0001"},
		{1e-05, "1e-05"},
		{1e16, "1e+16"},
		{math.NaN(), "nan"},
		{math.Inf(-1), "-inf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatFloat(tt.v))
	}
}

func TestSeries_Downsample(t *testing.T) {
	s := NewSeries("emf", EMFLabel)
	for i := 0; i < 100; i++ {
		s.Append(float64(i), float64(2*i))
	}

	d := s.Downsample(nil, 10)
	require.Equal(t, 10, d.Len())
	assert.Equal(t, EMFLabel, d.YLabel)
	assert.Equal(t, float64(0), d.X[0])
	assert.Equal(t, float64(90), d.X[9])
	assert.Equal(t, float64(180), d.Y[9])

	// dst is reused.
	again := s.Downsample(d, 5)
	assert.Same(t, d, again)
	assert.Equal(t, 5, again.Len())

	all := s.Downsample(nil, 1000)
	assert.Equal(t, s.X, all.X)
	assert.Equal(t, 100, s.Downsample(nil, 0).Len())
}

func TestSeries_CloneAndClear(t *testing.T) {
	s := NewSeries("emf", EMFLabel)
	s.Append(1, 2)
	c := s.Clone()
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, EMFLabel, s.YLabel)
	assert.Equal(t, []float64{1}, c.X)
	assert.Equal(t, []float64{2}, c.Y)
}

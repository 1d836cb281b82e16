package thermo

import (
	"fmt"
)

// CJCData is the cold-junction state of one run.
type CJCData struct {
	Temperature float64 `json:"temperature"` // °C
	EmfCold     float64 `json:"e_cold"`      // mV
}

// TemperatureSource provides the cold-junction temperature. The ADAM-4011
// input module implements it.
type TemperatureSource interface {
	ReadCJCTemperature() (float64, error)
}

// ConstantTemperature is a TemperatureSource for runs without hardware.
type ConstantTemperature float64

// ReadCJCTemperature returns the constant.
func (c ConstantTemperature) ReadCJCTemperature() (float64, error) {
	return float64(c), nil
}

// Compensator adds the cold-junction equivalent EMF to raw readings. Its data
// is fixed at construction; a new run needs a new Compensator.
type Compensator struct {
	data CJCData
}

// NewCompensator reads the cold-junction temperature once from src and
// converts it to its equivalent EMF with tc.
func NewCompensator(tc *Thermocouple, src TemperatureSource) (*Compensator, error) {
	temp, err := src.ReadCJCTemperature()
	if err != nil {
		return nil, fmt.Errorf("read cold junction temperature: %w", err)
	}
	emf, err := tc.EMF(temp)
	if err != nil {
		return nil, fmt.Errorf("cold junction emf at %.2f °C: %w", temp, err)
	}
	return &Compensator{data: CJCData{Temperature: temp, EmfCold: emf}}, nil
}

// Compensate returns emf plus the cold-junction equivalent EMF.
func (c *Compensator) Compensate(emf float64) float64 {
	return emf + c.data.EmfCold
}

// Data returns the cold-junction data.
func (c *Compensator) Data() CJCData { return c.data }

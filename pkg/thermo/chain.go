package thermo

// Corrector applies a calibration to a measured temperature.
type Corrector interface {
	Evaluate(measured float64) float64
}

// identity is the Corrector used when no calibration is attached.
type identity struct{}

func (identity) Evaluate(measured float64) float64 { return measured }

// Chain converts raw EMF to calibrated temperature: compensate, convert, correct.
type Chain struct {
	tc  *Thermocouple
	cjc *Compensator
	cal Corrector
}

// NewChain builds a chain. A nil cal leaves temperatures uncorrected.
func NewChain(tc *Thermocouple, cjc *Compensator, cal Corrector) *Chain {
	if cal == nil {
		cal = identity{}
	}
	return &Chain{tc: tc, cjc: cjc, cal: cal}
}

// Temperature returns the calibrated temperature in °C for a raw EMF reading in mV.
func (c *Chain) Temperature(emf float64) float64 {
	return c.cal.Evaluate(c.tc.Temperature(c.cjc.Compensate(emf)))
}

// Compensator returns the cold-junction compensator of the chain.
func (c *Chain) Compensator() *Compensator { return c.cjc }

// Thermocouple returns the thermocouple of the chain.
func (c *Chain) Thermocouple() *Thermocouple { return c.tc }

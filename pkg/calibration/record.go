package calibration

import (
	"encoding/json"
	"fmt"
)

// Record is the persisted form of a calibration.
type Record struct {
	Type         Kind       `json:"calibration_type"`
	Coefficients []float64  `json:"coefficients"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Standards    []Standard `json:"standards"`
}

// Record returns the persisted form of c.
func (c *Calibration) Record() Record {
	standards := c.Standards()
	if standards == nil {
		standards = []Standard{}
	}
	return Record{
		Type:         c.kind,
		Coefficients: c.Coefficients(),
		Name:         c.name,
		Description:  c.description,
		Standards:    standards,
	}
}

// Calibration validates the record and creates a calibration from it.
func (r Record) Calibration() (*Calibration, error) {
	return New(r.Type, r.Coefficients, r.Name, r.Description, r.Standards)
}

// MarshalJSON implements json.Marshaler.
func (c *Calibration) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Record())
}

// UnmarshalJSON implements json.Unmarshaler. Invalid records leave c unchanged.
func (c *Calibration) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode calibration: %w", err)
	}
	parsed, err := r.Calibration()
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

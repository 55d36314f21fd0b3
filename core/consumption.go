package core

import "math"

// Consumption is a value object measuring how much of a resource was used.
// Value is always expressed in Unit; RawValue = Value * NormalizationFactor
// rounded to Precision decimal places, so consumptions measured in different
// units can still be summed on a common normalized scale.
type Consumption struct {
	Unit                string  `json:"unit"`
	Value               float64 `json:"value"`
	RawValue            float64 `json:"raw_value"`
	NormalizationFactor float64 `json:"normalization_factor"`
	Precision           int     `json:"precision"`
}

// NewConsumption builds a consumption value, deriving RawValue from the
// declared unit value and normalization factor.
func NewConsumption(unit string, value, normalizationFactor float64, precision int) Consumption {
	c := Consumption{
		Unit:                unit,
		Value:               value,
		NormalizationFactor: normalizationFactor,
		Precision:           precision,
	}
	c.RawValue = roundTo(value*normalizationFactor, precision)
	return c
}

// Seconds builds a consumption of audio seconds, the most common unit.
// Seconds are already the normalized scale, so the factor is 1.
func Seconds(value float64) Consumption {
	return NewConsumption("seconds", value, 1, 2)
}

// Equal compares two consumptions by value.
func (c Consumption) Equal(o Consumption) bool {
	return c == o
}

// Add returns the sum of two consumptions in c's unit. Values in a different
// unit are added on the normalized scale and converted back.
func (c Consumption) Add(o Consumption) Consumption {
	if o.Unit == c.Unit {
		return NewConsumption(c.Unit, c.Value+o.Value, c.NormalizationFactor, c.Precision)
	}
	raw := c.RawValue + o.RawValue
	value := raw
	if c.NormalizationFactor != 0 {
		value = raw / c.NormalizationFactor
	}
	return NewConsumption(c.Unit, roundTo(value, c.Precision), c.NormalizationFactor, c.Precision)
}

func roundTo(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	pow := math.Pow(10, float64(precision))
	return math.Round(v*pow) / pow
}

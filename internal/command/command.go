package command

import "math"

// MapToRange linearly maps value from [min,max] onto [minReturn,maxReturn], clamped.
func MapToRange(value, min, max, minReturn, maxReturn float64) float64 {
	mappedValue := (maxReturn-minReturn)*(value-min)/(max-min) + minReturn

	if mappedValue > maxReturn {
		return maxReturn
	} else if mappedValue < minReturn {
		return minReturn
	} else {
		return mappedValue
	}
}

// StallShaper keeps a motor out of the band where it hums without turning.
// Below half the stall voltage the output is 0, below stall it is pushed up to ±stall.
type StallShaper struct {
	StallVolts float64
	MaxVolts   float64
}

func (s StallShaper) Shape(volts float64) float64 {
	if math.IsNaN(volts) {
		return 0
	}
	if s.MaxVolts > 0 {
		volts = math.Max(-s.MaxVolts, math.Min(s.MaxVolts, volts))
	}
	if s.StallVolts <= 0 {
		return volts
	}

	magnitude := math.Abs(volts)
	switch {
	case magnitude < s.StallVolts/2:
		return 0
	case magnitude < s.StallVolts:
		return math.Copysign(s.StallVolts, volts)
	default:
		return volts
	}
}

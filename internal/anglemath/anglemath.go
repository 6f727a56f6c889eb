package anglemath

import "math"

const FullTurn = 360.0

// ConformAngle maps any angle in degrees into [0, 360).
func ConformAngle(angle float64) float64 {
	conformed := math.Mod(angle, FullTurn)
	if conformed < 0 {
		conformed += FullTurn
	}
	if conformed >= FullTurn || conformed == 0 { //tiny negatives round up to 360, and -0 comes back as 0
		return 0
	}
	return conformed
}

// GetDelta returns the signed shortest rotation from current to target, in (-180, 180].
func GetDelta(target, current float64) float64 {
	delta := ConformAngle(target - current)
	if delta > FullTurn/2 {
		delta -= FullTurn
	}
	return delta
}

// IsFinite reports whether a sensor value is usable.
func IsFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

// Distance returns the unsigned circular distance between two angles, in [0, 180].
func Distance(a, b float64) float64 {
	return math.Abs(GetDelta(a, b))
}

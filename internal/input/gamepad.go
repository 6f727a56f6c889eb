package input

import (
	"math"

	"github.com/Speshl/gorrc_swerve/internal/models"
	"github.com/Speshl/gorrc_swerve/internal/vector"
)

// Standard gamepad layout as reported by the browser.
const (
	AxisLeftX  = 0
	AxisLeftY  = 1
	AxisRightX = 2
	AxisRightY = 3

	ButtonCross    = 0
	ButtonCircle   = 1
	ButtonSquare   = 2
	ButtonTriangle = 3
	ButtonL1       = 4
	ButtonR1       = 5
)

// Gamepad is one read-only snapshot of the driver's controller. The zero value is neutral.
type Gamepad struct {
	LeftX   float64
	LeftY   float64 //up is positive
	RightX  float64
	RightY  float64
	Buttons []bool
}

func FromControlState(state models.ControlState) Gamepad {
	return Gamepad{
		LeftX:   axis(state.Axes, AxisLeftX),
		LeftY:   -axis(state.Axes, AxisLeftY),
		RightX:  axis(state.Axes, AxisRightX),
		RightY:  -axis(state.Axes, AxisRightY),
		Buttons: state.Buttons,
	}
}

func axis(axes []float64, index int) float64 {
	if index >= len(axes) {
		return 0
	}
	value := axes[index]
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, value))
}

// LeftStick is the left stick as a vector with forward along +y.
func (g Gamepad) LeftStick() vector.Vector {
	return vector.New(g.LeftX, g.LeftY)
}

func (g Gamepad) Button(index int) bool {
	return index >= 0 && index < len(g.Buttons) && g.Buttons[index]
}

// Curve shapes an axis as sign(x)*|x|^power for finer control near center.
func Curve(value, power float64) float64 {
	return math.Copysign(math.Pow(math.Abs(value), power), value)
}

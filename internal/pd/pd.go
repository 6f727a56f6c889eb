package pd

import (
	"fmt"
	"math"

	"github.com/Speshl/gorrc_swerve/internal/anglemath"
)

// Constant is an immutable set of gains. The zero Magnitude means unclamped.
type Constant struct {
	Kp        float64
	Kd        float64
	Magnitude float64
}

func NewConstant(kp, kd float64) Constant {
	return Constant{Kp: kp, Kd: kd}
}

// WithMagnitude returns a copy whose output is clamped to ±magnitude.
func (c Constant) WithMagnitude(magnitude float64) Constant {
	c.Magnitude = math.Abs(magnitude)
	return c
}

func (c Constant) String() string {
	if c.Magnitude > 0 {
		return fmt.Sprintf("kp=%g kd=%g mag=%g", c.Kp, c.Kd, c.Magnitude)
	}
	return fmt.Sprintf("kp=%g kd=%g", c.Kp, c.Kd)
}

// Controller solves the PD law once per tick. The tick is the time base.
type Controller struct {
	constant      Constant
	previousError float64
	lastOutput    float64
}

func NewController(constant Constant) *Controller {
	return &Controller{constant: constant}
}

func (c *Controller) Solve(err float64) float64 {
	if !anglemath.IsFinite(err) {
		return c.lastOutput
	}

	output := c.constant.Kp*err + c.constant.Kd*(err-c.previousError)
	if c.constant.Magnitude > 0 {
		output = math.Max(-c.constant.Magnitude, math.Min(c.constant.Magnitude, output))
	}

	c.previousError = err
	c.lastOutput = output
	return output
}

// SetConstant swaps gains and keeps the derivative history.
func (c *Controller) SetConstant(constant Constant) {
	c.constant = constant
}

func (c *Controller) Constant() Constant {
	return c.constant
}

func (c *Controller) Reset() {
	c.previousError = 0
	c.lastOutput = 0
}

package vector

import (
	"fmt"
	"math"

	"github.com/Speshl/gorrc_swerve/internal/anglemath"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
)

// Vector is an immutable planar vector. Every operation returns a new value.
type Vector struct {
	p r2.Point
}

var Zero = Vector{}

func New(x, y float64) Vector {
	return Vector{p: r2.Point{X: x, Y: y}}
}

// FromAngleAndMag builds a vector from a standard position angle (counter-clockwise from +x) in degrees.
func FromAngleAndMag(angleDeg, magnitude float64) Vector {
	radians := (s1.Angle(anglemath.ConformAngle(angleDeg)) * s1.Degree).Radians()
	return New(math.Cos(radians)*magnitude, math.Sin(radians)*magnitude)
}

// FromTurnAngleAndMag builds a vector from a turn angle: 0 is +y, clockwise positive.
func FromTurnAngleAndMag(turnDeg, magnitude float64) Vector {
	return FromAngleAndMag(90-turnDeg, magnitude)
}

func (v Vector) X() float64 { return v.p.X }
func (v Vector) Y() float64 { return v.p.Y }

func (v Vector) Magnitude() float64 {
	return v.p.Norm()
}

// AngleDeg returns the angle in standard position, in [0, 360).
func (v Vector) AngleDeg() float64 {
	return anglemath.ConformAngle((s1.Angle(math.Atan2(v.p.Y, v.p.X)) * s1.Radian).Degrees())
}

// TurnAngleDeg returns the navigation style heading of the vector: 0 along +y, clockwise positive.
func (v Vector) TurnAngleDeg() float64 {
	return anglemath.ConformAngle(-1 * (v.AngleDeg() - 90))
}

func (v Vector) Add(other Vector) Vector {
	return Vector{p: v.p.Add(other.p)}
}

func (v Vector) Minus(other Vector) Vector {
	return Vector{p: v.p.Sub(other.p)}
}

// Multiply multiplies elementwise.
func (v Vector) Multiply(other Vector) Vector {
	return New(v.p.X*other.p.X, v.p.Y*other.p.Y)
}

func (v Vector) Scale(factor float64) Vector {
	return Vector{p: v.p.Mul(factor)}
}

func (v Vector) DotProduct(other Vector) float64 {
	return v.p.Dot(other.p)
}

// Rotate rotates counter-clockwise by degrees.
func (v Vector) Rotate(degrees float64) Vector {
	return FromAngleAndMag(v.AngleDeg()+degrees, v.Magnitude())
}

// Perpendicular returns the vector rotated a quarter turn clockwise.
func (v Vector) Perpendicular() Vector {
	return Vector{p: v.p.Ortho().Mul(-1)}
}

func (v Vector) IsFinite() bool {
	return anglemath.IsFinite(v.p.X) && anglemath.IsFinite(v.p.Y)
}

func (v Vector) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", v.p.X, v.p.Y)
}

package swerve

import (
	"errors"
	"fmt"
	"math"

	"github.com/Speshl/gorrc_swerve/internal/anglemath"
	"github.com/Speshl/gorrc_swerve/internal/pd"
	"github.com/Speshl/gorrc_swerve/internal/vector"
)

const holdEpsilon = 1e-9

type Corner int

const (
	LeftFront Corner = iota
	RightFront
	LeftBack
	RightBack
)

var Corners = [4]Corner{LeftFront, RightFront, LeftBack, RightBack}

func (c Corner) String() string {
	switch c {
	case LeftFront:
		return "leftFront"
	case RightFront:
		return "rightFront"
	case LeftBack:
		return "leftBack"
	case RightBack:
		return "rightBack"
	default:
		return fmt.Sprintf("corner(%d)", int(c))
	}
}

// Geometry is the wheelbase rectangle measured between module centers.
type Geometry struct {
	Width  float64
	Length float64
}

// Position returns the module center relative to the chassis center, x right and y forward.
func (g Geometry) Position(c Corner) vector.Vector {
	halfW := g.Width / 2
	halfL := g.Length / 2
	switch c {
	case LeftFront:
		return vector.New(-halfW, halfL)
	case RightFront:
		return vector.New(halfW, halfL)
	case LeftBack:
		return vector.New(-halfW, -halfL)
	default:
		return vector.New(halfW, -halfL)
	}
}

// ModuleTarget is one wheel's command for a single cycle. Hold keeps the previous steering target.
type ModuleTarget struct {
	AngleDeg float64
	Speed    float64
	Hold     bool
}

// PositionedDrive turns chassis commands into four module targets.
type PositionedDrive struct {
	geometry  Geometry
	modules   [4]*ModulePD
	positions [4]vector.Vector
	maxRadius float64
	maxOutput float64
}

// NewPositionedDrive takes modules indexed by Corner. maxOutput <= 0 disables desaturation.
func NewPositionedDrive(geometry Geometry, maxOutput float64, modules [4]*ModulePD) (*PositionedDrive, error) {
	if !(geometry.Width > 0) || !(geometry.Length > 0) {
		return nil, fmt.Errorf("chassis width and length must be positive, got %fx%f", geometry.Width, geometry.Length)
	}
	drive := &PositionedDrive{
		geometry:  geometry,
		modules:   modules,
		maxOutput: maxOutput,
	}
	for _, corner := range Corners {
		if modules[corner] == nil {
			return nil, fmt.Errorf("missing %s module", corner)
		}
		drive.positions[corner] = geometry.Position(corner)
		drive.maxRadius = math.Max(drive.maxRadius, drive.positions[corner].Magnitude())
	}
	return drive, nil
}

func (d *PositionedDrive) Module(c Corner) *ModulePD {
	return d.modules[c]
}

func (d *PositionedDrive) Geometry() Geometry {
	return d.geometry
}

// Targets computes the inverse kinematics for a chassis-relative command.
// direction uses the turn angle convention and positive rotation is clockwise.
func (d *PositionedDrive) Targets(magnitude, directionDeg, rotation float64) [4]ModuleTarget {
	magnitude = finiteOrZero(magnitude)
	directionDeg = finiteOrZero(directionDeg)
	rotation = finiteOrZero(rotation)

	translation := vector.FromTurnAngleAndMag(directionDeg, magnitude)

	var targets [4]ModuleTarget
	fastest := 0.0
	for _, corner := range Corners {
		spin := d.positions[corner].Perpendicular().Scale(rotation / d.maxRadius)
		sum := translation.Add(spin)
		speed := sum.Magnitude()
		if speed < holdEpsilon {
			targets[corner] = ModuleTarget{AngleDeg: d.modules[corner].TurnTarget(), Hold: true}
			continue
		}
		targets[corner] = ModuleTarget{AngleDeg: sum.TurnAngleDeg(), Speed: speed}
		fastest = math.Max(fastest, speed)
	}

	if d.maxOutput > 0 && fastest > d.maxOutput {
		scale := d.maxOutput / fastest
		for i := range targets {
			targets[i].Speed *= scale
		}
	}
	return targets
}

// Power commands the chassis for this cycle and updates every module once.
func (d *PositionedDrive) Power(magnitude, directionDeg, rotation float64) error {
	targets := d.Targets(magnitude, directionDeg, rotation)
	var errs []error
	for _, corner := range Corners {
		module := d.modules[corner]
		if !targets[corner].Hold {
			module.SetTurnTarget(targets[corner].AngleDeg)
		}
		_, err := module.Update(targets[corner].Speed)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PowerFieldRelative converts a field direction into a chassis direction using headingDeg.
func (d *PositionedDrive) PowerFieldRelative(magnitude, fieldDirectionDeg, rotation, headingDeg float64) error {
	return d.Power(magnitude, anglemath.ConformAngle(finiteOrZero(fieldDirectionDeg)-finiteOrZero(headingDeg)), rotation)
}

// SetConstants pushes one tuning value to every module controller.
func (d *PositionedDrive) SetConstants(constant pd.Constant) {
	for _, module := range d.modules {
		module.SetConstant(constant)
	}
}

func (d *PositionedDrive) SetAlignmentThreshold(thresholdDeg float64) {
	for _, module := range d.modules {
		module.SetAlignmentThreshold(thresholdDeg)
	}
}

// SetTurnTargets points every wheel at the same angle without driving.
func (d *PositionedDrive) SetTurnTargets(angleDeg float64) error {
	var errs []error
	for _, module := range d.modules {
		module.SetTurnTarget(angleDeg)
		if _, err := module.Update(0); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *PositionedDrive) Outputs() [4]ModuleOutput {
	var outputs [4]ModuleOutput
	for _, corner := range Corners {
		outputs[corner] = d.modules[corner].LastOutput()
	}
	return outputs
}

func (d *PositionedDrive) Distances() [4]float64 {
	var distances [4]float64
	for _, corner := range Corners {
		distances[corner] = d.modules[corner].Distance()
	}
	return distances
}

func (d *PositionedDrive) Reset() {
	for _, module := range d.modules {
		module.Reset()
	}
}

func (d *PositionedDrive) Stop() error {
	var errs []error
	for _, module := range d.modules {
		errs = append(errs, module.Stop())
	}
	return errors.Join(errs...)
}

func finiteOrZero(value float64) float64 {
	if !anglemath.IsFinite(value) {
		return 0
	}
	return value
}

package swerve

import (
	"errors"
	"fmt"
	"math"

	"github.com/Speshl/gorrc_swerve/internal/anglemath"
	"github.com/Speshl/gorrc_swerve/internal/pd"
)

// ModuleOutput is what one module commanded on its last update.
type ModuleOutput struct {
	CurrentAngle    float64
	EffectiveTarget float64
	Delta           float64
	Steer           float64
	Drive           float64
	Flipped         bool
	Stale           bool //encoder reading was rejected and the previous command was re-sent
}

// ModulePD closes the steering loop of a Module around an absolute encoder.
type ModulePD struct {
	name      string
	module    *Module
	encoder   AbsoluteEncoder
	offset    float64
	pid       *pd.Controller
	target    float64
	threshold float64

	last ModuleOutput
}

func NewModulePD(name string, module *Module, encoder AbsoluteEncoder, offset float64, constant pd.Constant) (*ModulePD, error) {
	if module == nil {
		return nil, fmt.Errorf("module %s is nil", name)
	}
	if encoder == nil {
		return nil, fmt.Errorf("module %s has no encoder", name)
	}
	if !anglemath.IsFinite(offset) {
		return nil, fmt.Errorf("module %s has a non-finite encoder offset", name)
	}
	return &ModulePD{
		name:    name,
		module:  module,
		encoder: encoder,
		offset:  offset,
		pid:     pd.NewController(constant),
	}, nil
}

func (m *ModulePD) Name() string {
	return m.name
}

func (m *ModulePD) SetTurnTarget(angleDeg float64) {
	if !anglemath.IsFinite(angleDeg) {
		return
	}
	m.target = anglemath.ConformAngle(angleDeg)
}

func (m *ModulePD) TurnTarget() float64 {
	return m.target
}

func (m *ModulePD) SetConstant(constant pd.Constant) {
	m.pid.SetConstant(constant)
}

// SetAlignmentThreshold suppresses steering while the wheel is within thresholdDeg of its target.
func (m *ModulePD) SetAlignmentThreshold(thresholdDeg float64) {
	m.threshold = math.Abs(thresholdDeg)
}

// CurrentAngle is the calibrated encoder angle. ok is false when the reading is unusable.
func (m *ModulePD) CurrentAngle() (angle float64, ok bool) {
	reading := m.encoder.AngleDegrees()
	if !anglemath.IsFinite(reading) {
		return m.last.CurrentAngle, false
	}
	return anglemath.ConformAngle(reading + m.offset), true
}

// Update runs one control cycle toward the turn target at the given drive speed.
func (m *ModulePD) Update(speed float64) (ModuleOutput, error) {
	current, ok := m.CurrentAngle()
	if !ok {
		out := m.last
		out.Stale = true
		return out, m.command(out)
	}

	effective := m.target
	drive := speed
	delta := anglemath.GetDelta(effective, current)
	flipped := false
	if math.Abs(delta) > 90 {
		effective = anglemath.ConformAngle(effective + 180)
		drive = -drive
		flipped = true
		delta = anglemath.GetDelta(effective, current)
	}

	steer := m.pid.Solve(delta)
	if math.Abs(delta) < m.threshold {
		steer = 0
	}

	out := ModuleOutput{
		CurrentAngle:    current,
		EffectiveTarget: effective,
		Delta:           delta,
		Steer:           steer,
		Drive:           drive,
		Flipped:         flipped,
	}
	m.last = out
	return out, m.command(out)
}

func (m *ModulePD) command(out ModuleOutput) error {
	err := errors.Join(m.module.SetTurnVoltage(out.Steer), m.module.SetDriveVoltage(out.Drive))
	if err != nil {
		return fmt.Errorf("module %s - %w", m.name, err)
	}
	return nil
}

func (m *ModulePD) LastOutput() ModuleOutput {
	return m.last
}

func (m *ModulePD) Distance() float64 {
	return m.module.Distance()
}

// Reset clears controller history and the remembered command.
func (m *ModulePD) Reset() {
	m.pid.Reset()
	m.last = ModuleOutput{CurrentAngle: m.last.CurrentAngle}
}

func (m *ModulePD) Stop() error {
	m.last.Steer = 0
	m.last.Drive = 0
	err := m.module.Stop()
	if err != nil {
		return fmt.Errorf("module %s - %w", m.name, err)
	}
	return nil
}

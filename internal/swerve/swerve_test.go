package swerve

import (
	"errors"
	"math"
	"testing"

	"github.com/Speshl/gorrc_swerve/internal/anglemath"
	"github.com/Speshl/gorrc_swerve/internal/pd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMotor struct {
	volts     float64
	revs      float64
	stopped   bool
	setCalls  int
	failWrite error
}

func (f *fakeMotor) SetVoltage(volts float64) error {
	f.setCalls++
	f.volts = volts
	f.stopped = false
	return f.failWrite
}

func (f *fakeMotor) PositionRevolutions() float64 { return f.revs }

func (f *fakeMotor) Stop() error {
	f.volts = 0
	f.stopped = true
	return nil
}

type fakeEncoder struct {
	angle float64
}

func (f *fakeEncoder) AngleDegrees() float64 { return f.angle }

type rig struct {
	turn    *fakeMotor
	drive   *fakeMotor
	encoder *fakeEncoder
	module  *ModulePD
}

func newRig(t *testing.T, constant pd.Constant) *rig {
	t.Helper()
	r := &rig{turn: &fakeMotor{}, drive: &fakeMotor{}, encoder: &fakeEncoder{}}
	raw, err := NewModule(r.turn, r.drive, 0.5)
	require.NoError(t, err)
	r.module, err = NewModulePD("test", raw, r.encoder, 0, constant)
	require.NoError(t, err)
	return r
}

func TestNewModuleRejectsMissingMotors(t *testing.T) {
	_, err := NewModule(nil, &fakeMotor{}, 1)
	assert.Error(t, err)
	_, err = NewModule(&fakeMotor{}, nil, 1)
	assert.Error(t, err)
	_, err = NewModule(&fakeMotor{}, &fakeMotor{}, 0)
	assert.Error(t, err)
}

func TestModuleDistanceAndStop(t *testing.T) {
	turn, drive := &fakeMotor{}, &fakeMotor{revs: 4}
	m, err := NewModule(turn, drive, 0.25)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, m.Distance(), 1e-12)
	require.NoError(t, m.SetDriveVoltage(3))
	require.NoError(t, m.Stop())
	assert.True(t, turn.stopped)
	assert.True(t, drive.stopped)
}

func TestModulePDTieFlips(t *testing.T) {
	r := newRig(t, pd.NewConstant(1, 0))
	r.encoder.angle = 10
	r.module.SetTurnTarget(190)

	out, err := r.module.Update(2)
	require.NoError(t, err)

	assert.True(t, out.Flipped)
	assert.InDelta(t, 10, out.EffectiveTarget, 1e-9)
	assert.InDelta(t, 0, out.Delta, 1e-9)
	assert.Equal(t, 0.0, r.turn.volts)
	assert.Equal(t, -2.0, r.drive.volts)
}

func TestModulePDDirectTurn(t *testing.T) {
	r := newRig(t, pd.NewConstant(0.5, 0))
	r.module.SetTurnTarget(30)

	out, err := r.module.Update(1.5)
	require.NoError(t, err)

	assert.False(t, out.Flipped)
	assert.InDelta(t, 30, out.Delta, 1e-9)
	assert.InDelta(t, 15, r.turn.volts, 1e-9)
	assert.Equal(t, 1.5, r.drive.volts)
}

func TestModulePDFlipPicksCloserOpposite(t *testing.T) {
	r := newRig(t, pd.NewConstant(1, 0))
	r.encoder.angle = 0
	r.module.SetTurnTarget(200)

	out, err := r.module.Update(1)
	require.NoError(t, err)

	assert.True(t, out.Flipped)
	assert.InDelta(t, 20, out.EffectiveTarget, 1e-9)
	assert.InDelta(t, 20, out.Delta, 1e-9)
	assert.Equal(t, -1.0, r.drive.volts)
}

func TestModulePDOffsetApplied(t *testing.T) {
	r := newRig(t, pd.NewConstant(1, 0))
	raw, err := NewModule(r.turn, r.drive, 1)
	require.NoError(t, err)
	m, err := NewModulePD("offset", raw, r.encoder, -90, pd.NewConstant(1, 0))
	require.NoError(t, err)

	r.encoder.angle = 100
	angle, ok := m.CurrentAngle()
	assert.True(t, ok)
	assert.InDelta(t, 10, angle, 1e-9)
}

func TestModulePDAlignmentThreshold(t *testing.T) {
	r := newRig(t, pd.NewConstant(1, 0))
	r.module.SetAlignmentThreshold(0.5)
	r.encoder.angle = 0.2
	r.module.SetTurnTarget(0)

	out, err := r.module.Update(1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Steer)
	assert.Equal(t, 0.0, r.turn.volts)

	r.encoder.angle = 5
	out, err = r.module.Update(1)
	require.NoError(t, err)
	assert.InDelta(t, -5, out.Steer, 1e-9)
}

func TestModulePDNaNReadingResendsPrevious(t *testing.T) {
	r := newRig(t, pd.NewConstant(0.1, 0))
	r.module.SetTurnTarget(40)
	first, err := r.module.Update(3)
	require.NoError(t, err)

	r.encoder.angle = math.NaN()
	second, err := r.module.Update(7)
	require.NoError(t, err)

	assert.True(t, second.Stale)
	assert.Equal(t, first.Steer, r.turn.volts)
	assert.Equal(t, 3.0, r.drive.volts)
	assert.False(t, math.IsNaN(r.turn.volts))
}

func TestModulePDWriteErrorWrapped(t *testing.T) {
	r := newRig(t, pd.NewConstant(1, 0))
	boom := errors.New("bus off")
	r.drive.failWrite = boom

	_, err := r.module.Update(1)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "module test")
}

type chassis struct {
	drive    *PositionedDrive
	encoders [4]*fakeEncoder
	turns    [4]*fakeMotor
	drives   [4]*fakeMotor
}

func newChassis(t *testing.T, width, length, maxOutput float64) *chassis {
	t.Helper()
	c := &chassis{}
	var modules [4]*ModulePD
	for _, corner := range Corners {
		c.encoders[corner] = &fakeEncoder{}
		c.turns[corner] = &fakeMotor{}
		c.drives[corner] = &fakeMotor{}
		raw, err := NewModule(c.turns[corner], c.drives[corner], 1)
		require.NoError(t, err)
		modules[corner], err = NewModulePD(corner.String(), raw, c.encoders[corner], 0, pd.NewConstant(0.18, 0).WithMagnitude(0.5))
		require.NoError(t, err)
	}
	drive, err := NewPositionedDrive(Geometry{Width: width, Length: length}, maxOutput, modules)
	require.NoError(t, err)
	c.drive = drive
	return c
}

func TestNewPositionedDriveValidates(t *testing.T) {
	c := newChassis(t, 23, 23, 0)
	modules := [4]*ModulePD{c.drive.Module(LeftFront), c.drive.Module(RightFront), c.drive.Module(LeftBack), nil}

	_, err := NewPositionedDrive(Geometry{Width: 23, Length: 23}, 0, modules)
	assert.Error(t, err)

	all := [4]*ModulePD{c.drive.Module(LeftFront), c.drive.Module(RightFront), c.drive.Module(LeftBack), c.drive.Module(RightBack)}
	_, err = NewPositionedDrive(Geometry{Width: 0, Length: 23}, 0, all)
	assert.Error(t, err)
	_, err = NewPositionedDrive(Geometry{Width: 23, Length: math.NaN()}, 0, all)
	assert.Error(t, err)
}

func TestTargetsPureTranslation(t *testing.T) {
	c := newChassis(t, 23, 23, 0)
	for _, target := range c.drive.Targets(1, 0, 0) {
		assert.False(t, target.Hold)
		assert.InDelta(t, 0, anglemath.Distance(target.AngleDeg, 0), 1e-9)
		assert.InDelta(t, 1, target.Speed, 1e-9)
	}

	for _, target := range c.drive.Targets(2, 90, 0) {
		assert.InDelta(t, 0, anglemath.Distance(target.AngleDeg, 90), 1e-9)
		assert.InDelta(t, 2, target.Speed, 1e-9)
	}
}

func TestTargetsPureRotation(t *testing.T) {
	c := newChassis(t, 23, 23, 0)
	targets := c.drive.Targets(0, 123, 1)

	expected := map[Corner]float64{LeftFront: 45, RightFront: 135, LeftBack: 315, RightBack: 225}
	for corner, angle := range expected {
		assert.InDelta(t, 0, anglemath.Distance(targets[corner].AngleDeg, angle), 1e-9, corner.String())
		assert.InDelta(t, 1, targets[corner].Speed, 1e-9, corner.String())

		radial := c.drive.Geometry().Position(corner)
		tangent := radial.Perpendicular()
		assert.InDelta(t, 0, anglemath.Distance(targets[corner].AngleDeg, tangent.TurnAngleDeg()), 1e-9)
	}
}

func TestTargetsRectangularChassisScalesByRadius(t *testing.T) {
	c := newChassis(t, 10, 30, 0)
	targets := c.drive.Targets(0, 0, 2)
	for _, target := range targets {
		assert.InDelta(t, 2, target.Speed, 1e-9)
	}
	assert.NotEqual(t, 45.0, targets[LeftFront].AngleDeg)
}

func TestTargetsDesaturate(t *testing.T) {
	c := newChassis(t, 23, 23, 12)
	targets := c.drive.Targets(12, 0, 12)

	fastest := 0.0
	for _, target := range targets {
		fastest = math.Max(fastest, target.Speed)
	}
	assert.InDelta(t, 12, fastest, 1e-9)

	// left side spins forward with the translation, right side against it
	assert.InDelta(t, targets[LeftFront].Speed, targets[LeftBack].Speed, 1e-9)
	assert.InDelta(t, targets[RightFront].Speed, targets[RightBack].Speed, 1e-9)
	assert.Greater(t, targets[LeftFront].Speed, targets[RightFront].Speed)
}

func TestTargetsNonFiniteTreatedAsZero(t *testing.T) {
	c := newChassis(t, 23, 23, 0)
	for _, target := range c.drive.Targets(math.NaN(), math.Inf(1), math.NaN()) {
		assert.True(t, target.Hold)
		assert.Equal(t, 0.0, target.Speed)
	}
}

func TestPowerZeroHoldsAngles(t *testing.T) {
	c := newChassis(t, 23, 23, 0)
	require.NoError(t, c.drive.Power(0, 0, 1))

	before := map[Corner]float64{}
	for _, corner := range Corners {
		before[corner] = c.drive.Module(corner).TurnTarget()
	}

	require.NoError(t, c.drive.Power(0, 0, 0))
	for _, corner := range Corners {
		assert.Equal(t, before[corner], c.drive.Module(corner).TurnTarget(), corner.String())
		assert.Equal(t, 0.0, math.Abs(c.drives[corner].volts), corner.String())
	}
}

func TestPowerFieldRelative(t *testing.T) {
	c := newChassis(t, 23, 23, 0)
	require.NoError(t, c.drive.PowerFieldRelative(1, 90, 0, 90))
	for _, corner := range Corners {
		assert.InDelta(t, 0, anglemath.Distance(c.drive.Module(corner).TurnTarget(), 0), 1e-9)
		assert.InDelta(t, 1, c.drives[corner].volts, 1e-9)
	}
}

func TestSetConstantsAndThreshold(t *testing.T) {
	c := newChassis(t, 23, 23, 0)
	c.drive.SetConstants(pd.NewConstant(1, 0))
	c.drive.SetAlignmentThreshold(2)

	for _, corner := range Corners {
		c.encoders[corner].angle = 1
	}
	require.NoError(t, c.drive.Power(1, 0, 0))
	for _, corner := range Corners {
		assert.Equal(t, 0.0, c.turns[corner].volts)
	}

	for _, corner := range Corners {
		c.encoders[corner].angle = 350
	}
	require.NoError(t, c.drive.Power(1, 0, 0))
	for _, corner := range Corners {
		assert.InDelta(t, 10, c.turns[corner].volts, 1e-9)
	}
}

func TestStopAndDistances(t *testing.T) {
	c := newChassis(t, 23, 23, 0)
	c.drives[LeftBack].revs = 3
	require.NoError(t, c.drive.Power(1, 0, 0))
	require.NoError(t, c.drive.Stop())

	for _, corner := range Corners {
		assert.True(t, c.turns[corner].stopped)
		assert.True(t, c.drives[corner].stopped)
	}
	assert.Equal(t, 3.0, c.drive.Distances()[LeftBack])
}

func TestSetTurnTargets(t *testing.T) {
	c := newChassis(t, 23, 23, 0)
	require.NoError(t, c.drive.SetTurnTargets(0))
	for _, corner := range Corners {
		assert.Equal(t, 0.0, c.drive.Module(corner).TurnTarget())
		assert.Equal(t, 0.0, c.drives[corner].volts)
	}
}

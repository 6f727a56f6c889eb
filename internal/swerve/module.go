package swerve

import (
	"errors"
	"fmt"
)

// Motor is any actuator the drive can command by voltage.
type Motor interface {
	SetVoltage(volts float64) error
	PositionRevolutions() float64
	Stop() error
}

// AbsoluteEncoder reports the steering angle in degrees. Calibration offsets are applied by the module.
type AbsoluteEncoder interface {
	AngleDegrees() float64
}

// Module pairs a steering motor and a drive motor without feedback.
type Module struct {
	turn           Motor
	drive          Motor
	distancePerRev float64
}

func NewModule(turn, drive Motor, distancePerRev float64) (*Module, error) {
	if turn == nil || drive == nil {
		return nil, fmt.Errorf("module requires both a turn and a drive motor")
	}
	if distancePerRev <= 0 {
		return nil, fmt.Errorf("distance per revolution must be positive, got %f", distancePerRev)
	}
	return &Module{
		turn:           turn,
		drive:          drive,
		distancePerRev: distancePerRev,
	}, nil
}

func (m *Module) SetTurnVoltage(volts float64) error {
	err := m.turn.SetVoltage(volts)
	if err != nil {
		return fmt.Errorf("error setting turn voltage - %w", err)
	}
	return nil
}

func (m *Module) SetDriveVoltage(volts float64) error {
	err := m.drive.SetVoltage(volts)
	if err != nil {
		return fmt.Errorf("error setting drive voltage - %w", err)
	}
	return nil
}

// Distance is the linear wheel travel since the drive motor was zeroed.
func (m *Module) Distance() float64 {
	return m.drive.PositionRevolutions() * m.distancePerRev
}

func (m *Module) Stop() error {
	return errors.Join(m.turn.Stop(), m.drive.Stop())
}

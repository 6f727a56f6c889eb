package can

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/Speshl/gorrc_swerve/internal/command"
	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
)

// Motor controller frames. Command: int16 volts/100 LE, flags, current limit amps.
// Status: int32 rotor position LE in sensor ticks.
const (
	motorCommandBase uint32 = 0x200
	motorStatusBase  uint32 = 0x280

	voltsPerBit      = 0.01
	ticksPerRev      = 2048
	motorCommandSize = 4

	flagEnable byte = 1 << 0
	flagBrake  byte = 1 << 1
)

var positionSignal = Signal{Scale: 1.0 / ticksPerRev, Start: 0, Length: 32, Signed: true}

type FalconConfig struct {
	ID           int
	Reversed     bool
	Stallable    bool
	StallVolts   float64
	MaxVolts     float64
	CurrentLimit int
}

// Falcon is a brushless motor controller on the CAN bus driven by voltage.
type Falcon struct {
	bus    FrameBus
	cfg    FalconConfig
	shaper command.StallShaper
}

func NewFalcon(bus FrameBus, cfg FalconConfig) (*Falcon, error) {
	if bus == nil {
		return nil, errors.New("falcon requires a bus")
	}
	if cfg.ID < 0 || cfg.ID > 0x3f {
		return nil, errors.Errorf("falcon id %d out of range", cfg.ID)
	}
	shaper := command.StallShaper{MaxVolts: cfg.MaxVolts}
	if cfg.Stallable {
		shaper.StallVolts = cfg.StallVolts
	}
	return &Falcon{bus: bus, cfg: cfg, shaper: shaper}, nil
}

func MotorCommandID(id int) uint32 {
	return motorCommandBase + uint32(id)
}

func MotorStatusID(id int) uint32 {
	return motorStatusBase + uint32(id)
}

func (f *Falcon) StatusID() uint32 {
	return MotorStatusID(f.cfg.ID)
}

func (f *Falcon) SetVoltage(volts float64) error {
	shaped := f.shaper.Shape(volts)
	if f.cfg.Reversed {
		shaped = -shaped
	}
	err := f.bus.Send(f.commandFrame(shaped, flagEnable))
	if err != nil {
		return errors.Wrapf(err, "falcon %d set voltage", f.cfg.ID)
	}
	return nil
}

// PositionRevolutions is the accumulated rotor travel, zero until the first status frame.
func (f *Falcon) PositionRevolutions() float64 {
	frame, _, ok := f.bus.Latest(f.StatusID())
	if !ok {
		return 0
	}
	revs, err := positionSignal.Extract(frame.Data)
	if err != nil {
		return 0
	}
	if f.cfg.Reversed {
		revs = -revs
	}
	return revs
}

func (f *Falcon) Stop() error {
	err := f.bus.Send(f.commandFrame(0, flagBrake))
	if err != nil {
		return errors.Wrapf(err, "falcon %d stop", f.cfg.ID)
	}
	return nil
}

func (f *Falcon) commandFrame(volts float64, flags byte) canbus.Frame {
	frame := canbus.Frame{
		ID:   MotorCommandID(f.cfg.ID),
		Data: make([]byte, motorCommandSize),
		Kind: canbus.SFF,
	}
	raw := math.Round(volts / voltsPerBit)
	raw = math.Max(math.MinInt16, math.Min(math.MaxInt16, raw))
	binary.LittleEndian.PutUint16(frame.Data[0:2], uint16(int16(raw)))
	frame.Data[2] = flags
	frame.Data[3] = byte(clampInt(f.cfg.CurrentLimit, 0, math.MaxUint8))
	return frame
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// fresh reports whether a status frame is recent enough to trust.
func fresh(at time.Time, maxAge time.Duration) bool {
	return maxAge <= 0 || time.Since(at) <= maxAge
}

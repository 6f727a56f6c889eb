package can

import (
	"math"
	"time"

	"github.com/Speshl/gorrc_swerve/internal/anglemath"
	"github.com/pkg/errors"
)

const (
	encoderStatusBase uint32 = 0x300
	encoderCounts            = 4096
)

var absoluteSignal = Signal{Scale: anglemath.FullTurn / encoderCounts, Start: 0, Length: 12}

// CANCoder is an absolute steering encoder. MagnetOffset aligns the magnet to the module.
type CANCoder struct {
	bus          FrameBus
	id           int
	magnetOffset float64
	maxAge       time.Duration
}

func NewCANCoder(bus FrameBus, id int, magnetOffset float64, maxAge time.Duration) (*CANCoder, error) {
	if bus == nil {
		return nil, errors.New("cancoder requires a bus")
	}
	if id < 0 || id > 0x3f {
		return nil, errors.Errorf("cancoder id %d out of range", id)
	}
	return &CANCoder{bus: bus, id: id, magnetOffset: magnetOffset, maxAge: maxAge}, nil
}

func EncoderStatusID(id int) uint32 {
	return encoderStatusBase + uint32(id)
}

func (c *CANCoder) StatusID() uint32 {
	return EncoderStatusID(c.id)
}

// AngleDegrees returns NaN when no fresh reading is available.
func (c *CANCoder) AngleDegrees() float64 {
	frame, at, ok := c.bus.Latest(c.StatusID())
	if !ok || !fresh(at, c.maxAge) {
		return math.NaN()
	}
	raw, err := absoluteSignal.Extract(frame.Data)
	if err != nil {
		return math.NaN()
	}
	return anglemath.ConformAngle(raw + c.magnetOffset)
}

package can

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

const imuStatusBase uint32 = 0x380

var yawSignal = Signal{Scale: 1.0 / 256, Start: 0, Length: 32, Signed: true}

// Pigeon is the IMU. Yaw is continuous and counter-clockwise positive.
type Pigeon struct {
	bus    FrameBus
	id     int
	maxAge time.Duration
}

func NewPigeon(bus FrameBus, id int, maxAge time.Duration) (*Pigeon, error) {
	if bus == nil {
		return nil, errors.New("pigeon requires a bus")
	}
	if id < 0 || id > 0x3f {
		return nil, errors.Errorf("pigeon id %d out of range", id)
	}
	return &Pigeon{bus: bus, id: id, maxAge: maxAge}, nil
}

func IMUStatusID(id int) uint32 {
	return imuStatusBase + uint32(id)
}

func (p *Pigeon) StatusID() uint32 {
	return IMUStatusID(p.id)
}

func (p *Pigeon) HeadingDegrees() float64 {
	frame, at, ok := p.bus.Latest(p.StatusID())
	if !ok || !fresh(at, p.maxAge) {
		return math.NaN()
	}
	yaw, err := yawSignal.Extract(frame.Data)
	if err != nil {
		return math.NaN()
	}
	return yaw
}

package input

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Speshl/gorrc_swerve/internal/models"
	"go.uber.org/zap"
)

const DefaultSafetyTime = 200 * time.Millisecond

// Seat turns the stream of driver station commands into gamepad snapshots.
// A seat that has not heard from the driver within the safety time reads as neutral.
type Seat struct {
	lock sync.RWMutex
	seat *models.Seat
	log  *zap.SugaredLogger

	safetyTime  time.Duration
	buttonMasks []uint32

	active          bool
	nextCommand     models.ControlState
	lastCommandTime time.Time
}

func NewSeat(seat *models.Seat, safetyTime time.Duration, log *zap.SugaredLogger) *Seat {
	if safetyTime <= 0 {
		safetyTime = DefaultSafetyTime
	}
	return &Seat{
		seat:        seat,
		log:         log,
		safetyTime:  safetyTime,
		buttonMasks: BuildButtonMasks(),
	}
}

func (c *Seat) Start(ctx context.Context) error {
	c.log.Info("starting driver seat")

	safetyTicker := time.NewTicker(c.safetyTime)
	defer safetyTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Infow("stopping driver seat", "reason", ctx.Err())
			return ctx.Err()
		case <-safetyTicker.C:
			c.lock.Lock()
			if c.active && time.Since(c.lastCommandTime) > c.safetyTime {
				c.log.Warn("driver seat inactive, no command within safety time")
				c.active = false
			}
			c.lock.Unlock()
		case command, ok := <-c.seat.CommandChannel:
			if !ok {
				return fmt.Errorf("driver seat command channel closed")
			}
			c.receive(command)
		}
	}
}

func (c *Seat) receive(command models.ControlState) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if command.TimeStamp < c.nextCommand.TimeStamp {
		return //out of order
	}
	command.Buttons = ParseButtons(command.BitButton, c.buttonMasks)
	c.nextCommand = command
	c.lastCommandTime = time.Now()
	c.active = true
}

func (c *Seat) Active() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.active && time.Since(c.lastCommandTime) <= c.safetyTime
}

// Gamepad returns the newest snapshot, or a neutral one when the seat is inactive.
func (c *Seat) Gamepad() Gamepad {
	if !c.Active() {
		return Gamepad{}
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	return FromControlState(c.nextCommand)
}

// UpdateHud offers lines to the driver station without blocking.
func (c *Seat) UpdateHud(hud models.Hud) {
	if !c.Active() {
		return
	}
	select {
	case c.seat.HudChannel <- hud:
	default:
		c.log.Debug("driver seat hud channel full, skipping")
	}
}

func NewPress(oldState, newState Gamepad, buttonIndex int, f func()) bool {
	if newState.Button(buttonIndex) && !oldState.Button(buttonIndex) {
		f()
		return true
	}
	return false
}

// BuildButtonMasks creates 32 uints each with only 1 bit. 1,2,4,8,16,32...
func BuildButtonMasks() []uint32 {
	buttonMasks := make([]uint32, 32)
	for i := 0; i < 32; i++ {
		buttonMasks[i] = uint32(math.Pow(2, float64(i)))
	}
	return buttonMasks
}

func ParseButtons(bitButton uint32, masks []uint32) []bool {
	returnvalue := make([]bool, 32)
	for i := range masks {
		returnvalue[i] = ((bitButton & masks[i]) != 0) //Check if bitbutton and mask both have bits in same place
	}
	return returnvalue
}

package pipwm

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
	"go.uber.org/zap"
)

const (
	Frequency   = 100000
	CycleLength = uint32(2000)
)

var PwmPins = []int{12, 13, 18, 19}

type pin interface {
	Mode(mode rpio.Mode)
	Freq(freq int)
	DutyCycle(dutyLen, cycleLen uint32)
}

// Light drives the vision LED ring from a hardware PWM pin.
type Light struct {
	log *zap.SugaredLogger
	pin pin

	lock   sync.Mutex
	opened bool
	on     bool
}

func NewLight(pinNumber int, log *zap.SugaredLogger) (*Light, error) {
	supported := false
	for _, p := range PwmPins {
		if p == pinNumber {
			supported = true
		}
	}
	if !supported {
		return nil, fmt.Errorf("pin %d has no hardware pwm", pinNumber)
	}
	return &Light{
		log: log,
		pin: rpio.Pin(pinNumber),
	}, nil
}

func (l *Light) Init() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	err := rpio.Open()
	if err != nil {
		return fmt.Errorf("failed opening rpio: %w", err)
	}
	l.opened = true
	l.pin.Mode(rpio.Pwm)
	l.pin.Freq(Frequency)
	l.pin.DutyCycle(0, CycleLength)
	l.log.Info("vision light ready")
	return nil
}

// SetBrightness sets the duty cycle from 0 (off) to 1 (full).
func (l *Light) SetBrightness(level float64) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if level < 0 {
		level = 0
	} else if level > 1 {
		level = 1
	}
	l.on = level > 0
	l.pin.DutyCycle(uint32(level*float64(CycleLength)), CycleLength)
}

func (l *Light) SetOn(on bool) {
	if on {
		l.SetBrightness(1)
	} else {
		l.SetBrightness(0)
	}
}

func (l *Light) On() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.on
}

func (l *Light) Stop() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.pin.DutyCycle(0, CycleLength)
	l.on = false
	if !l.opened {
		return nil
	}
	l.opened = false
	err := rpio.Close()
	if err != nil {
		return fmt.Errorf("failed closing rpio: %w", err)
	}
	return nil
}

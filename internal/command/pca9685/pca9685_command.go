package pcacommand

import (
	"fmt"
	"sync"

	"github.com/Speshl/gorrc_swerve/internal/command"
	"github.com/Speshl/gorrc_swerve/internal/config"
	"github.com/googolgl/go-i2c"
	"github.com/googolgl/go-pca9685"
	"go.uber.org/zap"
)

const (
	MaxValue = 1.0
	MinValue = 0.0
	Neutral  = 0.5
	AcRange  = pca9685.ServoRangeDef

	MaxSupportedChannels = 16
)

type servo interface {
	Fraction(v float32) error
}

// Driver owns the PCA9685 board that feeds PWM motor controllers.
type Driver struct {
	cfg    config.CommandConfig
	log    *zap.SugaredLogger
	driver *pca9685.PCA9685

	lock   sync.Mutex
	motors map[int]*Motor
}

func NewDriver(cfg config.CommandConfig, log *zap.SugaredLogger) *Driver {
	return &Driver{
		cfg:    cfg,
		log:    log,
		motors: make(map[int]*Motor, MaxSupportedChannels),
	}
}

func (d *Driver) Init() error {
	i2c, err := i2c.New(d.cfg.Address, d.cfg.I2CDevice)
	if err != nil {
		return fmt.Errorf("error starting i2c with address - %w", err)
	}

	d.driver, err = pca9685.New(i2c, nil)
	if err != nil {
		return fmt.Errorf("error getting pwm driver - %w", err)
	}
	d.log.Infow("pca9685 ready", "device", d.cfg.I2CDevice, "address", d.cfg.Address)
	return nil
}

// Motor returns the controller on channel, creating it on first use.
func (d *Driver) Motor(name string, channel int, reversed bool, maxVolts float64) (*Motor, error) {
	if !(maxVolts > 0) {
		return nil, fmt.Errorf("max volts must be positive for %s, got %f", name, maxVolts)
	}
	if d.driver == nil {
		return nil, fmt.Errorf("pca9685 not initialised")
	}
	if channel < 0 || channel >= MaxSupportedChannels {
		return nil, fmt.Errorf("channel %d out of range for %s", channel, name)
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	if existing, ok := d.motors[channel]; ok {
		return nil, fmt.Errorf("channel %d already used by %s", channel, existing.name)
	}

	motor := NewMotor(name, d.driver.ServoNew(channel, &pca9685.ServOptions{
		AcRange:  AcRange,
		MinPulse: float32(d.cfg.MinPulse),
		MaxPulse: float32(d.cfg.MaxPulse),
	}), reversed, maxVolts)
	d.motors[channel] = motor
	d.log.Infow("pwm motor added", "name", name, "channel", channel)
	return motor, nil
}

// CenterAll puts every controller at neutral.
func (d *Driver) CenterAll() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.log.Info("centering all pwm motors")
	for _, motor := range d.motors {
		err := motor.Stop()
		if err != nil {
			return err
		}
	}
	return nil
}

// Motor is a PWM motor controller that takes a pulse proportional to voltage.
type Motor struct {
	name     string
	servo    servo
	reversed bool
	maxVolts float64
}

func NewMotor(name string, servo servo, reversed bool, maxVolts float64) *Motor {
	return &Motor{
		name:     name,
		servo:    servo,
		reversed: reversed,
		maxVolts: maxVolts,
	}
}

func (m *Motor) SetVoltage(volts float64) error {
	mappedValue := command.MapToRange(volts, -m.maxVolts, m.maxVolts, MinValue, MaxValue)
	if m.reversed {
		mappedValue = MaxValue - mappedValue
	}

	err := m.servo.Fraction(float32(mappedValue))
	if err != nil {
		return fmt.Errorf("failed setting pwm value - name: %s value: %.2f - %w", m.name, mappedValue, err)
	}
	return nil
}

// PositionRevolutions is always 0; PWM controllers report no travel.
func (m *Motor) PositionRevolutions() float64 {
	return 0
}

func (m *Motor) Stop() error {
	err := m.servo.Fraction(Neutral)
	if err != nil {
		return fmt.Errorf("failed centering %s - %w", m.name, err)
	}
	return nil
}

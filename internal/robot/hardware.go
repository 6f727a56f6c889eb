package robot

import (
	"context"
	"errors"
	"fmt"

	"github.com/Speshl/gorrc_swerve/internal/can"
	pcacommand "github.com/Speshl/gorrc_swerve/internal/command/pca9685"
	pipwm "github.com/Speshl/gorrc_swerve/internal/command/pi_pwm"
	"github.com/Speshl/gorrc_swerve/internal/config"
	"github.com/Speshl/gorrc_swerve/internal/pd"
	"github.com/Speshl/gorrc_swerve/internal/swerve"
	"github.com/Speshl/gorrc_swerve/internal/vision"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MotorFactory builds the motor for one side of a module.
type MotorFactory func(module config.ModuleConfig, turn bool) (swerve.Motor, error)

// Hardware is every device the drive and positioning read from or command.
type Hardware struct {
	Modules [4]*swerve.ModulePD
	Heading *can.Pigeon
	Camera  *vision.Camera

	bus   *can.Bus
	pwm   *pcacommand.Driver
	light *pipwm.Light
	log   *zap.SugaredLogger
}

func NewHardware(cfg config.Config, log *zap.SugaredLogger) (*Hardware, error) {
	bus, err := can.Open(cfg.CanCfg.Channel, StatusIDs(cfg), log.Named("can"))
	if err != nil {
		return nil, fmt.Errorf("error opening can bus - %w", err)
	}

	return newHardware(cfg, bus, log)
}

// newHardware takes ownership of bus and closes it when any device fails.
func newHardware(cfg config.Config, bus *can.Bus, log *zap.SugaredLogger) (_ *Hardware, err error) {
	defer func() {
		if err != nil {
			err = errors.Join(err, bus.Close())
		}
	}()
	h := &Hardware{bus: bus, log: log}

	motors := CanMotors(bus, cfg.CanCfg, cfg.DriveCfg.MaxOutput)
	if cfg.DriveCfg.MotorDriver == config.MotorDriverPCA9685 {
		h.pwm = pcacommand.NewDriver(cfg.CommandCfg, log.Named("pca9685"))
		err = h.pwm.Init()
		if err != nil {
			return nil, fmt.Errorf("error initialising pwm motor driver - %w", err)
		}
		motors = PWMMotors(h.pwm, cfg.DriveCfg.MaxOutput)
	}

	h.Modules, err = NewModules(cfg, bus, motors)
	if err != nil {
		return nil, err
	}

	h.Heading, err = can.NewPigeon(bus, cfg.CanCfg.IMUID, cfg.CanCfg.StatusTimeout)
	if err != nil {
		return nil, fmt.Errorf("error creating imu - %w", err)
	}

	var illuminator vision.Illuminator
	if cfg.VisionCfg.LightEnabled {
		light, err := pipwm.NewLight(cfg.VisionCfg.LightPin, log.Named("light"))
		if err == nil {
			err = light.Init()
		}
		if err != nil {
			log.Warnw("vision light unavailable, continuing without it", "error", err)
		} else {
			h.light = light
			illuminator = light
		}
	}
	h.Camera = vision.NewCamera(cfg.VisionCfg.URL, cfg.VisionCfg.Timeout, illuminator, log.Named("vision"))
	return h, nil
}

// StatusIDs lists every frame id the robot listens for.
func StatusIDs(cfg config.Config) []uint32 {
	ids := []uint32{can.IMUStatusID(cfg.CanCfg.IMUID)}
	for _, module := range cfg.DriveCfg.Modules {
		ids = append(ids, can.EncoderStatusID(module.EncoderID))
		if cfg.DriveCfg.MotorDriver == config.MotorDriverCan {
			ids = append(ids, can.MotorStatusID(module.TurnID), can.MotorStatusID(module.DriveID))
		}
	}
	return ids
}

func CanMotors(bus can.FrameBus, canCfg config.CanConfig, maxVolts float64) MotorFactory {
	return func(module config.ModuleConfig, turn bool) (swerve.Motor, error) {
		falconCfg := can.FalconConfig{
			ID:           module.DriveID,
			Reversed:     module.DriveReversed,
			StallVolts:   canCfg.StallVolts,
			MaxVolts:     maxVolts,
			CurrentLimit: canCfg.CurrentLimit,
		}
		if turn {
			falconCfg.ID = module.TurnID
			falconCfg.Reversed = module.TurnReversed
			falconCfg.Stallable = module.TurnStallable
		}
		return can.NewFalcon(bus, falconCfg)
	}
}

func PWMMotors(driver *pcacommand.Driver, maxVolts float64) MotorFactory {
	return func(module config.ModuleConfig, turn bool) (swerve.Motor, error) {
		if turn {
			return driver.Motor(module.Name+"Turn", module.TurnChannel, module.TurnReversed, maxVolts)
		}
		return driver.Motor(module.Name+"Drive", module.DriveChannel, module.DriveReversed, maxVolts)
	}
}

// NewModules builds the four closed loop modules in corner order from the drive calibration.
func NewModules(cfg config.Config, bus can.FrameBus, motors MotorFactory) ([4]*swerve.ModulePD, error) {
	var modules [4]*swerve.ModulePD
	if len(cfg.DriveCfg.Modules) != len(modules) {
		return modules, fmt.Errorf("expected %d modules, got %d", len(modules), len(cfg.DriveCfg.Modules))
	}

	constant := TurnConstant(cfg.DriveCfg)
	for i, moduleCfg := range cfg.DriveCfg.Modules {
		corner := swerve.Corners[i]
		name := moduleCfg.Name
		if name == "" {
			name = corner.String()
		}

		turn, err := motors(moduleCfg, true)
		if err != nil {
			return modules, fmt.Errorf("error creating %s turn motor - %w", name, err)
		}
		drive, err := motors(moduleCfg, false)
		if err != nil {
			return modules, fmt.Errorf("error creating %s drive motor - %w", name, err)
		}
		module, err := swerve.NewModule(turn, drive, cfg.DriveCfg.DistancePerRev)
		if err != nil {
			return modules, fmt.Errorf("error creating %s module - %w", name, err)
		}
		encoder, err := can.NewCANCoder(bus, moduleCfg.EncoderID, moduleCfg.MagnetOffset, cfg.CanCfg.StatusTimeout)
		if err != nil {
			return modules, fmt.Errorf("error creating %s encoder - %w", name, err)
		}

		modules[corner], err = swerve.NewModulePD(name, module, encoder, moduleCfg.AngleOffset, constant)
		if err != nil {
			return modules, err
		}
	}
	return modules, nil
}

func TurnConstant(driveCfg config.DriveConfig) pd.Constant {
	return pd.NewConstant(driveCfg.TurnKp, driveCfg.TurnKd).WithMagnitude(driveCfg.TurnMagnitude)
}

func NewDrive(driveCfg config.DriveConfig, modules [4]*swerve.ModulePD) (*swerve.PositionedDrive, error) {
	return swerve.NewPositionedDrive(swerve.Geometry{Width: driveCfg.Width, Length: driveCfg.Length}, driveCfg.MaxOutput, modules)
}

// Start runs the device goroutines until ctx is done.
func (h *Hardware) Start(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return h.bus.Start(groupCtx)
	})
	group.Go(func() error {
		return h.Camera.Start(groupCtx)
	})
	return group.Wait()
}

// Close releases the pwm board and the light. Motors must already be stopped.
func (h *Hardware) Close() error {
	var errs []error
	if h.pwm != nil {
		errs = append(errs, h.pwm.CenterAll())
	}
	if h.light != nil {
		errs = append(errs, h.light.Stop())
	}
	return errors.Join(errs...)
}

// Release closes hardware that was built but never started.
func (h *Hardware) Release() error {
	return errors.Join(h.Close(), h.bus.Close())
}

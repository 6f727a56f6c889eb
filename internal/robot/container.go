package robot

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/Speshl/gorrc_swerve/internal/anglemath"
	"github.com/Speshl/gorrc_swerve/internal/config"
	"github.com/Speshl/gorrc_swerve/internal/input"
	"github.com/Speshl/gorrc_swerve/internal/pd"
	"github.com/Speshl/gorrc_swerve/internal/positioning"
	"github.com/Speshl/gorrc_swerve/internal/scheduler"
	"github.com/Speshl/gorrc_swerve/internal/swerve"
	"github.com/Speshl/gorrc_swerve/internal/telemetry"
	"github.com/Speshl/gorrc_swerve/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type GamepadSource interface {
	Gamepad() input.Gamepad
}

type Deps struct {
	Scheduler          *scheduler.Scheduler
	Drive              *swerve.PositionedDrive
	Positioning        *positioning.FieldPositioning
	Gamepad            GamepadSource
	Teleop             config.TeleopConfig
	TurnConstant       pd.Constant
	AlignmentThreshold float64
	Log                *zap.SugaredLogger
}

// Container owns the mode behaviours. Everything except State runs on the loop goroutine.
type Container struct {
	sched       *scheduler.Scheduler
	drive       *swerve.PositionedDrive
	positioning *positioning.FieldPositioning
	gamepad     GamepadSource
	cfg         config.TeleopConfig
	log         *zap.SugaredLogger

	turnConstant pd.Constant
	alignment    float64
	aim          *pd.Controller
	aimTarget    vector.Vector

	state atomic.Pointer[telemetry.Snapshot]
}

func NewContainer(deps Deps) (*Container, error) {
	if deps.Scheduler == nil || deps.Drive == nil || deps.Positioning == nil || deps.Gamepad == nil {
		return nil, fmt.Errorf("robot container requires a scheduler, drive, positioning and gamepad")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	cfg := deps.Teleop
	if cfg.DiagnosticInterval <= 0 {
		cfg.DiagnosticInterval = config.DefaultDiagnostics
	}
	if cfg.TestLogInterval <= 0 {
		cfg.TestLogInterval = config.DefaultTestLogInterval
	}

	c := &Container{
		sched:        deps.Scheduler,
		drive:        deps.Drive,
		positioning:  deps.Positioning,
		gamepad:      deps.Gamepad,
		cfg:          cfg,
		log:          deps.Log,
		turnConstant: deps.TurnConstant,
		alignment:    deps.AlignmentThreshold,
		aim:          pd.NewController(pd.NewConstant(cfg.AimKp, cfg.AimKd)),
		aimTarget:    vector.New(cfg.AimX, cfg.AimY),
	}
	c.state.Store(&telemetry.Snapshot{Pose: deps.Positioning.Pose()})
	return c, nil
}

func (c *Container) Policy() Policy {
	return Policy{
		Teleop:     c.teleopInit,
		Autonomous: c.autonomousInit,
		Test:       c.testInit,
		Disabled:   c.disabledInit,
	}
}

// Reset clears controller memory on every mode entry.
func (c *Container) Reset() {
	c.drive.Reset()
	c.aim.Reset()
}

// State is the latest pose and module outputs, safe to read from any goroutine.
func (c *Container) State() telemetry.Snapshot {
	return *c.state.Load()
}

func (c *Container) publish() {
	c.state.Store(&telemetry.Snapshot{
		Pose:    c.positioning.Pose(),
		Locked:  c.positioning.HasLock(),
		Outputs: c.drive.Outputs(),
	})
}

func (c *Container) setCamMode(active bool) {
	err := c.positioning.SetCamMode(active)
	if err != nil {
		c.log.Warnw("failed setting cam mode", "active", active, "error", err)
	}
}

func (c *Container) applyDriveSettings() {
	c.drive.SetAlignmentThreshold(c.alignment)
	c.drive.SetConstants(c.turnConstant)
}

func (c *Container) teleopInit() {
	c.setCamMode(true)
	c.applyDriveSettings()

	diagnostics := rate.Sometimes{Interval: c.cfg.DiagnosticInterval}
	c.sched.RegisterTick(func() {
		c.positioning.Update()
		pose := c.positioning.Pose()
		target, correction := c.aimCorrection(pose)

		err := c.teleopDrive(c.gamepad.Gamepad(), pose.Heading, correction)
		if err != nil {
			c.log.Errorw("teleop drive failed", "error", err)
		}
		c.publish()

		diagnostics.Do(func() {
			c.log.Infow("teleop",
				"pos", pose.Position,
				"angle", pose.Heading,
				"target", target,
				"correction", correction,
				"locked", c.positioning.HasLock(),
			)
		})
	})
}

// aimCorrection returns the heading that faces the aim point and the rotation that turns toward it.
// It runs every tick so the derivative term stays current while aim is not held.
func (c *Container) aimCorrection(pose positioning.Pose) (float64, float64) {
	displacement := c.aimTarget.Minus(pose.Position)
	target := anglemath.ConformAngle(displacement.TurnAngleDeg() + c.cfg.AimHeadingOffset)
	return target, c.aim.Solve(anglemath.GetDelta(target, pose.Heading))
}

func (c *Container) teleopDrive(pad input.Gamepad, heading, correction float64) error {
	stick := pad.LeftStick()
	aiming := pad.Button(input.ButtonR1)
	if stick.Magnitude()+math.Abs(pad.RightX) <= c.cfg.StickThreshold && !aiming {
		return c.drive.Power(0, 0, 0)
	}

	rotation := pad.RightX * c.cfg.MaxVolts
	if aiming {
		rotation = correction
	}
	magnitude := input.Curve(math.Min(stick.Magnitude(), 1), c.cfg.CurvePower) * c.cfg.MaxVolts
	return c.drive.PowerFieldRelative(magnitude, stick.TurnAngleDeg(), rotation, heading)
}

func (c *Container) autonomousInit() {
	c.setCamMode(true)
	c.applyDriveSettings()

	c.sched.RegisterTick(func() {
		c.positioning.Update()
		err := c.drive.Power(0, 0, 0)
		if err != nil {
			c.log.Errorw("autonomous hold failed", "error", err)
		}
		c.publish()
	})
}

func (c *Container) testInit() {
	c.setCamMode(false)
	c.drive.SetConstants(pd.NewConstant(0.1, 0))

	distanceLog := rate.Sometimes{Interval: c.cfg.TestLogInterval}
	c.sched.RegisterTick(func() {
		err := c.drive.SetTurnTargets(0)
		if err != nil {
			c.log.Errorw("test alignment failed", "error", err)
		}
		c.publish()

		distanceLog.Do(func() {
			distances := c.drive.Distances()
			fields := make([]interface{}, 0, 2*len(swerve.Corners))
			for _, corner := range swerve.Corners {
				fields = append(fields, corner.String(), distances[corner])
			}
			c.log.Infow("wheel distances", fields...)
		})
	})
}

func (c *Container) disabledInit() {
	c.setCamMode(false)
	err := c.drive.Stop()
	if err != nil {
		c.log.Errorw("failed stopping drive", "error", err)
	}
	c.publish()
}

// Shutdown stops every actuator. Call it only after the loop has exited.
func (c *Container) Shutdown() error {
	c.setCamMode(false)
	return c.drive.Stop()
}

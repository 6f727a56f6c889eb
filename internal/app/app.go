package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Speshl/gorrc_swerve/internal/config"
	"github.com/Speshl/gorrc_swerve/internal/input"
	"github.com/Speshl/gorrc_swerve/internal/models"
	"github.com/Speshl/gorrc_swerve/internal/positioning"
	"github.com/Speshl/gorrc_swerve/internal/robot"
	"github.com/Speshl/gorrc_swerve/internal/scheduler"
	"github.com/Speshl/gorrc_swerve/internal/telemetry"
	"github.com/Speshl/gorrc_swerve/internal/vector"
	socketio "github.com/googollee/go-socket.io"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const netSampleInterval = time.Second

var errSignal = errors.New("received signal")

type App struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	cfg    config.Config
	client *socketio.Client
	log    *zap.SugaredLogger

	robotInfo models.Robot
	eventInfo models.Event

	seat       *models.Seat
	driverSeat *input.Seat

	connLock sync.Mutex
	userConn *Connection

	sched      *scheduler.Scheduler
	hardware   *robot.Hardware
	container  *robot.Container
	dispatcher *robot.Dispatcher
	netMonitor *telemetry.NetMonitor
}

func NewApp(cfg config.Config, client *socketio.Client, log *zap.SugaredLogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		ctx:       ctx,
		ctxCancel: cancel,
		cfg:       cfg,
		client:    client,
		log:       log,
		seat:      models.NewSeat(),
	}
	a.driverSeat = input.NewSeat(a.seat, cfg.TeleopCfg.InputTimeout, log.Named("seat"))

	hardware, err := robot.NewHardware(cfg, log)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("error creating hardware - %w", err)
	}
	a.hardware = hardware
	fail := func(err error) (*App, error) {
		cancel()
		return nil, errors.Join(err, hardware.Release())
	}

	drive, err := robot.NewDrive(cfg.DriveCfg, hardware.Modules)
	if err != nil {
		return fail(fmt.Errorf("error creating drive - %w", err))
	}

	fieldPositioning, err := positioning.NewFieldPositioning(hardware.Heading, hardware.Camera, positioning.Config{
		Start:         vector.New(cfg.PositioningCfg.StartX, cfg.PositioningCfg.StartY),
		HeadingOffset: cfg.PositioningCfg.HeadingOffset,
		HeadingBlend:  cfg.PositioningCfg.HeadingBlend,
	})
	if err != nil {
		return fail(fmt.Errorf("error creating field positioning - %w", err))
	}

	a.sched = scheduler.NewScheduler(cfg.LoopPeriod, log.Named("loop"))
	a.container, err = robot.NewContainer(robot.Deps{
		Scheduler:          a.sched,
		Drive:              drive,
		Positioning:        fieldPositioning,
		Gamepad:            a.driverSeat,
		Teleop:             cfg.TeleopCfg,
		TurnConstant:       robot.TurnConstant(cfg.DriveCfg),
		AlignmentThreshold: cfg.DriveCfg.AlignmentThreshold,
		Log:                log.Named("robot"),
	})
	if err != nil {
		return fail(fmt.Errorf("error creating robot container - %w", err))
	}
	a.dispatcher = robot.NewDispatcher(a.sched, a.container.Policy(), a.container.Reset, log.Named("mode"))

	a.netMonitor, err = telemetry.NewNetMonitor(cfg.ServerCfg.NetInterface, netSampleInterval, log.Named("net"))
	if err != nil {
		return fail(fmt.Errorf("error creating net monitor - %w", err))
	}
	return a, nil
}

func (a *App) RegisterHandlers() error {
	a.log.Info("registering handlers")
	a.client.OnEvent("reply", func(s socketio.Conn, msg string) {
		a.log.Debugw("received reply", "msg", msg)
	})
	a.client.OnEvent("offer", a.onOffer)
	a.client.OnEvent("candidate", a.onICECandidate)
	a.client.OnEvent("register_success", a.onRegisterSuccess)
	a.client.OnEvent("mode", a.onModeChange)

	a.log.Infow("attempting to connect to server", "server", a.cfg.ServerCfg.Server)
	err := a.client.Connect() //Client must have at least 1 event handler to work
	if err != nil {
		return fmt.Errorf("error connecting to server - %w", err)
	}
	a.log.Info("connected to server")
	return nil
}

func (a *App) replaceConnection(conn *Connection) {
	a.connLock.Lock()
	previous := a.userConn
	a.userConn = conn
	a.connLock.Unlock()
	if previous != nil {
		previous.Disconnect()
	}
}

func (a *App) currentConnection() *Connection {
	a.connLock.Lock()
	defer a.connLock.Unlock()
	return a.userConn
}

func (a *App) Start() error {
	a.log.Info("starting...")

	// Devices outlive the control loop so the final stop frames still reach the bus.
	deviceCtx, deviceCancel := context.WithCancel(context.Background())
	defer deviceCancel()
	deviceDone := make(chan error, 1)
	go func() {
		deviceDone <- a.hardware.Start(deviceCtx)
	}()

	group, groupCtx := errgroup.WithContext(a.ctx)

	//kill listener
	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(signalChannel)
		select {
		case sig := <-signalChannel:
			a.log.Infow("received signal", "signal", sig)
			a.ctxCancel()
			return fmt.Errorf("%w: %s", errSignal, sig)
		case <-groupCtx.Done():
			return groupCtx.Err()
		}
	})

	group.Go(func() error {
		return a.sched.Run(groupCtx)
	})

	group.Go(func() error {
		return a.driverSeat.Start(groupCtx)
	})

	group.Go(func() error {
		return a.netMonitor.Start(groupCtx)
	})

	group.Go(func() error {
		return a.hudLoop(groupCtx)
	})

	//Send connect and send healthchecks
	group.Go(func() error {
		encodedMsg, err := encode(models.ConnectReq{
			Key:      a.cfg.ServerCfg.Key,
			Password: a.cfg.ServerCfg.Password,
			Name:     a.cfg.ServerCfg.Name,
		})
		if err != nil {
			return fmt.Errorf("error encoding connect request - %w", err)
		}
		a.client.Emit("robot_connect", encodedMsg)

		healthTicker := time.NewTicker(a.cfg.ServerCfg.HealthInterval)
		defer healthTicker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				a.log.Info("health checker stopped")
				return groupCtx.Err()
			case <-healthTicker.C:
				stats := a.sched.Stats()
				a.log.Infow("healthcheck", "mode", a.dispatcher.Mode(), "ticks", stats.Ticks, "overruns", stats.Overruns)
				a.client.Emit("robot_healthy", "")
			}
		}
	})

	a.dispatcher.SetMode(robot.ModeDisabled)

	err := group.Wait()
	a.log.Info("shutting down")
	err = errors.Join(normalize(err), a.shutdown(deviceCancel, deviceDone))
	if err != nil {
		return fmt.Errorf("robot stopping due to error - %w", err)
	}
	return nil
}

// shutdown runs after the control loop has exited.
func (a *App) shutdown(deviceCancel context.CancelFunc, deviceDone <-chan error) error {
	var errs []error
	errs = append(errs, a.container.Shutdown())

	deviceCancel()
	errs = append(errs, normalize(<-deviceDone))
	errs = append(errs, a.hardware.Close())

	if conn := a.currentConnection(); conn != nil {
		conn.Disconnect()
	}
	errs = append(errs, a.client.Close())
	return errors.Join(errs...)
}

func (a *App) hudLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.ServerCfg.HudRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.driverSeat.UpdateHud(telemetry.BuildHud(a.snapshot()))
		}
	}
}

func (a *App) snapshot() telemetry.Snapshot {
	snapshot := a.container.State()
	snapshot.Mode = string(a.dispatcher.Mode())
	snapshot.Loop = a.sched.Stats()
	snapshot.Net = a.netMonitor.Latest()
	return snapshot
}

// normalize treats cancellation and signals as a clean stop.
func normalize(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, errSignal) {
		return nil
	}
	return err
}

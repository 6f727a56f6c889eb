package robot

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/Speshl/gorrc_swerve/internal/scheduler"
	"go.uber.org/zap"
)

type Mode string

const (
	ModeDisabled   Mode = "disabled"
	ModeTeleop     Mode = "teleop"
	ModeAutonomous Mode = "autonomous"
	ModeTest       Mode = "test"
)

func ParseMode(value string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(value))); mode {
	case ModeDisabled, ModeTeleop, ModeAutonomous, ModeTest:
		return mode, nil
	default:
		return ModeDisabled, fmt.Errorf("unknown mode: %q", value)
	}
}

// Policy holds what to do on entering each mode. Nil entries do nothing.
type Policy struct {
	Teleop     func()
	Autonomous func()
	Test       func()
	Disabled   func()
}

func (p Policy) For(mode Mode) func() {
	var fn func()
	switch mode {
	case ModeTeleop:
		fn = p.Teleop
	case ModeAutonomous:
		fn = p.Autonomous
	case ModeTest:
		fn = p.Test
	default:
		fn = p.Disabled
	}
	if fn == nil {
		return func() {}
	}
	return fn
}

// Dispatcher switches modes on the loop goroutine between ticks.
type Dispatcher struct {
	sched  *scheduler.Scheduler
	policy Policy
	reset  func()
	log    *zap.SugaredLogger

	mode atomic.Value
}

// NewDispatcher builds a dispatcher. reset runs on every mode entry before the policy.
func NewDispatcher(sched *scheduler.Scheduler, policy Policy, reset func(), log *zap.SugaredLogger) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := &Dispatcher{
		sched:  sched,
		policy: policy,
		reset:  reset,
		log:    log,
	}
	d.mode.Store(ModeDisabled)
	return d
}

func (d *Dispatcher) SetMode(mode Mode) {
	d.sched.Do(func() {
		d.enter(mode)
	})
}

func (d *Dispatcher) enter(mode Mode) {
	previous := d.Mode()
	d.sched.Reset()
	if d.reset != nil {
		d.reset()
	}
	d.policy.For(mode)()
	d.mode.Store(mode)
	d.log.Infow("mode changed", "from", previous, "to", mode)
}

func (d *Dispatcher) Mode() Mode {
	return d.mode.Load().(Mode)
}

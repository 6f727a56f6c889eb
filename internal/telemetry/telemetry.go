package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_swerve/internal/models"
	"github.com/Speshl/gorrc_swerve/internal/positioning"
	"github.com/Speshl/gorrc_swerve/internal/scheduler"
	"github.com/Speshl/gorrc_swerve/internal/swerve"
	"github.com/prometheus/procfs"
	"go.uber.org/zap"
)

type NetStats struct {
	Interface string
	RxBytes   uint64
	TxBytes   uint64
	RxRate    float64 //bytes per second
	TxRate    float64
	Sampled   time.Time
}

// NetMonitor samples interface counters off the control loop.
type NetMonitor struct {
	iface    string
	interval time.Duration
	log      *zap.SugaredLogger
	source   func() (procfs.NetDev, error)

	lock  sync.RWMutex
	stats NetStats
}

func NewNetMonitor(iface string, interval time.Duration, log *zap.SugaredLogger) (*NetMonitor, error) {
	p, err := procfs.Self()
	if err != nil {
		return nil, fmt.Errorf("error: procfs could not get process - %w", err)
	}
	return newNetMonitor(iface, interval, p.NetDev, log), nil
}

func newNetMonitor(iface string, interval time.Duration, source func() (procfs.NetDev, error), log *zap.SugaredLogger) *NetMonitor {
	return &NetMonitor{
		iface:    iface,
		interval: interval,
		log:      log,
		source:   source,
		stats:    NetStats{Interface: iface},
	}
}

func (n *NetMonitor) Start(ctx context.Context) error {
	n.log.Infow("starting net monitor", "interface", n.iface)
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	missingLogged := false
	for {
		select {
		case <-ctx.Done():
			n.log.Infow("stopping net monitor", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			err := n.sample(time.Now())
			if err != nil && !missingLogged {
				n.log.Warnw("net stats unavailable", "error", err)
				missingLogged = true
			}
		}
	}
}

func (n *NetMonitor) sample(now time.Time) error {
	netDev, err := n.source()
	if err != nil {
		return fmt.Errorf("error: failed getting netstat - %w", err)
	}
	line, ok := netDev[n.iface]
	if !ok {
		return fmt.Errorf("error: failed getting %s stats: not found", n.iface)
	}

	n.lock.Lock()
	defer n.lock.Unlock()
	previous := n.stats
	n.stats = NetStats{
		Interface: n.iface,
		RxBytes:   line.RxBytes,
		TxBytes:   line.TxBytes,
		Sampled:   now,
	}
	if !previous.Sampled.IsZero() {
		elapsed := now.Sub(previous.Sampled).Seconds()
		if elapsed > 0 && line.RxBytes >= previous.RxBytes && line.TxBytes >= previous.TxBytes {
			n.stats.RxRate = float64(line.RxBytes-previous.RxBytes) / elapsed
			n.stats.TxRate = float64(line.TxBytes-previous.TxBytes) / elapsed
		}
	}
	return nil
}

func (n *NetMonitor) Latest() NetStats {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.stats
}

// Snapshot is everything the driver station HUD shows.
type Snapshot struct {
	Mode    string
	Pose    positioning.Pose
	Locked  bool
	Outputs [4]swerve.ModuleOutput
	Loop    scheduler.Stats
	Net     NetStats
}

func BuildHud(s Snapshot) models.Hud {
	lock := "no lock"
	if s.Locked {
		lock = "locked"
	}
	lines := []string{
		fmt.Sprintf("mode: %s", s.Mode),
		fmt.Sprintf("pose: %s (%s)", s.Pose, lock),
	}
	for _, corner := range swerve.Corners {
		out := s.Outputs[corner]
		lines = append(lines, fmt.Sprintf("%s: %.1f->%.1f drive %.2f", corner, out.CurrentAngle, out.EffectiveTarget, out.Drive))
	}
	lines = append(lines,
		fmt.Sprintf("loop: %d ticks, %d overruns, max %s", s.Loop.Ticks, s.Loop.Overruns, s.Loop.MaxElapsed.Round(time.Microsecond)),
		fmt.Sprintf("%s: rx %.1f kB/s tx %.1f kB/s", s.Net.Interface, s.Net.RxRate/1000, s.Net.TxRate/1000),
	)
	return models.Hud{Lines: lines}
}

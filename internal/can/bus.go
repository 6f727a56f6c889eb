package can

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

const (
	outboxSize   = 64
	recvBackoff  = 10 * time.Millisecond
	errorLogRate = time.Second
)

// Socket is the part of a SocketCAN socket the bus needs.
type Socket interface {
	Send(frame canbus.Frame) (int, error)
	Recv() (canbus.Frame, error)
	Close() error
}

// FrameBus is what devices use to talk on the bus without blocking the control loop.
type FrameBus interface {
	Send(frame canbus.Frame) error
	Latest(id uint32) (canbus.Frame, time.Time, bool)
}

type received struct {
	frame canbus.Frame
	at    time.Time
}

// Bus queues outgoing frames for a publish goroutine and keeps the newest frame per id from a receive goroutine.
type Bus struct {
	tx  Socket
	rx  Socket
	log *zap.SugaredLogger

	outbox chan canbus.Frame

	lock   sync.RWMutex
	latest map[uint32]received

	dropped atomic.Uint64
	errLog  rate.Sometimes
}

// Open binds a send socket and a filtered receive socket on channel (for example can0).
func Open(channel string, ids []uint32, log *zap.SugaredLogger) (*Bus, error) {
	tx, err := canbus.New()
	if err != nil {
		return nil, errors.Wrap(err, "error creating can send socket")
	}
	err = tx.Bind(channel)
	if err != nil {
		tx.Close()
		return nil, errors.Wrapf(err, "error binding can send socket to %s", channel)
	}

	rx, err := canbus.New()
	if err != nil {
		tx.Close()
		return nil, errors.Wrap(err, "error creating can receive socket")
	}

	filters := make([]unix.CanFilter, 0, len(ids))
	for _, id := range ids {
		filters = append(filters, unix.CanFilter{Id: id, Mask: unix.CAN_SFF_MASK})
	}
	err = rx.SetFilters(filters)
	if err != nil {
		tx.Close()
		rx.Close()
		return nil, errors.Wrap(err, "error setting can receive filters")
	}
	err = rx.Bind(channel)
	if err != nil {
		tx.Close()
		rx.Close()
		return nil, errors.Wrapf(err, "error binding can receive socket to %s", channel)
	}

	log.Infow("can bus opened", "channel", channel, "filters", len(filters))
	return NewBus(tx, rx, log), nil
}

func NewBus(tx, rx Socket, log *zap.SugaredLogger) *Bus {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Bus{
		tx:     tx,
		rx:     rx,
		log:    log,
		outbox: make(chan canbus.Frame, outboxSize),
		latest: make(map[uint32]received),
		errLog: rate.Sometimes{Interval: errorLogRate},
	}
}

// Send queues a frame. It never blocks; a full queue drops the frame.
func (b *Bus) Send(frame canbus.Frame) error {
	select {
	case b.outbox <- frame:
		return nil
	default:
		b.dropped.Add(1)
		return errors.Errorf("can outbox full, dropped frame %#x", frame.ID)
	}
}

// Close releases both sockets of a bus that was never started. Start closes them itself.
func (b *Bus) Close() error {
	txErr := b.tx.Close()
	rxErr := b.rx.Close()
	if txErr != nil {
		return errors.Wrap(txErr, "error closing can send socket")
	}
	if rxErr != nil {
		return errors.Wrap(rxErr, "error closing can receive socket")
	}
	return nil
}

func (b *Bus) Latest(id uint32) (canbus.Frame, time.Time, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	r, ok := b.latest[id]
	return r.frame, r.at, ok
}

func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) store(frame canbus.Frame) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.latest[frame.ID] = received{frame: frame, at: time.Now()}
}

// Start runs the publish and receive goroutines until ctx is done, then closes both sockets.
func (b *Bus) Start(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer b.tx.Close()
		return b.publishThread(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		return b.rx.Close() //unblocks Recv
	})

	group.Go(func() error {
		return b.receiveThread(groupCtx)
	})

	err := group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "can bus stopped")
	}
	return ctx.Err()
}

func (b *Bus) publishThread(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.flush()
			b.log.Infow("can publish stopped", "dropped", b.dropped.Load())
			return ctx.Err()
		case frame := <-b.outbox:
			b.write(frame)
		}
	}
}

// flush writes whatever is still queued so final stop frames reach the bus.
func (b *Bus) flush() {
	for {
		select {
		case frame := <-b.outbox:
			b.write(frame)
		default:
			return
		}
	}
}

func (b *Bus) write(frame canbus.Frame) {
	_, err := b.tx.Send(frame)
	if err != nil {
		b.errLog.Do(func() {
			b.log.Errorw("can send error", "id", frame.ID, "error", err)
		})
	}
}

func (b *Bus) receiveThread(ctx context.Context) error {
	for {
		frame, err := b.rx.Recv()
		if ctx.Err() != nil {
			b.log.Infow("can receive stopped")
			return ctx.Err()
		}
		if err != nil {
			b.errLog.Do(func() {
				b.log.Errorw("can receive error", "error", err)
			})
			time.Sleep(recvBackoff)
			continue
		}
		b.store(frame)
	}
}

package can

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-daq/canbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalExtract(t *testing.T) {
	tests := []struct {
		name     string
		signal   Signal
		data     []byte
		expected float64
	}{
		{name: "unsigned byte", signal: Signal{Scale: 1, Start: 8, Length: 8}, data: []byte{0x00, 0x7f}, expected: 127},
		{name: "little endian word", signal: Signal{Scale: 1, Start: 0, Length: 16}, data: []byte{0x34, 0x12}, expected: 0x1234},
		{name: "signed negative", signal: Signal{Scale: 1, Start: 0, Length: 16, Signed: true}, data: []byte{0xff, 0xff}, expected: -1},
		{name: "scaled with offset", signal: Signal{Scale: 0.5, Offset: 10, Start: 0, Length: 8}, data: []byte{4}, expected: 12},
		{name: "unaligned nibble", signal: Signal{Scale: 1, Start: 4, Length: 4}, data: []byte{0xa5}, expected: 0xa},
		{name: "signed 32", signal: Signal{Scale: 1, Start: 0, Length: 32, Signed: true}, data: []byte{0x00, 0xff, 0xff, 0xff}, expected: -256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := tt.signal.Extract(tt.data)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, value, 1e-12)
		})
	}
}

func TestSignalExtractErrors(t *testing.T) {
	_, err := Signal{Length: 16}.Extract([]byte{1})
	assert.Error(t, err)
	_, err = Signal{Length: 0}.Extract([]byte{1})
	assert.Error(t, err)
	_, err = Signal{Length: 40}.Extract(make([]byte, 8))
	assert.Error(t, err)
	_, err = Signal{Length: 8}.Extract(make([]byte, 9))
	assert.Error(t, err)
}

type fakeSocket struct {
	lock   sync.Mutex
	sent   []canbus.Frame
	inbox  chan canbus.Frame
	closed chan struct{}
	once   sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{inbox: make(chan canbus.Frame, 16), closed: make(chan struct{})}
}

func (f *fakeSocket) Send(frame canbus.Frame) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.sent = append(f.sent, frame)
	return len(frame.Data), nil
}

func (f *fakeSocket) Recv() (canbus.Frame, error) {
	select {
	case frame := <-f.inbox:
		return frame, nil
	case <-f.closed:
		return canbus.Frame{}, errors.New("socket closed")
	}
}

func (f *fakeSocket) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSocket) sentFrames() []canbus.Frame {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]canbus.Frame(nil), f.sent...)
}

func TestBusPublishAndReceive(t *testing.T) {
	tx, rx := newFakeSocket(), newFakeSocket()
	bus := NewBus(tx, rx, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Start(ctx) }()

	require.NoError(t, bus.Send(canbus.Frame{ID: 0x201, Data: []byte{1}}))
	rx.inbox <- canbus.Frame{ID: 0x281, Data: []byte{2}}
	rx.inbox <- canbus.Frame{ID: 0x281, Data: []byte{3}}

	assert.Eventually(t, func() bool { return len(tx.sentFrames()) == 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool {
		frame, _, ok := bus.Latest(0x281)
		return ok && frame.Data[0] == 3
	}, time.Second, time.Millisecond)

	_, _, ok := bus.Latest(0x999)
	assert.False(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("bus did not stop")
	}
}

func TestBusSendNeverBlocks(t *testing.T) {
	bus := NewBus(newFakeSocket(), newFakeSocket(), nil)
	for i := 0; i < outboxSize; i++ {
		require.NoError(t, bus.Send(canbus.Frame{ID: 0x200}))
	}
	assert.Error(t, bus.Send(canbus.Frame{ID: 0x200}))
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestBusFlushesOnStop(t *testing.T) {
	tx := newFakeSocket()
	bus := NewBus(tx, newFakeSocket(), nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Send(canbus.Frame{ID: 0x201}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Start(ctx), context.Canceled)
	assert.Len(t, tx.sentFrames(), 3)
}

func TestBusCloseWithoutStart(t *testing.T) {
	tx, rx := newFakeSocket(), newFakeSocket()
	bus := NewBus(tx, rx, nil)

	require.NoError(t, bus.Close())
	_, err := rx.Recv()
	assert.Error(t, err)
	select {
	case <-tx.closed:
	default:
		t.Fatal("send socket left open")
	}
}

type fakeBus struct {
	sent   []canbus.Frame
	frames map[uint32]canbus.Frame
	at     time.Time
	err    error
}

func newFakeBus() *fakeBus {
	return &fakeBus{frames: make(map[uint32]canbus.Frame), at: time.Now()}
}

func (f *fakeBus) Send(frame canbus.Frame) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeBus) Latest(id uint32) (canbus.Frame, time.Time, bool) {
	frame, ok := f.frames[id]
	return frame, f.at, ok
}

func commandVolts(frame canbus.Frame) float64 {
	return float64(int16(binary.LittleEndian.Uint16(frame.Data[0:2]))) * voltsPerBit
}

func TestFalconSetVoltage(t *testing.T) {
	bus := newFakeBus()
	falcon, err := NewFalcon(bus, FalconConfig{ID: 5, Stallable: true, StallVolts: 3, MaxVolts: 12, CurrentLimit: 40})
	require.NoError(t, err)

	require.NoError(t, falcon.SetVoltage(6.5))
	require.NoError(t, falcon.SetVoltage(2))
	require.NoError(t, falcon.SetVoltage(1))
	require.NoError(t, falcon.SetVoltage(40))

	require.Len(t, bus.sent, 4)
	assert.Equal(t, uint32(0x205), bus.sent[0].ID)
	assert.InDelta(t, 6.5, commandVolts(bus.sent[0]), 1e-9)
	assert.InDelta(t, 3, commandVolts(bus.sent[1]), 1e-9)
	assert.InDelta(t, 0, commandVolts(bus.sent[2]), 1e-9)
	assert.InDelta(t, 12, commandVolts(bus.sent[3]), 1e-9)
	assert.Equal(t, flagEnable, bus.sent[0].Data[2])
	assert.Equal(t, byte(40), bus.sent[0].Data[3])
}

func TestFalconReversedAndStop(t *testing.T) {
	bus := newFakeBus()
	falcon, err := NewFalcon(bus, FalconConfig{ID: 3, Reversed: true})
	require.NoError(t, err)

	require.NoError(t, falcon.SetVoltage(1))
	assert.InDelta(t, -1, commandVolts(bus.sent[0]), 1e-9, "not stallable so no deadband")

	require.NoError(t, falcon.Stop())
	assert.InDelta(t, 0, commandVolts(bus.sent[1]), 1e-9)
	assert.Equal(t, flagBrake, bus.sent[1].Data[2])

	status := make([]byte, 4)
	binary.LittleEndian.PutUint32(status, 4096)
	bus.frames[MotorStatusID(3)] = canbus.Frame{ID: MotorStatusID(3), Data: status}
	assert.InDelta(t, -2, falcon.PositionRevolutions(), 1e-9)
}

func TestFalconErrors(t *testing.T) {
	_, err := NewFalcon(nil, FalconConfig{})
	assert.Error(t, err)
	_, err = NewFalcon(newFakeBus(), FalconConfig{ID: 99})
	assert.Error(t, err)

	bus := newFakeBus()
	bus.err = errors.New("outbox full")
	falcon, err := NewFalcon(bus, FalconConfig{ID: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, falcon.SetVoltage(1), bus.err)
	assert.Equal(t, 0.0, falcon.PositionRevolutions())
}

func TestCANCoderAngle(t *testing.T) {
	bus := newFakeBus()
	encoder, err := NewCANCoder(bus, 22, -5.09765625, 100*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(encoder.AngleDegrees()), "no frame yet")

	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, 1024)
	bus.frames[EncoderStatusID(22)] = canbus.Frame{ID: EncoderStatusID(22), Data: data}
	assert.InDelta(t, 90-5.09765625, encoder.AngleDegrees(), 1e-9)

	bus.at = time.Now().Add(-time.Second)
	assert.True(t, math.IsNaN(encoder.AngleDegrees()), "stale frame")
}

func TestPigeonHeading(t *testing.T) {
	bus := newFakeBus()
	imu, err := NewPigeon(bus, 18, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x392), imu.StatusID())
	assert.True(t, math.IsNaN(imu.HeadingDegrees()))

	data := make([]byte, 4)
	yaw := int32(-450 * 256)
	binary.LittleEndian.PutUint32(data, uint32(yaw))
	bus.frames[imu.StatusID()] = canbus.Frame{ID: imu.StatusID(), Data: data}
	assert.InDelta(t, -450, imu.HeadingDegrees(), 1e-9)
}

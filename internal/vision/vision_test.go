package vision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLight struct {
	on bool
}

func (f *fakeLight) SetOn(on bool) { f.on = on }

func TestApplyAndFieldPose(t *testing.T) {
	light := &fakeLight{}
	camera := NewCamera("ws://unused", time.Minute, light, zap.NewNop().Sugar())

	camera.apply(Result{Valid: 1, BotPose: []float64{3, 4, 0, 0, 0, 0}})
	_, ok := camera.FieldPose()
	assert.False(t, ok, "passive camera reports no pose")

	require.NoError(t, camera.SetMode(true))
	assert.True(t, light.on)

	pose, ok := camera.FieldPose()
	require.True(t, ok)
	assert.Equal(t, 3.0, pose.Position.X())
	assert.Equal(t, 4.0, pose.Position.Y())
	assert.InDelta(t, 90, pose.Heading, 1e-9)

	camera.apply(Result{Valid: 0})
	_, ok = camera.FieldPose()
	assert.False(t, ok)

	camera.apply(Result{Valid: 1, BotPose: []float64{1, 2}})
	_, ok = camera.FieldPose()
	assert.False(t, ok, "short pose array is not a lock")
}

func TestFieldPoseExpires(t *testing.T) {
	camera := NewCamera("ws://unused", 10*time.Millisecond, nil, zap.NewNop().Sugar())
	require.NoError(t, camera.SetMode(true))
	camera.apply(Result{Valid: 1, BotPose: []float64{0, 0, 0, 0, 0, 90}})

	pose, ok := camera.FieldPose()
	require.True(t, ok)
	assert.InDelta(t, 0, pose.Heading, 1e-9)

	time.Sleep(20 * time.Millisecond)
	_, ok = camera.FieldPose()
	assert.False(t, ok)
}

func TestSetModeNeverBlocks(t *testing.T) {
	camera := NewCamera("ws://unused", 0, nil, zap.NewNop().Sugar())
	for i := 0; i < 10; i++ {
		require.NoError(t, camera.SetMode(i%2 == 0))
	}
	request := <-camera.modeCh
	assert.Equal(t, ModeRequest{LedMode: LedOff, CamMode: CamDriver}, request)
}

func TestStartStreamsResults(t *testing.T) {
	modes := make(chan ModeRequest, 4)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var request ModeRequest
		if conn.ReadJSON(&request) != nil {
			return
		}
		modes <- request

		for i := 0; i < 50; i++ {
			if conn.WriteJSON(Result{Valid: 1, BotPose: []float64{327.87, 34.25, 0, 0, 0, 180}}) != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	camera := NewCamera(url, time.Second, nil, zap.NewNop().Sugar())
	require.NoError(t, camera.SetMode(true))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- camera.Start(ctx) }()

	select {
	case request := <-modes:
		assert.Equal(t, ModeRequest{LedMode: LedOn, CamMode: CamVision}, request)
	case <-time.After(2 * time.Second):
		t.Fatal("mode request not received")
	}

	assert.Eventually(t, func() bool {
		pose, ok := camera.FieldPose()
		return ok && pose.Position.X() == 327.87
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("camera did not stop")
	}
}

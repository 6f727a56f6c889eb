package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_swerve/internal/models"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const pingInterval = time.Second

// Connection is one driver station peer. Gamepad state arrives on the command datachannel
// and HUD lines leave on the hud datachannel.
type Connection struct {
	PeerConnection *webrtc.PeerConnection
	Ctx            context.Context
	CtxCancel      context.CancelFunc
	CommandChannel chan models.ControlState
	HudChannel     chan models.Hud

	log     *zap.SugaredLogger
	hudRate time.Duration

	lock       sync.Mutex
	HudOutput  *webrtc.DataChannel
	PingOutput *webrtc.DataChannel
	PingInput  chan int64
}

func NewConnection(seat *models.Seat, peerConn *webrtc.PeerConnection, hudRate time.Duration, log *zap.SugaredLogger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		PeerConnection: peerConn,
		Ctx:            ctx,
		CtxCancel:      cancel,
		CommandChannel: seat.CommandChannel,
		HudChannel:     seat.HudChannel,
		log:            log,
		hudRate:        hudRate,
		PingInput:      make(chan int64, 10),
	}
}

func NewPeerConnection(stunServer string) (*webrtc.PeerConnection, error) {
	cfg := webrtc.Configuration{}
	if stunServer != "" {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: []string{stunServer}}}
	}
	peerConn, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating peer connection - %w", err)
	}
	return peerConn, nil
}

func (c *Connection) Disconnect() {
	c.log.Info("driver disconnecting")
	c.CtxCancel()
	err := c.PeerConnection.Close()
	if err != nil {
		c.log.Warnw("failed closing peer connection", "error", err)
	}
}

func (c *Connection) RegisterHandlers() {
	c.PeerConnection.OnICEConnectionStateChange(c.onICEConnectionStateChange)
	c.PeerConnection.OnICECandidate(c.onICECandidate)
	c.PeerConnection.OnDataChannel(c.onDataChannel)
	go c.updater()
}

func (c *Connection) outputs() (*webrtc.DataChannel, *webrtc.DataChannel) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.HudOutput, c.PingOutput
}

// updater sends the newest hud at the hud rate and pings once a second.
func (c *Connection) updater() {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()
	hudTicker := time.NewTicker(c.hudRate)
	defer hudTicker.Stop()

	sent := true
	hudToSend := models.Hud{}
	lastPing := int64(0)
	for {
		select {
		case <-c.Ctx.Done():
			c.log.Infow("stopping driver updater", "reason", c.Ctx.Err())
			return
		case hud, ok := <-c.HudChannel:
			if !ok {
				c.log.Info("hud channel closed")
				return
			}
			hudToSend = hud
			sent = false
		case <-pingTicker.C:
			_, pingOutput := c.outputs()
			if pingOutput == nil {
				continue
			}
			data, err := json.Marshal(models.Ping{
				TimeStamp: time.Now().UnixMilli(),
				Source:    PingSourceName,
			})
			if err != nil {
				continue
			}
			err = pingOutput.Send(data)
			if err != nil {
				c.log.Warnw("failed sending ping", "error", err)
			}
		case receivedPing := <-c.PingInput:
			lastPing = receivedPing
		case <-hudTicker.C:
			hudOutput, _ := c.outputs()
			if sent || hudOutput == nil {
				continue
			}
			if len(hudToSend.Lines) > 0 {
				lines := append([]string(nil), hudToSend.Lines...)
				lines[0] = fmt.Sprintf("%s | ping: %dms", lines[0], lastPing)
				hudToSend.Lines = lines
			}
			encodedMsg, err := encode(hudToSend)
			sent = true
			if err != nil {
				c.log.Warnw("failed encoding hud", "error", err)
				continue
			}
			err = hudOutput.SendText(encodedMsg)
			if err != nil {
				c.log.Warnw("failed sending hud", "error", err)
			}
		}
	}
}

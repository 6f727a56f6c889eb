package app

import (
	"encoding/json"
	"time"

	"github.com/Speshl/gorrc_swerve/internal/models"
	"github.com/pion/webrtc/v3"
)

const PingSourceName = "robot"

func (c *Connection) onICEConnectionStateChange(connectionState webrtc.ICEConnectionState) {
	c.log.Infow("ice connection state changed", "state", connectionState.String())
	if connectionState == webrtc.ICEConnectionStateFailed || connectionState == webrtc.ICEConnectionStateClosed {
		c.CtxCancel()
	}
}

func (c *Connection) onICECandidate(candidate *webrtc.ICECandidate) {
	if candidate != nil {
		c.log.Debugw("local ice candidate", "candidate", candidate.String())
	}
}

func (c *Connection) onDataChannel(d *webrtc.DataChannel) {
	c.log.Infow("new data channel", "label", d.Label())

	d.OnOpen(func() {
		c.log.Infow("data channel open", "label", d.Label())
		c.lock.Lock()
		defer c.lock.Unlock()
		switch d.Label() {
		case "hud":
			c.HudOutput = d
		case "ping":
			c.PingOutput = d
		}
	})

	switch d.Label() {
	case "command":
		d.OnMessage(func(msg webrtc.DataChannelMessage) { c.onCommandHandler(msg.Data) })
	case "ping":
		d.OnMessage(func(msg webrtc.DataChannelMessage) { c.onPingHandler(msg.Data) })
	case "hud":
	default:
		c.log.Warnw("unsupported data channel", "label", d.Label())
	}
}

func (c *Connection) onCommandHandler(data []byte) {
	state := models.ControlState{}
	err := json.Unmarshal(data, &state)
	if err != nil {
		c.log.Warnw("failed unmarshalling command", "data", string(data), "error", err)
		return
	}
	select {
	case c.CommandChannel <- state:
	default:
		c.log.Debug("command channel full, dropping command")
	}
}

func (c *Connection) onPingHandler(data []byte) {
	ping := models.Ping{}
	err := json.Unmarshal(data, &ping)
	if err != nil {
		c.log.Warnw("failed unmarshalling ping", "data", string(data), "error", err)
		return
	}
	if ping.Source != PingSourceName {
		return
	}
	roundTripTime := time.Now().UnixMilli() - ping.TimeStamp
	select {
	case c.PingInput <- roundTripTime:
	default:
	}
	c.log.Debugw("ping", "ms", roundTripTime)
}

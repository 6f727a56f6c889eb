package app

import (
	"encoding/json"

	"github.com/Speshl/gorrc_swerve/internal/models"
	"github.com/Speshl/gorrc_swerve/internal/robot"
	socketio "github.com/googollee/go-socket.io"
	"github.com/pion/webrtc/v3"
)

func encode(obj interface{}) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decode(in string, obj interface{}) error {
	return json.Unmarshal([]byte(in), obj)
}

func (a *App) onOffer(socketConn socketio.Conn, msg string) {
	offer := models.Offer{}
	err := decode(msg, &offer)
	if err != nil {
		a.log.Warnw("offer failed unmarshaling", "socket", socketConn.ID(), "error", err)
		return
	}

	peerConn, err := NewPeerConnection(a.cfg.ServerCfg.StunServer)
	if err != nil {
		a.log.Errorw("failed creating connection on offer", "user", offer.UserId, "error", err)
		return
	}
	conn := NewConnection(a.seat, peerConn, a.cfg.ServerCfg.HudRate, a.log.Named("driver"))
	a.replaceConnection(conn)
	conn.RegisterHandlers()

	err = peerConn.SetRemoteDescription(offer.Offer)
	if err != nil {
		a.log.Errorw("failed to set remote description", "error", err)
		return
	}

	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		a.log.Errorw("failed to create answer", "error", err)
		return
	}

	// Gather every candidate before answering; the answer is the only signalling message sent back.
	gatherComplete := webrtc.GatheringCompletePromise(peerConn)
	err = peerConn.SetLocalDescription(answer)
	if err != nil {
		a.log.Errorw("failed to set local description", "error", err)
		return
	}
	<-gatherComplete

	encodedAnswer, err := encode(models.Answer{Answer: peerConn.LocalDescription()})
	if err != nil {
		a.log.Errorw("failed encoding answer", "error", err)
		return
	}
	a.log.Infow("sending answer", "user", offer.UserId)
	a.client.Emit("answer", encodedAnswer)
}

func (a *App) onICECandidate(socketConn socketio.Conn, msg string) {
	candidate := models.IceCandidate{}
	err := decode(msg, &candidate)
	if err != nil {
		a.log.Warnw("ice candidate failed unmarshaling", "socket", socketConn.ID(), "error", err)
		return
	}

	conn := a.currentConnection()
	if conn == nil {
		a.log.Debug("ice candidate without a driver connection")
		return
	}
	err = conn.PeerConnection.AddICECandidate(candidate.Candidate)
	if err != nil {
		a.log.Warnw("failed adding ice candidate", "error", err)
	}
}

func (a *App) onRegisterSuccess(socketConn socketio.Conn, msg string) {
	decodedMsg := models.ConnectResp{}
	err := decode(msg, &decodedMsg)
	if err != nil {
		a.log.Warnw("register response failed unmarshaling", "socket", socketConn.ID(), "error", err)
		return
	}

	a.robotInfo = decodedMsg.Robot
	a.eventInfo = decodedMsg.Event
	a.log.Infow("robot connected", "robot", a.robotInfo.Name, "short_name", a.robotInfo.ShortName, "event", a.eventInfo.Name)
}

// onModeChange switches the robot mode. Unknown modes disable the robot.
func (a *App) onModeChange(socketConn socketio.Conn, msg string) {
	change := models.ModeChange{}
	err := decode(msg, &change)
	if err != nil {
		a.log.Warnw("mode change failed unmarshaling", "socket", socketConn.ID(), "error", err)
		return
	}

	mode, err := robot.ParseMode(change.Mode)
	if err != nil {
		a.log.Warnw("unknown mode requested, disabling", "error", err)
	}
	a.dispatcher.SetMode(mode)
}

package models

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

const ClientAxesCount = 10

type ConnectReq struct {
	Key      string `json:"key"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Session  string `json:"session"`
}

type ConnectResp struct {
	Robot Robot
	Event Event
}

type Robot struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	Type      string    `json:"type"`
}

type Event struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
}

type IceCandidate struct {
	Candidate      webrtc.ICECandidateInit `json:"candidate"`
	RobotShortName string                  `json:"robot_name"`
	UserId         uuid.UUID               `json:"user_id"`
}

type Offer struct {
	Offer          webrtc.SessionDescription `json:"offer"`
	RobotShortName string                    `json:"robot_name"`
	UserId         uuid.UUID                 `json:"user_id"`
}

type Answer struct {
	Answer *webrtc.SessionDescription `json:"answer"`
}

// ModeChange is sent by the driver station to pick disabled, teleop, autonomous or test.
type ModeChange struct {
	Mode string `json:"mode"`
}

type ControlState struct {
	Axes      []float64 `json:"axes"`
	BitButton uint32    `json:"bit_buttons"`
	TimeStamp int64     `json:"time_stamp"`
	Buttons   []bool
}

type Hud struct {
	Lines []string `json:"lines"`
}

type Ping struct {
	Source    string `json:"source"`
	TimeStamp int64  `json:"time_stamp"`
}

// Seat is the driver station connection the gamepad arrives on.
type Seat struct {
	CommandChannel chan ControlState
	HudChannel     chan Hud
}

func NewSeat() *Seat {
	return &Seat{
		CommandChannel: make(chan ControlState, 100),
		HudChannel:     make(chan Hud, 100),
	}
}

package config

import (
	"math"
	"time"
)

const (
	AppEnvBase = "SWERVE_"

	DefaultServer         = "127.0.0.1:8181"
	DefaultRobotKey       = ""
	DefaultPassword       = ""
	DefaultRobotName      = "swerve"
	DefaultNetInterface   = "wlan0"
	DefaultHudRate        = 33 * time.Millisecond
	DefaultHealthInterval = 30 * time.Second
	DefaultStunServer     = "stun:stun.l.google.com:19302"

	DefaultLogLevel    = "info"
	DefaultLogEncoding = "console"

	DefaultLoopPeriod = 20 * time.Millisecond

	// Default Drive Options
	DefaultMotorDriver        = MotorDriverCan
	DefaultChassisWidth       = 23.0
	DefaultChassisLength      = 23.0
	DefaultMaxOutput          = 12.0
	DefaultDistancePerRev     = 4 * math.Pi / 6.75 //4in wheel, 6.75:1 drive reduction
	DefaultTurnKp             = 0.18
	DefaultTurnKd             = 0.0
	DefaultTurnMagnitude      = 0.5
	DefaultAlignmentThreshold = 0.5
	DefaultAngleOffset        = -90.0

	MotorDriverCan     = "can"
	MotorDriverPCA9685 = "pca9685"

	// Default CAN Options
	DefaultCanChannel    = "can0"
	DefaultIMUID         = 18
	DefaultStallVolts    = 3.0
	DefaultCurrentLimit  = 40
	DefaultStatusTimeout = 100 * time.Millisecond

	// Default PWM Options
	DefaultAddress   = 0x40
	DefaultI2CDevice = "/dev/i2c-1"
	DefaultMaxPulse  = 2000
	DefaultMinPulse  = 1000

	// Default Vision Options
	DefaultVisionURL     = "ws://10.0.0.11:5800/pose"
	DefaultVisionTimeout = 500 * time.Millisecond
	DefaultLightEnabled  = false
	DefaultLightPin      = 12

	// Default Teleop Options
	DefaultAimX             = 327.87
	DefaultAimY             = 34.25
	DefaultAimHeadingOffset = 90.0
	DefaultAimKp            = 0.03
	DefaultAimKd            = 0.8
	DefaultStickThreshold   = 0.1
	DefaultCurvePower       = 1.5
	DefaultTeleopVolts      = 12.0
	DefaultDiagnostics      = 300 * time.Millisecond
	DefaultTestLogInterval  = time.Second
	DefaultInputTimeout     = 200 * time.Millisecond

	// Default Positioning Options
	DefaultStartX        = 0.0
	DefaultStartY        = 0.0
	DefaultHeadingOffset = 0.0
	DefaultHeadingBlend  = 0.0
)

type Config struct {
	ServerCfg      ServerConfig
	LogCfg         LogConfig
	LoopPeriod     time.Duration
	DriveCfg       DriveConfig
	CanCfg         CanConfig
	CommandCfg     CommandConfig
	VisionCfg      VisionConfig
	TeleopCfg      TeleopConfig
	PositioningCfg PositioningConfig
}

type ServerConfig struct {
	Server         string
	Key            string
	Password       string
	Name           string
	NetInterface   string
	HudRate        time.Duration
	HealthInterval time.Duration
	StunServer     string
}

type LogConfig struct {
	Level    string
	Encoding string
}

type DriveConfig struct {
	MotorDriver        string         `yaml:"motorDriver"`
	Width              float64        `yaml:"width"`
	Length             float64        `yaml:"length"`
	MaxOutput          float64        `yaml:"maxOutput"`
	DistancePerRev     float64        `yaml:"distancePerRev"`
	TurnKp             float64        `yaml:"turnKp"`
	TurnKd             float64        `yaml:"turnKd"`
	TurnMagnitude      float64        `yaml:"turnMagnitude"`
	AlignmentThreshold float64        `yaml:"alignmentThreshold"`
	Modules            []ModuleConfig `yaml:"modules"`
}

// ModuleConfig is ordered leftFront, rightFront, leftBack, rightBack.
type ModuleConfig struct {
	Name          string  `yaml:"name"`
	EncoderID     int     `yaml:"encoderId"`
	MagnetOffset  float64 `yaml:"magnetOffset"`
	AngleOffset   float64 `yaml:"angleOffset"`
	TurnID        int     `yaml:"turnId"`
	TurnReversed  bool    `yaml:"turnReversed"`
	TurnStallable bool    `yaml:"turnStallable"`
	DriveID       int     `yaml:"driveId"`
	DriveReversed bool    `yaml:"driveReversed"`
	TurnChannel   int     `yaml:"turnChannel"`
	DriveChannel  int     `yaml:"driveChannel"`
}

type CanConfig struct {
	Channel       string
	IMUID         int
	StallVolts    float64
	CurrentLimit  int
	StatusTimeout time.Duration
}

type CommandConfig struct {
	Address   byte
	I2CDevice string
	MaxPulse  float64
	MinPulse  float64
}

type VisionConfig struct {
	URL          string
	Timeout      time.Duration
	LightEnabled bool
	LightPin     int
}

type TeleopConfig struct {
	AimX               float64
	AimY               float64
	AimHeadingOffset   float64
	AimKp              float64
	AimKd              float64
	StickThreshold     float64
	CurvePower         float64
	MaxVolts           float64
	DiagnosticInterval time.Duration
	TestLogInterval    time.Duration
	InputTimeout       time.Duration
}

type PositioningConfig struct {
	StartX        float64
	StartY        float64
	HeadingOffset float64
	HeadingBlend  float64
}

// DefaultModules is the competition robot calibration.
func DefaultModules() []ModuleConfig {
	return []ModuleConfig{
		{Name: "leftFront", EncoderID: 22, MagnetOffset: -5.09765625, AngleOffset: DefaultAngleOffset, TurnID: 6, TurnReversed: true, DriveID: 5, DriveReversed: false, TurnChannel: 0, DriveChannel: 1},
		{Name: "rightFront", EncoderID: 20, MagnetOffset: -40.25390625, AngleOffset: DefaultAngleOffset, TurnID: 4, TurnReversed: true, DriveID: 3, DriveReversed: true, TurnChannel: 2, DriveChannel: 3},
		{Name: "leftBack", EncoderID: 21, MagnetOffset: 68.203125, AngleOffset: DefaultAngleOffset, TurnID: 8, TurnReversed: true, DriveID: 7, DriveReversed: false, TurnChannel: 4, DriveChannel: 5},
		{Name: "rightBack", EncoderID: 23, MagnetOffset: 6.416015625, AngleOffset: DefaultAngleOffset, TurnID: 2, TurnReversed: true, DriveID: 1, DriveReversed: true, TurnChannel: 6, DriveChannel: 7},
	}
}

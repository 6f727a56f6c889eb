package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func GetConfig() Config {
	cfg := Config{
		ServerCfg:      GetServerConfig(),
		LogCfg:         GetLogConfig(),
		LoopPeriod:     GetDurationEnv("LOOPPERIOD", DefaultLoopPeriod),
		DriveCfg:       GetDriveConfig(),
		CanCfg:         GetCanConfig(),
		CommandCfg:     GetCommandConfig(),
		VisionCfg:      GetVisionConfig(),
		TeleopCfg:      GetTeleopConfig(),
		PositioningCfg: GetPositioningConfig(),
	}

	zap.S().Debugw("app config", "config", fmt.Sprintf("%+v", cfg))
	return cfg
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Server:         GetStringEnv("SERVER", DefaultServer),
		Key:            GetStringEnv("ROBOTKEY", DefaultRobotKey),
		Password:       GetStringEnv("ROBOTPASSWORD", DefaultPassword),
		Name:           GetStringEnv("ROBOTNAME", DefaultRobotName),
		NetInterface:   GetStringEnv("NETINTERFACE", DefaultNetInterface),
		HudRate:        GetDurationEnv("HUDRATE", DefaultHudRate),
		HealthInterval: GetDurationEnv("HEALTHINTERVAL", DefaultHealthInterval),
		StunServer:     GetStringEnv("STUNSERVER", DefaultStunServer),
	}
}

func GetLogConfig() LogConfig {
	return LogConfig{
		Level:    GetStringEnv("LOGLEVEL", DefaultLogLevel),
		Encoding: GetStringEnv("LOGENCODING", DefaultLogEncoding),
	}
}

func GetDriveConfig() DriveConfig {
	driveCfg := DriveConfig{
		MotorDriver:        GetStringEnv("MOTORDRIVER", DefaultMotorDriver),
		Width:              GetFloatEnv("CHASSIS_WIDTH", DefaultChassisWidth),
		Length:             GetFloatEnv("CHASSIS_LENGTH", DefaultChassisLength),
		MaxOutput:          GetFloatEnv("MAXOUTPUT", DefaultMaxOutput),
		DistancePerRev:     GetFloatEnv("DISTANCEPERREV", DefaultDistancePerRev),
		TurnKp:             GetFloatEnv("TURN_KP", DefaultTurnKp),
		TurnKd:             GetFloatEnv("TURN_KD", DefaultTurnKd),
		TurnMagnitude:      GetFloatEnv("TURN_MAGNITUDE", DefaultTurnMagnitude),
		AlignmentThreshold: GetFloatEnv("ALIGNMENTTHRESHOLD", DefaultAlignmentThreshold),
		Modules:            DefaultModules(),
	}

	for i := range driveCfg.Modules {
		envPrefix := fmt.Sprintf("MODULE%d_", i)
		module := &driveCfg.Modules[i]
		module.EncoderID = GetIntEnv(envPrefix+"ENCODERID", module.EncoderID)
		module.MagnetOffset = GetFloatEnv(envPrefix+"MAGNETOFFSET", module.MagnetOffset)
		module.AngleOffset = GetFloatEnv(envPrefix+"ANGLEOFFSET", module.AngleOffset)
		module.TurnID = GetIntEnv(envPrefix+"TURNID", module.TurnID)
		module.TurnReversed = GetBoolEnv(envPrefix+"TURNREVERSED", module.TurnReversed)
		module.TurnStallable = GetBoolEnv(envPrefix+"TURNSTALLABLE", module.TurnStallable)
		module.DriveID = GetIntEnv(envPrefix+"DRIVEID", module.DriveID)
		module.DriveReversed = GetBoolEnv(envPrefix+"DRIVEREVERSED", module.DriveReversed)
		module.TurnChannel = GetIntEnv(envPrefix+"TURNCHANNEL", module.TurnChannel)
		module.DriveChannel = GetIntEnv(envPrefix+"DRIVECHANNEL", module.DriveChannel)
	}
	return driveCfg
}

func GetCanConfig() CanConfig {
	return CanConfig{
		Channel:       GetStringEnv("CANCHANNEL", DefaultCanChannel),
		IMUID:         GetIntEnv("IMUID", DefaultIMUID),
		StallVolts:    GetFloatEnv("STALLVOLTS", DefaultStallVolts),
		CurrentLimit:  GetIntEnv("CURRENTLIMIT", DefaultCurrentLimit),
		StatusTimeout: GetDurationEnv("STATUSTIMEOUT", DefaultStatusTimeout),
	}
}

func GetCommandConfig() CommandConfig {
	return CommandConfig{
		Address:   DefaultAddress,
		I2CDevice: GetStringEnv("I2CDEVICE", DefaultI2CDevice),
		MaxPulse:  float64(GetIntEnv("MAXPULSE", DefaultMaxPulse)),
		MinPulse:  float64(GetIntEnv("MINPULSE", DefaultMinPulse)),
	}
}

func GetVisionConfig() VisionConfig {
	return VisionConfig{
		URL:          GetStringEnv("VISIONURL", DefaultVisionURL),
		Timeout:      GetDurationEnv("VISIONTIMEOUT", DefaultVisionTimeout),
		LightEnabled: GetBoolEnv("LIGHTENABLED", DefaultLightEnabled),
		LightPin:     GetIntEnv("LIGHTPIN", DefaultLightPin),
	}
}

func GetTeleopConfig() TeleopConfig {
	envPrefix := "TELEOP_"
	return TeleopConfig{
		AimX:               GetFloatEnv(envPrefix+"AIM_X", DefaultAimX),
		AimY:               GetFloatEnv(envPrefix+"AIM_Y", DefaultAimY),
		AimHeadingOffset:   GetFloatEnv(envPrefix+"AIM_HEADINGOFFSET", DefaultAimHeadingOffset),
		AimKp:              GetFloatEnv(envPrefix+"AIM_KP", DefaultAimKp),
		AimKd:              GetFloatEnv(envPrefix+"AIM_KD", DefaultAimKd),
		StickThreshold:     GetFloatEnv(envPrefix+"STICKTHRESHOLD", DefaultStickThreshold),
		CurvePower:         GetFloatEnv(envPrefix+"CURVEPOWER", DefaultCurvePower),
		MaxVolts:           GetFloatEnv(envPrefix+"MAXVOLTS", DefaultTeleopVolts),
		DiagnosticInterval: GetDurationEnv(envPrefix+"DIAGNOSTICS", DefaultDiagnostics),
		TestLogInterval:    GetDurationEnv(envPrefix+"TESTLOG", DefaultTestLogInterval),
		InputTimeout:       GetDurationEnv(envPrefix+"INPUTTIMEOUT", DefaultInputTimeout),
	}
}

func GetPositioningConfig() PositioningConfig {
	envPrefix := "POSITION_"
	return PositioningConfig{
		StartX:        GetFloatEnv(envPrefix+"START_X", DefaultStartX),
		StartY:        GetFloatEnv(envPrefix+"START_Y", DefaultStartY),
		HeadingOffset: GetFloatEnv(envPrefix+"HEADINGOFFSET", DefaultHeadingOffset),
		HeadingBlend:  GetFloatEnv(envPrefix+"HEADINGBLEND", DefaultHeadingBlend),
	}
}

// LoadCalibration overlays the drive section of a yaml file onto cfg.
// Fields missing from the file keep their current values.
func LoadCalibration(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading calibration file - %w", err)
	}

	calibration := struct {
		Drive DriveConfig `yaml:"drive"`
	}{
		Drive: cfg.DriveCfg,
	}
	err = yaml.Unmarshal(data, &calibration)
	if err != nil {
		return fmt.Errorf("error parsing calibration file %s - %w", path, err)
	}

	cfg.DriveCfg = calibration.Drive
	zap.S().Infow("loaded calibration", "path", path, "modules", len(cfg.DriveCfg.Modules))
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.LoopPeriod <= 0 {
		errs = append(errs, fmt.Errorf("loop period must be positive"))
	}
	errs = append(errs, c.DriveCfg.Validate())
	if c.PositioningCfg.HeadingBlend < 0 || c.PositioningCfg.HeadingBlend > 1 {
		errs = append(errs, fmt.Errorf("heading blend must be within [0,1]"))
	}
	if c.TeleopCfg.CurvePower <= 0 {
		errs = append(errs, fmt.Errorf("curve power must be positive"))
	}
	if c.CommandCfg.MaxPulse <= c.CommandCfg.MinPulse {
		errs = append(errs, fmt.Errorf("max pulse must be above min pulse"))
	}
	return errors.Join(errs...)
}

func (d DriveConfig) Validate() error {
	var errs []error
	if !(d.Width > 0) || !(d.Length > 0) {
		errs = append(errs, fmt.Errorf("chassis width and length must be positive, got %fx%f", d.Width, d.Length))
	}
	if d.DistancePerRev <= 0 {
		errs = append(errs, fmt.Errorf("distance per revolution must be positive"))
	}
	if d.MotorDriver != MotorDriverCan && d.MotorDriver != MotorDriverPCA9685 {
		errs = append(errs, fmt.Errorf("unsupported motor driver: %s", d.MotorDriver))
	}
	if d.MotorDriver == MotorDriverPCA9685 && !(d.MaxOutput > 0) {
		errs = append(errs, fmt.Errorf("max output must be positive for pwm motors, got %f", d.MaxOutput))
	}
	if len(d.Modules) != 4 {
		errs = append(errs, fmt.Errorf("expected 4 modules, got %d", len(d.Modules)))
	}

	seen := make(map[int]string)
	for _, module := range d.Modules {
		if d.MotorDriver != MotorDriverCan {
			break
		}
		for _, id := range []int{module.TurnID, module.DriveID} {
			if other, ok := seen[id]; ok {
				errs = append(errs, fmt.Errorf("motor id %d used by both %s and %s", id, other, module.Name))
			}
			seen[id] = module.Name
		}
	}
	return errors.Join(errs...)
}

func GetIntEnv(env string, defaultValue int) int {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseInt(strings.Trim(envValue, "\r"), 10, 32)
		if err != nil {
			zap.S().Warnw("env not parsed", "env", env, "error", err)
			return defaultValue
		} else {
			return int(value)
		}
	}
}

func GetBoolEnv(env string, defaultValue bool) bool {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseBool(strings.Trim(envValue, "\r"))
		if err != nil {
			zap.S().Warnw("env not parsed", "env", env, "error", err)
			return defaultValue
		} else {
			return value
		}
	}
}

func GetStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		return strings.Trim(envValue, "\r")
	}
}

func GetFloatEnv(env string, defaultValue float64) float64 {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseFloat(strings.Trim(envValue, "\r"), 64)
		if err != nil {
			zap.S().Warnw("env not parsed", "env", env, "error", err)
			return defaultValue
		}
		return value
	}
}

func GetDurationEnv(env string, defaultValue time.Duration) time.Duration {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := time.ParseDuration(strings.Trim(envValue, "\r"))
		if err != nil {
			zap.S().Warnw("env not parsed", "env", env, "error", err)
			return defaultValue
		}
		return value
	}
}

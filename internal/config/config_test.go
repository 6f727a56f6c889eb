package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	cfg := GetConfig()

	assert.Equal(t, DefaultLoopPeriod, cfg.LoopPeriod)
	assert.Equal(t, 23.0, cfg.DriveCfg.Width)
	assert.Equal(t, 23.0, cfg.DriveCfg.Length)
	require.Len(t, cfg.DriveCfg.Modules, 4)
	assert.Equal(t, "leftFront", cfg.DriveCfg.Modules[0].Name)
	assert.Equal(t, 22, cfg.DriveCfg.Modules[0].EncoderID)
	assert.Equal(t, 18, cfg.CanCfg.IMUID)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(AppEnvBase+"CHASSIS_WIDTH", "20.5")
	t.Setenv(AppEnvBase+"MODULE1_DRIVEREVERSED", "false")
	t.Setenv(AppEnvBase+"LOOPPERIOD", "10ms")
	t.Setenv(AppEnvBase+"IMUID", "not a number")
	t.Setenv(AppEnvBase+"VISIONURL", "ws://Camera.local/pose\r")

	cfg := GetConfig()
	assert.Equal(t, 20.5, cfg.DriveCfg.Width)
	assert.False(t, cfg.DriveCfg.Modules[1].DriveReversed)
	assert.Equal(t, 10*time.Millisecond, cfg.LoopPeriod)
	assert.Equal(t, DefaultIMUID, cfg.CanCfg.IMUID)
	assert.Equal(t, "ws://Camera.local/pose", cfg.VisionCfg.URL)
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	err := os.WriteFile(path, []byte(`
drive:
  width: 21
  modules:
    - name: leftFront
      encoderId: 30
      magnetOffset: 12.5
      angleOffset: -90
      turnId: 11
      driveId: 12
    - name: rightFront
      encoderId: 31
      turnId: 13
      driveId: 14
    - name: leftBack
      encoderId: 32
      turnId: 15
      driveId: 16
    - name: rightBack
      encoderId: 33
      turnId: 17
      driveId: 19
`), 0o600)
	require.NoError(t, err)

	cfg := GetConfig()
	require.NoError(t, LoadCalibration(path, &cfg))

	assert.Equal(t, 21.0, cfg.DriveCfg.Width)
	assert.Equal(t, 23.0, cfg.DriveCfg.Length, "untouched fields keep env values")
	assert.Equal(t, 30, cfg.DriveCfg.Modules[0].EncoderID)
	assert.Equal(t, 12.5, cfg.DriveCfg.Modules[0].MagnetOffset)
	assert.NoError(t, cfg.Validate())
}

func TestLoadCalibrationErrors(t *testing.T) {
	cfg := GetConfig()
	assert.Error(t, LoadCalibration(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("drive: [nope"), 0o600))
	assert.Error(t, LoadCalibration(path, &cfg))
}

func TestValidate(t *testing.T) {
	cfg := GetConfig()
	cfg.DriveCfg.Width = 0
	cfg.DriveCfg.Modules = cfg.DriveCfg.Modules[:3]
	cfg.PositioningCfg.HeadingBlend = 2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chassis width")
	assert.Contains(t, err.Error(), "expected 4 modules")
	assert.Contains(t, err.Error(), "heading blend")
}

func TestValidateDuplicateMotorIDs(t *testing.T) {
	cfg := GetConfig()
	cfg.DriveCfg.Modules[3].DriveID = cfg.DriveCfg.Modules[0].TurnID

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "motor id 6")

	cfg.DriveCfg.MotorDriver = MotorDriverPCA9685
	assert.NoError(t, cfg.Validate())
}

func TestValidatePWMMaxOutput(t *testing.T) {
	cfg := GetConfig()
	cfg.DriveCfg.MaxOutput = 0
	assert.NoError(t, cfg.Validate(), "can motors run without desaturation")

	cfg.DriveCfg.MotorDriver = MotorDriverPCA9685
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max output")

	cfg.DriveCfg.MaxOutput = 12
	assert.NoError(t, cfg.Validate())
}

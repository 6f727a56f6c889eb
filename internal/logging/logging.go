package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

type Config struct {
	Level    string
	Encoding string
}

func NewConfig(cfg Config) (zap.Config, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zap.Config{}, fmt.Errorf("error parsing log level - %w", err)
	}

	encoding := strings.ToLower(cfg.Encoding)
	if encoding == "" {
		encoding = EncodingConsole
	}
	if encoding != EncodingJSON && encoding != EncodingConsole {
		return zap.Config{}, fmt.Errorf("unsupported log encoding: %s", cfg.Encoding)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == EncodingConsole {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}, nil
}

// NewLogger builds the process logger. Callers name sub loggers with Named.
func NewLogger(cfg Config) (*zap.SugaredLogger, error) {
	zapCfg, err := NewConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("error building logger - %w", err)
	}
	return logger.Sugar(), nil
}

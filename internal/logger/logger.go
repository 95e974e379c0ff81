// Package logger builds the process-wide zap logger from daemon settings.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/borevitzlab/go-eyepi/internal/config"
)

// New builds a logger for the configured level and encoding. Both values
// are validated during config load, so an error here is a zap problem,
// not a user one.
func New(d config.Daemon) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(d.LogLevel); err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         d.LogEncoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if d.LogEncoding == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zc.Build()
}

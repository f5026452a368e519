// Package logging builds the two zap loggers the supervisor needs: the
// operational logger (human-facing, goes to stderr) and the audit logger
// (one-line JSON records, also stderr, per spec §6). Keeping them as
// separate zap.Logger instances means the audit stream's shape never drifts
// because of a change to operational log formatting, mirroring the way the
// teacher keeps its Gin access-log fields independent of its app logger
// fields in cmd/zmux-server/main.go.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewOperational builds the supervisor's main logger. Everything it writes
// goes to stderr so stdout remains reserved for the JSON-RPC wire protocol.
func NewOperational(level string, devMode bool) *zap.Logger {
	var cfg zap.Config
	if devMode {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	log := zap.Must(cfg.Build())
	return log.Named("mcp-process")
}

// NewAudit builds the audit logger described in spec §6: one JSON object
// per line, written to stderr, with a fixed {timestamp, level, ...} shape.
// When enabled is false this returns a no-op logger so call sites never
// need an `if enabled` branch (the same no-op pattern the teacher uses for
// its disabled process-manager logger).
func NewAudit(enabled bool) *zap.Logger {
	if !enabled {
		return zap.NewNop()
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.LevelKey = "level"
	encoderCfg.MessageKey = "message"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(zapcore.InfoLevel),
	)
	return zap.New(core)
}

// Package observability wires the bot's logging, metrics and health
// surface: a zap logger writing to append-only files (never rotated here)
// and the console,
// a small set of Prometheus collectors, and an HTTP endpoint serving
// /metrics and /healthz.
package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a three-core logger: warnings and above go to
// warn.log, everything from debug up goes to debug.log, and a
// human-readable copy of info-and-above goes to stderr. dataPath is
// created if missing.
func NewLogger(dataPath string) (*zap.Logger, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("observability: create data dir: %w", err)
	}

	warnFile, err := os.OpenFile(filepath.Join(dataPath, "warn.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("observability: open warn.log: %w", err)
	}
	debugFile, err := os.OpenFile(filepath.Join(dataPath, "debug.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("observability: open debug.log: %w", err)
	}

	jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)

	warnCore := zapcore.NewCore(jsonEncoder, zapcore.AddSync(warnFile), zapcore.WarnLevel)
	debugCore := zapcore.NewCore(jsonEncoder, zapcore.AddSync(debugFile), zapcore.DebugLevel)
	consoleCore := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), zapcore.InfoLevel)

	core := zapcore.NewTee(warnCore, debugCore, consoleCore)
	return zap.New(core, zap.AddCaller()), nil
}

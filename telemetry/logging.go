// SPDX-License-Identifier: Apache-2.0

// Package telemetry is the ambient logging, metrics, and progress-reporting
// stack (the ambient stack): structured logging via zap with
// timberjack-rotated file output, Prometheus counters/histograms for scan
// activity, and a terminal progress reporter for long-running scans.
package telemetry

import (
	"fmt"
	"os"
	"sync"

	"github.com/DeRuina/timberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.Mutex
	current *zap.Logger = zap.NewNop()
)

// Log returns the process-wide logger, defaulting to a no-op logger until
// Configure is called.
func Log() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// Options configures the process-wide logger.
type Options struct {
	Level   string // "debug", "info", "warn", "error"
	File    string // absolute path; empty means stderr only
	MaxSize int    // megabytes before rotation; 0 uses timberjack's default
}

// Configure builds and installs the process-wide logger. It returns a
// closer the caller must invoke (typically deferred in main) to flush
// buffered entries and close the rotated file, if any.
func Configure(opts Options) (func() error, error) {
	level, err := zapcore.ParseLevel(levelOrDefault(opts.Level))
	if err != nil {
		return nil, fmt.Errorf("telemetry: invalid log level %q: %w", opts.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig()),
		zapcore.Lock(os.Stderr),
		level,
	))

	var closer func() error = func() error { return nil }
	if opts.File != "" {
		rotator := &timberjack.Logger{
			Filename: opts.File,
			MaxSize:  maxSizeOrDefault(opts.MaxSize),
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(rotator),
			level,
		))
		closer = rotator.Close
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	mu.Lock()
	current = logger
	mu.Unlock()

	return func() error {
		_ = logger.Sync()
		return closer()
	}, nil
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

func maxSizeOrDefault(mb int) int {
	if mb <= 0 {
		return 100
	}
	return mb
}

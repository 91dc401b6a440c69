// Copyright 2023 ShardMesh Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig log options for the shardmesh process. Filename empty means
// logging to stderr only.
type LogConfig struct {
	// Level log level, e.g. debug, info, warn, error, panic, fatal
	Level string `toml:"level"`
	// Format log format, e.g. json, console
	Format string `toml:"format"`
	// Filename log file
	Filename string `toml:"filename"`
	// MaxSize max size for log file size, MB
	MaxSize int `toml:"max-size"`
	// MaxDays max days for log file to keep
	MaxDays int `toml:"max-days"`
	// MaxBackups max log file backups
	MaxBackups int `toml:"max-backups"`
}

func (cfg LogConfig) getLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}
	return level
}

func (cfg LogConfig) getEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "console" {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

func (cfg LogConfig) getSyncer() zapcore.WriteSyncer {
	if cfg.Filename == "" {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxDays,
		MaxBackups: cfg.MaxBackups,
	})
}

// NewLogger create a zap logger from the config.
func NewLogger(cfg LogConfig, options ...zap.Option) *zap.Logger {
	core := zapcore.NewCore(cfg.getEncoder(), cfg.getSyncer(), cfg.getLevel())
	options = append(options, zap.AddStacktrace(zapcore.FatalLevel))
	return zap.New(core, options...)
}

var globalLogger atomic.Value

// SetupGlobalLogger setup the process level logger, returns the logger for
// convenience.
func SetupGlobalLogger(cfg LogConfig) *zap.Logger {
	logger := NewLogger(cfg)
	globalLogger.Store(logger)
	return logger
}

// GetGlobalLogger returns the process level logger. A stderr info logger is
// installed when SetupGlobalLogger was never called.
func GetGlobalLogger() *zap.Logger {
	if l := globalLogger.Load(); l != nil {
		return l.(*zap.Logger)
	}
	logger := NewLogger(LogConfig{Level: "info", Format: "console"})
	globalLogger.Store(logger)
	return logger
}

// Adjust returns the default global logger if the parameter is nil.
func Adjust(logger *zap.Logger, options ...zap.Option) *zap.Logger {
	if logger != nil {
		return logger
	}
	return GetGlobalLogger().WithOptions(options...)
}

// GetPanicLogger returns a logger that panics on error-or-above, used in
// tests to surface unexpected error logs.
func GetPanicLogger() *zap.Logger {
	return NewLogger(LogConfig{Level: "info", Format: "console"},
		zap.OnFatal(zapcore.WriteThenPanic),
		zap.Development())
}

// Copyright 2025 Open E-Line Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides application logging backed by zap. Loggers carry
// key/value context and can be embedded in, and recovered from, a
// context.Context.
package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger describes the logger interface.
type Logger interface {
	// New returns a child logger with the given key/value context attached.
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
}

// Config configures the logging backend.
type Config struct {
	// Level of logging: debug, info or error.
	Level string `toml:"level,omitempty"`
	// Console, if set, switches to a human friendly console encoder.
	Console bool `toml:"console,omitempty"`
}

// InitDefaults populates unset fields with default values.
func (cfg *Config) InitDefaults() {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
}

// Validate checks that the config contains a parsable level.
func (cfg *Config) Validate() error {
	cfg.InitDefaults()
	if _, err := zapcore.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("unsupported log level %q: %w", cfg.Level, err)
	}
	return nil
}

type logger struct {
	logger *zap.Logger
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.logger.Debug(msg, convertCtx(ctx)...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.logger.Info(msg, convertCtx(ctx)...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.logger.Error(msg, convertCtx(ctx)...)
}

func convertCtx(ctx []any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(ctx[i]), ctx[i+1]))
	}
	return fields
}

var root = &logger{logger: zap.NewNop()}

// Setup configures the root logger. It must be called before the root logger
// is used.
func Setup(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	if cfg.Console {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zl, err := zc.Build()
	if err != nil {
		return err
	}
	root = &logger{logger: zl}
	return nil
}

// Root returns the root logger. It is never nil.
func Root() Logger {
	return root
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() Logger {
	return &logger{logger: zap.NewNop()}
}

// Flush writes buffered log entries to the backend.
func Flush() {
	_ = root.logger.Sync()
}

// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package logger holds the process-wide zerolog logger.
package logger

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type loggerKey struct{}

var globalLogger zerolog.Logger

func init() {
	hostname, _ := os.Hostname()

	pname, err := os.Executable()
	if err != nil {
		pname = "zapmeter"
	}

	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}

	globalLogger = log.With().
		Str("hostname", hostname).
		Str("executable", filepath.Base(pname)).
		Caller().
		Logger().
		Level(level)

	log.Logger = globalLogger
}

// Ctx returns the logger attached to ctx, or the global logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &globalLogger
	}
	if l, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok && l != nil {
		return l
	}
	return &globalLogger
}

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l *zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return globalLogger.With().Str("component", name).Logger()
}

// SetLevel updates the global log level
func SetLevel(level zerolog.Level) {
	globalLogger = globalLogger.Level(level)
	log.Logger = globalLogger
}

func Fatal() *zerolog.Event { return globalLogger.Fatal() }
func Error() *zerolog.Event { return globalLogger.Error() }
func Warn() *zerolog.Event  { return globalLogger.Warn() }
func Info() *zerolog.Event  { return globalLogger.Info() }
func Debug() *zerolog.Event { return globalLogger.Debug() }

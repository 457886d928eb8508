// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package commons holds small cross-cutting pieces shared by every internal
// package: today, just the logger.
package commons

import (
	"time"

	"go.uber.org/zap"
)

// Logger is the logging surface every internal package depends on. Keeping
// it an interface (rather than importing *zap.SugaredLogger directly
// everywhere) lets tests inject a no-op or recording implementation.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Fatalf(template string, args ...interface{})

	Info(args ...interface{})

	// Warnw logs at warn level with structured key/value pairs, e.g.
	// logger.Warnw("resample failed", "error", err, "rate", 8000).
	Warnw(msg string, keysAndValues ...interface{})

	// Benchmark records how long a named operation took. Call sites wrap a
	// unit of work with
	// `defer func() { logger.Benchmark(name, time.Since(start)) }()`.
	Benchmark(name string, d time.Duration)

	// With returns a derived logger with additional structured context
	// attached to every subsequent call.
	With(keysAndValues ...interface{}) Logger
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// NewLogger builds a Logger backed by zap. In development mode the encoder
// is console/colorized and level is debug; otherwise JSON at the configured
// level.
func NewLogger(level string, development bool) (Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: base.Sugar()}, nil
}

func (l *zapLogger) Debugf(template string, args ...interface{}) { l.s.Debugf(template, args...) }
func (l *zapLogger) Infof(template string, args ...interface{})  { l.s.Infof(template, args...) }
func (l *zapLogger) Warnf(template string, args ...interface{})  { l.s.Warnf(template, args...) }
func (l *zapLogger) Errorf(template string, args ...interface{}) { l.s.Errorf(template, args...) }
func (l *zapLogger) Fatalf(template string, args ...interface{}) { l.s.Fatalf(template, args...) }
func (l *zapLogger) Info(args ...interface{})                    { l.s.Info(args...) }

func (l *zapLogger) Warnw(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}

func (l *zapLogger) Benchmark(name string, d time.Duration) {
	l.s.Infow("benchmark", "operation", name, "duration_ms", d.Milliseconds())
}

func (l *zapLogger) With(keysAndValues ...interface{}) Logger {
	return &zapLogger{s: l.s.With(keysAndValues...)}
}

// NewNop returns a Logger that discards everything. Handy in tests.
func NewNop() Logger {
	return &zapLogger{s: zap.NewNop().Sugar()}
}

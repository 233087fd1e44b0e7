// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the application-wide logging contract. Every component takes
// one of these instead of a concrete zap logger so that tests can run with
// the default console logger and production can add file rotation.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})

	// Benchmark records how long a named stage took.
	Benchmark(name string, elapsed time.Duration)

	Sync() error
}

type applicationLogger struct {
	sugar *zap.SugaredLogger
}

// NewApplicationLogger creates a console logger at debug level. This is the
// constructor used by tests and local tooling.
func NewApplicationLogger() (Logger, error) {
	return NewApplicationLoggerWithOptions("debug", "")
}

// NewApplicationLoggerWithOptions creates the application logger at the given
// level. When filePath is non-empty, output is duplicated into a rotated log
// file next to the console stream.
func NewApplicationLoggerWithOptions(level string, filePath string) (Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	syncer := zapcore.AddSync(os.Stdout)
	if filePath != "" {
		fileSyncer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
		syncer = zapcore.NewMultiWriteSyncer(syncer, fileSyncer)
	}

	core := zapcore.NewCore(encoder, syncer, zapLevel)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &applicationLogger{sugar: logger.Sugar()}, nil
}

func (l *applicationLogger) Debug(args ...interface{}) { l.sugar.Debug(args...) }
func (l *applicationLogger) Info(args ...interface{})  { l.sugar.Info(args...) }
func (l *applicationLogger) Warn(args ...interface{})  { l.sugar.Warn(args...) }
func (l *applicationLogger) Error(args ...interface{}) { l.sugar.Error(args...) }

func (l *applicationLogger) Debugf(template string, args ...interface{}) {
	l.sugar.Debugf(template, args...)
}

func (l *applicationLogger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}

func (l *applicationLogger) Warnf(template string, args ...interface{}) {
	l.sugar.Warnf(template, args...)
}

func (l *applicationLogger) Errorf(template string, args ...interface{}) {
	l.sugar.Errorf(template, args...)
}

func (l *applicationLogger) Benchmark(name string, elapsed time.Duration) {
	l.sugar.Infof("benchmark: %s took %s", name, elapsed)
}

func (l *applicationLogger) Sync() error {
	return l.sugar.Sync()
}

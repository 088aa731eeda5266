// Package logging provides PetraCache's process-wide structured logger.
//
// It is a thin wrapper over a *zap.SugaredLogger kept behind package-level
// get/set functions, so every layer of the server can log without having to
// thread a logger value through every call.
package logging

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global        *zap.SugaredLogger
	disableLogger atomic.Bool
	defaultLevel  = zap.NewAtomicLevelAt(zap.InfoLevel)
	componentArgs = []any{"component", "petracache"}
)

func init() {
	Set(newSugaredLogger(defaultLevel))
}

// Set installs l as the global logger.
func Set(l *zap.SugaredLogger) {
	global = l
}

// Get returns the current global logger.
func Get() *zap.SugaredLogger {
	return global
}

// SetLevel adjusts the minimum level the global logger emits.
func SetLevel(level zapcore.Level) {
	defaultLevel.SetLevel(level)
}

// Disable silences all logging, globally.
func Disable() {
	disableLogger.Store(true)
}

// Enable re-enables logging after Disable.
func Enable() {
	disableLogger.Store(false)
}

// Disabled reports whether logging is currently silenced.
func Disabled() bool {
	return disableLogger.Load()
}

func newSugaredLogger(level zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	if level == nil {
		level = defaultLevel
	}
	return zap.New(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zapcore.EncoderConfig{
				TimeKey:        "ts",
				LevelKey:       "level",
				NameKey:        "logger",
				CallerKey:      "caller",
				MessageKey:     "message",
				StacktraceKey:  "stacktrace",
				LineEnding:     zapcore.DefaultLineEnding,
				EncodeLevel:    capitalLevelEncoder,
				EncodeTime:     zapcore.ISO8601TimeEncoder,
				EncodeDuration: zapcore.SecondsDurationEncoder,
				EncodeCaller:   zapcore.ShortCallerEncoder,
			}),
			zapcore.AddSync(os.Stdout),
			level,
		),
		options...,
	).Sugar().With(componentArgs...)
}

func capitalLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	level := ""
	switch l {
	case zapcore.ErrorLevel:
		level = "ERR"
	case zapcore.WarnLevel:
		level = "WARNING"
	default:
		level = l.CapitalString()
	}
	enc.AppendString(level)
}

func Debug(args ...any) {
	if log := Get(); !Disabled() {
		log.Debug(args...)
	}
}

func Debugf(format string, args ...any) {
	if log := Get(); !Disabled() {
		log.Debugf(format, args...)
	}
}

func Info(args ...any) {
	if log := Get(); !Disabled() {
		log.Info(args...)
	}
}

func Infof(format string, args ...any) {
	if log := Get(); !Disabled() {
		log.Infof(format, args...)
	}
}

func Warn(args ...any) {
	if log := Get(); !Disabled() {
		log.Warn(args...)
	}
}

func Warnf(format string, args ...any) {
	if log := Get(); !Disabled() {
		log.Warnf(format, args...)
	}
}

func Error(args ...any) {
	if log := Get(); !Disabled() {
		log.Error(args...)
	}
}

func Errorf(format string, args ...any) {
	if log := Get(); !Disabled() {
		log.Errorf(format, args...)
	}
}

func Fatal(args ...any) {
	if log := Get(); !Disabled() {
		log.Fatal(args...)
	}
}

func Fatalf(format string, args ...any) {
	if log := Get(); !Disabled() {
		log.Fatalf(format, args...)
	}
}

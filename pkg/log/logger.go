// Package log is the structured logger used across the harness.
package log

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the logging interface handed to every harness component.
type Logger interface {
	Log(args ...interface{})
	Logf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithPrefix(string) Logger
}

type zapLogger struct {
	prefix string
	base   *zap.SugaredLogger
	s      *zap.SugaredLogger
}

// New wraps a zap logger.
func New(l *zap.Logger, prefix string) Logger {
	return newZapLogger(l.Sugar(), prefix)
}

func newZapLogger(base *zap.SugaredLogger, prefix string) *zapLogger {
	s := base
	if prefix != "" {
		s = base.With("prefix", prefix)
	}
	return &zapLogger{prefix: prefix, base: base, s: s}
}

// NewCLI creates a console logger for the CLI. Verbosity follows the kubectl convention:
// 0-1 print informational messages, 2 and above include debug output.
func NewCLI(verbosity int) (Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	if verbosity < 2 {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %v", err)
	}
	return New(l, "kie-cloud"), nil
}

// NewTestLogger creates a logger writing through t.Log so output of parallel subtests stays separated.
func NewTestLogger(t testing.TB, prefix string) Logger {
	return New(zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel)), prefix)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return New(zap.NewNop(), "")
}

func (l *zapLogger) Log(args ...interface{}) {
	l.s.Info(args...)
}

func (l *zapLogger) Logf(format string, args ...interface{}) {
	l.s.Infof(format, args...)
}

func (l *zapLogger) Debugf(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}

func (l *zapLogger) Errorf(format string, args ...interface{}) {
	l.s.Errorf(format, args...)
}

// WithPrefix returns a logger with prefix appended to the current prefix.
func (l *zapLogger) WithPrefix(prefix string) Logger {
	p := prefix
	if l.prefix != "" {
		p = fmt.Sprintf("%s/%s", l.prefix, prefix)
	}
	return newZapLogger(l.base, p)
}
